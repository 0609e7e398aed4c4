package statusapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/1kaiser/llm-consistency-vis/pkg/launcher"
	"github.com/1kaiser/llm-consistency-vis/pkg/logger"
)

// StatusSource provides the launcher state served on /health.
type StatusSource interface {
	Snapshot() launcher.Status
}

// Server is a small localhost observation endpoint for the launcher
// itself. It says nothing about the visualization server's own HTTP
// surface, which stays opaque to the launcher.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	source     StatusSource
}

func NewServer(port string, source StatusSource) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestMetrics())
	router.Use(requestLogger())

	s := &Server{
		router: router,
		source: source,
	}

	router.GET("/health", s.health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.httpServer = &http.Server{
		Addr:         "127.0.0.1:" + port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start begins listening. It returns when the server stops.
func (s *Server) Start() error {
	logger.Info("Status API listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("status api failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	status := s.source.Snapshot()

	resp := gin.H{
		"status":    "healthy",
		"run_id":    status.RunID,
		"state":     status.State,
		"uptime":    time.Since(status.StartedAt).Round(time.Second).String(),
		"timestamp": time.Now().UTC(),
	}

	if status.ChildPID > 0 {
		resp["child_pid"] = status.ChildPID
		if proc, err := process.NewProcess(int32(status.ChildPID)); err == nil {
			if memInfo, err := proc.MemoryInfo(); err == nil {
				resp["child_rss_bytes"] = memInfo.RSS
			}
		}
	}

	if v, err := mem.VirtualMemory(); err == nil {
		resp["host_mem_used_percent"] = v.UsedPercent
	}

	c.JSON(http.StatusOK, resp)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Debug("Status API request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
