package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	config "github.com/1kaiser/llm-consistency-vis/configs"
	"github.com/1kaiser/llm-consistency-vis/pkg/installer"
	"github.com/1kaiser/llm-consistency-vis/pkg/launcher"
	"github.com/1kaiser/llm-consistency-vis/pkg/logger"
	"github.com/1kaiser/llm-consistency-vis/pkg/observability"
	"github.com/1kaiser/llm-consistency-vis/pkg/probe"
	"github.com/1kaiser/llm-consistency-vis/pkg/runner"
	"github.com/1kaiser/llm-consistency-vis/pkg/statusapi"
	"github.com/1kaiser/llm-consistency-vis/pkg/storage"
	"github.com/1kaiser/llm-consistency-vis/pkg/supervisor"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.LoadConfig()

	log, err := logger.Init(logger.Config{
		Level:      cfg.LogLevel,
		Encoding:   cfg.LogEncoding,
		OutputPath: "stderr",
		Service:    "llm-consistency-vis-launcher",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	// Pin the working directory to the launcher's own location before
	// anything else, so the marker directory and npm resolve the same
	// way regardless of where the launcher was invoked from.
	appDir, err := resolveAppDir(cfg)
	if err != nil {
		log.Error("Failed to resolve app directory", zap.Error(err))
		return 1
	}
	if err := os.Chdir(appDir); err != nil {
		log.Error("Failed to change working directory", zap.String("dir", appDir), zap.Error(err))
		return 1
	}
	log.Info("📁 Working directory", zap.String("dir", appDir))

	// One interrupt path for the whole invocation: SIGINT/SIGTERM
	// cancels this context. During the run phase the supervisor turns
	// the cancellation into a forwarded SIGINT and a clean stop.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	capRunner := runner.NewCaptureRunner()
	prober := probe.NewProber(capRunner)
	inst := installer.NewInstaller(capRunner, cfg.NpmBin, cfg.MarkerDir, cfg.LegacyPeerDeps)
	sup := supervisor.New()

	tracer := initTracing(ctx, cfg, log)
	logStore := buildLogStore(ctx, cfg, log)

	core := launcher.NewCore(cfg, prober, inst, sup, tracer, logStore)
	sup.OnStart = core.SetChildPID
	log.Info("🎯 LLM Consistency Visualization launcher", zap.String("run_id", core.RunID()))

	var statusSrv *statusapi.Server
	if cfg.StatusPort != "" {
		statusSrv = statusapi.NewServer(cfg.StatusPort, core)
		go func() {
			if err := statusSrv.Start(); err != nil {
				log.Warn("Status API stopped", zap.Error(err))
			}
		}()
	}

	code := core.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if statusSrv != nil {
		if err := statusSrv.Shutdown(shutdownCtx); err != nil {
			log.Warn("Status API shutdown failed", zap.Error(err))
		}
	}
	if err := tracer.Shutdown(shutdownCtx); err != nil {
		log.Warn("Trace provider shutdown failed", zap.Error(err))
	}

	return code
}

// resolveAppDir returns the directory the launcher pins itself to:
// the configured override, or the directory of the executable.
func resolveAppDir(cfg *config.Config) (string, error) {
	if cfg.AppDir != "" {
		return filepath.Abs(cfg.AppDir)
	}
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to locate launcher executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}

func initTracing(ctx context.Context, cfg *config.Config, log *zap.Logger) *observability.Provider {
	tracer, err := observability.Init(ctx, observability.Config{
		ServiceName: "llm-consistency-vis-launcher",
		Endpoint:    cfg.TracingEndpoint,
		Enabled:     cfg.TracingEnabled,
	})
	if err != nil {
		log.Warn("Tracing disabled: exporter init failed", zap.Error(err))
		tracer, _ = observability.Init(ctx, observability.Config{
			ServiceName: "llm-consistency-vis-launcher",
			Enabled:     false,
		})
	}
	return tracer
}

// buildLogStore picks the session-log backend. Archival is optional:
// any setup failure downgrades to no archival with a warning.
func buildLogStore(ctx context.Context, cfg *config.Config, log *zap.Logger) storage.LogStore {
	if cfg.LogBackend == "s3" && cfg.S3Bucket != "" {
		store, err := storage.NewS3LogStore(ctx, storage.S3LogStoreConfig{
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
		})
		if err != nil {
			log.Warn("S3 log store unavailable, session logs will not be archived", zap.Error(err))
			return nil
		}
		return store
	}

	store, err := storage.NewFileLogStore(cfg.LogDir)
	if err != nil {
		log.Warn("Local log store unavailable, session logs will not be archived", zap.Error(err))
		return nil
	}
	return store
}
