package config

import (
	"os"
	"strconv"
)

type Config struct {
	// AppDir overrides the directory the launcher pins itself to.
	// Empty means "directory of the launcher executable".
	AppDir string

	NodeBin     string
	NpmBin      string
	VersionFlag string

	// MarkerDir is the dependency-cache directory, relative to AppDir,
	// whose presence means "already installed".
	MarkerDir      string
	LegacyPeerDeps bool

	StatusPort  string // empty disables the status API
	LogLevel    string
	LogEncoding string

	// Session log archival. Backend is "file" or "s3".
	LogBackend  string
	LogDir      string
	S3Bucket    string
	S3Prefix    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string

	TracingEnabled  bool
	TracingEndpoint string
}

func LoadConfig() *Config {
	return &Config{
		AppDir:          getEnv("LAUNCHER_APP_DIR", ""),
		NodeBin:         getEnv("LAUNCHER_NODE_BIN", "node"),
		NpmBin:          getEnv("LAUNCHER_NPM_BIN", "npm"),
		VersionFlag:     getEnv("LAUNCHER_VERSION_FLAG", "--version"),
		MarkerDir:       getEnv("LAUNCHER_MARKER_DIR", "node_modules"),
		LegacyPeerDeps:  getEnvAsBool("LAUNCHER_LEGACY_PEER_DEPS", true),
		StatusPort:      getEnv("LAUNCHER_STATUS_PORT", ""),
		LogLevel:        getEnv("LAUNCHER_LOG_LEVEL", "info"),
		LogEncoding:     getEnv("LAUNCHER_LOG_ENCODING", "console"),
		LogBackend:      getEnv("LAUNCHER_LOG_BACKEND", "file"),
		LogDir:          getEnv("LAUNCHER_LOG_DIR", ".launcher/logs"),
		S3Bucket:        getEnv("LAUNCHER_S3_BUCKET", ""),
		S3Prefix:        getEnv("LAUNCHER_S3_PREFIX", "logs/sessions/"),
		S3Region:        getEnv("LAUNCHER_S3_REGION", "us-east-1"),
		S3Endpoint:      getEnv("LAUNCHER_S3_ENDPOINT", ""),
		S3AccessKey:     getEnv("LAUNCHER_S3_ACCESS_KEY", ""),
		S3SecretKey:     getEnv("LAUNCHER_S3_SECRET_KEY", ""),
		TracingEnabled:  getEnvAsBool("LAUNCHER_TRACING_ENABLED", false),
		TracingEndpoint: getEnv("LAUNCHER_TRACING_ENDPOINT", "localhost:4318"),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}
