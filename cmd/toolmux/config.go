package main

import (
	"log/slog"
	"os"
	"path/filepath"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	DBDSN         string     // sqlite file path
	ConfigFile    string     // path to toolmux.yaml seed file
	LogLevel      slog.Level // slog level
	NamespaceName string     // namespace this process serves
	EndpointName  string     // endpoint this process serves (optional)
}

// defaultDataPath returns ~/.toolmux/<filename>, falling back to a
// CWD-relative path if the home directory can't be resolved.
func defaultDataPath(filename string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filename
	}
	return filepath.Join(home, ".toolmux", filename)
}

func loadConfig() (*Config, error) {
	cfg := &Config{
		DBDSN:         envOr("TOOLMUX_DB_DSN", defaultDataPath("toolmux.db")),
		ConfigFile:    envOr("TOOLMUX_CONFIG", defaultDataPath("toolmux.yaml")),
		LogLevel:      parseLogLevel(envOr("TOOLMUX_LOG_LEVEL", "info")),
		NamespaceName: envOr("TOOLMUX_NAMESPACE", "default"),
		EndpointName:  envOr("TOOLMUX_ENDPOINT", ""),
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
