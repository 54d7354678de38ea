package main

import (
	"log/slog"
	"os"
	"path/filepath"
)

// Env holds process-level settings loaded from environment variables.
// Everything policy-shaped (TTLs, rate limits, upstream URL) lives in
// the YAML config file instead.
type Env struct {
	Mode        string     // "stdio", "http", or "both"
	HTTPAddr    string     // listener address for http mode
	ConfigFile  string     // path to maximo-mcp.yaml
	AgeKeyPath  string     // path to age identity file
	SecretsFile string     // path to the encrypted secrets file
	ClientKey   string     // static MCP client credential for stdio
	LogLevel    slog.Level // slog level
}

// defaultDataPath returns ~/.maximo-mcp/<filename>, falling back to
// a CWD-relative path if the home directory can't be resolved.
func defaultDataPath(filename string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filename
	}
	return filepath.Join(home, ".maximo-mcp", filename)
}

func loadEnv() *Env {
	return &Env{
		Mode:        envOr("MAXIMO_MCP_MODE", "stdio"),
		HTTPAddr:    envOr("MAXIMO_MCP_HTTP_ADDR", "127.0.0.1:8080"),
		ConfigFile:  envOr("MAXIMO_MCP_CONFIG", defaultDataPath("maximo-mcp.yaml")),
		AgeKeyPath:  envOr("MAXIMO_MCP_AGE_KEY", defaultDataPath("identity.age")),
		SecretsFile: envOr("MAXIMO_MCP_CREDENTIALS_FILE", defaultDataPath("secrets.age")),
		ClientKey:   os.Getenv("MAXIMO_MCP_CLIENT_KEY"),
		LogLevel:    parseLogLevel(envOr("MAXIMO_MCP_LOG_LEVEL", "info")),
	}
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

// applyFlags parses --mode=X style overrides from the args list.
func applyFlags(env *Env, args []string) {
	for _, arg := range args {
		if len(arg) > 7 && arg[:7] == "--mode=" {
			env.Mode = arg[7:]
		}
		if len(arg) > 7 && arg[:7] == "--addr=" {
			env.HTTPAddr = arg[7:]
		}
		if len(arg) > 9 && arg[:9] == "--config=" {
			env.ConfigFile = arg[9:]
		}
	}
}
