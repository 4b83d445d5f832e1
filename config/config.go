package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds the settings shared by the CLI and the API server.
type Config struct {
	DataDir   string
	APIPort   int
	LogLevel  string
	LogFormat string

	Store string // local | memory | minio

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	HistoryDriver string // sqlite | pgx | "" (disabled)
	HistoryDSN    string

	LLMAPIKey  string
	LLMBaseURL string
	LLMModel   string
}

// Load reads the first .env found (explicit paths, then next to the
// executable, then the working directory) and builds a Config from the
// environment. Variables already set win over the file.
func Load(paths ...string) (Config, error) {
	LoadEnv(paths...)
	return FromEnv()
}

// LoadEnv loads a .env file into the process environment when one exists.
// It reports the file it loaded, or "".
func LoadEnv(paths ...string) string {
	candidates := paths
	if len(candidates) == 0 {
		candidates = envCandidates()
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err == nil {
			return p
		}
	}
	return ""
}

func envCandidates() []string {
	var out []string
	seen := map[string]bool{}
	add := func(p string) {
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	if exe, err := os.Executable(); err == nil {
		if real, err := filepath.EvalSymlinks(exe); err == nil {
			exe = real
		}
		add(filepath.Join(filepath.Dir(exe), ".env"))
	}
	if cwd, err := os.Getwd(); err == nil {
		add(filepath.Join(cwd, ".env"))
	}
	return out
}

func str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

// FromEnv builds a Config from EXFLOW_* variables and validates it.
func FromEnv() (Config, error) {
	port, err := strconv.Atoi(str("EXFLOW_API_PORT", "8080"))
	if err != nil {
		return Config{}, fmt.Errorf("EXFLOW_API_PORT: %w", err)
	}
	useSSL, err := strconv.ParseBool(str("EXFLOW_MINIO_USE_SSL", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("EXFLOW_MINIO_USE_SSL: %w", err)
	}
	cfg := Config{
		DataDir:        str("EXFLOW_DATA_DIR", "data"),
		APIPort:        port,
		LogLevel:       str("EXFLOW_LOG_LEVEL", "info"),
		LogFormat:      str("EXFLOW_LOG_FORMAT", "text"),
		Store:          str("EXFLOW_STORE", "local"),
		MinioEndpoint:  str("EXFLOW_MINIO_ENDPOINT", ""),
		MinioAccessKey: str("EXFLOW_MINIO_ACCESS_KEY", ""),
		MinioSecretKey: str("EXFLOW_MINIO_SECRET_KEY", ""),
		MinioBucket:    str("EXFLOW_MINIO_BUCKET", "workflows"),
		MinioUseSSL:    useSSL,
		HistoryDriver:  str("EXFLOW_HISTORY_DRIVER", "sqlite"),
		HistoryDSN:     str("EXFLOW_HISTORY_DSN", ""),
		LLMAPIKey:      str("EXFLOW_LLM_API_KEY", ""),
		LLMBaseURL:     str("EXFLOW_LLM_BASE_URL", ""),
		LLMModel:       str("EXFLOW_LLM_MODEL", "gpt-4o-mini"),
	}
	if v, ok := os.LookupEnv("EXFLOW_HISTORY_DRIVER"); ok && strings.TrimSpace(v) == "" {
		cfg.HistoryDriver = ""
	}
	if cfg.HistoryDriver == "sqlite" && cfg.HistoryDSN == "" {
		cfg.HistoryDSN = filepath.Join(cfg.DataDir, "history.db")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("EXFLOW_API_PORT must be between 1 and 65535, got %d", c.APIPort)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("EXFLOW_LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	switch c.Store {
	case "local", "memory":
	case "minio":
		if c.MinioEndpoint == "" {
			return fmt.Errorf("EXFLOW_MINIO_ENDPOINT is required when EXFLOW_STORE=minio")
		}
		if strings.Contains(c.MinioEndpoint, "://") {
			return fmt.Errorf("EXFLOW_MINIO_ENDPOINT must not include a scheme, got %q", c.MinioEndpoint)
		}
	default:
		return fmt.Errorf("EXFLOW_STORE must be local, memory or minio, got %q", c.Store)
	}
	switch c.HistoryDriver {
	case "", "sqlite":
	case "pgx":
		if c.HistoryDSN == "" {
			return fmt.Errorf("EXFLOW_HISTORY_DSN is required when EXFLOW_HISTORY_DRIVER=pgx")
		}
	default:
		return fmt.Errorf("EXFLOW_HISTORY_DRIVER must be sqlite, pgx or empty, got %q", c.HistoryDriver)
	}
	return nil
}

// LLMEnabled reports whether an API key was configured.
func (c Config) LLMEnabled() bool { return c.LLMAPIKey != "" }
