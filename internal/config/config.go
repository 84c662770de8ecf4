// Package config loads tendergraph settings from an optional TOML file and
// the environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultFile is read from the working directory when TG_CONFIG is unset.
const DefaultFile = "tendergraph.toml"

type Config struct {
	DatabaseURL string // TG_DATABASE_URL (default sqlite in .tender_state)
	GRPCAddr    string // TG_GRPC_ADDR (default ":9090")
	HTTPAddr    string // TG_HTTP_ADDR (default ":8080")
	NATSURL     string // TG_NATS_URL (optional, empty = no events)
	AuthToken   string // TG_AUTH_TOKEN (optional, empty = auth disabled)

	// LLM settings
	LLMAPIKey      string        // OPENROUTER_API_KEY or TG_LLM_API_KEY (required to process)
	LLMBaseURL     string        // TG_LLM_BASE_URL
	LLMModel       string        // TG_LLM_MODEL or LLM_MODEL
	LLMTimeout     time.Duration // TG_LLM_TIMEOUT (default 120s)
	LLMRPS         float64       // TG_LLM_RPS (default 2; 0 = unlimited)
	LLMConcurrency int           // TG_LLM_CONCURRENCY (default 4)

	MaxChars int    // TG_MAX_CHARS (default 50000)
	TikaURL  string // TG_TIKA_URL (optional, empty = text formats only)

	// Sync settings
	SyncInterval   time.Duration // TG_SYNC_INTERVAL (default 0 = disabled)
	SyncS3Bucket   string        // TG_SYNC_S3_BUCKET (enables S3 when set)
	SyncS3Endpoint string        // TG_SYNC_S3_ENDPOINT (custom endpoint for MinIO)
	SyncS3Region   string        // TG_SYNC_S3_REGION (default "us-east-1")
	SyncS3Key      string        // TG_SYNC_S3_KEY (default "tendergraph/{project}.jsonl")
	SyncGitRepo    string        // TG_SYNC_GIT_REPO (enables git when set; path to clone)
	SyncGitFile    string        // TG_SYNC_GIT_FILE (default "tendergraph.jsonl")
	SyncGitBranch  string        // TG_SYNC_GIT_BRANCH (default "main")

	LogLevel  string // TG_LOG_LEVEL (debug|info|warn|error)
	LogFormat string // TG_LOG_FORMAT (text|json)
}

// fileConfig mirrors the TOML layout.
type fileConfig struct {
	DatabaseURL string `toml:"database_url"`
	HTTPAddr    string `toml:"http_addr"`
	GRPCAddr    string `toml:"grpc_addr"`
	AuthToken   string `toml:"auth_token"`
	NATSURL     string `toml:"nats_url"`

	LLM struct {
		APIKey            string `toml:"api_key"`
		BaseURL           string `toml:"base_url"`
		Model             string `toml:"model"`
		Timeout           string `toml:"timeout"`
		RequestsPerSecond string `toml:"requests_per_second"`
		Concurrency       string `toml:"concurrency"`
	} `toml:"llm"`

	Extract struct {
		MaxChars string `toml:"max_chars"`
	} `toml:"extract"`

	Reader struct {
		TikaURL string `toml:"tika_url"`
	} `toml:"reader"`

	Sync struct {
		Interval   string `toml:"interval"`
		S3Bucket   string `toml:"s3_bucket"`
		S3Endpoint string `toml:"s3_endpoint"`
		S3Region   string `toml:"s3_region"`
		S3Key      string `toml:"s3_key"`
		GitRepo    string `toml:"git_repo"`
		GitFile    string `toml:"git_file"`
		GitBranch  string `toml:"git_branch"`
	} `toml:"sync"`

	Log struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
	} `toml:"log"`
}

// Load reads the TOML file named by TG_CONFIG (or ./tendergraph.toml when
// present) and applies environment overrides.
func Load() (*Config, error) {
	var f fileConfig
	path, explicit := os.LookupEnv("TG_CONFIG")
	if !explicit || path == "" {
		path = DefaultFile
	}
	if _, err := toml.DecodeFile(path, &f); err != nil {
		if !errors.Is(err, os.ErrNotExist) || (explicit && path != DefaultFile) {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	c := &Config{
		DatabaseURL:    envOrDefault("TG_DATABASE_URL", f.DatabaseURL, "sqlite://.tender_state/tendergraph.db"),
		GRPCAddr:       envOrDefault("TG_GRPC_ADDR", f.GRPCAddr, ":9090"),
		HTTPAddr:       envOrDefault("TG_HTTP_ADDR", f.HTTPAddr, ":8080"),
		NATSURL:        envOrDefault("TG_NATS_URL", f.NATSURL, ""),
		AuthToken:      envOrDefault("TG_AUTH_TOKEN", f.AuthToken, ""),
		LLMAPIKey:      envOrDefault("OPENROUTER_API_KEY", envOrDefault("TG_LLM_API_KEY", f.LLM.APIKey, ""), ""),
		LLMBaseURL:     envOrDefault("TG_LLM_BASE_URL", f.LLM.BaseURL, "https://openrouter.ai/api/v1"),
		LLMModel:       envOrDefault("TG_LLM_MODEL", envOrDefault("LLM_MODEL", f.LLM.Model, ""), "google/gemini-3-flash-preview"),
		TikaURL:        envOrDefault("TG_TIKA_URL", f.Reader.TikaURL, ""),
		SyncS3Bucket:   envOrDefault("TG_SYNC_S3_BUCKET", f.Sync.S3Bucket, ""),
		SyncS3Endpoint: envOrDefault("TG_SYNC_S3_ENDPOINT", f.Sync.S3Endpoint, ""),
		SyncS3Region:   envOrDefault("TG_SYNC_S3_REGION", f.Sync.S3Region, "us-east-1"),
		SyncS3Key:      envOrDefault("TG_SYNC_S3_KEY", f.Sync.S3Key, "tendergraph/{project}.jsonl"),
		SyncGitRepo:    envOrDefault("TG_SYNC_GIT_REPO", f.Sync.GitRepo, ""),
		SyncGitFile:    envOrDefault("TG_SYNC_GIT_FILE", f.Sync.GitFile, "tendergraph.jsonl"),
		SyncGitBranch:  envOrDefault("TG_SYNC_GIT_BRANCH", f.Sync.GitBranch, "main"),
		LogLevel:       envOrDefault("TG_LOG_LEVEL", f.Log.Level, "info"),
		LogFormat:      envOrDefault("TG_LOG_FORMAT", f.Log.Format, "text"),
	}

	var err error
	if c.LLMTimeout, err = parseDuration("TG_LLM_TIMEOUT", envOrDefault("TG_LLM_TIMEOUT", f.LLM.Timeout, "120s")); err != nil {
		return nil, err
	}
	if c.SyncInterval, err = parseDuration("TG_SYNC_INTERVAL", envOrDefault("TG_SYNC_INTERVAL", f.Sync.Interval, "0")); err != nil {
		return nil, err
	}

	rps := envOrDefault("TG_LLM_RPS", f.LLM.RequestsPerSecond, "2")
	if c.LLMRPS, err = strconv.ParseFloat(rps, 64); err != nil || c.LLMRPS < 0 {
		return nil, fmt.Errorf("TG_LLM_RPS: invalid value %q", rps)
	}
	if c.LLMConcurrency, err = parsePositive("TG_LLM_CONCURRENCY", envOrDefault("TG_LLM_CONCURRENCY", f.LLM.Concurrency, "4")); err != nil {
		return nil, err
	}
	if c.MaxChars, err = parsePositive("TG_MAX_CHARS", envOrDefault("TG_MAX_CHARS", f.Extract.MaxChars, "50000")); err != nil {
		return nil, err
	}

	return c, nil
}

// RequireLLM reports an error when no LLM API key is configured.
func (c *Config) RequireLLM() error {
	if c.LLMAPIKey == "" {
		return fmt.Errorf("OPENROUTER_API_KEY (or TG_LLM_API_KEY) is required to process documents")
	}
	return nil
}

func envOrDefault(key, fileValue, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	if fileValue != "" {
		return fileValue
	}
	return fallback
}

func parseDuration(key, s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func parsePositive(key, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s: invalid value %q (want a positive integer)", key, s)
	}
	return n, nil
}
