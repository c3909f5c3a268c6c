package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"runbox/internal/exec/profile"
	"runbox/internal/exec/ratelimit"
	"runbox/internal/exec/sandbox"
	"runbox/internal/exec/service"
	"runbox/internal/exec/validator"
	"runbox/pkg/utils/logger"

	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8090"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second

	defaultTimeoutMs      = 5000
	defaultMaxCodeSize    = 50000
	defaultMaxInputSize   = 50000
	defaultMaxOutputBytes = 1000000
	defaultMemoryLimit    = "256m"
	defaultPIDsLimit      = 64
	defaultScratchSize    = "64m"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// ExecutionConfig holds the per-request execution bounds.
type ExecutionConfig struct {
	TimeoutMs         int64   `yaml:"timeoutMs"`
	MaxCodeSizeBytes  int     `yaml:"maxCodeSizeBytes"`
	MaxInputSizeBytes int     `yaml:"maxInputSizeBytes"`
	MaxOutputBytes    int64   `yaml:"maxOutputBytes"`
	MemoryLimit       string  `yaml:"memoryLimit"`
	PIDsLimit         int64   `yaml:"pidsLimit"`
	CPUs              float64 `yaml:"cpus"`
	ScratchSize       string  `yaml:"scratchSize"`
	WorkRoot          string  `yaml:"workRoot"`
}

// SandboxConfig holds container runtime settings.
type SandboxConfig struct {
	Binary          string        `yaml:"binary"`
	User            string        `yaml:"user"`
	TeardownTimeout time.Duration `yaml:"teardownTimeout"`
	VerifyImages    bool          `yaml:"verifyImages"`
}

// AppConfig holds exec-service config.
type AppConfig struct {
	Server    ServerConfig              `yaml:"server"`
	Logger    logger.Config             `yaml:"logger"`
	Execution ExecutionConfig           `yaml:"execution"`
	Sandbox   SandboxConfig             `yaml:"sandbox"`
	RateLimit ratelimit.Config          `yaml:"ratelimit"`
	Languages []profile.LanguageProfile `yaml:"languages"`
}

func loadAppConfig(path string) (AppConfig, error) {
	var cfg AppConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config file failed: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file failed: %w", err)
		}
	}
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout <= 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout <= 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}
	if cfg.Execution.TimeoutMs <= 0 {
		cfg.Execution.TimeoutMs = defaultTimeoutMs
	}
	if cfg.Execution.MaxCodeSizeBytes <= 0 {
		cfg.Execution.MaxCodeSizeBytes = defaultMaxCodeSize
	}
	if cfg.Execution.MaxInputSizeBytes <= 0 {
		cfg.Execution.MaxInputSizeBytes = defaultMaxInputSize
	}
	if cfg.Execution.MaxOutputBytes <= 0 {
		cfg.Execution.MaxOutputBytes = defaultMaxOutputBytes
	}
	if cfg.Execution.MemoryLimit == "" {
		cfg.Execution.MemoryLimit = defaultMemoryLimit
	}
	if cfg.Execution.PIDsLimit <= 0 {
		cfg.Execution.PIDsLimit = defaultPIDsLimit
	}
	if cfg.Execution.ScratchSize == "" {
		cfg.Execution.ScratchSize = defaultScratchSize
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = profile.DefaultProfiles()
	}
}

// applyEnvOverrides maps the recognized environment options over the file
// values. Invalid numbers are ignored in favor of the configured value.
func applyEnvOverrides(cfg *AppConfig) {
	if v := os.Getenv("EXECUTION_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil && ms > 0 {
			cfg.Execution.TimeoutMs = ms
		}
	}
	if v := os.Getenv("MEMORY_LIMIT"); v != "" {
		cfg.Execution.MemoryLimit = v
	}
	if v := os.Getenv("MAX_CODE_SIZE_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Execution.MaxCodeSizeBytes = n
		}
	}
	if v := os.Getenv("MAX_OUTPUT_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.Execution.MaxOutputBytes = n
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RateLimit.Addr = v
	}
	if v := os.Getenv("SANDBOX_BINARY"); v != "" {
		cfg.Sandbox.Binary = v
	}
}

func (c SandboxConfig) toLauncherConfig() sandbox.Config {
	return sandbox.Config{
		Binary:          c.Binary,
		User:            c.User,
		TeardownTimeout: c.TeardownTimeout,
		VerifyImages:    c.VerifyImages,
	}
}

func (c ExecutionConfig) toServiceLimits() service.Limits {
	return service.Limits{
		TimeoutMs:      c.TimeoutMs,
		MaxOutputBytes: c.MaxOutputBytes,
		Memory:         c.MemoryLimit,
		PIDs:           c.PIDsLimit,
		CPUs:           c.CPUs,
		ScratchSize:    c.ScratchSize,
	}
}

func (c ExecutionConfig) toValidatorLimits() validator.Limits {
	return validator.Limits{
		MaxCodeSize:  c.MaxCodeSizeBytes,
		MaxInputSize: c.MaxInputSizeBytes,
	}
}
