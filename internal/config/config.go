// Package config provides configuration loading for tcgd.
//
// Configuration is loaded from a YAML file with environment variable
// overrides. This package covers the server, observability, model,
// pipeline, and collaborator settings.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete tcgd configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	GenAI     GenAIConfig     `koanf:"genai"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
	Artifacts ArtifactsConfig `koanf:"artifacts"`
	Runner    RunnerConfig    `koanf:"runner"`
	Jira      JiraConfig      `koanf:"jira"`
	QADB      QADBConfig      `koanf:"qadb"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig holds OpenTelemetry configuration.
type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
	Endpoint    string `koanf:"endpoint"`
	Insecure    bool   `koanf:"insecure"`
}

// GenAIConfig holds model access configuration.
type GenAIConfig struct {
	Model       string   `koanf:"model"`
	BaseURL     string   `koanf:"base_url"`
	APIKey      Secret   `koanf:"api_key"`
	Timeout     Duration `koanf:"timeout"`
	RateLimit   float64  `koanf:"rate_limit"`
	Burst       int      `koanf:"burst"`
	Temperature float64  `koanf:"temperature"`
}

// PipelineConfig holds orchestrator configuration.
type PipelineConfig struct {
	StageTimeout Duration `koanf:"stage_timeout"`
}

// ArtifactsConfig holds blob store configuration.
type ArtifactsConfig struct {
	Root            string `koanf:"root"`
	SampleMirrorDir string `koanf:"sample_mirror_dir"`
}

// RunnerConfig holds test execution configuration.
type RunnerConfig struct {
	Command   []string `koanf:"command"`
	WorkDir   string   `koanf:"work_dir"`
	ReportDir string   `koanf:"report_dir"`
}

// JiraConfig holds Jira export configuration. Disabled unless a base
// URL is set.
type JiraConfig struct {
	BaseURL   string   `koanf:"base_url"`
	Project   string   `koanf:"project"`
	IssueType string   `koanf:"issue_type"`
	User      string   `koanf:"user"`
	APIToken  Secret   `koanf:"api_token"`
	Timeout   Duration `koanf:"timeout"`
}

// Enabled reports whether Jira export is configured.
func (c *JiraConfig) Enabled() bool {
	return c.BaseURL != ""
}

// QADBConfig holds the QA database configuration. An empty path
// disables persistence.
type QADBConfig struct {
	Path string `koanf:"path"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	if c.Telemetry.Enabled && c.Telemetry.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}

	if c.GenAI.Model == "" {
		return errors.New("genai model is required")
	}
	if !c.GenAI.APIKey.IsSet() {
		return errors.New("genai api_key is required")
	}

	if c.Artifacts.Root == "" {
		return errors.New("artifacts root is required")
	}

	if c.Jira.Enabled() {
		if c.Jira.Project == "" {
			return errors.New("jira project required when jira is configured")
		}
		if c.Jira.User == "" || !c.Jira.APIToken.IsSet() {
			return errors.New("jira credentials required when jira is configured")
		}
	}

	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "tcgd"
	}

	if cfg.GenAI.Model == "" {
		cfg.GenAI.Model = "gemini-2.5-flash"
	}
	if cfg.GenAI.Timeout == 0 {
		cfg.GenAI.Timeout = Duration(60 * time.Second)
	}
	if cfg.GenAI.RateLimit == 0 {
		cfg.GenAI.RateLimit = 1
	}
	if cfg.GenAI.Burst == 0 {
		cfg.GenAI.Burst = 3
	}

	if cfg.Pipeline.StageTimeout == 0 {
		cfg.Pipeline.StageTimeout = Duration(120 * time.Second)
	}

	if len(cfg.Runner.Command) == 0 {
		cfg.Runner.Command = []string{"mvn", "-q", "test"}
	}

	if cfg.Jira.IssueType == "" {
		cfg.Jira.IssueType = "Task"
	}
	if cfg.Jira.Timeout == 0 {
		cfg.Jira.Timeout = Duration(15 * time.Second)
	}
}
