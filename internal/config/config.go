// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Evolution() EvolutionConfig
	Provider() ProviderConfig
	Ledger() LedgerConfig

	// Evolution setters, used by the run command to apply CLI flag overrides.
	SetEvolutionConfig(EvolutionConfig)
	SetProviderConfig(ProviderConfig)
}

// Config holds the entire application configuration. Access goes through the
// Interface getter methods.
type Config struct {
	LoggerCfg    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	EvolutionCfg EvolutionConfig `mapstructure:"evolution" yaml:"evolution"`
	ProviderCfg  ProviderConfig  `mapstructure:"provider" yaml:"provider"`
	LedgerCfg    LedgerConfig    `mapstructure:"ledger" yaml:"ledger"`
}

var _ Interface = (*Config)(nil)

func (c *Config) Logger() LoggerConfig       { return c.LoggerCfg }
func (c *Config) Evolution() EvolutionConfig { return c.EvolutionCfg }
func (c *Config) Provider() ProviderConfig   { return c.ProviderCfg }
func (c *Config) Ledger() LedgerConfig       { return c.LedgerCfg }

func (c *Config) SetEvolutionConfig(ec EvolutionConfig) { c.EvolutionCfg = ec }
func (c *Config) SetProviderConfig(pc ProviderConfig)   { c.ProviderCfg = pc }

// LoggerConfig controls the global zap logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"` // "console" or "json"
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// EvolutionConfig holds the run parameters for the evolution loop. All fields
// are fixed for the duration of one run.
type EvolutionConfig struct {
	StepSize   int `mapstructure:"step_size" yaml:"step_size"`     // Total steps to execute.
	BatchSize  int `mapstructure:"batch_size" yaml:"batch_size"`   // Steps per playbook update.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"` // Provider attempts per update.

	PlaybooksDir   string `mapstructure:"playbooks_dir" yaml:"playbooks_dir"`
	GenerationsDir string `mapstructure:"generations_dir" yaml:"generations_dir"`

	GeneratePromptPath string `mapstructure:"prompt_generate_answer" yaml:"prompt_generate_answer"`
	UpdatePromptPath   string `mapstructure:"prompt_update_playbook" yaml:"prompt_update_playbook"`
	SchemaPlaybookPath string `mapstructure:"schema_playbook" yaml:"schema_playbook"`

	// RetryBackoff is the pause between update-step retry attempts, so a
	// flapping provider isn't hammered.
	RetryBackoff time.Duration `mapstructure:"retry_backoff" yaml:"retry_backoff"`
}

// ProviderKind selects the provider implementation.
type ProviderKind string

const (
	ProviderCLI    ProviderKind = "cli"
	ProviderGemini ProviderKind = "gemini"
)

// ProviderConfig selects and configures the text-generation capability.
type ProviderConfig struct {
	Kind ProviderKind `mapstructure:"kind" yaml:"kind"`

	// CLI provider: the prompt is appended as the final argument.
	Command   string   `mapstructure:"command" yaml:"command"`
	ExtraArgs []string `mapstructure:"extra_args" yaml:"extra_args"`

	Gemini GeminiConfig `mapstructure:"gemini" yaml:"gemini"`
}

// GeminiConfig defines the configuration for the Gemini HTTP chat provider.
type GeminiConfig struct {
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout  time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
	TopP        float32       `mapstructure:"top_p" yaml:"top_p"`
	TopK        int           `mapstructure:"top_k" yaml:"top_k"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// PostgresConfig holds the connection details for a PostgreSQL database.
type PostgresConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`
	DBName   string `mapstructure:"dbname" yaml:"dbname"`
	SSLMode  string `mapstructure:"sslmode" yaml:"sslmode"`
}

// LedgerConfig specifies the backend for the run ledger.
type LedgerConfig struct {
	Type     string         `mapstructure:"type" yaml:"type"` // "memory" or "postgres"
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
}

// NewDefaultConfig creates a new configuration struct populated with defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "evolve-cli")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Evolution --
	v.SetDefault("evolution.step_size", 10)
	v.SetDefault("evolution.batch_size", 3)
	v.SetDefault("evolution.max_retries", 5)
	v.SetDefault("evolution.playbooks_dir", "data/playbooks")
	v.SetDefault("evolution.generations_dir", "data/generations")
	v.SetDefault("evolution.prompt_generate_answer", "data/prompts/GENERATE_ANSWER.tmpl")
	v.SetDefault("evolution.prompt_update_playbook", "data/prompts/UPDATE_PLAYBOOK.tmpl")
	v.SetDefault("evolution.schema_playbook", "data/prompts/PLAYBOOK_SCHEMA.txt")
	v.SetDefault("evolution.retry_backoff", "2s")

	// -- Provider --
	v.SetDefault("provider.kind", "cli")
	v.SetDefault("provider.command", "claude")
	v.SetDefault("provider.extra_args", []string{"-p"})
	v.SetDefault("provider.gemini.model", "gemini-2.5-pro")
	v.SetDefault("provider.gemini.api_timeout", "120s")
	v.SetDefault("provider.gemini.temperature", 0.7)
	v.SetDefault("provider.gemini.max_tokens", 0)

	// -- Ledger --
	v.SetDefault("ledger.type", "memory")
	v.SetDefault("ledger.postgres.host", "localhost")
	v.SetDefault("ledger.postgres.port", 5432)
	v.SetDefault("ledger.postgres.user", "postgres")
	v.SetDefault("ledger.postgres.password", "") // Should be set via env var.
	v.SetDefault("ledger.postgres.dbname", "evolve_ledger")
	v.SetDefault("ledger.postgres.sslmode", "disable")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Bind environment variables for sensitive data.
	_ = v.BindEnv("provider.gemini.api_key", "EVOLVE_GEMINI_API_KEY")
	_ = v.BindEnv("ledger.postgres.password", "EVOLVE_LEDGER_PASSWORD")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.ProviderCfg.Gemini.APIKey == "" {
		cfg.ProviderCfg.Gemini.APIKey = os.Getenv("EVOLVE_GEMINI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for fatal inconsistencies. These are
// configuration errors: surfaced before the loop begins, never retried.
func (c *Config) Validate() error {
	ec := c.EvolutionCfg
	if ec.StepSize <= 0 {
		return fmt.Errorf("evolution.step_size must be positive, got %d", ec.StepSize)
	}
	if ec.BatchSize <= 0 {
		return fmt.Errorf("evolution.batch_size must be positive, got %d", ec.BatchSize)
	}
	if ec.MaxRetries < 1 {
		return fmt.Errorf("evolution.max_retries must be at least 1, got %d", ec.MaxRetries)
	}
	if ec.PlaybooksDir == "" {
		return fmt.Errorf("evolution.playbooks_dir must not be empty")
	}
	if ec.GenerationsDir == "" {
		return fmt.Errorf("evolution.generations_dir must not be empty")
	}
	if ec.GeneratePromptPath == "" || ec.UpdatePromptPath == "" {
		return fmt.Errorf("both prompt template paths must be set")
	}

	switch c.ProviderCfg.Kind {
	case ProviderCLI:
		if c.ProviderCfg.Command == "" {
			return fmt.Errorf("provider.command is required for the cli provider")
		}
	case ProviderGemini:
		// The API key may arrive late via env; the provider constructor enforces it.
	default:
		return fmt.Errorf("unknown provider kind %q", c.ProviderCfg.Kind)
	}

	switch c.LedgerCfg.Type {
	case "", "memory", "in-memory", "postgres":
	default:
		return fmt.Errorf("unsupported ledger type %q", c.LedgerCfg.Type)
	}
	return nil
}
