package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
	Uploads  UploadsConfig  `mapstructure:"uploads"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

// DatabaseConfig selects the gorm driver for upload metadata.
// Driver is "sqlite" (Path is used) or "postgres" (DSN is used).
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	URL             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the driver-specific connection string.
func (c DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return c.URL
	}
	if c.URL != "" {
		return strings.TrimPrefix(c.URL, "sqlite:///")
	}
	return c.Path
}

// StorageConfig selects where uploaded blobs live.
// Type is one of local, memory, s3, r2, s3compatible.
type StorageConfig struct {
	Type      string `mapstructure:"type"`
	LocalPath string `mapstructure:"local_path"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
}

type LLMConfig struct {
	OpenAI      ProviderConfig `mapstructure:"openai"`
	Anthropic   ProviderConfig `mapstructure:"anthropic"`
	Mock        MockConfig     `mapstructure:"mock"`
	MaxTokens   int            `mapstructure:"max_tokens"`
	Temperature float64        `mapstructure:"temperature"`
	Timeout     time.Duration  `mapstructure:"timeout"`
}

// MockConfig enables the offline generator used for local runs and tests.
type MockConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Delay   time.Duration `mapstructure:"delay"`
}

type JobsConfig struct {
	EstimatedDuration time.Duration `mapstructure:"estimated_duration"`
	GenerationTimeout time.Duration `mapstructure:"generation_timeout"`
	CoalesceInflight  bool          `mapstructure:"coalesce_inflight"`
	JobRetention      time.Duration `mapstructure:"job_retention"`
	CacheRetention    time.Duration `mapstructure:"cache_retention"`
	DefaultListLimit  int           `mapstructure:"default_list_limit"`
	MaxListLimit      int           `mapstructure:"max_list_limit"`
}

type UploadsConfig struct {
	MaxSize               int64         `mapstructure:"max_size"`
	SkipContentValidation bool          `mapstructure:"skip_content_validation"`
	Retention             time.Duration `mapstructure:"retention"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets and common deployment knobs keep their conventional names.
	_ = v.BindEnv("server.port", "PORT")
	_ = v.BindEnv("database.dsn", "DATABASE_URL")
	_ = v.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	_ = v.BindEnv("storage.secret_key", "STORAGE_SECRET_KEY")
	_ = v.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	_ = v.BindEnv("llm.openai.api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("llm.openai.base_url", "OPENAI_BASE_URL")
	_ = v.BindEnv("llm.anthropic.api_key", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("llm.anthropic.base_url", "ANTHROPIC_BASE_URL")
	_ = v.BindEnv("llm.mock.enabled", "LLM_MOCK_ENABLED")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.LLM.OpenAI.Name = "openai"
	cfg.LLM.Anthropic.Name = "anthropic"
	cfg.LLM.OpenAI.ResolveEnvVars()
	cfg.LLM.Anthropic.ResolveEnvVars()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/threatforge.db")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "./data")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("storage.bucket", "threatforge")
	v.SetDefault("storage.region", "")
	v.SetDefault("storage.public_url", "")

	v.SetDefault("llm.openai.model", "gpt-4o-mini")
	v.SetDefault("llm.openai.api_key", "")
	v.SetDefault("llm.openai.api_key_env", "")
	v.SetDefault("llm.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.openai.input_price_per_1k", 0.01)
	v.SetDefault("llm.openai.output_price_per_1k", 0.03)
	v.SetDefault("llm.anthropic.model", "claude-3-5-sonnet-20241022")
	v.SetDefault("llm.anthropic.api_key", "")
	v.SetDefault("llm.anthropic.api_key_env", "")
	v.SetDefault("llm.anthropic.base_url", "https://api.anthropic.com")
	v.SetDefault("llm.anthropic.input_price_per_1k", 0.003)
	v.SetDefault("llm.anthropic.output_price_per_1k", 0.015)
	v.SetDefault("llm.mock.enabled", false)
	v.SetDefault("llm.mock.delay", 0)
	v.SetDefault("llm.max_tokens", 2000)
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.timeout", 90*time.Second)

	v.SetDefault("jobs.estimated_duration", 5*time.Minute)
	v.SetDefault("jobs.generation_timeout", 2*time.Minute)
	v.SetDefault("jobs.coalesce_inflight", true)
	v.SetDefault("jobs.job_retention", 7*24*time.Hour)
	v.SetDefault("jobs.cache_retention", 30*24*time.Hour)
	v.SetDefault("jobs.default_list_limit", 50)
	v.SetDefault("jobs.max_list_limit", 1000)

	v.SetDefault("uploads.max_size", 10*1024*1024)
	v.SetDefault("uploads.skip_content_validation", false)
	v.SetDefault("uploads.retention", 24*time.Hour)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Validate checks cross-field constraints that defaults cannot guarantee.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database: path is required for sqlite")
		}
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("database: dsn is required for postgres")
		}
	default:
		return fmt.Errorf("database: unsupported driver %q", c.Database.Driver)
	}

	switch c.Storage.Type {
	case "local", "memory", "s3", "r2", "s3compatible":
	default:
		return fmt.Errorf("storage: unsupported type %q", c.Storage.Type)
	}

	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm: max_tokens must be positive")
	}
	if c.Jobs.GenerationTimeout <= 0 {
		return fmt.Errorf("jobs: generation_timeout must be positive")
	}
	if c.Jobs.MaxListLimit < c.Jobs.DefaultListLimit {
		return fmt.Errorf("jobs: max_list_limit must be >= default_list_limit")
	}
	if c.Uploads.MaxSize <= 0 {
		return fmt.Errorf("uploads: max_size must be positive")
	}

	for _, p := range []ProviderConfig{c.LLM.OpenAI, c.LLM.Anthropic} {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}
