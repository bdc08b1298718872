package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "MOLIYA"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendGCS    = "gcs"
)

// Config holds every runtime setting. Values come from the environment,
// optionally seeded from a .env file.
type Config struct {
	App      AppConfig
	Store    StoreConfig
	Redis    RedisConfig
	GCS      GCSConfig
	Gemini   GeminiConfig
	Advice   AdviceConfig
	BigQuery BigQueryConfig
	Notion   NotionConfig
}

type AppConfig struct {
	Env       string `envconfig:"MOLIYA_APP_ENV" default:"dev"`
	Port      string `envconfig:"MOLIYA_APP_PORT" default:"8080"`
	LogLevel  string `envconfig:"MOLIYA_LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"MOLIYA_LOG_FORMAT"`
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// Format returns LogFormat, defaulting to json in prod and console elsewhere.
func (a AppConfig) Format() string {
	if a.LogFormat != "" {
		return strings.ToLower(a.LogFormat)
	}
	if a.IsProd() {
		return "json"
	}
	return "console"
}

type StoreConfig struct {
	Backend string `envconfig:"MOLIYA_STORE_BACKEND" default:"file"`
	Dir     string `envconfig:"MOLIYA_STORE_DIR" default:"./data"`
}

type RedisConfig struct {
	URL      string `envconfig:"MOLIYA_REDIS_URL"`
	Address  string `envconfig:"MOLIYA_REDIS_ADDR" default:"localhost:6379"`
	Password string `envconfig:"MOLIYA_REDIS_PASSWORD"`
	DB       int    `envconfig:"MOLIYA_REDIS_DB" default:"0"`
	Prefix   string `envconfig:"MOLIYA_REDIS_PREFIX" default:"moliya"`
}

type GCSConfig struct {
	Bucket string `envconfig:"MOLIYA_GCS_BUCKET"`
	Prefix string `envconfig:"MOLIYA_GCS_PREFIX" default:"moliya"`
}

type GeminiConfig struct {
	APIKey  string        `envconfig:"MOLIYA_GEMINI_API_KEY"`
	Model   string        `envconfig:"MOLIYA_GEMINI_MODEL" default:"gemini-2.5-flash"`
	Timeout time.Duration `envconfig:"MOLIYA_AI_TIMEOUT" default:"20s"`
}

type AdviceConfig struct {
	Window       int           `envconfig:"MOLIYA_ADVICE_WINDOW" default:"5"`
	Workers      int           `envconfig:"MOLIYA_ADVICE_WORKERS" default:"1"`
	Buffer       int           `envconfig:"MOLIYA_ADVICE_BUFFER" default:"16"`
	Retries      int           `envconfig:"MOLIYA_ADVICE_RETRIES" default:"2"`
	RetryBackoff time.Duration `envconfig:"MOLIYA_ADVICE_RETRY_BACKOFF" default:"1s"`
}

type BigQueryConfig struct {
	ProjectID string `envconfig:"MOLIYA_BQ_PROJECT"`
	Dataset   string `envconfig:"MOLIYA_BQ_DATASET" default:"moliya"`
	Table     string `envconfig:"MOLIYA_BQ_TABLE" default:"transactions"`
}

type NotionConfig struct {
	Token      string `envconfig:"MOLIYA_NOTION_TOKEN"`
	DatabaseID string `envconfig:"MOLIYA_NOTION_DB_ID"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.App.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port '%s': must be a number", c.App.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch strings.ToLower(c.App.LogFormat) {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("invalid log format '%s': must be console or json", c.App.LogFormat))
	}

	validBackends := []string{BackendFile, BackendMemory, BackendRedis, BackendGCS}
	switch c.Store.Backend {
	case BackendFile:
		if strings.TrimSpace(c.Store.Dir) == "" {
			problems = append(problems, "store directory cannot be empty when using file backend")
		}
	case BackendMemory:
	case BackendRedis:
		if c.Redis.URL != "" {
			if u, err := url.Parse(c.Redis.URL); err != nil {
				problems = append(problems, fmt.Sprintf("invalid Redis URL '%s': %v", c.Redis.URL, err))
			} else if u.Scheme != "redis" && u.Scheme != "rediss" {
				problems = append(problems, fmt.Sprintf("invalid Redis URL scheme '%s': must be 'redis' or 'rediss'", u.Scheme))
			}
		} else if c.Redis.Address == "" {
			problems = append(problems, "Redis URL or address is required when using redis backend")
		}
	case BackendGCS:
		if c.GCS.Bucket == "" {
			problems = append(problems, "GCS bucket is required when using gcs backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("invalid store backend '%s': must be one of %v", c.Store.Backend, validBackends))
	}

	if c.Gemini.Timeout <= 0 {
		problems = append(problems, "AI timeout must be positive")
	}
	if c.Advice.Window < 1 {
		problems = append(problems, fmt.Sprintf("invalid advice window %d: must be at least 1", c.Advice.Window))
	}
	if c.Advice.Workers < 1 {
		problems = append(problems, fmt.Sprintf("invalid advice workers %d: must be at least 1", c.Advice.Workers))
	}
	if c.Advice.Buffer < 0 {
		problems = append(problems, fmt.Sprintf("invalid advice buffer %d: must not be negative", c.Advice.Buffer))
	}
	if c.Advice.Retries < 0 {
		problems = append(problems, fmt.Sprintf("invalid advice retries %d: must not be negative", c.Advice.Retries))
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

// AIEnabled reports whether a Gemini key is configured. Without one the
// resolver and advisor run in fallback-only mode.
func (c *Config) AIEnabled() bool {
	return strings.TrimSpace(c.Gemini.APIKey) != ""
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return ":" + c.App.Port
}
