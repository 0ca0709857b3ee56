package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Matching   MatchingConfig   `yaml:"matching" mapstructure:"matching"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the catalog and insight repository backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// NotionConfig holds Notion API credentials and the catalog database ID.
type NotionConfig struct {
	Token     string  `yaml:"token" mapstructure:"token"`
	CatalogDB string  `yaml:"catalog_db" mapstructure:"catalog_db"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// SalesforceConfig holds Salesforce JWT auth settings and the signal object.
type SalesforceConfig struct {
	ClientID     string  `yaml:"client_id" mapstructure:"client_id"`
	Username     string  `yaml:"username" mapstructure:"username"`
	KeyPath      string  `yaml:"key_path" mapstructure:"key_path"`
	LoginURL     string  `yaml:"login_url" mapstructure:"login_url"`
	SignalObject string  `yaml:"signal_object" mapstructure:"signal_object"`
	RateLimit    float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// MatchingConfig tunes tokenization and ranking parallelism.
type MatchingConfig struct {
	Workers       int      `yaml:"workers" mapstructure:"workers"`
	MinTermLength int      `yaml:"min_term_length" mapstructure:"min_term_length"`
	Stopwords     []string `yaml:"stopwords" mapstructure:"stopwords"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// CacheConfig configures the Redis ranking cache. An empty address
// disables caching.
type CacheConfig struct {
	RedisAddr     string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB       int    `yaml:"redis_db" mapstructure:"redis_db"`
	TTLSecs       int    `yaml:"ttl_secs" mapstructure:"ttl_secs"`
}

// RetryConfig configures retries against Notion and Salesforce.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ADVISOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Every key gets one so environment variables are seen by
	// Unmarshal even when no config file sets them.
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "advisor.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("notion.token", "")
	v.SetDefault("notion.catalog_db", "")
	v.SetDefault("notion.rate_limit", 3)
	v.SetDefault("salesforce.client_id", "")
	v.SetDefault("salesforce.username", "")
	v.SetDefault("salesforce.key_path", "")
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("salesforce.signal_object", "Client_Signal__c")
	v.SetDefault("salesforce.rate_limit", 5)
	v.SetDefault("matching.workers", 0)
	v.SetDefault("matching.min_term_length", 2)
	v.SetDefault("matching.stopwords", []string{})
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.ttl_secs", 600)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 30000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.25)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validation modes name the features a command needs.
const (
	ModeStore      = "store"
	ModeNotion     = "notion"
	ModeSalesforce = "salesforce"
	ModeServe      = "serve"
)

// Validate checks that the settings the given modes depend on are present.
// Matching and retry bounds are checked for every mode.
func (c *Config) Validate(modes ...string) error {
	var problems []string
	for _, mode := range modes {
		switch mode {
		case ModeStore:
			switch c.Store.Driver {
			case "memory":
			case "sqlite", "postgres":
				if c.Store.DatabaseURL == "" {
					problems = append(problems, "store.database_url is required for driver "+c.Store.Driver)
				}
			default:
				problems = append(problems, "store.driver must be sqlite, postgres or memory, got "+quote(c.Store.Driver))
			}
		case ModeNotion:
			if c.Notion.Token == "" {
				problems = append(problems, "notion.token is required")
			}
			if c.Notion.CatalogDB == "" {
				problems = append(problems, "notion.catalog_db is required")
			}
		case ModeSalesforce:
			if c.Salesforce.ClientID == "" {
				problems = append(problems, "salesforce.client_id is required")
			}
			if c.Salesforce.Username == "" {
				problems = append(problems, "salesforce.username is required")
			}
			if c.Salesforce.KeyPath == "" {
				problems = append(problems, "salesforce.key_path is required")
			}
		case ModeServe:
			if c.Server.Port <= 0 || c.Server.Port > 65535 {
				problems = append(problems, "server.port must be between 1 and 65535")
			}
		default:
			return eris.Errorf("config: unknown mode %q", mode)
		}
	}

	if c.Matching.Workers < 0 {
		problems = append(problems, "matching.workers must be >= 0")
	}
	if c.Matching.MinTermLength < 1 {
		problems = append(problems, "matching.min_term_length must be >= 1")
	}
	if c.Retry.MaxAttempts < 1 {
		problems = append(problems, "retry.max_attempts must be >= 1")
	}
	if c.Retry.JitterFraction < 0 || c.Retry.JitterFraction > 1 {
		problems = append(problems, "retry.jitter_fraction must be between 0 and 1")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func quote(s string) string {
	return `"` + s + `"`
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
