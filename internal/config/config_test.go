package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "advisor.db", cfg.Store.DatabaseURL)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 0, cfg.Matching.Workers)
	assert.Equal(t, 2, cfg.Matching.MinTermLength)
	assert.Equal(t, "https://login.salesforce.com", cfg.Salesforce.LoginURL)
	assert.Equal(t, "Client_Signal__c", cfg.Salesforce.SignalObject)
	assert.InDelta(t, 3.0, cfg.Notion.RateLimit, 0.001)
	assert.Equal(t, "", cfg.Cache.RedisAddr)
	assert.Equal(t, 600, cfg.Cache.TTLSecs)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.InDelta(t, 0.25, cfg.Retry.JitterFraction, 0.001)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/advisor
log:
  level: debug
  format: console
server:
  port: 9090
  cors_origins: ["https://portal.example.com"]
matching:
  workers: 4
  stopwords: [solution, services]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/advisor", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://portal.example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 4, cfg.Matching.Workers)
	assert.Equal(t, []string{"solution", "services"}, cfg.Matching.Stopwords)
	// Defaults still apply for unset values
	assert.Equal(t, 2, cfg.Matching.MinTermLength)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("ADVISOR_STORE_DRIVER", "memory")
	t.Setenv("ADVISOR_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("ADVISOR_SERVER_PORT", "3000")
	t.Setenv("ADVISOR_NOTION_TOKEN", "ntn_secret")
	t.Setenv("ADVISOR_CACHE_REDIS_ADDR", "localhost:6379")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "ntn_secret", cfg.Notion.Token)
	assert.Equal(t, "localhost:6379", cfg.Cache.RedisAddr)
}

func TestLoadInvalidFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "advisor.db"
	cfg.Server.Port = 8080
	cfg.Matching.MinTermLength = 2
	cfg.Retry.MaxAttempts = 3
	cfg.Retry.JitterFraction = 0.25
	return cfg
}

func TestValidateStore(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate(ModeStore))

	cfg.Store.DatabaseURL = ""
	err := cfg.Validate(ModeStore)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required for driver sqlite")

	cfg.Store.Driver = "memory"
	assert.NoError(t, cfg.Validate(ModeStore))

	cfg.Store.Driver = "mysql"
	err = cfg.Validate(ModeStore)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `got "mysql"`)
}

func TestValidateNotion_MissingFields(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate(ModeNotion)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notion.token is required")
	assert.Contains(t, err.Error(), "notion.catalog_db is required")

	cfg.Notion.Token = "ntn_token"
	cfg.Notion.CatalogDB = "catalog-db-id"
	assert.NoError(t, cfg.Validate(ModeNotion))
}

func TestValidateSalesforce(t *testing.T) {
	cfg := validDefaults()
	cfg.Salesforce.ClientID = "client"
	err := cfg.Validate(ModeStore, ModeSalesforce)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "salesforce.username is required")
	assert.Contains(t, err.Error(), "salesforce.key_path is required")
	assert.NotContains(t, err.Error(), "client_id")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate(ModeServe)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be between 1 and 65535")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateBounds(t *testing.T) {
	cfg := validDefaults()
	cfg.Matching.Workers = -1
	cfg.Matching.MinTermLength = 0
	cfg.Retry.MaxAttempts = 0
	cfg.Retry.JitterFraction = 1.5

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "matching.workers must be >= 0")
	assert.Contains(t, err.Error(), "matching.min_term_length must be >= 1")
	assert.Contains(t, err.Error(), "retry.max_attempts must be >= 1")
	assert.Contains(t, err.Error(), "retry.jitter_fraction must be between 0 and 1")
}
