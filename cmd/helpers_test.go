package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/portfolio-advisor/internal/config"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

const catalogFixture = `{"offerings": [
  {"id": "s1", "name": "Offering s1", "keyFeatures": ["data migration complexity"], "benefits": ["data migration complexity"], "practice": "Data"},
  {"id": "s2", "name": "Offering s2", "keyFeatures": ["data"], "benefits": ["data"]},
  {"id": "s3", "name": "Offering s3", "keyFeatures": ["data migration"], "benefits": ["data migration"]},
  {"name": "No ID", "keyFeatures": ["x"], "benefits": ["y"]}
]}`

const insightsFixture = `{"clients": [
  {"clientName": "Acme Manufacturing", "sentiment": 72, "capturedAt": "2026-05-04T09:30:00Z",
   "signals": [{"name": "Data Migration Complexity", "confidence": 90}]},
  {"clientName": "Zenith Health", "sentiment": 31, "signals": []}
]}`

// useTestConfig points the global config at a fresh SQLite file.
func useTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg = &config.Config{
		Store: config.StoreConfig{
			Driver:      "sqlite",
			DatabaseURL: filepath.Join(dir, "advisor.db"),
		},
		Matching: config.MatchingConfig{MinTermLength: 2, Workers: 2},
		Server:   config.ServerConfig{Port: 8080, CORSOrigins: []string{"*"}},
		Retry:    config.RetryConfig{MaxAttempts: 1, JitterFraction: 0},
	}
	return dir
}

func writeFixture(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}
