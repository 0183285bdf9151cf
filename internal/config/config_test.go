package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func intp(v int) *int { return &v }

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "/api", cfg.Server.BasePath)
	assert.Equal(t, "memory", cfg.Archive.Driver)
	assert.Equal(t, int64(50<<20), cfg.Upload.MaxFileSize)
	assert.Equal(t, 30*time.Second, cfg.Detectors.Timeout)
	assert.Equal(t, DetectorConfig{Kind: "random", Min: intp(60), Max: intp(99)}, cfg.Detectors.Face)
	assert.Equal(t, DetectorConfig{Kind: "random", Min: intp(0), Max: intp(99)}, cfg.Detectors.Audio)
	assert.Equal(t, "mediatrust.analysis.created", cfg.NATS.Subject)
	assert.Equal(t, 256, cfg.Archive.CacheSize)
}

func TestLoad_SQLiteDriver(t *testing.T) {
	t.Setenv("MEDIATRUST_ARCHIVE_DRIVER", "sqlite")
	t.Setenv("MEDIATRUST_ARCHIVE_CACHE_SIZE", "-1")

	cfg, err := Load(writeConfig(t, "server:\n  env: prod\n"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Archive.Driver)
	assert.Equal(t, "data/mediatrust.db", cfg.Database.Path)
	assert.Equal(t, -1, cfg.Archive.CacheSize)
	assert.Zero(t, cfg.Database.Port)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
  basePath: v2/
archive:
  driver: postgres
  retries: 2
  retryBackoff: 50ms
database:
  host: db.local
  name: mediatrust
  user: app
  password: secret
detectors:
  timeout: 5s
  metadata:
    kind: heuristic
  face:
    kind: fixed
    value: 95
`)
	t.Setenv("MEDIATRUST_SERVER_PORT", "9100")
	t.Setenv("MEDIATRUST_DETECTORS_AUDIO_KIND", "fixed")
	t.Setenv("MEDIATRUST_DETECTORS_AUDIO_VALUE", "92")
	t.Setenv("MEDIATRUST_UPLOAD_ALLOWED_TYPES", "video/mp4,video/webm")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "/v2", cfg.Server.BasePath)
	assert.Equal(t, "postgres", cfg.Archive.Driver)
	assert.Equal(t, 2, cfg.Archive.Retries)
	assert.Equal(t, 50*time.Millisecond, cfg.Archive.RetryBackoff)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 5*time.Second, cfg.Detectors.Timeout)
	assert.Equal(t, "heuristic", cfg.Detectors.Metadata.Kind)
	assert.Equal(t, DetectorConfig{Kind: "fixed", Value: 95}, cfg.Detectors.Face)
	assert.Equal(t, DetectorConfig{Kind: "fixed", Value: 92}, cfg.Detectors.Audio)
	assert.Equal(t, []string{"video/mp4", "video/webm"}, cfg.Upload.AllowedTypes)
	assert.Equal(t, "host=db.local port=5432 user=app password=secret dbname=mediatrust sslmode=disable", cfg.PostgresDSN())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown driver", "archive:\n  driver: redis\n"},
		{"db without host", "archive:\n  driver: mysql\n"},
		{"bad detector kind", "detectors:\n  face:\n    kind: magic\n"},
		{"random out of range", "detectors:\n  face:\n    kind: random\n    min: 10\n    max: 120\n"},
		{"fixed out of range", "detectors:\n  audio:\n    kind: fixed\n    value: 101\n"},
		{"llm without key", "detectors:\n  metadata:\n    kind: llm\n"},
		{"minio without creds", "minio:\n  endpoint: localhost:9000\n"},
		{"broken yaml", "server: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_IgnoresUnprefixedEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
  env: staging
archive:
  driver: sqlite
database:
  path: /var/lib/mediatrust/archive.db
  host: db.local
  user: mediatrust
  name: analyses
log:
  level: debug
nats:
  url: nats://bus:4222
`)
	// common host variables must not leak into the config
	t.Setenv("PATH", "/usr/local/bin:/usr/bin")
	t.Setenv("USER", "root")
	t.Setenv("PORT", "3000")
	t.Setenv("HOST", "somebox")
	t.Setenv("NAME", "somebox")
	t.Setenv("ENV", "production")
	t.Setenv("LEVEL", "error")
	t.Setenv("URL", "http://elsewhere")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "staging", cfg.Server.Env)
	assert.Equal(t, "/var/lib/mediatrust/archive.db", cfg.Database.Path)
	assert.Equal(t, "db.local", cfg.Database.Host)
	assert.Equal(t, "mediatrust", cfg.Database.User)
	assert.Equal(t, "analyses", cfg.Database.Name)
	assert.Zero(t, cfg.Database.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "nats://bus:4222", cfg.NATS.URL)
}

func TestLoad_PrefixedEnvKeys(t *testing.T) {
	t.Setenv("MEDIATRUST_DATABASE_SSL_MODE", "require")
	t.Setenv("MEDIATRUST_RATE_LIMIT_REFILL_PER_SECOND", "7")
	t.Setenv("MEDIATRUST_OPENAI_API_KEY", "sk-test")
	t.Setenv("MEDIATRUST_MINIO_USE_SSL", "true")
	t.Setenv("MEDIATRUST_MINIO_ENDPOINT", "s3.local:9000")
	t.Setenv("MEDIATRUST_MINIO_ACCESS_KEY", "ak")
	t.Setenv("MEDIATRUST_MINIO_SECRET_KEY", "sk")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "require", cfg.Database.SSLMode)
	assert.Equal(t, 7, cfg.RateLimit.RefillPerSecond)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	assert.True(t, cfg.Minio.UseSSL)
	assert.Equal(t, "ak", cfg.Minio.AccessKey)
}

func TestLoad_ExplicitZeroRandomRange(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
detectors:
  face:
    kind: random
    min: 0
    max: 0
  audio:
    kind: random
    max: 40
`))
	require.NoError(t, err)

	lo, hi := cfg.Detectors.Face.Range()
	assert.Equal(t, 0, lo)
	assert.Equal(t, 0, hi)

	lo, hi = cfg.Detectors.Audio.Range()
	assert.Equal(t, 0, lo)
	assert.Equal(t, 40, hi)
}

func TestMySQLDSN(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{Host: "h", Port: 3306, User: "u", Password: "p", Name: "n"}}
	assert.Equal(t, "u:p@tcp(h:3306)/n?parseTime=true&charset=utf8mb4&loc=UTC", cfg.MySQLDSN())
}
