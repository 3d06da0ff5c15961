package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/matt-steen/timeline-tracker/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.Nil(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	path := writeConfig(t, `
backend: redis
redis:
  addr: cache:6380
  db: 2
log:
  level: debug
timeline:
  months: 12
user:
  email: alice@example.com
`)

	cfg, err := config.Load(path)
	require.Nil(t, err)

	assert.Equal(config.BackendRedis, cfg.Backend)
	assert.Equal("cache:6380", cfg.Redis.Addr)
	assert.Equal(2, cfg.Redis.DB)
	assert.Equal("debug", cfg.Log.Level)
	assert.Equal(12, cfg.Timeline.Months)
	assert.Equal(3, cfg.Timeline.PreviewMonths)
	assert.Equal("alice@example.com", cfg.User.Email)
	assert.Equal("timeline_tracker", cfg.Mongo.Database)
	assert.Nil(cfg.Validate())
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "error reading config")
}

func TestLoadBadYAML(t *testing.T) {
	t.Parallel()

	_, err := config.Load(writeConfig(t, "backend: [unclosed"))
	assert.NotNil(t, err)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("TT_BACKEND", "memory")
	t.Setenv("TT_TIMELINE_PREVIEW_MONTHS", "4")

	assert := assert.New(t)

	cfg, err := config.Load(writeConfig(t, "backend: sqlite\n"))
	require.Nil(t, err)

	assert.Equal(config.BackendMemory, cfg.Backend)
	assert.Equal(4, cfg.Timeline.PreviewMonths)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() *config.Config {
		return &config.Config{
			Backend:  config.BackendSQLite,
			SQLite:   config.SQLite{Path: "tracker.sqlite"},
			Log:      config.Log{Level: "info"},
			Timeline: config.Timeline{Months: 6, PreviewMonths: 3},
			User:     config.User{Email: "me@localhost"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		message string
	}{
		{"valid", func(*config.Config) {}, ""},
		{"unknown backend", func(c *config.Config) { c.Backend = "etcd" }, `unknown backend "etcd"`},
		{"sqlite without path", func(c *config.Config) { c.SQLite.Path = "" }, "sqlite.path is required"},
		{"mongo without database", func(c *config.Config) {
			c.Backend = config.BackendMongo
			c.Mongo.URI = "mongodb://db"
		}, "mongo.uri and mongo.database are required"},
		{"redis without addr", func(c *config.Config) { c.Backend = config.BackendRedis }, "redis.addr is required"},
		{"bad level", func(c *config.Config) { c.Log.Level = "loud" }, "invalid log.level"},
		{"zero months", func(c *config.Config) { c.Timeline.Months = 0 }, "must be at least 1"},
		{"no user", func(c *config.Config) { c.User.Email = " " }, "user.email is required"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid()
			test.mutate(cfg)

			err := cfg.Validate()
			if test.message == "" {
				assert.Nil(t, err)

				return
			}

			assert.ErrorContains(t, err, test.message)
		})
	}
}
