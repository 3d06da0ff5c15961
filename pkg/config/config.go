// Package config loads the tracker configuration from an optional YAML file and TT_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Backends that Config.Backend may name.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
	BackendRedis  = "redis"
)

// Config is the full configuration.
type Config struct {
	Backend  string   `mapstructure:"backend"`
	SQLite   SQLite   `mapstructure:"sqlite"`
	Mongo    Mongo    `mapstructure:"mongo"`
	Redis    Redis    `mapstructure:"redis"`
	Log      Log      `mapstructure:"log"`
	Timeline Timeline `mapstructure:"timeline"`
	User     User     `mapstructure:"user"`
}

// SQLite configures the sqlite backend.
type SQLite struct {
	Path string `mapstructure:"path"`
}

// Mongo configures the mongo backend.
type Mongo struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

// Redis configures the redis backend.
type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Log configures the log file.
type Log struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// Timeline configures the timeline windows.
type Timeline struct {
	Months        int `mapstructure:"months"`
	PreviewMonths int `mapstructure:"preview_months"`
}

// User names the account the terminal client signs in as.
type User struct {
	Email string `mapstructure:"email"`
}

// Dir is the directory of the default config file and data files.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".timeline-tracker"
	}

	return filepath.Join(home, ".timeline-tracker")
}

// DefaultPath is the config file read when none is given.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

func setDefaults(v *viper.Viper) {
	dir := Dir()

	v.SetDefault("backend", BackendSQLite)
	v.SetDefault("sqlite.path", filepath.Join(dir, "tracker.sqlite"))
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "timeline_tracker")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("log.file", filepath.Join(dir, "debug.log"))
	v.SetDefault("log.level", "info")
	v.SetDefault("timeline.months", 6)
	v.SetDefault("timeline.preview_months", 3)
	v.SetDefault("user.email", "me@localhost")
}

// Load reads path, or the default path when path is empty. A missing default file is
// not an error; a missing explicit file is. Environment variables such as
// TT_BACKEND and TT_SQLITE_PATH override the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("error reading config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}

	return cfg, nil
}

// Validate checks the values Load cannot.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.SQLite.Path == "" {
			return errors.New("sqlite.path is required for the sqlite backend")
		}
	case BackendMongo:
		if c.Mongo.URI == "" || c.Mongo.Database == "" {
			return errors.New("mongo.uri and mongo.database are required for the mongo backend")
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return errors.New("redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log.level %q: %w", c.Log.Level, err)
	}

	if c.Timeline.Months < 1 || c.Timeline.PreviewMonths < 1 {
		return errors.New("timeline.months and timeline.preview_months must be at least 1")
	}

	if strings.TrimSpace(c.User.Email) == "" {
		return errors.New("user.email is required")
	}

	return nil
}
