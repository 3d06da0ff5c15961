package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/matt-steen/timeline-tracker/pkg/config"
	"github.com/matt-steen/timeline-tracker/pkg/connectivity"
	"github.com/matt-steen/timeline-tracker/pkg/notify"
	"github.com/matt-steen/timeline-tracker/pkg/remote"
	"github.com/matt-steen/timeline-tracker/pkg/remote/memory"
	"github.com/matt-steen/timeline-tracker/pkg/remote/mongo"
	"github.com/matt-steen/timeline-tracker/pkg/remote/redis"
	"github.com/matt-steen/timeline-tracker/pkg/remote/sqlite"
	"github.com/matt-steen/timeline-tracker/pkg/session"
	"github.com/matt-steen/timeline-tracker/pkg/syncstore"
	"github.com/matt-steen/timeline-tracker/pkg/tracker"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	filePerms  = 0o666
	dirPerms   = 0o755
	queueSize  = 16
	loadWait   = 10 * time.Second
	retryDelay = 2 * time.Second
)

// app is everything one command runs against.
type app struct {
	cfg     *config.Config
	logFile *os.File
	backend remote.Backend
	monitor *connectivity.Monitor
	toasts  *notify.Queue
	session *session.Session
	tracker *tracker.Tracker
	stops   []func()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	if backendName != "" {
		cfg.Backend = backendName
	}

	if verbose {
		cfg.Log.Level = zerolog.DebugLevel.String()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("error in config: %w", err)
	}

	return cfg, nil
}

// setupLogging sends the global logger to the log file; the terminal belongs to the UI.
func setupLogging(cfg *config.Config) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Log.File), dirPerms); err != nil {
		return nil, fmt.Errorf("error creating log directory: %w", err)
	}

	logFile, err := os.OpenFile(cfg.Log.File, os.O_RDWR|os.O_CREATE|os.O_APPEND, fs.FileMode(filePerms))
	if err != nil {
		return nil, fmt.Errorf("error opening log file: %w", err)
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)

	log.Logger = log.With().Caller().Logger().Output(zerolog.ConsoleWriter{
		Out: logFile, TimeFormat: "2006-01-02_15:04:05",
	})

	return logFile, nil
}

func openBackend(ctx context.Context, cfg *config.Config, monitor *connectivity.Monitor) (remote.Backend, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return memory.New(), nil
	case config.BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), dirPerms); err != nil {
			return nil, fmt.Errorf("error creating data directory: %w", err)
		}

		db, err := sqlite.NewDatabase(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}

		return db, nil
	case config.BackendMongo:
		backend, err := mongo.Connect(ctx, mongo.Config{
			URI:            cfg.Mongo.URI,
			Database:       cfg.Mongo.Database,
			OnConnectivity: monitor.Handle,
			RetryDelay:     retryDelay,
		})
		if err != nil {
			return nil, err
		}

		return backend, nil
	case config.BackendRedis:
		backend, err := redis.Connect(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}

		return backend, nil
	}

	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// openApp loads the config, opens the backend, signs the configured user in and
// attaches the tracker to them.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logFile, err := setupLogging(cfg)
	if err != nil {
		return nil, err
	}

	log.Info().Str("backend", cfg.Backend).Msg("starting application...")

	a := &app{
		cfg:     cfg,
		logFile: logFile,
		monitor: connectivity.NewMonitor(true),
		toasts:  notify.NewQueue(queueSize),
	}

	a.backend, err = openBackend(ctx, cfg, a.monitor)
	if err != nil {
		a.Close()

		return nil, fmt.Errorf("error opening %s backend: %w", cfg.Backend, err)
	}

	provider := session.NewLocal()
	provider.Adopt(cfg.User.Email)

	a.session = session.New(provider, a.monitor, a.toasts)
	a.tracker = tracker.New(a.backend, a.monitor, a.toasts)

	a.stops = append(a.stops,
		a.tracker.Follow(ctx, a.session),
		a.tracker.WatchConnectivity(a.monitor),
	)

	return a, nil
}

// Close releases everything openApp acquired, in reverse order.
func (a *app) Close() {
	for i := len(a.stops) - 1; i >= 0; i-- {
		a.stops[i]()
	}

	if a.tracker != nil {
		a.tracker.Close()
	}

	if a.session != nil {
		a.session.Close()
	}

	if a.backend != nil {
		if err := a.backend.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing backend")
		}
	}

	log.Info().Msg("terminating application")

	if a.logFile != nil {
		a.logFile.Close()
	}
}

// waitLoaded blocks until s has received its first push.
func waitLoaded[T syncstore.Entity](ctx context.Context, s *syncstore.Store[T]) error {
	ctx, cancel := context.WithTimeout(ctx, loadWait)
	defer cancel()

	changed := make(chan struct{}, 1)
	stop := s.OnChange(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer stop()

	for s.Loading() {
		select {
		case <-ctx.Done():
			return fmt.Errorf("error loading %s: %w", s.Path(), ctx.Err())
		case <-changed:
		}
	}

	if err := s.Err(); err != nil {
		log.Warn().Err(err).Str("collection", s.Path()).Msg("store loaded with errors")
	}

	return nil
}

// drainToasts returns the notifications queued so far without waiting for more.
func (a *app) drainToasts() []notify.Notification {
	var toasts []notify.Notification

	for {
		select {
		case n := <-a.toasts.C():
			toasts = append(toasts, n)
		default:
			return toasts
		}
	}
}
