package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bryanwahyu/mediatrust/internal/application"
	appanalyses "github.com/bryanwahyu/mediatrust/internal/application/analyses"
	"github.com/bryanwahyu/mediatrust/internal/config"
	domain "github.com/bryanwahyu/mediatrust/internal/domain/analyses"
	"github.com/bryanwahyu/mediatrust/internal/infra/archive"
	"github.com/bryanwahyu/mediatrust/internal/infra/archive/memory"
	mysqlp "github.com/bryanwahyu/mediatrust/internal/infra/db/mysql"
	postgresp "github.com/bryanwahyu/mediatrust/internal/infra/db/postgres"
	sqlitep "github.com/bryanwahyu/mediatrust/internal/infra/db/sqlite"
	"github.com/bryanwahyu/mediatrust/internal/infra/detectors"
	natsevents "github.com/bryanwahyu/mediatrust/internal/infra/events/nats"
	"github.com/bryanwahyu/mediatrust/internal/infra/httpserver"
	minioStore "github.com/bryanwahyu/mediatrust/internal/infra/storage"
	"github.com/bryanwahyu/mediatrust/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		slog.Error("config load error", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	arc := archive.New(store, application.SystemClock{},
		archive.WithRetries(cfg.Archive.Retries, cfg.Archive.RetryBackoff),
		archive.WithCache(cfg.Archive.CacheSize))
	if err := arc.Prime(ctx); err != nil {
		return fmt.Errorf("prime archive: %w", err)
	}

	set, err := detectors.Build(cfg.Detectors, cfg.OpenAI)
	if err != nil {
		return err
	}

	svc := &appanalyses.Service{
		Detectors:       set,
		Archive:         arc,
		DetectorTimeout: cfg.Detectors.Timeout,
		Rules: domain.MediaRules{
			MaxFileSize:  cfg.Upload.MaxFileSize,
			AllowedTypes: cfg.Upload.AllowedTypes,
		},
		Logger: logger,
	}

	checkers := map[string]middleware.HealthChecker{
		"archive": middleware.PingChecker{Target: arc},
	}

	// init minio (opsional)
	if cfg.Minio.Endpoint != "" {
		media, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			return fmt.Errorf("minio init: %w", err)
		}
		svc.Media = media
		checkers["media"] = middleware.PingChecker{Target: media}
		logger.Info("media store enabled", "endpoint", cfg.Minio.Endpoint, "bucket", cfg.Minio.BucketName)
	}

	// init nats (opsional)
	if cfg.NATS.URL != "" {
		pub, err := natsevents.Connect(cfg.NATS.URL, cfg.NATS.Subject, logger)
		if err != nil {
			return err
		}
		defer pub.Close()
		svc.Notifier = pub
		logger.Info("analysis events enabled", "subject", cfg.NATS.Subject)
	}

	if cfg.Archive.Seed {
		if _, err := svc.Seed(ctx); err != nil {
			return err
		}
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit.Capacity, cfg.RateLimit.RefillPerSecond)
	defer limiter.Stop()

	handler := httpserver.NewRouter(svc, httpserver.Options{
		BasePath:    cfg.Server.BasePath,
		Env:         cfg.Server.Env,
		MaxFileSize: cfg.Upload.MaxFileSize,
		Checkers:    checkers,
		RateLimiter: limiter,
		Logger:      logger,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			"addr", addr,
			"base_path", cfg.Server.BasePath,
			"archive", cfg.Archive.Driver,
			"face", set[domain.RoleFace].Name(),
			"audio", set[domain.RoleAudio].Name(),
			"metadata", set[domain.RoleMetadata].Name(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// graceful shutdown
	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openStore picks the archive backend from config.
func openStore(ctx context.Context, cfg *config.Config) (domain.Store, func(), error) {
	noop := func() {}
	switch cfg.Archive.Driver {
	case "sqlite":
		db, err := sqlitep.Connect(ctx, cfg.Database.Path)
		if err != nil {
			return nil, noop, fmt.Errorf("sqlite connect: %w", err)
		}
		if err := sqlitep.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, noop, fmt.Errorf("sqlite migrate: %w", err)
		}
		return sqlitep.NewAnalysisStore(db), closer(db), nil
	case "mysql":
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, noop, fmt.Errorf("mysql connect: %w", err)
		}
		if err := mysqlp.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, noop, fmt.Errorf("mysql migrate: %w", err)
		}
		return mysqlp.NewAnalysisStore(db), closer(db), nil
	case "postgres":
		db, err := postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, noop, fmt.Errorf("postgres connect: %w", err)
		}
		if err := postgresp.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, noop, fmt.Errorf("postgres migrate: %w", err)
		}
		return postgresp.NewAnalysisStore(db), closer(db), nil
	default:
		return memory.New(), noop, nil
	}
}

func closer(db *sql.DB) func() {
	return func() { _ = db.Close() }
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
