package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	sessionhandler "github.com/2gPigeon/jig-intern-public/internal/domain/auth/handler"
	"github.com/2gPigeon/jig-intern-public/internal/domain/geocode"
	importhandler "github.com/2gPigeon/jig-intern-public/internal/domain/import/handler"
	"github.com/2gPigeon/jig-intern-public/internal/domain/import/normalizer"
	importrepo "github.com/2gPigeon/jig-intern-public/internal/domain/import/repository"
	importservice "github.com/2gPigeon/jig-intern-public/internal/domain/import/service"
	"github.com/2gPigeon/jig-intern-public/internal/domain/pins"
	pinshandler "github.com/2gPigeon/jig-intern-public/internal/domain/pins/handler"
	"github.com/2gPigeon/jig-intern-public/internal/domain/unresolved"
	unresolvedhandler "github.com/2gPigeon/jig-intern-public/internal/domain/unresolved/handler"
	"github.com/2gPigeon/jig-intern-public/pkg/config"
	"github.com/2gPigeon/jig-intern-public/pkg/cron"
	"github.com/2gPigeon/jig-intern-public/pkg/db"
	"github.com/2gPigeon/jig-intern-public/pkg/interceptors"
	"github.com/2gPigeon/jig-intern-public/pkg/kv"
	"github.com/2gPigeon/jig-intern-public/pkg/metrics"
	"github.com/2gPigeon/jig-intern-public/pkg/storage"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB
	Store  kv.Store
	Logger *slog.Logger

	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	// Repositories
	ImportRepo importrepo.ImportRepository

	// Services
	Auth              *interceptors.Authenticator
	FileStorage       storage.Storage
	Resolver          *geocode.Resolver
	ImportService     *importservice.ImportService
	ImportQueue       *importservice.Queue
	UnresolvedService *unresolved.Service
	PinsService       *pins.Service
	Scheduler         *cron.Scheduler

	// Handlers
	SessionHandler    *sessionhandler.SessionHandler
	ImportHandler     *importhandler.ImportHandler
	UnresolvedHandler *unresolvedhandler.UnresolvedHandler
	PinsHandler       *pinshandler.PinsHandler
}

// InitDependencies initializes all application dependencies
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initStore(); err != nil {
		deps.Cleanup(ctx)
		return nil, fmt.Errorf("failed to init store: %w", err)
	}

	if err := deps.initRepositories(); err != nil {
		deps.Cleanup(ctx)
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}

	if err := deps.initServices(ctx); err != nil {
		deps.Cleanup(ctx)
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	if err := deps.initHandlers(); err != nil {
		deps.Cleanup(ctx)
		return nil, fmt.Errorf("failed to init handlers: %w", err)
	}

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initStore opens the configured key-value backend. The postgres backend
// also runs migrations.
func (d *Dependencies) initStore() error {
	switch d.Config.Store.Backend {
	case "postgres":
		database, err := db.New(db.Config{
			DSN:             d.Config.Database.DSN(),
			MaxConns:        int32(d.Config.Database.MaxConns),
			MinConns:        1,
			MaxConnLifetime: 5 * time.Minute,
			MaxConnIdleTime: 10 * time.Minute,
		}, d.Logger)
		if err != nil {
			return err
		}
		d.DB = database

		if err := d.DB.RunMigrations(); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		d.Store = kv.NewPostgresStore(d.DB.Pool)
		d.Logger.Info("database connected and migrations completed successfully")
	default:
		path := d.Config.Store.BoltPath
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
		store, err := kv.OpenBolt(path)
		if err != nil {
			return err
		}
		d.Store = store
		d.Logger.Info("bolt store opened", slog.String("path", path))
	}
	return nil
}

// initRepositories initializes all repository layer dependencies
func (d *Dependencies) initRepositories() error {
	d.ImportRepo = importrepo.NewKVImportRepository(d.Store)

	d.Logger.Info("repositories initialized")
	return nil
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices(ctx context.Context) error {
	d.Registry = prometheus.NewRegistry()
	d.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	d.Metrics = metrics.New(d.Registry)

	auth, err := interceptors.NewAuthenticator(d.Config.Auth.JWTSecret, d.Config.Auth.SessionSecret, d.Logger)
	if err != nil {
		return err
	}
	d.Auth = auth

	fileStorage, err := storage.New(ctx, &storage.Config{
		Type:      storage.StorageType(d.Config.Storage.Type),
		LocalPath: d.Config.Storage.LocalPath,
		GCSBucket: d.Config.Storage.GCSBucket,
	})
	if err != nil {
		return fmt.Errorf("failed to init file storage: %w", err)
	}
	d.FileStorage = fileStorage

	// Yahoo first for Japan, Nominatim as the generic fallback.
	var providers []geocode.Provider
	yahoo := geocode.NewYahooProvider(d.Config.Geocode.YahooAppID, d.Config.Geocode.YahooBaseURL)
	if yahoo.Enabled() && d.Config.Geocode.Country == "jp" {
		providers = append(providers, yahoo)
	}
	providers = append(providers, geocode.NewNominatimProvider(
		d.Config.Geocode.NominatimBaseURL,
		d.Config.Geocode.NominatimUserAgent,
		d.Config.Geocode.Country,
	))
	d.Resolver = geocode.NewResolver(d.ImportRepo, d.Config.Geocode.Country, d.Logger, providers...)
	d.Resolver.WithMetrics(d.Metrics)

	loc, err := time.LoadLocation(d.Config.Import.Timezone)
	if err != nil {
		d.Logger.Warn("unknown import timezone, using default",
			slog.String("timezone", d.Config.Import.Timezone),
			slog.Any("error", err),
		)
		loc = normalizer.MustLoadLocation(normalizer.DefaultLocation)
	}

	d.ImportService = importservice.NewImportService(d.ImportRepo, d.Resolver, d.FileStorage, d.Logger, importservice.Options{
		ProgressEvery: d.Config.Import.ProgressEvery,
		RowDelay:      d.Config.Import.RowDelay,
		Location:      loc,
	}).WithMetrics(d.Metrics)

	d.ImportQueue = importservice.NewQueue(d.ImportService.Process, d.Logger,
		importservice.WithWorkers(d.Config.Import.Workers),
		importservice.WithQueueSize(d.Config.Import.QueueSize),
	)
	d.ImportService.WithQueue(d.ImportQueue)

	d.UnresolvedService = unresolved.NewService(d.ImportRepo, d.Resolver, d.Logger)
	d.PinsService = pins.NewService(d.ImportRepo, loc, d.Logger)

	d.Scheduler = cron.NewScheduler(d.ImportRepo, d.ImportQueue, d.Config.Import.StaleAfter, d.Logger).
		WithMetrics(d.Metrics).
		WithUploadRetention(d.FileStorage, d.Config.Import.UploadRetention)

	d.Logger.Info("services initialized",
		slog.Int("geocode_providers", len(providers)),
		slog.String("store", d.Config.Store.Backend),
		slog.String("storage", d.Config.Storage.Type),
	)
	return nil
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() error {
	d.SessionHandler = sessionhandler.NewSessionHandler(d.Auth, d.Logger)
	d.ImportHandler = importhandler.NewImportHandler(d.ImportService, d.Logger).
		WithMaxUploadBytes(d.Config.Import.MaxUploadBytes)
	d.PinsHandler = pinshandler.NewPinsHandler(d.PinsService, d.Logger)

	unresolvedHandler, err := unresolvedhandler.NewUnresolvedHandler(d.UnresolvedService, d.Logger)
	if err != nil {
		return err
	}
	d.UnresolvedHandler = unresolvedHandler

	d.Logger.Info("handlers initialized")
	return nil
}

// Cleanup drains the import queue and closes all resources
func (d *Dependencies) Cleanup(ctx context.Context) {
	if d.ImportQueue != nil {
		d.ImportQueue.Shutdown(ctx)
	}
	if c, ok := d.FileStorage.(io.Closer); ok {
		if err := c.Close(); err != nil {
			d.Logger.Warn("failed to close file storage", slog.Any("error", err))
		}
	}
	if d.Store != nil {
		if err := d.Store.Close(); err != nil {
			d.Logger.Warn("failed to close store", slog.Any("error", err))
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
