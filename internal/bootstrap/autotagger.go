package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/north-cloud/autotagger/internal/analysis"
	"github.com/jonesrussell/north-cloud/autotagger/internal/api"
	"github.com/jonesrussell/north-cloud/autotagger/internal/classifier"
	"github.com/jonesrussell/north-cloud/autotagger/internal/config"
	"github.com/jonesrussell/north-cloud/autotagger/internal/diagnostics"
	"github.com/jonesrussell/north-cloud/autotagger/internal/linker"
	"github.com/jonesrussell/north-cloud/autotagger/internal/logger"
	"github.com/jonesrussell/north-cloud/autotagger/internal/normalizer"
	"github.com/jonesrussell/north-cloud/autotagger/internal/processor"
	"github.com/jonesrussell/north-cloud/autotagger/internal/settings"
	"github.com/jonesrussell/north-cloud/autotagger/internal/taxonomy"
	"github.com/jonesrussell/north-cloud/autotagger/internal/telemetry"
)

// App holds every wired component. Build it once per process.
type App struct {
	Config       *config.Config
	Logger       logger.Logger
	Database     *DatabaseComponents
	Redis        *redis.Client
	Diagnostics  *diagnostics.Store
	Telemetry    *telemetry.Provider
	Taxonomies   *taxonomy.Registry
	Settings     *settings.Service
	Analysis     *analysis.Client
	Orchestrator *classifier.Orchestrator
}

// New connects to the stores and wires the pipeline. Redis is optional:
// without it classification still runs and diagnostics are not recorded.
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	db, err := SetupDatabase(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:     cfg,
		Logger:     log,
		Database:   db,
		Telemetry:  telemetry.NewProvider(),
		Taxonomies: taxonomy.NewRegistry(),
	}

	app.Redis, err = diagnostics.NewClient(cfg.Redis)
	if err != nil {
		log.Warn("Diagnostics store unavailable, continuing without it", logger.Error(err))
	} else {
		app.Diagnostics = diagnostics.NewStore(app.Redis, cfg.Redis.DiagnosticsTTL)
	}

	app.Settings = settings.New(db.Settings, app.Taxonomies, log)
	app.Analysis = analysis.NewClient(analysis.Config{
		Endpoint:   cfg.Analysis.Endpoint,
		AuthScheme: analysis.AuthScheme(strings.ToLower(cfg.Analysis.AuthScheme)),
		AuthHeader: cfg.Analysis.AuthHeader,
		Resolver:   credentialChain(cfg.Analysis, app.Settings),
		HTTPClient: &http.Client{},
		Logger:     log,
	})

	deps := classifier.Deps{
		Content:    db.Content,
		Normalizer: normalizer.New(normalizer.Options{IncludeTitle: cfg.Analysis.TitleIncluded()}),
		Analyzer:   app.Analysis,
		Settings:   app.Settings,
		Linker:     linker.New(db.Terms, log, app.Telemetry),
		Telemetry:  app.Telemetry,
		Logger:     log,
		Language:   cfg.Analysis.Language,
		Timeout:    cfg.Analysis.Timeout,
	}
	if app.Diagnostics != nil {
		deps.Recorder = app.Diagnostics
	}
	app.Orchestrator = classifier.NewOrchestrator(deps)

	return app, nil
}

// credentialChain resolves provider credentials from config, then the
// environment, then persisted options.
func credentialChain(cfg config.AnalysisConfig, store analysis.OptionStore) analysis.Resolver {
	return analysis.Chain{
		analysis.StaticResolver{Username: cfg.Username, Password: cfg.Password},
		analysis.EnvResolver{},
		analysis.SettingsResolver{Store: store},
	}
}

// NewBatch creates a batch driver over the orchestrator. Zero fields in
// override fall back to the batch config.
func (a *App) NewBatch(override processor.Options) *processor.Batch {
	opts := processor.Options{
		Concurrency:   a.Config.Batch.Concurrency,
		MaxErrors:     a.Config.Batch.MaxErrors,
		RatePerSecond: a.Config.Batch.RatePerSecond,
		Retry:         processor.DefaultRetryConfig(),
	}
	opts.Retry.MaxAttempts = a.Config.Batch.RetryAttempts
	opts.Retry.InitialDelay = a.Config.Batch.RetryDelay

	if override.Concurrency > 0 {
		opts.Concurrency = override.Concurrency
	}
	if override.MaxErrors > 0 {
		opts.MaxErrors = override.MaxErrors
	}
	if override.RatePerSecond > 0 {
		opts.RatePerSecond = override.RatePerSecond
	}
	return processor.NewBatch(a.Orchestrator, opts, a.Logger, a.Telemetry)
}

// NewServer builds the HTTP server with health checks and metrics.
func (a *App) NewServer() *api.Server {
	svc := a.Config.Service
	serverCfg := api.ServerConfig{
		ServiceName:    svc.Name,
		ServiceVersion: svc.Version,
		Port:           svc.Port,
		Debug:          svc.Debug,
	}

	health := api.HealthOptions{
		ServiceName:    svc.Name,
		ServiceVersion: svc.Version,
		StartTime:      time.Now(),
		Checks: map[string]api.HealthChecker{
			"database": api.DatabaseHealthChecker(a.Database.DB.PingContext),
		},
	}
	if a.Redis != nil {
		health.Checks["redis"] = api.RedisHealthChecker(func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		})
	}

	var diag api.DiagnosticsReader = unavailableDiagnostics{}
	if a.Diagnostics != nil {
		diag = a.Diagnostics
	}

	handler := api.NewHandler(a.Orchestrator, a.NewBatch(processor.Options{}), a.Settings, diag, a.Logger)
	router := api.NewRouter(serverCfg, handler, a.Logger, health, a.Telemetry.Handler())
	return api.NewServer(serverCfg, router, a.Logger)
}

// Close releases connections.
func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if a.Database != nil && a.Database.DB != nil {
		if err := a.Database.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}

// unavailableDiagnostics answers diagnostics reads when Redis is down.
type unavailableDiagnostics struct{}

func (unavailableDiagnostics) Snapshot(context.Context, string) (*diagnostics.Snapshot, error) {
	return nil, errDiagnosticsUnavailable
}

var errDiagnosticsUnavailable = errors.New("diagnostics store unavailable")
