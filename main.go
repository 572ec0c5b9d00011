package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"groupfolderMetadata/internal/cache"
	"groupfolderMetadata/internal/handlers"
	"groupfolderMetadata/internal/host"
	"groupfolderMetadata/internal/jobs"
	"groupfolderMetadata/internal/metrics"
	"groupfolderMetadata/internal/services"
	"groupfolderMetadata/internal/utils"
)

type App struct {
	Config       *Config
	Logger       *Logger
	DB           *sql.DB
	Cache        cache.Cache
	Services     *services.Services
	SessionStore *sessions.CookieStore
	OAuthConfig  *oauth2.Config
	Host         *host.Client
	Registry     *prometheus.Registry
	Metrics      *metrics.Metrics
	Scheduler    *jobs.Scheduler
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "groupfolder-metadata",
		Short:         "Metadata fields and values for groupfolders and files",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runServe,
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API and the background jobs",
			Args:  cobra.NoArgs,
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update the database schema",
			Args:  cobra.NoArgs,
			RunE:  runMigrate,
		},
		&cobra.Command{
			Use:   "run-job <name>",
			Short: "Run one background job once and exit",
			Long: "Run one background job once and exit. Jobs: " + strings.Join([]string{
				jobs.SearchIndexJobName, jobs.CleanupJobName, jobs.LicenseUsageJobName, jobs.GroupfolderSyncJobName,
			}, ", "),
			Args: cobra.ExactArgs(1),
			RunE: runJob,
		},
		&cobra.Command{
			Use:   "import-fields <file.yaml>",
			Short: "Create or update field definitions from a YAML file",
			Args:  cobra.ExactArgs(1),
			RunE:  runImportFields,
		},
	)
	return root
}

func runServe(cmd *cobra.Command, args []string) error {
	config, err := LoadConfig()
	if err != nil {
		return err
	}
	if err := config.RequireSecrets(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, config)
	if err != nil {
		return err
	}
	defer app.Close()

	limiter := NewRateLimiter(config.RateLimitPerMinute, config.RateLimitPerMinute)
	limiter.StartCleanupRoutine(ctx, 5*time.Minute)
	app.Scheduler.Start(ctx)

	server := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           app.Handler(limiter),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		app.Logger.WithFields(map[string]interface{}{
			"port":        config.Port,
			"environment": config.Environment,
			"oauth":       config.OAuthEnabled(),
			"cache":       config.CacheBackend,
		}).Info("Server starting")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		app.Logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	config, err := LoadConfig()
	if err != nil {
		return err
	}
	InitializeLogger(config)

	db, err := services.OpenDatabase(config.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := services.Migrate(cmd.Context(), db); err != nil {
		return err
	}
	AppLogger.WithField("database", config.DatabasePath).Info("Database schema is up to date")
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	config, err := LoadConfig()
	if err != nil {
		return err
	}
	app, err := newApp(cmd.Context(), config)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Scheduler.RunOnce(cmd.Context(), args[0]); err != nil {
		if errors.Is(err, jobs.ErrUnknownJob) {
			return fmt.Errorf("%w (available: %s)", err, strings.Join(app.Scheduler.Names(), ", "))
		}
		return err
	}
	return nil
}

func runImportFields(cmd *cobra.Command, args []string) error {
	config, err := LoadConfig()
	if err != nil {
		return err
	}
	doc, err := LoadFieldImport(args[0])
	if err != nil {
		return err
	}
	app, err := newApp(cmd.Context(), config)
	if err != nil {
		return err
	}
	defer app.Close()

	result, err := ImportFields(cmd.Context(), app.Services, doc)
	if err != nil {
		return err
	}
	app.Logger.WithFields(map[string]interface{}{
		"file":         args[0],
		"created":      result.Created,
		"updated":      result.Updated,
		"groupfolders": result.Groupfolders,
	}).Info("Fields imported")
	return nil
}

// newApp wires every dependency. The schema is migrated before anything else touches the database.
func newApp(ctx context.Context, config *Config) (*App, error) {
	InitializeLogger(config)
	app := &App{Config: config, Logger: AppLogger}

	db, err := services.OpenDatabase(config.DatabasePath)
	if err != nil {
		return nil, err
	}
	app.DB = db
	if err := services.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	cacheConfig := cache.Config{DefaultTTL: config.CacheTTL, Prefix: cache.DefaultConfig().Prefix}
	if config.CacheBackend == "redis" {
		app.Cache, err = cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     config.RedisAddr,
			Password: config.RedisPassword,
			DB:       config.RedisDB,
			Config:   cacheConfig,
		})
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", config.RedisAddr, err)
		}
	} else {
		app.Cache = cache.NewMemoryCache(cacheConfig)
	}

	app.Services = services.New(db, services.NewSchemaCache(app.Cache, config.CacheTTL, app.Logger.Zap("cache")), app.Logger.Zap("services"), services.Options{
		DeletePolicy:  config.FieldDeletePolicy,
		AuthSecret:    config.HookSecret,
		SessionMaxAge: config.SessionMaxAge,
	})

	app.Registry = prometheus.NewRegistry()
	app.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app.Metrics = metrics.New(app.Registry)

	app.SessionStore = sessions.NewCookieStore(config.SessionSecret)
	app.SessionStore.MaxAge(config.SessionMaxAge)
	app.SessionStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   config.SessionMaxAge,
		HttpOnly: true,
		Secure:   config.IsProduction(),
		SameSite: http.SameSiteLaxMode, // Lax to allow OAuth redirects
	}

	if config.HostURL != "" {
		app.Host = host.NewClient(config.HostURL, config.HostAppUser, config.HostAppPassword, nil)
	}
	if config.OAuthEnabled() {
		app.OAuthConfig = &oauth2.Config{
			ClientID:     config.HostOAuthClientID,
			ClientSecret: config.HostOAuthClientSecret,
			RedirectURL:  config.RedirectURL,
			Endpoint:     host.OAuthEndpoint(config.HostURL),
		}
	}

	app.Scheduler = app.buildScheduler(ctx)
	return app, nil
}

func (app *App) buildScheduler(ctx context.Context) *jobs.Scheduler {
	cfg := app.Config
	logger := app.Logger.Zap("jobs")
	scheduler := jobs.NewScheduler(logger, app.Metrics)

	sinks := []jobs.UsageSink{jobs.LogSink{Logger: logger}}
	if cfg.LicenseSheetID != "" {
		var opts []option.ClientOption
		if cfg.GoogleCredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.GoogleCredentialsFile))
		}
		sink, err := jobs.NewSheetsSink(ctx, cfg.LicenseSheetID, opts...)
		if err != nil {
			app.Logger.WithError(err).Warn("License usage sheet disabled")
		} else {
			sinks = append(sinks, sink)
		}
	}

	register := func(job jobs.Job, interval time.Duration) {
		if err := scheduler.Register(job, interval); err != nil {
			app.Logger.WithError(err).Error("Failed to register job")
		}
	}
	register(&jobs.SearchIndexJob{Search: app.Services.Search, Logger: logger}, cfg.SearchIndexInterval)
	register(&jobs.CleanupJob{Events: app.Services.Events, Retention: cfg.DeletedRetention, Logger: logger}, cfg.CleanupInterval)
	register(&jobs.LicenseUsageJob{Usage: app.Services.Usage, Sinks: sinks, Logger: logger}, cfg.LicenseInterval)
	if cfg.HostSyncEnabled() && app.Host != nil {
		register(&jobs.GroupfolderSyncJob{Host: app.Host, Groupfolders: app.Services.Groupfolders, Logger: logger}, cfg.GroupfolderSyncInterval)
	}
	return scheduler
}

// Handler builds the complete HTTP handler. limiter may be nil to disable rate limiting.
func (app *App) Handler(limiter *RateLimiter) http.Handler {
	r := mux.NewRouter()

	r.Use(app.RecoveryMiddleware)
	r.Use(app.RequestIDMiddleware)
	r.Use(app.LoggingMiddleware)
	r.Use(app.MetricsMiddleware)
	if limiter != nil {
		r.Use(app.RateLimitMiddleware(limiter))
	}

	r.HandleFunc("/healthz", app.handleHealth).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{})).Methods("GET")

	auth := handlers.NewAuthHandlers(app.SessionStore, app.OAuthConfig, app.Host, app.Config.SessionMaxAge, app.Config.IsProduction(), app.Logger.Zap("auth"))
	if app.OAuthConfig != nil {
		r.HandleFunc("/login", auth.HandleLogin).Methods("GET")
		r.HandleFunc("/logout", auth.HandleLogout).Methods("GET")
		r.HandleFunc("/auth/callback", auth.HandleOAuthCallback).Methods("GET")
	}
	r.HandleFunc("/api/session", app.AuthMiddleware(auth.HandleSession)).Methods("GET")

	handlers.New(app.Services, app.Logger.Zap("http"), app.Metrics).Register(r, app.guard)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		utils.NotFoundError(w, "Resource")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return gzhttp.GzipHandler(r)
}

func (app *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := app.DB.PingContext(ctx); err != nil {
		app.Logger.WithError(err).Error("Health check failed")
		utils.RespondWithError(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Close releases everything newApp acquired
func (app *App) Close() {
	if app.Scheduler != nil {
		app.Scheduler.Stop()
	}
	if app.Cache != nil {
		if err := app.Cache.Close(); err != nil {
			app.Logger.WithError(err).Warn("Failed to close cache")
		}
	}
	if app.DB != nil {
		app.DB.Close()
	}
	app.Logger.Sync()
}
