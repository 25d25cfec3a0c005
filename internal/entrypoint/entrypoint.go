package entrypoint

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookshelf/internal/auth"
	"github.com/mrlokans/bookshelf/internal/config"
	"github.com/mrlokans/bookshelf/internal/covers"
	"github.com/mrlokans/bookshelf/internal/database"
	"github.com/mrlokans/bookshelf/internal/database/books"
	"github.com/mrlokans/bookshelf/internal/database/settings"
	"github.com/mrlokans/bookshelf/internal/database/users"
	http_controllers "github.com/mrlokans/bookshelf/internal/http"
	"github.com/mrlokans/bookshelf/internal/library"
	"github.com/mrlokans/bookshelf/internal/metadata"
	"github.com/mrlokans/bookshelf/internal/scheduler"
	"github.com/mrlokans/bookshelf/internal/settingsstore"
	"github.com/mrlokans/bookshelf/internal/tasks"
	"github.com/mrlokans/bookshelf/internal/watch"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting server at %s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// SIGKILL cannot be caught, so only SIGINT and SIGTERM are handled
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop accepting requests before background workers go away
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server Shutdown: %v", err)
	}

	if onShutdown != nil {
		onShutdown(ctx)
	}

	log.Println("Server exiting")
}

// App is a fully wired server: the router plus everything that has to be
// stopped when it goes away.
type App struct {
	Router *gin.Engine

	db          *database.Database
	rateLimiter *auth.RateLimiter
	taskClient  *tasks.Client
	taskCancel  context.CancelFunc
	coverSync   *scheduler.CoverSyncScheduler
}

// NewApp opens storage and builds every component described by cfg.
// Background workers are started; call Shutdown to stop them.
func NewApp(cfg *config.Config, version string) (*App, error) {
	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app := &App{db: db}

	authService := auth.NewService(users.NewRepository(db.DB), cfg.Auth)

	sqlDB, err := db.DB.DB()
	if err != nil {
		app.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to get SQL DB for sessions: %w", err)
	}
	sessionManager, err := auth.NewSessionManager(sqlDB, cfg.Auth)
	if err != nil {
		app.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to initialize session manager: %w", err)
	}

	csrfSecret, err := secret(cfg.Auth.SessionSecret, "AUTH_SESSION_SECRET")
	if err != nil {
		app.Shutdown(context.Background())
		return nil, err
	}
	tokenSecret, err := secret(cfg.Auth.TokenSecret, "AUTH_TOKEN_SECRET")
	if err != nil {
		app.Shutdown(context.Background())
		return nil, err
	}

	app.rateLimiter = auth.NewRateLimiter(auth.RateLimitConfig{
		MaxAttempts:     cfg.Auth.MaxLoginAttempts,
		Window:          cfg.Auth.RateLimitWindow,
		LockoutDuration: cfg.Auth.LockoutDuration,
	})

	store := books.NewRepository(db.DB)
	hub := watch.NewHub()
	lookup := metadata.NewGoogleBooksClient(metadata.ConfigFrom(cfg.GoogleBooks))

	routerCfg := http_controllers.RouterConfig{
		Database:       db,
		Books:          store,
		Hub:            hub,
		Lookup:         lookup,
		AuthService:    authService,
		SessionManager: sessionManager,
		Tokens:         auth.NewTokenIssuer(tokenSecret, cfg.Auth.TokenExpiry),
		RateLimiter:    app.rateLimiter,
		CSRFSecret:     csrfSecret,
		SecureCookies:  cfg.Auth.SecureCookies,
		Version:        version,
	}

	if cfg.Tasks.Enabled {
		if err := app.startTasks(cfg, store, hub, lookup); err != nil {
			app.Shutdown(context.Background())
			return nil, err
		}
		// Assigned only when set: a nil *tasks.Client in the interface would
		// look like an available queue.
		routerCfg.TaskClient = app.taskClient
	} else {
		log.Printf("Task queue disabled, imports and cover backfills run inline")
	}

	if app.taskClient != nil {
		app.coverSync = scheduler.NewCoverSyncScheduler(store, app.taskClient, settingsstore.New(settings.NewRepository(db.DB)), cfg.CoverSync)
		if err := app.coverSync.Start(context.Background()); err != nil {
			app.Shutdown(context.Background())
			return nil, fmt.Errorf("failed to start cover sync scheduler: %w", err)
		}
		routerCfg.CoverSync = app.coverSync
	} else if cfg.CoverSync.Enabled {
		log.Printf("WARNING: cover sync needs the task queue, set TASKS_ENABLED=true to enable it")
	}

	if cfg.Covers.CacheDir != "" {
		cache, err := covers.NewCache(covers.Config{Dir: cfg.Covers.CacheDir, UpgradeInsecure: true})
		if err != nil {
			app.Shutdown(context.Background())
			return nil, fmt.Errorf("failed to initialize cover cache: %w", err)
		}
		routerCfg.CoverCache = cache
		log.Printf("Caching covers in %s", cfg.Covers.CacheDir)
	}

	if hasUsers, err := authService.HasUsers(); err == nil && !hasUsers {
		log.Printf("No users found. Register one with POST /api/auth/register or the shell command.")
	}

	app.Router = http_controllers.NewRouter(routerCfg)
	return app, nil
}

func (a *App) startTasks(cfg *config.Config, store library.BookStore, hub *watch.Hub, lookup library.VolumeLookup) error {
	client, err := tasks.NewClient(cfg.Database.Path, tasks.ConfigFrom(cfg.Tasks))
	if err != nil {
		return fmt.Errorf("failed to initialize task queue: %w", err)
	}

	libraryFor := func(ownerID uint) tasks.Library {
		return library.NewService(store, hub, lookup, ownerID)
	}
	client.Register(
		tasks.NewImportISBNQueue(libraryFor),
		tasks.NewBackfillCoversQueue(libraryFor),
	)

	var ctx context.Context
	ctx, a.taskCancel = context.WithCancel(context.Background())
	client.Start(ctx)

	a.taskClient = client
	return nil
}

// Shutdown stops background work and closes storage. It is safe to call on a
// partially built App.
func (a *App) Shutdown(ctx context.Context) {
	if a.coverSync != nil {
		a.coverSync.Stop()
	}
	if a.taskClient != nil {
		if !a.taskClient.Stop(ctx) {
			log.Printf("Task workers did not finish before the shutdown deadline")
		}
		a.taskCancel()
		if err := a.taskClient.Close(); err != nil {
			log.Printf("Error closing task client: %v", err)
		}
	}
	if a.rateLimiter != nil {
		a.rateLimiter.Stop()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}
}

// secret decodes a configured hex secret, falls back to the raw bytes for
// non-hex values, and generates one when nothing is configured.
func secret(configured, envName string) ([]byte, error) {
	if configured != "" {
		if decoded, err := hex.DecodeString(configured); err == nil {
			return decoded, nil
		}
		return []byte(configured), nil
	}

	generated, err := auth.GenerateSecret()
	if err != nil {
		return nil, fmt.Errorf("failed to generate %s: %w", envName, err)
	}
	log.Printf("Generated a random secret (set %s to persist it across restarts)", envName)
	return hex.DecodeString(generated)
}

func Run(cfg *config.Config, version string) {
	log.Printf("Starting Bookshelf v%s", version)

	app, err := NewApp(cfg, version)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}

	Serve(app.Router, cfg, app.Shutdown)
}
