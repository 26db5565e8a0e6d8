// Package bootstrap wires repositories, services, and the router from
// configuration. Both binaries and the end-to-end tests build through it.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"certiresume-backend/internal/certificates"
	"certiresume-backend/internal/extraction"
	"certiresume-backend/internal/extraction/pool"
	"certiresume-backend/internal/intake"
	"certiresume-backend/internal/queue"
	"certiresume-backend/internal/sessions"
	"certiresume-backend/internal/shared/auth"
	"certiresume-backend/internal/shared/config"
	"certiresume-backend/internal/shared/server"
	"certiresume-backend/internal/shared/storage/db"
	"certiresume-backend/internal/shared/storage/object"
	localstore "certiresume-backend/internal/shared/storage/object/local"
	s3store "certiresume-backend/internal/shared/storage/object/s3"
	"certiresume-backend/internal/users"
	"certiresume-backend/resume/render"
)

// App holds shared dependencies.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore
	Queue  queue.Client
	Tokens *auth.Tokens

	UsersRepo        users.Repo
	SessionsRepo     sessions.Repo
	CertificatesRepo certificates.Repo

	Registry   *certificates.Registry
	Engine     extraction.Engine
	Pool       *pool.Pool
	Dispatcher sessions.Dispatcher

	UsersService    *users.Service
	SessionsService *sessions.Service

	UsersHandler    *users.Handler
	SessionsHandler *sessions.Handler
}

// Option overrides a dependency before services are wired, mainly for tests.
type Option func(*App)

// WithEngine substitutes the extraction engine.
func WithEngine(engine extraction.Engine) Option {
	return func(app *App) { app.Engine = engine }
}

// Build prepares shared dependencies and the router.
func Build(cfg config.Config, opts ...Option) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if queueClient != nil && sqlDB == nil {
		return nil, fmt.Errorf("CR_SQS_QUEUE_URL requires DATABASE_URL so workers share registry state")
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		Queue:  queueClient,
		Tokens: auth.NewTokens(cfg.JWTSecret, 24*time.Hour),
	}
	for _, opt := range opts {
		opt(app)
	}
	buildServices(app)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          app.Config,
		Tokens:          app.Tokens,
		UsersHandler:    app.UsersHandler,
		SessionsHandler: app.SessionsHandler,
	})
	return app, nil
}

// Shutdown drains background work.
func (a *App) Shutdown(ctx context.Context) error {
	if a.Pool != nil {
		if err := a.Pool.Shutdown(ctx); err != nil {
			return err
		}
	}
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.SQSQueueURL) == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx, cfg.SQSQueueURL, cfg.AWSRegion)
}

func buildServices(app *App) {
	cfg := app.Config

	if app.DB != nil {
		app.UsersRepo = &users.PGRepo{DB: app.DB}
		app.SessionsRepo = &sessions.PGRepo{DB: app.DB}
		app.CertificatesRepo = &certificates.PGRepo{DB: app.DB}
	} else {
		app.UsersRepo = users.NewMemoryRepo()
		app.SessionsRepo = sessions.NewMemoryRepo()
		app.CertificatesRepo = certificates.NewMemoryRepo()
	}

	app.Registry = certificates.NewRegistry(app.CertificatesRepo)
	if app.Engine == nil {
		app.Engine = extraction.NewTextEngine(nil)
	}
	app.Pool = pool.New(app.Registry, app.Engine, app.Store, pool.Options{
		Concurrency: cfg.WorkerConcurrency,
		RetryMax:    cfg.ExtractRetryMax,
	})
	if app.Queue != nil {
		app.Dispatcher = queue.NewDispatcher(app.Registry, app.Store, app.Queue)
	} else {
		app.Dispatcher = app.Pool
	}

	renderer := render.NewRenderer(cfg.ResumeTemplates)
	app.SessionsService = sessions.NewService(app.SessionsRepo, app.Registry, renderer, app.Store, cfg.SessionTTL)
	app.UsersService = users.NewService(app.UsersRepo, app.Tokens)

	validator := intake.NewValidator(cfg.MaxUploadBytes)
	app.SessionsHandler = sessions.NewHandler(app.SessionsService, validator, app.Registry, app.Dispatcher, cfg.MaxUploadBytes)
	app.UsersHandler = users.NewHandler(app.UsersService)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
