package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	googleauth "studyai-backend/internal/auth"
	"studyai-backend/internal/documents"
	"studyai-backend/internal/extract"
	"studyai-backend/internal/generation"
	"studyai-backend/internal/llm"
	"studyai-backend/internal/llm/openai"
	"studyai-backend/internal/services/health"
	"studyai-backend/internal/shared/auth"
	"studyai-backend/internal/shared/config"
	"studyai-backend/internal/shared/server"
	"studyai-backend/internal/shared/server/middleware"
	"studyai-backend/internal/shared/storage/db"
	"studyai-backend/internal/shared/storage/object"
	localstore "studyai-backend/internal/shared/storage/object/local"
	miniostore "studyai-backend/internal/shared/storage/object/minio"
	s3store "studyai-backend/internal/shared/storage/object/s3"
	"studyai-backend/internal/shared/telemetry"
	"studyai-backend/internal/study"
)

// App holds shared dependencies and the router built from them.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Redis  *redis.Client
	Store  object.ObjectStore

	Verifier auth.Verifier
	Signer   *auth.HMAC
	Gateway  llm.Gateway
	Health   *health.Service

	DocumentsService  *documents.Service
	GenerationService *generation.Service
	DocumentsHandler  *documents.Handler
	GenerationHandler *generation.Handler
	GoogleAuth        *googleauth.GoogleService
}

// Build connects every dependency named by cfg and wires the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	ctx := context.Background()
	app := &App{Config: cfg, Health: health.NewService()}

	var err error
	if app.DB, err = buildDB(ctx, cfg); err != nil {
		return nil, err
	}
	if app.Store, err = buildStore(ctx, cfg); err != nil {
		return nil, err
	}
	if app.Redis, err = buildRedis(cfg); err != nil {
		return nil, err
	}
	if err := buildAuth(ctx, app); err != nil {
		return nil, err
	}
	if app.Gateway, err = buildGateway(cfg); err != nil {
		return nil, err
	}
	if err := buildServices(app); err != nil {
		return nil, err
	}

	if app.DB != nil {
		app.Health.Register("database", app.DB.PingContext)
	}
	if app.Redis != nil {
		app.Health.Register("redis", func(ctx context.Context) error {
			return app.Redis.Ping(ctx).Err()
		})
	}

	var limiter middleware.Limiter
	if app.Redis != nil {
		limiter = middleware.NewRedisLimiter(app.Redis)
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          cfg,
		Verifier:        app.Verifier,
		Limiter:         limiter,
		Health:          app.Health,
		DocumentHandler: app.DocumentsHandler,
		GenHandler:      app.GenerationHandler,
		GoogleAuth:      app.GoogleAuth,
	})
	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.database_url_empty", map[string]any{"fallback": "memory"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		sqlDB, err = db.Shared(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultOptions(db.ProfileLambda)))
	} else {
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultOptions(db.ProfileServer)))
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.database_connect_failed", map[string]any{"fallback": "memory", "error": err.Error()})
			return nil, nil
		}
		return nil, err
	}

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	case "minio":
		store, err := miniostore.New(miniostore.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			Region:    cfg.AWSRegion,
		})
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildRedis(cfg config.Config) (*redis.Client, error) {
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	return redis.NewClient(opts), nil
}

func buildAuth(ctx context.Context, app *App) error {
	signer, err := auth.NewHMAC(app.Config.JWTSecret, app.Config.Env)
	if err != nil {
		return err
	}
	app.Signer = signer

	chain := auth.Chain{signer}
	if url := strings.TrimSpace(app.Config.JWKSURL); url != "" {
		jwks, err := auth.NewJWKS(ctx, url)
		if err != nil {
			return err
		}
		chain = append(chain, jwks)
	}
	app.Verifier = chain

	var states googleauth.StateStore
	if app.Redis != nil {
		states = googleauth.NewRedisStateStore(app.Redis)
	}
	app.GoogleAuth = googleauth.NewGoogleService(googleauth.GoogleConfig{
		ClientID:     app.Config.GoogleClientID,
		ClientSecret: app.Config.GoogleClientSecret,
		RedirectURL:  app.Config.GoogleRedirectURL,
		UIRedirect:   app.Config.UIRedirectURL,
	}, signer, states)
	return nil
}

func buildGateway(cfg config.Config) (llm.Gateway, error) {
	if strings.TrimSpace(cfg.LLMAPIKey) == "" {
		if !isDevLike(cfg.Env) {
			return nil, fmt.Errorf("LLM_API_KEY is required")
		}
		telemetry.Warn("bootstrap.llm_not_configured", map[string]any{"gateway": "placeholder"})
		return llm.PlaceholderGateway{}, nil
	}
	return openai.NewClient(openai.Config{
		BaseURL: cfg.LLMBaseURL,
		APIKey:  cfg.LLMAPIKey,
		Model:   cfg.LLMModel,
		Timeout: time.Duration(cfg.LLMTimeoutSeconds) * time.Second,
	})
}

func buildServices(app *App) error {
	var repo documents.Repo
	if app.DB != nil {
		repo = &documents.PGRepo{DB: app.DB}
	} else {
		repo = documents.NewMemoryRepo()
	}

	builder, err := study.NewBuilder()
	if err != nil {
		return err
	}

	app.DocumentsService = &documents.Service{
		Store:     app.Store,
		Repo:      repo,
		Extractor: extract.Extractor{DecodeBinary: app.Config.ExtractDecodeBinary},
	}
	app.GenerationService = &generation.Service{
		Docs:    app.DocumentsService,
		Builder: builder,
		Gateway: app.Gateway,
	}
	app.DocumentsHandler = documents.NewHandler(app.DocumentsService, app.Config.MaxRequestBytes)
	app.GenerationHandler = generation.NewHandler(app.GenerationService)
	return nil
}

// Close releases pooled connections.
func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local", "test":
		return true
	default:
		return false
	}
}
