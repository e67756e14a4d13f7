package server

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/cte-skillshub-api/internal/handler"
	"github.com/noah-isme/cte-skillshub-api/internal/models"
	"github.com/noah-isme/cte-skillshub-api/internal/repository"
	"github.com/noah-isme/cte-skillshub-api/internal/service"
	"github.com/noah-isme/cte-skillshub-api/pkg/cache"
	"github.com/noah-isme/cte-skillshub-api/pkg/config"
	"github.com/noah-isme/cte-skillshub-api/pkg/database"
	"github.com/noah-isme/cte-skillshub-api/pkg/jobs"
)

// App owns every long-lived component of the service.
type App struct {
	Router   *gin.Engine
	Metrics  *service.MetricsService
	Users    *repository.MemoryUserStore
	Sessions *service.ReminderSessionService

	logger *zap.Logger
	audit  *service.AuditService
	purger *service.PurgeService
	db     *sqlx.DB
	redis  *redis.Client
}

// Build wires storage, services and handlers according to cfg.
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	app := &App{logger: log, Metrics: service.NewMetricsService()}
	validate := validator.New()

	var (
		store       service.ReminderStore
		users       authUsers
		auditWriter auditSink
		resolver    service.MembershipResolver
		checks      = map[string]handler.ReadinessCheck{}
	)

	switch cfg.Reminders.Store {
	case config.StorePostgres:
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		app.db = db
		store = repository.NewReminderRepository(db)
		users = repository.NewUserRepository(db)
		auditWriter = repository.NewAuditRepository(db)
		resolver = repository.NewMembershipRepository(db)
		checks["database"] = db.PingContext
	default:
		store = repository.NewMemoryReminderStore()
		app.Users = repository.NewMemoryUserStore()
		if err := seedAdmin(app.Users, cfg.Bootstrap, bcrypt.DefaultCost); err != nil {
			return nil, err
		}
		if cfg.Bootstrap.SeedFile != "" {
			seed, err := loadSeed(cfg.Bootstrap.SeedFile)
			if err != nil {
				return nil, err
			}
			if err := seedUsers(app.Users, seed, bcrypt.DefaultCost); err != nil {
				return nil, err
			}
			log.Info("seeded in-memory users", zap.String("file", cfg.Bootstrap.SeedFile), zap.Int("users", len(seed.Users)))
		}
		users = app.Users
		resolver = app.Users
		auditWriter = service.NewLogAuditWriter(log)
		log.Info("using in-memory reminder store")
	}

	var cacheRepo *repository.CacheRepository
	if cfg.Reminders.CacheEnabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		app.redis = client
		cacheRepo = repository.NewCacheRepository(client, log)
	} else {
		cacheRepo = repository.NewCacheRepository(nil, log)
	}
	cacheSvc := service.NewCacheService(cacheRepo, app.Metrics, cfg.Reminders.CacheTTL, log, cfg.Reminders.CacheEnabled)
	if cacheSvc.Enabled() {
		checks["redis"] = cacheSvc.Ping
	}

	app.audit = service.NewAuditService(auditWriter, jobs.QueueConfig{
		Workers:    cfg.Audit.Workers,
		BufferSize: cfg.Audit.BufferSize,
		MaxRetries: cfg.Audit.MaxRetries,
		Logger:     log,
	}, log)

	engine := service.NewReminderEngine(resolver, log)
	reminders := service.NewReminderService(store, engine, cacheSvc, app.audit, app.Metrics, validate, log,
		service.ReminderServiceConfig{CacheTTL: cfg.Reminders.CacheTTL})
	app.Sessions = service.NewReminderSessionService(reminders, app.Metrics, log)
	exports := service.NewExportService(store, log, nil, nil)
	auth := service.NewAuthService(users, app.audit, validate, log, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	app.purger = service.NewPurgeService(reminders, cfg.Reminders.PurgeSchedule, cfg.Reminders.PurgeRetention, log)

	app.Router = NewRouter(Options{
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		EnableDocs:     cfg.Env != config.EnvProduction,
	}, log, auth, app.Metrics, Handlers{
		Auth:      handler.NewAuthHandler(auth),
		Reminders: handler.NewReminderHandler(reminders, app.Sessions),
		Admin:     handler.NewReminderAdminHandler(reminders, exports),
		Metrics:   handler.NewMetricsHandler(app.Metrics, checks, log),
	})
	return app, nil
}

// Start launches background workers.
func (a *App) Start(ctx context.Context) error {
	a.audit.Start(ctx)
	if err := a.purger.Start(); err != nil {
		return fmt.Errorf("schedule reminder purge: %w", err)
	}
	return nil
}

// Shutdown stops background workers, waiting for a running purge until ctx expires.
func (a *App) Shutdown(ctx context.Context) {
	select {
	case <-a.purger.Stop().Done():
	case <-ctx.Done():
		a.logger.Warn("reminder purge still running at shutdown")
	}
	a.audit.Stop()
	a.Close()
}

// Close releases database and cache connections.
func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("close postgres", zap.Error(err))
		}
	}
}

type auditSink interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type authUsers interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
}
