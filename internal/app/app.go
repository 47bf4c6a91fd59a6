package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"notebook-server/internal/cache"
	"notebook-server/internal/config"
	"notebook-server/internal/handler"
	"notebook-server/internal/middleware"
	"notebook-server/internal/repository"
	"notebook-server/internal/repository/migrations"
	"notebook-server/internal/service"
	"notebook-server/internal/versioning"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// App wires storage, services and the HTTP surface for one process. The
// caller must Close it.
type App struct {
	Config *config.Config
	Logger *zap.SugaredLogger

	DB    *sql.DB
	Store *repository.Store

	Users *service.UserService
	Notes *service.NoteService
	Auth  *service.AuthService

	redis *redis.Client
}

// New opens the database and prepares its schema: migrations are applied
// when auto migration is on, otherwise the schema must already be current.
func New(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	db, err := repository.Open(cfg.Database.Driver, cfg.Database.URI)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger, DB: db}

	dialect := repository.Dialect(cfg.Database.Driver)
	if cfg.Database.AutoMigrate {
		if err := migrations.MigrateUp(db, dialect); err != nil {
			a.Close()
			return nil, err
		}
	} else if err := migrations.CheckDBMigrationStatus(db, dialect); err != nil {
		a.Close()
		return nil, fmt.Errorf("database schema: %w", err)
	}

	noteCache := cache.NewNopNoteCache()
	if cfg.Cache.Enabled {
		a.redis, err = cache.NewClient(ctx, cfg.Cache.Addr, cfg.Cache.User, cfg.Cache.Pass, cfg.Cache.OperationTimeout)
		if err != nil {
			a.Close()
			return nil, err
		}
		noteCache = cache.NewRedisNoteCache(a.redis, cfg.Cache.TTL, cfg.Cache.OperationTimeout, logger.With("component", "note_cache"))
		logger.Infow("startup", "cache", cfg.Cache.Addr)
	}

	recorder := versioning.NewRecorder(middleware.Username, nil, logger.With("component", "versioning"))
	a.Store = repository.NewStore(db, nil, logger.With("component", "store"), recorder)

	a.Users = service.NewUserService(a.Store, noteCache, nil, cfg.Security.BcryptCost, logger)
	a.Notes = service.NewNoteService(a.Store, noteCache, logger)
	a.Auth = service.NewAuthService(a.Store, nil, cfg.JWT.Secret, cfg.JWT.Expiration, cfg.JWT.RefreshTokenExpiration, logger)
	return a, nil
}

// Handler builds the HTTP router.
func (a *App) Handler() http.Handler {
	return handler.NewRouter(handler.Handlers{
		Auth:   handler.NewAuthHandler(a.Auth, a.Logger),
		Notes:  handler.NewNoteHandler(a.Notes, a.Logger),
		Users:  handler.NewUserHandler(a.Users, a.Logger),
		Health: handler.NewHealthHandler(a.Store, a.Logger),
	}, a.Config.JWT.Secret, a.Config.CORS, a.Users, a.Logger)
}

func (a *App) Close() error {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.Logger.Warnw("failed to close cache", "error", err)
		}
	}
	return a.DB.Close()
}
