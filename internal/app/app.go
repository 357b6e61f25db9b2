// Package app owns the long-lived dependencies of the API process and their
// lifecycle: open everything in New, release it in Close.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/secissues/secissues-go/internal/config"
	"github.com/secissues/secissues-go/internal/crypto"
	"github.com/secissues/secissues-go/internal/handler"
	"github.com/secissues/secissues-go/internal/notify"
	"github.com/secissues/secissues-go/internal/ratelimit"
	"github.com/secissues/secissues-go/internal/repository"
	"github.com/secissues/secissues-go/internal/service"
)

// App holds the handles shared by all requests.
type App struct {
	cfg    config.Config
	logger *slog.Logger

	db  *sql.DB
	rdb *redis.Client

	Tokens         *crypto.TokenService
	Auth           *service.AuthService
	Posts          *service.PostService
	Governor       *ratelimit.Governor
	PublicGovernor *ratelimit.Governor

	ctx    context.Context
	cancel context.CancelFunc
}

// New opens the store connections, optionally migrates the schema and wires
// the services. On error everything opened so far is released.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	tokens, err := crypto.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return nil, err
	}

	db, err := repository.NewDB(cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if cfg.MigrateOnStart {
		if err := repository.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping failed", slog.Any("error", err))
	}

	a, err := build(cfg, logger, db, rdb, tokens)
	if err != nil {
		rdb.Close()
		db.Close()
		return nil, err
	}
	return a, nil
}

func build(cfg config.Config, logger *slog.Logger, db *sql.DB, rdb *redis.Client, tokens *crypto.TokenService) (*App, error) {
	governor, err := ratelimit.NewGovernor(rdb, logger, ratelimit.Options{
		Prefix:  "api",
		Limit:   cfg.RateLimit.Limit,
		Window:  cfg.RateLimit.Window,
		Timeout: cfg.StoreTimeout,
	})
	if err != nil {
		return nil, err
	}
	publicGovernor, err := ratelimit.NewGovernor(rdb, logger, ratelimit.Options{
		Prefix:  "public",
		Limit:   cfg.RateLimit.PublicLimit,
		Window:  cfg.RateLimit.PublicWindow,
		Timeout: cfg.StoreTimeout,
	})
	if err != nil {
		return nil, err
	}

	var notifier service.Notifier
	if n := notify.NewEmailNotifier(cfg.Email, logger); n != nil {
		notifier = n
	} else {
		logger.Info("SMTP not configured, issue notifications disabled")
	}

	users := repository.NewUserRepository(db, cfg.StoreTimeout)
	posts := repository.NewPostRepository(db, cfg.StoreTimeout)

	ctx, cancel := context.WithCancel(context.Background())

	return &App{
		cfg:            cfg,
		logger:         logger,
		db:             db,
		rdb:            rdb,
		Tokens:         tokens,
		Auth:           service.NewAuthService(users, tokens, logger),
		Posts:          service.NewPostService(posts, notifier, logger),
		Governor:       governor,
		PublicGovernor: publicGovernor,
		ctx:            ctx,
		cancel:         cancel,
	}, nil
}

// Handler returns the HTTP routes bound to this App.
func (a *App) Handler() http.Handler {
	return handler.NewRouter(a.ctx, handler.RouterDeps{
		Auth:           a.Auth,
		Posts:          a.Posts,
		Governor:       a.Governor,
		PublicGovernor: a.PublicGovernor,
		FailOpen:       a.cfg.RateLimit.FailOpen,
		AuthRPS:        a.cfg.RateLimit.AuthRPS,
		AuthBurst:      a.cfg.RateLimit.AuthBurst,
		TrustProxy:     a.cfg.RateLimit.TrustProxy,
		CORSOrigins:    a.cfg.CORSOrigins,
		Logger:         a.logger,
	})
}

// Close waits for pending notifications and closes the store connections.
func (a *App) Close() error {
	a.cancel()
	a.Posts.Wait()
	return errors.Join(a.rdb.Close(), a.db.Close())
}
