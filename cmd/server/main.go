package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/placelist/internal/auth"
	"github.com/dmitrymomot/placelist/internal/db"
	"github.com/dmitrymomot/placelist/internal/identity"
	"github.com/dmitrymomot/placelist/pkg/config"
	"github.com/dmitrymomot/placelist/pkg/cookie"
	"github.com/dmitrymomot/placelist/pkg/email"
	"github.com/dmitrymomot/placelist/pkg/environment"
	"github.com/dmitrymomot/placelist/pkg/httpserver"
	"github.com/dmitrymomot/placelist/pkg/logger"
	"github.com/dmitrymomot/placelist/pkg/magiclink"
	"github.com/dmitrymomot/placelist/pkg/otp"
	"github.com/dmitrymomot/placelist/pkg/pg"
	"github.com/dmitrymomot/placelist/pkg/ratelimit"
	"github.com/dmitrymomot/placelist/pkg/redis"
	"github.com/dmitrymomot/placelist/pkg/sessiontoken"
	"github.com/dmitrymomot/placelist/pkg/signing"
)

type appConfig struct {
	AppName string                  `env:"APP_NAME" envDefault:"placelist"`
	Env     environment.Environment `env:"APP_ENV" envDefault:"development"`

	// Optional alternative rate-limit store; Postgres is the default.
	Redis redis.Config

	Signing   signing.Config
	Postgres  pg.Config
	Email     email.Config
	OTP       otp.Config
	Auth      auth.Config
	RateLimit ratelimit.Config
	HTTP      httpserver.Config
}

func main() {
	var cfg appConfig
	config.MustLoad(&cfg)
	cfg.Env = environment.Parse(string(cfg.Env))

	log := logger.New(logger.WithEnvironment(cfg.Env, cfg.AppName))
	logger.SetAsDefault(log)

	if err := run(context.Background(), cfg, log); err != nil {
		log.Error("server exited with error", logger.Error(err))
		os.Exit(1)
	}
}

// run assembles the application and serves until shutdown. Any returned
// error is fatal; in particular a rejected signing secret aborts startup
// before the listener ever opens.
func run(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	secret, err := signing.Resolve(cfg.Signing, cfg.Env, log)
	if err != nil {
		return fmt.Errorf("signing secret rejected: %w", err)
	}

	pool, err := pg.Connect(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres connect: %w", err)
	}
	defer pool.Close()

	migrations, err := db.Migrations()
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	if err := pg.Migrate(ctx, pool, migrations, cfg.Postgres, log); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	var limitStore ratelimit.Store = ratelimit.NewPostgresStore(pool)
	readiness := []func(context.Context) error{pg.Healthcheck(pool)}
	if cfg.Redis.Enabled() {
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis connect: %w", err)
		}
		limitStore = ratelimit.NewRedisStore(client)
		readiness = append(readiness, redis.Healthcheck(client))
		log.Info("rate limiting backed by redis")
	}

	limiter := ratelimit.New(limitStore, secret.Derive("ratelimit-key"), cfg.RateLimit,
		ratelimit.WithLogger(log),
	)

	mailer, err := email.NewOTPMailerFromConfig(cfg.Email, cfg.Env.IsProduction())
	if err != nil {
		return fmt.Errorf("email provider setup: %w", err)
	}

	sessions := sessiontoken.NewCodec(secret.Derive("session-token"))
	links := magiclink.NewCodec(secret.Derive("magic-link"))
	identities := identity.NewStore(pool)

	svc := otp.NewService(
		otp.NewPostgresStorage(pool),
		identities,
		limiter,
		mailer,
		links,
		secret.Derive("otp-code"),
		cfg.OTP,
		otp.WithLogger(log),
	)

	cookies := cookie.New(cfg.Env)
	authHandler := auth.NewHandler(svc, sessions, links, cookies, cfg.Auth, log)
	sessionMW := auth.NewMiddleware(sessions, identities, cookies, cfg.Auth, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(sessionMW.Sessions)

	r.Get("/healthz", httpserver.HealthcheckHandler(log))
	r.Get("/readyz", httpserver.HealthcheckHandler(log, readiness...))
	r.Mount("/auth", authHandler.Router())

	return httpserver.Run(ctx, cfg.HTTP, r, log)
}
