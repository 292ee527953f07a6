package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	ssomodule "github.com/dmitrymomot/ssokit/modules/sso"
	"github.com/dmitrymomot/ssokit/pkg/config"
	"github.com/dmitrymomot/ssokit/pkg/cookie"
	"github.com/dmitrymomot/ssokit/pkg/httpserver"
	"github.com/dmitrymomot/ssokit/pkg/logger"
	"github.com/dmitrymomot/ssokit/pkg/logoutsync"
	"github.com/dmitrymomot/ssokit/pkg/pg"
	redisconn "github.com/dmitrymomot/ssokit/pkg/redis"
	"github.com/dmitrymomot/ssokit/pkg/sessionstore"
	"github.com/dmitrymomot/ssokit/pkg/sso"
	"github.com/dmitrymomot/ssokit/pkg/webhook"
)

type appConfig struct {
	Redis  redisconn.Config
	PG     pg.Config
	HTTP   httpserver.Config
	Cookie cookie.Config
	Store  sessionstore.Config
	SSO    sso.Config
	Module ssomodule.Config

	// LogoutWebhookURLs is a comma-separated list of endpoints notified on
	// every logout. Each entry may carry a signing secret after a pipe:
	// "https://crm.example/hooks/logout|whsec_abc".
	LogoutWebhookURLs string `env:"SSO_LOGOUT_WEBHOOK_URLS" envDefault:""`
}

func main() {
	log := logger.New(logger.WithService("ssokit"))
	logger.SetAsDefault(log)

	if err := run(context.Background(), log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *slog.Logger) error {
	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		return err
	}

	redisClient, err := redisconn.Connect(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer func() { _ = redisClient.Close() }()

	pool, err := pg.Connect(ctx, cfg.PG)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, cfg.PG, log); err != nil {
		return err
	}

	store := sessionstore.NewFromConfig(cfg.Store,
		sessionstore.WithClient(redisClient),
		sessionstore.WithLogger(log),
	)
	defer func() { _ = store.Close() }()

	durable := sso.NewPostgresStore(pool)
	sessions := sso.NewService(store, durable,
		sso.WithConfig(cfg.SSO),
		sso.WithLogger(log),
	)

	logout := logoutsync.New(sessions, store, durable,
		logoutsync.WithLogger(log),
		logoutsync.WithWebhookSender(webhook.NewSender()),
		logoutsync.WithWebhookEndpoints(parseWebhookEndpoints(cfg.LogoutWebhookURLs)...),
	)
	defer func() { _ = logout.Close() }()

	// Invalidate this process's cache for logouts originated elsewhere.
	logout.Run(ctx)

	cookies, err := cookie.NewFromConfig(cfg.Cookie)
	if err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", httpserver.HealthCheckHandler(ctx, log))
	r.Get("/readyz", httpserver.HealthCheckHandler(ctx, log,
		redisconn.Healthcheck(redisClient),
		pg.Healthcheck(pool),
	))
	r.Mount("/sso", ssomodule.Router(ssomodule.RouterOptions{
		Sessions: ssomodule.NewSessionService(cfg.Module, sessions, logout, cookies),
		Tokens:   ssomodule.NewTokenService(cfg.Module, sessions, cookies),
		Registry: ssomodule.NewRegistryService(sessions),
	}))

	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
	return srv.Run(ctx, r)
}

func parseWebhookEndpoints(raw string) []logoutsync.WebhookEndpoint {
	var endpoints []logoutsync.WebhookEndpoint
	for entry := range strings.SplitSeq(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		url, secret, _ := strings.Cut(entry, "|")
		endpoints = append(endpoints, logoutsync.WebhookEndpoint{URL: url, Secret: secret})
	}
	return endpoints
}
