package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/dmitrymomot/agora/internal/attachment"
	"github.com/dmitrymomot/agora/internal/config"
	"github.com/dmitrymomot/agora/internal/database"
	"github.com/dmitrymomot/agora/internal/handler"
	"github.com/dmitrymomot/agora/internal/logger"
	"github.com/dmitrymomot/agora/internal/redis"
	"github.com/dmitrymomot/agora/internal/repository"
	"github.com/dmitrymomot/agora/internal/session"
	"github.com/dmitrymomot/agora/internal/views"
	"github.com/dmitrymomot/agora/internal/web"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.NewWithSentry(cfg.Log, web.RequestIDExtractor())
	ctx := context.Background()

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	if err := database.Migrate(ctx, pool, cfg.Database.MigrationsTable, log); err != nil {
		return err
	}
	shutdownHooks := []func(context.Context) error{database.Shutdown(pool)}

	queries := repository.New(pool)

	// Sessions live in Redis when one is configured, otherwise Postgres.
	var sessionStore session.Store = session.NewPGStore(pool)
	if cfg.Redis.URL != "" {
		client, err := redis.Open(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		sessionStore = session.NewRedisStore(client)
		shutdownHooks = append(shutdownHooks, redis.Shutdown(client))
		log.Info("using redis session store")
	}
	sessions := session.NewManager(sessionStore, cfg.Session)

	var files attachment.Store
	if cfg.S3.Configured() {
		files, err = attachment.NewS3(cfg.S3)
		log.Info("using s3 attachment store")
	} else {
		files, err = attachment.NewLocal(cfg.Local)
	}
	if err != nil {
		return err
	}

	renderer, err := views.New()
	if err != nil {
		return err
	}

	app := web.NewApp(log, renderer)
	root := app.Router()
	root.Use(
		web.RequestID(),
		web.Recover(),
		web.RequestLogger(),
		handler.Sessions(sessions, queries),
	)

	app.Register(
		handler.NewForumHandler(queries, queries, files),
		handler.NewTopicHandler(queries, queries, files),
		handler.NewHeaderHandler(queries, files),
		handler.NewAvatarHandler(queries, files, queries),
		handler.NewAuthHandler(queries, sessions, queries, files),
	)

	app.NotFound(handler.NotFound())

	root.Mount("/static", views.StaticHandler())
	if local, ok := files.(*attachment.Local); ok {
		root.Mount(cfg.Local.PublicURL, http.StripPrefix(cfg.Local.PublicURL, local.FileServer()))
	}

	return web.Run(web.RunConfig{
		Handler:       app,
		Address:       cfg.Addr,
		Logger:        log,
		ShutdownHooks: shutdownHooks,
	})
}
