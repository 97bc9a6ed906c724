package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/content-unit/pkg/contentunit/api"
	"github.com/tendant/content-unit/pkg/contentunit/config"
)

func main() {
	cfg, err := config.Load(config.WithEnv())
	if err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}

	logger := cfg.Logger()
	slog.SetDefault(logger)

	comps, err := cfg.Build(context.Background(), logger)
	if err != nil {
		logger.Error("Failed to build service", "err", err)
		os.Exit(1)
	}
	defer comps.Close()

	server := app.DefaultApp()

	app.RoutesHealthz(server.R)
	server.R.Get("/healthz/ready", api.ReadyHandler(comps.Ready))

	if comps.Registry != nil {
		server.R.Handle("/metrics", promhttp.HandlerFor(comps.Registry, promhttp.HandlerOpts{}))
	}

	// Filesystem assets have no URL of their own; serve them here.
	if opener, ok := comps.Assets.(api.AssetOpener); ok {
		server.R.Get("/preview/{id}", api.ServeAssets(opener))
	}

	unitHandler := api.NewHandler(comps.Service, api.WithLogger(logger))

	server.R.Route("/api/v1", func(r chi.Router) {
		r.Use(api.RequestLogger(logger))
		r.Group(func(r chi.Router) {
			if cfg.JWTSecret != "" {
				tokenAuth := jwtauth.New("HS256", []byte(cfg.JWTSecret), nil)
				r.Use(jwtauth.Verifier(tokenAuth))
				r.Use(jwtauth.Authenticator)
			} else {
				logger.Warn("JWT_SECRET is not set, unit API is unauthenticated")
			}
			r.Mount("/units", unitHandler.Routes())
		})
	})

	logger.Info("Content unit server starting",
		"environment", cfg.Environment,
		"database", cfg.DatabaseType,
		"storage", cfg.Storage.Type,
		"require_asset_on_create", cfg.RequireAssetOnCreate,
	)

	server.Run()
}
