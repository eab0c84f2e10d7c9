package main

import (
	"context"
	"os"

	"github.com/desertthunder/shelf/internal/api"
	"github.com/desertthunder/shelf/internal/identity"
	"github.com/desertthunder/shelf/internal/repositories"
	"github.com/desertthunder/shelf/internal/session"
	"github.com/desertthunder/shelf/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	ctx := context.Background()
	logger := shared.NewLogger(nil)

	config, err := shared.ResolveConfig("config.toml")
	if err != nil {
		logger.Warn("using default configuration", "error", err)
		config = shared.DefaultConfig()
	}
	shared.SetLogLevel(logger, shared.ParseLogLevel(config.Log.Level))

	opts := RunnerOpts{Config: config, ConfigPath: "config.toml", Logger: logger}

	provider, err := identity.NewProvider(identity.Options{
		APIKey:   config.Identity.APIKey,
		AuthURL:  config.Identity.AuthURL,
		TokenURL: config.Identity.TokenURL,
	})
	if err != nil {
		logger.Debug("identity provider unavailable", "error", err)
	} else {
		var store session.Store
		if db, err := shared.OpenDatabase(config.Database); err != nil {
			logger.Warn("session will not persist", "error", err)
		} else {
			defer db.Close()
			store = repositories.NewSessionRepository(db)
		}

		sess := session.New(provider, store, shared.WithLogger(logger, "component", "session"))
		if err := sess.Restore(ctx); err != nil {
			logger.Warn("starting signed out", "error", err)
		}

		opts.Auth = sess
		opts.Client = api.NewClient(api.Options{
			BaseURL:   config.Backend.BaseURL,
			Oracle:    sess,
			Timeout:   config.Backend.Timeout(),
			RateLimit: config.Backend.RateLimit,
			Logger:    shared.WithLogger(logger, "component", "api"),
		})
	}

	runner := NewRunner(opts)

	app := &cli.Command{
		Name:     "shelf",
		Usage:    "Keep track of your personal book collection",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(ctx, os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}
