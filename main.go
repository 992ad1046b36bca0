package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/sitepick/assets"
	"github.com/robalobadob/sitepick/internal/config"
	"github.com/robalobadob/sitepick/internal/database"
	"github.com/robalobadob/sitepick/internal/httpserver"
	"github.com/robalobadob/sitepick/internal/listing"
	"github.com/robalobadob/sitepick/internal/results"
	"github.com/robalobadob/sitepick/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	setupLogging(cfg)

	listings, err := listing.Load(cfg.ListingsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load listings")
	}
	log.Info().Int("listings", len(listings)).Str("source", sourceName(cfg.ListingsFile)).Msg("listings loaded")

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open db")
	}
	defer db.Close()
	if err := database.Migrate(db, assets.Migrations()); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mem := store.NewMemoryStore()
	go store.Janitor(ctx, mem, time.Minute, cfg.SessionTTL, func(n int) {
		if n > 0 {
			log.Info().Int("evicted", n).Msg("idle sessions swept")
		}
	})

	srv := httpserver.New(httpserver.Deps{
		Config:   cfg,
		Store:    mem,
		Results:  results.NewStore(db),
		DB:       db,
		Listings: listings,
	})
	log.Info().Str("port", cfg.Port).Msg("starting sitepick")
	if err := srv.Start(ctx, ":"+cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("server stopped")
}

func setupLogging(cfg *config.Config) {
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func sourceName(path string) string {
	if path == "" {
		return "embedded"
	}
	return path
}
