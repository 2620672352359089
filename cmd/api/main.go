package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"toonify/internal/bootstrap"
	"toonify/internal/http/handlers"
	httpapi "toonify/internal/http/httpapi"
	"toonify/internal/infra"
	"toonify/internal/infra/geoip"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, cfg.LogLevel)

	rt, err := bootstrap.Build(context.Background(), cfg, &logger)
	defer rt.Close()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start")
	}

	geo, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}
	defer geo.Close()

	app := handlers.NewApp(rt.Service, &logger)
	app.Ping = rt.Ping

	router := httpapi.NewRouter(app, httpapi.Options{
		JWTSecret:       cfg.JWTSecret,
		DefaultLocale:   cfg.DefaultLocale,
		CORSOrigins:     cfg.CORSOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		CountryLookup:   geo.Lookup(),
		Logger:          logger,
		Objects:         rt.Served,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().Str("storage", cfg.StorageDriver).Msgf("API listening on :%s", cfg.Port)
	if err := infra.NewHTTPServer(cfg, router).Run(ctx); err != nil {
		logger.Error().Err(err).Msg("http server failed")
		return
	}
	logger.Info().Msg("server stopped")
}
