package main

import (
	"context"
	"net/http"
	"time"

	appgame "tori-server/internal/app/game"
	"tori-server/internal/backend"
	"tori-server/internal/config"
	"tori-server/internal/logging"
	"tori-server/internal/session"
	"tori-server/internal/store"
	"tori-server/internal/token"
	httptransport "tori-server/internal/transport/http"

	"github.com/rs/zerolog/log"
)

func main() {
	appCfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	logging.Init(appCfg.Log)
	cfg := appCfg.Server

	st, err := store.New(cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("store init failed")
	}
	if err := st.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("db ping failed")
	}

	appAPI := backend.NewClient(cfg.AppAPIHost, cfg.AppAPITimeout)
	tokens := token.NewIssuer(cfg.JWTSecret, cfg.JWTTokenTTL)

	registry := session.NewRegistry(session.Config{
		ForceCloseGrace:     cfg.ForceCloseGrace,
		DeferRecycleWindow:  cfg.DeferRecycleWindow,
		EnergyCostPerMinute: cfg.EnergyCostPerMinute,
	}, st, st, appAPI, appAPI)
	registry.StartSweeps(context.Background(), cfg.HealthCheckInterval, cfg.InactivityThreshold, cfg.ResultPostInterval)

	svc := appgame.NewService(registry, st, appAPI, tokens, appAPI)

	r := httptransport.NewRouter(svc, st, tokens, cfg)
	httptransport.LogRoutes(r)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	log.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
	log.Fatal().Err(server.ListenAndServe()).Msg("server stopped")
}
