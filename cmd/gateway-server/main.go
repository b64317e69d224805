package main

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"net/http"
	"time"

	"witnessgate/internal/batch"
	"witnessgate/internal/chain"
	"witnessgate/internal/config"
	"witnessgate/internal/logging"
	"witnessgate/internal/petstate"
	"witnessgate/internal/session"
	"witnessgate/internal/store"
	httptransport "witnessgate/internal/transport/http"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	logging.Init(cfg.Log)

	st, err := store.New(cfg.Server.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("store init failed")
	}
	if err := st.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("db ping failed")
	}
	if err := st.EnsureSchema(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("ensure schema failed")
	}

	chainClient, err := newChainClient(cfg.Server)
	if err != nil {
		log.Fatal().Err(err).Msg("chain client init failed")
	}

	chainDeadline := time.Duration(cfg.Server.ChainCallTimeoutS) * time.Second
	orchestrator := petstate.New(st, chainClient, chainDeadline)

	submitter := batch.New(st, chainClient, chainDeadline, 8)
	submitter.StartScheduler(context.Background(), cfg.Server.BatchScheduleHour)

	sessionServer := session.NewServer(
		st, chainClient, orchestrator,
		time.Duration(cfg.Server.SessionIdleTimeoutS)*time.Second,
		time.Duration(cfg.Server.SessionPingIntervalS)*time.Second,
		cfg.Server.SessionSendBuffer,
	)

	apiRouter := httptransport.NewRouter(st, cfg.Server, submitter)
	httptransport.LogRoutes(apiRouter)

	wsMux := http.NewServeMux()
	wsMux.Handle("/ws", sessionServer)

	apiServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           apiRouter,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	if cfg.Server.WSAddr == cfg.Server.HTTPAddr {
		apiRouter.Handle("/ws", sessionServer)
		log.Info().Str("addr", cfg.Server.HTTPAddr).Msg("http+ws listening on shared port")
		log.Fatal().Err(apiServer.ListenAndServe()).Msg("server stopped")
		return
	}

	wsServer := &http.Server{
		Addr:              cfg.Server.WSAddr,
		Handler:           wsMux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.WSAddr).Msg("websocket listening")
		log.Fatal().Err(wsServer.ListenAndServe()).Msg("websocket server stopped")
	}()

	log.Info().Str("addr", cfg.Server.HTTPAddr).Msg("http listening")
	log.Fatal().Err(apiServer.ListenAndServe()).Msg("server stopped")
}

// newChainClient installs a DisabledClient when spec.md §6's chain
// config variables are absent, so the rest of the system runs
// local-only with no special-casing.
func newChainClient(cfg config.ServerConfig) (chain.Client, error) {
	if !cfg.ChainConfigured() {
		log.Warn().Msg("chain config absent, running local-only")
		return chain.DisabledClient{}, nil
	}

	keyBytes, err := hex.DecodeString(cfg.ChainSigningKey)
	if err != nil {
		return nil, err
	}

	callTimeout := time.Duration(cfg.ChainCallTimeoutS) * time.Second
	return chain.NewHTTPClient(chain.Config{
		BaseURL:         cfg.ChainBaseURL,
		NetworkID:       cfg.NetworkID,
		ChainPackageID:  cfg.ChainPackageID,
		ChainRegistryID: cfg.ChainRegistryID,
		SigningKey:      ed25519.PrivateKey(keyBytes),
	}, callTimeout), nil
}
