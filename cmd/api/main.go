package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/digital-twin/client/internal/config"
	"github.com/zhouzirui/digital-twin/client/internal/handler"
	"github.com/zhouzirui/digital-twin/client/internal/service/asset"
	"github.com/zhouzirui/digital-twin/client/internal/service/chat"
	"github.com/zhouzirui/digital-twin/client/internal/service/responder"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file, continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)

	client := responder.NewClient(cfg.Responder.BaseURL, responder.WithTimeout(cfg.Responder.Timeout))
	controller := chat.NewController(client,
		chat.WithRequestTimeout(cfg.Responder.Timeout),
		chat.WithLogger(log.With().Str("component", "conversation").Logger()),
	)
	probe := asset.NewProbe(cfg.Assets.AvatarURL, nil)

	log.Info().
		Str("endpoint", client.Endpoint()).
		Dur("timeout", cfg.Responder.Timeout).
		Str("avatar_url", probe.URL()).
		Msg("conversation controller ready")

	router := handler.NewRouter(controller, probe, cfg.Server.AllowedOrigins)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("digital twin bridge listening")
	if err := runServer(ctx, srv); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
