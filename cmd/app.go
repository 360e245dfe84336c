package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/parlemonde/clap/auth"
	websocketServer "github.com/parlemonde/clap/server/websocket"
	"github.com/parlemonde/clap/service"
	store "github.com/parlemonde/clap/storage/memory"
)

const insecureFallbackSecret = "1234"

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	fs := pflag.NewFlagSet("main", pflag.ContinueOnError)

	var (
		listenAddr = fs.StringP("listen-addr", "a", ":9000", "relay listen address")
		logLevel   = fs.StringP("log-level", "l", "debug", "log level")
	)
	if err := fs.Parse(os.Args[1:]); err != nil {
		logger.Fatal().Err(err).Msg("failed to parse command line arguments")
	}

	lvl, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse loglevel")
	}
	logger = logger.Level(lvl)

	// Missing .env is fine, real env vars take over in deployment.
	_ = godotenv.Load()

	secret := os.Getenv("APP_SECRET")
	if secret == "" {
		secret = insecureFallbackSecret
		logger.Warn().Msg("APP_SECRET is not set, using insecure development fallback")
	}

	svc := service.NewService(service.Config{
		Registry: store.NewStore(),
		Logger:   &logger,
	})
	wsSrv := websocketServer.NewServer(websocketServer.Config{
		Logger:       &logger,
		RelayService: svc,
		Verifier:     auth.NewVerifier(secret),
		ListenAddr:   *listenAddr,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		wg   = &sync.WaitGroup{}
		errc = make(chan error, 1)
	)
	wg.Add(1)
	go wsSrv.Run(ctx, wg, errc)

	select {
	case err = <-errc:
		logger.Error().Err(err).Msg("unexpected server error, shutting down")
	case <-ctx.Done():
		logger.Warn().Msg("interrupted")
	}
	cancel()
	wg.Wait()
}
