package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"supplymatch/internal/config"
	"supplymatch/internal/listener"
	"supplymatch/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)
	logger := config.SetupLogger(cfg)

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	svc := listener.NewService(db, cfg, logger)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info().Str("provider", cfg.MailListenerProvider).Int("intervalSec", cfg.MailListenerIntervalSec).Msg("report listener started")
	must(svc.Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
