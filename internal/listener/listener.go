// Package listener polls a mailbox for usage reports and matches every report
// it finds.
package listener

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"supplymatch/internal/config"
	"supplymatch/internal/connectors"
	gmailconnector "supplymatch/internal/connectors/gmail"
	imapconnector "supplymatch/internal/connectors/imap"
	"supplymatch/internal/pipeline"
	"supplymatch/internal/storage"
)

type Service struct {
	db  *storage.DB
	cfg config.Config
	log zerolog.Logger
	// connector overrides the configured provider when set.
	connector connectors.MailConnector
}

func NewService(db *storage.DB, cfg config.Config, log zerolog.Logger) *Service {
	return &Service{db: db, cfg: cfg, log: log.With().Str("component", "listener").Logger()}
}

// Run repeats a fetch-and-process cycle until ctx ends. A failed cycle is
// logged and retried on the next tick.
func (s *Service) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.MailListenerIntervalSec) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	for {
		if err := s.RunCycle(ctx); err != nil {
			s.log.Error().Err(err).Msg("listener cycle failed")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

type CycleResult struct {
	Fetched int
	Stored  int
	Mails   int
	Uploads int
}

func (s *Service) RunCycle(ctx context.Context) error {
	_, err := s.cycle(ctx)
	return err
}

func (s *Service) cycle(ctx context.Context) (CycleResult, error) {
	provider := strings.ToLower(strings.TrimSpace(s.cfg.MailListenerProvider))
	mailConnector := s.connector
	if mailConnector == nil {
		c, err := MakeConnector(ctx, s.cfg, provider)
		if err != nil {
			return CycleResult{}, err
		}
		mailConnector = c
	}

	fetchService := connectors.NewFetchService(s.db, s.cfg.RawMailDir, mailConnector, s.log)
	fetched, err := fetchService.FetchAndStore(ctx, s.cfg.MailListenerLabel, s.cfg.MailListenerFetchMax)
	if err != nil {
		return CycleResult{}, err
	}

	processor := pipeline.NewProcessingService(s.db, s.cfg, s.log)
	mails, uploads, err := processor.ProcessPending(ctx, s.cfg.MailListenerProcessBatch, "")
	res := CycleResult{Fetched: fetched.Fetched, Stored: fetched.Stored, Mails: mails, Uploads: uploads}
	if err != nil {
		return res, err
	}

	s.log.Info().
		Str("provider", provider).
		Int("fetched", res.Fetched).
		Int("stored", res.Stored).
		Int("mails", res.Mails).
		Int("uploads", res.Uploads).
		Msg("listener cycle done")
	return res, nil
}

func MakeConnector(ctx context.Context, cfg config.Config, provider string) (connectors.MailConnector, error) {
	switch provider {
	case "gmail":
		return gmailconnector.NewConnector(ctx, cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported listener provider: %s", provider)
	}
}
