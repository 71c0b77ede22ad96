package connectors

import (
	"context"

	"github.com/rs/zerolog"

	"supplymatch/internal/storage"
)

type FetchService struct {
	connector MailConnector
	store     *MailStoreService
	log       zerolog.Logger
}

type FetchResult struct {
	Fetched int
	Stored  int
}

func NewFetchService(db *storage.DB, rawMailDir string, connector MailConnector, log zerolog.Logger) *FetchService {
	return &FetchService{
		connector: connector,
		store:     NewMailStoreService(db, rawMailDir),
		log:       log.With().Str("component", "mail-fetch").Logger(),
	}
}

func (s *FetchService) FetchAndStore(ctx context.Context, label string, max int) (FetchResult, error) {
	messages, err := s.connector.FetchInbox(ctx, label, max)
	if err != nil {
		return FetchResult{}, err
	}

	stored := 0
	for _, msg := range messages {
		row, isNew, err := s.store.Store(ctx, msg)
		if err != nil {
			return FetchResult{Fetched: len(messages), Stored: stored}, err
		}
		if isNew {
			stored++
			s.log.Debug().Int("inbox", row.ID).Str("subject", row.Subject).Msg("message stored")
		}
	}

	return FetchResult{Fetched: len(messages), Stored: stored}, nil
}
