package connectors

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"supplymatch/internal"
	"supplymatch/internal/storage"
)

type MailStoreService struct {
	db         *storage.DB
	rawMailDir string
}

func NewMailStoreService(db *storage.DB, rawMailDir string) *MailStoreService {
	return &MailStoreService{db: db, rawMailDir: rawMailDir}
}

// Store writes msg to <rawMailDir>/<sha256>.eml once and records it in the
// inbox. A message seen before keeps its current status.
func (s *MailStoreService) Store(ctx context.Context, msg internal.FetchedMailMessage) (internal.InboxMessage, bool, error) {
	existing, err := s.db.GetInboxMessageByProviderID(ctx, msg.Provider, msg.MessageID)
	if err != nil {
		return internal.InboxMessage{}, false, err
	}
	if existing != nil {
		return *existing, false, nil
	}

	hashBytes := sha256.Sum256(msg.Raw)
	hash := hex.EncodeToString(hashBytes[:])

	if err := os.MkdirAll(s.rawMailDir, 0o755); err != nil {
		return internal.InboxMessage{}, false, err
	}

	rawPath := filepath.Join(s.rawMailDir, hash+".eml")
	if _, err := os.Stat(rawPath); os.IsNotExist(err) {
		if err := os.WriteFile(rawPath, msg.Raw, 0o644); err != nil {
			return internal.InboxMessage{}, false, err
		}
	}

	stored, err := s.db.UpsertInboxMessage(ctx, msg.Provider, msg.MessageID, msg.Subject, msg.From, msg.ReceivedAt, hash, rawPath, storage.InboxFetched)
	return stored, err == nil, err
}
