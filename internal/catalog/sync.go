package catalog

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"supplymatch/internal"
	"supplymatch/internal/config"
	"supplymatch/internal/storage"
)

type source interface {
	ScrollAll(ctx context.Context) ([]internal.CatalogEntry, error)
	Incremental(ctx context.Context, mode string) ([]internal.CatalogEntry, error)
}

// SyncService mirrors the master catalog into the local master_catalog table.
type SyncService struct {
	db     *storage.DB
	client source
	log    zerolog.Logger
}

func NewSyncService(db *storage.DB, cfg config.Config, log zerolog.Logger) *SyncService {
	return &SyncService{db: db, client: NewClient(cfg), log: log.With().Str("component", "catalog-sync").Logger()}
}

func (s *SyncService) InitialSync(ctx context.Context) (int, error) {
	entries, err := s.client.ScrollAll(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.db.UpsertCatalogEntries(ctx, entries); err != nil {
		return 0, err
	}
	_ = s.db.SetMetadata("catalog.last_initial_sync", time.Now().UTC().Format(time.RFC3339))
	s.log.Info().Int("entries", len(entries)).Msg("initial sync done")
	return len(entries), nil
}

func (s *SyncService) IncrementalSync(ctx context.Context, mode string) (int, error) {
	entries, err := s.client.Incremental(ctx, mode)
	if err != nil {
		return 0, err
	}
	if len(entries) > 0 {
		if err := s.db.UpsertCatalogEntries(ctx, entries); err != nil {
			return 0, err
		}
	}
	_ = s.db.SetMetadata("catalog.last_incremental_sync."+mode, time.Now().UTC().Format(time.RFC3339))
	s.log.Info().Str("mode", mode).Int("entries", len(entries)).Msg("incremental sync done")
	return len(entries), nil
}

// SyncStatus summarizes the local mirror: its size and when each sync kind
// last completed. Kinds that never ran are absent.
type SyncStatus struct {
	Entries         int                  `json:"entries"`
	LastInitial     *time.Time           `json:"last_initial_sync,omitempty"`
	LastIncremental map[string]time.Time `json:"last_incremental_sync"`
}

func (s *SyncService) Status(ctx context.Context) (SyncStatus, error) {
	n, err := s.db.CountCatalogEntries(ctx)
	if err != nil {
		return SyncStatus{}, err
	}
	st := SyncStatus{Entries: n, LastIncremental: map[string]time.Time{}}
	if t, ok := s.lastSync("initial_sync"); ok {
		st.LastInitial = &t
	}
	for _, mode := range []string{"day", "hour"} {
		if t, ok := s.lastSync("incremental_sync." + mode); ok {
			st.LastIncremental[mode] = t
		}
	}
	return st, nil
}

func (s *SyncService) lastSync(kind string) (time.Time, bool) {
	v, err := s.db.GetMetadata("catalog.last_" + kind)
	if err != nil || v == nil {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, *v)
	return t, err == nil
}
