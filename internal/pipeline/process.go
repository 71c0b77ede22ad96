package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"supplymatch/internal"
	"supplymatch/internal/config"
	"supplymatch/internal/ingest"
	"supplymatch/internal/storage"
)

type ProcessingService struct {
	db  *storage.DB
	cfg config.Config
	log zerolog.Logger
}

func NewProcessingService(db *storage.DB, cfg config.Config, log zerolog.Logger) *ProcessingService {
	return &ProcessingService{db: db, cfg: cfg, log: log.With().Str("component", "pipeline").Logger()}
}

// ErrDecode marks uploads whose content could not be read as a report.
var ErrDecode = errors.New("cannot decode")

type ProcessResult struct {
	Upload internal.Upload `json:"upload"`
	Stats  RunStats        `json:"stats"`
}

func (s *ProcessingService) options() Options {
	return Options{LookupBatch: s.cfg.CatalogLookupBatch, Workers: s.cfg.MatchWriteWorkers}
}

// ProcessUpload decodes a usage report, stores its line items and runs
// enrichment and matching over them. A matching failure leaves the upload in
// the failed state and is returned.
func (s *ProcessingService) ProcessUpload(ctx context.Context, filename string, content []byte) (ProcessResult, error) {
	rows, err := ingest.Decode(filename, content)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("%w %s: %w", ErrDecode, filename, err)
	}
	inf := ingest.Infer(rows)

	id := uuid.NewString()
	upload := internal.Upload{
		ID:               id,
		Filename:         id + strings.ToLower(filepath.Ext(filename)),
		OriginalFilename: filepath.Base(filename),
		RowCount:         len(inf.Items),
		Status:           internal.UploadMatching,
	}
	if err := s.db.CreateUpload(ctx, upload); err != nil {
		return ProcessResult{}, fmt.Errorf("create upload: %w", err)
	}
	s.log.Info().
		Str("upload", id).
		Str("file", upload.OriginalFilename).
		Int("headerRow", inf.HeaderRow).
		Int("items", len(inf.Items)).
		Msg("upload ingested")

	if err := s.db.InsertLineItems(ctx, id, inf.Items, s.cfg.ItemInsertBatch); err != nil {
		_ = s.db.SetUploadStatus(ctx, id, internal.UploadFailed)
		return ProcessResult{Upload: upload}, err
	}

	stats, err := s.Rematch(ctx, id)
	if err != nil {
		upload.Status = internal.UploadFailed
		return ProcessResult{Upload: upload, Stats: stats}, err
	}
	upload, err = s.db.GetUpload(ctx, id)
	return ProcessResult{Upload: upload, Stats: stats}, err
}

// Rematch reruns enrichment and matching for an upload that is already stored.
func (s *ProcessingService) Rematch(ctx context.Context, uploadID string) (RunStats, error) {
	if _, err := s.db.GetUpload(ctx, uploadID); err != nil {
		return RunStats{}, err
	}
	if err := s.db.SetUploadStatus(ctx, uploadID, internal.UploadMatching); err != nil {
		return RunStats{}, err
	}

	stats, err := RunMatching(ctx, s.db, uploadID, s.options(), s.log)
	if err != nil {
		s.log.Error().Err(err).Str("upload", uploadID).Msg("matching failed")
		_ = s.db.SetUploadStatus(ctx, uploadID, internal.UploadFailed)
		return stats, fmt.Errorf("could not complete matching: %w", err)
	}
	if err := s.db.SetUploadStatus(ctx, uploadID, internal.UploadReview); err != nil {
		return stats, err
	}
	if err := s.db.InsertRun(ctx, uuid.NewString(), uploadID, stats.Timings, stats.CountsByName()); err != nil {
		s.log.Warn().Err(err).Str("upload", uploadID).Msg("run log not written")
	}
	return stats, nil
}

// refreshCounters recomputes an upload's counters from the persisted statuses.
func (s *ProcessingService) refreshCounters(ctx context.Context, uploadID string) (internal.UploadCounters, error) {
	counts, err := s.db.StatusCounts(ctx, uploadID)
	if err != nil {
		return internal.UploadCounters{}, err
	}
	c := countersFrom(counts)
	return c, s.db.UpdateUploadCounters(ctx, uploadID, c)
}

// countersFrom treats rejected items as resolved: they count toward neither total.
func countersFrom(counts map[internal.MatchStatus]int) internal.UploadCounters {
	var c internal.UploadCounters
	for st, n := range counts {
		switch {
		case st.Matched():
			c.Matched += n
		case st != internal.StatusRejected:
			c.Review += n
		}
	}
	return c
}
