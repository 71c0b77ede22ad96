package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"supplymatch/internal"
)

// Store is everything one matching run reads and writes.
type Store interface {
	CatalogLookup
	ReferenceSource
	LineItemsByUpload(ctx context.Context, uploadID string) ([]internal.LineItem, error)
	UpdateLineItemEnrichment(ctx context.Context, it internal.LineItem) error
	UpdateLineItemMatch(ctx context.Context, id int64, m internal.MatchOutcome) error
	UpdateUploadCounters(ctx context.Context, id string, c internal.UploadCounters) error
}

type Options struct {
	LookupBatch int
	// Workers bounds concurrent item writes; 1 writes sequentially.
	Workers int
}

type RunStats struct {
	UploadID string                       `json:"upload_id"`
	Items    int                          `json:"items"`
	Enriched int                          `json:"enriched"`
	Counts   map[internal.MatchStatus]int `json:"counts"`
	Counters internal.UploadCounters      `json:"counters"`
	Timings  map[string]float64           `json:"timings"`
}

// CountsByName flattens Counts for the run log.
func (s RunStats) CountsByName() map[string]int {
	out := map[string]int{"items": s.Items, "enriched": s.Enriched}
	for st, n := range s.Counts {
		out[string(st)] = n
	}
	return out
}

// RunMatching enriches and matches every item of an upload, then stores each
// outcome and the upload counters. All reference data is read before the first
// item is classified. Any failure aborts the run; write failures are joined so
// none is lost. Runs are idempotent for unchanged inputs.
func RunMatching(ctx context.Context, store Store, uploadID string, opts Options, log zerolog.Logger) (RunStats, error) {
	start := time.Now()
	stats := RunStats{UploadID: uploadID, Counts: map[internal.MatchStatus]int{}, Timings: map[string]float64{}}
	lap := func(name string, since time.Time) { stats.Timings[name] = float64(time.Since(since).Milliseconds()) }

	items, err := store.LineItemsByUpload(ctx, uploadID)
	if err != nil {
		return stats, fmt.Errorf("load items: %w", err)
	}
	stats.Items = len(items)

	t := time.Now()
	stats.Enriched, err = Enrich(ctx, store, items, opts.LookupBatch)
	if err != nil {
		return stats, err
	}
	if err := eachItem(ctx, items, opts.Workers, func(ctx context.Context, it internal.LineItem) error {
		if it.CatalogID == nil {
			return nil
		}
		return store.UpdateLineItemEnrichment(ctx, it)
	}); err != nil {
		return stats, fmt.Errorf("store enrichment: %w", err)
	}
	lap("enrichMs", t)

	t = time.Now()
	ref, err := LoadReference(ctx, store, items)
	if err != nil {
		return stats, err
	}
	lap("referenceMs", t)

	t = time.Now()
	outcomes := make([]internal.MatchOutcome, len(items))
	for i, it := range items {
		outcomes[i] = ref.Match(it)
	}
	lap("matchMs", t)

	t = time.Now()
	byID := make(map[int64]internal.MatchOutcome, len(items))
	for i, it := range items {
		byID[it.ID] = outcomes[i]
	}
	if err := eachItem(ctx, items, opts.Workers, func(ctx context.Context, it internal.LineItem) error {
		return store.UpdateLineItemMatch(ctx, it.ID, byID[it.ID])
	}); err != nil {
		return stats, fmt.Errorf("store outcomes: %w", err)
	}
	lap("writeMs", t)

	for _, o := range outcomes {
		stats.Counts[o.Status]++
		if o.Status.Matched() {
			stats.Counters.Matched++
		} else {
			stats.Counters.Review++
		}
	}
	if err := store.UpdateUploadCounters(ctx, uploadID, stats.Counters); err != nil {
		return stats, fmt.Errorf("update counters: %w", err)
	}
	lap("totalMs", start)

	log.Info().
		Str("upload", uploadID).
		Int("items", stats.Items).
		Int("enriched", stats.Enriched).
		Int("matched", stats.Counters.Matched).
		Int("review", stats.Counters.Review).
		Dur("elapsed", time.Since(start)).
		Msg("matching run done")
	return stats, nil
}

// eachItem applies fn to every item with at most workers calls in flight and
// returns every failure joined together.
func eachItem(ctx context.Context, items []internal.LineItem, workers int, fn func(context.Context, internal.LineItem) error) error {
	if workers <= 1 {
		for _, it := range items {
			if err := fn(ctx, it); err != nil {
				return fmt.Errorf("item %d: %w", it.ID, err)
			}
		}
		return nil
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	var g errgroup.Group
	g.SetLimit(workers)
	for _, it := range items {
		g.Go(func() error {
			if err := fn(ctx, it); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("item %d: %w", it.ID, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
