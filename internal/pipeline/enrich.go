package pipeline

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"supplymatch/internal"
	"supplymatch/internal/util"
)

type CatalogLookup interface {
	CatalogByIDs(ctx context.Context, ids []int64) ([]internal.CatalogEntry, error)
}

// Enrich copies master-catalog data onto every item whose item number resolves
// to a catalog entry and reports how many items were enriched. Items left
// unresolved keep their enrichment fields nil.
func Enrich(ctx context.Context, lookup CatalogLookup, items []internal.LineItem, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 500
	}

	ids := make([]int64, 0, len(items))
	seen := map[int64]bool{}
	for _, it := range items {
		id, ok := parseItemNumber(it.ItemNumber)
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	byID := make(map[int64]internal.CatalogEntry, len(ids))
	for start := 0; start < len(ids); start += batchSize {
		end := min(start+batchSize, len(ids))
		entries, err := lookup.CatalogByIDs(ctx, ids[start:end])
		if err != nil {
			return 0, fmt.Errorf("fetch catalog entries: %w", err)
		}
		for _, e := range entries {
			byID[e.ItemID] = e
		}
	}

	enriched := 0
	for i := range items {
		id, ok := parseItemNumber(items[i].ItemNumber)
		if !ok {
			continue
		}
		entry, ok := byID[id]
		if !ok {
			continue
		}
		applyEntry(&items[i], entry)
		enriched++
	}
	return enriched, nil
}

func applyEntry(it *internal.LineItem, e internal.CatalogEntry) {
	id := e.ItemID
	it.CatalogID = &id
	it.EnrichedName = util.NonEmptyPtr(e.Name)
	it.EnrichedDescription = util.NonEmptyPtr(e.ShortDescription)
	it.EnrichedManufacturer = util.NonEmptyPtr(e.Manufacturer)
	it.EnrichedBrand = util.NonEmptyPtr(e.Brand)
	it.EnrichedCategory = util.NonEmptyPtr(e.Category)
	it.EnrichedSpecs = e.Specifications
	it.EnrichedMfrSKU = util.NonEmptyPtr(e.ManufacturerSKU)
	if strings.TrimSpace(it.MfrNumber) == "" && e.ManufacturerSKU != "" {
		it.MfrNumber = e.ManufacturerSKU
	}
}

// parseItemNumber accepts integer item numbers, including spreadsheet floats like "1001.0".
func parseItemNumber(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return id, id > 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 || f != math.Trunc(f) || f > math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}
