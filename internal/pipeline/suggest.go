package pipeline

import (
	"context"
	"sort"

	"supplymatch/internal"
	"supplymatch/internal/specs"
)

type Suggestion struct {
	Product   internal.Product  `json:"product"`
	Score     int               `json:"score"`
	Alignment []specs.Alignment `json:"alignment"`
}

// Suggest ranks products against a catalog entry by specification score,
// keeping those at or above minScore, best first. Equal scores keep product order.
func Suggest(entry internal.CatalogEntry, products []internal.Product, minScore, limit int) []Suggestion {
	source := specs.Resolve(entry.Specifications, entry.Name)
	out := make([]Suggestion, 0)
	for _, p := range products {
		candidate := specs.FromText(p.SpecText())
		score := specs.Score(source, candidate)
		if score <= 0 || score < minScore {
			continue
		}
		out = append(out, Suggestion{Product: p, Score: score, Alignment: specs.Align(source, candidate)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Suggestions loads the catalog entry for sku and ranks the active products against it.
func (s *ProcessingService) Suggestions(ctx context.Context, sku string) (internal.CatalogEntry, []Suggestion, error) {
	entry, err := s.db.CatalogBySKU(ctx, sku)
	if err != nil {
		return internal.CatalogEntry{}, nil, err
	}
	products, err := s.db.ActiveProducts(ctx)
	if err != nil {
		return entry, nil, err
	}
	return entry, Suggest(entry, products, s.cfg.SuggestMinScore, s.cfg.SuggestLimit), nil
}
