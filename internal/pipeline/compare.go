package pipeline

import (
	"context"
	"errors"

	"supplymatch/internal"
	"supplymatch/internal/compare"
)

// Pricing carries the markups a comparison is priced with. A nil Markup uses
// the configured default; Markups overrides it per line item id.
type Pricing struct {
	Markup  *float64          `json:"markup"`
	Markups map[int64]float64 `json:"markups"`
}

var ErrInvalidMarkup = errors.New("invalid markup")

func (p Pricing) Validate() error {
	if p.Markup != nil && *p.Markup < 0 {
		return ErrInvalidMarkup
	}
	for _, m := range p.Markups {
		if m < 0 {
			return ErrInvalidMarkup
		}
	}
	return nil
}

// Comparison prices an upload's confirmed matches.
func (s *ProcessingService) Comparison(ctx context.Context, uploadID string, pricing Pricing) (internal.Upload, compare.Comparison, error) {
	if err := pricing.Validate(); err != nil {
		return internal.Upload{}, compare.Comparison{}, err
	}
	upload, err := s.db.GetUpload(ctx, uploadID)
	if err != nil {
		return internal.Upload{}, compare.Comparison{}, err
	}
	items, err := s.db.ItemsWithProducts(ctx, uploadID)
	if err != nil {
		return upload, compare.Comparison{}, err
	}
	opts := compare.Options{DefaultMarkup: s.cfg.DefaultMarkupPct, Markups: pricing.Markups}
	if pricing.Markup != nil {
		opts.DefaultMarkup = *pricing.Markup
	}
	return upload, compare.Compare(items, opts), nil
}

func (s *ProcessingService) Proposal(ctx context.Context, uploadID string, pricing Pricing) (compare.Proposal, error) {
	upload, c, err := s.Comparison(ctx, uploadID, pricing)
	if err != nil {
		return compare.Proposal{}, err
	}
	return compare.BuildProposal(compare.CustomerName(upload.OriginalFilename), c, s.cfg.AnnualizeFactor), nil
}
