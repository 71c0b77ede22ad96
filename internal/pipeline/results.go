package pipeline

import (
	"context"
	"fmt"

	"supplymatch/internal"
)

type ResultStats struct {
	Total       int `json:"total"`
	Exact       int `json:"exact"`
	PreApproved int `json:"pre_approved"`
	Fuzzy       int `json:"fuzzy"`
	NoMatch     int `json:"no_match"`
	NeedsReview int `json:"needs_review"`
	Approved    int `json:"approved"`
	Rejected    int `json:"rejected"`
	Matched     int `json:"matched"`
}

// MatchResults groups an upload's items by how they were resolved. Pending
// items are listed with no_match; NeedsReview is fuzzy followed by no_match.
type MatchResults struct {
	Upload      internal.Upload            `json:"upload"`
	Exact       []internal.ItemWithProduct `json:"exact"`
	PreApproved []internal.ItemWithProduct `json:"pre_approved"`
	Fuzzy       []internal.ItemWithProduct `json:"fuzzy"`
	NoMatch     []internal.ItemWithProduct `json:"no_match"`
	NeedsReview []internal.ItemWithProduct `json:"needs_review"`
	Approved    []internal.ItemWithProduct `json:"approved"`
	Rejected    []internal.ItemWithProduct `json:"rejected"`
	Stats       ResultStats                `json:"stats"`
}

func Categorize(items []internal.ItemWithProduct) (MatchResults, error) {
	res := MatchResults{
		Exact:       []internal.ItemWithProduct{},
		PreApproved: []internal.ItemWithProduct{},
		Fuzzy:       []internal.ItemWithProduct{},
		NoMatch:     []internal.ItemWithProduct{},
		NeedsReview: []internal.ItemWithProduct{},
		Approved:    []internal.ItemWithProduct{},
		Rejected:    []internal.ItemWithProduct{},
	}
	for _, it := range items {
		switch it.MatchStatus {
		case internal.StatusExact:
			res.Exact = append(res.Exact, it)
		case internal.StatusPreApproved:
			res.PreApproved = append(res.PreApproved, it)
		case internal.StatusFuzzy:
			res.Fuzzy = append(res.Fuzzy, it)
		case internal.StatusNoMatch, internal.StatusPending:
			res.NoMatch = append(res.NoMatch, it)
		case internal.StatusApproved:
			res.Approved = append(res.Approved, it)
		case internal.StatusRejected:
			res.Rejected = append(res.Rejected, it)
		default:
			return MatchResults{}, fmt.Errorf("item %d: unknown match status %q", it.ID, it.MatchStatus)
		}
	}
	res.NeedsReview = append(append(res.NeedsReview, res.Fuzzy...), res.NoMatch...)

	res.Stats = ResultStats{
		Total:       len(items),
		Exact:       len(res.Exact),
		PreApproved: len(res.PreApproved),
		Fuzzy:       len(res.Fuzzy),
		NoMatch:     len(res.NoMatch),
		NeedsReview: len(res.NeedsReview),
		Approved:    len(res.Approved),
		Rejected:    len(res.Rejected),
	}
	res.Stats.Matched = res.Stats.Exact + res.Stats.PreApproved + res.Stats.Approved
	return res, nil
}

func (s *ProcessingService) Results(ctx context.Context, uploadID string) (MatchResults, error) {
	upload, err := s.db.GetUpload(ctx, uploadID)
	if err != nil {
		return MatchResults{}, err
	}
	items, err := s.db.ItemsWithProducts(ctx, uploadID)
	if err != nil {
		return MatchResults{}, err
	}
	res, err := Categorize(items)
	if err != nil {
		return MatchResults{}, err
	}
	res.Upload = upload
	return res, nil
}
