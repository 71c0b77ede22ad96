package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"supplymatch/internal"
	"supplymatch/internal/catalog"
	"supplymatch/internal/packaging"
	"supplymatch/internal/specs"
	"supplymatch/internal/util"
)

const (
	confidenceCertain     = 100
	confidenceMfrMismatch = 85
	confidenceUOMMismatch = 90
)

type ReferenceSource interface {
	ApprovedMatchesBySKUs(ctx context.Context, skus []string) ([]internal.ApprovedMatch, error)
	ProductsByCodes(ctx context.Context, codes []string) ([]internal.Product, error)
	ActiveProducts(ctx context.Context) ([]internal.Product, error)
}

type candidate struct {
	product internal.Product
	specs   specs.Set
}

// Reference holds the read-only data one matching run works against. It is
// built once before any item is matched and never changes afterwards, so a
// single Reference can be shared by concurrent callers of Match.
type Reference struct {
	approved map[string]internal.ApprovedMatch
	codes    *catalog.Index
	active   []candidate
	// byApplication maps each distinct product type to the positions in active carrying it.
	byApplication map[string][]int
}

// LoadReference fetches the approved overrides and code candidates for items
// plus every active product, and precomputes product specification sets.
func LoadReference(ctx context.Context, src ReferenceSource, items []internal.LineItem) (*Reference, error) {
	codes := lookupCodes(items)

	approved, err := src.ApprovedMatchesBySKUs(ctx, codes)
	if err != nil {
		return nil, fmt.Errorf("fetch approved matches: %w", err)
	}
	products, err := src.ProductsByCodes(ctx, codes)
	if err != nil {
		return nil, fmt.Errorf("fetch products by code: %w", err)
	}
	active, err := src.ActiveProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch active products: %w", err)
	}
	return NewReference(approved, products, active), nil
}

func NewReference(approved []internal.ApprovedMatch, byCode, active []internal.Product) *Reference {
	ref := &Reference{
		approved:      make(map[string]internal.ApprovedMatch, len(approved)),
		codes:         catalog.BuildIndex(byCode),
		active:        make([]candidate, 0, len(active)),
		byApplication: map[string][]int{},
	}
	for _, m := range approved {
		ref.approved[util.NormalizeCode(m.ExternalSKU)] = m
	}
	for _, p := range active {
		set := specs.FromText(p.SpecText())
		ref.active = append(ref.active, candidate{product: p, specs: set})
		if app := set.Get(specs.KeyApplication); app != "" {
			ref.byApplication[app] = append(ref.byApplication[app], len(ref.active)-1)
		}
	}
	return ref
}

func lookupCodes(items []internal.LineItem) []string {
	var out []string
	seen := map[string]bool{}
	add := func(s string) {
		n := util.NormalizeCode(s)
		if n == "" || seen[n] {
			return
		}
		seen[n] = true
		out = append(out, s)
	}
	for _, it := range items {
		add(it.EffectiveMfr())
		add(util.Deref(it.EnrichedMfrSKU))
	}
	return out
}

// Match classifies one item. Tiers are tried in order: approved override,
// exact manufacturer code, then specification similarity.
func (r *Reference) Match(it internal.LineItem) internal.MatchOutcome {
	effective := it.EffectiveMfr()
	enrichedSKU := util.Deref(it.EnrichedMfrSKU)

	if m, ok := r.approvedFor(effective, enrichedSKU); ok {
		id := m.ProductID
		return internal.MatchOutcome{
			Status:           internal.StatusPreApproved,
			Confidence:       confidenceCertain,
			MatchedProductID: &id,
			Note:             util.StringPtr("Pre-approved match"),
		}
	}

	if out, ok := r.matchCode(it, effective, enrichedSKU); ok {
		return out
	}

	if out, ok := r.matchSpecs(it); ok {
		return out
	}

	return internal.MatchOutcome{Status: internal.StatusNoMatch}
}

func (r *Reference) approvedFor(codes ...string) (internal.ApprovedMatch, bool) {
	for _, c := range codes {
		n := util.NormalizeCode(c)
		if n == "" {
			continue
		}
		if m, ok := r.approved[n]; ok {
			return m, true
		}
	}
	return internal.ApprovedMatch{}, false
}

func (r *Reference) matchCode(it internal.LineItem, effective, enrichedSKU string) (internal.MatchOutcome, bool) {
	candidates := r.codes.Lookup(effective)
	if len(candidates) == 0 && util.NormalizeCode(enrichedSKU) != util.NormalizeCode(effective) {
		candidates = r.codes.Lookup(enrichedSKU)
	}
	if len(candidates) == 0 {
		return internal.MatchOutcome{}, false
	}

	if mfr := util.Deref(it.EnrichedManufacturer); mfr != "" {
		kept := make([]internal.Product, 0, len(candidates))
		for _, p := range candidates {
			if p.ManufacturerName == "" || manufacturerOverlaps(mfr, p.ManufacturerName) {
				kept = append(kept, p)
			}
		}
		if len(kept) == 0 {
			p := candidates[0]
			return codeOutcome(internal.StatusFuzzy, confidenceMfrMismatch, p,
				fmt.Sprintf("Code match but manufacturer differs (item: %s, product: %s)", mfr, p.ManufacturerName)), true
		}
		candidates = kept
	}

	itemUOM := packaging.CanonicalUOM(it.UOM)
	for _, p := range candidates {
		if itemUOM != "" && packaging.CanonicalUOM(p.PackageType) == itemUOM {
			return codeOutcome(internal.StatusExact, confidenceCertain, p, "Exact manufacturer item code match"), true
		}
	}
	p := candidates[0]
	return codeOutcome(internal.StatusFuzzy, confidenceUOMMismatch, p,
		fmt.Sprintf("Code match but UOM differs (item: %s, product: %s)", displayUOM(it.UOM), displayUOM(p.PackageType))), true
}

func codeOutcome(status internal.MatchStatus, confidence int, p internal.Product, note string) internal.MatchOutcome {
	id := p.ID
	return internal.MatchOutcome{Status: status, Confidence: confidence, MatchedProductID: &id, Note: &note}
}

func displayUOM(u string) string {
	if strings.TrimSpace(u) == "" {
		return "none"
	}
	return strings.ToUpper(strings.TrimSpace(u))
}

// manufacturerOverlaps is true when either name contains the other or both
// start with the same word.
func manufacturerOverlaps(a, b string) bool {
	la := strings.ToLower(strings.TrimSpace(a))
	lb := strings.ToLower(strings.TrimSpace(b))
	if la == "" || lb == "" {
		return false
	}
	if strings.Contains(la, lb) || strings.Contains(lb, la) {
		return true
	}
	return util.FirstWord(la) == util.FirstWord(lb)
}

// ItemSpecs builds the specification set used to match an item: the catalog
// attribute map layered over whatever the item text yields.
func ItemSpecs(it internal.LineItem) specs.Set {
	text := util.Deref(it.EnrichedName) + " " + util.Deref(it.EnrichedDescription)
	if strings.TrimSpace(text) == "" {
		text = it.Description
	}
	return specs.Resolve(it.EnrichedSpecs, text)
}

func (r *Reference) matchSpecs(it internal.LineItem) (internal.MatchOutcome, bool) {
	source := ItemSpecs(it)
	app := source.Get(specs.KeyApplication)
	if app == "" {
		return internal.MatchOutcome{}, false
	}

	best, bestScore := -1, 0
	for _, pos := range r.candidatesFor(app) {
		score := specs.Score(source, r.active[pos].specs)
		if score > bestScore {
			best, bestScore = pos, score
		}
	}
	if best < 0 || bestScore < specs.BaseScore {
		return internal.MatchOutcome{}, false
	}

	c := r.active[best]
	id := c.product.ID
	return internal.MatchOutcome{
		Status:           internal.StatusFuzzy,
		Confidence:       bestScore,
		MatchedProductID: &id,
		Note:             util.StringPtr(specNote(specs.MatchedKeys(source, c.specs), bestScore)),
	}, true
}

// candidatesFor returns, in load order, the positions of active products whose
// type is compatible with app. Products of any other type would score 0.
func (r *Reference) candidatesFor(app string) []int {
	var out []int
	for other, positions := range r.byApplication {
		if specs.Compatible(app, other) {
			out = append(out, positions...)
		}
	}
	sort.Ints(out)
	return out
}

func specNote(keys []specs.Key, score int) string {
	if len(keys) == 0 {
		return fmt.Sprintf("Spec match on product type only (score %d)", score)
	}
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, strings.ToLower(k.Label()))
	}
	return fmt.Sprintf("Spec match on %s (score %d)", strings.Join(names, ", "), score)
}
