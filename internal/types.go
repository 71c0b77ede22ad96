package internal

import "time"

type MatchStatus string

const (
	StatusPending     MatchStatus = "pending"
	StatusExact       MatchStatus = "exact"
	StatusPreApproved MatchStatus = "pre_approved"
	StatusFuzzy       MatchStatus = "fuzzy"
	StatusNoMatch     MatchStatus = "no_match"
	StatusApproved    MatchStatus = "approved"
	StatusRejected    MatchStatus = "rejected"
)

// AllStatuses lists every status in display order.
var AllStatuses = []MatchStatus{
	StatusPending, StatusExact, StatusPreApproved, StatusFuzzy, StatusNoMatch, StatusApproved, StatusRejected,
}

func ParseMatchStatus(s string) (MatchStatus, bool) {
	for _, st := range AllStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// HasProduct reports whether a line item in this status must reference a matched product.
func (s MatchStatus) HasProduct() bool {
	switch s {
	case StatusExact, StatusPreApproved, StatusFuzzy, StatusApproved:
		return true
	default:
		return false
	}
}

// Matched reports whether the status counts as a confirmed match for counters and comparison.
func (s MatchStatus) Matched() bool {
	switch s {
	case StatusExact, StatusPreApproved, StatusApproved:
		return true
	default:
		return false
	}
}

type UploadStatus string

const (
	UploadMatching UploadStatus = "matching"
	UploadReview   UploadStatus = "review"
	UploadFailed   UploadStatus = "failed"
)

type Upload struct {
	ID               string       `json:"id"`
	Filename         string       `json:"filename"`
	OriginalFilename string       `json:"original_filename"`
	RowCount         int          `json:"row_count"`
	Status           UploadStatus `json:"status"`
	MatchedCount     int          `json:"matched_count"`
	ReviewCount      int          `json:"review_count"`
	CreatedAt        time.Time    `json:"created_at"`
}

type LineItem struct {
	ID       int64  `json:"id"`
	UploadID string `json:"upload_id"`
	RowNo    int    `json:"row_no"`

	ItemNumber       string  `json:"item_number"`
	Manufacturer     string  `json:"manufacturer"`
	MfrNumber        string  `json:"mfr_number"`
	Description      string  `json:"description"`
	Contents         string  `json:"contents"`
	UOM              string  `json:"uom"`
	ShipQty          float64 `json:"ship_qty"`
	CostPerUnit      float64 `json:"cost_per_unit"`
	TotalExtPurchase float64 `json:"total_ext_purchase"`
	PercentTotal     float64 `json:"percent_total_purchases"`
	InvoiceCount     int     `json:"invoice_count"`

	CatalogID            *int64            `json:"catalog_id,omitempty"`
	EnrichedName         *string           `json:"enriched_name,omitempty"`
	EnrichedDescription  *string           `json:"enriched_description,omitempty"`
	EnrichedManufacturer *string           `json:"enriched_manufacturer,omitempty"`
	EnrichedBrand        *string           `json:"enriched_brand,omitempty"`
	EnrichedCategory     *string           `json:"enriched_category,omitempty"`
	EnrichedSpecs        map[string]string `json:"enriched_specs,omitempty"`
	EnrichedMfrSKU       *string           `json:"enriched_mfr_sku,omitempty"`

	MatchStatus      MatchStatus `json:"match_status"`
	MatchConfidence  int         `json:"match_confidence"`
	MatchedProductID *int64      `json:"matched_product_id,omitempty"`
	MatchNote        *string     `json:"match_note,omitempty"`
}

// EffectiveMfr is the manufacturer part code used for lookups: the uploaded value,
// or the catalog SKU when the upload left it blank.
func (li LineItem) EffectiveMfr() string {
	if li.MfrNumber != "" {
		return li.MfrNumber
	}
	if li.EnrichedMfrSKU != nil {
		return *li.EnrichedMfrSKU
	}
	return ""
}

// CatalogEntry is a record from the external master catalog.
type CatalogEntry struct {
	ItemID           int64             `json:"item_id"`
	ManufacturerSKU  string            `json:"manufacturer_sku"`
	Name             string            `json:"name"`
	ShortDescription string            `json:"short_description"`
	Manufacturer     string            `json:"manufacturer"`
	Brand            string            `json:"brand"`
	Category         string            `json:"category"`
	Specifications   map[string]string `json:"specifications"`
}

// Product is a record from the internal product master.
type Product struct {
	ID                     int64   `json:"id"`
	ManufacturerItemCode   string  `json:"manufacturer_item_code"`
	ProductName            string  `json:"product_name"`
	ItemDescription        string  `json:"item_description"`
	PackingListDescription string  `json:"packing_list_description"`
	UnitPrice              float64 `json:"unit_price"`
	PackageType            string  `json:"package_type"`
	ManufacturerName       string  `json:"manufacturer_name"`
	CategoryPath           string  `json:"category_path"`
	IsActive               bool    `json:"is_active"`
}

// SpecText is the free text the specification extractor reads for a product.
func (p Product) SpecText() string {
	return p.ProductName + " " + p.ItemDescription + " " + p.PackingListDescription
}

type ApprovedMatch struct {
	ID                  int64     `json:"id"`
	ExternalSKU         string    `json:"external_sku"`
	ExternalDescription string    `json:"external_description"`
	ProductID           int64     `json:"product_id"`
	ProductCode         string    `json:"product_code"`
	ApprovedBy          string    `json:"approved_by"`
	Notes               string    `json:"notes"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// MatchOutcome is what the pipeline or a reviewer writes back onto a line item.
type MatchOutcome struct {
	Status           MatchStatus `json:"status"`
	Confidence       int         `json:"confidence"`
	MatchedProductID *int64      `json:"matched_product_id"`
	Note             *string     `json:"note"`
}

type UploadCounters struct {
	Matched int `json:"matched_count"`
	Review  int `json:"review_count"`
}

// ItemWithProduct joins a line item with its matched product, if any.
type ItemWithProduct struct {
	LineItem
	Product *Product `json:"matched_product,omitempty"`
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}

type InboxMessage struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}
