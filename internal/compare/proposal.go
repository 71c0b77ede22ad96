package compare

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

const topProducts = 5

var (
	reReportExt   = regexp.MustCompile(`(?i)\.(xlsx|xls|csv)$`)
	reReportNoise = regexp.MustCompile(`\s*(REPORT|report|\(\d+\))\s*`)
)

type Proposal struct {
	CustomerName       string          `json:"customer_name"`
	AnnualCurrentSpend decimal.Decimal `json:"annual_current_spend"`
	AnnualOurTotal     decimal.Decimal `json:"annual_our_total"`
	AnnualSavings      decimal.Decimal `json:"annual_savings"`
	SavingsPct         decimal.Decimal `json:"savings_pct"`
	MatchedProducts    int             `json:"matched_products"`
	TopProducts        []Line          `json:"top_products"`
	MoreProducts       int             `json:"more_products"`
}

// CustomerName derives a display name from a report's original file name.
func CustomerName(filename string) string {
	if strings.TrimSpace(filename) == "" {
		return "Customer"
	}
	name := reReportExt.ReplaceAllString(filepath.Base(filename), "")
	name = strings.TrimSpace(reReportNoise.ReplaceAllString(name, ""))
	if name == "" {
		return "Customer"
	}
	return name
}

// BuildProposal annualizes a comparison by factor periods and picks the lines
// with the largest savings.
func BuildProposal(customer string, c Comparison, factor int) Proposal {
	f := decimal.NewFromInt(int64(factor))
	p := Proposal{
		CustomerName:       customer,
		AnnualCurrentSpend: c.CurrentSpend.Mul(f),
		AnnualOurTotal:     c.OurTotal.Mul(f),
		AnnualSavings:      c.Savings.Mul(f),
		SavingsPct:         c.SavingsPct,
		MatchedProducts:    len(c.Lines),
		TopProducts:        c.Lines,
	}
	if len(p.TopProducts) > topProducts {
		p.MoreProducts = len(p.TopProducts) - topProducts
		p.TopProducts = p.TopProducts[:topProducts]
	}
	return p
}
