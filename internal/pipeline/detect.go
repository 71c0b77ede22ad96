package pipeline

import (
	"strings"

	"supplymatch/internal/ingest"
)

type DetectResult struct {
	IsReport bool
	Score    float64
	Reason   string
}

var detectKeywords = []string{"usage", "purchase", "report", "spend", "invoice", "order history", "qty", "ship"}

// DetectUsageReport scores a mail by subject and body keywords. A mail with no
// decodable attachment is never a report.
func DetectUsageReport(subject, text string, attachmentNames []string) DetectResult {
	subject = strings.ToLower(subject)
	text = strings.ToLower(text)

	hasReport := false
	for _, name := range attachmentNames {
		if ingest.Supported(name) {
			hasReport = true
			break
		}
	}
	if !hasReport {
		return DetectResult{Reason: "no_report_attachment"}
	}

	score := 0.4
	for _, kw := range detectKeywords {
		if strings.Contains(subject, kw) {
			score += 0.2
		}
		if strings.Contains(text, kw) {
			score += 0.1
		}
	}
	for _, name := range attachmentNames {
		if strings.Contains(strings.ToLower(name), "report") {
			score += 0.2
			break
		}
	}
	if score > 1 {
		score = 1
	}

	isReport := score >= 0.45
	reason := "rules_negative"
	if isReport {
		reason = "rules_positive"
	}
	return DetectResult{IsReport: isReport, Score: score, Reason: reason}
}
