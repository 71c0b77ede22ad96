package pipeline

import (
	"testing"

	"supplymatch/internal"
)

func TestDetectUsageReport(t *testing.T) {
	tests := []struct {
		name        string
		subject     string
		text        string
		attachments []string
		want        bool
		reason      string
	}{
		{name: "report with spreadsheet", subject: "Monthly usage report", attachments: []string{"march.xlsx"}, want: true, reason: "rules_positive"},
		{name: "keyword in body only", subject: "hi", text: "see purchase history", attachments: []string{"data.csv"}, want: true, reason: "rules_positive"},
		{name: "report in file name", subject: "fyi", attachments: []string{"march report.pdf"}, want: true, reason: "rules_positive"},
		{name: "no keywords", subject: "hello", text: "lunch?", attachments: []string{"menu.csv"}, want: false, reason: "rules_negative"},
		{name: "unsupported attachment", subject: "usage report", attachments: []string{"photo.jpg"}, want: false, reason: "no_report_attachment"},
		{name: "no attachment", subject: "usage report", want: false, reason: "no_report_attachment"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectUsageReport(tt.subject, tt.text, tt.attachments)
			if got.IsReport != tt.want || got.Reason != tt.reason {
				t.Fatalf("got %+v", got)
			}
			if got.Score < 0 || got.Score > 1 {
				t.Fatalf("score out of range: %v", got.Score)
			}
		})
	}
}

func TestCountersFrom(t *testing.T) {
	got := countersFrom(map[internal.MatchStatus]int{
		internal.StatusExact:       3,
		internal.StatusPreApproved: 1,
		internal.StatusApproved:    2,
		internal.StatusFuzzy:       4,
		internal.StatusNoMatch:     5,
		internal.StatusPending:     1,
		internal.StatusRejected:    7,
	})
	if got != (internal.UploadCounters{Matched: 6, Review: 10}) {
		t.Fatalf("got %+v", got)
	}
}
