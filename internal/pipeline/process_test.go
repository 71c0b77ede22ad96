package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jhillyerd/enmime"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"supplymatch/internal"
	"supplymatch/internal/config"
	"supplymatch/internal/ingest"
	"supplymatch/internal/storage"
)

const usageCSV = `Item #,Mfr #,Manufacturer,Description,UOM,Ship Qty,Cost Per Unit
1,NDL-18G,BD,Needle 18G,BX,2,30
5001,,Acme,Gloves,BX,4,10
3,LOCAL-9,,18G x 1 inch hypodermic needle,EA,100,0.5
4,,,assorted supplies,EA,1,5
`

func newTestService(t *testing.T) (*ProcessingService, *storage.DB) {
	t.Helper()
	ctx := context.Background()
	db, err := storage.Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.UpsertProducts(ctx, []internal.Product{
		{ManufacturerItemCode: "NDL-18G", ProductName: "18 gauge 1 inch needle", PackingListDescription: "100/BX 10BX/CS", UnitPrice: 20, PackageType: "BX", IsActive: true},
		{ManufacturerItemCode: "GLV-200", ProductName: "Nitrile exam glove medium", UnitPrice: 8, PackageType: "BX", IsActive: true},
	}))
	require.NoError(t, db.UpsertCatalogEntries(ctx, []internal.CatalogEntry{
		{ItemID: 5001, ManufacturerSKU: "GLV-200", Name: "Nitrile glove medium", Manufacturer: "Acme", Specifications: map[string]string{"Size": "Medium"}},
	}))

	cfg := config.Config{
		CatalogLookupBatch: 100,
		ItemInsertBatch:    2,
		MatchWriteWorkers:  2,
		DefaultMarkupPct:   25,
		AnnualizeFactor:    12,
		SuggestMinScore:    30,
		SuggestLimit:       15,
	}
	return NewProcessingService(db, cfg, zerolog.Nop()), db
}

func itemByDescription(t *testing.T, items []internal.ItemWithProduct, desc string) internal.ItemWithProduct {
	t.Helper()
	for _, it := range items {
		if it.Description == desc {
			return it
		}
	}
	t.Fatalf("no item %q", desc)
	return internal.ItemWithProduct{}
}

func TestProcessUploadReviewAndCompare(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t)

	res, err := svc.ProcessUpload(ctx, "Acme Clinic REPORT.csv", []byte(usageCSV))
	require.NoError(t, err)
	assert.Equal(t, internal.UploadReview, res.Upload.Status)
	assert.Equal(t, 4, res.Upload.RowCount)
	assert.Equal(t, 2, res.Upload.MatchedCount)
	assert.Equal(t, 2, res.Upload.ReviewCount)
	assert.Equal(t, 1, res.Stats.Enriched)
	id := res.Upload.ID

	results, err := svc.Results(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, ResultStats{Total: 4, Exact: 2, Fuzzy: 1, NoMatch: 1, NeedsReview: 2, Matched: 2}, results.Stats)

	needle := itemByDescription(t, results.Fuzzy, "18G x 1 inch hypodermic needle")
	require.NotNil(t, needle.Product)
	assert.Equal(t, "NDL-18G", needle.Product.ManufacturerItemCode)
	gloves := itemByDescription(t, results.Exact, "Gloves")
	assert.Equal(t, "GLV-200", gloves.MfrNumber)
	assert.Equal(t, "Acme", *gloves.EnrichedManufacturer)
	misc := itemByDescription(t, results.NoMatch, "assorted supplies")

	_, err = svc.Approve(ctx, needle.ID, needle.Product.ID, "")
	require.NoError(t, err)
	rejected, err := svc.Reject(ctx, misc.ID)
	require.NoError(t, err)
	assert.Equal(t, internal.StatusRejected, rejected.MatchStatus)

	up, err := db.GetUpload(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, up.MatchedCount)
	assert.Equal(t, 0, up.ReviewCount)

	approved, err := db.GetApprovedMatch(ctx, "LOCAL-9")
	require.NoError(t, err)
	assert.Equal(t, needle.Product.ID, approved.ProductID)
	assert.Equal(t, "reviewer", approved.ApprovedBy)

	_, c, err := svc.Comparison(ctx, id, Pricing{})
	require.NoError(t, err)
	require.Len(t, c.Lines, 3)
	assert.Equal(t, "150", c.CurrentSpend.String())
	assert.Equal(t, "115", c.OurTotal.String())
	assert.Equal(t, "35", c.Savings.String())
	assert.Equal(t, "23.33", c.SavingsPct.String())
	assert.Equal(t, 1, c.UnmatchedCount)
	assert.Equal(t, "5", c.UnmatchedSpend.String())
	assert.Equal(t, needle.ID, c.Lines[0].ItemID, "largest saving first")
	assert.InDelta(t, 1.0, c.Lines[0].ConvertedQty, 1e-9)

	p, err := svc.Proposal(ctx, id, Pricing{})
	require.NoError(t, err)
	assert.Equal(t, "Acme Clinic", p.CustomerName)
	assert.Equal(t, "420", p.AnnualSavings.String())
	assert.Equal(t, 3, p.MatchedProducts)

	_, _, err = svc.Comparison(ctx, id, Pricing{Markups: map[int64]float64{needle.ID: -5}})
	assert.ErrorIs(t, err, ErrInvalidMarkup)

	// A rerun keeps the approval through the stored override.
	stats, err := svc.Rematch(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Counts[internal.StatusPreApproved])
	assert.Equal(t, internal.UploadCounters{Matched: 3, Review: 1}, stats.Counters)

	runs, err := db.RunsByUpload(ctx, id)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestApproveUnknownProduct(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	res, err := svc.ProcessUpload(ctx, "usage.csv", []byte(usageCSV))
	require.NoError(t, err)
	results, err := svc.Results(ctx, res.Upload.ID)
	require.NoError(t, err)

	_, err = svc.Approve(ctx, results.NoMatch[0].ID, 9999, "kim")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestProcessUploadRejectsUnsupportedFile(t *testing.T) {
	svc, db := newTestService(t)
	_, err := svc.ProcessUpload(context.Background(), "notes.docx", []byte("x"))
	assert.ErrorIs(t, err, ErrDecode)
	assert.ErrorIs(t, err, ingest.ErrUnsupported)

	_, err = svc.ProcessUpload(context.Background(), "broken.xlsx", []byte("not a workbook"))
	assert.ErrorIs(t, err, ErrDecode)

	uploads, err := db.ListUploads(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, uploads)
}

func TestSuggestions(t *testing.T) {
	svc, _ := newTestService(t)

	entry, got, err := svc.Suggestions(context.Background(), "glv-200")
	require.NoError(t, err)
	assert.Equal(t, int64(5001), entry.ItemID)
	require.Len(t, got, 1)
	assert.Equal(t, "GLV-200", got[0].Product.ManufacturerItemCode)
	assert.Equal(t, 95, got[0].Score)
	assert.NotEmpty(t, got[0].Alignment)
}

func TestExports(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t)
	res, err := svc.ProcessUpload(ctx, "usage.csv", []byte(usageCSV))
	require.NoError(t, err)
	items, err := db.ItemsWithProducts(ctx, res.Upload.ID)
	require.NoError(t, err)

	dir := t.TempDir()
	resultsPath := filepath.Join(dir, "results.xlsx")
	require.NoError(t, ExportResults(items, resultsPath))

	f, err := excelize.OpenFile(resultsPath)
	require.NoError(t, err)
	rows, err := f.GetRows("Matches")
	require.NoError(t, err)
	_ = f.Close()
	require.Len(t, rows, 5)
	assert.Equal(t, "match_status", rows[0][8])

	_, c, err := svc.Comparison(ctx, res.Upload.ID, Pricing{})
	require.NoError(t, err)
	cmpPath := filepath.Join(dir, "comparison.xlsx")
	require.NoError(t, ExportComparison(c, cmpPath))
	f, err = excelize.OpenFile(cmpPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"Comparison", "Totals"}, f.GetSheetList())
	_ = f.Close()

	p, err := svc.Proposal(ctx, res.Upload.ID, Pricing{})
	require.NoError(t, err)
	propPath := filepath.Join(dir, "proposal.xlsx")
	require.NoError(t, ExportProposal(p, propPath))
	f, err = excelize.OpenFile(propPath)
	require.NoError(t, err)
	customer, err := f.GetCellValue("Summary", "B1")
	require.NoError(t, err)
	_ = f.Close()
	assert.Equal(t, "usage", customer)
}

func buildMail(t *testing.T, subject string, attach bool) []byte {
	t.Helper()
	b := enmime.Builder().
		From("Clinic", "orders@clinic.example").
		To("Sales", "sales@supplier.example").
		Subject(subject).
		Text([]byte("Attached is this month's usage."))
	if attach {
		b = b.AddAttachment([]byte(usageCSV), "text/csv", "usage.csv")
	}
	part, err := b.Build()
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, part.Encode(&buf))
	return buf.Bytes()
}

func storeMail(t *testing.T, db *storage.DB, id string, raw []byte) internal.InboxMessage {
	t.Helper()
	path := filepath.Join(t.TempDir(), id+".eml")
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	msg, err := db.UpsertInboxMessage(context.Background(), "imap", id, "", "orders@clinic.example", "", id, path, storage.InboxFetched)
	require.NoError(t, err)
	return msg
}

func TestProcessPendingMail(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t)

	report := storeMail(t, db, "m1", buildMail(t, "Monthly usage report", true))
	chat := storeMail(t, db, "m2", buildMail(t, "Lunch on Friday?", false))

	mails, uploads, err := svc.ProcessPending(ctx, 10, "")
	require.NoError(t, err)
	assert.Equal(t, 2, mails)
	assert.Equal(t, 1, uploads)

	got, err := db.GetInboxMessageByProviderID(ctx, "imap", report.MessageID)
	require.NoError(t, err)
	assert.Equal(t, storage.InboxProcessed, got.Status)
	got, err = db.GetInboxMessageByProviderID(ctx, "imap", chat.MessageID)
	require.NoError(t, err)
	assert.Equal(t, storage.InboxSkipped, got.Status)

	pending, err := db.ListInboxByStatus(ctx, storage.InboxFetched, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestProcessByProviderMessageIDMissing(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.ProcessByProviderMessageID(context.Background(), "imap", "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestReadReportMail(t *testing.T) {
	m, err := ReadReportMail(buildMail(t, "Usage report", true))
	require.NoError(t, err)
	assert.Equal(t, "Usage report", m.Subject)
	assert.Equal(t, []string{"usage.csv"}, m.Names())
	assert.Contains(t, string(m.Attachments[0].Content), "NDL-18G")
}
