package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"supplymatch/internal"
	"supplymatch/internal/util"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestUploadItemsRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	if err := db.CreateUpload(ctx, internal.Upload{ID: "u1", Filename: "u1.xlsx", OriginalFilename: "Acme REPORT.xlsx", RowCount: 3, Status: internal.UploadMatching}); err != nil {
		t.Fatalf("create upload: %v", err)
	}
	items := []internal.LineItem{
		{RowNo: 1, ItemNumber: "1001", MfrNumber: "NDL-18G", Description: "needle", UOM: "BX", ShipQty: 2, CostPerUnit: 10},
		{RowNo: 2, ItemNumber: "1002", Description: "glove"},
		{RowNo: 3, Description: "tape"},
	}
	if err := db.InsertLineItems(ctx, "u1", items, 2); err != nil {
		t.Fatalf("insert items: %v", err)
	}
	for _, it := range items {
		if it.ID == 0 {
			t.Fatalf("id not assigned: %+v", it)
		}
	}

	items[0].EnrichedName = util.StringPtr("Needle 18G")
	items[0].EnrichedSpecs = map[string]string{"Gauge": "18"}
	items[0].EnrichedMfrSKU = util.StringPtr("NDL-18G")
	if err := db.UpdateLineItemEnrichment(ctx, items[0]); err != nil {
		t.Fatalf("enrich: %v", err)
	}
	pid := int64(7)
	if err := db.UpdateLineItemMatch(ctx, items[0].ID, internal.MatchOutcome{Status: internal.StatusFuzzy, Confidence: 77, MatchedProductID: &pid, Note: util.StringPtr("gauge")}); err != nil {
		t.Fatalf("match: %v", err)
	}

	got, err := db.LineItemsByUpload(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d items want 3", len(got))
	}
	first := got[0]
	if first.MatchStatus != internal.StatusFuzzy || first.MatchConfidence != 77 || first.MatchedProductID == nil || *first.MatchedProductID != 7 {
		t.Fatalf("unexpected match fields: %+v", first)
	}
	if first.EnrichedSpecs["Gauge"] != "18" || util.Deref(first.EnrichedName) != "Needle 18G" {
		t.Fatalf("unexpected enrichment: %+v", first)
	}
	if got[1].MatchStatus != internal.StatusPending || got[1].MatchedProductID != nil {
		t.Fatalf("second item should be pending: %+v", got[1])
	}

	counts, err := db.StatusCounts(ctx, "u1")
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts[internal.StatusPending] != 2 || counts[internal.StatusFuzzy] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}

	if err := db.UpdateUploadCounters(ctx, "missing", internal.UploadCounters{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestProductsAndApprovedMatches(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	products := []internal.Product{
		{ManufacturerItemCode: "ndl-18g", ProductName: "Needle 18G", PackageType: "BX", UnitPrice: 12, IsActive: true},
		{ManufacturerItemCode: "NDL-18G", ProductName: "Needle 18G case", PackageType: "CS", UnitPrice: 110, IsActive: true},
		{ManufacturerItemCode: "OLD-1", ProductName: "Retired", PackageType: "EA", IsActive: false},
	}
	if err := db.UpsertProducts(ctx, products); err != nil {
		t.Fatalf("upsert products: %v", err)
	}
	// same code and package type updates in place
	again := []internal.Product{{ManufacturerItemCode: "NDL-18G", ProductName: "Needle 18G box", PackageType: "BX", UnitPrice: 13, IsActive: true}}
	if err := db.UpsertProducts(ctx, again); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	if again[0].ID != products[0].ID {
		t.Fatalf("expected id %d, got %d", products[0].ID, again[0].ID)
	}

	byCode, err := db.ProductsByCodes(ctx, []string{" ndl-18g", "NDL-18G", "nope"})
	if err != nil {
		t.Fatalf("by codes: %v", err)
	}
	if len(byCode) != 2 {
		t.Fatalf("got %d products want 2", len(byCode))
	}
	active, err := db.ActiveProducts(ctx)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("got %d active want 2", len(active))
	}

	if _, err := db.UpsertApprovedMatch(ctx, internal.ApprovedMatch{ExternalSKU: "abc-1", ProductID: products[0].ID, ApprovedBy: "admin"}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	m, err := db.UpsertApprovedMatch(ctx, internal.ApprovedMatch{ExternalSKU: "ABC-1", ProductID: products[1].ID, ApprovedBy: "lead", Notes: "case"})
	if err != nil {
		t.Fatalf("re-approve: %v", err)
	}
	if m.ProductID != products[1].ID || m.ApprovedBy != "lead" || m.ProductCode != "NDL-18G" {
		t.Fatalf("last write should win: %+v", m)
	}

	list, total, err := db.ListApprovedMatches(ctx, "", 10, 0)
	if err != nil || total != 1 || len(list) != 1 {
		t.Fatalf("list: %v total=%d len=%d", err, total, len(list))
	}
	hits, err := db.ApprovedMatchesBySKUs(ctx, []string{"abc-1"})
	if err != nil || len(hits) != 1 {
		t.Fatalf("by skus: %v %d", err, len(hits))
	}

	if err := db.DeleteApprovedMatch(ctx, "abc-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := db.DeleteApprovedMatch(ctx, "abc-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCatalogByIDs(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	entries := []internal.CatalogEntry{
		{ItemID: 1001, ManufacturerSKU: "NDL-18G", Name: "Needle", Specifications: map[string]string{"Gauge": "18"}},
		{ItemID: 1002, ManufacturerSKU: "GLV-L", Name: "Glove"},
	}
	if err := db.UpsertCatalogEntries(ctx, entries); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := db.CatalogByIDs(ctx, []int64{1001, 9999})
	if err != nil {
		t.Fatalf("by ids: %v", err)
	}
	if len(got) != 1 || got[0].Specifications["Gauge"] != "18" {
		t.Fatalf("unexpected entries: %+v", got)
	}
	e, err := db.CatalogBySKU(ctx, "glv-l")
	if err != nil || e.ItemID != 1002 {
		t.Fatalf("by sku: %+v %v", e, err)
	}
}

func TestApprovedLookupFailurePropagates(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer conn.Close()

	mock.ExpectQuery("FROM approved_matches").WillReturnError(errors.New("disk I/O error"))

	db := Wrap(conn)
	if _, err := db.ApprovedMatchesBySKUs(context.Background(), []string{"X-1"}); err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateLineItemMatchMissingRow(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer conn.Close()

	mock.ExpectExec("UPDATE upload_items SET matchStatus").WillReturnResult(sqlmock.NewResult(0, 0))

	db := Wrap(conn)
	err = db.UpdateLineItemMatch(context.Background(), 42, internal.MatchOutcome{Status: internal.StatusNoMatch})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSearchCatalog(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	products := []internal.Product{{ManufacturerItemCode: "H-GLV-L", ProductName: "Glove L", PackageType: "BX", IsActive: true}}
	if err := db.UpsertProducts(ctx, products); err != nil {
		t.Fatalf("upsert products: %v", err)
	}
	entries := []internal.CatalogEntry{
		{ItemID: 1001, ManufacturerSKU: "NDL-18G", Name: "Hypodermic Needle", Brand: "PrecisionGlide", Category: "Needles > Hypodermic", Manufacturer: "Becton"},
		{ItemID: 1002, ManufacturerSKU: "GLV-L", Name: "Nitrile Glove", Brand: "Medline", Category: "Gloves", Manufacturer: "Medline"},
		{ItemID: 1003, ManufacturerSKU: "GLV-M", Name: "Nitrile Glove Medium", Brand: "Medline", Category: "Gloves", Manufacturer: "Medline"},
	}
	if err := db.UpsertCatalogEntries(ctx, entries); err != nil {
		t.Fatalf("upsert catalog: %v", err)
	}
	if _, err := db.UpsertApprovedMatch(ctx, internal.ApprovedMatch{ExternalSKU: "glv-l", ProductID: products[0].ID}); err != nil {
		t.Fatalf("approve: %v", err)
	}

	cases := []struct {
		name  string
		query CatalogQuery
		want  []int64
	}{
		{name: "name substring", query: CatalogQuery{Q: "glove"}, want: []int64{1002, 1003}},
		{name: "sku substring", query: CatalogQuery{Q: "ndl-18"}, want: []int64{1001}},
		{name: "brand", query: CatalogQuery{Q: "precision"}, want: []int64{1001}},
		{name: "category filter", query: CatalogQuery{Category: "hypodermic"}, want: []int64{1001}},
		{name: "manufacturer filter", query: CatalogQuery{Q: "nitrile", Manufacturer: "medline"}, want: []int64{1002, 1003}},
		{name: "unmatched only", query: CatalogQuery{Category: "gloves", Unmatched: true}, want: []int64{1003}},
		{name: "limit", query: CatalogQuery{Limit: 1}, want: []int64{1001}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := tc.query
			if q.Limit == 0 {
				q.Limit = 50
			}
			got, err := db.SearchCatalog(ctx, q)
			if err != nil {
				t.Fatalf("search: %v", err)
			}
			var ids []int64
			for _, e := range got {
				ids = append(ids, e.ItemID)
			}
			if len(ids) != len(tc.want) {
				t.Fatalf("got %v want %v", ids, tc.want)
			}
			for i := range ids {
				if ids[i] != tc.want[i] {
					t.Fatalf("got %v want %v", ids, tc.want)
				}
			}
		})
	}
}

func TestCorruptCatalogSpecsSurface(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	if err := db.UpsertCatalogEntries(ctx, []internal.CatalogEntry{{ItemID: 7, ManufacturerSKU: "X-7"}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := db.conn.ExecContext(ctx, `UPDATE master_catalog SET specsJson = '{"Gauge":' WHERE itemId = 7`); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	if _, err := db.CatalogByIDs(ctx, []int64{7}); err == nil {
		t.Fatal("expected specifications decode error")
	}
	if _, err := db.CatalogBySKU(ctx, "X-7"); err == nil {
		t.Fatal("expected specifications decode error")
	}
}

func TestUnknownStatusIsAnError(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	if err := db.CreateUpload(ctx, internal.Upload{ID: "u1", Filename: "u1.csv", Status: internal.UploadReview}); err != nil {
		t.Fatalf("create upload: %v", err)
	}
	items := []internal.LineItem{{RowNo: 1, Description: "needle"}}
	if err := db.InsertLineItems(ctx, "u1", items, 10); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := db.UpdateLineItemMatch(ctx, items[0].ID, internal.MatchOutcome{Status: "maybe"}); err == nil {
		t.Fatal("unknown status written")
	}
	if err := db.UpdateLineItemMatch(ctx, items[0].ID, internal.MatchOutcome{Status: internal.StatusExact, Confidence: 100}); err == nil {
		t.Fatal("exact without a product written")
	}

	if _, err := db.conn.ExecContext(ctx, `UPDATE upload_items SET matchStatus = 'maybe' WHERE id = ?`, items[0].ID); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	if _, err := db.LineItemsByUpload(ctx, "u1"); err == nil {
		t.Fatal("expected scan error")
	}
	if _, err := db.ItemsWithProducts(ctx, "u1"); err == nil {
		t.Fatal("expected scan error")
	}
	if _, err := db.StatusCounts(ctx, "u1"); err == nil {
		t.Fatal("expected counts error")
	}
}
