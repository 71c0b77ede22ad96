package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"supplymatch/internal"
)

func (d *DB) CreateUpload(ctx context.Context, u internal.Upload) error {
	_, err := d.conn.ExecContext(ctx, `
INSERT INTO uploads (id, filename, originalFilename, rowCount, status, matchedCount, reviewCount)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Filename, u.OriginalFilename, u.RowCount, string(u.Status), u.MatchedCount, u.ReviewCount)
	return err
}

func (d *DB) GetUpload(ctx context.Context, id string) (internal.Upload, error) {
	var u internal.Upload
	var status, created string
	err := d.conn.QueryRowContext(ctx, `
SELECT id, filename, originalFilename, rowCount, status, matchedCount, reviewCount, createdAt
FROM uploads WHERE id = ?`, id).Scan(
		&u.ID, &u.Filename, &u.OriginalFilename, &u.RowCount, &status, &u.MatchedCount, &u.ReviewCount, &created,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return internal.Upload{}, fmt.Errorf("upload %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return internal.Upload{}, err
	}
	u.Status = internal.UploadStatus(status)
	u.CreatedAt = parseTime(created)
	return u, nil
}

func (d *DB) ListUploads(ctx context.Context, limit int) ([]internal.Upload, error) {
	rows, err := d.conn.QueryContext(ctx, `
SELECT id, filename, originalFilename, rowCount, status, matchedCount, reviewCount, createdAt
FROM uploads ORDER BY createdAt DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.Upload
	for rows.Next() {
		var u internal.Upload
		var status, created string
		if err := rows.Scan(&u.ID, &u.Filename, &u.OriginalFilename, &u.RowCount, &status, &u.MatchedCount, &u.ReviewCount, &created); err != nil {
			return nil, err
		}
		u.Status = internal.UploadStatus(status)
		u.CreatedAt = parseTime(created)
		out = append(out, u)
	}
	return out, rows.Err()
}

func (d *DB) SetUploadStatus(ctx context.Context, id string, status internal.UploadStatus) error {
	_, err := d.conn.ExecContext(ctx, `UPDATE uploads SET status = ? WHERE id = ?`, string(status), id)
	return err
}

func (d *DB) UpdateUploadCounters(ctx context.Context, id string, c internal.UploadCounters) error {
	res, err := d.conn.ExecContext(ctx, `UPDATE uploads SET matchedCount = ?, reviewCount = ? WHERE id = ?`, c.Matched, c.Review, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("upload %s: %w", id, ErrNotFound)
	}
	return nil
}

// InsertLineItems stores items in transactions of batchSize rows each and
// assigns the generated ids back onto items.
func (d *DB) InsertLineItems(ctx context.Context, uploadID string, items []internal.LineItem, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 100
	}
	for start := 0; start < len(items); start += batchSize {
		end := min(start+batchSize, len(items))
		if err := d.insertItemBatch(ctx, uploadID, items[start:end]); err != nil {
			return fmt.Errorf("insert items %d-%d: %w", start, end-1, err)
		}
	}
	return nil
}

func (d *DB) insertItemBatch(ctx context.Context, uploadID string, items []internal.LineItem) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO upload_items (
  uploadId, rowNo, itemNumber, manufacturer, mfrNumber, description, contents, uom,
  shipQty, costPerUnit, totalExtPurchase, percentTotal, invoiceCount, matchStatus, matchConfidence
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range items {
		it := &items[i]
		it.UploadID = uploadID
		if it.MatchStatus == "" {
			it.MatchStatus = internal.StatusPending
		}
		res, err := stmt.ExecContext(ctx,
			uploadID, it.RowNo, it.ItemNumber, it.Manufacturer, it.MfrNumber, it.Description, it.Contents, it.UOM,
			it.ShipQty, it.CostPerUnit, it.TotalExtPurchase, it.PercentTotal, it.InvoiceCount, string(it.MatchStatus),
		)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		it.ID = id
	}

	return tx.Commit()
}

const itemColumns = `
  i.id, i.uploadId, i.rowNo, i.itemNumber, i.manufacturer, i.mfrNumber, i.description, i.contents, i.uom,
  i.shipQty, i.costPerUnit, i.totalExtPurchase, i.percentTotal, i.invoiceCount,
  i.catalogId, i.enrichedName, i.enrichedDescription, i.enrichedManufacturer, i.enrichedBrand, i.enrichedCategory,
  i.enrichedSpecs, i.enrichedMfrSku, i.matchStatus, i.matchConfidence, i.matchedProductId, i.matchNote`

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner, extra ...any) (internal.LineItem, error) {
	var it internal.LineItem
	var catalogID, matchedID sql.NullInt64
	var name, desc, mfr, brand, category, specsJSON, sku, note sql.NullString
	var status string

	dest := []any{
		&it.ID, &it.UploadID, &it.RowNo, &it.ItemNumber, &it.Manufacturer, &it.MfrNumber, &it.Description, &it.Contents, &it.UOM,
		&it.ShipQty, &it.CostPerUnit, &it.TotalExtPurchase, &it.PercentTotal, &it.InvoiceCount,
		&catalogID, &name, &desc, &mfr, &brand, &category,
		&specsJSON, &sku, &status, &it.MatchConfidence, &matchedID, &note,
	}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return internal.LineItem{}, err
	}

	it.CatalogID = int64Ptr(catalogID)
	it.EnrichedName = strPtr(name)
	it.EnrichedDescription = strPtr(desc)
	it.EnrichedManufacturer = strPtr(mfr)
	it.EnrichedBrand = strPtr(brand)
	it.EnrichedCategory = strPtr(category)
	it.EnrichedMfrSKU = strPtr(sku)
	it.MatchedProductID = int64Ptr(matchedID)
	it.MatchNote = strPtr(note)
	if specsJSON.Valid && specsJSON.String != "" {
		if err := json.Unmarshal([]byte(specsJSON.String), &it.EnrichedSpecs); err != nil {
			return internal.LineItem{}, fmt.Errorf("item %d enriched specs: %w", it.ID, err)
		}
	}
	st, ok := internal.ParseMatchStatus(status)
	if !ok {
		return internal.LineItem{}, fmt.Errorf("item %d: unknown match status %q", it.ID, status)
	}
	it.MatchStatus = st
	return it, nil
}

func (d *DB) LineItemsByUpload(ctx context.Context, uploadID string) ([]internal.LineItem, error) {
	rows, err := d.conn.QueryContext(ctx, `SELECT `+itemColumns+`
FROM upload_items i WHERE i.uploadId = ? ORDER BY i.rowNo ASC, i.id ASC`, uploadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.LineItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (d *DB) GetLineItem(ctx context.Context, id int64) (internal.LineItem, error) {
	row := d.conn.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM upload_items i WHERE i.id = ?`, id)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return internal.LineItem{}, fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	return it, err
}

// ItemsWithProducts joins each item of the upload with its matched product.
func (d *DB) ItemsWithProducts(ctx context.Context, uploadID string) ([]internal.ItemWithProduct, error) {
	rows, err := d.conn.QueryContext(ctx, `SELECT `+itemColumns+`,
  p.id, p.manufacturerItemCode, p.productName, p.itemDescription, p.packingListDescription,
  p.unitPrice, p.packageType, p.manufacturerName, p.categoryPath, p.isActive
FROM upload_items i
LEFT JOIN products p ON p.id = i.matchedProductId
WHERE i.uploadId = ?
ORDER BY i.rowNo ASC, i.id ASC`, uploadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ItemWithProduct
	for rows.Next() {
		var pid sql.NullInt64
		var code, name, desc, packing, pkgType, mfr, category sql.NullString
		var price sql.NullFloat64
		var active sql.NullBool
		it, err := scanItem(rows, &pid, &code, &name, &desc, &packing, &price, &pkgType, &mfr, &category, &active)
		if err != nil {
			return nil, err
		}
		row := internal.ItemWithProduct{LineItem: it}
		if pid.Valid {
			row.Product = &internal.Product{
				ID:                     pid.Int64,
				ManufacturerItemCode:   code.String,
				ProductName:            name.String,
				ItemDescription:        desc.String,
				PackingListDescription: packing.String,
				UnitPrice:              price.Float64,
				PackageType:            pkgType.String,
				ManufacturerName:       mfr.String,
				CategoryPath:           category.String,
				IsActive:               active.Bool,
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateLineItemEnrichment(ctx context.Context, it internal.LineItem) error {
	var specsJSON sql.NullString
	if len(it.EnrichedSpecs) > 0 {
		b, err := json.Marshal(it.EnrichedSpecs)
		if err != nil {
			return err
		}
		specsJSON = sql.NullString{String: string(b), Valid: true}
	}
	_, err := d.conn.ExecContext(ctx, `
UPDATE upload_items SET
  mfrNumber = ?, catalogId = ?, enrichedName = ?, enrichedDescription = ?, enrichedManufacturer = ?,
  enrichedBrand = ?, enrichedCategory = ?, enrichedSpecs = ?, enrichedMfrSku = ?, updatedAt = CURRENT_TIMESTAMP
WHERE id = ?`,
		it.MfrNumber, nullInt64(it.CatalogID), nullString(it.EnrichedName), nullString(it.EnrichedDescription),
		nullString(it.EnrichedManufacturer), nullString(it.EnrichedBrand), nullString(it.EnrichedCategory),
		specsJSON, nullString(it.EnrichedMfrSKU), it.ID,
	)
	return err
}

func (d *DB) UpdateLineItemMatch(ctx context.Context, id int64, m internal.MatchOutcome) error {
	if _, ok := internal.ParseMatchStatus(string(m.Status)); !ok {
		return fmt.Errorf("item %d: unknown match status %q", id, m.Status)
	}
	if m.Status.HasProduct() && m.MatchedProductID == nil {
		return fmt.Errorf("item %d: status %s requires a matched product", id, m.Status)
	}
	res, err := d.conn.ExecContext(ctx, `
UPDATE upload_items SET matchStatus = ?, matchConfidence = ?, matchedProductId = ?, matchNote = ?, updatedAt = CURRENT_TIMESTAMP
WHERE id = ?`, string(m.Status), m.Confidence, nullInt64(m.MatchedProductID), nullString(m.Note), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	return nil
}

// StatusCounts tallies the persisted match statuses of an upload.
func (d *DB) StatusCounts(ctx context.Context, uploadID string) (map[internal.MatchStatus]int, error) {
	rows, err := d.conn.QueryContext(ctx, `SELECT matchStatus, COUNT(*) FROM upload_items WHERE uploadId = ? GROUP BY matchStatus`, uploadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[internal.MatchStatus]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		st, ok := internal.ParseMatchStatus(status)
		if !ok {
			return nil, fmt.Errorf("upload %s: unknown match status %q", uploadID, status)
		}
		out[st] = n
	}
	return out, rows.Err()
}
