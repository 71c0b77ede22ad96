package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"supplymatch/internal"
	"supplymatch/internal/util"
)

const approvedColumns = `a.id, a.externalSku, a.externalDescription, a.productId, COALESCE(p.manufacturerItemCode, ''),
  a.approvedBy, a.notes, a.createdAt, a.updatedAt`

func scanApproved(s scanner) (internal.ApprovedMatch, error) {
	var m internal.ApprovedMatch
	var created, updated string
	if err := s.Scan(&m.ID, &m.ExternalSKU, &m.ExternalDescription, &m.ProductID, &m.ProductCode,
		&m.ApprovedBy, &m.Notes, &created, &updated); err != nil {
		return internal.ApprovedMatch{}, err
	}
	m.CreatedAt = parseTime(created)
	m.UpdatedAt = parseTime(updated)
	return m, nil
}

// UpsertApprovedMatch keeps one override per normalized external SKU; the last write wins.
func (d *DB) UpsertApprovedMatch(ctx context.Context, m internal.ApprovedMatch) (internal.ApprovedMatch, error) {
	norm := util.NormalizeCode(m.ExternalSKU)
	if norm == "" {
		return internal.ApprovedMatch{}, errors.New("approved match: empty external sku")
	}
	_, err := d.conn.ExecContext(ctx, `
INSERT INTO approved_matches (externalSku, skuNorm, externalDescription, productId, approvedBy, notes)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(skuNorm) DO UPDATE SET
  externalSku=excluded.externalSku,
  externalDescription=excluded.externalDescription,
  productId=excluded.productId,
  approvedBy=excluded.approvedBy,
  notes=excluded.notes,
  updatedAt=CURRENT_TIMESTAMP`,
		m.ExternalSKU, norm, m.ExternalDescription, m.ProductID, m.ApprovedBy, m.Notes)
	if err != nil {
		return internal.ApprovedMatch{}, err
	}
	return d.GetApprovedMatch(ctx, m.ExternalSKU)
}

func (d *DB) GetApprovedMatch(ctx context.Context, sku string) (internal.ApprovedMatch, error) {
	m, err := scanApproved(d.conn.QueryRowContext(ctx, `SELECT `+approvedColumns+`
FROM approved_matches a LEFT JOIN products p ON p.id = a.productId
WHERE a.skuNorm = ?`, util.NormalizeCode(sku)))
	if errors.Is(err, sql.ErrNoRows) {
		return internal.ApprovedMatch{}, fmt.Errorf("approved match %s: %w", sku, ErrNotFound)
	}
	return m, err
}

func (d *DB) ApprovedMatchesBySKUs(ctx context.Context, skus []string) ([]internal.ApprovedMatch, error) {
	norm := make([]string, 0, len(skus))
	seen := map[string]bool{}
	for _, s := range skus {
		n := util.NormalizeCode(s)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		norm = append(norm, n)
	}

	var out []internal.ApprovedMatch
	for _, chunk := range chunks(norm, lookupChunk) {
		rows, err := d.conn.QueryContext(ctx, `SELECT `+approvedColumns+`
FROM approved_matches a LEFT JOIN products p ON p.id = a.productId
WHERE a.skuNorm IN (`+placeholders(len(chunk))+`)`, toArgs(chunk)...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			m, err := scanApproved(rows)
			if err != nil {
				_ = rows.Close()
				return nil, err
			}
			out = append(out, m)
		}
		err = rows.Err()
		_ = rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ListApprovedMatches searches SKU, description and product code and returns
// one page plus the total number of hits.
func (d *DB) ListApprovedMatches(ctx context.Context, q string, limit, offset int) ([]internal.ApprovedMatch, int, error) {
	like := "%" + q + "%"
	where := `WHERE (? = '' OR a.externalSku LIKE ? OR a.externalDescription LIKE ? OR p.manufacturerItemCode LIKE ?)`

	var total int
	if err := d.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM approved_matches a LEFT JOIN products p ON p.id = a.productId `+where,
		q, like, like, like).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := d.conn.QueryContext(ctx, `SELECT `+approvedColumns+`
FROM approved_matches a LEFT JOIN products p ON p.id = a.productId `+where+`
ORDER BY a.updatedAt DESC, a.id DESC LIMIT ? OFFSET ?`, q, like, like, like, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []internal.ApprovedMatch
	for rows.Next() {
		m, err := scanApproved(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, m)
	}
	return out, total, rows.Err()
}

func (d *DB) DeleteApprovedMatch(ctx context.Context, sku string) error {
	res, err := d.conn.ExecContext(ctx, `DELETE FROM approved_matches WHERE skuNorm = ?`, util.NormalizeCode(sku))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("approved match %s: %w", sku, ErrNotFound)
	}
	return nil
}
