package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"supplymatch/internal"
	"supplymatch/internal/util"
)

func (d *DB) UpsertCatalogEntries(ctx context.Context, entries []internal.CatalogEntry) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO master_catalog (
  itemId, manufacturerSku, skuNorm, name, shortDescription, manufacturer, brand, category, specsJson, lastSeenAt
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(itemId) DO UPDATE SET
  manufacturerSku=excluded.manufacturerSku,
  skuNorm=excluded.skuNorm,
  name=excluded.name,
  shortDescription=excluded.shortDescription,
  manufacturer=excluded.manufacturer,
  brand=excluded.brand,
  category=excluded.category,
  specsJson=excluded.specsJson,
  lastSeenAt=CURRENT_TIMESTAMP`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		specsJSON, err := json.Marshal(e.Specifications)
		if err != nil {
			return fmt.Errorf("catalog item %d specifications: %w", e.ItemID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			e.ItemID, e.ManufacturerSKU, util.NormalizeCode(e.ManufacturerSKU), e.Name, e.ShortDescription,
			e.Manufacturer, e.Brand, e.Category, string(specsJSON),
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

const catalogColumns = `itemId, manufacturerSku, name, shortDescription, manufacturer, brand, category, specsJson`

func scanCatalog(s scanner) (internal.CatalogEntry, error) {
	var e internal.CatalogEntry
	var specsJSON string
	if err := s.Scan(&e.ItemID, &e.ManufacturerSKU, &e.Name, &e.ShortDescription, &e.Manufacturer, &e.Brand, &e.Category, &specsJSON); err != nil {
		return internal.CatalogEntry{}, err
	}
	if specsJSON != "" {
		if err := json.Unmarshal([]byte(specsJSON), &e.Specifications); err != nil {
			return internal.CatalogEntry{}, fmt.Errorf("catalog item %d specifications: %w", e.ItemID, err)
		}
	}
	return e, nil
}

// CatalogByIDs fetches master catalog entries in chunks of at most 500 ids.
func (d *DB) CatalogByIDs(ctx context.Context, ids []int64) ([]internal.CatalogEntry, error) {
	var out []internal.CatalogEntry
	for _, chunk := range chunks(ids, lookupChunk) {
		rows, err := d.conn.QueryContext(ctx, `SELECT `+catalogColumns+` FROM master_catalog WHERE itemId IN (`+placeholders(len(chunk))+`)`, toArgs(chunk)...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			e, err := scanCatalog(rows)
			if err != nil {
				_ = rows.Close()
				return nil, err
			}
			out = append(out, e)
		}
		err = rows.Err()
		_ = rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (d *DB) CatalogBySKU(ctx context.Context, sku string) (internal.CatalogEntry, error) {
	e, err := scanCatalog(d.conn.QueryRowContext(ctx, `SELECT `+catalogColumns+` FROM master_catalog WHERE skuNorm = ? ORDER BY itemId LIMIT 1`, util.NormalizeCode(sku)))
	if errors.Is(err, sql.ErrNoRows) {
		return internal.CatalogEntry{}, fmt.Errorf("catalog sku %s: %w", sku, ErrNotFound)
	}
	return e, err
}

func (d *DB) CountCatalogEntries(ctx context.Context) (int, error) {
	var n int
	err := d.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM master_catalog`).Scan(&n)
	return n, err
}

// CatalogQuery filters master catalog search. Q matches name, manufacturer SKU
// or brand; Category and Manufacturer are substring filters. Unmatched drops
// entries whose SKU already has an approved match.
type CatalogQuery struct {
	Q            string
	Category     string
	Manufacturer string
	Unmatched    bool
	Limit        int
}

func (d *DB) SearchCatalog(ctx context.Context, q CatalogQuery) ([]internal.CatalogEntry, error) {
	var where []string
	var args []any
	if term := strings.TrimSpace(q.Q); term != "" {
		like := "%" + term + "%"
		where = append(where, `(name LIKE ? OR manufacturerSku LIKE ? OR brand LIKE ?)`)
		args = append(args, like, like, like)
	}
	if c := strings.TrimSpace(q.Category); c != "" {
		where = append(where, `category LIKE ?`)
		args = append(args, "%"+c+"%")
	}
	if m := strings.TrimSpace(q.Manufacturer); m != "" {
		where = append(where, `manufacturer LIKE ?`)
		args = append(args, "%"+m+"%")
	}
	if q.Unmatched {
		where = append(where, `NOT EXISTS (SELECT 1 FROM approved_matches a WHERE a.skuNorm = master_catalog.skuNorm AND master_catalog.skuNorm != '')`)
	}
	query := `SELECT ` + catalogColumns + ` FROM master_catalog`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY name, itemId LIMIT ?`
	args = append(args, q.Limit)

	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []internal.CatalogEntry
	for rows.Next() {
		e, err := scanCatalog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
