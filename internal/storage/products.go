package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"supplymatch/internal"
	"supplymatch/internal/util"
)

const productColumns = `id, manufacturerItemCode, productName, itemDescription, packingListDescription,
  unitPrice, packageType, manufacturerName, categoryPath, isActive`

func scanProduct(s scanner) (internal.Product, error) {
	var p internal.Product
	err := s.Scan(&p.ID, &p.ManufacturerItemCode, &p.ProductName, &p.ItemDescription, &p.PackingListDescription,
		&p.UnitPrice, &p.PackageType, &p.ManufacturerName, &p.CategoryPath, &p.IsActive)
	return p, err
}

func (d *DB) queryProducts(ctx context.Context, query string, params ...any) ([]internal.Product, error) {
	rows, err := d.conn.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpsertProducts keys products on normalized code plus package type and
// assigns stored ids back onto products.
func (d *DB) UpsertProducts(ctx context.Context, products []internal.Product) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO products (
  manufacturerItemCode, codeNorm, productName, itemDescription, packingListDescription,
  unitPrice, packageType, manufacturerName, categoryPath, isActive
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(codeNorm, packageType) DO UPDATE SET
  manufacturerItemCode=excluded.manufacturerItemCode,
  productName=excluded.productName,
  itemDescription=excluded.itemDescription,
  packingListDescription=excluded.packingListDescription,
  unitPrice=excluded.unitPrice,
  manufacturerName=excluded.manufacturerName,
  categoryPath=excluded.categoryPath,
  isActive=excluded.isActive,
  updatedAt=CURRENT_TIMESTAMP
RETURNING id`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range products {
		p := &products[i]
		if err := stmt.QueryRowContext(ctx,
			p.ManufacturerItemCode, util.NormalizeCode(p.ManufacturerItemCode), p.ProductName, p.ItemDescription,
			p.PackingListDescription, p.UnitPrice, p.PackageType, p.ManufacturerName, p.CategoryPath, p.IsActive,
		).Scan(&p.ID); err != nil {
			return fmt.Errorf("product %s: %w", p.ManufacturerItemCode, err)
		}
	}

	return tx.Commit()
}

func (d *DB) GetProduct(ctx context.Context, id int64) (internal.Product, error) {
	p, err := scanProduct(d.conn.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return internal.Product{}, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	return p, err
}

// ProductsByCodes returns every product whose normalized manufacturer item
// code is one of codes, in id order.
func (d *DB) ProductsByCodes(ctx context.Context, codes []string) ([]internal.Product, error) {
	norm := make([]string, 0, len(codes))
	seen := map[string]bool{}
	for _, c := range codes {
		n := util.NormalizeCode(c)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		norm = append(norm, n)
	}

	var out []internal.Product
	for _, chunk := range chunks(norm, lookupChunk) {
		ps, err := d.queryProducts(ctx, `SELECT `+productColumns+` FROM products WHERE codeNorm IN (`+placeholders(len(chunk))+`) ORDER BY id`, toArgs(chunk)...)
		if err != nil {
			return nil, err
		}
		out = append(out, ps...)
	}
	return out, nil
}

func (d *DB) ActiveProducts(ctx context.Context) ([]internal.Product, error) {
	return d.queryProducts(ctx, `SELECT `+productColumns+` FROM products WHERE isActive = 1 ORDER BY id`)
}

func (d *DB) SearchProducts(ctx context.Context, q string, limit int) ([]internal.Product, error) {
	like := "%" + q + "%"
	return d.queryProducts(ctx, `SELECT `+productColumns+` FROM products
WHERE isActive = 1 AND (productName LIKE ? OR manufacturerItemCode LIKE ? OR itemDescription LIKE ?)
ORDER BY productName LIMIT ?`, like, like, like, limit)
}
