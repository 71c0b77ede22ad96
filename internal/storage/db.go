package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

// lookupChunk bounds the number of bound parameters in one IN (...) query.
const lookupChunk = 500

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one writer; concurrent callers queue on the pool instead of hitting SQLITE_BUSY
	conn.SetMaxOpenConns(1)

	for _, pragma := range []string{`PRAGMA journal_mode = WAL;`, `PRAGMA busy_timeout = 5000;`, `PRAGMA foreign_keys = ON;`} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

// Wrap uses an already opened connection and does not touch the schema.
func Wrap(conn *sql.DB) *DB {
	return &DB{conn: conn}
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) Ping(ctx context.Context) error {
	return d.conn.PingContext(ctx)
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS uploads (
  id TEXT PRIMARY KEY,
  filename TEXT NOT NULL,
  originalFilename TEXT NOT NULL,
  rowCount INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'matching',
  matchedCount INTEGER NOT NULL DEFAULT 0,
  reviewCount INTEGER NOT NULL DEFAULT 0,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS upload_items (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  uploadId TEXT NOT NULL,
  rowNo INTEGER NOT NULL,
  itemNumber TEXT NOT NULL DEFAULT '',
  manufacturer TEXT NOT NULL DEFAULT '',
  mfrNumber TEXT NOT NULL DEFAULT '',
  description TEXT NOT NULL DEFAULT '',
  contents TEXT NOT NULL DEFAULT '',
  uom TEXT NOT NULL DEFAULT '',
  shipQty REAL NOT NULL DEFAULT 0,
  costPerUnit REAL NOT NULL DEFAULT 0,
  totalExtPurchase REAL NOT NULL DEFAULT 0,
  percentTotal REAL NOT NULL DEFAULT 0,
  invoiceCount INTEGER NOT NULL DEFAULT 0,
  catalogId INTEGER,
  enrichedName TEXT,
  enrichedDescription TEXT,
  enrichedManufacturer TEXT,
  enrichedBrand TEXT,
  enrichedCategory TEXT,
  enrichedSpecs TEXT,
  enrichedMfrSku TEXT,
  matchStatus TEXT NOT NULL DEFAULT 'pending',
  matchConfidence INTEGER NOT NULL DEFAULT 0,
  matchedProductId INTEGER,
  matchNote TEXT,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(uploadId) REFERENCES uploads(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_upload_items_upload ON upload_items(uploadId, rowNo);

CREATE TABLE IF NOT EXISTS products (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  manufacturerItemCode TEXT NOT NULL,
  codeNorm TEXT NOT NULL,
  productName TEXT NOT NULL DEFAULT '',
  itemDescription TEXT NOT NULL DEFAULT '',
  packingListDescription TEXT NOT NULL DEFAULT '',
  unitPrice REAL NOT NULL DEFAULT 0,
  packageType TEXT NOT NULL DEFAULT '',
  manufacturerName TEXT NOT NULL DEFAULT '',
  categoryPath TEXT NOT NULL DEFAULT '',
  isActive INTEGER NOT NULL DEFAULT 1,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(codeNorm, packageType)
);
CREATE INDEX IF NOT EXISTS idx_products_code ON products(codeNorm);

CREATE TABLE IF NOT EXISTS master_catalog (
  itemId INTEGER PRIMARY KEY,
  manufacturerSku TEXT NOT NULL DEFAULT '',
  skuNorm TEXT NOT NULL DEFAULT '',
  name TEXT NOT NULL DEFAULT '',
  shortDescription TEXT NOT NULL DEFAULT '',
  manufacturer TEXT NOT NULL DEFAULT '',
  brand TEXT NOT NULL DEFAULT '',
  category TEXT NOT NULL DEFAULT '',
  specsJson TEXT NOT NULL DEFAULT '{}',
  lastSeenAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_master_catalog_sku ON master_catalog(skuNorm);

CREATE TABLE IF NOT EXISTS approved_matches (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  externalSku TEXT NOT NULL,
  skuNorm TEXT NOT NULL UNIQUE,
  externalDescription TEXT NOT NULL DEFAULT '',
  productId INTEGER NOT NULL,
  approvedBy TEXT NOT NULL DEFAULT '',
  notes TEXT NOT NULL DEFAULT '',
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(productId) REFERENCES products(id)
);

CREATE TABLE IF NOT EXISTS inbox_messages (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  messageId TEXT NOT NULL,
  subject TEXT,
  sender TEXT,
  receivedAt TEXT,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'fetched',
  rawRef TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, messageId)
);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  uploadId TEXT,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) InsertRun(ctx context.Context, traceID, uploadID string, timings map[string]float64, counts map[string]int) error {
	timingsJSON, err := json.Marshal(timings)
	if err != nil {
		return fmt.Errorf("run timings: %w", err)
	}
	countsJSON, err := json.Marshal(counts)
	if err != nil {
		return fmt.Errorf("run counts: %w", err)
	}
	_, err = d.conn.ExecContext(ctx, `INSERT INTO runs (traceId, uploadId, timingsJson, countsJson) VALUES (?, ?, ?, ?)`,
		traceID, uploadID, string(timingsJSON), string(countsJSON))
	return err
}

type Run struct {
	TraceID   string             `json:"trace_id"`
	UploadID  string             `json:"upload_id"`
	Timings   map[string]float64 `json:"timings_ms"`
	Counts    map[string]int     `json:"counts"`
	CreatedAt time.Time          `json:"created_at"`
}

func (d *DB) RunsByUpload(ctx context.Context, uploadID string) ([]Run, error) {
	rows, err := d.conn.QueryContext(ctx, `
SELECT traceId, uploadId, timingsJson, countsJson, createdAt
FROM runs WHERE uploadId = ? ORDER BY id ASC`, uploadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var timingsJSON, countsJSON, created string
		if err := rows.Scan(&r.TraceID, &r.UploadID, &timingsJSON, &countsJSON, &created); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(timingsJSON), &r.Timings); err != nil {
			return nil, fmt.Errorf("run %s timings: %w", r.TraceID, err)
		}
		if err := json.Unmarshal([]byte(countsJSON), &r.Counts); err != nil {
			return nil, fmt.Errorf("run %s counts: %w", r.TraceID, err)
		}
		r.CreatedAt = parseTime(created)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func chunks[T any](in []T, size int) [][]T {
	var out [][]T
	for start := 0; start < len(in); start += size {
		end := min(start+size, len(in))
		out = append(out, in[start:end])
	}
	return out
}

func toArgs[T any](in []T) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

func parseTime(s string) time.Time {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func int64Ptr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}
