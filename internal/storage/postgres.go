// =============================================================================
// Sales Normalizer - PostgreSQL Storage Sink
// =============================================================================
//
// The storage sink persists normalized batches:
//   - unified_sale_records : one row per UnifiedSaleRecord
//   - upload_skips         : the error report, one row per SkipDecision
//
// A batch is written whole or not at all: records and skips are copied in a
// single transaction, and a batch carrying a StructuralError is refused.
//
// The same database can serve the product catalog (products table) as the
// EAN fallback for the Engine.
//
// =============================================================================

package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/sales-normalizer/internal/batch"
)

// ErrRejectedBatch is returned when a batch with a structural error is
// handed to the sink.
var ErrRejectedBatch = errors.New("batch was rejected with a structural error")

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

const schema = `
CREATE TABLE IF NOT EXISTS unified_sale_records (
	id               BIGSERIAL PRIMARY KEY,
	product_ean      TEXT,
	functional_name  TEXT NOT NULL,
	quantity         INTEGER NOT NULL CHECK (quantity > 0),
	sales_amount     NUMERIC(14, 2) NOT NULL CHECK (sales_amount > 0),
	sale_date        DATE NOT NULL,
	sales_channel    TEXT NOT NULL,
	store_identifier TEXT NOT NULL,
	reseller_id      TEXT NOT NULL,
	upload_id        TEXT NOT NULL,
	month            SMALLINT NOT NULL,
	year             SMALLINT NOT NULL,
	source_row       INTEGER NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS unified_sale_records_upload_idx ON unified_sale_records (upload_id);

CREATE TABLE IF NOT EXISTS upload_skips (
	id          BIGSERIAL PRIMARY KEY,
	upload_id   TEXT NOT NULL,
	vendor_id   TEXT NOT NULL,
	file_name   TEXT NOT NULL,
	row_number  INTEGER NOT NULL,
	store       TEXT,
	reason      TEXT NOT NULL,
	raw_context TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS upload_skips_upload_idx ON upload_skips (upload_id);

CREATE TABLE IF NOT EXISTS products (
	name TEXT PRIMARY KEY,
	ean  TEXT NOT NULL
);
`

var (
	recordColumns = []string{
		"product_ean", "functional_name", "quantity", "sales_amount", "sale_date",
		"sales_channel", "store_identifier", "reseller_id", "upload_id", "month",
		"year", "source_row",
	}
	skipColumns = []string{
		"upload_id", "vendor_id", "file_name", "row_number", "store", "reason", "raw_context",
	}
)

// Store is the PostgreSQL sink.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to the database at url and verifies the connection.
func Open(ctx context.Context, url string) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// EnsureSchema creates the sink's tables when they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// WriteBatch stores the records and skips of res in one transaction.
func (s *Store) WriteBatch(ctx context.Context, res *batch.Result) error {
	if res.Failed() {
		return fmt.Errorf("%w: %s", ErrRejectedBatch, res.FileName)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // No-op once committed

	if len(res.Records) > 0 {
		n, err := tx.CopyFrom(ctx, pgx.Identifier{"unified_sale_records"}, recordColumns, pgx.CopyFromRows(recordRows(res)))
		if err != nil {
			return fmt.Errorf("failed to copy records: %w", err)
		}
		if int(n) != len(res.Records) {
			return fmt.Errorf("copied %d of %d records", n, len(res.Records))
		}
	}

	if len(res.Skips) > 0 {
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"upload_skips"}, skipColumns, pgx.CopyFromRows(skipRows(res))); err != nil {
			return fmt.Errorf("failed to copy skips: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// Catalog returns a product catalog backed by the products table.
func (s *Store) Catalog() *Catalog {
	return &Catalog{db: s.pool}
}

// =============================================================================
// ROW BUILDERS
// =============================================================================

func recordRows(res *batch.Result) [][]any {
	rows := make([][]any, len(res.Records))
	for i, r := range res.Records {
		var ean any
		if r.ProductEAN != nil {
			ean = *r.ProductEAN
		}
		rows[i] = []any{
			ean,
			r.FunctionalName,
			int32(r.Quantity),
			numeric(r.SalesAmount),
			pgtype.Date{Time: r.SaleDate, Valid: true},
			string(r.SalesChannel),
			r.StoreIdentifier,
			r.ResellerID,
			r.UploadID,
			int16(r.Month),
			int16(r.Year),
			int32(r.SourceRow),
		}
	}
	return rows
}

func skipRows(res *batch.Result) [][]any {
	rows := make([][]any, len(res.Skips))
	for i, s := range res.Skips {
		var store any
		if s.Store != "" {
			store = s.Store
		}
		rows[i] = []any{
			res.UploadID,
			res.VendorID,
			res.FileName,
			int32(s.Row),
			store,
			string(s.Reason),
			s.RawContext,
		}
	}
	return rows
}

// numeric converts a decimal without going through float64.
func numeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

// =============================================================================
// CATALOG
// =============================================================================

// Catalog looks up EANs in the products table by exact name.
type Catalog struct {
	db DBTX
}

// NewCatalog creates a Catalog over any connection or transaction.
func NewCatalog(db DBTX) *Catalog {
	return &Catalog{db: db}
}

// LookupEAN returns the EAN registered for name.
func (c *Catalog) LookupEAN(ctx context.Context, name string) (string, bool, error) {
	var ean string
	err := c.db.QueryRow(ctx, `SELECT ean FROM products WHERE name = $1`, name).Scan(&ean)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("catalog lookup: %w", err)
	}
	return ean, true, nil
}
