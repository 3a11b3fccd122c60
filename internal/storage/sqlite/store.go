package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/maltedev/listing-scraper/internal/models"
	"github.com/maltedev/listing-scraper/internal/storage"
)

// Store keeps products in a SQLite file through modernc.org/sqlite.
//
// Prices are stored as TEXT holding the exact decimal string and timestamps
// as RFC3339Nano strings, since SQLite has neither NUMERIC(p,s) nor
// TIMESTAMPTZ with exact round-trips.
type Store struct {
	db *sql.DB
}

func init() {
	storage.Register("sqlite", New)
}

func New(ctx context.Context, cfg storage.Config) (storage.Store, error) {
	s, err := Open(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// One writer at a time; also keeps ":memory:" databases on a single connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() { _ = s.db.Close() }

const schema = `
CREATE TABLE IF NOT EXISTS products (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	title        TEXT    NOT NULL CHECK (title <> ''),
	description  TEXT    NOT NULL DEFAULT '',
	price        TEXT    NOT NULL,
	star_rating  INTEGER NOT NULL DEFAULT 0 CHECK (star_rating >= 0),
	review_count INTEGER NOT NULL DEFAULT 0 CHECK (review_count >= 0),
	image_ref    TEXT    NOT NULL DEFAULT '',
	created_at   TEXT    NOT NULL,
	updated_at   TEXT    NOT NULL,
	CONSTRAINT uq_product_title UNIQUE (title)
)`

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create products table: %w", err)
	}
	return nil
}

func (s *Store) WithTx(ctx context.Context, fn func(storage.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&sqliteTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type sqliteTx struct {
	tx *sql.Tx
}

// Upsert checks for an existing row by title and then updates or inserts it.
// Both statements run inside the caller's transaction.
func (t *sqliteTx) Upsert(ctx context.Context, p *models.ProductRecord) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	price := models.FormatPrice(p.Price)

	var id int64
	err := t.tx.QueryRowContext(ctx, `SELECT id FROM products WHERE title = ?`, p.Title).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = t.tx.ExecContext(ctx, `
			INSERT INTO products
				(title, description, price, star_rating, review_count, image_ref, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			p.Title, p.Description, price, p.StarRating, p.ReviewCount, p.ImageRef, now, now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert product: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to look up product: %w", err)
	default:
		_, err = t.tx.ExecContext(ctx, `
			UPDATE products SET
				description = ?,
				price = ?,
				star_rating = ?,
				review_count = ?,
				image_ref = ?,
				updated_at = ?
			WHERE id = ?`,
			p.Description, price, p.StarRating, p.ReviewCount, p.ImageRef, now, id,
		)
		if err != nil {
			return fmt.Errorf("failed to update product: %w", err)
		}
	}

	return nil
}

const selectColumns = `id, title, description, price, star_rating, review_count, image_ref, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner) (*storage.StoredProduct, error) {
	var (
		p                    storage.StoredProduct
		price                string
		createdAt, updatedAt string
	)
	if err := row.Scan(&p.ID, &p.Title, &p.Description, &price, &p.StarRating, &p.ReviewCount,
		&p.ImageRef, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	d, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("invalid stored price %q: %w", price, err)
	}
	p.Price = d
	p.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)

	return &p, nil
}

func (s *Store) Get(ctx context.Context, title string) (*storage.StoredProduct, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM products WHERE title = ?`, title)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

func (s *Store) List(ctx context.Context) ([]storage.StoredProduct, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []storage.StoredProduct
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return n, nil
}
