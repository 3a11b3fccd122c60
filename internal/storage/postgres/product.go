package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/maltedev/listing-scraper/internal/models"
	"github.com/maltedev/listing-scraper/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS products (
	id           BIGSERIAL PRIMARY KEY,
	title        TEXT        NOT NULL CHECK (title <> ''),
	description  TEXT        NOT NULL DEFAULT '',
	price        NUMERIC     NOT NULL,
	star_rating  INTEGER     NOT NULL DEFAULT 0 CHECK (star_rating >= 0),
	review_count INTEGER     NOT NULL DEFAULT 0 CHECK (review_count >= 0),
	image_ref    TEXT        NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	CONSTRAINT uq_product_title UNIQUE (title)
)`

func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create products table: %w", err)
	}
	return nil
}

type productTx struct {
	tx pgx.Tx
}

// Upsert inserts the product or overwrites the row holding the same title.
func (t *productTx) Upsert(ctx context.Context, p *models.ProductRecord) error {
	query := `
		INSERT INTO products (title, description, price, star_rating, review_count, image_ref)
		VALUES ($1, $2, $3::numeric, $4, $5, $6)
		ON CONFLICT ON CONSTRAINT uq_product_title DO UPDATE SET
			description = EXCLUDED.description,
			price = EXCLUDED.price,
			star_rating = EXCLUDED.star_rating,
			review_count = EXCLUDED.review_count,
			image_ref = EXCLUDED.image_ref,
			updated_at = CURRENT_TIMESTAMP`

	_, err := t.tx.Exec(ctx, query,
		p.Title, p.Description, models.FormatPrice(p.Price), p.StarRating, p.ReviewCount, p.ImageRef,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert product: %w", err)
	}

	return nil
}

const selectColumns = `id, title, description, price::text, star_rating, review_count, image_ref, created_at, updated_at`

func scanProduct(row pgx.Row) (*storage.StoredProduct, error) {
	var (
		p     storage.StoredProduct
		price string
	)
	if err := row.Scan(&p.ID, &p.Title, &p.Description, &price, &p.StarRating, &p.ReviewCount,
		&p.ImageRef, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}

	d, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("invalid stored price %q: %w", price, err)
	}
	p.Price = d

	return &p, nil
}

func (db *DB) Get(ctx context.Context, title string) (*storage.StoredProduct, error) {
	row := db.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM products WHERE title = $1`, title)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

func (db *DB) List(ctx context.Context) ([]storage.StoredProduct, error) {
	rows, err := db.pool.Query(ctx, `SELECT `+selectColumns+` FROM products ORDER BY id`)
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

func (db *DB) Count(ctx context.Context) (int, error) {
	var n int
	if err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return n, nil
}
