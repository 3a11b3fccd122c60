package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/listing-scraper/internal/models"
	"github.com/maltedev/listing-scraper/internal/storage"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	ctx := context.Background()
	s, err := Open(ctx, filepath.Join(t.TempDir(), "products.db"))
	require.NoError(t, err)
	t.Cleanup(s.Close)

	require.NoError(t, s.EnsureSchema(ctx))
	return s
}

func product(title, price string) *models.ProductRecord {
	return &models.ProductRecord{
		Title:       title,
		Description: "desc " + title,
		Price:       decimal.RequireFromString(price),
		StarRating:  3,
		ReviewCount: 7,
		ImageRef:    "/img/" + title + ".png",
	}
}

func upsertAll(ctx context.Context, s *Store, records ...*models.ProductRecord) error {
	return s.WithTx(ctx, func(tx storage.Tx) error {
		for _, r := range records {
			if err := tx.Upsert(ctx, r); err != nil {
				return err
			}
		}
		return nil
	})
}

func TestRegisteredDriver(t *testing.T) {
	assert.Contains(t, storage.Drivers(), "sqlite")

	st, err := storage.Open(context.Background(), storage.Config{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "registry.db"),
	})
	require.NoError(t, err)
	st.Close()
}

func TestEnsureSchemaIsIdempotent(t *testing.T) {
	s := setupTestStore(t)
	assert.NoError(t, s.EnsureSchema(context.Background()))
}

func TestUpsertInsertsAndRoundTrips(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	require.NoError(t, upsertAll(ctx, s, product("Galaxy Tab", "251.99")))

	got, err := s.Get(ctx, "Galaxy Tab")
	require.NoError(t, err)
	assert.Equal(t, "desc Galaxy Tab", got.Description)
	assert.Equal(t, "251.99", models.FormatPrice(got.Price))
	assert.Equal(t, 3, got.StarRating)
	assert.Equal(t, 7, got.ReviewCount)
	assert.Equal(t, "/img/Galaxy Tab.png", got.ImageRef)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	batch := []*models.ProductRecord{product("A", "1.00"), product("B", "2.00"), product("C", "3.00")}
	require.NoError(t, upsertAll(ctx, s, batch...))
	first, err := s.List(ctx)
	require.NoError(t, err)

	require.NoError(t, upsertAll(ctx, s, batch...))
	second, err := s.List(ctx)
	require.NoError(t, err)

	require.Len(t, second, 3)
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Title, second[i].Title)
		assert.True(t, first[i].Price.Equal(second[i].Price))
	}
}

func TestUpsertUpdatesExistingRow(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	require.NoError(t, upsertAll(ctx, s, product("Galaxy Tab", "251.99")))

	changed := product("Galaxy Tab", "239.99")
	changed.ReviewCount = 12
	require.NoError(t, upsertAll(ctx, s, changed))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.Get(ctx, "Galaxy Tab")
	require.NoError(t, err)
	assert.Equal(t, "239.99", models.FormatPrice(got.Price))
	assert.Equal(t, 12, got.ReviewCount)
}

func TestDuplicateTitlesInOneBatchLastWins(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	require.NoError(t, upsertAll(ctx, s, product("Same", "1.00"), product("Same", "2.00")))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.Get(ctx, "Same")
	require.NoError(t, err)
	assert.Equal(t, "2.00", models.FormatPrice(got.Price))
}

func TestFailedBatchLeavesNoRows(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	// The empty title violates the table's CHECK constraint on the third write.
	err := upsertAll(ctx, s, product("A", "1.00"), product("B", "2.00"), product("", "3.00"), product("D", "4.00"))
	require.Error(t, err)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestWithTxRollsBackOnCallbackError(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	require.NoError(t, upsertAll(ctx, s, product("Keep", "5.00")))

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx storage.Tx) error {
		if err := tx.Upsert(ctx, product("Keep", "9.00")); err != nil {
			return err
		}
		if err := tx.Upsert(ctx, product("New", "1.00")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.Get(ctx, "Keep")
	require.NoError(t, err)
	assert.Equal(t, "5.00", models.FormatPrice(got.Price))
}

func TestGetMissing(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
