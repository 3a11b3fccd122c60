package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/maltedev/listing-scraper/internal/models"
)

var (
	ErrNotFound      = errors.New("product not found")
	ErrUnknownDriver = errors.New("unknown storage driver")
)

// StoredProduct is a persisted row: the record plus its surrogate key and timestamps.
type StoredProduct struct {
	ID int64 `json:"id"`
	models.ProductRecord
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tx is the write side available inside a transaction.
type Tx interface {
	// Upsert inserts the record or, when a row with the same title exists,
	// overwrites every non-key field with the record's values.
	Upsert(ctx context.Context, p *models.ProductRecord) error
}

// Store is the durable product relation.
type Store interface {
	EnsureSchema(ctx context.Context) error
	// WithTx runs fn in one transaction. If fn returns an error the
	// transaction is rolled back before WithTx returns.
	WithTx(ctx context.Context, fn func(Tx) error) error
	Get(ctx context.Context, title string) (*StoredProduct, error)
	List(ctx context.Context) ([]StoredProduct, error)
	Count(ctx context.Context) (int, error)
	Close()
}

type Config struct {
	Driver      string
	DSN         string
	MaxConns    int32
	MinConns    int32
	MaxConnLife time.Duration
	MaxConnIdle time.Duration
}

type Factory func(ctx context.Context, cfg Config) (Store, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available to Open. It panics on an empty driver
// name, a nil factory or a duplicate registration.
func Register(driver string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if driver == "" {
		panic("storage: Register called with empty driver")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[driver]; exists {
		panic(fmt.Sprintf("storage: factory already registered for driver=%q", driver))
	}

	factories[driver] = f
}

// Open constructs the Store registered under cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	if cfg.Driver == "" {
		return nil, fmt.Errorf("storage: missing driver")
	}

	mu.RLock()
	f := factories[cfg.Driver]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, cfg.Driver)
	}
	return f(ctx, cfg)
}

func Drivers() []string {
	mu.RLock()
	defer mu.RUnlock()

	drivers := make([]string, 0, len(factories))
	for d := range factories {
		drivers = append(drivers, d)
	}
	return drivers
}
