package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/maltedev/listing-scraper/internal/export"
	"github.com/maltedev/listing-scraper/internal/models"
	"github.com/maltedev/listing-scraper/internal/storage"
)

var ErrInvalidRecord = errors.New("invalid record")

type State string

const (
	StatePending   State = "PENDING"
	StateCommitted State = "COMMITTED"
	StateAborted   State = "ABORTED"
	// StateSkipped is reported when no store is configured.
	StateSkipped State = "SKIPPED"
)

type Outcome struct {
	State     State
	Processed int
}

// PersistenceError is returned after the transaction has been rolled back.
// Processed counts the upserts that ran before the failure; none of them
// are visible in the store.
type PersistenceError struct {
	Processed int
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence aborted after %d records: %v", e.Processed, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Reconciler hands one run's records to the flat export and the store.
type Reconciler struct {
	store  storage.Store
	logger *slog.Logger
}

// New builds a Reconciler. store may be nil, in which case Persist is a no-op.
func New(store storage.Store, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		store:  store,
		logger: logger.With("component", "reconciler"),
	}
}

func (r *Reconciler) HasStore() bool { return r.store != nil }

func (r *Reconciler) Export(path string, records []models.ProductRecord) error {
	if err := export.WriteCSV(path, records); err != nil {
		r.logger.Error("failed to export records", "path", path, "error", err)
		return fmt.Errorf("failed to export records: %w", err)
	}

	r.logger.Info("exported records", "path", path, "count", len(records))
	return nil
}

// Persist upserts every record keyed on title inside one transaction.
func (r *Reconciler) Persist(ctx context.Context, records []models.ProductRecord) (Outcome, error) {
	outcome := Outcome{State: StatePending}
	if r.store == nil {
		outcome.State = StateSkipped
		return outcome, nil
	}

	processed := 0
	err := r.store.WithTx(ctx, func(tx storage.Tx) error {
		for i := range records {
			if problems := records[i].Validate(); len(problems) > 0 {
				return fmt.Errorf("%w %d: %s", ErrInvalidRecord, i, strings.Join(problems, "; "))
			}
			if err := tx.Upsert(ctx, &records[i]); err != nil {
				return fmt.Errorf("failed to upsert record %d (%q): %w", i, records[i].Title, err)
			}
			processed++
		}
		return nil
	})
	if err != nil {
		outcome.State = StateAborted
		outcome.Processed = processed
		r.logger.Error("transaction rolled back",
			"processed", processed,
			"total", len(records),
			"error", err)
		return outcome, &PersistenceError{Processed: processed, Err: err}
	}

	outcome.State = StateCommitted
	outcome.Processed = processed
	r.logger.Info("successfully processed records", "count", processed)

	return outcome, nil
}
