package parser

import (
	"errors"
	"fmt"

	"github.com/maltedev/listing-scraper/internal/models"
)

var (
	ErrMissingField       = errors.New("required field missing")
	ErrInvalidPrice       = errors.New("invalid price")
	ErrInvalidReviewCount = errors.New("invalid review count")
)

// Parser turns a loaded listing document into per-container results.
type Parser interface {
	Extract(html string) ([]Result, error)
}

// RecordExtractionError reports why a single container produced no record.
type RecordExtractionError struct {
	Index int
	Field string
	Err   error
}

func (e *RecordExtractionError) Error() string {
	return fmt.Sprintf("container %d: %s: %v", e.Index, e.Field, e.Err)
}

func (e *RecordExtractionError) Unwrap() error {
	return e.Err
}

// Result is the outcome of extracting one container: a record or the cause it was dropped.
type Result struct {
	Index  int
	Record *models.ProductRecord
	Err    error
}

func (r Result) OK() bool {
	return r.Err == nil && r.Record != nil
}

// Records collects the successful records in document order and counts the dropped ones.
func Records(results []Result) ([]models.ProductRecord, int) {
	records := make([]models.ProductRecord, 0, len(results))
	dropped := 0

	for _, r := range results {
		if !r.OK() {
			dropped++
			continue
		}
		records = append(records, *r.Record)
	}

	return records, dropped
}
