package models

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// CSVHeader is the fixed field order of the flat export.
var CSVHeader = []string{"title", "description", "price", "starRating", "reviewCount", "imageRef"}

// ProductRecord is one listing extracted from the page. Title is the business key.
type ProductRecord struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	StarRating  int             `json:"star_rating"`
	ReviewCount int             `json:"review_count"`
	ImageRef    string          `json:"image_ref"`
}

// FormatPrice renders a price as plain numeric text at its source scale,
// so "24.50" stays "24.50" instead of collapsing to "24.5".
func FormatPrice(p decimal.Decimal) string {
	if exp := p.Exponent(); exp < 0 {
		return p.StringFixed(-exp)
	}
	return p.String()
}

// CSVRow returns the record's fields in CSVHeader order.
func (p *ProductRecord) CSVRow() []string {
	return []string{
		p.Title,
		p.Description,
		FormatPrice(p.Price),
		strconv.Itoa(p.StarRating),
		strconv.Itoa(p.ReviewCount),
		p.ImageRef,
	}
}

func (p *ProductRecord) Validate() []string {
	var errors []string

	if p.Title == "" {
		errors = append(errors, "Title is required")
	}

	if p.StarRating < 0 {
		errors = append(errors, "StarRating must not be negative")
	}

	if p.ReviewCount < 0 {
		errors = append(errors, "ReviewCount must not be negative")
	}

	return errors
}

// RunReport summarizes one pipeline run.
type RunReport struct {
	RunID       string    `json:"run_id"`
	URL         string    `json:"url"`
	ItemsLoaded int       `json:"items_loaded"`
	Reveals     int       `json:"reveals"`
	Converged   bool      `json:"converged"`
	Extracted   int       `json:"records_extracted"`
	Dropped     int       `json:"records_dropped"`
	Committed   int       `json:"rows_committed"`
	State       string    `json:"state"`
	ExportPath  string    `json:"export_path,omitempty"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}
