package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/maltedev/listing-scraper/internal/models"
)

// Write emits the header and one row per record, duplicates included.
func Write(w io.Writer, records []models.ProductRecord) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(models.CSVHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i := range records {
		if err := cw.Write(records[i].CSVRow()); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteCSV replaces the file at path with a fresh export. The rows go to a
// temporary file in the same directory which is renamed over path, so a
// reader never sees a partial file.
func WriteCSV(path string, records []models.ProductRecord) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = Write(tmp, records); err != nil {
		_ = tmp.Close()
		return err
	}
	// CreateTemp uses 0600 and Rename keeps it.
	if err = tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to set export permissions: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	return nil
}
