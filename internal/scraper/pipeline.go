package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/maltedev/listing-scraper/internal/models"
	"github.com/maltedev/listing-scraper/internal/parser"
	"github.com/maltedev/listing-scraper/internal/reconciler"
)

// RunPublisher announces committed runs to downstream consumers.
type RunPublisher interface {
	PublishRun(ctx context.Context, report *models.RunReport) error
}

// RunObserver is told about every finished run, successful or not.
type RunObserver interface {
	ObserveRun(report *models.RunReport, err error)
}

type PipelineConfig struct {
	URL        string
	ExportPath string
}

// Pipeline performs one full run: navigate, load, snapshot, extract, export
// and persist.
type Pipeline struct {
	cfg        PipelineConfig
	source     PageSource
	loader     *Loader
	parser     parser.Parser
	reconciler *reconciler.Reconciler
	publisher  RunPublisher
	observer   RunObserver
	logger     *slog.Logger
}

func NewPipeline(cfg PipelineConfig, source PageSource, loader *Loader, p parser.Parser, rec *reconciler.Reconciler, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg:        cfg,
		source:     source,
		loader:     loader,
		parser:     p,
		reconciler: rec,
		logger:     logger.With("component", "pipeline"),
	}
}

func (p *Pipeline) WithPublisher(pub RunPublisher) *Pipeline {
	p.publisher = pub
	return p
}

func (p *Pipeline) WithObserver(obs RunObserver) *Pipeline {
	p.observer = obs
	return p
}

// Run executes the pipeline once. On failure the report filled in so far is
// returned together with the error; the store keeps its last committed state.
func (p *Pipeline) Run(ctx context.Context) (report *models.RunReport, err error) {
	report = &models.RunReport{
		RunID:     uuid.NewString(),
		URL:       p.cfg.URL,
		State:     string(reconciler.StatePending),
		StartedAt: time.Now().UTC(),
	}
	logger := p.logger.With("run_id", report.RunID)
	logger.Info("starting run", "url", p.cfg.URL)

	defer func() {
		report.FinishedAt = time.Now().UTC()
		if err != nil {
			report.Error = err.Error()
			logger.Error("run failed", "state", report.State, "error", err)
		} else {
			logger.Info("run finished",
				"state", report.State,
				"items_loaded", report.ItemsLoaded,
				"reveals", report.Reveals,
				"extracted", report.Extracted,
				"dropped", report.Dropped,
				"committed", report.Committed,
				"duration", report.FinishedAt.Sub(report.StartedAt))
		}
		if p.observer != nil {
			p.observer.ObserveRun(report, err)
		}
	}()

	page, err := p.source.OpenPage()
	if err != nil {
		return report, &UnrecoverableProviderError{Op: "open_page", Err: err}
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			logger.Warn("failed to close page", "error", cerr)
		}
	}()

	if err := page.Navigate(p.cfg.URL); err != nil {
		return report, &UnrecoverableProviderError{Op: "navigate", Err: err}
	}

	load, err := p.loader.Load(ctx, page)
	if load != nil {
		report.ItemsLoaded = load.Items
		report.Reveals = load.Reveals
		report.Converged = load.Converged
	}
	if err != nil {
		return report, err
	}

	html, err := page.Snapshot()
	if err != nil {
		return report, &UnrecoverableProviderError{Op: "snapshot", Err: err}
	}

	results, err := p.parser.Extract(html)
	if err != nil {
		return report, fmt.Errorf("failed to extract records: %w", err)
	}
	records, dropped := parser.Records(results)
	report.Extracted = len(records)
	report.Dropped = dropped

	if p.cfg.ExportPath != "" {
		if err := p.reconciler.Export(p.cfg.ExportPath, records); err != nil {
			return report, err
		}
		report.ExportPath = p.cfg.ExportPath
	}

	outcome, err := p.reconciler.Persist(ctx, records)
	report.State = string(outcome.State)
	if err != nil {
		return report, err
	}
	if outcome.State == reconciler.StateCommitted {
		report.Committed = outcome.Processed
	}

	if p.publisher != nil && outcome.State == reconciler.StateCommitted {
		report.FinishedAt = time.Now().UTC()
		if perr := p.publisher.PublishRun(ctx, report); perr != nil {
			logger.Warn("failed to publish run event", "error", perr)
		}
	}

	return report, nil
}
