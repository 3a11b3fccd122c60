package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/maltedev/listing-scraper/internal/models"
)

// Recorder turns run reports into prometheus series. It satisfies
// scraper.RunObserver.
type Recorder struct {
	registry *prometheus.Registry

	ItemsLoaded      prometheus.Gauge
	RecordsExtracted prometheus.Counter
	RecordsDropped   prometheus.Counter
	RowsCommitted    prometheus.Counter
	Runs             *prometheus.CounterVec
	RunDuration      prometheus.Histogram
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		ItemsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "listing_items_loaded",
			Help: "Item containers present on the page after the last load.",
		}),
		RecordsExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "listing_records_extracted_total",
			Help: "Records successfully extracted from snapshots.",
		}),
		RecordsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "listing_records_dropped_total",
			Help: "Containers dropped because a field was missing or malformed.",
		}),
		RowsCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "listing_rows_committed_total",
			Help: "Rows upserted by committed transactions.",
		}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "listing_runs_total",
			Help: "Finished runs by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "listing_run_duration_seconds",
			Help:    "Wall time of a full run.",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		}),
	}

	r.registry.MustRegister(
		r.ItemsLoaded,
		r.RecordsExtracted,
		r.RecordsDropped,
		r.RowsCommitted,
		r.Runs,
		r.RunDuration,
	)

	return r
}

// ObserveRun records one finished run. The outcome label is "success",
// "degraded" when the loader did not converge, or "failure".
func (r *Recorder) ObserveRun(report *models.RunReport, err error) {
	outcome := "success"
	switch {
	case err != nil:
		outcome = "failure"
	case !report.Converged:
		outcome = "degraded"
	}
	r.Runs.WithLabelValues(outcome).Inc()

	r.ItemsLoaded.Set(float64(report.ItemsLoaded))
	r.RecordsExtracted.Add(float64(report.Extracted))
	r.RecordsDropped.Add(float64(report.Dropped))
	r.RowsCommitted.Add(float64(report.Committed))

	if !report.FinishedAt.IsZero() {
		r.RunDuration.Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())
	}
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
