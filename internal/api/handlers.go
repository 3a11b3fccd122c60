package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/maltedev/listing-scraper/internal/models"
	"github.com/maltedev/listing-scraper/internal/storage"
)

// Runner executes one scrape run.
type Runner interface {
	Run(ctx context.Context) (*models.RunReport, error)
}

type Handlers struct {
	runner Runner
	store  storage.Store
	logger *slog.Logger

	// running is held for the duration of a run; at most one run at a time.
	running sync.Mutex

	mu   sync.RWMutex
	last *models.RunReport
}

// NewHandlers wires the handlers. store may be nil when persistence is off.
func NewHandlers(runner Runner, store storage.Store, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		runner: runner,
		store:  store,
		logger: logger.With("component", "api"),
	}
}

type RunResponse struct {
	Report *models.RunReport `json:"report"`
	Error  string            `json:"error,omitempty"`
}

// TriggerRun runs the pipeline synchronously and returns its report.
func (h *Handlers) TriggerRun(w http.ResponseWriter, r *http.Request) {
	if !h.running.TryLock() {
		h.respondError(w, http.StatusConflict, "a run is already in progress")
		return
	}
	defer h.running.Unlock()

	report, err := h.runner.Run(r.Context())

	h.mu.Lock()
	h.last = report
	h.mu.Unlock()

	if err != nil {
		h.logger.Error("run failed", "error", err)
		h.respondJSON(w, http.StatusInternalServerError, RunResponse{Report: report, Error: err.Error()})
		return
	}

	h.respondJSON(w, http.StatusOK, RunResponse{Report: report})
}

func (h *Handlers) GetLastRun(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	last := h.last
	h.mu.RUnlock()

	if last == nil {
		h.respondError(w, http.StatusNotFound, "no run has finished yet")
		return
	}

	h.respondJSON(w, http.StatusOK, RunResponse{Report: last, Error: last.Error})
}

func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.respondError(w, http.StatusServiceUnavailable, "persistence is disabled")
		return
	}

	products, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list products", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list products")
		return
	}
	if products == nil {
		products = []storage.StoredProduct{}
	}

	h.respondJSON(w, http.StatusOK, products)
}

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.respondError(w, http.StatusServiceUnavailable, "persistence is disabled")
		return
	}

	// chi matches on RawPath when it is set, leaving the segment escaped.
	title := chi.URLParam(r, "title")
	var err error
	if r.URL.RawPath != "" {
		title, err = url.PathUnescape(title)
	}
	if err != nil || title == "" {
		h.respondError(w, http.StatusBadRequest, "title is required")
		return
	}

	product, err := h.store.Get(r.Context(), title)
	if errors.Is(err, storage.ErrNotFound) {
		h.respondError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get product", "title", title, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get product")
		return
	}

	h.respondJSON(w, http.StatusOK, product)
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":      "ok",
		"persistence": h.store != nil,
	}

	status := http.StatusOK
	if h.store != nil {
		count, err := h.store.Count(r.Context())
		if err != nil {
			health["status"] = "error"
			health["message"] = "store unavailable"
			status = http.StatusServiceUnavailable
		} else {
			health["products"] = count
		}
	}

	h.respondJSON(w, status, health)
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
