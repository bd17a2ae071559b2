package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/maltedev/catalog-scraper/internal/catalog"
	"github.com/maltedev/catalog-scraper/internal/models"
	"github.com/maltedev/catalog-scraper/internal/queue"
	"github.com/maltedev/catalog-scraper/internal/reconcile"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500

	pendingWarnThreshold     = 1000
	deadLetterErrorThreshold = 100
)

// Backlog reports outbox relay health. It is optional.
type Backlog interface {
	Backlog(ctx context.Context) (pending, deadLetter int64, err error)
}

// Trigger starts a background re-check and reports false when one is already running.
type Trigger func() bool

type Handlers struct {
	catalog  catalog.Store
	deferred queue.Queue
	history  *reconcile.History
	backlog  Backlog
	recheck  Trigger
	logger   *slog.Logger
}

type Deps struct {
	Catalog  catalog.Store
	Deferred queue.Queue
	History  *reconcile.History
	Backlog  Backlog
	Recheck  Trigger
}

func NewHandlers(deps Deps, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.History == nil {
		deps.History = reconcile.NewHistory(0)
	}
	return &Handlers{
		catalog:  deps.Catalog,
		deferred: deps.Deferred,
		history:  deps.History,
		backlog:  deps.Backlog,
		recheck:  deps.Recheck,
		logger:   logger.With("component", "api"),
	}
}

// Health reports liveness plus outbox backlog when a relay is configured.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{"status": "ok"}
	status := http.StatusOK

	if h.backlog != nil {
		pending, dead, err := h.backlog.Backlog(r.Context())
		if err != nil {
			h.logger.Error("failed to read outbox backlog", "error", err)
			health["status"] = "error"
			health["message"] = "outbox backlog unavailable"
			h.respondJSON(w, http.StatusServiceUnavailable, health)
			return
		}
		health["outbox"] = map[string]int64{"pending": pending, "dead_letter": dead}
		if pending > pendingWarnThreshold {
			health["status"] = "warning"
			health["message"] = "High number of pending outbox events"
		}
		if dead > deadLetterErrorThreshold {
			health["status"] = "error"
			health["message"] = "High number of dead letter events"
			status = http.StatusServiceUnavailable
		}
	}

	if last := h.history.Last(); last != nil {
		health["last_run"] = last.FinishedAt
	}
	h.respondJSON(w, status, health)
}

// ProductsResponse is one page of catalog records.
type ProductsResponse struct {
	Products []*models.ProductRecord `json:"products"`
	Total    int                     `json:"total"`
	Limit    int                     `json:"limit"`
	Offset   int                     `json:"offset"`
}

func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := h.page(w, r)
	if !ok {
		return
	}
	category := r.URL.Query().Get("category")

	products, err := h.catalog.List(r.Context(), category, limit, offset)
	if err != nil {
		h.logger.Error("failed to list products", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list products")
		return
	}
	total, err := h.catalog.Count(r.Context())
	if err != nil {
		h.logger.Error("failed to count products", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to count products")
		return
	}
	if products == nil {
		products = []*models.ProductRecord{}
	}

	h.respondJSON(w, http.StatusOK, ProductsResponse{Products: products, Total: total, Limit: limit, Offset: offset})
}

// LookupProduct finds one record by name, model and color.
func (h *Handlers) LookupProduct(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id := models.Identity{Name: q.Get("name"), Model: q.Get("model"), Color: q.Get("color")}
	if id.Name == "" || id.Model == "" || id.Color == "" {
		h.respondError(w, http.StatusBadRequest, "name, model and color are required")
		return
	}

	rec, err := h.catalog.Find(r.Context(), id)
	if errors.Is(err, catalog.ErrNotFound) {
		h.respondError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to find product", "error", err, "product", id.String())
		h.respondError(w, http.StatusInternalServerError, "failed to find product")
		return
	}
	h.respondJSON(w, http.StatusOK, rec)
}

type DeferredResponse struct {
	Size  int                   `json:"size"`
	Items []models.DeferredItem `json:"items"`
}

func (h *Handlers) ListDeferred(w http.ResponseWriter, r *http.Request) {
	limit, _, ok := h.page(w, r)
	if !ok {
		return
	}

	size, err := h.deferred.Size(r.Context())
	if err != nil {
		h.logger.Error("failed to read deferred queue size", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to read deferred queue")
		return
	}
	items, err := h.deferred.Peek(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to peek deferred queue", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to read deferred queue")
		return
	}
	if items == nil {
		items = []models.DeferredItem{}
	}
	h.respondJSON(w, http.StatusOK, DeferredResponse{Size: size, Items: items})
}

func (h *Handlers) LastRun(w http.ResponseWriter, r *http.Request) {
	last := h.history.Last()
	if last == nil {
		h.respondError(w, http.StatusNotFound, "no run recorded yet")
		return
	}
	h.respondJSON(w, http.StatusOK, last)
}

func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, _, ok := h.page(w, r)
	if !ok {
		return
	}
	runs := h.history.Recent(limit)
	if runs == nil {
		runs = []*reconcile.Report{}
	}
	h.respondJSON(w, http.StatusOK, runs)
}

// TriggerRecheck starts a deferred-queue re-check in the background.
func (h *Handlers) TriggerRecheck(w http.ResponseWriter, r *http.Request) {
	if h.recheck == nil {
		h.respondError(w, http.StatusNotImplemented, "re-check is not configured")
		return
	}
	if !h.recheck() {
		h.respondError(w, http.StatusConflict, "a re-check is already running")
		return
	}
	h.respondJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (h *Handlers) page(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	limit, offset = defaultPageSize, 0
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			h.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return 0, 0, false
		}
		limit = min(n, maxPageSize)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.respondError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return 0, 0, false
		}
		offset = n
	}
	return limit, offset, true
}

// Helper methods
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
