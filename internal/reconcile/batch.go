package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/catalog-scraper/internal/models"
	"github.com/maltedev/catalog-scraper/internal/queue"
)

// Report summarizes one batch. Every query ends up either in Outcomes or in
// Deferred, never both.
type Report struct {
	RunID       string                `json:"run_id"`
	Mode        string                `json:"mode"`
	StartedAt   time.Time             `json:"started_at"`
	FinishedAt  time.Time             `json:"finished_at"`
	Total       int                   `json:"total"`
	Resolved    int                   `json:"resolved"`
	Cached      int                   `json:"cached"`
	NotFound    int                   `json:"not_found"`
	NeedsReview int                   `json:"needs_review"`
	Errored     int                   `json:"errored"`
	Cancelled   bool                  `json:"cancelled"`
	Outcomes    []models.Outcome      `json:"-"`
	Deferred    []models.DeferredItem `json:"-"`
}

func newReport(mode string, total int) *Report {
	return &Report{
		RunID:     uuid.NewString(),
		Mode:      mode,
		StartedAt: time.Now(),
		Total:     total,
	}
}

// Unresolved is the number of queries that ended the batch in the deferred set.
func (r *Report) Unresolved() int { return r.NotFound + r.NeedsReview }

func (r *Report) addOutcome(o models.Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	r.Resolved++
	if o.Cached {
		r.Cached++
	}
	if o.Err != nil {
		r.Errored++
	}
}

func (r *Report) addDeferred(item models.DeferredItem, errored bool) {
	r.Deferred = append(r.Deferred, item)
	switch item.Kind {
	case models.OutcomeNotFound:
		r.NotFound++
	default:
		r.NeedsReview++
	}
	if errored {
		r.Errored++
	}
}

// absorb folds a shard's report into r.
func (r *Report) absorb(other *Report) {
	r.Resolved += other.Resolved
	r.Cached += other.Cached
	r.NotFound += other.NotFound
	r.NeedsReview += other.NeedsReview
	r.Errored += other.Errored
	r.Cancelled = r.Cancelled || other.Cancelled
	r.Outcomes = append(r.Outcomes, other.Outcomes...)
	r.Deferred = append(r.Deferred, other.Deferred...)
}

func (r *Report) finish() {
	r.FinishedAt = time.Now()
}

// Log writes the run-level summary.
func (r *Report) Log(logger *slog.Logger) {
	level := slog.LevelInfo
	if r.Errored > 0 {
		level = slog.LevelWarn
	}
	logger.Log(context.Background(), level, "reconciliation finished",
		"run_id", r.RunID,
		"mode", r.Mode,
		"total", r.Total,
		"resolved", r.Resolved,
		"cached", r.Cached,
		"not_found", r.NotFound,
		"needs_review", r.NeedsReview,
		"errored", r.Errored,
		"cancelled", r.Cancelled,
		"duration", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
}

// Run resolves every query in order. A failing query is deferred and the
// batch moves on; only cancellation between queries ends it early, in which
// case the partial report is returned together with the context error. The
// query in flight when ctx is cancelled is allowed to finish, and every query
// not yet settled is deferred.
func (e *Engine) Run(ctx context.Context, queries []models.ProductQuery) (*Report, error) {
	report := newReport("run", len(queries))
	defer report.finish()

	itemCtx := context.WithoutCancel(ctx)
	var unmatched []models.ProductQuery

	for i, q := range queries {
		if err := ctx.Err(); err != nil {
			report.Cancelled = true
			e.pushAll(itemCtx, report, unmatched, models.OutcomeNotFound, "escalation cancelled")
			e.pushAll(itemCtx, report, queries[i:], models.OutcomeNeedsReview, "run cancelled")
			return report, err
		}

		o := e.Resolve(itemCtx, q)
		if o.Kind == models.OutcomeNotFound && e.opts.Escalate {
			unmatched = append(unmatched, q)
			continue
		}
		e.settle(itemCtx, report, o, 0)
	}

	if len(unmatched) > 0 {
		e.logger.Info("escalating unmatched queries", "count", len(unmatched))
	}
	for i, q := range unmatched {
		if err := ctx.Err(); err != nil {
			report.Cancelled = true
			e.pushAll(itemCtx, report, unmatched[i:], models.OutcomeNotFound, "escalation cancelled")
			return report, err
		}
		e.settle(itemCtx, report, e.Escalate(itemCtx, q), 0)
	}

	return report, nil
}

// Recheck drains the deferred queue through the escalation rungs. Items still
// unresolved go back on the queue with their attempt count raised.
func (e *Engine) Recheck(ctx context.Context) (*Report, error) {
	items, err := queue.Drain(ctx, e.deferred)
	if err != nil && len(items) == 0 {
		return nil, err
	}

	report := newReport("recheck", len(items))
	defer report.finish()
	itemCtx := context.WithoutCancel(ctx)

	for i, item := range items {
		if ctx.Err() != nil {
			report.Cancelled = true
			for _, rest := range items[i:] {
				e.push(itemCtx, report, rest, false)
			}
			return report, ctx.Err()
		}
		e.settle(itemCtx, report, e.Escalate(itemCtx, item.Query), item.Attempts)
	}
	return report, nil
}

// settle persists a resolved outcome or defers an unresolved one.
func (e *Engine) settle(ctx context.Context, report *Report, o models.Outcome, attempts int) {
	if o.Kind == models.OutcomeResolved {
		if !o.Cached && e.sink != nil {
			if err := e.sink.Upsert(ctx, o.Record); err != nil {
				e.logger.Error("failed to persist record", "product", o.Query.SearchText(), "error", err)
				o.Err = err
			}
		}
		report.addOutcome(o)
		return
	}

	item := models.DeferredItem{
		Query:    o.Query,
		Reason:   o.Reason,
		Kind:     o.Kind,
		Attempts: attempts + 1,
	}
	e.push(ctx, report, item, o.Err != nil)
}

func (e *Engine) push(ctx context.Context, report *Report, item models.DeferredItem, errored bool) {
	if err := e.deferred.Push(ctx, item); err != nil && !errors.Is(err, queue.ErrQueueClosed) {
		e.logger.Error("failed to queue deferred item", "product", item.Query.SearchText(), "error", err)
	}
	report.addDeferred(item, errored)
}

func (e *Engine) pushAll(ctx context.Context, report *Report, queries []models.ProductQuery, kind models.OutcomeKind, reason string) {
	for _, q := range queries {
		e.push(ctx, report, models.DeferredItem{Query: q, Reason: reason, Kind: kind, Attempts: 1}, false)
	}
}

// History keeps the most recent reports for the status API.
type History struct {
	mu      sync.RWMutex
	reports []*Report
	max     int
}

func NewHistory(max int) *History {
	if max <= 0 {
		max = 20
	}
	return &History{max: max}
}

func (h *History) Record(r *Report) {
	if r == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reports = append(h.reports, r)
	if len(h.reports) > h.max {
		h.reports = h.reports[len(h.reports)-h.max:]
	}
}

// Last returns the newest report, or nil before the first run.
func (h *History) Last() *Report {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.reports) == 0 {
		return nil
	}
	return h.reports[len(h.reports)-1]
}

// Recent returns up to n reports, newest first.
func (h *History) Recent(n int) []*Report {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if n <= 0 || n > len(h.reports) {
		n = len(h.reports)
	}
	out := make([]*Report, 0, n)
	for i := len(h.reports) - 1; i >= len(h.reports)-n; i-- {
		out = append(out, h.reports[i])
	}
	return out
}
