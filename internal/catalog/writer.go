package catalog

import (
	"context"
	"log/slog"
	"sync"

	"github.com/maltedev/catalog-scraper/internal/models"
)

type writeRequest struct {
	rec  *models.ProductRecord
	done chan error
}

// Writer serializes upserts from many workers through one goroutine.
type Writer struct {
	store  Store
	reqs   chan writeRequest
	logger *slog.Logger
	wg     sync.WaitGroup
	once   sync.Once

	mu     sync.Mutex
	failed int
}

func NewWriter(store Store, buffer int, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Writer{
		store:  store,
		reqs:   make(chan writeRequest, buffer),
		logger: logger.With("component", "catalog-writer"),
	}
	w.wg.Add(1)
	go w.loop()
	return w
}

func (w *Writer) loop() {
	defer w.wg.Done()
	for req := range w.reqs {
		// writes finish even after the run is cancelled
		err := w.store.Upsert(context.Background(), req.rec)
		if err != nil {
			w.mu.Lock()
			w.failed++
			w.mu.Unlock()
			w.logger.Error("catalog upsert failed", "product", req.rec.Identity.String(), "error", err)
		}
		req.done <- err
	}
}

// Upsert queues rec and waits for the write to complete.
func (w *Writer) Upsert(ctx context.Context, rec *models.ProductRecord) error {
	req := writeRequest{rec: rec, done: make(chan error, 1)}
	select {
	case w.reqs <- req:
	case <-ctx.Done():
		return &PersistenceError{Identity: rec.Identity, Err: ctx.Err()}
	}
	return <-req.done
}

// Failed returns the number of writes that returned an error.
func (w *Writer) Failed() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.failed
}

// Close drains pending writes and stops the writer goroutine.
func (w *Writer) Close() {
	w.once.Do(func() {
		close(w.reqs)
		w.wg.Wait()
	})
}
