package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/maltedev/catalog-scraper/internal/models"
)

var (
	ErrQueueEmpty  = errors.New("queue is empty")
	ErrQueueClosed = errors.New("queue is closed")
)

// Queue holds deferred queries: NotFound items waiting for the escalation
// rungs and NeedsReview items waiting for manual review. Pop never blocks.
type Queue interface {
	Push(ctx context.Context, item models.DeferredItem) error
	Pop(ctx context.Context) (models.DeferredItem, error)
	Peek(ctx context.Context, limit int) ([]models.DeferredItem, error)
	Size(ctx context.Context) (int, error)
	Close() error
}

// InMemoryQueue is a FIFO Queue.
type InMemoryQueue struct {
	items  []models.DeferredItem
	mu     sync.Mutex
	closed bool
	now    func() time.Time
}

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		items: make([]models.DeferredItem, 0),
		now:   time.Now,
	}
}

func (q *InMemoryQueue) Push(ctx context.Context, item models.DeferredItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if item.QueuedAt.IsZero() {
		item.QueuedAt = q.now()
	}
	q.items = append(q.items, item)
	return nil
}

func (q *InMemoryQueue) Pop(ctx context.Context) (models.DeferredItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		if q.closed {
			return models.DeferredItem{}, ErrQueueClosed
		}
		return models.DeferredItem{}, ErrQueueEmpty
	}

	item := q.items[0]
	q.items = q.items[1:]
	return item, nil
}

func (q *InMemoryQueue) Peek(ctx context.Context, limit int) ([]models.DeferredItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items)
	if limit > 0 && limit < n {
		n = limit
	}
	return append([]models.DeferredItem(nil), q.items[:n]...), nil
}

func (q *InMemoryQueue) Size(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items), nil
}

func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	return nil
}

// Drain pops every item currently queued. Items pushed while draining are
// left for the next call.
func Drain(ctx context.Context, q Queue) ([]models.DeferredItem, error) {
	size, err := q.Size(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]models.DeferredItem, 0, size)
	for i := 0; i < size; i++ {
		if err := ctx.Err(); err != nil {
			return items, err
		}
		item, err := q.Pop(ctx)
		if errors.Is(err, ErrQueueEmpty) || errors.Is(err, ErrQueueClosed) {
			break
		}
		if err != nil {
			return items, err
		}
		items = append(items, item)
	}
	return items, nil
}
