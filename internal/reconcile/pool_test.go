package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/maltedev/catalog-scraper/internal/catalog"
	"github.com/maltedev/catalog-scraper/internal/models"
	"github.com/maltedev/catalog-scraper/internal/queue"
	"github.com/maltedev/catalog-scraper/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShardIsDisjointRoundRobin(t *testing.T) {
	var queries []models.ProductQuery
	for i := 0; i < 7; i++ {
		queries = append(queries, query(i, fmt.Sprintf("p%d", i)))
	}

	shards := Shard(queries, 3)
	require.Len(t, shards, 3)
	assert.Len(t, shards[0], 3)
	assert.Len(t, shards[1], 2)
	assert.Len(t, shards[2], 2)
	assert.Equal(t, "p3", shards[0][1].Name)

	assert.Len(t, Shard(queries[:2], 8), 2, "never more shards than queries")
	assert.Len(t, Shard(nil, 0), 1)
}

func TestPoolRunsOneAdapterSetPerWorker(t *testing.T) {
	ctx := context.Background()
	var queries []models.ProductQuery
	for i := 1; i <= 6; i++ {
		queries = append(queries, query(i, fmt.Sprintf("Phone %d", i)))
	}

	var mu sync.Mutex
	built := make(map[int]*stubAdapter)
	factory := func(ctx context.Context, worker int) (Adapters, error) {
		f := newStub(models.SiteFlipkart)
		for _, q := range queries {
			f.product(q.Name, nil)
		}
		mu.Lock()
		built[worker] = f
		mu.Unlock()
		return Adapters{Flipkart: f}, nil
	}

	store := catalog.NewMemoryStore()
	pool := NewPool(PoolConfig{
		Workers: 3,
		Factory: factory,
		Store:   store,
		Retry:   retry.NewController(3, 0, 0, nil),
	}, nil)

	report, err := pool.Run(ctx, queries)
	require.NoError(t, err)
	assert.Equal(t, 6, report.Resolved)
	require.Len(t, report.Outcomes, 6)
	for i, o := range report.Outcomes {
		assert.Equal(t, i+1, o.Query.Row)
	}

	count, _ := store.Count(ctx)
	assert.Equal(t, 6, count)

	require.Len(t, built, 3)
	for w, f := range built {
		assert.Len(t, f.searches, 2, "worker %d", w)
		assert.True(t, f.closed, "worker %d adapters closed", w)
	}
}

func TestPoolDefersShardOfFailedWorker(t *testing.T) {
	ctx := context.Background()
	queries := []models.ProductQuery{query(1, "a"), query(2, "b"), query(3, "c"), query(4, "d")}

	factory := func(ctx context.Context, worker int) (Adapters, error) {
		if worker == 1 {
			return Adapters{}, errors.New("browser launch failed")
		}
		f := newStub(models.SiteFlipkart)
		for _, q := range queries {
			f.product(q.Name, nil)
		}
		return Adapters{Flipkart: f}, nil
	}

	deferred := queue.NewInMemoryQueue()
	pool := NewPool(PoolConfig{
		Workers:  2,
		Factory:  factory,
		Store:    catalog.NewMemoryStore(),
		Deferred: deferred,
		Retry:    retry.NewController(3, 0, 0, nil),
	}, nil)

	report, err := pool.Run(ctx, queries)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Resolved)
	require.Len(t, report.Deferred, 2)
	assert.Equal(t, "b", report.Deferred[0].Query.Name)
	assert.Equal(t, "d", report.Deferred[1].Query.Name)
	assert.Contains(t, report.Deferred[0].Reason, "browser launch failed")

	size, _ := deferred.Size(ctx)
	assert.Equal(t, 2, size)
}

func TestHistoryKeepsNewest(t *testing.T) {
	h := NewHistory(2)
	assert.Nil(t, h.Last())

	for _, mode := range []string{"run", "recheck", "run"} {
		r := newReport(mode, 0)
		h.Record(r)
	}
	recent := h.Recent(0)
	require.Len(t, recent, 2)
	assert.Equal(t, "run", recent[0].Mode)
	assert.Equal(t, "recheck", recent[1].Mode)
	assert.Same(t, recent[0], h.Last())
}
