package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/maltedev/catalog-scraper/internal/catalog"
	"github.com/maltedev/catalog-scraper/internal/merge"
	"github.com/maltedev/catalog-scraper/internal/models"
	"github.com/maltedev/catalog-scraper/internal/queue"
	"github.com/maltedev/catalog-scraper/internal/retry"
	"golang.org/x/sync/errgroup"
)

// Factory builds one worker's adapters, each with its own browser session.
type Factory func(ctx context.Context, worker int) (Adapters, error)

type PoolConfig struct {
	Workers  int
	Factory  Factory
	Store    catalog.Store
	Deferred queue.Queue
	Retry    *retry.Controller
	Table    *merge.Table
	Options  Options
}

// Pool runs disjoint query shards on parallel workers. Workers share nothing
// but the deferred queue and a single catalog writer.
type Pool struct {
	cfg    PoolConfig
	logger *slog.Logger
}

func NewPool(cfg PoolConfig, logger *slog.Logger) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Deferred == nil {
		cfg.Deferred = queue.NewInMemoryQueue()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{cfg: cfg, logger: logger.With("component", "pool")}
}

// Shard splits queries round-robin into n disjoint shards.
func Shard(queries []models.ProductQuery, n int) [][]models.ProductQuery {
	if n <= 0 {
		n = 1
	}
	if n > len(queries) && len(queries) > 0 {
		n = len(queries)
	}
	shards := make([][]models.ProductQuery, n)
	for i, q := range queries {
		shards[i%n] = append(shards[i%n], q)
	}
	return shards
}

// Run resolves queries across the pool and merges the shard reports. Outcomes
// and deferred items are ordered by input row.
func (p *Pool) Run(ctx context.Context, queries []models.ProductQuery) (*Report, error) {
	report := newReport("run", len(queries))
	defer report.finish()

	var writer *catalog.Writer
	var sink Sink
	var lookup Lookup
	if p.cfg.Store != nil {
		writer = catalog.NewWriter(p.cfg.Store, p.cfg.Workers, p.logger)
		defer writer.Close()
		sink, lookup = writer, p.cfg.Store
	}

	shards := Shard(queries, p.cfg.Workers)
	reports := make([]*Report, len(shards))

	g, gctx := errgroup.WithContext(ctx)
	for w, shard := range shards {
		w, shard := w, shard
		g.Go(func() error {
			log := p.logger.With("worker", w, "queries", len(shard))

			adapters, err := p.cfg.Factory(gctx, w)
			if err != nil {
				log.Error("failed to start worker, deferring its shard", "error", err)
				reports[w] = p.deferShard(gctx, shard, fmt.Errorf("worker start failed: %w", err))
				return nil
			}
			defer func() {
				if err := adapters.Close(); err != nil {
					log.Warn("failed to close adapters", "error", err)
				}
			}()

			engine := NewEngine(Deps{
				Adapters: adapters,
				Retry:    p.cfg.Retry,
				Lookup:   lookup,
				Sink:     sink,
				Deferred: p.cfg.Deferred,
				Table:    p.cfg.Table,
			}, p.cfg.Options, log)

			r, err := engine.Run(gctx, shard)
			reports[w] = r
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return nil
		})
	}
	err := g.Wait()

	for _, r := range reports {
		if r != nil {
			report.absorb(r)
		}
	}
	sort.SliceStable(report.Outcomes, func(i, j int) bool {
		return report.Outcomes[i].Query.Row < report.Outcomes[j].Query.Row
	})
	sort.SliceStable(report.Deferred, func(i, j int) bool {
		return report.Deferred[i].Query.Row < report.Deferred[j].Query.Row
	})
	return report, err
}

func (p *Pool) deferShard(ctx context.Context, shard []models.ProductQuery, cause error) *Report {
	r := newReport("run", len(shard))
	for _, q := range shard {
		item := models.DeferredItem{Query: q, Reason: cause.Error(), Kind: models.OutcomeNeedsReview, Attempts: 1}
		if err := p.cfg.Deferred.Push(context.WithoutCancel(ctx), item); err != nil {
			p.logger.Error("failed to queue deferred item", "product", q.SearchText(), "error", err)
		}
		r.addDeferred(item, true)
	}
	r.finish()
	return r
}
