package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maltedev/catalog-scraper/internal/browser"
	"github.com/maltedev/catalog-scraper/internal/catalog"
	"github.com/maltedev/catalog-scraper/internal/config"
	"github.com/maltedev/catalog-scraper/internal/database"
	"github.com/maltedev/catalog-scraper/internal/merge"
	"github.com/maltedev/catalog-scraper/internal/queue"
	"github.com/maltedev/catalog-scraper/internal/ratelimit"
	"github.com/maltedev/catalog-scraper/internal/reconcile"
	"github.com/maltedev/catalog-scraper/internal/retry"
	"github.com/maltedev/catalog-scraper/internal/scraper"
	"github.com/maltedev/catalog-scraper/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// app holds the long-lived dependencies shared by every mode.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    catalog.Store
	deferred queue.Queue
	relay    *database.Relay
	retry    *retry.Controller
	table    *merge.Table
	history  *reconcile.History

	db    *database.DB
	redis *redis.Client
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{
		cfg:     cfg,
		logger:  logger,
		retry:   retry.NewController(cfg.Scraper.MaxAttempts, cfg.Scraper.BackoffMin, cfg.Scraper.BackoffMax, logger),
		table:   merge.DefaultTable(),
		history: reconcile.NewHistory(0),
	}

	if cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		logger.Info("Connected to Redis", "addr", cfg.Redis.Addr)
	}

	switch cfg.Queue.Type {
	case "redis":
		a.deferred = queue.NewRedisQueue(a.redis, cfg.Queue.Key)
	default:
		a.deferred = queue.NewInMemoryQueue()
	}

	switch cfg.Catalog.Type {
	case "postgres":
		db, err := database.New(ctx, database.Config{
			URL:      cfg.Database.URL,
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.MaxConns,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.db = db
		if cfg.Catalog.Migrate {
			if err := db.Migrate(ctx); err != nil {
				a.Close()
				return nil, err
			}
		}
		a.store = database.NewCatalogStore(db, cfg.Redis.Stream, logger)
		if a.redis != nil {
			a.relay = database.NewRelay(db, a.redis, logger, database.RelayConfig{
				PollInterval: cfg.Catalog.RelayPoll,
				BatchSize:    cfg.Catalog.RelayBulk,
				Source:       "catalog-reconciler",
			})
		}
	case "file":
		fs, err := storage.NewFileStore(cfg.Catalog.File)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to open catalog file: %w", err)
		}
		if stats, err := fs.Stats(ctx); err == nil {
			logger.Info("Loaded catalog file", "file", cfg.Catalog.File, "stats", stats)
		}
		a.store = fs
	default:
		a.store = catalog.NewMemoryStore()
	}

	logger.Info("Dependencies ready",
		"catalog", cfg.Catalog.Type,
		"queue", cfg.Queue.Type,
		"relay", a.relay != nil)
	return a, nil
}

func (a *app) Close() {
	if a.deferred != nil {
		if err := a.deferred.Close(); err != nil {
			a.logger.Warn("failed to close deferred queue", "error", err)
		}
	}
	if a.redis != nil && a.cfg.Queue.Type != "redis" {
		a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

func (a *app) browserOptions() *browser.Options {
	opts := browser.DefaultOptions()
	b := a.cfg.Browser
	opts.Headless = b.Headless
	opts.Timeout = b.Timeout
	opts.ViewportWidth = b.ViewportWidth
	opts.ViewportHeight = b.ViewportHeight
	opts.AcceptLanguage = b.AcceptLanguage
	opts.TimezoneID = b.TimezoneID
	opts.Locale = b.Locale
	opts.UserAgents = b.UserAgents
	opts.ProxyServer = b.Proxy
	return opts
}

func (a *app) scraperOptions() scraper.Options {
	s := a.cfg.Scraper
	return scraper.Options{
		WaitTimeout:  s.WaitTimeout,
		MinSanePrice: decimal.NewFromInt(s.MinSanePrice),
		ShoppingTopN: s.ShoppingTopN,
		Limiter:      ratelimit.NewSimpleRateLimiter(s.RateLimitMin, s.RateLimitMax),
	}
}

func (a *app) options() reconcile.Options {
	return reconcile.Options{
		UseCatalog:    a.cfg.Scraper.UseCatalog,
		Escalate:      a.cfg.Scraper.Escalate,
		CompareOffers: a.cfg.Scraper.CompareOffers,
	}
}

// factory builds a worker's adapters. Every adapter gets its own browser
// session. The escalation adapters are included when escalate is set.
func (a *app) factory(escalate bool) reconcile.Factory {
	launch := browser.PlaywrightLauncher(a.browserOptions(), a.logger)

	return func(ctx context.Context, worker int) (reconcile.Adapters, error) {
		log := a.logger.With("worker", worker)
		opts := a.scraperOptions()

		var adapters reconcile.Adapters
		acquire := func(site string) (*browser.Handle, error) {
			h, err := browser.Acquire(ctx, launch, log.With("site", site))
			if err != nil {
				adapters.Close()
				return nil, fmt.Errorf("failed to start %s session: %w", site, err)
			}
			return h, nil
		}

		h, err := acquire("flipkart")
		if err != nil {
			return reconcile.Adapters{}, err
		}
		adapters.Flipkart = scraper.NewFlipkart(h, opts, log)

		if escalate {
			if h, err = acquire("amazon"); err != nil {
				return reconcile.Adapters{}, err
			}
			adapters.Amazon = scraper.NewAmazon(h, opts, log)

			if h, err = acquire("91mobiles"); err != nil {
				return reconcile.Adapters{}, err
			}
			adapters.TechSpec = scraper.NewTechSpec(h, opts, log)
		}

		if a.cfg.Scraper.CompareOffers {
			if h, err = acquire("shopping"); err != nil {
				return reconcile.Adapters{}, err
			}
			adapters.Shopping = scraper.NewShopping(h, opts, log)
		}

		log.Info("Worker adapters ready", "escalate", escalate, "compare_offers", adapters.Shopping != nil)
		return adapters, nil
	}
}
