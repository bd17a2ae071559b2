package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/maltedev/catalog-scraper/internal/catalog"
	"github.com/maltedev/catalog-scraper/internal/merge"
	"github.com/maltedev/catalog-scraper/internal/models"
	"github.com/maltedev/catalog-scraper/internal/queue"
	"github.com/maltedev/catalog-scraper/internal/retry"
	"github.com/maltedev/catalog-scraper/internal/scraper"
)

// Stage names recorded on resolved outcomes.
const (
	StageCatalog  = "catalog"
	StageDirect   = "direct"
	StageFlipkart = "flipkart"
	StageAmazon   = "amazon"
)

// Sink receives resolved records. Both catalog.Store and catalog.Writer satisfy it.
type Sink interface {
	Upsert(ctx context.Context, rec *models.ProductRecord) error
}

// Lookup reads the existing catalog before any site is searched.
type Lookup interface {
	Find(ctx context.Context, id models.Identity) (*models.ProductRecord, error)
}

type asinLookup interface {
	LookupASIN(ctx context.Context, asin string) (*models.ProductDetails, error)
}

// Adapters is one worker's set of site adapters. Any field may be nil, in
// which case that rung of the ladder is skipped.
type Adapters struct {
	Flipkart scraper.Adapter
	Amazon   scraper.Adapter
	TechSpec scraper.Adapter
	Shopping scraper.Comparer
}

// Close releases every adapter session and returns the joined errors.
func (a Adapters) Close() error {
	var errs []error
	for _, ad := range []scraper.Adapter{a.Flipkart, a.Amazon, a.TechSpec} {
		if ad != nil {
			errs = append(errs, ad.Close())
		}
	}
	if s, ok := a.Shopping.(scraper.Adapter); ok && s != nil {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

type Options struct {
	// UseCatalog returns existing catalog records without scraping.
	UseCatalog bool
	// Escalate runs the Amazon and 91mobiles pass in the same batch for queries
	// the primary pass could not match.
	Escalate bool
	// CompareOffers attaches shopping aggregator offers to resolved records.
	CompareOffers bool
}

// Engine drives one query at a time down the escalation ladder. It shares its
// adapters' sessions and is not safe for concurrent use; see Pool.
type Engine struct {
	adapters Adapters
	retry    *retry.Controller
	lookup   Lookup
	sink     Sink
	deferred queue.Queue
	table    *merge.Table
	opts     Options
	logger   *slog.Logger
}

type Deps struct {
	Adapters Adapters
	Retry    *retry.Controller
	Lookup   Lookup
	Sink     Sink
	Deferred queue.Queue
	Table    *merge.Table
}

func NewEngine(deps Deps, opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Retry == nil {
		deps.Retry = retry.NewController(retry.DefaultMaxAttempts, 0, 0, logger)
	}
	if deps.Table == nil {
		deps.Table = merge.DefaultTable()
	}
	if deps.Deferred == nil {
		deps.Deferred = queue.NewInMemoryQueue()
	}
	return &Engine{
		adapters: deps.Adapters,
		retry:    deps.Retry,
		lookup:   deps.Lookup,
		sink:     deps.Sink,
		deferred: deps.Deferred,
		table:    deps.Table,
		opts:     opts,
		logger:   logger.With("component", "reconcile"),
	}
}

// Resolve runs the primary rungs for q: existing catalog, direct link or
// identifier, then Flipkart search. It returns NotFound when no rung matched
// and NeedsReview when a rung failed outright.
func (e *Engine) Resolve(ctx context.Context, q models.ProductQuery) models.Outcome {
	log := e.logger.With("query", q.SearchText(), "row", q.Row)

	if e.opts.UseCatalog && e.lookup != nil {
		rec, err := e.lookup.Find(ctx, q.Identity())
		switch {
		case err == nil:
			log.Info("already in catalog")
			o := models.Resolved(q, rec, StageCatalog)
			o.Cached = true
			return o
		case !errors.Is(err, catalog.ErrNotFound):
			log.Warn("catalog lookup failed, scraping instead", "error", err)
		}
	}

	if q.HasDirectLookup() {
		o, handled := e.resolveDirect(ctx, q)
		if handled {
			return o
		}
	}

	if e.adapters.Flipkart == nil {
		return models.NotFound(q, "no primary marketplace configured")
	}

	details, err := e.searchAndExtract(ctx, e.adapters.Flipkart, q)
	if errors.Is(err, scraper.ErrNoCandidates) {
		log.Info("no flipkart match")
		return models.NotFound(q, "no flipkart match")
	}
	if err != nil {
		log.Error("flipkart pass failed", "error", err)
		return models.NeedsReview(q, nil, err)
	}

	sources := []merge.Source{merge.FromDetails(details, merge.RoleMarketplace)}
	sources = append(sources, e.linkedSpec(ctx, q)...)
	return e.resolved(ctx, q, StageFlipkart, sources)
}

// resolveDirect handles rows carrying a product link or ASIN. handled is
// false when the link points at a site without an adapter, so the caller
// falls back to searching.
func (e *Engine) resolveDirect(ctx context.Context, q models.ProductQuery) (models.Outcome, bool) {
	log := e.logger.With("query", q.SearchText(), "row", q.Row)

	var (
		details *models.ProductDetails
		err     error
	)
	switch {
	case strings.TrimSpace(q.DirectLink) != "":
		adapter := e.adapterForLink(q.DirectLink)
		if adapter == nil {
			log.Warn("no adapter for direct link, searching instead", "link", q.DirectLink)
			return models.Outcome{}, false
		}
		details, err = e.extract(ctx, adapter, q.DirectLink)
	default:
		amazon, ok := e.adapters.Amazon.(asinLookup)
		if !ok {
			log.Warn("identifier given but no amazon adapter, searching instead", "asin", q.SiteSpecificID)
			return models.Outcome{}, false
		}
		details, err = retry.Do(ctx, e.retry, "amazon asin lookup", e.adapters.Amazon.Recoverer(),
			func(ctx context.Context) (*models.ProductDetails, error) {
				return permanentIf(amazon.LookupASIN(ctx, strings.TrimSpace(q.SiteSpecificID)))
			})
	}
	if err != nil {
		log.Error("direct lookup failed", "error", err)
		return models.NeedsReview(q, nil, err), true
	}

	role := merge.RoleMarketplace
	if details.Source == models.SiteTechSpec {
		role = merge.RoleSpec
	}
	sources := []merge.Source{merge.FromDetails(details, role)}
	if role == merge.RoleMarketplace {
		sources = append(sources, e.linkedSpec(ctx, q)...)
	}
	return e.resolved(ctx, q, StageDirect, sources), true
}

// Escalate runs the secondary rungs: Amazon for commerce fields and 91mobiles
// for technical ones. Without an Amazon hit the query needs manual review,
// carrying whatever the spec site returned as the partial record.
func (e *Engine) Escalate(ctx context.Context, q models.ProductQuery) models.Outcome {
	log := e.logger.With("query", q.SearchText(), "row", q.Row)

	var sources []merge.Source
	var amazonErr error
	if e.adapters.Amazon != nil {
		details, err := e.searchAndExtract(ctx, e.adapters.Amazon, q)
		if err != nil {
			amazonErr = err
			log.Info("amazon escalation unmatched", "error", err)
		} else {
			sources = append(sources, merge.FromDetails(details, merge.RoleMarketplace))
		}
	} else {
		amazonErr = fmt.Errorf("%w: no secondary marketplace configured", scraper.ErrNoCandidates)
	}

	spec := e.linkedSpec(ctx, q)
	if len(spec) == 0 && e.adapters.TechSpec != nil {
		details, err := e.searchAndExtract(ctx, e.adapters.TechSpec, q)
		if err != nil {
			log.Info("91mobiles escalation unmatched", "error", err)
		} else {
			spec = append(spec, merge.FromDetails(details, merge.RoleSpec))
		}
	}
	sources = append(sources, spec...)

	if amazonErr != nil {
		var partial *models.ProductRecord
		if len(sources) > 0 {
			partial = e.build(q, sources...)
		}
		return models.NeedsReview(q, partial, amazonErr)
	}
	return e.resolved(ctx, q, StageAmazon, sources)
}

// linkedSpec fetches the 91mobiles page named in the input row, if any.
func (e *Engine) linkedSpec(ctx context.Context, q models.ProductQuery) []merge.Source {
	link := strings.TrimSpace(q.TechSpecLink)
	if link == "" || e.adapters.TechSpec == nil {
		return nil
	}
	details, err := e.extract(ctx, e.adapters.TechSpec, link)
	if err != nil {
		e.logger.Warn("91mobiles link failed", "query", q.SearchText(), "link", link, "error", err)
		return nil
	}
	return []merge.Source{merge.FromDetails(details, merge.RoleSpec)}
}

// searchAndExtract searches one site and extracts the best candidate. It
// returns an error wrapping scraper.ErrNoCandidates when nothing matched.
func (e *Engine) searchAndExtract(ctx context.Context, adapter scraper.Adapter, q models.ProductQuery) (*models.ProductDetails, error) {
	site := adapter.Site()
	candidates, err := retry.Do(ctx, e.retry, string(site)+" search", adapter.Recoverer(),
		func(ctx context.Context) ([]models.CandidateLink, error) {
			return permanentIf(adapter.Search(ctx, q))
		})
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w on %s", scraper.ErrNoCandidates, site)
	}

	e.logger.Debug("candidate accepted", "site", site, "name", candidates[0].ParsedName, "url", candidates[0].URL)
	return e.extract(ctx, adapter, candidates[0].URL)
}

func (e *Engine) extract(ctx context.Context, adapter scraper.Adapter, link string) (*models.ProductDetails, error) {
	return retry.Do(ctx, e.retry, string(adapter.Site())+" extract", adapter.Recoverer(),
		func(ctx context.Context) (*models.ProductDetails, error) {
			return permanentIf(adapter.ExtractDetails(ctx, link))
		})
}

func (e *Engine) build(q models.ProductQuery, sources ...merge.Source) *models.ProductRecord {
	rec := models.NewProductRecord(q)
	e.table.Apply(rec, sources...)
	return rec
}

// resolved merges sources into a record and attaches shopping offers.
func (e *Engine) resolved(ctx context.Context, q models.ProductQuery, stage string, sources []merge.Source) models.Outcome {
	rec := e.build(q, sources...)

	if e.opts.CompareOffers && e.adapters.Shopping != nil {
		offers, err := e.adapters.Shopping.Compare(ctx, q)
		if err != nil {
			e.logger.Warn("shopping comparison failed", "query", q.SearchText(), "error", err)
		} else if len(offers) > 0 {
			rec.Offers = offers
			rec.AddSource(models.SiteShopping)
		}
	}
	return models.Resolved(q, rec, stage)
}

func (e *Engine) adapterForLink(link string) scraper.Adapter {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return nil
	}
	host := strings.ToLower(u.Hostname())
	var adapter scraper.Adapter
	switch {
	case strings.Contains(host, "flipkart."):
		adapter = e.adapters.Flipkart
	case strings.Contains(host, "amazon."):
		adapter = e.adapters.Amazon
	case strings.Contains(host, "91mobiles."):
		adapter = e.adapters.TechSpec
	}
	return adapter
}

// permanentIf stops retries for errors another attempt cannot fix.
func permanentIf[T any](v T, err error) (T, error) {
	if errors.Is(err, scraper.ErrInvalidURL) || errors.Is(err, scraper.ErrNotSupported) {
		return v, retry.Permanent(err)
	}
	return v, err
}
