package scraper

import (
	"context"
	"time"

	"github.com/maltedev/catalog-scraper/internal/models"
	"github.com/maltedev/catalog-scraper/internal/ratelimit"
	"github.com/maltedev/catalog-scraper/internal/retry"
	"github.com/shopspring/decimal"
)

// Adapter is one site's search and extraction contract. Each adapter owns one
// browser session for its whole lifetime and is not safe for concurrent use.
type Adapter interface {
	Site() models.SiteID
	// Search returns matching candidates, best match first. An empty result is not an error.
	Search(ctx context.Context, q models.ProductQuery) ([]models.CandidateLink, error)
	ExtractDetails(ctx context.Context, url string) (*models.ProductDetails, error)
	// Recoverer exposes the session's soft and hard recovery to the retry controller.
	Recoverer() retry.Recoverer
	Close() error
}

// Comparer is implemented by aggregators that return vendor prices instead of specs.
type Comparer interface {
	Compare(ctx context.Context, q models.ProductQuery) ([]models.Offer, error)
}

type Options struct {
	WaitTimeout  time.Duration
	MinSanePrice decimal.Decimal
	ShoppingTopN int
	Limiter      ratelimit.RateLimiter
}

func DefaultOptions() Options {
	return Options{
		WaitTimeout:  10 * time.Second,
		MinSanePrice: decimal.NewFromInt(1000),
		ShoppingTopN: 10,
		Limiter:      ratelimit.NewSimpleRateLimiter(2*time.Second, 5*time.Second),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.WaitTimeout <= 0 {
		o.WaitTimeout = d.WaitTimeout
	}
	if o.MinSanePrice.IsZero() {
		o.MinSanePrice = d.MinSanePrice
	}
	if o.ShoppingTopN <= 0 {
		o.ShoppingTopN = d.ShoppingTopN
	}
	if o.Limiter == nil {
		o.Limiter = d.Limiter
	}
	return o
}
