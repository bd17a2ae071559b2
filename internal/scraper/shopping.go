package scraper

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maltedev/catalog-scraper/internal/browser"
	"github.com/maltedev/catalog-scraper/internal/matcher"
	"github.com/maltedev/catalog-scraper/internal/models"
	"github.com/maltedev/catalog-scraper/internal/parser"
)

// Shopping is the price-comparison aggregator. It yields vendor offers, not specs.
type Shopping struct {
	base
}

func NewShopping(handle *browser.Handle, opts Options, logger *slog.Logger) *Shopping {
	return &Shopping{base: newBase(models.SiteShopping, handle, matcher.SubstringPolicy, opts, logger)}
}

func ShoppingSearchURL(text string) string {
	return parser.ShoppingBaseURL + "/search?tbm=shop&q=" + plusQuery(text)
}

// Compare returns at most ShoppingTopN offers, refurbished listings and
// implausible prices removed.
func (s *Shopping) Compare(ctx context.Context, q models.ProductQuery) ([]models.Offer, error) {
	text := q.SearchText()
	s.logger.Info("comparing prices", "query", text)

	html, err := s.load(ctx, ShoppingSearchURL(text), parser.ShoppingContainers)
	if err != nil {
		return nil, err
	}

	offers, err := parser.ParseShoppingResults(html, s.opts.MinSanePrice, s.opts.ShoppingTopN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse shopping results: %w", err)
	}
	s.logger.Info("collected offers", "query", text, "offers", len(offers))
	return offers, nil
}

// Search exposes offers as candidates so the aggregator fits the adapter contract.
func (s *Shopping) Search(ctx context.Context, q models.ProductQuery) ([]models.CandidateLink, error) {
	offers, err := s.Compare(ctx, q)
	if err != nil {
		return nil, err
	}
	candidates := make([]models.CandidateLink, 0, len(offers))
	for _, o := range offers {
		candidates = append(candidates, models.CandidateLink{
			ParsedName: o.Title,
			URL:        o.Link,
			Source:     models.SiteShopping,
		})
	}
	return s.filter(q.SearchText(), candidates), nil
}

func (s *Shopping) ExtractDetails(ctx context.Context, link string) (*models.ProductDetails, error) {
	return nil, ErrNotSupported
}
