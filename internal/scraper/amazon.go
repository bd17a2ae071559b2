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

// Amazon is the secondary marketplace used by the escalation pass.
type Amazon struct {
	base
}

func NewAmazon(handle *browser.Handle, opts Options, logger *slog.Logger) *Amazon {
	return &Amazon{base: newBase(models.SiteAmazon, handle, matcher.PrefixPolicy, opts, logger)}
}

func AmazonSearchURL(text string) string {
	return parser.AmazonBaseURL + "/s?k=" + plusQuery(text)
}

func (a *Amazon) Search(ctx context.Context, q models.ProductQuery) ([]models.CandidateLink, error) {
	text := q.SearchText()
	a.logger.Info("searching", "query", text)

	html, err := a.load(ctx, AmazonSearchURL(text), parser.AmazonSearchTitles)
	if err != nil {
		return nil, err
	}

	candidates, err := parser.ParseAmazonSearch(html)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amazon search page: %w", err)
	}
	return a.filter(text, candidates), nil
}

func (a *Amazon) ExtractDetails(ctx context.Context, link string) (*models.ProductDetails, error) {
	if !validURL(link) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, link)
	}
	a.logger.Info("extracting details", "url", link)

	html, err := a.load(ctx, link, parser.AmazonName)
	if err != nil {
		return nil, err
	}

	details, err := parser.ParseAmazonDetails(html, link, a.opts.MinSanePrice)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amazon product page: %w", err)
	}
	return details, nil
}

// LookupASIN extracts details for a product identifier without searching.
func (a *Amazon) LookupASIN(ctx context.Context, asin string) (*models.ProductDetails, error) {
	if asin == "" {
		return nil, fmt.Errorf("%w: empty ASIN", ErrInvalidURL)
	}
	return a.ExtractDetails(ctx, parser.AmazonProductURL(asin))
}
