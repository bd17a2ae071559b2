package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/catalog-scraper/internal/browser"
	"github.com/maltedev/catalog-scraper/internal/matcher"
	"github.com/maltedev/catalog-scraper/internal/models"
	"github.com/maltedev/catalog-scraper/internal/parser"
)

// Flipkart is the primary marketplace. Its URL slugs mirror listing titles,
// so candidates are matched with the strict prefix policy.
type Flipkart struct {
	base
}

func NewFlipkart(handle *browser.Handle, opts Options, logger *slog.Logger) *Flipkart {
	return &Flipkart{base: newBase(models.SiteFlipkart, handle, matcher.PrefixPolicy, opts, logger)}
}

func FlipkartSearchURL(text string) string {
	return parser.FlipkartBaseURL + "/search?q=" + plusQuery(text)
}

func (f *Flipkart) Search(ctx context.Context, q models.ProductQuery) ([]models.CandidateLink, error) {
	text := q.SearchText()
	f.logger.Info("searching", "query", text)

	html, err := f.load(ctx, FlipkartSearchURL(text), parser.FlipkartSearchLinks)
	if err != nil {
		return nil, err
	}

	candidates, err := parser.ParseFlipkartSearch(html)
	if err != nil {
		return nil, fmt.Errorf("failed to parse flipkart search page: %w", err)
	}
	return f.filter(text, candidates), nil
}

// ExtractDetails reads the product page, expanding the specification table
// first when the page offers a "read more" control.
func (f *Flipkart) ExtractDetails(ctx context.Context, link string) (*models.ProductDetails, error) {
	if !validURL(link) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, link)
	}
	f.logger.Info("extracting details", "url", link)

	html, err := f.load(ctx, link, parser.FlipkartName)
	if err != nil {
		return nil, err
	}

	if expanded, ok := f.expandSpecs(ctx); ok {
		html = expanded
	}

	details, err := parser.ParseFlipkartDetails(html, link, f.opts.MinSanePrice)
	if err != nil {
		return nil, fmt.Errorf("failed to parse flipkart product page: %w", err)
	}
	f.logger.Info("extracted details", "url", link, "images", len(details.Images), "specs", len(details.Specs))
	return details, nil
}

func (f *Flipkart) expandSpecs(ctx context.Context) (string, bool) {
	session := f.handle.Session()
	_, selector, err := session.QuerySelectors(ctx, parser.FlipkartReadMore.Selectors, 2*time.Second)
	if err != nil {
		f.logger.Debug("spec expander not present")
		return "", false
	}
	if err := session.Click(ctx, selector); err != nil {
		f.logger.Warn("failed to expand specifications", "error", err)
		return "", false
	}
	if err := f.pause(ctx); err != nil {
		return "", false
	}
	html, err := session.Content(ctx)
	if err != nil {
		f.logger.Warn("failed to read expanded page", "error", err)
		return "", false
	}
	return html, true
}
