package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/maltedev/catalog-scraper/internal/browser"
	"github.com/maltedev/catalog-scraper/internal/matcher"
	"github.com/maltedev/catalog-scraper/internal/models"
	"github.com/maltedev/catalog-scraper/internal/parser"
)

// TechSpec searches 91mobiles through its search box. Result titles carry
// marketing prefixes, so the substring policy is used. There is no
// take-the-first-result fallback: an unmatched search returns no candidates.
type TechSpec struct {
	base
}

func NewTechSpec(handle *browser.Handle, opts Options, logger *slog.Logger) *TechSpec {
	return &TechSpec{base: newBase(models.SiteTechSpec, handle, matcher.SubstringPolicy, opts, logger)}
}

// techQuery is name and model only; the spec site lists one page per model
// regardless of color.
func techQuery(q models.ProductQuery) string {
	return strings.Join(strings.Fields(q.Name+" "+q.Model), " ")
}

func (t *TechSpec) Search(ctx context.Context, q models.ProductQuery) ([]models.CandidateLink, error) {
	text := techQuery(q)
	t.logger.Info("searching", "query", text)

	if _, err := t.load(ctx, parser.TechSpecBaseURL+"/", parser.TechSpecSearchBox); err != nil {
		return nil, err
	}

	session := t.handle.Session()
	if err := session.Fill(ctx, parser.TechSpecSearchBox.Selectors[0], text); err != nil {
		return nil, &TransientFetchError{Site: t.site, URL: parser.TechSpecBaseURL, Err: err}
	}
	if err := session.Click(ctx, parser.TechSpecSearchButton.Selectors[0]); err != nil {
		return nil, &TransientFetchError{Site: t.site, URL: parser.TechSpecBaseURL, Err: err}
	}
	if err := t.waitFor(ctx, session, parser.TechSpecResults, t.opts.WaitTimeout); err != nil {
		return nil, err
	}

	html, err := session.Content(ctx)
	if err != nil {
		return nil, &TransientFetchError{Site: t.site, URL: parser.TechSpecBaseURL, Err: err}
	}

	candidates, err := parser.ParseTechSpecResults(html)
	if err != nil {
		return nil, fmt.Errorf("failed to parse 91mobiles results: %w", err)
	}
	return t.filter(text, candidates), nil
}

func (t *TechSpec) ExtractDetails(ctx context.Context, link string) (*models.ProductDetails, error) {
	if !validURL(link) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, link)
	}
	t.logger.Info("extracting technical details", "url", link)

	html, err := t.load(ctx, link, parser.TechSpecName)
	if err != nil {
		return nil, err
	}

	details, err := parser.ParseTechSpecDetails(html, link)
	if err != nil {
		return nil, fmt.Errorf("failed to parse 91mobiles product page: %w", err)
	}
	return details, nil
}
