package scraper

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/maltedev/catalog-scraper/internal/browser"
	"github.com/maltedev/catalog-scraper/internal/matcher"
	"github.com/maltedev/catalog-scraper/internal/models"
	"github.com/maltedev/catalog-scraper/internal/parser"
	"github.com/maltedev/catalog-scraper/internal/retry"
)

// base carries what every adapter shares: the session handle, match policy,
// pacing and logging.
type base struct {
	site    models.SiteID
	handle  *browser.Handle
	matcher *matcher.Matcher
	opts    Options
	logger  *slog.Logger
}

func newBase(site models.SiteID, handle *browser.Handle, policy matcher.Policy, opts Options, logger *slog.Logger) base {
	if logger == nil {
		logger = slog.Default()
	}
	return base{
		site:    site,
		handle:  handle,
		matcher: matcher.New(policy),
		opts:    opts.withDefaults(),
		logger:  logger.With("component", "scraper", "site", string(site)),
	}
}

func (b *base) Site() models.SiteID { return b.site }

func (b *base) Recoverer() retry.Recoverer { return b.handle }

func (b *base) Close() error {
	b.logger.Info("closing adapter")
	return b.handle.Close()
}

// load navigates to rawURL, waits for any selector of ready, and returns the
// rendered HTML. A ready chain that never matches is logged and tolerated:
// the page is parsed anyway and missing fields degrade to Unknown.
func (b *base) load(ctx context.Context, rawURL string, ready parser.FieldChain) (string, error) {
	if err := b.opts.Limiter.Wait(ctx); err != nil {
		return "", err
	}

	session := b.handle.Session()
	if session == nil {
		return "", &TransientFetchError{Site: b.site, URL: rawURL, Err: browser.ErrClosed}
	}

	if err := session.Navigate(ctx, rawURL); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", &TransientFetchError{Site: b.site, URL: rawURL, Err: err}
	}

	if err := b.waitFor(ctx, session, ready, b.opts.WaitTimeout); err != nil {
		return "", err
	}

	html, err := session.Content(ctx)
	if err != nil {
		return "", &TransientFetchError{Site: b.site, URL: rawURL, Err: err}
	}
	return html, nil
}

// waitFor polls for ready. Only cancellation is an error.
func (b *base) waitFor(ctx context.Context, session browser.Session, ready parser.FieldChain, timeout time.Duration) error {
	if len(ready.Selectors) == 0 {
		return nil
	}
	_, matched, err := session.QuerySelectors(ctx, ready.Selectors, timeout)
	switch {
	case err == nil:
		b.logger.Debug("page ready", "field", ready.Field, "selector", matched)
		return nil
	case errors.Is(err, browser.ErrNoMatch):
		b.logger.Warn("ready selector not found", "field", ready.Field, "error", ErrSelectorNotFound)
		return nil
	default:
		return err
	}
}

// filter keeps candidates whose parsed name satisfies the adapter's match policy.
func (b *base) filter(query string, candidates []models.CandidateLink) []models.CandidateLink {
	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.ParsedName
	}

	idx := b.matcher.Filter(query, names)
	out := make([]models.CandidateLink, 0, len(idx))
	for _, i := range idx {
		out = append(out, candidates[i])
	}

	b.logger.Info("filtered candidates",
		"query", query,
		"policy", b.matcher.Policy().Name(),
		"found", len(candidates),
		"matched", len(out))
	return out
}

// pause lets client-side rendering settle after an interaction.
func (b *base) pause(ctx context.Context) error {
	return b.opts.Limiter.Wait(ctx)
}

// plusQuery joins the words of text with "+", escaping each word.
func plusQuery(text string) string {
	words := strings.Fields(text)
	for i, w := range words {
		words[i] = url.QueryEscape(w)
	}
	return strings.Join(words, "+")
}

func validURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
