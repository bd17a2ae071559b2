package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/maltedev/catalog-scraper/internal/ratelimit"
	"github.com/playwright-community/playwright-go"
)

var (
	// ErrNoMatch is returned when no selector of a fallback chain matched before the timeout.
	ErrNoMatch = errors.New("no selector matched before timeout")
	// ErrBlocked is returned when the site served a captcha or robot check.
	ErrBlocked = errors.New("blocked by anti-bot page")
	ErrClosed  = errors.New("browser session closed")
)

// NavigationError wraps any network or navigation fault. It is always retryable.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation to %s failed: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// Element is a DOM node found by QuerySelectors.
type Element interface {
	Text() (string, error)
	Attr(name string) (string, error)
	Click() error
}

// Session is one live browser handle. Implementations are not safe for concurrent use.
type Session interface {
	Navigate(ctx context.Context, url string) error
	// QuerySelectors tries selectors in order, polling until timeout, and returns
	// the first element found together with the selector that matched.
	QuerySelectors(ctx context.Context, selectors []string, timeout time.Duration) (Element, string, error)
	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, value string) error
	ExecuteScript(ctx context.Context, script string) (any, error)
	Content(ctx context.Context) (string, error)
	// ClearState drops cookies and web storage without discarding the session.
	ClearState(ctx context.Context) error
	Close() error
}

type Options struct {
	Headless       bool
	Timeout        time.Duration
	PollInterval   time.Duration
	UserAgent      string
	UserAgents     []string
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	ProxyServer    string
	ExtraHeaders   map[string]string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		Timeout:        30 * time.Second,
		PollInterval:   500 * time.Millisecond,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		AcceptLanguage: "en-IN,en;q=0.9",
		TimezoneID:     "Asia/Kolkata",
		Locale:         "en-IN",
		ExtraHeaders: map[string]string{
			"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"DNT":    "1",
		},
	}
}

// pickUserAgent rotates through the configured pool so a fresh session after a
// hard recovery does not present the same fingerprint.
func (o *Options) pickUserAgent() string {
	if len(o.UserAgents) > 0 {
		return o.UserAgents[rand.Intn(len(o.UserAgents))]
	}
	return o.UserAgent
}

// PlaywrightSession drives one Chromium page through playwright.
type PlaywrightSession struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	opts    *Options
	logger  *slog.Logger
}

// Launch starts playwright, a Chromium instance, one context and one page.
func Launch(opts *Options, logger *slog.Logger) (*PlaywrightSession, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = slog.Default()
	}
	userAgent := opts.pickUserAgent()

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--disable-gpu",
			"--no-sandbox",
			"--disable-setuid-sandbox",
			fmt.Sprintf("--window-size=%d,%d", opts.ViewportWidth, opts.ViewportHeight),
		},
	}

	if opts.ProxyServer != "" {
		launchOpts.Proxy = &playwright.Proxy{
			Server: opts.ProxyServer,
		}
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	headers := make(map[string]string, len(opts.ExtraHeaders)+1)
	for k, v := range opts.ExtraHeaders {
		headers[k] = v
	}
	if opts.AcceptLanguage != "" {
		headers["Accept-Language"] = opts.AcceptLanguage
	}

	contextOpts := playwright.BrowserNewContextOptions{
		UserAgent:         &userAgent,
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            &opts.Locale,
		TimezoneId:        &opts.TimezoneID,
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
		ExtraHttpHeaders: headers,
	}

	bctx, err := browser.NewContext(contextOpts)
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	if err := bctx.AddInitScript(playwright.Script{
		Content: playwright.String("Object.defineProperty(navigator, 'webdriver', {get: () => undefined})"),
	}); err != nil {
		logger.Warn("failed to install webdriver mask", "error", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		bctx.Close()
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}
	page.SetDefaultTimeout(float64(opts.Timeout.Milliseconds()))

	return &PlaywrightSession{
		pw:      pw,
		browser: browser,
		context: bctx,
		page:    page,
		opts:    opts,
		logger:  logger.With("component", "browser"),
	}, nil
}

// Navigate loads url and blocks until DOMContentLoaded or the timeout fires.
func (s *PlaywrightSession) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.page == nil {
		return ErrClosed
	}

	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(s.opts.Timeout.Milliseconds())),
	})
	if err != nil {
		return &NavigationError{URL: url, Err: err}
	}

	if s.checkIfBlocked() {
		return &NavigationError{URL: url, Err: ErrBlocked}
	}

	return nil
}

func (s *PlaywrightSession) QuerySelectors(ctx context.Context, selectors []string, timeout time.Duration) (Element, string, error) {
	if len(selectors) == 0 {
		return nil, "", ErrNoMatch
	}

	poll := s.opts.PollInterval
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}
	deadline := time.Now().Add(timeout)

	for {
		for _, selector := range selectors {
			locator := s.page.Locator(selector)
			count, err := locator.Count()
			if err != nil || count == 0 {
				continue
			}
			return &locatorElement{locator: locator.First()}, selector, nil
		}

		if time.Now().After(deadline) {
			return nil, "", ErrNoMatch
		}
		if err := ratelimit.Sleep(ctx, poll); err != nil {
			return nil, "", err
		}
	}
}

func (s *PlaywrightSession) Click(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.page.Locator(selector).First().Click(); err != nil {
		return fmt.Errorf("failed to click %s: %w", selector, err)
	}
	return nil
}

func (s *PlaywrightSession) Fill(ctx context.Context, selector, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.page.Locator(selector).First().Fill(value); err != nil {
		return fmt.Errorf("failed to fill %s: %w", selector, err)
	}
	return nil
}

func (s *PlaywrightSession) ExecuteScript(ctx context.Context, script string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result, err := s.page.Evaluate(script)
	if err != nil {
		return nil, fmt.Errorf("failed to execute script: %w", err)
	}
	return result, nil
}

func (s *PlaywrightSession) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	html, err := s.page.Content()
	if err != nil {
		return "", fmt.Errorf("failed to get page content: %w", err)
	}
	return html, nil
}

func (s *PlaywrightSession) ClearState(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.context.ClearCookies(); err != nil {
		return fmt.Errorf("failed to clear cookies: %w", err)
	}
	if _, err := s.page.Evaluate(`() => { window.localStorage.clear(); window.sessionStorage.clear(); }`); err != nil {
		return fmt.Errorf("failed to clear storage: %w", err)
	}
	return nil
}

func (s *PlaywrightSession) Close() error {
	var errs []error

	if s.context != nil {
		if err := s.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
		s.context = nil
	}

	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
		s.browser = nil
	}

	if s.pw != nil {
		if err := s.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
		s.pw = nil
	}
	s.page = nil

	return errors.Join(errs...)
}

func (s *PlaywrightSession) checkIfBlocked() bool {
	captchaSelectors := []string{
		"#captchacharacters",
		"form[action*='Captcha']",
		"form#captcha-form",
		"iframe[src*='recaptcha']",
	}

	for _, selector := range captchaSelectors {
		if count, _ := s.page.Locator(selector).Count(); count > 0 {
			s.logger.Warn("detected captcha/block", "selector", selector)
			return true
		}
	}

	title, _ := s.page.Title()
	if strings.Contains(strings.ToLower(title), "robot") {
		s.logger.Warn("detected robot check in title", "title", title)
		return true
	}

	return false
}

type locatorElement struct {
	locator playwright.Locator
}

func (e *locatorElement) Text() (string, error) {
	text, err := e.locator.TextContent()
	return strings.TrimSpace(text), err
}

func (e *locatorElement) Attr(name string) (string, error) {
	return e.locator.GetAttribute(name)
}

func (e *locatorElement) Click() error {
	return e.locator.Click()
}
