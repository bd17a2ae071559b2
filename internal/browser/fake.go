package browser

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// FakeSession serves canned HTML per URL and answers selector queries with goquery.
// Adapters and the retry controller are tested against it.
type FakeSession struct {
	mu        sync.Mutex
	Pages     map[string]string
	NavErr    map[string]error
	ClearErr  error
	current   string
	html      string
	Visited   []string
	Clicked   []string
	Filled    map[string]string
	Cleared   int
	Closed    bool
	OnClick   func(f *FakeSession, selector string)
	ScriptOut any
}

func NewFakeSession(pages map[string]string) *FakeSession {
	if pages == nil {
		pages = make(map[string]string)
	}
	return &FakeSession{
		Pages:  pages,
		NavErr: make(map[string]error),
		Filled: make(map[string]string),
	}
}

func (f *FakeSession) Navigate(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	f.Visited = append(f.Visited, url)
	if err, ok := f.NavErr[url]; ok && err != nil {
		return &NavigationError{URL: url, Err: err}
	}
	f.current = url
	f.html = f.Pages[url]
	return nil
}

// SetHTML replaces the current document, e.g. after a simulated click.
func (f *FakeSession) SetHTML(html string) {
	f.html = html
}

func (f *FakeSession) doc() (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(f.html))
}

func (f *FakeSession) QuerySelectors(ctx context.Context, selectors []string, timeout time.Duration) (Element, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	doc, err := f.doc()
	if err != nil {
		return nil, "", err
	}
	for _, selector := range selectors {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			return &fakeElement{sel: sel}, selector, nil
		}
	}
	return nil, "", ErrNoMatch
}

func (f *FakeSession) Click(ctx context.Context, selector string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Clicked = append(f.Clicked, selector)
	if f.OnClick != nil {
		f.OnClick(f, selector)
	}
	return nil
}

func (f *FakeSession) Fill(ctx context.Context, selector, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Filled[selector] = value
	return nil
}

func (f *FakeSession) ExecuteScript(ctx context.Context, script string) (any, error) {
	return f.ScriptOut, nil
}

func (f *FakeSession) Content(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.html, nil
}

func (f *FakeSession) ClearState(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Cleared++
	return f.ClearErr
}

func (f *FakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Closed = true
	return nil
}

// CurrentURL returns the last successfully navigated URL.
func (f *FakeSession) CurrentURL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

type fakeElement struct {
	sel *goquery.Selection
}

func (e *fakeElement) Text() (string, error) {
	return strings.TrimSpace(e.sel.Text()), nil
}

func (e *fakeElement) Attr(name string) (string, error) {
	v, _ := e.sel.Attr(name)
	return v, nil
}

func (e *fakeElement) Click() error { return nil }
