package parser

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/catalog-scraper/internal/models"
)

// FieldChain is an ordered list of selectors for one logical field. The first
// selector that yields a non-empty value wins, so a site may change its markup
// without losing the field as long as one fallback still matches.
type FieldChain struct {
	Field     string
	Selectors []string
}

func Chain(field string, selectors ...string) FieldChain {
	return FieldChain{Field: field, Selectors: selectors}
}

// Find returns the first selection matched by any selector, and the selector used.
func (c FieldChain) Find(s *goquery.Selection) (*goquery.Selection, string) {
	for _, selector := range c.Selectors {
		if found := s.Find(selector); found.Length() > 0 {
			return found, selector
		}
	}
	return nil, ""
}

// Text returns the whitespace-collapsed text of the first non-empty match.
func (c FieldChain) Text(s *goquery.Selection) (string, bool) {
	for _, selector := range c.Selectors {
		text := CleanText(s.Find(selector).First().Text())
		if text != "" {
			return text, true
		}
	}
	return "", false
}

// Attr returns the attribute value of the first match that carries it.
func (c FieldChain) Attr(s *goquery.Selection, name string) (string, bool) {
	for _, selector := range c.Selectors {
		if v, ok := s.Find(selector).First().Attr(name); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// TextOr is Text with models.Unknown for an absent field.
func (c FieldChain) TextOr(s *goquery.Selection) string {
	if text, ok := c.Text(s); ok {
		return text
	}
	return models.Unknown
}

func NewDocument(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// StripBranding removes site branding fragments from meta content.
func StripBranding(s string, fragments ...string) string {
	for _, f := range fragments {
		s = strings.ReplaceAll(s, f, "")
	}
	s = CleanText(s)
	s = strings.Trim(s, " ,:|-")
	if s == "" {
		return models.Unknown
	}
	return s
}

// Resolve makes href absolute against base. Unparseable hrefs are returned as-is.
func Resolve(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}

// specTable reads key/value rows into dst, joining multi-value cells with ", ".
// Existing keys are kept.
func specTable(rows *goquery.Selection, keySel, valueSel string, dst map[string]string) {
	rows.Each(func(_ int, row *goquery.Selection) {
		key := CleanText(row.Find(keySel).First().Text())
		if key == "" {
			return
		}
		var values []string
		row.Find(valueSel).Each(func(_ int, v *goquery.Selection) {
			if text := CleanText(v.Text()); text != "" {
				values = append(values, text)
			}
		})
		if len(values) == 0 {
			return
		}
		if _, exists := dst[key]; !exists {
			dst[key] = strings.Join(values, ", ")
		}
	})
}
