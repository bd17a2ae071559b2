package parser

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/catalog-scraper/internal/models"
	"github.com/shopspring/decimal"
)

const (
	ShoppingBaseURL  = "https://www.google.com"
	ShoppingCurrency = "INR"
)

var (
	ShoppingContainers = Chain("container", "div.KZmu8e", "div.sh-dgr__content", "div.sh-dlr__list-result")
	ShoppingTitle      = Chain("title", "h3.tAxDx", "h4.A2sOrd", "h3")
	ShoppingPrice      = Chain("price", "span.a8Pemb", "span.HRLxBb", "span.kHxwFf")
	ShoppingVendor     = Chain("vendor", "div.aULzUe", "div.IuHnof", "div.E5ocAb")
	ShoppingLink       = Chain("link", "a.Lq5OHe", "a.shntl", "a[href]")
)

var (
	redirectTarget = regexp.MustCompile(`url=([^&]+)`)

	refurbishedKeywords = []string{"refurbished", "renewed", "reconditioned", "pre-owned"}
)

// IsRefurbished reports whether the title or link names second-hand goods.
func IsRefurbished(title, link string) bool {
	title, link = strings.ToLower(title), strings.ToLower(link)
	for _, kw := range refurbishedKeywords {
		if strings.Contains(title, kw) || strings.Contains(link, kw) {
			return true
		}
	}
	return false
}

// CleanRedirectURL extracts the vendor URL from a Google redirect link and
// strips its query string. Other links are returned unchanged.
func CleanRedirectURL(raw string) string {
	m := redirectTarget.FindStringSubmatch(raw)
	if len(m) < 2 {
		return raw
	}
	decoded, err := url.QueryUnescape(m[1])
	if err != nil {
		return raw
	}
	if i := strings.Index(decoded, "?"); i >= 0 {
		decoded = decoded[:i]
	}
	return decoded
}

// ParseShoppingResults returns at most topN vendor offers. Rows missing a field,
// priced below minPrice, or for refurbished goods are dropped. topN <= 0 means no cap.
func ParseShoppingResults(html string, minPrice decimal.Decimal, topN int) ([]models.Offer, error) {
	doc, err := NewDocument(html)
	if err != nil {
		return nil, err
	}

	containers, _ := ShoppingContainers.Find(doc.Selection)
	if containers == nil {
		return nil, nil
	}

	var offers []models.Offer
	containers.EachWithBreak(func(_ int, c *goquery.Selection) bool {
		title, okTitle := ShoppingTitle.Text(c)
		priceText, okPrice := ShoppingPrice.Text(c)
		vendor, okVendor := ShoppingVendor.Text(c)
		href, okLink := ShoppingLink.Attr(c, "href")
		if !okTitle || !okPrice || !okVendor || !okLink {
			return true
		}

		price, ok := ParsePrice(priceText, minPrice)
		if !ok {
			return true
		}

		link := CleanRedirectURL(Resolve(ShoppingBaseURL, href))
		if IsRefurbished(title, link) {
			return true
		}

		offers = append(offers, models.Offer{
			Title:    title,
			Vendor:   vendor,
			Price:    price,
			Currency: ShoppingCurrency,
			Link:     link,
		})
		return topN <= 0 || len(offers) < topN
	})
	return offers, nil
}
