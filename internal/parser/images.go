package parser

import (
	"regexp"
	"sort"
	"strings"

	"github.com/maltedev/catalog-scraper/internal/models"
)

const (
	FlipkartResolution = "1664/1664"
	AmazonResolution   = "_AC_SL1500_"
)

var (
	flipkartSizeToken    = regexp.MustCompile(`/image/\d+/\d+/`)
	flipkartQualityToken = regexp.MustCompile(`([?&])q=\d+`)
	amazonSizeToken      = regexp.MustCompile(`\._[A-Za-z0-9_,]+_\.`)
)

// CanonicalImageURL rewrites the embedded resolution token of a site image URL
// to the single high-resolution token used for that site.
func CanonicalImageURL(site models.SiteID, raw string) string {
	raw = strings.TrimSpace(raw)
	switch site {
	case models.SiteFlipkart:
		raw = flipkartSizeToken.ReplaceAllString(raw, "/image/"+FlipkartResolution+"/")
		return flipkartQualityToken.ReplaceAllString(raw, "${1}q=100")
	case models.SiteAmazon:
		return amazonSizeToken.ReplaceAllString(raw, "."+AmazonResolution+".")
	default:
		return raw
	}
}

// CanonicalImageSet canonicalizes urls and collapses duplicates. Data URIs and
// empty values are dropped. The result is sorted.
func CanonicalImageSet(site models.SiteID, urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u == "" || strings.HasPrefix(u, "data:") {
			continue
		}
		c := CanonicalImageURL(site, u)
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
