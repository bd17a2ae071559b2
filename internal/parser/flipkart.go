package parser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/catalog-scraper/internal/models"
	"github.com/shopspring/decimal"
)

const FlipkartBaseURL = "https://www.flipkart.com"

// Flipkart selector chains. Search hits are product anchors; the product name
// is taken from the URL slug, which mirrors the listing title closely.
var (
	FlipkartSearchLinks = Chain("search_link", "a.CGtC98", "a.wjcEIp", "a.IRpwTa", "a.s1Q9rs")

	FlipkartName        = Chain("Product Name", "span.VU-ZEz", "span.B_NuCI", "h1 span")
	FlipkartOfferPrice  = Chain("Offer Price", "div.Nx9bqj.CxhGGd", "div._30jeq3._16Jk6d")
	FlipkartMRP         = Chain("MRP", ".yRaY8j", "div._3I9_wc._2p6lqe", "div.Nx9bqj.CxhGGd")
	FlipkartDescription = Chain("Description", "div.w9jEaj > p", "div._1mXcCf p")
	FlipkartImages      = Chain("Images", "img._0DkuPH", "img.q6DClP", "img._396cs4")
	FlipkartReadMore    = Chain("spec_expander", "._4FgsLt", "button.QqFHMw._4FgsLt")

	FlipkartMetaTitle       = Chain("Meta Title", "head > meta[property='og:title']")
	FlipkartMetaKeywords    = Chain("Meta Keywords", "head > meta[name='Keywords']", "head > meta[name='keywords']")
	FlipkartMetaDescription = Chain("Meta Description", "head > meta[property='og:description']", "head > meta[name='Description']")
)

var flipkartSlug = regexp.MustCompile(`^https://www\.flipkart\.com/([a-zA-Z0-9\-]+)`)

// ParseFlipkartSearch returns every product anchor on a search page in document
// order, with the slug-derived name. No name filtering happens here.
func ParseFlipkartSearch(html string) ([]models.CandidateLink, error) {
	doc, err := NewDocument(html)
	if err != nil {
		return nil, err
	}

	var candidates []models.CandidateLink
	seen := make(map[string]struct{})

	for _, selector := range FlipkartSearchLinks.Selectors {
		doc.Find(selector).Each(func(_ int, a *goquery.Selection) {
			href, ok := a.Attr("href")
			if !ok {
				return
			}
			link := Resolve(FlipkartBaseURL, href)
			name := FlipkartSlugName(link)
			if name == "" {
				return
			}
			if _, dup := seen[link]; dup {
				return
			}
			seen[link] = struct{}{}
			candidates = append(candidates, models.CandidateLink{
				ParsedName: name,
				URL:        link,
				Source:     models.SiteFlipkart,
			})
		})
	}
	return candidates, nil
}

// FlipkartSlugName turns "https://www.flipkart.com/apple-iphone-13-blue/p/itm..." into
// "apple iphone 13 blue".
func FlipkartSlugName(link string) string {
	m := flipkartSlug.FindStringSubmatch(link)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(strings.ToLower(strings.ReplaceAll(m[1], "-", " ")))
}

// FlipkartUniqueID returns the 12 characters after "itm" in the first path
// segment containing it, or Unknown.
func FlipkartUniqueID(link string) string {
	for _, segment := range strings.Split(link, "/") {
		idx := strings.LastIndex(segment, "itm")
		if idx < 0 {
			continue
		}
		id := segment[idx+len("itm"):]
		if q := strings.IndexAny(id, "?&#"); q >= 0 {
			id = id[:q]
		}
		if len(id) > 12 {
			id = id[:12]
		}
		if id != "" {
			return id
		}
	}
	return models.Unknown
}

// ParseFlipkartDetails extracts the product-page schema. Absent fields stay Unknown.
func ParseFlipkartDetails(html, link string, minPrice decimal.Decimal) (*models.ProductDetails, error) {
	doc, err := NewDocument(html)
	if err != nil {
		return nil, err
	}
	root := doc.Selection
	d := models.NewProductDetails(models.SiteFlipkart, link)

	d.Name = FlipkartName.TextOr(root)

	if text, ok := FlipkartOfferPrice.Text(root); ok {
		d.OfferPrice = ParsePricePtr(text, minPrice)
	}
	if text, ok := FlipkartMRP.Text(root); ok {
		d.MRP = ParsePricePtr(text, minPrice)
	}

	d.Description = FlipkartDescription.TextOr(root)

	if v, ok := FlipkartMetaTitle.Attr(root, "content"); ok {
		d.MetaTitle = StripBranding(v, "On Flipkart.com")
	}
	if v, ok := FlipkartMetaKeywords.Attr(root, "content"); ok {
		d.MetaKeywords = StripBranding(v, "Flipkart")
	}
	if v, ok := FlipkartMetaDescription.Attr(root, "content"); ok {
		d.MetaDescription = StripBranding(v, " to shop at Flipkart")
	}

	d.UniqueID = FlipkartUniqueID(link)

	var images []string
	if imgs, _ := FlipkartImages.Find(root); imgs != nil {
		imgs.Each(func(_ int, img *goquery.Selection) {
			if src, ok := img.Attr("src"); ok {
				images = append(images, src)
			}
		})
	}
	d.Images = CanonicalImageSet(models.SiteFlipkart, images)

	for k, v := range ParseFlipkartSpecTable(doc) {
		d.Specs[k] = v
	}

	return d, nil
}

// ParseFlipkartSpecTable reads the expanded specification table.
func ParseFlipkartSpecTable(doc *goquery.Document) map[string]string {
	specs := make(map[string]string)
	specTable(doc.Find("tr.row"), "td.col.col-3-12", "td.col.col-9-12 > ul > li", specs)
	return specs
}
