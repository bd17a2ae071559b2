package parser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/catalog-scraper/internal/models"
	"github.com/shopspring/decimal"
)

const AmazonBaseURL = "https://www.amazon.in"

var (
	AmazonSearchTitles = Chain("search_title",
		"span.a-size-medium.a-color-base.a-text-normal",
		"h2 a span.a-text-normal",
		"h2.a-size-medium span",
	)

	AmazonName       = Chain("Product Name", "#productTitle", "#title span")
	AmazonOfferPrice = Chain("Offer Price",
		".priceToPay .a-offscreen",
		"span.a-price.a-text-price.a-size-medium.apexPriceToPay .a-offscreen",
		"#corePriceDisplay_desktop_feature_div .a-price-whole",
		".a-price-whole",
		"#priceblock_dealprice",
		"#priceblock_ourprice",
	)
	AmazonMRP = Chain("MRP",
		".basisPrice .a-offscreen",
		"span.a-price.a-text-price[data-a-strike='true'] .a-offscreen",
		"#listPrice",
		"#priceblock_ourprice",
	)
	AmazonDescription = Chain("Description", "#productDescription", "#feature-bullets ul")
	AmazonImages      = Chain("Images", "#altImages ul li img", "#landingImage", "#imgTagWrapperId img")

	AmazonMetaTitle       = Chain("Meta Title", "head > meta[name='title']")
	AmazonMetaKeywords    = Chain("Meta Keywords", "head > meta[name='keywords']")
	AmazonMetaDescription = Chain("Meta Description", "head > meta[name='description']")
)

var asinPattern = regexp.MustCompile(`/(?:dp|gp/product)/([A-Z0-9]{10})`)

var amazonBranding = []string{"Amazon.in:", "Amazon.in", ": Buy Online at Best Price in India"}

// ParseAmazonSearch returns every title on a search page with the link of its
// enclosing anchor.
func ParseAmazonSearch(html string) ([]models.CandidateLink, error) {
	doc, err := NewDocument(html)
	if err != nil {
		return nil, err
	}

	titles, _ := AmazonSearchTitles.Find(doc.Selection)
	if titles == nil {
		return nil, nil
	}

	var candidates []models.CandidateLink
	seen := make(map[string]struct{})
	titles.Each(func(_ int, s *goquery.Selection) {
		title := CleanText(s.Text())
		if title == "" {
			return
		}
		href, ok := s.Closest("a").Attr("href")
		if !ok {
			return
		}
		link := Resolve(AmazonBaseURL, href)
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		candidates = append(candidates, models.CandidateLink{
			ParsedName: title,
			URL:        link,
			Source:     models.SiteAmazon,
		})
	})
	return candidates, nil
}

// ASINFromURL returns the ten-character product id from a /dp/ or /gp/product/ link.
func ASINFromURL(link string) string {
	if m := asinPattern.FindStringSubmatch(link); len(m) == 2 {
		return m[1]
	}
	return ""
}

// AmazonProductURL builds a canonical product link from an ASIN.
func AmazonProductURL(asin string) string {
	return AmazonBaseURL + "/dp/" + strings.TrimSpace(asin)
}

func ParseAmazonDetails(html, link string, minPrice decimal.Decimal) (*models.ProductDetails, error) {
	doc, err := NewDocument(html)
	if err != nil {
		return nil, err
	}
	root := doc.Selection
	d := models.NewProductDetails(models.SiteAmazon, link)

	d.Name = AmazonName.TextOr(root)

	if text, ok := AmazonOfferPrice.Text(root); ok {
		d.OfferPrice = ParsePricePtr(text, minPrice)
	}
	if text, ok := AmazonMRP.Text(root); ok {
		d.MRP = ParsePricePtr(text, minPrice)
	}
	if d.MRP == nil && d.OfferPrice != nil {
		mrp := *d.OfferPrice
		d.MRP = &mrp
	}

	if bullets, ok := amazonBullets(root); ok {
		d.Description = bullets
	} else {
		d.Description = AmazonDescription.TextOr(root)
	}

	if v, ok := AmazonMetaTitle.Attr(root, "content"); ok {
		d.MetaTitle = StripBranding(v, amazonBranding...)
	} else if title := CleanText(doc.Find("head > title").First().Text()); title != "" {
		d.MetaTitle = StripBranding(title, amazonBranding...)
	}
	if v, ok := AmazonMetaKeywords.Attr(root, "content"); ok {
		d.MetaKeywords = StripBranding(v, amazonBranding...)
	}
	if v, ok := AmazonMetaDescription.Attr(root, "content"); ok {
		d.MetaDescription = StripBranding(v, amazonBranding...)
	}

	if asin := ASINFromURL(link); asin != "" {
		d.UniqueID = asin
	}

	var images []string
	if imgs, _ := AmazonImages.Find(root); imgs != nil {
		imgs.Each(func(_ int, img *goquery.Selection) {
			src, ok := img.Attr("data-old-hires")
			if !ok || src == "" {
				src, _ = img.Attr("src")
			}
			if strings.Contains(src, "/images/I/") {
				images = append(images, src)
			}
		})
	}
	d.Images = CanonicalImageSet(models.SiteAmazon, images)

	specTable(doc.Find("#productDetails_techSpec_section_1 tr"), "th", "td", d.Specs)
	specTable(doc.Find("#productOverview_feature_div tr"), "td.a-span3", "td.a-span9", d.Specs)
	doc.Find("#detailBullets_feature_div li").Each(func(_ int, li *goquery.Selection) {
		key := strings.Trim(CleanText(li.Find("span.a-text-bold").Text()), " :\u200e\u200f")
		value := CleanText(li.Find("span.a-text-bold").Next().Text())
		if key != "" && value != "" {
			if _, exists := d.Specs[key]; !exists {
				d.Specs[key] = value
			}
		}
	})

	return d, nil
}

func amazonBullets(root *goquery.Selection) (string, bool) {
	var bullets []string
	root.Find("#feature-bullets ul li span.a-list-item").Each(func(_ int, s *goquery.Selection) {
		if text := CleanText(s.Text()); text != "" {
			bullets = append(bullets, text)
		}
	})
	if len(bullets) == 0 {
		return "", false
	}
	return strings.Join(bullets, " | "), true
}
