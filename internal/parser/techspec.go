package parser

import (
	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/catalog-scraper/internal/models"
)

const TechSpecBaseURL = "https://www.91mobiles.com"

// 91mobiles search runs through the site's own search box, so only the result
// chain is parsed from HTML.
var (
	TechSpecSearchBox    = Chain("search_box", "#autoSuggestTxtBox")
	TechSpecSearchButton = Chain("search_button", "#main_auto_search")
	TechSpecResults      = Chain("search_result", ".hover_blue_link", "a.name")

	TechSpecName = Chain("Product Name", ".h1_pro_head", "h1")
)

func ParseTechSpecResults(html string) ([]models.CandidateLink, error) {
	doc, err := NewDocument(html)
	if err != nil {
		return nil, err
	}

	results, _ := TechSpecResults.Find(doc.Selection)
	if results == nil {
		return nil, nil
	}

	var candidates []models.CandidateLink
	results.Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		title, _ := a.Attr("title")
		if title == "" {
			title = CleanText(a.Text())
		}
		if title == "" {
			return
		}
		candidates = append(candidates, models.CandidateLink{
			ParsedName: CleanText(title),
			URL:        Resolve(TechSpecBaseURL, href),
			Source:     models.SiteTechSpec,
		})
	})
	return candidates, nil
}

// ParseTechSpecDetails reads the product heading and every spec table row.
// The spec site carries no commerce fields, so prices stay absent.
func ParseTechSpecDetails(html, link string) (*models.ProductDetails, error) {
	doc, err := NewDocument(html)
	if err != nil {
		return nil, err
	}
	d := models.NewProductDetails(models.SiteTechSpec, link)
	d.Name = TechSpecName.TextOr(doc.Selection)

	specTable(doc.Find(".spec_table tr"), ".spec_ttle", ".spec_des", d.Specs)

	return d, nil
}
