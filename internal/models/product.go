package models

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Unknown is the sentinel stored for a field that could not be extracted.
const Unknown = "Unknown"

type SiteID string

const (
	SiteFlipkart SiteID = "flipkart"
	SiteAmazon   SiteID = "amazon"
	SiteTechSpec SiteID = "91mobiles"
	SiteShopping SiteID = "google-shopping"
	SiteInput    SiteID = "input"
)

// Identity is the catalog uniqueness key.
type Identity struct {
	Name  string `json:"product_name"`
	Model string `json:"model_name"`
	Color string `json:"color"`
}

// Key returns the case-normalized form used for uniqueness checks.
func (id Identity) Key() string {
	return normalizeKeyPart(id.Name) + "|" + normalizeKeyPart(id.Model) + "|" + normalizeKeyPart(id.Color)
}

func (id Identity) String() string {
	return strings.TrimSpace(strings.Join(strings.Fields(id.Name+" "+id.Model+" "+id.Color), " "))
}

func normalizeKeyPart(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// ProductQuery is the normalized request for one catalog entry, built once from an input row.
type ProductQuery struct {
	Name           string `json:"name"`
	Model          string `json:"model"`
	Color          string `json:"color"`
	Category       string `json:"category"`
	DirectLink     string `json:"direct_link,omitempty"`
	TechSpecLink   string `json:"tech_spec_link,omitempty"`
	SiteSpecificID string `json:"site_specific_id,omitempty"`
	Row            int    `json:"row,omitempty"`
}

func (q ProductQuery) Identity() Identity {
	return Identity{Name: q.Name, Model: q.Model, Color: q.Color}
}

// SearchText is the site query string: name, model and color joined by single spaces.
func (q ProductQuery) SearchText() string {
	return q.Identity().String()
}

// HasDirectLookup reports whether the row carries a link or identifier that skips search.
func (q ProductQuery) HasDirectLookup() bool {
	return strings.TrimSpace(q.DirectLink) != "" || strings.TrimSpace(q.SiteSpecificID) != ""
}

// CandidateLink is a search hit before detail extraction.
type CandidateLink struct {
	ParsedName string `json:"parsed_name"`
	URL        string `json:"url"`
	Source     SiteID `json:"source"`
}

// Offer is one vendor/price pair returned by a shopping aggregator.
type Offer struct {
	Title    string          `json:"title"`
	Vendor   string          `json:"vendor"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
	Link     string          `json:"link"`
}

// ProductDetails is what a single adapter extracts from one product page.
type ProductDetails struct {
	Source          SiteID            `json:"source"`
	Link            string            `json:"link"`
	Name            string            `json:"name"`
	OfferPrice      *decimal.Decimal  `json:"offer_price,omitempty"`
	MRP             *decimal.Decimal  `json:"mrp,omitempty"`
	Description     string            `json:"description"`
	MetaTitle       string            `json:"meta_title"`
	MetaKeywords    string            `json:"meta_keywords"`
	MetaDescription string            `json:"meta_description"`
	UniqueID        string            `json:"unique_id"`
	Images          []string          `json:"images"`
	Specs           map[string]string `json:"specs"`
}

// NewProductDetails returns details with every text field set to Unknown.
func NewProductDetails(source SiteID, link string) *ProductDetails {
	return &ProductDetails{
		Source:          source,
		Link:            link,
		Name:            Unknown,
		Description:     Unknown,
		MetaTitle:       Unknown,
		MetaKeywords:    Unknown,
		MetaDescription: Unknown,
		UniqueID:        Unknown,
		Images:          make([]string, 0),
		Specs:           make(map[string]string),
	}
}

// Attributes flattens the details into raw spreadsheet-style keys.
func (d *ProductDetails) Attributes() map[string]string {
	attrs := make(map[string]string, len(d.Specs)+9)
	for k, v := range d.Specs {
		attrs[k] = v
	}
	attrs["Product Name"] = d.Name
	attrs["Offer Price"] = formatPrice(d.OfferPrice)
	attrs["MRP"] = formatPrice(d.MRP)
	attrs["Description"] = d.Description
	attrs["Meta Title"] = d.MetaTitle
	attrs["Meta Keywords"] = d.MetaKeywords
	attrs["Meta Description"] = d.MetaDescription
	attrs["Unique"] = d.UniqueID
	attrs["Link"] = d.Link
	return attrs
}

func formatPrice(p *decimal.Decimal) string {
	if p == nil {
		return Unknown
	}
	return p.StringFixed(2)
}

// ProductRecord is the canonical, merged catalog entry.
type ProductRecord struct {
	Identity    Identity          `json:"identity"`
	Category    string            `json:"category"`
	Attributes  map[string]string `json:"attributes"`
	Images      []string          `json:"images"`
	Sources     []SiteID          `json:"sources"`
	Offers      []Offer           `json:"offers,omitempty"`
	LastUpdated time.Time         `json:"last_updated"`
}

func NewProductRecord(q ProductQuery) *ProductRecord {
	return &ProductRecord{
		Identity:    q.Identity(),
		Category:    q.Category,
		Attributes:  make(map[string]string),
		Images:      make([]string, 0),
		Sources:     make([]SiteID, 0),
		LastUpdated: time.Now(),
	}
}

// AddImages adds urls to the image set, keeping it sorted and free of duplicates.
func (r *ProductRecord) AddImages(urls ...string) {
	seen := make(map[string]struct{}, len(r.Images)+len(urls))
	out := make([]string, 0, len(r.Images)+len(urls))
	for _, u := range append(r.Images, urls...) {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	sort.Strings(out)
	r.Images = out
}

func (r *ProductRecord) AddSource(site SiteID) {
	for _, s := range r.Sources {
		if s == site {
			return
		}
	}
	r.Sources = append(r.Sources, site)
	sort.Slice(r.Sources, func(i, j int) bool { return r.Sources[i] < r.Sources[j] })
}

func (r *ProductRecord) HasSource(site SiteID) bool {
	for _, s := range r.Sources {
		if s == site {
			return true
		}
	}
	return false
}

// SourceList joins the sources with commas, matching the catalog "source" column.
func (r *ProductRecord) SourceList() string {
	parts := make([]string, len(r.Sources))
	for i, s := range r.Sources {
		parts[i] = string(s)
	}
	return strings.Join(parts, ",")
}

// Touch advances LastUpdated, never moving it backwards.
func (r *ProductRecord) Touch(now time.Time) {
	if now.After(r.LastUpdated) {
		r.LastUpdated = now
		return
	}
	r.LastUpdated = r.LastUpdated.Add(time.Microsecond)
}

func (r *ProductRecord) Validate() []string {
	var errors []string

	if strings.TrimSpace(r.Identity.Name) == "" {
		errors = append(errors, "product name is required")
	}

	if strings.TrimSpace(r.Identity.Model) == "" {
		errors = append(errors, "model name is required")
	}

	if strings.TrimSpace(r.Identity.Color) == "" {
		errors = append(errors, "color is required")
	}

	if strings.TrimSpace(r.Category) == "" {
		errors = append(errors, "category is required")
	}

	return errors
}

// Clone returns a deep copy safe to hand to another goroutine.
func (r *ProductRecord) Clone() *ProductRecord {
	c := *r
	c.Attributes = make(map[string]string, len(r.Attributes))
	for k, v := range r.Attributes {
		c.Attributes[k] = v
	}
	c.Images = append([]string(nil), r.Images...)
	c.Sources = append([]SiteID(nil), r.Sources...)
	c.Offers = append([]Offer(nil), r.Offers...)
	return &c
}
