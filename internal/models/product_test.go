package models

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityKey(t *testing.T) {
	a := Identity{Name: "Pixel  8", Model: "G9BQD", Color: "Obsidian "}
	b := Identity{Name: "pixel 8", Model: "g9bqd", Color: "OBSIDIAN"}
	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, "Pixel 8 G9BQD Obsidian", a.String())

	q := ProductQuery{Name: "Galaxy S23", Model: "SM-S911B", Color: "Green"}
	assert.Equal(t, "Galaxy S23 SM-S911B Green", q.SearchText())
	assert.False(t, q.HasDirectLookup())
	q.SiteSpecificID = "B0BT9CXXXX"
	assert.True(t, q.HasDirectLookup())
}

func TestProductDetailsAttributes(t *testing.T) {
	d := NewProductDetails(SiteFlipkart, "https://www.flipkart.com/p/1")
	price := decimal.RequireFromString("54999")
	d.OfferPrice = &price
	d.Specs["RAM"] = "8 GB"

	attrs := d.Attributes()
	assert.Equal(t, "54999.00", attrs["Offer Price"])
	assert.Equal(t, Unknown, attrs["MRP"])
	assert.Equal(t, Unknown, attrs["Product Name"])
	assert.Equal(t, "8 GB", attrs["RAM"])
	assert.Equal(t, "https://www.flipkart.com/p/1", attrs["Link"])
}

func TestProductRecordSetsAreOrderedAndUnique(t *testing.T) {
	rec := NewProductRecord(ProductQuery{Name: "Pixel 8", Model: "G9BQD", Color: "Obsidian", Category: "Phone"})

	rec.AddImages("https://img/b.jpg", " ", "https://img/a.jpg")
	rec.AddImages("https://img/a.jpg")
	assert.Equal(t, []string{"https://img/a.jpg", "https://img/b.jpg"}, rec.Images)

	rec.AddSource(SiteTechSpec)
	rec.AddSource(SiteAmazon)
	rec.AddSource(SiteAmazon)
	assert.Equal(t, "91mobiles,amazon", rec.SourceList())
	assert.True(t, rec.HasSource(SiteAmazon))
	assert.False(t, rec.HasSource(SiteFlipkart))
}

func TestTouchNeverMovesBackwards(t *testing.T) {
	rec := NewProductRecord(ProductQuery{Name: "x"})
	start := rec.LastUpdated

	rec.Touch(start.Add(-time.Hour))
	assert.True(t, rec.LastUpdated.After(start))

	later := start.Add(time.Hour)
	rec.Touch(later)
	assert.True(t, later.Equal(rec.LastUpdated))
}

func TestValidate(t *testing.T) {
	rec := NewProductRecord(ProductQuery{Name: "Pixel 8", Model: " ", Color: "Obsidian"})
	problems := rec.Validate()
	assert.Equal(t, []string{"model name is required", "category is required"}, problems)
}

func TestCloneIsDeep(t *testing.T) {
	rec := NewProductRecord(ProductQuery{Name: "Pixel 8", Model: "G9BQD", Color: "Obsidian", Category: "Phone"})
	rec.Attributes["RAM"] = "8 GB"
	rec.AddImages("https://img/a.jpg")

	c := rec.Clone()
	c.Attributes["RAM"] = "12 GB"
	c.Images[0] = "changed"

	assert.Equal(t, "8 GB", rec.Attributes["RAM"])
	assert.Equal(t, "https://img/a.jpg", rec.Images[0])
}

func TestOutcomeConstructors(t *testing.T) {
	q := ProductQuery{Name: "Pixel 8"}

	o := NeedsReview(q, nil, errors.New("selector timeout"))
	assert.Equal(t, OutcomeNeedsReview, o.Kind)
	assert.Equal(t, "selector timeout", o.Reason)

	nf := NotFound(q, "no match")
	require.Nil(t, nf.Record)
	assert.Equal(t, OutcomeNotFound, nf.Kind)

	r := Resolved(q, NewProductRecord(q), "flipkart")
	assert.Equal(t, "flipkart", r.Stage)
}
