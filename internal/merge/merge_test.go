package merge

import (
	"testing"

	"github.com/maltedev/catalog-scraper/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestMergeMarketplaceAndSpec(t *testing.T) {
	table := DefaultTable()

	got := table.Merge(
		Source{Site: models.SiteAmazon, Role: RoleMarketplace, Attributes: map[string]string{"Price": "999", "RAM": ""}},
		Source{Site: models.SiteTechSpec, Role: RoleSpec, Attributes: map[string]string{"RAM": "8GB", "Price": ""}},
	)

	assert.Equal(t, map[string]string{"Price": "999", "RAM": "8GB"}, got)
}

func TestMergePrecedence(t *testing.T) {
	table := DefaultTable()

	got := table.Merge(
		Source{Role: RoleMarketplace, Attributes: map[string]string{
			"Offer Price": "52999.00",
			"RAM":         "4 GB",
			"Warranty":    "1 year",
		}},
		Source{Role: RoleSpec, Attributes: map[string]string{
			"Offer Price": "49999.00",
			"Memory":      "4 GB LPDDR4X",
			"Warranty":    "2 years",
			"SAR Value":   "0.98 W/kg",
		}},
	)

	assert.Equal(t, "52999.00", got["Offer Price"], "marketplace wins commerce keys")
	assert.Equal(t, "4 GB LPDDR4X", got["RAM"], "spec site wins technical keys")
	assert.Equal(t, "1 year", got["Warranty"], "first non-empty wins without precedence")
	assert.Equal(t, "0.98 W/kg", got["SAR Value"])
}

func TestCanonicalizeSynonyms(t *testing.T) {
	table := DefaultTable()

	tests := []struct {
		name  string
		attrs map[string]string
		want  map[string]string
	}{
		{
			name:  "first variant wins when both are present",
			attrs: map[string]string{"Rear Camera": "12MP", "Primary Camera": "12MP + 12MP"},
			want:  map[string]string{"Primary Camera": "12MP"},
		},
		{
			name:  "second variant used when first is empty",
			attrs: map[string]string{"Rear Camera": "Unknown", "Primary Camera": "12MP + 12MP"},
			want:  map[string]string{"Primary Camera": "12MP + 12MP"},
		},
		{
			name:  "case and spacing folded",
			attrs: map[string]string{"  wi-fi  ": "802.11ax"},
			want:  map[string]string{"Wi-Fi Version": "802.11ax"},
		},
		{
			name:  "unmapped keys pass through",
			attrs: map[string]string{"SIM Type": "Dual"},
			want:  map[string]string{"SIM Type": "Dual"},
		},
		{
			name:  "empty and NA values dropped",
			attrs: map[string]string{"GPS": "NA", "Sensors": " "},
			want:  map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, table.Canonicalize(tt.attrs))
		})
	}
}

func TestApplyKeepsExistingFieldsAndRecordsSources(t *testing.T) {
	table := DefaultTable()
	rec := models.NewProductRecord(models.ProductQuery{Name: "Apple iPhone 13", Model: "A2633", Color: "Blue", Category: "Phone"})
	rec.Attributes = map[string]string{"Battery Capacity": "3240 mAh", "Offer Price": "59900.00"}

	table.Apply(rec,
		Source{Site: models.SiteFlipkart, Role: RoleMarketplace, Attributes: map[string]string{"Offer Price": "52999.00"},
			Images: []string{"https://img/b.jpg", "https://img/a.jpg"}},
		Source{Site: models.SiteTechSpec, Role: RoleSpec, Attributes: map[string]string{"Memory": "4 GB"},
			Images: []string{"https://img/a.jpg"}},
	)

	assert.Equal(t, "52999.00", rec.Attributes["Offer Price"])
	assert.Equal(t, "3240 mAh", rec.Attributes["Battery Capacity"])
	assert.Equal(t, "4 GB", rec.Attributes["RAM"])
	assert.Equal(t, []string{"https://img/a.jpg", "https://img/b.jpg"}, rec.Images)
	assert.Equal(t, "91mobiles,flipkart", rec.SourceList())
}

func TestSynonymOutputsOrder(t *testing.T) {
	outs := DefaultTable().SynonymOutputs()
	assert.Len(t, outs, len(DefaultSynonyms))
	assert.Equal(t, "RAM", outs[0])
	assert.Equal(t, "Sensors", outs[len(outs)-1])
}
