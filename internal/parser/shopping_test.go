package parser

import (
	"fmt"
	"strings"
	"testing"

	"github.com/maltedev/catalog-scraper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shoppingRow(title, price, vendor, href string) string {
	return fmt.Sprintf(`<div class="sh-dgr__content">
  <h3 class="tAxDx">%s</h3>
  <span class="a8Pemb">%s</span>
  <div class="aULzUe">%s</div>
  <a class="shntl" href="%s">view</a>
</div>`, title, price, vendor, href)
}

func TestParseShoppingResults(t *testing.T) {
	html := "<html><body>" +
		shoppingRow("Apple iPhone 13 128GB Blue", "₹52,999.00", "Croma", "/url?url=https%3A%2F%2Fwww.croma.com%2Fiphone-13%3Futm%3Dgs&ved=1") +
		shoppingRow("Apple iPhone 13 (Renewed)", "₹38,000.00", "Amazon.in", "/url?url=https%3A%2F%2Fwww.amazon.in%2Frenewed&ved=2") +
		shoppingRow("iPhone 13 sticker", "₹1", "Sticker Shop", "https://stickers.example/iphone") +
		shoppingRow("Apple iPhone 13", "₹54,900.00", "Reliance Digital", "https://www.reliancedigital.in/iphone-13?src=gs") +
		`<div class="sh-dgr__content"><h3 class="tAxDx">No price</h3></div>` +
		"</body></html>"

	offers, err := ParseShoppingResults(html, DefaultMinSanePrice, 10)
	require.NoError(t, err)
	require.Len(t, offers, 2)

	assert.Equal(t, "Croma", offers[0].Vendor)
	assert.Equal(t, "https://www.croma.com/iphone-13", offers[0].Link)
	assert.Equal(t, "52999.00", offers[0].Price.StringFixed(2))
	assert.Equal(t, ShoppingCurrency, offers[0].Currency)

	// non-redirect links are kept as-is
	assert.Equal(t, "https://www.reliancedigital.in/iphone-13?src=gs", offers[1].Link)
}

func TestParseShoppingResultsCapsTopN(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 15; i++ {
		b.WriteString(shoppingRow(fmt.Sprintf("Phone %d", i), "₹20,000", fmt.Sprintf("Vendor %d", i), fmt.Sprintf("https://v%d.example/p", i)))
	}
	b.WriteString("</body></html>")

	offers, err := ParseShoppingResults(b.String(), DefaultMinSanePrice, 10)
	require.NoError(t, err)
	assert.Len(t, offers, 10)
	assert.Equal(t, "Vendor 0", offers[0].Vendor)
	assert.Equal(t, "Vendor 9", offers[9].Vendor)
}

func TestIsRefurbished(t *testing.T) {
	assert.True(t, IsRefurbished("Apple iPhone 13 (Renewed)", ""))
	assert.True(t, IsRefurbished("iPhone", "https://shop.example/pre-owned/iphone"))
	assert.True(t, IsRefurbished("REFURBISHED iPhone", ""))
	assert.False(t, IsRefurbished("Apple iPhone 13", "https://shop.example/iphone"))
}

func TestCleanRedirectURL(t *testing.T) {
	assert.Equal(t, "https://www.croma.com/p", CleanRedirectURL("https://www.google.com/url?url=https%3A%2F%2Fwww.croma.com%2Fp%3Fa%3D1&sa=U"))
	assert.Equal(t, "https://plain.example/p?x=1", CleanRedirectURL("https://plain.example/p?x=1"))
}

func TestParseTechSpec(t *testing.T) {
	results := `<html><body>
  <a class="hover_blue_link" title="Apple iPhone 13 Pro Max" href="/apple-iphone-13-pro-max-price-in-india">x</a>
  <a class="hover_blue_link" title="Apple iPhone 13" href="/apple-iphone-13-price-in-india">y</a>
</body></html>`
	candidates, err := ParseTechSpecResults(results)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "Apple iPhone 13", candidates[1].ParsedName)
	assert.Equal(t, "https://www.91mobiles.com/apple-iphone-13-price-in-india", candidates[1].URL)
	assert.Equal(t, models.SiteTechSpec, candidates[1].Source)

	details := `<html><body>
  <h1 class="h1_pro_head">Apple iPhone 13</h1>
  <table class="spec_table">
    <tr><td class="spec_ttle">RAM</td><td class="spec_des">4 GB</td></tr>
    <tr><td class="spec_ttle">Rear Camera</td><td class="spec_des">12 MP + 12 MP</td></tr>
    <tr><td colspan="2">Display</td></tr>
  </table>
</body></html>`
	d, err := ParseTechSpecDetails(details, candidates[1].URL)
	require.NoError(t, err)
	assert.Equal(t, "Apple iPhone 13", d.Name)
	assert.Equal(t, map[string]string{"RAM": "4 GB", "Rear Camera": "12 MP + 12 MP"}, d.Specs)
	assert.Nil(t, d.OfferPrice)
}
