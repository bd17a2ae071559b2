package parser

import (
	"testing"

	"github.com/maltedev/catalog-scraper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const flipkartSearchPage = `<!DOCTYPE html>
<html><body>
  <a class="CGtC98" href="/apple-iphone-13-blue-128-gb/p/itm6c601e0a58b3c?pid=MOBG6VF5Q82T3XRS">iPhone 13</a>
  <a class="CGtC98" href="/apple-iphone-13-pro-max-silver-256-gb/p/itm0c5f8b8d7c0a9?pid=MOBG6VF5GHZ6ZFZK">iPhone 13 Pro Max</a>
  <a class="wjcEIp" href="/spigen-back-cover-apple-iphone-13/p/itmf3zhzhyhdqzh2">Spigen</a>
  <a class="CGtC98" href="/apple-iphone-13-blue-128-gb/p/itm6c601e0a58b3c?pid=MOBG6VF5Q82T3XRS">duplicate</a>
  <a class="CGtC98" href="javascript:void(0)">broken</a>
</body></html>`

const flipkartProductPage = `<!DOCTYPE html>
<html>
<head>
  <meta property="og:title" content="Apple iPhone 13 (Blue, 128 GB) On Flipkart.com">
  <meta name="Keywords" content="Apple iPhone 13, Flipkart">
  <meta property="og:description" content="Buy Apple iPhone 13 (Blue, 128 GB) for Rs.52999 online to shop at Flipkart">
</head>
<body>
  <h1><span class="VU-ZEz">Apple iPhone 13 (Blue, 128 GB)</span></h1>
  <div class="Nx9bqj CxhGGd">₹52,999</div>
  <div class="yRaY8j">₹59,900</div>
  <div class="w9jEaj"><p>iPhone 13. boasts an advanced dual-camera system.</p></div>
  <img class="_0DkuPH" src="https://rukminim2.flixcart.com/image/128/128/ktketu80/mobile/2/y/o/iphone-13-mlpk3hn-a-apple-original-imag6vpyur6hjngg.jpeg?q=70">
  <img class="_0DkuPH" src="https://rukminim2.flixcart.com/image/128/128/ktketu80/mobile/6/n/d/iphone-13-mlpg3hn-a-apple-original-imag6vpyghayhhrh.jpeg?q=70">
  <img class="_0DkuPH" src="https://rukminim2.flixcart.com/image/416/416/ktketu80/mobile/2/y/o/iphone-13-mlpk3hn-a-apple-original-imag6vpyur6hjngg.jpeg?q=70">
  <table>
    <tr class="row"><td class="col col-3-12">Model Name</td><td class="col col-9-12"><ul><li>iPhone 13</li></ul></td></tr>
    <tr class="row"><td class="col col-3-12">Color</td><td class="col col-9-12"><ul><li>Blue</li></ul></td></tr>
    <tr class="row"><td class="col col-3-12">Network Type</td><td class="col col-9-12"><ul><li>5G</li><li>4G VOLTE</li><li> </li></ul></td></tr>
    <tr class="row"><td class="col col-3-12">Empty</td><td class="col col-9-12"><ul></ul></td></tr>
  </table>
</body>
</html>`

func TestParseFlipkartSearch(t *testing.T) {
	candidates, err := ParseFlipkartSearch(flipkartSearchPage)
	require.NoError(t, err)
	require.Len(t, candidates, 3)

	assert.Equal(t, "apple iphone 13 blue 128 gb", candidates[0].ParsedName)
	assert.Equal(t, "https://www.flipkart.com/apple-iphone-13-blue-128-gb/p/itm6c601e0a58b3c?pid=MOBG6VF5Q82T3XRS", candidates[0].URL)
	assert.Equal(t, "apple iphone 13 pro max silver 256 gb", candidates[1].ParsedName)
	// second selector of the chain is read after the first
	assert.Equal(t, "spigen back cover apple iphone 13", candidates[2].ParsedName)
	for _, c := range candidates {
		assert.Equal(t, models.SiteFlipkart, c.Source)
	}
}

func TestParseFlipkartDetails(t *testing.T) {
	link := "https://www.flipkart.com/apple-iphone-13-blue-128-gb/p/itm6c601e0a58b3c?pid=MOBG6VF5Q82T3XRS"
	d, err := ParseFlipkartDetails(flipkartProductPage, link, DefaultMinSanePrice)
	require.NoError(t, err)

	assert.Equal(t, "Apple iPhone 13 (Blue, 128 GB)", d.Name)
	require.NotNil(t, d.OfferPrice)
	assert.Equal(t, "52999.00", d.OfferPrice.StringFixed(2))
	require.NotNil(t, d.MRP)
	assert.Equal(t, "59900.00", d.MRP.StringFixed(2))
	assert.Equal(t, "iPhone 13. boasts an advanced dual-camera system.", d.Description)
	assert.Equal(t, "Apple iPhone 13 (Blue, 128 GB)", d.MetaTitle)
	assert.Equal(t, "Apple iPhone 13", d.MetaKeywords)
	assert.Equal(t, "Buy Apple iPhone 13 (Blue, 128 GB) for Rs.52999 online", d.MetaDescription)
	assert.Equal(t, "6c601e0a58b3", d.UniqueID)

	assert.Len(t, d.Images, 2)
	for _, img := range d.Images {
		assert.Contains(t, img, "/image/1664/1664/")
		assert.Contains(t, img, "q=100")
	}

	assert.Equal(t, "iPhone 13", d.Specs["Model Name"])
	assert.Equal(t, "Blue", d.Specs["Color"])
	assert.Equal(t, "5G, 4G VOLTE", d.Specs["Network Type"])
	assert.NotContains(t, d.Specs, "Empty")
}

func TestParseFlipkartDetailsMRPFallsBackToOfferPrice(t *testing.T) {
	html := `<html><body><div class="Nx9bqj CxhGGd">₹52,999</div></body></html>`
	d, err := ParseFlipkartDetails(html, "https://www.flipkart.com/x/p/itmabc", DefaultMinSanePrice)
	require.NoError(t, err)

	require.NotNil(t, d.MRP)
	assert.True(t, d.MRP.Equal(*d.OfferPrice))
	assert.Equal(t, models.Unknown, d.Name)
	assert.Equal(t, models.Unknown, d.MetaTitle)
}

func TestFlipkartUniqueID(t *testing.T) {
	tests := []struct {
		link string
		want string
	}{
		{"https://www.flipkart.com/apple-iphone-13/p/itm6c601e0a58b3c?pid=MOB", "6c601e0a58b3"},
		{"https://www.flipkart.com/apple-iphone-13/p/itmabc", "abc"},
		{"https://www.flipkart.com/apple-iphone-13/p/", models.Unknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FlipkartUniqueID(tt.link), tt.link)
	}
}

func TestFlipkartSlugName(t *testing.T) {
	assert.Equal(t, "apple iphone 13 pro max", FlipkartSlugName("https://www.flipkart.com/apple-iphone-13-pro-max/p/itm1"))
	assert.Equal(t, "", FlipkartSlugName("https://www.amazon.in/apple"))
}
