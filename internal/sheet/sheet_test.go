package sheet

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/maltedev/catalog-scraper/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeInput(t *testing.T, path string, headers []string, rows ...[]string) {
	t.Helper()
	tbl := NewTable("Input", headers...)
	tbl.Rows = rows
	require.NoError(t, WriteWorkbook(path, tbl))
}

func TestReadQueries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.xlsx")
	writeInput(t, path,
		[]string{ColProductName, ColModelName, ColColor, ColCategory, ColLink, ColASIN},
		[]string{"  Apple iPhone 13 ", "A2633", "Blue", "Phone", "", ""},
		[]string{"Pixel 8", "G9BQD", "", "Phone", "", ""},
		[]string{"Galaxy S23", "SM-S911B", "Green", "Phone", "not a url", ""},
		[]string{"OnePlus 12", "CPH2573", "Black", "Phone", "", "B0CQPHZ6Y4"},
	)

	queries, invalid, err := ReadQueries(path)
	require.NoError(t, err)
	require.Len(t, queries, 2)
	assert.Equal(t, "Apple iPhone 13", queries[0].Name)
	assert.Equal(t, "Apple iPhone 13 A2633 Blue", queries[0].SearchText())
	assert.Equal(t, 2, queries[0].Row)
	assert.Equal(t, "B0CQPHZ6Y4", queries[1].SiteSpecificID)
	assert.True(t, queries[1].HasDirectLookup())

	require.Len(t, invalid, 2)
	assert.Equal(t, 3, invalid[0].Row)
	assert.Equal(t, ColColor, invalid[0].Column)
	assert.Equal(t, ColLink, invalid[1].Column)
	assert.Contains(t, invalid[0].Error(), "row 3")
}

func TestReadQueriesMissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.xlsx")
	writeInput(t, path, []string{ColProductName, ColModelName}, []string{"Pixel 8", "G9BQD"})

	_, _, err := ReadQueries(path)
	require.ErrorIs(t, err, ErrMissingColumns)
	assert.Contains(t, err.Error(), ColColor)
	assert.Contains(t, err.Error(), ColCategory)
}

func TestResolveInputPicksNewestSpreadsheet(t *testing.T) {
	dir := t.TempDir()
	older := time.Now().Add(-2 * time.Hour)
	newer := time.Now().Add(-time.Hour)

	oldPath := filepath.Join(dir, "old.xlsx")
	writeInput(t, oldPath,
		[]string{ColProductName, ColModelName, ColColor, ColCategory},
		[]string{"Pixel 7", "GVU6C", "Snow", "Phone"})
	newPath := filepath.Join(dir, "new.xlsx")
	writeInput(t, newPath,
		[]string{ColProductName, ColModelName, ColColor, ColCategory},
		[]string{"Pixel 8", "G9BQD", "Obsidian", "Phone"})
	require.NoError(t, os.Chtimes(oldPath, older, older))
	require.NoError(t, os.Chtimes(newPath, newer, newer))

	// Legacy binary workbooks and lock files are passed over even when newer.
	for _, name := range []string{"notes.txt", "legacy.xls", "~$lock.xlsx"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	got, err := ResolveInput(dir)
	require.NoError(t, err)
	assert.Equal(t, "new.xlsx", filepath.Base(got))

	queries, invalid, err := ReadQueries(got)
	require.NoError(t, err)
	assert.Empty(t, invalid)
	require.Len(t, queries, 1)
	assert.Equal(t, "Pixel 8", queries[0].Name)

	got, err = ResolveInput(oldPath)
	require.NoError(t, err)
	assert.Equal(t, oldPath, got)

	_, err = ResolveInput(filepath.Join(dir, "legacy.xls"))
	assert.ErrorIs(t, err, ErrUnsupportedInput)

	_, err = FindLatestInput(t.TempDir())
	assert.ErrorIs(t, err, ErrNoInputFile)
}

func TestParseList(t *testing.T) {
	tests := []struct {
		name  string
		cell  string
		form  ListForm
		items []string
	}{
		{"empty", "  ", ListEmpty, nil},
		{"empty brackets", "[]", ListEmpty, nil},
		{"json", `["https://a.test/1.jpg", "https://a.test/2.jpg"]`, ListJSON, []string{"https://a.test/1.jpg", "https://a.test/2.jpg"}},
		{"single quoted", `['https://a.test/1.jpg', 'https://a.test/2.jpg']`, ListQuoted, []string{"https://a.test/1.jpg", "https://a.test/2.jpg"}},
		{"semicolons", "https://a.test/1.jpg; https://a.test/2.jpg", ListDelimited, []string{"https://a.test/1.jpg", "https://a.test/2.jpg"}},
		{"commas", "a.jpg,b.jpg,", ListDelimited, []string{"a.jpg", "b.jpg"}},
		{"bare bracketed", "[a.jpg, b.jpg]", ListDelimited, []string{"a.jpg", "b.jpg"}},
		{"single", "https://a.test/1.jpg", ListSingle, []string{"https://a.test/1.jpg"}},
		{"code is text", `__import__('os').system('echo')`, ListSingle, []string{`__import__('os').system('echo')`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseList(tt.cell)
			assert.Equal(t, tt.form, got.Form)
			assert.Equal(t, tt.items, got.Items)
		})
	}
}

func TestSafeSheetName(t *testing.T) {
	assert.Equal(t, "Flipkart Phone-Tablet Details", SafeSheetName("Flipkart Phone/Tablet Details"))
	assert.Equal(t, "Sheet", SafeSheetName("  "))
	assert.Len(t, []rune(SafeSheetName(strings.Repeat("x", 40))), maxSheetName)
}

func resolvedOutcome(name, stage string, sources ...models.SiteID) models.Outcome {
	q := models.ProductQuery{Name: name, Model: "M1", Color: "Black", Category: "phone", Row: 2}
	rec := models.NewProductRecord(q)
	rec.Attributes = map[string]string{"Product Name": name + " (Black, 128 GB)", "RAM": "8 GB", "Battery Capacity": "5000 mAh"}
	rec.AddImages("https://img.test/1.jpg", "https://img.test/2.jpg")
	for _, s := range sources {
		rec.AddSource(s)
	}
	return models.Resolved(q, rec, stage)
}

func TestSourceLabel(t *testing.T) {
	assert.Equal(t, "Flipkart", SourceLabel(resolvedOutcome("a", "flipkart", models.SiteFlipkart, models.SiteTechSpec)))
	assert.Equal(t, "Amazon", SourceLabel(resolvedOutcome("a", "amazon", models.SiteAmazon, models.SiteTechSpec)))
	assert.Equal(t, "91mobiles", SourceLabel(resolvedOutcome("a", "direct", models.SiteTechSpec)))

	cached := resolvedOutcome("a", "catalog", models.SiteFlipkart)
	cached.Cached = true
	assert.Equal(t, "Catalog", SourceLabel(cached))
}

func TestWriteRunAndEscalationAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output.xlsx")

	flip := resolvedOutcome("Pixel 8", "flipkart", models.SiteFlipkart)
	flip.Record.Offers = []models.Offer{{Vendor: "Croma", Price: decimal.RequireFromString("52999")}}
	queued := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	deferred := []models.DeferredItem{{
		Query:    models.ProductQuery{Name: "Nothing Phone 2", Model: "A065", Color: "White", Category: "phone"},
		Reason:   "no flipkart match",
		Kind:     models.OutcomeNotFound,
		Attempts: 1,
		QueuedAt: queued,
	}}
	require.NoError(t, WriteRun(path, []models.Outcome{flip}, deferred))

	details, err := ReadSheet(path, "Flipkart Phone Details")
	require.NoError(t, err)
	require.Len(t, details.Rows, 1)
	assert.Equal(t, "Pixel 8 (Black, 128 GB)", details.Get(0, ColProductName))
	assert.Equal(t, "Pixel 8 M1 Black", details.Get(0, ColQueryName))
	assert.Equal(t, "8 GB", details.Get(0, "RAM"))
	assert.Equal(t, models.Unknown, details.Get(0, "Offer Price"))
	assert.Equal(t, "Croma", details.Get(0, "Vendor 1"))
	assert.Equal(t, "52999.00", details.Get(0, "Vendor 1 Price"))
	assert.Equal(t, []string{"https://img.test/1.jpg", "https://img.test/2.jpg"}, ParseList(details.Get(0, ColImages)).Items)
	assert.Less(t, details.Col(ColModelName), details.Col("Battery Capacity"))

	check, err := ReadSheet(path, CheckAgainSheet)
	require.NoError(t, err)
	items := DeferredFromTable(check)
	require.Len(t, items, 1)
	assert.Equal(t, "Nothing Phone 2", items[0].Query.Name)
	assert.Equal(t, models.OutcomeNotFound, items[0].Kind)
	assert.Equal(t, 1, items[0].Attempts)
	assert.True(t, queued.Equal(items[0].QueuedAt))

	// escalation pass adds its sheet and rewrites the deferred sheet
	amz := resolvedOutcome("Nothing Phone 2", "amazon", models.SiteAmazon, models.SiteTechSpec)
	require.NoError(t, WriteRun(path, []models.Outcome{amz}, nil))

	tables, err := ReadWorkbook(path)
	require.NoError(t, err)
	var names []string
	for _, tbl := range tables {
		names = append(names, tbl.Name)
	}
	assert.ElementsMatch(t, []string{"Flipkart Phone Details", "Amazon Phone Details", CheckAgainSheet}, names)

	check, err = ReadSheet(path, CheckAgainSheet)
	require.NoError(t, err)
	assert.Empty(t, check.Rows)

	images, err := ImagesOf(path)
	require.NoError(t, err)
	assert.Len(t, images["Pixel 8 (Black, 128 GB)"], 2)
	assert.Len(t, images["Nothing Phone 2 (Black, 128 GB)"], 2)
}

func TestMapImages(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "output.xlsx")

	details := NewTable("Flipkart Phone Details", ColProductName, "RAM")
	details.Rows = [][]string{
		{"Apple iPhone 13 (Blue, 128 GB)", "4 GB"},
		{"Samsung Galaxy S23", "8 GB"},
	}
	check := NewTable(CheckAgainSheet, ColProductName)
	check.Rows = [][]string{{"Apple iPhone 13 (Blue, 128 GB)"}}
	require.NoError(t, WriteWorkbook(path, details, check))

	links := []ImageLink{
		{FileName: "Apple iPhone 13 (Blue, 128 GB)_original_001_1664x1664_ab12cd34.webp", URL: "https://cdn.test/a1.webp"},
		{FileName: "Apple iPhone 13 (Blue, 128 GB)_original_002_unknown_ef56ab78.webp", URL: "https://cdn.test/a2.webp"},
		{FileName: "Apple iPhone 13 (Blue, 128 GB)_original_001_1664x1664_ab12cd34.jpg", URL: "https://cdn.test/a1.jpg"},
		{FileName: "Apple iPhone 13 (Blue, 128 GB)_original_001_1664x1664_ab12cd34.webp", URL: "https://cdn.test/a1.webp"},
		{FileName: "readme.txt", URL: "https://cdn.test/readme.txt"},
	}
	linksPath := filepath.Join(dir, "links.xlsx")
	require.NoError(t, WriteImageLinks(linksPath, links))
	read, err := ReadImageLinks(linksPath)
	require.NoError(t, err)
	require.Equal(t, links, read)

	res, err := MapImages(path, read)
	require.NoError(t, err)
	assert.Equal(t, MapResult{Matched: 1, Total: 2}, res)

	got, err := ReadSheet(path, "Flipkart Phone Details")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/a1.webp; https://cdn.test/a2.webp", got.Get(0, "webp"))
	assert.Equal(t, "https://cdn.test/a1.jpg", got.Get(0, "jpeg"))
	assert.Equal(t, "", got.Get(1, "webp"))

	skipped, err := ReadSheet(path, CheckAgainSheet)
	require.NoError(t, err)
	assert.Equal(t, -1, skipped.Col("webp"))
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "appleiphone13blue128gb", NormalizeName("Apple iPhone 13 (Blue, 128 GB)"))
	assert.Equal(t, "Pixel-8", productPart("out/Pixel-8_original_001_unknown_1a2b3c4d.png"))
	assert.Equal(t, "cover", productPart("cover.png"))
}

func TestMergeCategory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output.xlsx")

	flip := NewTable("Flipkart Phone Details", ColProductName, "Offer Price", "Memory", "webp")
	flip.Rows = [][]string{{"Pixel 8", "52999.00", "8 GB", "https://cdn.test/p.webp"}}
	amz := NewTable("Amazon Phone Details", ColProductName, "RAM", "Weight", "Colour(s)")
	amz.Rows = [][]string{
		{"Google Pixel 8", "12 GB", "187 g", "Obsidian"},
		{"Galaxy S23", "8 GB", "168 g", "Green"},
	}
	laptop := NewTable("Flipkart Laptop Details", ColProductName, "RAM")
	laptop.Rows = [][]string{{"ThinkPad X1", "16 GB"}}
	require.NoError(t, WriteWorkbook(path, flip, amz, laptop))

	merged, err := MergeCategory(path, "phone", nil)
	require.NoError(t, err)
	require.Len(t, merged.Rows, 2)
	assert.Equal(t, "Merged Phone Details", merged.Name)
	assert.Equal(t, "Pixel 8", merged.Get(0, ColProductName))
	assert.Equal(t, "8 GB", merged.Get(0, "RAM"), "earlier sheet wins")
	assert.Equal(t, "187 g", merged.Get(0, "Weight"), "gaps filled from later sheets")
	assert.Equal(t, "Obsidian", merged.Get(0, "Colors"))
	assert.Equal(t, "https://cdn.test/p.webp", merged.Get(0, "webp"))
	assert.Equal(t, "Galaxy S23", merged.Get(1, ColProductName))

	stored, err := ReadSheet(path, "Merged Phone Details")
	require.NoError(t, err)
	assert.Len(t, stored.Rows, 2)

	_, err = MergeCategory(path, " ", nil)
	assert.Error(t, err)
}
