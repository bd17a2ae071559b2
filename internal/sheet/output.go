package sheet

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/maltedev/catalog-scraper/internal/merge"
	"github.com/maltedev/catalog-scraper/internal/models"
)

// CheckAgainSheet holds queries that still need a pass or manual review.
const CheckAgainSheet = "To Be Checked Again"

// Output columns beyond the attribute set. "Query Name" is the search text.
const (
	ColQueryName   = "Query Name"
	ColImages      = "Images"
	ColSources     = "Sources"
	ColLastUpdated = "Last Updated"
	ColReason      = "Reason"
	ColStatus      = "Status"
	ColAttempts    = "Attempts"
	ColQueuedAt    = "Queued At"
)

var deferredColumns = []string{
	ColProductName, ColModelName, ColColor, ColCategory, ColLink, ColTechLink, ColASIN,
	ColReason, ColStatus, ColAttempts, ColQueuedAt,
}

// SourceLabel names the site a record's sheet is filed under.
func SourceLabel(o models.Outcome) string {
	if o.Cached || o.Record == nil {
		return "Catalog"
	}
	switch {
	case o.Stage == "amazon" || (o.Record.HasSource(models.SiteAmazon) && !o.Record.HasSource(models.SiteFlipkart)):
		return "Amazon"
	case o.Record.HasSource(models.SiteFlipkart):
		return "Flipkart"
	case o.Record.HasSource(models.SiteTechSpec):
		return "91mobiles"
	}
	return "Catalog"
}

// DetailsSheetName returns e.g. "Amazon Phone Details".
func DetailsSheetName(source, category string) string {
	category = strings.TrimSpace(category)
	if category == "" {
		category = "Uncategorized"
	}
	return SafeSheetName(fmt.Sprintf("%s %s Details", source, titleCase(category)))
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		words[i] = strings.ToUpper(string(r[0])) + string(r[1:])
	}
	return strings.Join(words, " ")
}

// RecordTables groups resolved outcomes into one table per source and
// category, sorted by sheet name.
func RecordTables(outcomes []models.Outcome) []*Table {
	byName := make(map[string]*Table)
	for _, o := range outcomes {
		if o.Kind != models.OutcomeResolved || o.Record == nil {
			continue
		}
		name := DetailsSheetName(SourceLabel(o), o.Record.Category)
		t, ok := byName[name]
		if !ok {
			t = NewTable(name)
			byName[name] = t
		}
		keys, values := recordRow(o.Query, o.Record)
		t.AddRow(keys, values)
	}

	names := make([]string, 0, len(byName))
	for n := range byName {
		names = append(names, n)
	}
	sort.Strings(names)
	tables := make([]*Table, len(names))
	for i, n := range names {
		tables[i] = byName[n]
	}
	return tables
}

func recordRow(q models.ProductQuery, rec *models.ProductRecord) ([]string, map[string]string) {
	values := make(map[string]string, len(rec.Attributes)+8)
	keys := []string{ColProductName, ColQueryName, ColModelName, ColColor, ColCategory}

	name := rec.Attributes[ColProductName]
	if merge.Empty(name) {
		name = rec.Identity.Name
	}
	values[ColProductName] = name
	values[ColQueryName] = q.SearchText()
	if values[ColQueryName] == "" {
		values[ColQueryName] = rec.Identity.String()
	}
	values[ColModelName] = rec.Identity.Model
	values[ColColor] = rec.Identity.Color
	values[ColCategory] = rec.Category

	taken := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		taken[k] = struct{}{}
	}
	for _, k := range merge.DirectColumns {
		if _, ok := taken[k]; ok {
			continue
		}
		taken[k] = struct{}{}
		keys = append(keys, k)
		values[k] = orUnknown(rec.Attributes[k])
	}

	rest := make([]string, 0, len(rec.Attributes))
	for k := range rec.Attributes {
		if _, ok := taken[k]; !ok {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		keys = append(keys, k)
		values[k] = rec.Attributes[k]
	}

	images, _ := json.Marshal(rec.Images)
	keys = append(keys, ColImages, ColSources)
	values[ColImages] = string(images)
	values[ColSources] = rec.SourceList()

	for i, off := range rec.Offers {
		vendor := fmt.Sprintf("Vendor %d", i+1)
		price := vendor + " Price"
		keys = append(keys, vendor, price)
		values[vendor] = off.Vendor
		values[price] = off.Price.StringFixed(2)
	}

	keys = append(keys, ColLastUpdated)
	values[ColLastUpdated] = rec.LastUpdated.UTC().Format(time.RFC3339)
	return keys, values
}

func orUnknown(v string) string {
	if strings.TrimSpace(v) == "" {
		return models.Unknown
	}
	return v
}

// DeferredTable renders deferred items as the "To Be Checked Again" sheet.
func DeferredTable(items []models.DeferredItem) *Table {
	t := NewTable(CheckAgainSheet, deferredColumns...)
	for _, it := range items {
		q := it.Query
		queued := ""
		if !it.QueuedAt.IsZero() {
			queued = it.QueuedAt.UTC().Format(time.RFC3339)
		}
		t.AddRow(deferredColumns, map[string]string{
			ColProductName: q.Name,
			ColModelName:   q.Model,
			ColColor:       q.Color,
			ColCategory:    q.Category,
			ColLink:        q.DirectLink,
			ColTechLink:    q.TechSpecLink,
			ColASIN:        q.SiteSpecificID,
			ColReason:      it.Reason,
			ColStatus:      string(it.Kind),
			ColAttempts:    strconv.Itoa(it.Attempts),
			ColQueuedAt:    queued,
		})
	}
	return t
}

// DeferredFromTable reads a "To Be Checked Again" sheet back into items.
func DeferredFromTable(t *Table) []models.DeferredItem {
	items := make([]models.DeferredItem, 0, len(t.Rows))
	for i := range t.Rows {
		attempts, _ := strconv.Atoi(t.Get(i, ColAttempts))
		queued, _ := time.Parse(time.RFC3339, t.Get(i, ColQueuedAt))
		kind := models.OutcomeKind(t.Get(i, ColStatus))
		if kind == "" {
			kind = models.OutcomeNeedsReview
		}
		items = append(items, models.DeferredItem{
			Query: models.ProductQuery{
				Name:           t.Get(i, ColProductName),
				Model:          t.Get(i, ColModelName),
				Color:          t.Get(i, ColColor),
				Category:       t.Get(i, ColCategory),
				DirectLink:     t.Get(i, ColLink),
				TechSpecLink:   t.Get(i, ColTechLink),
				SiteSpecificID: t.Get(i, ColASIN),
				Row:            i + 2,
			},
			Reason:   t.Get(i, ColReason),
			Kind:     kind,
			Attempts: attempts,
			QueuedAt: queued,
		})
	}
	return items
}

// WriteRun writes the resolved records and the deferred sheet of one pass to
// path. Sheets from earlier passes that this pass does not produce are kept,
// so an escalation pass appends its "Amazon ... Details" sheets.
func WriteRun(path string, outcomes []models.Outcome, deferred []models.DeferredItem) error {
	tables := RecordTables(outcomes)
	tables = append(tables, DeferredTable(deferred))
	return WriteWorkbook(path, tables...)
}

// ImagesOf reads every image URL listed in the details sheets of a workbook,
// keyed by product name.
func ImagesOf(path string) (map[string][]string, error) {
	tables, err := ReadWorkbook(path)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string)
	for _, t := range tables {
		if t.Name == CheckAgainSheet || t.Col(ColImages) < 0 {
			continue
		}
		for i := range t.Rows {
			name := t.Get(i, ColProductName)
			if name == "" {
				continue
			}
			out[name] = append(out[name], ParseList(t.Get(i, ColImages)).Items...)
		}
	}
	return out, nil
}
