package merge

import (
	"sort"
	"strings"

	"github.com/maltedev/catalog-scraper/internal/models"
)

// Role decides which source wins a key collision.
type Role int

const (
	// RoleMarketplace sources win commerce attributes (price, link, meta).
	RoleMarketplace Role = iota
	// RoleSpec sources win technical attributes (RAM, camera, display).
	RoleSpec
	// RoleExisting is a previously stored record. It only fills gaps.
	RoleExisting

	roleAnyLive Role = -1
)

func (r Role) String() string {
	switch r {
	case RoleMarketplace:
		return "marketplace"
	case RoleSpec:
		return "spec"
	case RoleExisting:
		return "existing"
	default:
		return "unknown"
	}
}

// Synonym maps raw header variants, in priority order, to one canonical key.
type Synonym struct {
	Variants  []string
	Canonical string
}

var DefaultSynonyms = []Synonym{
	{Variants: []string{"RAM", "Memory"}, Canonical: "RAM"},
	{Variants: []string{"Processor", "Processor Type"}, Canonical: "Processor"},
	{Variants: []string{"Rear Camera", "Primary Camera"}, Canonical: "Primary Camera"},
	{Variants: []string{"Front Camera", "Secondary Camera"}, Canonical: "Secondary Camera"},
	{Variants: []string{"Battery", "Battery Capacity"}, Canonical: "Battery Capacity"},
	{Variants: []string{"Display", "Display Size"}, Canonical: "Display Size"},
	{Variants: []string{"CPU", "Processor Core"}, Canonical: "Processor Core"},
	{Variants: []string{"Graphics", "GPU"}, Canonical: "GPU"},
	{Variants: []string{"Display Type", "Resolution Type"}, Canonical: "Resolution"},
	{Variants: []string{"Thickness", "Depth"}, Canonical: "Thickness"},
	{Variants: []string{"Color", "Colour(s)"}, Canonical: "Colors"},
	{Variants: []string{"Video Recording", "Video Recording Resolution"}, Canonical: "Video Recording Features"},
	{Variants: []string{"Internal Memory", "Internal Storage"}, Canonical: "Internal Storage"},
	{Variants: []string{"Network Support", "Supported Networks"}, Canonical: "Supported Networks"},
	{Variants: []string{"Wi-Fi", "Wi-Fi Version"}, Canonical: "Wi-Fi Version"},
	{Variants: []string{"Bluetooth", "Bluetooth Version"}, Canonical: "Bluetooth Version"},
	{Variants: []string{"GPS", "GPS Support"}, Canonical: "GPS"},
	{Variants: []string{"Other Sensors", "Sensors"}, Canonical: "Sensors"},
}

// DirectColumns are copied as-is into merged category sheets, ahead of the
// synonym outputs.
var DirectColumns = []string{
	"Product Name", "Offer Price", "MRP", "Description", "Meta Title", "Meta Keywords",
	"Meta Description", "Unique", "Link", "RAM", "Operating System", "Resolution", "Height", "Width",
	"Weight", "Primary Camera Features", "Secondary Camera Features",
}

var commerceKeys = []string{
	"Product Name", "Offer Price", "MRP", "Price", "Link", "Description",
	"Meta Title", "Meta Keywords", "Meta Description", "Unique",
}

var technicalKeys = []string{
	"Model Name", "Operating System", "Height", "Width", "Weight",
	"Primary Camera Features", "Secondary Camera Features",
}

type variant struct {
	canonical string
	rank      int
}

// Table resolves raw keys to canonical keys and applies precedence.
type Table struct {
	variants  map[string]variant
	commerce  map[string]struct{}
	technical map[string]struct{}
	outputs   []string
}

func NewTable(synonyms []Synonym, commerce, technical []string) *Table {
	t := &Table{
		variants:  make(map[string]variant),
		commerce:  make(map[string]struct{}),
		technical: make(map[string]struct{}),
	}
	for _, s := range synonyms {
		for i, v := range s.Variants {
			t.variants[foldKey(v)] = variant{canonical: s.Canonical, rank: i}
		}
		t.technical[s.Canonical] = struct{}{}
		t.outputs = append(t.outputs, s.Canonical)
	}
	for _, k := range commerce {
		t.commerce[k] = struct{}{}
	}
	for _, k := range technical {
		t.technical[k] = struct{}{}
	}
	return t
}

func DefaultTable() *Table {
	return NewTable(DefaultSynonyms, commerceKeys, technicalKeys)
}

// SynonymOutputs lists the canonical keys produced by the synonym table, in table order.
func (t *Table) SynonymOutputs() []string {
	return append([]string(nil), t.outputs...)
}

func foldKey(k string) string {
	return strings.ToLower(strings.Join(strings.Fields(k), " "))
}

// Empty reports whether v carries no information.
func Empty(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || v == models.Unknown || strings.EqualFold(v, "NA")
}

// Canonical returns the canonical name of a raw key.
func (t *Table) Canonical(key string) string {
	c, _ := t.lookup(key)
	return c
}

func (t *Table) lookup(key string) (string, int) {
	if v, ok := t.variants[foldKey(key)]; ok {
		return v.canonical, v.rank
	}
	return strings.Join(strings.Fields(key), " "), 0
}

// Canonicalize renames raw keys within one source. When several variants of a
// key carry values, the higher-priority variant wins. Empty values are dropped.
func (t *Table) Canonicalize(attrs map[string]string) map[string]string {
	type pick struct {
		raw   string
		rank  int
		value string
	}
	best := make(map[string]pick, len(attrs))

	for raw, value := range attrs {
		if Empty(value) {
			continue
		}
		canonical, rank := t.lookup(raw)
		if canonical == "" {
			continue
		}
		cur, ok := best[canonical]
		if !ok || rank < cur.rank || (rank == cur.rank && raw < cur.raw) {
			best[canonical] = pick{raw: raw, rank: rank, value: strings.TrimSpace(value)}
		}
	}

	out := make(map[string]string, len(best))
	for k, p := range best {
		out[k] = p.value
	}
	return out
}

// Source is one adapter's contribution to a record.
type Source struct {
	Site       models.SiteID
	Role       Role
	Attributes map[string]string
	Images     []string
}

// FromDetails builds a Source from extracted page details.
func FromDetails(d *models.ProductDetails, role Role) Source {
	return Source{
		Site:       d.Source,
		Role:       role,
		Attributes: d.Attributes(),
		Images:     d.Images,
	}
}

// Merge combines sources into one attribute map. Commerce keys prefer
// marketplace sources, technical keys prefer spec sources, and any other key
// takes the first non-empty value in argument order. Existing-record values
// are used only when no live source has the key.
func (t *Table) Merge(sources ...Source) map[string]string {
	canon := make([]map[string]string, len(sources))
	keys := make(map[string]struct{})
	for i, s := range sources {
		canon[i] = t.Canonicalize(s.Attributes)
		for k := range canon[i] {
			keys[k] = struct{}{}
		}
	}

	out := make(map[string]string, len(keys))
	for key := range keys {
		order := t.roleOrder(key)
		for _, role := range order {
			if v, ok := firstFor(sources, canon, key, role); ok {
				out[key] = v
				break
			}
		}
	}
	return out
}

func (t *Table) roleOrder(key string) []Role {
	if _, ok := t.commerce[key]; ok {
		return []Role{RoleMarketplace, RoleSpec, RoleExisting}
	}
	if _, ok := t.technical[key]; ok {
		return []Role{RoleSpec, RoleMarketplace, RoleExisting}
	}
	return []Role{roleAnyLive, RoleExisting}
}

func firstFor(sources []Source, canon []map[string]string, key string, role Role) (string, bool) {
	for i, s := range sources {
		if role == roleAnyLive {
			if s.Role == RoleExisting {
				continue
			}
		} else if s.Role != role {
			continue
		}
		if v, ok := canon[i][key]; ok {
			return v, true
		}
	}
	return "", false
}

// Apply merges sources into rec. The record's current attributes join as the
// lowest-priority source, so re-scrapes refresh values without losing fields.
func (t *Table) Apply(rec *models.ProductRecord, sources ...Source) {
	all := make([]Source, 0, len(sources)+1)
	all = append(all, sources...)
	if len(rec.Attributes) > 0 {
		all = append(all, Source{Role: RoleExisting, Attributes: rec.Attributes})
	}

	rec.Attributes = t.Merge(all...)
	for _, s := range sources {
		rec.AddImages(s.Images...)
		if s.Site != "" && s.Role != RoleExisting {
			rec.AddSource(s.Site)
		}
	}
}

// SortedKeys returns the keys of attrs in a stable order for output.
func SortedKeys(attrs map[string]string) []string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
