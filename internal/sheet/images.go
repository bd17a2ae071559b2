package sheet

import (
	"path"
	"regexp"
	"sort"
	"strings"
)

const imageLinksSheet = "Image Links"

// Image link columns.
const (
	ColFileName = "File Name"
	ColURL      = "URL"
)

// ImageLink is one uploaded image and its public URL.
type ImageLink struct {
	FileName string
	URL      string
}

func WriteImageLinks(workbook string, links []ImageLink) error {
	cols := []string{ColFileName, ColURL}
	t := NewTable(imageLinksSheet, cols...)
	for _, l := range links {
		t.AddRow(cols, map[string]string{ColFileName: l.FileName, ColURL: l.URL})
	}
	return WriteWorkbook(workbook, t)
}

func ReadImageLinks(workbook string) ([]ImageLink, error) {
	tables, err := ReadWorkbook(workbook)
	if err != nil {
		return nil, err
	}
	var links []ImageLink
	for _, t := range tables {
		if t.Col(ColFileName) < 0 || t.Col(ColURL) < 0 {
			continue
		}
		for i := range t.Rows {
			name, url := t.Get(i, ColFileName), t.Get(i, ColURL)
			if name != "" && url != "" {
				links = append(links, ImageLink{FileName: name, URL: url})
			}
		}
	}
	return links, nil
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]`)

// NormalizeName lower-cases s and drops everything but letters and digits.
func NormalizeName(s string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(s), "")
}

// productPart returns the product portion of a generated image file name.
func productPart(fileName string) string {
	base := path.Base(fileName)
	if i := strings.Index(base, "_original"); i >= 0 {
		return base[:i]
	}
	return strings.TrimSuffix(base, path.Ext(base))
}

// formatColumn maps a file extension to its output column.
func formatColumn(fileName string) string {
	switch strings.ToLower(path.Ext(fileName)) {
	case ".webp":
		return "webp"
	case ".jpg", ".jpeg":
		return "jpeg"
	case ".png":
		return "png"
	}
	return ""
}

// MapResult counts the rows that received at least one image URL.
type MapResult struct {
	Matched int
	Total   int
}

// MapImages writes uploaded image URLs onto every details sheet of the
// workbook. A link belongs to a row when the normalized product part
// of its file name and the normalized "Product Name" contain one another.
// URLs land in "webp", "jpeg" and "png" columns joined by "; ".
func MapImages(workbook string, links []ImageLink) (MapResult, error) {
	var res MapResult
	tables, err := ReadWorkbook(workbook)
	if err != nil {
		return res, err
	}

	type keyed struct {
		key    string
		column string
		url    string
	}
	var ks []keyed
	for _, l := range links {
		col := formatColumn(l.FileName)
		key := NormalizeName(productPart(l.FileName))
		if col == "" || key == "" {
			continue
		}
		ks = append(ks, keyed{key: key, column: col, url: l.URL})
	}

	var changed []*Table
	for _, t := range tables {
		if t.Name == CheckAgainSheet || t.Col(ColProductName) < 0 {
			continue
		}
		for _, col := range imageColumns {
			t.column(col)
		}
		for i := range t.Rows {
			res.Total++
			name := NormalizeName(t.Get(i, ColProductName))
			if name == "" {
				continue
			}
			urls := make(map[string][]string)
			for _, k := range ks {
				if strings.Contains(name, k.key) || strings.Contains(k.key, name) {
					urls[k.column] = append(urls[k.column], k.url)
				}
			}
			if len(urls) == 0 {
				continue
			}
			res.Matched++
			for col, list := range urls {
				t.Set(i, col, strings.Join(dedupe(list), "; "))
			}
		}
		changed = append(changed, t)
	}

	if len(changed) == 0 {
		return res, nil
	}
	return res, WriteWorkbook(workbook, changed...)
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := items[:0]
	for _, it := range items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	sort.Strings(out)
	return out
}
