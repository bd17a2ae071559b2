package sheet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/maltedev/catalog-scraper/internal/merge"
)

var imageColumns = []string{"webp", "jpeg", "png"}

// MergedSheetName returns e.g. "Merged Phone Details".
func MergedSheetName(category string) string {
	return SafeSheetName(fmt.Sprintf("Merged %s Details", titleCase(category)))
}

// MergeCategory combines every details sheet whose name contains category
// into one merged sheet with canonical columns. Rows naming the same product
// are folded together: an exact normalized-name match first, then a
// containment match, and the earlier sheet wins each field.
func MergeCategory(workbook, category string, table *merge.Table) (*Table, error) {
	if strings.TrimSpace(category) == "" {
		return nil, errors.New("category is required")
	}
	if table == nil {
		table = merge.DefaultTable()
	}

	tables, err := ReadWorkbook(workbook)
	if err != nil {
		return nil, err
	}

	out := NewTable(MergedSheetName(category), mergedColumns(table)...)
	var names []string
	needle := strings.ToLower(category)
	for _, t := range tables {
		lower := strings.ToLower(t.Name)
		if t.Name == CheckAgainSheet || t.Name == out.Name || !strings.Contains(lower, needle) {
			continue
		}
		for i := range t.Rows {
			attrs := table.Canonicalize(t.Record(i))
			for _, col := range imageColumns {
				if v := t.Get(i, col); v != "" {
					attrs[col] = v
				}
			}
			name := NormalizeName(attrs[ColProductName])
			if name == "" {
				continue
			}

			row := findRow(names, name)
			if row < 0 {
				out.Rows = append(out.Rows, make([]string, len(out.Headers)))
				names = append(names, name)
				row = len(out.Rows) - 1
			}
			for _, h := range out.Headers {
				if v, ok := attrs[h]; ok && merge.Empty(out.Get(row, h)) {
					out.Set(row, h, v)
				}
			}
		}
	}

	if err := WriteWorkbook(workbook, out); err != nil {
		return nil, err
	}
	return out, nil
}

func mergedColumns(table *merge.Table) []string {
	seen := make(map[string]struct{})
	var cols []string
	add := func(c string) {
		if _, ok := seen[c]; !ok {
			seen[c] = struct{}{}
			cols = append(cols, c)
		}
	}
	for _, c := range merge.DirectColumns {
		add(c)
	}
	for _, c := range table.SynonymOutputs() {
		add(c)
	}
	for _, c := range imageColumns {
		add(c)
	}
	return cols
}

func findRow(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	for i, n := range names {
		if strings.Contains(n, name) || strings.Contains(name, n) {
			return i
		}
	}
	return -1
}
