package sheet

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/maltedev/catalog-scraper/internal/models"
)

// Input columns.
const (
	ColProductName = "Product Name"
	ColModelName   = "Model Name"
	ColColor       = "Color"
	ColCategory    = "Category"
	ColLink        = "Link"
	ColTechLink    = "91 Link"
	ColASIN        = "Asin"
)

var RequiredColumns = []string{ColProductName, ColModelName, ColColor, ColCategory}

var (
	ErrMissingColumns = errors.New("input is missing required columns")
	ErrNoInputFile    = errors.New("no spreadsheet found")
	ErrEmptyInput     = errors.New("input has no rows")
)

// ErrUnsupportedInput is returned for legacy binary .xls workbooks, which
// excelize cannot open. Save them as .xlsx first.
var ErrUnsupportedInput = errors.New("unsupported spreadsheet format")

var readableExts = map[string]bool{".xlsx": true, ".xlsm": true}

func readable(name string) bool {
	return readableExts[strings.ToLower(filepath.Ext(name))]
}

// ValidationError reports a malformed input row. The row is skipped.
type ValidationError struct {
	Row    int
	Column string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("row %d: %s: %s", e.Row, e.Column, e.Reason)
}

// FindLatestInput returns the most recently modified .xlsx or .xlsm file in
// dir. Legacy .xls files are passed over.
func FindLatestInput(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read input directory: %w", err)
	}

	var latest string
	var latestMod time.Time
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), "~$") {
			continue
		}
		if !readable(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if latest == "" || info.ModTime().After(latestMod) {
			latest, latestMod = filepath.Join(dir, e.Name()), info.ModTime()
		}
	}
	if latest == "" {
		return "", fmt.Errorf("%w in %s", ErrNoInputFile, dir)
	}
	return latest, nil
}

// ResolveInput accepts a spreadsheet path or a directory to search.
func ResolveInput(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat input: %w", err)
	}
	if info.IsDir() {
		return FindLatestInput(path)
	}
	if !readable(path) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedInput, path)
	}
	return path, nil
}

// ReadQueries loads product queries from the first sheet of the workbook at
// path. Rows with a missing required value are returned as validation errors
// and left out of the queries; a missing required column fails the whole read.
func ReadQueries(path string) ([]models.ProductQuery, []*ValidationError, error) {
	tables, err := ReadWorkbook(path)
	if err != nil {
		return nil, nil, err
	}
	if len(tables) == 0 || len(tables[0].Rows) == 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrEmptyInput, path)
	}
	return QueriesFromTable(tables[0])
}

func QueriesFromTable(t *Table) ([]models.ProductQuery, []*ValidationError, error) {
	var missing []string
	for _, col := range RequiredColumns {
		if t.Col(col) < 0 {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	var queries []models.ProductQuery
	var invalid []*ValidationError
	for i := range t.Rows {
		// spreadsheet row number: header is row 1
		rowNum := i + 2

		var bad *ValidationError
		for _, col := range RequiredColumns {
			if t.Get(i, col) == "" {
				bad = &ValidationError{Row: rowNum, Column: col, Reason: "value is required"}
				break
			}
		}
		if bad != nil {
			invalid = append(invalid, bad)
			continue
		}

		link := t.Get(i, ColLink)
		if link != "" && !strings.HasPrefix(strings.ToLower(link), "http") {
			invalid = append(invalid, &ValidationError{Row: rowNum, Column: ColLink, Reason: "not an http(s) URL"})
			continue
		}

		queries = append(queries, models.ProductQuery{
			Name:           collapse(t.Get(i, ColProductName)),
			Model:          collapse(t.Get(i, ColModelName)),
			Color:          collapse(t.Get(i, ColColor)),
			Category:       collapse(t.Get(i, ColCategory)),
			DirectLink:     link,
			TechSpecLink:   t.Get(i, ColTechLink),
			SiteSpecificID: t.Get(i, ColASIN),
			Row:            rowNum,
		})
	}
	return queries, invalid, nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
