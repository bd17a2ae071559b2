package sheet

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
)

// maxSheetName is the longest sheet name Excel accepts.
const maxSheetName = 31

// maxCellLength is the longest text Excel stores in one cell.
const maxCellLength = 32767

// Table is one worksheet held as a header row plus string rows.
type Table struct {
	Name    string
	Headers []string
	Rows    [][]string
	index   map[string]int
}

func NewTable(name string, headers ...string) *Table {
	t := &Table{Name: name}
	for _, h := range headers {
		t.column(h)
	}
	return t
}

// Col returns the index of header, or -1.
func (t *Table) Col(header string) int {
	t.reindex()
	if i, ok := t.index[header]; ok {
		return i
	}
	return -1
}

func (t *Table) reindex() {
	if t.index != nil && len(t.index) == len(t.Headers) {
		return
	}
	t.index = make(map[string]int, len(t.Headers))
	for i, h := range t.Headers {
		if _, dup := t.index[h]; !dup {
			t.index[h] = i
		}
	}
}

// column returns the index of header, appending it when missing.
func (t *Table) column(header string) int {
	if i := t.Col(header); i >= 0 {
		return i
	}
	t.Headers = append(t.Headers, header)
	t.index[header] = len(t.Headers) - 1
	return len(t.Headers) - 1
}

// Get returns the trimmed cell at row and header, or "".
func (t *Table) Get(row int, header string) string {
	c := t.Col(header)
	if c < 0 || row < 0 || row >= len(t.Rows) || c >= len(t.Rows[row]) {
		return ""
	}
	return strings.TrimSpace(t.Rows[row][c])
}

func (t *Table) Set(row int, header, value string) {
	c := t.column(header)
	for len(t.Rows[row]) <= c {
		t.Rows[row] = append(t.Rows[row], "")
	}
	t.Rows[row][c] = value
}

// AddRow appends a row, creating headers for keys not seen yet in the order given.
func (t *Table) AddRow(keys []string, values map[string]string) {
	t.Rows = append(t.Rows, make([]string, len(t.Headers)))
	row := len(t.Rows) - 1
	for _, k := range keys {
		t.Set(row, k, values[k])
	}
}

// Record returns row as a header-keyed map, skipping empty cells.
func (t *Table) Record(row int) map[string]string {
	out := make(map[string]string, len(t.Headers))
	for _, h := range t.Headers {
		if v := t.Get(row, h); v != "" {
			out[h] = v
		}
	}
	return out
}

// SafeSheetName strips characters Excel rejects and truncates to 31 characters.
func SafeSheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '-'
		}
		return r
	}, strings.TrimSpace(name))
	name = strings.Trim(name, "'")
	if name == "" {
		name = "Sheet"
	}
	if r := []rune(name); len(r) > maxSheetName {
		name = strings.TrimSpace(string(r[:maxSheetName]))
	}
	return name
}

// ReadWorkbook loads every sheet of the workbook at path, in sheet order.
func ReadWorkbook(path string) ([]*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()

	var tables []*Table
	for _, name := range f.GetSheetList() {
		t, err := readSheet(f, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, nil
}

// ReadSheet loads one sheet by name.
func ReadSheet(path, name string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()
	return readSheet(f, name)
}

func readSheet(f *excelize.File, name string) (*Table, error) {
	rows, err := f.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", name, err)
	}

	t := &Table{Name: name}
	if len(rows) == 0 {
		return t, nil
	}
	for _, h := range rows[0] {
		t.Headers = append(t.Headers, strings.TrimSpace(h))
	}
	for _, r := range rows[1:] {
		if blank(r) {
			continue
		}
		row := make([]string, len(t.Headers))
		copy(row, r)
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// WriteWorkbook writes tables to path, replacing any sheets of the same name
// in an existing workbook and keeping the others.
func WriteWorkbook(path string, tables ...*Table) error {
	f, err := openOrCreate(path)
	if err != nil {
		return err
	}
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for _, t := range tables {
		if err := writeSheet(f, t, header); err != nil {
			return err
		}
	}

	// a fresh workbook starts with an empty default sheet
	if len(f.GetSheetList()) > 1 {
		if idx, err := f.GetSheetIndex("Sheet1"); err == nil && idx >= 0 && !hasTable(tables, "Sheet1") {
			if rows, _ := f.GetRows("Sheet1"); len(rows) == 0 {
				if err := f.DeleteSheet("Sheet1"); err != nil {
					return fmt.Errorf("failed to remove default sheet: %w", err)
				}
			}
		}
	}
	f.SetActiveSheet(0)

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return nil
}

func hasTable(tables []*Table, name string) bool {
	for _, t := range tables {
		if SafeSheetName(t.Name) == name {
			return true
		}
	}
	return false
}

func openOrCreate(path string) (*excelize.File, error) {
	if _, err := os.Stat(path); err == nil {
		f, err := excelize.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
		}
		return f, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat workbook %s: %w", path, err)
	}
	return excelize.NewFile(), nil
}

func writeSheet(f *excelize.File, t *Table, headerStyle int) error {
	name := SafeSheetName(t.Name)
	if idx, err := f.GetSheetIndex(name); err == nil && idx >= 0 {
		// the last remaining sheet cannot be deleted, so swap in a scratch sheet first
		const scratch = "~replacing"
		if _, err := f.NewSheet(scratch); err != nil {
			return fmt.Errorf("failed to create sheet %q: %w", scratch, err)
		}
		if err := f.DeleteSheet(name); err != nil {
			return fmt.Errorf("failed to replace sheet %q: %w", name, err)
		}
		if err := f.SetSheetName(scratch, name); err != nil {
			return fmt.Errorf("failed to rename sheet %q: %w", name, err)
		}
	} else if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("failed to create sheet %q: %w", name, err)
	}

	if err := setRow(f, name, 1, t.Headers); err != nil {
		return err
	}
	if len(t.Headers) > 0 {
		if err := f.SetRowStyle(name, 1, 1, headerStyle); err != nil {
			return fmt.Errorf("failed to style header of %q: %w", name, err)
		}
	}
	for i, r := range t.Rows {
		if err := setRow(f, name, i+2, r); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		if r := []rune(v); len(r) > maxCellLength {
			v = string(r[:maxCellLength])
		}
		cells[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("failed to write row %d of %q: %w", row, sheet, err)
	}
	return nil
}
