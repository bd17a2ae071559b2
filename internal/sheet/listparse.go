package sheet

import (
	"encoding/json"
	"regexp"
	"strings"
)

// ListForm tells which shape ParseList recognized.
type ListForm int

const (
	ListEmpty ListForm = iota
	ListJSON
	ListQuoted
	ListDelimited
	ListSingle
)

// List is a parsed list-like cell.
type List struct {
	Form  ListForm
	Items []string
}

var quotedItem = regexp.MustCompile(`'([^']*)'|"([^"]*)"`)

// ParseList reads a cell holding a list of strings. Cells written by this
// module are JSON arrays; older sheets hold bracketed quoted lists or plain
// delimited text. The cell is never evaluated.
func ParseList(cell string) List {
	s := strings.TrimSpace(cell)
	if s == "" || s == "[]" || strings.EqualFold(s, "unknown") {
		return List{Form: ListEmpty}
	}

	var arr []string
	if err := json.Unmarshal([]byte(s), &arr); err == nil {
		return List{Form: ListJSON, Items: clean(arr)}
	}

	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		var items []string
		for _, m := range quotedItem.FindAllStringSubmatch(s, -1) {
			if m[1] != "" {
				items = append(items, m[1])
			} else {
				items = append(items, m[2])
			}
		}
		if items = clean(items); len(items) > 0 {
			return List{Form: ListQuoted, Items: items}
		}
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	for _, sep := range []string{";", ","} {
		if strings.Contains(s, sep) {
			if items := clean(strings.Split(s, sep)); len(items) > 0 {
				return List{Form: ListDelimited, Items: items}
			}
		}
	}

	if s == "" {
		return List{Form: ListEmpty}
	}
	return List{Form: ListSingle, Items: []string{s}}
}

func clean(items []string) []string {
	out := items[:0]
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
