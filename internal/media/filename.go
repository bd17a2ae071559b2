package media

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const maxProductPart = 50

var (
	squareToken = regexp.MustCompile(`(\d+)/(\d+)`)
	// Amazon size tokens such as _SL1500_, _SX679_ or _AC_UL320_
	sizeToken = regexp.MustCompile(`[._](?:AC_)?[SU][XYLS](\d+)[._]`)
)

// Resolution reads the size encoded in an image URL, e.g. "1664x1664", or
// returns "unknown".
func Resolution(rawURL string) string {
	for _, m := range squareToken.FindAllStringSubmatch(rawURL, -1) {
		if m[1] == m[2] {
			return m[1] + "x" + m[1]
		}
	}
	if m := sizeToken.FindStringSubmatch(rawURL); m != nil {
		return m[1] + "x" + m[1]
	}
	return "unknown"
}

// ProductDir turns a product name into a directory and file name prefix.
func ProductDir(name string) string {
	name = strings.NewReplacer("/", "-", `\`, "-").Replace(strings.TrimSpace(name))
	if r := []rune(name); len(r) > maxProductPart {
		name = string(r[:maxProductPart])
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = "product"
	}
	return name
}

// Extension returns the file extension of the URL path, ignoring the query.
func Extension(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	ext := strings.ToLower(path.Ext(p))
	if ext == "" || len(ext) > 5 {
		return ".jpg"
	}
	return ext
}

// FileName builds "<product>_original_<seq>_<resolution>_<id><ext>" for the
// seq-th image URL of a product. The id is random so reruns never collide.
func FileName(product string, seq int, rawURL string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_original_%03d_%s_%s%s", ProductDir(product), seq, Resolution(rawURL), id, Extension(rawURL))
}
