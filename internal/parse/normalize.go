package parse

import (
	"regexp"
	"strings"

	"golang.org/x/text/width"
)

var reBlankRun = regexp.MustCompile(`[ \t]{2,}`)

// NormalizeText folds full-width digits/latin to half-width, unifies
// line endings, and collapses runs of whitespace so the pattern
// families see a predictable shape regardless of OCR quirks.
func NormalizeText(s string) string {
	s = width.Fold.String(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, ln := range lines {
		ln = strings.TrimSpace(reBlankRun.ReplaceAllString(ln, " "))
		out = append(out, ln)
	}
	return strings.Join(out, "\n")
}

// splitLines returns the non-empty lines of already-normalized text.
func splitLines(s string) []string {
	var out []string
	for _, ln := range strings.Split(s, "\n") {
		if strings.TrimSpace(ln) != "" {
			out = append(out, ln)
		}
	}
	return out
}
