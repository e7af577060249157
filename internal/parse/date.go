package parse

import (
	"regexp"
	"strconv"
	"time"
)

// Date pattern families in priority order. Japanese receipt formats
// first, then ISO-ish numerics, then western layouts.
var (
	reDateJP   = regexp.MustCompile(`(\d{4})年\s*(\d{1,2})月\s*(\d{1,2})日`)
	reDateEra  = regexp.MustCompile(`(令和|平成|昭和|R|H|S)\.?\s*(\d{1,2})[年./](\d{1,2})[月/.](\d{1,2})日?`)
	reDateISO  = regexp.MustCompile(`(\d{4})[/\-.](\d{1,2})[/\-.](\d{1,2})`)
	reDateMDY  = regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{4})`)
	textualFmt = []string{"Jan 2, 2006", "January 2, 2006", "2 Jan 2006", "02 Jan 2006"}
)

// First year of each era, minus one so year 1 maps to the accession year.
var eraBase = map[string]int{
	"令和": 2018, "R": 2018,
	"平成": 1988, "H": 1988,
	"昭和": 1925, "S": 1925,
}

// ExtractDate finds the transaction date in normalized text. Returns
// nil when no pattern family matches; callers degrade gracefully.
func ExtractDate(text string) *time.Time {
	if m := reDateJP.FindStringSubmatch(text); m != nil {
		return makeDate(atoi(m[1]), atoi(m[2]), atoi(m[3]))
	}
	if m := reDateEra.FindStringSubmatch(text); m != nil {
		if base, ok := eraBase[m[1]]; ok {
			return makeDate(base+atoi(m[2]), atoi(m[3]), atoi(m[4]))
		}
	}
	if m := reDateISO.FindStringSubmatch(text); m != nil {
		return makeDate(atoi(m[1]), atoi(m[2]), atoi(m[3]))
	}
	if m := reDateMDY.FindStringSubmatch(text); m != nil {
		return makeDate(atoi(m[3]), atoi(m[1]), atoi(m[2]))
	}
	for _, ln := range splitLines(text) {
		for _, layout := range textualFmt {
			if t, err := time.Parse(layout, ln); err == nil {
				u := t.UTC()
				return &u
			}
		}
	}
	return nil
}

// ParseYMD parses a strict YYYY-MM-DD string as used by the structured
// extractor's output.
func ParseYMD(s string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

func makeDate(y, m, d int) *time.Time {
	if y < 1900 || y > 2100 || m < 1 || m > 12 || d < 1 || d > 31 {
		return nil
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	return &t
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
