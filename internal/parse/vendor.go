package parse

import (
	"regexp"
	"strings"
	"unicode"
)

// UnknownVendor is returned when no plausible vendor line exists; the
// extractor degrades rather than raising.
const UnknownVendor = "unknown"

// vendorScanLimit bounds how far down the receipt we look for the
// vendor name; it sits in the header on real receipts.
const vendorScanLimit = 8

var (
	rePhone  = regexp.MustCompile(`(TEL|Tel|電話)|\d{2,4}-\d{2,4}-\d{3,4}`)
	rePostal = regexp.MustCompile(`〒|\d{3}-\d{4}\s`)
	reURLish = regexp.MustCompile(`https?://|www\.|@`)
)

var headerNoise = []string{
	"領収書", "領収証", "レシート", "receipt", "invoice", "明細",
	"お客様控", "控え", "ありがとうございま",
}

// ExtractVendor picks the vendor name from the receipt header: the
// first early line that is not a date, phone number, address, amount,
// or boilerplate. Returns UnknownVendor when nothing qualifies.
func ExtractVendor(text string) string {
	lines := splitLines(text)
	limit := vendorScanLimit
	if len(lines) < limit {
		limit = len(lines)
	}

	for _, ln := range lines[:limit] {
		if !plausibleVendorLine(ln) {
			continue
		}
		return strings.TrimSpace(ln)
	}
	return UnknownVendor
}

func plausibleVendorLine(ln string) bool {
	lower := strings.ToLower(ln)
	for _, noise := range headerNoise {
		if strings.Contains(lower, noise) {
			return false
		}
	}
	if rePhone.MatchString(ln) || rePostal.MatchString(ln) || reURLish.MatchString(ln) {
		return false
	}
	if ExtractDate(ln) != nil {
		return false
	}
	// reject lines that are only digits/punctuation (amounts, separators)
	hasLetter := false
	for _, r := range ln {
		if unicode.IsLetter(r) {
			hasLetter = true
			break
		}
	}
	if !hasLetter {
		return false
	}
	// a lone amount with a currency mark is a value row, not a name
	if reAmount.MatchString(ln) && len([]rune(ln)) < 12 && strings.ContainsAny(ln, "¥￥$") {
		return false
	}
	return true
}
