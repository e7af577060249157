package parse

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Ordered keyword families: within a family, earlier keywords are more
// specific and win over later ones. Matching is done per line against
// lowercased, width-folded text.
var (
	totalKeywords = []string{
		"総合計", "お買上げ合計", "合計金額", "合計", "合 計", "領収金額",
		"grand total", "amount due", "total",
	}
	paymentKeywords = []string{
		"お預かり", "お預り", "預り", "お支払", "支払金額",
		"cash tendered", "tendered", "payment",
	}
	changeKeywords = []string{
		"お釣り", "おつり", "お釣", "釣銭", "釣り銭",
		"change due", "change",
	}
	subtotalKeywords = []string{"小計", "小 計", "subtotal", "sub total"}
	taxKeywords      = []string{"消費税", "内税", "外税", "税額", "tax"}
)

// reAmount matches a money figure with optional currency decoration,
// thousands separators, and decimals. OCR text is folded to half-width
// before this runs.
var reAmount = regexp.MustCompile(`[¥￥$]?\s*(\d{1,3}(?:,\d{3})+|\d+)(?:\.(\d{1,2}))?\s*円?`)

// AmountSet holds the structured amounts found on one receipt.
type AmountSet struct {
	Total    *float64
	Payment  *float64
	Change   *float64
	Subtotal *float64
	Tax      *float64
}

// consistencyTolerance is one currency unit; see CheckConsistency.
const consistencyTolerance = 1.0

// ExtractAmounts performs the structured amount search over normalized
// text: total keywords take precedence over payment keywords, which
// take precedence over change keywords. Each family is resolved
// independently so a missing total never hides a found payment.
func ExtractAmounts(text string) AmountSet {
	lines := splitLines(text)
	return AmountSet{
		Total:    findKeywordAmount(lines, totalKeywords, subtotalKeywords),
		Payment:  findKeywordAmount(lines, paymentKeywords, nil),
		Change:   findKeywordAmount(lines, changeKeywords, nil),
		Subtotal: findKeywordAmount(lines, subtotalKeywords, nil),
		Tax:      findKeywordAmount(lines, taxKeywords, nil),
	}
}

// findKeywordAmount scans keywords in priority order; the first keyword
// with a line carrying an amount wins. Lines matching any exclusion
// keyword are skipped, which keeps 小計 from being read as 合計.
func findKeywordAmount(lines, keywords, exclude []string) *float64 {
	for _, kw := range keywords {
		for _, ln := range lines {
			lower := strings.ToLower(ln)
			if !strings.Contains(lower, kw) {
				continue
			}
			if excluded(lower, exclude) {
				continue
			}
			if v, ok := lastAmountOn(ln); ok {
				return &v
			}
		}
	}
	return nil
}

func excluded(line string, exclude []string) bool {
	for _, ex := range exclude {
		if strings.Contains(line, ex) {
			return true
		}
	}
	return false
}

// lastAmountOn extracts the right-most money figure on a line, which on
// receipts is where the value column sits.
func lastAmountOn(line string) (float64, bool) {
	matches := reAmount.FindAllStringSubmatch(line, -1)
	if len(matches) == 0 {
		return 0, false
	}
	m := matches[len(matches)-1]
	whole := strings.ReplaceAll(m[1], ",", "")
	s := whole
	if m[2] != "" {
		s = whole + "." + m[2]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// CheckConsistency validates payment − total ≈ change within one
// currency unit when all three were found. The returned note is empty
// when the arithmetic holds or when any amount is missing; an
// inconsistency is reported but never treated as fatal.
func (a AmountSet) CheckConsistency() (ok bool, note string) {
	if a.Total == nil || a.Payment == nil || a.Change == nil {
		return true, ""
	}
	diff := math.Abs(*a.Payment - *a.Total - *a.Change)
	if diff <= consistencyTolerance {
		return true, ""
	}
	return false, "amount arithmetic inconsistent: payment - total != change"
}
