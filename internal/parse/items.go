package parse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/scanledger/scanledger/internal/entity"
)

var (
	// name column then a value column at the right edge.
	reItemLine = regexp.MustCompile(`^(.{1,40}?)\s+[¥￥$]?(\d{1,3}(?:,\d{3})+|\d+)(?:\.(\d{1,2}))?\s*円?$`)
	reQuantity = regexp.MustCompile(`[×x]\s*(\d{1,3})|(\d{1,3})\s*個`)

	reReceiptNumber = []*regexp.Regexp{
		regexp.MustCompile(`レシート\s*No\.?\s*[:：]?\s*(\d{2,})`),
		regexp.MustCompile(`伝票番号\s*[:：]?\s*(\d{2,})`),
		regexp.MustCompile(`(?i)receipt\s*(?:no|#)\.?\s*[:：]?\s*(\d{2,})`),
		regexp.MustCompile(`(?i)\bno\.\s*(\d{4,})`),
		regexp.MustCompile(`#(\d{4,})`),
	}
	reCashier = []*regexp.Regexp{
		regexp.MustCompile(`担当\s*[:：]?\s*(\S+)`),
		regexp.MustCompile(`係\s*[:：]\s*(\S+)`),
		regexp.MustCompile(`(?i)cashier\s*[:#]?\s*(\w+)`),
	}
)

// paymentMethods maps detection keywords to canonical method names,
// in priority order (specific instruments before generic words).
var paymentMethods = []struct {
	keyword string
	method  string
}{
	{"クレジット", "credit"},
	{"visa", "credit"},
	{"mastercard", "credit"},
	{"amex", "credit"},
	{"jcb", "credit"},
	{"電子マネー", "e-money"},
	{"suica", "e-money"},
	{"pasmo", "e-money"},
	{"paypay", "qr"},
	{"qr決済", "qr"},
	{"debit", "debit"},
	{"デビット", "debit"},
	{"現金", "cash"},
	{"cash", "cash"},
	{"credit", "credit"},
	{"card", "credit"},
}

// ExtractItems pulls line items out of the body of the receipt. Lines
// carrying amount-family keywords are value rows, not items.
func ExtractItems(text string) []entity.LineItem {
	var items []entity.LineItem
	for _, ln := range splitLines(text) {
		if isValueRow(ln) || ExtractReceiptNumber(ln) != "" {
			continue
		}
		m := reItemLine.FindStringSubmatch(ln)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		if name == "" || !hasLetterOrKana(name) {
			continue
		}

		price := strings.ReplaceAll(m[2], ",", "")
		if m[3] != "" {
			price += "." + m[3]
		}
		v, err := strconv.ParseFloat(price, 64)
		if err != nil {
			continue
		}

		qty := 1
		if qm := reQuantity.FindStringSubmatch(name); qm != nil {
			for _, g := range qm[1:] {
				if g != "" {
					qty = atoi(g)
					break
				}
			}
			name = strings.TrimSpace(reQuantity.ReplaceAllString(name, ""))
		}

		items = append(items, entity.LineItem{Name: name, Quantity: qty, Price: v})
	}
	return items
}

func isValueRow(ln string) bool {
	lower := strings.ToLower(ln)
	for _, families := range [][]string{totalKeywords, paymentKeywords, changeKeywords, subtotalKeywords, taxKeywords} {
		for _, kw := range families {
			if strings.Contains(lower, kw) {
				return true
			}
		}
	}
	return false
}

func hasLetterOrKana(s string) bool {
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r >= 0x3040 {
			return true
		}
	}
	return false
}

// ExtractReceiptNumber tries the ordered number patterns.
func ExtractReceiptNumber(text string) string {
	for _, re := range reReceiptNumber {
		if m := re.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}

// ExtractCashier tries the ordered cashier patterns.
func ExtractCashier(text string) string {
	for _, re := range reCashier {
		if m := re.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}

// ExtractPaymentMethod detects the canonical payment method keyword.
func ExtractPaymentMethod(text string) string {
	lower := strings.ToLower(text)
	for _, pm := range paymentMethods {
		if strings.Contains(lower, pm.keyword) {
			return pm.method
		}
	}
	return ""
}
