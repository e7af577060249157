package categorize

import (
	"log/slog"
	"strings"

	"github.com/scanledger/scanledger/constants"
	"github.com/scanledger/scanledger/internal/entity"
)

// Assignment is the category decision plus whether it came from an
// exact vendor-table hit (corrections respect exact matches).
type Assignment struct {
	Category constants.Category
	Account  constants.Account
	Exact    bool
}

// vendorTable maps vendor-name fragments to (category, account).
// Matching is case-insensitive substring, so "マクドナルド 渋谷店"
// hits the "マクドナルド" row.
var vendorTable = []struct {
	fragment string
	category constants.Category
	account  constants.Account
}{
	{"マクドナルド", constants.Food, constants.MiscExpense},
	{"mcdonald", constants.Food, constants.MiscExpense},
	{"スターバックス", constants.Food, constants.MiscExpense},
	{"starbucks", constants.Food, constants.MiscExpense},
	{"すき家", constants.Food, constants.MiscExpense},
	{"吉野家", constants.Food, constants.MiscExpense},
	{"セブン-イレブン", constants.Food, constants.MiscExpense},
	{"セブンイレブン", constants.Food, constants.MiscExpense},
	{"ファミリーマート", constants.Food, constants.MiscExpense},
	{"ローソン", constants.Food, constants.MiscExpense},
	{"jr東日本", constants.Transport, constants.TravelExpense},
	{"jr西日本", constants.Transport, constants.TravelExpense},
	{"タクシー", constants.Transport, constants.TravelExpense},
	{"uber", constants.Transport, constants.TravelExpense},
	{"ana", constants.Transport, constants.TravelExpense},
	{"jal", constants.Transport, constants.TravelExpense},
	{"東京メトロ", constants.Transport, constants.TravelExpense},
	{"ヨドバシカメラ", constants.Equipment, constants.FixedAsset},
	{"ビックカメラ", constants.Equipment, constants.FixedAsset},
	{"yamada", constants.Equipment, constants.FixedAsset},
	{"無印良品", constants.Supplies, constants.SuppliesExpense},
	{"ダイソー", constants.Supplies, constants.SuppliesExpense},
	{"コクヨ", constants.Supplies, constants.SuppliesExpense},
	{"東京電力", constants.Utilities, constants.UtilityExpense},
	{"東京ガス", constants.Utilities, constants.UtilityExpense},
	{"ntt", constants.Utilities, constants.UtilityExpense},
	{"マツモトキヨシ", constants.Medical, constants.MedicalExpense},
	{"ウエルシア", constants.Medical, constants.MedicalExpense},
	{"pharmacy", constants.Medical, constants.MedicalExpense},
	{"薬局", constants.Medical, constants.MedicalExpense},
}

// Keyword sets for the item-based correction pass.
var (
	foodItemKeywords = []string{
		"コーヒー", "弁当", "パン", "おにぎり", "サンド", "ドリンク", "ジュース",
		"ビール", "定食", "ランチ", "burger", "coffee", "lunch", "sandwich",
		"salad", "drink", "set", "セット",
	}
	transportItemKeywords = []string{
		"乗車券", "切符", "運賃", "特急", "回数券", "fare", "ticket", "taxi", "乗車",
	}
)

// Amount-correction bounds: very small totals bias toward misc, very
// large totals toward the generic expense bucket.
const (
	smallAmountCutoff = 300.0
	largeAmountCutoff = 100000.0
)

// Categorizer assigns accounting categories to parsed receipts.
type Categorizer struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Categorizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Categorizer{logger: logger}
}

// Categorize looks the vendor up in the table, falls back to the
// misc/other-expense default, then applies the amount-based and
// item-based correction passes. Corrections only upgrade specificity:
// they never replace an exact vendor match with a guess.
func (c *Categorizer) Categorize(vendor string, total *float64, items []entity.LineItem) Assignment {
	a := c.lookupVendor(vendor)

	a = c.correctByAmount(a, total)
	a = c.correctByItems(a, items)

	c.logger.Debug("categorize.done",
		"vendor", vendor,
		"category", string(a.Category),
		"account", string(a.Account),
		"exact", a.Exact,
	)
	return a
}

func (c *Categorizer) lookupVendor(vendor string) Assignment {
	v := strings.ToLower(strings.TrimSpace(vendor))
	if v != "" {
		for _, row := range vendorTable {
			if fragmentMatches(v, row.fragment) {
				return Assignment{Category: row.category, Account: row.account, Exact: true}
			}
		}
	}
	return Assignment{Category: constants.Misc, Account: constants.OtherExpense, Exact: false}
}

// shortFragmentLimit is the length up to which a Latin fragment must
// sit on word boundaries. "ana" inside "banana stand" is not the
// airline; "ヨドバシ" inside a longer name still is the store.
const shortFragmentLimit = 4

func fragmentMatches(vendor, fragment string) bool {
	if len(fragment) > shortFragmentLimit || !isASCII(fragment) {
		return strings.Contains(vendor, fragment)
	}
	for start := 0; start <= len(vendor)-len(fragment); {
		i := strings.Index(vendor[start:], fragment)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(fragment)
		if (i == 0 || !isWordByte(vendor[i-1])) && (end == len(vendor) || !isWordByte(vendor[end])) {
			return true
		}
		start = i + 1
	}
	return false
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

// correctByAmount nudges default assignments by total size. Exact
// vendor matches are left alone.
func (c *Categorizer) correctByAmount(a Assignment, total *float64) Assignment {
	if a.Exact || total == nil {
		return a
	}
	switch {
	case *total > 0 && *total < smallAmountCutoff:
		a.Category = constants.Misc
		a.Account = constants.OtherExpense
	case *total >= largeAmountCutoff:
		a.Category = constants.Expense
		a.Account = constants.GeneralExpense
	}
	return a
}

// correctByItems overrides a default assignment when at least half the
// line items match a food or transport keyword set.
func (c *Categorizer) correctByItems(a Assignment, items []entity.LineItem) Assignment {
	if a.Exact || len(items) == 0 {
		return a
	}

	food, transport := 0, 0
	for _, it := range items {
		name := strings.ToLower(it.Name)
		if matchesAny(name, foodItemKeywords) {
			food++
		}
		if matchesAny(name, transportItemKeywords) {
			transport++
		}
	}

	half := (len(items) + 1) / 2
	switch {
	case food >= half && food >= transport:
		a.Category = constants.Food
		a.Account = constants.MiscExpense
	case transport >= half:
		a.Category = constants.Transport
		a.Account = constants.TravelExpense
	}
	return a
}

func matchesAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if fragmentMatches(s, kw) {
			return true
		}
	}
	return false
}
