package constants

import "strings"

// Category is an accounting category for a receipt.
type Category string

const (
	Food          Category = "food"
	Transport     Category = "transport"
	Supplies      Category = "supplies"
	Equipment     Category = "equipment"
	Utilities     Category = "utilities"
	Entertainment Category = "entertainment"
	Medical       Category = "medical"
	Expense       Category = "expense"
	Misc          Category = "misc"
)

// Account is the account code a category posts to.
type Account string

const (
	MiscExpense     Account = "misc-expense"
	TravelExpense   Account = "travel-expense"
	SuppliesExpense Account = "supplies-expense"
	FixedAsset      Account = "fixed-asset"
	UtilityExpense  Account = "utility-expense"
	WelfareExpense  Account = "welfare-expense"
	MedicalExpense  Account = "medical-expense"
	GeneralExpense  Account = "general-expense"
	OtherExpense    Account = "other-expense"
)

var allCategories = []Category{
	Food,
	Transport,
	Supplies,
	Equipment,
	Utilities,
	Entertainment,
	Medical,
	Expense,
	Misc,
}

// DefaultAccount maps each category to its default posting account.
var DefaultAccount = map[Category]Account{
	Food:          MiscExpense,
	Transport:     TravelExpense,
	Supplies:      SuppliesExpense,
	Equipment:     FixedAsset,
	Utilities:     UtilityExpense,
	Entertainment: WelfareExpense,
	Medical:       MedicalExpense,
	Expense:       GeneralExpense,
	Misc:          OtherExpense,
}

func AsStringSlice() []string {
	result := make([]string, len(allCategories))
	for i, cat := range allCategories {
		result[i] = string(cat)
	}
	return result
}

// Canonicalize maps a free-form label to a known category.
func Canonicalize(input string) (Category, bool) {
	if input == "" {
		return Misc, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))

	synonyms := map[string]Category{
		"meal":       Food,
		"meals":      Food,
		"restaurant": Food,
		"grocery":    Food,
		"groceries":  Food,
		"taxi":       Transport,
		"train":      Transport,
		"travel":     Transport,
		"parking":    Transport,
		"stationery": Supplies,
		"office":     Supplies,
		"hardware":   Equipment,
		"electric":   Utilities,
		"gas":        Utilities,
		"water":      Utilities,
		"pharmacy":   Medical,
		"hospital":   Medical,
		"other":      Misc,
	}

	if cat, ok := synonyms[normalized]; ok {
		return cat, true
	}

	for _, cat := range allCategories {
		if normalized == string(cat) {
			return cat, true
		}
	}

	return Misc, false
}
