package statement

import "strings"

// Classifier decides whether a top-level category presents with flipped
// sign. Classification is data-driven (built from the chart of accounts),
// never hardcoded per account.
type Classifier func(code0, name0 string) bool

// LiabilityEquityByName builds a classifier matching top-level category
// names case-insensitively.
func LiabilityEquityByName(names ...string) Classifier {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[strings.ToLower(strings.TrimSpace(n))] = true
	}
	return func(_, name0 string) bool {
		return set[strings.ToLower(strings.TrimSpace(name0))]
	}
}

// LiabilityEquityByCode builds a classifier matching top-level category
// codes exactly.
func LiabilityEquityByCode(codes ...string) Classifier {
	set := make(map[string]bool, len(codes))
	for _, c := range codes {
		set[c] = true
	}
	return func(code0, _ string) bool { return set[code0] }
}

// FlipLiabilityEquity negates every amount column of classified account
// rows so liabilities and equity render as positive figures. The input
// slice is left untouched.
func FlipLiabilityEquity(rows []AccountRow, classify Classifier) []AccountRow {
	if classify == nil {
		return rows
	}
	out := make([]AccountRow, len(rows))
	for i, row := range rows {
		if classify(row.Code0, row.Name0) {
			flipped := make(map[string]float64, len(row.Amounts))
			for key, amt := range row.Amounts {
				flipped[key] = -amt
			}
			row.Amounts = flipped
		}
		out[i] = row
	}
	return out
}

// FlipCategoryTotals is the category-level analogue of FlipLiabilityEquity.
// Variance figures are recomputed from the flipped amounts when present.
func FlipCategoryTotals(rows []CategoryRow, first, second string, classify Classifier) []CategoryRow {
	if classify == nil {
		return rows
	}
	out := make([]CategoryRow, len(rows))
	for i, row := range rows {
		if classify("", row.Name0) {
			flipped := make(map[string]float64, len(row.Amounts))
			for key, amt := range row.Amounts {
				flipped[key] = -amt
			}
			row.Amounts = flipped
			if row.VarianceAmount != nil {
				amount := VarianceAmount(flipped[first], flipped[second])
				row.VarianceAmount = &amount
				row.VariancePercent = VariancePercent(flipped[first], flipped[second])
			}
		}
		out[i] = row
	}
	return out
}
