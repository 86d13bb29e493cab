package statement

import "testing"

func TestFlipLiabilityEquityByName(t *testing.T) {
	rows := []AccountRow{
		{Code0: "1", Name0: "Assets", AccountCode: "1100", Amounts: map[string]float64{"2024": 500, "2025": 600}},
		{Code0: "2", Name0: "Liabilities", AccountCode: "2100", Amounts: map[string]float64{"2024": -300, "2025": -350}},
		{Code0: "3", Name0: "Equity", AccountCode: "3100", Amounts: map[string]float64{"2024": -200, "2025": -250}},
	}
	classify := LiabilityEquityByName("Liabilities", "Equity")
	flipped := FlipLiabilityEquity(rows, classify)

	if flipped[0].Amounts["2024"] != 500 {
		t.Fatalf("assets flipped: %v", flipped[0].Amounts)
	}
	if flipped[1].Amounts["2024"] != 300 || flipped[1].Amounts["2025"] != 350 {
		t.Fatalf("liabilities = %v", flipped[1].Amounts)
	}
	if flipped[2].Amounts["2025"] != 250 {
		t.Fatalf("equity = %v", flipped[2].Amounts)
	}
	// Input untouched.
	if rows[1].Amounts["2024"] != -300 {
		t.Fatalf("input mutated: %v", rows[1].Amounts)
	}
}

func TestFlipLiabilityEquityByCode(t *testing.T) {
	rows := []AccountRow{
		{Code0: "2", Name0: "Verbindlichkeiten", Amounts: map[string]float64{"2024": -100}},
	}
	flipped := FlipLiabilityEquity(rows, LiabilityEquityByCode("2", "3"))
	if flipped[0].Amounts["2024"] != 100 {
		t.Fatalf("got %v", flipped[0].Amounts)
	}
}

func TestFlipCategoryTotalsRecomputesVariance(t *testing.T) {
	base, compare := -300.0, -350.0
	amount := VarianceAmount(base, compare)
	cats := []CategoryRow{
		{
			Name0:           "Liabilities",
			Amounts:         map[string]float64{"2024": base, "2025": compare},
			VarianceAmount:  &amount,
			VariancePercent: VariancePercent(base, compare),
		},
	}
	flipped := FlipCategoryTotals(cats, "2024", "2025", LiabilityEquityByName("Liabilities"))
	if flipped[0].Amounts["2024"] != 300 || flipped[0].Amounts["2025"] != 350 {
		t.Fatalf("amounts = %v", flipped[0].Amounts)
	}
	if flipped[0].VarianceAmount == nil || *flipped[0].VarianceAmount != 50 {
		t.Fatalf("variance amount = %v", flipped[0].VarianceAmount)
	}
}

func TestFlipNilClassifierIsIdentity(t *testing.T) {
	rows := []AccountRow{{Name0: "Liabilities", Amounts: map[string]float64{"2024": -1}}}
	flipped := FlipLiabilityEquity(rows, nil)
	if flipped[0].Amounts["2024"] != -1 {
		t.Fatalf("got %v", flipped[0].Amounts)
	}
}
