package statement

import (
	"errors"
	"math"
	"testing"

	"github.com/meridian-fin/meridian/internal/shared"
)

func rollupTable() []MovementRecord {
	return []MovementRecord{
		{Year: 2024, Period: 3, AccountCode: "4100", AccountName: "Product revenue", Code0: "PL", Code1: "700", Name0: "Income Statement", Name1: "Revenue", StatementType: StatementIncome, Amount: -1000},
		{Year: 2024, Period: 4, AccountCode: "4100", AccountName: "Product revenue", Code0: "PL", Code1: "700", Name0: "Income Statement", Name1: "Revenue", StatementType: StatementIncome, Amount: -1500},
		{Year: 2025, Period: 3, AccountCode: "4100", AccountName: "Product revenue", Code0: "PL", Code1: "700", Name0: "Income Statement", Name1: "Revenue", StatementType: StatementIncome, Amount: -1200},
		{Year: 2024, Period: 3, AccountCode: "5100", AccountName: "Materials", Code0: "PL", Code1: "800", Name0: "Income Statement", Name1: "COGS", StatementType: StatementIncome, Amount: 400},
		{Year: 2024, Period: 9, AccountCode: "4100", AccountName: "Product revenue", Code0: "PL", Code1: "700", Name0: "Income Statement", Name1: "Revenue", StatementType: StatementIncome, Amount: -999},
	}
}

func TestBuildNormalModeSpecWindow(t *testing.T) {
	spec, err := BuildNormalModeSpec(2024, 2025, 1, 6, -1)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(spec.Columns) != 2 {
		t.Fatalf("columns = %d, want 2", len(spec.Columns))
	}
	if spec.Columns[0].Key != "2024" || spec.Columns[1].Key != "2025" {
		t.Fatalf("column keys = %q/%q", spec.Columns[0].Key, spec.Columns[1].Key)
	}
	if !spec.Variance {
		t.Fatal("normal mode spec must carry variance")
	}
}

func TestBuildNormalModeSpecBadWindow(t *testing.T) {
	if _, err := BuildNormalModeSpec(2024, 2025, 7, 3, 1); !errors.Is(err, shared.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestAggregateAccountsAppliesSignAndWindow(t *testing.T) {
	spec, err := BuildNormalModeSpec(2024, 2025, 1, 6, -1)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	rows := AggregateAccounts(spec, rollupTable())
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	// Sorted by account code within code0.
	if rows[0].AccountCode != "4100" || rows[1].AccountCode != "5100" {
		t.Fatalf("order = %q, %q", rows[0].AccountCode, rows[1].AccountCode)
	}
	// P09 row is outside the window; revenue sign flipped.
	if rows[0].Amounts["2024"] != 2500 {
		t.Fatalf("revenue 2024 = %v, want 2500", rows[0].Amounts["2024"])
	}
	if rows[0].Amounts["2025"] != 1200 {
		t.Fatalf("revenue 2025 = %v, want 1200", rows[0].Amounts["2025"])
	}
	if rows[1].Amounts["2024"] != -400 {
		t.Fatalf("cogs 2024 = %v, want -400", rows[1].Amounts["2024"])
	}
}

func TestAggregateCategoriesVariance(t *testing.T) {
	spec, err := BuildCategoryTotalsSpec(2024, 2025, 1, 12, -1)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	cats := AggregateCategories(spec, rollupTable())
	if len(cats) != 1 {
		t.Fatalf("categories = %d, want 1", len(cats))
	}
	cat := cats[0]
	// 2024: 1000+1500+999-400 = 3099; 2025: 1200.
	if cat.Amounts["2024"] != 3099 || cat.Amounts["2025"] != 1200 {
		t.Fatalf("amounts = %v", cat.Amounts)
	}
	if cat.VarianceAmount == nil || *cat.VarianceAmount != 1200-3099 {
		t.Fatalf("variance amount = %v", cat.VarianceAmount)
	}
	wantPct := (1200.0 - 3099.0) / 3099.0 * 100
	if cat.VariancePercent == nil || math.Abs(*cat.VariancePercent-wantPct) > 1e-9 {
		t.Fatalf("variance percent = %v, want %v", cat.VariancePercent, wantPct)
	}
}

func TestBuildLTMModeSpecTotalOnlyForIncome(t *testing.T) {
	info, err := BuildLTMInfo(ltmTable(2025, 6), ltmMonths)
	if err != nil {
		t.Fatalf("ltm info: %v", err)
	}
	is := BuildLTMModeSpec(info, -1, StatementIncome)
	if len(is.Columns) != 13 || is.Columns[12].Key != "ltm" {
		t.Fatalf("income columns = %d (%v)", len(is.Columns), is.Columns)
	}
	bs := BuildLTMModeSpec(info, 1, StatementBalanceSheet)
	if len(bs.Columns) != 12 {
		t.Fatalf("balance-sheet columns = %d, want 12", len(bs.Columns))
	}
}

func TestAggregateAccountsLTMTotalSpansYears(t *testing.T) {
	table := ltmTable(2025, 6)
	info, err := BuildLTMInfo(table, ltmMonths)
	if err != nil {
		t.Fatalf("ltm info: %v", err)
	}
	spec := BuildLTMModeSpec(info, 1, StatementIncome)
	rows := AggregateAccounts(spec, table)
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if rows[0].Amounts["ltm"] != 1200 {
		t.Fatalf("ltm total = %v, want 1200", rows[0].Amounts["ltm"])
	}
	if rows[0].Amounts["2024-P07"] != 100 || rows[0].Amounts["2025-P06"] != 100 {
		t.Fatalf("monthly amounts = %v", rows[0].Amounts)
	}
}

func TestBuildLTMCategoryTotalsSpecOmitsVariance(t *testing.T) {
	info, err := BuildLTMInfo(ltmTable(2025, 6), ltmMonths)
	if err != nil {
		t.Fatalf("ltm info: %v", err)
	}
	spec := BuildLTMCategoryTotalsSpec(info, -1, StatementIncome)
	if spec.Variance {
		t.Fatal("ltm category spec must not carry variance")
	}
	cats := AggregateCategories(spec, ltmTable(2025, 6))
	for _, cat := range cats {
		if cat.VarianceAmount != nil || cat.VariancePercent != nil {
			t.Fatalf("category %q carries variance", cat.Name0)
		}
	}
}
