package statement

import (
	"errors"
	"testing"

	"github.com/meridian-fin/meridian/internal/shared"
	"github.com/meridian-fin/meridian/internal/statement/filter"
)

func TestParsePeriodOptionForms(t *testing.T) {
	cases := []struct {
		in   string
		want PeriodOption
	}{
		{"2025-all", PeriodOption{Raw: "2025-all", Year: 2025, Mode: ModeAll}},
		{"2025-3", PeriodOption{Raw: "2025-3", Year: 2025, Mode: ModeSingle, Period: 3}},
		{"2025-P03", PeriodOption{Raw: "2025-P03", Year: 2025, Mode: ModeSingle, Period: 3}},
		{"2025-Q2", PeriodOption{Raw: "2025-Q2", Year: 2025, Mode: ModeQuarter, Quarter: 2}},
		{"2025-ltm", PeriodOption{Raw: "2025-ltm", Year: 2025, Mode: ModeLTM}},
	}
	for _, tc := range cases {
		got, err := ParsePeriodOption(tc.in)
		if err != nil {
			t.Fatalf("%s: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %+v, want %+v", tc.in, got, tc.want)
		}
	}
}

func TestParsePeriodOptionRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "2025", "2025-", "abcd-all", "2025-Q5", "2025-13", "2025-P00"} {
		if _, err := ParsePeriodOption(in); !errors.Is(err, shared.ErrValidation) {
			t.Fatalf("%q: err = %v, want ErrValidation", in, err)
		}
	}
}

func TestPeriodOptionWindows(t *testing.T) {
	opt, _ := ParsePeriodOption("2025-Q2")
	if s, e := opt.Window(); s != 4 || e != 6 {
		t.Fatalf("Q2 window = %d..%d", s, e)
	}
	// Balance sheets are point-in-time: cumulative from period 1.
	if s, e := opt.WindowFor(StatementBalanceSheet); s != 1 || e != 6 {
		t.Fatalf("Q2 balance-sheet window = %d..%d", s, e)
	}
	single, _ := ParsePeriodOption("2025-7")
	if s, e := single.WindowFor(StatementIncome); s != 7 || e != 7 {
		t.Fatalf("single window = %d..%d", s, e)
	}
}

func balancedMovements() []MovementRecord {
	return []MovementRecord{
		{Year: 2025, Period: 1, AccountCode: "1100", AccountName: "Cash", Code0: "1", Code1: "100", Name0: "Assets", Name1: "Current Assets", StatementType: StatementBalanceSheet, Amount: 60000},
		{Year: 2025, Period: 1, AccountCode: "1500", AccountName: "Equipment", Code0: "1", Code1: "200", Name0: "Assets", Name1: "Fixed Assets", StatementType: StatementBalanceSheet, Amount: 40000},
		{Year: 2025, Period: 1, AccountCode: "2100", AccountName: "Trade payables", Code0: "2", Code1: "300", Name0: "Liabilities", Name1: "Payables", StatementType: StatementBalanceSheet, Amount: -30000},
		{Year: 2025, Period: 1, AccountCode: "3100", AccountName: "Common stock", Code0: "3", Code1: "400", Name0: "Equity", Name1: "Share Capital", StatementType: StatementBalanceSheet, Amount: -70000},
	}
}

func TestGenerateBalanceSheetBalanced(t *testing.T) {
	st, err := GenerateStatement(StatementBalanceSheet, balancedMovements(), GenerateOptions{
		PeriodOption: "2025-all",
		DetailLevel:  5,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !st.Metrics.Balanced {
		t.Fatalf("metrics = %+v, want balanced", st.Metrics)
	}
	if st.Metrics.Imbalance != 0 {
		t.Fatalf("imbalance = %v, want 0", st.Metrics.Imbalance)
	}
	total := findSource(t, st.Rows, SourceTotalAssets)
	if total.Amounts["2025"] != 100000 {
		t.Fatalf("total assets = %v, want 100000", total.Amounts["2025"])
	}
	// Liabilities render positive after the flip.
	liab := findRow(t, st.Rows, "Trade payables")
	if liab.Amounts["2025"] != 30000 {
		t.Fatalf("payables = %v, want 30000", liab.Amounts["2025"])
	}
	if st.Meta.GenerationID == "" || st.Meta.PeriodOption != "2025-all" {
		t.Fatalf("meta = %+v", st.Meta)
	}
}

func TestGenerateBalanceSheetImbalanceDetected(t *testing.T) {
	table := balancedMovements()
	table[3].Amount = -69000
	st, err := GenerateStatement(StatementBalanceSheet, table, GenerateOptions{PeriodOption: "2025-all", DetailLevel: 5})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if st.Metrics.Balanced {
		t.Fatal("expected imbalance")
	}
	if st.Metrics.Imbalance != 1000 {
		t.Fatalf("imbalance = %v, want 1000", st.Metrics.Imbalance)
	}
}

func TestGenerateIncomeStatementMetrics(t *testing.T) {
	st, err := GenerateStatement(StatementIncome, renderTable(), GenerateOptions{PeriodOption: "2025-all", DetailLevel: 5})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	// 2025: revenue 1600 - cogs 500.
	if st.Metrics.NetIncome != 1100 {
		t.Fatalf("net income = %v, want 1100", st.Metrics.NetIncome)
	}
	rev := findRow(t, st.Rows, "Revenue")
	if rev.Amounts["2025"] != 1600 {
		t.Fatalf("revenue = %v, want positive 1600", rev.Amounts["2025"])
	}
}

func TestGenerateLTMIncomeStatement(t *testing.T) {
	st, err := GenerateStatement(StatementIncome, ltmTable(2025, 6), GenerateOptions{PeriodOption: "2025-ltm", DetailLevel: 5})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(st.Columns) != 13 {
		t.Fatalf("columns = %d, want 13", len(st.Columns))
	}
	if len(st.Meta.Warnings) != 0 {
		t.Fatalf("warnings = %v, want none", st.Meta.Warnings)
	}
	// ltmTable amounts are +100/month; income sign renders them negative.
	net := findSource(t, st.Rows, SourceNetIncome)
	if net.Amounts["ltm"] != -1200 {
		t.Fatalf("ltm net income = %v, want -1200", net.Amounts["ltm"])
	}
}

func TestGenerateLTMWarnsOnGaps(t *testing.T) {
	table := ltmTable(2025, 6)
	kept := table[:0]
	for _, row := range table {
		if !(row.Year == 2024 && row.Period == 9) {
			kept = append(kept, row)
		}
	}
	st, err := GenerateStatement(StatementIncome, kept, GenerateOptions{PeriodOption: "2025-ltm", DetailLevel: 5})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(st.Meta.Warnings) != 1 {
		t.Fatalf("warnings = %v, want 1 entry", st.Meta.Warnings)
	}
}

func TestGenerateStatementNilTable(t *testing.T) {
	if _, err := GenerateStatement(StatementIncome, nil, GenerateOptions{PeriodOption: "2025-all"}); !errors.Is(err, shared.ErrData) {
		t.Fatalf("err = %v, want ErrData", err)
	}
}

func TestGenerateReportEndToEnd(t *testing.T) {
	st, err := GenerateReport(marginDefinition(), renderTable(), GenerateOptions{PeriodOption: "2025-all"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if st.Meta.ReportID != "pl-margin" || st.Meta.Name != "Margin Report" {
		t.Fatalf("meta = %+v", st.Meta)
	}
	margin := findRow(t, st.Rows, "Gross Margin")
	if margin.Amounts["2025"] != 1100 {
		t.Fatalf("gross margin = %v", margin.Amounts)
	}
	if len(st.Columns) != 2 {
		t.Fatalf("columns = %d, want 2", len(st.Columns))
	}
}

func TestGenerateReportLTMSpansYearBoundary(t *testing.T) {
	def := ReportDefinition{
		ReportID:      "pl-rolling",
		Name:          "Rolling Revenue",
		Version:       "1",
		StatementType: StatementIncome,
		Variables: map[string]VariableDefinition{
			"revenue": {Filter: filter.Spec{"code1": "700"}, Aggregate: AggregateSum},
		},
		Layout: []LayoutItem{
			{Kind: LayoutVariable, Order: 10, Label: "Revenue", Variable: "revenue"},
			{Kind: LayoutCalculated, Order: 20, Label: "Revenue x2", Expression: "revenue * 2.0"},
		},
	}
	// 100/month across 2024-P07..2025-P06; income sign renders each -100.
	st, err := GenerateReport(def, ltmTable(2025, 6), GenerateOptions{PeriodOption: "2025-ltm"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(st.Columns) != 13 {
		t.Fatalf("columns = %d, want 13", len(st.Columns))
	}
	rev := findRow(t, st.Rows, "Revenue")
	if rev.Amounts["2024-P09"] != -100 || rev.Amounts["2025-P02"] != -100 {
		t.Fatalf("monthly amounts = %v", rev.Amounts)
	}
	// The rolling total covers the prior-year months too, not just
	// 2025-P01..P06.
	if rev.Amounts["ltm"] != -1200 {
		t.Fatalf("ltm revenue = %v, want -1200", rev.Amounts["ltm"])
	}
	calc := findRow(t, st.Rows, "Revenue x2")
	if calc.Amounts["ltm"] != -2400 {
		t.Fatalf("ltm calculated = %v, want -2400", calc.Amounts["ltm"])
	}
}

func TestDeriveCashFlowInputs(t *testing.T) {
	cols := cols2024_2025()
	bs := []MovementRecord{
		{Year: 2023, Period: 12, AccountCode: "1100", Code0: "1", Name0: "Assets", Amount: 5000},
		{Year: 2024, Period: 3, AccountCode: "1100", Code0: "1", Name0: "Assets", Amount: 1000},
		{Year: 2023, Period: 12, AccountCode: "1500", Code0: "1", Name0: "Assets", Amount: 900},
	}
	is := []MovementRecord{
		{Year: 2024, Period: 2, AccountCode: "4100", Amount: -3000},
		{Year: 2025, Period: 2, AccountCode: "4100", Amount: -3500},
	}
	in := DeriveCashFlowInputs(bs, is, cols, func(r MovementRecord) bool { return r.AccountCode == "1100" })
	if in.NetIncome["2024"] != 3000 || in.NetIncome["2025"] != 3500 {
		t.Fatalf("net income = %v", in.NetIncome)
	}
	// 2024 column starts at P01: only 2023 balances count.
	if in.StartingCash["2024"] != 5000 {
		t.Fatalf("starting cash 2024 = %v, want 5000", in.StartingCash["2024"])
	}
	// 2025 column: 2023 + all 2024 cash movements.
	if in.StartingCash["2025"] != 6000 {
		t.Fatalf("starting cash 2025 = %v, want 6000", in.StartingCash["2025"])
	}
}
