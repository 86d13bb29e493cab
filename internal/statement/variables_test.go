package statement

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/meridian-fin/meridian/internal/shared"
	"github.com/meridian-fin/meridian/internal/statement/filter"
)

func revenueTable() []MovementRecord {
	return []MovementRecord{
		{Year: 2024, Period: 2, AccountCode: "4100", Code0: "PL", Code1: "700", Name1: "Revenue", StatementType: StatementIncome, Amount: 2000},
		{Year: 2024, Period: 1, AccountCode: "4100", Code0: "PL", Code1: "700", Name1: "Revenue", StatementType: StatementIncome, Amount: 1000},
		{Year: 2024, Period: 1, AccountCode: "5100", Code0: "PL", Code1: "800", Name1: "COGS", StatementType: StatementIncome, Amount: -400},
		{Year: 2023, Period: 12, AccountCode: "4100", Code0: "PL", Code1: "700", Name1: "Revenue", StatementType: StatementIncome, Amount: 900},
	}
}

func TestResolveVariableSum(t *testing.T) {
	got, err := ResolveSum(filter.Spec{"code1": "700"})(revenueTable())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got[2024] != 3000 {
		t.Fatalf("2024 sum = %v, want 3000", got[2024])
	}
	if got[2023] != 900 {
		t.Fatalf("2023 sum = %v, want 900", got[2023])
	}
}

func TestResolveVariableAverage(t *testing.T) {
	got, err := ResolveAverage(filter.Spec{"code1": "700"})(revenueTable())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got[2024] != 1500 {
		t.Fatalf("2024 average = %v, want 1500", got[2024])
	}
}

func TestResolveVariableZeroMatchStillYieldsYears(t *testing.T) {
	got, err := ResolveSum(filter.Spec{"code1": "999"})(revenueTable())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("years = %d, want 2", len(got))
	}
	for year, v := range got {
		if v != 0 {
			t.Fatalf("year %d = %v, want 0", year, v)
		}
	}
}

func TestResolveVariableFirstLastAreChronological(t *testing.T) {
	// Input rows arrive P02 before P01; first/last must ignore input order.
	first, err := ResolveWithAggregate(AggregateFirst)(filter.Spec{"code1": "700"})(revenueTable())
	if err != nil {
		t.Fatalf("resolve first: %v", err)
	}
	if first[2024] != 1000 {
		t.Fatalf("2024 first = %v, want 1000", first[2024])
	}
	last, err := ResolveWithAggregate(AggregateLast)(filter.Spec{"code1": "700"})(revenueTable())
	if err != nil {
		t.Fatalf("resolve last: %v", err)
	}
	if last[2024] != 2000 {
		t.Fatalf("2024 last = %v, want 2000", last[2024])
	}
}

func TestResolveVariableMinMaxCount(t *testing.T) {
	table := revenueTable()
	min, _ := ResolveWithAggregate(AggregateMin)(filter.Spec{"statement_type": "income_statement"})(table)
	if min[2024] != -400 {
		t.Fatalf("2024 min = %v, want -400", min[2024])
	}
	max, _ := ResolveWithAggregate(AggregateMax)(filter.Spec{"statement_type": "income_statement"})(table)
	if max[2024] != 2000 {
		t.Fatalf("2024 max = %v, want 2000", max[2024])
	}
	count, _ := ResolveCount(filter.Spec{"statement_type": "income_statement"})(table)
	if count[2024] != 3 {
		t.Fatalf("2024 count = %v, want 3", count[2024])
	}
}

func TestResolveVariableIsPure(t *testing.T) {
	resolve := ResolveSum(filter.Spec{"code1": "700"})
	a, err := resolve(revenueTable())
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	b, err := resolve(revenueTable())
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	for year, v := range a {
		if math.Abs(b[year]-v) > 1e-9 {
			t.Fatalf("year %d differs across calls: %v vs %v", year, v, b[year])
		}
	}
}

func TestResolveVariableNilTable(t *testing.T) {
	_, err := ResolveSum(filter.Spec{"code1": "700"})(nil)
	if !errors.Is(err, shared.ErrData) {
		t.Fatalf("err = %v, want ErrData", err)
	}
}

func TestResolveVariableBadAggregate(t *testing.T) {
	_, err := ResolveWithAggregate("median")(filter.Spec{"code1": "700"})(revenueTable())
	if !errors.Is(err, shared.ErrResolution) {
		t.Fatalf("err = %v, want ErrResolution", err)
	}
}

func TestResolveVariablesNamesFailingVariable(t *testing.T) {
	defs := map[string]VariableDefinition{
		"revenue": {Filter: filter.Spec{"code1": "700"}, Aggregate: AggregateSum},
		"broken":  {Filter: filter.Spec{"nope": "1"}, Aggregate: AggregateSum},
	}
	_, err := ResolveVariables(defs)(revenueTable())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "broken") {
		t.Fatalf("error does not name the failing variable: %v", err)
	}
	if !errors.Is(err, shared.ErrResolution) {
		t.Fatalf("err = %v, want ErrResolution", err)
	}
}

func TestResolveVariablesEmptyMap(t *testing.T) {
	got, err := ResolveVariables(map[string]VariableDefinition{})(revenueTable())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("resolved = %d entries, want 0", len(got))
	}
}

func TestFiscalYearsSortedDistinct(t *testing.T) {
	years := FiscalYears(revenueTable())
	if len(years) != 2 || years[0] != 2023 || years[1] != 2024 {
		t.Fatalf("years = %v, want [2023 2024]", years)
	}
}
