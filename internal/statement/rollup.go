package statement

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/meridian-fin/meridian/internal/shared"
)

// RollupSpec describes a grouped aggregation over the movement table: which
// output columns to fill, the sign applied at aggregation time and whether
// a two-column variance is computed. Columns are an explicit ordered list;
// nothing downstream assumes exactly two of them.
type RollupSpec struct {
	Columns        []ColumnSpec
	SignMultiplier float64
	Variance       bool
	// LTMRanges is set for LTM-mode specs; the "ltm" total column sums
	// every slot of the window instead of a single-year window.
	LTMRanges []LTMRange
}

const ltmTotalKey = "ltm"

// BuildNormalModeSpec produces the classic two-column year comparison:
// one sum reducer per year over the same period window, grouped by the
// full hierarchy path. Income statements pass sign=-1 so revenue renders
// positive.
func BuildNormalModeSpec(year1, year2, startPeriod, endPeriod int, sign float64) (RollupSpec, error) {
	if !shared.ValidPeriod(startPeriod) || !shared.ValidPeriod(endPeriod) || startPeriod > endPeriod {
		return RollupSpec{}, &shared.ValidationError{
			Subject: "rollup spec",
			Reason:  fmt.Sprintf("bad period window %d..%d", startPeriod, endPeriod),
		}
	}
	if sign == 0 {
		sign = 1
	}
	cols := make([]ColumnSpec, 0, 2)
	for _, year := range []int{year1, year2} {
		cols = append(cols, ColumnSpec{
			Key:         strconv.Itoa(year),
			Year:        year,
			StartPeriod: startPeriod,
			EndPeriod:   endPeriod,
			Label:       strconv.Itoa(year),
		})
	}
	return RollupSpec{Columns: cols, SignMultiplier: sign, Variance: true}, nil
}

// BuildLTMModeSpec produces one reducer per month of the rolling window,
// plus a rolling-total column for income statements only; balance-sheet
// LTM views are point-in-time per month and have no meaningful 12-month
// sum.
func BuildLTMModeSpec(info LTMInfo, sign float64, st StatementType) RollupSpec {
	if sign == 0 {
		sign = 1
	}
	cols := LTMColumns(info)
	if st != StatementIncome {
		cols = cols[:len(cols)-1]
	}
	return RollupSpec{
		Columns:        cols,
		SignMultiplier: sign,
		LTMRanges:      info.Ranges,
	}
}

// BuildCategoryTotalsSpec is the category-granularity analogue of
// BuildNormalModeSpec: same columns and sign, grouped by top-level
// category, with variance.
func BuildCategoryTotalsSpec(year1, year2, startPeriod, endPeriod int, sign float64) (RollupSpec, error) {
	return BuildNormalModeSpec(year1, year2, startPeriod, endPeriod, sign)
}

// BuildLTMCategoryTotalsSpec groups by top-level category over the rolling
// window. No variance: LTM mode has no two-column comparison.
func BuildLTMCategoryTotalsSpec(info LTMInfo, sign float64, st StatementType) RollupSpec {
	spec := BuildLTMModeSpec(info, sign, st)
	spec.Variance = false
	return spec
}

func (s RollupSpec) columnAmount(col ColumnSpec, row MovementRecord) (float64, bool) {
	if col.Key == ltmTotalKey && len(s.LTMRanges) > 0 {
		if !InLTMWindow(s.LTMRanges, row.Year, row.Period) {
			return 0, false
		}
		return row.Amount * s.SignMultiplier, true
	}
	if !col.Covers(row.Year, row.Period) {
		return 0, false
	}
	return row.Amount * s.SignMultiplier, true
}

// AggregateAccounts executes the spec at account granularity: one output
// row per distinct (path, account) key, one summed amount per column.
// Rows come back sorted by account code for deterministic output; the
// hierarchy builder applies the full display sort later.
func AggregateAccounts(spec RollupSpec, table []MovementRecord) []AccountRow {
	type key struct {
		code0, code1, code2, code3, account string
	}
	grouped := make(map[key]*AccountRow)
	order := make([]key, 0)
	for _, row := range table {
		k := key{row.Code0, row.Code1, row.Code2, row.Code3, row.AccountCode}
		acc, ok := grouped[k]
		if !ok {
			acc = &AccountRow{
				Code0: row.Code0, Code1: row.Code1, Code2: row.Code2, Code3: row.Code3,
				Name0: row.Name0, Name1: row.Name1, Name2: row.Name2, Name3: row.Name3,
				AccountCode: row.AccountCode, AccountName: row.AccountName,
				Amounts: make(map[string]float64, len(spec.Columns)),
			}
			for _, col := range spec.Columns {
				acc.Amounts[col.Key] = 0
			}
			grouped[k] = acc
			order = append(order, k)
		}
		for _, col := range spec.Columns {
			if amt, ok := spec.columnAmount(col, row); ok {
				acc.Amounts[col.Key] += amt
			}
		}
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].code0 != order[j].code0 {
			return order[i].code0 < order[j].code0
		}
		return order[i].account < order[j].account
	})
	out := make([]AccountRow, 0, len(order))
	for _, k := range order {
		out = append(out, *grouped[k])
	}
	return out
}

// AggregateCategories executes the spec at top-level category granularity.
// With Variance set and at least two columns, each category carries the
// variance between the first two columns.
func AggregateCategories(spec RollupSpec, table []MovementRecord) []CategoryRow {
	grouped := make(map[string]*CategoryRow)
	names := make([]string, 0)
	for _, row := range table {
		cat, ok := grouped[row.Name0]
		if !ok {
			cat = &CategoryRow{Name0: row.Name0, Amounts: make(map[string]float64, len(spec.Columns))}
			for _, col := range spec.Columns {
				cat.Amounts[col.Key] = 0
			}
			grouped[row.Name0] = cat
			names = append(names, row.Name0)
		}
		for _, col := range spec.Columns {
			if amt, ok := spec.columnAmount(col, row); ok {
				cat.Amounts[col.Key] += amt
			}
		}
	}
	sort.Strings(names)
	out := make([]CategoryRow, 0, len(names))
	for _, name := range names {
		cat := grouped[name]
		if spec.Variance && len(spec.Columns) >= 2 {
			base := cat.Amounts[spec.Columns[0].Key]
			compare := cat.Amounts[spec.Columns[1].Key]
			amount := VarianceAmount(base, compare)
			cat.VarianceAmount = &amount
			cat.VariancePercent = VariancePercent(base, compare)
		}
		out = append(out, *cat)
	}
	return out
}
