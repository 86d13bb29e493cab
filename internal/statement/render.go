package statement

import (
	"sort"

	"github.com/meridian-fin/meridian/internal/shared"
	"github.com/meridian-fin/meridian/internal/statement/filter"
)

// RenderContext carries everything one layout walk needs. The table and
// definition are read-only for the duration of the call.
type RenderContext struct {
	Definition ReportDefinition
	Columns    []ColumnSpec
	Table      []MovementRecord
	// SignMultiplier is applied to movement amounts at aggregation time;
	// income statements pass -1.
	SignMultiplier float64
	// Categories backs category layout items, keyed by top-level name.
	Categories []CategoryRow
	// Variance adds first-vs-second column variance to amount rows.
	Variance bool
	// LTMRanges is set in LTM mode; the "ltm" total column sums every
	// slot of the rolling window, which may span two fiscal years.
	LTMRanges []LTMRange
}

// RenderReport walks the definition's layout items strictly by order and
// emits one GridRow per item. Calculated items may reference named
// variables and already-emitted rows; an unresolved reference fails with
// an error naming it, never a silent default. No rows are emitted for a
// malformed definition.
func RenderReport(ctx RenderContext) ([]GridRow, error) {
	def := ctx.Definition
	if len(def.Layout) == 0 {
		return nil, &shared.ValidationError{Subject: "report " + def.ReportID, Reason: "layout is empty"}
	}
	if ctx.Table == nil {
		return nil, &shared.DataError{Reason: "statement: movement table required"}
	}
	for name, v := range def.Variables {
		if err := ValidateVariable(v); err != nil {
			return nil, &shared.ValidationError{Subject: "variable " + name, Reason: err.Error()}
		}
	}

	sign := ctx.SignMultiplier
	if sign == 0 {
		sign = 1
	}

	resolved, err := resolvePerColumn(def.Variables, ctx.Table, ctx.Columns, sign, ctx.LTMRanges)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(def.Variables))
	for name := range def.Variables {
		names = append(names, name)
	}
	sort.Strings(names)
	evaluator, err := NewEvaluator(names)
	if err != nil {
		return nil, err
	}

	items := append([]LayoutItem{}, def.Layout...)
	sort.SliceStable(items, func(i, j int) bool { return items[i].Order < items[j].Order })

	categories := make(map[string]CategoryRow, len(ctx.Categories))
	for _, cat := range ctx.Categories {
		categories[cat.Name0] = cat
	}

	// emitted[colKey][label] backs rows[...] references in expressions.
	emitted := make(map[string]map[string]float64, len(ctx.Columns))
	for _, col := range ctx.Columns {
		emitted[col.Key] = make(map[string]float64)
	}

	var out []GridRow
	for _, item := range items {
		row, err := renderItem(item, ctx, resolved, evaluator, categories, emitted, out)
		if err != nil {
			return nil, err
		}
		if row.Amounts != nil {
			for _, col := range ctx.Columns {
				emitted[col.Key][row.Label] = row.Amounts[col.Key]
			}
		}
		out = append(out, row)
	}
	for i := range out {
		out[i].Order = i
	}
	return out, nil
}

// resolvePerColumn aggregates each variable inside every column window
// independently, so the same definition serves two-year comparisons and
// 13-column LTM grids alike.
func resolvePerColumn(defs map[string]VariableDefinition, table []MovementRecord, cols []ColumnSpec, sign float64, ltmRanges []LTMRange) (map[string]map[string]float64, error) {
	resolved := make(map[string]map[string]float64, len(defs))
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		def := defs[name]
		expr, err := filter.Compile(def.Filter)
		if err != nil {
			return nil, &shared.ResolutionError{Name: name, Reason: err.Error()}
		}
		matched := filter.Apply[MovementRecord](expr)(table)
		sort.SliceStable(matched, func(i, j int) bool {
			if matched[i].Year != matched[j].Year {
				return matched[i].Year < matched[j].Year
			}
			return matched[i].Period < matched[j].Period
		})

		perCol := make(map[string]float64, len(cols))
		for _, col := range cols {
			var window []MovementRecord
			for _, row := range matched {
				if columnCovers(col, row, ltmRanges) {
					row.Amount *= sign
					window = append(window, row)
				}
			}
			perCol[col.Key] = aggregate(def.Aggregate, window)
		}
		resolved[name] = perCol
	}
	return resolved, nil
}

// columnCovers matches a movement row to a column. The rolling-total
// column cannot express a two-year window through its own bounds, so it
// tests the window ranges directly, as RollupSpec.columnAmount does.
func columnCovers(col ColumnSpec, row MovementRecord, ltmRanges []LTMRange) bool {
	if col.Key == ltmTotalKey && len(ltmRanges) > 0 {
		return InLTMWindow(ltmRanges, row.Year, row.Period)
	}
	return col.Covers(row.Year, row.Period)
}

func renderItem(
	item LayoutItem,
	ctx RenderContext,
	resolved map[string]map[string]float64,
	evaluator *Evaluator,
	categories map[string]CategoryRow,
	emitted map[string]map[string]float64,
	sofar []GridRow,
) (GridRow, error) {
	style := item.Style
	if style == "" {
		style = StyleNormal
	}
	base := GridRow{
		Label:  item.Label,
		Indent: item.Indent,
		Style:  style,
		Meta:   RowMeta{Level: item.Indent},
	}

	switch item.Kind {
	case LayoutSpacer:
		base.Type = RowSpacer
		base.Style = StyleSpacer
		return base, nil

	case LayoutVariable:
		values, ok := resolved[item.Variable]
		if !ok {
			return GridRow{}, &shared.ResolutionError{Name: item.Variable, Reason: "variable not defined"}
		}
		base.Type = RowVariable
		base.Amounts = copyAmounts(values)

	case LayoutCalculated:
		prg, err := evaluator.Compile(item.Expression)
		if err != nil {
			return GridRow{}, &shared.ValidationError{Subject: "item " + item.Label, Reason: err.Error()}
		}
		amounts := make(map[string]float64, len(ctx.Columns))
		for _, col := range ctx.Columns {
			vars := make(map[string]float64, len(resolved))
			for name, perCol := range resolved {
				vars[name] = perCol[col.Key]
			}
			value, err := evaluator.Evaluate(prg, vars, emitted[col.Key])
			if err != nil {
				return GridRow{}, err
			}
			amounts[col.Key] = value
		}
		base.Type = RowCalculated
		base.Amounts = amounts

	case LayoutCategory:
		cat, ok := categories[item.Category]
		if !ok {
			return GridRow{}, &shared.ResolutionError{Name: item.Category, Reason: "category not in table"}
		}
		base.Type = RowCategory
		base.Amounts = copyAmounts(cat.Amounts)

	case LayoutSubtotal:
		base.Type = RowSubtotal
		if base.Style == StyleNormal {
			base.Style = StyleSubtotal
		}
		base.Amounts = subtotalSince(sofar, item.Indent, ctx.Columns)

	default:
		return GridRow{}, &shared.ValidationError{Subject: "item " + item.Label, Reason: "unknown layout kind " + string(item.Kind)}
	}

	if ctx.Variance && len(ctx.Columns) >= 2 && base.Amounts != nil {
		first := base.Amounts[ctx.Columns[0].Key]
		second := base.Amounts[ctx.Columns[1].Key]
		amount := VarianceAmount(first, second)
		base.VarianceAmount = &amount
		base.VariancePercent = VariancePercent(first, second)
	}
	return base, nil
}

// subtotalSince sums amount rows emitted after the previous subtotal or
// category boundary, at the subtotal's own indent.
func subtotalSince(rows []GridRow, indent int, cols []ColumnSpec) map[string]float64 {
	sums := zeroAmounts(cols)
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		if row.Type == RowSubtotal || row.Type == RowCategory {
			break
		}
		if row.Amounts == nil || row.Indent != indent {
			continue
		}
		addAmounts(sums, row.Amounts)
	}
	return sums
}
