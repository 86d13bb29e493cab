package statement

import (
	"fmt"
	"sort"

	"github.com/meridian-fin/meridian/internal/shared"
	"github.com/meridian-fin/meridian/internal/statement/filter"
)

// FiscalYears returns the distinct fiscal years present in the table,
// ascending.
func FiscalYears(table []MovementRecord) []int {
	seen := make(map[int]struct{})
	for _, row := range table {
		seen[row.Year] = struct{}{}
	}
	years := make([]int, 0, len(seen))
	for year := range seen {
		years = append(years, year)
	}
	sort.Ints(years)
	return years
}

// IsValidAggregate reports whether the aggregate kind is supported.
func IsValidAggregate(kind AggregateKind) bool {
	switch kind {
	case AggregateSum, AggregateAverage, AggregateAvg, AggregateCount,
		AggregateMin, AggregateMax, AggregateFirst, AggregateLast:
		return true
	}
	return false
}

// ValidateVariable checks the definition's filter and aggregate.
func ValidateVariable(def VariableDefinition) error {
	if err := filter.Validate(def.Filter); err != nil {
		return &shared.ValidationError{Subject: "variable filter", Reason: err.Error()}
	}
	if !IsValidAggregate(def.Aggregate) {
		return &shared.ResolutionError{Name: string(def.Aggregate), Reason: "unsupported aggregate"}
	}
	return nil
}

// Dependencies lists variables referenced by the definition. Variable to
// variable references are not part of the DSL yet, so the list is always
// empty; the hook exists so the renderer's contract does not change when
// they land.
func Dependencies(VariableDefinition) []string { return nil }

// ResolveVariable resolves a definition into one value per fiscal year
// present in the (unfiltered) table. Years with zero matching rows still
// appear with the aggregate's default (0), never omitted. The returned
// closure is pure: identical inputs give identical outputs.
func ResolveVariable(def VariableDefinition) func([]MovementRecord) (map[int]float64, error) {
	return func(table []MovementRecord) (map[int]float64, error) {
		if table == nil {
			return nil, &shared.DataError{Reason: "statement: movement table required"}
		}
		if err := ValidateVariable(def); err != nil {
			return nil, err
		}
		expr, err := filter.Compile(def.Filter)
		if err != nil {
			return nil, &shared.ValidationError{Subject: "variable filter", Reason: err.Error()}
		}

		matched := filter.Apply[MovementRecord](expr)(table)
		// Chronological order guarantees stable first/last semantics even
		// when the loader returns rows unsorted.
		sort.SliceStable(matched, func(i, j int) bool {
			if matched[i].Year != matched[j].Year {
				return matched[i].Year < matched[j].Year
			}
			return matched[i].Period < matched[j].Period
		})

		byYear := make(map[int][]MovementRecord)
		for _, row := range matched {
			byYear[row.Year] = append(byYear[row.Year], row)
		}

		result := make(map[int]float64)
		for _, year := range FiscalYears(table) {
			result[year] = aggregate(def.Aggregate, byYear[year])
		}
		return result, nil
	}
}

func aggregate(kind AggregateKind, rows []MovementRecord) float64 {
	switch kind {
	case AggregateSum:
		var total float64
		for _, row := range rows {
			total += row.Amount
		}
		return total
	case AggregateAverage, AggregateAvg:
		if len(rows) == 0 {
			return 0
		}
		var total float64
		for _, row := range rows {
			total += row.Amount
		}
		return total / float64(len(rows))
	case AggregateCount:
		return float64(len(rows))
	case AggregateMin:
		if len(rows) == 0 {
			return 0
		}
		min := rows[0].Amount
		for _, row := range rows[1:] {
			if row.Amount < min {
				min = row.Amount
			}
		}
		return min
	case AggregateMax:
		if len(rows) == 0 {
			return 0
		}
		max := rows[0].Amount
		for _, row := range rows[1:] {
			if row.Amount > max {
				max = row.Amount
			}
		}
		return max
	case AggregateFirst:
		if len(rows) == 0 {
			return 0
		}
		return rows[0].Amount
	case AggregateLast:
		if len(rows) == 0 {
			return 0
		}
		return rows[len(rows)-1].Amount
	}
	return 0
}

// ResolveVariables resolves a whole mapping of definitions. A failure in
// any single variable fails the call naming that variable; an empty map
// resolves to an empty result.
func ResolveVariables(defs map[string]VariableDefinition) func([]MovementRecord) (map[string]map[int]float64, error) {
	return func(table []MovementRecord) (map[string]map[int]float64, error) {
		if defs == nil {
			return nil, &shared.ValidationError{Subject: "variables", Reason: "definitions required"}
		}
		if table == nil {
			return nil, &shared.DataError{Reason: "statement: movement table required"}
		}
		names := make([]string, 0, len(defs))
		for name := range defs {
			names = append(names, name)
		}
		sort.Strings(names)

		resolved := make(map[string]map[int]float64, len(defs))
		for _, name := range names {
			values, err := ResolveVariable(defs[name])(table)
			if err != nil {
				return nil, &shared.ResolutionError{Name: name, Reason: fmt.Sprintf("resolve: %v", err)}
			}
			resolved[name] = values
		}
		return resolved, nil
	}
}

// Partial applications of ResolveVariable for the common aggregates.

// ResolveSum resolves a filter with the sum aggregate.
func ResolveSum(spec filter.Spec) func([]MovementRecord) (map[int]float64, error) {
	return ResolveVariable(VariableDefinition{Filter: spec, Aggregate: AggregateSum})
}

// ResolveAverage resolves a filter with the average aggregate.
func ResolveAverage(spec filter.Spec) func([]MovementRecord) (map[int]float64, error) {
	return ResolveVariable(VariableDefinition{Filter: spec, Aggregate: AggregateAverage})
}

// ResolveCount resolves a filter with the count aggregate.
func ResolveCount(spec filter.Spec) func([]MovementRecord) (map[int]float64, error) {
	return ResolveVariable(VariableDefinition{Filter: spec, Aggregate: AggregateCount})
}

// ResolveWithAggregate resolves a filter with an arbitrary aggregate.
func ResolveWithAggregate(kind AggregateKind) func(filter.Spec) func([]MovementRecord) (map[int]float64, error) {
	return func(spec filter.Spec) func([]MovementRecord) (map[int]float64, error) {
		return ResolveVariable(VariableDefinition{Filter: spec, Aggregate: kind})
	}
}
