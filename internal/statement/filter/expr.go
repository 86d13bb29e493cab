package filter

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Expr is a compiled filter expression. Expressions are pure; Matches never
// mutates the row.
type Expr interface {
	Matches(v Valuer) bool
}

// Exact matches when the field equals the value.
type Exact struct {
	Field string
	Value string
}

// Matches implements Expr.
func (e Exact) Matches(v Valuer) bool {
	got, ok := v.FilterValue(e.Field)
	return ok && got == e.Value
}

// AnyOf matches when the field equals any of the listed values.
type AnyOf struct {
	Field  string
	Values []string
}

// Matches implements Expr.
func (e AnyOf) Matches(v Valuer) bool {
	got, ok := v.FilterValue(e.Field)
	if !ok {
		return false
	}
	for _, want := range e.Values {
		if got == want {
			return true
		}
	}
	return false
}

// Range matches when the field lies within the configured bounds. Bounds
// are AND-combined. Comparison is numeric when both sides parse as numbers,
// lexicographic otherwise.
type Range struct {
	Field string
	GTE   *string
	GT    *string
	LTE   *string
	LT    *string
}

// Matches implements Expr.
func (e Range) Matches(v Valuer) bool {
	got, ok := v.FilterValue(e.Field)
	if !ok {
		return false
	}
	if e.GTE != nil && compare(got, *e.GTE) < 0 {
		return false
	}
	if e.GT != nil && compare(got, *e.GT) <= 0 {
		return false
	}
	if e.LTE != nil && compare(got, *e.LTE) > 0 {
		return false
	}
	if e.LT != nil && compare(got, *e.LT) >= 0 {
		return false
	}
	return true
}

// And matches when every child expression matches. An empty And matches
// everything, which makes it the natural compilation of an empty Spec.
type And struct {
	Exprs []Expr
}

// Matches implements Expr.
func (e And) Matches(v Valuer) bool {
	for _, child := range e.Exprs {
		if !child.Matches(v) {
			return false
		}
	}
	return true
}

// Compile validates the spec and builds its expression tree. Fields are
// compiled in sorted order so the tree shape is deterministic.
func Compile(spec Spec) (Expr, error) {
	if err := Validate(spec); err != nil {
		return nil, err
	}
	fields := make([]string, 0, len(spec))
	for field := range spec {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	exprs := make([]Expr, 0, len(fields))
	for _, field := range fields {
		switch v := spec[field].(type) {
		case []any:
			values := make([]string, len(v))
			for i, item := range v {
				values[i] = formatScalar(item)
			}
			exprs = append(exprs, AnyOf{Field: field, Values: values})
		case map[string]any:
			r := Range{Field: field}
			if raw, ok := v["gte"]; ok {
				s := formatScalar(raw)
				r.GTE = &s
			}
			if raw, ok := v["gt"]; ok {
				s := formatScalar(raw)
				r.GT = &s
			}
			if raw, ok := v["lte"]; ok {
				s := formatScalar(raw)
				r.LTE = &s
			}
			if raw, ok := v["lt"]; ok {
				s := formatScalar(raw)
				r.LT = &s
			}
			exprs = append(exprs, r)
		default:
			exprs = append(exprs, Exact{Field: field, Value: formatScalar(v)})
		}
	}
	return And{Exprs: exprs}, nil
}

// Apply returns a curried, pure row filter for a compiled expression. A nil
// expression is the identity.
func Apply[T Valuer](expr Expr) func([]T) []T {
	return func(rows []T) []T {
		if expr == nil {
			return rows
		}
		if and, ok := expr.(And); ok && len(and.Exprs) == 0 {
			return rows
		}
		out := make([]T, 0, len(rows))
		for _, row := range rows {
			if expr.Matches(row) {
				out = append(out, row)
			}
		}
		return out
	}
}

// ApplySafe validates and compiles the spec before currying, returning the
// error instead of compiling lazily.
func ApplySafe[T Valuer](spec Spec) (func([]T) []T, error) {
	expr, err := Compile(spec)
	if err != nil {
		return nil, err
	}
	return Apply[T](expr), nil
}

func formatScalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	}
	return fmt.Sprintf("%v", v)
}

// compare orders two field values, numerically when both parse as numbers.
func compare(a, b string) int {
	fa, errA := strconv.ParseFloat(strings.TrimSpace(a), 64)
	fb, errB := strconv.ParseFloat(strings.TrimSpace(b), 64)
	if errA == nil && errB == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}
