// Package filter implements the movement-table filter DSL used by report
// definitions. A spec maps whitelisted fields to a scalar (exact match), a
// list (any-of) or a range object; specs compile to a typed expression tree
// interpreted by a pure evaluator.
package filter

// Spec is the JSON-shaped filter specification attached to a report
// variable. Keys are field names, values are a scalar, a []any or a
// map[string]any holding range operators.
type Spec map[string]any

// Valuer exposes the filterable fields of a table row.
type Valuer interface {
	FilterValue(field string) (string, bool)
}

// Fields accepted in a Spec. Year and period are not filterable; period
// selection is handled by the statement generator, not the filter DSL.
var allowedFields = map[string]struct{}{
	"code0":          {},
	"code1":          {},
	"code2":          {},
	"code3":          {},
	"name0":          {},
	"name1":          {},
	"name2":          {},
	"name3":          {},
	"statement_type": {},
	"account_code":   {},
	"account_name":   {},
}

// Range operators accepted inside a range object.
var rangeOperators = map[string]struct{}{
	"gte": {},
	"lte": {},
	"gt":  {},
	"lt":  {},
}

// AllowedField reports whether the field may appear in a Spec.
func AllowedField(name string) bool {
	_, ok := allowedFields[name]
	return ok
}
