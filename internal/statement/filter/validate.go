package filter

import (
	"fmt"
	"sort"
)

// Validate checks a Spec against the DSL contract. It rejects unknown
// fields, nil values, empty or nil-containing lists, empty range objects,
// unknown range operators and nil range bounds. An empty Spec is valid and
// matches everything.
func Validate(spec Spec) error {
	if spec == nil {
		return fmt.Errorf("filter: spec must be an object")
	}
	fields := make([]string, 0, len(spec))
	for field := range spec {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		if !AllowedField(field) {
			return fmt.Errorf("filter: unknown field %q", field)
		}
		value := spec[field]
		if value == nil {
			return fmt.Errorf("filter: field %q has null value", field)
		}
		switch v := value.(type) {
		case []any:
			if len(v) == 0 {
				return fmt.Errorf("filter: field %q has empty list", field)
			}
			for i, item := range v {
				if item == nil {
					return fmt.Errorf("filter: field %q list contains null at index %d", field, i)
				}
				if !scalar(item) {
					return fmt.Errorf("filter: field %q list contains non-scalar at index %d", field, i)
				}
			}
		case map[string]any:
			if len(v) == 0 {
				return fmt.Errorf("filter: field %q has empty range object", field)
			}
			ops := make([]string, 0, len(v))
			for op := range v {
				ops = append(ops, op)
			}
			sort.Strings(ops)
			for _, op := range ops {
				if _, ok := rangeOperators[op]; !ok {
					return fmt.Errorf("filter: field %q has unknown range operator %q", field, op)
				}
				if v[op] == nil {
					return fmt.Errorf("filter: field %q range bound %q is null", field, op)
				}
				if !scalar(v[op]) {
					return fmt.Errorf("filter: field %q range bound %q is not a scalar", field, op)
				}
			}
		default:
			if !scalar(value) {
				return fmt.Errorf("filter: field %q has unsupported value type %T", field, value)
			}
		}
	}
	return nil
}

func scalar(v any) bool {
	switch v.(type) {
	case string, float64, float32, int, int32, int64, bool:
		return true
	}
	return false
}
