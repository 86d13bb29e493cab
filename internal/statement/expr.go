package statement

import (
	"fmt"
	"math"

	"github.com/google/cel-go/cel"

	"github.com/meridian-fin/meridian/internal/shared"
)

// Evaluator compiles and runs the arithmetic expressions of calculated
// layout items. Expressions are CEL programs over the report's resolved
// variables (declared as doubles) plus a `rows` map exposing previously
// emitted row amounts by label, e.g.
//
//	revenue - cogs
//	rows["Gross Margin"] / revenue * 100.0
//
// One evaluator serves a whole report; programs are compiled once and then
// evaluated independently per output column with a per-column activation.
type Evaluator struct {
	env      *cel.Env
	varNames []string
}

// NewEvaluator declares the given variable names and the rows map in a
// fresh CEL environment.
func NewEvaluator(varNames []string) (*Evaluator, error) {
	opts := []cel.EnvOption{
		cel.Variable("rows", cel.MapType(cel.StringType, cel.DoubleType)),
	}
	for _, name := range varNames {
		opts = append(opts, cel.Variable(name, cel.DoubleType))
	}
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("statement: expression environment: %w", err)
	}
	return &Evaluator{env: env, varNames: varNames}, nil
}

// Compile parses and type-checks one expression.
func (e *Evaluator) Compile(expression string) (cel.Program, error) {
	if e == nil || e.env == nil {
		return nil, &shared.ValidationError{Subject: "expression", Reason: "evaluator not initialised"}
	}
	ast, iss := e.env.Compile(expression)
	if iss != nil && iss.Err() != nil {
		return nil, &shared.ValidationError{Subject: "expression", Reason: iss.Err().Error()}
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, &shared.ValidationError{Subject: "expression", Reason: err.Error()}
	}
	return prg, nil
}

// Evaluate runs a compiled program against one column's variable values
// and the rows emitted so far. Non-finite results (division by zero under
// IEEE arithmetic) collapse to 0 to match the engine's tolerant arithmetic.
func (e *Evaluator) Evaluate(prg cel.Program, vars map[string]float64, rows map[string]float64) (float64, error) {
	if prg == nil {
		return 0, &shared.ValidationError{Subject: "expression", Reason: "program required"}
	}
	activation := make(map[string]any, len(e.varNames)+1)
	for _, name := range e.varNames {
		activation[name] = vars[name]
	}
	if rows == nil {
		rows = map[string]float64{}
	}
	activation["rows"] = rows

	out, _, err := prg.Eval(activation)
	if err != nil {
		return 0, &shared.ResolutionError{Name: "expression", Reason: err.Error()}
	}
	value, err := toFloat(out.Value())
	if err != nil {
		return 0, err
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, nil
	}
	return value, nil
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int64:
		return float64(t), nil
	case uint64:
		return float64(t), nil
	}
	return 0, &shared.ResolutionError{Name: "expression", Reason: fmt.Sprintf("non-numeric result %T", v)}
}

// VarianceAmount is the absolute difference between a baseline and a
// comparison value.
func VarianceAmount(base, compare float64) float64 { return compare - base }

// VariancePercent applies the engine's single zero-baseline policy: both
// values zero gives 0; a zero baseline against a non-zero comparison has no
// meaningful percentage and yields nil (rendered "n/a"); everything else is
// (compare-base)/|base|*100.
func VariancePercent(base, compare float64) *float64 {
	if base == 0 && compare == 0 {
		zero := 0.0
		return &zero
	}
	if base == 0 {
		return nil
	}
	pct := (compare - base) / math.Abs(base) * 100
	return &pct
}
