package statement

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/meridian-fin/meridian/internal/shared"
)

// Registry holds report definitions for the renderer. It is an explicit
// object with a load/register/clear lifecycle, passed to callers instead
// of a package-global. Reads after loading are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	defs     map[string]ReportDefinition
	validate *validator.Validate
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		defs:     make(map[string]ReportDefinition),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Register validates and stores one definition, replacing any previous
// version under the same report id.
func (r *Registry) Register(def ReportDefinition) error {
	if err := r.Validate(def); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[def.ReportID] = def
	return nil
}

// Load replaces the registry contents with the given definitions. Nothing
// is stored if any single definition fails validation.
func (r *Registry) Load(defs []ReportDefinition) error {
	for _, def := range defs {
		if err := r.Validate(def); err != nil {
			return fmt.Errorf("load %s: %w", def.ReportID, err)
		}
	}
	next := make(map[string]ReportDefinition, len(defs))
	for _, def := range defs {
		next[def.ReportID] = def
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs = next
	return nil
}

// LoadJSON parses and loads a JSON array of definitions.
func (r *Registry) LoadJSON(raw []byte) error {
	var defs []ReportDefinition
	if err := json.Unmarshal(raw, &defs); err != nil {
		return &shared.ValidationError{Subject: "definitions", Reason: err.Error()}
	}
	return r.Load(defs)
}

// Get returns the definition registered under the id.
func (r *Registry) Get(reportID string) (ReportDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[reportID]
	if !ok {
		return ReportDefinition{}, fmt.Errorf("report %s: %w", reportID, shared.ErrNotFound)
	}
	return def, nil
}

// List returns all registered definitions ordered by report id.
func (r *Registry) List() []ReportDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ReportDefinition, 0, len(r.defs))
	for _, def := range r.defs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReportID < out[j].ReportID })
	return out
}

// Clear drops every registered definition.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs = make(map[string]ReportDefinition)
}

// Validate runs the structural tag checks plus the semantic ones the tags
// cannot express: statement type, per-kind item requirements, variable
// definitions and that every layout reference resolves.
func (r *Registry) Validate(def ReportDefinition) error {
	if err := r.validate.Struct(def); err != nil {
		return &shared.ValidationError{Subject: "report " + def.ReportID, Reason: err.Error()}
	}
	switch def.StatementType {
	case StatementBalanceSheet, StatementIncome, StatementCashFlow:
	default:
		return &shared.ValidationError{Subject: "report " + def.ReportID, Reason: fmt.Sprintf("unknown statement type %q", def.StatementType)}
	}
	for name, v := range def.Variables {
		if err := ValidateVariable(v); err != nil {
			return &shared.ValidationError{Subject: fmt.Sprintf("report %s variable %s", def.ReportID, name), Reason: err.Error()}
		}
	}
	for _, item := range def.Layout {
		if err := validateItem(def, item); err != nil {
			return err
		}
	}
	return nil
}

func validateItem(def ReportDefinition, item LayoutItem) error {
	subject := fmt.Sprintf("report %s item %q", def.ReportID, item.Label)
	switch item.Kind {
	case LayoutVariable:
		if item.Variable == "" {
			return &shared.ValidationError{Subject: subject, Reason: "variable name required"}
		}
		if _, ok := def.Variables[item.Variable]; !ok {
			return &shared.ValidationError{Subject: subject, Reason: fmt.Sprintf("undefined variable %q", item.Variable)}
		}
	case LayoutCalculated:
		if item.Expression == "" {
			return &shared.ValidationError{Subject: subject, Reason: "expression required"}
		}
	case LayoutCategory:
		if item.Category == "" {
			return &shared.ValidationError{Subject: subject, Reason: "category name required"}
		}
	case LayoutSubtotal, LayoutSpacer:
	default:
		return &shared.ValidationError{Subject: subject, Reason: fmt.Sprintf("unknown kind %q", item.Kind)}
	}
	return nil
}
