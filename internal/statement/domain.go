// Package statement implements the report-definition evaluation engine:
// variable resolution over ledger movements, expression evaluation,
// grouped rollups, LTM window calculation, sign conventions and the
// hierarchy builder that assembles display rows for a financial statement.
package statement

import (
	"time"

	"github.com/meridian-fin/meridian/internal/statement/filter"
)

// StatementType identifies which financial statement a definition or
// movement row belongs to.
type StatementType string

const (
	StatementBalanceSheet StatementType = "balance_sheet"
	StatementIncome       StatementType = "income_statement"
	StatementCashFlow     StatementType = "cash_flow"
)

// MovementRecord is one normalized ledger movement: a debit/credit amount
// posted to an account in a fiscal month. Each account maps to exactly one
// Code0..Code3 / Name0..Name3 hierarchy path. NULL amounts are normalized
// to 0 by the loader.
type MovementRecord struct {
	Year          int
	Period        int // fiscal month 1..12
	AccountCode   string
	AccountName   string
	Code0         string
	Code1         string
	Code2         string
	Code3         string
	Name0         string
	Name1         string
	Name2         string
	Name3         string
	StatementType StatementType
	Amount        float64
}

// FilterValue implements filter.Valuer.
func (m MovementRecord) FilterValue(field string) (string, bool) {
	switch field {
	case "code0":
		return m.Code0, true
	case "code1":
		return m.Code1, true
	case "code2":
		return m.Code2, true
	case "code3":
		return m.Code3, true
	case "name0":
		return m.Name0, true
	case "name1":
		return m.Name1, true
	case "name2":
		return m.Name2, true
	case "name3":
		return m.Name3, true
	case "statement_type":
		return string(m.StatementType), true
	case "account_code":
		return m.AccountCode, true
	case "account_name":
		return m.AccountName, true
	}
	return "", false
}

// PeriodRef pins a fiscal month inside a fiscal year.
type PeriodRef struct {
	Year   int
	Period int
}

// ColumnSpec describes one amount column of the output grid. Columns are
// always threaded as an explicit ordered list; nothing downstream assumes
// two columns or hardcoded year keys.
type ColumnSpec struct {
	Key         string `json:"key"`
	Year        int    `json:"year"`
	StartPeriod int    `json:"startPeriod"`
	EndPeriod   int    `json:"endPeriod"`
	Label       string `json:"label"`
}

// Covers reports whether the column window contains the given movement.
func (c ColumnSpec) Covers(year, period int) bool {
	return year == c.Year && period >= c.StartPeriod && period <= c.EndPeriod
}

// RowType classifies a display row.
type RowType string

const (
	RowVariable   RowType = "variable"
	RowCalculated RowType = "calculated"
	RowCategory   RowType = "category"
	RowSubtotal   RowType = "subtotal"
	RowSpacer     RowType = "spacer"
	RowGroup      RowType = "group"
	RowAccount    RowType = "account"
	RowComputed   RowType = "computed"
)

// RowStyle drives presentation in the external grid layer.
type RowStyle string

const (
	StyleNormal   RowStyle = "normal"
	StyleTotal    RowStyle = "total"
	StyleMetric   RowStyle = "metric"
	StyleSubtotal RowStyle = "subtotal"
	StyleSpacer   RowStyle = "spacer"
)

// RowMeta carries non-display context for a grid row.
type RowMeta struct {
	AccountCode string   `json:"accountCode,omitempty"`
	Path        []string `json:"path,omitempty"`
	Level       int      `json:"level"`
	Source      string   `json:"source,omitempty"`
}

// GridRow is one ordered display row of a generated statement. Amounts is
// keyed by ColumnSpec.Key and nil for spacer rows. VariancePercent is nil
// when the baseline is zero and the comparison is not (rendered "n/a").
type GridRow struct {
	Order           int                `json:"order"`
	Label           string             `json:"label"`
	Type            RowType            `json:"type"`
	Style           RowStyle           `json:"style"`
	Indent          int                `json:"indent"`
	Amounts         map[string]float64 `json:"amounts,omitempty"`
	VarianceAmount  *float64           `json:"varianceAmount,omitempty"`
	VariancePercent *float64           `json:"variancePercent,omitempty"`
	Formatted       map[string]string  `json:"formatted,omitempty"`
	Meta            RowMeta            `json:"_metadata"`
}

// AggregateKind names a supported variable aggregate.
type AggregateKind string

const (
	AggregateSum     AggregateKind = "sum"
	AggregateAverage AggregateKind = "average"
	AggregateAvg     AggregateKind = "avg"
	AggregateCount   AggregateKind = "count"
	AggregateMin     AggregateKind = "min"
	AggregateMax     AggregateKind = "max"
	AggregateFirst   AggregateKind = "first"
	AggregateLast    AggregateKind = "last"
)

// VariableDefinition pairs a filter with an aggregate; it resolves to one
// value per fiscal year present in the table.
type VariableDefinition struct {
	Filter      filter.Spec   `json:"filter" validate:"required"`
	Aggregate   AggregateKind `json:"aggregate" validate:"required"`
	Description string        `json:"description,omitempty"`
}

// LayoutKind names a report layout item variant.
type LayoutKind string

const (
	LayoutVariable   LayoutKind = "variable"
	LayoutCalculated LayoutKind = "calculated"
	LayoutCategory   LayoutKind = "category"
	LayoutSubtotal   LayoutKind = "subtotal"
	LayoutSpacer     LayoutKind = "spacer"
)

// LayoutItem describes one row of a report definition.
type LayoutItem struct {
	Kind       LayoutKind `json:"kind" validate:"required"`
	Order      int        `json:"order"`
	Label      string     `json:"label"`
	Indent     int        `json:"indent" validate:"gte=0,lte=5"`
	Style      RowStyle   `json:"style"`
	Variable   string     `json:"variable,omitempty"`
	Expression string     `json:"expression,omitempty"`
	Category   string     `json:"category,omitempty"`
}

// ReportDefinition is a declarative statement layout: named variables plus
// ordered layout items. Definitions arrive pre-validated by the external
// registry loader, but the engine still defends against unresolvable
// references at render time.
type ReportDefinition struct {
	ReportID      string                        `json:"reportId" validate:"required"`
	Name          string                        `json:"name" validate:"required"`
	Version       string                        `json:"version"`
	StatementType StatementType                 `json:"statementType" validate:"required"`
	Variables     map[string]VariableDefinition `json:"variables"`
	Layout        []LayoutItem                  `json:"layout" validate:"required,min=1,dive"`
}

// LTMRange is one contiguous slice of a rolling window inside a single
// fiscal year.
type LTMRange struct {
	Year        int `json:"year"`
	StartPeriod int `json:"startPeriod"`
	EndPeriod   int `json:"endPeriod"`
}

// Months returns the number of periods covered by the range.
func (r LTMRange) Months() int { return r.EndPeriod - r.StartPeriod + 1 }

// LTMAvailability flags whether every expected (year, period) slot of the
// window has data. Incomplete windows are non-fatal; generation proceeds
// with partial data.
type LTMAvailability struct {
	Complete bool   `json:"complete"`
	Message  string `json:"message,omitempty"`
}

// LTMInfo is the resolved rolling-window context for LTM-mode generation.
type LTMInfo struct {
	Ranges       []LTMRange
	Latest       PeriodRef
	Label        string
	FilteredData []MovementRecord
	Availability LTMAvailability
}

// StatementMetrics carries statement-specific figures alongside the rows.
type StatementMetrics struct {
	NetIncome    float64 `json:"netIncome,omitempty"`
	StartingCash float64 `json:"startingCash,omitempty"`
	NetChange    float64 `json:"netChange,omitempty"`
	EndingCash   float64 `json:"endingCash,omitempty"`
	Balanced     bool    `json:"balanced"`
	Imbalance    float64 `json:"imbalance"`
}

// StatementMeta identifies one generation run.
type StatementMeta struct {
	ReportID     string    `json:"reportId,omitempty"`
	Name         string    `json:"name,omitempty"`
	Version      string    `json:"version,omitempty"`
	GenerationID string    `json:"generationId"`
	GeneratedAt  time.Time `json:"generatedAt"`
	PeriodOption string    `json:"periodOption"`
	Warnings     []string  `json:"warnings,omitempty"`
}

// Statement is the engine's entire externally visible contract: ordered
// rows, their column descriptors, metrics and metadata.
type Statement struct {
	Type    StatementType    `json:"type"`
	Columns []ColumnSpec     `json:"columns"`
	Rows    []GridRow        `json:"rows"`
	Metrics StatementMetrics `json:"metrics"`
	Meta    StatementMeta    `json:"meta"`
}

// AccountRow is an account-level aggregate produced by a rollup, carrying
// the full hierarchy path and one amount per output column.
type AccountRow struct {
	Code0       string
	Code1       string
	Code2       string
	Code3       string
	Name0       string
	Name1       string
	Name2       string
	Name3       string
	AccountCode string
	AccountName string
	Amounts     map[string]float64
}

// CategoryRow is a top-level category aggregate.
type CategoryRow struct {
	Name0           string
	Amounts         map[string]float64
	VarianceAmount  *float64
	VariancePercent *float64
}
