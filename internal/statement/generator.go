package statement

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-fin/meridian/internal/shared"
)

// PeriodMode is the aggregation window class a period option selects.
type PeriodMode string

const (
	ModeAll     PeriodMode = "all"
	ModeSingle  PeriodMode = "single"
	ModeQuarter PeriodMode = "quarter"
	ModeLTM     PeriodMode = "ltm"
)

// PeriodOption is a parsed period selector.
type PeriodOption struct {
	Raw     string
	Year    int
	Mode    PeriodMode
	Period  int
	Quarter int
}

// ParsePeriodOption interprets the string codes external callers pass:
//
//	"2025-all"  full fiscal year
//	"2025-3"    single period (also "2025-P03")
//	"2025-Q2"   fiscal quarter
//	"2025-ltm"  rolling twelve months ending at the latest loaded period
func ParsePeriodOption(s string) (PeriodOption, error) {
	year, rest, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return PeriodOption{}, &shared.ValidationError{Subject: "period option", Reason: fmt.Sprintf("malformed %q", s)}
	}
	y, err := strconv.Atoi(year)
	if err != nil || y < 1900 || y > 9999 {
		return PeriodOption{}, &shared.ValidationError{Subject: "period option", Reason: fmt.Sprintf("bad year in %q", s)}
	}
	opt := PeriodOption{Raw: s, Year: y}

	switch lower := strings.ToLower(rest); {
	case lower == "all":
		opt.Mode = ModeAll
	case lower == "ltm":
		opt.Mode = ModeLTM
	case strings.HasPrefix(lower, "q"):
		q, err := strconv.Atoi(lower[1:])
		if err != nil || !shared.ValidQuarter(q) {
			return PeriodOption{}, &shared.ValidationError{Subject: "period option", Reason: fmt.Sprintf("bad quarter in %q", s)}
		}
		opt.Mode = ModeQuarter
		opt.Quarter = q
	default:
		p, err := strconv.Atoi(strings.TrimPrefix(lower, "p"))
		if err != nil || !shared.ValidPeriod(p) {
			return PeriodOption{}, &shared.ValidationError{Subject: "period option", Reason: fmt.Sprintf("bad period in %q", s)}
		}
		opt.Mode = ModeSingle
		opt.Period = p
	}
	return opt, nil
}

// Window returns the period window the option selects within its year.
func (o PeriodOption) Window() (int, int) {
	switch o.Mode {
	case ModeSingle:
		return o.Period, o.Period
	case ModeQuarter:
		return shared.QuarterBounds(o.Quarter)
	}
	return 1, 12
}

// WindowFor adjusts the window for the statement's semantics: balance
// sheets are point-in-time, so their window is always cumulative from
// period 1 to the selected end.
func (o PeriodOption) WindowFor(st StatementType) (int, int) {
	start, end := o.Window()
	if st == StatementBalanceSheet {
		return 1, end
	}
	return start, end
}

// GenerateOptions configures one statement generation.
type GenerateOptions struct {
	PeriodOption string
	// DetailLevel caps hierarchy expansion 0..5.
	DetailLevel     int
	LiabilityEquity Classifier
	Anchors         Anchors
	CashFlow        *CashFlowInputs
}

// SignFor returns the aggregation-time sign convention for a statement
// type: income statements store revenue as credits, so -1 renders it
// positive. Balance-sheet liability/equity flips happen post-aggregation.
func SignFor(st StatementType) float64 {
	if st == StatementIncome {
		return -1
	}
	return 1
}

// GenerateStatement builds a full hierarchical statement: rollup, sign
// handling, hierarchy expansion with injected computed rows, metrics and
// generation metadata.
func GenerateStatement(st StatementType, table []MovementRecord, opts GenerateOptions) (Statement, error) {
	if table == nil {
		return Statement{}, &shared.DataError{Reason: "statement: movement table required"}
	}
	opt, err := ParsePeriodOption(opts.PeriodOption)
	if err != nil {
		return Statement{}, err
	}

	sign := SignFor(st)
	var (
		spec     RollupSpec
		warnings []string
	)
	if opt.Mode == ModeLTM {
		info, err := BuildLTMInfo(table, ltmMonths)
		if err != nil {
			return Statement{}, err
		}
		if !info.Availability.Complete {
			warnings = append(warnings, info.Availability.Message)
		}
		spec = BuildLTMModeSpec(info, sign, st)
	} else {
		start, end := opt.WindowFor(st)
		spec, err = BuildNormalModeSpec(opt.Year-1, opt.Year, start, end, sign)
		if err != nil {
			return Statement{}, err
		}
	}

	accounts := AggregateAccounts(spec, table)
	anchors := opts.Anchors
	if anchors.LiabilityEquity == nil && anchors.GrossMarginAfter == nil {
		anchors = DefaultAnchors()
	}
	if st == StatementBalanceSheet {
		classify := opts.LiabilityEquity
		if classify == nil {
			classify = anchors.LiabilityEquity
		}
		accounts = FlipLiabilityEquity(accounts, classify)
	}

	rows, err := BuildHierarchy(accounts, HierarchyOptions{
		Columns:       spec.Columns,
		StatementType: st,
		DetailLevel:   opts.DetailLevel,
		Variance:      spec.Variance,
		Anchors:       anchors,
		CashFlow:      opts.CashFlow,
	})
	if err != nil {
		return Statement{}, err
	}

	return Statement{
		Type:    st,
		Columns: spec.Columns,
		Rows:    rows,
		Metrics: collectMetrics(st, rows, spec.Columns),
		Meta: StatementMeta{
			GenerationID: uuid.NewString(),
			GeneratedAt:  time.Now().UTC(),
			PeriodOption: opt.Raw,
			Warnings:     warnings,
		},
	}, nil
}

const balanceTolerance = 1e-6

// collectMetrics extracts statement figures from the injected computed
// rows. The last column is the current one in both normal and LTM mode.
func collectMetrics(st StatementType, rows []GridRow, cols []ColumnSpec) StatementMetrics {
	if len(cols) == 0 {
		return StatementMetrics{}
	}
	current := cols[len(cols)-1].Key
	bySource := make(map[string]map[string]float64)
	for _, row := range rows {
		if row.Meta.Source != "" {
			bySource[row.Meta.Source] = row.Amounts
		}
	}

	var m StatementMetrics
	switch st {
	case StatementBalanceSheet:
		assets, liabEq := bySource[SourceTotalAssets], bySource[SourceTotalLiabEq]
		m.Balanced = true
		for _, col := range cols {
			diff := assets[col.Key] - liabEq[col.Key]
			if math.Abs(diff) > balanceTolerance {
				m.Balanced = false
			}
		}
		m.Imbalance = assets[current] - liabEq[current]
		if math.Abs(m.Imbalance) <= balanceTolerance {
			m.Imbalance = 0
		}
	case StatementIncome:
		m.NetIncome = bySource[SourceNetIncome][current]
		m.Balanced = true
	case StatementCashFlow:
		m.StartingCash = bySource[SourceStartingCash][current]
		m.NetChange = bySource[SourceNetChange][current]
		m.EndingCash = bySource[SourceEndingCash][current]
		m.Balanced = math.Abs(m.StartingCash+m.NetChange-m.EndingCash) <= balanceTolerance
	}
	return m
}

// GenerateReport renders a declarative report definition: layout items
// over per-column resolved variables, with category totals backing
// category items.
func GenerateReport(def ReportDefinition, table []MovementRecord, opts GenerateOptions) (Statement, error) {
	if table == nil {
		return Statement{}, &shared.DataError{Reason: "statement: movement table required"}
	}
	opt, err := ParsePeriodOption(opts.PeriodOption)
	if err != nil {
		return Statement{}, err
	}

	sign := SignFor(def.StatementType)
	var (
		spec     RollupSpec
		catSpec  RollupSpec
		warnings []string
	)
	if opt.Mode == ModeLTM {
		info, err := BuildLTMInfo(table, ltmMonths)
		if err != nil {
			return Statement{}, err
		}
		if !info.Availability.Complete {
			warnings = append(warnings, info.Availability.Message)
		}
		spec = BuildLTMModeSpec(info, sign, def.StatementType)
		catSpec = BuildLTMCategoryTotalsSpec(info, sign, def.StatementType)
	} else {
		start, end := opt.WindowFor(def.StatementType)
		spec, err = BuildNormalModeSpec(opt.Year-1, opt.Year, start, end, sign)
		if err != nil {
			return Statement{}, err
		}
		catSpec, err = BuildCategoryTotalsSpec(opt.Year-1, opt.Year, start, end, sign)
		if err != nil {
			return Statement{}, err
		}
	}

	rows, err := RenderReport(RenderContext{
		Definition:     def,
		Columns:        spec.Columns,
		Table:          table,
		SignMultiplier: sign,
		Categories:     AggregateCategories(catSpec, table),
		Variance:       spec.Variance,
		LTMRanges:      spec.LTMRanges,
	})
	if err != nil {
		return Statement{}, fmt.Errorf("report %s: %w", def.ReportID, err)
	}

	return Statement{
		Type:    def.StatementType,
		Columns: spec.Columns,
		Rows:    rows,
		Metrics: StatementMetrics{Balanced: true},
		Meta: StatementMeta{
			ReportID:     def.ReportID,
			Name:         def.Name,
			Version:      def.Version,
			GenerationID: uuid.NewString(),
			GeneratedAt:  time.Now().UTC(),
			PeriodOption: opt.Raw,
			Warnings:     warnings,
		},
	}, nil
}

// DeriveCashFlowInputs computes the cash-flow reconciliation inputs
// indirectly: net income per column from the income-statement movements
// (display sign) and starting cash per column from the cumulative balance
// of cash accounts before the column window opens.
func DeriveCashFlowInputs(balanceSheet, income []MovementRecord, cols []ColumnSpec, isCashAccount func(MovementRecord) bool) CashFlowInputs {
	in := CashFlowInputs{
		StartingCash: zeroAmounts(cols),
		NetIncome:    zeroAmounts(cols),
	}
	for _, col := range cols {
		for _, row := range income {
			if col.Covers(row.Year, row.Period) {
				in.NetIncome[col.Key] += row.Amount * SignFor(StatementIncome)
			}
		}
		if isCashAccount == nil {
			continue
		}
		for _, row := range balanceSheet {
			if !isCashAccount(row) {
				continue
			}
			if row.Year < col.Year || (row.Year == col.Year && row.Period < col.StartPeriod) {
				in.StartingCash[col.Key] += row.Amount
			}
		}
	}
	return in
}
