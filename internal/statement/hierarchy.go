package statement

import (
	"sort"
	"strconv"
	"strings"

	"github.com/meridian-fin/meridian/internal/shared"
)

// Sources stamped on injected computed rows so callers can pick metrics
// out of the row list without positional assumptions.
const (
	SourceTotalAssets     = "total_assets"
	SourceTotalLiabEq     = "total_liabilities_equity"
	SourceGrossMargin     = "gross_margin"
	SourceOperatingResult = "operating_result"
	SourceNetIncome       = "net_income"
	SourceStartingCash    = "starting_cash"
	SourceNetChange       = "net_change_in_cash"
	SourceEndingCash      = "ending_cash"
)

// Anchors drives where statement-specific computed rows are injected.
// Matching is by pattern against section names, never by fixed index.
type Anchors struct {
	// LiabilityEquity marks balance-sheet sections whose first occurrence
	// anchors the Total Assets row.
	LiabilityEquity Classifier
	// GrossMarginAfter marks the income-statement section after which the
	// gross margin subtotal lands.
	GrossMarginAfter func(name string) bool
	// OperatingAfter marks the section after which the operating result
	// subtotal lands.
	OperatingAfter func(name string) bool
}

// DefaultAnchors matches the usual English and German chart-of-accounts
// section names.
func DefaultAnchors() Anchors {
	return Anchors{
		LiabilityEquity:  LiabilityEquityByName("Liabilities", "Equity", "Verbindlichkeiten", "Eigenkapital", "Passiva"),
		GrossMarginAfter: nameMatcher("cogs", "cost of goods", "cost of sales", "materialaufwand"),
		OperatingAfter:   nameMatcher("operating expenses", "opex", "betriebsaufwand", "personalaufwand"),
	}
}

func nameMatcher(patterns ...string) func(string) bool {
	return func(name string) bool {
		lower := strings.ToLower(name)
		for _, p := range patterns {
			if strings.Contains(lower, p) {
				return true
			}
		}
		return false
	}
}

// CashFlowInputs supplies the figures a cash-flow statement reconciles
// against, computed externally from balance-sheet deltas and the income
// statement. Maps are keyed by column key.
type CashFlowInputs struct {
	StartingCash map[string]float64
	NetIncome    map[string]float64
}

// HierarchyOptions configures one tree build.
type HierarchyOptions struct {
	Columns       []ColumnSpec
	StatementType StatementType
	// DetailLevel caps expansion depth 0..5; deeper levels fold their
	// amounts into the retained ancestor.
	DetailLevel int
	// Variance adds a first-vs-second column variance to every amount row.
	Variance bool
	Anchors  Anchors
	CashFlow *CashFlowInputs
}

const maxDetailLevel = 5

type hierNode struct {
	code, name string
	level      int
	amounts    map[string]float64
	children   map[string]*hierNode
	accounts   []AccountRow
}

func newHierNode(code, name string, level int, cols []ColumnSpec) *hierNode {
	amounts := make(map[string]float64, len(cols))
	for _, col := range cols {
		amounts[col.Key] = 0
	}
	return &hierNode{code: code, name: name, level: level, amounts: amounts, children: map[string]*hierNode{}}
}

// BuildHierarchy expands account-level rows into the full group/leaf tree:
// every ancestor node plus each leaf, amounts summed upward so a group's
// total equals the sum of its descendant leaves, sorted, indented, with
// statement-specific computed rows injected. Row order numbers are
// assigned sequentially over the final list.
func BuildHierarchy(rows []AccountRow, opts HierarchyOptions) ([]GridRow, error) {
	if opts.DetailLevel < 0 || opts.DetailLevel > maxDetailLevel {
		return nil, &shared.ValidationError{
			Subject: "hierarchy",
			Reason:  "detail level " + strconv.Itoa(opts.DetailLevel) + " out of range 0..5",
		}
	}
	if opts.Anchors.LiabilityEquity == nil && opts.Anchors.GrossMarginAfter == nil {
		opts.Anchors = DefaultAnchors()
	}

	root := newHierNode("", "", -1, opts.Columns)
	for _, row := range rows {
		node := root
		for _, seg := range pathSegments(row) {
			child, ok := node.children[seg.code+"\x00"+seg.name]
			if !ok {
				child = newHierNode(seg.code, seg.name, node.level+1, opts.Columns)
				node.children[seg.code+"\x00"+seg.name] = child
			}
			for key, amt := range row.Amounts {
				child.amounts[key] += amt
			}
			node = child
		}
		node.accounts = append(node.accounts, row)
	}

	var out []GridRow
	sections := sortedChildren(root)
	switch opts.StatementType {
	case StatementBalanceSheet:
		out = emitBalanceSheet(sections, opts)
	case StatementIncome:
		out = emitIncomeStatement(sections, opts)
	case StatementCashFlow:
		out = emitCashFlow(sections, opts)
	default:
		for _, sec := range sections {
			out = append(out, emitSubtree(sec, nil, opts)...)
		}
	}

	for i := range out {
		out[i].Order = i
	}
	return out, nil
}

type pathSeg struct{ code, name string }

func pathSegments(row AccountRow) []pathSeg {
	all := []pathSeg{
		{row.Code0, row.Name0},
		{row.Code1, row.Name1},
		{row.Code2, row.Name2},
		{row.Code3, row.Name3},
	}
	segs := make([]pathSeg, 0, 4)
	for _, s := range all {
		if s.code == "" && s.name == "" {
			continue
		}
		segs = append(segs, s)
	}
	return segs
}

// sortedChildren orders a node's children: top level alphabetically by
// code, deeper levels numerically ascending with non-numeric and empty
// codes last, name as the final tiebreak.
func sortedChildren(n *hierNode) []*hierNode {
	kids := make([]*hierNode, 0, len(n.children))
	for _, c := range n.children {
		kids = append(kids, c)
	}
	sort.Slice(kids, func(i, j int) bool {
		a, b := kids[i], kids[j]
		if a.level == 0 {
			if a.code != b.code {
				return a.code < b.code
			}
			return a.name < b.name
		}
		if c := compareGroupCode(a.code, b.code); c != 0 {
			return c < 0
		}
		return a.name < b.name
	})
	return kids
}

// compareGroupCode orders numeric codes ascending and places non-numeric
// or empty codes after all numeric ones.
func compareGroupCode(a, b string) int {
	an, aerr := strconv.Atoi(a)
	bn, berr := strconv.Atoi(b)
	switch {
	case aerr == nil && berr == nil:
		if an != bn {
			if an < bn {
				return -1
			}
			return 1
		}
		return 0
	case aerr == nil:
		return -1
	case berr == nil:
		return 1
	}
	return strings.Compare(a, b)
}

func (o HierarchyOptions) varianceFor(amounts map[string]float64) (*float64, *float64) {
	if !o.Variance || len(o.Columns) < 2 {
		return nil, nil
	}
	base := amounts[o.Columns[0].Key]
	compare := amounts[o.Columns[1].Key]
	amount := VarianceAmount(base, compare)
	return &amount, VariancePercent(base, compare)
}

func groupRow(n *hierNode, path []string, opts HierarchyOptions) GridRow {
	amounts := make(map[string]float64, len(n.amounts))
	for k, v := range n.amounts {
		amounts[k] = v
	}
	va, vp := opts.varianceFor(amounts)
	style := StyleNormal
	if n.level == 0 {
		style = StyleTotal
	}
	return GridRow{
		Label:           n.name,
		Type:            RowGroup,
		Style:           style,
		Indent:          n.level,
		Amounts:         amounts,
		VarianceAmount:  va,
		VariancePercent: vp,
		Meta:            RowMeta{Path: append(append([]string{}, path...), n.name), Level: n.level},
	}
}

func accountRowOut(acc AccountRow, level int, path []string, opts HierarchyOptions) GridRow {
	amounts := make(map[string]float64, len(acc.Amounts))
	for k, v := range acc.Amounts {
		amounts[k] = v
	}
	va, vp := opts.varianceFor(amounts)
	return GridRow{
		Label:           acc.AccountName,
		Type:            RowAccount,
		Style:           StyleNormal,
		Indent:          level,
		Amounts:         amounts,
		VarianceAmount:  va,
		VariancePercent: vp,
		Meta: RowMeta{
			AccountCode: acc.AccountCode,
			Path:        append(append([]string{}, path...), acc.AccountName),
			Level:       level,
		},
	}
}

// emitSubtree walks one node depth-first honoring the detail level cap.
func emitSubtree(n *hierNode, path []string, opts HierarchyOptions) []GridRow {
	if n.level > opts.DetailLevel {
		return nil
	}
	rows := []GridRow{groupRow(n, path, opts)}
	childPath := append(append([]string{}, path...), n.name)
	for _, child := range sortedChildren(n) {
		rows = append(rows, emitSubtree(child, childPath, opts)...)
	}
	if n.level+1 <= opts.DetailLevel {
		accounts := append([]AccountRow{}, n.accounts...)
		sort.Slice(accounts, func(i, j int) bool {
			return accounts[i].AccountCode < accounts[j].AccountCode
		})
		for _, acc := range accounts {
			rows = append(rows, accountRowOut(acc, n.level+1, childPath, opts))
		}
	}
	return rows
}

func computedRow(label, source string, amounts map[string]float64, opts HierarchyOptions) GridRow {
	va, vp := opts.varianceFor(amounts)
	return GridRow{
		Label:           label,
		Type:            RowComputed,
		Style:           StyleTotal,
		Indent:          0,
		Amounts:         amounts,
		VarianceAmount:  va,
		VariancePercent: vp,
		Meta:            RowMeta{Level: 0, Source: source},
	}
}

func zeroAmounts(cols []ColumnSpec) map[string]float64 {
	m := make(map[string]float64, len(cols))
	for _, col := range cols {
		m[col.Key] = 0
	}
	return m
}

func addAmounts(dst, src map[string]float64) {
	for k, v := range src {
		dst[k] += v
	}
}

// emitBalanceSheet injects Total Assets before the first liability/equity
// section and Total Liabilities & Equity at the end. Anchor matching is by
// classification, never by index.
func emitBalanceSheet(sections []*hierNode, opts HierarchyOptions) []GridRow {
	classify := opts.Anchors.LiabilityEquity
	assets := zeroAmounts(opts.Columns)
	liabEq := zeroAmounts(opts.Columns)

	var out []GridRow
	injected := false
	for _, sec := range sections {
		isPassiva := classify != nil && classify(sec.code, sec.name)
		if isPassiva && !injected {
			out = append(out, computedRow("Total Assets", SourceTotalAssets, copyAmounts(assets), opts))
			injected = true
		}
		if isPassiva {
			addAmounts(liabEq, sec.amounts)
		} else {
			addAmounts(assets, sec.amounts)
		}
		out = append(out, emitSubtree(sec, nil, opts)...)
	}
	if !injected {
		out = append(out, computedRow("Total Assets", SourceTotalAssets, copyAmounts(assets), opts))
	}
	out = append(out, computedRow("Total Liabilities & Equity", SourceTotalLiabEq, liabEq, opts))
	return out
}

// emitIncomeStatement injects gross margin and operating result subtotals
// at category boundaries and a net income row at the bottom.
func emitIncomeStatement(sections []*hierNode, opts HierarchyOptions) []GridRow {
	running := zeroAmounts(opts.Columns)
	var out []GridRow
	grossDone, operatingDone := false, false
	for _, sec := range sections {
		out = append(out, emitSubtree(sec, nil, opts)...)
		addAmounts(running, sec.amounts)
		if !grossDone && opts.Anchors.GrossMarginAfter != nil && opts.Anchors.GrossMarginAfter(sec.name) {
			out = append(out, computedRow("Gross Margin", SourceGrossMargin, copyAmounts(running), opts))
			grossDone = true
		} else if !operatingDone && opts.Anchors.OperatingAfter != nil && opts.Anchors.OperatingAfter(sec.name) {
			out = append(out, computedRow("Operating Result", SourceOperatingResult, copyAmounts(running), opts))
			operatingDone = true
		}
	}
	out = append(out, computedRow("Net Income", SourceNetIncome, copyAmounts(running), opts))
	return out
}

// emitCashFlow brackets the body with a starting cash row and closes with
// net change and ending cash reconciliation rows. Starting cash and net
// income arrive from outside the statement's own movements.
func emitCashFlow(sections []*hierNode, opts HierarchyOptions) []GridRow {
	starting := zeroAmounts(opts.Columns)
	if opts.CashFlow != nil {
		addAmounts(starting, opts.CashFlow.StartingCash)
	}
	netChange := zeroAmounts(opts.Columns)
	if opts.CashFlow != nil {
		addAmounts(netChange, opts.CashFlow.NetIncome)
	}

	out := []GridRow{computedRow("Starting Cash", SourceStartingCash, copyAmounts(starting), opts)}
	for _, sec := range sections {
		out = append(out, emitSubtree(sec, nil, opts)...)
		addAmounts(netChange, sec.amounts)
	}
	out = append(out, computedRow("Net Change in Cash", SourceNetChange, copyAmounts(netChange), opts))
	ending := copyAmounts(starting)
	addAmounts(ending, netChange)
	out = append(out, computedRow("Ending Cash", SourceEndingCash, ending, opts))
	return out
}

func copyAmounts(src map[string]float64) map[string]float64 {
	dst := make(map[string]float64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
