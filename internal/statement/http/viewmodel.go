package http

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/meridian-fin/meridian/internal/statement"
)

var amountPrinter = message.NewPrinter(language.English)

// StatementViewModel is the JSON shape handed to the grid layer: the raw
// statement plus pre-formatted amount strings per row and column.
type StatementViewModel struct {
	Statement statement.Statement `json:"statement"`
	Warnings  []string            `json:"warnings,omitempty"`
}

// NewStatementViewModel decorates every amount row with grouped display
// strings ("1,234,567.89"). Spacer rows keep nil maps.
func NewStatementViewModel(st statement.Statement) StatementViewModel {
	rows := make([]statement.GridRow, len(st.Rows))
	copy(rows, st.Rows)
	for i, row := range rows {
		if row.Amounts == nil {
			continue
		}
		formatted := make(map[string]string, len(row.Amounts))
		for _, col := range st.Columns {
			formatted[col.Key] = formatAmount(row.Amounts[col.Key])
		}
		if row.VariancePercent == nil && row.VarianceAmount != nil {
			formatted["variancePercent"] = "n/a"
		}
		rows[i].Formatted = formatted
	}
	st.Rows = rows
	return StatementViewModel{Statement: st, Warnings: st.Meta.Warnings}
}

func formatAmount(v float64) string {
	return amountPrinter.Sprintf("%.2f", v)
}
