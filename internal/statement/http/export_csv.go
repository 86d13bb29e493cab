package http

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/meridian-fin/meridian/internal/statement"
)

const (
	csvFlushEvery = 200
	csvBufferSize = 32 * 1024
)

type csvStreamer struct {
	buf          *bufio.Writer
	csv          *csv.Writer
	flushEvery   int
	pendingLines int
}

func newCSVStreamer(w io.Writer) *csvStreamer {
	buf := bufio.NewWriterSize(w, csvBufferSize)
	writer := csv.NewWriter(buf)
	writer.UseCRLF = true
	return &csvStreamer{buf: buf, csv: writer, flushEvery: csvFlushEvery}
}

func (s *csvStreamer) writeComment(line string) error {
	if s == nil || s.buf == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	if !strings.HasSuffix(line, "\r\n") {
		line = strings.TrimSuffix(line, "\n")
		line += "\r\n"
	}
	if _, err := s.buf.WriteString(line); err != nil {
		return err
	}
	return nil
}

func (s *csvStreamer) writeRow(row []string) error {
	if s == nil || s.csv == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	if err := s.csv.Write(row); err != nil {
		return err
	}
	s.pendingLines++
	if s.flushEvery > 0 && s.pendingLines >= s.flushEvery {
		return s.Flush()
	}
	return nil
}

func (s *csvStreamer) Flush() error {
	if s == nil || s.csv == nil || s.buf == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	s.csv.Flush()
	if err := s.csv.Error(); err != nil {
		return err
	}
	if err := s.buf.Flush(); err != nil {
		return err
	}
	s.pendingLines = 0
	return nil
}

func (s *csvStreamer) Close() error {
	return s.Flush()
}

func writeStatementCSV(w io.Writer, st statement.Statement, warnings []string) error {
	streamer := newCSVStreamer(w)
	if err := writeMetadata(streamer, st, warnings); err != nil {
		return err
	}

	variance := hasVariance(st)
	header := []string{"Row", "Type"}
	for _, col := range st.Columns {
		label := col.Label
		if label == "" {
			label = col.Key
		}
		header = append(header, label)
	}
	if variance {
		header = append(header, "Variance", "Variance %")
	}
	if err := streamer.writeRow(header); err != nil {
		return err
	}

	for _, row := range st.Rows {
		out := []string{indentLabel(row), string(row.Type)}
		for _, col := range st.Columns {
			if row.Amounts == nil {
				out = append(out, "")
				continue
			}
			out = append(out, formatDecimal(row.Amounts[col.Key]))
		}
		if variance {
			out = append(out, formatVariance(row.VarianceAmount), formatVariancePercent(row.VariancePercent, row.VarianceAmount))
		}
		if err := streamer.writeRow(out); err != nil {
			return err
		}
	}
	return streamer.Close()
}

func writeMetadata(streamer *csvStreamer, st statement.Statement, warnings []string) error {
	name := st.Meta.Name
	if name == "" {
		name = statementTitle(st.Type)
	}
	if err := streamer.writeComment(fmt.Sprintf("# Report: %s", name)); err != nil {
		return err
	}
	if err := streamer.writeComment(fmt.Sprintf("# Period: %s | Generated: %s | Generation: %s",
		st.Meta.PeriodOption, st.Meta.GeneratedAt.Format("2006-01-02 15:04:05"), st.Meta.GenerationID)); err != nil {
		return err
	}
	if len(warnings) == 0 {
		return streamer.writeComment("# Warnings: none")
	}
	joined := make([]string, len(warnings))
	for i, w := range warnings {
		joined[i] = strings.TrimSpace(w)
	}
	return streamer.writeComment("# Warnings: " + strings.Join(joined, "; "))
}

func statementTitle(st statement.StatementType) string {
	switch st {
	case statement.StatementBalanceSheet:
		return "Balance Sheet"
	case statement.StatementIncome:
		return "Income Statement"
	case statement.StatementCashFlow:
		return "Cash Flow Statement"
	}
	return string(st)
}

func indentLabel(row statement.GridRow) string {
	if row.Indent <= 0 {
		return row.Label
	}
	return strings.Repeat("  ", row.Indent) + row.Label
}

func hasVariance(st statement.Statement) bool {
	for _, row := range st.Rows {
		if row.VarianceAmount != nil {
			return true
		}
	}
	return false
}

func formatDecimal(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func formatVariance(v *float64) string {
	if v == nil {
		return ""
	}
	return formatDecimal(*v)
}

func formatVariancePercent(pct *float64, amount *float64) string {
	if pct == nil {
		if amount != nil {
			return "n/a"
		}
		return ""
	}
	return fmt.Sprintf("%.1f%%", *pct)
}
