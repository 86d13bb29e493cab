package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/meridian-fin/meridian/internal/statement"
	"github.com/meridian-fin/meridian/internal/statement/filter"
)

func init() {
	if err := SetupCacheMetrics(prometheus.NewRegistry()); err != nil {
		panic(err)
	}
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubSource struct {
	tables map[statement.StatementType][]statement.MovementRecord
}

func (s *stubSource) LoadMovements(_ context.Context, st statement.StatementType, years []int) ([]statement.MovementRecord, error) {
	allowed := make(map[int]bool, len(years))
	for _, y := range years {
		allowed[y] = true
	}
	var out []statement.MovementRecord
	for _, row := range s.tables[st] {
		if allowed[row.Year] {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *stubSource) ListYears(context.Context) ([]int, error) {
	return []int{2024, 2025}, nil
}

func testMovements() map[statement.StatementType][]statement.MovementRecord {
	return map[statement.StatementType][]statement.MovementRecord{
		statement.StatementBalanceSheet: {
			{Year: 2025, Period: 1, AccountCode: "1100", AccountName: "Cash", Code0: "1", Code1: "100", Name0: "Assets", Name1: "Current Assets", StatementType: statement.StatementBalanceSheet, Amount: 60000},
			{Year: 2025, Period: 1, AccountCode: "2100", AccountName: "Trade payables", Code0: "2", Code1: "300", Name0: "Liabilities", Name1: "Payables", StatementType: statement.StatementBalanceSheet, Amount: -60000},
		},
		statement.StatementIncome: {
			{Year: 2024, Period: 2, AccountCode: "4100", AccountName: "Product revenue", Code0: "4", Code1: "410", Name0: "Revenue", Name1: "Product", StatementType: statement.StatementIncome, Amount: -3000},
			{Year: 2025, Period: 2, AccountCode: "4100", AccountName: "Product revenue", Code0: "4", Code1: "410", Name0: "Revenue", Name1: "Product", StatementType: statement.StatementIncome, Amount: -1600},
			{Year: 2025, Period: 3, AccountCode: "5100", AccountName: "Materials", Code0: "5", Code1: "510", Name0: "COGS", Name1: "Materials", StatementType: statement.StatementIncome, Amount: 500},
		},
	}
}

func revenueDefinition() statement.ReportDefinition {
	return statement.ReportDefinition{
		ReportID:      "revenue-summary",
		Name:          "Revenue Summary",
		Version:       "1",
		StatementType: statement.StatementIncome,
		Variables: map[string]statement.VariableDefinition{
			"revenue": {
				Filter:    filter.Spec{"name0": "Revenue"},
				Aggregate: statement.AggregateSum,
			},
		},
		Layout: []statement.LayoutItem{
			{Kind: statement.LayoutVariable, Order: 1, Label: "Revenue", Variable: "revenue"},
		},
	}
}

func newTestRouter(t *testing.T) chi.Router {
	t.Helper()
	BustStatementViewCache()
	registry := statement.NewRegistry()
	if err := registry.Register(revenueDefinition()); err != nil {
		t.Fatalf("register definition: %v", err)
	}
	service := statement.NewService(&stubSource{tables: testMovements()}, registry, nil, newTestLogger())
	handler := NewHandler(newTestLogger(), service)
	router := chi.NewRouter()
	handler.MountRoutes(router)
	return router
}

func doRequest(t *testing.T, router chi.Router, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleGetStatement(t *testing.T) {
	router := newTestRouter(t)
	rec := doRequest(t, router, http.MethodGet, "/finance/statements/balance-sheet?period=2025-all&detail=5", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var vm StatementViewModel
	if err := json.Unmarshal(rec.Body.Bytes(), &vm); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !vm.Statement.Metrics.Balanced {
		t.Fatalf("metrics = %+v, want balanced", vm.Statement.Metrics)
	}
	for _, row := range vm.Statement.Rows {
		if row.Label == "Total Assets" {
			if row.Formatted["2025"] != "60,000.00" {
				t.Fatalf("formatted total = %q", row.Formatted["2025"])
			}
			return
		}
	}
	t.Fatal("total assets row missing")
}

func TestHandleGetStatementCachesViewModel(t *testing.T) {
	router := newTestRouter(t)
	first := doRequest(t, router, http.MethodGet, "/finance/statements/income-statement?period=2025-all", nil)
	if first.Code != http.StatusOK {
		t.Fatalf("status = %d", first.Code)
	}
	key := buildStatementCacheKey(string(statement.StatementIncome), "2025-all", 3)
	if _, ok := viewModelCache.Get(key); !ok {
		t.Fatal("view model not cached after first request")
	}
	second := doRequest(t, router, http.MethodGet, "/finance/statements/income-statement?period=2025-all", nil)
	if second.Code != http.StatusOK {
		t.Fatalf("status = %d", second.Code)
	}
}

func TestHandleGetStatementValidation(t *testing.T) {
	router := newTestRouter(t)
	cases := []struct {
		target string
		want   int
	}{
		{"/finance/statements/balance-sheet", http.StatusBadRequest},
		{"/finance/statements/balance-sheet?period=2025-Q7", http.StatusBadRequest},
		{"/finance/statements/balance-sheet?period=2025-all&detail=9", http.StatusBadRequest},
		{"/finance/statements/profit-centre?period=2025-all", http.StatusBadRequest},
	}
	for _, tc := range cases {
		rec := doRequest(t, router, http.MethodGet, tc.target, nil)
		if rec.Code != tc.want {
			t.Fatalf("%s: status = %d, want %d", tc.target, rec.Code, tc.want)
		}
	}
}

func TestHandleExportCSV(t *testing.T) {
	router := newTestRouter(t)
	rec := doRequest(t, router, http.MethodGet, "/finance/statements/income-statement/export.csv?period=2025-all", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("content type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "# Report: Income Statement") {
		t.Fatalf("missing metadata header: %q", body[:min(len(body), 80)])
	}
	if !strings.Contains(body, "Product revenue") {
		t.Fatal("account row missing from export")
	}
}

func TestHandleListReports(t *testing.T) {
	router := newTestRouter(t)
	rec := doRequest(t, router, http.MethodGet, "/finance/reports", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var payload struct {
		Reports []reportSummary `json:"reports"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Reports) != 1 || payload.Reports[0].ReportID != "revenue-summary" {
		t.Fatalf("reports = %+v", payload.Reports)
	}
}

func TestHandleGetReport(t *testing.T) {
	router := newTestRouter(t)
	rec := doRequest(t, router, http.MethodGet, "/finance/reports/revenue-summary?period=2025-all", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var vm StatementViewModel
	if err := json.Unmarshal(rec.Body.Bytes(), &vm); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if vm.Statement.Meta.ReportID != "revenue-summary" {
		t.Fatalf("meta = %+v", vm.Statement.Meta)
	}
}

func TestHandleGetReportNotFound(t *testing.T) {
	router := newTestRouter(t)
	rec := doRequest(t, router, http.MethodGet, "/finance/reports/missing?period=2025-all", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandleCreateReport(t *testing.T) {
	router := newTestRouter(t)
	def := revenueDefinition()
	def.ReportID = "revenue-summary-v2"
	raw, err := json.Marshal(def)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	rec := doRequest(t, router, http.MethodPost, "/finance/reports", bytes.NewReader(raw))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	list := doRequest(t, router, http.MethodGet, "/finance/reports", nil)
	if !strings.Contains(list.Body.String(), "revenue-summary-v2") {
		t.Fatal("new definition missing from list")
	}
}

func TestHandleCreateReportRejectsInvalid(t *testing.T) {
	router := newTestRouter(t)
	rec := doRequest(t, router, http.MethodPost, "/finance/reports", strings.NewReader(`{"reportId":""}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandleListYears(t *testing.T) {
	router := newTestRouter(t)
	rec := doRequest(t, router, http.MethodGet, "/finance/years", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "2025") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}
