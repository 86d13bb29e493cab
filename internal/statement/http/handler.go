package http

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/meridian-fin/meridian/internal/platform/httpx"
	"github.com/meridian-fin/meridian/internal/shared"
	"github.com/meridian-fin/meridian/internal/statement"
)

// Handler wires the HTTP layer for financial statement endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *statement.Service
	rateLimit func(http.Handler) http.Handler
}

// NewHandler constructs the handler instance.
func NewHandler(logger *slog.Logger, service *statement.Service) *Handler {
	limiter := httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			return "ip:" + r.RemoteAddr, nil
		}
		return "ip:" + host, nil
	}))
	return &Handler{
		logger:    logger,
		service:   service,
		rateLimit: limiter,
	}
}

// MountRoutes registers the statement and report-definition endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/finance/years", h.HandleListYears)
	r.Get("/finance/statements/{type}", h.HandleGetStatement)
	r.Get("/finance/reports", h.HandleListReports)
	r.Get("/finance/reports/{reportID}", h.HandleGetReport)
	r.Group(func(r chi.Router) {
		r.Use(h.rateLimit)
		r.Get("/finance/statements/{type}/export.csv", h.HandleExportCSV)
		r.Get("/finance/reports/{reportID}/export.csv", h.HandleExportReportCSV)
		r.Post("/finance/reports", h.HandleCreateReport)
	})
}

// HandleGetStatement serves one hierarchical statement as JSON.
func (h *Handler) HandleGetStatement(w http.ResponseWriter, r *http.Request) {
	st, opts, err := h.parseStatementRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	cacheKey := buildStatementCacheKey(string(st), opts.PeriodOption, opts.DetailLevel)
	if cached, ok := viewModelCache.Get(cacheKey); ok {
		if vm, ok := cached.(StatementViewModel); ok {
			recordCacheHit(string(st), opts.PeriodOption)
			httpx.JSON(w, http.StatusOK, cloneStatementViewModel(vm))
			return
		}
	}

	result, err, _ := singleflightBuild(r.Context(), cacheKey, func(ctx context.Context) (interface{}, error) {
		start := time.Now()
		recordCacheMiss(string(st), opts.PeriodOption)
		defer func(start time.Time) {
			observeBuildDuration(string(st), opts.PeriodOption, time.Since(start))
		}(start)
		vm, err := h.buildViewModel(ctx, st, opts)
		if err != nil {
			return nil, err
		}
		viewModelCache.Set(cacheKey, cloneStatementViewModel(vm))
		return vm, nil
	})
	if err != nil {
		h.logger.Error("build statement", slog.String("type", string(st)), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	vm, ok := result.(StatementViewModel)
	if !ok {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, vm)
}

func (h *Handler) buildViewModel(ctx context.Context, st statement.StatementType, opts statement.GenerateOptions) (StatementViewModel, error) {
	stmt, err := h.service.Generate(ctx, st, opts)
	if err != nil {
		return StatementViewModel{}, err
	}
	if st == statement.StatementBalanceSheet && !stmt.Metrics.Balanced {
		stmt.Meta.Warnings = append(stmt.Meta.Warnings,
			fmt.Sprintf("balance sheet not balanced (difference %.2f)", stmt.Metrics.Imbalance))
	}
	return NewStatementViewModel(stmt), nil
}

// HandleExportCSV streams one statement as CSV.
func (h *Handler) HandleExportCSV(w http.ResponseWriter, r *http.Request) {
	st, opts, err := h.parseStatementRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	vm, err := h.buildViewModel(r.Context(), st, opts)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.streamCSV(w, vm, fmt.Sprintf("%s-%s.csv", chi.URLParam(r, "type"), opts.PeriodOption))
}

// HandleGetReport renders a registered report definition as JSON.
func (h *Handler) HandleGetReport(w http.ResponseWriter, r *http.Request) {
	reportID := chi.URLParam(r, "reportID")
	opts, err := parseGenerateOptions(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	cacheKey := buildReportCacheKey(reportID, opts.PeriodOption)
	if cached, ok := viewModelCache.Get(cacheKey); ok {
		if vm, ok := cached.(StatementViewModel); ok {
			recordCacheHit("report:"+reportID, opts.PeriodOption)
			httpx.JSON(w, http.StatusOK, cloneStatementViewModel(vm))
			return
		}
	}

	result, err, _ := singleflightBuild(r.Context(), cacheKey, func(ctx context.Context) (interface{}, error) {
		start := time.Now()
		recordCacheMiss("report:"+reportID, opts.PeriodOption)
		defer func(start time.Time) {
			observeBuildDuration("report:"+reportID, opts.PeriodOption, time.Since(start))
		}(start)
		stmt, err := h.service.Report(ctx, reportID, opts)
		if err != nil {
			return nil, err
		}
		vm := NewStatementViewModel(stmt)
		viewModelCache.Set(cacheKey, cloneStatementViewModel(vm))
		return vm, nil
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	vm, ok := result.(StatementViewModel)
	if !ok {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, vm)
}

// HandleExportReportCSV streams a rendered report definition as CSV.
func (h *Handler) HandleExportReportCSV(w http.ResponseWriter, r *http.Request) {
	reportID := chi.URLParam(r, "reportID")
	opts, err := parseGenerateOptions(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	stmt, err := h.service.Report(r.Context(), reportID, opts)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.streamCSV(w, NewStatementViewModel(stmt), fmt.Sprintf("%s-%s.csv", reportID, opts.PeriodOption))
}

func (h *Handler) streamCSV(w http.ResponseWriter, vm StatementViewModel, filename string) {
	if len(vm.Warnings) > 0 {
		w.Header().Set("X-Statement-Warning", strings.Join(vm.Warnings, "; "))
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	if err := writeStatementCSV(w, vm.Statement, vm.Warnings); err != nil {
		h.logger.Error("stream statement csv", slog.Any("error", err))
	}
}

// HandleListReports lists the registered report definitions.
func (h *Handler) HandleListReports(w http.ResponseWriter, _ *http.Request) {
	defs := h.service.Registry().List()
	summaries := make([]reportSummary, len(defs))
	for i, def := range defs {
		summaries[i] = reportSummary{
			ReportID:      def.ReportID,
			Name:          def.Name,
			Version:       def.Version,
			StatementType: def.StatementType,
		}
	}
	httpx.JSON(w, http.StatusOK, map[string]interface{}{"reports": summaries})
}

type reportSummary struct {
	ReportID      string                  `json:"reportId"`
	Name          string                  `json:"name"`
	Version       string                  `json:"version,omitempty"`
	StatementType statement.StatementType `json:"statementType"`
}

// HandleCreateReport validates and registers a new report definition.
func (h *Handler) HandleCreateReport(w http.ResponseWriter, r *http.Request) {
	var def statement.ReportDefinition
	if err := httpx.DecodeJSON(r, &def); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed definition payload")
		return
	}
	if err := h.service.RegisterDefinition(r.Context(), def); err != nil {
		httpx.RespondError(w, err)
		return
	}
	BustStatementViewCache()
	h.logger.Info("report definition registered", slog.String("report_id", def.ReportID))
	httpx.JSON(w, http.StatusCreated, map[string]string{"reportId": def.ReportID})
}

// HandleListYears lists the fiscal years available in the ledger.
func (h *Handler) HandleListYears(w http.ResponseWriter, r *http.Request) {
	years, err := h.service.Years(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]interface{}{"years": years})
}

func (h *Handler) parseStatementRequest(r *http.Request) (statement.StatementType, statement.GenerateOptions, error) {
	st, err := parseStatementType(chi.URLParam(r, "type"))
	if err != nil {
		return "", statement.GenerateOptions{}, err
	}
	opts, err := parseGenerateOptions(r)
	if err != nil {
		return "", statement.GenerateOptions{}, err
	}
	return st, opts, nil
}

func parseStatementType(raw string) (statement.StatementType, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "-", "_") {
	case "balance_sheet", "bs":
		return statement.StatementBalanceSheet, nil
	case "income_statement", "is", "pl":
		return statement.StatementIncome, nil
	case "cash_flow", "cf":
		return statement.StatementCashFlow, nil
	}
	return "", &shared.ValidationError{Subject: "statement type", Reason: fmt.Sprintf("unknown type %q", raw)}
}

func parseGenerateOptions(r *http.Request) (statement.GenerateOptions, error) {
	q := r.URL.Query()
	period := strings.TrimSpace(q.Get("period"))
	if period == "" {
		return statement.GenerateOptions{}, &shared.ValidationError{Subject: "period", Reason: "query parameter required"}
	}
	detail := 3
	if raw := strings.TrimSpace(q.Get("detail")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 || parsed > 5 {
			return statement.GenerateOptions{}, &shared.ValidationError{Subject: "detail", Reason: "must be an integer between 0 and 5"}
		}
		detail = parsed
	}
	return statement.GenerateOptions{PeriodOption: period, DetailLevel: detail}, nil
}
