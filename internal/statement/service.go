package statement

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
)

// MovementSource abstracts the data access the service needs. The pgx
// repository satisfies it in production; tests supply an in-memory table.
type MovementSource interface {
	LoadMovements(ctx context.Context, st StatementType, years []int) ([]MovementRecord, error)
	ListYears(ctx context.Context) ([]int, error)
}

// Service orchestrates statement generation: loading movements, running
// the engine and caching the resulting statements.
type Service struct {
	source   MovementSource
	registry *Registry
	cache    *Cache
	logger   *slog.Logger
}

// NewService constructs the statement service. Cache may be nil.
func NewService(source MovementSource, registry *Registry, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{source: source, registry: registry, cache: cache, logger: logger}
}

// Registry exposes the definition registry for loaders and handlers.
func (s *Service) Registry() *Registry { return s.registry }

// Years lists the fiscal years available in the ledger.
func (s *Service) Years(ctx context.Context) ([]int, error) {
	if s == nil || s.source == nil {
		return nil, errors.New("statement: service not initialised")
	}
	return s.source.ListYears(ctx)
}

func (s *Service) loadTable(ctx context.Context, st StatementType, opt PeriodOption) ([]MovementRecord, error) {
	years := []int{opt.Year - 1, opt.Year}
	return s.source.LoadMovements(ctx, st, years)
}

// Generate builds one hierarchical statement, caching the result under the
// versioned statement key. Cash-flow statements also load the balance
// sheet and income statement to derive their reconciliation inputs.
func (s *Service) Generate(ctx context.Context, st StatementType, opts GenerateOptions) (Statement, error) {
	if s == nil || s.source == nil {
		return Statement{}, errors.New("statement: service not initialised")
	}
	opt, err := ParsePeriodOption(opts.PeriodOption)
	if err != nil {
		return Statement{}, err
	}

	key, err := s.cache.BuildKey(ctx, keyStatement(st, opt.Raw, opts.DetailLevel))
	if err != nil {
		s.logger.Warn("statement cache key", slog.Any("error", err))
		key = keyStatement(st, opt.Raw, opts.DetailLevel)
	}

	var result Statement
	err = s.cache.FetchJSON(ctx, key, &result, func(ctx context.Context) (interface{}, error) {
		return s.build(ctx, st, opt, opts)
	})
	if err != nil {
		return Statement{}, err
	}
	return result, nil
}

func (s *Service) build(ctx context.Context, st StatementType, opt PeriodOption, opts GenerateOptions) (Statement, error) {
	table, err := s.loadTable(ctx, st, opt)
	if err != nil {
		return Statement{}, err
	}

	if st == StatementCashFlow && opts.CashFlow == nil {
		inputs, err := s.deriveCashFlow(ctx, opt, opts)
		if err != nil {
			s.logger.Warn("derive cash flow inputs", slog.Any("error", err))
		} else {
			opts.CashFlow = &inputs
		}
	}

	stmt, err := GenerateStatement(st, table, opts)
	if err != nil {
		return Statement{}, err
	}
	s.logger.Info("statement generated",
		slog.String("type", string(st)),
		slog.String("period", opt.Raw),
		slog.Int("rows", len(stmt.Rows)),
		slog.Bool("balanced", stmt.Metrics.Balanced),
	)
	return stmt, nil
}

func (s *Service) deriveCashFlow(ctx context.Context, opt PeriodOption, opts GenerateOptions) (CashFlowInputs, error) {
	bs, err := s.loadTable(ctx, StatementBalanceSheet, opt)
	if err != nil {
		return CashFlowInputs{}, err
	}
	is, err := s.loadTable(ctx, StatementIncome, opt)
	if err != nil {
		return CashFlowInputs{}, err
	}
	start, end := opt.WindowFor(StatementCashFlow)
	cols := []ColumnSpec{
		{Key: strconv.Itoa(opt.Year - 1), Year: opt.Year - 1, StartPeriod: start, EndPeriod: end},
		{Key: strconv.Itoa(opt.Year), Year: opt.Year, StartPeriod: start, EndPeriod: end},
	}
	return DeriveCashFlowInputs(bs, is, cols, defaultCashAccount), nil
}

// defaultCashAccount treats level-1 groups named like cash or bank as
// cash equivalents. Data-driven chart classification can override this
// through GenerateOptions.CashFlow.
var defaultCashAccount = func(m MovementRecord) bool {
	return nameMatcher("cash", "bank", "kasse", "liquide mittel")(m.Name1)
}

// Report renders a registered declarative report definition.
func (s *Service) Report(ctx context.Context, reportID string, opts GenerateOptions) (Statement, error) {
	if s == nil || s.source == nil || s.registry == nil {
		return Statement{}, errors.New("statement: service not initialised")
	}
	def, err := s.registry.Get(reportID)
	if err != nil {
		return Statement{}, err
	}
	opt, err := ParsePeriodOption(opts.PeriodOption)
	if err != nil {
		return Statement{}, err
	}

	key, err := s.cache.BuildKey(ctx, keyReport(reportID, opt.Raw))
	if err != nil {
		s.logger.Warn("report cache key", slog.Any("error", err))
		key = keyReport(reportID, opt.Raw)
	}

	var result Statement
	err = s.cache.FetchJSON(ctx, key, &result, func(ctx context.Context) (interface{}, error) {
		table, err := s.loadTable(ctx, def.StatementType, opt)
		if err != nil {
			return nil, err
		}
		return GenerateReport(def, table, opts)
	})
	if err != nil {
		return Statement{}, err
	}
	return result, nil
}

// RegisterDefinition validates and registers a definition, invalidating
// cached reports.
func (s *Service) RegisterDefinition(ctx context.Context, def ReportDefinition) error {
	if s == nil || s.registry == nil {
		return errors.New("statement: service not initialised")
	}
	if err := s.registry.Register(def); err != nil {
		return err
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("cache bump after register", slog.Any("error", err))
	}
	return nil
}

// Invalidate bumps the cache version after new movement data lands.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}
