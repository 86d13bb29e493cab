package statement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-fin/meridian/internal/platform/db"
	"github.com/meridian-fin/meridian/internal/shared"
)

// ErrDefinitionExists indicates a create collided with a stored definition.
var ErrDefinitionExists = errors.New("statement: definition already exists")

const uniqueViolation = "23505"

// Repository loads movement tables and report definitions from Postgres.
// The engine itself never touches the database; everything is loaded up
// front and handed over as immutable inputs.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a statement repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const movementColumns = `year, period, account_code, account_name,
       code0, code1, code2, code3, name0, name1, name2, name3,
       statement_type, amount`

// LoadMovements fetches the normalized movement rows for a statement type
// across the given fiscal years. NULL amounts normalize to 0.
func (r *Repository) LoadMovements(ctx context.Context, st StatementType, years []int) ([]MovementRecord, error) {
	if len(years) == 0 {
		return nil, &shared.DataError{Reason: "statement: at least one fiscal year required"}
	}
	query := fmt.Sprintf(`
		SELECT %s
		FROM ledger_movements
		WHERE statement_type = $1 AND year = ANY($2)
		ORDER BY year, period, account_code
	`, movementColumns)

	rows, err := r.pool.Query(ctx, query, string(st), years)
	if err != nil {
		return nil, fmt.Errorf("statement: load movements: %w", err)
	}
	defer rows.Close()

	out := make([]MovementRecord, 0, 1024)
	for rows.Next() {
		var (
			m      MovementRecord
			stype  string
			amount pgtype.Numeric
		)
		if err := rows.Scan(
			&m.Year, &m.Period, &m.AccountCode, &m.AccountName,
			&m.Code0, &m.Code1, &m.Code2, &m.Code3,
			&m.Name0, &m.Name1, &m.Name2, &m.Name3,
			&stype, &amount,
		); err != nil {
			return nil, fmt.Errorf("statement: scan movement: %w", err)
		}
		m.StatementType = StatementType(stype)
		if amount.Valid {
			f, _ := amount.Float64Value()
			m.Amount = f.Float64
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListYears returns the distinct fiscal years present in the ledger,
// ascending.
func (r *Repository) ListYears(ctx context.Context) ([]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT year FROM ledger_movements ORDER BY year`)
	if err != nil {
		return nil, fmt.Errorf("statement: list years: %w", err)
	}
	defer rows.Close()

	var years []int
	for rows.Next() {
		var y int
		if err := rows.Scan(&y); err != nil {
			return nil, err
		}
		years = append(years, y)
	}
	return years, rows.Err()
}

// ListDefinitions loads every stored report definition.
func (r *Repository) ListDefinitions(ctx context.Context) ([]ReportDefinition, error) {
	rows, err := r.pool.Query(ctx, `SELECT definition FROM report_definitions ORDER BY report_id`)
	if err != nil {
		return nil, fmt.Errorf("statement: list definitions: %w", err)
	}
	defer rows.Close()

	var defs []ReportDefinition
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var def ReportDefinition
		if err := json.Unmarshal(raw, &def); err != nil {
			return nil, &shared.ValidationError{Subject: "stored definition", Reason: err.Error()}
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

// GetDefinition loads one stored definition by report id.
func (r *Repository) GetDefinition(ctx context.Context, reportID string) (ReportDefinition, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx,
		`SELECT definition FROM report_definitions WHERE report_id = $1`, reportID,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ReportDefinition{}, fmt.Errorf("report %s: %w", reportID, shared.ErrNotFound)
		}
		return ReportDefinition{}, err
	}
	var def ReportDefinition
	if err := json.Unmarshal(raw, &def); err != nil {
		return ReportDefinition{}, &shared.ValidationError{Subject: "stored definition", Reason: err.Error()}
	}
	return def, nil
}

// SaveDefinition upserts a definition, replacing the stored version.
func (r *Repository) SaveDefinition(ctx context.Context, def ReportDefinition) error {
	raw, err := json.Marshal(def)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO report_definitions (report_id, name, version, statement_type, definition, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (report_id) DO UPDATE
		SET name = EXCLUDED.name,
		    version = EXCLUDED.version,
		    statement_type = EXCLUDED.statement_type,
		    definition = EXCLUDED.definition,
		    updated_at = NOW()
	`, def.ReportID, def.Name, def.Version, string(def.StatementType), raw)
	return err
}

// ReplaceDefinitions swaps the stored definition set atomically. Used by
// the file-based loader so a failed import never leaves a partial set.
func (r *Repository) ReplaceDefinitions(ctx context.Context, defs []ReportDefinition) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM report_definitions`); err != nil {
			return fmt.Errorf("statement: clear definitions: %w", err)
		}
		for _, def := range defs {
			raw, err := json.Marshal(def)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO report_definitions (report_id, name, version, statement_type, definition, updated_at)
				VALUES ($1, $2, $3, $4, $5, NOW())
			`, def.ReportID, def.Name, def.Version, string(def.StatementType), raw); err != nil {
				return fmt.Errorf("statement: insert definition %s: %w", def.ReportID, err)
			}
		}
		return nil
	})
}

// CreateDefinition inserts a new definition and fails when the report id
// is already taken.
func (r *Repository) CreateDefinition(ctx context.Context, def ReportDefinition) error {
	raw, err := json.Marshal(def)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO report_definitions (report_id, name, version, statement_type, definition, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`, def.ReportID, def.Name, def.Version, string(def.StatementType), raw)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", ErrDefinitionExists, def.ReportID)
		}
		return err
	}
	return nil
}
