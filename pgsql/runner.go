package pgsql

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// DB is the subset of *sql.DB the runner needs; transactions satisfy it too.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Builder produces a query and its bound arguments, letting callers package
// parameterized statements as values.
type Builder interface {
	BuildQuery() string
	BuildArgs() []any
}

// RowScanner consumes one result row.
type RowScanner func(rows *sql.Rows) error

// Runner executes queries with structured logging of their outcome.
type Runner struct {
	db     DB
	logger *zap.Logger
}

// NewRunner wraps db. A nil logger defaults to nop.
func NewRunner(db DB, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{db: db, logger: logger}
}

// Exec runs a statement and returns the number of affected rows.
func (r *Runner) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Warn("statement failed", zap.String("query", query), zap.Error(err))
		return 0, fmt.Errorf("exec: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	r.logger.Debug("statement executed",
		zap.String("query", query),
		zap.Int64("rows_affected", affected))
	return affected, nil
}

// Select runs a query and feeds every row to scan.
func (r *Runner) Select(ctx context.Context, scan RowScanner, query string, args ...any) error {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Warn("query failed", zap.String("query", query), zap.Error(err))
		return fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		if err := scan(rows); err != nil {
			return fmt.Errorf("scan row %d: %w", count, err)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate rows: %w", err)
	}
	r.logger.Debug("query executed", zap.String("query", query), zap.Int("rows", count))
	return nil
}

// SelectOne runs a query expected to yield a single row scanned into dest.
func (r *Runner) SelectOne(ctx context.Context, dest []any, query string, args ...any) error {
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(dest...); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("query row: %w", err)
	}
	return nil
}

// ExecBuilder runs the statement described by b.
func (r *Runner) ExecBuilder(ctx context.Context, b Builder) (int64, error) {
	return r.Exec(ctx, b.BuildQuery(), b.BuildArgs()...)
}

// SelectBuilder runs the query described by b.
func (r *Runner) SelectBuilder(ctx context.Context, scan RowScanner, b Builder) error {
	return r.Select(ctx, scan, b.BuildQuery(), b.BuildArgs()...)
}
