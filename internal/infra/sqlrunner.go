package infra

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// SQLExecutor runs marker-tagged statements. Every query must start with a
// `--sql <uuid>` line that identifies it in logs.
type SQLExecutor interface {
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
}

// TxExecutor is an SQLExecutor bound to an open transaction.
type TxExecutor interface {
	SQLExecutor
	// Savepoint runs fn in a nested transaction. When fn fails only the
	// savepoint is rolled back and the outer transaction stays usable.
	Savepoint(ctx context.Context, fn func(SQLExecutor) error) error
}

// TxRunner opens transactions.
type TxRunner interface {
	SQLExecutor
	InTx(ctx context.Context, fn func(TxExecutor) error) error
}

var markerRegexp = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type markedExecutor struct {
	q      querier
	logger zerolog.Logger
}

func (m markedExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	marker, trimmed, err := extractMarker(query)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	m.logger.Debug().Msgf("sql[%s] exec", marker)
	tag, err := m.q.Exec(ctx, trimmed, args...)
	if err != nil {
		m.logger.Error().Err(err).Msgf("sql[%s] error", marker)
		return tag, err
	}
	m.logger.Debug().Int64("rows", tag.RowsAffected()).Msgf("sql[%s] ok", marker)
	return tag, nil
}

func (m markedExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	marker, trimmed, err := extractMarker(query)
	if err != nil {
		return errorRow{err: err}
	}
	m.logger.Debug().Msgf("sql[%s] query_row", marker)
	return loggingRow{row: m.q.QueryRow(ctx, trimmed, args...), logger: m.logger, marker: marker}
}

func (m markedExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	marker, trimmed, err := extractMarker(query)
	if err != nil {
		return nil, err
	}
	m.logger.Debug().Msgf("sql[%s] query", marker)
	rows, err := m.q.Query(ctx, trimmed, args...)
	if err != nil {
		m.logger.Error().Err(err).Msgf("sql[%s] error", marker)
		return nil, err
	}
	return loggingRows{Rows: rows, logger: m.logger, marker: marker}, nil
}

// SQLRunner executes marked statements against the pool.
type SQLRunner struct {
	markedExecutor
	Pool *pgxpool.Pool
}

func NewSQLRunner(pool *pgxpool.Pool, logger zerolog.Logger) *SQLRunner {
	return &SQLRunner{markedExecutor: markedExecutor{q: pool, logger: logger}, Pool: pool}
}

// InTx runs fn in a read-committed transaction, committing when fn returns
// nil and rolling back otherwise.
func (r *SQLRunner) InTx(ctx context.Context, fn func(TxExecutor) error) error {
	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		// Rollback after commit is a no-op; run it even if ctx is done.
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			r.logger.Warn().Err(rbErr).Msg("sql rollback failed")
		}
	}()

	if err := fn(txExecutor{markedExecutor: markedExecutor{q: tx, logger: r.logger}, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type txExecutor struct {
	markedExecutor
	tx pgx.Tx
}

func (t txExecutor) Savepoint(ctx context.Context, fn func(SQLExecutor) error) error {
	sp, err := t.tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin savepoint: %w", err)
	}
	if err := fn(markedExecutor{q: sp, logger: t.logger}); err != nil {
		if rbErr := sp.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback savepoint: %w", rbErr))
		}
		return err
	}
	if err := sp.Commit(ctx); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}

type loggingRow struct {
	row    pgx.Row
	logger zerolog.Logger
	marker string
}

func (l loggingRow) Scan(dest ...any) error {
	err := l.row.Scan(dest...)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		l.logger.Debug().Msgf("sql[%s] no rows", l.marker)
	case err != nil:
		l.logger.Error().Err(err).Msgf("sql[%s] scan error", l.marker)
	}
	return err
}

type loggingRows struct {
	pgx.Rows
	logger zerolog.Logger
	marker string
}

func (l loggingRows) Close() {
	l.Rows.Close()
	if err := l.Rows.Err(); err != nil {
		l.logger.Error().Err(err).Msgf("sql[%s] rows error", l.marker)
		return
	}
	l.logger.Debug().Msgf("sql[%s] rows close", l.marker)
}

type errorRow struct {
	err error
}

func (e errorRow) Scan(dest ...any) error {
	return e.err
}

// ErrMissingMarker is returned for statements without a valid marker line.
var ErrMissingMarker = errors.New("sql marker missing or invalid")

func extractMarker(query string) (string, string, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return "", "", errors.New("empty query")
	}
	lines := strings.Split(trimmed, "\n")
	markerLine := strings.TrimSpace(lines[0])
	if !markerRegexp.MatchString(markerLine) {
		return "", "", ErrMissingMarker
	}
	body := strings.TrimSpace(strings.Join(lines[1:], "\n"))
	if body == "" {
		return "", "", errors.New("sql marker without statement")
	}
	return strings.TrimPrefix(markerLine, "--sql "), body, nil
}

// ExtractMarker returns the marker id and the statement body of query.
func ExtractMarker(query string) (marker, body string, err error) {
	return extractMarker(query)
}

var (
	_ SQLExecutor = (*SQLRunner)(nil)
	_ TxRunner    = (*SQLRunner)(nil)
	_ TxExecutor  = txExecutor{}
)
