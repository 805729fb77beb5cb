// Package postgres implements storage.Storage against the hosted
// Postgres-with-row-security backend. Every query authored in
// the SQLite dialect is passed through storage.Rewriter before execution.
// Transient errors are retried with exponential backoff (100*2^(n-1) ms)
// using cenkalti/backoff, with go.opentelemetry.io/otel tracer/meter
// instrumentation around each query.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/morphexe/vestige/internal/storage"
)

var tracer = otel.Tracer("github.com/morphexe/vestige/storage/postgres")

var metrics struct {
	retryCount metric.Int64Counter
}

func init() {
	m := otel.Meter("github.com/morphexe/vestige/storage/postgres")
	metrics.retryCount, _ = m.Int64Counter("vestige.storage.retry_count",
		metric.WithDescription("SQL operations retried due to transient errors"),
		metric.WithUnit("{retry}"),
	)
}

// Store is the hosted Postgres backend. It authenticates as tenantID at
// the session level; the target schema's row-access policies constrain
// every statement to tenant_id = current_identity. Store binds no tenant
// parameter; its Rewriter turns the tenant sentinel into a predicate on
// the session's tenant setting.
type Store struct {
	db       *sql.DB
	tenantID string
	rewriter *storage.Rewriter
	retry    storage.RetryPolicy
	closed   atomic.Bool
}

// Config configures a hosted Postgres connection.
type Config struct {
	DSN         string
	TenantID    string
	RetryPolicy storage.RetryPolicy
}

// Open connects to the hosted Postgres backend and sets the session's
// current tenant identity (consumed by the database's row-access
// policies).
func Open(ctx context.Context, cfg Config) (*Store, error) {
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}
	if cfg.RetryPolicy == (storage.RetryPolicy{}) {
		cfg.RetryPolicy = storage.DefaultRetryPolicy()
	}

	s := &Store{
		db:       db,
		tenantID: cfg.TenantID,
		rewriter: storage.NewPostgresRewriter(),
		retry:    cfg.RetryPolicy,
	}
	if _, err := db.ExecContext(ctx, "SET SESSION vestige.current_tenant = "+quoteLiteral(cfg.TenantID)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set tenant session var: %w", err)
	}
	return s, nil
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (s *Store) checkOpen() error {
	if s.closed.Load() {
		return storage.ErrConnectionClosed
	}
	return nil
}

// withRetry executes op, retrying transient errors with exponential
// backoff up to s.retry.MaxRetries. Non-transient errors stop
// immediately. Transactions are never retried — callers of
// Transaction must not wrap it in withRetry.
func (s *Store) withRetry(ctx context.Context, opName string, op func() error) error {
	ctx, span := tracer.Start(ctx, opName, trace.WithAttributes(
		attribute.String("db.system", "postgres"),
	))
	defer span.End()

	attempts := 0
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = s.retry.BaseDelay
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	bo := backoff.WithMaxRetries(exp, uint64(s.retry.MaxRetries))

	err := backoff.Retry(func() error {
		attempts++
		err := op()
		if err == nil {
			return nil
		}
		var transient *storage.TransientError
		if errors.As(err, &transient) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(bo, ctx))

	if attempts > 1 {
		metrics.retryCount.Add(ctx, int64(attempts-1))
	}
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return &storage.PermanentDriverError{Err: perm.Unwrap()}
		}
		return &storage.PermanentDriverError{Err: err}
	}
	return nil
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if isTransientPostgresError(err) {
		return &storage.TransientError{Err: err}
	}
	return err
}

// isTransientPostgresError recognizes connection-level errors worth
// retrying.
func isTransientPostgresError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, s := range []string{
		"connection reset", "broken pipe", "connection refused",
		"i/o timeout", "too many connections", "server closed the connection",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// Execute rewrites query to the Postgres dialect and runs it with retry.
func (s *Store) Execute(ctx context.Context, query string, params ...any) (storage.Result, error) {
	if err := s.checkOpen(); err != nil {
		return storage.Result{}, err
	}
	rewritten := s.rewriter.Rewrite(query)
	var res storage.Result
	err := s.withRetry(ctx, "execute", func() error {
		r, err := s.db.ExecContext(ctx, rewritten, params...)
		if err != nil {
			return classify(err)
		}
		affected, _ := r.RowsAffected()
		res = storage.Result{RowsAffected: affected}
		return nil
	})
	return res, err
}

// Query rewrites query to the Postgres dialect and runs it with retry.
func (s *Store) Query(ctx context.Context, query string, params ...any) ([]storage.Row, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	rewritten := s.rewriter.Rewrite(query)
	var rows []storage.Row
	err := s.withRetry(ctx, "query", func() error {
		r, err := s.db.QueryContext(ctx, rewritten, params...)
		if err != nil {
			return classify(err)
		}
		defer r.Close()
		scanned, err := scanRows(r)
		if err != nil {
			return err
		}
		rows = scanned
		return nil
	})
	return rows, err
}

// QueryOne returns the first row of Query, or nil if there were none.
func (s *Store) QueryOne(ctx context.Context, query string, params ...any) (storage.Row, error) {
	rows, err := s.Query(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Batch runs each statement independently with retry, stopping at the
// first failure. Capped at 10 statements per call, which is enough for
// schema creation without risking a runaway caller.
func (s *Store) Batch(ctx context.Context, stmts []storage.Statement) ([]storage.Result, error) {
	const maxBatch = 10
	if len(stmts) > maxBatch {
		return nil, fmt.Errorf("batch exceeds hosted limit of %d statements", maxBatch)
	}
	results := make([]storage.Result, 0, len(stmts))
	for _, st := range stmts {
		res, err := s.Execute(ctx, st.SQL, st.Params...)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// Transaction is never retried automatically. On fn's error, the
// transaction is rolled back and the error rethrown; on nil it is
// committed.
func (s *Store) Transaction(ctx context.Context, fn func(tx storage.Tx) error) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	tx := &transaction{tx: sqlTx, rewriter: s.rewriter}
	if err := fn(tx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// IsHealthy pings the connection pool.
func (s *Store) IsHealthy(ctx context.Context) bool {
	if s.closed.Load() {
		return false
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.db.PingContext(pingCtx) == nil
}

// Close closes the connection pool. Idempotent.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

var _ storage.Storage = (*Store)(nil)

type transaction struct {
	tx       *sql.Tx
	rewriter *storage.Rewriter
}

func (t *transaction) Execute(ctx context.Context, query string, params ...any) (storage.Result, error) {
	r, err := t.tx.ExecContext(ctx, t.rewriter.Rewrite(query), params...)
	if err != nil {
		return storage.Result{}, classify(err)
	}
	affected, _ := r.RowsAffected()
	return storage.Result{RowsAffected: affected}, nil
}

func (t *transaction) Query(ctx context.Context, query string, params ...any) ([]storage.Row, error) {
	r, err := t.tx.QueryContext(ctx, t.rewriter.Rewrite(query), params...)
	if err != nil {
		return nil, classify(err)
	}
	defer r.Close()
	return scanRows(r)
}

func (t *transaction) QueryOne(ctx context.Context, query string, params ...any) (storage.Row, error) {
	rows, err := t.Query(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (t *transaction) Commit() error   { return t.tx.Commit() }
func (t *transaction) Rollback() error { return t.tx.Rollback() }

var _ storage.Tx = (*transaction)(nil)
