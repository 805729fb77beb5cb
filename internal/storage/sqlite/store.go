package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	_ "modernc.org/sqlite"

	"github.com/morphexe/vestige/internal/storage"
)

// Store is the embedded SQLite backend. It enforces row-level tenancy by
// rewriting the storage.TenantFilter sentinel into "tenant_id = ?" and
// binding its own tenant id there (storage.ScopeToTenant). A query that
// carries no sentinel, such as an INSERT, runs as written: the tenant_id
// it stores is whatever the caller supplied.
type Store struct {
	db       *sql.DB
	tenantID string
	closed   atomic.Bool
}

// Open opens (creating if absent) a SQLite database at path, scoped to
// tenantID, and applies the schema in schema.go. "Already exists" errors
// from schema creation are caught and ignored per statement.
func Open(ctx context.Context, path, tenantID string, readOnly bool) (*Store, error) {
	db, err := sql.Open("sqlite", ConnString(path, readOnly))
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite recommendation for a single writer file

	s := &Store{db: db, tenantID: tenantID}
	if !readOnly {
		if err := s.applySchema(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) applySchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			// "Already exists" is caught and ignored per statement.
			if alreadyExists(err) {
				continue
			}
			return fmt.Errorf("schema init: %w", err)
		}
	}
	return nil
}

func alreadyExists(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "duplicate column")
}

func (s *Store) checkOpen() error {
	if s.closed.Load() {
		return storage.ErrConnectionClosed
	}
	return nil
}

// Execute runs a data-modifying statement, tenant-scoped.
func (s *Store) Execute(ctx context.Context, query string, params ...any) (storage.Result, error) {
	if err := s.checkOpen(); err != nil {
		return storage.Result{}, err
	}
	query, params = storage.ScopeToTenant(query, s.tenantID, params)
	res, err := s.db.ExecContext(ctx, query, params...)
	if err != nil {
		return storage.Result{}, wrapDBError("execute", err)
	}
	affected, _ := res.RowsAffected()
	lastID, _ := res.LastInsertId()
	return storage.Result{RowsAffected: affected, LastInsertID: lastID}, nil
}

// Query runs a tenant-scoped read and returns all rows.
func (s *Store) Query(ctx context.Context, query string, params ...any) ([]storage.Row, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	query, params = storage.ScopeToTenant(query, s.tenantID, params)
	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, wrapDBError("query", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// QueryOne runs a tenant-scoped read and returns the first row, or nil if
// there were none.
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

// Batch runs a fixed set of statements sequentially, each tenant-scoped,
// outside a transaction (per-statement semantics, matching storage.Batch's
// contract of independent results).
func (s *Store) Batch(ctx context.Context, stmts []storage.Statement) ([]storage.Result, error) {
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

// Transaction runs fn within a SQL transaction, committing on a nil
// return and rolling back (then rethrowing) otherwise.
func (s *Store) Transaction(ctx context.Context, fn func(tx storage.Tx) error) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	tx := &transaction{tx: sqlTx, tenantID: s.tenantID}
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

// IsHealthy pings the underlying connection.
func (s *Store) IsHealthy(ctx context.Context) bool {
	if s.closed.Load() {
		return false
	}
	return s.db.PingContext(ctx) == nil
}

// Close closes the database. Idempotent.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

var _ storage.Storage = (*Store)(nil)

type transaction struct {
	tx       *sql.Tx
	tenantID string
}

func (t *transaction) Execute(ctx context.Context, query string, params ...any) (storage.Result, error) {
	query, params = storage.ScopeToTenant(query, t.tenantID, params)
	res, err := t.tx.ExecContext(ctx, query, params...)
	if err != nil {
		return storage.Result{}, wrapDBError("execute", err)
	}
	affected, _ := res.RowsAffected()
	lastID, _ := res.LastInsertId()
	return storage.Result{RowsAffected: affected, LastInsertID: lastID}, nil
}

func (t *transaction) Query(ctx context.Context, query string, params ...any) ([]storage.Row, error) {
	query, params = storage.ScopeToTenant(query, t.tenantID, params)
	rows, err := t.tx.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, wrapDBError("query", err)
	}
	defer rows.Close()
	return scanRows(rows)
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
