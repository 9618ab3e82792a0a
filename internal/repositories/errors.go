package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a specific record is not found.
	ErrNotFound = errors.New("requested record not found")

	// ErrDatabaseError is returned for unexpected database errors.
	// It can be used to wrap more specific driver errors.
	ErrDatabaseError = errors.New("database error")

	// ErrDuplicateKey is returned when an insert/update violates a unique constraint.
	ErrDuplicateKey = errors.New("duplicate key value violates unique constraint")
)

// SQLExecutor is satisfied by *sql.DB and *sql.Tx.
// Mutating repository methods take one so services can run them inside a transaction.
type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// scanner is an interface satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// wrapWriteError maps driver errors of INSERT/UPDATE statements.
func wrapWriteError(err error, op string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return fmt.Errorf("%w: %s (constraint: %s)", ErrDuplicateKey, op, pqErr.Constraint)
	}
	return fmt.Errorf("%w: %s: %v", ErrDatabaseError, op, err)
}

// advisoryLock serializes work on key until the surrounding transaction ends.
func advisoryLock(ctx context.Context, executor SQLExecutor, key string) error {
	if _, err := executor.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return fmt.Errorf("%w: advisory lock %s: %v", ErrDatabaseError, key, err)
	}
	return nil
}

// lastDocumentNumber returns the highest number in table for the LIKE pattern, or "".
// Longer numbers sort first so sequences past the zero padding keep increasing.
func lastDocumentNumber(ctx context.Context, executor SQLExecutor, table, pattern string) (string, error) {
	query := fmt.Sprintf(`SELECT document_number FROM %s
	          WHERE document_number LIKE $1
	          ORDER BY length(document_number) DESC, document_number DESC
	          LIMIT 1`, table)
	var last string
	err := executor.QueryRowContext(ctx, query, pattern).Scan(&last)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("%w: reading last document number from %s: %v", ErrDatabaseError, table, err)
	}
	return last, nil
}

func rowsAffected(result sql.Result, op string) (int64, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: getting rows affected for %s: %v", ErrDatabaseError, op, err)
	}
	return n, nil
}

func pageOffset(page, pageSize int) (int, int) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if page <= 0 {
		page = 1
	}
	return pageSize, (page - 1) * pageSize
}
