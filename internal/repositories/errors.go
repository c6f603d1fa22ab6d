package repositories

import (
	"database/sql"
	"errors"

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

	// ErrSchemaMissing is returned when a query hits a table or function
	// that does not exist. It means the database schema was never applied
	// or is out of date, a deployment problem rather than a runtime fault.
	ErrSchemaMissing = errors.New("database schema missing or out of date")
)

// SQLExecutor defines an interface that can be satisfied by *sql.DB or *sql.Tx
// This allows repository methods to be used within transactions or with a direct DB connection.
type SQLExecutor interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	QueryRow(query string, args ...interface{}) *sql.Row
	Query(query string, args ...interface{}) (*sql.Rows, error)
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505). Used to detect idempotency-key collisions.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// isUndefinedObject reports whether err is a Postgres undefined-table
// (42P01) or undefined-function (42883) error, both symptoms of a schema
// that was never applied.
func isUndefinedObject(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "42P01" || pqErr.Code == "42883"
	}
	return false
}

// classifySQLError picks the sentinel to wrap a driver error with.
func classifySQLError(err error) error {
	if isUndefinedObject(err) {
		return ErrSchemaMissing
	}
	return ErrDatabaseError
}
