package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const uniqueViolationCode = "23505"

// IsUniqueViolation reports whether err is a unique constraint violation. When
// constraintName is set, Postgres errors must reference that constraint. SQLite
// only reports columns, so its column list is matched against the default
// Postgres name "<table>_<col>..._key".
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}

	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code == uniqueViolationCode && matchesConstraint(pgxErr.ConstraintName, constraintName)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolationCode && matchesConstraint(pqErr.Constraint, constraintName)
	}

	msg := err.Error()
	if columns, ok := sqliteUniqueColumns(msg); ok {
		return constraintName == "" || defaultConstraintName(columns) == constraintName
	}
	if !strings.Contains(msg, "duplicate key value") {
		return false
	}
	return constraintName == "" || strings.Contains(msg, constraintName)
}

func matchesConstraint(actual, expected string) bool {
	return expected == "" || actual == expected
}

const sqliteUniquePrefix = "UNIQUE constraint failed: "

// sqliteUniqueColumns extracts "orders.order_number, ..." from a SQLite
// unique failure.
func sqliteUniqueColumns(msg string) ([]string, bool) {
	_, rest, found := strings.Cut(msg, sqliteUniquePrefix)
	if !found {
		return nil, false
	}
	if i := strings.Index(rest, " ("); i >= 0 {
		rest = rest[:i]
	}
	parts := strings.Split(rest, ",")
	columns := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			columns = append(columns, part)
		}
	}
	return columns, true
}

func defaultConstraintName(columns []string) string {
	if len(columns) == 0 {
		return ""
	}
	table, _, _ := strings.Cut(columns[0], ".")
	names := []string{table}
	for _, column := range columns {
		_, name, found := strings.Cut(column, ".")
		if !found {
			name = column
		}
		names = append(names, name)
	}
	return strings.Join(names, "_") + "_key"
}
