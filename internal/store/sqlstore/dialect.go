package sqlstore

import (
	"errors"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Driver names accepted by Open.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

type dialect struct {
	name string
	// schema is the DDL applied by Migrate.
	schema string
	// dateExpr renders a date column as 'YYYY-MM-DD' text.
	dateExpr func(col string) string
	// conflict reports whether err is a transient write conflict.
	conflict func(err error) bool
}

func dialectFor(driver string) (dialect, bool) {
	switch driver {
	case DriverPostgres:
		return dialect{
			name:     DriverPostgres,
			schema:   postgresSchema,
			dateExpr: func(col string) string { return "to_char(" + col + ", 'YYYY-MM-DD')" },
			conflict: pqConflict,
		}, true
	case DriverSQLite:
		return dialect{
			name:     DriverSQLite,
			schema:   sqliteSchema,
			dateExpr: func(col string) string { return col },
			conflict: sqliteConflict,
		}, true
	}
	return dialect{}, false
}

// rebind rewrites ? placeholders to $n for Postgres.
func (d dialect) rebind(query string) string {
	if d.name != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func pqConflict(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code {
	case "40001", // serialization_failure
		"40P01", // deadlock_detected
		"23505": // unique_violation
		return true
	}
	return false
}

func sqliteConflict(err error) bool {
	var sqErr sqlite3.Error
	if !errors.As(err, &sqErr) {
		return false
	}
	switch sqErr.Code {
	case sqlite3.ErrBusy, sqlite3.ErrLocked:
		return true
	case sqlite3.ErrConstraint:
		return sqErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			sqErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
