// Package store wraps database/sql for ormql.
//
// A Store owns one *sql.DB opened through one of the registered drivers:
//
//   - sqlite3 (github.com/mattn/go-sqlite3), used by tests and the
//     conformance harness
//   - pgx (github.com/jackc/pgx/v5/stdlib)
//   - postgres (github.com/lib/pq)
//
// # SQLite configuration
//
//   - WAL mode: concurrent reads during writes
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON
//   - case_sensitive_like=ON: LIKE compares the way in-memory
//     evaluation does
//   - a single connection, so ":memory:" databases are shared by every
//     statement of the store
//
// Rows read back are converted to the attribute types of the schema by
// ScanRows: DECIMAL to *apd.Decimal, JSON to jsontok.Document, BOOLEAN to
// bool, integers to int64.
package store
