package harness

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/roach88/ormql/internal/store"
	"github.com/roach88/ormql/internal/value"
)

// validIdentifier matches valid SQL identifiers (table/column names).
// Only allows alphanumeric and underscore, must start with letter or underscore.
// This prevents SQL injection via identifier interpolation.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string      // Assertion type for categorization
	Expected string      // Human-readable expected outcome
	Actual   string      // Human-readable actual outcome
	Event    *TraceEvent // Query the assertion is about, if any
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if e.Event != nil {
		fmt.Fprintf(&buf, "\nQuery %s:\n  %s\n  args: %v\n", e.Event.Query, e.Event.SQL, e.Event.Args)
	}

	return buf.String()
}

// assertAgreement checks that SQL and in-memory evaluation returned the
// same keys.
func assertAgreement(ev TraceEvent) error {
	if keysEqual(ev.Keys, ev.MemoryKeys) {
		return nil
	}
	return &AssertionError{
		Type:     "agreement",
		Expected: fmt.Sprintf("in-memory keys %v", ev.MemoryKeys),
		Actual:   fmt.Sprintf("SQL keys %v", ev.Keys),
		Event:    &ev,
	}
}

// assertExpectedKeys checks the SQL keys against the scenario's expected
// list, in order when the query is ordered.
func assertExpectedKeys(ev TraceEvent, expect []any, ordered bool) error {
	want := append([]any(nil), expect...)
	if !ordered {
		sortKeys(want)
	}
	if keysEqual(ev.Keys, want) {
		return nil
	}
	return &AssertionError{
		Type:     "expect",
		Expected: fmt.Sprintf("keys %v", want),
		Actual:   fmt.Sprintf("keys %v", ev.Keys),
		Event:    &ev,
	}
}

func keysEqual(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		as, aok := a[i].([]any)
		bs, bok := b[i].([]any)
		if aok && bok {
			if !keysEqual(as, bs) {
				return false
			}
			continue
		}
		if !value.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// assertSQLContains checks that the rendered SQL of a query contains the
// assertion text.
func assertSQLContains(result *Result, assertion Assertion) error {
	ev, ok := result.Event(assertion.Query)
	if !ok {
		return fmt.Errorf("sql_contains: query %q did not run", assertion.Query)
	}
	if strings.Contains(ev.SQL, assertion.Text) {
		return nil
	}
	return &AssertionError{
		Type:     "sql_contains",
		Expected: fmt.Sprintf("SQL containing %q", assertion.Text),
		Actual:   ev.SQL,
		Event:    &ev,
	}
}

// assertRowCount checks the number of rows a query returned.
func assertRowCount(result *Result, assertion Assertion) error {
	ev, ok := result.Event(assertion.Query)
	if !ok {
		return fmt.Errorf("row_count: query %q did not run", assertion.Query)
	}
	if len(ev.Keys) == assertion.Count {
		return nil
	}
	return &AssertionError{
		Type:     "row_count",
		Expected: fmt.Sprintf("%d rows", assertion.Count),
		Actual:   fmt.Sprintf("%d rows", len(ev.Keys)),
		Event:    &ev,
	}
}

// assertFinalState checks if a table contains expected values.
// Queries the table with parameterized SQL and validates
// expected values using subset semantics.
//
// Security: Table and column names are validated against a whitelist pattern
// to prevent SQL injection via identifier interpolation.
func assertFinalState(ctx context.Context, st *store.Store, assertion Assertion) error {
	if assertion.Table == "" {
		return fmt.Errorf("final_state assertion requires table name")
	}

	if !validIdentifier.MatchString(assertion.Table) {
		return fmt.Errorf("invalid table name %q: must match pattern %s", assertion.Table, validIdentifier.String())
	}

	whereSQL, whereArgs, err := buildWhereClause(assertion.Where)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("SELECT * FROM %s", assertion.Table)
	if whereSQL != "" {
		query += " WHERE " + whereSQL
	}

	rows, err := st.Query(ctx, query, whereArgs...)
	if err != nil {
		return &AssertionError{
			Type:     "final_state",
			Expected: fmt.Sprintf("query table %s", assertion.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("get columns: %w", err)
	}

	if !rows.Next() {
		return &AssertionError{
			Type:     "final_state",
			Expected: fmt.Sprintf("row in %s where %s", assertion.Table, formatWhereClause(assertion.Where)),
			Actual:   "row not found",
		}
	}

	values := make([]any, len(columns))
	valuePtrs := make([]any, len(columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}

	if err := rows.Scan(valuePtrs...); err != nil {
		return fmt.Errorf("scan row: %w", err)
	}

	// Several matches make the assertion ambiguous.
	if rows.Next() {
		return &AssertionError{
			Type:     "final_state",
			Expected: fmt.Sprintf("exactly one row in %s where %s", assertion.Table, formatWhereClause(assertion.Where)),
			Actual:   "multiple rows matched (assertion is ambiguous)",
		}
	}

	actualRow := make(map[string]any)
	for i, col := range columns {
		actualRow[strings.ToUpper(col)] = values[i]
	}

	for key, expectedValue := range assertion.Expect {
		actualValue, exists := actualRow[strings.ToUpper(key)]
		if !exists {
			return &AssertionError{
				Type:     "final_state",
				Expected: fmt.Sprintf("column %q to exist", key),
				Actual:   fmt.Sprintf("column %q not present in result columns: %v", key, columns),
			}
		}

		if !stateValuesEqual(expectedValue, actualValue) {
			return &AssertionError{
				Type:     "final_state",
				Expected: fmt.Sprintf("column %q = %v (type %T)", key, expectedValue, expectedValue),
				Actual:   fmt.Sprintf("column %q = %v (type %T)", key, actualValue, actualValue),
			}
		}
	}

	return nil
}

// buildWhereClause constructs parameterized WHERE clause from assertion.Where.
// Returns SQL fragment, arguments slice, and error. Keys are sorted for determinism.
//
// Security: Column names are validated against a whitelist pattern to prevent
// SQL injection via identifier interpolation.
func buildWhereClause(where map[string]any) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}

	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clauses := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))

	for _, key := range keys {
		if !validIdentifier.MatchString(key) {
			return "", nil, fmt.Errorf("invalid column name %q in where clause: must match pattern %s", key, validIdentifier.String())
		}
		clauses = append(clauses, fmt.Sprintf("%s = ?", key))
		args = append(args, where[key])
	}

	return strings.Join(clauses, " AND "), args, nil
}

// formatWhereClause creates a human-readable description of WHERE conditions.
func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}

	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

// stateValuesEqual compares an expected YAML value with a driver value.
// SQLite returns TEXT as string or []byte and booleans as integers.
func stateValuesEqual(expected, actual any) bool {
	if b, ok := actual.([]byte); ok {
		if s, ok := expected.(string); ok {
			return s == string(b)
		}
	}
	if b, ok := expected.(bool); ok {
		if n, ok := actual.(int64); ok {
			return b == (n != 0)
		}
	}
	return value.Equal(expected, actual)
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides database access for final_state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertSQLContains:
			err = assertSQLContains(result, assertion)
		case AssertRowCount:
			err = assertRowCount(result, assertion)
		case AssertFinalState:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires database context", i)
			} else {
				err = assertFinalState(actx.Ctx, actx.Store, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
