// Package dialect adapts generic SQL trees to a database.
//
// A Dialect is a plain struct of capability fields. Process runs the
// dialect's rewrite passes over a tree built by package translate:
//
//   - function substitution (portable names to vendor functions)
//   - IN-list batching (long IN lists split into OR-ed slices)
//   - Oracle 8 join syntax (ANSI joins to WHERE conditions with (+))
//   - ROWNUM pagination (LIMIT/OFFSET to nested ROWNUM selects)
//
// Every pass rebuilds the tree; the input is never modified.
package dialect

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/lib/pq"

	"github.com/roach88/ormql/internal/schema"
	"github.com/roach88/ormql/internal/sqltree"
)

// Names of the built-in dialects.
const (
	Generic  = "generic"
	SQLite   = "sqlite"
	Postgres = "postgres"
	Oracle   = "oracle"
	Oracle8  = "oracle8"
)

// ErrUnknownDialect is returned by Lookup for a name it does not know.
var ErrUnknownDialect = errors.New("unknown dialect")

// Pagination selects how a result window is expressed.
type Pagination int

const (
	// PaginateLimitOffset renders LIMIT n OFFSET m.
	PaginateLimitOffset Pagination = iota
	// PaginateOffsetFetch renders OFFSET m ROWS FETCH NEXT n ROWS ONLY.
	PaginateOffsetFetch
	// PaginateRowNum wraps the query in ROWNUM selects.
	PaginateRowNum
)

// LOBStrategy selects how CLOB and BLOB values are written.
type LOBStrategy int

const (
	// LOBInline binds LOB values like any other parameter.
	LOBInline LOBStrategy = iota
	// LOBLocator writes empty LOB placeholders, locks the row and streams
	// the payload through the selected locators.
	LOBLocator
)

// JoinStyle selects how joins are written.
type JoinStyle int

const (
	ANSIJoins JoinStyle = iota
	// OracleJoins lists joined tables in FROM and moves join conditions to
	// WHERE, marking the optional side of outer joins with (+).
	OracleJoins
)

// Rewrite replaces a portable function call with its vendor form. The
// arguments are already rewritten.
type Rewrite func(args []sqltree.Node) sqltree.Node

// MaxRowNum bounds a ROWNUM window that has an offset but no limit.
const MaxRowNum = math.MaxInt32

// Dialect is the set of capabilities of one database.
type Dialect struct {
	Name string

	Pagination Pagination
	// InListLimit is the largest number of values in one IN list. Zero
	// disables batching.
	InListLimit int
	Functions   map[string]Rewrite
	JoinStyle   JoinStyle

	LOB LOBStrategy
	// EmptyLOB is the SQL text of an empty value per LOB column type, used
	// as the placeholder written before streaming.
	EmptyLOB map[schema.Type]string
	// LocatorStreams reports whether the driver hands out writable LOB
	// locators. Set by Negotiate.
	LocatorStreams bool
	ForUpdate      bool

	Placeholder     sqltree.PlaceholderStyle
	QuoteIdent      func(string) string
	NullsOrdering   bool
	UnboundedLimit  string
	BareColumnAlias bool

	// Types maps schema column types to DDL type names.
	Types map[schema.Type]string
}

var builders = map[string]func() *Dialect{
	Generic:  newGeneric,
	SQLite:   newSQLite,
	Postgres: newPostgres,
	Oracle:   newOracle,
	Oracle8:  newOracle8,
}

// Lookup returns a fresh dialect for name. Callers may change its fields.
func Lookup(name string) (*Dialect, error) {
	build, ok := builders[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownDialect, name, strings.Join(Names(), ", "))
	}
	return build(), nil
}

// MustLookup is Lookup for names known to be valid.
func MustLookup(name string) *Dialect {
	d, err := Lookup(name)
	if err != nil {
		panic(err)
	}
	return d
}

// Names lists the built-in dialects in sorted order.
func Names() []string {
	names := make([]string, 0, len(builders))
	for n := range builders {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// WithInListLimit returns a copy of d with the IN-list slice size set to n.
func (d *Dialect) WithInListLimit(n int) *Dialect {
	c := *d
	c.InListLimit = n
	return &c
}

// Renderer returns the renderer configured for d.
func (d *Dialect) Renderer() sqltree.Renderer {
	r := sqltree.Renderer{
		Placeholder:     d.Placeholder,
		UnboundedLimit:  d.UnboundedLimit,
		QuoteIdent:      d.QuoteIdent,
		NullsOrdering:   d.NullsOrdering,
		BareColumnAlias: d.BareColumnAlias,
	}
	switch d.Pagination {
	case PaginateOffsetFetch:
		r.Limit = sqltree.OffsetFetchClause
	case PaginateRowNum:
		r.Limit = sqltree.NoLimitClause
	default:
		r.Limit = sqltree.LimitOffsetClause
	}
	return r
}

// Process runs the dialect's rewrite passes over n and returns the new
// tree.
func (d *Dialect) Process(n sqltree.Node) (sqltree.Node, error) {
	if n == nil {
		return nil, errors.New("dialect: nil tree")
	}
	n, err := d.rewriteFunctions(n)
	if err != nil {
		return nil, err
	}
	if n, err = d.batchInLists(n); err != nil {
		return nil, err
	}
	if !d.ForUpdate {
		n = stripForUpdate(n)
	}
	if d.JoinStyle == OracleJoins {
		n = oracleJoins(n)
	}
	if d.Pagination == PaginateRowNum {
		if sel, ok := n.(*sqltree.Select); ok {
			n = rowNum(sel)
		}
	}
	return n, nil
}

// Render renders an already processed tree.
func (d *Dialect) Render(n sqltree.Node) (string, []any, error) {
	return d.Renderer().Render(n)
}

// SQL processes and renders n.
func (d *Dialect) SQL(n sqltree.Node) (string, []any, error) {
	p, err := d.Process(n)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", d.Name, err)
	}
	return d.Render(p)
}

func stripForUpdate(n sqltree.Node) sqltree.Node {
	sel, ok := n.(*sqltree.Select)
	if !ok || !sel.ForUpdate {
		return n
	}
	c := sqltree.CloneSelect(sel)
	c.ForUpdate = false
	return c
}

func newGeneric() *Dialect {
	return &Dialect{
		Name:          Generic,
		Pagination:    PaginateOffsetFetch,
		Functions:     baseFunctions(),
		ForUpdate:     true,
		NullsOrdering: true,
		Types:         genericTypes(),
	}
}

func newSQLite() *Dialect {
	return &Dialect{
		Name:           SQLite,
		Pagination:     PaginateLimitOffset,
		Functions:      sqliteFunctions(),
		UnboundedLimit: "-1",
		Types:          sqliteTypes(),
	}
}

func newPostgres() *Dialect {
	return &Dialect{
		Name:          Postgres,
		Pagination:    PaginateLimitOffset,
		Functions:     postgresFunctions(),
		ForUpdate:     true,
		Placeholder:   sqltree.Dollar,
		QuoteIdent:    pq.QuoteIdentifier,
		NullsOrdering: true,
		Types:         postgresTypes(),
	}
}

func newOracle() *Dialect {
	return &Dialect{
		Name:        Oracle,
		Pagination:  PaginateRowNum,
		InListLimit: 1000,
		Functions:   oracleFunctions(),
		LOB:         LOBLocator,
		EmptyLOB: map[schema.Type]string{
			schema.Clob: "EMPTY_CLOB()",
			schema.Blob: "EMPTY_BLOB()",
		},
		ForUpdate:       true,
		Placeholder:     sqltree.Colon,
		NullsOrdering:   true,
		BareColumnAlias: true,
		Types:           oracleTypes(),
	}
}

func newOracle8() *Dialect {
	d := newOracle()
	d.Name = Oracle8
	d.JoinStyle = OracleJoins
	return d
}
