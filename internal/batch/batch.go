// Package batch writes rows of one entity with one statement shape.
//
// Rows are written one statement at a time, strictly in order, through the
// caller's connection or transaction. Rows that carry CLOB or BLOB values
// on a dialect with the locator LOB strategy go through three steps:
//
//  1. INSERT or UPDATE with every LOB column set to the dialect's empty
//     LOB value
//  2. SELECT the LOB columns of that row FOR UPDATE; exactly one row must
//     come back
//  3. write each payload through its locator, or through an UPDATE when
//     the driver has no locator streams
//
// A failure in step 3 leaves earlier columns written; the caller's
// transaction decides what survives.
package batch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/ormql/internal/dialect"
	"github.com/roach88/ormql/internal/exp"
	"github.com/roach88/ormql/internal/jsontok"
	"github.com/roach88/ormql/internal/schema"
	"github.com/roach88/ormql/internal/sqltree"
	"github.com/roach88/ormql/internal/store"
	"github.com/roach88/ormql/internal/translate"
)

// Op is the statement a batch runs for each row.
type Op int

const (
	Insert Op = iota
	Update
)

func (o Op) String() string {
	if o == Update {
		return "UPDATE"
	}
	return "INSERT"
}

// Row is one row of a batch. Values are keyed by attribute name. Qualifier
// selects the row of an Update; when nil the primary key values are used.
type Row struct {
	Values    map[string]any
	Qualifier exp.Expression
}

// Query is a batch of rows sharing an entity, an operation and the list of
// attributes written.
type Query struct {
	Entity     string
	Op         Op
	Attributes []string
	Rows       []Row
}

// InsertRows returns an insert batch of rows for entity e. The attributes
// written are those any row sets, in schema order; rows leaving one of them
// out insert NULL.
func InsertRows(e *schema.Entity, rows []map[string]any) (Query, error) {
	used := make(map[string]bool)
	for i, row := range rows {
		for k := range row {
			if _, ok := e.Attribute(k); !ok {
				return Query{}, fmt.Errorf("%s row %d: %w: %q", e.Name, i, translate.ErrUnknownPath, k)
			}
			used[k] = true
		}
	}
	q := Query{Entity: e.Name, Op: Insert, Rows: make([]Row, len(rows))}
	for _, a := range e.Attributes {
		if used[a.Name] {
			q.Attributes = append(q.Attributes, a.Name)
		}
	}
	for i, values := range rows {
		q.Rows[i] = Row{Values: values}
	}
	return q, nil
}

// RowState tracks a row through the LOB protocol.
type RowState int

const (
	Pending RowState = iota
	PlaceholdersWritten
	Locked
	Streamed
	Complete
)

func (s RowState) String() string {
	switch s {
	case PlaceholdersWritten:
		return "placeholders_written"
	case Locked:
		return "locked"
	case Streamed:
		return "streamed"
	case Complete:
		return "complete"
	}
	return "pending"
}

// Result reports what a batch did.
type Result struct {
	RowsAffected int64
	// States holds the final state of each row. Rows after a failure stay
	// Pending.
	States []RowState
}

// Writer runs batches for a schema and dialect.
type Writer struct {
	translator *translate.Translator
	dialect    *dialect.Dialect
	logger     *slog.Logger
}

// New returns a writer. A nil logger uses slog.Default.
func New(tr *translate.Translator, d *dialect.Dialect, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{translator: tr, dialect: d, logger: logger}
}

// Execute writes every row of q through conn in order and stops at the
// first error.
func (w *Writer) Execute(ctx context.Context, conn store.Conn, q Query) (Result, error) {
	res := Result{States: make([]RowState, len(q.Rows))}
	e, err := w.translator.Schema.Entity(q.Entity)
	if err != nil {
		return res, fmt.Errorf("batch: %w", err)
	}
	attrs := make([]*schema.Attribute, len(q.Attributes))
	for i, name := range q.Attributes {
		a, ok := e.Attribute(name)
		if !ok {
			return res, fmt.Errorf("batch %s: %w: %q", e.Name, translate.ErrUnknownPath, name)
		}
		attrs[i] = a
	}

	for i, row := range q.Rows {
		rw := &rowWriter{w: w, conn: conn, entity: e, op: q.Op, attrs: attrs, row: row, index: i, state: &res.States[i]}
		n, err := rw.write(ctx)
		res.RowsAffected += n
		if err != nil {
			return res, err
		}
	}
	w.logger.Debug("batch written", "entity", e.Name, "op", q.Op, "rows", len(q.Rows), "affected", res.RowsAffected)
	return res, nil
}

// rowWriter writes a single row.
type rowWriter struct {
	w      *Writer
	conn   store.Conn
	entity *schema.Entity
	op     Op
	attrs  []*schema.Attribute
	row    Row
	index  int
	state  *RowState
}

func (r *rowWriter) write(ctx context.Context) (int64, error) {
	var lobs []*schema.Attribute
	if r.w.dialect.LOB == dialect.LOBLocator {
		for _, a := range r.attrs {
			if a.Type.IsLOB() && r.row.Values[a.Name] != nil {
				lobs = append(lobs, a)
			}
		}
	}

	values := make([]sqltree.Node, len(r.attrs))
	for i, a := range r.attrs {
		if isLOB(a, lobs) {
			empty, ok := r.w.dialect.EmptyLOB[a.Type]
			if !ok {
				return 0, r.fatal(ErrCodeUnmappedLOBType, a, fmt.Sprintf("dialect %s has no empty value for %s", r.w.dialect.Name, a.Type))
			}
			values[i] = &sqltree.Text{SQL: empty}
			continue
		}
		v, err := bindValue(r.row.Values[a.Name], a.Type)
		if err != nil {
			return 0, fmt.Errorf("batch %s row %d: %s: %w", r.entity.Name, r.index, a.Name, err)
		}
		if v == nil {
			values[i] = &sqltree.Text{SQL: "NULL"}
		} else {
			values[i] = &sqltree.Value{V: v}
		}
	}

	where, err := r.qualifier()
	if err != nil && (r.op == Update || len(lobs) > 0) {
		return 0, fmt.Errorf("batch %s row %d: %w", r.entity.Name, r.index, err)
	}

	var stmt sqltree.Node
	if r.op == Update {
		stmt, err = r.w.translator.Update(r.entity.Name, names(r.attrs), values, where)
	} else {
		stmt, err = r.w.translator.Insert(r.entity.Name, names(r.attrs), values)
	}
	if err != nil {
		return 0, err
	}
	n, err := r.exec(ctx, stmt)
	if err != nil {
		return 0, err
	}
	if len(lobs) == 0 {
		*r.state = Complete
		return n, nil
	}
	*r.state = PlaceholdersWritten

	locators, err := r.lock(ctx, lobs, where)
	if err != nil {
		return n, err
	}
	*r.state = Locked

	for i, a := range lobs {
		if err := r.stream(ctx, a, locators[i], where); err != nil {
			return n, err
		}
		*r.state = Streamed
	}
	*r.state = Complete
	return n, nil
}

// qualifier returns the expression selecting this row.
func (r *rowWriter) qualifier() (exp.Expression, error) {
	if r.row.Qualifier != nil {
		return r.row.Qualifier, nil
	}
	return translate.PrimaryKeyQualifier(r.entity, r.row.Values)
}

func (r *rowWriter) exec(ctx context.Context, stmt sqltree.Node) (int64, error) {
	query, args, err := r.w.dialect.SQL(stmt)
	if err != nil {
		return 0, fmt.Errorf("batch %s row %d: %w", r.entity.Name, r.index, err)
	}
	r.w.logger.Debug("batch statement", "entity", r.entity.Name, "row", r.index, "sql", query)
	res, err := r.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("batch %s row %d: %w", r.entity.Name, r.index, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		// Not every driver reports affected rows.
		return 0, nil
	}
	return n, nil
}

// lock selects the LOB columns of the row just written and returns one
// locator per column.
func (r *rowWriter) lock(ctx context.Context, lobs []*schema.Attribute, where exp.Expression) ([]any, error) {
	cond, err := r.w.translator.Where(r.entity.Name, where)
	if err != nil {
		return nil, fmt.Errorf("batch %s row %d: %w", r.entity.Name, r.index, err)
	}
	sel := &sqltree.Select{From: []sqltree.Node{&sqltree.Table{Name: r.entity.Table}}, Where: cond, ForUpdate: true}
	for _, a := range lobs {
		sel.Columns = append(sel.Columns, &sqltree.ResultColumn{Expr: sqltree.Col("", a.Column)})
	}
	query, args, err := r.w.dialect.SQL(sel)
	if err != nil {
		return nil, fmt.Errorf("batch %s row %d: %w", r.entity.Name, r.index, err)
	}
	r.w.logger.Debug("batch lock", "entity", r.entity.Name, "row", r.index, "sql", query)

	rows, err := r.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("batch %s row %d: %w", r.entity.Name, r.index, err)
	}
	defer rows.Close()

	var locators []any
	count := 0
	for rows.Next() {
		count++
		if count > 1 {
			return nil, r.fatal(ErrCodeLocatorRowDuplicate, nil, "locator select matched more than one row")
		}
		locators = make([]any, len(lobs))
		ptrs := make([]any, len(lobs))
		for i := range locators {
			ptrs[i] = &locators[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("batch %s row %d: %w", r.entity.Name, r.index, err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("batch %s row %d: %w", r.entity.Name, r.index, err)
	}
	if count == 0 {
		return nil, r.fatal(ErrCodeLocatorRowMissing, nil, "locator select matched no row")
	}
	return locators, nil
}

// stream copies the payload of a into its locator. The writer is always
// closed; when the copy failed the close error is dropped.
func (r *rowWriter) stream(ctx context.Context, a *schema.Attribute, locator any, where exp.Expression) (err error) {
	wc, err := r.openWriter(ctx, a, locator, where)
	if err != nil {
		return fmt.Errorf("batch %s row %d: open %s: %w", r.entity.Name, r.index, a.Column, err)
	}
	defer func() {
		if cerr := wc.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("batch %s row %d: close %s: %w", r.entity.Name, r.index, a.Column, cerr)
		}
	}()

	src, err := payload(r.row.Values[a.Name])
	if err != nil {
		return fmt.Errorf("batch %s row %d: %s: %w", r.entity.Name, r.index, a.Name, err)
	}
	if _, err := io.Copy(wc, src); err != nil {
		return fmt.Errorf("batch %s row %d: write %s: %w", r.entity.Name, r.index, a.Column, err)
	}
	return nil
}

func (r *rowWriter) openWriter(ctx context.Context, a *schema.Attribute, locator any, where exp.Expression) (io.WriteCloser, error) {
	if r.w.dialect.LocatorStreams {
		if opener, ok := r.conn.(dialect.LocatorOpener); ok {
			return opener.OpenLocator(ctx, locator)
		}
	}
	return &updateWriter{ctx: ctx, r: r, attr: a, where: where}, nil
}

func (r *rowWriter) fatal(code ErrorCode, a *schema.Attribute, msg string) error {
	fe := &FatalError{Code: code, Message: msg, Entity: r.entity.Name, Row: r.index}
	if a != nil {
		fe.Column = a.Column
	}
	r.w.logger.Error("batch aborted", "code", code, "entity", r.entity.Name, "row", r.index, "error", msg)
	return fe
}

// updateWriter buffers a LOB payload and writes it with an UPDATE on
// Close, for drivers without locator streams.
type updateWriter struct {
	ctx   context.Context
	r     *rowWriter
	attr  *schema.Attribute
	where exp.Expression
	buf   bytes.Buffer
}

func (u *updateWriter) Write(p []byte) (int, error) { return u.buf.Write(p) }

func (u *updateWriter) Close() error {
	var v any = u.buf.Bytes()
	if u.attr.Type == schema.Clob {
		v = u.buf.String()
	}
	stmt, err := u.r.w.translator.Update(u.r.entity.Name, []string{u.attr.Name}, []sqltree.Node{&sqltree.Value{V: v}}, u.where)
	if err != nil {
		return err
	}
	_, err = u.r.exec(u.ctx, stmt)
	return err
}

func isLOB(a *schema.Attribute, lobs []*schema.Attribute) bool {
	for _, l := range lobs {
		if l == a {
			return true
		}
	}
	return false
}

func names(attrs []*schema.Attribute) []string {
	out := make([]string, len(attrs))
	for i, a := range attrs {
		out[i] = a.Name
	}
	return out
}

// payload returns a reader over a LOB value.
func payload(v any) (io.Reader, error) {
	switch x := v.(type) {
	case []byte:
		return bytes.NewReader(x), nil
	case string:
		return bytes.NewReader([]byte(x)), nil
	case io.Reader:
		return x, nil
	}
	return nil, fmt.Errorf("unsupported LOB value %T", v)
}

// bindValue prepares v for binding to a column of type t.
func bindValue(v any, t schema.Type) (any, error) {
	if v == nil {
		return nil, nil
	}
	if rd, ok := v.(io.Reader); ok && t.IsLOB() {
		b, err := io.ReadAll(rd)
		if err != nil {
			return nil, err
		}
		if t == schema.Clob {
			return string(b), nil
		}
		return b, nil
	}
	if t == schema.JSON {
		switch x := v.(type) {
		case jsontok.Document:
			return x, nil
		case string:
			return jsontok.NewDocument(x)
		}
		b, err := jsontok.Canonical(v)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}
	return v, nil
}
