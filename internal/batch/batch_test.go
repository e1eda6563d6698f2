package batch

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ormql/internal/dialect"
	"github.com/roach88/ormql/internal/exp"
	"github.com/roach88/ormql/internal/jsontok"
	"github.com/roach88/ormql/internal/schema"
	"github.com/roach88/ormql/internal/store"
	"github.com/roach88/ormql/internal/translate"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fixture struct {
	store *store.Store
	tr    *translate.Translator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sc, err := schema.LoadFile("../schema/testdata/gallery.yaml")
	require.NoError(t, err)
	s, err := store.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.ApplySchema(context.Background(), sc, dialect.MustLookup(dialect.SQLite)))
	return &fixture{store: s, tr: translate.New(sc)}
}

// locatorSQLite is SQLite set up to exercise the locator LOB protocol.
func locatorSQLite() *dialect.Dialect {
	d := dialect.MustLookup(dialect.SQLite)
	d.LOB = dialect.LOBLocator
	d.EmptyLOB = map[schema.Type]string{schema.Clob: "''", schema.Blob: "X''"}
	return d
}

// recordingConn records every statement sent to the database.
type recordingConn struct {
	store.Conn
	stmts []string
}

func (c *recordingConn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	c.stmts = append(c.stmts, query)
	return c.Conn.ExecContext(ctx, query, args...)
}

func (c *recordingConn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	c.stmts = append(c.stmts, query)
	return c.Conn.QueryContext(ctx, query, args...)
}

func TestExecutePlainInsert(t *testing.T) {
	f := newFixture(t)
	w := New(f.tr, dialect.MustLookup(dialect.SQLite), discard)

	res, err := w.Execute(context.Background(), f.store.DB(), Query{
		Entity:     "Artist",
		Op:         Insert,
		Attributes: []string{"id", "name"},
		Rows: []Row{
			{Values: map[string]any{"id": 1, "name": "Picasso"}},
			{Values: map[string]any{"id": 2, "name": nil}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.RowsAffected)
	assert.Equal(t, []RowState{Complete, Complete}, res.States)

	var name sql.NullString
	require.NoError(t, f.store.DB().QueryRow("SELECT ARTIST_NAME FROM ARTIST WHERE ARTIST_ID = 2").Scan(&name))
	assert.False(t, name.Valid)
}

func TestExecuteUpdate(t *testing.T) {
	f := newFixture(t)
	w := New(f.tr, dialect.MustLookup(dialect.SQLite), discard)
	ctx := context.Background()

	_, err := w.Execute(ctx, f.store.DB(), Query{
		Entity: "Artist", Op: Insert, Attributes: []string{"id", "name"},
		Rows: []Row{{Values: map[string]any{"id": 1, "name": "a"}}, {Values: map[string]any{"id": 2, "name": "b"}}},
	})
	require.NoError(t, err)

	res, err := w.Execute(ctx, f.store.DB(), Query{
		Entity: "Artist", Op: Update, Attributes: []string{"name"},
		Rows: []Row{
			{Values: map[string]any{"id": 1, "name": "by key"}},
			{Values: map[string]any{"name": "by qualifier"}, Qualifier: exp.MustParse("name = 'b'")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.RowsAffected)

	var names []string
	rows, err := f.store.Query(ctx, "SELECT ARTIST_NAME FROM ARTIST ORDER BY ARTIST_ID")
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var n string
		require.NoError(t, rows.Scan(&n))
		names = append(names, n)
	}
	assert.Equal(t, []string{"by key", "by qualifier"}, names)

	_, err = w.Execute(ctx, f.store.DB(), Query{
		Entity: "Artist", Op: Update, Attributes: []string{"name"},
		Rows: []Row{{Values: map[string]any{"name": "no key"}}},
	})
	assert.Error(t, err)
}

func TestExecuteLOBProtocol(t *testing.T) {
	f := newFixture(t)
	conn := &recordingConn{Conn: f.store.DB()}
	w := New(f.tr, locatorSQLite(), discard)

	res, err := w.Execute(context.Background(), conn, Query{
		Entity:     "PaintingInfo",
		Op:         Insert,
		Attributes: []string{"paintingId", "image", "review", "metadata"},
		Rows: []Row{{Values: map[string]any{
			"paintingId": 7,
			"image":      []byte{0x89, 'P', 'N', 'G'},
			"review":     strings.NewReader("A masterpiece."),
			"metadata":   map[string]any{"room": 12},
		}}},
	})
	require.NoError(t, err)
	assert.Equal(t, []RowState{Complete}, res.States)

	assert.Equal(t, []string{
		"INSERT INTO PAINTING_INFO (PAINTING_ID, IMAGE_BLOB, TEXT_REVIEW, METADATA) VALUES (?, X'', '', ?)",
		"SELECT IMAGE_BLOB, TEXT_REVIEW FROM PAINTING_INFO WHERE PAINTING_ID = ?",
		"UPDATE PAINTING_INFO SET IMAGE_BLOB = ? WHERE PAINTING_ID = ?",
		"UPDATE PAINTING_INFO SET TEXT_REVIEW = ? WHERE PAINTING_ID = ?",
	}, conn.stmts)

	var image []byte
	var review, metadata string
	require.NoError(t, f.store.DB().QueryRow(
		"SELECT IMAGE_BLOB, TEXT_REVIEW, METADATA FROM PAINTING_INFO WHERE PAINTING_ID = 7").Scan(&image, &review, &metadata))
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, image)
	assert.Equal(t, "A masterpiece.", review)
	assert.Equal(t, `{"room":12}`, metadata)
}

func TestExecuteLOBNullSkipsProtocol(t *testing.T) {
	f := newFixture(t)
	conn := &recordingConn{Conn: f.store.DB()}
	w := New(f.tr, locatorSQLite(), discard)

	_, err := w.Execute(context.Background(), conn, Query{
		Entity: "PaintingInfo", Op: Insert, Attributes: []string{"paintingId", "review"},
		Rows: []Row{{Values: map[string]any{"paintingId": 1, "review": nil}}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"INSERT INTO PAINTING_INFO (PAINTING_ID, TEXT_REVIEW) VALUES (?, NULL)"}, conn.stmts)
}

func TestExecuteInlineLOB(t *testing.T) {
	f := newFixture(t)
	w := New(f.tr, dialect.MustLookup(dialect.SQLite), discard)

	_, err := w.Execute(context.Background(), f.store.DB(), Query{
		Entity: "PaintingInfo", Op: Insert, Attributes: []string{"paintingId", "review", "metadata"},
		Rows: []Row{{Values: map[string]any{
			"paintingId": 1,
			"review":     bytes.NewBufferString("inline"),
			"metadata":   jsontok.MustDocument(`{"a": [1, 2]}`),
		}}},
	})
	require.NoError(t, err)

	var review, metadata string
	require.NoError(t, f.store.DB().QueryRow("SELECT TEXT_REVIEW, METADATA FROM PAINTING_INFO").Scan(&review, &metadata))
	assert.Equal(t, "inline", review)
	assert.Equal(t, `{"a": [1, 2]}`, metadata)
}

func TestExecuteFatalErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("unmapped lob type", func(t *testing.T) {
		f := newFixture(t)
		d := locatorSQLite()
		delete(d.EmptyLOB, schema.Blob)
		w := New(f.tr, d, discard)

		res, err := w.Execute(ctx, f.store.DB(), Query{
			Entity: "PaintingInfo", Op: Insert, Attributes: []string{"paintingId", "image"},
			Rows: []Row{{Values: map[string]any{"paintingId": 1, "image": []byte("x")}}},
		})
		require.Error(t, err)
		assert.True(t, HasCode(err, ErrCodeUnmappedLOBType), err.Error())
		assert.Equal(t, []RowState{Pending}, res.States)

		var fe *FatalError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, "IMAGE_BLOB", fe.Column)
	})

	t.Run("locator row missing", func(t *testing.T) {
		f := newFixture(t)
		w := New(f.tr, locatorSQLite(), discard)

		res, err := w.Execute(ctx, f.store.DB(), Query{
			Entity: "PaintingInfo", Op: Update, Attributes: []string{"review"},
			Rows: []Row{{Values: map[string]any{"paintingId": 99, "review": "gone"}}},
		})
		assert.True(t, HasCode(err, ErrCodeLocatorRowMissing), "got %v", err)
		assert.Equal(t, []RowState{PlaceholdersWritten}, res.States)
	})

	t.Run("locator row duplicate", func(t *testing.T) {
		f := newFixture(t)
		w := New(f.tr, locatorSQLite(), discard)
		_, err := w.Execute(ctx, f.store.DB(), Query{
			Entity: "PaintingInfo", Op: Insert, Attributes: []string{"paintingId"},
			Rows: []Row{{Values: map[string]any{"paintingId": 1}}, {Values: map[string]any{"paintingId": 2}}},
		})
		require.NoError(t, err)

		res, err := w.Execute(ctx, f.store.DB(), Query{
			Entity: "PaintingInfo", Op: Update, Attributes: []string{"review"},
			Rows: []Row{
				{Values: map[string]any{"review": "both"}, Qualifier: exp.MustParse("paintingId > 0")},
				{Values: map[string]any{"paintingId": 1, "review": "never written"}},
			},
		})
		assert.True(t, IsFatal(err))
		assert.True(t, HasCode(err, ErrCodeLocatorRowDuplicate), "got %v", err)
		assert.Equal(t, []RowState{PlaceholdersWritten, Pending}, res.States)
	})
}

// streamConn hands out in-memory locator writers.
type streamConn struct {
	store.Conn
	written  map[any]*bytes.Buffer
	closed   int
	failNext bool
}

type locatorWriter struct {
	c   *streamConn
	buf *bytes.Buffer
}

func (w *locatorWriter) Write(p []byte) (int, error) {
	if w.c.failNext {
		return 0, errors.New("write failed")
	}
	return w.buf.Write(p)
}

func (w *locatorWriter) Close() error {
	w.c.closed++
	if w.c.failNext {
		return errors.New("close failed")
	}
	return nil
}

func (c *streamConn) OpenLocator(_ context.Context, locator any) (io.WriteCloser, error) {
	buf := new(bytes.Buffer)
	c.written[len(c.written)] = buf
	return &locatorWriter{c: c, buf: buf}, nil
}

func TestExecuteLocatorStreams(t *testing.T) {
	f := newFixture(t)
	conn := &streamConn{Conn: f.store.DB(), written: map[any]*bytes.Buffer{}}
	d := locatorSQLite()
	require.True(t, d.Negotiate(conn))
	w := New(f.tr, d, discard)
	q := Query{
		Entity: "PaintingInfo", Op: Insert, Attributes: []string{"paintingId", "review"},
		Rows: []Row{{Values: map[string]any{"paintingId": 1, "review": "streamed"}}},
	}

	_, err := w.Execute(context.Background(), conn, q)
	require.NoError(t, err)
	require.Len(t, conn.written, 1)
	assert.Equal(t, "streamed", conn.written[0].String())
	assert.Equal(t, 1, conn.closed)

	t.Run("close error after write error is dropped", func(t *testing.T) {
		conn.failNext = true
		q.Rows[0].Values["paintingId"] = 2
		res, err := w.Execute(context.Background(), conn, q)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "write failed")
		assert.NotContains(t, err.Error(), "close failed")
		assert.Equal(t, 2, conn.closed)
		assert.Equal(t, []RowState{Locked}, res.States)
	})
}

func TestRowStateString(t *testing.T) {
	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "placeholders_written", PlaceholdersWritten.String())
	assert.Equal(t, "complete", Complete.String())
	assert.Equal(t, "UPDATE", Update.String())
}

func TestInsertRows(t *testing.T) {
	f := newFixture(t)
	e, err := f.tr.Schema.Entity("Painting")
	require.NoError(t, err)

	q, err := InsertRows(e, []map[string]any{
		{"title": "Guernica", "id": 1},
		{"id": 2, "price": 10},
	})
	require.NoError(t, err)
	assert.Equal(t, "Painting", q.Entity)
	assert.Equal(t, Insert, q.Op)
	assert.Equal(t, []string{"id", "title", "price"}, q.Attributes)
	require.Len(t, q.Rows, 2)

	res, err := New(f.tr, dialect.MustLookup(dialect.SQLite), discard).Execute(context.Background(), f.store.DB(), q)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.RowsAffected)

	var title sql.NullString
	require.NoError(t, f.store.DB().QueryRow("SELECT PAINTING_TITLE FROM PAINTING WHERE PAINTING_ID = 2").Scan(&title))
	assert.False(t, title.Valid)

	_, err = InsertRows(e, []map[string]any{{"id": 3, "artist": 1}})
	require.ErrorIs(t, err, translate.ErrUnknownPath)
	assert.Contains(t, err.Error(), `"artist"`)
}
