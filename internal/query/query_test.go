package query

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ormql/internal/access"
	"github.com/roach88/ormql/internal/batch"
	"github.com/roach88/ormql/internal/dialect"
	"github.com/roach88/ormql/internal/exp"
	"github.com/roach88/ormql/internal/schema"
	"github.com/roach88/ormql/internal/store"
	"github.com/roach88/ormql/internal/translate"
)

var artists = []map[string]any{
	{"id": int64(1), "name": "Picasso"},
	{"id": int64(2), "name": "Dali"},
	{"id": int64(3), "name": "Miro"},
	{"id": int64(4), "name": nil},
	{"id": int64(5), "name": "Degas"},
}

func setup(t *testing.T) (*store.Store, *translate.Translator, *dialect.Dialect) {
	t.Helper()
	sc, err := schema.LoadFile("../schema/testdata/gallery.yaml")
	require.NoError(t, err)
	st, err := store.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	d := dialect.MustLookup(dialect.SQLite)
	require.NoError(t, st.ApplySchema(context.Background(), sc, d))
	tr := translate.New(sc)

	rows := make([]batch.Row, len(artists))
	for i, a := range artists {
		rows[i] = batch.Row{Values: a}
	}
	_, err = batch.New(tr, d, nil).Execute(context.Background(), st.DB(), batch.Query{
		Entity: "Artist", Op: batch.Insert, Attributes: []string{"id", "name"}, Rows: rows,
	})
	require.NoError(t, err)
	return st, tr, d
}

func ids(objects []*access.Object) []int64 {
	out := make([]int64, len(objects))
	for i, o := range objects {
		out[i] = o.Values["id"].(int64)
	}
	return out
}

func mapIDs(objects []map[string]any) []int64 {
	out := make([]int64, len(objects))
	for i, o := range objects {
		out[i] = o["id"].(int64)
	}
	return out
}

func TestSQLAndMemoryAgree(t *testing.T) {
	st, tr, d := setup(t)

	tests := []struct {
		name string
		sel  Select
		want []int64
	}{
		{
			name: "all by id",
			sel:  Select{Entity: "Artist", Orderings: []exp.Ordering{exp.Asc(exp.PathOf("id"))}},
			want: []int64{1, 2, 3, 4, 5},
		},
		{
			name: "like",
			sel:  Select{Entity: "Artist", Where: exp.MustParse("name like 'D%'"), Orderings: []exp.Ordering{exp.Desc(exp.PathOf("name"))}},
			want: []int64{5, 2},
		},
		{
			name: "nulls first ascending",
			sel:  Select{Entity: "Artist", Orderings: []exp.Ordering{exp.Asc(exp.PathOf("name"))}},
			want: []int64{4, 2, 5, 3, 1},
		},
		{
			name: "window",
			sel:  Select{Entity: "Artist", Orderings: []exp.Ordering{exp.Asc(exp.PathOf("id"))}, Offset: 1, Limit: 2},
			want: []int64{2, 3},
		},
		{
			name: "offset only",
			sel:  Select{Entity: "Artist", Orderings: []exp.Ordering{exp.Asc(exp.PathOf("id"))}, Offset: 3},
			want: []int64{4, 5},
		},
		{
			name: "bound parameter",
			sel: Select{
				Entity:    "Artist",
				Where:     exp.MustParse("id > $min and name = $name"),
				Orderings: []exp.Ordering{exp.Asc(exp.PathOf("id"))},
				Params:    map[string]any{"min": 1},
			},
			want: []int64{2, 3, 4, 5},
		},
		{
			name: "not equal skips null",
			sel:  Select{Entity: "Artist", Where: exp.MustParse("name <> 'Dali'"), Orderings: []exp.Ordering{exp.Asc(exp.PathOf("id"))}},
			want: []int64{1, 3, 5},
		},
		{name: "less or equal", sel: byID("id <= 2"), want: []int64{1, 2}},
		{name: "greater", sel: byID("id > 3"), want: []int64{4, 5}},
		{name: "between", sel: byID("id between 2 and 4"), want: []int64{2, 3, 4}},
		{name: "not between", sel: byID("id not between 2 and 4"), want: []int64{1, 5}},
		{name: "in", sel: byID("id in (1, 3, 5)"), want: []int64{1, 3, 5}},
		{name: "not in", sel: byID("id not in (1, 3, 5)"), want: []int64{2, 4}},
		{name: "not in skips null", sel: byID("name not in ('Dali', 'Miro', 'Degas')"), want: []int64{1}},
		{name: "not in with null element", sel: byID("id not in (1, 3, null)"), want: []int64{}},
		{name: "in with null element", sel: byID("id in (2, null, 4)"), want: []int64{2, 4}},
		{name: "not like", sel: byID("name not like 'D%'"), want: []int64{1, 3}},
		{name: "is not null", sel: byID("name <> null"), want: []int64{1, 2, 3, 5}},
		{name: "is null", sel: byID("name = null"), want: []int64{4}},
	}
	dialects := map[string]*dialect.Dialect{
		"unbatched": d,
		"batched":   d.WithInListLimit(2),
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for name, d := range dialects {
				got, err := tt.sel.Execute(context.Background(), st, tr, d)
				require.NoError(t, err, name)
				assert.Equal(t, tt.want, ids(got), name)
			}

			mem, err := InMemory(&tt.sel, artists)
			require.NoError(t, err)
			assert.Equal(t, tt.want, mapIDs(mem))
		})
	}
}

// SQLite's UPPER only maps ASCII letters, so likeIgnoreCase over accented
// text matches in memory but not in SQLite.
func TestIgnoreCaseNonASCII(t *testing.T) {
	st, tr, d := setup(t)
	emile := map[string]any{"id": int64(6), "name": "Émile"}
	_, err := batch.New(tr, d, nil).Execute(context.Background(), st.DB(), batch.Query{
		Entity: "Artist", Op: batch.Insert, Attributes: []string{"id", "name"},
		Rows: []batch.Row{{Values: emile}},
	})
	require.NoError(t, err)

	sel := byID("name likeIgnoreCase 'é%'")
	got, err := sel.Execute(context.Background(), st, tr, d)
	require.NoError(t, err)
	assert.Empty(t, got)

	mem, err := InMemory(&sel, append(slices.Clone(artists), emile))
	require.NoError(t, err)
	assert.Equal(t, []int64{6}, mapIDs(mem))

	ascii := byID("name likeIgnoreCase 'pic%'")
	got, err = ascii.Execute(context.Background(), st, tr, d)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(got))
}

func byID(where string) Select {
	return Select{Entity: "Artist", Where: exp.MustParse(where), Orderings: []exp.Ordering{exp.Asc(exp.PathOf("id"))}}
}

func TestInMemoryKeepsInput(t *testing.T) {
	sel := &Select{Entity: "Artist", Orderings: []exp.Ordering{exp.Desc(exp.PathOf("id"))}}
	got, err := InMemory(sel, artists)
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 4, 3, 2, 1}, mapIDs(got))
	assert.Equal(t, int64(1), artists[0]["id"])
}

func TestWindow(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	assert.Equal(t, []int{1, 2, 3, 4, 5}, Window(items, 0, 0))
	assert.Equal(t, []int{3, 4}, Window(items, 2, 2))
	assert.Equal(t, []int{5}, Window(items, 4, 10))
	assert.Empty(t, Window(items, 5, 1))
	assert.Equal(t, []int{1}, Window(items, 0, 1))
}

func TestSelectSQL(t *testing.T) {
	_, tr, _ := setup(t)
	sel := &Select{Entity: "Artist", Where: exp.MustParse("name = 'x'"), Limit: 3}

	got, args, err := sel.SQL(tr, dialect.MustLookup(dialect.Postgres))
	require.NoError(t, err)
	assert.Equal(t, `SELECT t0."ARTIST_ID", t0."ARTIST_NAME", t0."DATE_OF_BIRTH" FROM "ARTIST" t0 WHERE t0."ARTIST_NAME" = $1 LIMIT 3`, got)
	assert.Equal(t, []any{"x"}, args)

	_, _, err = (&Select{Entity: "Nope"}).SQL(tr, dialect.MustLookup(dialect.Generic))
	assert.ErrorIs(t, err, schema.ErrUnknownEntity)
}
