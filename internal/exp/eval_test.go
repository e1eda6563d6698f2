package exp

import (
	"fmt"
	"testing"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ormql/internal/access"
)

// gallery graph:
//
//	picasso: 2 paintings (Guernica 200 at Reina, Dora 50 no gallery)
//	monet:   1 painting  (Water Lilies 120 at Orsay)
//	dali:    no paintings, no birth date
func testArtists() []*access.Object {
	reina := access.NewObject("Gallery").Set("name", "Reina Sofia")
	orsay := access.NewObject("Gallery").Set("name", "Orsay")

	guernica := access.NewObject("Painting").Set("title", "Guernica").Set("price", 200).Set("gallery", reina)
	dora := access.NewObject("Painting").Set("title", "Dora").Set("price", 50.0)
	lilies := access.NewObject("Painting").Set("title", "Water Lilies").Set("price", int64(120)).Set("gallery", orsay)

	picasso := access.NewObject("Artist").
		Set("id", 1).
		Set("name", "Picasso").
		Set("born", time.Date(1881, 10, 25, 0, 0, 0, 0, time.UTC)).
		Set("paintings", []any{guernica, dora})
	monet := access.NewObject("Artist").
		Set("id", 2).
		Set("name", "Monet").
		Set("born", time.Date(1840, 11, 14, 0, 0, 0, 0, time.UTC)).
		Set("paintings", []any{lilies})
	dali := access.NewObject("Artist").
		Set("id", 3).
		Set("name", "Dalí").
		Set("paintings", []any{})

	for _, p := range []*access.Object{guernica, dora} {
		p.Set("artist", picasso)
	}
	lilies.Set("artist", monet)
	return []*access.Object{picasso, monet, dali}
}

func names(t *testing.T, objs []*access.Object) []string {
	t.Helper()
	out := make([]string, len(objs))
	for i, o := range objs {
		out[i] = o.Values["name"].(string)
	}
	return out
}

func TestFilter(t *testing.T) {
	artists := testArtists()

	tests := []struct {
		name string
		expr string
		want []string
	}{
		{"equal", "name = 'Monet'", []string{"Monet"}},
		{"not equal skips nothing null", "name <> 'Monet'", []string{"Picasso", "Dalí"}},
		{"numeric widening", "id = 2.0", []string{"Monet"}},
		{"less than", "id < 3", []string{"Picasso", "Monet"}},
		{"is null", "born = null", []string{"Dalí"}},
		{"is not null", "born <> null", []string{"Picasso", "Monet"}},
		{"null comparison is unknown", "born > '1800-01-01'", nil},
		{"not of unknown is unknown", "not born < $d", nil},
		{"in", "id in (1, 3)", []string{"Picasso", "Dalí"}},
		{"not in", "id not in (1, 3)", []string{"Monet"}},
		{"in with null and no match is unknown", "not id in (1, null)", nil},
		{"empty in", "id in ()", nil},
		{"empty not in", "id not in ()", []string{"Picasso", "Monet", "Dalí"}},
		{"between", "id between 2 and 3", []string{"Monet", "Dalí"}},
		{"not between", "id not between 2 and 3", []string{"Picasso"}},
		{"like", "name like 'P%'", []string{"Picasso"}},
		{"like unicode single char", "name like 'Dal_'", []string{"Dalí"}},
		{"like ignore case", "name likeIgnoreCase 'm%'", []string{"Monet"}},
		{"not like", "name not like '%o%'", []string{"Dalí"}},
		{"to-many any", "paintings.price > 100", []string{"Picasso", "Monet"}},
		{"to-many inner join drops childless", "name = 'Dalí' or paintings.price > 1000", nil},
		{"to-many outer join keeps childless", "name = 'Dalí' or paintings+.price > 1000", []string{"Dalí"}},
		{"not over to-many is per join row", "not paintings.price > 100", []string{"Picasso"}},
		{"to-one inner join drops null target", "paintings.gallery.name <> 'x'", []string{"Picasso", "Monet"}},
		{"shared prefix binds one element", "paintings.title = 'Dora' and paintings.price = 200", nil},
		{"function", "upper(name) = 'MONET'", []string{"Monet"}},
		{"date function", "year(born) < 1850", []string{"Monet"}},
		{"or", "id = 1 or name = 'Monet'", []string{"Picasso", "Monet"}},
		{"and", "id >= 1 and name like '%a%'", []string{"Picasso", "Dalí"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Params(MustParse(tt.expr), map[string]any{"d": time.Now()}, false)
			got, err := Filter(e, artists)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, names(t, got))
		})
	}
}

func TestMatchNilQualifier(t *testing.T) {
	ok, err := Match(nil, "anything")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFirst(t *testing.T) {
	artists := testArtists()
	a, ok, err := First(MustParse("id > 1"), artists)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Monet", a.Values["name"])

	_, ok, err = First(MustParse("id > 10"), artists)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluateValues(t *testing.T) {
	picasso := testArtists()[0]

	tests := []struct {
		name string
		expr string
		want any
	}{
		{"path", "name", "Picasso"},
		{"to-many path", "paintings.title", []any{"Guernica", "Dora"}},
		{"length", "length('Dalí')", int64(4)},
		{"concat", "concat(name, '-', id)", "Picasso-1"},
		{"concat null", "concat(name, null)", nil},
		{"substring", "substring(name, 2, 3)", "ica"},
		{"substring past end", "substring(name, 20, 3)", ""},
		{"locate", "locate('ss', name)", int64(5)},
		{"locate missing", "locate('zz', name)", int64(0)},
		{"locate from", "locate('o', 'foo boo', 4)", int64(6)},
		{"trim", "trim('  x ')", "x"},
		{"lower", "lower(name)", "picasso"},
		{"mod", "mod(7, 3)", int64(1)},
		{"sqrt", "sqrt(16)", 4.0},
		{"day of week sunday is 1", "day_of_week(born)", int64(3)},
		{"day of year", "day_of_year(born)", int64(298)},
		{"month", "month(born)", int64(10)},
		{"predicate", "id = 1", true},
		{"unknown predicate", "id = $missing or id = null", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Params(MustParse(tt.expr), nil, true)
			got, err := Evaluate(e, picasso)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateAbs(t *testing.T) {
	got, err := Evaluate(MustParse("abs(-2.5)"), nil)
	require.NoError(t, err)
	d, ok := got.(*apd.Decimal)
	require.True(t, ok)
	assert.Equal(t, "2.5", d.String())
}

func TestEvaluateAggregates(t *testing.T) {
	paintings := testArtists()[0].Values["paintings"]

	tests := []struct {
		expr string
		want string
	}{
		{"count(*)", "2"},
		{"count(title)", "2"},
		{"count(gallery)", "1"},
		{"sum(price)", "250"},
		{"avg(price)", "125"},
		{"min(price)", "50"},
		{"max(title)", "Guernica"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Evaluate(MustParse(tt.expr), paintings)
			require.NoError(t, err)
			switch v := got.(type) {
			case *apd.Decimal:
				reduced, _ := new(apd.Decimal).Reduce(v)
				assert.Equal(t, tt.want, reduced.Text('f'))
			default:
				assert.Equal(t, tt.want, fmtValue(v))
			}
		})
	}
}

func fmtValue(v any) string {
	switch x := v.(type) {
	case int64:
		return Val(x).String()
	case float64:
		return Val(int64(x)).String()
	case string:
		return x
	}
	return "?"
}

func TestEvaluateErrors(t *testing.T) {
	picasso := testArtists()[0]

	_, err := Evaluate(MustParse("id = $id"), picasso)
	assert.ErrorIs(t, err, ErrUnboundParameter)

	_, err = Evaluate(MustParse("exists (select * from Painting)"), picasso)
	assert.ErrorIs(t, err, ErrNotInMemory)

	_, err = Evaluate(MustParse("name in (select name from Artist)"), picasso)
	assert.ErrorIs(t, err, ErrNotInMemory)

	_, err = Match(MustParse("name"), picasso)
	assert.Error(t, err)

	_, err = Evaluate(&Function{Name: "NOPE"}, picasso)
	assert.ErrorIs(t, err, ErrUnknownFunction)

	_, err = Evaluate(&Function{Name: FuncLocate, Args: []Expression{&Path{Name: "name"}}}, picasso)
	assert.ErrorIs(t, err, ErrArity)
}

func TestCheckArity(t *testing.T) {
	tests := []struct {
		name string
		n    int
		ok   bool
	}{
		{FuncLocate, 1, false},
		{FuncLocate, 2, true},
		{FuncLocate, 3, true},
		{FuncLocate, 4, false},
		{FuncConcat, 0, false},
		{FuncConcat, 5, true},
		{FuncMod, 2, true},
		{FuncCurrentDate, 0, true},
		{FuncCurrentDate, 1, false},
		{"INSTR", 7, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%d", tt.name, tt.n), func(t *testing.T) {
			err := CheckArity(tt.name, tt.n)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrArity)
			}
		})
	}
}

func TestEvaluateStructs(t *testing.T) {
	type item struct {
		Name  string `orm:"name"`
		Price float32
		Tags  []string
	}
	items := []item{
		{Name: "a", Price: 1.5, Tags: []string{"x", "y"}},
		{Name: "b", Price: 3, Tags: nil},
	}

	got, err := Filter(MustParse("price >= 1.5 and tags = 'y'"), items)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Name)
}

func TestOrderList(t *testing.T) {
	artists := testArtists()

	require.NoError(t, OrderList(artists, Asc(PathOf("born"))))
	assert.Equal(t, []string{"Dalí", "Monet", "Picasso"}, names(t, artists))

	require.NoError(t, OrderList(artists, Desc(PathOf("name"))))
	assert.Equal(t, []string{"Picasso", "Monet", "Dalí"}, names(t, artists))

	objs := []map[string]any{
		{"k": "b", "n": 1}, {"k": "A", "n": 2}, {"k": "a", "n": 3}, {"k": "B", "n": 4},
	}
	require.NoError(t, OrderList(objs, Ordering{Expr: PathOf("k"), IgnoreCase: true}, Desc(PathOf("n"))))
	var order []int
	for _, o := range objs {
		order = append(order, o["n"].(int))
	}
	assert.Equal(t, []int{3, 2, 4, 1}, order)

	mixed := []map[string]any{{"k": 1}, {"k": "x"}}
	assert.Error(t, OrderList(mixed, Asc(PathOf("k"))))
}
