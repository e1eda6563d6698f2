package exp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormatRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"comparison", "name = 'Picasso'", "name = 'Picasso'"},
		{"quote escaping", "name = 'O''Keeffe'", "name = 'O''Keeffe'"},
		{"double quoted string", `name = "x"`, "name = 'x'"},
		{"all operators", "a < 1 and b <= 2 and c > 3 and d >= 4 and e <> 5 and f != 6 and g == 7",
			"a < 1 and b <= 2 and c > 3 and d >= 4 and e <> 5 and f <> 6 and g = 7"},
		{"or inside and", "a = 1 and (b = 2 or c = 3)", "a = 1 and (b = 2 or c = 3)"},
		{"and inside or", "a = 1 or b = 2 and c = 3", "a = 1 or b = 2 and c = 3"},
		{"not", "not a = 1", "not a = 1"},
		{"bang", "!(a = 1 or b = 2)", "not (a = 1 or b = 2)"},
		{"like escape", "name like 'a!%%' escape '!'", "name like 'a!%%' escape '!'"},
		{"not like ignore case", "name not likeIgnoreCase 'p%'", "name not likeIgnoreCase 'p%'"},
		{"in list", "id in (1, 2, 3)", "id in (1, 2, 3)"},
		{"not in param", "id not in $ids", "id not in $ids"},
		{"empty in", "id in ()", "id in ()"},
		{"between", "price not between 1.5 and 10", "price not between 1.5 and 10"},
		{"db path", "db:ARTIST_ID = $id", "db:ARTIST_ID = $id"},
		{"obj prefix dropped", "obj:name = 1", "name = 1"},
		{"outer join path", "paintings+.title = null", "paintings+.title = null"},
		{"keywords", "a = TRUE AND b = false Or c = NULL", "a = true and b = false or c = null"},
		{"functions", "upper(name) = 'X' and dayOfYear(born) = 12 and day_of_week(born) = 1",
			"upper(name) = 'X' and day_of_year(born) = 12 and day_of_week(born) = 1"},
		{"no arg function", "born < currentDate()", "born < current_date()"},
		{"aggregates", "count(*) > 1 and sum(distinct price) >= 2.0", "count(*) > 1 and sum(distinct price) >= 2.0"},
		{"float formatting", "x = 2.0e3", "x = 2000.0"},
		{"negative numbers", "x > -1 and y < -0.5", "x > -1 and y < -0.5"},
		{"huge integer", "x = 123456789012345678901234567890", "x = 123456789012345678901234567890"},
		{"exists", "exists (select * from Painting where price > 1)", "exists (select * from Painting where price > 1)"},
		{"in subquery", "name in (select artistName from Artist)", "name in (select artistName from Artist)"},
		{"bare path", "active", "active"},
		{"unicode path", "größe = 1", "größe = 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.String())

			again, err := Parse(e.String())
			require.NoError(t, err)
			assert.Equal(t, e.String(), again.String())
		})
	}
}

func TestParseStructure(t *testing.T) {
	e := MustParse("a = 1 or b like 'x' and not c in (1, 2)")

	or, ok := e.(*Bool)
	require.True(t, ok)
	assert.Equal(t, Or, or.Op)
	require.Len(t, or.Operands, 2)

	and, ok := or.Operands[1].(*Bool)
	require.True(t, ok)
	assert.Equal(t, And, and.Op)

	not, ok := and.Operands[1].(*Not)
	require.True(t, ok)
	in, ok := not.Operand.(*In)
	require.True(t, ok)
	list, ok := in.Right.(*List)
	require.True(t, ok)
	assert.Equal(t, []Expression{Val(int64(1)), Val(int64(2))}, list.Values)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"dangling operator", "a ="},
		{"unterminated string", "a = 'x"},
		{"unbalanced paren", "(a = 1"},
		{"trailing tokens", "a = 1 b"},
		{"bad param", "a = $"},
		{"unknown function", "frobnicate(a) = 1"},
		{"bad escape", "a like 'x' escape 'ab'"},
		{"star outside count", "sum(*) > 1"},
		{"malformed path", "a..b = 1"},
		{"bad char", "a = #"},
		{"lonely minus", "a = -"},
		{"in without list", "a in b"},
		{"between without and", "a between 1 or 2"},
		{"locate with one argument", "locate(name) > 0"},
		{"mod with three arguments", "mod(a, 2, 3) = 1"},
		{"upper without arguments", "upper() = 'A'"},
		{"current_date with argument", "born = current_date(1)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			require.Error(t, err)
			assert.True(t, IsParseError(err), "got %T: %v", err, err)
		})
	}
}

func TestMustParsePanics(t *testing.T) {
	assert.Panics(t, func() { MustParse("a =") })
}

func TestParseOrdering(t *testing.T) {
	o, err := ParseOrdering("upper(name) desc ignoreCase")
	require.NoError(t, err)
	assert.True(t, o.Desc)
	assert.True(t, o.IgnoreCase)
	assert.Equal(t, "upper(name) desc ignoreCase", o.String())

	o, err = ParseOrdering("artist.name")
	require.NoError(t, err)
	assert.False(t, o.Desc)
	assert.Equal(t, "artist.name asc", o.String())

	_, err = ParseOrdering("a =")
	assert.Error(t, err)
}
