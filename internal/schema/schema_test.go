package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFileYAML(t *testing.T) {
	s, err := LoadFile("testdata/gallery.yaml")
	require.NoError(t, err)
	assert.Equal(t, []string{"Artist", "Gallery", "Painting", "PaintingInfo"}, s.Names())

	painting, err := s.Entity("Painting")
	require.NoError(t, err)
	assert.Equal(t, "PAINTING", painting.Table)

	price, ok := painting.Attribute("price")
	require.True(t, ok)
	assert.Equal(t, Decimal, price.Type)
	assert.Equal(t, 2, price.Scale)

	artist, ok := painting.Relationship("artist")
	require.True(t, ok)
	assert.False(t, artist.ToMany)
	assert.Equal(t, []Join{{Source: "ARTIST_ID", Target: "ARTIST_ID"}}, artist.Joins)

	attr, ok := painting.AttributeForColumn("painting_title")
	require.True(t, ok)
	assert.Equal(t, "title", attr.Name)

	info, err := s.Entity("PaintingInfo")
	require.NoError(t, err)
	var lobs []string
	for _, a := range info.LOBAttributes() {
		lobs = append(lobs, a.Name)
	}
	assert.Equal(t, []string{"image", "review"}, lobs)
	assert.Equal(t, "paintingId", info.PrimaryKey()[0].Name)

	_, err = s.Entity("Museum")
	assert.ErrorIs(t, err, ErrUnknownEntity)

	e, ok := s.EntityForTable("artist")
	require.True(t, ok)
	assert.Equal(t, "Artist", e.Name)
}

func TestLoadFileCUE(t *testing.T) {
	s, err := LoadFile("testdata/gallery.cue")
	require.NoError(t, err)
	assert.Equal(t, []string{"Artist", "Painting"}, s.Names())

	painting, err := s.Entity("Painting")
	require.NoError(t, err)
	assert.Equal(t, "PAINTING", painting.Table, "table defaults to upper-cased name")
	title, ok := painting.Attribute("title")
	require.True(t, ok)
	assert.Equal(t, "TITLE", title.Column, "column defaults to upper-cased name")

	artist, err := s.Entity("Artist")
	require.NoError(t, err)
	rel, ok := artist.Relationship("paintings")
	require.True(t, ok)
	assert.True(t, rel.ToMany)
}

func TestLoadCUEConstraintViolation(t *testing.T) {
	src := `
#Attr: {name: string, type: "BIGINT" | "VARCHAR", pk?: bool}
entities: [...{name: string, attributes: [...#Attr]}]
entities: [{name: "A", attributes: [{name: "id", type: "FLOAT", pk: true}]}]
`
	_, err := LoadCUE([]byte(src), "bad.cue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.cue")
}

func TestLoadYAMLRejectsUnknownFields(t *testing.T) {
	_, err := LoadYAML(strings.NewReader("entities:\n  - name: A\n    tabel: X\n"))
	assert.Error(t, err)

	_, err = LoadYAML(strings.NewReader(""))
	assert.Error(t, err)
}

func TestLoadFileUnsupportedExtension(t *testing.T) {
	_, err := LoadFile("testdata/gallery.json")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		code string
	}{
		{
			"missing primary key",
			`entities: [{name: A, attributes: [{name: x, type: VARCHAR}]}]`,
			ErrCodeMissingPK,
		},
		{
			"duplicate entity",
			`entities: [{name: A, attributes: [{name: id, type: BIGINT, pk: true}]}, {name: A, table: B, attributes: [{name: id, type: BIGINT, pk: true}]}]`,
			ErrCodeDuplicateName,
		},
		{
			"duplicate table",
			`entities: [{name: A, table: T, attributes: [{name: id, type: BIGINT, pk: true}]}, {name: B, table: t, attributes: [{name: id, type: BIGINT, pk: true}]}]`,
			ErrCodeDuplicateTable,
		},
		{
			"invalid type",
			`entities: [{name: A, attributes: [{name: id, type: FLOAT, pk: true}]}]`,
			ErrCodeInvalidType,
		},
		{
			"duplicate column",
			`entities: [{name: A, attributes: [{name: id, column: X, type: BIGINT, pk: true}, {name: y, column: x, type: BIGINT}]}]`,
			ErrCodeDuplicateColumn,
		},
		{
			"attribute and relationship share a name",
			`entities: [{name: A, attributes: [{name: id, type: BIGINT, pk: true}], relationships: [{name: id, target: A, joins: [{source: ID, target: ID}]}]}]`,
			ErrCodeDuplicateName,
		},
		{
			"unknown target",
			`entities: [{name: A, attributes: [{name: id, type: BIGINT, pk: true}], relationships: [{name: r, target: Z, joins: [{source: ID, target: ID}]}]}]`,
			ErrCodeUnknownTarget,
		},
		{
			"unmapped join column",
			`entities: [{name: A, attributes: [{name: id, type: BIGINT, pk: true}], relationships: [{name: r, target: A, joins: [{source: NOPE, target: ID}]}]}]`,
			ErrCodeUnknownJoin,
		},
		{
			"no joins",
			`entities: [{name: A, attributes: [{name: id, type: BIGINT, pk: true}], relationships: [{name: r, target: A, joins: []}]}]`,
			ErrCodeNoJoins,
		},
		{
			"path syntax in name",
			`entities: [{name: A, attributes: [{name: "a.b", type: BIGINT, pk: true}]}]`,
			ErrCodeInvalidPathToken,
		},
		{
			"empty attribute name",
			`entities: [{name: A, attributes: [{name: "", type: BIGINT, pk: true}, {name: id, type: BIGINT, pk: true}]}]`,
			ErrCodeEmptyName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadYAML(strings.NewReader(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "["+tt.code+"]")
		})
	}
}

func TestValidateGallery(t *testing.T) {
	s, err := LoadFile("testdata/gallery.yaml")
	require.NoError(t, err)
	assert.Empty(t, Validate(s))
}

func TestTypePredicates(t *testing.T) {
	assert.True(t, Clob.IsLOB())
	assert.True(t, Blob.IsLOB())
	assert.False(t, JSON.IsLOB())
	assert.True(t, Decimal.IsNumeric())
	assert.False(t, Varchar.IsNumeric())
	assert.False(t, Type("FLOAT").Valid())
}
