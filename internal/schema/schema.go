// Package schema holds the minimal mapping descriptors ormql needs to turn
// expressions into SQL: entities mapped to tables, attributes mapped to
// typed columns and relationships mapped to join column pairs.
//
// Descriptors are loaded from YAML or CUE and must pass Validate before
// use. A validated Schema is read-only and safe to share.
package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownEntity is returned when an entity name is not in the schema.
var ErrUnknownEntity = errors.New("unknown entity")

// Type is a portable column type.
type Type string

const (
	Integer   Type = "INTEGER"
	BigInt    Type = "BIGINT"
	Decimal   Type = "DECIMAL"
	Double    Type = "DOUBLE"
	Varchar   Type = "VARCHAR"
	Char      Type = "CHAR"
	Boolean   Type = "BOOLEAN"
	Date      Type = "DATE"
	Timestamp Type = "TIMESTAMP"
	Clob      Type = "CLOB"
	Blob      Type = "BLOB"
	JSON      Type = "JSON"
)

var knownTypes = map[Type]bool{
	Integer: true, BigInt: true, Decimal: true, Double: true,
	Varchar: true, Char: true, Boolean: true, Date: true, Timestamp: true,
	Clob: true, Blob: true, JSON: true,
}

// Valid reports whether t is a known type.
func (t Type) Valid() bool { return knownTypes[t] }

// IsLOB reports whether values of t are written through the LOB protocol.
func (t Type) IsLOB() bool { return t == Clob || t == Blob }

// IsNumeric reports whether t holds numbers.
func (t Type) IsNumeric() bool {
	switch t {
	case Integer, BigInt, Decimal, Double:
		return true
	}
	return false
}

// Attribute maps an object property to a column.
type Attribute struct {
	Name   string `yaml:"name" json:"name"`
	Column string `yaml:"column,omitempty" json:"column,omitempty"`
	Type   Type   `yaml:"type" json:"type"`
	PK     bool   `yaml:"pk,omitempty" json:"pk,omitempty"`
	// Length applies to VARCHAR and CHAR; Scale to DECIMAL.
	Length int `yaml:"length,omitempty" json:"length,omitempty"`
	Scale  int `yaml:"scale,omitempty" json:"scale,omitempty"`
}

// Join is one column pair of a relationship: Source on the owning table,
// Target on the related one.
type Join struct {
	Source string `yaml:"source" json:"source"`
	Target string `yaml:"target" json:"target"`
}

// Relationship maps an object property to a related entity.
type Relationship struct {
	Name   string `yaml:"name" json:"name"`
	Target string `yaml:"target" json:"target"`
	ToMany bool   `yaml:"to_many,omitempty" json:"to_many,omitempty"`
	Joins  []Join `yaml:"joins" json:"joins"`
}

// Entity maps an object type to a table.
type Entity struct {
	Name          string         `yaml:"name" json:"name"`
	Table         string         `yaml:"table,omitempty" json:"table,omitempty"`
	Attributes    []Attribute    `yaml:"attributes" json:"attributes"`
	Relationships []Relationship `yaml:"relationships,omitempty" json:"relationships,omitempty"`
}

// Attribute returns the attribute called name.
func (e *Entity) Attribute(name string) (*Attribute, bool) {
	for i := range e.Attributes {
		if e.Attributes[i].Name == name {
			return &e.Attributes[i], true
		}
	}
	return nil, false
}

// AttributeForColumn returns the attribute mapped to column, ignoring case.
func (e *Entity) AttributeForColumn(column string) (*Attribute, bool) {
	for i := range e.Attributes {
		if strings.EqualFold(e.Attributes[i].Column, column) {
			return &e.Attributes[i], true
		}
	}
	return nil, false
}

// Relationship returns the relationship called name.
func (e *Entity) Relationship(name string) (*Relationship, bool) {
	for i := range e.Relationships {
		if e.Relationships[i].Name == name {
			return &e.Relationships[i], true
		}
	}
	return nil, false
}

// PrimaryKey returns the primary key attributes in declaration order.
func (e *Entity) PrimaryKey() []Attribute {
	var pk []Attribute
	for _, a := range e.Attributes {
		if a.PK {
			pk = append(pk, a)
		}
	}
	return pk
}

// LOBAttributes returns the CLOB and BLOB attributes.
func (e *Entity) LOBAttributes() []Attribute {
	var out []Attribute
	for _, a := range e.Attributes {
		if a.Type.IsLOB() {
			out = append(out, a)
		}
	}
	return out
}

// Schema is a set of entities.
type Schema struct {
	Entities []*Entity `yaml:"entities" json:"entities"`
}

// Entity returns the entity called name, or an error wrapping
// ErrUnknownEntity.
func (s *Schema) Entity(name string) (*Entity, error) {
	for _, e := range s.Entities {
		if e.Name == name {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEntity, name)
}

// EntityForTable returns the entity mapped to table, ignoring case.
func (s *Schema) EntityForTable(table string) (*Entity, bool) {
	for _, e := range s.Entities {
		if strings.EqualFold(e.Table, table) {
			return e, true
		}
	}
	return nil, false
}

// Names returns entity names in declaration order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.Entities))
	for i, e := range s.Entities {
		names[i] = e.Name
	}
	return names
}

// applyDefaults fills tables and columns left blank with the upper-cased
// entity or attribute name and upper-cases declared types.
func (s *Schema) applyDefaults() {
	for _, e := range s.Entities {
		if e.Table == "" {
			e.Table = strings.ToUpper(e.Name)
		}
		for i := range e.Attributes {
			a := &e.Attributes[i]
			if a.Column == "" {
				a.Column = strings.ToUpper(a.Name)
			}
			a.Type = Type(strings.ToUpper(string(a.Type)))
		}
	}
}
