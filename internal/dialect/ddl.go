package dialect

import (
	"fmt"
	"strings"

	"github.com/roach88/ormql/internal/schema"
)

const defaultVarcharLength = 255

// CreateTable returns the CREATE TABLE statement for e.
func (d *Dialect) CreateTable(e *schema.Entity) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE " + d.ident(e.Table) + " (")
	for i, a := range e.Attributes {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(d.ident(a.Column) + " " + d.ColumnType(a))
		if a.PK {
			b.WriteString(" NOT NULL")
		}
	}
	if pk := e.PrimaryKey(); len(pk) > 0 {
		cols := make([]string, len(pk))
		for i, a := range pk {
			cols[i] = d.ident(a.Column)
		}
		b.WriteString(", PRIMARY KEY (" + strings.Join(cols, ", ") + ")")
	}
	b.WriteString(")")
	return b.String()
}

// DropTable returns the DROP TABLE statement for e.
func (d *Dialect) DropTable(e *schema.Entity) string {
	return "DROP TABLE " + d.ident(e.Table)
}

// CreateTables returns CREATE TABLE statements for every entity in
// declaration order.
func (d *Dialect) CreateTables(s *schema.Schema) []string {
	out := make([]string, len(s.Entities))
	for i, e := range s.Entities {
		out[i] = d.CreateTable(e)
	}
	return out
}

// ColumnType returns the DDL type of a.
func (d *Dialect) ColumnType(a schema.Attribute) string {
	name, ok := d.Types[a.Type]
	if !ok {
		name = string(a.Type)
	}
	switch a.Type {
	case schema.Varchar, schema.Char:
		n := a.Length
		if n <= 0 {
			if a.Type == schema.Char {
				n = 1
			} else {
				n = defaultVarcharLength
			}
		}
		return fmt.Sprintf("%s(%d)", name, n)
	case schema.Decimal:
		if a.Length > 0 {
			return fmt.Sprintf("%s(%d,%d)", name, a.Length, a.Scale)
		}
	}
	return name
}

func (d *Dialect) ident(s string) string {
	if d.QuoteIdent != nil {
		return d.QuoteIdent(s)
	}
	return s
}

func genericTypes() map[schema.Type]string {
	return map[schema.Type]string{
		schema.Double: "DOUBLE PRECISION",
	}
}

func sqliteTypes() map[schema.Type]string {
	return map[schema.Type]string{
		schema.Double: "REAL",
		schema.Clob:   "TEXT",
		schema.JSON:   "TEXT",
	}
}

func postgresTypes() map[schema.Type]string {
	return map[schema.Type]string{
		schema.Decimal: "NUMERIC",
		schema.Double:  "DOUBLE PRECISION",
		schema.Clob:    "TEXT",
		schema.Blob:    "BYTEA",
		schema.JSON:    "JSONB",
	}
}

func oracleTypes() map[schema.Type]string {
	return map[schema.Type]string{
		schema.Integer: "NUMBER(10)",
		schema.BigInt:  "NUMBER(19)",
		schema.Decimal: "NUMBER",
		schema.Double:  "BINARY_DOUBLE",
		schema.Varchar: "VARCHAR2",
		schema.Boolean: "NUMBER(1)",
		schema.JSON:    "CLOB",
	}
}
