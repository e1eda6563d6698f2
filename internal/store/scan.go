package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/spf13/cast"

	"github.com/roach88/ormql/internal/access"
	"github.com/roach88/ormql/internal/jsontok"
	"github.com/roach88/ormql/internal/schema"
)

// ScanRows reads every row into an object of entity e. Columns that map
// to an attribute are converted to the attribute type and stored under the
// attribute name; every column is kept in the object's raw row.
//
// rows is closed before ScanRows returns.
func ScanRows(rows *sql.Rows, e *schema.Entity) ([]*access.Object, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", e.Name, err)
	}
	attrs := make([]*schema.Attribute, len(cols))
	for i, c := range cols {
		attrs[i], _ = e.AttributeForColumn(c)
	}

	objects := []*access.Object{}
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", e.Name, err)
		}

		obj := access.NewObject(e.Name)
		for i, c := range cols {
			obj.Row[strings.ToUpper(c)] = raw[i]
			a := attrs[i]
			if a == nil {
				continue
			}
			v, err := Convert(raw[i], a.Type)
			if err != nil {
				return nil, fmt.Errorf("scan %s.%s: %w", e.Name, a.Name, err)
			}
			obj.Values[a.Name] = v
		}
		objects = append(objects, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", e.Name, err)
	}
	return objects, nil
}

// Convert turns a driver value into the Go value used for attributes of
// type t. NULL stays nil.
func Convert(v any, t schema.Type) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case schema.Integer, schema.BigInt:
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		return cast.ToInt64E(v)

	case schema.Double:
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		return cast.ToFloat64E(v)

	case schema.Decimal:
		return toDecimal(v)

	case schema.Boolean:
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		return cast.ToBoolE(v)

	case schema.Varchar, schema.Char, schema.Clob:
		if b, ok := v.([]byte); ok {
			return string(b), nil
		}
		return cast.ToStringE(v)

	case schema.Blob:
		switch x := v.(type) {
		case []byte:
			return append([]byte(nil), x...), nil
		case string:
			return []byte(x), nil
		}
		return nil, fmt.Errorf("cannot convert %T to BLOB", v)

	case schema.Date, schema.Timestamp:
		switch x := v.(type) {
		case time.Time:
			return x, nil
		case []byte:
			v = string(x)
		}
		return cast.ToTimeE(v)

	case schema.JSON:
		switch x := v.(type) {
		case string:
			return jsontok.NewDocument(x)
		case []byte:
			return jsontok.NewDocument(string(x))
		}
		// Some drivers decode json columns themselves.
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("cannot convert %T to JSON: %w", v, err)
		}
		return jsontok.NewDocument(string(b))
	}
	return v, nil
}

func toDecimal(v any) (*apd.Decimal, error) {
	switch x := v.(type) {
	case *apd.Decimal:
		return x, nil
	case int64:
		return apd.New(x, 0), nil
	case float64:
		d := new(apd.Decimal)
		if _, err := d.SetFloat64(x); err != nil {
			return nil, fmt.Errorf("cannot convert %v to DECIMAL: %w", x, err)
		}
		return d, nil
	case []byte:
		return toDecimal(string(x))
	case string:
		d, _, err := apd.NewFromString(strings.TrimSpace(x))
		if err != nil {
			return nil, fmt.Errorf("cannot convert %q to DECIMAL: %w", x, err)
		}
		return d, nil
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return nil, fmt.Errorf("cannot convert %T to DECIMAL", v)
	}
	return toDecimal(s)
}
