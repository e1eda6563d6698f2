package schema

import (
	"fmt"
	"strings"
)

// Validation error codes.
const (
	ErrCodeEmptyName        = "S101" // entity, attribute or relationship without a name
	ErrCodeDuplicateName    = "S102" // name used twice in the same scope
	ErrCodeInvalidType      = "S103" // unknown column type
	ErrCodeMissingPK        = "S104" // entity without primary key
	ErrCodeUnknownTarget    = "S105" // relationship target is not an entity
	ErrCodeUnknownJoin      = "S106" // join column not mapped on its side
	ErrCodeNoJoins          = "S107" // relationship without join columns
	ErrCodeDuplicateTable   = "S108" // two entities on one table
	ErrCodeDuplicateColumn  = "S109" // two attributes on one column
	ErrCodeInvalidPathToken = "S110" // name containing path syntax
)

// ValidationError is one schema problem.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks s and returns every problem found.
func Validate(s *Schema) []ValidationError {
	var errs []ValidationError
	add := func(code, field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Code: code})
	}

	entities := make(map[string]*Entity, len(s.Entities))
	tables := make(map[string]string, len(s.Entities))
	for i, e := range s.Entities {
		field := fmt.Sprintf("entities[%d]", i)
		if strings.TrimSpace(e.Name) == "" {
			add(ErrCodeEmptyName, field+".name", "entity name is required")
			continue
		}
		if _, dup := entities[e.Name]; dup {
			add(ErrCodeDuplicateName, field+".name", "duplicate entity %q", e.Name)
		}
		entities[e.Name] = e
		table := strings.ToUpper(e.Table)
		if other, dup := tables[table]; dup {
			add(ErrCodeDuplicateTable, field+".table", "table %q already mapped by %q", e.Table, other)
		}
		tables[table] = e.Name
	}

	for i, e := range s.Entities {
		if strings.TrimSpace(e.Name) == "" {
			continue
		}
		field := fmt.Sprintf("entities[%d]", i)
		names := make(map[string]bool)
		columns := make(map[string]bool)
		pk := false

		for j, a := range e.Attributes {
			af := fmt.Sprintf("%s.attributes[%d]", field, j)
			switch {
			case strings.TrimSpace(a.Name) == "":
				add(ErrCodeEmptyName, af+".name", "attribute name is required")
				continue
			case strings.ContainsAny(a.Name, ".+:"):
				add(ErrCodeInvalidPathToken, af+".name", "attribute name %q contains path syntax", a.Name)
			case names[a.Name]:
				add(ErrCodeDuplicateName, af+".name", "duplicate property %q on %s", a.Name, e.Name)
			}
			names[a.Name] = true
			if col := strings.ToUpper(a.Column); columns[col] {
				add(ErrCodeDuplicateColumn, af+".column", "column %q mapped twice on %s", a.Column, e.Name)
			} else {
				columns[col] = true
			}
			if !a.Type.Valid() {
				add(ErrCodeInvalidType, af+".type", "invalid type %q for %s.%s", a.Type, e.Name, a.Name)
			}
			if a.PK {
				pk = true
			}
		}
		if !pk {
			add(ErrCodeMissingPK, field+".attributes", "entity %q has no primary key", e.Name)
		}

		for j, r := range e.Relationships {
			rf := fmt.Sprintf("%s.relationships[%d]", field, j)
			switch {
			case strings.TrimSpace(r.Name) == "":
				add(ErrCodeEmptyName, rf+".name", "relationship name is required")
				continue
			case strings.ContainsAny(r.Name, ".+:"):
				add(ErrCodeInvalidPathToken, rf+".name", "relationship name %q contains path syntax", r.Name)
			case names[r.Name]:
				add(ErrCodeDuplicateName, rf+".name", "duplicate property %q on %s", r.Name, e.Name)
			}
			names[r.Name] = true

			target, ok := entities[r.Target]
			if !ok {
				add(ErrCodeUnknownTarget, rf+".target", "relationship %s.%s targets unknown entity %q", e.Name, r.Name, r.Target)
				continue
			}
			if len(r.Joins) == 0 {
				add(ErrCodeNoJoins, rf+".joins", "relationship %s.%s has no join columns", e.Name, r.Name)
			}
			for k, j := range r.Joins {
				if _, ok := e.AttributeForColumn(j.Source); !ok {
					add(ErrCodeUnknownJoin, fmt.Sprintf("%s.joins[%d].source", rf, k), "column %q is not mapped on %s", j.Source, e.Name)
				}
				if _, ok := target.AttributeForColumn(j.Target); !ok {
					add(ErrCodeUnknownJoin, fmt.Sprintf("%s.joins[%d].target", rf, k), "column %q is not mapped on %s", j.Target, target.Name)
				}
			}
		}
	}
	return errs
}
