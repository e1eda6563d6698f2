// Package query runs entity selects either as SQL or over objects held in
// memory, so both paths can be compared.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/ormql/internal/access"
	"github.com/roach88/ormql/internal/dialect"
	"github.com/roach88/ormql/internal/exp"
	"github.com/roach88/ormql/internal/store"
	"github.com/roach88/ormql/internal/translate"
)

// Select fetches objects of one entity.
type Select struct {
	Entity    string
	Where     exp.Expression
	Orderings []exp.Ordering
	// Limit and Offset define the window of the ordered result. Zero means
	// no bound.
	Limit    int
	Offset   int
	Distinct bool
	// Params are bound into Where before it runs. Predicates naming a
	// missing parameter are dropped.
	Params map[string]any
}

// Qualifier returns Where with Params bound.
func (s *Select) Qualifier() exp.Expression {
	if s.Params == nil {
		return s.Where
	}
	return exp.Params(s.Where, s.Params, true)
}

func (s *Select) spec() translate.SelectSpec {
	return translate.SelectSpec{
		Entity:    s.Entity,
		Where:     s.Qualifier(),
		Orderings: s.Orderings,
		Distinct:  s.Distinct,
		Limit:     s.Limit,
		Offset:    s.Offset,
	}
}

// SQL renders s for dialect d.
func (s *Select) SQL(tr *translate.Translator, d *dialect.Dialect) (string, []any, error) {
	sel, err := tr.Select(s.spec())
	if err != nil {
		return "", nil, fmt.Errorf("translate %s: %w", s.Entity, err)
	}
	return d.SQL(sel)
}

// Execute runs s against st and returns the fetched objects in result
// order.
func (s *Select) Execute(ctx context.Context, st *store.Store, tr *translate.Translator, d *dialect.Dialect) ([]*access.Object, error) {
	logger := slog.Default().With("trace", newTraceID(), "entity", s.Entity)

	e, err := tr.Schema.Entity(s.Entity)
	if err != nil {
		return nil, err
	}
	sqlStr, args, err := s.SQL(tr, d)
	if err != nil {
		return nil, err
	}
	logger.Debug("query compiled", "dialect", d.Name, "sql", sqlStr, "args", len(args))

	start := time.Now()
	rows, err := st.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	objects, err := store.ScanRows(rows, e)
	if err != nil {
		return nil, err
	}
	logger.Debug("query executed", "rows", len(objects), "elapsed", time.Since(start))
	return objects, nil
}

// InMemory applies the qualifier, orderings and window of s to objects.
// The input slice is not modified.
func InMemory[T any](s *Select, objects []T) ([]T, error) {
	out := slices.Clone(objects)
	if where := s.Qualifier(); where != nil {
		var err error
		if out, err = exp.Filter(where, out); err != nil {
			return nil, fmt.Errorf("filter %s: %w", s.Entity, err)
		}
	}
	if err := exp.OrderList(out, s.Orderings...); err != nil {
		return nil, err
	}
	return Window(out, s.Offset, s.Limit), nil
}

// Window returns the objects at positions offset+1 through offset+limit. A
// limit of zero or less means no upper bound.
func Window[T any](objects []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(objects) {
			return objects[:0]
		}
		objects = objects[offset:]
	}
	if limit > 0 && limit < len(objects) {
		objects = objects[:limit]
	}
	return objects
}

// newTraceID returns a time-ordered id for the log lines of one execution.
func newTraceID() string {
	return uuid.Must(uuid.NewV7()).String()
}
