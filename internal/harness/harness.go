package harness

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/roach88/ormql/internal/access"
	"github.com/roach88/ormql/internal/batch"
	"github.com/roach88/ormql/internal/dialect"
	"github.com/roach88/ormql/internal/exp"
	"github.com/roach88/ormql/internal/query"
	"github.com/roach88/ormql/internal/schema"
	"github.com/roach88/ormql/internal/store"
	"github.com/roach88/ormql/internal/translate"
	"github.com/roach88/ormql/internal/value"
)

// Harness runs the queries of one scenario against a loaded store.
type Harness struct {
	store      *store.Store
	schema     *schema.Schema
	translator *translate.Translator
	dialect    *dialect.Dialect
	logger     *slog.Logger

	// graph holds the linked objects of every entity.
	graph map[string][]*access.Object
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database and apply the schema DDL
// 2. Insert the scenario data through the batch writer
// 3. Read every entity back and link the object graph
// 4. Run each query as SQL and in memory, compare the keys
// 5. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is Run with an explicit logger.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	sc, err := schema.LoadFile(scenario.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}
	d, err := dialect.Lookup(scenario.Dialect)
	if err != nil {
		return nil, err
	}
	if scenario.InListLimit > 0 {
		d = d.WithInListLimit(scenario.InListLimit)
	}

	st, err := store.OpenSQLite(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.ApplySchema(ctx, sc, d); err != nil {
		return nil, err
	}

	h := &Harness{
		store:      st,
		schema:     sc,
		translator: translate.New(sc),
		dialect:    d,
		logger:     logger.With("scenario", scenario.Name),
	}

	if err := h.load(ctx, scenario.Data); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}
	if err := h.buildGraph(ctx); err != nil {
		return nil, fmt.Errorf("failed to build object graph: %w", err)
	}

	result := NewResult()
	for _, q := range scenario.Queries {
		if err := h.runQuery(ctx, q, result); err != nil {
			return nil, fmt.Errorf("query %s: %w", q.Name, err)
		}
	}

	actx := &AssertionContext{Store: st, Ctx: ctx}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// load inserts the scenario rows, entities in name order, in one
// transaction.
func (h *Harness) load(ctx context.Context, data map[string][]map[string]any) error {
	entities := make([]string, 0, len(data))
	for name := range data {
		entities = append(entities, name)
	}
	sort.Strings(entities)

	w := batch.New(h.translator, h.dialect, h.logger)
	return h.store.WithTx(ctx, func(tx *sql.Tx) error {
		for _, name := range entities {
			e, err := h.schema.Entity(name)
			if err != nil {
				return err
			}
			q, err := batch.InsertRows(e, data[name])
			if err != nil {
				return err
			}
			res, err := w.Execute(ctx, tx, q)
			if err != nil {
				return err
			}
			h.logger.Debug("data loaded", "entity", name, "rows", res.RowsAffected)
		}
		return nil
	})
}

// buildGraph reads every entity back and links relationships by their
// join columns.
func (h *Harness) buildGraph(ctx context.Context) error {
	h.graph = make(map[string][]*access.Object, len(h.schema.Entities))
	for _, e := range h.schema.Entities {
		sel := &query.Select{Entity: e.Name}
		objects, err := sel.Execute(ctx, h.store, h.translator, h.dialect)
		if err != nil {
			return err
		}
		h.graph[e.Name] = objects
	}

	for _, e := range h.schema.Entities {
		for _, rel := range e.Relationships {
			targets := h.graph[rel.Target]
			for _, obj := range h.graph[e.Name] {
				var related []any
				for _, t := range targets {
					if joined(obj, t, rel.Joins) {
						related = append(related, t)
					}
				}
				switch {
				case rel.ToMany:
					if related == nil {
						related = []any{}
					}
					obj.Values[rel.Name] = related
				case len(related) > 0:
					obj.Values[rel.Name] = related[0]
				default:
					obj.Values[rel.Name] = nil
				}
			}
		}
	}
	return nil
}

// joined reports whether every join column pair matches. NULL never
// joins.
func joined(src, dst *access.Object, joins []schema.Join) bool {
	for _, j := range joins {
		a := src.Row[strings.ToUpper(j.Source)]
		b := dst.Row[strings.ToUpper(j.Target)]
		if a == nil || b == nil || !value.Equal(a, b) {
			return false
		}
	}
	return true
}

func (h *Harness) runQuery(ctx context.Context, step QueryStep, result *Result) error {
	sel, err := step.Select()
	if err != nil {
		return err
	}
	e, err := h.schema.Entity(step.Entity)
	if err != nil {
		return err
	}

	sqlStr, args, err := sel.SQL(h.translator, h.dialect)
	if err != nil {
		return err
	}
	start := time.Now()
	fetched, err := sel.Execute(ctx, h.store, h.translator, h.dialect)
	if err != nil {
		return err
	}
	h.logger.Debug("query executed", "query", step.Name, "rows", len(fetched), "elapsed", time.Since(start))

	memory, err := query.InMemory(sel, h.graph[step.Entity])
	if err != nil {
		return err
	}

	ordered := len(sel.Orderings) > 0
	ev := TraceEvent{
		Query:      step.Name,
		SQL:        sqlStr,
		Args:       traceValues(args),
		Keys:       primaryKeys(e, fetched, ordered),
		MemoryKeys: primaryKeys(e, memory, ordered),
	}
	result.AddTrace(ev)

	if err := assertAgreement(ev); err != nil {
		result.AddError(err.Error())
	}
	if step.Expect != nil {
		if err := assertExpectedKeys(ev, step.Expect, ordered); err != nil {
			result.AddError(err.Error())
		}
	}
	return nil
}

// Select builds the query of the step.
func (q QueryStep) Select() (*query.Select, error) {
	sel := &query.Select{
		Entity: q.Entity,
		Limit:  q.Limit,
		Offset: q.Offset,
		Params: q.Params,
	}
	if q.Where != "" {
		where, err := exp.Parse(q.Where)
		if err != nil {
			return nil, err
		}
		sel.Where = where
	}
	for _, s := range q.Order {
		o, err := exp.ParseOrdering(s)
		if err != nil {
			return nil, err
		}
		sel.Orderings = append(sel.Orderings, o)
	}
	return sel, nil
}

// primaryKeys returns the key of each object: the value of a single
// primary key attribute, or a slice for compound keys. Unordered results
// are sorted.
func primaryKeys(e *schema.Entity, objects []*access.Object, ordered bool) []any {
	pk := e.PrimaryKey()
	keys := make([]any, len(objects))
	for i, o := range objects {
		if len(pk) == 1 {
			keys[i] = o.Values[pk[0].Name]
			continue
		}
		parts := make([]any, len(pk))
		for j, a := range pk {
			parts[j] = o.Values[a.Name]
		}
		keys[i] = parts
	}
	if !ordered {
		sortKeys(keys)
	}
	return keys
}

func sortKeys(keys []any) {
	slices.SortStableFunc(keys, func(a, b any) int {
		as, aok := a.([]any)
		bs, bok := b.([]any)
		if !aok || !bok {
			c, _ := value.Compare(a, b)
			return c
		}
		for i := range min(len(as), len(bs)) {
			if c, _ := value.Compare(as[i], bs[i]); c != 0 {
				return c
			}
		}
		return len(as) - len(bs)
	})
}

// traceValues converts bound arguments to values canonical JSON can hold.
func traceValues(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case nil, bool, string, int64, float64:
			out[i] = v
		case int:
			out[i] = int64(v)
		case time.Time:
			out[i] = v.UTC().Format(time.RFC3339Nano)
		case []byte:
			out[i] = string(v)
		default:
			out[i] = fmt.Sprint(v)
		}
	}
	return out
}
