// Package translate turns expression trees into SQL trees for a schema.
//
// Relationship paths become joins. Every distinct relationship prefix of a
// path gets one join and one table alias (t0 for the root entity, then t1,
// t2 ...). A prefix segment with the outer join marker ("paintings+") is a
// LEFT JOIN, anything else an inner JOIN. When the qualifier joins a to-many
// relationship the select is made DISTINCT so each root row appears once.
//
// The produced tree is dialect neutral: functions keep their portable names
// and IN lists keep their Go slices. Package dialect rewrites both.
package translate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/ormql/internal/access"
	"github.com/roach88/ormql/internal/exp"
	"github.com/roach88/ormql/internal/schema"
	"github.com/roach88/ormql/internal/sqltree"
)

// ErrUnknownPath is returned for a path that does not resolve against the
// schema.
var ErrUnknownPath = errors.New("unknown path")

// Translator builds SQL trees against a schema.
type Translator struct {
	Schema *schema.Schema
}

// New returns a translator for s.
func New(s *schema.Schema) *Translator {
	return &Translator{Schema: s}
}

// SelectSpec describes a query.
type SelectSpec struct {
	Entity    string
	Where     exp.Expression
	Orderings []exp.Ordering
	// Columns replaces the entity's attribute columns when set. Aggregates
	// are allowed; plain columns next to aggregates are grouped.
	Columns  []exp.Expression
	Having   exp.Expression
	Distinct bool
	Limit    int
	Offset   int
}

// Select translates spec into a SELECT.
func (t *Translator) Select(spec SelectSpec) (*sqltree.Select, error) {
	root, err := t.Schema.Entity(spec.Entity)
	if err != nil {
		return nil, err
	}
	c := newScope(t, root, "t")
	sel := &sqltree.Select{Distinct: spec.Distinct}

	if spec.Where != nil {
		if sel.Where, err = c.predicate(spec.Where); err != nil {
			return nil, fmt.Errorf("where %s: %w", spec.Where, err)
		}
	}
	qualifierToMany := c.toMany

	// Joins added from here on only shape the result; they must not drop
	// rows, so they are outer joins.
	c.outerOnly = true

	aggregated := false
	if len(spec.Columns) == 0 {
		for _, a := range root.Attributes {
			sel.Columns = append(sel.Columns, &sqltree.ResultColumn{Expr: sqltree.Col(c.alias, a.Column)})
		}
	} else {
		for _, col := range spec.Columns {
			n, err := c.value(col)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", col, err)
			}
			sel.Columns = append(sel.Columns, &sqltree.ResultColumn{Expr: n})
			if containsAggregate(col) {
				aggregated = true
			}
		}
		if aggregated {
			for i, col := range spec.Columns {
				if !containsAggregate(col) {
					sel.GroupBy = append(sel.GroupBy, sqltree.Clone(sel.Columns[i].Expr))
				}
			}
		}
	}

	if spec.Having != nil {
		if sel.Having, err = c.predicate(spec.Having); err != nil {
			return nil, fmt.Errorf("having %s: %w", spec.Having, err)
		}
	}

	for _, o := range spec.Orderings {
		n, err := c.value(o.Expr)
		if err != nil {
			return nil, fmt.Errorf("order by %s: %w", o, err)
		}
		if o.IgnoreCase {
			n = &sqltree.Function{Name: exp.FuncUpper, Args: []sqltree.Node{n}}
		}
		item := &sqltree.OrderItem{Expr: n, Desc: o.Desc, Nulls: sqltree.NullsFirst}
		if o.Desc {
			item.Nulls = sqltree.NullsLast
		}
		sel.OrderBy = append(sel.OrderBy, item)
	}

	if qualifierToMany && !aggregated {
		sel.Distinct = true
	}
	// DISTINCT needs every ORDER BY term in the select list.
	if sel.Distinct {
		for _, o := range sel.OrderBy {
			if !hasColumn(sel.Columns, o.Expr) {
				sel.Columns = append(sel.Columns, &sqltree.ResultColumn{Expr: sqltree.Clone(o.Expr)})
			}
		}
	}

	sel.From = []sqltree.Node{c.from}
	if spec.Limit > 0 || spec.Offset > 0 {
		sel.Limit = &sqltree.LimitOffset{Limit: spec.Limit, Offset: spec.Offset}
	}
	return sel, nil
}

// Where translates a qualifier on entity into a WHERE condition with column
// names left unqualified. Relationship paths are rejected; this is the form
// used by UPDATE and DELETE statements.
func (t *Translator) Where(entity string, e exp.Expression) (sqltree.Node, error) {
	root, err := t.Schema.Entity(entity)
	if err != nil {
		return nil, err
	}
	c := newScope(t, root, "")
	c.unqualified = true
	return c.predicate(e)
}

// Insert builds an INSERT of values into the entity's columns for the named
// attributes.
func (t *Translator) Insert(entity string, attributes []string, values []sqltree.Node) (*sqltree.Insert, error) {
	e, err := t.Schema.Entity(entity)
	if err != nil {
		return nil, err
	}
	if len(attributes) != len(values) {
		return nil, fmt.Errorf("insert %s: %d attributes, %d values", entity, len(attributes), len(values))
	}
	ins := &sqltree.Insert{Table: e.Table}
	for i, name := range attributes {
		a, ok := e.Attribute(name)
		if !ok {
			return nil, fmt.Errorf("insert %s: %w: %q", entity, ErrUnknownPath, name)
		}
		ins.Columns = append(ins.Columns, a.Column)
		ins.Values = append(ins.Values, values[i])
	}
	return ins, nil
}

// Update builds an UPDATE setting the named attributes on rows matching
// where.
func (t *Translator) Update(entity string, attributes []string, values []sqltree.Node, where exp.Expression) (*sqltree.Update, error) {
	e, err := t.Schema.Entity(entity)
	if err != nil {
		return nil, err
	}
	if len(attributes) != len(values) {
		return nil, fmt.Errorf("update %s: %d attributes, %d values", entity, len(attributes), len(values))
	}
	upd := &sqltree.Update{Table: e.Table}
	for i, name := range attributes {
		a, ok := e.Attribute(name)
		if !ok {
			return nil, fmt.Errorf("update %s: %w: %q", entity, ErrUnknownPath, name)
		}
		upd.Set = append(upd.Set, sqltree.Assignment{Column: a.Column, Value: values[i]})
	}
	if where != nil {
		if upd.Where, err = t.Where(entity, where); err != nil {
			return nil, fmt.Errorf("update %s: %w", entity, err)
		}
	}
	return upd, nil
}

// PrimaryKeyQualifier matches the row whose primary key attributes equal
// the values in row.
func PrimaryKeyQualifier(e *schema.Entity, row map[string]any) (exp.Expression, error) {
	var parts []exp.Expression
	for _, pk := range e.PrimaryKey() {
		v, ok := row[pk.Name]
		if !ok || v == nil {
			return nil, fmt.Errorf("%s: primary key %q has no value", e.Name, pk.Name)
		}
		parts = append(parts, &exp.Comparison{Op: exp.Eq, Left: exp.PathOf(pk.Name), Right: exp.Val(v)})
	}
	return exp.AndOf(parts...), nil
}

func containsAggregate(e exp.Expression) bool {
	found := false
	exp.Walk(e, func(n exp.Expression) bool {
		if _, ok := n.(*exp.Aggregate); ok {
			found = true
		}
		return !found
	})
	return found
}

func hasColumn(cols []*sqltree.ResultColumn, n sqltree.Node) bool {
	for _, c := range cols {
		if reflect.DeepEqual(c.Expr, n) {
			return true
		}
	}
	return false
}

// join is one joined relationship prefix.
type join struct {
	alias  string
	entity *schema.Entity
}

// scope is the alias namespace of one SELECT. Subqueries get their own.
type scope struct {
	t           *Translator
	root        *schema.Entity
	prefix      string
	alias       string
	next        int
	from        sqltree.Node
	joins       map[string]join
	toMany      bool
	outerOnly   bool
	unqualified bool
	depth       int
}

func newScope(t *Translator, root *schema.Entity, prefix string) *scope {
	c := &scope{t: t, root: root, prefix: prefix, joins: make(map[string]join)}
	c.alias = c.newAlias()
	c.from = &sqltree.Table{Name: root.Table, Alias: c.alias}
	if c.prefix == "" {
		c.alias = ""
		c.from = &sqltree.Table{Name: root.Table}
	}
	return c
}

func (c *scope) newAlias() string {
	a := fmt.Sprintf("%s%d", c.prefix, c.next)
	c.next++
	return a
}

// column resolves a path to a column, adding joins for its relationship
// prefixes.
func (c *scope) column(p *exp.Path) (sqltree.Node, error) {
	if p.DB {
		name := strings.TrimPrefix(p.Name, access.DBPrefix)
		if strings.Contains(name, ".") {
			return nil, fmt.Errorf("%w: db path %q crosses a relationship", ErrUnknownPath, p.Name)
		}
		return sqltree.Col(c.alias, name), nil
	}

	segs := strings.Split(strings.TrimPrefix(p.Name, access.ObjPrefix), ".")
	if c.unqualified && len(segs) > 1 {
		return nil, fmt.Errorf("%w: %q needs a join", ErrUnknownPath, p.Name)
	}
	entity, alias := c.root, c.alias
	for i, seg := range segs[:len(segs)-1] {
		name := strings.TrimSuffix(seg, access.OuterMarker)
		rel, ok := entity.Relationship(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q has no relationship %q in %q", ErrUnknownPath, entity.Name, name, p.Name)
		}
		key := strings.Join(segs[:i+1], ".")
		j, err := c.join(key, alias, rel, strings.HasSuffix(seg, access.OuterMarker))
		if err != nil {
			return nil, err
		}
		entity, alias = j.entity, j.alias
	}

	last := strings.TrimSuffix(segs[len(segs)-1], access.OuterMarker)
	if a, ok := entity.Attribute(last); ok {
		return sqltree.Col(alias, a.Column), nil
	}
	rel, ok := entity.Relationship(last)
	if !ok {
		return nil, fmt.Errorf("%w: %q has no property %q in %q", ErrUnknownPath, entity.Name, last, p.Name)
	}
	// A to-one relationship compares by its foreign key; a to-many one by
	// the related primary key.
	if !rel.ToMany && len(rel.Joins) == 1 {
		return sqltree.Col(alias, rel.Joins[0].Source), nil
	}
	if c.unqualified {
		return nil, fmt.Errorf("%w: %q needs a join", ErrUnknownPath, p.Name)
	}
	key := strings.Join(segs, ".")
	j, err := c.join(key, alias, rel, strings.HasSuffix(segs[len(segs)-1], access.OuterMarker))
	if err != nil {
		return nil, err
	}
	pk := j.entity.PrimaryKey()
	if len(pk) != 1 {
		return nil, fmt.Errorf("%w: %q ends in a relationship to compound key entity %q", ErrUnknownPath, p.Name, j.entity.Name)
	}
	return sqltree.Col(j.alias, pk[0].Column), nil
}

func (c *scope) join(key, parentAlias string, rel *schema.Relationship, outer bool) (join, error) {
	if j, ok := c.joins[key]; ok {
		return j, nil
	}
	target, err := c.t.Schema.Entity(rel.Target)
	if err != nil {
		return join{}, err
	}
	j := join{alias: c.newAlias(), entity: target}
	c.joins[key] = j

	var on []sqltree.Node
	for _, pair := range rel.Joins {
		on = append(on, sqltree.Eq(sqltree.Col(parentAlias, pair.Source), sqltree.Col(j.alias, pair.Target)))
	}
	kind := sqltree.InnerJoin
	if outer || c.outerOnly {
		kind = sqltree.LeftJoin
	}
	c.from = &sqltree.Join{
		Kind:  kind,
		Left:  c.from,
		Right: &sqltree.Table{Name: target.Table, Alias: j.alias},
		On:    sqltree.And(on...),
	}
	if rel.ToMany {
		c.toMany = true
	}
	return j, nil
}
