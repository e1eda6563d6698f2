package dialect

import (
	"maps"

	"github.com/roach88/ormql/internal/exp"
	"github.com/roach88/ormql/internal/sqltree"
)

// rewriteFunctions replaces portable calls with their vendor forms. Calls
// with the wrong number of arguments are an error, so no Rewrite sees them.
func (d *Dialect) rewriteFunctions(n sqltree.Node) (sqltree.Node, error) {
	var err error
	out := sqltree.Transform(n, func(n sqltree.Node) sqltree.Node {
		f, ok := n.(*sqltree.Function)
		if !ok || err != nil || f.Name == "" || f.NoParens {
			return n
		}
		if err = exp.CheckArity(f.Name, len(f.Args)); err != nil {
			return n
		}
		if rw, ok := d.Functions[f.Name]; ok {
			return rw(f.Args)
		}
		return n
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func call(name string, args ...sqltree.Node) *sqltree.Function {
	return &sqltree.Function{Name: name, Args: args}
}

func keyword(name string) Rewrite {
	return func([]sqltree.Node) sqltree.Node {
		return &sqltree.Function{Name: name, NoParens: true}
	}
}

func rename(name string) Rewrite {
	return func(args []sqltree.Node) sqltree.Node { return call(name, args...) }
}

// concat joins its arguments with ||.
func concat(args []sqltree.Node) sqltree.Node {
	return &sqltree.Function{Args: args, Separator: " || "}
}

// extract renders EXTRACT(field FROM x).
func extract(field string) Rewrite {
	return func(args []sqltree.Node) sqltree.Node {
		return &sqltree.Function{
			Name:      "EXTRACT",
			Args:      append([]sqltree.Node{&sqltree.Text{SQL: field + " FROM"}}, args...),
			Separator: " ",
		}
	}
}

func toChar(format string) Rewrite {
	return func(args []sqltree.Node) sqltree.Node {
		out := append(append([]sqltree.Node(nil), args...), sqltree.Literal(format))
		return call("TO_CHAR", out...)
	}
}

func castInteger(n sqltree.Node) sqltree.Node {
	return &sqltree.Function{Name: "CAST", Args: []sqltree.Node{n, &sqltree.Text{SQL: "AS INTEGER"}}, Separator: " "}
}

func strftime(format string, offset int) Rewrite {
	return func(args []sqltree.Node) sqltree.Node {
		n := castInteger(call("strftime", append([]sqltree.Node{sqltree.Literal(format)}, args...)...))
		if offset == 0 {
			return n
		}
		return &sqltree.Paren{Expr: &sqltree.Op{Op: "+", Left: n, Right: &sqltree.Text{SQL: "1"}}}
	}
}

// locate rewrites LOCATE(sub, s[, start]) for databases whose search
// function takes (s, sub) and has no start argument.
func locate(find, substr string) Rewrite {
	return func(args []sqltree.Node) sqltree.Node {
		switch len(args) {
		case 0, 1:
			return call(find, args...)
		case 2:
			return call(find, args[1], args[0])
		}
		sub, s, start := args[0], args[1], args[2]
		pos := call(find, call(substr, s, start), sub)
		again := call(find, call(substr, sqltree.Clone(s), sqltree.Clone(start)), sqltree.Clone(sub))
		// CASE WHEN pos > 0 THEN pos + start - 1 ELSE 0 END
		return &sqltree.Function{
			Name:      "CASE WHEN",
			NoParens:  true,
			Separator: " ",
			Args: []sqltree.Node{
				&sqltree.Op{Op: ">", Left: pos, Right: &sqltree.Text{SQL: "0"}},
				&sqltree.Text{SQL: "THEN"},
				&sqltree.Op{
					Op:    "-",
					Left:  &sqltree.Op{Op: "+", Left: again, Right: sqltree.Clone(start)},
					Right: &sqltree.Text{SQL: "1"},
				},
				&sqltree.Text{SQL: "ELSE 0 END"},
			},
		}
	}
}

// baseFunctions are shared by every dialect: the current date and time
// are keywords, not calls.
func baseFunctions() map[string]Rewrite {
	return map[string]Rewrite{
		exp.FuncCurrentDate:      keyword("CURRENT_DATE"),
		exp.FuncCurrentTime:      keyword("CURRENT_TIME"),
		exp.FuncCurrentTimestamp: keyword("CURRENT_TIMESTAMP"),
	}
}

func oracleFunctions() map[string]Rewrite {
	m := baseFunctions()
	maps.Copy(m, map[string]Rewrite{
		exp.FuncCurrentTime: keyword("CURRENT_TIMESTAMP"),
		exp.FuncLocate: func(args []sqltree.Node) sqltree.Node {
			if len(args) < 2 {
				return call("INSTR", args...)
			}
			out := []sqltree.Node{args[1], args[0]}
			return call("INSTR", append(out, args[2:]...)...)
		},
		exp.FuncConcat:     concat,
		exp.FuncSubstring:  rename("SUBSTR"),
		exp.FuncYear:       extract("YEAR"),
		exp.FuncMonth:      extract("MONTH"),
		exp.FuncDayOfMonth: extract("DAY"),
		exp.FuncHour:       extract("HOUR"),
		exp.FuncMinute:     extract("MINUTE"),
		exp.FuncSecond:     extract("SECOND"),
		exp.FuncDayOfYear:  toChar("DDD"),
		exp.FuncDayOfWeek:  toChar("D"),
		exp.FuncWeek:       toChar("IW"),
	})
	return m
}

func sqliteFunctions() map[string]Rewrite {
	m := baseFunctions()
	maps.Copy(m, map[string]Rewrite{
		exp.FuncLocate:    locate("instr", "substr"),
		exp.FuncConcat:    concat,
		exp.FuncSubstring: rename("substr"),
		exp.FuncMod: func(args []sqltree.Node) sqltree.Node {
			return &sqltree.Function{Args: args, Separator: " % "}
		},
		exp.FuncYear:       strftime("%Y", 0),
		exp.FuncMonth:      strftime("%m", 0),
		exp.FuncDayOfMonth: strftime("%d", 0),
		exp.FuncHour:       strftime("%H", 0),
		exp.FuncMinute:     strftime("%M", 0),
		exp.FuncSecond:     strftime("%S", 0),
		exp.FuncDayOfYear:  strftime("%j", 0),
		exp.FuncDayOfWeek:  strftime("%w", 1),
		exp.FuncWeek:       strftime("%W", 0),
	})
	return m
}

func postgresFunctions() map[string]Rewrite {
	m := baseFunctions()
	maps.Copy(m, map[string]Rewrite{
		exp.FuncLocate: func(args []sqltree.Node) sqltree.Node {
			if len(args) == 2 {
				return &sqltree.Function{
					Name:      "POSITION",
					Args:      []sqltree.Node{args[0], &sqltree.Text{SQL: "IN"}, args[1]},
					Separator: " ",
				}
			}
			return locate("STRPOS", "SUBSTR")(args)
		},
		exp.FuncConcat:     concat,
		exp.FuncSubstring:  rename("SUBSTR"),
		exp.FuncYear:       extract("YEAR"),
		exp.FuncMonth:      extract("MONTH"),
		exp.FuncDayOfMonth: extract("DAY"),
		exp.FuncHour:       extract("HOUR"),
		exp.FuncMinute:     extract("MINUTE"),
		exp.FuncSecond:     extract("SECOND"),
		exp.FuncDayOfYear:  extract("DOY"),
		exp.FuncWeek:       extract("WEEK"),
		exp.FuncDayOfWeek: func(args []sqltree.Node) sqltree.Node {
			return &sqltree.Paren{Expr: &sqltree.Op{Op: "+", Left: extract("DOW")(args), Right: &sqltree.Text{SQL: "1"}}}
		},
	})
	return m
}
