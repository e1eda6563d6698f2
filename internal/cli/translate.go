package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/ormql/internal/exp"
	"github.com/roach88/ormql/internal/jsontok"
	"github.com/roach88/ormql/internal/query"
	"github.com/roach88/ormql/internal/schema"
	"github.com/roach88/ormql/internal/translate"
)

// selectFlags are the query shaping flags shared by translate, eval and
// query.
type selectFlags struct {
	Order    []string
	Limit    int
	Offset   int
	Distinct bool
	Params   map[string]string
}

func (f *selectFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&f.Order, "order", nil, `ordering, e.g. "name" or "title desc ignoreCase" (repeatable)`)
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "maximum number of rows (0 = no limit)")
	cmd.Flags().IntVar(&f.Offset, "offset", 0, "number of rows to skip")
	cmd.Flags().BoolVar(&f.Distinct, "distinct", false, "select distinct rows")
	cmd.Flags().StringToStringVar(&f.Params, "param", nil, "named parameter value, e.g. --param min=10 (repeatable)")
}

// build parses the qualifier and orderings into a select of entity.
func (f *selectFlags) build(entity, where string) (*query.Select, error) {
	sel := &query.Select{
		Entity:   entity,
		Limit:    f.Limit,
		Offset:   f.Offset,
		Distinct: f.Distinct,
	}
	if strings.TrimSpace(where) != "" {
		e, err := exp.Parse(where)
		if err != nil {
			return nil, fmt.Errorf("qualifier: %w", err)
		}
		sel.Where = e
	}
	for _, o := range f.Order {
		ord, err := exp.ParseOrdering(o)
		if err != nil {
			return nil, fmt.Errorf("order %q: %w", o, err)
		}
		sel.Orderings = append(sel.Orderings, ord)
	}
	if len(f.Params) > 0 {
		sel.Params = make(map[string]any, len(f.Params))
		for k, v := range f.Params {
			sel.Params[k] = parseParam(v)
		}
	}
	return sel, nil
}

// parseParam reads a parameter as a JSON scalar, falling back to the raw
// string: 10 is a number, true a bool, Picasso and "10" are strings.
func parseParam(s string) any {
	v, err := jsontok.Parse(s)
	if err != nil {
		return s
	}
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return s
	case bool, string:
		return x
	case nil:
		return nil
	}
	return s
}

// loadSchema reads the schema named by the flag or the configuration.
func loadSchema(opts *RootOptions, path string) (*schema.Schema, error) {
	if path == "" {
		path = opts.config().Schema
	}
	return schema.LoadFile(path)
}

// TranslateOptions holds flags for the translate command.
type TranslateOptions struct {
	*RootOptions
	selectFlags
	Schema  string
	Dialect string
}

// TranslateResult is the JSON payload of the translate command.
type TranslateResult struct {
	Dialect string `json:"dialect"`
	SQL     string `json:"sql"`
	Args    []any  `json:"args"`
}

// NewTranslateCommand creates the translate command.
func NewTranslateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TranslateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "translate <entity> [qualifier]",
		Short: "Render a qualifier as SQL",
		Long: `Translate a qualifier over an entity into a SELECT statement for a
database dialect. Literals become bound arguments.

Examples:
  ormql translate Painting "artist.name = 'Picasso'" --order title
  ormql translate Painting "price > $min" --param min=100 --dialect postgres
  ormql translate Artist "paintings.price < 1000" --dialect oracle --limit 10`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			where := ""
			if len(args) == 2 {
				where = args[1]
			}
			return runTranslate(opts, args[0], where, cmd)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&opts.Schema, "schema", "", "schema file (.yaml or .cue)")
	cmd.Flags().StringVar(&opts.Dialect, "dialect", "", "target dialect (default from config)")

	return cmd
}

func runTranslate(opts *TranslateOptions, entity, where string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	sc, err := loadSchema(opts.RootOptions, opts.Schema)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidSchema, err)
	}
	d, err := opts.config().LookupDialect(opts.Dialect)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err)
	}
	sel, err := opts.build(entity, where)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeParse, err)
	}

	formatter.VerboseLog("Translating %s for %s", sel.Entity, d.Name)
	sqlStr, args, err := sel.SQL(translate.New(sc), d)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeTranslate, err)
	}

	if opts.Format == "json" {
		jsonArgs := make([]any, len(args))
		for i, a := range args {
			jsonArgs[i] = jsonValue(a)
		}
		return formatter.Success(TranslateResult{Dialect: d.Name, SQL: sqlStr, Args: jsonArgs})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, sqlStr)
	for i, a := range args {
		fmt.Fprintf(w, "  [%d] %s\n", i+1, formatCell(a))
	}
	return nil
}
