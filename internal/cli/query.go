package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/ormql/internal/store"
	"github.com/roach88/ormql/internal/translate"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	selectFlags
	Schema string
	Driver string
	DSN    string
}

// QueryResult is the JSON payload of the query command.
type QueryResult struct {
	Entity string           `json:"entity"`
	SQL    string           `json:"sql"`
	Rows   []map[string]any `json:"rows"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <entity> [qualifier]",
		Short: "Fetch objects from a database",
		Long: `Translate a qualifier for the configured database, run it and print the
fetched objects. The dialect follows the database driver.

Examples:
  ormql query Artist "name like 'P%'" --order name
  ormql query Painting "gallery.name = $g" --param g=Prado --driver pgx --dsn postgres://localhost/gallery`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			where := ""
			if len(args) == 2 {
				where = args[1]
			}
			return runQuery(cmd.Context(), opts, args[0], where, cmd)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&opts.Schema, "schema", "", "schema file (.yaml or .cue)")
	addDatabaseFlags(cmd, &opts.Driver, &opts.DSN)

	return cmd
}

// addDatabaseFlags registers the flags that override database settings.
func addDatabaseFlags(cmd *cobra.Command, driver, dsn *string) {
	cmd.Flags().StringVar(driver, "driver", "", "database driver: sqlite3, pgx or postgres (default from config)")
	cmd.Flags().StringVar(dsn, "dsn", "", "database DSN, or the SQLite file path (default from config)")
}

// openStore opens the database named by the flags or the configuration.
func openStore(opts *RootOptions, driver, dsn string) (*store.Store, error) {
	cfg := *opts.config()
	if driver != "" {
		cfg.Database.Driver = driver
	}
	if dsn != "" {
		cfg.Database.DSN = dsn
	}
	conn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}
	return store.Open(cfg.Database.Driver, conn)
}

func runQuery(ctx context.Context, opts *QueryOptions, entity, where string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	sc, err := loadSchema(opts.RootOptions, opts.Schema)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidSchema, err)
	}
	e, err := sc.Entity(entity)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeTranslate, err)
	}
	sel, err := opts.build(entity, where)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeParse, err)
	}

	st, err := openStore(opts.RootOptions, opts.Driver, opts.DSN)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, err)
	}
	defer st.Close()

	d, err := opts.config().LookupDialect(st.DialectName())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err)
	}
	tr := translate.New(sc)
	sqlStr, _, err := sel.SQL(tr, d)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeTranslate, err)
	}
	formatter.VerboseLog("%s", sqlStr)

	objects, err := sel.Execute(ctx, st, tr, d)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeDatabase, err)
	}

	if opts.Format == "json" {
		result := QueryResult{Entity: entity, SQL: sqlStr, Rows: make([]map[string]any, len(objects))}
		for i, o := range objects {
			row := make(map[string]any, len(e.Attributes))
			for _, a := range e.Attributes {
				row[a.Name] = jsonValue(o.Values[a.Name])
			}
			result.Rows[i] = row
		}
		return formatter.Success(result)
	}

	headers := make([]string, len(e.Attributes))
	for i, a := range e.Attributes {
		headers[i] = a.Name
	}
	rows := make([][]string, len(objects))
	for i, o := range objects {
		cells := make([]string, len(e.Attributes))
		for j, a := range e.Attributes {
			cells[j] = formatCell(o.Values[a.Name])
		}
		rows[i] = cells
	}
	formatter.Table(headers, rows)
	fmt.Fprintf(cmd.OutOrStdout(), "%d row(s)\n", len(objects))
	return nil
}
