package cli

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/ormql/internal/batch"
	"github.com/roach88/ormql/internal/translate"
)

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	Schema  string
	Dialect string
	Driver  string
	DSN     string
	Data    string
	DryRun  bool
}

// InitResult is the JSON payload of the init command.
type InitResult struct {
	Dialect    string           `json:"dialect"`
	Statements []string         `json:"statements"`
	Applied    bool             `json:"applied"`
	Rows       map[string]int64 `json:"rows,omitempty"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the schema's tables",
		Long: `Create a table for every entity of the schema in the configured database,
optionally loading rows from a data file. With --dry-run the DDL is printed
for --dialect instead.

The data file maps entity names to lists of rows keyed by attribute name:

  Artist:
    - {id: 1, name: Picasso}

Examples:
  ormql init --schema gallery.yaml --dsn gallery.db --data seed.yaml
  ormql init --schema gallery.yaml --dry-run --dialect oracle`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Schema, "schema", "", "schema file (.yaml or .cue)")
	cmd.Flags().StringVar(&opts.Dialect, "dialect", "", "dialect for --dry-run (default from config)")
	cmd.Flags().StringVar(&opts.Data, "data", "", "YAML file of rows to insert")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "print the DDL without touching a database")
	addDatabaseFlags(cmd, &opts.Driver, &opts.DSN)

	return cmd
}

func runInit(ctx context.Context, opts *InitOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	sc, err := loadSchema(opts.RootOptions, opts.Schema)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidSchema, err)
	}

	if opts.DryRun {
		d, err := opts.config().LookupDialect(opts.Dialect)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, err)
		}
		return outputInit(formatter, InitResult{Dialect: d.Name, Statements: d.CreateTables(sc)})
	}

	var data map[string][]map[string]any
	if opts.Data != "" {
		if data, err = readData(opts.Data); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeNotFound, err)
		}
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
	if err := st.ApplySchema(ctx, sc, d); err != nil {
		return formatter.Fail(ExitFailure, ErrCodeDatabase, err)
	}
	result := InitResult{Dialect: d.Name, Statements: d.CreateTables(sc), Applied: true}

	if len(data) > 0 {
		result.Rows = make(map[string]int64, len(data))
		w := batch.New(translate.New(sc), d, nil)
		err := st.WithTx(ctx, func(tx *sql.Tx) error {
			for _, name := range sortedEntities(data) {
				e, err := sc.Entity(name)
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
				result.Rows[name] = res.RowsAffected
			}
			return nil
		})
		if err != nil {
			return formatter.Fail(ExitFailure, ErrCodeDatabase, fmt.Errorf("load %s: %w", opts.Data, err))
		}
	}

	return outputInit(formatter, result)
}

// readData decodes a data file of rows per entity.
func readData(path string) (map[string][]map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}
	var data map[string][]map[string]any
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse data %s: %w", path, err)
	}
	return data, nil
}

// sortedEntities lists the entity names of data in sorted order.
func sortedEntities(data map[string][]map[string]any) []string {
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func outputInit(formatter *OutputFormatter, result InitResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	for _, stmt := range result.Statements {
		fmt.Fprintf(w, "%s;\n", stmt)
	}
	if result.Applied {
		fmt.Fprintf(w, "\n✓ %d table(s) created (%s)\n", len(result.Statements), result.Dialect)
	}
	names := make([]string, 0, len(result.Rows))
	for name := range result.Rows {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "✓ %s: %d row(s)\n", name, result.Rows[name])
	}
	return nil
}
