package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/roach88/ormql/internal/jsontok"
	"github.com/roach88/ormql/internal/query"
)

// EvalOptions holds flags for the eval command.
type EvalOptions struct {
	*RootOptions
	selectFlags
}

// EvalResult is the JSON payload of the eval command.
type EvalResult struct {
	Total   int               `json:"total"`
	Matched int               `json:"matched"`
	Objects []json.RawMessage `json:"objects"`
}

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "eval <qualifier> <objects-file>",
		Short: "Filter objects in memory",
		Long: `Evaluate a qualifier, orderings and a window over objects read from a
JSON or YAML file, without a database. The file holds an array of objects
(or a single object); nested objects and arrays are followed by relationship
paths. Use "-" to read JSON from stdin.

Examples:
  ormql eval "price > 1000" paintings.yaml --order "price desc"
  ormql eval "artist.name like 'P%'" paintings.json --limit 2`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(opts, args[0], args[1], cmd)
		},
	}

	opts.register(cmd)

	return cmd
}

func runEval(opts *EvalOptions, where, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	objects, err := readObjects(path, cmd.InOrStdin())
	if err != nil {
		code := ErrCodeNotFound
		if jsontok.IsParseError(err) {
			code = ErrCodeParse
		}
		return formatter.Fail(ExitCommandError, code, err)
	}
	formatter.VerboseLog("Read %d object(s) from %s", len(objects), path)

	sel, err := opts.build("object", where)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeParse, err)
	}
	matched, err := query.InMemory(sel, objects)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, err)
	}

	result := EvalResult{Total: len(objects), Matched: len(matched), Objects: make([]json.RawMessage, 0, len(matched))}
	for _, o := range matched {
		b, err := jsontok.Canonical(o)
		if err != nil {
			return formatter.Fail(ExitFailure, ErrCodeGeneric, err)
		}
		result.Objects = append(result.Objects, b)
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}

	w := cmd.OutOrStdout()
	for _, b := range result.Objects {
		fmt.Fprintln(w, string(b))
	}
	fmt.Fprintf(w, "%d of %d object(s) matched\n", result.Matched, result.Total)
	return nil
}

// readObjects reads a JSON or YAML document and returns its top-level
// objects. YAML is converted to JSON before parsing.
func readObjects(path string, stdin io.Reader) ([]any, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read objects: %w", err)
	}

	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if data, err = yaml.YAMLToJSON(data); err != nil {
			return nil, fmt.Errorf("convert %s: %w", path, err)
		}
	}

	doc, err := jsontok.Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	switch v := doc.(type) {
	case []any:
		return v, nil
	case *jsontok.Object:
		return []any{v}, nil
	case nil:
		return nil, nil
	}
	return nil, fmt.Errorf("%s: expected an array of objects, got %T", path, doc)
}
