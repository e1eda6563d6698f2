package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/ormql/internal/schema"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                     `json:"valid"`
	Schema string                   `json:"schema"`
	Errors []schema.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [schema-file]",
		Short: "Validate a schema file",
		Long: `Validate a YAML or CUE schema: entity, attribute and relationship names,
column types, primary keys and join columns. CUE schemas are also checked
against their own constraints.

Without an argument the configured schema is validated.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runValidate(rootOpts, path, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if path == "" {
		path = opts.config().Schema
	}

	sc, err := schema.LoadFile(path)
	if err != nil {
		result := ValidationResult{Schema: path, Errors: validationErrors(err)}
		if err := outputValidation(formatter, result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%d validation error(s)", len(result.Errors)))
	}

	formatter.VerboseLog("Loaded %d entit(ies) from %s", len(sc.Entities), path)
	return outputValidation(formatter, ValidationResult{Valid: true, Schema: path})
}

// validationErrors lists the problems behind a schema load error. Errors
// that are not validation results, like YAML syntax, become one entry.
func validationErrors(err error) []schema.ValidationError {
	var out []schema.ValidationError
	var walk func(error)
	walk = func(err error) {
		var ve schema.ValidationError
		switch x := err.(type) {
		case interface{ Unwrap() []error }:
			for _, e := range x.Unwrap() {
				walk(e)
			}
			return
		case schema.ValidationError:
			out = append(out, x)
			return
		}
		if errors.As(err, &ve) {
			if next := errors.Unwrap(err); next != nil {
				walk(next)
				return
			}
		}
		out = append(out, schema.ValidationError{Field: "load", Message: err.Error(), Code: ErrCodeInvalidSchema})
	}
	walk(err)
	return out
}

func outputValidation(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		if result.Valid {
			return formatter.Success(result)
		}
		return formatter.Error(ErrCodeInvalidSchema, fmt.Sprintf("%s is not valid", result.Schema), result.Errors)
	}

	w := formatter.Writer
	if result.Valid {
		fmt.Fprintf(w, "✓ %s is valid\n", result.Schema)
		return nil
	}
	fmt.Fprintf(w, "✗ %s\n", result.Schema)
	for _, e := range result.Errors {
		fmt.Fprintf(w, "  %s\n", e.Error())
	}
	return nil
}
