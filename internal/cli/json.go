package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/ormql/internal/jsontok"
)

// TokenOutput is one token in the JSON output of json tokens.
type TokenOutput struct {
	Kind   string `json:"kind"`
	Text   string `json:"text,omitempty"`
	Offset int    `json:"offset"`
}

// NewJSONCommand creates the json command group.
func NewJSONCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "json",
		Short: "Inspect JSON documents with the built-in tokenizer",
	}

	cmd.AddCommand(newJSONSubcommand(rootOpts, "tokens", "Print the token stream of a document", runJSONTokens))
	cmd.AddCommand(newJSONSubcommand(rootOpts, "normalize", "Rewrite a document without whitespace", runJSONNormalize))
	cmd.AddCommand(newJSONSubcommand(rootOpts, "canonical", "Rewrite a document with sorted keys", runJSONCanonical))

	return cmd
}

type jsonRunner func(formatter *OutputFormatter, src string) error

func newJSONSubcommand(rootOpts *RootOptions, name, short string, run jsonRunner) *cobra.Command {
	return &cobra.Command{
		Use:   name + " [file]",
		Short: short,
		Long: short + `.

Reads the named file, or stdin when the argument is "-" or missing.
Malformed input is reported with the byte offset of the problem.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			src, err := readSource(path, cmd.InOrStdin())
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeNotFound, err)
			}
			if err := run(formatter, src); err != nil {
				if jsontok.IsParseError(err) {
					return formatter.Fail(ExitFailure, ErrCodeParse, err)
				}
				return formatter.Fail(ExitFailure, ErrCodeGeneric, err)
			}
			return nil
		},
	}
}

func readSource(path string, stdin io.Reader) (string, error) {
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
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func runJSONTokens(formatter *OutputFormatter, src string) error {
	tokens, err := jsontok.Tokenize(src)
	if err != nil {
		return err
	}

	if formatter.Format == "json" {
		out := make([]TokenOutput, len(tokens))
		for i, t := range tokens {
			out[i] = TokenOutput{Kind: t.Kind.String(), Text: t.Text, Offset: t.Offset}
		}
		return formatter.Success(out)
	}

	for _, t := range tokens {
		fmt.Fprintf(formatter.Writer, "%6d  %s\n", t.Offset, t)
	}
	return nil
}

func runJSONNormalize(formatter *OutputFormatter, src string) error {
	out, err := jsontok.Normalize(src)
	if err != nil {
		return err
	}
	return formatter.Success(out)
}

func runJSONCanonical(formatter *OutputFormatter, src string) error {
	v, err := jsontok.Parse(src)
	if err != nil {
		return err
	}
	out, err := jsontok.Canonical(v)
	if err != nil {
		return err
	}
	return formatter.Success(string(out))
}
