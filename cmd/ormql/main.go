// Command ormql translates qualifier expressions into dialect SQL, evaluates
// them over in-memory objects, and runs conformance scenarios that check
// both evaluations agree.
//
// Usage:
//
//	ormql [flags] <command>
//
// Commands that touch a database (init, query) read database.driver and
// database.dsn from ormql.yaml, ORMQL_* environment variables or flags.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/ormql/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
