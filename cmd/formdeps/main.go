// Command formdeps validates, evaluates and tests field dependency forms.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/formdeps/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		// Commands that print their own error envelope still return an
		// ExitError; cobra errors (unknown flag, bad args) are printed here.
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
