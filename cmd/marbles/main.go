// Command marbles parses, renders and runs marble diagram scenarios.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/marbles/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
