// Command watchgraft migrates watch history from an old media-library
// database into a rebuilt one.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/watchgraft/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
