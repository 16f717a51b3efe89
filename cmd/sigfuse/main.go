// Command sigfuse correlates multi-source signals and fuses their
// confidences.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/sigfuse/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "sigfuse: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
