// Command brutus translates typed SSA IR fixtures to jlir and lowers them
// to the std dialect.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/brutus/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}
	os.Exit(cli.GetExitCode(err))
}
