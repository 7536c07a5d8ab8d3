// Command rewind keeps per-record diff logs and answers history, change
// and selective undo queries over them.
package main

import (
	"os"

	"github.com/roach88/rewind/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
