// Command autofactool builds the sample registry, resolves MainClass and
// runs the entity query.
package main

import (
	"fmt"
	"os"

	"github.com/junioryono/scopedi/internal/cli"
)

func main() {
	if err := cli.Run(os.Args[1:], os.Stdout, os.Stderr, os.Exit); err != nil {
		fmt.Fprintf(os.Stderr, "autofactool: %v\n", err)
		os.Exit(1)
	}
}
