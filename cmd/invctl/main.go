// Command invctl inspects and operates the workshop ticket inventory.
package main

import (
	"fmt"
	"os"

	"github.com/c50bossio/6fb-methodologies-sub002/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
