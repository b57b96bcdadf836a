// Command orchestratorctl is the command-line client for orchestratord.
package main

import (
	"fmt"
	"os"

	"github.com/foundryml/forge/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
