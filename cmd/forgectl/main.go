package main

import (
	"fmt"
	"os"

	"github.com/timmy/threatforge/internal/cli"
)

func main() {
	if err := cli.BuildCLI(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
