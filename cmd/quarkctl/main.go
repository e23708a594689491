package main

import (
	"fmt"
	"os"

	"github.com/quark-run/quark/cmd/quarkctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
