package main

import (
	"os"

	"github.com/curio-sh/curio/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
