package main

import (
	"os"

	"github.com/rheath/echojam/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
