package main

import (
	"fmt"
	"os"

	"github.com/fgdb2gpkg/fgdb2gpkg/internal/cli"
)

var version = "dev"

func main() {
	cli.SetVersion(version)

	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
