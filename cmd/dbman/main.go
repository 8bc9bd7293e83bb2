package main

import (
	"os"

	"github.com/quimdev/dbman/pkg/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
