package main

import (
	"os"

	"github.com/Y006/phd-site/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
