package main

import (
	"os"

	"github.com/rcoelho/weektrader/cmd/weektrader/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
