package main

import (
	"os"

	"github.com/jakewins/price-signals/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
