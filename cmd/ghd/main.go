package main

import (
	"os"

	"github.com/abysmo/ghd/cmd/ghd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
