package main

import (
	"os"

	"github.com/penwyp/go-scholar-sync/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
