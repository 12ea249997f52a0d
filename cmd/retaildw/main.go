package main

import (
	"os"

	"github.com/wliao/retaildw/cmd/retaildw/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
