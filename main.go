package main

import (
	"os"

	"github.com/matt/roomlock/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
