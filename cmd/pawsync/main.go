package main

import (
	"os"

	"github.com/pawcontrol/pawsync/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
