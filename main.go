package main

import (
	"os"

	"github.com/icmpdrv/wping/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
