package main

import (
	"os"

	"github.com/cvlab/rankpipe/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
