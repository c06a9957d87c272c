package main

import (
	"os"

	"github.com/BerylCAtieno/startup-discovery-agent/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
