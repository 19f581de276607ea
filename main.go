package main

import (
	"os"

	_ "mm-swarm/cmd"
	"mm-swarm/cmd/root"
	"mm-swarm/internal/config"
	"mm-swarm/internal/logger"
)

func main() {
	// replaced once the subcommand has read its configuration
	logger.InitLogger(&config.Config.Log, false)

	if err := root.RootCmd.Execute(); err != nil {
		logger.Fatal(err)
	}
	os.Exit(0)
}
