package main

import (
	"os"

	"github.com/dronewatch/dronewatch-go/cmd"
	"github.com/dronewatch/dronewatch-go/internal/conf"
	"github.com/dronewatch/dronewatch-go/internal/logging"
)

func main() {
	logging.Init()

	settings, err := conf.Load()
	if err != nil {
		logging.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	if err := cmd.RootCommand(settings).Execute(); err != nil {
		os.Exit(1)
	}
}
