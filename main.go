package main

import (
	"errors"
	"fmt"
	"os"

	logger "github.com/sirupsen/logrus"

	"github.com/nextver/nextver/cmd"
	"github.com/nextver/nextver/infrastructure/report"
)

func main() {
	//nolint:exhaustruct // Minimal TextFormatter initialization with required fields only
	logger.SetFormatter(&logger.TextFormatter{
		ForceColors:   true,
		FullTimestamp: true,
	})
	if os.Getenv("DEBUG") == "true" {
		logger.SetLevel(logger.DebugLevel)
	}

	if err := cmd.Execute(); err != nil {
		if errors.Is(err, cmd.ErrOutdated) || errors.Is(err, cmd.ErrNothingToUpdate) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, report.FormatFatal(err, logger.IsLevelEnabled(logger.DebugLevel)))
		os.Exit(1)
	}
}
