// Command qcserver serves the quality-check datasets over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"covidqc/internal/app"
	"covidqc/internal/config"
	"covidqc/pkg/contracts"
)

func main() {
	configFile := flag.String("config", "", "path to a YAML config file (overrides "+config.ConfigFileEnv+")")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println(contracts.GetFullVersionString())
		return
	}
	if *configFile != "" {
		os.Setenv(config.ConfigFileEnv, *configFile)
	}

	application, err := app.NewApplication(context.Background())
	if err != nil {
		slog.Error("Failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("Application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
