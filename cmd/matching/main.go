package main

import (
	"context"
	"flag"
	"os"

	"github.com/Temutjin2k/driver-match-system/config"
	_ "github.com/Temutjin2k/driver-match-system/docs"
	"github.com/Temutjin2k/driver-match-system/internal/app"
	"github.com/Temutjin2k/driver-match-system/pkg/logger"
)

var (
	helpFlag   = flag.Bool("help", false, "Show help message")
	configPath = flag.String("config-path", "config.yaml", "Path to the config yaml file")
)

func main() {
	flag.Parse()
	if *helpFlag {
		config.PrintHelp()
		return
	}

	ctx := context.Background()
	log := logger.InitLogger("", logger.LevelDebug)

	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		log.Error(ctx, "failed to configure application", err)
		config.PrintHelp()
		return
	}

	// Printing configuration
	config.PrintConfig(cfg)

	logLevel := cfg.LogLevel
	if !logger.ValidateLogLevel(logLevel) {
		logLevel = logger.LevelDebug
	}
	log = logger.InitLogger(cfg.ServiceName, logLevel)

	// Creating application
	application, err := app.NewApplication(ctx, *cfg, log)
	if err != nil {
		log.Error(ctx, "failed to init application", err)
		os.Exit(1)
	}

	// Running the application
	if err = application.Run(ctx); err != nil {
		log.Error(ctx, "failed to run application", err)
		os.Exit(1)
	}
}
