package config

import (
	"flag"
	"fmt"
)

const HelpMessage = `
  driver-match-system

  Usage:
    matching [flags]

  Flags:
    -help                Show this help message
    -config-path string  Path to the config yaml file (default "config.yaml")

  Configuration is read from the yaml file and can be overridden with
  environment variables (see config/config.go for the full list).
`

func PrintHelp() {
	if HelpMessage != "" {
		fmt.Printf("%s", HelpMessage)
	} else {
		flag.Usage()
	}
}

// PrintConfig prints the loaded configuration without secrets.
func PrintConfig(cfg *Config) {
	fmt.Printf("service: %s\n", cfg.ServiceName)
	fmt.Printf("log level: %s\n", cfg.LogLevel)
	fmt.Printf("http port: %s\n", cfg.Server.Port)
	fmt.Printf("database: %s@%s:%s/%s\n", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)
	fmt.Printf("rabbitmq: %s:%s\n", cfg.RabbitMQ.Host, cfg.RabbitMQ.Port)
	fmt.Printf("driver response timeout: %s\n", cfg.Matching.DriverResponseTimeout)
	fmt.Printf("booking timeout: %s\n", cfg.Matching.BookingTimeout)
}
