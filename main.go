package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/hbomb79/hlsgate/internal"
	"github.com/hbomb79/hlsgate/pkg/logger"
)

var log = logger.Get("Bootstrap")

// main is the entry point to the program: the configuration is loaded from
// the file given by '-config' (if any) and the environment, and the gateway
// runs until it receives SIGINT/SIGTERM.
func main() {
	configPath := flag.String("config", "", "path to a YAML/TOML configuration file")
	flag.Parse()

	config, err := internal.LoadConfig(*configPath)
	if err != nil {
		log.Emit(logger.FATAL, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	level, _ := logger.ParseStatus(config.LogLevel)
	logger.SetMinLoggingLevel(level.Level())

	gateway, err := internal.New(*config)
	if err != nil {
		log.Emit(logger.FATAL, "Failed to initialise: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := gateway.Run(ctx); err != nil {
		log.Emit(logger.FATAL, "%v\n", err)
		os.Exit(1)
	}
}
