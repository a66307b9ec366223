package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/hbomb79/Reel/internal"
	"github.com/hbomb79/Reel/pkg/logger"
)

var log = logger.Get("Bootstrap")

// main is the entry point to Reel. The configuration is loaded from the
// path provided via '-config' (or the default config file), with
// environment variables taking precedence, and Reel is run until
// an interrupt or termination signal is received.
func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	flag.Parse()

	config, err := internal.LoadConfig(*configPath)
	if err != nil {
		log.Emit(logger.FATAL, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	reel, err := internal.New(*config)
	if err != nil {
		log.Emit(logger.FATAL, "Failed to initialise Reel: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	exitChannel := make(chan os.Signal, 1)
	signal.Notify(exitChannel, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-exitChannel
		log.Emit(logger.STOP, "Received signal, shutting down...\n")
		cancel()
	}()

	if err := reel.Run(ctx); err != nil {
		log.Emit(logger.FATAL, "Reel stopped due to error: %v\n", err)
		os.Exit(1)
	}

	log.Emit(logger.SUCCESS, "Reel shutdown complete\n")
}
