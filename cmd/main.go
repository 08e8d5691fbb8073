package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/imWorldy/StarfishPlugins/internal/bootstrap"
	"github.com/imWorldy/StarfishPlugins/internal/logging"
)

func main() {
	fmt.Println("Starting Starfish plugin host")

	b := bootstrap.New()
	if err := b.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "Startup failed: %v\n", err)
		os.Exit(1)
	}

	if err := b.Start(); err != nil {
		logging.Critical("Start failed: %v", err)
		bootstrap.EmergencyShutdown(b.Components)
		logging.CloseGlobalLogger()
		os.Exit(1)
	}

	fmt.Println("Plugins running. Type chat or /<plugin> commands, Ctrl+C to quit.")

	waitForShutdown()

	if err := b.Shutdown(); err != nil {
		logging.Error("Shutdown failed: %v", err)
	}

	logging.Info("Shutdown complete")
	logging.CloseGlobalLogger()
}

func waitForShutdown() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	fmt.Println("\nShutdown signal received")
}
