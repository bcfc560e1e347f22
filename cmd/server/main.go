package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"chat-relay/internal/server"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

// run initializes all components and manages the server lifecycle so that
// deferred cleanup executes before the process exits.
func run() error {
	// A .env file is optional; real environments set variables directly.
	_ = godotenv.Load()

	cfg, err := server.NewConfigFromEnv()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	server.SetConfig(cfg)

	server.StartHub()
	httpServer := server.CreateServer(cfg.Port, server.SetupRoutes())

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.StartServer(httpServer)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	case sig := <-stop:
		log.Printf("Received %s, shutting down", sig)
	}

	if err := server.ShutdownServer(httpServer, cfg.ShutdownTimeout); err != nil {
		log.Printf("HTTP shutdown did not complete cleanly: %v", err)
	}
	if err := server.GetHub().Shutdown(cfg.ShutdownTimeout); err != nil {
		log.Printf("Hub shutdown did not complete cleanly: %v", err)
	}
	return nil
}
