package main

import (
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/lanchat/lanchat/internal/server"
)

func main() {
	configPath := pflag.String("config", "", "path to a YAML config file (overrides environment)")
	listenAddr := pflag.String("port", "", "listen address, e.g. :8080 (overrides config)")
	pflag.Parse()

	cfg := server.NewConfigFromEnv()
	if *configPath != "" {
		fileCfg, err := server.NewConfigFromFile(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config %s: %v", *configPath, err)
		}
		cfg = fileCfg
	}
	if *listenAddr != "" {
		cfg.Port = *listenAddr
	}
	server.SetConfig(cfg)

	hub := server.NewHub()
	go hub.Run()
	log.Println("Hub started and ready to manage WebSocket connections")

	store := server.NewBlobStore(cfg.MaxUploadSize)
	router := server.SetupRoutes(hub, store)
	httpServer := server.CreateServer(cfg.Port, router)

	for _, addr := range server.LocalAddresses() {
		log.Printf("Reachable at http://%s%s", addr, cfg.Port)
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.StartServer(httpServer)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	case sig := <-stop:
		log.Printf("Received %s, shutting down", sig)
	}

	if err := server.ShutdownServer(httpServer, 10*time.Second); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
	if err := hub.Shutdown(5 * time.Second); err != nil {
		log.Printf("Hub shutdown error: %v", err)
	}
}
