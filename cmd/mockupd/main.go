package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ivlev/mockupwarp/internal/config"
	"github.com/ivlev/mockupwarp/internal/logger"
	"github.com/ivlev/mockupwarp/internal/server"
)

func main() {
	log := logger.NewLogger()
	if err := godotenv.Load(); err != nil {
		log.Warnf("No .env file loaded, using environment: %v", err)
	}

	cfg := config.LoadServerConfig()
	fiberApp := config.NewFiber(cfg)
	validator := config.NewValidator()

	srv, err := server.NewServer(
		server.WithConfig(cfg),
		server.WithFiber(fiberApp),
		server.WithLogger(log),
		server.WithValidator(validator),
		server.WithMiddleware(),
		server.WithCatalogFile(),
		server.WithConfiguredDetector(),
	)
	if err != nil {
		log.Fatal(err)
	}

	srv.RegisterHandler()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Run(); err != nil {
			log.Fatalf("Error starting server: %v", err)
		}
	}()

	log.WithField("port", cfg.Port).Info("Server started successfully")

	<-sigChan
	log.Info("Shutting down server...")
	if err := srv.Shutdown(10 * time.Second); err != nil {
		log.Errorf("Shutdown: %v", err)
	}
}
