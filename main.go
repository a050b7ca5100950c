package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codesync/server/internal/config"
	internalhttp "github.com/codesync/server/internal/http"
	"github.com/codesync/server/internal/hub"
	"github.com/codesync/server/internal/presence"
	store "github.com/codesync/server/internal/repository"
	"github.com/codesync/server/internal/service"
	"github.com/codesync/server/internal/ws"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log.Printf("Starting sync server...")
	log.Printf("Port: %d", cfg.Port)
	log.Printf("Database: %s", cfg.DatabaseURL)

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	// Initialize presence registry
	registry := presence.NewRegistry()

	// Initialize hub
	connectionHub := hub.NewHub()
	go connectionHub.Run()

	// Initialize service
	svc := service.New(db, registry, connectionHub)

	// Initialize WebSocket server
	wsServer := ws.NewServer(cfg, connectionHub, svc)

	// Initialize HTTP server
	httpServer := internalhttp.NewServer(connectionHub, registry, wsServer)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		if err := httpServer.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("Server started on port %d", cfg.Port)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}

	log.Println("Server stopped")
}
