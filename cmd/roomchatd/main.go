package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"roomchat/discovery"
	"roomchat/server"
	"roomchat/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("could not load .env file: %v", err)
	}

	addr := envString("ROOMCHAT_ADDR", ":8787")
	dataDir := envString("ROOMCHAT_DB_DIR", ".")
	retention := time.Duration(envInt("ROOMCHAT_RETENTION_HOURS", 24)) * time.Hour

	store, dbPath, err := storage.Open(dataDir)
	if err != nil {
		log.Fatalf("startup failed while opening database: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("database close error: %v", err)
		}
	}()
	store.StartRetentionLoop(storage.DefaultPurgeInterval, retention)

	handler := server.New(store, server.Options{})

	fmt.Printf("Listen Address:  %s\n", addr)
	fmt.Printf("Database File:   %s\n", dbPath)
	fmt.Printf("Retention:       %s\n", retention)

	if envString("ROOMCHAT_MDNS", "") == "1" {
		broadcaster, err := discovery.StartBroadcast(discovery.Config{
			Port:    listenPort(addr),
			APIPath: server.EndpointPath,
		})
		if err != nil {
			log.Printf("mDNS startup failed: %v", err)
		} else {
			defer broadcaster.Stop()
			fmt.Println("Discovery:       broadcasting")
		}
	}

	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	fmt.Println("Status:          running (press Ctrl+C to stop)")

	select {
	case <-ctx.Done():
		fmt.Println("Status:          shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("server shutdown error: %v", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}
}

func envString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		log.Printf("ignoring invalid %s=%q", key, raw)
		return fallback
	}
	return value
}

func listenPort(addr string) int {
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		return 0
	}
	port, err := strconv.Atoi(addr[idx+1:])
	if err != nil {
		return 0
	}
	return port
}
