package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"pingr/dispatch"
	"pingr/httpapi"
	"pingr/imagestore"
	"pingr/internal"
	"pingr/moderation"
	"pingr/observability"
	"pingr/presence"
	"pingr/repositories"
	"pingr/search"
	"pingr/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting so every defer (database close, index close)
// executes before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Storage (BadgerDB + Bluge)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	index, err := search.Open(config.BlugeFilepath, log)
	if err != nil {
		return fmt.Errorf("search index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing search index...")
		_ = index.Close()
	}()

	// 3. Collaborators & core wiring
	images, err := imagestore.NewLocalStore(config.ImageDir, config.ImageBaseURL)
	if err != nil {
		return fmt.Errorf("image store setup failed: %w", err)
	}

	moderator, err := moderation.NewModerator(
		splitWords(config.CensoredWords), config.ModerationCharReplacement)
	if err != nil {
		return fmt.Errorf("moderator setup failed: %w", err)
	}

	monitor := observability.NewMonitor()
	registry := presence.NewRegistry(log)
	dispatcher := dispatch.NewDispatcher(registry, monitor, log)

	messageRepository := repositories.NewMessageRepository(db, log)
	userRepository := repositories.NewUserRepository(db)

	messageService := services.NewMessageService(
		messageRepository, dispatcher, moderator, images, index, monitor, log)
	authService := services.NewAuthService(userRepository, config.AuthTokenDuration)

	server := httpapi.NewServer(
		authService, messageService, userRepository, registry, index,
		config.ImageDir, config.ChannelBufferSize, log)

	// 4. Optional inspect dashboard
	if config.DebugPort > 0 {
		internal.StartDebugServer(db, config.DebugPort, nil, monitor.Snapshot)
		log.Info("Inspect dashboard started", "port", config.DebugPort)
	}

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 6. HTTP server
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{
		Addr:    address,
		Handler: server.Routes(),
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 8. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown was not clean", "error", err)
	}
	log.Info("Program stopped cleanly")

	return nil
}

func splitWords(csv string) []string {
	var words []string
	for _, word := range strings.Split(csv, ",") {
		if trimmed := strings.TrimSpace(word); trimmed != "" {
			words = append(words, trimmed)
		}
	}
	return words
}
