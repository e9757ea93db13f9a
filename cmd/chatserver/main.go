// chatserver runs a local relay speaking the chat protocol, for trying the
// client without a real backend.
// Usage: go run ./cmd/chatserver --addr :8080
//
// Clients connect to ws://localhost:8080/ws/echo?id=<user>.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/chatstream/internal/relay"
	"github.com/rickgao/chatstream/internal/version"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	path := flag.String("path", "/ws/echo", "WebSocket endpoint path")
	echo := flag.Bool("echo", true, "send broadcasts back to their author (direct messages always are)")
	verbose := flag.Bool("verbose", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("starting chat relay", "version", version.String(), "addr", *addr, "path", *path)

	cfg := relay.DefaultConfig()
	cfg.EchoToSender = *echo
	r := relay.New(cfg, logger)

	mux := http.NewServeMux()
	mux.Handle(*path, r)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "healthy",
			"relay":  r.Stats(),
			"users":  r.Users(),
		})
	})

	server := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")
		r.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("chat relay failed", "error", err)
		os.Exit(1)
	}
	logger.Info("chat relay stopped")
}
