package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/chatstream/internal/bus"
	"github.com/rickgao/chatstream/internal/chat"
	"github.com/rickgao/chatstream/internal/config"
	"github.com/rickgao/chatstream/internal/connection"
	"github.com/rickgao/chatstream/internal/metrics"
	"github.com/rickgao/chatstream/internal/transport"
	"github.com/rickgao/chatstream/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/chatclient.yaml", "path to config file (empty for defaults)")
	userID := flag.String("id", "", "user id, overrides session.user_id")
	url := flag.String("url", "", "endpoint URL, overrides session.url")
	flag.Parse()

	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath, *userID, *url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Logging, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	logger.Info("starting chat client",
		"version", version.String(),
		"config", *configPath,
		"user_id", cfg.Session.UserID,
	)

	if err := run(cfg, os.Stdin, os.Stdout, logger); err != nil {
		logger.Error("chat client failed", "error", err)
		os.Exit(1)
	}
	logger.Info("chat client stopped")
}

func loadConfig(path, userID, url string) (*config.ClientConfig, error) {
	return config.Resolve(path, config.Overrides{URL: url, UserID: userID})
}

func newLogger(cfg config.LoggingConfig, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func run(cfg *config.ClientConfig, in io.Reader, out io.Writer, logger *slog.Logger) error {
	endpoint, err := transport.EndpointURL(cfg.Session.URL, cfg.Session.UserID)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dialer := transport.NewDialer(transport.Config{
		HandshakeTimeout: cfg.Connection.HandshakeTimeout,
		WriteTimeout:     cfg.Connection.WriteTimeout,
		UserAgent:        version.UserAgent(),
	}, logger)

	b := bus.New(logger)
	room := chat.NewRoom(cfg.Session.UserID, logger, chat.WithOnChange(printer(out)))
	sub := b.Subscribe(room)

	manager := connection.NewManager(connection.Config{
		HeartbeatPeriod: cfg.Connection.HeartbeatPeriod,
		ReconnectPeriod: cfg.Connection.ReconnectPeriod,
		UptimeLogPeriod: cfg.Connection.UptimeLogPeriod,
	}, dialer, b, logger)

	g, gctx := errgroup.WithContext(ctx)

	if err := manager.Start(gctx); err != nil {
		return fmt.Errorf("start connection manager: %w", err)
	}
	defer manager.Close()

	if err := manager.Connect(endpoint); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	if cfg.Metrics.Enabled {
		metrics.RegisterMetrics()
		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler:           newHealthHandler(manager, room, cfg.Metrics.Path),
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			logger.Info("starting health server", "port", cfg.Metrics.Port)
			if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("health server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	// Stdin blocks without honoring ctx, so it runs outside the group and
	// ends the session on EOF.
	go func() {
		readInput(in, manager, out, logger)
		stop()
	}()

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")
		err := manager.Close()
		<-sub.Done()
		return err
	})

	return g.Wait()
}

// readInput sends every line typed by the user.
func readInput(in io.Reader, manager connection.Manager, out io.Writer, logger *slog.Logger) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		msg, err := chat.ParseInput(scanner.Text())
		if errors.Is(err, chat.ErrEmptyInput) {
			continue
		}
		if err != nil {
			fmt.Fprintf(out, "! %v\n", err)
			continue
		}

		switch err := manager.Send(msg); {
		case errors.Is(err, connection.ErrNotConnected):
			fmt.Fprintln(out, "! not connected, message dropped")
		case errors.Is(err, connection.ErrManagerClosed):
			return
		case err != nil:
			fmt.Fprintf(out, "! send failed: %v\n", err)
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("reading input", "error", err)
	}
}

// printer renders room changes for the terminal.
func printer(out io.Writer) func(chat.Event) {
	return func(ev chat.Event) {
		switch ev.Kind {
		case chat.EventRoster:
			fmt.Fprintf(out, "* online: %s\n", strings.Join(ev.Users, ", "))
		case chat.EventMessage:
			fmt.Fprintf(out, "> %s\n", ev.Text)
		case chat.EventError:
			fmt.Fprintf(out, "! %v\n", ev.Err)
		case chat.EventComplete:
			fmt.Fprintln(out, "* session ended")
		}
	}
}
