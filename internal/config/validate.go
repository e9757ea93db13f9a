package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *ClientConfig) Validate() error {
	if c.Session.URL == "" {
		return errors.New("session.url is required")
	}

	if c.Connection.HeartbeatPeriod <= 0 {
		return fmt.Errorf("connection.heartbeat_period must be > 0, got %s", c.Connection.HeartbeatPeriod)
	}
	if c.Connection.ReconnectPeriod <= 0 {
		return fmt.Errorf("connection.reconnect_period must be > 0, got %s", c.Connection.ReconnectPeriod)
	}
	if c.Connection.UptimeLogPeriod <= 0 {
		return fmt.Errorf("connection.uptime_log_period must be > 0, got %s", c.Connection.UptimeLogPeriod)
	}
	if c.Connection.HandshakeTimeout <= 0 {
		return fmt.Errorf("connection.handshake_timeout must be > 0, got %s", c.Connection.HandshakeTimeout)
	}
	if c.Connection.WriteTimeout <= 0 {
		return fmt.Errorf("connection.write_timeout must be > 0, got %s", c.Connection.WriteTimeout)
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path)
	}

	if _, err := c.Logging.SlogLevel(); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// SlogLevel parses the configured level.
func (l LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("logging.level: %w", err)
	}
	return level, nil
}
