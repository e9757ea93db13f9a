package config

import "time"

// ClientConfig is the root configuration for a chat client.
type ClientConfig struct {
	Session    SessionConfig    `yaml:"session"`
	Connection ConnectionConfig `yaml:"connection"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// SessionConfig identifies the endpoint and the user.
type SessionConfig struct {
	URL    string `yaml:"url"`     // ws://host:port/path; http(s) is rewritten to ws(s)
	UserID string `yaml:"user_id"` // Sent as the id query parameter
}

// ConnectionConfig holds connection manager timing.
type ConnectionConfig struct {
	HeartbeatPeriod  time.Duration `yaml:"heartbeat_period"`
	ReconnectPeriod  time.Duration `yaml:"reconnect_period"`
	UptimeLogPeriod  time.Duration `yaml:"uptime_log_period"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
}

// MetricsConfig holds the health and Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}
