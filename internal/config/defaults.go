package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultHeartbeatPeriod  = 10 * time.Minute
	DefaultReconnectPeriod  = 5 * time.Second
	DefaultUptimeLogPeriod  = 10 * time.Minute
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 5 * time.Second
	DefaultMetricsPort      = 9090
	DefaultMetricsPath      = "/metrics"
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
)

func (c *ClientConfig) applyDefaults() {
	// Connection defaults
	if c.Connection.HeartbeatPeriod == 0 {
		c.Connection.HeartbeatPeriod = DefaultHeartbeatPeriod
	}
	if c.Connection.ReconnectPeriod == 0 {
		c.Connection.ReconnectPeriod = DefaultReconnectPeriod
	}
	if c.Connection.UptimeLogPeriod == 0 {
		c.Connection.UptimeLogPeriod = DefaultUptimeLogPeriod
	}
	if c.Connection.HandshakeTimeout == 0 {
		c.Connection.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Connection.WriteTimeout == 0 {
		c.Connection.WriteTimeout = DefaultWriteTimeout
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}
