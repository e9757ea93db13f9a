package main

import (
	"encoding/json"
	"net/http"

	"github.com/rickgao/chatstream/internal/chat"
	"github.com/rickgao/chatstream/internal/connection"
	"github.com/rickgao/chatstream/internal/metrics"
	"github.com/rickgao/chatstream/internal/version"
)

// statser is the part of the connection manager the health endpoint reads.
type statser interface {
	Stats() connection.Stats
}

// newHealthHandler serves /health and, at metricsPath, Prometheus metrics.
func newHealthHandler(conn statser, room *chat.Room, metricsPath string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(metricsPath, metrics.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		stats := conn.Stats()

		health := struct {
			Status     string                 `json:"status"`
			Version    version.Info           `json:"version"`
			Components map[string]interface{} `json:"components"`
		}{
			Status:     "healthy",
			Version:    version.Get(),
			Components: make(map[string]interface{}),
		}

		health.Components["connection"] = stats
		health.Components["room"] = map[string]interface{}{
			"self":     room.Self(),
			"online":   room.Online(room.Self()),
			"users":    len(room.Users()),
			"messages": len(room.Messages()),
			"errors":   room.ErrorCount(),
		}

		switch {
		case room.Completed():
			health.Status = "unhealthy"
		case stats.State != connection.StateOpen:
			health.Status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
