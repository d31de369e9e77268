package handlers

import (
	"context"
	"net/http"
	"time"
)

const Version = "1.0.0"

type healthChecker interface {
	Health(ctx context.Context) error
}

// Health reports liveness. When messages are persisted through a remote
// service that can be probed, its failure marks the relay degraded.
func (ch *ChatHandler) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   Version,
		"service":   "seshat-relay",
	}
	status := http.StatusOK
	if checker, ok := ch.Messages.(healthChecker); ok {
		if err := checker.Health(r.Context()); err != nil {
			body["status"] = "degraded"
			body["error"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, body)
	chatLogger.Debug("Health check", "remote", r.RemoteAddr, "status", body["status"])
}
