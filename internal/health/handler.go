// Package health serves the liveness and readiness endpoints.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Pinger is a dependency checked by /ready.
type Pinger interface {
	Name() string
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc struct {
	Label string
	Fn    func(ctx context.Context) error
}

func (p PingFunc) Name() string                   { return p.Label }
func (p PingFunc) Ping(ctx context.Context) error { return p.Fn(ctx) }

// Handler reports liveness.
func Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// NewReadyHandler reports 503 with the failing dependency names when any
// pinger fails.
func NewReadyHandler(pingers ...Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		failed := map[string]string{}
		for _, p := range pingers {
			if err := p.Ping(ctx); err != nil {
				failed[p.Name()] = err.Error()
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if len(failed) > 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "unavailable", "failed": failed})
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}
