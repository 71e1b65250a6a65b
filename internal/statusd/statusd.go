// Package statusd exposes a small read-only HTTP surface for long batch
// runs: liveness, the last flushed progress snapshot, and Prometheus
// metrics. It reads progress from the checkpoint file rather than sharing
// state with the fetch loop, so its staleness is bounded by the flush
// interval.
package statusd

import (
	"context"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ymzhao/logleaks/internal/telemetry"
)

// NewServer builds the status http.Server. checkpointPath is the fetch
// loop's snapshot file.
func NewServer(ctx context.Context, addr, checkpointPath string) *http.Server {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/progress", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		data, err := os.ReadFile(checkpointPath)
		if err != nil {
			// No snapshot yet: either the run just started or it completed.
			w.Write([]byte("{}"))

			return
		}

		w.Write(data)
	})

	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	return &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  5 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
}
