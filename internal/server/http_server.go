package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oggyb/jobswipe/internal/realtime"
)

type healthConnection struct {
	Owner string `json:"owner"`
	Scope string `json:"scope,omitempty"`
	State string `json:"state"`
}

type healthResponse struct {
	Status      string             `json:"status"`
	Connections []healthConnection `json:"connections"`
}

// NewHTTPHandler serves /metrics from gatherer and /healthz from the
// connection snapshots.
func NewHTTPHandler(gatherer prometheus.Gatherer, snapshots func() []realtime.Snapshot) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		resp := healthResponse{Status: "ok", Connections: []healthConnection{}}
		if snapshots != nil {
			for _, s := range snapshots() {
				resp.Connections = append(resp.Connections, healthConnection{
					Owner: s.Owner, Scope: s.Scope, State: string(s.State),
				})
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
	return r
}

// StartHTTPServer serves handler on addr until ctx is done.
func StartHTTPServer(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})
	defer stop()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http serve on %s: %w", addr, err)
	}
	return nil
}
