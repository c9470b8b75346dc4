package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AdminServer exposes /healthz and /metrics for external monitoring,
// separate from the data-plane sockets.
type AdminServer struct {
	srv     *http.Server
	healthy atomic.Bool
}

// NewAdminServer builds an admin HTTP server bound to addr, mirroring
// metrics through registry.
func NewAdminServer(addr string, registry *prometheus.Registry) *AdminServer {
	a := &AdminServer{}
	a.healthy.Store(true)

	router := mux.NewRouter()
	router.HandleFunc("/healthz", a.handleHealthz).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	a.srv = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return a
}

func (a *AdminServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	healthy := a.healthy.Load()
	w.Header().Set("Content-Type", "application/json")
	if !healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(map[string]bool{"healthy": healthy})
}

// SetHealthy flips the /healthz status, used to report drain mode.
func (a *AdminServer) SetHealthy(healthy bool) {
	a.healthy.Store(healthy)
}

// ListenAndServe runs the admin server until ctx is cancelled.
func (a *AdminServer) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := a.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
