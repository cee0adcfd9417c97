// Package metrics is the operational sidecar each process (coordinator and
// node) exposes alongside its raw-TCP data plane: a small HTTP server,
// routed with gorilla/mux the way
// yogimathius-time-series-analytics-engine/api/server.go groups its
// endpoints under a router, serving Prometheus counters and a JSON debug
// dump. It never touches the length-prefixed wire protocol.
package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counters are the Prometheus series this process exports. One Counters
// value is shared by every handler in the process that needs to record an
// operation.
type Counters struct {
	Requests       *prometheus.CounterVec
	ReplicationJob *prometheus.CounterVec
}

// NewCounters registers a fresh set of counters under a private registry
// (not the global default) so multiple processes in the same test binary
// never collide on registration.
func NewCounters(component string) (*Counters, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	c := &Counters{
		Requests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "kvstore",
			Subsystem: component,
			Name:      "requests_total",
			Help:      "Total requests handled, by operation and outcome.",
		}, []string{"operation", "outcome"}),
		ReplicationJob: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "kvstore",
			Subsystem: component,
			Name:      "replication_jobs_total",
			Help:      "Total replication jobs enqueued, by outcome.",
		}, []string{"outcome"}),
	}
	return c, reg
}

// DebugProvider supplies the live values shown at /debugz. Both Coordinator
// and Node satisfy this with their own DebugSnapshot methods.
type DebugProvider interface {
	DebugSnapshot() map[string]any
}

// Server is the metrics/debug side-listener. It is a distinct net/http
// server from the data-plane TCP listener — binding it never touches
// wire.ReadRequest/WriteResponse.
type Server struct {
	httpServer *http.Server
}

// NewServer builds the sidecar's router: /metrics (Prometheus exposition)
// and /debugz (a JSON snapshot from provider).
func NewServer(addr string, reg *prometheus.Registry, provider DebugProvider) *Server {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	router.HandleFunc("/debugz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(provider.DebugSnapshot())
	}).Methods(http.MethodGet)

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
		},
	}
}

// ListenAndServe blocks serving the sidecar until Shutdown is called, as
// http.Server.ListenAndServe; http.ErrServerClosed is swallowed.
func (s *Server) ListenAndServe() error {
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the sidecar.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
