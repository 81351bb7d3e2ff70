package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/1ureka/duet/internal/signaling"
	"github.com/1ureka/duet/internal/util"
)

// Health is the /healthz response body.
type Health struct {
	Session   string `json:"session"`
	State     string `json:"state"`
	Connected bool   `json:"connected"`
}

// Handler returns the router serving /metrics and /healthz. session labels
// the health report.
func (m *Metrics) Handler(session string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		st := m.State()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Health{
			Session:   session,
			State:     st.String(),
			Connected: st == signaling.StateConnected,
		})
	})
	return r
}

// Serve listens on addr and serves Handler until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr, session string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return m.ServeListener(ctx, ln, session)
}

// ServeListener serves Handler on ln until ctx is done.
func (m *Metrics) ServeListener(ctx context.Context, ln net.Listener, session string) error {
	srv := &http.Server{Handler: m.Handler(session), ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	util.LogInfo("metrics at http://%s/metrics", ln.Addr())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
