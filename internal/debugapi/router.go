package debugapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzip"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// SnapshotFunc produces the current point-in-time snapshot; supplied by
// cmd/calvinrt so this package stays independent of the scheduler type.
type SnapshotFunc func() Snapshot

// NewRouter wires the debug/metrics HTTP surface, with recovery middleware
// so a handler panic never takes the whole debug listener down.
func NewRouter(hub *Hub, snapshot SnapshotFunc, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/debug/stream", hub.ServeStream)
	r.Get("/debug/snapshot", serveSnapshot(snapshot))
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// serveSnapshot gzip-compresses the current Snapshot with
// klauspost/compress, faster than the standard library's gzip at the same
// compression ratio for these small JSON bodies.
func serveSnapshot(snapshot SnapshotFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := marshalSnapshot(snapshot())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Encoding", "gzip")
		gw, _ := gzip.NewWriterLevel(w, gzip.BestSpeed)
		defer gw.Close()
		gw.Write(data)
	}
}

// NewServer wraps the router in an *http.Server with sane timeouts.
func NewServer(addr string, hub *Hub, snapshot SnapshotFunc, log zerolog.Logger) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           NewRouter(hub, snapshot, log),
		ReadHeaderTimeout: 5 * time.Second,
	}
}
