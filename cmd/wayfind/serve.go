package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/wayfind-dev/wayfind/internal/config"
	"github.com/wayfind-dev/wayfind/pkg/history"
	"github.com/wayfind-dev/wayfind/pkg/matcher"
	"github.com/wayfind-dev/wayfind/pkg/router"
	"github.com/wayfind-dev/wayfind/pkg/telemetry"
)

func serveCmd() *cobra.Command {
	var (
		dir  string
		addr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve debug and metrics endpoints",
		Long: `Serve the route table over HTTP for debugging:

  GET /routes            registered route table
  GET /match?path=...    resolve a path
  GET /hotspots?n=...    most frequently matched paths
  GET /cache             match cache counters
  GET /metrics           Prometheus metrics
  GET /session?start=... websocket navigation session`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(dir)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Address()
			}

			logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
			metrics := telemetry.NewMetrics()
			tracer := telemetry.NewTracer()

			srv := &debugServer{
				cfg:     cfg,
				logger:  logger,
				metrics: metrics,
				tracer:  tracer,
			}
			adapter, err := history.NewMemory("/")
			if err != nil {
				return err
			}
			r, err := srv.newRouter(adapter)
			if err != nil {
				return err
			}
			srv.router = r

			logger.Info("debug server listening", "addr", addr)
			return http.ListenAndServe(addr, srv.routes())
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Project directory (default: nearest wayfind.json)")
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default: from wayfind.json)")

	return cmd
}

type debugServer struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
	router  *router.Router

	upgrader websocket.Upgrader
}

// newRouter builds a router over adapter with the config's routes,
// metrics, and tracing attached.
func (s *debugServer) newRouter(adapter history.Adapter) (*router.Router, error) {
	opts := append(s.cfg.RouterOptions(),
		router.WithLogger(s.logger),
		router.WithMetrics(s.metrics),
		router.WithTracer(s.tracer),
	)
	r := router.New(adapter, opts...)
	if err := s.cfg.Register(r); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func (s *debugServer) routes() http.Handler {
	mux := chi.NewRouter()
	mux.Use(chimw.RequestID)
	mux.Use(chimw.Recoverer)

	mux.Get("/healthz", s.handleHealth)
	mux.Get("/routes", s.handleRoutes)
	mux.Get("/match", s.handleMatch)
	mux.Get("/hotspots", s.handleHotspots)
	mux.Get("/cache", s.handleCache)
	mux.Get("/session", s.handleSession)
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func (s *debugServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *debugServer) handleRoutes(w http.ResponseWriter, r *http.Request) {
	type row struct {
		ID     uint64 `json:"id"`
		Path   string `json:"path"`
		Name   string `json:"name,omitempty"`
		Parent uint64 `json:"parent,omitempty"`
	}
	records := s.router.Routes()
	rows := make([]row, len(records))
	for i, rec := range records {
		rows[i] = row{
			ID:     uint64(rec.ID),
			Path:   rec.Path,
			Name:   rec.Name,
			Parent: uint64(rec.Parent),
		}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *debugServer) handleMatch(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing path parameter"})
		return
	}

	loc, err := s.router.Resolve(path)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, matcher.ErrNoMatch) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	chain := make([]string, len(loc.Chain))
	for i, rec := range loc.Chain {
		chain[i] = rec.Path
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"path":     loc.Path,
		"fullPath": loc.FullPath,
		"route":    loc.Record.Path,
		"name":     loc.Record.Name,
		"params":   loc.Params,
		"chain":    chain,
	})
}

func (s *debugServer) handleHotspots(w http.ResponseWriter, r *http.Request) {
	n := 10
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "n must be a positive integer"})
			return
		}
		n = parsed
	}
	writeJSON(w, http.StatusOK, s.router.Hotspots(n))
}

func (s *debugServer) handleCache(w http.ResponseWriter, r *http.Request) {
	stats := s.router.CacheStats()
	writeJSON(w, http.StatusOK, map[string]any{
		"hits":      stats.Hits,
		"misses":    stats.Misses,
		"evictions": stats.Evictions,
		"entries":   stats.Len,
		"capacity":  stats.Capacity,
		"hitRate":   stats.HitRate(),
	})
}

// handleSession runs a navigation session over a websocket: the client
// is treated as a thin host whose history the session router drives.
// Back/forward moves reported by the client run the guard pipeline like
// any other pop.
func (s *debugServer) handleSession(w http.ResponseWriter, r *http.Request) {
	start := r.URL.Query().Get("start")
	if start == "" {
		start = "/"
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	adapter, err := history.NewSocket(conn, start, s.logger)
	if err != nil {
		s.logger.Warn("session rejected", "start", start, "error", err)
		return
	}
	defer adapter.Close()

	sessRouter, err := s.newRouter(adapter)
	if err != nil {
		s.logger.Error("session router failed", "error", err)
		return
	}
	defer sessRouter.Close()

	sessRouter.AfterEach(func(to, from *matcher.ResolvedLocation) {
		s.logger.Info("session navigated",
			"to", to.FullPath,
			"route", to.Record.Path)
	})

	// Hold the session until the client goes away.
	<-adapter.Done()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
