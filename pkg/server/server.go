package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/levenlabs/go-lflag"
	"golang.org/x/sync/errgroup"

	"github.com/mtecbridge/mtecbridge/pkg/common"
	"github.com/mtecbridge/mtecbridge/pkg/log"
	"github.com/mtecbridge/mtecbridge/pkg/sink"
	"github.com/mtecbridge/mtecbridge/pkg/storage"
	"github.com/mtecbridge/mtecbridge/pkg/types"
)

// TopologySource returns the cached station/device topology.
type TopologySource interface {
	Topology() types.Topology
}

// Server is a read-only JSON API exposing the topology, the latest snapshots
// and, when storage is configured, their history.
type Server struct {
	topology TopologySource
	latest   *sink.Latest
	storage  storage.Database

	listenAddr string
	httpServer *http.Server
	serverName string
}

// Configured initializes the Server with dependencies.
// It uses lflag to register command-line flags for configuration.
func Configured(topo TopologySource, latest *sink.Latest, db storage.Database) *Server {
	srv := New(topo, latest, db)

	listenAddr := lflag.String("http-listen", common.Getenv("HTTP_LISTEN", ""), "HTTP status server listen address, empty disables the server")

	lflag.Do(func() {
		srv.listenAddr = *listenAddr
	})

	return srv
}

// New returns a Server that is not listening anywhere yet.
func New(topo TopologySource, latest *sink.Latest, db storage.Database) *Server {
	if db == nil {
		db = storage.None{}
	}
	return &Server{
		topology:   topo,
		latest:     latest,
		storage:    db,
		serverName: "mtecbridge/" + common.Version(),
	}
}

// Enabled reports whether a listen address is configured.
func (s *Server) Enabled() bool {
	return s.listenAddr != ""
}

func (s *Server) setupHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/topology", s.handleTopology)
	mux.HandleFunc("GET /api/stations/{id}", s.handleStation)
	mux.HandleFunc("GET /api/stations/{id}/history", s.handleStationHistory)
	mux.HandleFunc("GET /api/devices/{id}", s.handleDevice)
	mux.HandleFunc("GET /api/devices/{id}/history", s.handleDeviceHistory)
	mux.HandleFunc("/healthz", s.handleHealthz)

	var h http.Handler = mux
	h = withAPIHeaders(h)
	h = gziphandler.GzipHandler(h)
	return s.withServerName(h)
}

// Run serves until ctx is done and then shuts down, giving open requests
// five seconds to finish.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.listenAddr,
		Handler:           s.setupHandler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Ctx(ctx).InfoContext(ctx, "status server listening", slog.String("addr", s.listenAddr))
		err := s.httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("status server: %w", err)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Ctx(ctx).InfoContext(ctx, "stopping status server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("status server shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic(http.ErrAbortHandler)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(errorResponse{Error: msg}); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if _, err := io.WriteString(w, "ok"); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) withServerName(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", s.serverName)
		next.ServeHTTP(w, r)
	})
}
