// Package server is the command bridge: a loopback HTTP/JSON surface the
// desktop shell invokes, one route per command. All domain work lives in the
// internal packages; handlers only decode, dispatch and encode.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/queryowl/queryowl/internal/config"
	"github.com/queryowl/queryowl/internal/connections"
	"github.com/queryowl/queryowl/internal/db/connection"
	"github.com/queryowl/queryowl/internal/db/metadata"
	"github.com/queryowl/queryowl/internal/db/query"
	"github.com/queryowl/queryowl/internal/export"
	"github.com/queryowl/queryowl/internal/favorites"
	"github.com/queryowl/queryowl/internal/history"
	"github.com/queryowl/queryowl/internal/logger"
)

// Server wires the core components behind the HTTP bridge.
type Server struct {
	cfg          *config.Config
	store        *connections.Store
	manager      *connection.Manager
	executor     *query.Executor
	introspector *metadata.Introspector
	exporter     *export.Exporter
	history      *history.Store
	favorites    *favorites.Manager
}

// Deps carries the constructed components into New. History may be nil when
// disabled in configuration.
type Deps struct {
	Config    *config.Config
	Store     *connections.Store
	Manager   *connection.Manager
	History   *history.Store
	Favorites *favorites.Manager
}

// New builds a server around the given stores and live-session manager. The
// executor, introspector and exporter are owned here since they are stateless
// apart from their configured bounds.
func New(d Deps) *Server {
	return &Server{
		cfg:          d.Config,
		store:        d.Store,
		manager:      d.Manager,
		executor:     query.NewExecutor(d.Config.Query.DefaultLimit, d.Config.Query.CountCeiling, time.Duration(d.Config.Query.TimeoutMS)*time.Millisecond),
		introspector: metadata.NewIntrospector(),
		exporter:     export.NewExporter(d.Config.Export.LargeThreshold, time.Duration(d.Config.Export.TimeoutMS)*time.Millisecond),
		history:      d.History,
		favorites:    d.Favorites,
	}
}

// Routes returns the bridge's router. Exposed separately from Serve so tests
// can drive handlers through httptest without binding a socket.
func (s *Server) Routes() chi.Router {
	r := chi.NewMux()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Post("/query/execute", s.handleExecute)

		r.Post("/schema/snapshot", s.handleSchemaSnapshot)
		r.Post("/schema/columns", s.handleTableColumns)
		r.Post("/schema/create-statement", s.handleCreateStatement)

		r.Post("/export/native", s.handleExportNative)
		r.Post("/export/stream", s.handleExportStream)

		r.Get("/connections", s.handleListConnections)
		r.Post("/connections", s.handleSaveConnection)
		r.Put("/connections/{id}", s.handleUpdateConnection)
		r.Delete("/connections/{id}", s.handleDeleteConnection)
		r.Post("/connections/test", s.handleTestConnection)
		r.Post("/connections/{id}/test", s.handleTestStoredConnection)
		r.Post("/connections/{id}/connect", s.handleConnect)
		r.Post("/connections/disconnect", s.handleDisconnect)
		r.Post("/connections/{id}/touch", s.handleTouchLastConnected)

		r.Post("/server/databases", s.handleListDatabases)
		r.Post("/server/databases/create", s.handleCreateDatabase)

		r.Get("/history", s.handleHistoryList)
		r.Delete("/history", s.handleHistoryClear)

		r.Get("/favorites", s.handleFavoritesList)
		r.Post("/favorites", s.handleFavoriteAdd)
		r.Put("/favorites/{id}", s.handleFavoriteUpdate)
		r.Delete("/favorites/{id}", s.handleFavoriteDelete)
		r.Post("/favorites/{id}/used", s.handleFavoriteUsed)

		r.Get("/log/path", s.handleLogPath)
	})

	return r
}

// Serve runs the bridge until ctx is cancelled, then shuts down the listener,
// the live session and the stores in that order.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg, egctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		logger.Info("bridge listening", "addr", s.cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("bridge server: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err := eg.Wait()

	s.manager.Deactivate()
	if s.history != nil {
		if cerr := s.history.Close(); cerr != nil {
			logger.Warn("closing history store", "error", cerr)
		}
	}
	return err
}

// requestLogger logs one line per request through the application logger
// instead of chi's stdlib-log middleware.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"elapsed_ms", time.Since(start).Milliseconds())
	})
}
