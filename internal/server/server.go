// Package server exposes render sessions over HTTP and websocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"

	"promptkit/internal/config"
	"promptkit/internal/render"
	"promptkit/internal/server/handlers"
	"promptkit/internal/server/middleware"
	"promptkit/internal/server/websocket"
	"promptkit/internal/storage"
	"promptkit/internal/tokenizer"
	"promptkit/pkg/logger"
)

// Server is the render HTTP server.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	hub        *websocket.Hub
	cfg        *config.Config
	db         *storage.DB
	pruner     *cron.Cron
}

// New creates a server. db may be nil, which disables the journal and the
// history endpoints.
func New(cfg *config.Config, tok tokenizer.Tokenizer, db *storage.DB, version string) *Server {
	router := mux.NewRouter()
	defaults := render.OptionsFromConfig(cfg.Render)

	s := &Server{
		httpServer: &http.Server{
			Handler:     middleware.Recovery(middleware.Logging(router)),
			ReadTimeout: 30 * time.Second,
			IdleTimeout: 120 * time.Second,
		},
		router: router,
		hub:    websocket.NewHub(tok, defaults, cfg.Render.SuffixCharsPerToken),
		cfg:    cfg,
		db:     db,
	}

	var journal handlers.JournalFunc
	if s.journalEnabled() {
		journal = s.record
		s.hub.SetJournal(journal)
	}

	router.HandleFunc("/v1/health", handlers.HealthHandler(version, cfg.Tokenizer.Kind, journal != nil)).Methods("GET")
	handlers.NewRenderHandler(tok, defaults, cfg.Render.SuffixCharsPerToken, db, journal).RegisterRoutes(router)
	router.HandleFunc("/v1/ws", func(w http.ResponseWriter, r *http.Request) {
		websocket.ServeWs(s.hub, w, r)
	})

	return s
}

// Handler returns the server's root handler, middleware included.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) journalEnabled() bool {
	return s.db != nil && s.cfg.Storage.Journal
}

func (s *Server) record(res render.Result, documentPath string) {
	rec := storage.NewRenderRecord(res, storage.OriginServer, documentPath)
	if err := s.db.SaveRender(rec); err != nil {
		logger.Warn().Err(err).Str("render_id", rec.ID).Msg("failed to journal render")
	}
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Server.Addr())
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	handlers.InitStartTime()

	if err := s.startPruner(); err != nil {
		ln.Close()
		return err
	}
	go s.hub.Run()

	logger.Info().
		Str("addr", ln.Addr().String()).
		Bool("journal", s.journalEnabled()).
		Msg("Starting render server")

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown stops the prune job, closes websocket clients and drains HTTP
// requests.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info().Msg("Shutting down render server")

	if s.pruner != nil {
		<-s.pruner.Stop().Done()
	}
	s.hub.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	return nil
}
