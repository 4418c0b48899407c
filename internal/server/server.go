// Package server exposes the operational HTTP surface: health, metrics,
// and a read-only view of the timeline.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/curio-sh/curio/internal/config"
	"github.com/curio-sh/curio/internal/database"
	"github.com/curio-sh/curio/internal/metrics"
	"github.com/curio-sh/curio/internal/timeline"
)

const defaultTimelinePageSize = 50

// Server is the HTTP server for the operational endpoints.
type Server struct {
	http     *http.Server
	db       *database.DB
	timeline *timeline.Service
	done     chan struct{}
}

// New creates the server. It does not start listening.
func New(cfg *config.ServerConfig, db *database.DB, tl *timeline.Service) *Server {
	s := &Server{
		db:       db,
		timeline: tl,
		done:     make(chan struct{}),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/api/timeline", s.handleTimeline)

	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// Start begins serving in the background. Listen errors other than
// graceful shutdown are fatal.
func (s *Server) Start() {
	go s.collectDBStats()

	go func() {
		log.Info().Str("addr", s.http.Addr).Msg("HTTP server listening")
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	close(s.done)
	return s.http.Shutdown(ctx)
}

func (s *Server) collectDBStats() {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			metrics.UpdateDBStats(s.db.Stats())
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 0)
	pageSize := queryInt(r, "page_size", defaultTimelinePageSize)
	if page < 0 || pageSize < 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "page must be >= 0 and page_size >= 1",
		})
		return
	}

	messages, err := s.timeline.Recent(r.Context(), page, pageSize)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load timeline")
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load timeline",
		})
		return
	}

	if messages == nil {
		messages = []*timeline.Message{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"page":      page,
		"page_size": pageSize,
		"messages":  messages,
	})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
