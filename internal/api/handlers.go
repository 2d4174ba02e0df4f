// Trailmap - Activity Session Recording and Map API
// Copyright 2026 fufel
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fufel/trailmap

// Package api serves the read-only query surface over recorded sessions:
// health, match lookup, map images, the match listing, and the live
// websocket feed. Handlers are stateless; all session state lives in the
// registry and the durable store.
package api

import (
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/fufel/trailmap/internal/config"
	"github.com/fufel/trailmap/internal/live"
	"github.com/fufel/trailmap/internal/logging"
	"github.com/fufel/trailmap/internal/mapimage"
	"github.com/fufel/trailmap/internal/models"
	"github.com/fufel/trailmap/internal/samplestore"
	"github.com/fufel/trailmap/internal/session"
)

// ServiceName identifies the service in the health response.
const ServiceName = "trailmap"

// Lister is the listing side of session persistence.
type Lister interface {
	List() ([]*models.Session, error)
}

// Handler holds the query surface's collaborators.
type Handler struct {
	cfg      *config.Config
	version  string
	finder   *session.Finder
	registry *session.Registry
	lister   Lister
	maps     *mapimage.Cache
	hub      *live.Hub

	// port is the actually bound listen port, set once the listener is up
	// (it can differ from the configured port after fallback).
	port atomic.Int64
}

// NewHandler creates the query handler. lister and hub may be nil.
func NewHandler(cfg *config.Config, version string, finder *session.Finder, registry *session.Registry, lister Lister, maps *mapimage.Cache, hub *live.Hub) *Handler {
	h := &Handler{
		cfg:      cfg,
		version:  version,
		finder:   finder,
		registry: registry,
		lister:   lister,
		maps:     maps,
		hub:      hub,
	}
	h.port.Store(int64(cfg.Server.Port))
	return h
}

// SetPort records the bound listen port for the health response.
func (h *Handler) SetPort(port int) {
	h.port.Store(int64(port))
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthResponse{
		OK:      true,
		Service: ServiceName,
		Version: h.version,
		Port:    int(h.port.Load()),
	})
}

// Match handles GET /match/{id}.
func (h *Handler) Match(w http.ResponseWriter, r *http.Request) {
	s, ok := h.finder.Find(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}

	path := samplestore.FullPath(h.cfg.Storage.DataDir, s.SamplesFile)
	samples, err := samplestore.ReadAll(path, h.cfg.Recording.MaxSamplesToServe)
	if err != nil {
		// Serve the metadata anyway; a trail that cannot be read is an
		// empty trail, not a failed request.
		logging.Warn().Err(err).Str("session", s.ID).Msg("failed to read sample records")
		samples = nil
	}

	writeJSON(w, http.StatusOK, models.NewMatchResponse(s, samples))
}

// MatchMap handles GET /match/{id}/map.png.
func (h *Handler) MatchMap(w http.ResponseWriter, r *http.Request) {
	s, ok := h.finder.Find(chi.URLParam(r, "id"))
	if !ok {
		writePlain(w, http.StatusNotFound, "Map not found")
		return
	}

	path, err := h.maps.Path(s.MapPNGFile)
	if err != nil {
		writePlain(w, http.StatusNotFound, "Map not found")
		return
	}

	f, err := os.Open(path)
	if err != nil {
		writePlain(w, http.StatusNotFound, "Map not found")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		logging.Debug().Err(err).Str("session", s.ID).Msg("map image stream aborted")
	}
}

// Matches handles GET /matches: every known session, in-memory state
// shadowing the durable copy, newest started first.
func (h *Handler) Matches(w http.ResponseWriter, r *http.Request) {
	byID := make(map[string]*models.Session)
	if h.lister != nil {
		stored, err := h.lister.List()
		if err != nil {
			logging.Warn().Err(err).Msg("failed to list stored sessions")
		}
		for _, s := range stored {
			byID[strings.ToLower(s.ID)] = s
		}
	}
	for _, s := range h.registry.Sessions() {
		byID[strings.ToLower(s.ID)] = s
	}

	summaries := make([]models.MatchSummary, 0, len(byID))
	for _, s := range byID {
		summaries = append(summaries, models.NewMatchSummary(s))
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].StartedAt != summaries[j].StartedAt {
			return summaries[i].StartedAt > summaries[j].StartedAt
		}
		return summaries[i].ID < summaries[j].ID
	})

	writeJSON(w, http.StatusOK, summaries)
}

// WebSocket handles GET /ws, upgrading to the live feed.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil || !h.cfg.Live.Enabled {
		writePlain(w, http.StatusNotFound, "Not found")
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      h.checkWebSocketOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := live.NewClient(h.hub, conn)
	h.hub.Register <- client
	client.Start()
}

// checkWebSocketOrigin allows browser connections from the configured CORS
// origins. Requests without an Origin header (scripts, native clients) are
// allowed: the API is read-only and unauthenticated.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.API.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logging.Warn().Str("origin", origin).Msg("websocket connection rejected by origin check")
	return false
}

// NotFound is the fallback for unmatched paths.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writePlain(w, http.StatusNotFound, "Not found")
}
