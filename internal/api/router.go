// Trailmap - Activity Session Recording and Map API
// Copyright 2026 fufel
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fufel/trailmap

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter assembles the route table and middleware stack.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID())
	r.Use(chimiddleware.RealIP)
	r.Use(Recoverer())
	if h.cfg.Server.LogRequests {
		r.Use(RequestLogger())
	}
	r.Use(CORSHeaders(h.cfg.API.CORSOrigins))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.cfg.API.CORSOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         86400,
	}))
	if !h.cfg.API.RateLimitDisabled {
		r.Use(httprate.Limit(
			h.cfg.API.RateLimitRequests,
			h.cfg.API.RateLimitWindow,
			httprate.WithKeyFuncs(httprate.KeyByIP),
		))
	}
	r.Use(Metrics())

	r.Get("/health", h.Health)
	r.Get("/match/{id}", h.Match)
	r.Get("/match/{id}/map.png", h.MatchMap)
	r.Get("/matches", h.Matches)
	r.Get("/ws", h.WebSocket)
	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.NotFound)

	return r
}
