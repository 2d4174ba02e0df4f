// Trailmap - Activity Session Recording and Map API
// Copyright 2026 fufel
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fufel/trailmap

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/fufel/trailmap/internal/logging"
	"github.com/fufel/trailmap/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, models.ErrorResponse{Error: code})
}

func writePlain(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
