// Trailmap - Activity Session Recording and Map API
// Copyright 2026 fufel
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fufel/trailmap

package models

import "net/url"

// MatchResponse is the JSON body served by GET /match/{id}. Field names and
// types are fixed; the dashboard depends on them.
type MatchResponse struct {
	ID         string `json:"id"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`

	Seed      uint32  `json:"seed"`
	WorldSize float64 `json:"worldSize"`
	MapScale  float64 `json:"mapScale"`
	Margin    float64 `json:"margin"`

	StartedAt int64   `json:"startedAt"`
	EndedAt   int64   `json:"endedAt"`
	EndReason *string `json:"endReason"`

	MapPNGURL   string       `json:"mapPngUrl"`
	SampleCount int64        `json:"sampleCount"`
	Samples     []Sample     `json:"samples"`
	Deaths      []DeathEvent `json:"deaths"`
}

// NewMatchResponse builds the wire representation of a session. Samples are
// supplied by the caller (read from the sample store with downsampling).
func NewMatchResponse(s *Session, samples []Sample) *MatchResponse {
	var endReason *string
	if s.EndReason != "" {
		r := string(s.EndReason)
		endReason = &r
	}
	deaths := s.Deaths
	if deaths == nil {
		deaths = []DeathEvent{}
	}
	if samples == nil {
		samples = []Sample{}
	}
	return &MatchResponse{
		ID:          s.ID,
		PlayerID:    s.PlayerID,
		PlayerName:  s.PlayerName,
		Seed:        s.Seed,
		WorldSize:   s.WorldSize,
		MapScale:    s.MapScale,
		Margin:      s.Margin,
		StartedAt:   s.StartedAt,
		EndedAt:     s.EndedAt,
		EndReason:   endReason,
		MapPNGURL:   "/match/" + url.PathEscape(s.ID) + "/map.png",
		SampleCount: s.SampleCount,
		Samples:     samples,
		Deaths:      deaths,
	}
}

// MatchSummary is one entry of the GET /matches listing.
type MatchSummary struct {
	ID          string  `json:"id"`
	PlayerID    string  `json:"playerId"`
	PlayerName  string  `json:"playerName"`
	StartedAt   int64   `json:"startedAt"`
	EndedAt     int64   `json:"endedAt"`
	EndReason   *string `json:"endReason"`
	SampleCount int64   `json:"sampleCount"`
	DeathCount  int     `json:"deathCount"`
}

// NewMatchSummary builds a listing entry from a session.
func NewMatchSummary(s *Session) MatchSummary {
	var endReason *string
	if s.EndReason != "" {
		r := string(s.EndReason)
		endReason = &r
	}
	return MatchSummary{
		ID:          s.ID,
		PlayerID:    s.PlayerID,
		PlayerName:  s.PlayerName,
		StartedAt:   s.StartedAt,
		EndedAt:     s.EndedAt,
		EndReason:   endReason,
		SampleCount: s.SampleCount,
		DeathCount:  len(s.Deaths),
	}
}

// HealthResponse is the JSON body served by GET /health.
type HealthResponse struct {
	OK      bool   `json:"ok"`
	Service string `json:"service"`
	Version string `json:"version"`
	Port    int    `json:"port"`
}

// ErrorResponse is the JSON error body for API failures.
type ErrorResponse struct {
	Error string `json:"error"`
}
