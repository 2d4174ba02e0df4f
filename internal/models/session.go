// Trailmap - Activity Session Recording and Map API
// Copyright 2026 fufel
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fufel/trailmap

// Package models defines the session data model and API wire types.
package models

import "time"

// EndReason identifies why a session stopped recording.
type EndReason string

const (
	// EndReasonManual means the player (or an operator) stopped the session.
	EndReasonManual EndReason = "manual"

	// EndReasonDeath means the session stopped because the player died.
	EndReasonDeath EndReason = "death"

	// EndReasonDisconnect means the session stopped because the player left.
	EndReasonDisconnect EndReason = "disconnect"
)

// Session is one recorded interval of a player's activity, from start to
// stop. Raw samples live in the sample store's record file, referenced by
// SamplesFile; only the count is kept here.
//
// World size, seed, scale and margin are captured at start and fixed for the
// session's lifetime so the coordinate transform stays consistent between
// recorded samples and anything served later.
//
// Mutation rules: ID is immutable after creation; SampleCount only
// increases; EndedAt and EndReason are set exactly once, atomically with the
// session's removal from the active registry. All mutation goes through the
// session registry's lock.
type Session struct {
	ID         string `json:"id"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`

	Seed      uint32  `json:"seed"`
	WorldSize float64 `json:"worldSize"`
	MapScale  float64 `json:"mapScale"`
	Margin    float64 `json:"margin"`

	// StartedAt and EndedAt are millisecond epoch timestamps. EndedAt is
	// zero while the session is active.
	StartedAt int64     `json:"startedAt"`
	EndedAt   int64     `json:"endedAt"`
	EndReason EndReason `json:"endReason,omitempty"`

	// MapPNGFile names the rendered background image for this session's
	// world and scale, content-addressed by (seed, worldSize, mapScale).
	MapPNGFile string `json:"mapPngFile,omitempty"`

	// SamplesFile is the relative path of the append-only sample record
	// file, under the service data directory.
	SamplesFile string `json:"samplesFile,omitempty"`

	// SampleCount is authoritative even after samples are flushed to disk
	// and dropped from memory.
	SampleCount int64 `json:"sampleCount"`

	// Deaths are append-only; insertion order is chronological.
	Deaths []DeathEvent `json:"deaths"`
}

// Active reports whether the session is still recording.
func (s *Session) Active() bool {
	return s.EndedAt == 0
}

// Clone returns a deep copy of the session. The registry hands out clones so
// HTTP readers never observe a session mid-mutation.
func (s *Session) Clone() *Session {
	cp := *s
	if s.Deaths != nil {
		cp.Deaths = make([]DeathEvent, len(s.Deaths))
		copy(cp.Deaths, s.Deaths)
	}
	return &cp
}

// Sample is one timestamped position record captured during an active
// session: relative time in seconds since session start, world x/z, and the
// normalized map coordinates derived from them. Samples are write-once,
// append-only and ordered by time.
type Sample struct {
	T  float64 `json:"t"`
	WX float64 `json:"wx"`
	WZ float64 `json:"wz"`
	U  float64 `json:"u"`
	V  float64 `json:"v"`
}

// DeathEvent records a player death during a session.
type DeathEvent struct {
	// At is a millisecond epoch timestamp.
	At int64   `json:"at"`
	WX float64 `json:"wx"`
	WZ float64 `json:"wz"`
	U  float64 `json:"u"`
	V  float64 `json:"v"`

	// Cell is the map grid label ("G7") of the death position.
	Cell string `json:"cell,omitempty"`
}

// NowMillis returns the current time as a millisecond epoch timestamp.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
