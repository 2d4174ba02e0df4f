// Trailmap - Activity Session Recording and Map API
// Copyright 2026 fufel
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fufel/trailmap

// Package session holds process-wide session state: which player is
// recording, and which sessions are known in memory.
//
// The registry is the one shared mutable structure touched by both the
// recording side and the HTTP query side. Every mutation and every compound
// read goes through its lock; no operation holds the lock longer than a map
// access and a copy. Sample buffers are NOT guarded here: each active
// handle carries its own lock so unrelated sessions never serialize their
// sampling through the registry.
package session

import (
	"context"
	"strings"
	"sync"

	"github.com/fufel/trailmap/internal/models"
	"github.com/fufel/trailmap/internal/samplestore"
)

// Active tracks one actively recording session: the session object, its
// sample buffer handle, and the cancel function tearing down the session's
// ticker goroutine. Not persisted.
type Active struct {
	ID      string
	Session *models.Session
	Handle  *samplestore.Handle
	Cancel  context.CancelFunc
}

// Registry maps player id -> active recording and session id -> session.
// Session id lookups are case-insensitive.
type Registry struct {
	mu             sync.RWMutex
	activeByPlayer map[string]*Active
	sessionsByID   map[string]*models.Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		activeByPlayer: make(map[string]*Active),
		sessionsByID:   make(map[string]*models.Session),
	}
}

func sessionKey(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// GetActive returns the active recording for a player, if any.
func (r *Registry) GetActive(playerID string) (*Active, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.activeByPlayer[playerID]
	return a, ok
}

// SetActive installs the active recording for a player, replacing any prior
// entry. The caller must have fully stopped the prior recording first.
func (r *Registry) SetActive(playerID string, a *Active) {
	r.mu.Lock()
	r.activeByPlayer[playerID] = a
	r.mu.Unlock()
}

// ActiveCount returns the number of actively recording sessions.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.activeByPlayer)
}

// PutSession registers a session under its id. A second start with the same
// caller-supplied id overwrites the earlier session (last write wins).
func (r *Registry) PutSession(s *models.Session) {
	r.mu.Lock()
	r.sessionsByID[sessionKey(s.ID)] = s
	r.mu.Unlock()
}

// Snapshot returns a deep copy of the session with the given id, so callers
// can serialize it without holding the registry lock. Case-insensitive.
func (r *Registry) Snapshot(id string) (*models.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessionsByID[sessionKey(id)]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// IncrementSamples bumps the session's authoritative sample counter and
// returns the new value. Returns 0 if the session is unknown.
func (r *Registry) IncrementSamples(id string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessionsByID[sessionKey(id)]
	if !ok {
		return 0
	}
	s.SampleCount++
	return s.SampleCount
}

// AddDeath appends a death event to the session. Insertion order is
// chronological.
func (r *Registry) AddDeath(id string, death models.DeathEvent) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessionsByID[sessionKey(id)]
	if !ok {
		return false
	}
	s.Deaths = append(s.Deaths, death)
	return true
}

// EndActive removes the player's active recording and stamps its session's
// ended-at and end-reason, atomically under the registry lock. Ended-at is
// set exactly once: a session already ended is left untouched. Returns the
// removed entry, or ok=false when the player has no active recording.
func (r *Registry) EndActive(playerID string, reason models.EndReason, at int64) (*Active, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.activeByPlayer[playerID]
	if !ok {
		return nil, false
	}
	r.endLocked(playerID, a, reason, at)
	return a, true
}

// EndActiveMatching is EndActive restricted to one session: the active entry
// is removed only while its id still matches sessionID. Lets a session's own
// teardown path no-op once the player has moved on to a newer session.
func (r *Registry) EndActiveMatching(playerID, sessionID string, reason models.EndReason, at int64) (*Active, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.activeByPlayer[playerID]
	if !ok || sessionKey(a.ID) != sessionKey(sessionID) {
		return nil, false
	}
	r.endLocked(playerID, a, reason, at)
	return a, true
}

func (r *Registry) endLocked(playerID string, a *Active, reason models.EndReason, at int64) {
	delete(r.activeByPlayer, playerID)
	if s, ok := r.sessionsByID[sessionKey(a.ID)]; ok && s.EndedAt == 0 {
		s.EndedAt = at
		s.EndReason = reason
	}
}

// Sessions returns deep copies of every in-memory session.
func (r *Registry) Sessions() []*models.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Session, 0, len(r.sessionsByID))
	for _, s := range r.sessionsByID {
		out = append(out, s.Clone())
	}
	return out
}
