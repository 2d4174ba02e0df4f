// Trailmap - Activity Session Recording and Map API
// Copyright 2026 fufel
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fufel/trailmap

package session

import (
	"strings"

	"github.com/fufel/trailmap/internal/models"
)

// Normalize strips a leading "m-"/"M-" match prefix from an id.
func Normalize(id string) string {
	id = strings.TrimSpace(id)
	if len(id) >= 2 && strings.EqualFold(id[:2], "m-") {
		return id[2:]
	}
	return id
}

// Candidates expands a requested id into the lookup forms accepted by the
// API: the raw id, the id without a leading "m-" prefix, and, when the raw
// id lacks that prefix, the id with "m-" prepended. This tolerates both a
// session's own generated id and an externally assigned match id scheme.
func Candidates(id string) []string {
	id = strings.TrimSpace(strings.Trim(id, "/"))
	if id == "" {
		return nil
	}

	out := make([]string, 0, 2)
	out = append(out, id)

	if normalized := Normalize(id); !strings.EqualFold(normalized, id) {
		out = append(out, normalized)
	}
	if len(id) < 2 || !strings.EqualFold(id[:2], "m-") {
		out = append(out, "m-"+id)
	}
	return out
}

// DurableStore is the read side of session persistence. A load miss and an
// unreadable record both surface as ok=false.
type DurableStore interface {
	Load(id string) (*models.Session, bool)
}

// Finder resolves a session id against the registry first, then the durable
// store: the registry is a hot cache over persistence. Each tier is tried
// with every candidate form of the id before falling through to the next.
type Finder struct {
	registry *Registry
	store    DurableStore
}

// NewFinder creates a finder over the registry and an optional durable
// store (nil disables the durable tier).
func NewFinder(registry *Registry, store DurableStore) *Finder {
	return &Finder{registry: registry, store: store}
}

// Find returns a copy of the session matching any accepted form of id.
func (f *Finder) Find(id string) (*models.Session, bool) {
	candidates := Candidates(id)
	for _, cand := range candidates {
		if s, ok := f.registry.Snapshot(cand); ok {
			return s, true
		}
	}
	if f.store != nil {
		for _, cand := range candidates {
			if s, ok := f.store.Load(cand); ok {
				return s, true
			}
		}
	}
	return nil, false
}
