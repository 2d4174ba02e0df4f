// Trailmap - Activity Session Recording and Map API
// Copyright 2026 fufel
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fufel/trailmap

// Package game defines the boundary to the game-server runtime.
//
// The recording pipeline never talks to the game directly; it reads world
// and player state through the interfaces here and receives death and
// disconnect notifications over the event feed. The embedding process (or
// the built-in simulator) provides the implementations.
package game

import "errors"

// ErrPlayerOffline is returned by PlayerSource queries for players that are
// not currently connected.
var ErrPlayerOffline = errors.New("player is not connected")

// Position is a world-space position. Y (height) is not tracked; the map is
// a top-down projection of the X/Z plane.
type Position struct {
	X float64
	Z float64
}

// World exposes immutable properties of the loaded game world.
type World interface {
	// Size returns the world edge length in world units.
	Size() float64

	// Seed returns the world generation seed.
	Seed() uint32
}

// PlayerSource exposes live player state queries.
type PlayerSource interface {
	// Position returns the player's current world position.
	// Returns ErrPlayerOffline if the player is not connected.
	Position(playerID string) (Position, error)

	// IsConnected reports whether the player is currently connected.
	IsConnected(playerID string) bool

	// DisplayName returns the player's display name, or the id itself when
	// unknown.
	DisplayName(playerID string) string
}

// MapRenderer renders the world background image at the given scale.
// Returns the PNG bytes, or an error when rendering is unavailable.
type MapRenderer interface {
	RenderMapImage(scale float64) ([]byte, error)
}
