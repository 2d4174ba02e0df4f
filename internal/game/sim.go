// Trailmap - Activity Session Recording and Map API
// Copyright 2026 fufel
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fufel/trailmap

package game

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"sync"

	"github.com/fufel/trailmap/internal/models"
)

// Sim is an in-memory game runtime used when the service runs standalone
// (development, demos) and by tests. Players random-walk across the world;
// Kill and Disconnect drive the event feed the same way the real runtime
// would.
type Sim struct {
	mu      sync.Mutex
	size    float64
	seed    uint32
	players map[string]*simPlayer
	feed    *Feed
	rng     *rand.Rand
}

type simPlayer struct {
	name      string
	pos       Position
	connected bool
}

// NewSim creates a simulated world of the given size and seed, publishing
// events to feed.
func NewSim(size float64, seed uint32, feed *Feed) *Sim {
	return &Sim{
		size:    size,
		seed:    seed,
		players: make(map[string]*simPlayer),
		feed:    feed,
		rng:     rand.New(rand.NewSource(int64(seed))),
	}
}

// Size implements World.
func (s *Sim) Size() float64 { return s.size }

// Seed implements World.
func (s *Sim) Seed() uint32 { return s.seed }

// Connect adds a connected player at a random position.
func (s *Sim) Connect(playerID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[playerID] = &simPlayer{
		name: name,
		pos: Position{
			X: (s.rng.Float64() - 0.5) * s.size,
			Z: (s.rng.Float64() - 0.5) * s.size,
		},
		connected: true,
	}
}

// Disconnect marks the player offline and publishes a disconnect event.
func (s *Sim) Disconnect(playerID string) error {
	s.mu.Lock()
	if p, ok := s.players[playerID]; ok {
		p.connected = false
	}
	s.mu.Unlock()
	return s.feed.PublishDisconnect(DisconnectEvent{
		PlayerID: playerID,
		At:       models.NowMillis(),
	})
}

// Kill publishes a death event at the player's current position.
func (s *Sim) Kill(playerID string) error {
	s.mu.Lock()
	var pos Position
	if p, ok := s.players[playerID]; ok {
		pos = p.pos
	}
	s.mu.Unlock()
	return s.feed.PublishDeath(DeathEvent{
		PlayerID: playerID,
		X:        pos.X,
		Z:        pos.Z,
		At:       models.NowMillis(),
	})
}

// Step advances every connected player one random-walk step.
func (s *Sim) Step(stride float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.players {
		if !p.connected {
			continue
		}
		p.pos.X = clampWorld(p.pos.X+(s.rng.Float64()-0.5)*stride, s.size)
		p.pos.Z = clampWorld(p.pos.Z+(s.rng.Float64()-0.5)*stride, s.size)
	}
}

// SetPosition places a player at an exact position. Test helper.
func (s *Sim) SetPosition(playerID string, pos Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.players[playerID]; ok {
		p.pos = pos
	}
}

// Position implements PlayerSource.
func (s *Sim) Position(playerID string) (Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[playerID]
	if !ok || !p.connected {
		return Position{}, ErrPlayerOffline
	}
	return p.pos, nil
}

// IsConnected implements PlayerSource.
func (s *Sim) IsConnected(playerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[playerID]
	return ok && p.connected
}

// DisplayName implements PlayerSource.
func (s *Sim) DisplayName(playerID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.players[playerID]; ok && p.name != "" {
		return p.name
	}
	return playerID
}

// RenderMapImage implements MapRenderer with a flat terrain-colored PNG.
func (s *Sim) RenderMapImage(scale float64) ([]byte, error) {
	const edge = 256
	img := image.NewRGBA(image.Rect(0, 0, edge, edge))
	terrain := color.RGBA{R: 0x6b, G: 0x8e, B: 0x4e, A: 0xff}
	for y := 0; y < edge; y++ {
		for x := 0; x < edge; x++ {
			img.Set(x, y, terrain)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func clampWorld(v, size float64) float64 {
	if v < -size/2 {
		return -size / 2
	}
	if v > size/2 {
		return size / 2
	}
	return v
}
