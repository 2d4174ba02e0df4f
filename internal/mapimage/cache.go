// Trailmap - Activity Session Recording and Map API
// Copyright 2026 fufel
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fufel/trailmap

// Package mapimage manages rendered map background images.
//
// Images are content-addressed by (seed, worldSize, scale): repeated session
// starts with an identical world and scale reuse the same file instead of
// re-rendering. Rendering goes through a circuit breaker so a misbehaving
// renderer degrades to "image absent" instead of stalling session starts.
package mapimage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/fufel/trailmap/internal/game"
	"github.com/fufel/trailmap/internal/logging"
	"github.com/fufel/trailmap/internal/metrics"
)

// Cache stores rendered map PNGs under <dataDir>/maps.
type Cache struct {
	dir      string
	renderer game.MapRenderer
	breaker  *gobreaker.CircuitBreaker[[]byte]
}

// NewCache creates the cache directory and wraps renderer with a circuit
// breaker (5 consecutive failures open it for 30s).
func NewCache(dataDir string, renderer game.MapRenderer) (*Cache, error) {
	dir := filepath.Join(dataDir, "maps")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating map cache dir: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "map-renderer",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("map renderer circuit breaker state change")
		},
	})

	return &Cache{dir: dir, renderer: renderer, breaker: breaker}, nil
}

// Filename returns the content-addressed file name for a world/scale pair.
func Filename(seed uint32, worldSize, scale float64) string {
	return fmt.Sprintf("map_%d_%d_%.2f.png", seed, int(worldSize), scale)
}

// Ensure returns the file name of the rendered map for the given world,
// rendering and storing it on first use. Returns "" (no error) when the
// renderer cannot produce an image; sessions tolerate a missing map.
func (c *Cache) Ensure(seed uint32, worldSize, scale float64) string {
	name := Filename(seed, worldSize, scale)
	full := filepath.Join(c.dir, name)

	if _, err := os.Stat(full); err == nil {
		metrics.MapRenders.WithLabelValues("cached").Inc()
		return name
	}

	data, err := c.breaker.Execute(func() ([]byte, error) {
		return c.renderer.RenderMapImage(scale)
	})
	if err != nil {
		metrics.MapRenders.WithLabelValues("failed").Inc()
		logging.Warn().Err(err).Uint32("seed", seed).Msg("failed to render map image")
		return ""
	}
	if len(data) == 0 {
		metrics.MapRenders.WithLabelValues("failed").Inc()
		return ""
	}

	if err := os.WriteFile(full, data, 0o640); err != nil {
		metrics.MapRenders.WithLabelValues("failed").Inc()
		logging.Warn().Err(err).Str("file", name).Msg("failed to store map image")
		return ""
	}

	metrics.MapRenders.WithLabelValues("rendered").Inc()
	logging.Info().Str("file", name).Int("bytes", len(data)).Msg("rendered map image")
	return name
}

// Path resolves a stored file name to its absolute path. Returns an error
// if the file name would escape the cache directory or does not exist.
func (c *Cache) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("invalid map file name %q", name)
	}
	full := filepath.Join(c.dir, name)
	if _, err := os.Stat(full); err != nil {
		return "", err
	}
	return full, nil
}
