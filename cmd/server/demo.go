// Trailmap - Activity Session Recording and Map API
// Copyright 2026 fufel
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fufel/trailmap

package main

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fufel/trailmap/internal/game"
	"github.com/fufel/trailmap/internal/logging"
	"github.com/fufel/trailmap/internal/recorder"
)

var demoPlayers = []struct {
	id   string
	name string
}{
	{"76561198000000001", "Hazel"},
	{"76561198000000002", "Moss"},
	{"76561198000000003", "Fern"},
}

// demoService drives the built-in simulation: it connects a few players,
// starts recordings, random-walks everyone, and occasionally kills or
// disconnects someone so the full lifecycle shows up in the API.
type demoService struct {
	sim      *game.Sim
	recorder *recorder.Recorder
	step     time.Duration
	rng      *rand.Rand
	seq      atomic.Int64
}

func newDemoService(sim *game.Sim, rec *recorder.Recorder, step time.Duration) *demoService {
	if step <= 0 {
		step = time.Second
	}
	return &demoService{
		sim:      sim,
		recorder: rec,
		step:     step,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Serve implements suture.Service.
func (d *demoService) Serve(ctx context.Context) error {
	for _, p := range demoPlayers {
		d.sim.Connect(p.id, p.name)
		if _, err := d.recorder.Start(p.id, d.nextSessionID(p.name)); err != nil {
			logging.Warn().Err(err).Str("player", p.id).Msg("demo: failed to start recording")
		}
	}

	ticker := time.NewTicker(d.step)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			d.sim.Step(25)
			d.maybeDisturb()
		}
	}
}

// maybeDisturb occasionally ends one player's run and starts a fresh one,
// so the listing accumulates finished sessions.
func (d *demoService) maybeDisturb() {
	if d.rng.Float64() > 0.02 {
		return
	}
	p := demoPlayers[d.rng.Intn(len(demoPlayers))]
	if d.rng.Float64() < 0.5 {
		if err := d.sim.Kill(p.id); err != nil {
			logging.Warn().Err(err).Str("player", p.id).Msg("demo: kill failed")
		}
	} else {
		if err := d.sim.Disconnect(p.id); err != nil {
			logging.Warn().Err(err).Str("player", p.id).Msg("demo: disconnect failed")
		}
	}

	// Bring the player back shortly with a new session.
	go func() {
		time.Sleep(3 * d.step)
		d.sim.Connect(p.id, p.name)
		if _, err := d.recorder.Start(p.id, d.nextSessionID(p.name)); err != nil {
			logging.Warn().Err(err).Str("player", p.id).Msg("demo: failed to restart recording")
		}
	}()
}

// nextSessionID keeps demo session ids unique even when several players
// start inside the same second.
func (d *demoService) nextSessionID(name string) string {
	return fmt.Sprintf("demo-%s-%d", strings.ToLower(name), d.seq.Add(1))
}

// String implements fmt.Stringer for supervisor logs.
func (d *demoService) String() string { return "demo-sim" }
