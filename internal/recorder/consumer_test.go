// Trailmap - Activity Session Recording and Map API
// Copyright 2026 fufel
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fufel/trailmap

package recorder

import (
	"context"
	"testing"
	"time"

	"github.com/fufel/trailmap/internal/game"
	"github.com/fufel/trailmap/internal/models"
)

func TestFeedConsumer_DeathEndsSession(t *testing.T) {
	h := newHarness(t, time.Hour, time.Hour)
	h.sim.Connect("p1", "tester")
	h.sim.SetPosition("p1", game.Position{X: 100, Z: 200})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer := NewFeedConsumer(h.feed, h.recorder)
	done := make(chan error, 1)
	go func() { done <- consumer.Serve(ctx) }()
	// Events published before the consumer's subscriptions are up are lost.
	time.Sleep(50 * time.Millisecond)

	id, err := h.recorder.Start("p1", "m-feed")
	if err != nil {
		t.Fatal(err)
	}

	if err := h.sim.Kill("p1"); err != nil {
		t.Fatal(err)
	}

	waitFor(t, 2*time.Second, func() bool {
		s, _ := h.registry.Snapshot(id)
		return s != nil && !s.Active()
	}, "death event did not end the session")

	s, _ := h.registry.Snapshot(id)
	if s.EndReason != models.EndReasonDeath {
		t.Errorf("reason = %q, want death", s.EndReason)
	}
	if len(s.Deaths) != 1 {
		t.Fatalf("deaths = %d, want 1", len(s.Deaths))
	}
	if s.Deaths[0].WX != 100 || s.Deaths[0].WZ != 200 {
		t.Errorf("death position = %+v", s.Deaths[0])
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not exit on cancel")
	}
}

func TestFeedConsumer_DisconnectEndsSession(t *testing.T) {
	h := newHarness(t, time.Hour, time.Hour)
	h.sim.Connect("p1", "tester")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer := NewFeedConsumer(h.feed, h.recorder)
	go func() { _ = consumer.Serve(ctx) }()
	time.Sleep(50 * time.Millisecond)

	id, err := h.recorder.Start("p1", "m-dcfeed")
	if err != nil {
		t.Fatal(err)
	}
	if err := h.sim.Disconnect("p1"); err != nil {
		t.Fatal(err)
	}

	waitFor(t, 2*time.Second, func() bool {
		s, _ := h.registry.Snapshot(id)
		return s != nil && !s.Active()
	}, "disconnect event did not end the session")

	s, _ := h.registry.Snapshot(id)
	if s.EndReason != models.EndReasonDisconnect {
		t.Errorf("reason = %q, want disconnect", s.EndReason)
	}
}

func TestFeedConsumer_DeathForIdlePlayerIgnored(t *testing.T) {
	h := newHarness(t, time.Hour, time.Hour)
	h.sim.Connect("p1", "tester")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer := NewFeedConsumer(h.feed, h.recorder)
	go func() { _ = consumer.Serve(ctx) }()
	time.Sleep(50 * time.Millisecond)

	if err := h.sim.Kill("p1"); err != nil {
		t.Fatal(err)
	}

	// No active session: nothing to end, nothing to record.
	time.Sleep(50 * time.Millisecond)
	if h.registry.ActiveCount() != 0 {
		t.Error("idle death should not create state")
	}
	if len(h.registry.Sessions()) != 0 {
		t.Error("idle death should not create a session")
	}
}
