// Trailmap - Activity Session Recording and Map API
// Copyright 2026 fufel
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fufel/trailmap

package live

import (
	"context"
	"testing"
	"time"

	"github.com/fufel/trailmap/internal/config"
	"github.com/fufel/trailmap/internal/models"
)

func testLiveConfig() config.LiveConfig {
	return config.LiveConfig{Enabled: true, SampleRate: 1000, SendBuffer: 16}
}

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub(testLiveConfig())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.Serve(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("hub did not stop")
		}
	})
	return hub, cancel
}

func recv(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message delivered")
		return Message{}
	}
}

func TestHub_RegisterAndBroadcast(t *testing.T) {
	hub, _ := startHub(t)

	c := NewClient(hub, nil)
	hub.Register <- c

	waitCount(t, hub, 1)

	s := &models.Session{ID: "m-1", PlayerID: "p1", StartedAt: 1000}
	hub.SessionStarted(s)

	msg := recv(t, c)
	if msg.Type != MessageTypeSessionStarted {
		t.Errorf("type = %q, want session_started", msg.Type)
	}
	summary, ok := msg.Data.(models.MatchSummary)
	if !ok {
		t.Fatalf("data type = %T", msg.Data)
	}
	if summary.ID != "m-1" {
		t.Errorf("summary id = %q", summary.ID)
	}
}

func TestHub_UnregisterStopsDelivery(t *testing.T) {
	hub, _ := startHub(t)

	c := NewClient(hub, nil)
	hub.Register <- c
	waitCount(t, hub, 1)

	hub.Unregister <- c
	waitCount(t, hub, 0)

	if _, ok := <-c.send; ok {
		t.Error("send channel should be closed after unregister")
	}
}

func TestHub_SlowClientIsDropped(t *testing.T) {
	hub, _ := startHub(t)

	slow := NewClient(hub, nil)
	slow.send = make(chan Message) // unbuffered, nobody reading
	hub.Register <- slow
	waitCount(t, hub, 1)

	hub.DeathRecorded("m-1", models.DeathEvent{At: 1})
	waitCount(t, hub, 0)
}

func TestHub_SampleRateLimit(t *testing.T) {
	hub := NewHub(config.LiveConfig{Enabled: true, SampleRate: 1, SendBuffer: 16})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.Serve(ctx) }()

	c := NewClient(hub, nil)
	hub.Register <- c
	waitCount(t, hub, 1)

	// Burst of 1: the first sample passes, the immediate rest are skipped.
	for i := 0; i < 10; i++ {
		hub.SampleRecorded("m-1", models.Sample{T: float64(i)})
	}

	msg := recv(t, c)
	if msg.Type != MessageTypeSample {
		t.Fatalf("type = %q, want sample", msg.Type)
	}
	select {
	case extra := <-c.send:
		t.Errorf("rate limit leaked a second sample: %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_DeathBypassesSampleLimit(t *testing.T) {
	hub := NewHub(config.LiveConfig{Enabled: true, SampleRate: 1, SendBuffer: 16})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.Serve(ctx) }()

	c := NewClient(hub, nil)
	hub.Register <- c
	waitCount(t, hub, 1)

	for i := 0; i < 10; i++ {
		hub.SampleRecorded("m-1", models.Sample{T: float64(i)})
	}
	hub.DeathRecorded("m-1", models.DeathEvent{At: 42, Cell: "C7"})

	for {
		msg := recv(t, c)
		if msg.Type != MessageTypeDeath {
			continue
		}
		data, ok := msg.Data.(DeathData)
		if !ok {
			t.Fatalf("data type = %T", msg.Data)
		}
		if data.Death.At != 42 || data.Death.Cell != "C7" {
			t.Errorf("death payload = %+v", data)
		}
		return
	}
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	hub := NewHub(testLiveConfig())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- hub.Serve(ctx) }()

	c := NewClient(hub, nil)
	hub.Register <- c
	waitCount(t, hub, 1)

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}

	if _, ok := <-c.send; ok {
		t.Error("client channel should be closed on shutdown")
	}
}

func TestHub_DropAfterShutdownReturns(t *testing.T) {
	hub := NewHub(testLiveConfig())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- hub.Serve(ctx) }()

	c := NewClient(hub, nil)
	hub.Register <- c
	waitCount(t, hub, 1)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}

	// A read pump exiting after shutdown must not hang on Unregister.
	dropped := make(chan struct{})
	go func() {
		hub.drop(c)
		close(dropped)
	}()
	select {
	case <-dropped:
	case <-time.After(2 * time.Second):
		t.Fatal("drop blocked after hub shutdown")
	}
}

func waitCount(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("client count never reached %d (now %d)", want, hub.ClientCount())
}
