// Trailmap - Activity Session Recording and Map API
// Copyright 2026 fufel
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fufel/trailmap

package game

import (
	"bytes"
	"context"
	"image/png"
	"testing"
	"time"
)

func TestFeed_DeathRoundTrip(t *testing.T) {
	feed := NewFeed()
	defer feed.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deaths, err := feed.SubscribeDeaths(ctx)
	if err != nil {
		t.Fatalf("SubscribeDeaths: %v", err)
	}

	want := DeathEvent{PlayerID: "76561198000000001", X: 12.5, Z: -44.25, At: 1700000000000}
	if err := feed.PublishDeath(want); err != nil {
		t.Fatalf("PublishDeath: %v", err)
	}

	select {
	case msg := <-deaths:
		got, err := DecodeDeath(msg)
		if err != nil {
			t.Fatalf("DecodeDeath: %v", err)
		}
		msg.Ack()
		if got != want {
			t.Errorf("death event = %+v, want %+v", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for death event")
	}
}

func TestFeed_DisconnectRoundTrip(t *testing.T) {
	feed := NewFeed()
	defer feed.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	disconnects, err := feed.SubscribeDisconnects(ctx)
	if err != nil {
		t.Fatalf("SubscribeDisconnects: %v", err)
	}

	want := DisconnectEvent{PlayerID: "p1", At: 42}
	if err := feed.PublishDisconnect(want); err != nil {
		t.Fatalf("PublishDisconnect: %v", err)
	}

	select {
	case msg := <-disconnects:
		got, err := DecodeDisconnect(msg)
		if err != nil {
			t.Fatalf("DecodeDisconnect: %v", err)
		}
		msg.Ack()
		if got != want {
			t.Errorf("disconnect event = %+v, want %+v", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for disconnect event")
	}
}

func TestSim_PlayerLifecycle(t *testing.T) {
	feed := NewFeed()
	defer feed.Close()
	sim := NewSim(4000, 1337, feed)

	if sim.IsConnected("p1") {
		t.Error("unknown player should not be connected")
	}
	if _, err := sim.Position("p1"); err == nil {
		t.Error("expected ErrPlayerOffline for unknown player")
	}

	sim.Connect("p1", "Fufel")
	if !sim.IsConnected("p1") {
		t.Error("connected player should be connected")
	}
	if got := sim.DisplayName("p1"); got != "Fufel" {
		t.Errorf("DisplayName = %q, want Fufel", got)
	}

	pos, err := sim.Position("p1")
	if err != nil {
		t.Fatalf("Position: %v", err)
	}
	if pos.X < -2000 || pos.X > 2000 || pos.Z < -2000 || pos.Z > 2000 {
		t.Errorf("spawn position out of world bounds: %+v", pos)
	}

	sim.Step(10)
	moved, _ := sim.Position("p1")
	if moved == pos {
		// A zero-length step is possible but vanishingly unlikely.
		sim.Step(10)
		moved, _ = sim.Position("p1")
	}
	_ = moved

	if err := sim.Disconnect("p1"); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if sim.IsConnected("p1") {
		t.Error("disconnected player should not be connected")
	}
}

func TestSim_RenderMapImageIsValidPNG(t *testing.T) {
	sim := NewSim(4000, 1, NewFeed())
	data, err := sim.RenderMapImage(0.5)
	if err != nil {
		t.Fatalf("RenderMapImage: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a decodable PNG: %v", err)
	}
	if img.Bounds().Dx() == 0 {
		t.Error("rendered image is empty")
	}
}
