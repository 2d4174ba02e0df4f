// Trailmap - Activity Session Recording and Map API
// Copyright 2026 fufel
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fufel/trailmap

package api

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fufel/trailmap/internal/config"
	"github.com/fufel/trailmap/internal/live"
	"github.com/fufel/trailmap/internal/models"
	"github.com/fufel/trailmap/internal/session"
)

func freePort(t *testing.T) (net.Listener, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	return ln, ln.Addr().(*net.TCPAddr).Port
}

func TestServer_ListenFallsBackWhenPortTaken(t *testing.T) {
	taken, port := freePort(t)
	defer taken.Close()

	s := NewServer(config.ServerConfig{
		Host:                 "127.0.0.1",
		Port:                 port,
		PortFallback:         true,
		PortFallbackAttempts: 20,
		Timeout:              5 * time.Second,
		ShutdownTimeout:      time.Second,
	}, http.NotFoundHandler(), nil)

	ln, bound, err := s.listen()
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	if bound == port {
		t.Error("bound the taken port")
	}
	if bound < port || bound > port+20 {
		t.Errorf("bound %d, want within %d..%d", bound, port, port+20)
	}
}

func TestServer_ListenFailsWithoutFallback(t *testing.T) {
	taken, port := freePort(t)
	defer taken.Close()

	s := NewServer(config.ServerConfig{
		Host:            "127.0.0.1",
		Port:            port,
		PortFallback:    false,
		Timeout:         5 * time.Second,
		ShutdownTimeout: time.Second,
	}, http.NotFoundHandler(), nil)

	if _, _, err := s.listen(); err == nil {
		t.Error("expected bind failure with fallback disabled")
	}
}

func TestServer_ServeAndShutdown(t *testing.T) {
	ln, port := freePort(t)
	ln.Close() // free it again; small race window is acceptable in tests

	var gotPort int
	s := NewServer(config.ServerConfig{
		Host:            "127.0.0.1",
		Port:            port,
		Timeout:         5 * time.Second,
		ShutdownTimeout: time.Second,
	}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), func(p int) { gotPort = p })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	var resp *http.Response
	var err error
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		resp, err = http.Get("http://127.0.0.1:" + strconv.Itoa(port) + "/")
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("server never came up: %v", err)
	}
	resp.Body.Close()
	if gotPort != port {
		t.Errorf("onListen got %d, want %d", gotPort, port)
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not stop")
	}
}

func TestWebSocketFeed(t *testing.T) {
	f := newFixture(t)
	f.cfg.Live.Enabled = true

	hub := live.NewHub(f.cfg.Live)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.Serve(ctx) }()

	finder := session.NewFinder(f.registry, nil)
	handler := NewHandler(f.cfg, "test", finder, f.registry, nil, f.maps, hub)
	srv := httptest.NewServer(NewRouter(handler))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	waitForClients(t, hub, 1)
	hub.DeathRecorded("m-42", models.DeathEvent{At: 7, Cell: "B2"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg live.Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != live.MessageTypeDeath {
		t.Errorf("type = %q, want death", msg.Type)
	}
}

func waitForClients(t *testing.T, hub *live.Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("client count never reached %d", want)
}
