// Trailmap - Activity Session Recording and Map API
// Copyright 2026 fufel
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fufel/trailmap

// Package main is the entry point for the Trailmap server.
//
// Trailmap records player activity sessions from a game world (position
// trails and death events), persists them, and serves them over a small
// read-only HTTP API for a map dashboard.
//
// The server initializes in this order:
//
//  1. Configuration: Koanf v2 over defaults, config.yaml, and environment
//  2. Logging: zerolog, configured from the logging section
//  3. Durable stores: BadgerDB session store, sample record files, map cache
//  4. Event feed: in-process pub/sub for death/disconnect events
//  5. Recorder: session state machine plus the feed consumer
//  6. Supervisor tree: recording layer and API layer under suture
//
// Without a real game runtime attached, --demo runs a built-in simulation:
// a few players random-walk across a generated world, sessions start and
// end, and the API serves live data. This is the development and screenshot
// mode.
//
// Shutdown on SIGINT/SIGTERM is graceful: active sessions are stopped,
// flushed, and persisted; in-flight HTTP requests get the configured
// drain window.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/fufel/trailmap/internal/api"
	"github.com/fufel/trailmap/internal/config"
	"github.com/fufel/trailmap/internal/game"
	"github.com/fufel/trailmap/internal/live"
	"github.com/fufel/trailmap/internal/logging"
	"github.com/fufel/trailmap/internal/mapimage"
	"github.com/fufel/trailmap/internal/models"
	"github.com/fufel/trailmap/internal/persist"
	"github.com/fufel/trailmap/internal/recorder"
	"github.com/fufel/trailmap/internal/session"
	"github.com/fufel/trailmap/internal/supervisor"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	demo := flag.Bool("demo", false, "run the built-in world simulation")
	configPath := flag.String("config", "", "path to config file (overrides search paths)")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("version", version).
		Str("data_dir", cfg.Storage.DataDir).
		Int("port", cfg.Server.Port).
		Bool("demo", *demo).
		Msg("Starting Trailmap")

	store, err := persist.Open(cfg.Storage.SessionStorePath, cfg.Storage.SyncWrites)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open session store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing session store")
		}
	}()

	feed := game.NewFeed()
	defer func() {
		if err := feed.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event feed")
		}
	}()

	// The simulation stands in for the game runtime; a real embedding
	// provides its own World, PlayerSource, and MapRenderer.
	sim := game.NewSim(4000, 1337, feed)

	maps, err := mapimage.NewCache(cfg.Storage.DataDir, sim)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize map image cache")
	}

	registry := session.NewRegistry()
	finder := session.NewFinder(registry, store)

	var hub *live.Hub
	var notify recorder.Notifier
	if cfg.Live.Enabled {
		hub = live.NewHub(cfg.Live)
		notify = hub
	}

	rec := recorder.New(cfg.Recording, cfg.Storage.DataDir, registry, sim, sim, maps, store, notify)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	rec.SetBaseContext(ctx)

	handler := api.NewHandler(cfg, version, finder, registry, store, maps, hub)
	router := api.NewRouter(handler)
	server := api.NewServer(cfg.Server, router, handler.SetPort)

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddRecordingService(recorder.NewFeedConsumer(feed, rec))
	if hub != nil {
		tree.AddRecordingService(hub)
	}
	if *demo {
		tree.AddRecordingService(newDemoService(sim, rec, cfg.Recording.SampleInterval))
	}
	tree.AddAPIService(server)

	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree exited")
		stopActiveSessions(rec, registry)
		os.Exit(1)
	}

	stopActiveSessions(rec, registry)
	logging.Info().Msg("Trailmap stopped")
}

// stopActiveSessions closes out any sessions still recording so they are
// flushed and persisted before exit.
func stopActiveSessions(rec *recorder.Recorder, registry *session.Registry) {
	for _, s := range registry.Sessions() {
		if s.Active() {
			rec.Stop(s.PlayerID, models.EndReasonManual)
		}
	}
}
