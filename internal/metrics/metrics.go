// Trailmap - Activity Session Recording and Map API
// Copyright 2026 fufel
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fufel/trailmap

// Package metrics provides Prometheus instrumentation for the recording
// pipeline and the HTTP API. All collectors are registered with the default
// registry and served at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Recording metrics
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trailmap_sessions_active",
			Help: "Current number of actively recording sessions",
		},
	)

	SessionsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trailmap_sessions_started_total",
			Help: "Total number of recording sessions started",
		},
	)

	SessionsEnded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trailmap_sessions_ended_total",
			Help: "Total number of recording sessions ended",
		},
		[]string{"reason"}, // "manual", "death", "disconnect"
	)

	SamplesRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trailmap_samples_recorded_total",
			Help: "Total number of position samples appended to session buffers",
		},
	)

	SampleFlushes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trailmap_sample_flushes_total",
			Help: "Total number of sample buffer flushes to disk",
		},
	)

	SampleFlushErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trailmap_sample_flush_errors_total",
			Help: "Total number of failed sample buffer flushes",
		},
	)

	SamplesFlushed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trailmap_samples_flushed_total",
			Help: "Total number of samples written to record files",
		},
	)

	DeathsRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trailmap_deaths_recorded_total",
			Help: "Total number of death events recorded",
		},
	)

	// Map image metrics
	MapRenders = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trailmap_map_renders_total",
			Help: "Total number of map image renders by outcome",
		},
		[]string{"outcome"}, // "rendered", "cached", "failed"
	)

	// Session persistence metrics
	PersistWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trailmap_persist_writes_total",
			Help: "Total number of session metadata writes to the durable store",
		},
	)

	PersistErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trailmap_persist_errors_total",
			Help: "Total number of failed session metadata writes",
		},
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trailmap_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trailmap_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	// Live feed metrics
	LiveClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trailmap_live_clients",
			Help: "Current number of connected live-feed websocket clients",
		},
	)

	LiveMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trailmap_live_messages_sent_total",
			Help: "Total number of messages broadcast to live-feed clients",
		},
	)

	LiveMessagesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trailmap_live_messages_dropped_total",
			Help: "Total number of live-feed messages dropped due to slow clients or throttling",
		},
	)
)
