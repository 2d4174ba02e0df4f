// Trailmap - Activity Session Recording and Map API
// Copyright 2026 fufel
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fufel/trailmap

package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/fufel/trailmap/internal/logging"
)

type countingService struct {
	starts atomic.Int64
	fail   atomic.Bool
}

func (s *countingService) Serve(ctx context.Context) error {
	s.starts.Add(1)
	if s.fail.Load() {
		s.fail.Store(false)
		return errors.New("synthetic failure")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *countingService) String() string { return "counting-service" }

func newTestTree() *Tree {
	return NewTree(logging.NewSlogLogger(), TreeConfig{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   50 * time.Millisecond,
		ShutdownTimeout:  time.Second,
	})
}

func TestTree_RunsAndStopsServices(t *testing.T) {
	tree := newTestTree()
	svc := &countingService{}
	tree.AddRecordingService(svc)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && svc.starts.Load() == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	if svc.starts.Load() == 0 {
		t.Fatal("service never started")
	}

	cancel()
	select {
	case <-errCh:
	case <-time.After(3 * time.Second):
		t.Fatal("tree did not stop")
	}
}

func TestTree_RestartsFailedService(t *testing.T) {
	tree := newTestTree()
	svc := &countingService{}
	svc.fail.Store(true)
	tree.AddAPIService(svc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tree.ServeBackground(ctx)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && svc.starts.Load() < 2 {
		time.Sleep(5 * time.Millisecond)
	}
	if got := svc.starts.Load(); got < 2 {
		t.Fatalf("starts = %d, want restart after failure", got)
	}
}

func TestTree_LayerIsolation(t *testing.T) {
	tree := newTestTree()
	flaky := &countingService{}
	flaky.fail.Store(true)
	steady := &countingService{}
	tree.AddRecordingService(flaky)
	tree.AddAPIService(steady)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tree.ServeBackground(ctx)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && flaky.starts.Load() < 2 {
		time.Sleep(5 * time.Millisecond)
	}

	// The API layer service must not restart because of a recording layer
	// failure.
	if got := steady.starts.Load(); got != 1 {
		t.Errorf("steady service starts = %d, want 1", got)
	}
}

// Compile-time check: the tree accepts anything satisfying suture.Service.
var _ suture.Service = (*countingService)(nil)
