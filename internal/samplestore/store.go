// Trailmap - Activity Session Recording and Map API
// Copyright 2026 fufel
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fufel/trailmap

// Package samplestore buffers position samples for active sessions and
// persists them to append-only record files.
//
// The record format is line-oriented and human-diffable: a header line
// "t,wx,wz,u,v" followed by one CSV record per sample. Time and world
// coordinates are written with 3 decimal places, normalized coordinates
// with 6, so output is deterministic and file size is bounded. Records are
// never rewritten; a failed flush loses at most the swapped-out batch.
package samplestore

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/fufel/trailmap/internal/logging"
	"github.com/fufel/trailmap/internal/metrics"
	"github.com/fufel/trailmap/internal/models"
)

// Header is the marker line preceding records. Readers must skip it.
const Header = "t,wx,wz,u,v"

const sessionsSubdir = "sessions"

// EnsureFile creates the record file for a session (with its header) if it
// does not exist and returns its path relative to dataDir.
func EnsureFile(dataDir, sessionID string) (string, error) {
	dir := filepath.Join(dataDir, sessionsSubdir)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating sessions dir: %w", err)
	}

	name := "samples_" + models.SanitizeID(sessionID) + ".csv"
	full := filepath.Join(dir, name)
	if _, err := os.Stat(full); os.IsNotExist(err) {
		if err := os.WriteFile(full, []byte(Header+"\n"), 0o640); err != nil {
			return "", fmt.Errorf("creating record file: %w", err)
		}
	}
	return filepath.Join(sessionsSubdir, name), nil
}

// FullPath resolves a relative record path against the data directory.
func FullPath(dataDir, relative string) string {
	if relative == "" {
		return ""
	}
	return filepath.Join(dataDir, relative)
}

// Handle buffers not-yet-flushed samples for one active session. The buffer
// has its own lock, distinct from the session registry's, so unrelated
// sessions never serialize their sampling through a shared lock. The lock is
// held only for the append or the buffer swap, never across file I/O.
type Handle struct {
	sessionID string
	path      string

	mu      sync.Mutex
	buf     []models.Sample
	stopped bool
}

// NewHandle creates a buffer handle writing to the record file at path.
func NewHandle(sessionID, path string) *Handle {
	return &Handle{
		sessionID: sessionID,
		path:      path,
		buf:       make([]models.Sample, 0, 256),
	}
}

// SessionID returns the owning session id.
func (h *Handle) SessionID() string { return h.sessionID }

// Append adds a sample to the buffer. Returns false (dropping the sample)
// once the handle is stopped; a tick that was already in flight when stop
// ran must not extend the session.
func (h *Handle) Append(s models.Sample) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return false
	}
	h.buf = append(h.buf, s)
	metrics.SamplesRecorded.Inc()
	return true
}

// MarkStopped rejects all future appends. Idempotent.
func (h *Handle) MarkStopped() {
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()
}

// Stopped reports whether the handle has been stopped.
func (h *Handle) Stopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped
}

// Buffered returns the number of samples awaiting flush.
func (h *Handle) Buffered() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.buf)
}

// Flush swaps the buffer for an empty one and appends the batch to the
// record file. Concurrent Appends either land in the old batch or the new
// buffer; none are lost to the swap. A write failure drops the batch (the
// record file is append-only and is never left in a corrupted state) and is
// logged, not returned as fatal: sample loss on flush failure is an accepted
// degradation.
func (h *Handle) Flush(final bool) (int, error) {
	h.mu.Lock()
	if len(h.buf) == 0 {
		h.mu.Unlock()
		return 0, nil
	}
	batch := h.buf
	h.buf = make([]models.Sample, 0, cap(batch))
	h.mu.Unlock()

	if h.path == "" {
		return 0, nil
	}

	if err := appendRecords(h.path, batch); err != nil {
		metrics.SampleFlushErrors.Inc()
		logging.Warn().
			Err(err).
			Str("session", h.sessionID).
			Int("lost", len(batch)).
			Bool("final", final).
			Msg("failed to flush samples")
		return 0, err
	}

	metrics.SampleFlushes.Inc()
	metrics.SamplesFlushed.Add(float64(len(batch)))
	return len(batch), nil
}

func appendRecords(path string, batch []models.Sample) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("opening record file: %w", err)
	}
	defer f.Close()

	buf := make([]byte, 0, len(batch)*48)
	for i := range batch {
		buf = appendRecord(buf, batch[i])
	}
	if _, err := f.Write(buf); err != nil {
		return fmt.Errorf("appending records: %w", err)
	}
	return nil
}

func appendRecord(b []byte, s models.Sample) []byte {
	b = strconv.AppendFloat(b, s.T, 'f', 3, 64)
	b = append(b, ',')
	b = strconv.AppendFloat(b, s.WX, 'f', 3, 64)
	b = append(b, ',')
	b = strconv.AppendFloat(b, s.WZ, 'f', 3, 64)
	b = append(b, ',')
	b = strconv.AppendFloat(b, s.U, 'f', 6, 64)
	b = append(b, ',')
	b = strconv.AppendFloat(b, s.V, 'f', 6, 64)
	b = append(b, '\n')
	return b
}
