// Trailmap - Activity Session Recording and Map API
// Copyright 2026 fufel
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fufel/trailmap

// Package recorder drives the recording lifecycle: starting a session for a
// player, sampling their position on a timer, flushing samples to disk, and
// tearing everything down on stop, death, or disconnect.
//
// Each active session is owned by one goroutine running both of its tickers.
// A tick failure is logged and the loop continues; a panic in a tick ends
// only that session, never the process.
package recorder

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fufel/trailmap/internal/config"
	"github.com/fufel/trailmap/internal/game"
	"github.com/fufel/trailmap/internal/geo"
	"github.com/fufel/trailmap/internal/logging"
	"github.com/fufel/trailmap/internal/mapimage"
	"github.com/fufel/trailmap/internal/metrics"
	"github.com/fufel/trailmap/internal/models"
	"github.com/fufel/trailmap/internal/samplestore"
	"github.com/fufel/trailmap/internal/session"
)

// Saver is the write side of session persistence.
type Saver interface {
	Save(*models.Session) error
}

// Notifier receives recording lifecycle events, e.g. for a live feed. All
// methods must be non-blocking; they are called from recording goroutines.
type Notifier interface {
	SessionStarted(s *models.Session)
	SessionEnded(s *models.Session)
	SampleRecorded(sessionID string, sample models.Sample)
	DeathRecorded(sessionID string, death models.DeathEvent)
}

// Recorder implements the session recording state machine. All shared state
// lives in the registry; the Recorder itself only holds collaborators.
type Recorder struct {
	cfg      config.RecordingConfig
	dataDir  string
	registry *session.Registry
	world    game.World
	players  game.PlayerSource
	maps     *mapimage.Cache
	saver    Saver
	notify   Notifier

	// base is the parent context for per-session goroutines, set by Run.
	baseMu sync.Mutex
	base   context.Context

	log zerolog.Logger
}

// New creates a recorder. saver and notify may be nil.
func New(cfg config.RecordingConfig, dataDir string, registry *session.Registry, world game.World, players game.PlayerSource, maps *mapimage.Cache, saver Saver, notify Notifier) *Recorder {
	return &Recorder{
		cfg:      cfg,
		dataDir:  dataDir,
		registry: registry,
		world:    world,
		players:  players,
		maps:     maps,
		saver:    saver,
		notify:   notify,
		base:     context.Background(),
		log:      logging.With("recorder"),
	}
}

// SetBaseContext sets the parent context for session goroutines. Sessions
// started afterwards end (reason manual) when it is cancelled.
func (r *Recorder) SetBaseContext(ctx context.Context) {
	r.baseMu.Lock()
	r.base = ctx
	r.baseMu.Unlock()
}

func (r *Recorder) baseContext() context.Context {
	r.baseMu.Lock()
	defer r.baseMu.Unlock()
	return r.base
}

// DefaultSessionID generates the session id used when the caller supplies
// none.
func DefaultSessionID(now time.Time) string {
	return "solo-" + strconv.FormatInt(now.Unix(), 10)
}

// Start begins recording for a player. An already active session for the
// same player is fully stopped first. Returns the new session id.
func (r *Recorder) Start(playerID, matchID string) (string, error) {
	if playerID == "" {
		return "", fmt.Errorf("start recording: empty player id")
	}
	if _, ok := r.registry.GetActive(playerID); ok {
		r.Stop(playerID, models.EndReasonManual)
	}

	id := matchID
	if id == "" {
		id = DefaultSessionID(time.Now())
	}

	seed := r.world.Seed()
	worldSize := r.world.Size()

	samplesRel, err := samplestore.EnsureFile(r.dataDir, id)
	if err != nil {
		return "", fmt.Errorf("start recording %s: %w", id, err)
	}

	s := &models.Session{
		ID:          id,
		PlayerID:    playerID,
		PlayerName:  r.players.DisplayName(playerID),
		Seed:        seed,
		WorldSize:   worldSize,
		MapScale:    r.cfg.MapScale,
		Margin:      r.cfg.MapMargin,
		StartedAt:   models.NowMillis(),
		MapPNGFile:  r.maps.Ensure(seed, worldSize, r.cfg.MapScale),
		SamplesFile: samplesRel,
	}

	handle := samplestore.NewHandle(id, samplestore.FullPath(r.dataDir, samplesRel))
	ctx, cancel := context.WithCancel(r.baseContext())

	r.registry.PutSession(s)
	r.registry.SetActive(playerID, &session.Active{
		ID:      id,
		Session: s,
		Handle:  handle,
		Cancel:  cancel,
	})

	metrics.SessionsStarted.Inc()
	metrics.SessionsActive.Set(float64(r.registry.ActiveCount()))
	if r.notify != nil {
		r.notify.SessionStarted(s.Clone())
	}

	r.log.Info().
		Str("session", id).
		Str("player", playerID).
		Uint32("seed", seed).
		Float64("world_size", worldSize).
		Msg("Recording started")

	go r.run(ctx, playerID, s)
	return id, nil
}

// Stop ends the player's active recording. Idempotent: returns false when
// the player has nothing active. A concurrent Stop for the same player runs
// the teardown exactly once; the registry removal decides the winner.
func (r *Recorder) Stop(playerID string, reason models.EndReason) bool {
	a, ok := r.registry.EndActive(playerID, reason, models.NowMillis())
	if !ok {
		return false
	}
	r.teardown(a, playerID, reason)
	return true
}

// stopIfCurrent ends the player's recording only while sessionID is still
// the active one. Stop paths running on a session's own goroutine use this:
// by the time such a goroutine acts, the player may already be recording a
// newer session, which must not be touched.
func (r *Recorder) stopIfCurrent(playerID, sessionID string, reason models.EndReason) bool {
	a, ok := r.registry.EndActiveMatching(playerID, sessionID, reason, models.NowMillis())
	if !ok {
		return false
	}
	r.teardown(a, playerID, reason)
	return true
}

func (r *Recorder) teardown(a *session.Active, playerID string, reason models.EndReason) {
	if a.Cancel != nil {
		a.Cancel()
	}
	a.Handle.MarkStopped()
	if _, err := a.Handle.Flush(true); err != nil {
		// Already logged by the handle; the batch is lost, the file intact.
		_ = err
	}

	snap, _ := r.registry.Snapshot(a.ID)
	if snap != nil && r.saver != nil {
		if err := r.saver.Save(snap); err != nil {
			r.log.Error().Err(err).Str("session", a.ID).Msg("Failed to persist ended session")
		}
	}

	metrics.SessionsEnded.WithLabelValues(string(reason)).Inc()
	metrics.SessionsActive.Set(float64(r.registry.ActiveCount()))
	if r.notify != nil && snap != nil {
		r.notify.SessionEnded(snap)
	}

	r.log.Info().
		Str("session", a.ID).
		Str("player", playerID).
		Str("reason", string(reason)).
		Msg("Recording stopped")
}

// RecordDeath notes a death for the player's active session and ends it.
// No-op when the player is not recording.
func (r *Recorder) RecordDeath(playerID string, x, z float64, at int64) bool {
	a, ok := r.registry.GetActive(playerID)
	if !ok {
		return false
	}
	if at == 0 {
		at = models.NowMillis()
	}

	// World parameters are fixed at session start, safe to read unlocked.
	uv := geo.WorldToUV(x, z, a.Session.WorldSize, a.Session.MapScale, a.Session.Margin)
	death := models.DeathEvent{
		At:   at,
		WX:   x,
		WZ:   z,
		U:    uv.U,
		V:    uv.V,
		Cell: geo.GridCell(x, z, a.Session.WorldSize),
	}

	if !r.registry.AddDeath(a.ID, death) {
		return false
	}
	metrics.DeathsRecorded.Inc()
	if r.notify != nil {
		r.notify.DeathRecorded(a.ID, death)
	}

	r.Stop(playerID, models.EndReasonDeath)
	return true
}

// run owns the session's sample and flush tickers until the session context
// is cancelled.
func (r *Recorder) run(ctx context.Context, playerID string, s *models.Session) {
	sampleTicker := time.NewTicker(r.cfg.SampleInterval)
	defer sampleTicker.Stop()
	flushTicker := time.NewTicker(r.cfg.FlushInterval)
	defer flushTicker.Stop()

	a, ok := r.registry.GetActive(playerID)
	if !ok || a.ID != s.ID {
		return
	}
	handle := a.Handle

	for {
		select {
		case <-ctx.Done():
			// Process shutdown, or this session was already stopped and its
			// context cancelled. Close out only this session; the player may
			// be on a newer one by now.
			r.stopIfCurrent(playerID, s.ID, models.EndReasonManual)
			return
		case <-sampleTicker.C:
			r.tick(playerID, s, handle, r.sampleTick)
		case <-flushTicker.C:
			r.tick(playerID, s, handle, r.flushTick)
		}
	}
}

// tick runs one timer callback with panic isolation. A panicking callback
// ends the session; the process and other sessions are unaffected.
func (r *Recorder) tick(playerID string, s *models.Session, handle *samplestore.Handle, fn func(string, *models.Session, *samplestore.Handle)) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().
				Interface("panic", rec).
				Str("session", s.ID).
				Msg("Recording tick panicked, ending session")
			r.stopIfCurrent(playerID, s.ID, models.EndReasonManual)
		}
	}()
	fn(playerID, s, handle)
}

func (r *Recorder) sampleTick(playerID string, s *models.Session, handle *samplestore.Handle) {
	if handle.Stopped() {
		return
	}
	if !r.players.IsConnected(playerID) {
		r.stopIfCurrent(playerID, s.ID, models.EndReasonDisconnect)
		return
	}

	pos, err := r.players.Position(playerID)
	if err != nil {
		r.stopIfCurrent(playerID, s.ID, models.EndReasonDisconnect)
		return
	}

	uv := geo.WorldToUV(pos.X, pos.Z, s.WorldSize, s.MapScale, s.Margin)
	sample := models.Sample{
		T:  float64(models.NowMillis()-s.StartedAt) / 1000.0,
		WX: pos.X,
		WZ: pos.Z,
		U:  uv.U,
		V:  uv.V,
	}
	if handle.Append(sample) {
		r.registry.IncrementSamples(s.ID)
		if r.notify != nil {
			r.notify.SampleRecorded(s.ID, sample)
		}
	}
}

func (r *Recorder) flushTick(_ string, _ *models.Session, handle *samplestore.Handle) {
	_, _ = handle.Flush(false)
}
