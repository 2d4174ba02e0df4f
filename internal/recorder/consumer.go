// Trailmap - Activity Session Recording and Map API
// Copyright 2026 fufel
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fufel/trailmap

package recorder

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/fufel/trailmap/internal/game"
	"github.com/fufel/trailmap/internal/logging"
	"github.com/fufel/trailmap/internal/models"
)

// FeedConsumer subscribes to the game event feed and translates death and
// disconnect events into recorder actions. It implements suture.Service; a
// subscribe failure surfaces as a service error and the supervisor restarts
// it.
type FeedConsumer struct {
	feed     *game.Feed
	recorder *Recorder
	log      zerolog.Logger
}

// NewFeedConsumer creates a consumer wiring feed events into the recorder.
func NewFeedConsumer(feed *game.Feed, recorder *Recorder) *FeedConsumer {
	return &FeedConsumer{
		feed:     feed,
		recorder: recorder,
		log:      logging.With("feed-consumer"),
	}
}

// Serve consumes feed events until ctx is cancelled.
func (c *FeedConsumer) Serve(ctx context.Context) error {
	deaths, err := c.feed.SubscribeDeaths(ctx)
	if err != nil {
		return err
	}
	disconnects, err := c.feed.SubscribeDisconnects(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-deaths:
			if !ok {
				return ctx.Err()
			}
			ev, err := game.DecodeDeath(msg)
			if err != nil {
				c.log.Warn().Err(err).Str("message_id", msg.UUID).Msg("Dropping undecodable death event")
				msg.Ack()
				continue
			}
			c.recorder.RecordDeath(ev.PlayerID, ev.X, ev.Z, ev.At)
			msg.Ack()
		case msg, ok := <-disconnects:
			if !ok {
				return ctx.Err()
			}
			ev, err := game.DecodeDisconnect(msg)
			if err != nil {
				c.log.Warn().Err(err).Str("message_id", msg.UUID).Msg("Dropping undecodable disconnect event")
				msg.Ack()
				continue
			}
			c.recorder.Stop(ev.PlayerID, models.EndReasonDisconnect)
			msg.Ack()
		}
	}
}
