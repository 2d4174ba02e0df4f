// Trailmap - Activity Session Recording and Map API
// Copyright 2026 fufel
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fufel/trailmap

package game

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/fufel/trailmap/internal/logging"
)

// Feed topics. All writes originate in-process; the feed is a GoChannel
// pub/sub, not a network broker.
const (
	TopicDeath      = "player.death"
	TopicDisconnect = "player.disconnect"
)

// DeathEvent is published when a player dies. X/Z is the death position at
// the moment the event fired.
type DeathEvent struct {
	PlayerID string  `json:"playerId"`
	X        float64 `json:"x"`
	Z        float64 `json:"z"`
	At       int64   `json:"at"`
}

// DisconnectEvent is published when a player leaves the server.
type DisconnectEvent struct {
	PlayerID string `json:"playerId"`
	At       int64  `json:"at"`
}

// Feed is the in-process game event feed. The game runtime publishes death
// and disconnect events; the session recorder subscribes. Buffered channels
// keep slow consumers from blocking the game side.
type Feed struct {
	pubsub *gochannel.GoChannel
}

// NewFeed creates the event feed.
func NewFeed() *Feed {
	return &Feed{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 64},
			watermill.NewSlogLogger(logging.NewSlogLogger()),
		),
	}
}

// PublishDeath publishes a player death event.
func (f *Feed) PublishDeath(ev DeathEvent) error {
	return f.publish(TopicDeath, ev)
}

// PublishDisconnect publishes a player disconnect event.
func (f *Feed) PublishDisconnect(ev DisconnectEvent) error {
	return f.publish(TopicDisconnect, ev)
}

func (f *Feed) publish(topic string, ev interface{}) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling %s event: %w", topic, err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := f.pubsub.Publish(topic, msg); err != nil {
		return fmt.Errorf("publishing %s event: %w", topic, err)
	}
	return nil
}

// SubscribeDeaths returns the death event stream. The channel closes when
// ctx is canceled or the feed is closed.
func (f *Feed) SubscribeDeaths(ctx context.Context) (<-chan *message.Message, error) {
	return f.pubsub.Subscribe(ctx, TopicDeath)
}

// SubscribeDisconnects returns the disconnect event stream.
func (f *Feed) SubscribeDisconnects(ctx context.Context) (<-chan *message.Message, error) {
	return f.pubsub.Subscribe(ctx, TopicDisconnect)
}

// Close shuts down the pub/sub and all subscriber channels.
func (f *Feed) Close() error {
	return f.pubsub.Close()
}

// DecodeDeath unmarshals a death event message payload.
func DecodeDeath(msg *message.Message) (DeathEvent, error) {
	var ev DeathEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return DeathEvent{}, fmt.Errorf("decoding death event: %w", err)
	}
	return ev, nil
}

// DecodeDisconnect unmarshals a disconnect event message payload.
func DecodeDisconnect(msg *message.Message) (DisconnectEvent, error) {
	var ev DisconnectEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return DisconnectEvent{}, fmt.Errorf("decoding disconnect event: %w", err)
	}
	return ev, nil
}
