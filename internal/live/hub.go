// Trailmap - Activity Session Recording and Map API
// Copyright 2026 fufel
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fufel/trailmap

// Package live streams recording activity to websocket clients: session
// lifecycle, deaths, and a rate-limited subset of position samples. The
// dashboard uses it to draw trails as they happen instead of polling.
package live

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/time/rate"

	"github.com/fufel/trailmap/internal/config"
	"github.com/fufel/trailmap/internal/logging"
	"github.com/fufel/trailmap/internal/metrics"
	"github.com/fufel/trailmap/internal/models"
)

// Message types pushed to websocket clients.
const (
	MessageTypeSessionStarted = "session_started"
	MessageTypeSessionEnded   = "session_ended"
	MessageTypeSample         = "sample"
	MessageTypeDeath          = "death"
	MessageTypePing           = "ping"
	MessageTypePong           = "pong"
)

// Message is the envelope for all websocket traffic.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// SampleData is the payload of a sample message.
type SampleData struct {
	SessionID string        `json:"sessionId"`
	Sample    models.Sample `json:"sample"`
}

// DeathData is the payload of a death message.
type DeathData struct {
	SessionID string            `json:"sessionId"`
	Death     models.DeathEvent `json:"death"`
}

// Hub maintains the set of connected clients and fans messages out to them.
// It implements the recorder's Notifier so recording goroutines can push
// events without knowing about websockets; every push is non-blocking and
// drops rather than stalls (sampling must never wait on a slow reader).
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	done       chan struct{}
	doneOnce   sync.Once
	mu         sync.RWMutex

	sendBuffer int

	// limiter throttles sample messages only; lifecycle and death messages
	// always go through.
	limiter *rate.Limiter
}

// NewHub creates a hub throttling sample broadcasts per cfg.SampleRate.
func NewHub(cfg config.LiveConfig) *Hub {
	burst := int(cfg.SampleRate)
	if burst < 1 {
		burst = 1
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
		sendBuffer: cfg.SendBuffer,
		limiter:    rate.NewLimiter(rate.Limit(cfg.SampleRate), burst),
	}
}

// Serve runs the hub loop until ctx is cancelled. Registrations are drained
// before broadcasts so client state is settled when a message fans out.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return ctx.Err()
		case client := <-h.Register:
			h.add(client)
			continue
		case client := <-h.Unregister:
			h.remove(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.closeAll()
			return ctx.Err()
		case client := <-h.Register:
			h.add(client)
		case client := <-h.Unregister:
			h.remove(client)
		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()
	metrics.LiveClients.Set(float64(n))
	logging.Info().Int("clients", n).Msg("live client connected")
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.LiveClients.Set(float64(n))
	logging.Info().Int("clients", n).Msg("live client disconnected")
}

// fanOut delivers to clients in id order. A client whose queue is full is
// dropped; a reader that cannot keep up forfeits its connection rather than
// backing up the hub.
func (h *Hub) fanOut(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })

	for _, c := range clients {
		select {
		case c.send <- msg:
			metrics.LiveMessagesSent.Inc()
		default:
			close(c.send)
			delete(h.clients, c)
			metrics.LiveMessagesDropped.Inc()
		}
	}
	metrics.LiveClients.Set(float64(len(h.clients)))
}

// closeAll tears down every client when Serve exits. The done channel is
// closed first so pumps that unregister after this point do not block on a
// hub that is no longer draining Unregister.
func (h *Hub) closeAll() {
	h.doneOnce.Do(func() { close(h.done) })
	h.mu.Lock()
	n := len(h.clients)
	for c := range h.clients {
		close(c.send)
		if c.conn != nil {
			_ = c.conn.Close()
		}
		delete(h.clients, c)
	}
	h.mu.Unlock()
	metrics.LiveClients.Set(0)
	logging.Info().Int("clients_closed", n).Msg("live hub stopped")
}

// drop hands a client to the hub loop for removal, or returns immediately
// once the hub has stopped.
func (h *Hub) drop(c *Client) {
	select {
	case h.Unregister <- c:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// reply queues a message to one client if it is still registered. Sends and
// channel closes are both serialized under mu, so a client dropped by the
// hub can never be written to after close.
func (h *Hub) reply(c *Client, msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[c] {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

func (h *Hub) push(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		metrics.LiveMessagesDropped.Inc()
		logging.Warn().Str("message_type", msg.Type).Msg("live broadcast queue full, dropping message")
	}
}

// SessionStarted implements recorder.Notifier.
func (h *Hub) SessionStarted(s *models.Session) {
	h.push(Message{Type: MessageTypeSessionStarted, Data: models.NewMatchSummary(s)})
}

// SessionEnded implements recorder.Notifier.
func (h *Hub) SessionEnded(s *models.Session) {
	h.push(Message{Type: MessageTypeSessionEnded, Data: models.NewMatchSummary(s)})
}

// SampleRecorded implements recorder.Notifier. Samples beyond the rate
// limit are silently skipped; the durable record file keeps every sample,
// the live stream is a preview.
func (h *Hub) SampleRecorded(sessionID string, sample models.Sample) {
	if !h.limiter.Allow() {
		return
	}
	h.push(Message{Type: MessageTypeSample, Data: SampleData{SessionID: sessionID, Sample: sample}})
}

// DeathRecorded implements recorder.Notifier.
func (h *Hub) DeathRecorded(sessionID string, death models.DeathEvent) {
	h.push(Message{Type: MessageTypeDeath, Data: DeathData{SessionID: sessionID, Death: death}})
}
