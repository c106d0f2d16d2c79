// Package dispatch fans events out to the connections subscribed to a channel.
package dispatch

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-monolith/mono/pkg/types"
)

// DefaultOutboxSize is the per-connection frame queue length.
const DefaultOutboxSize = 256

// Frame is the wire envelope for every event, in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// UserChannel returns the personal channel of a user.
func UserChannel(userID string) string {
	return "user:" + userID
}

// ChatChannel returns the room channel of a chat.
func ChatChannel(chatID string) string {
	return "chat:" + chatID
}

// Dispatcher tracks channel subscriptions and delivers frames. Frames
// published on one channel reach each subscriber in publish order.
type Dispatcher struct {
	mu       sync.RWMutex
	clients  map[string]*Client             // connID -> client
	channels map[string]map[string]*Client  // channel -> connID -> client
	subs     map[string]map[string]struct{} // connID -> channels

	wg      sync.WaitGroup
	dropped atomic.Uint64
	logger  types.Logger
}

// New creates a Dispatcher.
func New(logger types.Logger) *Dispatcher {
	return &Dispatcher{
		clients:  make(map[string]*Client),
		channels: make(map[string]map[string]*Client),
		subs:     make(map[string]map[string]struct{}),
		logger:   logger,
	}
}

// Attach registers the client and starts its writer. It returns false when
// the client is already attached or was removed before.
func (d *Dispatcher) Attach(c *Client) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if c.attached || c.closed {
		return false
	}
	c.attached = true
	d.clients[c.id] = c
	d.subs[c.id] = make(map[string]struct{})

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		c.writePump(d.onWriteError)
	}()
	return true
}

// Subscribe adds the client to channel. It returns false when the client is
// not attached.
func (d *Dispatcher) Subscribe(c *Client, channel string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.clients[c.id]; !ok {
		return false
	}
	members := d.channels[channel]
	if members == nil {
		members = make(map[string]*Client)
		d.channels[channel] = members
	}
	members[c.id] = c
	d.subs[c.id][channel] = struct{}{}
	return true
}

// Unsubscribe removes the client from channel. Unknown pairs are ignored.
func (d *Dispatcher) Unsubscribe(c *Client, channel string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.unsubscribeLocked(c.id, channel)
}

func (d *Dispatcher) unsubscribeLocked(connID, channel string) {
	if members, ok := d.channels[channel]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(d.channels, channel)
		}
	}
	if subs, ok := d.subs[connID]; ok {
		delete(subs, channel)
	}
}

// Remove drops every subscription of the client and closes its queue.
// Once Remove returns no further frame can be queued for the client.
func (d *Dispatcher) Remove(c *Client) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.clients[c.id]; !ok {
		return false
	}
	for channel := range d.subs[c.id] {
		d.unsubscribeLocked(c.id, channel)
	}
	delete(d.subs, c.id)
	delete(d.clients, c.id)
	c.closed = true
	close(c.send)
	return true
}

// Subscribed reports whether the client is subscribed to channel.
func (d *Dispatcher) Subscribed(c *Client, channel string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, ok := d.channels[channel][c.id]
	return ok
}

// Channels returns the channels the client is subscribed to.
func (d *Dispatcher) Channels(c *Client) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]string, 0, len(d.subs[c.id]))
	for channel := range d.subs[c.id] {
		out = append(out, channel)
	}
	return out
}

// Publish delivers event to every connection subscribed to channel.
func (d *Dispatcher) Publish(channel, event string, payload any) error {
	return d.PublishExcept(channel, "", event, payload)
}

// PublishExcept delivers event to every connection subscribed to channel
// other than exceptID.
func (d *Dispatcher) PublishExcept(channel, exceptID, event string, payload any) error {
	data, err := Encode(event, payload)
	if err != nil {
		return err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	for id, c := range d.channels[channel] {
		if id == exceptID {
			continue
		}
		d.enqueueLocked(c, data)
	}
	return nil
}

// Send delivers event to a single connection, subscribed or not.
func (d *Dispatcher) Send(c *Client, event string, payload any) error {
	data, err := Encode(event, payload)
	if err != nil {
		return err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if _, ok := d.clients[c.id]; !ok {
		return nil
	}
	d.enqueueLocked(c, data)
	return nil
}

// enqueueLocked must be called with d.mu held (read or write).
func (d *Dispatcher) enqueueLocked(c *Client, data []byte) {
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		d.dropped.Add(1)
		d.logger.Warn("Outbox full, dropping frame", "connID", c.id, "userID", c.userID)
	}
}

func (d *Dispatcher) onWriteError(c *Client, err error) {
	d.logger.Warn("Write to connection failed", "connID", c.id, "userID", c.userID, "error", err)
}

// ClientCount returns the number of attached connections.
func (d *Dispatcher) ClientCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.clients)
}

// SubscriberCount returns the number of connections on channel.
func (d *Dispatcher) SubscriberCount(channel string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.channels[channel])
}

// Dropped returns how many frames were dropped on full outboxes.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Close removes every connection and waits for the writers to drain.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	for id, c := range d.clients {
		delete(d.clients, id)
		delete(d.subs, id)
		c.closed = true
		close(c.send)
	}
	d.channels = make(map[string]map[string]*Client)
	d.mu.Unlock()

	d.wg.Wait()
}

// Encode builds the wire frame for event.
func Encode(event string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", event, err)
	}
	data, err := json.Marshal(Frame{Event: event, Data: raw})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s frame: %w", event, err)
	}
	return data, nil
}
