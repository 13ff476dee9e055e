package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Room is a named subscription scope.
type Room string

// RoomSystem receives every published event.
const RoomSystem Room = "system"

// AgentRoom scopes events to one agent.
func AgentRoom(agentID string) Room { return Room("agent:" + agentID) }

// RunRoom scopes events to one analysis run.
func RunRoom(runID string) Room { return Room("run:" + runID) }

// Conn is one subscriber connection. Events are delivered on a bounded
// channel; when the channel is full the event is dropped for this
// connection so a slow subscriber never blocks the publisher.
type Conn struct {
	ID string

	ch        chan Event
	retention Retention

	mu     sync.Mutex
	closed bool
}

// Events returns the delivery channel. It is closed on Disconnect.
func (c *Conn) Events() <-chan Event { return c.ch }

// Retention exposes this connection's bounded replay buffers.
func (c *Conn) Retention() *Retention { return &c.retention }

func (c *Conn) deliver(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.retention.Apply(e)
	select {
	case c.ch <- e:
	default:
		slog.Debug("Subscriber buffer full, dropping event", "conn", c.ID, "type", e.Type)
	}
}

func (c *Conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.ch)
}

// Distributor is the connection registry and fan-out hub. It holds no
// durable queue: an event missed by a disconnected or saturated
// subscriber is permanently lost for that subscriber, and late joiners
// receive no replay.
type Distributor struct {
	mu         sync.RWMutex
	conns      map[string]*Conn
	rooms      map[Room]map[string]*Conn
	bufferSize int
}

// NewDistributor creates an empty distributor. bufferSize is the
// per-connection delivery channel capacity; values <= 0 fall back to 64.
func NewDistributor(bufferSize int) *Distributor {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Distributor{
		conns:      make(map[string]*Conn),
		rooms:      make(map[Room]map[string]*Conn),
		bufferSize: bufferSize,
	}
}

// Connect registers a new subscriber connection with no room memberships.
func (d *Distributor) Connect() *Conn {
	c := &Conn{
		ID: uuid.NewString(),
		ch: make(chan Event, d.bufferSize),
	}
	d.mu.Lock()
	d.conns[c.ID] = c
	d.mu.Unlock()
	return c
}

// Disconnect drops all room memberships for c and closes its channel.
// Rejoining after reconnect is the caller's responsibility.
func (d *Distributor) Disconnect(c *Conn) {
	if c == nil {
		return
	}
	d.mu.Lock()
	delete(d.conns, c.ID)
	for room, members := range d.rooms {
		delete(members, c.ID)
		if len(members) == 0 {
			delete(d.rooms, room)
		}
	}
	d.mu.Unlock()
	c.close()
}

// Subscribe adds c to room. Subscribing twice is a no-op.
func (d *Distributor) Subscribe(c *Conn, room Room) {
	if c == nil || room == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.conns[c.ID]; !ok {
		return
	}
	members, ok := d.rooms[room]
	if !ok {
		members = make(map[string]*Conn)
		d.rooms[room] = members
	}
	members[c.ID] = c
}

// Unsubscribe removes c from room.
func (d *Distributor) Unsubscribe(c *Conn, room Room) {
	if c == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if members, ok := d.rooms[room]; ok {
		delete(members, c.ID)
		if len(members) == 0 {
			delete(d.rooms, room)
		}
	}
}

// Publish delivers e to every connection subscribed to a room matching
// the event's scope. Delivery is best-effort and never blocks or fails;
// events of unknown type are logged and dropped.
func (d *Distributor) Publish(e Event) {
	if !e.Type.Known() {
		slog.Warn("Dropping event of unknown type", "type", e.Type, "run_id", e.RunID)
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	targets := make(map[string]*Conn)
	d.mu.RLock()
	for _, room := range scopeRooms(e) {
		for id, c := range d.rooms[room] {
			targets[id] = c
		}
	}
	d.mu.RUnlock()

	for _, c := range targets {
		c.deliver(e)
	}
}

// scopeRooms derives the rooms an event fans out to: always system, the
// run room when a run is set, and the agent room for agent status events.
func scopeRooms(e Event) []Room {
	rooms := []Room{RoomSystem}
	if e.RunID != "" {
		rooms = append(rooms, RunRoom(e.RunID))
	}
	switch p := e.Payload.(type) {
	case AgentStatusPayload:
		rooms = append(rooms, AgentRoom(p.AgentID))
	case *AgentStatusPayload:
		rooms = append(rooms, AgentRoom(p.AgentID))
	}
	return rooms
}
