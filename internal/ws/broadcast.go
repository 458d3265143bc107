package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/votecast/backend/internal/connid"
	"github.com/votecast/backend/internal/metrics"
	"github.com/votecast/backend/internal/tally"
)

var (
	ErrTooManyConnections = errors.New("too many connections")
	ErrUnknownClient      = errors.New("unknown client")
	ErrClientTooSlow      = errors.New("client send queue full")
)

// SnapshotSource yields the current tally.
type SnapshotSource interface {
	Snapshot() tally.Snapshot
}

type Options struct {
	SendBuffer     int
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	MaxConnections int // 0 means unlimited
}

type client struct {
	id   connid.ID
	conn *websocket.Conn
	b    *Broadcaster
	send chan []byte

	mu      sync.Mutex
	closed  bool
	lastSeq uint64
}

func (b *Broadcaster) newClient(id connid.ID, conn *websocket.Conn) *client {
	return &client{
		id:   id,
		conn: conn,
		b:    b,
		send: make(chan []byte, b.opts.SendBuffer),
	}
}

// enqueue queues data without blocking. Snapshots older than one already
// queued are skipped so an observer never moves backwards. It reports false
// only when the queue is full.
func (c *client) enqueue(data []byte, seq uint64, isSnapshot bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	if isSnapshot && seq < c.lastSeq {
		return true
	}
	select {
	case c.send <- data:
		if isSnapshot {
			c.lastSeq = seq
		}
		return true
	default:
		return false
	}
}

func (c *client) writePump() {
	var ping <-chan time.Time
	if c.b.opts.PingInterval > 0 {
		ticker := time.NewTicker(c.b.opts.PingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}
	defer c.conn.Close()

	for {
		select {
		case msg, ok := <-c.send:
			c.setWriteDeadline()
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.b.RemoveClient(c)
				return
			}
		case <-ping:
			c.setWriteDeadline()
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.b.RemoveClient(c)
				return
			}
		}
	}
}

func (c *client) setWriteDeadline() {
	if c.b.opts.WriteTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.b.opts.WriteTimeout))
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Broadcaster fans snapshots out to every connected client. Each client has
// one FIFO queue drained by one writer, so messages reach a client in the
// order they were queued.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[connid.ID]*client

	source  SnapshotSource
	opts    Options
	metrics *metrics.Metrics
}

func NewBroadcaster(source SnapshotSource, opts Options, m *metrics.Metrics) *Broadcaster {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	return &Broadcaster{
		clients: make(map[connid.ID]*client),
		source:  source,
		opts:    opts,
		metrics: m,
	}
}

// AddClient registers conn under id and starts its writer.
func (b *Broadcaster) AddClient(id connid.ID, conn *websocket.Conn) (*client, error) {
	b.mu.Lock()
	if b.opts.MaxConnections > 0 && len(b.clients) >= b.opts.MaxConnections {
		b.mu.Unlock()
		return nil, ErrTooManyConnections
	}
	c := b.newClient(id, conn)
	b.clients[id] = c
	b.mu.Unlock()

	go c.writePump()
	return c, nil
}

func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	if cur, ok := b.clients[c.id]; ok && cur == c {
		delete(b.clients, c.id)
	}
	b.mu.Unlock()
	c.close()
}

// Remove drops the client registered under id, if any.
func (b *Broadcaster) Remove(id connid.ID) {
	b.mu.RLock()
	c, ok := b.clients[id]
	b.mu.RUnlock()
	if ok {
		b.RemoveClient(c)
	}
}

// Publish sends snap to every client. Clients that cannot keep up are
// disconnected.
func (b *Broadcaster) Publish(snap tally.Snapshot) {
	data, err := json.Marshal(snapshotMessage(snap))
	if err != nil {
		slog.Error("broadcast marshal error", "error", err)
		return
	}

	clients := b.snapshotClients()
	for _, c := range clients {
		if !c.enqueue(data, snap.Version, true) {
			b.dropSlow(c)
		}
	}
	b.metrics.Broadcast(len(clients))
}

// SendSnapshotTo sends the current snapshot to id alone.
func (b *Broadcaster) SendSnapshotTo(id connid.ID) error {
	c, ok := b.lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownClient, id)
	}
	snap := b.source.Snapshot()
	data, err := json.Marshal(snapshotMessage(snap))
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if !c.enqueue(data, snap.Version, true) {
		b.dropSlow(c)
		return ErrClientTooSlow
	}
	b.metrics.Unicast()
	return nil
}

// Send queues a control message for id alone.
func (b *Broadcaster) Send(id connid.ID, msg WSMessage) error {
	c, ok := b.lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownClient, id)
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msg.Type, err)
	}
	if !c.enqueue(data, 0, false) {
		b.dropSlow(c)
		return ErrClientTooSlow
	}
	b.metrics.Unicast()
	return nil
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Stop disconnects every client.
func (b *Broadcaster) Stop() {
	for _, c := range b.snapshotClients() {
		b.RemoveClient(c)
	}
}

func (b *Broadcaster) lookup(id connid.ID) (*client, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c, ok := b.clients[id]
	return c, ok
}

func (b *Broadcaster) snapshotClients() []*client {
	b.mu.RLock()
	defer b.mu.RUnlock()
	clients := make([]*client, 0, len(b.clients))
	for _, c := range b.clients {
		clients = append(clients, c)
	}
	return clients
}

func (b *Broadcaster) dropSlow(c *client) {
	slog.Warn("ws client too slow, disconnecting", "conn", c.id)
	b.metrics.SlowClientDropped()
	b.RemoveClient(c)
}
