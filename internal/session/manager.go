// Package session tracks live connections and ties admin rights to their
// lifetime: a disconnect always revokes.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/votecast/backend/internal/auth"
	"github.com/votecast/backend/internal/connid"
	"github.com/votecast/backend/internal/metrics"
)

// SnapshotSender delivers the current snapshot to a single connection.
type SnapshotSender interface {
	SendSnapshotTo(id connid.ID) error
}

type Manager struct {
	mu       sync.RWMutex
	sessions map[connid.ID]*Session

	registry *auth.Registry
	sender   SnapshotSender
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewManager(registry *auth.Registry, sender SnapshotSender, m *metrics.Metrics) *Manager {
	return &Manager{
		sessions: make(map[connid.ID]*Session),
		registry: registry,
		sender:   sender,
		metrics:  m,
		now:      time.Now,
	}
}

// OnConnect records a new unauthorized session for id and sends it the
// current snapshot.
func (m *Manager) OnConnect(id connid.ID, remoteAddr string) Session {
	s := &Session{
		ID:          id,
		RemoteAddr:  remoteAddr,
		ConnectedAt: m.now(),
	}

	m.mu.Lock()
	m.sessions[id] = s
	active := len(m.sessions)
	m.mu.Unlock()

	m.metrics.SetConnections(active, m.AuthorizedCount())
	slog.Info("client connected", "conn", id, "remote", remoteAddr)

	if m.sender != nil {
		if err := m.sender.SendSnapshotTo(id); err != nil {
			slog.Warn("initial snapshot not delivered", "conn", id, "error", err)
		}
	}
	return *s
}

// OnDisconnect revokes id's rights and forgets the session. Calling it more
// than once, or for an unknown id, is harmless.
func (m *Manager) OnDisconnect(id connid.ID) {
	wasAdmin := m.registry.IsAuthorized(id)
	m.registry.Revoke(id)

	m.mu.Lock()
	_, known := m.sessions[id]
	delete(m.sessions, id)
	active := len(m.sessions)
	m.mu.Unlock()

	m.metrics.SetConnections(active, m.AuthorizedCount())
	if !known {
		return
	}
	if wasAdmin {
		slog.Info("admin disconnected", "conn", id)
	}
	slog.Info("client disconnected", "conn", id)
}

// Refresh re-reads the registry after an authorization exchange so the
// connection gauges stay current.
func (m *Manager) Refresh() {
	m.metrics.SetConnections(m.Count(), m.AuthorizedCount())
}

// Get returns a copy of id's session with its current authorization.
func (m *Manager) Get(id connid.ID) (Session, bool) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return Session{}, false
	}
	cp := *s
	cp.Authorized = m.registry.IsAuthorized(id)
	return cp, true
}

// StateOf reports where id is in its lifecycle. Unknown ids are
// Disconnected.
func (m *Manager) StateOf(id connid.ID) State {
	s, ok := m.Get(id)
	if !ok {
		return Disconnected
	}
	return s.State()
}

func (m *Manager) All() []Session {
	m.mu.RLock()
	ids := make([]connid.ID, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	result := make([]Session, 0, len(ids))
	for _, id := range ids {
		if s, ok := m.Get(id); ok {
			result = append(result, s)
		}
	}
	return result
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// AuthorizedCount is the number of live sessions that hold admin rights.
// Registry entries without a session, such as the mock feeder, are not
// counted.
func (m *Manager) AuthorizedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for id := range m.sessions {
		if m.registry.IsAuthorized(id) {
			n++
		}
	}
	return n
}
