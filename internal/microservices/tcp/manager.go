package tcp

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"stockhub/internal/metrics"
	"stockhub/internal/protocol"
)

// ErrAlreadyConnected is returned by Register when the identity already has a session.
var ErrAlreadyConnected = errors.New("a client is already connected with this identity")

const presenceTimeout = 2 * time.Second

// ConnectionManager tracks open connections and the registry of
// authenticated sessions, keyed by identity. One mutex guards the maps so the
// duplicate check and the reservation of Register happen as one step.
type ConnectionManager struct {
	mu sync.RWMutex
	// every open connection by client id, authenticated or not
	clients map[string]*ClientConnection
	// authenticated connections by identity
	sessions map[string]*ClientConnection
	// identities whose presence claim is in flight
	pending  map[string]struct{}
	presence Presence // optional cross-process mirror
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// constructor for ConnectionManager; presence may be nil
func NewConnectionManager(logger *slog.Logger, presence Presence, m *metrics.Metrics) *ConnectionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConnectionManager{
		clients:  make(map[string]*ClientConnection),
		sessions: make(map[string]*ClientConnection),
		pending:  make(map[string]struct{}),
		presence: presence,
		logger:   logger,
		metrics:  m,
	}
}

// method to add a new connection
func (m *ConnectionManager) AddConnection(client *ClientConnection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[client.ID] = client
	m.metrics.ConnectionOpened()
	m.logger.Info("client_added",
		"client_id", client.ID,
	)
}

// method to remove a connection
func (m *ConnectionManager) RemoveConnection(client *ClientConnection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clients[client.ID]; !ok {
		return
	}
	delete(m.clients, client.ID)
	m.metrics.ConnectionClosed()
	m.logger.Info("client_removed",
		"client_id", client.ID,
	)
}

// Register binds sess to client unless its identity already has a session,
// here or, with a presence mirror, on another server. The identity is
// reserved locally while the mirror is asked, without holding the lock.
func (m *ConnectionManager) Register(ctx context.Context, client *ClientConnection, sess *Session) error {
	m.mu.Lock()
	if m.taken(sess.Identity) {
		m.mu.Unlock()
		return ErrAlreadyConnected
	}
	if m.presence == nil {
		m.bind(client, sess)
		m.mu.Unlock()
		return nil
	}
	m.pending[sess.Identity] = struct{}{}
	m.mu.Unlock()

	pctx, cancel := context.WithTimeout(ctx, presenceTimeout)
	claimed, err := m.presence.Claim(pctx, sess.Identity, client.ID)
	cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, sess.Identity)
	switch {
	case err != nil:
		// the local maps still guarantee uniqueness inside this process
		m.logger.Warn("presence_claim_failed",
			"identity", sess.Identity,
			"error", err.Error(),
		)
	case !claimed:
		return ErrAlreadyConnected
	}
	m.bind(client, sess)
	return nil
}

// taken must be called with mu held.
func (m *ConnectionManager) taken(identity string) bool {
	if _, ok := m.sessions[identity]; ok {
		return true
	}
	_, ok := m.pending[identity]
	return ok
}

// bind must be called with mu held.
func (m *ConnectionManager) bind(client *ClientConnection, sess *Session) {
	m.sessions[sess.Identity] = client
	client.session = sess
	m.metrics.SessionRegistered()
	m.logger.Info("session_registered",
		"client_id", client.ID,
		"identity", sess.Identity,
		"is_admin", sess.IsAdmin,
	)
}

// Unregister drops the session of client, if it is still the registered one.
func (m *ConnectionManager) Unregister(ctx context.Context, client *ClientConnection) {
	m.mu.Lock()
	sess := client.session
	if sess == nil {
		m.mu.Unlock()
		return
	}
	if current, ok := m.sessions[sess.Identity]; !ok || current != client {
		m.mu.Unlock()
		return
	}
	delete(m.sessions, sess.Identity)
	m.metrics.SessionUnregistered()
	m.mu.Unlock()

	if m.presence != nil {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), presenceTimeout)
		if err := m.presence.Release(pctx, sess.Identity, client.ID); err != nil {
			m.logger.Warn("presence_release_failed",
				"identity", sess.Identity,
				"error", err.Error(),
			)
		}
		cancel()
	}
	m.logger.Info("session_unregistered",
		"client_id", client.ID,
		"identity", sess.Identity,
	)
}

// Touch extends the presence claim of an authenticated client.
func (m *ConnectionManager) Touch(ctx context.Context, client *ClientConnection) {
	if m.presence == nil || client.session == nil {
		return
	}
	pctx, cancel := context.WithTimeout(ctx, presenceTimeout)
	defer cancel()
	if err := m.presence.Refresh(pctx, client.session.Identity, client.ID); err != nil {
		m.logger.Warn("presence_refresh_failed",
			"identity", client.session.Identity,
			"error", err.Error(),
		)
	}
}

// IsConnected reports whether identity has a registered session here.
func (m *ConnectionManager) IsConnected(identity string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[identity]
	return ok
}

// Count returns the number of registered sessions.
func (m *ConnectionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// ConnectionCount returns the number of open connections.
func (m *ConnectionManager) ConnectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// Snapshot returns the registered sessions sorted by identity.
func (m *ConnectionManager) Snapshot() []Session {
	m.mu.RLock()
	out := make([]Session, 0, len(m.sessions))
	for _, c := range m.sessions {
		out = append(out, *c.session)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Identity < out[j].Identity })
	return out
}

// Broadcast writes msg to every open connection, best effort.
func (m *ConnectionManager) Broadcast(msg *protocol.Message) {
	m.mu.RLock()
	targets := make([]*ClientConnection, 0, len(m.clients))
	for _, c := range m.clients {
		targets = append(targets, c)
	}
	m.mu.RUnlock()

	for _, c := range targets {
		if err := c.Send(msg); err != nil {
			m.logger.Warn("failed_to_send_broadcast",
				"client_id", c.ID,
				"error", err.Error(),
			)
		}
	}
}

// method to close all connections; their workers tear down on the next read
func (m *ConnectionManager) CloseAllConnections() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id, client := range m.clients {
		client.Close()
		m.logger.Info("client_connection_closed",
			"client_id", id,
		)
	}
}
