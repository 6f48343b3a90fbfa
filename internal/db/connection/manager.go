package connection

import (
	"context"
	"sync"

	"github.com/queryowl/queryowl/internal/logger"
	"github.com/queryowl/queryowl/internal/models"
)

type dialFunc func(ctx context.Context, conn models.Connection, secretText string, limits PoolLimits) (*Session, error)

// Manager holds the single live session. Activating a different profile
// replaces the current session; there is never more than one.
type Manager struct {
	mu      sync.RWMutex
	session *Session
	limits  PoolLimits
	dial    dialFunc
}

// NewManager creates an empty manager.
func NewManager(limits PoolLimits) *Manager {
	return &Manager{
		limits: limits,
		dial:   newSession,
	}
}

// Activate dials conn and installs it as the live session. Any previous
// session is closed first; if the new dial fails, no session is live. The
// error is a classified *models.ConnectionError.
func (m *Manager) Activate(ctx context.Context, conn models.Connection, secretText string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		logger.Info("closing previous session", "connection", m.session.conn.Name)
		m.session.Close()
		m.session = nil
	}

	session, err := m.dial(ctx, conn, secretText, m.limits)
	if err != nil {
		return nil, err
	}

	m.session = session
	logger.Info("session established",
		"connection", conn.Name,
		"host", conn.Host,
		"database", conn.Database)
	return session, nil
}

// Deactivate closes the live session. Calling it with none live is a no-op.
func (m *Manager) Deactivate() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return
	}
	logger.Info("session closed", "connection", m.session.conn.Name)
	m.session.Close()
	m.session = nil
}

// Current returns the live session, or nil.
func (m *Manager) Current() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// SessionFor returns the live session if it belongs to the given profile id.
// A stale or unknown id fails fast without touching the network.
func (m *Manager) SessionFor(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.session == nil {
		return nil, &models.NoActiveConnectionError{Requested: id}
	}
	if m.session.conn.ID != id {
		return nil, &models.NoActiveConnectionError{Requested: id, Active: m.session.conn.ID}
	}
	return m.session, nil
}
