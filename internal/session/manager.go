// Package session maps browser sessions to their private prediction logs.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/Danangellotti/app-incendios-cordoba/internal/history"
)

// MetricsInterface defines metrics methods needed by the session manager
type MetricsInterface interface {
	ActiveSessionsSet(float64)
}

// Session owns one prediction log. Logs are never shared between sessions.
type Session struct {
	ID      string
	Created time.Time
	Log     *history.Log

	lastSeen time.Time
}

// Manager creates, looks up and expires sessions.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	clock    clockwork.Clock
	idle     time.Duration
	metrics  MetricsInterface
}

// NewManager returns a manager that forgets sessions idle for longer than
// idle. A zero idle timeout keeps sessions until the process exits.
func NewManager(clock clockwork.Clock, idle time.Duration, metrics MetricsInterface) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Manager{
		sessions: make(map[string]*Session),
		clock:    clock,
		idle:     idle,
		metrics:  metrics,
	}
}

// Acquire returns the live session for id, or a new session when id is empty,
// unknown or expired. created reports whether a new session was started.
func (m *Manager) Acquire(id string) (s *Session, created bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	if existing, ok := m.sessions[id]; ok && !m.expired(existing, now) {
		existing.lastSeen = now
		return existing, false
	}
	if id != "" {
		delete(m.sessions, id)
	}

	s = &Session{
		ID:       uuid.New().String(),
		Created:  now,
		Log:      history.NewLog(m.clock),
		lastSeen: now,
	}
	m.sessions[s.ID] = s
	m.reportLocked()

	log.Debug().Str("session_id", s.ID).Msg("Session started")
	return s, true
}

// Get looks up a live session without creating one.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok || m.expired(s, m.clock.Now()) {
		return nil, false
	}
	s.lastSeen = m.clock.Now()
	return s, true
}

// End discards a session and its log.
func (m *Manager) End(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; ok {
		delete(m.sessions, id)
		m.reportLocked()
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Evict drops idle sessions and returns how many were removed.
func (m *Manager) Evict() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	removed := 0
	for id, s := range m.sessions {
		if m.expired(s, now) {
			delete(m.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		m.reportLocked()
		log.Info().Int("evicted", removed).Int("active", len(m.sessions)).Msg("Idle sessions evicted")
	}
	return removed
}

// Run evicts idle sessions periodically until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	if m.idle <= 0 {
		return
	}
	interval := m.idle / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := m.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			m.Evict()
		}
	}
}

func (m *Manager) expired(s *Session, now time.Time) bool {
	return m.idle > 0 && now.Sub(s.lastSeen) > m.idle
}

func (m *Manager) reportLocked() {
	if m.metrics != nil {
		m.metrics.ActiveSessionsSet(float64(len(m.sessions)))
	}
}
