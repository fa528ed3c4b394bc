// ABOUTME: Tracks live sessions for health reporting and shutdown.
// ABOUTME: Registration is keyed by session ID; sessions never see each other.

package agent

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// ErrSessionAlreadyRegistered indicates a session with the same ID is already live.
var ErrSessionAlreadyRegistered = errors.New("session already registered")

// SessionInfo is a read-only view of a live session.
type SessionInfo struct {
	ID               string    `json:"id"`
	State            State     `json:"state"`
	Turns            int       `json:"turns"`
	AwaitingApproval bool      `json:"awaiting_approval"`
	CreatedAt        time.Time `json:"created_at"`
}

// Manager coordinates all live sessions.
type Manager struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	logger   *slog.Logger
}

// NewManager creates a new Manager instance.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sessions: make(map[string]*Session),
		logger:   logger,
	}
}

// Register adds a session to the manager.
// Returns ErrSessionAlreadyRegistered if a session with the same ID exists.
func (m *Manager) Register(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[s.ID]; exists {
		return ErrSessionAlreadyRegistered
	}

	m.sessions[s.ID] = s
	m.logger.Info("=== SESSION CONNECTED ===",
		"session_id", s.ID,
		"total_sessions", len(m.sessions),
	)
	return nil
}

// Unregister removes a session from the manager.
func (m *Manager) Unregister(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, exists := m.sessions[sessionID]; exists {
		delete(m.sessions, sessionID)
		m.logger.Info("=== SESSION DISCONNECTED ===",
			"session_id", sessionID,
			"turns", s.conv.Len(),
			"duration", time.Since(s.CreatedAt).Round(time.Millisecond),
			"total_sessions", len(m.sessions),
		)
	}
}

// Get retrieves a live session by ID.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	return s, ok
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// List returns information about all live sessions, oldest first.
func (m *Manager) List() []SessionInfo {
	m.mu.RLock()
	infos := make([]SessionInfo, 0, len(m.sessions))
	for _, s := range m.sessions {
		infos = append(infos, SessionInfo{
			ID:               s.ID,
			State:            s.State(),
			Turns:            s.conv.Len(),
			AwaitingApproval: s.gate.Pending(),
			CreatedAt:        s.CreatedAt,
		})
	}
	m.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// CloseAll closes every live session's transport. Sessions unregister
// themselves as their Run loops return.
func (m *Manager) CloseAll() {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	// Each close may wait on a close handshake, so they run in parallel.
	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Close(); err != nil {
				m.logger.Warn("closing session", "session_id", s.ID, "error", err)
			}
		}()
	}
	wg.Wait()
}
