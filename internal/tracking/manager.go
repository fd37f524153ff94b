package tracking

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"example.com/wellnest/internal/domain"
	"example.com/wellnest/internal/motion"
)

// SourceFactory returns the motion source for a user.
type SourceFactory func(userID string) motion.Source

// Manager keeps one Session per user id.
type Manager struct {
	sources  SourceFactory
	recorder domain.Recorder
	cfg      Config
	logger   *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager constructs a Manager. A nil factory means no user has a motion source.
func NewManager(sources SourceFactory, recorder domain.Recorder, cfg Config, logger *zap.Logger) *Manager {
	if sources == nil {
		sources = func(string) motion.Source { return motion.UnavailableSource{} }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		sources:  sources,
		recorder: recorder,
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Session returns the owner's session, creating an idle one on first use. The owner's token replaces
// whatever token the session held before.
func (m *Manager) Session(owner domain.Owner) *Session {
	m.mu.RLock()
	s, ok := m.sessions[owner.UserID]
	m.mu.RUnlock()
	if ok {
		s.SetToken(owner.Token)
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[owner.UserID]; ok {
		s.SetToken(owner.Token)
		return s
	}
	s = NewSession(owner, m.sources(owner.UserID), m.recorder, m.cfg, WithLogger(m.logger))
	m.sessions[owner.UserID] = s
	return s
}

// Lookup returns an existing session without creating one.
func (m *Manager) Lookup(userID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[userID]
	return s, ok
}

// Close stops every tracking session, flushing final counts, and waits for queued saves.
func (m *Manager) Close() error {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
