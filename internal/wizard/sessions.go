package wizard

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"remind/internal/notification"
	logx "remind/pkg/logx"
)

// Sessions is an arena of concurrent drafts keyed by session id, so each
// open wizard (tab, device) carries its own draft and its own in-flight
// flag instead of sharing ambient mutable state.
type Sessions struct {
	mu    sync.Mutex
	items map[string]*session

	newWizard func() *Wizard
	ttl       time.Duration
	max       int
	now       func() time.Time
	log       logx.Logger
}

type session struct {
	w        *Wizard
	lastSeen time.Time
}

// SessionsConfig tunes the arena. TTL <= 0 disables expiry; Max <= 0
// means 64 concurrent sessions.
type SessionsConfig struct {
	TTL time.Duration
	Max int
	Now func() time.Time
}

func NewSessions(newWizard func() *Wizard, cfg SessionsConfig, log logx.Logger) *Sessions {
	if cfg.Max <= 0 {
		cfg.Max = 64
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Sessions{
		items:     map[string]*session{},
		newWizard: newWizard,
		ttl:       cfg.TTL,
		max:       cfg.Max,
		now:       cfg.Now,
		log:       log,
	}
}

// Create opens a fresh draft session and returns its id.
func (s *Sessions) Create() (string, *Wizard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()

	if len(s.items) >= s.max {
		return "", nil, fmt.Errorf("%w: too many open draft sessions", notification.ErrBusy)
	}

	id := uuid.NewString()
	w := s.newWizard()
	s.items[id] = &session{w: w, lastSeen: s.now()}
	s.log.Debug("wizard session opened", logx.String("session", id), logx.Int("open", len(s.items)))
	return id, w, nil
}

// Get returns the session's wizard and refreshes its expiry.
func (s *Sessions) Get(id string) (*Wizard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()

	it, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, notification.ErrNotFound)
	}
	it.lastSeen = s.now()
	return it.w, nil
}

// Remove drops the session (wizard cancelled or completed).
func (s *Sessions) Remove(id string) {
	s.mu.Lock()
	if _, ok := s.items[id]; ok {
		delete(s.items, id)
		s.log.Debug("wizard session closed", logx.String("session", id), logx.Int("open", len(s.items)))
	}
	s.mu.Unlock()
}

// Len reports the number of open sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Sessions) pruneLocked() {
	if s.ttl <= 0 {
		return
	}
	cutoff := s.now().Add(-s.ttl)
	for id, it := range s.items {
		if it.lastSeen.Before(cutoff) {
			delete(s.items, id)
			s.log.Debug("wizard session expired", logx.String("session", id))
		}
	}
}
