package storage

import (
	"context"
	"fmt"
	"sync"

	"remind/internal/notification"
)

// memoryStore keeps notifications in insertion order per org so the
// listing projection sees stable ordering, same as the sqlite rowid order.
type memoryStore struct {
	mu    sync.RWMutex
	byOrg map[string][]notification.Notification
}

// NewMemory returns an in-process store. Useful for tests and the
// "memory" storage driver.
func NewMemory() Store {
	return &memoryStore{byOrg: map[string][]notification.Notification{}}
}

func (s *memoryStore) Create(ctx context.Context, n notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, have := range s.byOrg[n.OrgID] {
		if have.ID == n.ID {
			return fmt.Errorf("create %s: duplicate id", n.ID)
		}
	}
	s.byOrg[n.OrgID] = append(s.byOrg[n.OrgID], n)
	return nil
}

func (s *memoryStore) Get(ctx context.Context, orgID, id string) (notification.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.byOrg[orgID] {
		if n.ID == id {
			return n, nil
		}
	}
	return notification.Notification{}, fmt.Errorf("get %s: %w", id, notification.ErrNotFound)
}

func (s *memoryStore) List(ctx context.Context, orgID string) ([]notification.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]notification.Notification, len(s.byOrg[orgID]))
	copy(out, s.byOrg[orgID])
	return out, nil
}

func (s *memoryStore) Update(ctx context.Context, n notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.byOrg[n.OrgID]
	for i := range items {
		if items[i].ID == n.ID {
			items[i] = n
			return nil
		}
	}
	return fmt.Errorf("update %s: %w", n.ID, notification.ErrNotFound)
}

func (s *memoryStore) Delete(ctx context.Context, orgID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.byOrg[orgID]
	for i := range items {
		if items[i].ID == id {
			s.byOrg[orgID] = append(items[:i:i], items[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("delete %s: %w", id, notification.ErrNotFound)
}

func (s *memoryStore) Close() error { return nil }
