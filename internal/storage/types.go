package storage

import (
	"context"
	"time"

	"remind/internal/notification"
)

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file
//   - "memory": in-process store
//
// If Driver is empty, sqlite is used.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the persistence API used by the lifecycle manager. All
// operations are scoped to an opaque org id supplied by the caller; the
// store never manages tenancy itself.
//
// Missing rows surface notification.ErrNotFound (wrapped).
type Store interface {
	Create(ctx context.Context, n notification.Notification) error
	Get(ctx context.Context, orgID, id string) (notification.Notification, error)
	// List returns the org's notifications in creation order.
	List(ctx context.Context, orgID string) ([]notification.Notification, error)
	// Update replaces the stored row for n.ID.
	Update(ctx context.Context, n notification.Notification) error
	Delete(ctx context.Context, orgID, id string) error
	Close() error
}
