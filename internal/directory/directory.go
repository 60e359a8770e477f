// Package directory resolves notification targets: either a selection out
// of an externally supplied contact list, or typed free text turned into
// an adhoc recipient. It has no persistence of its own.
package directory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"remind/internal/notification"
)

// Contact is an externally-owned contact record.
type Contact struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
}

// Directory is the contact-list collaborator consumed by the wizard's
// recipient step. Search matches a case-insensitive substring against
// both name and address; an empty query returns everything.
type Directory interface {
	Search(ctx context.Context, query string) ([]Contact, error)
	Get(ctx context.Context, id string) (Contact, bool, error)
}

// ResolveSelection produces a registered recipient from a directory pick.
func ResolveSelection(c Contact) (notification.Recipient, error) {
	if strings.TrimSpace(c.ID) == "" {
		return notification.Recipient{}, fmt.Errorf("contact has no id")
	}
	return notification.Registered(c.ID), nil
}

// ResolveFreeText produces an adhoc recipient from typed input.
func ResolveFreeText(name, address string) (notification.Recipient, error) {
	name = strings.TrimSpace(name)
	address = strings.TrimSpace(address)
	if name == "" {
		return notification.Recipient{}, fmt.Errorf("recipient name is required")
	}
	if address == "" {
		return notification.Recipient{}, fmt.Errorf("recipient address is required")
	}
	// Minimal sanity check only; address semantics belong to the sender.
	if strings.ContainsAny(address, " \t\n") {
		return notification.Recipient{}, fmt.Errorf("recipient address %q contains whitespace", address)
	}
	return notification.Adhoc(name, address), nil
}

// Lookup adapts a Directory into the resolve function used by display
// projections. Lookup failures degrade to "not found" so a projection
// never errors on a stale contact reference.
func Lookup(ctx context.Context, dir Directory) func(contactID string) (notification.DisplayInfo, bool) {
	return func(contactID string) (notification.DisplayInfo, bool) {
		if dir == nil {
			return notification.DisplayInfo{}, false
		}
		c, ok, err := dir.Get(ctx, contactID)
		if err != nil || !ok {
			return notification.DisplayInfo{}, false
		}
		return notification.DisplayInfo{Name: c.Name, Address: c.Address}, true
	}
}

// ---- in-memory implementation ----

type memDirectory struct {
	mu       sync.RWMutex
	contacts map[string]Contact
}

// NewMemory returns an in-memory Directory, seeded with the given
// contacts. Handy for tests and for callers that push a contact list in
// from an external CRM sync.
func NewMemory(seed ...Contact) *memDirectory {
	d := &memDirectory{contacts: map[string]Contact{}}
	for _, c := range seed {
		d.contacts[c.ID] = c
	}
	return d
}

func (d *memDirectory) Put(c Contact) {
	d.mu.Lock()
	d.contacts[c.ID] = c
	d.mu.Unlock()
}

func (d *memDirectory) Get(ctx context.Context, id string) (Contact, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.contacts[id]
	return c, ok, nil
}

func (d *memDirectory) Search(ctx context.Context, query string) ([]Contact, error) {
	q := strings.ToLower(strings.TrimSpace(query))

	d.mu.RLock()
	out := make([]Contact, 0, len(d.contacts))
	for _, c := range d.contacts {
		if q == "" ||
			strings.Contains(strings.ToLower(c.Name), q) ||
			strings.Contains(strings.ToLower(c.Address), q) {
			out = append(out, c)
		}
	}
	d.mu.RUnlock()

	// Oldest first, id as tie-breaker, so selection lists are stable.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
