// Package lifecycle owns a persisted notification's status state machine
// and the allowed mutations. The wizard assembles drafts; once a draft is
// handed over here it becomes a pending notification and every further
// change flows through the Manager.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"remind/internal/eventbus"
	"remind/internal/notification"
	"remind/internal/storage"
	logx "remind/pkg/logx"
)

// Event types published on the bus for every committed mutation.
const (
	EventCreated   = "notification.created"
	EventUpdated   = "notification.updated"
	EventCancelled = "notification.cancelled"
	EventDeleted   = "notification.deleted"
	EventSent      = "notification.sent"
	EventFailed    = "notification.failed"
)

type Manager struct {
	store storage.Store
	bus   eventbus.Bus
	log   logx.Logger

	now   func() time.Time
	newID func() string

	// busy tracks in-flight mutations per org/id so racing operations
	// (cancel vs delete, double-click) fail fast instead of interleaving.
	busyMu sync.Mutex
	busy   map[string]struct{}
}

func NewManager(store storage.Store, bus eventbus.Bus, log logx.Logger) *Manager {
	return &Manager{
		store: store,
		bus:   bus,
		log:   log,
		now:   time.Now,
		newID: uuid.NewString,
		busy:  map[string]struct{}{},
	}
}

// SetClock overrides the clock; tests only.
func (m *Manager) SetClock(now func() time.Time) { m.now = now }

func busyKey(orgID, id string) string { return orgID + "/" + id }

func (m *Manager) acquire(orgID, id string) error {
	key := busyKey(orgID, id)
	m.busyMu.Lock()
	defer m.busyMu.Unlock()
	if _, inFlight := m.busy[key]; inFlight {
		return fmt.Errorf("notification %s: %w", id, notification.ErrBusy)
	}
	m.busy[key] = struct{}{}
	return nil
}

func (m *Manager) release(orgID, id string) {
	m.busyMu.Lock()
	delete(m.busy, busyKey(orgID, id))
	m.busyMu.Unlock()
}

func (m *Manager) publish(eventType string, n notification.Notification) {
	if m.bus != nil {
		m.bus.Publish(eventbus.Event{Type: eventType, Data: n})
	}
}

// CreateFromDraft persists a completed wizard draft as a pending
// notification. The draft is checked again here: the manager is the
// write boundary, not the wizard.
func (m *Manager) CreateFromDraft(ctx context.Context, orgID string, d notification.Draft) (notification.Notification, error) {
	if err := d.Recipient.Validate(); err != nil {
		return notification.Notification{}, fmt.Errorf("create: %w", err)
	}
	if !d.HasMessage() {
		return notification.Notification{}, fmt.Errorf("create: subject and body are required")
	}
	if d.ScheduledAt.IsZero() {
		return notification.Notification{}, fmt.Errorf("create: schedule time is required")
	}
	if !d.Recurrence.Valid() {
		return notification.Notification{}, fmt.Errorf("create: unknown recurrence %q", d.Recurrence)
	}

	now := m.now().UTC()
	n := notification.Notification{
		ID:               m.newID(),
		OrgID:            orgID,
		Recipient:        d.Recipient,
		Subject:          d.Subject,
		Body:             d.Body,
		RenderedTemplate: d.RenderedTemplate,
		ScheduledAt:      d.ScheduledAt.UTC(),
		Recurrence:       d.Recurrence,
		Status:           notification.StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := m.store.Create(ctx, n); err != nil {
		return notification.Notification{}, err
	}

	m.log.Info("notification created",
		logx.String("id", n.ID), logx.String("org", orgID),
		logx.String("recurrence", string(n.Recurrence)), logx.Time("scheduled_at", n.ScheduledAt))
	m.publish(EventCreated, n)
	return n, nil
}

// List returns the org's notifications in creation order.
func (m *Manager) List(ctx context.Context, orgID string) ([]notification.Notification, error) {
	return m.store.List(ctx, orgID)
}

// Get returns one notification.
func (m *Manager) Get(ctx context.Context, orgID, id string) (notification.Notification, error) {
	return m.store.Get(ctx, orgID, id)
}

// Cancel moves a pending notification to cancelled. Anything else is an
// invalid transition, reported, never silently absorbed.
func (m *Manager) Cancel(ctx context.Context, orgID, id string) (notification.Notification, error) {
	if err := m.acquire(orgID, id); err != nil {
		return notification.Notification{}, err
	}
	defer m.release(orgID, id)

	n, err := m.store.Get(ctx, orgID, id)
	if err != nil {
		return notification.Notification{}, err
	}
	if !n.Status.CanTransitionTo(notification.StatusCancelled) {
		return notification.Notification{}, fmt.Errorf("cancel %s (status %s): %w", id, n.Status, notification.ErrInvalidTransition)
	}

	n.Status = notification.StatusCancelled
	n.UpdatedAt = m.now().UTC()
	if err := m.store.Update(ctx, n); err != nil {
		return notification.Notification{}, err
	}

	m.log.Info("notification cancelled", logx.String("id", id), logx.String("org", orgID))
	m.publish(EventCancelled, n)
	return n, nil
}

// Delete removes the record entirely. Permitted from any status,
// including pending; a missing record reports ErrNotFound so concurrent
// deletes surface as conflicts.
func (m *Manager) Delete(ctx context.Context, orgID, id string) error {
	if err := m.acquire(orgID, id); err != nil {
		return err
	}
	defer m.release(orgID, id)

	n, err := m.store.Get(ctx, orgID, id)
	if err != nil {
		return err
	}
	if err := m.store.Delete(ctx, orgID, id); err != nil {
		return err
	}

	m.log.Info("notification deleted", logx.String("id", id), logx.String("org", orgID), logx.String("status", string(n.Status)))
	m.publish(EventDeleted, n)
	return nil
}

// Edit patches a pending notification. Editing never changes status, and
// a non-pending notification is not editable.
func (m *Manager) Edit(ctx context.Context, orgID, id string, p notification.Patch) (notification.Notification, error) {
	if p.IsZero() {
		return notification.Notification{}, fmt.Errorf("edit %s: empty patch", id)
	}
	if p.Recipient != nil {
		if err := p.Recipient.Validate(); err != nil {
			return notification.Notification{}, fmt.Errorf("edit %s: %w", id, err)
		}
	}
	if p.Recurrence != nil && !p.Recurrence.Valid() {
		return notification.Notification{}, fmt.Errorf("edit %s: unknown recurrence %q", id, *p.Recurrence)
	}
	if p.ScheduledAt != nil && p.ScheduledAt.IsZero() {
		return notification.Notification{}, fmt.Errorf("edit %s: schedule time is required", id)
	}

	if err := m.acquire(orgID, id); err != nil {
		return notification.Notification{}, err
	}
	defer m.release(orgID, id)

	n, err := m.store.Get(ctx, orgID, id)
	if err != nil {
		return notification.Notification{}, err
	}
	if n.Status != notification.StatusPending {
		return notification.Notification{}, fmt.Errorf("edit %s (status %s): %w", id, n.Status, notification.ErrInvalidTransition)
	}

	p.Apply(&n, m.now())
	if err := m.store.Update(ctx, n); err != nil {
		return notification.Notification{}, err
	}

	m.log.Info("notification edited", logx.String("id", id), logx.String("org", orgID))
	m.publish(EventUpdated, n)
	return n, nil
}

// RecordOutcome is the external sender's hook: it commits the
// pending -> sent or pending -> failed transition. It is deliberately not
// mapped on the HTTP surface, the UI cannot force it.
func (m *Manager) RecordOutcome(ctx context.Context, orgID, id string, outcome notification.Status, errorMessage string, at time.Time) (notification.Notification, error) {
	if outcome != notification.StatusSent && outcome != notification.StatusFailed {
		return notification.Notification{}, fmt.Errorf("record outcome %s: %w", outcome, notification.ErrInvalidTransition)
	}
	if err := m.acquire(orgID, id); err != nil {
		return notification.Notification{}, err
	}
	defer m.release(orgID, id)

	n, err := m.store.Get(ctx, orgID, id)
	if err != nil {
		return notification.Notification{}, err
	}
	if !n.Status.CanTransitionTo(outcome) {
		return notification.Notification{}, fmt.Errorf("record outcome %s (status %s): %w", id, n.Status, notification.ErrInvalidTransition)
	}

	if at.IsZero() {
		at = m.now()
	}
	at = at.UTC()
	n.Status = outcome
	n.UpdatedAt = m.now().UTC()
	switch outcome {
	case notification.StatusSent:
		n.SentAt = &at
		n.SendCount++
		n.ErrorMessage = ""
	case notification.StatusFailed:
		n.ErrorMessage = errorMessage
	}
	if err := m.store.Update(ctx, n); err != nil {
		return notification.Notification{}, err
	}

	event := EventSent
	if outcome == notification.StatusFailed {
		event = EventFailed
	}
	m.log.Info("notification outcome recorded",
		logx.String("id", id), logx.String("org", orgID), logx.String("status", string(outcome)))
	m.publish(event, n)
	return n, nil
}

// NextFire computes the next conceptual occurrence for list rendering.
// Actual re-firing is the external scheduler's job.
//
// Cancelled and failed notifications never fire again; a sent once-only
// notification is done for good.
func NextFire(n notification.Notification, after time.Time) (time.Time, bool) {
	switch n.Status {
	case notification.StatusPending:
		return n.Recurrence.Next(n.ScheduledAt, after)
	case notification.StatusSent:
		if n.Recurrence == notification.RecurrenceOnce {
			return time.Time{}, false
		}
		base := n.ScheduledAt
		if n.SentAt != nil && n.SentAt.After(after) {
			after = *n.SentAt
		}
		return n.Recurrence.Next(base, after)
	default:
		return time.Time{}, false
	}
}
