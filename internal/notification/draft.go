package notification

import (
	"strings"
	"time"
)

// Draft is the in-progress, not-yet-persisted notification assembled by
// the wizard. It is mutable and wizard-scoped; completion hands an
// immutable snapshot to the lifecycle manager.
type Draft struct {
	Recipient        Recipient
	Subject          string
	Body             string
	RenderedTemplate string
	ScheduledAt      time.Time
	Recurrence       Recurrence
}

func NewDraft() *Draft {
	return &Draft{Recurrence: RecurrenceOnce}
}

// Reset clears all fields back to the initial state.
func (d *Draft) Reset() {
	*d = Draft{Recurrence: RecurrenceOnce}
}

// Snapshot returns an immutable copy for hand-off on wizard completion.
func (d *Draft) Snapshot() Draft { return *d }

// ---- per-step validity predicates ----

func (d *Draft) HasRecipient() bool {
	return !d.Recipient.IsZero() && d.Recipient.Validate() == nil
}

func (d *Draft) HasMessage() bool {
	return strings.TrimSpace(d.Subject) != "" && strings.TrimSpace(d.Body) != ""
}

func (d *Draft) HasTemplate() bool {
	return d.RenderedTemplate != ""
}

// HasFutureSchedule reports whether a send time is set and not in the
// past relative to now.
func (d *Draft) HasFutureSchedule(now time.Time) bool {
	return !d.ScheduledAt.IsZero() && !d.ScheduledAt.Before(now)
}
