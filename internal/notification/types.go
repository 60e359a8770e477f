package notification

import (
	"fmt"
	"strings"
	"time"
)

// RecipientKind discriminates the Recipient union.
type RecipientKind string

const (
	// RecipientRegistered references a directory-managed contact record.
	RecipientRegistered RecipientKind = "registered"
	// RecipientAdhoc is a free-form (name, address) pair owned by the
	// notification itself.
	RecipientAdhoc RecipientKind = "adhoc"
)

// Recipient is a tagged union: exactly one variant is populated.
//
// Use Registered() or Adhoc() to construct; they zero the other variant's
// fields so a notification can never carry both a contact reference and
// adhoc fields at once.
type Recipient struct {
	Kind      RecipientKind `json:"kind"`
	ContactID string        `json:"contact_id,omitempty"`
	Name      string        `json:"name,omitempty"`
	Address   string        `json:"address,omitempty"`
}

func Registered(contactID string) Recipient {
	return Recipient{Kind: RecipientRegistered, ContactID: contactID}
}

func Adhoc(name, address string) Recipient {
	return Recipient{Kind: RecipientAdhoc, Name: name, Address: address}
}

// Validate checks the exactly-one-variant invariant. It also catches
// hand-built or deserialized values that bypassed the constructors.
func (r Recipient) Validate() error {
	switch r.Kind {
	case RecipientRegistered:
		if strings.TrimSpace(r.ContactID) == "" {
			return fmt.Errorf("registered recipient: contact id is empty")
		}
		if r.Name != "" || r.Address != "" {
			return fmt.Errorf("registered recipient: adhoc fields must be empty")
		}
	case RecipientAdhoc:
		if strings.TrimSpace(r.Name) == "" || strings.TrimSpace(r.Address) == "" {
			return fmt.Errorf("adhoc recipient: name and address are required")
		}
		if r.ContactID != "" {
			return fmt.Errorf("adhoc recipient: contact id must be empty")
		}
	default:
		return fmt.Errorf("recipient: unknown kind %q", r.Kind)
	}
	return nil
}

func (r Recipient) IsZero() bool { return r.Kind == "" }

// DisplayInfo is the uniform {name, address} shape projections match
// against, regardless of recipient variant.
type DisplayInfo struct {
	Name    string
	Address string
}

// Display resolves the recipient to a DisplayInfo. Registered recipients
// are resolved through the supplied lookup; when the contact is gone the
// contact id doubles as the display name so the row stays renderable.
func (r Recipient) Display(resolve func(contactID string) (DisplayInfo, bool)) DisplayInfo {
	if r.Kind == RecipientAdhoc {
		return DisplayInfo{Name: r.Name, Address: r.Address}
	}
	if resolve != nil {
		if info, ok := resolve(r.ContactID); ok {
			return info
		}
	}
	return DisplayInfo{Name: r.ContactID}
}

// Status is the lifecycle state of a persisted notification.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusSent, StatusFailed, StatusCancelled:
		return st, nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

// Terminal reports whether the status accepts no further transitions.
// Delete is still allowed from terminal states; it removes the record
// rather than transitioning it.
func (s Status) Terminal() bool {
	return s == StatusSent || s == StatusFailed || s == StatusCancelled
}

// CanTransitionTo reports whether s -> next is a legal status change.
// The only legal source state is Pending.
func (s Status) CanTransitionTo(next Status) bool {
	if s != StatusPending {
		return false
	}
	switch next {
	case StatusSent, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Notification is the persisted aggregate. It is created by the lifecycle
// manager from a completed draft and never touched by the wizard again.
type Notification struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"org_id"`
	Recipient Recipient `json:"recipient"`

	Subject string `json:"subject"`
	Body    string `json:"body"`

	// RenderedTemplate is the AI-drafted rich content; empty means none
	// was generated.
	RenderedTemplate string `json:"rendered_template,omitempty"`

	ScheduledAt time.Time  `json:"scheduled_at"`
	Recurrence  Recurrence `json:"recurrence"`
	Status      Status     `json:"status"`

	SentAt       *time.Time `json:"sent_at,omitempty"`
	SendCount    int        `json:"send_count"`
	ErrorMessage string     `json:"error_message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Patch describes an edit to a pending notification. Nil fields are left
// untouched. Status, SentAt and ErrorMessage are deliberately absent:
// those move only through the lifecycle manager's transition paths.
type Patch struct {
	Recipient        *Recipient  `json:"recipient,omitempty"`
	Subject          *string     `json:"subject,omitempty"`
	Body             *string     `json:"body,omitempty"`
	RenderedTemplate *string     `json:"rendered_template,omitempty"`
	ScheduledAt      *time.Time  `json:"scheduled_at,omitempty"`
	Recurrence       *Recurrence `json:"recurrence,omitempty"`
}

func (p Patch) IsZero() bool {
	return p.Recipient == nil && p.Subject == nil && p.Body == nil &&
		p.RenderedTemplate == nil && p.ScheduledAt == nil && p.Recurrence == nil
}

// Apply copies the patch onto n and bumps UpdatedAt.
func (p Patch) Apply(n *Notification, now time.Time) {
	if p.Recipient != nil {
		n.Recipient = *p.Recipient
	}
	if p.Subject != nil {
		n.Subject = *p.Subject
	}
	if p.Body != nil {
		n.Body = *p.Body
	}
	if p.RenderedTemplate != nil {
		n.RenderedTemplate = *p.RenderedTemplate
	}
	if p.ScheduledAt != nil {
		n.ScheduledAt = *p.ScheduledAt
	}
	if p.Recurrence != nil {
		n.Recurrence = *p.Recurrence
	}
	n.UpdatedAt = now.UTC()
}
