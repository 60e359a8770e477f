package wizard

import (
	"errors"
	"testing"
	"time"

	"remind/internal/notification"
	logx "remind/pkg/logx"
)

func newTestSessions(cfg SessionsConfig) *Sessions {
	factory := func() *Wizard { return newTestWizard(&fakeTemplate{}) }
	return NewSessions(factory, cfg, logx.Nop())
}

func TestSessionsCreateGetRemove(t *testing.T) {
	t.Parallel()
	s := newTestSessions(SessionsConfig{})

	id, w, err := s.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if w == nil || id == "" {
		t.Fatal("Create returned empty session")
	}

	got, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != w {
		t.Fatal("Get returned a different wizard")
	}

	s.Remove(id)
	if _, err := s.Get(id); !errors.Is(err, notification.ErrNotFound) {
		t.Fatalf("Get after Remove err = %v, want ErrNotFound", err)
	}
}

func TestSessionsIsolateDrafts(t *testing.T) {
	t.Parallel()
	s := newTestSessions(SessionsConfig{})

	_, w1, _ := s.Create()
	_, w2, _ := s.Create()

	_ = w1.SetRecipient(notification.Adhoc("Ana", "ana@x.com"))
	d2 := w2.Draft()
	if d2.HasRecipient() {
		t.Fatal("sessions share draft state")
	}
}

func TestSessionsMax(t *testing.T) {
	t.Parallel()
	s := newTestSessions(SessionsConfig{Max: 2})

	if _, _, err := s.Create(); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, _, err := s.Create(); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, _, err := s.Create(); !errors.Is(err, notification.ErrBusy) {
		t.Fatalf("third Create err = %v, want ErrBusy", err)
	}
}

func TestSessionsExpire(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := &now
	s := newTestSessions(SessionsConfig{TTL: time.Minute, Now: func() time.Time { return *clock }})

	id, _, err := s.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	later := now.Add(2 * time.Minute)
	clock = &later
	if _, err := s.Get(id); !errors.Is(err, notification.ErrNotFound) {
		t.Fatalf("expired Get err = %v, want ErrNotFound", err)
	}
	if s.Len() != 0 {
		t.Fatalf("Len = %d after expiry", s.Len())
	}
}
