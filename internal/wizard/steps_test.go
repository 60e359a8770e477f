package wizard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"remind/internal/notification"
	"remind/internal/template"
	logx "remind/pkg/logx"
)

type fakeTemplate struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (f *fakeTemplate) Generate(ctx context.Context, req template.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return "", fmt.Errorf("%w: upstream 500", notification.ErrGenerationFailed)
	}
	return fmt.Sprintf("<p>render %d of %s</p>", f.calls, req.Subject), nil
}

func (f *fakeTemplate) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestWizard(tmpl template.Service) *Wizard {
	return New(tmpl, Config{BusinessName: "Chayo", Now: testClock(testNow)}, logx.Nop())
}

// mustAdvance drives one GoNext and fails the test unless it advanced.
func mustAdvance(t *testing.T, w *Wizard) {
	t.Helper()
	out, err := w.GoNext(context.Background())
	if err != nil {
		t.Fatalf("GoNext from step %d: %v", w.Current(), err)
	}
	if !out.Advanced {
		t.Fatalf("GoNext from step %d did not advance", w.Current())
	}
}

func TestReminderFlowCompletes(t *testing.T) {
	t.Parallel()
	tmpl := &fakeTemplate{}
	w := newTestWizard(tmpl)

	if got := len(w.Steps()); got != 5 {
		t.Fatalf("steps = %d, want 5", got)
	}

	// Step 1: recipient.
	if out, err := w.GoNext(context.Background()); err != nil || out.Advanced {
		t.Fatalf("advance without recipient = (%+v, %v)", out, err)
	}
	if err := w.SetRecipient(notification.Adhoc("Ana", "ana@x.com")); err != nil {
		t.Fatalf("SetRecipient: %v", err)
	}
	mustAdvance(t, w)

	// Step 2: message.
	w.SetMessage("Reminder", "Your appointment is tomorrow")
	mustAdvance(t, w)

	// Step 3: template — the guard generates on first advance.
	mustAdvance(t, w)
	if tmpl.callCount() != 1 {
		t.Fatalf("template calls = %d, want 1", tmpl.callCount())
	}
	dTmpl := w.Draft()
	if !dTmpl.HasTemplate() {
		t.Fatal("guard did not store the rendered template")
	}

	// Step 4: recurrence is always valid (defaults to once).
	mustAdvance(t, w)

	// Step 5: schedule.
	if err := w.SetSchedule(testNow.Add(24 * time.Hour)); err != nil {
		t.Fatalf("SetSchedule: %v", err)
	}
	out, err := w.GoNext(context.Background())
	if err != nil {
		t.Fatalf("final GoNext: %v", err)
	}
	if !out.Completed {
		t.Fatal("wizard did not complete")
	}

	d := out.Draft
	if d.Recipient.Name != "Ana" || d.Subject != "Reminder" || d.Recurrence != notification.RecurrenceOnce {
		t.Fatalf("completed draft = %+v", d)
	}
	if !d.HasTemplate() {
		t.Fatal("completed draft lost its template")
	}

	// Completion implicitly resets.
	dReset := w.Draft()
	if w.Current() != 0 || dReset.HasRecipient() {
		t.Fatal("wizard did not reset after completion")
	}
}

func TestTemplateGuardFailureStaysOnStep(t *testing.T) {
	t.Parallel()
	tmpl := &fakeTemplate{fail: true}
	w := newTestWizard(tmpl)

	_ = w.SetRecipient(notification.Adhoc("Ana", "ana@x.com"))
	mustAdvance(t, w)
	w.SetMessage("Reminder", "body")
	mustAdvance(t, w)

	out, err := w.GoNext(context.Background())
	if !errors.Is(err, notification.ErrGenerationFailed) {
		t.Fatalf("err = %v, want ErrGenerationFailed", err)
	}
	if out.Advanced || w.Current() != templateStepIndex {
		t.Fatalf("wizard moved on guard failure: %+v, current=%d", out, w.Current())
	}
	if w.Draft().RenderedTemplate != "" {
		t.Fatal("failed generation must leave the template empty")
	}

	// The user may retry: fix the service and advance.
	tmpl.mu.Lock()
	tmpl.fail = false
	tmpl.mu.Unlock()
	mustAdvance(t, w)
}

func TestGuardSkipsGenerationWhenTemplateExists(t *testing.T) {
	t.Parallel()
	tmpl := &fakeTemplate{}
	w := newTestWizard(tmpl)

	_ = w.SetRecipient(notification.Adhoc("Ana", "ana@x.com"))
	mustAdvance(t, w)
	w.SetMessage("Reminder", "body")
	mustAdvance(t, w)
	mustAdvance(t, w) // generates

	w.GoBack()
	mustAdvance(t, w) // back onto recurrence via existing template
	if tmpl.callCount() != 1 {
		t.Fatalf("template calls = %d, want 1 (guard must not regenerate)", tmpl.callCount())
	}
}

func TestRegenerateReplacesWithoutAdvancing(t *testing.T) {
	t.Parallel()
	tmpl := &fakeTemplate{}
	w := newTestWizard(tmpl)

	_ = w.SetRecipient(notification.Adhoc("Ana", "ana@x.com"))
	mustAdvance(t, w)
	w.SetMessage("Reminder", "body")
	mustAdvance(t, w)
	mustAdvance(t, w)
	w.GoBack() // back to the template step
	if w.Current() != templateStepIndex {
		t.Fatalf("current = %d, want template step", w.Current())
	}

	first := w.Draft().RenderedTemplate
	if err := w.Regenerate(context.Background()); err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	second := w.Draft().RenderedTemplate
	if second == first {
		t.Fatal("Regenerate must replace the template entirely")
	}
	if w.Current() != templateStepIndex {
		t.Fatal("Regenerate must not advance the wizard")
	}
	if err := w.Regenerate(context.Background()); err != nil {
		t.Fatalf("second Regenerate: %v", err)
	}
	if tmpl.callCount() != 3 {
		t.Fatalf("template calls = %d, want 3", tmpl.callCount())
	}
}

func TestRegenerateOnlyOnTemplateStep(t *testing.T) {
	t.Parallel()
	w := newTestWizard(&fakeTemplate{})
	if err := w.Regenerate(context.Background()); err == nil {
		t.Fatal("expected error when regenerating off the template step")
	}
}

func TestRegenerateThrottled(t *testing.T) {
	t.Parallel()
	tmpl := &fakeTemplate{}
	w := New(tmpl, Config{RegeneratePerMin: 1, Now: testClock(testNow)}, logx.Nop())

	_ = w.SetRecipient(notification.Adhoc("Ana", "ana@x.com"))
	mustAdvance(t, w)
	w.SetMessage("Reminder", "body")
	mustAdvance(t, w)
	mustAdvance(t, w)
	w.GoBack()

	if err := w.Regenerate(context.Background()); err != nil {
		t.Fatalf("first Regenerate: %v", err)
	}
	if err := w.Regenerate(context.Background()); !errors.Is(err, notification.ErrBusy) {
		t.Fatalf("throttled Regenerate err = %v, want ErrBusy", err)
	}
}

func TestGoBackNeverMutatesDraft(t *testing.T) {
	t.Parallel()
	w := newTestWizard(&fakeTemplate{})

	_ = w.SetRecipient(notification.Adhoc("Ana", "ana@x.com"))
	mustAdvance(t, w)
	w.SetMessage("Reminder", "body")
	before := w.Draft()

	for i := 0; i < 4; i++ {
		w.GoBack()
	}
	after := w.Draft()
	if before != after {
		t.Fatalf("GoBack mutated the draft: %+v != %+v", before, after)
	}
	if w.Current() != 0 {
		t.Fatalf("current = %d", w.Current())
	}
}

func TestSetScheduleRejectsPast(t *testing.T) {
	t.Parallel()
	w := newTestWizard(&fakeTemplate{})
	if err := w.SetSchedule(testNow.Add(-time.Minute)); err == nil {
		t.Fatal("expected error for past schedule time")
	}
	if err := w.SetSchedule(time.Time{}); err == nil {
		t.Fatal("expected error for zero schedule time")
	}
}

func TestCancelDiscardsDraft(t *testing.T) {
	t.Parallel()
	w := newTestWizard(&fakeTemplate{})
	_ = w.SetRecipient(notification.Adhoc("Ana", "ana@x.com"))
	mustAdvance(t, w)

	if err := w.Cancel(); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	dCancel := w.Draft()
	if w.Current() != 0 || dCancel.HasRecipient() {
		t.Fatal("Cancel left draft state behind")
	}
}
