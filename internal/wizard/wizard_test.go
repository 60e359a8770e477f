package wizard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"remind/internal/notification"
)

// twoStepEngine builds an engine whose first step's validity and guard
// are controlled by the test.
func twoStepEngine(valid *bool, guard func(ctx context.Context) error) *Engine {
	return NewEngine([]Step{
		{ID: "a", Title: "A", Valid: func() bool { return *valid }, Advance: guard},
		{ID: "b", Title: "B", Valid: func() bool { return true }},
	})
}

func TestGoNextBlockedByInvalidStep(t *testing.T) {
	t.Parallel()
	valid := false
	e := twoStepEngine(&valid, nil)

	advanced, completed, err := e.GoNext(context.Background())
	if err != nil || advanced || completed {
		t.Fatalf("GoNext on invalid step = (%v, %v, %v), want quiet no-op", advanced, completed, err)
	}
	if e.Current() != 0 {
		t.Fatalf("Current = %d, want 0", e.Current())
	}

	valid = true
	advanced, _, err = e.GoNext(context.Background())
	if err != nil || !advanced {
		t.Fatalf("GoNext on valid step = (%v, %v)", advanced, err)
	}
	if e.Current() != 1 {
		t.Fatalf("Current = %d, want 1", e.Current())
	}
}

func TestGuardFailureKeepsPosition(t *testing.T) {
	t.Parallel()
	valid := true
	boom := errors.New("generator down")
	e := twoStepEngine(&valid, func(ctx context.Context) error { return boom })

	advanced, completed, err := e.GoNext(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want guard error", err)
	}
	if advanced || completed || e.Current() != 0 {
		t.Fatalf("position moved on guard failure: advanced=%v completed=%v current=%d", advanced, completed, e.Current())
	}
}

func TestGoNextSerializedWhileGuardInFlight(t *testing.T) {
	t.Parallel()
	valid := true
	entered := make(chan struct{})
	release := make(chan struct{})
	e := twoStepEngine(&valid, func(ctx context.Context) error {
		close(entered)
		<-release
		return nil
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, _, err := e.GoNext(context.Background()); err != nil {
			t.Errorf("first GoNext: %v", err)
		}
	}()

	<-entered
	if _, _, err := e.GoNext(context.Background()); !errors.Is(err, notification.ErrBusy) {
		t.Fatalf("second GoNext err = %v, want ErrBusy", err)
	}
	if err := e.Reset(); !errors.Is(err, notification.ErrBusy) {
		t.Fatalf("Reset during guard err = %v, want ErrBusy", err)
	}
	if e.GoBack() {
		t.Fatal("GoBack must be rejected while a guard is in flight")
	}

	close(release)
	wg.Wait()
	if e.Current() != 1 {
		t.Fatalf("Current = %d after guard resolved, want 1", e.Current())
	}
}

func TestGoBackClampsAtZero(t *testing.T) {
	t.Parallel()
	valid := true
	e := twoStepEngine(&valid, nil)

	for i := 0; i < 5; i++ {
		if e.GoBack() {
			t.Fatal("GoBack moved below 0")
		}
	}
	if e.Current() != 0 {
		t.Fatalf("Current = %d", e.Current())
	}

	if _, _, err := e.GoNext(context.Background()); err != nil {
		t.Fatalf("GoNext: %v", err)
	}
	if !e.GoBack() {
		t.Fatal("GoBack from step 1 should move")
	}
	if e.Current() != 0 {
		t.Fatalf("Current = %d, want 0", e.Current())
	}
}

func TestCompletionOnLastStep(t *testing.T) {
	t.Parallel()
	completedHook := false
	e := NewEngine([]Step{
		{ID: "only", Title: "Only", Valid: func() bool { return true }},
	})
	e.SetOnComplete(func() { completedHook = true })

	advanced, completed, err := e.GoNext(context.Background())
	if err != nil || advanced || !completed {
		t.Fatalf("GoNext on last step = (%v, %v, %v), want completion", advanced, completed, err)
	}
	if !completedHook {
		t.Fatal("onComplete hook not invoked")
	}
	// Completion never wraps past the end; it resets.
	if e.Current() != 0 {
		t.Fatalf("Current = %d after completion, want 0", e.Current())
	}
}

func TestResetInvokesHookAndRewinds(t *testing.T) {
	t.Parallel()
	valid := true
	e := twoStepEngine(&valid, nil)
	resets := 0
	e.SetOnReset(func() { resets++ })

	if _, _, err := e.GoNext(context.Background()); err != nil {
		t.Fatalf("GoNext: %v", err)
	}
	if err := e.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if e.Current() != 0 || resets != 1 {
		t.Fatalf("current=%d resets=%d", e.Current(), resets)
	}
	if err := e.Cancel(); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if resets != 2 {
		t.Fatalf("Cancel should reset; resets=%d", resets)
	}
}

func TestStepsSnapshot(t *testing.T) {
	t.Parallel()
	valid := false
	e := twoStepEngine(&valid, nil)

	infos := e.Steps()
	if len(infos) != 2 || infos[0].ID != "a" || infos[0].Valid || !infos[1].Valid {
		t.Fatalf("Steps = %+v", infos)
	}

	// Valid must be re-evaluated on every snapshot.
	valid = true
	if !e.Steps()[0].Valid {
		t.Fatal("Steps did not re-evaluate validity")
	}
}

func TestGuardContextPassedThrough(t *testing.T) {
	t.Parallel()
	valid := true
	type key struct{}
	e := twoStepEngine(&valid, func(ctx context.Context) error {
		if ctx.Value(key{}) != "v" {
			t.Error("guard did not receive caller ctx")
		}
		return nil
	})

	ctx := context.WithValue(context.Background(), key{}, "v")
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _, _ = e.GoNext(ctx)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("GoNext hung")
	}
}
