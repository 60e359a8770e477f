package wizard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"remind/internal/notification"
	"remind/internal/template"
	logx "remind/pkg/logx"
)

// Step ids, in order.
const (
	StepRecipient  = "recipient"
	StepMessage    = "message"
	StepTemplate   = "template"
	StepRecurrence = "recurrence"
	StepSchedule   = "schedule"
)

// templateStepIndex is StepTemplate's position in the sequence.
const templateStepIndex = 2

// Config tunes a reminder wizard.
type Config struct {
	// BusinessName is passed to the template generator for personalization.
	BusinessName string

	// RegeneratePerMin caps user-triggered template regenerations.
	// 0 means a default of 6/min.
	RegeneratePerMin int

	// Now overrides the clock (tests). Defaults to time.Now.
	Now func() time.Time
}

// Wizard drives the reminder flow:
// recipient -> message -> template -> recurrence -> schedule.
//
// It owns the draft being assembled; completion hands an immutable
// snapshot to the caller and resets.
type Wizard struct {
	eng  *Engine
	tmpl template.Service
	cfg  Config
	log  logx.Logger

	// dmu guards the draft fields; Valid predicates and setters both
	// take it so the UI can re-check validity during a guard call.
	dmu   sync.Mutex
	draft *notification.Draft

	regen *rate.Limiter

	// completed holds the snapshot stashed by the engine's onComplete
	// hook until GoNext returns it.
	completed *notification.Draft
}

func New(tmpl template.Service, cfg Config, log logx.Logger) *Wizard {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	perMin := cfg.RegeneratePerMin
	if perMin <= 0 {
		perMin = 6
	}

	w := &Wizard{
		tmpl:  tmpl,
		cfg:   cfg,
		log:   log,
		draft: notification.NewDraft(),
		regen: rate.NewLimiter(rate.Limit(float64(perMin)/60.0), perMin),
	}

	steps := []Step{
		{
			ID:    StepRecipient,
			Title: "Choose recipient",
			Valid: w.locked(func() bool { return w.draft.HasRecipient() }),
		},
		{
			ID:    StepMessage,
			Title: "Write message",
			Valid: w.locked(func() bool { return w.draft.HasMessage() }),
		},
		{
			ID:      StepTemplate,
			Title:   "Review template",
			Valid:   w.locked(func() bool { return w.draft.HasTemplate() }),
			Advance: w.generateIfMissing,
		},
		{
			ID:    StepRecurrence,
			Title: "Repeat",
			// Always valid: recurrence has a default.
			Valid: func() bool { return true },
		},
		{
			ID:    StepSchedule,
			Title: "Pick send time",
			Valid: w.locked(func() bool { return w.draft.HasFutureSchedule(w.cfg.Now()) }),
		},
	}

	w.eng = NewEngine(steps)
	w.eng.SetOnComplete(func() {
		w.dmu.Lock()
		snap := w.draft.Snapshot()
		w.completed = &snap
		w.dmu.Unlock()
	})
	w.eng.SetOnReset(func() {
		w.dmu.Lock()
		w.draft.Reset()
		w.dmu.Unlock()
	})
	return w
}

func (w *Wizard) locked(fn func() bool) func() bool {
	return func() bool {
		w.dmu.Lock()
		defer w.dmu.Unlock()
		return fn()
	}
}

func (w *Wizard) snapshotDraft() notification.Draft {
	w.dmu.Lock()
	defer w.dmu.Unlock()
	return w.draft.Snapshot()
}

// ---- engine surface ----

func (w *Wizard) Current() int      { return w.eng.Current() }
func (w *Wizard) Steps() []StepInfo { return w.eng.Steps() }
func (w *Wizard) GoBack() bool      { return w.eng.GoBack() }
func (w *Wizard) Reset() error      { return w.eng.Reset() }
func (w *Wizard) Cancel() error     { return w.eng.Cancel() }

// Outcome reports the effect of a GoNext call.
type Outcome struct {
	Advanced  bool
	Completed bool
	// Draft is the completed snapshot, set only when Completed.
	Draft notification.Draft
}

// GoNext advances the wizard. Validation failure is a quiet no-op
// outcome; guard failures and busy rejections come back as errors with
// the position unchanged.
func (w *Wizard) GoNext(ctx context.Context) (Outcome, error) {
	advanced, completed, err := w.eng.GoNext(ctx)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{Advanced: advanced, Completed: completed}
	if completed {
		// stashed by the onComplete hook
		w.dmu.Lock()
		out.Draft = *w.completed
		w.completed = nil
		w.dmu.Unlock()
	}
	return out, nil
}

// ---- draft mutations ----

func (w *Wizard) SetRecipient(r notification.Recipient) error {
	if err := r.Validate(); err != nil {
		return err
	}
	w.dmu.Lock()
	w.draft.Recipient = r
	w.dmu.Unlock()
	return nil
}

func (w *Wizard) SetMessage(subject, body string) {
	w.dmu.Lock()
	w.draft.Subject = subject
	w.draft.Body = body
	w.dmu.Unlock()
}

func (w *Wizard) SetRecurrence(r notification.Recurrence) error {
	if !r.Valid() {
		return fmt.Errorf("unknown recurrence %q", r)
	}
	w.dmu.Lock()
	w.draft.Recurrence = r
	w.dmu.Unlock()
	return nil
}

func (w *Wizard) SetSchedule(at time.Time) error {
	if at.IsZero() {
		return fmt.Errorf("schedule time is required")
	}
	if at.Before(w.cfg.Now()) {
		return fmt.Errorf("schedule time %s is in the past", at.Format(time.RFC3339))
	}
	w.dmu.Lock()
	w.draft.ScheduledAt = at.UTC()
	w.dmu.Unlock()
	return nil
}

// Draft returns a point-in-time copy for rendering.
func (w *Wizard) Draft() notification.Draft { return w.snapshotDraft() }

// ---- template generation ----

// generateIfMissing is the template step's advance guard: it calls the
// draft service only when no template exists yet.
func (w *Wizard) generateIfMissing(ctx context.Context) error {
	w.dmu.Lock()
	if w.draft.HasTemplate() {
		w.dmu.Unlock()
		return nil
	}
	req := template.Request{
		Subject:      w.draft.Subject,
		Body:         w.draft.Body,
		BusinessName: w.cfg.BusinessName,
	}
	w.dmu.Unlock()

	rendered, err := w.tmpl.Generate(ctx, req)
	if err != nil {
		w.log.Warn("template guard failed", logx.Err(err))
		return err
	}

	w.dmu.Lock()
	w.draft.RenderedTemplate = rendered
	w.dmu.Unlock()
	return nil
}

// Regenerate redoes the template from the current step without advancing.
// It bypasses the guard, may be invoked repeatedly, always replaces the
// template wholesale, and is abortable via ctx.
func (w *Wizard) Regenerate(ctx context.Context) error {
	if w.eng.Current() != templateStepIndex {
		return fmt.Errorf("regenerate: not on the template step")
	}
	if !w.regen.Allow() {
		return fmt.Errorf("%w: regeneration throttled", notification.ErrBusy)
	}
	if err := w.eng.begin(); err != nil {
		return err
	}
	defer w.eng.end()

	epoch := w.eng.currentEpoch()

	w.dmu.Lock()
	req := template.Request{
		Subject:      w.draft.Subject,
		Body:         w.draft.Body,
		BusinessName: w.cfg.BusinessName,
		Regenerate:   true,
	}
	w.dmu.Unlock()

	rendered, err := w.tmpl.Generate(ctx, req)
	if err != nil {
		return err
	}
	if w.eng.currentEpoch() != epoch {
		// Navigated away while generating; drop the stale result.
		return nil
	}

	w.dmu.Lock()
	w.draft.RenderedTemplate = rendered
	w.dmu.Unlock()
	return nil
}
