package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"remind/internal/directory"
	"remind/internal/lifecycle"
	"remind/internal/notification"
	"remind/internal/wizard"
	logx "remind/pkg/logx"
)

// defaultOrg is used when the caller sends no X-Org-ID header. Tenancy is
// delegated to whatever fronts this API; the header is trusted as-is.
const defaultOrg = "default"

const maxBodyBytes = 1 << 20

// api exposes the wizard sessions and the notification lifecycle as a
// JSON HTTP surface.
type api struct {
	log      logx.Logger
	sessions *wizard.Sessions
	mgr      *lifecycle.Manager
	dir      directory.Directory
	now      func() time.Time
}

func newAPI(sessions *wizard.Sessions, mgr *lifecycle.Manager, dir directory.Directory, log logx.Logger) *api {
	return &api{
		log:      log,
		sessions: sessions,
		mgr:      mgr,
		dir:      dir,
		now:      time.Now,
	}
}

func (a *api) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", a.health)

	mux.HandleFunc("POST /api/v1/wizard/sessions", a.createSession)
	mux.HandleFunc("GET /api/v1/wizard/sessions/{id}", a.sessionState)
	mux.HandleFunc("DELETE /api/v1/wizard/sessions/{id}", a.cancelSession)
	mux.HandleFunc("POST /api/v1/wizard/sessions/{id}/next", a.sessionNext)
	mux.HandleFunc("POST /api/v1/wizard/sessions/{id}/back", a.sessionBack)
	mux.HandleFunc("POST /api/v1/wizard/sessions/{id}/reset", a.sessionReset)
	mux.HandleFunc("POST /api/v1/wizard/sessions/{id}/regenerate", a.sessionRegenerate)
	mux.HandleFunc("PUT /api/v1/wizard/sessions/{id}/recipient", a.sessionSetRecipient)
	mux.HandleFunc("PUT /api/v1/wizard/sessions/{id}/message", a.sessionSetMessage)
	mux.HandleFunc("PUT /api/v1/wizard/sessions/{id}/recurrence", a.sessionSetRecurrence)
	mux.HandleFunc("PUT /api/v1/wizard/sessions/{id}/schedule", a.sessionSetSchedule)

	mux.HandleFunc("GET /api/v1/notifications", a.listNotifications)
	mux.HandleFunc("GET /api/v1/notifications/{id}", a.getNotification)
	mux.HandleFunc("PATCH /api/v1/notifications/{id}", a.editNotification)
	mux.HandleFunc("POST /api/v1/notifications/{id}/cancel", a.cancelNotification)
	mux.HandleFunc("DELETE /api/v1/notifications/{id}", a.deleteNotification)

	mux.HandleFunc("GET /api/v1/contacts", a.searchContacts)

	return mux
}

func orgID(r *http.Request) string {
	if org := strings.TrimSpace(r.Header.Get("X-Org-ID")); org != "" {
		return org
	}
	return defaultOrg
}

// ---- views ----

type displayView struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type notificationView struct {
	notification.Notification
	Display  displayView `json:"display"`
	NextFire *time.Time  `json:"next_fire,omitempty"`
}

func (a *api) view(r *http.Request, n notification.Notification) notificationView {
	resolve := directory.Lookup(r.Context(), a.dir)
	info := n.Recipient.Display(resolve)
	v := notificationView{
		Notification: n,
		Display:      displayView{Name: info.Name, Address: info.Address},
	}
	if next, ok := lifecycle.NextFire(n, a.now()); ok {
		v.NextFire = &next
	}
	return v
}

type draftView struct {
	Recipient        *notification.Recipient `json:"recipient,omitempty"`
	Subject          string                  `json:"subject,omitempty"`
	Body             string                  `json:"body,omitempty"`
	RenderedTemplate string                  `json:"rendered_template,omitempty"`
	ScheduledAt      *time.Time              `json:"scheduled_at,omitempty"`
	Recurrence       notification.Recurrence `json:"recurrence"`
}

type sessionView struct {
	SessionID string            `json:"session_id"`
	Current   int               `json:"current"`
	Steps     []wizard.StepInfo `json:"steps"`
	Draft     draftView         `json:"draft"`
}

func (a *api) sessionViewOf(id string, wz *wizard.Wizard) sessionView {
	d := wz.Draft()
	dv := draftView{
		Subject:          d.Subject,
		Body:             d.Body,
		RenderedTemplate: d.RenderedTemplate,
		Recurrence:       d.Recurrence,
	}
	if !d.Recipient.IsZero() {
		rec := d.Recipient
		dv.Recipient = &rec
	}
	if !d.ScheduledAt.IsZero() {
		at := d.ScheduledAt
		dv.ScheduledAt = &at
	}
	return sessionView{
		SessionID: id,
		Current:   wz.Current(),
		Steps:     wz.Steps(),
		Draft:     dv,
	}
}

// ---- plumbing ----

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the domain error taxonomy onto HTTP codes. Anything
// that isn't a known sentinel is treated as a rejected input.
func (a *api) writeError(w http.ResponseWriter, err error) {
	code := http.StatusUnprocessableEntity
	switch {
	case errors.Is(err, notification.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, notification.ErrBusy),
		errors.Is(err, notification.ErrInvalidTransition):
		code = http.StatusConflict
	case errors.Is(err, notification.ErrGenerationFailed):
		code = http.StatusBadGateway
	}
	a.log.Debug("request rejected", logx.Int("code", code), logx.Err(err))
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid body: %w", err)
	}
	return nil
}

func (a *api) session(w http.ResponseWriter, r *http.Request) (string, *wizard.Wizard, bool) {
	id := r.PathValue("id")
	wz, err := a.sessions.Get(id)
	if err != nil {
		a.writeError(w, err)
		return "", nil, false
	}
	return id, wz, true
}

// ---- handlers ----

func (a *api) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *api) createSession(w http.ResponseWriter, r *http.Request) {
	id, wz, err := a.sessions.Create()
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a.sessionViewOf(id, wz))
}

func (a *api) sessionState(w http.ResponseWriter, r *http.Request) {
	id, wz, ok := a.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, a.sessionViewOf(id, wz))
}

func (a *api) cancelSession(w http.ResponseWriter, r *http.Request) {
	id, wz, ok := a.session(w, r)
	if !ok {
		return
	}
	if err := wz.Cancel(); err != nil {
		a.writeError(w, err)
		return
	}
	a.sessions.Remove(id)
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) sessionNext(w http.ResponseWriter, r *http.Request) {
	id, wz, ok := a.session(w, r)
	if !ok {
		return
	}
	out, err := wz.GoNext(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	if out.Completed {
		n, err := a.mgr.CreateFromDraft(r.Context(), orgID(r), out.Draft)
		if err != nil {
			a.writeError(w, err)
			return
		}
		a.sessions.Remove(id)
		writeJSON(w, http.StatusCreated, map[string]any{
			"completed":    true,
			"notification": a.view(r, n),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"advanced":  out.Advanced,
		"completed": false,
		"state":     a.sessionViewOf(id, wz),
	})
}

func (a *api) sessionBack(w http.ResponseWriter, r *http.Request) {
	id, wz, ok := a.session(w, r)
	if !ok {
		return
	}
	moved := wz.GoBack()
	writeJSON(w, http.StatusOK, map[string]any{
		"moved": moved,
		"state": a.sessionViewOf(id, wz),
	})
}

func (a *api) sessionReset(w http.ResponseWriter, r *http.Request) {
	id, wz, ok := a.session(w, r)
	if !ok {
		return
	}
	if err := wz.Reset(); err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.sessionViewOf(id, wz))
}

func (a *api) sessionRegenerate(w http.ResponseWriter, r *http.Request) {
	id, wz, ok := a.session(w, r)
	if !ok {
		return
	}
	if err := wz.Regenerate(r.Context()); err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.sessionViewOf(id, wz))
}

func (a *api) sessionSetRecipient(w http.ResponseWriter, r *http.Request) {
	id, wz, ok := a.session(w, r)
	if !ok {
		return
	}
	var body struct {
		ContactID string `json:"contact_id"`
		Name      string `json:"name"`
		Address   string `json:"address"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		a.writeError(w, err)
		return
	}

	var rec notification.Recipient
	var err error
	if cid := strings.TrimSpace(body.ContactID); cid != "" {
		c, found, derr := a.dir.Get(r.Context(), cid)
		if derr != nil {
			a.writeError(w, derr)
			return
		}
		if !found {
			a.writeError(w, fmt.Errorf("contact %s: %w", cid, notification.ErrNotFound))
			return
		}
		rec, err = directory.ResolveSelection(c)
	} else {
		rec, err = directory.ResolveFreeText(body.Name, body.Address)
	}
	if err != nil {
		a.writeError(w, err)
		return
	}
	if err := wz.SetRecipient(rec); err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.sessionViewOf(id, wz))
}

func (a *api) sessionSetMessage(w http.ResponseWriter, r *http.Request) {
	id, wz, ok := a.session(w, r)
	if !ok {
		return
	}
	var body struct {
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		a.writeError(w, err)
		return
	}
	wz.SetMessage(body.Subject, body.Body)
	writeJSON(w, http.StatusOK, a.sessionViewOf(id, wz))
}

func (a *api) sessionSetRecurrence(w http.ResponseWriter, r *http.Request) {
	id, wz, ok := a.session(w, r)
	if !ok {
		return
	}
	var body struct {
		Recurrence string `json:"recurrence"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		a.writeError(w, err)
		return
	}
	rec, err := notification.ParseRecurrence(body.Recurrence)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if err := wz.SetRecurrence(rec); err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.sessionViewOf(id, wz))
}

func (a *api) sessionSetSchedule(w http.ResponseWriter, r *http.Request) {
	id, wz, ok := a.session(w, r)
	if !ok {
		return
	}
	var body struct {
		ScheduledAt time.Time `json:"scheduled_at"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		a.writeError(w, err)
		return
	}
	if err := wz.SetSchedule(body.ScheduledAt); err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.sessionViewOf(id, wz))
}

func (a *api) listNotifications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status, err := lifecycle.ParseStatusFilter(q.Get("status"))
	if err != nil {
		a.writeError(w, err)
		return
	}

	items, err := a.mgr.List(r.Context(), orgID(r))
	if err != nil {
		a.writeError(w, err)
		return
	}
	resolve := directory.Lookup(r.Context(), a.dir)
	filtered := lifecycle.Filter(items, status, q.Get("q"), resolve)

	views := make([]notificationView, 0, len(filtered))
	for _, n := range filtered {
		views = append(views, a.view(r, n))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": views})
}

func (a *api) getNotification(w http.ResponseWriter, r *http.Request) {
	n, err := a.mgr.Get(r.Context(), orgID(r), r.PathValue("id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.view(r, n))
}

func (a *api) editNotification(w http.ResponseWriter, r *http.Request) {
	var patch notification.Patch
	if err := decodeJSON(w, r, &patch); err != nil {
		a.writeError(w, err)
		return
	}
	n, err := a.mgr.Edit(r.Context(), orgID(r), r.PathValue("id"), patch)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.view(r, n))
}

func (a *api) cancelNotification(w http.ResponseWriter, r *http.Request) {
	n, err := a.mgr.Cancel(r.Context(), orgID(r), r.PathValue("id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.view(r, n))
}

func (a *api) deleteNotification(w http.ResponseWriter, r *http.Request) {
	if err := a.mgr.Delete(r.Context(), orgID(r), r.PathValue("id")); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) searchContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := a.dir.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": contacts})
}
