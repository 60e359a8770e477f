package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"remind/internal/notification"
	logx "remind/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Create(ctx context.Context, n notification.Notification) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications(
			id, org_id, recipient_kind, contact_id, recipient_name, recipient_address,
			subject, body, rendered_template, scheduled_at, recurrence, status,
			sent_at, send_count, error_message, created_at, updated_at)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		n.ID, n.OrgID,
		string(n.Recipient.Kind), nullStr(n.Recipient.ContactID), nullStr(n.Recipient.Name), nullStr(n.Recipient.Address),
		n.Subject, n.Body, nullStr(n.RenderedTemplate),
		n.ScheduledAt.UTC().Format(time.RFC3339Nano), string(n.Recurrence), string(n.Status),
		nullTime(n.SentAt), n.SendCount, nullStr(n.ErrorMessage),
		n.CreatedAt.UTC().Format(time.RFC3339Nano), n.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

const selectCols = `id, org_id, recipient_kind, contact_id, recipient_name, recipient_address,
	subject, body, rendered_template, scheduled_at, recurrence, status,
	sent_at, send_count, error_message, created_at, updated_at`

func (s *sqliteStore) Get(ctx context.Context, orgID, id string) (notification.Notification, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectCols+` FROM notifications WHERE org_id = ? AND id = ?`, orgID, id)
	n, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return notification.Notification{}, fmt.Errorf("get %s: %w", id, notification.ErrNotFound)
	}
	return n, err
}

func (s *sqliteStore) List(ctx context.Context, orgID string) ([]notification.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectCols+` FROM notifications WHERE org_id = ? ORDER BY rowid`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []notification.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *sqliteStore) Update(ctx context.Context, n notification.Notification) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET
			recipient_kind=?, contact_id=?, recipient_name=?, recipient_address=?,
			subject=?, body=?, rendered_template=?, scheduled_at=?, recurrence=?, status=?,
			sent_at=?, send_count=?, error_message=?, updated_at=?
		 WHERE org_id = ? AND id = ?`,
		string(n.Recipient.Kind), nullStr(n.Recipient.ContactID), nullStr(n.Recipient.Name), nullStr(n.Recipient.Address),
		n.Subject, n.Body, nullStr(n.RenderedTemplate),
		n.ScheduledAt.UTC().Format(time.RFC3339Nano), string(n.Recurrence), string(n.Status),
		nullTime(n.SentAt), n.SendCount, nullStr(n.ErrorMessage),
		n.UpdatedAt.UTC().Format(time.RFC3339Nano),
		n.OrgID, n.ID,
	)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("update %s: %w", n.ID, notification.ErrNotFound)
	}
	return nil
}

func (s *sqliteStore) Delete(ctx context.Context, orgID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE org_id = ? AND id = ?`, orgID, id)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("delete %s: %w", id, notification.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(row rowScanner) (notification.Notification, error) {
	var n notification.Notification
	var kind, recurrence, status string
	var scheduledAt, createdAt, updatedAt string
	var contactID, name, address sql.NullString
	var rendered, sentAt, errMsg sql.NullString
	err := row.Scan(
		&n.ID, &n.OrgID, &kind, &contactID, &name, &address,
		&n.Subject, &n.Body, &rendered, &scheduledAt, &recurrence, &status,
		&sentAt, &n.SendCount, &errMsg, &createdAt, &updatedAt,
	)
	if err != nil {
		return notification.Notification{}, err
	}

	n.Recipient = notification.Recipient{
		Kind:      notification.RecipientKind(kind),
		ContactID: contactID.String,
		Name:      name.String,
		Address:   address.String,
	}
	n.RenderedTemplate = rendered.String
	n.Recurrence = notification.Recurrence(recurrence)
	n.Status = notification.Status(status)
	n.ErrorMessage = errMsg.String

	if n.ScheduledAt, err = parseTime(scheduledAt); err != nil {
		return notification.Notification{}, err
	}
	if n.CreatedAt, err = parseTime(createdAt); err != nil {
		return notification.Notification{}, err
	}
	if n.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return notification.Notification{}, err
	}
	if sentAt.Valid {
		t, err := parseTime(sentAt.String)
		if err != nil {
			return notification.Notification{}, err
		}
		n.SentAt = &t
	}
	return n, nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad stored timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}
