package pgstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/postbox/pkg/db"
	"github.com/dmitrymomot/postbox/pkg/delivery"
	"github.com/dmitrymomot/postbox/pkg/mailer"
)

const logColumns = `id::text, recipient, document_type, COALESCE(document_id, ''), subject, status,
	provider, COALESCE(provider_message_id, ''), COALESCE(error_message, ''), retry_count,
	COALESCE(job_id, 0), metadata, sent_at, created_at, updated_at`

func scanLog(row pgx.Row) (*delivery.Log, error) {
	var (
		l       delivery.Log
		docType string
		status  string
	)
	err := row.Scan(&l.ID, &l.Recipient, &docType, &l.DocumentID, &l.Subject, &status,
		&l.Provider, &l.ProviderMessageID, &l.ErrorMessage, &l.RetryCount,
		&l.JobID, &l.Metadata, &l.SentAt, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	l.DocumentType = delivery.DocumentType(docType)
	l.Status = delivery.Status(status)
	return &l, nil
}

func (s *Store) CreateLog(ctx context.Context, l *delivery.Log) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO delivery_logs (id, recipient, document_type, document_id, subject, status,
			provider, provider_message_id, error_message, retry_count, job_id, metadata, sent_at,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		l.ID, l.Recipient, string(l.DocumentType), nullable(l.DocumentID), l.Subject, string(l.Status),
		l.Provider, nullable(l.ProviderMessageID), nullable(l.ErrorMessage), l.RetryCount,
		jobID(l.JobID), l.Metadata, l.SentAt, timestamp(l.CreatedAt), timestamp(l.UpdatedAt),
	)
	return mapError(err, delivery.ErrNotFound)
}

func (s *Store) GetLog(ctx context.Context, id string) (*delivery.Log, error) {
	l, err := scanLog(s.db.QueryRow(ctx, `SELECT `+logColumns+` FROM delivery_logs WHERE id = $1`, id))
	return l, mapError(err, delivery.ErrNotFound)
}

// FindLogByMessageID returns the most recently created log with the id.
func (s *Store) FindLogByMessageID(ctx context.Context, messageID string) (*delivery.Log, error) {
	l, err := scanLog(s.db.QueryRow(ctx, `
		SELECT `+logColumns+` FROM delivery_logs
		WHERE provider_message_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, messageID))
	return l, mapError(err, delivery.ErrNotFound)
}

// UpdateLog locks the row for the duration of fn.
func (s *Store) UpdateLog(ctx context.Context, id string, fn func(*delivery.Log) error) (*delivery.Log, error) {
	var updated *delivery.Log
	err := db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		l, err := scanLog(tx.QueryRow(ctx, `SELECT `+logColumns+` FROM delivery_logs WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return mapError(err, delivery.ErrNotFound)
		}
		if err := fn(l); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE delivery_logs SET subject = $2, status = $3, provider = $4,
				provider_message_id = $5, error_message = $6, retry_count = $7, job_id = $8,
				metadata = $9, sent_at = $10, updated_at = $11
			WHERE id = $1`,
			id, l.Subject, string(l.Status), l.Provider,
			nullable(l.ProviderMessageID), nullable(l.ErrorMessage), l.RetryCount, jobID(l.JobID),
			l.Metadata, l.SentAt, timestamp(l.UpdatedAt),
		)
		if err != nil {
			return mapError(err, delivery.ErrNotFound)
		}
		l.ID = id
		updated = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ListLogs returns one page newest first and the total number of matches.
func (s *Store) ListLogs(ctx context.Context, f delivery.HistoryFilter) ([]delivery.Log, int, error) {
	where, args := historyWhere(f)

	var total int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM delivery_logs`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + logColumns + ` FROM delivery_logs` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	logs := make([]delivery.Log, 0, max(f.Limit, 0))
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, 0, err
		}
		logs = append(logs, *l)
	}
	return logs, total, rows.Err()
}

// historyWhere builds the WHERE clause shared by the count and page queries.
func historyWhere(f delivery.HistoryFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Recipient != "" {
		add("lower(recipient) = lower($%d)", f.Recipient)
	}
	if f.DocumentType != "" {
		add("document_type = $%d", string(f.DocumentType))
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("created_at <= $%d", *f.To)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// AddAttachments skips files already recorded under the same name.
func (s *Store) AddAttachments(ctx context.Context, logID string, attachments []delivery.Attachment) error {
	if len(attachments) == 0 {
		return nil
	}
	return db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		for _, a := range attachments {
			if a.ID == "" {
				a.ID = uuid.NewString()
			}
			_, err := tx.Exec(ctx, `
				INSERT INTO delivery_attachments (id, log_id, filename, mime_type, size_bytes, storage_key, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (log_id, filename) DO NOTHING`,
				a.ID, logID, a.Filename, a.MimeType, a.SizeBytes, nullable(a.StorageKey), timestamp(a.CreatedAt),
			)
			if err != nil {
				return mapError(err, delivery.ErrNotFound)
			}
		}
		return nil
	})
}

func (s *Store) ListAttachments(ctx context.Context, logID string) ([]delivery.Attachment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id::text, log_id::text, filename, mime_type, size_bytes, COALESCE(storage_key, ''), created_at
		FROM delivery_attachments
		WHERE log_id = $1
		ORDER BY created_at, filename`, logID)
	if err != nil {
		return nil, mapError(err, delivery.ErrNotFound)
	}
	defer rows.Close()

	out := []delivery.Attachment{}
	for rows.Next() {
		var a delivery.Attachment
		if err := rows.Scan(&a.ID, &a.LogID, &a.Filename, &a.MimeType, &a.SizeBytes, &a.StorageKey, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, mapError(rows.Err(), delivery.ErrNotFound)
}

func (s *Store) AppendEvent(ctx context.Context, ev *delivery.TrackingEvent) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO tracking_events (id, log_id, provider, event_type, event_data, occurred_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.ID, ev.LogID, ev.Provider, string(ev.EventType), ev.EventData, ev.OccurredAt, timestamp(ev.CreatedAt),
	)
	return mapError(err, delivery.ErrNotFound)
}

// ListEvents returns events in occurrence order.
func (s *Store) ListEvents(ctx context.Context, logID string) ([]delivery.TrackingEvent, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id::text, log_id::text, provider, event_type, event_data, occurred_at, created_at
		FROM tracking_events
		WHERE log_id = $1
		ORDER BY occurred_at, created_at`, logID)
	if err != nil {
		return nil, mapError(err, delivery.ErrNotFound)
	}
	defer rows.Close()

	out := []delivery.TrackingEvent{}
	for rows.Next() {
		var (
			ev        delivery.TrackingEvent
			eventType string
		)
		if err := rows.Scan(&ev.ID, &ev.LogID, &ev.Provider, &eventType, &ev.EventData, &ev.OccurredAt, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.EventType = mailer.EventType(eventType)
		out = append(out, ev)
	}
	return out, mapError(rows.Err(), delivery.ErrNotFound)
}

func jobID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

// timestamp substitutes the current time for zero values.
func timestamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
