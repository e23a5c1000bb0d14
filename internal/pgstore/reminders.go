package pgstore

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/postbox/pkg/db"
	"github.com/dmitrymomot/postbox/pkg/delivery"
	"github.com/dmitrymomot/postbox/pkg/reminder"
)

const reminderColumns = `id::text, recipient, document_type, COALESCE(document_id, ''), template_data,
	scheduled_for, recurrence, status, COALESCE(log_id::text, ''), COALESCE(error_message, ''),
	processed_at, created_at, updated_at`

var (
	errNonPositiveLimit = errors.New("pgstore: limit must be positive")
	errNonPositiveLease = errors.New("pgstore: claim lease must be positive")
)

func scanReminder(row pgx.Row) (*reminder.Reminder, error) {
	var (
		r          reminder.Reminder
		docType    string
		recurrence string
		status     string
	)
	err := row.Scan(&r.ID, &r.Recipient, &docType, &r.DocumentID, &r.TemplateData,
		&r.ScheduledFor, &recurrence, &status, &r.LogID, &r.ErrorMessage,
		&r.ProcessedAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.DocumentType = delivery.DocumentType(docType)
	r.Recurrence = reminder.Recurrence(recurrence)
	r.Status = reminder.Status(status)
	return &r, nil
}

func recurrence(r reminder.Recurrence) string {
	if r == "" {
		return string(reminder.RecurrenceNone)
	}
	return string(r)
}

func (s *Store) CreateReminder(ctx context.Context, r *reminder.Reminder) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO scheduled_reminders (id, recipient, document_type, document_id, template_data,
			scheduled_for, recurrence, status, log_id, error_message, processed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		r.ID, r.Recipient, string(r.DocumentType), nullable(r.DocumentID), r.TemplateData,
		r.ScheduledFor, recurrence(r.Recurrence), string(r.Status), nullable(r.LogID), nullable(r.ErrorMessage),
		r.ProcessedAt, timestamp(r.CreatedAt), timestamp(r.UpdatedAt),
	)
	return mapError(err, reminder.ErrNotFound)
}

func (s *Store) GetReminder(ctx context.Context, id string) (*reminder.Reminder, error) {
	r, err := scanReminder(s.db.QueryRow(ctx, `SELECT `+reminderColumns+` FROM scheduled_reminders WHERE id = $1`, id))
	return r, mapError(err, reminder.ErrNotFound)
}

// ClaimDue returns up to limit pending reminders scheduled at or before now,
// oldest first, and claims them until now+lease in the same transaction.
// Rows locked or claimed by a concurrent tick are skipped.
func (s *Store) ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]reminder.Reminder, error) {
	if limit <= 0 {
		return nil, errNonPositiveLimit
	}
	if lease <= 0 {
		return nil, errNonPositiveLease
	}

	var due []reminder.Reminder
	err := db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT `+reminderColumns+` FROM scheduled_reminders
			WHERE status = 'pending' AND scheduled_for <= $1
				AND (claimed_until IS NULL OR claimed_until <= $1)
			ORDER BY scheduled_for, created_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED`, now, limit)
		if err != nil {
			return err
		}
		due, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (reminder.Reminder, error) {
			r, err := scanReminder(row)
			if err != nil {
				return reminder.Reminder{}, err
			}
			return *r, nil
		})
		if err != nil || len(due) == 0 {
			return err
		}

		ids := make([]string, 0, len(due))
		for _, r := range due {
			ids = append(ids, r.ID)
		}
		_, err = tx.Exec(ctx, `UPDATE scheduled_reminders SET claimed_until = $2 WHERE id = ANY($1::uuid[])`,
			ids, now.Add(lease))
		return err
	})
	if err != nil {
		return nil, err
	}
	return due, nil
}

// UpdateReminder locks the row for the duration of fn and releases any
// claim held on it.
func (s *Store) UpdateReminder(ctx context.Context, id string, fn func(*reminder.Reminder) error) (*reminder.Reminder, error) {
	var updated *reminder.Reminder
	err := db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		r, err := scanReminder(tx.QueryRow(ctx, `SELECT `+reminderColumns+` FROM scheduled_reminders WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return mapError(err, reminder.ErrNotFound)
		}
		if err := fn(r); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE scheduled_reminders SET template_data = $2, scheduled_for = $3, recurrence = $4,
				status = $5, log_id = $6, error_message = $7, processed_at = $8, updated_at = $9,
				claimed_until = NULL
			WHERE id = $1`,
			id, r.TemplateData, r.ScheduledFor, recurrence(r.Recurrence),
			string(r.Status), nullable(r.LogID), nullable(r.ErrorMessage), r.ProcessedAt, timestamp(r.UpdatedAt),
		)
		if err != nil {
			return mapError(err, reminder.ErrNotFound)
		}
		r.ID = id
		updated = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
