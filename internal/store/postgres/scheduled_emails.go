package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/coldreach/coldreach/internal/models"
	"github.com/google/uuid"
)

type ScheduledEmailStore struct {
	db *sql.DB
}

func NewScheduledEmailStore(db *sql.DB) *ScheduledEmailStore {
	return &ScheduledEmailStore{db: db}
}

const scheduledEmailColumns = `id, public_id, user_id, recipient, subject, body, is_html, priority,
	template_id, recruiter_id, attach_resume, due_at, status, claimed_at, sent_at, message_id,
	error_message, retry_count, created_at`

func scanScheduledEmail(row interface{ Scan(...any) error }) (*models.ScheduledEmail, error) {
	e := &models.ScheduledEmail{}
	err := row.Scan(&e.ID, &e.PublicID, &e.UserID, &e.Recipient, &e.Subject, &e.Body,
		&e.HTML, &e.Priority, &e.TemplateID, &e.RecruiterID, &e.AttachResume,
		&e.DueAt, &e.Status, &e.ClaimedAt, &e.SentAt, &e.MessageID, &e.ErrorMessage,
		&e.RetryCount, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *ScheduledEmailStore) CreateScheduledEmail(ctx context.Context, userID int64, email models.ScheduledEmail) (*models.ScheduledEmail, error) {
	e := &email
	e.PublicID = uuid.New()
	e.UserID = userID
	if e.Priority == "" {
		e.Priority = models.PriorityNormal
	}
	e.Status = models.ScheduleScheduled

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO scheduled_emails
		 (public_id, user_id, recipient, subject, body, is_html, priority,
		  template_id, recruiter_id, attach_resume, due_at, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING id, retry_count, created_at`,
		e.PublicID, e.UserID, e.Recipient, e.Subject, e.Body, e.HTML, e.Priority,
		e.TemplateID, e.RecruiterID, e.AttachResume, e.DueAt, e.Status,
	).Scan(&e.ID, &e.RetryCount, &e.CreatedAt)
	if err != nil {
		return nil, err
	}

	return e, nil
}

func (s *ScheduledEmailStore) GetScheduledEmailByID(ctx context.Context, userID, id int64) (*models.ScheduledEmail, error) {
	return scanScheduledEmail(s.db.QueryRowContext(ctx,
		`SELECT `+scheduledEmailColumns+`
		 FROM scheduled_emails WHERE user_id = $1 AND id = $2`,
		userID, id,
	))
}

func (s *ScheduledEmailStore) GetScheduledEmailByPublicID(ctx context.Context, userID int64, publicID uuid.UUID) (*models.ScheduledEmail, error) {
	return scanScheduledEmail(s.db.QueryRowContext(ctx,
		`SELECT `+scheduledEmailColumns+`
		 FROM scheduled_emails WHERE user_id = $1 AND public_id = $2`,
		userID, publicID,
	))
}

func (s *ScheduledEmailStore) ListScheduledEmailsByUser(ctx context.Context, userID int64) ([]models.ScheduledEmail, error) {
	return s.listScheduledEmails(ctx,
		`SELECT `+scheduledEmailColumns+`
		 FROM scheduled_emails WHERE user_id = $1 ORDER BY due_at DESC`,
		userID)
}

func (s *ScheduledEmailStore) ListDueScheduledEmails(ctx context.Context, userID int64, now time.Time) ([]models.ScheduledEmail, error) {
	return s.listScheduledEmails(ctx,
		`SELECT `+scheduledEmailColumns+`
		 FROM scheduled_emails
		 WHERE user_id = $1 AND status = $2 AND due_at <= $3
		 ORDER BY due_at`,
		userID, models.ScheduleScheduled, now)
}

func (s *ScheduledEmailStore) listScheduledEmails(ctx context.Context, query string, args ...any) ([]models.ScheduledEmail, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var emails []models.ScheduledEmail
	for rows.Next() {
		e, err := scanScheduledEmail(rows)
		if err != nil {
			return nil, err
		}
		emails = append(emails, *e)
	}
	return emails, rows.Err()
}

// ClaimScheduledEmail is the conditional transition SCHEDULED -> SENDING. The
// WHERE clause on status makes the claim atomic: of two runners racing for the
// same email, exactly one sees a row affected.
func (s *ScheduledEmailStore) ClaimScheduledEmail(ctx context.Context, userID, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scheduled_emails SET status = $3, claimed_at = NOW()
		 WHERE user_id = $1 AND id = $2 AND status = $4`,
		userID, id, models.ScheduleSending, models.ScheduleScheduled,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *ScheduledEmailStore) MarkScheduledEmailSent(ctx context.Context, userID, id int64, messageID string, sentAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scheduled_emails
		 SET status = $3, sent_at = $4, message_id = $5, error_message = ''
		 WHERE user_id = $1 AND id = $2 AND status = $6`,
		userID, id, models.ScheduleSent, sentAt, messageID, models.ScheduleSending,
	)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (s *ScheduledEmailStore) MarkScheduledEmailFailed(ctx context.Context, userID, id int64, errorMessage string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scheduled_emails
		 SET status = $3, error_message = $4
		 WHERE user_id = $1 AND id = $2 AND status = $5`,
		userID, id, models.ScheduleFailed, errorMessage, models.ScheduleSending,
	)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (s *ScheduledEmailStore) FailStaleSendingEmails(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scheduled_emails
		 SET status = $1, error_message = 'interrupted before completion'
		 WHERE status = $2 AND claimed_at < $3`,
		models.ScheduleFailed, models.ScheduleSending, before,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CancelScheduledEmail reports (true, nil) when the email was withdrawn,
// (false, nil) when it exists but already left SCHEDULED, and
// (false, sql.ErrNoRows) when no such email exists for the user.
func (s *ScheduledEmailStore) CancelScheduledEmail(ctx context.Context, userID, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scheduled_emails SET status = $3
		 WHERE user_id = $1 AND id = $2 AND status = $4`,
		userID, id, models.ScheduleCancelled, models.ScheduleScheduled,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}

	// Zero rows means either the email is gone or it already moved past
	// SCHEDULED. Re-read to tell the two apart.
	var exists int64
	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM scheduled_emails WHERE user_id = $1 AND id = $2`,
		userID, id,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return false, nil
}
