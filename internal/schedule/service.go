package schedule

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/coldreach/coldreach/internal/models"
	"github.com/coldreach/coldreach/internal/placeholder"
	"github.com/coldreach/coldreach/internal/store"
)

var (
	ErrEmailNotFound     = errors.New("scheduled email not found")
	ErrNotCancellable    = errors.New("email is no longer scheduled")
	ErrTemplateNotFound  = errors.New("template not found")
	ErrRecruiterNotFound = errors.New("recruiter not found")
)

// ScheduleParams carries the caller-supplied fields for a new scheduled email.
type ScheduleParams struct {
	Recipient    string
	Subject      string
	Body         string
	HTML         bool
	Priority     models.EmailPriority
	TemplateID   *int64
	RecruiterID  *int64
	AttachResume bool
	DueAt        time.Time
}

// Service queues outgoing emails for the dispatcher. Emails enter in
// SCHEDULED and only leave through the dispatcher (SENDING then SENT or
// FAILED) or through Cancel.
type Service struct {
	emails     store.ScheduledEmailStore
	recruiters store.RecruiterStore
	templates  store.TemplateStore
	users      store.UserStore
	now        func() time.Time
}

func NewService(emails store.ScheduledEmailStore, recruiters store.RecruiterStore, templates store.TemplateStore, users store.UserStore) *Service {
	return &Service{
		emails:     emails,
		recruiters: recruiters,
		templates:  templates,
		users:      users,
		now:        time.Now,
	}
}

// Schedule queues a fully composed email. A zero due time means "send on the
// next dispatch run".
func (s *Service) Schedule(ctx context.Context, userID int64, params ScheduleParams) (*models.ScheduledEmail, error) {
	params.Recipient = strings.TrimSpace(params.Recipient)
	if params.Recipient == "" {
		return nil, errors.New("recipient must not be empty")
	}
	if strings.TrimSpace(params.Subject) == "" {
		return nil, errors.New("subject must not be empty")
	}
	if params.Priority == "" {
		params.Priority = models.PriorityNormal
	}
	if params.DueAt.IsZero() {
		params.DueAt = s.now()
	}

	email, err := s.emails.CreateScheduledEmail(ctx, userID, models.ScheduledEmail{
		Recipient:    params.Recipient,
		Subject:      params.Subject,
		Body:         params.Body,
		HTML:         params.HTML,
		Priority:     params.Priority,
		TemplateID:   params.TemplateID,
		RecruiterID:  params.RecruiterID,
		AttachResume: params.AttachResume,
		DueAt:        params.DueAt.UTC(),
		Status:       models.ScheduleScheduled,
	})
	if err != nil {
		return nil, fmt.Errorf("creating scheduled email: %w", err)
	}
	return email, nil
}

// ComposeParams drives template-based composition. Extras are ad hoc
// placeholder bindings layered on top of the recruiter/user-derived ones.
type ComposeParams struct {
	TemplateID   int64
	RecruiterID  int64
	Extras       map[string]string
	Priority     models.EmailPriority
	AttachResume bool
	DueAt        time.Time
}

// ComposeFromTemplate renders a template against a recruiter's details and
// queues the result. Placeholders with no binding stay literal in the output.
// The template's usage counter is bumped on success.
func (s *Service) ComposeFromTemplate(ctx context.Context, userID int64, params ComposeParams) (*models.ScheduledEmail, error) {
	tmpl, err := s.templates.GetTemplateByID(ctx, userID, params.TemplateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("looking up template: %w", err)
	}
	rec, err := s.recruiters.GetRecruiterByID(ctx, userID, params.RecruiterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecruiterNotFound
		}
		return nil, fmt.Errorf("looking up recruiter: %w", err)
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	bindings := placeholder.Bindings(rec, user, params.Extras)

	email, err := s.Schedule(ctx, userID, ScheduleParams{
		Recipient:    rec.Email,
		Subject:      placeholder.Substitute(tmpl.Subject, bindings),
		Body:         placeholder.Substitute(tmpl.Body, bindings),
		Priority:     params.Priority,
		TemplateID:   &tmpl.ID,
		RecruiterID:  &rec.ID,
		AttachResume: params.AttachResume,
		DueAt:        params.DueAt,
	})
	if err != nil {
		return nil, err
	}

	if err := s.templates.IncrementTemplateUsage(ctx, userID, tmpl.ID, s.now().UTC()); err != nil {
		return email, fmt.Errorf("recording template usage: %w", err)
	}
	return email, nil
}

// Cancel withdraws a SCHEDULED email. Emails already claimed, sent, failed or
// cancelled report ErrNotCancellable.
func (s *Service) Cancel(ctx context.Context, userID, id int64) error {
	ok, err := s.emails.CancelScheduledEmail(ctx, userID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrEmailNotFound
		}
		return fmt.Errorf("cancelling scheduled email: %w", err)
	}
	if !ok {
		return ErrNotCancellable
	}
	return nil
}

func (s *Service) Get(ctx context.Context, userID, id int64) (*models.ScheduledEmail, error) {
	email, err := s.emails.GetScheduledEmailByID(ctx, userID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEmailNotFound
		}
		return nil, fmt.Errorf("looking up scheduled email: %w", err)
	}
	return email, nil
}

func (s *Service) GetByPublicID(ctx context.Context, userID int64, publicID uuid.UUID) (*models.ScheduledEmail, error) {
	email, err := s.emails.GetScheduledEmailByPublicID(ctx, userID, publicID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEmailNotFound
		}
		return nil, fmt.Errorf("looking up scheduled email: %w", err)
	}
	return email, nil
}

func (s *Service) List(ctx context.Context, userID int64) ([]models.ScheduledEmail, error) {
	return s.emails.ListScheduledEmailsByUser(ctx, userID)
}
