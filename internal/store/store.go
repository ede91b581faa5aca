package store

import (
	"context"
	"time"

	"github.com/coldreach/coldreach/internal/models"
	"github.com/google/uuid"
)

type UserStore interface {
	CreateUser(ctx context.Context, email, name, passwordHash string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
}

type SessionStore interface {
	CreateSession(ctx context.Context, token string, userID int64, expiresAt time.Time) (*models.Session, error)
	GetSessionByToken(ctx context.Context, token string) (*models.Session, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context) error
}

type RecruiterStore interface {
	CreateRecruiter(ctx context.Context, userID int64, params models.RecruiterContact) (*models.RecruiterContact, error)
	GetRecruiterByID(ctx context.Context, userID, id int64) (*models.RecruiterContact, error)
	ListRecruitersByUser(ctx context.Context, userID int64) ([]models.RecruiterContact, error)
	UpdateRecruiter(ctx context.Context, userID int64, rec *models.RecruiterContact) error
	UpdateRecruiterLastContacted(ctx context.Context, userID, id int64, at time.Time) error
	DeleteRecruiter(ctx context.Context, userID, id int64) error
}

type TemplateStore interface {
	CreateTemplate(ctx context.Context, userID int64, tmpl models.EmailTemplate) (*models.EmailTemplate, error)
	GetTemplateByID(ctx context.Context, userID, id int64) (*models.EmailTemplate, error)
	GetTemplateByName(ctx context.Context, userID int64, name string) (*models.EmailTemplate, error)
	ListTemplatesByUser(ctx context.Context, userID int64) ([]models.EmailTemplate, error)
	ListTemplatesByUserAndCategory(ctx context.Context, userID int64, category models.TemplateCategory) ([]models.EmailTemplate, error)
	ListTemplatesByUserAndStatus(ctx context.Context, userID int64, status models.TemplateStatus) ([]models.EmailTemplate, error)
	ListTemplatesByUserCategoryAndStatus(ctx context.Context, userID int64, category models.TemplateCategory, status models.TemplateStatus) ([]models.EmailTemplate, error)
	UpdateTemplate(ctx context.Context, userID int64, tmpl *models.EmailTemplate) error
	UpdateTemplateStatus(ctx context.Context, userID, id int64, status models.TemplateStatus) error
	IncrementTemplateUsage(ctx context.Context, userID, id int64, usedAt time.Time) error
	DeleteTemplate(ctx context.Context, userID, id int64) error
}

type AssignmentStore interface {
	CreateAssignment(ctx context.Context, userID int64, a models.RecruiterTemplateAssignment) (*models.RecruiterTemplateAssignment, error)
	GetAssignmentByID(ctx context.Context, userID, id int64) (*models.RecruiterTemplateAssignment, error)
	ListAssignmentsByUserAndStatus(ctx context.Context, userID int64, status models.AssignmentStatus) ([]models.RecruiterTemplateAssignment, error)
	ListAssignmentsByTemplateAndStatus(ctx context.Context, userID, templateID int64, status models.AssignmentStatus) ([]models.RecruiterTemplateAssignment, error)
	GetAssignmentByTemplateAndRecruiter(ctx context.Context, userID, templateID, recruiterID int64, status models.AssignmentStatus) (*models.RecruiterTemplateAssignment, error)
	RecordAssignmentEmailSent(ctx context.Context, userID, id int64, at time.Time) error
	UpdateAssignmentStatus(ctx context.Context, userID, id int64, status models.AssignmentStatus) error
	DeleteAssignment(ctx context.Context, userID, id int64) error
}

type ScheduledEmailStore interface {
	CreateScheduledEmail(ctx context.Context, userID int64, email models.ScheduledEmail) (*models.ScheduledEmail, error)
	GetScheduledEmailByID(ctx context.Context, userID, id int64) (*models.ScheduledEmail, error)
	GetScheduledEmailByPublicID(ctx context.Context, userID int64, publicID uuid.UUID) (*models.ScheduledEmail, error)
	ListScheduledEmailsByUser(ctx context.Context, userID int64) ([]models.ScheduledEmail, error)
	// ListDueScheduledEmails returns emails with status SCHEDULED and a due
	// time at or before now, ordered by due time ascending.
	ListDueScheduledEmails(ctx context.Context, userID int64, now time.Time) ([]models.ScheduledEmail, error)
	// ClaimScheduledEmail atomically flips SCHEDULED to SENDING. It returns
	// false when the email is no longer claimable (already claimed, sent,
	// failed or cancelled).
	ClaimScheduledEmail(ctx context.Context, userID, id int64) (bool, error)
	MarkScheduledEmailSent(ctx context.Context, userID, id int64, messageID string, sentAt time.Time) error
	MarkScheduledEmailFailed(ctx context.Context, userID, id int64, errorMessage string) error
	// CancelScheduledEmail moves SCHEDULED to CANCELLED. It returns false
	// when the email has already left the SCHEDULED state, and
	// sql.ErrNoRows when no such email exists for the user.
	CancelScheduledEmail(ctx context.Context, userID, id int64) (bool, error)
	// FailStaleSendingEmails marks SENDING emails claimed before the cutoff
	// as FAILED, recovering rows stranded by a crash between claim and send.
	// It returns how many rows were released.
	FailStaleSendingEmails(ctx context.Context, before time.Time) (int64, error)
}

type ResumeStore interface {
	UpsertResume(ctx context.Context, userID int64, res models.Resume) (*models.Resume, error)
	GetResumeByUser(ctx context.Context, userID int64) (*models.Resume, error)
	DeleteResume(ctx context.Context, userID int64) error
}
