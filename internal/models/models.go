package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           int64
	PublicID     uuid.UUID
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Session struct {
	ID        int64
	Token     string
	UserID    int64
	ExpiresAt time.Time
	CreatedAt time.Time
}

// ContactStatus tracks where a recruiter sits in the outreach funnel.
type ContactStatus string

const (
	ContactPending     ContactStatus = "PENDING"
	ContactContacted   ContactStatus = "CONTACTED"
	ContactResponded   ContactStatus = "RESPONDED"
	ContactRejected    ContactStatus = "REJECTED"
	ContactInterviewed ContactStatus = "INTERVIEWED"
	ContactHired       ContactStatus = "HIRED"
)

type RecruiterContact struct {
	ID              int64
	PublicID        uuid.UUID
	UserID          int64
	Email           string
	Name            string
	Company         string
	JobRole         string
	LinkedinProfile string
	Notes           string
	Status          ContactStatus
	LastContactedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type TemplateCategory string

const (
	CategoryOutreach  TemplateCategory = "OUTREACH"
	CategoryFollowUp  TemplateCategory = "FOLLOW_UP"
	CategoryReferral  TemplateCategory = "REFERRAL"
	CategoryInterview TemplateCategory = "INTERVIEW"
	CategoryThankYou  TemplateCategory = "THANK_YOU"
)

type TemplateStatus string

const (
	TemplateActive   TemplateStatus = "ACTIVE"
	TemplateDraft    TemplateStatus = "DRAFT"
	TemplateArchived TemplateStatus = "ARCHIVED"
)

type EmailTemplate struct {
	ID                 int64
	PublicID           uuid.UUID
	UserID             int64
	Name               string
	Subject            string
	Body               string
	Category           TemplateCategory
	Status             TemplateStatus
	FollowUpTemplateID *int64
	UsageCount         int64
	LastUsedAt         *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// AssignmentStatus is the lifecycle state of a recruiter-template assignment.
// ACTIVE is the only non-terminal state; no transition returns to it.
type AssignmentStatus string

const (
	AssignmentActive          AssignmentStatus = "ACTIVE"
	AssignmentCompleted       AssignmentStatus = "COMPLETED"
	AssignmentMovedToFollowup AssignmentStatus = "MOVED_TO_FOLLOWUP"
	AssignmentArchived        AssignmentStatus = "ARCHIVED"
)

// CanTransitionTo reports whether moving from s to next is a legal lifecycle
// step. Terminal states admit no further transitions.
func (s AssignmentStatus) CanTransitionTo(next AssignmentStatus) bool {
	if s != AssignmentActive {
		return false
	}
	switch next {
	case AssignmentCompleted, AssignmentMovedToFollowup, AssignmentArchived:
		return true
	}
	return false
}

type RecruiterTemplateAssignment struct {
	ID              int64
	UserID          int64
	RecruiterID     int64
	TemplateID      int64
	WeekAssigned    int
	YearAssigned    int
	Status          AssignmentStatus
	EmailsSent      int
	LastEmailSentAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type EmailPriority string

const (
	PriorityLow    EmailPriority = "LOW"
	PriorityNormal EmailPriority = "NORMAL"
	PriorityHigh   EmailPriority = "HIGH"
)

// ScheduleStatus is the lifecycle state of a scheduled email. SENDING is the
// claim state: the dispatcher flips SCHEDULED to SENDING atomically before
// touching the gateway so an overlapping run cannot pick the same email up.
type ScheduleStatus string

const (
	ScheduleScheduled ScheduleStatus = "SCHEDULED"
	ScheduleSending   ScheduleStatus = "SENDING"
	ScheduleSent      ScheduleStatus = "SENT"
	ScheduleFailed    ScheduleStatus = "FAILED"
	ScheduleCancelled ScheduleStatus = "CANCELLED"
)

// CanTransitionTo reports whether moving from s to next is legal.
// SENT, FAILED and CANCELLED are terminal.
func (s ScheduleStatus) CanTransitionTo(next ScheduleStatus) bool {
	switch s {
	case ScheduleScheduled:
		return next == ScheduleSending || next == ScheduleCancelled
	case ScheduleSending:
		return next == ScheduleSent || next == ScheduleFailed
	}
	return false
}

type ScheduledEmail struct {
	ID           int64
	PublicID     uuid.UUID
	UserID       int64
	Recipient    string
	Subject      string
	Body         string
	HTML         bool
	Priority     EmailPriority
	TemplateID   *int64
	RecruiterID  *int64
	AttachResume bool
	DueAt        time.Time
	Status       ScheduleStatus
	ClaimedAt    *time.Time
	SentAt       *time.Time
	MessageID    string
	ErrorMessage string
	RetryCount   int
	CreatedAt    time.Time
}

type Resume struct {
	ID          int64
	UserID      int64
	FileName    string
	ContentType string
	SizeBytes   int64
	BlobKey     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// WeekSummary is one Monday-aligned bucket of active assignments for a
// template, used by the per-template recruiter view.
type WeekSummary struct {
	StartDate       time.Time
	EndDate         time.Time
	Label           string
	RecruitersCount int
}
