package assignment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/coldreach/coldreach/internal/models"
	"github.com/coldreach/coldreach/internal/store"
)

var (
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrRecruiterNotFound  = errors.New("recruiter not found")
	ErrTemplateNotFound   = errors.New("template not found")
)

// Service owns the recruiter-template assignment lifecycle: creation, send
// bookkeeping, rotation to a follow-up template and deletion.
type Service struct {
	assignments store.AssignmentStore
	recruiters  store.RecruiterStore
	templates   store.TemplateStore
	now         func() time.Time
}

func NewService(assignments store.AssignmentStore, recruiters store.RecruiterStore, templates store.TemplateStore) *Service {
	return &Service{
		assignments: assignments,
		recruiters:  recruiters,
		templates:   templates,
		now:         time.Now,
	}
}

// Assign binds one recruiter to one template for the current ISO week. Both
// ids must resolve within the caller's user scope.
func (s *Service) Assign(ctx context.Context, userID, recruiterID, templateID int64) (*models.RecruiterTemplateAssignment, error) {
	if _, err := s.recruiters.GetRecruiterByID(ctx, userID, recruiterID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecruiterNotFound
		}
		return nil, fmt.Errorf("looking up recruiter: %w", err)
	}
	if _, err := s.templates.GetTemplateByID(ctx, userID, templateID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("looking up template: %w", err)
	}

	year, week := s.now().ISOWeek()
	a, err := s.assignments.CreateAssignment(ctx, userID, models.RecruiterTemplateAssignment{
		RecruiterID:  recruiterID,
		TemplateID:   templateID,
		WeekAssigned: week,
		YearAssigned: year,
		Status:       models.AssignmentActive,
		EmailsSent:   0,
	})
	if err != nil {
		return nil, fmt.Errorf("creating assignment: %w", err)
	}
	return a, nil
}

// BulkAssign validates the template once, then assigns every recruiter id
// that resolves. Unresolvable recruiters are skipped, not fatal; only the
// assignments actually created are returned.
func (s *Service) BulkAssign(ctx context.Context, userID int64, recruiterIDs []int64, templateID int64) ([]models.RecruiterTemplateAssignment, error) {
	if _, err := s.templates.GetTemplateByID(ctx, userID, templateID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("looking up template: %w", err)
	}

	year, week := s.now().ISOWeek()

	var created []models.RecruiterTemplateAssignment
	for _, recruiterID := range recruiterIDs {
		if _, err := s.recruiters.GetRecruiterByID(ctx, userID, recruiterID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				slog.Warn("bulk assign: skipping unknown recruiter",
					"user_id", userID, "recruiter_id", recruiterID)
				continue
			}
			return created, fmt.Errorf("looking up recruiter %d: %w", recruiterID, err)
		}

		a, err := s.assignments.CreateAssignment(ctx, userID, models.RecruiterTemplateAssignment{
			RecruiterID:  recruiterID,
			TemplateID:   templateID,
			WeekAssigned: week,
			YearAssigned: year,
			Status:       models.AssignmentActive,
			EmailsSent:   0,
		})
		if err != nil {
			return created, fmt.Errorf("creating assignment for recruiter %d: %w", recruiterID, err)
		}
		created = append(created, *a)
	}
	return created, nil
}

// MarkEmailSent increments the send counter and refreshes the last-sent time.
// There is no upper bound on the counter.
func (s *Service) MarkEmailSent(ctx context.Context, userID, assignmentID int64) error {
	if err := s.assignments.RecordAssignmentEmailSent(ctx, userID, assignmentID, s.now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrAssignmentNotFound
		}
		return fmt.Errorf("recording email sent: %w", err)
	}
	return nil
}

// RecordEmailSent is the dispatcher's entry point: it resolves the ACTIVE
// assignment for the template/recruiter pair and bumps its counter. A missing
// assignment is reported as ErrAssignmentNotFound; callers on the dispatch
// path log and continue, since the email itself was already sent.
func (s *Service) RecordEmailSent(ctx context.Context, userID, templateID, recruiterID int64) error {
	a, err := s.assignments.GetAssignmentByTemplateAndRecruiter(ctx, userID, templateID, recruiterID, models.AssignmentActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrAssignmentNotFound
		}
		return fmt.Errorf("looking up assignment: %w", err)
	}
	return s.MarkEmailSent(ctx, userID, a.ID)
}

// MoveToFollowup terminates the assignment with MOVED_TO_FOLLOWUP and, when a
// follow-up template resolves, creates a fresh ACTIVE assignment against it
// that carries the send history forward. Resolution order: the template's
// explicit follow-up reference, then the first ACTIVE template in the
// FOLLOW_UP category. When neither resolves the assignment is still
// terminated and no new assignment is created.
func (s *Service) MoveToFollowup(ctx context.Context, userID, assignmentID int64) error {
	a, err := s.assignments.GetAssignmentByID(ctx, userID, assignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrAssignmentNotFound
		}
		return fmt.Errorf("looking up assignment: %w", err)
	}

	if !a.Status.CanTransitionTo(models.AssignmentMovedToFollowup) {
		return fmt.Errorf("assignment %d is %s and cannot be moved to follow-up", a.ID, a.Status)
	}

	followUp := s.resolveFollowupTemplate(ctx, userID, a.TemplateID)

	if followUp != nil {
		_, err := s.assignments.CreateAssignment(ctx, userID, models.RecruiterTemplateAssignment{
			RecruiterID:     a.RecruiterID,
			TemplateID:      followUp.ID,
			WeekAssigned:    a.WeekAssigned,
			YearAssigned:    a.YearAssigned,
			Status:          models.AssignmentActive,
			EmailsSent:      a.EmailsSent,
			LastEmailSentAt: a.LastEmailSentAt,
		})
		if err != nil {
			return fmt.Errorf("creating follow-up assignment: %w", err)
		}
	} else {
		slog.Info("no follow-up template resolved, terminating assignment without rotation",
			"user_id", userID, "assignment_id", assignmentID)
	}

	if err := s.assignments.UpdateAssignmentStatus(ctx, userID, a.ID, models.AssignmentMovedToFollowup); err != nil {
		return fmt.Errorf("updating assignment status: %w", err)
	}
	return nil
}

func (s *Service) resolveFollowupTemplate(ctx context.Context, userID, currentTemplateID int64) *models.EmailTemplate {
	current, err := s.templates.GetTemplateByID(ctx, userID, currentTemplateID)
	if err == nil && current.FollowUpTemplateID != nil {
		if explicit, err := s.templates.GetTemplateByID(ctx, userID, *current.FollowUpTemplateID); err == nil {
			return explicit
		}
	}

	candidates, err := s.templates.ListTemplatesByUserCategoryAndStatus(ctx, userID, models.CategoryFollowUp, models.TemplateActive)
	if err != nil || len(candidates) == 0 {
		return nil
	}
	return &candidates[0]
}

func (s *Service) Get(ctx context.Context, userID, id int64) (*models.RecruiterTemplateAssignment, error) {
	a, err := s.assignments.GetAssignmentByID(ctx, userID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("looking up assignment: %w", err)
	}
	return a, nil
}

// ActiveAssignments lists the caller's ACTIVE assignments.
func (s *Service) ActiveAssignments(ctx context.Context, userID int64) ([]models.RecruiterTemplateAssignment, error) {
	return s.assignments.ListAssignmentsByUserAndStatus(ctx, userID, models.AssignmentActive)
}

// RecruitersForTemplate lists the ACTIVE assignments for one template.
func (s *Service) RecruitersForTemplate(ctx context.Context, userID, templateID int64) ([]models.RecruiterTemplateAssignment, error) {
	return s.assignments.ListAssignmentsByTemplateAndStatus(ctx, userID, templateID, models.AssignmentActive)
}

// WeekSummaries groups the template's ACTIVE assignments into Monday-aligned
// weekly buckets of their creation time, ordered oldest first.
func (s *Service) WeekSummaries(ctx context.Context, userID, templateID int64) ([]models.WeekSummary, error) {
	if _, err := s.templates.GetTemplateByID(ctx, userID, templateID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("looking up template: %w", err)
	}

	assignments, err := s.assignments.ListAssignmentsByTemplateAndStatus(ctx, userID, templateID, models.AssignmentActive)
	if err != nil {
		return nil, fmt.Errorf("listing assignments: %w", err)
	}

	buckets := make(map[time.Time]int)
	for _, a := range assignments {
		buckets[weekStart(a.CreatedAt)]++
	}

	starts := make([]time.Time, 0, len(buckets))
	for start := range buckets {
		starts = append(starts, start)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })

	summaries := make([]models.WeekSummary, 0, len(starts))
	for _, start := range starts {
		end := start.AddDate(0, 0, 6)
		summaries = append(summaries, models.WeekSummary{
			StartDate:       start,
			EndDate:         end,
			Label:           formatWeekLabel(start, end),
			RecruitersCount: buckets[start],
		})
	}
	return summaries, nil
}

// Delete removes one assignment; the record is read first so callers get
// NotFound for ids outside their user scope.
func (s *Service) Delete(ctx context.Context, userID, id int64) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	return s.assignments.DeleteAssignment(ctx, userID, id)
}

// BulkDelete removes the assignments best-effort: ids that do not resolve are
// skipped. The records actually deleted are returned, read before deletion.
func (s *Service) BulkDelete(ctx context.Context, userID int64, ids []int64) ([]models.RecruiterTemplateAssignment, error) {
	var deleted []models.RecruiterTemplateAssignment
	for _, id := range ids {
		a, err := s.assignments.GetAssignmentByID(ctx, userID, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return deleted, fmt.Errorf("looking up assignment %d: %w", id, err)
		}
		if err := s.assignments.DeleteAssignment(ctx, userID, id); err != nil {
			return deleted, fmt.Errorf("deleting assignment %d: %w", id, err)
		}
		deleted = append(deleted, *a)
	}
	return deleted, nil
}

// weekStart truncates t to midnight UTC of its Monday.
func weekStart(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// formatWeekLabel renders "Sep 16-22, 2024" within one month,
// "Sep 30-Oct 6, 2024" across a month boundary and
// "Dec 30, 2024-Jan 5, 2025" across a year boundary.
func formatWeekLabel(start, end time.Time) string {
	if start.Year() != end.Year() {
		return fmt.Sprintf("%s, %d-%s, %d", start.Format("Jan 2"), start.Year(), end.Format("Jan 2"), end.Year())
	}
	if start.Month() == end.Month() {
		return fmt.Sprintf("%s-%d, %d", start.Format("Jan 2"), end.Day(), start.Year())
	}
	return fmt.Sprintf("%s-%s, %d", start.Format("Jan 2"), end.Format("Jan 2"), start.Year())
}
