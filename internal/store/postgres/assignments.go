package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/coldreach/coldreach/internal/models"
)

type AssignmentStore struct {
	db *sql.DB
}

func NewAssignmentStore(db *sql.DB) *AssignmentStore {
	return &AssignmentStore{db: db}
}

const assignmentColumns = `id, user_id, recruiter_id, template_id, week_assigned, year_assigned,
	status, emails_sent, last_email_sent_at, created_at, updated_at`

func scanAssignment(row interface{ Scan(...any) error }) (*models.RecruiterTemplateAssignment, error) {
	a := &models.RecruiterTemplateAssignment{}
	err := row.Scan(&a.ID, &a.UserID, &a.RecruiterID, &a.TemplateID,
		&a.WeekAssigned, &a.YearAssigned, &a.Status, &a.EmailsSent,
		&a.LastEmailSentAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *AssignmentStore) CreateAssignment(ctx context.Context, userID int64, params models.RecruiterTemplateAssignment) (*models.RecruiterTemplateAssignment, error) {
	a := &params
	a.UserID = userID

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO recruiter_template_assignments
		 (user_id, recruiter_id, template_id, week_assigned, year_assigned, status,
		  emails_sent, last_email_sent_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at, updated_at`,
		a.UserID, a.RecruiterID, a.TemplateID, a.WeekAssigned, a.YearAssigned,
		a.Status, a.EmailsSent, a.LastEmailSentAt,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return a, nil
}

func (s *AssignmentStore) GetAssignmentByID(ctx context.Context, userID, id int64) (*models.RecruiterTemplateAssignment, error) {
	return scanAssignment(s.db.QueryRowContext(ctx,
		`SELECT `+assignmentColumns+`
		 FROM recruiter_template_assignments WHERE user_id = $1 AND id = $2`,
		userID, id,
	))
}

func (s *AssignmentStore) ListAssignmentsByUserAndStatus(ctx context.Context, userID int64, status models.AssignmentStatus) ([]models.RecruiterTemplateAssignment, error) {
	return s.listAssignments(ctx,
		`SELECT `+assignmentColumns+`
		 FROM recruiter_template_assignments
		 WHERE user_id = $1 AND status = $2 ORDER BY created_at`,
		userID, status)
}

func (s *AssignmentStore) ListAssignmentsByTemplateAndStatus(ctx context.Context, userID, templateID int64, status models.AssignmentStatus) ([]models.RecruiterTemplateAssignment, error) {
	return s.listAssignments(ctx,
		`SELECT `+assignmentColumns+`
		 FROM recruiter_template_assignments
		 WHERE user_id = $1 AND template_id = $2 AND status = $3 ORDER BY created_at`,
		userID, templateID, status)
}

func (s *AssignmentStore) listAssignments(ctx context.Context, query string, args ...any) ([]models.RecruiterTemplateAssignment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []models.RecruiterTemplateAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, *a)
	}
	return assignments, rows.Err()
}

func (s *AssignmentStore) GetAssignmentByTemplateAndRecruiter(ctx context.Context, userID, templateID, recruiterID int64, status models.AssignmentStatus) (*models.RecruiterTemplateAssignment, error) {
	return scanAssignment(s.db.QueryRowContext(ctx,
		`SELECT `+assignmentColumns+`
		 FROM recruiter_template_assignments
		 WHERE user_id = $1 AND template_id = $2 AND recruiter_id = $3 AND status = $4
		 ORDER BY created_at DESC LIMIT 1`,
		userID, templateID, recruiterID, status,
	))
}

func (s *AssignmentStore) RecordAssignmentEmailSent(ctx context.Context, userID, id int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE recruiter_template_assignments
		 SET emails_sent = emails_sent + 1, last_email_sent_at = $3, updated_at = NOW()
		 WHERE user_id = $1 AND id = $2`,
		userID, id, at,
	)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (s *AssignmentStore) UpdateAssignmentStatus(ctx context.Context, userID, id int64, status models.AssignmentStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE recruiter_template_assignments
		 SET status = $3, updated_at = NOW()
		 WHERE user_id = $1 AND id = $2`,
		userID, id, status,
	)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (s *AssignmentStore) DeleteAssignment(ctx context.Context, userID, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM recruiter_template_assignments WHERE user_id = $1 AND id = $2`,
		userID, id)
	return err
}
