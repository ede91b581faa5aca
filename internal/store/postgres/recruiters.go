package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/coldreach/coldreach/internal/models"
	"github.com/google/uuid"
)

type RecruiterStore struct {
	db *sql.DB
}

func NewRecruiterStore(db *sql.DB) *RecruiterStore {
	return &RecruiterStore{db: db}
}

func (s *RecruiterStore) CreateRecruiter(ctx context.Context, userID int64, params models.RecruiterContact) (*models.RecruiterContact, error) {
	rec := &params
	rec.PublicID = uuid.New()
	rec.UserID = userID
	if rec.Status == "" {
		rec.Status = models.ContactPending
	}

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO recruiter_contacts
		 (public_id, user_id, email, name, company, job_role, linkedin_profile, notes, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at, updated_at`,
		rec.PublicID, rec.UserID, rec.Email, rec.Name, rec.Company,
		rec.JobRole, rec.LinkedinProfile, rec.Notes, rec.Status,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return rec, nil
}

func (s *RecruiterStore) GetRecruiterByID(ctx context.Context, userID, id int64) (*models.RecruiterContact, error) {
	rec := &models.RecruiterContact{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, public_id, user_id, email, name, company, job_role, linkedin_profile,
		        notes, status, last_contacted_at, created_at, updated_at
		 FROM recruiter_contacts WHERE user_id = $1 AND id = $2`,
		userID, id,
	).Scan(&rec.ID, &rec.PublicID, &rec.UserID, &rec.Email, &rec.Name, &rec.Company,
		&rec.JobRole, &rec.LinkedinProfile, &rec.Notes, &rec.Status,
		&rec.LastContactedAt, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *RecruiterStore) ListRecruitersByUser(ctx context.Context, userID int64) ([]models.RecruiterContact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, public_id, user_id, email, name, company, job_role, linkedin_profile,
		        notes, status, last_contacted_at, created_at, updated_at
		 FROM recruiter_contacts WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recruiters []models.RecruiterContact
	for rows.Next() {
		var r models.RecruiterContact
		if err := rows.Scan(&r.ID, &r.PublicID, &r.UserID, &r.Email, &r.Name, &r.Company,
			&r.JobRole, &r.LinkedinProfile, &r.Notes, &r.Status,
			&r.LastContactedAt, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		recruiters = append(recruiters, r)
	}
	return recruiters, rows.Err()
}

func (s *RecruiterStore) UpdateRecruiter(ctx context.Context, userID int64, rec *models.RecruiterContact) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE recruiter_contacts
		 SET email = $3, name = $4, company = $5, job_role = $6, linkedin_profile = $7,
		     notes = $8, status = $9, updated_at = NOW()
		 WHERE user_id = $1 AND id = $2`,
		userID, rec.ID, rec.Email, rec.Name, rec.Company, rec.JobRole,
		rec.LinkedinProfile, rec.Notes, rec.Status,
	)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (s *RecruiterStore) UpdateRecruiterLastContacted(ctx context.Context, userID, id int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE recruiter_contacts
		 SET last_contacted_at = $3, status = $4, updated_at = NOW()
		 WHERE user_id = $1 AND id = $2`,
		userID, id, at, models.ContactContacted,
	)
	return err
}

func (s *RecruiterStore) DeleteRecruiter(ctx context.Context, userID, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM recruiter_contacts WHERE user_id = $1 AND id = $2`, userID, id)
	return err
}

// requireRowAffected converts a zero-row update into sql.ErrNoRows so callers
// can treat missing rows uniformly with QueryRow lookups.
func requireRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
