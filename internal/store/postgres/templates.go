package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/coldreach/coldreach/internal/models"
	"github.com/google/uuid"
)

type TemplateStore struct {
	db *sql.DB
}

func NewTemplateStore(db *sql.DB) *TemplateStore {
	return &TemplateStore{db: db}
}

const templateColumns = `id, public_id, user_id, name, subject, body, category, status,
	follow_up_template_id, usage_count, last_used_at, created_at, updated_at`

func scanTemplate(row interface{ Scan(...any) error }) (*models.EmailTemplate, error) {
	t := &models.EmailTemplate{}
	err := row.Scan(&t.ID, &t.PublicID, &t.UserID, &t.Name, &t.Subject, &t.Body,
		&t.Category, &t.Status, &t.FollowUpTemplateID, &t.UsageCount,
		&t.LastUsedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TemplateStore) CreateTemplate(ctx context.Context, userID int64, tmpl models.EmailTemplate) (*models.EmailTemplate, error) {
	t := &tmpl
	t.PublicID = uuid.New()
	t.UserID = userID

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO email_templates
		 (public_id, user_id, name, subject, body, category, status, follow_up_template_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, usage_count, created_at, updated_at`,
		t.PublicID, t.UserID, t.Name, t.Subject, t.Body, t.Category, t.Status, t.FollowUpTemplateID,
	).Scan(&t.ID, &t.UsageCount, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return t, nil
}

func (s *TemplateStore) GetTemplateByID(ctx context.Context, userID, id int64) (*models.EmailTemplate, error) {
	return scanTemplate(s.db.QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM email_templates WHERE user_id = $1 AND id = $2`,
		userID, id,
	))
}

func (s *TemplateStore) GetTemplateByName(ctx context.Context, userID int64, name string) (*models.EmailTemplate, error) {
	return scanTemplate(s.db.QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM email_templates WHERE user_id = $1 AND name = $2`,
		userID, name,
	))
}

func (s *TemplateStore) ListTemplatesByUser(ctx context.Context, userID int64) ([]models.EmailTemplate, error) {
	return s.listTemplates(ctx,
		`SELECT `+templateColumns+` FROM email_templates WHERE user_id = $1 ORDER BY created_at DESC`,
		userID)
}

func (s *TemplateStore) ListTemplatesByUserAndCategory(ctx context.Context, userID int64, category models.TemplateCategory) ([]models.EmailTemplate, error) {
	return s.listTemplates(ctx,
		`SELECT `+templateColumns+` FROM email_templates
		 WHERE user_id = $1 AND category = $2 ORDER BY created_at DESC`,
		userID, category)
}

func (s *TemplateStore) ListTemplatesByUserAndStatus(ctx context.Context, userID int64, status models.TemplateStatus) ([]models.EmailTemplate, error) {
	return s.listTemplates(ctx,
		`SELECT `+templateColumns+` FROM email_templates
		 WHERE user_id = $1 AND status = $2 ORDER BY created_at DESC`,
		userID, status)
}

func (s *TemplateStore) ListTemplatesByUserCategoryAndStatus(ctx context.Context, userID int64, category models.TemplateCategory, status models.TemplateStatus) ([]models.EmailTemplate, error) {
	return s.listTemplates(ctx,
		`SELECT `+templateColumns+` FROM email_templates
		 WHERE user_id = $1 AND category = $2 AND status = $3 ORDER BY created_at DESC`,
		userID, category, status)
}

func (s *TemplateStore) listTemplates(ctx context.Context, query string, args ...any) ([]models.EmailTemplate, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []models.EmailTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, *t)
	}
	return templates, rows.Err()
}

func (s *TemplateStore) UpdateTemplate(ctx context.Context, userID int64, tmpl *models.EmailTemplate) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE email_templates
		 SET name = $3, subject = $4, body = $5, category = $6, status = $7,
		     follow_up_template_id = $8, updated_at = NOW()
		 WHERE user_id = $1 AND id = $2`,
		userID, tmpl.ID, tmpl.Name, tmpl.Subject, tmpl.Body, tmpl.Category,
		tmpl.Status, tmpl.FollowUpTemplateID,
	)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (s *TemplateStore) UpdateTemplateStatus(ctx context.Context, userID, id int64, status models.TemplateStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE email_templates SET status = $3, updated_at = NOW()
		 WHERE user_id = $1 AND id = $2`,
		userID, id, status,
	)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (s *TemplateStore) IncrementTemplateUsage(ctx context.Context, userID, id int64, usedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE email_templates
		 SET usage_count = usage_count + 1, last_used_at = $3, updated_at = NOW()
		 WHERE user_id = $1 AND id = $2`,
		userID, id, usedAt,
	)
	return err
}

func (s *TemplateStore) DeleteTemplate(ctx context.Context, userID, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM email_templates WHERE user_id = $1 AND id = $2`, userID, id)
	return err
}
