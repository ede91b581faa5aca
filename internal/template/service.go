package template

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coldreach/coldreach/internal/models"
	"github.com/coldreach/coldreach/internal/placeholder"
	"github.com/coldreach/coldreach/internal/store"
)

var (
	ErrTemplateNotFound = errors.New("template not found")
	ErrDuplicateName    = errors.New("template with this name already exists")
)

// CreateParams carries the caller-supplied fields for a new template.
type CreateParams struct {
	Name               string
	Subject            string
	Body               string
	Category           models.TemplateCategory
	Status             models.TemplateStatus
	FollowUpTemplateID *int64
}

// Service owns the email-template lifecycle, including the rule that a user
// has at most one ACTIVE template per category.
type Service struct {
	templates store.TemplateStore
}

func NewService(templates store.TemplateStore) *Service {
	return &Service{templates: templates}
}

// Create validates placeholders, rejects duplicate names and stores the
// template. When the new template is ACTIVE, every other ACTIVE template in
// the same category is demoted to DRAFT first.
func (s *Service) Create(ctx context.Context, userID int64, params CreateParams) (*models.EmailTemplate, error) {
	params.Name = strings.TrimSpace(params.Name)
	if params.Name == "" {
		return nil, errors.New("template name must not be empty")
	}
	if err := validateText(params.Subject, params.Body); err != nil {
		return nil, err
	}
	if params.Category == "" {
		params.Category = models.CategoryOutreach
	}
	if params.Status == "" {
		params.Status = models.TemplateDraft
	}

	if _, err := s.templates.GetTemplateByName(ctx, userID, params.Name); err == nil {
		return nil, ErrDuplicateName
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("checking template name: %w", err)
	}

	if params.Status == models.TemplateActive {
		if err := s.demoteOtherActive(ctx, userID, params.Category, 0); err != nil {
			return nil, err
		}
	}

	tmpl, err := s.templates.CreateTemplate(ctx, userID, models.EmailTemplate{
		Name:               params.Name,
		Subject:            strings.TrimSpace(params.Subject),
		Body:               strings.TrimSpace(params.Body),
		Category:           params.Category,
		Status:             params.Status,
		FollowUpTemplateID: params.FollowUpTemplateID,
	})
	if err != nil {
		return nil, fmt.Errorf("creating template: %w", err)
	}
	return tmpl, nil
}

// Update rewrites the template fields. A status change to ACTIVE demotes the
// rest of the category, excluding the template itself.
func (s *Service) Update(ctx context.Context, userID, id int64, params CreateParams) (*models.EmailTemplate, error) {
	if err := validateText(params.Subject, params.Body); err != nil {
		return nil, err
	}

	existing, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	params.Name = strings.TrimSpace(params.Name)
	if params.Name != "" && params.Name != existing.Name {
		conflict, err := s.templates.GetTemplateByName(ctx, userID, params.Name)
		if err == nil && conflict.ID != id {
			return nil, ErrDuplicateName
		} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("checking template name: %w", err)
		}
		existing.Name = params.Name
	}

	existing.Subject = strings.TrimSpace(params.Subject)
	existing.Body = strings.TrimSpace(params.Body)
	if params.Category != "" {
		existing.Category = params.Category
	}
	if params.Status != "" {
		existing.Status = params.Status
	}
	existing.FollowUpTemplateID = params.FollowUpTemplateID

	if existing.Status == models.TemplateActive {
		if err := s.demoteOtherActive(ctx, userID, existing.Category, id); err != nil {
			return nil, err
		}
	}

	if err := s.templates.UpdateTemplate(ctx, userID, existing); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("updating template: %w", err)
	}
	return existing, nil
}

// Activate transitions the template to ACTIVE, demoting any other ACTIVE
// template in the same category to DRAFT.
func (s *Service) Activate(ctx context.Context, userID, id int64) error {
	tmpl, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := s.demoteOtherActive(ctx, userID, tmpl.Category, id); err != nil {
		return err
	}

	if err := s.templates.UpdateTemplateStatus(ctx, userID, id, models.TemplateActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTemplateNotFound
		}
		return fmt.Errorf("activating template: %w", err)
	}
	return nil
}

func (s *Service) Archive(ctx context.Context, userID, id int64) error {
	if err := s.templates.UpdateTemplateStatus(ctx, userID, id, models.TemplateArchived); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTemplateNotFound
		}
		return fmt.Errorf("archiving template: %w", err)
	}
	return nil
}

// Duplicate clones a template under "<name> (Copy)" as a DRAFT.
func (s *Service) Duplicate(ctx context.Context, userID, id int64) (*models.EmailTemplate, error) {
	orig, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	copyName := orig.Name + " (Copy)"
	if _, err := s.templates.GetTemplateByName(ctx, userID, copyName); err == nil {
		return nil, ErrDuplicateName
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("checking template name: %w", err)
	}

	dup, err := s.templates.CreateTemplate(ctx, userID, models.EmailTemplate{
		Name:               copyName,
		Subject:            orig.Subject,
		Body:               orig.Body,
		Category:           orig.Category,
		Status:             models.TemplateDraft,
		FollowUpTemplateID: orig.FollowUpTemplateID,
	})
	if err != nil {
		return nil, fmt.Errorf("duplicating template: %w", err)
	}
	return dup, nil
}

func (s *Service) Get(ctx context.Context, userID, id int64) (*models.EmailTemplate, error) {
	tmpl, err := s.templates.GetTemplateByID(ctx, userID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("looking up template: %w", err)
	}
	return tmpl, nil
}

func (s *Service) List(ctx context.Context, userID int64) ([]models.EmailTemplate, error) {
	return s.templates.ListTemplatesByUser(ctx, userID)
}

// Search filters by optional category and status, then by a free-text query
// over name, subject, body and category.
func (s *Service) Search(ctx context.Context, userID int64, query string, category models.TemplateCategory, status models.TemplateStatus) ([]models.EmailTemplate, error) {
	var (
		templates []models.EmailTemplate
		err       error
	)
	switch {
	case category != "" && status != "":
		templates, err = s.templates.ListTemplatesByUserCategoryAndStatus(ctx, userID, category, status)
	case category != "":
		templates, err = s.templates.ListTemplatesByUserAndCategory(ctx, userID, category)
	case status != "":
		templates, err = s.templates.ListTemplatesByUserAndStatus(ctx, userID, status)
	default:
		templates, err = s.templates.ListTemplatesByUser(ctx, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("listing templates: %w", err)
	}

	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return templates, nil
	}

	var matched []models.EmailTemplate
	for _, t := range templates {
		if strings.Contains(strings.ToLower(t.Name), query) ||
			strings.Contains(strings.ToLower(t.Subject), query) ||
			strings.Contains(strings.ToLower(t.Body), query) ||
			strings.Contains(strings.ToLower(string(t.Category)), query) {
			matched = append(matched, t)
		}
	}
	return matched, nil
}

// Stats summarises the user's template counts by status.
type Stats struct {
	Total      int   `json:"total"`
	Active     int   `json:"active"`
	Draft      int   `json:"draft"`
	Archived   int   `json:"archived"`
	TotalUsage int64 `json:"totalUsage"`
}

func (s *Service) GetStats(ctx context.Context, userID int64) (*Stats, error) {
	templates, err := s.templates.ListTemplatesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing templates: %w", err)
	}

	stats := &Stats{Total: len(templates)}
	for _, t := range templates {
		switch t.Status {
		case models.TemplateActive:
			stats.Active++
		case models.TemplateDraft:
			stats.Draft++
		case models.TemplateArchived:
			stats.Archived++
		}
		stats.TotalUsage += t.UsageCount
	}
	return stats, nil
}

func (s *Service) Delete(ctx context.Context, userID, id int64) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	return s.templates.DeleteTemplate(ctx, userID, id)
}

// RecordUsage bumps the usage counter when a template is composed into an email.
func (s *Service) RecordUsage(ctx context.Context, userID, id int64) error {
	return s.templates.IncrementTemplateUsage(ctx, userID, id, time.Now().UTC())
}

// demoteOtherActive enumerates the user's ACTIVE templates in the category and
// flips each one to DRAFT, excluding excludeID. Not atomic against concurrent
// activations by the same user; last writer wins.
func (s *Service) demoteOtherActive(ctx context.Context, userID int64, category models.TemplateCategory, excludeID int64) error {
	active, err := s.templates.ListTemplatesByUserCategoryAndStatus(ctx, userID, category, models.TemplateActive)
	if err != nil {
		return fmt.Errorf("listing active templates: %w", err)
	}
	for _, t := range active {
		if t.ID == excludeID {
			continue
		}
		if err := s.templates.UpdateTemplateStatus(ctx, userID, t.ID, models.TemplateDraft); err != nil {
			return fmt.Errorf("demoting template %d: %w", t.ID, err)
		}
	}
	return nil
}

func validateText(subject, body string) error {
	verr := &placeholder.ValidationError{}
	for _, text := range []string{subject, body} {
		var fieldErr *placeholder.ValidationError
		if err := placeholder.Validate(text); errors.As(err, &fieldErr) {
			verr.Invalid = append(verr.Invalid, fieldErr.Invalid...)
			verr.Malformed = append(verr.Malformed, fieldErr.Malformed...)
		}
	}
	if len(verr.Invalid) > 0 || len(verr.Malformed) > 0 {
		return verr
	}
	return nil
}
