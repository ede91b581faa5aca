package recruiter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/coldreach/coldreach/internal/models"
	"github.com/coldreach/coldreach/internal/store"
)

var ErrRecruiterNotFound = errors.New("recruiter not found")

var validStatuses = map[models.ContactStatus]bool{
	models.ContactPending:     true,
	models.ContactContacted:   true,
	models.ContactResponded:   true,
	models.ContactRejected:    true,
	models.ContactInterviewed: true,
	models.ContactHired:       true,
}

// CreateParams carries the caller-supplied fields for a recruiter contact.
type CreateParams struct {
	Email           string
	Name            string
	Company         string
	JobRole         string
	LinkedinProfile string
	Notes           string
	Status          models.ContactStatus
}

// Service owns recruiter contact CRUD and funnel status changes.
type Service struct {
	recruiters store.RecruiterStore
}

func NewService(recruiters store.RecruiterStore) *Service {
	return &Service{recruiters: recruiters}
}

func (s *Service) Create(ctx context.Context, userID int64, params CreateParams) (*models.RecruiterContact, error) {
	params.Email = strings.TrimSpace(params.Email)
	if params.Email == "" {
		return nil, errors.New("recruiter email is required")
	}
	if params.Status == "" {
		params.Status = models.ContactPending
	}
	if !validStatuses[params.Status] {
		return nil, fmt.Errorf("unknown contact status %q", params.Status)
	}

	rec, err := s.recruiters.CreateRecruiter(ctx, userID, models.RecruiterContact{
		Email:           params.Email,
		Name:            strings.TrimSpace(params.Name),
		Company:         strings.TrimSpace(params.Company),
		JobRole:         strings.TrimSpace(params.JobRole),
		LinkedinProfile: strings.TrimSpace(params.LinkedinProfile),
		Notes:           params.Notes,
		Status:          params.Status,
	})
	if err != nil {
		return nil, fmt.Errorf("creating recruiter: %w", err)
	}
	return rec, nil
}

func (s *Service) Get(ctx context.Context, userID, id int64) (*models.RecruiterContact, error) {
	rec, err := s.recruiters.GetRecruiterByID(ctx, userID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecruiterNotFound
		}
		return nil, fmt.Errorf("looking up recruiter: %w", err)
	}
	return rec, nil
}

func (s *Service) List(ctx context.Context, userID int64) ([]models.RecruiterContact, error) {
	return s.recruiters.ListRecruitersByUser(ctx, userID)
}

// Search filters the user's recruiters by an optional status and a free-text
// query over name, email, company and role.
func (s *Service) Search(ctx context.Context, userID int64, query string, status models.ContactStatus) ([]models.RecruiterContact, error) {
	recruiters, err := s.recruiters.ListRecruitersByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing recruiters: %w", err)
	}

	query = strings.ToLower(strings.TrimSpace(query))
	var matched []models.RecruiterContact
	for _, rec := range recruiters {
		if status != "" && rec.Status != status {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(rec.Name), query) &&
			!strings.Contains(strings.ToLower(rec.Email), query) &&
			!strings.Contains(strings.ToLower(rec.Company), query) &&
			!strings.Contains(strings.ToLower(rec.JobRole), query) {
			continue
		}
		matched = append(matched, rec)
	}
	return matched, nil
}

func (s *Service) Update(ctx context.Context, userID, id int64, params CreateParams) (*models.RecruiterContact, error) {
	existing, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if email := strings.TrimSpace(params.Email); email != "" {
		existing.Email = email
	}
	existing.Name = strings.TrimSpace(params.Name)
	existing.Company = strings.TrimSpace(params.Company)
	existing.JobRole = strings.TrimSpace(params.JobRole)
	existing.LinkedinProfile = strings.TrimSpace(params.LinkedinProfile)
	existing.Notes = params.Notes
	if params.Status != "" {
		if !validStatuses[params.Status] {
			return nil, fmt.Errorf("unknown contact status %q", params.Status)
		}
		existing.Status = params.Status
	}

	if err := s.recruiters.UpdateRecruiter(ctx, userID, existing); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecruiterNotFound
		}
		return nil, fmt.Errorf("updating recruiter: %w", err)
	}
	return existing, nil
}

// UpdateStatus moves the recruiter through the outreach funnel.
func (s *Service) UpdateStatus(ctx context.Context, userID, id int64, status models.ContactStatus) (*models.RecruiterContact, error) {
	if !validStatuses[status] {
		return nil, fmt.Errorf("unknown contact status %q", status)
	}
	existing, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	existing.Status = status
	if err := s.recruiters.UpdateRecruiter(ctx, userID, existing); err != nil {
		return nil, fmt.Errorf("updating recruiter status: %w", err)
	}
	return existing, nil
}

func (s *Service) Delete(ctx context.Context, userID, id int64) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	return s.recruiters.DeleteRecruiter(ctx, userID, id)
}
