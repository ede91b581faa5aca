package resume

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/coldreach/coldreach/internal/blob"
	"github.com/coldreach/coldreach/internal/mail"
	"github.com/coldreach/coldreach/internal/models"
	"github.com/coldreach/coldreach/internal/store"
)

const maxSizeBytes = 5 << 20 // 5 MiB

var (
	ErrResumeNotFound = errors.New("resume not found")
	ErrTooLarge       = errors.New("resume exceeds the 5 MiB limit")
	ErrBadContentType = errors.New("resume must be a PDF or Word document")
)

var allowedContentTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

// Service keeps one resume per user: metadata in the database, the file
// itself in the blob store.
type Service struct {
	resumes store.ResumeStore
	blobs   blob.Store
}

func NewService(resumes store.ResumeStore, blobs blob.Store) *Service {
	return &Service{resumes: resumes, blobs: blobs}
}

// Upload stores or replaces the user's resume. A replaced file with a
// different name has its old blob removed.
func (s *Service) Upload(ctx context.Context, userID int64, fileName, contentType string, body []byte) (*models.Resume, error) {
	fileName = filepath.Base(strings.TrimSpace(fileName))
	if fileName == "" || fileName == "." {
		return nil, errors.New("file name is required")
	}
	if len(body) == 0 {
		return nil, errors.New("file is empty")
	}
	if len(body) > maxSizeBytes {
		return nil, ErrTooLarge
	}
	if !allowedContentTypes[contentType] {
		return nil, ErrBadContentType
	}

	key := fmt.Sprintf("%d/%s", userID, fileName)
	if err := s.blobs.Put(ctx, key, body); err != nil {
		return nil, fmt.Errorf("storing resume file: %w", err)
	}

	previous, err := s.resumes.GetResumeByUser(ctx, userID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("looking up resume: %w", err)
	}

	res, err := s.resumes.UpsertResume(ctx, userID, models.Resume{
		FileName:    fileName,
		ContentType: contentType,
		SizeBytes:   int64(len(body)),
		BlobKey:     key,
	})
	if err != nil {
		return nil, fmt.Errorf("storing resume metadata: %w", err)
	}

	if previous != nil && previous.BlobKey != key {
		if err := s.blobs.Delete(ctx, previous.BlobKey); err != nil {
			return res, fmt.Errorf("removing replaced resume file: %w", err)
		}
	}
	return res, nil
}

// Get returns the resume metadata for the user.
func (s *Service) Get(ctx context.Context, userID int64) (*models.Resume, error) {
	res, err := s.resumes.GetResumeByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrResumeNotFound
		}
		return nil, fmt.Errorf("looking up resume: %w", err)
	}
	return res, nil
}

// Fetch returns the resume metadata together with the file payload.
func (s *Service) Fetch(ctx context.Context, userID int64) (*models.Resume, []byte, error) {
	res, err := s.Get(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	body, err := s.blobs.Get(ctx, res.BlobKey)
	if err != nil {
		if errors.Is(err, blob.ErrObjectNotFound) {
			return nil, nil, ErrResumeNotFound
		}
		return nil, nil, fmt.Errorf("reading resume file: %w", err)
	}
	return res, body, nil
}

// FetchAttachment loads the resume as a mail attachment for the dispatcher.
func (s *Service) FetchAttachment(ctx context.Context, userID int64) (*mail.Attachment, error) {
	res, body, err := s.Fetch(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &mail.Attachment{
		Filename:    res.FileName,
		ContentType: res.ContentType,
		Content:     body,
	}, nil
}

// Delete removes the resume metadata and its file.
func (s *Service) Delete(ctx context.Context, userID int64) error {
	res, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.resumes.DeleteResume(ctx, userID); err != nil {
		return fmt.Errorf("deleting resume metadata: %w", err)
	}
	if err := s.blobs.Delete(ctx, res.BlobKey); err != nil {
		return fmt.Errorf("deleting resume file: %w", err)
	}
	return nil
}
