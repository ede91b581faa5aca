package postgres

import (
	"context"
	"database/sql"

	"github.com/coldreach/coldreach/internal/models"
)

type ResumeStore struct {
	db *sql.DB
}

func NewResumeStore(db *sql.DB) *ResumeStore {
	return &ResumeStore{db: db}
}

func (s *ResumeStore) UpsertResume(ctx context.Context, userID int64, params models.Resume) (*models.Resume, error) {
	res := &params
	res.UserID = userID

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO resumes (user_id, file_name, content_type, size_bytes, blob_key)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id) DO UPDATE
		 SET file_name = EXCLUDED.file_name, content_type = EXCLUDED.content_type,
		     size_bytes = EXCLUDED.size_bytes, blob_key = EXCLUDED.blob_key,
		     updated_at = NOW()
		 RETURNING id, created_at, updated_at`,
		res.UserID, res.FileName, res.ContentType, res.SizeBytes, res.BlobKey,
	).Scan(&res.ID, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return res, nil
}

func (s *ResumeStore) GetResumeByUser(ctx context.Context, userID int64) (*models.Resume, error) {
	res := &models.Resume{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, file_name, content_type, size_bytes, blob_key, created_at, updated_at
		 FROM resumes WHERE user_id = $1`,
		userID,
	).Scan(&res.ID, &res.UserID, &res.FileName, &res.ContentType, &res.SizeBytes,
		&res.BlobKey, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *ResumeStore) DeleteResume(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM resumes WHERE user_id = $1`, userID)
	return err
}
