package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/coldreach/coldreach/internal/models"
	"github.com/coldreach/coldreach/internal/resume"
	"github.com/coldreach/coldreach/internal/web/middleware"
)

// ResumeHandler serves resume upload, download and delete.
type ResumeHandler struct {
	resumes *resume.Service
}

func NewResumeHandler(resumes *resume.Service) *ResumeHandler {
	return &ResumeHandler{resumes: resumes}
}

type resumeResponse struct {
	ID          int64     `json:"id"`
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	SizeBytes   int64     `json:"sizeBytes"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toResumeResponse(res *models.Resume) resumeResponse {
	return resumeResponse{
		ID:          res.ID,
		FileName:    res.FileName,
		ContentType: res.ContentType,
		SizeBytes:   res.SizeBytes,
		UpdatedAt:   res.UpdatedAt,
	}
}

// HandleUpload accepts a multipart form with a "file" field.
func (h *ResumeHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	if err := r.ParseMultipartForm(6 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	body, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read file")
		return
	}

	res, err := h.resumes.Upload(r.Context(), user.ID, header.Filename, header.Header.Get("Content-Type"), body)
	if err != nil {
		h.writeServiceError(w, user.ID, err)
		return
	}
	writeJSON(w, http.StatusCreated, toResumeResponse(res))
}

func (h *ResumeHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	res, err := h.resumes.Get(r.Context(), user.ID)
	if err != nil {
		h.writeServiceError(w, user.ID, err)
		return
	}
	writeJSON(w, http.StatusOK, toResumeResponse(res))
}

func (h *ResumeHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	res, body, err := h.resumes.Fetch(r.Context(), user.ID)
	if err != nil {
		h.writeServiceError(w, user.ID, err)
		return
	}

	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.FileName))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		slog.Error("writing resume download", "user_id", user.ID, "error", err)
	}
}

func (h *ResumeHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	if err := h.resumes.Delete(r.Context(), user.ID); err != nil {
		h.writeServiceError(w, user.ID, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (h *ResumeHandler) writeServiceError(w http.ResponseWriter, userID int64, err error) {
	switch {
	case errors.Is(err, resume.ErrResumeNotFound):
		writeError(w, http.StatusNotFound, "resume not found")
	case errors.Is(err, resume.ErrTooLarge), errors.Is(err, resume.ErrBadContentType):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("resume handler error", "user_id", userID, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
	}
}
