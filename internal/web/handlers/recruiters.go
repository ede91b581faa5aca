package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coldreach/coldreach/internal/models"
	"github.com/coldreach/coldreach/internal/recruiter"
	"github.com/coldreach/coldreach/internal/web/middleware"
)

// RecruiterHandler serves recruiter contact CRUD.
type RecruiterHandler struct {
	recruiters *recruiter.Service
}

func NewRecruiterHandler(recruiters *recruiter.Service) *RecruiterHandler {
	return &RecruiterHandler{recruiters: recruiters}
}

type recruiterRequest struct {
	Email           string `json:"email"`
	Name            string `json:"name"`
	Company         string `json:"company"`
	JobRole         string `json:"jobRole"`
	LinkedinProfile string `json:"linkedinProfile"`
	Notes           string `json:"notes"`
	Status          string `json:"status"`
}

type recruiterResponse struct {
	ID              int64      `json:"id"`
	Email           string     `json:"email"`
	Name            string     `json:"name"`
	Company         string     `json:"company"`
	JobRole         string     `json:"jobRole"`
	LinkedinProfile string     `json:"linkedinProfile"`
	Notes           string     `json:"notes"`
	Status          string     `json:"status"`
	LastContactedAt *time.Time `json:"lastContactedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

func toRecruiterResponse(rec *models.RecruiterContact) recruiterResponse {
	return recruiterResponse{
		ID:              rec.ID,
		Email:           rec.Email,
		Name:            rec.Name,
		Company:         rec.Company,
		JobRole:         rec.JobRole,
		LinkedinProfile: rec.LinkedinProfile,
		Notes:           rec.Notes,
		Status:          string(rec.Status),
		LastContactedAt: rec.LastContactedAt,
		CreatedAt:       rec.CreatedAt,
	}
}

func (h *RecruiterHandler) params(req recruiterRequest) recruiter.CreateParams {
	return recruiter.CreateParams{
		Email:           req.Email,
		Name:            req.Name,
		Company:         req.Company,
		JobRole:         req.JobRole,
		LinkedinProfile: req.LinkedinProfile,
		Notes:           req.Notes,
		Status:          models.ContactStatus(req.Status),
	}
}

func (h *RecruiterHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	var req recruiterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.recruiters.Create(r.Context(), user.ID, h.params(req))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, toRecruiterResponse(rec))
}

func (h *RecruiterHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	query := r.URL.Query().Get("q")
	status := models.ContactStatus(r.URL.Query().Get("status"))

	var (
		recruiters []models.RecruiterContact
		err        error
	)
	if query != "" || status != "" {
		recruiters, err = h.recruiters.Search(r.Context(), user.ID, query, status)
	} else {
		recruiters, err = h.recruiters.List(r.Context(), user.ID)
	}
	if err != nil {
		slog.Error("listing recruiters", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	out := make([]recruiterResponse, 0, len(recruiters))
	for i := range recruiters {
		out = append(out, toRecruiterResponse(&recruiters[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *RecruiterHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	id, err := urlID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.recruiters.Get(r.Context(), user.ID, id)
	if err != nil {
		h.writeServiceError(w, user.ID, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecruiterResponse(rec))
}

func (h *RecruiterHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	id, err := urlID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req recruiterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.recruiters.Update(r.Context(), user.ID, id, h.params(req))
	if err != nil {
		h.writeServiceError(w, user.ID, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecruiterResponse(rec))
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *RecruiterHandler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	id, err := urlID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.recruiters.UpdateStatus(r.Context(), user.ID, id, models.ContactStatus(req.Status))
	if err != nil {
		h.writeServiceError(w, user.ID, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecruiterResponse(rec))
}

func (h *RecruiterHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	id, err := urlID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.recruiters.Delete(r.Context(), user.ID, id); err != nil {
		h.writeServiceError(w, user.ID, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (h *RecruiterHandler) writeServiceError(w http.ResponseWriter, userID int64, err error) {
	switch {
	case errors.Is(err, recruiter.ErrRecruiterNotFound):
		writeError(w, http.StatusNotFound, "recruiter not found")
	default:
		slog.Error("recruiter handler error", "user_id", userID, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
	}
}
