package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coldreach/coldreach/internal/models"
	"github.com/coldreach/coldreach/internal/schedule"
	"github.com/coldreach/coldreach/internal/web/middleware"
)

// ScheduleHandler serves scheduled email endpoints.
type ScheduleHandler struct {
	schedule *schedule.Service
}

func NewScheduleHandler(scheduleService *schedule.Service) *ScheduleHandler {
	return &ScheduleHandler{schedule: scheduleService}
}

type scheduleRequest struct {
	Recipient    string     `json:"recipient"`
	Subject      string     `json:"subject"`
	Body         string     `json:"body"`
	HTML         bool       `json:"html"`
	Priority     string     `json:"priority"`
	TemplateID   *int64     `json:"templateId"`
	RecruiterID  *int64     `json:"recruiterId"`
	AttachResume bool       `json:"attachResume"`
	DueAt        *time.Time `json:"dueAt"`
}

type composeRequest struct {
	TemplateID   int64             `json:"templateId"`
	RecruiterID  int64             `json:"recruiterId"`
	Extras       map[string]string `json:"extras"`
	Priority     string            `json:"priority"`
	AttachResume bool              `json:"attachResume"`
	DueAt        *time.Time        `json:"dueAt"`
}

type scheduledEmailResponse struct {
	ID           int64      `json:"id"`
	PublicID     string     `json:"publicId"`
	Recipient    string     `json:"recipient"`
	Subject      string     `json:"subject"`
	Body         string     `json:"body"`
	HTML         bool       `json:"html"`
	Priority     string     `json:"priority"`
	TemplateID   *int64     `json:"templateId,omitempty"`
	RecruiterID  *int64     `json:"recruiterId,omitempty"`
	AttachResume bool       `json:"attachResume"`
	DueAt        time.Time  `json:"dueAt"`
	Status       string     `json:"status"`
	SentAt       *time.Time `json:"sentAt,omitempty"`
	MessageID    string     `json:"messageId,omitempty"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

func toScheduledEmailResponse(e *models.ScheduledEmail) scheduledEmailResponse {
	return scheduledEmailResponse{
		ID:           e.ID,
		PublicID:     e.PublicID.String(),
		Recipient:    e.Recipient,
		Subject:      e.Subject,
		Body:         e.Body,
		HTML:         e.HTML,
		Priority:     string(e.Priority),
		TemplateID:   e.TemplateID,
		RecruiterID:  e.RecruiterID,
		AttachResume: e.AttachResume,
		DueAt:        e.DueAt,
		Status:       string(e.Status),
		SentAt:       e.SentAt,
		MessageID:    e.MessageID,
		ErrorMessage: e.ErrorMessage,
		CreatedAt:    e.CreatedAt,
	}
}

func (h *ScheduleHandler) HandleSchedule(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	var req scheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	params := schedule.ScheduleParams{
		Recipient:    req.Recipient,
		Subject:      req.Subject,
		Body:         req.Body,
		HTML:         req.HTML,
		Priority:     models.EmailPriority(req.Priority),
		TemplateID:   req.TemplateID,
		RecruiterID:  req.RecruiterID,
		AttachResume: req.AttachResume,
	}
	if req.DueAt != nil {
		params.DueAt = *req.DueAt
	}

	email, err := h.schedule.Schedule(r.Context(), user.ID, params)
	if err != nil {
		h.writeServiceError(w, user.ID, err)
		return
	}
	writeJSON(w, http.StatusCreated, toScheduledEmailResponse(email))
}

func (h *ScheduleHandler) HandleCompose(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	var req composeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	params := schedule.ComposeParams{
		TemplateID:   req.TemplateID,
		RecruiterID:  req.RecruiterID,
		Extras:       req.Extras,
		Priority:     models.EmailPriority(req.Priority),
		AttachResume: req.AttachResume,
	}
	if req.DueAt != nil {
		params.DueAt = *req.DueAt
	}

	email, err := h.schedule.ComposeFromTemplate(r.Context(), user.ID, params)
	if err != nil {
		h.writeServiceError(w, user.ID, err)
		return
	}
	writeJSON(w, http.StatusCreated, toScheduledEmailResponse(email))
}

func (h *ScheduleHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	emails, err := h.schedule.List(r.Context(), user.ID)
	if err != nil {
		slog.Error("listing scheduled emails", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	out := make([]scheduledEmailResponse, 0, len(emails))
	for i := range emails {
		out = append(out, toScheduledEmailResponse(&emails[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ScheduleHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	id, err := urlID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	email, err := h.schedule.Get(r.Context(), user.ID, id)
	if err != nil {
		h.writeServiceError(w, user.ID, err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduledEmailResponse(email))
}

func (h *ScheduleHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	id, err := urlID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.schedule.Cancel(r.Context(), user.ID, id); err != nil {
		h.writeServiceError(w, user.ID, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (h *ScheduleHandler) writeServiceError(w http.ResponseWriter, userID int64, err error) {
	switch {
	case errors.Is(err, schedule.ErrEmailNotFound):
		writeError(w, http.StatusNotFound, "scheduled email not found")
	case errors.Is(err, schedule.ErrNotCancellable):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, schedule.ErrTemplateNotFound):
		writeError(w, http.StatusNotFound, "template not found")
	case errors.Is(err, schedule.ErrRecruiterNotFound):
		writeError(w, http.StatusNotFound, "recruiter not found")
	default:
		slog.Error("schedule handler error", "user_id", userID, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
	}
}
