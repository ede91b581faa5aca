package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coldreach/coldreach/internal/assignment"
	"github.com/coldreach/coldreach/internal/models"
	"github.com/coldreach/coldreach/internal/web/middleware"
)

// AssignmentHandler serves recruiter-template assignment endpoints.
type AssignmentHandler struct {
	assignments *assignment.Service
}

func NewAssignmentHandler(assignments *assignment.Service) *AssignmentHandler {
	return &AssignmentHandler{assignments: assignments}
}

type assignRequest struct {
	RecruiterID int64 `json:"recruiterId"`
	TemplateID  int64 `json:"templateId"`
}

type bulkAssignRequest struct {
	RecruiterIDs []int64 `json:"recruiterIds"`
	TemplateID   int64   `json:"templateId"`
}

type assignmentResponse struct {
	ID              int64      `json:"id"`
	RecruiterID     int64      `json:"recruiterId"`
	TemplateID      int64      `json:"templateId"`
	WeekAssigned    int        `json:"weekAssigned"`
	YearAssigned    int        `json:"yearAssigned"`
	Status          string     `json:"status"`
	EmailsSent      int        `json:"emailsSent"`
	LastEmailSentAt *time.Time `json:"lastEmailSentAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

type weekSummaryResponse struct {
	StartDate       string `json:"startDate"`
	EndDate         string `json:"endDate"`
	Label           string `json:"label"`
	RecruitersCount int    `json:"recruitersCount"`
}

func toAssignmentResponse(a *models.RecruiterTemplateAssignment) assignmentResponse {
	return assignmentResponse{
		ID:              a.ID,
		RecruiterID:     a.RecruiterID,
		TemplateID:      a.TemplateID,
		WeekAssigned:    a.WeekAssigned,
		YearAssigned:    a.YearAssigned,
		Status:          string(a.Status),
		EmailsSent:      a.EmailsSent,
		LastEmailSentAt: a.LastEmailSentAt,
		CreatedAt:       a.CreatedAt,
	}
}

func toAssignmentResponses(assignments []models.RecruiterTemplateAssignment) []assignmentResponse {
	out := make([]assignmentResponse, 0, len(assignments))
	for i := range assignments {
		out = append(out, toAssignmentResponse(&assignments[i]))
	}
	return out
}

func (h *AssignmentHandler) HandleAssign(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	var req assignRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	a, err := h.assignments.Assign(r.Context(), user.ID, req.RecruiterID, req.TemplateID)
	if err != nil {
		h.writeServiceError(w, user.ID, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAssignmentResponse(a))
}

func (h *AssignmentHandler) HandleBulkAssign(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	var req bulkAssignRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.RecruiterIDs) == 0 {
		writeError(w, http.StatusBadRequest, "recruiterIds must not be empty")
		return
	}

	created, err := h.assignments.BulkAssign(r.Context(), user.ID, req.RecruiterIDs, req.TemplateID)
	if err != nil {
		h.writeServiceError(w, user.ID, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAssignmentResponses(created))
}

func (h *AssignmentHandler) HandleListActive(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	assignments, err := h.assignments.ActiveAssignments(r.Context(), user.ID)
	if err != nil {
		slog.Error("listing assignments", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toAssignmentResponses(assignments))
}

// HandleListForTemplate lists a template's ACTIVE assignments; {id} is the
// template id.
func (h *AssignmentHandler) HandleListForTemplate(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	templateID, err := urlID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	assignments, err := h.assignments.RecruitersForTemplate(r.Context(), user.ID, templateID)
	if err != nil {
		h.writeServiceError(w, user.ID, err)
		return
	}
	writeJSON(w, http.StatusOK, toAssignmentResponses(assignments))
}

// HandleWeekSummaries groups a template's ACTIVE assignments into weekly
// buckets; {id} is the template id.
func (h *AssignmentHandler) HandleWeekSummaries(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	templateID, err := urlID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summaries, err := h.assignments.WeekSummaries(r.Context(), user.ID, templateID)
	if err != nil {
		h.writeServiceError(w, user.ID, err)
		return
	}

	out := make([]weekSummaryResponse, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, weekSummaryResponse{
			StartDate:       s.StartDate.Format("2006-01-02"),
			EndDate:         s.EndDate.Format("2006-01-02"),
			Label:           s.Label,
			RecruitersCount: s.RecruitersCount,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AssignmentHandler) HandleMarkEmailSent(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	id, err := urlID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.assignments.MarkEmailSent(r.Context(), user.ID, id); err != nil {
		h.writeServiceError(w, user.ID, err)
		return
	}
	a, err := h.assignments.Get(r.Context(), user.ID, id)
	if err != nil {
		h.writeServiceError(w, user.ID, err)
		return
	}
	writeJSON(w, http.StatusOK, toAssignmentResponse(a))
}

func (h *AssignmentHandler) HandleMoveToFollowup(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	id, err := urlID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.assignments.MoveToFollowup(r.Context(), user.ID, id); err != nil {
		h.writeServiceError(w, user.ID, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (h *AssignmentHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	id, err := urlID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.assignments.Delete(r.Context(), user.ID, id); err != nil {
		h.writeServiceError(w, user.ID, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

type bulkDeleteRequest struct {
	IDs []int64 `json:"ids"`
}

func (h *AssignmentHandler) HandleBulkDelete(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	var req bulkDeleteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	deleted, err := h.assignments.BulkDelete(r.Context(), user.ID, req.IDs)
	if err != nil {
		h.writeServiceError(w, user.ID, err)
		return
	}
	writeJSON(w, http.StatusOK, toAssignmentResponses(deleted))
}

func (h *AssignmentHandler) writeServiceError(w http.ResponseWriter, userID int64, err error) {
	switch {
	case errors.Is(err, assignment.ErrAssignmentNotFound):
		writeError(w, http.StatusNotFound, "assignment not found")
	case errors.Is(err, assignment.ErrRecruiterNotFound):
		writeError(w, http.StatusNotFound, "recruiter not found")
	case errors.Is(err, assignment.ErrTemplateNotFound):
		writeError(w, http.StatusNotFound, "template not found")
	default:
		slog.Error("assignment handler error", "user_id", userID, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
	}
}
