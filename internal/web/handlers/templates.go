package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coldreach/coldreach/internal/models"
	"github.com/coldreach/coldreach/internal/placeholder"
	"github.com/coldreach/coldreach/internal/template"
	"github.com/coldreach/coldreach/internal/web/middleware"
)

// TemplateHandler serves email template CRUD and lifecycle endpoints.
type TemplateHandler struct {
	templates *template.Service
}

func NewTemplateHandler(templates *template.Service) *TemplateHandler {
	return &TemplateHandler{templates: templates}
}

type templateRequest struct {
	Name               string `json:"name"`
	Subject            string `json:"subject"`
	Body               string `json:"body"`
	Category           string `json:"category"`
	Status             string `json:"status"`
	FollowUpTemplateID *int64 `json:"followUpTemplateId"`
}

type templateResponse struct {
	ID                 int64      `json:"id"`
	Name               string     `json:"name"`
	Subject            string     `json:"subject"`
	Body               string     `json:"body"`
	Category           string     `json:"category"`
	Status             string     `json:"status"`
	FollowUpTemplateID *int64     `json:"followUpTemplateId,omitempty"`
	UsageCount         int64      `json:"usageCount"`
	LastUsedAt         *time.Time `json:"lastUsedAt,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
}

type validationResponse struct {
	Error     string   `json:"error"`
	Invalid   []string `json:"invalidPlaceholders,omitempty"`
	Malformed []string `json:"malformedPlaceholders,omitempty"`
}

func toTemplateResponse(t *models.EmailTemplate) templateResponse {
	return templateResponse{
		ID:                 t.ID,
		Name:               t.Name,
		Subject:            t.Subject,
		Body:               t.Body,
		Category:           string(t.Category),
		Status:             string(t.Status),
		FollowUpTemplateID: t.FollowUpTemplateID,
		UsageCount:         t.UsageCount,
		LastUsedAt:         t.LastUsedAt,
		CreatedAt:          t.CreatedAt,
	}
}

func (h *TemplateHandler) params(req templateRequest) template.CreateParams {
	return template.CreateParams{
		Name:               req.Name,
		Subject:            req.Subject,
		Body:               req.Body,
		Category:           models.TemplateCategory(req.Category),
		Status:             models.TemplateStatus(req.Status),
		FollowUpTemplateID: req.FollowUpTemplateID,
	}
}

func (h *TemplateHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	var req templateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tmpl, err := h.templates.Create(r.Context(), user.ID, h.params(req))
	if err != nil {
		h.writeServiceError(w, user.ID, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTemplateResponse(tmpl))
}

func (h *TemplateHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	q := r.URL.Query()
	templates, err := h.templates.Search(r.Context(), user.ID,
		q.Get("q"),
		models.TemplateCategory(q.Get("category")),
		models.TemplateStatus(q.Get("status")))
	if err != nil {
		slog.Error("listing templates", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	out := make([]templateResponse, 0, len(templates))
	for i := range templates {
		out = append(out, toTemplateResponse(&templates[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *TemplateHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	id, err := urlID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tmpl, err := h.templates.Get(r.Context(), user.ID, id)
	if err != nil {
		h.writeServiceError(w, user.ID, err)
		return
	}
	writeJSON(w, http.StatusOK, toTemplateResponse(tmpl))
}

func (h *TemplateHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	id, err := urlID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req templateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tmpl, err := h.templates.Update(r.Context(), user.ID, id, h.params(req))
	if err != nil {
		h.writeServiceError(w, user.ID, err)
		return
	}
	writeJSON(w, http.StatusOK, toTemplateResponse(tmpl))
}

func (h *TemplateHandler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	id, err := urlID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.templates.Activate(r.Context(), user.ID, id); err != nil {
		h.writeServiceError(w, user.ID, err)
		return
	}
	tmpl, err := h.templates.Get(r.Context(), user.ID, id)
	if err != nil {
		h.writeServiceError(w, user.ID, err)
		return
	}
	writeJSON(w, http.StatusOK, toTemplateResponse(tmpl))
}

func (h *TemplateHandler) HandleArchive(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	id, err := urlID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.templates.Archive(r.Context(), user.ID, id); err != nil {
		h.writeServiceError(w, user.ID, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (h *TemplateHandler) HandleDuplicate(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	id, err := urlID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	dup, err := h.templates.Duplicate(r.Context(), user.ID, id)
	if err != nil {
		h.writeServiceError(w, user.ID, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTemplateResponse(dup))
}

func (h *TemplateHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	stats, err := h.templates.GetStats(r.Context(), user.ID)
	if err != nil {
		slog.Error("template stats", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *TemplateHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	id, err := urlID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.templates.Delete(r.Context(), user.ID, id); err != nil {
		h.writeServiceError(w, user.ID, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (h *TemplateHandler) writeServiceError(w http.ResponseWriter, userID int64, err error) {
	var verr *placeholder.ValidationError
	switch {
	case errors.Is(err, template.ErrTemplateNotFound):
		writeError(w, http.StatusNotFound, "template not found")
	case errors.Is(err, template.ErrDuplicateName):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, validationResponse{
			Error:     verr.Error(),
			Invalid:   verr.Invalid,
			Malformed: verr.Malformed,
		})
	default:
		slog.Error("template handler error", "user_id", userID, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
	}
}
