package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/cte-skillshub-api/internal/dto"
	"github.com/noah-isme/cte-skillshub-api/internal/models"
	appErrors "github.com/noah-isme/cte-skillshub-api/pkg/errors"
	"github.com/noah-isme/cte-skillshub-api/pkg/response"
)

type viewerReminderService interface {
	ListEligible(ctx context.Context, viewer models.Viewer, unviewedOnly bool) ([]models.Reminder, error)
	MarkViewed(ctx context.Context, viewer models.Viewer, reminderID string) error
	Dismiss(ctx context.Context, viewer models.Viewer, reminderID string) error
}

type reminderSessionService interface {
	Open(ctx context.Context, viewer models.Viewer, unviewedOnly bool) (*dto.ReminderSessionView, error)
	Current(viewer models.Viewer) (*dto.ReminderSessionView, error)
	Advance(ctx context.Context, viewer models.Viewer, direction string) (*dto.ReminderSessionView, error)
	Dismiss(ctx context.Context, viewer models.Viewer, reminderID string) (*dto.ReminderSessionView, error)
	Close(viewer models.Viewer) error
}

// ReminderHandler serves the viewer-facing reminder endpoints.
type ReminderHandler struct {
	reminders viewerReminderService
	sessions  reminderSessionService
}

// NewReminderHandler builds a new handler.
func NewReminderHandler(reminders viewerReminderService, sessions reminderSessionService) *ReminderHandler {
	return &ReminderHandler{reminders: reminders, sessions: sessions}
}

// Eligible godoc
// @Summary List reminders for the current viewer
// @Tags Reminders
// @Produce json
// @Security BearerAuth
// @Param unviewed query bool false "Only reminders not yet viewed"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /reminders/eligible [get]
func (h *ReminderHandler) Eligible(c *gin.Context) {
	unviewed, err := boolQuery(c, "unviewed")
	if err != nil {
		response.Error(c, err)
		return
	}
	reminders, err := h.reminders.ListEligible(c.Request.Context(), viewerFromContext(c), unviewed)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reminders, nil, map[string]interface{}{"count": len(reminders)})
}

// View godoc
// @Summary Mark a reminder viewed
// @Tags Reminders
// @Security BearerAuth
// @Param id path string true "Reminder ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /reminders/{id}/view [post]
func (h *ReminderHandler) View(c *gin.Context) {
	if err := h.reminders.MarkViewed(c.Request.Context(), viewerFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Dismiss godoc
// @Summary Dismiss a reminder
// @Tags Reminders
// @Security BearerAuth
// @Param id path string true "Reminder ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /reminders/{id}/dismiss [post]
func (h *ReminderHandler) Dismiss(c *gin.Context) {
	if err := h.reminders.Dismiss(c.Request.Context(), viewerFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// OpenSession godoc
// @Summary Start presenting reminders
// @Description Evaluates eligible reminders and marks the first one viewed.
// @Tags Reminder Session
// @Produce json
// @Security BearerAuth
// @Param unviewed query bool false "Only reminders not yet viewed"
// @Success 200 {object} response.Envelope
// @Router /reminders/session [post]
func (h *ReminderHandler) OpenSession(c *gin.Context) {
	unviewed, err := boolQuery(c, "unviewed")
	if err != nil {
		response.Error(c, err)
		return
	}
	view, err := h.sessions.Open(c.Request.Context(), viewerFromContext(c), unviewed)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// CurrentSession godoc
// @Summary Show the current session position
// @Tags Reminder Session
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /reminders/session [get]
func (h *ReminderHandler) CurrentSession(c *gin.Context) {
	view, err := h.sessions.Current(viewerFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// AdvanceSession godoc
// @Summary Move to the next or previous reminder
// @Tags Reminder Session
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.AdvanceRequest true "Direction"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /reminders/session/advance [post]
func (h *ReminderHandler) AdvanceSession(c *gin.Context) {
	var req dto.AdvanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid advance payload"))
		return
	}
	view, err := h.sessions.Advance(c.Request.Context(), viewerFromContext(c), req.Direction)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// DismissInSession godoc
// @Summary Dismiss the current reminder, or the one named in the body
// @Tags Reminder Session
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.SessionDismissRequest false "Reminder to dismiss"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /reminders/session/dismiss [post]
func (h *ReminderHandler) DismissInSession(c *gin.Context) {
	var req dto.SessionDismissRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid dismiss payload"))
		return
	}
	view, err := h.sessions.Dismiss(c.Request.Context(), viewerFromContext(c), req.ReminderID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// CloseSession godoc
// @Summary Stop presenting reminders without dismissing them
// @Tags Reminder Session
// @Security BearerAuth
// @Success 204
// @Router /reminders/session [delete]
func (h *ReminderHandler) CloseSession(c *gin.Context) {
	if err := h.sessions.Close(viewerFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func boolQuery(c *gin.Context, key string) (bool, error) {
	raw := c.Query(key)
	if raw == "" {
		return false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, appErrors.Clone(appErrors.ErrValidation, key+" must be a boolean")
	}
	return value, nil
}
