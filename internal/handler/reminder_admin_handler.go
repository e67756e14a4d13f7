package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/cte-skillshub-api/internal/dto"
	"github.com/noah-isme/cte-skillshub-api/internal/models"
	"github.com/noah-isme/cte-skillshub-api/internal/service"
	appErrors "github.com/noah-isme/cte-skillshub-api/pkg/errors"
	"github.com/noah-isme/cte-skillshub-api/pkg/response"
)

type reminderAdminService interface {
	List(ctx context.Context, actor models.Viewer, query dto.ReminderListQuery) ([]models.Reminder, *models.Pagination, error)
	Get(ctx context.Context, actor models.Viewer, id string) (*models.Reminder, error)
	Stats(ctx context.Context, actor models.Viewer, id string) (*models.ReminderStats, error)
	Create(ctx context.Context, actor models.Viewer, req dto.CreateReminderRequest) (*models.Reminder, error)
	Update(ctx context.Context, actor models.Viewer, id string, req dto.UpdateReminderRequest) (*models.Reminder, error)
	Delete(ctx context.Context, actor models.Viewer, id string) error
}

type reminderExporter interface {
	ExportReminders(ctx context.Context, actor models.Viewer, format string) (*service.ExportFile, error)
}

// ReminderAdminHandler exposes reminder management for admins and staff.
type ReminderAdminHandler struct {
	service  reminderAdminService
	exporter reminderExporter
}

// NewReminderAdminHandler builds a new handler.
func NewReminderAdminHandler(svc reminderAdminService, exporter reminderExporter) *ReminderAdminHandler {
	return &ReminderAdminHandler{service: svc, exporter: exporter}
}

// List godoc
// @Summary List manageable reminders
// @Tags Reminder Admin
// @Produce json
// @Security BearerAuth
// @Param audience query string false "Target audience filter"
// @Param active query bool false "Active flag filter"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size (max 100)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/reminders [get]
func (h *ReminderAdminHandler) List(c *gin.Context) {
	var query dto.ReminderListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	reminders, pagination, err := h.service.List(c.Request.Context(), viewerFromContext(c), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reminders, pagination)
}

// Get godoc
// @Summary Get a reminder
// @Tags Reminder Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Reminder ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/reminders/{id} [get]
func (h *ReminderAdminHandler) Get(c *gin.Context) {
	reminder, err := h.service.Get(c.Request.Context(), viewerFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reminder, nil)
}

// Stats godoc
// @Summary View and dismiss counts for a reminder
// @Tags Reminder Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Reminder ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/reminders/{id}/stats [get]
func (h *ReminderAdminHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context(), viewerFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Create godoc
// @Summary Create a reminder
// @Tags Reminder Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateReminderRequest true "Reminder"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/reminders [post]
func (h *ReminderAdminHandler) Create(c *gin.Context) {
	var req dto.CreateReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reminder payload"))
		return
	}
	reminder, err := h.service.Create(c.Request.Context(), viewerFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, reminder)
}

// Update godoc
// @Summary Patch a reminder
// @Tags Reminder Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Reminder ID"
// @Param payload body dto.UpdateReminderRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/reminders/{id} [patch]
func (h *ReminderAdminHandler) Update(c *gin.Context) {
	var req dto.UpdateReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reminder payload"))
		return
	}
	reminder, err := h.service.Update(c.Request.Context(), viewerFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reminder, nil)
}

// Delete godoc
// @Summary Delete a reminder and its viewer state
// @Tags Reminder Admin
// @Security BearerAuth
// @Param id path string true "Reminder ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /admin/reminders/{id} [delete]
func (h *ReminderAdminHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), viewerFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Export all reminders
// @Tags Reminder Admin
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param format query string false "csv or pdf" Enums(csv, pdf)
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /admin/reminders/export [get]
func (h *ReminderAdminHandler) Export(c *gin.Context) {
	file, err := h.exporter.ExportReminders(c.Request.Context(), viewerFromContext(c), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Body)
}
