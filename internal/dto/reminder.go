package dto

import (
	"time"

	"github.com/noah-isme/cte-skillshub-api/internal/models"
)

// CreateReminderRequest describes the create payload. Omitted enums and flags take defaults.
type CreateReminderRequest struct {
	Title           string     `json:"title"`
	Message         string     `json:"message"`
	ReminderType    string     `json:"reminder_type" validate:"omitempty,reminder_type"`
	Priority        string     `json:"priority" validate:"omitempty,reminder_priority"`
	TargetAudience  string     `json:"target_audience" validate:"required,reminder_audience"`
	TargetEmails    []string   `json:"target_emails" validate:"omitempty,dive,email"`
	TargetUserIDs   []string   `json:"target_user_ids" validate:"omitempty,dive,required"`
	TargetCourseIDs []string   `json:"target_course_ids" validate:"omitempty,dive,required"`
	IsActive        *bool      `json:"is_active"`
	IsDismissible   *bool      `json:"is_dismissible"`
	ExpiresAt       *time.Time `json:"expires_at"`
}

// UpdateReminderRequest is a partial patch; nil fields are left unchanged.
type UpdateReminderRequest struct {
	Title           *string    `json:"title"`
	Message         *string    `json:"message"`
	ReminderType    *string    `json:"reminder_type" validate:"omitempty,reminder_type"`
	Priority        *string    `json:"priority" validate:"omitempty,reminder_priority"`
	TargetAudience  *string    `json:"target_audience" validate:"omitempty,reminder_audience"`
	TargetEmails    *[]string  `json:"target_emails" validate:"omitempty,dive,email"`
	TargetUserIDs   *[]string  `json:"target_user_ids" validate:"omitempty,dive,required"`
	TargetCourseIDs *[]string  `json:"target_course_ids" validate:"omitempty,dive,required"`
	IsActive        *bool      `json:"is_active"`
	IsDismissible   *bool      `json:"is_dismissible"`
	ExpiresAt       *time.Time `json:"expires_at"`
	ClearExpiry     bool       `json:"clear_expiry"`
}

// ReminderListQuery carries admin listing filters.
type ReminderListQuery struct {
	Audience string `form:"audience"`
	Active   *bool  `form:"active"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

// AdvanceRequest moves the presentation cursor.
type AdvanceRequest struct {
	Direction string `json:"direction" validate:"required,oneof=next previous"`
}

// SessionDismissRequest dismisses the current reminder, or the named one when set.
type SessionDismissRequest struct {
	ReminderID string `json:"reminder_id"`
}

// ReminderSessionView is what the presentation layer renders.
type ReminderSessionView struct {
	Open    bool             `json:"open"`
	Index   int              `json:"index"`
	Total   int              `json:"total"`
	Current *models.Reminder `json:"current,omitempty"`
	HasNext bool             `json:"has_next"`
	HasPrev bool             `json:"has_previous"`
}
