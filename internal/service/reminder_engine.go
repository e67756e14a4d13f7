package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/cte-skillshub-api/internal/models"
)

// MembershipResolver answers audience questions that need user or enrollment data.
type MembershipResolver interface {
	IsTargetedStudent(ctx context.Context, viewerID string, targetUserIDs []string) (bool, error)
	IsEnrolledInAny(ctx context.Context, viewerID string, courseIDs []string) (bool, error)
}

// ReminderEngine evaluates which reminders a viewer should see. It never mutates state.
type ReminderEngine struct {
	resolver MembershipResolver
	logger   *zap.Logger
}

// NewReminderEngine constructs the engine. A nil resolver makes resolver-backed audiences never match.
func NewReminderEngine(resolver MembershipResolver, logger *zap.Logger) *ReminderEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReminderEngine{resolver: resolver, logger: logger}
}

// Eligible filters all reminders down to the ordered sequence visible to viewer.
// states holds the viewer's reminder state keyed by reminder id.
func (e *ReminderEngine) Eligible(ctx context.Context, viewer models.Viewer, all []models.Reminder, states map[string]models.ViewerReminderState, now time.Time) []models.Reminder {
	eligible := make([]models.Reminder, 0, len(all))
	for i := range all {
		reminder := &all[i]
		if !e.Visible(ctx, viewer, reminder, now) {
			continue
		}
		if state, ok := states[reminder.ID]; ok && state.Dismissed {
			continue
		}
		eligible = append(eligible, *reminder.Clone())
	}
	SortReminders(eligible)
	return eligible
}

// Visible applies the active, expiry and audience checks, ignoring dismissal.
func (e *ReminderEngine) Visible(ctx context.Context, viewer models.Viewer, reminder *models.Reminder, now time.Time) bool {
	if reminder == nil || !reminder.IsActive {
		return false
	}
	if reminder.Expired(now) {
		return false
	}
	return e.MatchesAudience(ctx, viewer, reminder)
}

// MatchesAudience applies the reminder's audience rule. Unknown audiences and
// resolver failures never match.
func (e *ReminderEngine) MatchesAudience(ctx context.Context, viewer models.Viewer, reminder *models.Reminder) bool {
	switch reminder.TargetAudience {
	case models.AudienceAllUsers:
		return true
	case models.AudienceAllStudents:
		return viewer.Role == models.RoleStudent
	case models.AudienceStaffOnly:
		return viewer.Role == models.RoleStaff
	case models.AudienceAdminOnly:
		return viewer.Role == models.RoleAdmin
	case models.AudienceSpecificEmails:
		return containsExact(reminder.TargetEmails, viewer.Email)
	case models.AudienceSpecificStudents:
		if viewer.Role != models.RoleStudent || e.resolver == nil {
			return false
		}
		ok, err := e.resolver.IsTargetedStudent(ctx, viewer.ID, reminder.TargetUserIDs)
		return e.resolved(reminder, ok, err)
	case models.AudienceCourseStudents:
		if viewer.Role != models.RoleStudent || e.resolver == nil {
			return false
		}
		ok, err := e.resolver.IsEnrolledInAny(ctx, viewer.ID, reminder.TargetCourseIDs)
		return e.resolved(reminder, ok, err)
	default:
		return false
	}
}

func (e *ReminderEngine) resolved(reminder *models.Reminder, ok bool, err error) bool {
	if err != nil {
		e.logger.Warn("membership lookup failed, treating as non-match",
			zap.String("reminder_id", reminder.ID),
			zap.String("audience", string(reminder.TargetAudience)),
			zap.Error(err))
		return false
	}
	return ok
}

// SortReminders orders reminders newest first, breaking ties by id ascending.
func SortReminders(reminders []models.Reminder) {
	sort.SliceStable(reminders, func(i, j int) bool {
		a, b := reminders[i], reminders[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

func containsExact(values []string, needle string) bool {
	if needle == "" {
		return false
	}
	for _, v := range values {
		if v == needle {
			return true
		}
	}
	return false
}
