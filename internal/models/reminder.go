package models

import "time"

// ReminderType classifies a reminder for display.
type ReminderType string

const (
	ReminderTypeGeneral      ReminderType = "general"
	ReminderTypeAnnouncement ReminderType = "announcement"
	ReminderTypeDeadline     ReminderType = "deadline"
	ReminderTypeMaintenance  ReminderType = "maintenance"
	ReminderTypeCourseUpdate ReminderType = "course_update"
	ReminderTypeAssignment   ReminderType = "assignment"
	ReminderTypeExam         ReminderType = "exam"
	ReminderTypeEvent        ReminderType = "event"
)

// Valid reports whether the type is known.
func (t ReminderType) Valid() bool {
	switch t {
	case ReminderTypeGeneral, ReminderTypeAnnouncement, ReminderTypeDeadline, ReminderTypeMaintenance,
		ReminderTypeCourseUpdate, ReminderTypeAssignment, ReminderTypeExam, ReminderTypeEvent:
		return true
	default:
		return false
	}
}

// ReminderPriority orders reminders for display emphasis only.
type ReminderPriority string

const (
	ReminderPriorityLow    ReminderPriority = "low"
	ReminderPriorityMedium ReminderPriority = "medium"
	ReminderPriorityHigh   ReminderPriority = "high"
	ReminderPriorityUrgent ReminderPriority = "urgent"
)

// Rank returns the emphasis rank, urgent highest. Unknown priorities rank zero.
func (p ReminderPriority) Rank() int {
	switch p {
	case ReminderPriorityLow:
		return 1
	case ReminderPriorityMedium:
		return 2
	case ReminderPriorityHigh:
		return 3
	case ReminderPriorityUrgent:
		return 4
	default:
		return 0
	}
}

// Valid reports whether the priority is known.
func (p ReminderPriority) Valid() bool {
	return p.Rank() > 0
}

// ReminderAudience names the rule deciding which viewers a reminder targets.
type ReminderAudience string

const (
	AudienceAllUsers         ReminderAudience = "all_users"
	AudienceAllStudents      ReminderAudience = "all_students"
	AudienceStaffOnly        ReminderAudience = "staff_only"
	AudienceAdminOnly        ReminderAudience = "admin_only"
	AudienceSpecificEmails   ReminderAudience = "specific_emails"
	AudienceSpecificStudents ReminderAudience = "specific_students"
	AudienceCourseStudents   ReminderAudience = "course_students"
)

// Valid reports whether the audience is known.
func (a ReminderAudience) Valid() bool {
	switch a {
	case AudienceAllUsers, AudienceAllStudents, AudienceStaffOnly, AudienceAdminOnly,
		AudienceSpecificEmails, AudienceSpecificStudents, AudienceCourseStudents:
		return true
	default:
		return false
	}
}

// StudentScoped reports whether the audience only ever reaches students or hand-picked emails.
// Staff may only create and manage reminders with student-scoped audiences.
func (a ReminderAudience) StudentScoped() bool {
	switch a {
	case AudienceAllStudents, AudienceSpecificStudents, AudienceSpecificEmails, AudienceCourseStudents:
		return true
	default:
		return false
	}
}

// ReminderCreator references the user who created a reminder.
type ReminderCreator struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Role UserRole `json:"role"`
}

// Reminder is a targeted message surfaced to eligible viewers.
type Reminder struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	Message         string           `json:"message"`
	Type            ReminderType     `json:"reminder_type"`
	Priority        ReminderPriority `json:"priority"`
	TargetAudience  ReminderAudience `json:"target_audience"`
	TargetEmails    []string         `json:"target_emails,omitempty"`
	TargetUserIDs   []string         `json:"target_user_ids,omitempty"`
	TargetCourseIDs []string         `json:"target_course_ids,omitempty"`
	IsActive        bool             `json:"is_active"`
	IsDismissible   bool             `json:"is_dismissible"`
	ExpiresAt       *time.Time       `json:"expires_at,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	CreatedBy       ReminderCreator  `json:"created_by"`
}

// Expired reports whether the reminder expired strictly before now.
func (r *Reminder) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && r.ExpiresAt.Before(now)
}

// Clone returns a deep copy so callers never share slices with a store.
func (r *Reminder) Clone() *Reminder {
	if r == nil {
		return nil
	}
	clone := *r
	clone.TargetEmails = cloneStrings(r.TargetEmails)
	clone.TargetUserIDs = cloneStrings(r.TargetUserIDs)
	clone.TargetCourseIDs = cloneStrings(r.TargetCourseIDs)
	if r.ExpiresAt != nil {
		expires := *r.ExpiresAt
		clone.ExpiresAt = &expires
	}
	return &clone
}

// ViewerReminderState tracks one viewer's interaction with one reminder.
type ViewerReminderState struct {
	ReminderID  string     `db:"reminder_id" json:"reminder_id"`
	ViewerID    string     `db:"viewer_id" json:"viewer_id"`
	Viewed      bool       `db:"viewed" json:"viewed"`
	Dismissed   bool       `db:"dismissed" json:"dismissed"`
	ViewedAt    *time.Time `db:"viewed_at" json:"viewed_at,omitempty"`
	DismissedAt *time.Time `db:"dismissed_at" json:"dismissed_at,omitempty"`
}

// ReminderFilter narrows administrative reminder listings.
type ReminderFilter struct {
	Audiences   []ReminderAudience
	CreatedByID string
	Active      *bool
	Page        int
	PageSize    int
}

// ReminderStats aggregates viewer interaction for a reminder.
type ReminderStats struct {
	ReminderID string `db:"reminder_id" json:"reminder_id"`
	Viewed     int    `db:"viewed" json:"viewed"`
	Dismissed  int    `db:"dismissed" json:"dismissed"`
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}
