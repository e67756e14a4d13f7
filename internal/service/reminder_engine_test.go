package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cte-skillshub-api/internal/models"
)

type membershipStub struct {
	targeted    bool
	enrolled    bool
	err         error
	courseCalls int
}

func (s *membershipStub) IsTargetedStudent(ctx context.Context, viewerID string, targetUserIDs []string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	if s.targeted {
		return true, nil
	}
	for _, id := range targetUserIDs {
		if id == viewerID {
			return true, nil
		}
	}
	return false, nil
}

func (s *membershipStub) IsEnrolledInAny(ctx context.Context, viewerID string, courseIDs []string) (bool, error) {
	s.courseCalls++
	if s.err != nil {
		return false, s.err
	}
	return s.enrolled, nil
}

var (
	engineNow    = time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	adminViewer  = models.Viewer{ID: "u-admin", Email: "admin@x.edu", Role: models.RoleAdmin, Authenticated: true}
	staffViewer  = models.Viewer{ID: "u-staff", Email: "staff@x.edu", Role: models.RoleStaff, Authenticated: true}
	studentS     = models.Viewer{ID: "u-s", Email: "s@x.edu", Role: models.RoleStudent, Authenticated: true}
	studentT     = models.Viewer{ID: "u-t", Email: "t@x.edu", Role: models.RoleStudent, Authenticated: true}
	everyViewers = []models.Viewer{adminViewer, staffViewer, studentS, studentT}
)

func activeReminder(id string, audience models.ReminderAudience) models.Reminder {
	return models.Reminder{
		ID:             id,
		Title:          "Title " + id,
		Message:        "Message " + id,
		Type:           models.ReminderTypeGeneral,
		Priority:       models.ReminderPriorityMedium,
		TargetAudience: audience,
		IsActive:       true,
		IsDismissible:  true,
		CreatedAt:      engineNow.Add(-time.Hour),
		UpdatedAt:      engineNow.Add(-time.Hour),
	}
}

func ids(reminders []models.Reminder) []string {
	out := make([]string, 0, len(reminders))
	for _, r := range reminders {
		out = append(out, r.ID)
	}
	return out
}

func TestEngineUnknownAudienceNeverMatches(t *testing.T) {
	engine := NewReminderEngine(&membershipStub{targeted: true, enrolled: true}, nil)
	all := []models.Reminder{
		activeReminder("r-unknown", models.ReminderAudience("everyone")),
		activeReminder("r-empty", models.ReminderAudience("")),
		activeReminder("r-upper", models.ReminderAudience("ALL_USERS")),
	}
	for _, viewer := range everyViewers {
		assert.Empty(t, engine.Eligible(context.Background(), viewer, all, nil, engineNow), viewer.Email)
	}
}

func TestEngineRoleAudiences(t *testing.T) {
	engine := NewReminderEngine(nil, nil)
	all := []models.Reminder{
		activeReminder("all", models.AudienceAllUsers),
		activeReminder("students", models.AudienceAllStudents),
		activeReminder("staff", models.AudienceStaffOnly),
		activeReminder("admins", models.AudienceAdminOnly),
	}

	assert.ElementsMatch(t, []string{"all", "admins"}, ids(engine.Eligible(context.Background(), adminViewer, all, nil, engineNow)))
	assert.ElementsMatch(t, []string{"all", "staff"}, ids(engine.Eligible(context.Background(), staffViewer, all, nil, engineNow)))
	assert.ElementsMatch(t, []string{"all", "students"}, ids(engine.Eligible(context.Background(), studentS, all, nil, engineNow)))
}

func TestEngineSpecificEmailsIsExact(t *testing.T) {
	engine := NewReminderEngine(nil, nil)
	r := activeReminder("emails", models.AudienceSpecificEmails)
	r.TargetEmails = []string{"s@x.edu"}
	all := []models.Reminder{r}

	assert.Equal(t, []string{"emails"}, ids(engine.Eligible(context.Background(), studentS, all, nil, engineNow)))
	assert.Empty(t, engine.Eligible(context.Background(), studentT, all, nil, engineNow))

	upper := studentS
	upper.Email = "S@x.edu"
	assert.Empty(t, engine.Eligible(context.Background(), upper, all, nil, engineNow))
}

func TestEngineExpiredExcludedEvenWhenActive(t *testing.T) {
	engine := NewReminderEngine(nil, nil)
	past := engineNow.Add(-time.Minute)
	future := engineNow.Add(time.Minute)
	expired := activeReminder("expired", models.AudienceAllUsers)
	expired.ExpiresAt = &past
	live := activeReminder("live", models.AudienceAllUsers)
	live.ExpiresAt = &future
	inactive := activeReminder("inactive", models.AudienceAllUsers)
	inactive.IsActive = false

	got := engine.Eligible(context.Background(), studentS, []models.Reminder{expired, live, inactive}, nil, engineNow)
	assert.Equal(t, []string{"live"}, ids(got))
}

func TestEngineOrdersNewestFirstThenID(t *testing.T) {
	engine := NewReminderEngine(nil, nil)
	older := activeReminder("c", models.AudienceAllUsers)
	older.CreatedAt = engineNow.Add(-2 * time.Hour)
	tieB := activeReminder("b", models.AudienceAllUsers)
	tieA := activeReminder("a", models.AudienceAllUsers)
	newest := activeReminder("z", models.AudienceAllUsers)
	newest.CreatedAt = engineNow.Add(-time.Minute)

	got := engine.Eligible(context.Background(), studentS, []models.Reminder{older, tieB, tieA, newest}, nil, engineNow)
	assert.Equal(t, []string{"z", "a", "b", "c"}, ids(got))
}

func TestEngineDropsDismissedOnly(t *testing.T) {
	engine := NewReminderEngine(nil, nil)
	all := []models.Reminder{activeReminder("r1", models.AudienceAllUsers), activeReminder("r2", models.AudienceAllUsers)}
	states := map[string]models.ViewerReminderState{
		"r1": {ReminderID: "r1", ViewerID: studentS.ID, Viewed: true, Dismissed: true},
		"r2": {ReminderID: "r2", ViewerID: studentS.ID, Viewed: true},
	}

	assert.Equal(t, []string{"r2"}, ids(engine.Eligible(context.Background(), studentS, all, states, engineNow)))
}

func TestEngineResolverAudiencesFailClosed(t *testing.T) {
	students := activeReminder("students", models.AudienceSpecificStudents)
	students.TargetUserIDs = []string{studentS.ID}
	course := activeReminder("course", models.AudienceCourseStudents)
	course.TargetCourseIDs = []string{"course-welding"}
	all := []models.Reminder{students, course}

	withResolver := NewReminderEngine(&membershipStub{enrolled: true}, nil)
	assert.ElementsMatch(t, []string{"students", "course"}, ids(withResolver.Eligible(context.Background(), studentS, all, nil, engineNow)))
	assert.Equal(t, []string{"course"}, ids(withResolver.Eligible(context.Background(), studentT, all, nil, engineNow)))

	stub := &membershipStub{enrolled: true}
	staffOnlyEngine := NewReminderEngine(stub, nil)
	assert.Empty(t, staffOnlyEngine.Eligible(context.Background(), staffViewer, all, nil, engineNow))
	assert.Zero(t, stub.courseCalls, "non-students never reach the resolver")

	failing := NewReminderEngine(&membershipStub{err: errors.New("db down"), enrolled: true, targeted: true}, nil)
	assert.Empty(t, failing.Eligible(context.Background(), studentS, all, nil, engineNow))

	noResolver := NewReminderEngine(nil, nil)
	assert.Empty(t, noResolver.Eligible(context.Background(), studentS, all, nil, engineNow))
}

func TestEngineEligibleDoesNotAliasInput(t *testing.T) {
	engine := NewReminderEngine(nil, nil)
	r := activeReminder("r1", models.AudienceSpecificEmails)
	r.TargetEmails = []string{"s@x.edu"}
	all := []models.Reminder{r}

	got := engine.Eligible(context.Background(), studentS, all, nil, engineNow)
	require.Len(t, got, 1)
	got[0].TargetEmails[0] = "mutated@x.edu"
	got[0].Title = "mutated"
	assert.Equal(t, "s@x.edu", all[0].TargetEmails[0])
	assert.Equal(t, "Title r1", all[0].Title)
}
