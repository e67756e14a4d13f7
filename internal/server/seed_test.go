package server

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/cte-skillshub-api/internal/models"
	"github.com/noah-isme/cte-skillshub-api/internal/repository"
)

const seedYAML = `users:
  - id: stu-9
    email: Riley@Hub.edu
    name: Riley
    role: student
    password: riley-pass
    courses: [weld-101, cnc-200]
  - id: stf-9
    email: morgan@hub.edu
    name: Morgan
    role: STAFF
    password: morgan-pass
  - email: gone@hub.edu
    role: student
    password: gone-pass
    inactive: true
`

func writeSeed(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestSeedUsersFromYAML(t *testing.T) {
	seed, err := loadSeed(writeSeed(t, "seed.yaml", seedYAML))
	require.NoError(t, err)
	require.Len(t, seed.Users, 3)

	users := repository.NewMemoryUserStore()
	require.NoError(t, seedUsers(users, seed, bcrypt.MinCost))
	ctx := context.Background()

	riley, err := users.FindByEmail(ctx, "riley@hub.edu")
	require.NoError(t, err)
	assert.Equal(t, "stu-9", riley.ID)
	assert.Equal(t, models.RoleStudent, riley.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(riley.PasswordHash), []byte("riley-pass")))

	enrolled, err := users.IsEnrolledInAny(ctx, "stu-9", []string{"cnc-200"})
	require.NoError(t, err)
	assert.True(t, enrolled)
	targeted, err := users.IsTargetedStudent(ctx, "stu-9", []string{"stu-9"})
	require.NoError(t, err)
	assert.True(t, targeted)

	gone, err := users.FindByEmail(ctx, "gone@hub.edu")
	require.NoError(t, err)
	assert.False(t, gone.Active)
	assert.NotEmpty(t, gone.ID)
}

func TestSeedUsersRejectsBadEntries(t *testing.T) {
	users := repository.NewMemoryUserStore()
	cases := map[string]seedUser{
		"missing email":    {Role: "student", Password: "x"},
		"unknown role":     {Email: "a@hub.edu", Role: "teacher", Password: "x"},
		"missing password": {Email: "b@hub.edu", Role: "staff"},
	}
	for name, u := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, seedUsers(users, &seedFile{Users: []seedUser{u}}, bcrypt.MinCost))
		})
	}
}

func TestLoadSeedMissingFile(t *testing.T) {
	_, err := loadSeed(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestBuildSeedsMemoryUsersForTargetedAudiences(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("riley-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	seed, err := json.Marshal(map[string]interface{}{
		"users": []map[string]interface{}{
			{"id": "stu-9", "email": "riley@hub.edu", "role": "STUDENT", "password_hash": string(hash), "courses": []string{"cnc-200"}},
		},
	})
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Bootstrap.SeedFile = writeSeed(t, "seed.json", string(seed))
	app, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(app.Close)

	admin := login(t, app, "admin@hub.edu", "admin-pass")
	student := login(t, app, "riley@hub.edu", "riley-pass")

	status, _ := call(t, app, http.MethodPost, "/api/v1/admin/reminders", admin, map[string]interface{}{
		"title": "CNC sign-off", "message": "Book your slot", "target_audience": "specific_students", "target_user_ids": []string{"stu-9"},
	})
	require.Equal(t, http.StatusCreated, status)
	status, _ = call(t, app, http.MethodPost, "/api/v1/admin/reminders", admin, map[string]interface{}{
		"title": "Welding", "message": "Other course", "target_audience": "course_students", "target_course_ids": []string{"weld-101"},
	})
	require.Equal(t, http.StatusCreated, status)

	status, env := call(t, app, http.MethodGet, "/api/v1/reminders/eligible", student, nil)
	require.Equal(t, http.StatusOK, status)
	var eligible []models.Reminder
	require.NoError(t, json.Unmarshal(env.Data, &eligible))
	require.Len(t, eligible, 1)
	assert.Equal(t, "CNC sign-off", eligible[0].Title)
}
