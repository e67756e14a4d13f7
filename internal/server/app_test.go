package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/cte-skillshub-api/internal/models"
	"github.com/noah-isme/cte-skillshub-api/pkg/config"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func testConfig() *config.Config {
	return &config.Config{
		Env:       config.EnvDevelopment,
		APIPrefix: "/api/v1",
		JWT:       config.JWTConfig{Secret: "test-secret", Issuer: "cte-skillshub", Expiration: time.Hour},
		Reminders: config.ReminderConfig{Store: config.StoreMemory, CacheTTL: time.Minute, PurgeSchedule: "@daily", PurgeRetention: time.Hour},
		Audit:     config.AuditConfig{Workers: 1, BufferSize: 16, MaxRetries: 1},
		Bootstrap: config.BootstrapConfig{AdminEmail: "Admin@Hub.edu", AdminPassword: "admin-pass", AdminName: "Admin"},
	}
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	gin.SetMode(gin.TestMode)
	app, err := Build(context.Background(), testConfig(), nil)
	require.NoError(t, err)
	require.NoError(t, app.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		app.Shutdown(ctx)
	})

	hash, err := bcrypt.GenerateFromPassword([]byte("student-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	app.Users.Add(models.User{ID: "stu-1", Email: "sam@hub.edu", PasswordHash: string(hash), FullName: "Sam", Role: models.RoleStudent, Active: true})
	app.Users.Add(models.User{ID: "stf-1", Email: "tess@hub.edu", PasswordHash: string(hash), FullName: "Tess", Role: models.RoleStaff, Active: true})
	app.Users.Enroll("stu-1", "weld-101")
	return app
}

func call(t *testing.T, app *App, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	app.Router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w.Code, env
}

func login(t *testing.T, app *App, email, password string) string {
	t.Helper()
	status, env := call(t, app, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, status)
	var res models.LoginResponse
	require.NoError(t, json.Unmarshal(env.Data, &res))
	require.NotEmpty(t, res.AccessToken)
	return res.AccessToken
}

func TestReminderLifecycleOverHTTP(t *testing.T) {
	app := newTestApp(t)
	admin := login(t, app, "admin@hub.edu", "admin-pass")
	student := login(t, app, "sam@hub.edu", "student-pass")

	status, env := call(t, app, http.MethodPost, "/api/v1/admin/reminders", admin, map[string]interface{}{
		"title": "Welding safety", "message": "Bring gloves", "target_audience": "course_students", "target_course_ids": []string{"weld-101"},
	})
	require.Equal(t, http.StatusCreated, status)
	var created models.Reminder
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.True(t, created.IsActive)
	assert.True(t, created.IsDismissible)

	status, env = call(t, app, http.MethodGet, "/api/v1/reminders/eligible?unviewed=true", student, nil)
	require.Equal(t, http.StatusOK, status)
	var eligible []models.Reminder
	require.NoError(t, json.Unmarshal(env.Data, &eligible))
	require.Len(t, eligible, 1)
	assert.Equal(t, created.ID, eligible[0].ID)

	status, env = call(t, app, http.MethodPost, "/api/v1/reminders/session", student, nil)
	require.Equal(t, http.StatusOK, status)
	var view struct {
		Open    bool             `json:"open"`
		Current *models.Reminder `json:"current"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &view))
	require.True(t, view.Open)
	assert.Equal(t, created.ID, view.Current.ID)

	status, _ = call(t, app, http.MethodGet, "/api/v1/reminders/eligible?unviewed=true", student, nil)
	require.Equal(t, http.StatusOK, status)

	status, env = call(t, app, http.MethodPost, "/api/v1/reminders/session/dismiss", student, nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.False(t, view.Open)

	status, env = call(t, app, http.MethodGet, "/api/v1/reminders/eligible", student, nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &eligible))
	assert.Empty(t, eligible)

	status, env = call(t, app, http.MethodGet, "/api/v1/admin/reminders/"+created.ID+"/stats", admin, nil)
	require.Equal(t, http.StatusOK, status)
	var stats models.ReminderStats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 1, stats.Viewed)
	assert.Equal(t, 1, stats.Dismissed)
}

func TestRouteGuards(t *testing.T) {
	app := newTestApp(t)
	student := login(t, app, "sam@hub.edu", "student-pass")
	staff := login(t, app, "tess@hub.edu", "student-pass")

	status, env := call(t, app, http.MethodGet, "/api/v1/reminders/eligible", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHENTICATED", env.Error.Code)

	status, _ = call(t, app, http.MethodGet, "/api/v1/admin/reminders", student, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, env = call(t, app, http.MethodPost, "/api/v1/admin/reminders", staff, map[string]interface{}{
		"title": "Outage", "message": "Portal down", "target_audience": "all_users",
	})
	assert.Equal(t, http.StatusForbidden, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "FORBIDDEN_AUDIENCE", env.Error.Code)

	status, _ = call(t, app, http.MethodGet, "/api/v1/admin/reminders/export", staff, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = call(t, app, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "sam@hub.edu", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestOpsEndpoints(t *testing.T) {
	app := newTestApp(t)

	status, _ := call(t, app, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = call(t, app, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, status)

	w := httptest.NewRecorder()
	app.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")

	admin := login(t, app, "admin@hub.edu", "admin-pass")
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/reminders/export?format=csv", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	app.Router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
}
