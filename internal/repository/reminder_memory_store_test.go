package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cte-skillshub-api/internal/models"
)

func seedReminder(t *testing.T, store *MemoryReminderStore, id string, audience models.ReminderAudience, createdAt time.Time) *models.Reminder {
	t.Helper()
	r := &models.Reminder{
		ID:             id,
		Title:          "Title",
		Message:        "Message",
		TargetAudience: audience,
		IsActive:       true,
		IsDismissible:  true,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
		TargetEmails:   []string{"s@x.edu"},
	}
	require.NoError(t, store.Create(context.Background(), r))
	return r
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryReminderStore()
	seed := seedReminder(t, store, "r1", models.AudienceSpecificEmails, time.Now())
	seed.TargetEmails[0] = "changed@x.edu"

	got, err := store.GetByID(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "s@x.edu", got.TargetEmails[0])

	got.Title = "mutated"
	again, _ := store.GetByID(context.Background(), "r1")
	assert.Equal(t, "Title", again.Title)
}

func TestMemoryStoreUpdateKeepsCreatedAt(t *testing.T) {
	store := NewMemoryReminderStore()
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seedReminder(t, store, "r1", models.AudienceAllUsers, created)

	err := store.Update(context.Background(), &models.Reminder{ID: "r1", Title: "New", CreatedAt: created.Add(time.Hour)})
	require.NoError(t, err)
	got, _ := store.GetByID(context.Background(), "r1")
	assert.Equal(t, "New", got.Title)
	assert.Equal(t, created, got.CreatedAt)

	assert.ErrorIs(t, store.Update(context.Background(), &models.Reminder{ID: "missing"}), sql.ErrNoRows)
}

func TestMemoryStoreDeleteCascadesState(t *testing.T) {
	store := NewMemoryReminderStore()
	ctx := context.Background()
	seedReminder(t, store, "r1", models.AudienceAllUsers, time.Now())
	seedReminder(t, store, "r2", models.AudienceAllUsers, time.Now())
	now := time.Now()
	require.NoError(t, store.MarkViewed(ctx, "v1", "r1", now))
	require.NoError(t, store.MarkDismissed(ctx, "v2", "r1", now))
	require.NoError(t, store.MarkViewed(ctx, "v1", "r2", now))

	require.NoError(t, store.Delete(ctx, "r1"))

	v1, _ := store.ViewerStates(ctx, "v1")
	assert.Len(t, v1, 1)
	assert.Contains(t, v1, "r2")
	v2, _ := store.ViewerStates(ctx, "v2")
	assert.Empty(t, v2)
	assert.ErrorIs(t, store.Delete(ctx, "r1"), sql.ErrNoRows)
}

func TestMemoryStoreStateRequiresReminder(t *testing.T) {
	store := NewMemoryReminderStore()
	assert.ErrorIs(t, store.MarkViewed(context.Background(), "v1", "ghost", time.Now()), sql.ErrNoRows)
	assert.ErrorIs(t, store.MarkDismissed(context.Background(), "v1", "ghost", time.Now()), sql.ErrNoRows)
}

func TestMemoryStoreMarksAreIdempotent(t *testing.T) {
	store := NewMemoryReminderStore()
	ctx := context.Background()
	seedReminder(t, store, "r1", models.AudienceAllUsers, time.Now())
	first := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, store.MarkDismissed(ctx, "v1", "r1", first))
	require.NoError(t, store.MarkDismissed(ctx, "v1", "r1", first.Add(time.Hour)))

	states, _ := store.ViewerStates(ctx, "v1")
	require.Contains(t, states, "r1")
	assert.True(t, states["r1"].Dismissed)
	assert.False(t, states["r1"].Viewed)
	assert.Equal(t, first, *states["r1"].DismissedAt)

	stats, err := store.Stats(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Dismissed)
	assert.Equal(t, 0, stats.Viewed)
}

func TestMemoryStoreListFiltersAndPaginates(t *testing.T) {
	store := NewMemoryReminderStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		seedReminder(t, store, fmt.Sprintf("s%d", i), models.AudienceAllStudents, base.Add(time.Duration(i)*time.Minute))
	}
	seedReminder(t, store, "admin", models.AudienceAdminOnly, base)

	rows, total, err := store.List(context.Background(), models.ReminderFilter{
		Audiences: []models.ReminderAudience{models.AudienceAllStudents},
		Page:      2,
		PageSize:  2,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, rows, 2)
	assert.Equal(t, "s2", rows[0].ID)
	assert.Equal(t, "s1", rows[1].ID)

	inactive := false
	rows, total, err = store.List(context.Background(), models.ReminderFilter{Active: &inactive})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, rows)
}

func TestMemoryStorePurgeExpiredRemovesReminderAndState(t *testing.T) {
	store := NewMemoryReminderStore()
	ctx := context.Background()
	old := seedReminder(t, store, "old", models.AudienceAllUsers, time.Now())
	expired := time.Now().Add(-48 * time.Hour)
	old.ExpiresAt = &expired
	require.NoError(t, store.Update(ctx, old))
	seedReminder(t, store, "live", models.AudienceAllUsers, time.Now())
	require.NoError(t, store.MarkViewed(ctx, "v1", "old", time.Now()))
	require.NoError(t, store.MarkViewed(ctx, "v1", "live", time.Now()))

	purged, err := store.PurgeExpired(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	_, err = store.GetByID(ctx, "old")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	states, _ := store.ViewerStates(ctx, "v1")
	assert.NotContains(t, states, "old")
	assert.Contains(t, states, "live")
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	store := NewMemoryReminderStore()
	ctx := context.Background()
	seedReminder(t, store, "r1", models.AudienceAllUsers, time.Now())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = store.MarkViewed(ctx, fmt.Sprintf("v%d", i), "r1", time.Now())
		}(i)
		go func() {
			defer wg.Done()
			r, err := store.GetByID(ctx, "r1")
			if err == nil {
				r.Title = "local"
			}
		}()
	}
	wg.Wait()

	stats, err := store.Stats(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 20, stats.Viewed)
}
