package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cte-skillshub-api/internal/models"
)

func TestMemoryUserStoreLookups(t *testing.T) {
	store := NewMemoryUserStore(models.User{ID: "u1", Email: "Admin@X.edu", Role: models.RoleAdmin, Active: true})
	ctx := context.Background()

	user, err := store.FindByEmail(ctx, "admin@x.edu")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)

	_, err = store.FindByID(ctx, "nobody")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	ts := time.Now()
	require.NoError(t, store.UpdateLastLogin(ctx, "u1", ts))
	user, _ = store.FindByID(ctx, "u1")
	require.NotNil(t, user.LastLogin)
	assert.Equal(t, ts, *user.LastLogin)
}

func TestMemoryUserStoreResolvesMembership(t *testing.T) {
	store := NewMemoryUserStore(
		models.User{ID: "s1", Email: "s1@x.edu", Role: models.RoleStudent, Active: true},
		models.User{ID: "s2", Email: "s2@x.edu", Role: models.RoleStudent, Active: false},
		models.User{ID: "t1", Email: "t1@x.edu", Role: models.RoleStaff, Active: true},
	)
	store.Enroll("s1", "weld-101")
	ctx := context.Background()

	ok, err := store.IsTargetedStudent(ctx, "s1", []string{"s1", "s2"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = store.IsTargetedStudent(ctx, "s2", []string{"s1", "s2"})
	assert.False(t, ok, "inactive students are not targeted")
	ok, _ = store.IsTargetedStudent(ctx, "t1", []string{"t1"})
	assert.False(t, ok, "staff are never targeted students")

	ok, _ = store.IsEnrolledInAny(ctx, "s1", []string{"cnc-200", "weld-101"})
	assert.True(t, ok)
	ok, _ = store.IsEnrolledInAny(ctx, "s1", nil)
	assert.False(t, ok)
	ok, _ = store.IsEnrolledInAny(ctx, "s2", []string{"weld-101"})
	assert.False(t, ok)
}

func TestMemoryUserStoreAddReplacesEmail(t *testing.T) {
	store := NewMemoryUserStore(models.User{ID: "u1", Email: "old@x.edu"})
	store.Add(models.User{ID: "u1", Email: "new@x.edu"})

	_, err := store.FindByEmail(context.Background(), "old@x.edu")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	user, err := store.FindByEmail(context.Background(), "new@x.edu")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
}
