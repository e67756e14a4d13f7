package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/noah-isme/cte-skillshub-api/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	var dest []string
	assert.ErrorIs(t, repo.Get(ctx, "reminders:all", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(ctx, "reminders:all", []string{"a"}, time.Minute))
	assert.NoError(t, repo.Delete(ctx, "reminders:all"))
	assert.NoError(t, repo.Ping(ctx))
	assert.NoError(t, repo.Close())
}
