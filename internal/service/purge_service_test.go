package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type purgerStub struct {
	calls     int
	retention time.Duration
	err       error
}

func (p *purgerStub) PurgeExpired(ctx context.Context, retention time.Duration) (int64, error) {
	p.calls++
	p.retention = retention
	return 3, p.err
}

func TestPurgeServiceRunOnce(t *testing.T) {
	stub := &purgerStub{}
	svc := NewPurgeService(stub, "", 72*time.Hour, nil)

	purged, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), purged)
	assert.Equal(t, 72*time.Hour, stub.retention)

	stub.err = errors.New("db down")
	_, err = svc.RunOnce(context.Background())
	assert.Error(t, err)
}

func TestPurgeServiceDisabledWithoutRetention(t *testing.T) {
	stub := &purgerStub{}
	svc := NewPurgeService(stub, "@hourly", 0, nil)

	require.NoError(t, svc.Start())
	assert.True(t, svc.Next().IsZero())
	purged, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, purged)
	assert.Zero(t, stub.calls)
}

func TestPurgeServiceSchedules(t *testing.T) {
	svc := NewPurgeService(&purgerStub{}, "@every 1h", time.Hour, nil, WithPurgeCron(cron.New(cron.WithLogger(cron.DiscardLogger))))

	require.NoError(t, svc.Start())
	defer svc.Stop()
	assert.False(t, svc.Next().IsZero())
}

func TestPurgeServiceRejectsBadSchedule(t *testing.T) {
	svc := NewPurgeService(&purgerStub{}, "not a schedule", time.Hour, nil)
	assert.Error(t, svc.Start())
}
