package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cte-skillshub-api/internal/models"
	"github.com/noah-isme/cte-skillshub-api/internal/repository"
	appErrors "github.com/noah-isme/cte-skillshub-api/pkg/errors"
)

func seededStore(t *testing.T) *repository.MemoryReminderStore {
	t.Helper()
	store := repository.NewMemoryReminderStore()
	older := activeReminder("r-old", models.AudienceSpecificEmails)
	older.TargetEmails = []string{"s@x.edu", "t@x.edu"}
	older.CreatedAt = engineNow.Add(-2 * time.Hour)
	newer := activeReminder("r-new", models.AudienceAllUsers)
	require.NoError(t, store.Create(context.Background(), &older))
	require.NoError(t, store.Create(context.Background(), &newer))
	return store
}

func TestExportRemindersCSV(t *testing.T) {
	svc := NewExportService(seededStore(t), nil, nil, nil)

	file, err := svc.ExportReminders(context.Background(), adminViewer, "")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.Contains(t, file.Filename, ".csv")

	records, err := csv.NewReader(bytes.NewReader(file.Body)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "ID", records[0][0])
	assert.Equal(t, "r-new", records[1][0])
	assert.Equal(t, "r-old", records[2][0])
	assert.Equal(t, "s@x.edu t@x.edu", records[2][5])
}

func TestExportRemindersPDF(t *testing.T) {
	svc := NewExportService(seededStore(t), nil, nil, nil)

	file, err := svc.ExportReminders(context.Background(), adminViewer, "PDF")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, bytes.HasPrefix(file.Body, []byte("%PDF")))
}

func TestExportRemindersGuards(t *testing.T) {
	svc := NewExportService(seededStore(t), nil, nil, nil)

	_, err := svc.ExportReminders(context.Background(), staffViewer, "csv")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
	_, err = svc.ExportReminders(context.Background(), adminViewer, "xlsx")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, err = svc.ExportReminders(context.Background(), models.Viewer{}, "csv")
	assert.ErrorIs(t, err, appErrors.ErrUnauthenticated)
}
