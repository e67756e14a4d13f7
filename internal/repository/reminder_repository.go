package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/cte-skillshub-api/internal/models"
)

const reminderColumns = `id, title, message, reminder_type, priority, target_audience, target_emails, target_user_ids, target_course_ids,
is_active, is_dismissible, expires_at, created_at, updated_at, created_by_id, created_by_name, created_by_role`

// reminderRow is the flat database shape of a reminder.
type reminderRow struct {
	ID              string                  `db:"id"`
	Title           string                  `db:"title"`
	Message         string                  `db:"message"`
	Type            models.ReminderType     `db:"reminder_type"`
	Priority        models.ReminderPriority `db:"priority"`
	TargetAudience  models.ReminderAudience `db:"target_audience"`
	TargetEmails    pq.StringArray          `db:"target_emails"`
	TargetUserIDs   pq.StringArray          `db:"target_user_ids"`
	TargetCourseIDs pq.StringArray          `db:"target_course_ids"`
	IsActive        bool                    `db:"is_active"`
	IsDismissible   bool                    `db:"is_dismissible"`
	ExpiresAt       *time.Time              `db:"expires_at"`
	CreatedAt       time.Time               `db:"created_at"`
	UpdatedAt       time.Time               `db:"updated_at"`
	CreatedByID     string                  `db:"created_by_id"`
	CreatedByName   string                  `db:"created_by_name"`
	CreatedByRole   models.UserRole         `db:"created_by_role"`
}

func toReminderRow(r *models.Reminder) reminderRow {
	return reminderRow{
		ID:              r.ID,
		Title:           r.Title,
		Message:         r.Message,
		Type:            r.Type,
		Priority:        r.Priority,
		TargetAudience:  r.TargetAudience,
		TargetEmails:    nonNil(r.TargetEmails),
		TargetUserIDs:   nonNil(r.TargetUserIDs),
		TargetCourseIDs: nonNil(r.TargetCourseIDs),
		IsActive:        r.IsActive,
		IsDismissible:   r.IsDismissible,
		ExpiresAt:       r.ExpiresAt,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		CreatedByID:     r.CreatedBy.ID,
		CreatedByName:   r.CreatedBy.Name,
		CreatedByRole:   r.CreatedBy.Role,
	}
}

func (row reminderRow) toModel() models.Reminder {
	return models.Reminder{
		ID:              row.ID,
		Title:           row.Title,
		Message:         row.Message,
		Type:            row.Type,
		Priority:        row.Priority,
		TargetAudience:  row.TargetAudience,
		TargetEmails:    []string(row.TargetEmails),
		TargetUserIDs:   []string(row.TargetUserIDs),
		TargetCourseIDs: []string(row.TargetCourseIDs),
		IsActive:        row.IsActive,
		IsDismissible:   row.IsDismissible,
		ExpiresAt:       row.ExpiresAt,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
		CreatedBy: models.ReminderCreator{
			ID:   row.CreatedByID,
			Name: row.CreatedByName,
			Role: row.CreatedByRole,
		},
	}
}

// ReminderRepository persists reminders and viewer state in PostgreSQL.
type ReminderRepository struct {
	db *sqlx.DB
}

// NewReminderRepository creates the repository.
func NewReminderRepository(db *sqlx.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

// ListAll returns every reminder.
func (r *ReminderRepository) ListAll(ctx context.Context) ([]models.Reminder, error) {
	query := fmt.Sprintf("SELECT %s FROM reminders ORDER BY created_at DESC, id ASC", reminderColumns)
	var rows []reminderRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	return toModels(rows), nil
}

// List returns a filtered page of reminders with the total count.
func (r *ReminderRepository) List(ctx context.Context, filter models.ReminderFilter) ([]models.Reminder, int, error) {
	var where []string
	var args []interface{}
	if len(filter.Audiences) > 0 {
		values := make([]string, len(filter.Audiences))
		for i, a := range filter.Audiences {
			values[i] = string(a)
		}
		args = append(args, pq.Array(values))
		where = append(where, fmt.Sprintf("target_audience = ANY($%d)", len(args)))
	}
	if filter.CreatedByID != "" {
		args = append(args, filter.CreatedByID)
		where = append(where, fmt.Sprintf("created_by_id = $%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		where = append(where, fmt.Sprintf("is_active = $%d", len(args)))
	}
	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}

	page, size := normalisePage(filter.Page, filter.PageSize)
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM reminders%s ORDER BY created_at DESC, id ASC LIMIT %d OFFSET %d", reminderColumns, whereClause, size, offset)
	var rows []reminderRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list reminders: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM reminders"+whereClause, args...); err != nil {
		return nil, 0, fmt.Errorf("count reminders: %w", err)
	}
	return toModels(rows), total, nil
}

// GetByID returns a reminder or sql.ErrNoRows.
func (r *ReminderRepository) GetByID(ctx context.Context, id string) (*models.Reminder, error) {
	query := fmt.Sprintf("SELECT %s FROM reminders WHERE id = $1", reminderColumns)
	var row reminderRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get reminder: %w", err)
	}
	reminder := row.toModel()
	return &reminder, nil
}

// Create inserts a new reminder.
func (r *ReminderRepository) Create(ctx context.Context, reminder *models.Reminder) error {
	if reminder.ID == "" {
		reminder.ID = uuid.NewString()
	}
	query := `INSERT INTO reminders (id, title, message, reminder_type, priority, target_audience, target_emails, target_user_ids, target_course_ids,
is_active, is_dismissible, expires_at, created_at, updated_at, created_by_id, created_by_name, created_by_role)
VALUES (:id, :title, :message, :reminder_type, :priority, :target_audience, :target_emails, :target_user_ids, :target_course_ids,
:is_active, :is_dismissible, :expires_at, :created_at, :updated_at, :created_by_id, :created_by_name, :created_by_role)`
	if _, err := r.db.NamedExecContext(ctx, query, toReminderRow(reminder)); err != nil {
		return fmt.Errorf("create reminder: %w", err)
	}
	return nil
}

// Update rewrites every mutable column of a reminder.
func (r *ReminderRepository) Update(ctx context.Context, reminder *models.Reminder) error {
	query := `UPDATE reminders SET title = :title, message = :message, reminder_type = :reminder_type, priority = :priority,
target_audience = :target_audience, target_emails = :target_emails, target_user_ids = :target_user_ids, target_course_ids = :target_course_ids,
is_active = :is_active, is_dismissible = :is_dismissible, expires_at = :expires_at, updated_at = :updated_at
WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, toReminderRow(reminder))
	if err != nil {
		return fmt.Errorf("update reminder: %w", err)
	}
	return requireAffected(res)
}

// Delete removes a reminder and its viewer state in one transaction.
func (r *ReminderRepository) Delete(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete reminder: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM reminder_viewer_states WHERE reminder_id = $1", id); err != nil {
		return fmt.Errorf("delete reminder states: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM reminders WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	if err = requireAffected(res); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete reminder: %w", err)
	}
	return nil
}

// ViewerStates returns the viewer's state keyed by reminder id.
func (r *ReminderRepository) ViewerStates(ctx context.Context, viewerID string) (map[string]models.ViewerReminderState, error) {
	const query = `SELECT reminder_id, viewer_id, viewed, dismissed, viewed_at, dismissed_at FROM reminder_viewer_states WHERE viewer_id = $1`
	var rows []models.ViewerReminderState
	if err := r.db.SelectContext(ctx, &rows, query, viewerID); err != nil {
		return nil, fmt.Errorf("list viewer reminder states: %w", err)
	}
	out := make(map[string]models.ViewerReminderState, len(rows))
	for _, row := range rows {
		out[row.ReminderID] = row
	}
	return out, nil
}

// MarkViewed upserts viewed=true. It returns sql.ErrNoRows when the reminder does not exist.
func (r *ReminderRepository) MarkViewed(ctx context.Context, viewerID, reminderID string, at time.Time) error {
	const query = `INSERT INTO reminder_viewer_states (reminder_id, viewer_id, viewed, dismissed, viewed_at)
SELECT id, $2, TRUE, FALSE, $3 FROM reminders WHERE id = $1
ON CONFLICT (reminder_id, viewer_id) DO UPDATE SET viewed = TRUE,
viewed_at = COALESCE(reminder_viewer_states.viewed_at, EXCLUDED.viewed_at)`
	res, err := r.db.ExecContext(ctx, query, reminderID, viewerID, at)
	if err != nil {
		return fmt.Errorf("mark reminder viewed: %w", err)
	}
	return requireAffected(res)
}

// MarkDismissed upserts dismissed=true. It returns sql.ErrNoRows when the reminder does not exist.
func (r *ReminderRepository) MarkDismissed(ctx context.Context, viewerID, reminderID string, at time.Time) error {
	const query = `INSERT INTO reminder_viewer_states (reminder_id, viewer_id, viewed, dismissed, dismissed_at)
SELECT id, $2, FALSE, TRUE, $3 FROM reminders WHERE id = $1
ON CONFLICT (reminder_id, viewer_id) DO UPDATE SET dismissed = TRUE,
dismissed_at = COALESCE(reminder_viewer_states.dismissed_at, EXCLUDED.dismissed_at)`
	res, err := r.db.ExecContext(ctx, query, reminderID, viewerID, at)
	if err != nil {
		return fmt.Errorf("mark reminder dismissed: %w", err)
	}
	return requireAffected(res)
}

// Stats counts viewed and dismissed states for a reminder.
func (r *ReminderRepository) Stats(ctx context.Context, reminderID string) (*models.ReminderStats, error) {
	const query = `SELECT r.id AS reminder_id,
COUNT(s.viewer_id) FILTER (WHERE s.viewed) AS viewed,
COUNT(s.viewer_id) FILTER (WHERE s.dismissed) AS dismissed
FROM reminders r LEFT JOIN reminder_viewer_states s ON s.reminder_id = r.id
WHERE r.id = $1 GROUP BY r.id`
	var stats models.ReminderStats
	if err := r.db.GetContext(ctx, &stats, query, reminderID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("reminder stats: %w", err)
	}
	return &stats, nil
}

// PurgeExpired removes reminders that expired before cutoff and their viewer state in one
// transaction. The reminder rows are locked first so a concurrent expiry change either wins or waits.
func (r *ReminderRepository) PurgeExpired(ctx context.Context, cutoff time.Time) (purged int64, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin purge reminders: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var ids []string
	if err = tx.SelectContext(ctx, &ids, `SELECT id FROM reminders
WHERE expires_at IS NOT NULL AND expires_at < $1 FOR UPDATE`, cutoff); err != nil {
		return 0, fmt.Errorf("select expired reminders: %w", err)
	}
	if len(ids) > 0 {
		if _, err = tx.ExecContext(ctx, "DELETE FROM reminder_viewer_states WHERE reminder_id = ANY($1)", pq.Array(ids)); err != nil {
			return 0, fmt.Errorf("purge reminder states: %w", err)
		}
		if _, err = tx.ExecContext(ctx, "DELETE FROM reminders WHERE id = ANY($1)", pq.Array(ids)); err != nil {
			return 0, fmt.Errorf("purge reminders: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit purge reminders: %w", err)
	}
	return int64(len(ids)), nil
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func toModels(rows []reminderRow) []models.Reminder {
	out := make([]models.Reminder, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out
}

func nonNil(values []string) pq.StringArray {
	if values == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(values)
}
