package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/cte-skillshub-api/internal/dto"
	"github.com/noah-isme/cte-skillshub-api/internal/models"
	appErrors "github.com/noah-isme/cte-skillshub-api/pkg/errors"
)

const reminderCacheKey = "reminders:all"

// ReminderStore persists reminders and per-viewer reminder state.
// Missing reminders are reported as sql.ErrNoRows.
type ReminderStore interface {
	ListAll(ctx context.Context) ([]models.Reminder, error)
	List(ctx context.Context, filter models.ReminderFilter) ([]models.Reminder, int, error)
	GetByID(ctx context.Context, id string) (*models.Reminder, error)
	Create(ctx context.Context, reminder *models.Reminder) error
	Update(ctx context.Context, reminder *models.Reminder) error
	Delete(ctx context.Context, id string) error
	ViewerStates(ctx context.Context, viewerID string) (map[string]models.ViewerReminderState, error)
	MarkViewed(ctx context.Context, viewerID, reminderID string, at time.Time) error
	MarkDismissed(ctx context.Context, viewerID, reminderID string, at time.Time) error
	Stats(ctx context.Context, reminderID string) (*models.ReminderStats, error)
	PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

type reminderCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type auditRecorder interface {
	Record(entry models.AuditLog)
}

// ReminderServiceConfig tunes the reminder service.
type ReminderServiceConfig struct {
	CacheTTL time.Duration
}

// ReminderService applies reminder use cases on top of a ReminderStore.
type ReminderService struct {
	store     ReminderStore
	engine    *ReminderEngine
	cache     reminderCache
	audit     auditRecorder
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ReminderServiceConfig
	now       func() time.Time

	// cacheMu orders cache fills against invalidations; generation counts invalidations.
	cacheMu    sync.Mutex
	generation uint64
}

// NewReminderService constructs the service. cache, audit and metrics are optional.
func NewReminderService(store ReminderStore, engine *ReminderEngine, cache reminderCache, audit auditRecorder, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg ReminderServiceConfig) *ReminderService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if engine == nil {
		engine = NewReminderEngine(nil, logger)
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}
	svc := &ReminderService{
		store:     store,
		engine:    engine,
		cache:     cache,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
	if err := RegisterReminderValidations(svc.validator); err != nil {
		panic(err)
	}
	return svc
}

// RegisterReminderValidations adds the reminder enum tags to a validator.
func RegisterReminderValidations(v *validator.Validate) error {
	tags := map[string]validator.Func{
		"reminder_audience": func(fl validator.FieldLevel) bool {
			return models.ReminderAudience(fl.Field().String()).Valid()
		},
		"reminder_priority": func(fl validator.FieldLevel) bool {
			return models.ReminderPriority(fl.Field().String()).Valid()
		},
		"reminder_type": func(fl validator.FieldLevel) bool {
			return models.ReminderType(fl.Field().String()).Valid()
		},
	}
	for tag, fn := range tags {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("register %s validation: %w", tag, err)
		}
	}
	return nil
}

// SetClock overrides the time source.
func (s *ReminderService) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// ListEligible returns the reminders the viewer should see, newest first.
// unviewedOnly further drops reminders the viewer has already seen.
func (s *ReminderService) ListEligible(ctx context.Context, viewer models.Viewer, unviewedOnly bool) ([]models.Reminder, error) {
	if err := requireViewer(viewer); err != nil {
		return nil, err
	}
	all, err := s.allReminders(ctx)
	if err != nil {
		return nil, err
	}
	states, err := s.store.ViewerStates(ctx, viewer.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reminder state")
	}

	eligible := s.engine.Eligible(ctx, viewer, all, states, s.now())
	if unviewedOnly {
		unviewed := eligible[:0]
		for _, r := range eligible {
			if !states[r.ID].Viewed {
				unviewed = append(unviewed, r)
			}
		}
		eligible = unviewed
	}
	s.metrics.ObserveEligible(len(eligible))
	return eligible, nil
}

// MarkViewed records that the viewer has seen a reminder. Repeated calls are harmless.
func (s *ReminderService) MarkViewed(ctx context.Context, viewer models.Viewer, reminderID string) error {
	if err := requireViewer(viewer); err != nil {
		return err
	}
	if _, err := s.visibleReminder(ctx, viewer, reminderID); err != nil {
		return err
	}
	if err := s.store.MarkViewed(ctx, viewer.ID, reminderID, s.now()); err != nil {
		return storeError(err, "failed to mark reminder viewed")
	}
	s.metrics.RecordReminderEvent("viewed")
	return nil
}

// Dismiss permanently hides a dismissible reminder from the viewer. Dismissing twice is not an error.
func (s *ReminderService) Dismiss(ctx context.Context, viewer models.Viewer, reminderID string) error {
	if err := requireViewer(viewer); err != nil {
		return err
	}
	reminder, err := s.visibleReminder(ctx, viewer, reminderID)
	if err != nil {
		return err
	}
	if !reminder.IsDismissible {
		return appErrors.Clone(appErrors.ErrNotDismissible, "reminder cannot be dismissed")
	}
	if err := s.store.MarkDismissed(ctx, viewer.ID, reminderID, s.now()); err != nil {
		return storeError(err, "failed to dismiss reminder")
	}
	s.metrics.RecordReminderEvent("dismissed")
	return nil
}

// Create stores a new reminder authored by actor.
func (s *ReminderService) Create(ctx context.Context, actor models.Viewer, req dto.CreateReminderRequest) (*models.Reminder, error) {
	if err := requireManager(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reminder payload")
	}
	title, message := strings.TrimSpace(req.Title), strings.TrimSpace(req.Message)
	if title == "" || message == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "title and message are required")
	}
	audience := models.ReminderAudience(req.TargetAudience)
	if err := checkAudience(actor, audience); err != nil {
		return nil, err
	}

	now := s.now()
	if req.ExpiresAt != nil && !req.ExpiresAt.After(now) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "expires_at must be in the future")
	}

	reminder := &models.Reminder{
		Title:           title,
		Message:         message,
		Type:            models.ReminderTypeGeneral,
		Priority:        models.ReminderPriorityMedium,
		TargetAudience:  audience,
		TargetEmails:    req.TargetEmails,
		TargetUserIDs:   req.TargetUserIDs,
		TargetCourseIDs: req.TargetCourseIDs,
		IsActive:        true,
		IsDismissible:   true,
		ExpiresAt:       req.ExpiresAt,
		CreatedAt:       now,
		UpdatedAt:       now,
		CreatedBy:       models.ReminderCreator{ID: actor.ID, Name: actor.Name, Role: actor.Role},
	}
	if req.ReminderType != "" {
		reminder.Type = models.ReminderType(req.ReminderType)
	}
	if req.Priority != "" {
		reminder.Priority = models.ReminderPriority(req.Priority)
	}
	if req.IsActive != nil {
		reminder.IsActive = *req.IsActive
	}
	if req.IsDismissible != nil {
		reminder.IsDismissible = *req.IsDismissible
	}

	if err := s.store.Create(ctx, reminder); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create reminder")
	}
	s.invalidate(ctx)
	s.record(actor, models.AuditActionReminderCreate, reminder.ID, nil, reminder)
	s.metrics.RecordReminderEvent("created")
	s.logger.Info("reminder created",
		zap.String("reminder_id", reminder.ID),
		zap.String("audience", string(reminder.TargetAudience)),
		zap.String("actor_id", actor.ID))
	return reminder, nil
}

// Update applies a partial patch. id and createdAt never change.
func (s *ReminderService) Update(ctx context.Context, actor models.Viewer, id string, req dto.UpdateReminderRequest) (*models.Reminder, error) {
	if err := requireManager(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reminder payload")
	}
	existing, err := s.managedReminder(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	updated := existing.Clone()
	if req.Title != nil {
		updated.Title = strings.TrimSpace(*req.Title)
	}
	if req.Message != nil {
		updated.Message = strings.TrimSpace(*req.Message)
	}
	if updated.Title == "" || updated.Message == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "title and message are required")
	}
	if req.TargetAudience != nil {
		audience := models.ReminderAudience(*req.TargetAudience)
		if err := checkAudience(actor, audience); err != nil {
			return nil, err
		}
		updated.TargetAudience = audience
	}
	if req.ReminderType != nil {
		updated.Type = models.ReminderType(*req.ReminderType)
	}
	if req.Priority != nil {
		updated.Priority = models.ReminderPriority(*req.Priority)
	}
	if req.TargetEmails != nil {
		updated.TargetEmails = *req.TargetEmails
	}
	if req.TargetUserIDs != nil {
		updated.TargetUserIDs = *req.TargetUserIDs
	}
	if req.TargetCourseIDs != nil {
		updated.TargetCourseIDs = *req.TargetCourseIDs
	}
	if req.IsActive != nil {
		updated.IsActive = *req.IsActive
	}
	if req.IsDismissible != nil {
		updated.IsDismissible = *req.IsDismissible
	}
	switch {
	case req.ClearExpiry:
		updated.ExpiresAt = nil
	case req.ExpiresAt != nil:
		updated.ExpiresAt = req.ExpiresAt
	}
	updated.ID = existing.ID
	updated.CreatedAt = existing.CreatedAt
	updated.CreatedBy = existing.CreatedBy
	updated.UpdatedAt = s.now()

	if err := s.store.Update(ctx, updated); err != nil {
		return nil, storeError(err, "failed to update reminder")
	}
	s.invalidate(ctx)
	s.record(actor, models.AuditActionReminderUpdate, updated.ID, existing, updated)
	s.metrics.RecordReminderEvent("updated")
	return updated, nil
}

// Delete removes a reminder together with every viewer's state for it.
func (s *ReminderService) Delete(ctx context.Context, actor models.Viewer, id string) error {
	if err := requireManager(actor); err != nil {
		return err
	}
	existing, err := s.managedReminder(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return storeError(err, "failed to delete reminder")
	}
	s.invalidate(ctx)
	s.record(actor, models.AuditActionReminderDelete, id, existing, nil)
	s.metrics.RecordReminderEvent("deleted")
	return nil
}

// List returns the reminders actor may manage. Staff only see student-scoped audiences.
func (s *ReminderService) List(ctx context.Context, actor models.Viewer, query dto.ReminderListQuery) ([]models.Reminder, *models.Pagination, error) {
	if err := requireManager(actor); err != nil {
		return nil, nil, err
	}
	filter := models.ReminderFilter{Active: query.Active, Page: query.Page, PageSize: query.PageSize}
	if query.Audience != "" {
		audience := models.ReminderAudience(query.Audience)
		if !audience.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown audience filter")
		}
		if err := checkAudience(actor, audience); err != nil {
			return nil, nil, err
		}
		filter.Audiences = []models.ReminderAudience{audience}
	} else if actor.Role == models.RoleStaff {
		filter.Audiences = staffAudiences()
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	reminders, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reminders")
	}
	return reminders, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns one reminder actor may manage.
func (s *ReminderService) Get(ctx context.Context, actor models.Viewer, id string) (*models.Reminder, error) {
	if err := requireManager(actor); err != nil {
		return nil, err
	}
	return s.managedReminder(ctx, actor, id)
}

// Stats returns viewed and dismissed counts for a reminder actor may manage.
func (s *ReminderService) Stats(ctx context.Context, actor models.Viewer, id string) (*models.ReminderStats, error) {
	if err := requireManager(actor); err != nil {
		return nil, err
	}
	if _, err := s.managedReminder(ctx, actor, id); err != nil {
		return nil, err
	}
	stats, err := s.store.Stats(ctx, id)
	if err != nil {
		return nil, storeError(err, "failed to load reminder stats")
	}
	return stats, nil
}

// PurgeExpired deletes reminders expired longer than retention, cascading their viewer state.
func (s *ReminderService) PurgeExpired(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := s.now().Add(-retention)
	purged, err := s.store.PurgeExpired(ctx, cutoff)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to purge expired reminders")
	}
	if purged > 0 {
		s.invalidate(ctx)
	}
	s.metrics.AddPurgedReminders(purged)
	if purged > 0 && s.audit != nil {
		payload, _ := json.Marshal(map[string]interface{}{"cutoff": cutoff, "purged": purged})
		s.audit.Record(models.AuditLog{
			Action:    models.AuditActionReminderPurge,
			Resource:  "reminder",
			NewValues: payload,
		})
	}
	s.logger.Info("expired reminders purged", zap.Time("cutoff", cutoff), zap.Int64("purged", purged))
	return purged, nil
}

// allReminders serves the full collection from cache when possible. A fill is skipped when an
// invalidation happened while the store was being read, so a snapshot older than the last write
// is never cached.
func (s *ReminderService) allReminders(ctx context.Context) ([]models.Reminder, error) {
	var cached []models.Reminder
	if s.cache != nil {
		hit, err := s.cache.Get(ctx, reminderCacheKey, &cached)
		if err == nil && hit {
			return cached, nil
		}
	}
	generation := s.cacheGeneration()
	all, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reminders")
	}
	if s.cache != nil {
		s.cacheMu.Lock()
		if s.generation == generation {
			_ = s.cache.Set(ctx, reminderCacheKey, all, s.cfg.CacheTTL)
		}
		s.cacheMu.Unlock()
	}
	return all, nil
}

func (s *ReminderService) cacheGeneration() uint64 {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.generation
}

// invalidate runs after every store write.
func (s *ReminderService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.generation++
	_ = s.cache.Delete(ctx, reminderCacheKey)
}

// visibleReminder loads a reminder the viewer is currently allowed to see, ignoring dismissal.
func (s *ReminderService) visibleReminder(ctx context.Context, viewer models.Viewer, id string) (*models.Reminder, error) {
	reminder, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "failed to load reminder")
	}
	if !s.engine.Visible(ctx, viewer, reminder, s.now()) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "reminder not found")
	}
	return reminder, nil
}

// managedReminder loads a reminder and checks that actor may administer it.
func (s *ReminderService) managedReminder(ctx context.Context, actor models.Viewer, id string) (*models.Reminder, error) {
	reminder, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "failed to load reminder")
	}
	if err := checkAudience(actor, reminder.TargetAudience); err != nil {
		return nil, err
	}
	return reminder, nil
}

func (s *ReminderService) record(actor models.Viewer, action, reminderID string, before, after *models.Reminder) {
	if s.audit == nil {
		return
	}
	entry := models.AuditLog{
		UserID:     &actor.ID,
		Action:     action,
		Resource:   "reminder",
		ResourceID: &reminderID,
	}
	if before != nil {
		entry.OldValues, _ = json.Marshal(before)
	}
	if after != nil {
		entry.NewValues, _ = json.Marshal(after)
	}
	s.audit.Record(entry)
}

func requireViewer(viewer models.Viewer) error {
	if !viewer.Authenticated || viewer.ID == "" {
		return appErrors.Clone(appErrors.ErrUnauthenticated, "authentication required")
	}
	return nil
}

func requireManager(actor models.Viewer) error {
	if err := requireViewer(actor); err != nil {
		return err
	}
	if actor.Role != models.RoleAdmin && actor.Role != models.RoleStaff {
		return appErrors.Clone(appErrors.ErrForbidden, "only admins and staff manage reminders")
	}
	return nil
}

// checkAudience enforces which audiences a role may target. Admins may use any known audience.
func checkAudience(actor models.Viewer, audience models.ReminderAudience) error {
	if !audience.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "unknown target audience")
	}
	if actor.Role == models.RoleStaff && !audience.StudentScoped() {
		return appErrors.Clone(appErrors.ErrForbiddenAudience, "staff may only target student audiences")
	}
	return nil
}

func staffAudiences() []models.ReminderAudience {
	return []models.ReminderAudience{
		models.AudienceAllStudents,
		models.AudienceSpecificStudents,
		models.AudienceSpecificEmails,
		models.AudienceCourseStudents,
	}
}

func storeError(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "reminder not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
