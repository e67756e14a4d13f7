package repository

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/cte-skillshub-api/internal/models"
)

// MemoryReminderStore keeps reminders and viewer state in process memory.
// Every read returns copies so callers never observe a record mid-write.
type MemoryReminderStore struct {
	mu        sync.RWMutex
	reminders map[string]*models.Reminder
	// states is keyed by viewer id, then reminder id.
	states map[string]map[string]models.ViewerReminderState
}

// NewMemoryReminderStore creates an empty store.
func NewMemoryReminderStore() *MemoryReminderStore {
	return &MemoryReminderStore{
		reminders: make(map[string]*models.Reminder),
		states:    make(map[string]map[string]models.ViewerReminderState),
	}
}

// ListAll returns every reminder.
func (s *MemoryReminderStore) ListAll(ctx context.Context) ([]models.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Reminder, 0, len(s.reminders))
	for _, r := range s.reminders {
		out = append(out, *r.Clone())
	}
	return out, nil
}

// List returns reminders matching the filter, newest first, with the total count.
func (s *MemoryReminderStore) List(ctx context.Context, filter models.ReminderFilter) ([]models.Reminder, int, error) {
	s.mu.RLock()
	matched := make([]models.Reminder, 0)
	for _, r := range s.reminders {
		if matchesFilter(r, filter) {
			matched = append(matched, *r.Clone())
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	page, size := normalisePage(filter.Page, filter.PageSize)
	total := len(matched)
	start := (page - 1) * size
	if start >= total {
		return []models.Reminder{}, total, nil
	}
	end := start + size
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// GetByID returns a reminder or sql.ErrNoRows.
func (s *MemoryReminderStore) GetByID(ctx context.Context, id string) (*models.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reminders[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return r.Clone(), nil
}

// Create stores a new reminder, assigning an id when missing.
func (s *MemoryReminderStore) Create(ctx context.Context, reminder *models.Reminder) error {
	if reminder.ID == "" {
		reminder.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reminders[reminder.ID] = reminder.Clone()
	return nil
}

// Update replaces a reminder, keeping its creation timestamp.
func (s *MemoryReminderStore) Update(ctx context.Context, reminder *models.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.reminders[reminder.ID]
	if !ok {
		return sql.ErrNoRows
	}
	next := reminder.Clone()
	next.CreatedAt = existing.CreatedAt
	s.reminders[reminder.ID] = next
	return nil
}

// Delete removes a reminder and every viewer state attached to it.
func (s *MemoryReminderStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reminders[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.reminders, id)
	for viewerID, byReminder := range s.states {
		delete(byReminder, id)
		if len(byReminder) == 0 {
			delete(s.states, viewerID)
		}
	}
	return nil
}

// ViewerStates returns the viewer's state keyed by reminder id.
func (s *MemoryReminderStore) ViewerStates(ctx context.Context, viewerID string) (map[string]models.ViewerReminderState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]models.ViewerReminderState, len(s.states[viewerID]))
	for id, state := range s.states[viewerID] {
		out[id] = state
	}
	return out, nil
}

// MarkViewed sets viewed for the pair. The first view timestamp is kept.
func (s *MemoryReminderStore) MarkViewed(ctx context.Context, viewerID, reminderID string, at time.Time) error {
	return s.mutateState(viewerID, reminderID, func(state *models.ViewerReminderState) {
		if !state.Viewed {
			state.Viewed = true
			state.ViewedAt = &at
		}
	})
}

// MarkDismissed sets dismissed for the pair. The first dismissal timestamp is kept.
func (s *MemoryReminderStore) MarkDismissed(ctx context.Context, viewerID, reminderID string, at time.Time) error {
	return s.mutateState(viewerID, reminderID, func(state *models.ViewerReminderState) {
		if !state.Dismissed {
			state.Dismissed = true
			state.DismissedAt = &at
		}
	})
}

// Stats counts viewed and dismissed states for a reminder.
func (s *MemoryReminderStore) Stats(ctx context.Context, reminderID string) (*models.ReminderStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.reminders[reminderID]; !ok {
		return nil, sql.ErrNoRows
	}
	stats := &models.ReminderStats{ReminderID: reminderID}
	for _, byReminder := range s.states {
		state, ok := byReminder[reminderID]
		if !ok {
			continue
		}
		if state.Viewed {
			stats.Viewed++
		}
		if state.Dismissed {
			stats.Dismissed++
		}
	}
	return stats, nil
}

// PurgeExpired removes reminders that expired before cutoff together with their viewer state.
func (s *MemoryReminderStore) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var purged int64
	for id, r := range s.reminders {
		if r.ExpiresAt == nil || !r.ExpiresAt.Before(cutoff) {
			continue
		}
		delete(s.reminders, id)
		for viewerID, byReminder := range s.states {
			delete(byReminder, id)
			if len(byReminder) == 0 {
				delete(s.states, viewerID)
			}
		}
		purged++
	}
	return purged, nil
}

func (s *MemoryReminderStore) mutateState(viewerID, reminderID string, apply func(*models.ViewerReminderState)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reminders[reminderID]; !ok {
		return sql.ErrNoRows
	}
	byReminder, ok := s.states[viewerID]
	if !ok {
		byReminder = make(map[string]models.ViewerReminderState)
		s.states[viewerID] = byReminder
	}
	state, ok := byReminder[reminderID]
	if !ok {
		state = models.ViewerReminderState{ReminderID: reminderID, ViewerID: viewerID}
	}
	apply(&state)
	byReminder[reminderID] = state
	return nil
}

func matchesFilter(r *models.Reminder, filter models.ReminderFilter) bool {
	if filter.Active != nil && r.IsActive != *filter.Active {
		return false
	}
	if filter.CreatedByID != "" && r.CreatedBy.ID != filter.CreatedByID {
		return false
	}
	if len(filter.Audiences) == 0 {
		return true
	}
	for _, audience := range filter.Audiences {
		if r.TargetAudience == audience {
			return true
		}
	}
	return false
}

func normalisePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return page, size
}
