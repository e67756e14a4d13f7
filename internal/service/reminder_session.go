package service

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/cte-skillshub-api/internal/dto"
	"github.com/noah-isme/cte-skillshub-api/internal/models"
	appErrors "github.com/noah-isme/cte-skillshub-api/pkg/errors"
)

// Advance directions.
const (
	DirectionNext     = "next"
	DirectionPrevious = "previous"
)

type sessionReminders interface {
	ListEligible(ctx context.Context, viewer models.Viewer, unviewedOnly bool) ([]models.Reminder, error)
	MarkViewed(ctx context.Context, viewer models.Viewer, reminderID string) error
	Dismiss(ctx context.Context, viewer models.Viewer, reminderID string) error
}

// reminderSession is one viewer's pass through their reminders.
// members pins the reminders that opened the session; dismissals and expiry only ever shrink it.
type reminderSession struct {
	mu        sync.Mutex
	members   map[string]struct{}
	reminders []models.Reminder
	index     int
	closed    bool
}

// ReminderSessionService keeps the per-viewer presentation cursor. Nothing here is persisted,
// so closing a session only hides reminders until the next evaluation.
type ReminderSessionService struct {
	reminders sessionReminders
	metrics   *MetricsService
	logger    *zap.Logger

	mu       sync.Mutex
	sessions map[string]*reminderSession
}

// NewReminderSessionService constructs the service.
func NewReminderSessionService(reminders sessionReminders, metrics *MetricsService, logger *zap.Logger) *ReminderSessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReminderSessionService{
		reminders: reminders,
		metrics:   metrics,
		logger:    logger,
		sessions:  make(map[string]*reminderSession),
	}
}

// Open evaluates the viewer's reminders and starts a session on the first one, marking it viewed.
// An empty evaluation returns a closed view.
func (s *ReminderSessionService) Open(ctx context.Context, viewer models.Viewer, unviewedOnly bool) (*dto.ReminderSessionView, error) {
	if err := requireViewer(viewer); err != nil {
		return nil, err
	}
	eligible, err := s.reminders.ListEligible(ctx, viewer, unviewedOnly)
	if err != nil {
		return nil, err
	}
	if len(eligible) == 0 {
		s.drop(viewer.ID)
		return &dto.ReminderSessionView{}, nil
	}

	session := &reminderSession{members: make(map[string]struct{}, len(eligible)), reminders: eligible}
	for _, r := range eligible {
		session.members[r.ID] = struct{}{}
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	s.store(viewer.ID, session)

	if err := s.markCurrent(ctx, viewer, session); err != nil {
		session.closed = true
		s.dropSession(viewer.ID, session)
		return nil, err
	}
	return session.view(), nil
}

// Current returns the viewer's session without changing it.
func (s *ReminderSessionService) Current(viewer models.Viewer) (*dto.ReminderSessionView, error) {
	if err := requireViewer(viewer); err != nil {
		return nil, err
	}
	session := s.lookup(viewer.ID)
	if session == nil {
		return &dto.ReminderSessionView{}, nil
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	return session.view(), nil
}

// Advance re-derives the session from the store, then moves the cursor one step.
// Moving past either end is a no-op. If the current reminder was dismissed or hidden elsewhere,
// the cursor lands on its nearest remaining neighbour in the requested direction.
func (s *ReminderSessionService) Advance(ctx context.Context, viewer models.Viewer, direction string) (*dto.ReminderSessionView, error) {
	if err := requireViewer(viewer); err != nil {
		return nil, err
	}
	var step int
	switch direction {
	case DirectionNext:
		step = 1
	case DirectionPrevious:
		step = -1
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "direction must be next or previous")
	}

	session := s.lookup(viewer.ID)
	if session == nil {
		return &dto.ReminderSessionView{}, nil
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	if session.closed {
		return &dto.ReminderSessionView{}, nil
	}

	remaining, err := s.derive(ctx, viewer, session)
	if err != nil {
		return nil, err
	}
	if len(remaining) == 0 {
		s.closeEmpty(viewer.ID, session)
		return session.view(), nil
	}

	current := session.reminders[session.index].ID
	target := advanceTarget(session.reminders, session.index, remaining, step)
	previous, previousIndex := session.reminders, session.index
	session.reminders = remaining
	session.index = target
	if remaining[target].ID == current {
		return session.view(), nil
	}
	if err := s.markCurrent(ctx, viewer, session); err != nil {
		if !errors.Is(err, appErrors.ErrNotFound) {
			session.reminders, session.index = previous, previousIndex
			return nil, err
		}
		// The reminder vanished between derive and mark; rebuild from the store.
		if err := s.refresh(ctx, viewer, session, ""); err != nil {
			return nil, err
		}
	}
	return session.view(), nil
}

// Dismiss dismisses reminderID, or the current reminder when empty, then re-derives the session.
// The cursor stays on the same index, which now holds the next remaining reminder, falling back
// to the last one. The session closes when nothing remains.
func (s *ReminderSessionService) Dismiss(ctx context.Context, viewer models.Viewer, reminderID string) (*dto.ReminderSessionView, error) {
	if err := requireViewer(viewer); err != nil {
		return nil, err
	}
	session := s.lookup(viewer.ID)
	if session == nil {
		if reminderID == "" {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no open reminder session")
		}
		if err := s.reminders.Dismiss(ctx, viewer, reminderID); err != nil {
			return nil, err
		}
		return &dto.ReminderSessionView{}, nil
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	if session.closed {
		return &dto.ReminderSessionView{}, nil
	}
	current := session.reminders[session.index].ID
	if reminderID == "" {
		reminderID = current
	}
	if err := s.reminders.Dismiss(ctx, viewer, reminderID); err != nil {
		return nil, err
	}
	follow := ""
	if reminderID != current {
		follow = current
	}
	if err := s.refresh(ctx, viewer, session, follow); err != nil {
		return nil, err
	}
	return session.view(), nil
}

// Close discards the viewer's session. Reminders that were not dismissed come back next time.
func (s *ReminderSessionService) Close(viewer models.Viewer) error {
	if err := requireViewer(viewer); err != nil {
		return err
	}
	s.drop(viewer.ID)
	return nil
}

// OpenSessions reports how many sessions are open.
func (s *ReminderSessionService) OpenSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// derive returns the session members that are still eligible, in eligible order.
func (s *ReminderSessionService) derive(ctx context.Context, viewer models.Viewer, session *reminderSession) ([]models.Reminder, error) {
	eligible, err := s.reminders.ListEligible(ctx, viewer, false)
	if err != nil {
		return nil, err
	}
	remaining := make([]models.Reminder, 0, len(session.reminders))
	for _, r := range eligible {
		if _, ok := session.members[r.ID]; ok {
			remaining = append(remaining, r)
		}
	}
	return remaining, nil
}

// refresh re-derives the session from the store. When follow is set and still present the cursor
// tracks it, otherwise the cursor keeps its index clamped to the new length.
func (s *ReminderSessionService) refresh(ctx context.Context, viewer models.Viewer, session *reminderSession, follow string) error {
	remaining, err := s.derive(ctx, viewer, session)
	if err != nil {
		return err
	}
	if len(remaining) == 0 {
		s.closeEmpty(viewer.ID, session)
		return nil
	}

	previousID := ""
	if session.index < len(session.reminders) {
		previousID = session.reminders[session.index].ID
	}
	session.reminders = remaining
	index := indexOf(remaining, follow)
	if follow == "" || index < 0 {
		index = session.index
		if index >= len(remaining) {
			index = len(remaining) - 1
		}
	}
	session.index = index
	if remaining[index].ID == previousID {
		return nil
	}
	if err := s.markCurrent(ctx, viewer, session); err != nil && !errors.Is(err, appErrors.ErrNotFound) {
		return err
	}
	return nil
}

// closeEmpty closes a session with nothing left to show. Caller holds session.mu.
func (s *ReminderSessionService) closeEmpty(viewerID string, session *reminderSession) {
	session.closed = true
	session.reminders = nil
	session.index = 0
	s.dropSession(viewerID, session)
}

// advanceTarget picks the index in remaining the cursor lands on when stepping from old[index].
// If the current reminder is still present it moves one step, staying put at either end.
// Otherwise it takes the first surviving reminder past the current one in the step direction,
// then the nearest survivor behind it, then the old index clamped.
func advanceTarget(old []models.Reminder, index int, remaining []models.Reminder, step int) int {
	if pos := indexOf(remaining, old[index].ID); pos >= 0 {
		target := pos + step
		if target < 0 || target >= len(remaining) {
			return pos
		}
		return target
	}
	for _, dir := range []int{step, -step} {
		for i := index + dir; i >= 0 && i < len(old); i += dir {
			if pos := indexOf(remaining, old[i].ID); pos >= 0 {
				return pos
			}
		}
	}
	if index >= len(remaining) {
		return len(remaining) - 1
	}
	return index
}

func indexOf(reminders []models.Reminder, id string) int {
	for i, r := range reminders {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func (s *ReminderSessionService) markCurrent(ctx context.Context, viewer models.Viewer, session *reminderSession) error {
	current := session.reminders[session.index]
	if err := s.reminders.MarkViewed(ctx, viewer, current.ID); err != nil {
		s.logger.Debug("mark viewed failed", zap.String("reminder_id", current.ID), zap.Error(err))
		return err
	}
	return nil
}

func (s *ReminderSessionService) lookup(viewerID string) *reminderSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[viewerID]
}

func (s *ReminderSessionService) store(viewerID string, session *reminderSession) {
	s.mu.Lock()
	previous := s.sessions[viewerID]
	s.sessions[viewerID] = session
	count := len(s.sessions)
	s.mu.Unlock()
	if previous != nil && previous != session {
		previous.close()
	}
	s.metrics.SetOpenSessions(count)
}

func (s *ReminderSessionService) drop(viewerID string) {
	s.mu.Lock()
	session := s.sessions[viewerID]
	delete(s.sessions, viewerID)
	count := len(s.sessions)
	s.mu.Unlock()
	if session != nil {
		session.close()
	}
	s.metrics.SetOpenSessions(count)
}

// dropSession removes session only if it is still the viewer's current one. Caller holds session.mu.
func (s *ReminderSessionService) dropSession(viewerID string, session *reminderSession) {
	s.mu.Lock()
	if s.sessions[viewerID] == session {
		delete(s.sessions, viewerID)
	}
	count := len(s.sessions)
	s.mu.Unlock()
	s.metrics.SetOpenSessions(count)
}

func (rs *reminderSession) close() {
	rs.mu.Lock()
	rs.closed = true
	rs.mu.Unlock()
}

func (rs *reminderSession) view() *dto.ReminderSessionView {
	if rs.closed || len(rs.reminders) == 0 {
		return &dto.ReminderSessionView{}
	}
	current := rs.reminders[rs.index]
	return &dto.ReminderSessionView{
		Open:    true,
		Index:   rs.index,
		Total:   len(rs.reminders),
		Current: &current,
		HasNext: rs.index < len(rs.reminders)-1,
		HasPrev: rs.index > 0,
	}
}
