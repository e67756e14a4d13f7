package repository

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/cte-skillshub-api/internal/models"
)

// MemoryUserStore holds accounts and active course enrollments for the in-memory deployment mode.
// It also resolves audience membership the way MembershipRepository does against Postgres.
type MemoryUserStore struct {
	mu          sync.RWMutex
	byID        map[string]*models.User
	byEmail     map[string]string
	enrollments map[string]map[string]struct{}
}

// NewMemoryUserStore creates a store seeded with users.
func NewMemoryUserStore(users ...models.User) *MemoryUserStore {
	s := &MemoryUserStore{
		byID:        make(map[string]*models.User),
		byEmail:     make(map[string]string),
		enrollments: make(map[string]map[string]struct{}),
	}
	for i := range users {
		s.Add(users[i])
	}
	return s
}

// Add inserts or replaces a user.
func (s *MemoryUserStore) Add(user models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if previous, ok := s.byID[user.ID]; ok {
		delete(s.byEmail, strings.ToLower(previous.Email))
	}
	s.byID[user.ID] = &user
	s.byEmail[strings.ToLower(user.Email)] = user.ID
}

// Enroll records an active enrollment of userID in each course.
func (s *MemoryUserStore) Enroll(userID string, courseIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	courses, ok := s.enrollments[userID]
	if !ok {
		courses = make(map[string]struct{}, len(courseIDs))
		s.enrollments[userID] = courses
	}
	for _, id := range courseIDs {
		courses[id] = struct{}{}
	}
}

// IsTargetedStudent reports whether viewerID is an active student listed in targetUserIDs.
func (s *MemoryUserStore) IsTargetedStudent(ctx context.Context, viewerID string, targetUserIDs []string) (bool, error) {
	if viewerID == "" || len(targetUserIDs) == 0 {
		return false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[viewerID]
	if !ok || u.Role != models.RoleStudent || !u.Active {
		return false, nil
	}
	for _, id := range targetUserIDs {
		if id == viewerID {
			return true, nil
		}
	}
	return false, nil
}

// IsEnrolledInAny reports whether viewerID holds an active enrollment in one of courseIDs.
func (s *MemoryUserStore) IsEnrolledInAny(ctx context.Context, viewerID string, courseIDs []string) (bool, error) {
	if viewerID == "" || len(courseIDs) == 0 {
		return false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	courses := s.enrollments[viewerID]
	for _, id := range courseIDs {
		if _, ok := courses[id]; ok {
			return true, nil
		}
	}
	return false, nil
}

// FindByEmail returns a user by email address, case-insensitively.
func (s *MemoryUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	user := *s.byID[id]
	return &user, nil
}

// FindByID returns a user by identifier.
func (s *MemoryUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	user := *u
	return &user, nil
}

// UpdateLastLogin records the login time.
func (s *MemoryUserStore) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.LastLogin = &ts
	u.UpdatedAt = ts
	return nil
}
