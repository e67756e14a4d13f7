package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/cte-skillshub-api/internal/models"
)

// Course enrollment statuses that grant course_students reach.
const (
	CourseEnrollmentActive    = "ACTIVE"
	CourseEnrollmentCompleted = "COMPLETED"
	CourseEnrollmentDropped   = "DROPPED"
)

// MembershipRepository answers reminder audience questions from users and course enrollments.
type MembershipRepository struct {
	db *sqlx.DB
}

// NewMembershipRepository constructs the repository.
func NewMembershipRepository(db *sqlx.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

// IsTargetedStudent reports whether viewerID is an active student listed in targetUserIDs.
func (r *MembershipRepository) IsTargetedStudent(ctx context.Context, viewerID string, targetUserIDs []string) (bool, error) {
	if viewerID == "" || len(targetUserIDs) == 0 {
		return false, nil
	}
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1 AND role = $2 AND active = TRUE AND id = ANY($3))`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, viewerID, string(models.RoleStudent), pq.Array(targetUserIDs)); err != nil {
		return false, fmt.Errorf("check targeted student: %w", err)
	}
	return exists, nil
}

// IsEnrolledInAny reports whether viewerID holds an active enrollment in one of courseIDs.
func (r *MembershipRepository) IsEnrolledInAny(ctx context.Context, viewerID string, courseIDs []string) (bool, error) {
	if viewerID == "" || len(courseIDs) == 0 {
		return false, nil
	}
	const query = `SELECT EXISTS (SELECT 1 FROM course_enrollments WHERE user_id = $1 AND status = $2 AND course_id = ANY($3))`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, viewerID, CourseEnrollmentActive, pq.Array(courseIDs)); err != nil {
		return false, fmt.Errorf("check course enrollment: %w", err)
	}
	return exists, nil
}
