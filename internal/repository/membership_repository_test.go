package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMembershipIsTargetedStudent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMembershipRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1 AND role = $2 AND active = TRUE AND id = ANY($3)")).
		WithArgs("u-s", "STUDENT", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.IsTargetedStudent(context.Background(), "u-s", []string{"u-s", "u-t"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMembershipEmptyTargetsSkipQuery(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMembershipRepository(db)

	ok, err := repo.IsTargetedStudent(context.Background(), "u-s", nil)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = repo.IsEnrolledInAny(context.Background(), "", []string{"c1"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMembershipIsEnrolledInAnyError(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMembershipRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM course_enrollments WHERE user_id = $1 AND status = $2")).
		WithArgs("u-s", CourseEnrollmentActive, sqlmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	ok, err := repo.IsEnrolledInAny(context.Background(), "u-s", []string{"c1"})
	require.Error(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
