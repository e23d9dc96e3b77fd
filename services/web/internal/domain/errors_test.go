package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindNone},
		{"validation", &ValidationError{Fields: map[string]string{"rating": "is required"}}, KindValidation},
		{"conflict", &ConflictError{}, KindConflict},
		{"auth", &AuthError{Err: ErrNoCredential}, KindAuth},
		{"forbidden", &ForbiddenError{Message: "not the author"}, KindForbidden},
		{"not found", &NotFoundError{Resource: "review", ID: 3}, KindNotFound},
		{"transient", &TransientError{Err: context.DeadlineExceeded}, KindTransient},
		{"wrapped", fmt.Errorf("create review: %w", &ConflictError{}), KindConflict},
		{"other", errors.New("boom"), KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestAuthError_UnwrapsCause(t *testing.T) {
	err := fmt.Errorf("fetch: %w", &AuthError{Err: ErrNoCredential})

	assert.ErrorIs(t, err, ErrAuth)
	assert.ErrorIs(t, err, ErrNoCredential)
	assert.NotErrorIs(t, err, ErrTransient)
}

func TestForbiddenError_IsNotAuth(t *testing.T) {
	err := fmt.Errorf("update: %w", &ForbiddenError{Message: "not the author"})

	assert.ErrorIs(t, err, ErrForbidden)
	assert.NotErrorIs(t, err, ErrAuth)
	assert.Equal(t, "update: not permitted: not the author", err.Error())
}

func TestValidationError_MessageListsFieldsInOrder(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{
		"rating":  "is required",
		"content": "is required",
	}}

	assert.Equal(t, "validation failed: content is required; rating is required", err.Error())
	assert.Equal(t, "rating must be set", (&ValidationError{Message: "rating must be set"}).Error())
}

func TestTransientError_KeepsCause(t *testing.T) {
	err := &TransientError{Status: 503, Err: errors.New("upstream down")}

	assert.ErrorIs(t, err, ErrTransient)
	assert.Contains(t, err.Error(), "status 503")
}

func TestSummarize(t *testing.T) {
	reviews := []Review{{Rating: 4}, {Rating: 3.5}, {Rating: 4}}

	s := Summarize(reviews)
	assert.Equal(t, 4.0, s.AverageRating)
	assert.Equal(t, 3, s.TotalCount)

	assert.Zero(t, Summarize(nil).AverageRating)
}

func TestIsAdmin(t *testing.T) {
	assert.True(t, IsAdmin([]string{RoleUser, RoleAdmin}))
	assert.True(t, IsAdmin([]string{RoleSuperAdmin}))
	assert.False(t, IsAdmin([]string{RoleUser}))
	assert.False(t, IsAdmin(nil))
}
