package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNotFoundError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"generic error", errors.New("some error"), false},
		{"ErrNotFound", ErrNotFound, true},
		{"ErrTaskNotFound", ErrTaskNotFound, true},
		{"wrapped ErrTaskNotFound", fmt.Errorf("load parent: %w", ErrTaskNotFound), true},
		{"ErrNotificationNotFound", ErrNotificationNotFound, true},
		{"ErrUserNotFound", ErrUserNotFound, true},
		{"ErrTeamNotFound", ErrTeamNotFound, true},
		{"store error wrapping not found", NewStoreError("task", "get", "missing", ErrTaskNotFound), true},
		{"ErrDuplicate", ErrDuplicate, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsNotFoundError(tt.err))
		})
	}
}

func TestIsDuplicateAndTransient(t *testing.T) {
	assert.True(t, IsDuplicateError(fmt.Errorf("insert: %w", ErrDuplicate)))
	assert.False(t, IsDuplicateError(ErrNotFound))

	assert.True(t, IsTransientError(NewStoreError("task", "update", "conflict", ErrTransient)))
	assert.False(t, IsTransientError(ErrInvalidEntity))
}

func TestStoreError(t *testing.T) {
	inner := errors.New("connection reset")
	err := NewStoreError("task", "update", "failed to update task", inner)

	assert.Equal(t, "update operation on task failed: failed to update task: connection reset", err.Error())
	assert.ErrorIs(t, err, inner)

	var storeErr *StoreError
	assert.True(t, errors.As(fmt.Errorf("wrapped: %w", err), &storeErr))
	assert.Equal(t, "task", storeErr.Entity)

	bare := NewStoreError("notification", "create", "invalid", nil)
	assert.Equal(t, "create operation on notification failed: invalid", bare.Error())
	assert.Nil(t, bare.Unwrap())
}

func TestTaskQueryNormalize(t *testing.T) {
	q := TaskQuery{}.Normalize()
	assert.Equal(t, SortByCreatedAt, q.SortBy)
	assert.Equal(t, SortDesc, q.Order)

	q = TaskQuery{SortBy: SortByCreator, Order: SortAsc}.Normalize()
	assert.Equal(t, SortByCreator, q.SortBy)
	assert.Equal(t, SortAsc, q.Order)

	q = TaskQuery{SortBy: "title", Order: "sideways"}.Normalize()
	assert.Equal(t, SortByCreatedAt, q.SortBy)
	assert.Equal(t, SortDesc, q.Order)
}
