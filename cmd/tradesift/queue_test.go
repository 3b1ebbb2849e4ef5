package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sievefin/tradesift/internal/common"
	"github.com/sievefin/tradesift/internal/queue"
)

func TestFriendlyQueueError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "item not found",
			err:  fmt.Errorf("%w: abc123", queue.ErrItemNotFound),
			want: "no queue item with that id (see 'tradesift queue list')",
		},
		{
			name: "not pending",
			err:  queue.ErrNotPending,
			want: "item is already claimed or decided",
		},
		{
			name: "not in review",
			err:  queue.ErrNotInReview,
			want: "item is not currently claimed",
		},
		{
			name: "not reviewable",
			err:  queue.ErrNotReviewable,
			want: "item has already been decided",
		},
		{
			name: "invalid action",
			err:  queue.ErrInvalidAction,
			want: "unknown review action (use approve, reject, escalate, defer, merge, or split)",
		},
		{
			name: "bad reviewer id",
			err:  queue.ErrBadReviewerID,
			want: "reviewer id is missing or reserved",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := friendlyQueueError(tt.err)

			var userErr *common.UserError
			require.ErrorAs(t, got, &userErr)
			assert.Equal(t, tt.want, userErr.UserMessage)
			// The original sentinel survives for errors.Is checks.
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestFriendlyQueueErrorPassesThrough(t *testing.T) {
	assert.NoError(t, friendlyQueueError(nil))

	plain := errors.New("snapshot unreadable")
	assert.Equal(t, plain, friendlyQueueError(plain))
}
