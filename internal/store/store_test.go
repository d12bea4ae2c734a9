package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := NewStore(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewStoreRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := NewStore(context.Background(), "")
	require.Error(t, err)
}

func TestRecordAndListEvents(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	s.RecordEvent(ctx, EventEnabled, "expires 2026-09-20")
	s.RecordEvent(ctx, EventAuthFailure, "user bob from 127.0.0.1")
	s.RecordEvent(ctx, EventDisabled, "")

	events, err := s.RecentEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 3)

	// newest first
	assert.Equal(t, EventDisabled, events[0].Kind)
	assert.Equal(t, EventAuthFailure, events[1].Kind)
	assert.Equal(t, EventEnabled, events[2].Kind)

	assert.Equal(t, "user bob from 127.0.0.1", events[1].Detail)
	assert.Greater(t, events[0].ID, events[1].ID)
	assert.NotEmpty(t, events[0].Ts)
}

func TestRecentEventsLimit(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		s.RecordEvent(ctx, EventAuthSuccess, "")
	}

	events, err := s.RecentEvents(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, events, defaultEventLimit)

	events, err = s.RecentEvents(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, events, 5)

	events, err = s.RecentEvents(ctx, maxEventLimit+1000)
	require.NoError(t, err)
	assert.Len(t, events, 60)
}

func TestRecentEventsEmpty(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	events, err := s.RecentEvents(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}
