package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yegors/skyview/internal/view"
	"github.com/yegors/skyview/pkg/logger"
)

func newTestStorage(t *testing.T) *SessionStorage {
	t.Helper()
	s, err := NewSessionStorage(filepath.Join(t.TempDir(), "skyview.db"), logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessionStorageRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	_, ok, err := s.LoadSession(ctx, "desk")
	require.NoError(t, err)
	assert.False(t, ok)

	when := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	st := view.SavedState{
		Zoom: 9.5, CenterLat: 33.6, CenterLon: -117.9,
		ActiveAirlines: []string{"AAL", "UAL"},
		ShowPlanes:     true, ShowAirports: true,
		UpdatedAt: when,
	}
	require.NoError(t, s.SaveSession(ctx, "desk", st))

	got, ok, err := s.LoadSession(ctx, "desk")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 9.5, got.Zoom)
	assert.Equal(t, []string{"AAL", "UAL"}, got.ActiveAirlines)
	assert.True(t, got.ShowPlanes)
	assert.True(t, got.ShowAirports)
	assert.False(t, got.ShowWeather)
	assert.True(t, when.Equal(got.UpdatedAt))

	// saving again overwrites
	st.Zoom = 4
	st.ActiveAirlines = nil
	st.StrongWeather = true
	require.NoError(t, s.SaveSession(ctx, "desk", st))
	got, _, err = s.LoadSession(ctx, "desk")
	require.NoError(t, err)
	assert.Equal(t, 4.0, got.Zoom)
	assert.Empty(t, got.ActiveAirlines)
	assert.True(t, got.StrongWeather)
}

func TestSessionStorageListAndDelete(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveSession(ctx, "old", view.SavedState{Zoom: 5, UpdatedAt: base}))
	require.NoError(t, s.SaveSession(ctx, "new", view.SavedState{Zoom: 6, UpdatedAt: base.Add(time.Hour)}))

	names, err := s.ListSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "old"}, names)

	found, err := s.DeleteSession(ctx, "old")
	require.NoError(t, err)
	assert.True(t, found)
	found, err = s.DeleteSession(ctx, "old")
	require.NoError(t, err)
	assert.False(t, found)

	names, err = s.ListSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, names)
}

func TestSessionStoragePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skyview.db")
	s, err := NewSessionStorage(path, logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.SaveSession(context.Background(), "wall", view.SavedState{Zoom: 11, ShowWeather: true}))
	require.NoError(t, s.Close())

	s, err = NewSessionStorage(path, logger.NewNop())
	require.NoError(t, err)
	defer s.Close()
	got, ok, err := s.LoadSession(context.Background(), "wall")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.ShowWeather)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestSessionStorageRejectsBadPath(t *testing.T) {
	_, err := NewSessionStorage(filepath.Join(t.TempDir(), "missing", "dir", "x.db"), logger.NewNop())
	assert.Error(t, err)
}

var _ view.StateStore = (*SessionStorage)(nil)
