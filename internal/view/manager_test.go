package view

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yegors/skyview/internal/compositor"
	"github.com/yegors/skyview/internal/input"
	"github.com/yegors/skyview/internal/websocket"
	"github.com/yegors/skyview/pkg/logger"
)

func TestManagerRestoresAndSavesNamedSessions(t *testing.T) {
	states := &memoryStates{states: map[string]SavedState{
		"desk": {Zoom: 8, CenterLat: 34.05, CenterLon: -118.24, ShowPlanes: true, ShowWeather: true},
	}}
	m := NewManager(newStore(t), testOptions(), states, logger.NewNop())

	var counts []int
	m.OnCount(func(n int) { counts = append(counts, n) })
	var frames atomic.Int32
	m.OnFrame(func(*compositor.Frame) { frames.Add(1) })

	s, err := m.Open(context.Background(), "desk", &compositor.RecordingRenderer{})
	require.NoError(t, err)
	assert.Equal(t, 8.0, s.Snapshot().Camera.Zoom)
	assert.True(t, s.Snapshot().Filter.ShowWeather)

	anon, err := m.Open(context.Background(), "", &compositor.RecordingRenderer{})
	require.NoError(t, err)
	assert.NotEqual(t, s.ID(), anon.ID())
	assert.Equal(t, 2, m.Len())

	got, ok := m.Get(s.ID())
	require.True(t, ok)
	assert.Same(t, s, got)

	s.Submit(input.Event{Type: input.EventButton, Key: input.ButtonAirports})
	require.Eventually(t, func() bool { return s.Snapshot().Filter.ShowAirports }, 2*time.Second, 5*time.Millisecond)
	assert.Positive(t, frames.Load())

	snaps := m.Snapshots()
	require.Len(t, snaps, 2)
	assert.Equal(t, s.ID(), snaps[0].ID)

	require.NoError(t, m.Close(s.ID()))
	saved, ok := states.get("desk")
	require.True(t, ok)
	assert.Equal(t, 8.0, saved.Zoom)
	assert.True(t, saved.ShowAirports)
	assert.False(t, saved.UpdatedAt.IsZero())
	assert.ErrorIs(t, m.Close(s.ID()), ErrNotFound)

	m.Stop()
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, []int{1, 2, 1, 0}, counts)
	_, ok = states.get("")
	assert.False(t, ok)

	_, err = m.Open(context.Background(), "", &compositor.RecordingRenderer{})
	assert.Error(t, err)
}

func TestManagerForgetsSessionEndedByRenderer(t *testing.T) {
	states := &memoryStates{states: map[string]SavedState{}, loadErr: errors.New("disk on fire")}
	m := NewManager(newStore(t), testOptions(), states, logger.NewNop())
	defer m.Stop()

	s, err := m.Open(context.Background(), "kiosk", &compositor.RecordingRenderer{Err: errors.New("closed")})
	require.NoError(t, err)
	assert.Equal(t, 13.0, s.Snapshot().Camera.Zoom)

	require.Eventually(t, func() bool { return m.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
	_, ok := states.get("kiosk")
	assert.True(t, ok)
}

func TestSocketHandlerEndToEnd(t *testing.T) {
	states := &memoryStates{states: map[string]SavedState{}}
	views := NewManager(newStore(t), testOptions(), states, logger.NewNop())
	defer views.Stop()

	ws := websocket.NewServer(websocket.Options{}, logger.NewNop())
	ws.SetSessionHandler(NewSocketHandler(views, logger.NewNop()))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ws.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(ws.HandleConnection))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?session=desk"

	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	var hello struct {
		Type string   `json:"type"`
		Data Snapshot `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, websocket.MessageTypeSession, hello.Type)
	assert.Equal(t, "desk", hello.Data.Name)
	require.Equal(t, 1, views.Len())

	require.NoError(t, conn.WriteMessage(gorilla.TextMessage, []byte(`{"type":"button","data":{"key":"weather"}}`)))
	require.NoError(t, conn.WriteMessage(gorilla.TextMessage, []byte(`{"type":"resize","data":{"width":-1,"height":10}}`)))

	sawError, sawWeather := false, false
	deadline := time.Now().Add(3 * time.Second)
	for (!sawError || !sawWeather) && time.Now().Before(deadline) {
		var msg struct {
			Type string         `json:"type"`
			Data map[string]any `json:"data"`
		}
		require.NoError(t, conn.ReadJSON(&msg))
		switch msg.Type {
		case websocket.MessageTypeError:
			sawError = true
			assert.Contains(t, msg.Data["error"], "resize")
		case websocket.MessageTypeFrame:
			overlay, _ := msg.Data["overlay"].(map[string]any)
			if overlay["weather"] == true {
				sawWeather = true
			}
		}
	}
	assert.True(t, sawError)
	assert.True(t, sawWeather)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return views.Len() == 0 }, 3*time.Second, 10*time.Millisecond)
	saved, ok := states.get("desk")
	require.True(t, ok)
	assert.True(t, saved.ShowWeather)

	bad, resp, err := gorilla.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws?session=bad%20name", nil)
	require.NoError(t, err)
	defer bad.Close()
	defer resp.Body.Close()
	var rejected struct {
		Type string `json:"type"`
	}
	require.NoError(t, bad.ReadJSON(&rejected))
	assert.Equal(t, websocket.MessageTypeError, rejected.Type)
	assert.Equal(t, 0, views.Len())
}
