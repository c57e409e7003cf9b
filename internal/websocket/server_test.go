package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/yegors/skyview/internal/compositor"
	"github.com/yegors/skyview/pkg/logger"
)

type recordingHandler struct {
	mu           sync.Mutex
	client       *Client
	messages     []string
	disconnected chan struct{}
	reject       error
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{disconnected: make(chan struct{})}
}

func (h *recordingHandler) OnConnect(c *Client, r *http.Request) error {
	if h.reject != nil {
		return h.reject
	}
	h.mu.Lock()
	h.client = c
	h.mu.Unlock()
	c.SetSessionID(r.URL.Query().Get("session"))
	return nil
}

func (h *recordingHandler) HandleMessage(c *Client, data []byte) error {
	if string(data) == "bad" {
		return errors.New("bad input")
	}
	h.mu.Lock()
	h.messages = append(h.messages, string(data))
	h.mu.Unlock()
	return nil
}

func (h *recordingHandler) OnDisconnect(*Client) { close(h.disconnected) }

func (h *recordingHandler) received() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.messages...)
}

func (h *recordingHandler) current() *Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.client
}

func startServer(t *testing.T, opts Options, h SessionHandler) (*Server, string) {
	t.Helper()
	s := NewServer(opts, logger.NewNop())
	if h != nil {
		s.SetSessionHandler(h)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	srv := httptest.NewServer(http.HandlerFunc(s.HandleConnection))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return s, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestServerRoutesMessagesAndBroadcasts(t *testing.T) {
	h := newRecordingHandler()
	s, url := startServer(t, Options{}, h)

	conn, _, err := websocket.DefaultDialer.Dial(url+"?session=s1", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return s.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "s1", h.current().SessionID())

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("bad")))

	var msg struct {
		Type string            `json:"type"`
		Data map[string]string `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MessageTypeError, msg.Type)
	assert.Equal(t, "bad input", msg.Data["error"])
	assert.Equal(t, []string{"hello"}, h.received())

	s.Broadcast(&Message{Type: MessageTypeFeedStatus, Data: map[string]string{"source": "adsb"}})
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MessageTypeFeedStatus, msg.Type)
	assert.Equal(t, "adsb", msg.Data["source"])

	require.NoError(t, conn.Close())
	select {
	case <-h.disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("OnDisconnect not called")
	}
	require.Eventually(t, func() bool { return s.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, h.current().Render(&compositor.Frame{}), ErrClientClosed)
}

func TestServerMsgpackFrames(t *testing.T) {
	h := newRecordingHandler()
	_, url := startServer(t, Options{Encoding: EncodingMsgpack}, h)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return h.current() != nil }, time.Second, 5*time.Millisecond)

	require.NoError(t, h.current().Render(&compositor.Frame{Seq: 7, Width: 640}))

	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, kind)

	var msg struct {
		Type string         `msgpack:"type"`
		Data map[string]any `msgpack:"data"`
	}
	require.NoError(t, msgpack.Unmarshal(data, &msg))
	assert.Equal(t, MessageTypeFrame, msg.Type)
	assert.EqualValues(t, 7, msg.Data["seq"])
	assert.EqualValues(t, 640, msg.Data["width"])
}

func TestServerRejectsSession(t *testing.T) {
	h := newRecordingHandler()
	h.reject = errors.New("no such session")
	s, url := startServer(t, Options{}, h)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var msg struct {
		Type string            `json:"type"`
		Data map[string]string `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MessageTypeError, msg.Type)
	assert.Equal(t, "no such session", msg.Data["error"])

	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
	require.Eventually(t, func() bool { return s.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestServerChecksOrigin(t *testing.T) {
	_, url := startServer(t, Options{AllowedOrigins: []string{"https://map.example"}}, nil)

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "https://map.example")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	conn.Close()
}
