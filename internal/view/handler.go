package view

import (
	"errors"
	"net/http"
	"regexp"

	"github.com/yegors/skyview/internal/websocket"
	"github.com/yegors/skyview/pkg/logger"
)

var sessionName = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

var errInvalidName = errors.New("session name must be 1-64 letters, digits, '.', '_' or '-'")

// SocketHandler opens a view session per WebSocket client and routes its
// messages into the session's input queue
type SocketHandler struct {
	views  *Manager
	logger *logger.Logger
}

// NewSocketHandler creates the WebSocket session handler
func NewSocketHandler(views *Manager, log *logger.Logger) *SocketHandler {
	return &SocketHandler{views: views, logger: log.Named("ws-views")}
}

// OnConnect opens a session; ?session=<name> restores saved state
func (h *SocketHandler) OnConnect(client *websocket.Client, r *http.Request) error {
	name := r.URL.Query().Get("session")
	if name != "" && !sessionName.MatchString(name) {
		return errInvalidName
	}

	s, err := h.views.Create(r.Context(), name, client)
	if err != nil {
		return err
	}
	client.SetSessionID(s.ID())
	client.SendMessage(&websocket.Message{Type: websocket.MessageTypeSession, Data: s.Snapshot()})
	h.views.Start(s)

	// a session ended by its renderer takes the connection with it
	go func() {
		<-s.Done()
		client.Close()
	}()
	return nil
}

// HandleMessage decodes one input message and queues it
func (h *SocketHandler) HandleMessage(client *websocket.Client, data []byte) error {
	s, ok := h.views.Get(client.SessionID())
	if !ok {
		return ErrNotFound
	}
	ev, err := DecodeEvent(data)
	if err != nil {
		return err
	}
	s.Submit(ev)
	return nil
}

// OnDisconnect closes the client's session
func (h *SocketHandler) OnDisconnect(client *websocket.Client) {
	id := client.SessionID()
	if id == "" {
		return
	}
	if err := h.views.Close(id); err != nil && !errors.Is(err, ErrNotFound) {
		h.logger.Warn("Failed to close session", logger.String("session_id", id), logger.Error(err))
	}
}
