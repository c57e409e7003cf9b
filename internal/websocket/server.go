package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/yegors/skyview/internal/compositor"
	"github.com/yegors/skyview/pkg/logger"
)

// Message types sent to clients
const (
	MessageTypeFrame      = "frame"
	MessageTypeFeedStatus = "feed_status"
	MessageTypeSession    = "session"
	MessageTypeError      = "error"
)

// Frame encodings
const (
	EncodingJSON    = "json"
	EncodingMsgpack = "msgpack"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// ErrClientClosed is returned when rendering to a disconnected client
var ErrClientClosed = errors.New("websocket client closed")

// Message represents a WebSocket message
type Message struct {
	Type string `json:"type" msgpack:"type"`
	Data any    `json:"data" msgpack:"data"`
}

// SessionHandler binds connections to view sessions. OnConnect runs before
// the pumps start; an error rejects the connection.
type SessionHandler interface {
	OnConnect(client *Client, r *http.Request) error
	HandleMessage(client *Client, data []byte) error
	OnDisconnect(client *Client)
}

// Options configures the server
type Options struct {
	Encoding       string   // json text frames or msgpack binary frames
	AllowedOrigins []string // empty or "*" allows every origin
	SendBuffer     int      // queued messages per client
}

// Client represents a WebSocket client
type Client struct {
	conn      *websocket.Conn
	send      chan *Message
	server    *Server
	mu        sync.Mutex
	closed    bool
	closeChan chan struct{}
	sessionID string
	dropped   uint64
}

// Server is the hub that tracks clients and fans out broadcasts
type Server struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	done       chan struct{}
	upgrader   websocket.Upgrader
	opts       Options
	logger     *logger.Logger
	mu         sync.RWMutex
	handler    SessionHandler
}

// NewServer creates a new WebSocket server
func NewServer(opts Options, log *logger.Logger) *Server {
	if opts.Encoding == "" {
		opts.Encoding = EncodingJSON
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}

	s := &Server{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message),
		done:       make(chan struct{}),
		opts:       opts,
		logger:     log.Named("web-socket"),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	for _, o := range s.opts.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// SetSessionHandler sets the handler that owns client sessions
func (s *Server) SetSessionHandler(handler SessionHandler) {
	s.handler = handler
}

// Run starts the hub and blocks until ctx is done
func (s *Server) Run(ctx context.Context) {
	s.logger.Info("Starting WebSocket server", logger.String("encoding", s.opts.Encoding))
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			for client := range s.clients {
				delete(s.clients, client)
				client.shutdown()
			}
			s.mu.Unlock()
			s.logger.Info("WebSocket server stopped")
			return

		case client := <-s.register:
			s.mu.Lock()
			s.clients[client] = true
			clientCount := len(s.clients)
			s.mu.Unlock()
			s.logger.Debug("Client registered", logger.Int("client_count", clientCount))

		case client := <-s.unregister:
			s.mu.Lock()
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				client.shutdown()
			}
			clientCount := len(s.clients)
			s.mu.Unlock()
			s.logger.Debug("Client unregistered", logger.Int("client_count", clientCount))

		case message := <-s.broadcast:
			s.mu.RLock()
			slow := make([]*Client, 0)
			for client := range s.clients {
				if !client.enqueue(message) {
					slow = append(slow, client)
				}
			}
			s.mu.RUnlock()

			if len(slow) > 0 {
				s.mu.Lock()
				for _, client := range slow {
					if _, ok := s.clients[client]; ok {
						delete(s.clients, client)
						client.shutdown()
					}
				}
				s.mu.Unlock()
				s.logger.Warn("Dropped slow clients", logger.Int("count", len(slow)))
			}
		}
	}
}

// ClientCount returns the number of registered clients
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// HandleConnection upgrades the request and starts the client pumps
func (s *Server) HandleConnection(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug("Handling new WebSocket connection request",
		logger.String("remote_addr", r.RemoteAddr),
		logger.String("user_agent", r.UserAgent()))

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection",
			logger.Error(err),
			logger.String("remote_addr", r.RemoteAddr))
		return
	}

	client := &Client{
		conn:      conn,
		send:      make(chan *Message, s.opts.SendBuffer),
		server:    s,
		closeChan: make(chan struct{}),
	}

	select {
	case s.register <- client:
	case <-s.done:
		conn.Close()
		return
	}

	go client.writePump()

	if s.handler != nil {
		if err := s.handler.OnConnect(client, r); err != nil {
			s.logger.Warn("Rejected WebSocket session", logger.Error(err))
			client.SendMessage(&Message{Type: MessageTypeError, Data: map[string]string{"error": err.Error()}})
			s.drop(client)
			return
		}
	}

	go client.readPump()
}

// Broadcast sends a message to all connected clients
func (s *Server) Broadcast(message *Message) {
	select {
	case s.broadcast <- message:
	case <-s.done:
	}
}

func (s *Server) drop(c *Client) {
	select {
	case s.unregister <- c:
	case <-s.done:
		c.shutdown()
	}
}

// readPump pumps messages from the WebSocket connection to the handler
func (c *Client) readPump() {
	defer func() {
		if c.server.handler != nil {
			c.server.handler.OnDisconnect(c)
		}
		c.server.drop(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.server.logger.Warn("WebSocket read error", logger.Error(err))
			}
			return
		}

		if c.server.handler == nil {
			continue
		}
		if err := c.server.handler.HandleMessage(c, data); err != nil {
			c.server.logger.Debug("Rejected WebSocket message",
				logger.String("session_id", c.SessionID()),
				logger.Error(err))
			c.SendMessage(&Message{Type: MessageTypeError, Data: map[string]string{"error": err.Error()}})
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	var buf bytes.Buffer
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			buf.Reset()
			kind, err := c.server.encode(&buf, message)
			if err != nil {
				c.server.logger.Error("Failed to encode message",
					logger.String("message_type", message.Type),
					logger.Error(err))
				continue
			}
			if err := c.conn.WriteMessage(kind, buf.Bytes()); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.closeChan:
			return
		}
	}
}

// encode writes message in the configured encoding and returns the
// websocket frame type to send it as
func (s *Server) encode(buf *bytes.Buffer, message *Message) (int, error) {
	if s.opts.Encoding == EncodingMsgpack {
		enc := msgpack.NewEncoder(buf)
		// types without msgpack tags fall back to their json names
		enc.SetCustomStructTag("json")
		return websocket.BinaryMessage, enc.Encode(message)
	}
	return websocket.TextMessage, json.NewEncoder(buf).Encode(message)
}

// enqueue hands a message to the write pump; false means the buffer was full
func (c *Client) enqueue(message *Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

// shutdown closes the send channel so the write pump says goodbye
func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Close closes the client connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.closeChan:
	default:
		close(c.closeChan)
	}
	c.conn.Close()
}

// SendMessage sends a message to this client, dropping it when the buffer
// is full. It reports whether the message was queued.
func (c *Client) SendMessage(message *Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- message:
		return true
	default:
		c.dropped++
		return false
	}
}

// Render queues a frame, implementing compositor.Renderer. A slow client
// skips frames; a closed one ends its session.
func (c *Client) Render(frame *compositor.Frame) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClientClosed
	}
	select {
	case <-c.closeChan:
		return ErrClientClosed
	default:
	}
	c.SendMessage(&Message{Type: MessageTypeFrame, Data: frame})
	return nil
}

// SessionID returns the view session bound to this client
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// SetSessionID binds the client to a view session
func (c *Client) SetSessionID(id string) {
	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()
}

// Dropped returns how many messages were skipped because the client was slow
func (c *Client) Dropped() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}
