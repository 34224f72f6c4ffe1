package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/fortresslogs/ctfround/internal/report"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 64
)

// Message types exchanged on the feed.
const (
	MessageRoundReport = "round_report"
	MessageFilter      = "filter"
	MessageError       = "error"
)

// WSMessage is the envelope of every feed message.
type WSMessage struct {
	Type    string          `json:"type"`
	MapName string          `json:"map_name,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

type outbound struct {
	mapName string
	payload []byte
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	addr string

	// mapFilter restricts the feed to one map; owned by the hub goroutine.
	mapFilter string
}

type clientRequest struct {
	client *client
	msg    WSMessage
	valid  bool
}

// Hub pushes finished round reports to websocket clients.
type Hub struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader

	clients    map[*client]bool
	broadcast  chan outbound
	register   chan *client
	unregister chan *client
	requests   chan clientRequest
	done       chan struct{}
}

// NewHub creates a hub. An empty allowedOrigins list accepts every origin.
func NewHub(allowedOrigins []string, logger *zap.Logger) *Hub {
	h := &Hub{
		logger:     logger,
		clients:    make(map[*client]bool),
		broadcast:  make(chan outbound, sendBufferSize),
		register:   make(chan *client),
		unregister: make(chan *client),
		requests:   make(chan clientRequest),
		done:       make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin: originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

// Run serves the hub until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			return

		case c := <-h.register:
			h.clients[c] = true
			h.logDebug("feed client registered", c)

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.logDebug("feed client unregistered", c)
			}

		case req := <-h.requests:
			if _, ok := h.clients[req.client]; ok {
				h.handleRequest(req)
			}

		case msg := <-h.broadcast:
			for c := range h.clients {
				if c.mapFilter != "" && !strings.EqualFold(c.mapFilter, msg.mapName) {
					continue
				}
				select {
				case c.send <- msg.payload:
				default:
					// slow consumer
					close(c.send)
					delete(h.clients, c)
					h.logDebug("dropped slow feed client", c)
				}
			}
		}
	}
}

// Publish queues a report for every connected client. It matches the analysis
// bus listener signature.
func (h *Hub) Publish(ctx context.Context, r *report.Report) error {
	data, err := r.MarshalProtoJSON()
	if err != nil {
		return err
	}
	payload, err := json.Marshal(WSMessage{
		Type:    MessageRoundReport,
		MapName: r.MapName,
		Data:    data,
	})
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- outbound{mapName: r.MapName, payload: payload}:
		return nil
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ServeHTTP upgrades the request to a websocket feed connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if h.logger != nil {
			h.logger.Warn("websocket upgrade failed", zap.Error(err))
		}
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		addr: r.RemoteAddr,
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump(h)
}

func (h *Hub) logDebug(msg string, c *client) {
	if h.logger != nil {
		h.logger.Debug(msg, zap.String("remote", c.addr), zap.Int("clients", len(h.clients)))
	}
}

func (c *client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var msg WSMessage
		err = json.Unmarshal(message, &msg)
		req := clientRequest{client: c, msg: msg, valid: err == nil}

		select {
		case h.requests <- req:
		case <-h.done:
			return
		}
	}
}

// handleRequest applies a client message. It runs on the hub goroutine.
func (h *Hub) handleRequest(req clientRequest) {
	c := req.client
	var reply WSMessage
	if req.valid && req.msg.Type == MessageFilter {
		c.mapFilter = req.msg.MapName
		reply = WSMessage{Type: MessageFilter, MapName: c.mapFilter}
	} else {
		reply = WSMessage{Type: MessageError, Error: "unsupported message"}
	}

	payload, err := json.Marshal(reply)
	if err != nil {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
