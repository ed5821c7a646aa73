// Package monitor exposes a read-only websocket feed of Framer state —
// connected libraries, gateway session and connection counts — for
// operators.
// A client registry, a broadcast channel, and per-client write pumps
// with ping/pong keepalive, but with the read side removed since this
// feed is push-only and never accepts client commands.
package monitor

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/luxfi/log"
)

// Snapshot is the periodic state broadcast to every connected admin
// client.
type Snapshot struct {
	TimestampMs   int64            `json:"timestamp_ms"`
	Leader        bool             `json:"leader"`
	Libraries     []LibraryView    `json:"libraries"`
	SessionCount  int              `json:"gateway_session_count"`
	ConnectionCount int            `json:"connection_count"`
}

type LibraryView struct {
	LibraryID       int32   `json:"library_id"`
	OwnedSessions   int     `json:"owned_sessions"`
	OwnedConnections int    `json:"owned_connections"`
	LastHeartbeatMs int64   `json:"last_heartbeat_ms"`
}

// SnapshotSource is polled once per broadcast tick to build a Snapshot,
// implemented by cmd/fixgateway against the live Framer.
type SnapshotSource interface {
	Snapshot() Snapshot
}

// Server is the websocket monitoring endpoint.
type Server struct {
	source   SnapshotSource
	logger   log.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}

	interval time.Duration
	stop     chan struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func New(source SnapshotSource, logger log.Logger) *Server {
	return &Server{
		source: source,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		clients:  make(map[*client]struct{}),
		interval: time.Second,
		stop:     make(chan struct{}),
	}
}

// ServeHTTP upgrades the request to a websocket and registers the
// client for broadcast snapshots.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 16)}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	go s.writePump(c)
	go s.discardReads(c)
}

// writePump drains c.send to the socket, sending pings when idle on a
// 54s/60s cadence.
func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		s.removeClient(c)
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// discardReads keeps the read side pumping so the connection notices a
// client-initiated close; this feed accepts no inbound commands.
func (s *Server) discardReads(c *client) {
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
}

// Run periodically polls the SnapshotSource and broadcasts to every
// connected client until stopped.
func (s *Server) Run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.broadcast()
		case <-s.stop:
			return
		}
	}
}

func (s *Server) broadcast() {
	data, err := json.Marshal(s.source.Snapshot())
	if err != nil {
		s.logger.Error("failed to marshal monitor snapshot", "error", err)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			// slow client, drop this tick's snapshot
		}
	}
}

func (s *Server) Stop() { close(s.stop) }
