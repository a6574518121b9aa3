// Package dashboard provides a live WebSocket view of a watch session.
//
// The dashboard broadcasts filesystem events, analyses and compile job
// changes to connected WebSocket clients, and serves JSON snapshots of the
// include graph and the job table.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/mschirtzinger/watchtex/internal/job"
	"github.com/mschirtzinger/watchtex/internal/jot"
	"github.com/mschirtzinger/watchtex/internal/tex"
)

// MessageType defines the type of dashboard message
type MessageType string

const (
	// MessageTypeGraph carries a full include graph snapshot
	MessageTypeGraph MessageType = "graph"

	// MessageTypeFileEvent indicates a filesystem event was received
	MessageTypeFileEvent MessageType = "file_event"

	// MessageTypeAnalyzed indicates a saved file was re-analyzed
	MessageTypeAnalyzed MessageType = "analyzed"

	// MessageTypeCompileStarted indicates a compile job was started
	MessageTypeCompileStarted MessageType = "compile_started"

	// MessageTypeCompileSuperseded indicates a running job was killed by a newer one
	MessageTypeCompileSuperseded MessageType = "compile_superseded"

	// MessageTypeCompileFinished indicates a compile job ended
	MessageTypeCompileFinished MessageType = "compile_finished"
)

// Message represents a dashboard broadcast message
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// FileEventData describes one filesystem event
type FileEventData struct {
	Path string `json:"path"`
	Mask string `json:"mask"`
}

// AnalyzedData lists the roots scheduled after a file was saved
type AnalyzedData struct {
	Path  string   `json:"path"`
	Roots []string `json:"roots"`
}

// JobData describes a compile job change
type JobData struct {
	Root    string `json:"root"`
	PID     int    `json:"pid"`
	Outcome string `json:"outcome,omitempty"`
	Success bool   `json:"success,omitempty"`
}

// GraphSource provides include graph snapshots.
type GraphSource interface {
	Snapshot() tex.Snapshot
}

// JobSource provides job table snapshots.
type JobSource interface {
	Jobs() []job.Info
}

// Server manages WebSocket connections and broadcasts dashboard messages
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server

	graph GraphSource
	jobs  JobSource

	// WebSocket client management
	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex

	// Message broadcasting
	broadcast chan Message

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Config holds server configuration
type Config struct {
	// Port to listen on (default: 8390, 0 picks a free port)
	Port int

	// Host to bind (default: all interfaces)
	Host string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Port: 8390,
	}
}

// NewServer creates a new dashboard WebSocket server
func NewServer(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr:      net.JoinHostPort(config.Host, fmt.Sprint(config.Port)),
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Message, 100),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Attach sets the snapshot sources. It must be called before Start.
func (s *Server) Attach(graph GraphSource, jobs JobSource) {
	s.graph = graph
	s.jobs = jobs
}

// Start begins the HTTP server and WebSocket handler
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/graph", s.handleGraph)
	mux.HandleFunc("/api/jobs", s.handleJobs)
	mux.HandleFunc("/", s.handleRoot)

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go s.broadcastLoop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		jot.Info("dashboard listening on http://%s", s.GetAddr())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			jot.Error("dashboard: server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("dashboard shutdown error: %w", err)
	}

	s.wg.Wait()
	jot.Debug("dashboard stopped")
	return nil
}

// Broadcast sends a message to all connected clients. Messages are dropped
// when the queue is full so the watch loop never blocks on slow clients.
func (s *Server) Broadcast(msg Message) {
	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
	default:
		jot.Warn("dashboard: broadcast queue full, dropping %s message", msg.Type)
	}
}

func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case msg := <-s.broadcast:
			if msg.Timestamp.IsZero() {
				msg.Timestamp = time.Now()
			}

			data, err := json.Marshal(msg)
			if err != nil {
				jot.Error("dashboard: failed to marshal message: %v", err)
				continue
			}

			s.clientsMu.RLock()
			clients := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				clients = append(clients, conn)
			}
			s.clientsMu.RUnlock()

			for _, conn := range clients {
				ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()

				if err != nil {
					jot.Debug("dashboard: failed to send to client: %v", err)
					s.removeClient(conn)
				}
			}
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"localhost:*", "127.0.0.1:*"},
	})
	if err != nil {
		jot.Warn("dashboard: websocket upgrade failed: %v", err)
		return
	}

	// The snapshot goes out before the client is registered, so it always
	// precedes the first broadcast the client receives.
	if welcome, ok := s.graphMessage(); ok {
		ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
		err := conn.Write(ctx, websocket.MessageText, welcome)
		cancel()
		if err != nil {
			_ = conn.Close(websocket.StatusInternalError, "")
			return
		}
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	clientCount := len(s.clients)
	s.clientsMu.Unlock()

	jot.Debug("dashboard: client connected (total: %d)", clientCount)

	go s.readLoop(conn)
}

func (s *Server) graphMessage() ([]byte, bool) {
	var snap tex.Snapshot
	if s.graph != nil {
		snap = s.graph.Snapshot()
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, false
	}
	msg, err := json.Marshal(Message{Type: MessageTypeGraph, Timestamp: time.Now(), Data: data})
	if err != nil {
		return nil, false
	}
	return msg, true
}

// readLoop keeps the WebSocket connection alive and handles client disconnects
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)

	for {
		if _, _, err := conn.Read(s.ctx); err != nil {
			return
		}
	}
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	if _, exists := s.clients[conn]; exists {
		delete(s.clients, conn)
		clientCount := len(s.clients)
		s.clientsMu.Unlock()

		_ = conn.Close(websocket.StatusNormalClosure, "")
		jot.Debug("dashboard: client disconnected (total: %d)", clientCount)
	} else {
		s.clientsMu.Unlock()
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":  "ok",
		"clients": s.ClientCount(),
	})
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	if s.graph == nil {
		http.Error(w, "graph not available", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, s.graph.Snapshot())
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if s.jobs == nil {
		http.Error(w, "jobs not available", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, s.jobs.Jobs())
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>WatchTeX</title>
</head>
<body>
    <h1>WatchTeX</h1>
    <p>WebSocket endpoint: <code>ws://%s/ws</code></p>
    <p>Include graph: <a href="/api/graph">/api/graph</a></p>
    <p>Compile jobs: <a href="/api/jobs">/api/jobs</a></p>
    <p>Health check: <a href="/health">/health</a></p>
</body>
</html>`, r.Host)
}

// GetAddr returns the server's listening address
func (s *Server) GetAddr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the current number of connected clients
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}
