// Package dashboard is the optional live-metrics websocket feed
// (§6's enumerated component list): it broadcasts the Controller's
// periodic metrics snapshot to any connected browser, adapted from
// the teacher's hub-of-connections pattern.
package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/grishkovelli/asc/internal/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Snapshot is one broadcast payload: the same counters the
// Controller's metrics loop logs.
type Snapshot struct {
	ActiveWorkers  int64  `json:"activeWorkers"`
	PendingJobs    int64  `json:"pendingJobs"`
	Processing     int64  `json:"processing"`
	StatsCompleted string `json:"statsCompleted"`
	StatsFailed    string `json:"statsFailed"`
}

// Hub fans a stream of Snapshots out to every connected websocket
// client.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	log     *logging.Logger
}

// NewHub returns an empty Hub.
func NewHub(log *logging.Logger) *Hub {
	return &Hub{clients: make(map[*websocket.Conn]bool), log: log}
}

// Handler upgrades an HTTP request to a websocket connection and
// registers it as a broadcast recipient.
func (h *Hub) Handler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("dashboard: websocket upgrade failed", "error", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	go h.readLoop(conn)
}

// readLoop drains and discards inbound frames so the connection
// notices a client-initiated close; the feed is one-directional.
func (h *Hub) readLoop(conn *websocket.Conn) {
	defer h.remove(conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, conn)
	_ = conn.Close()
}

// Broadcast implements controller.Broadcaster: it assembles a
// Snapshot and fans it out to every connected client as JSON,
// dropping and closing any connection whose write fails.
func (h *Hub) Broadcast(activeWorkers, pendingJobs, processing int64, statsCompleted, statsFailed string) {
	h.broadcastSnapshot(Snapshot{
		ActiveWorkers:  activeWorkers,
		PendingJobs:    pendingJobs,
		Processing:     processing,
		StatsCompleted: statsCompleted,
		StatsFailed:    statsFailed,
	})
}

func (h *Hub) broadcastSnapshot(snapshot Snapshot) {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		h.log.Error("dashboard: failed to serialize snapshot", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			_ = conn.Close()
			delete(h.clients, conn)
		}
	}
}

// Run starts an HTTP server exposing the websocket endpoint at /ws
// and blocks until ctx is cancelled.
func (h *Hub) Run(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.Handler)

	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return srv.Close()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
