// Package diag serves pool and gate snapshots over HTTP and streams them to
// WebSocket watchers. The game loop publishes; HTTP goroutines only ever see
// the last published copy.
package diag

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/spellduel/server/internal/sim"
	"github.com/spellduel/server/internal/spell"
)

const (
	sendBuffer   = 8
	writeTimeout = 5 * time.Second
)

// Snapshot is one published view of the simulation.
type Snapshot struct {
	RunID     string            `json:"run_id"`
	Frame     uint64            `json:"frame"`
	SimTimeMS int64             `json:"sim_time_ms"`
	Pool      spell.Stats       `json:"pool"`
	Gates     sim.GatesSnapshot `json:"gates"`
	Wizards   map[string]int    `json:"wizards"`
	Hits      map[string]int    `json:"hits"` // spells absorbed, by victim faction
}

type watcher struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub keeps the latest snapshot and fans it out to watchers.
type Hub struct {
	mu       sync.RWMutex
	latest   Snapshot
	encoded  []byte
	has      bool
	watchers map[*watcher]struct{}
	closed   bool
	log      *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		watchers: make(map[*watcher]struct{}),
		log:      log,
	}
}

// Publish stores s and queues it for every watcher. Watchers that cannot
// keep up are dropped.
func (h *Hub) Publish(s Snapshot) {
	data, err := json.Marshal(s)
	if err != nil {
		h.log.Error("encode diag snapshot", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest = s
	h.encoded = data
	h.has = true
	for w := range h.watchers {
		select {
		case w.send <- data:
		default:
			h.log.Warn("diag watcher too slow, dropping", zap.String("remote", w.conn.RemoteAddr().String()))
			h.dropLocked(w)
		}
	}
}

// Latest returns the last published snapshot.
func (h *Hub) Latest() (Snapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest, h.has
}

// Watchers returns the number of connected WebSocket watchers.
func (h *Hub) Watchers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.watchers)
}

// Close disconnects every watcher and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for w := range h.watchers {
		h.dropLocked(w)
	}
}

func (h *Hub) attach(conn *websocket.Conn) (*watcher, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	w := &watcher{conn: conn, send: make(chan []byte, sendBuffer)}
	if h.has {
		w.send <- h.encoded
	}
	h.watchers[w] = struct{}{}
	return w, true
}

func (h *Hub) detach(w *watcher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(w)
}

func (h *Hub) dropLocked(w *watcher) {
	if _, ok := h.watchers[w]; !ok {
		return
	}
	delete(h.watchers, w)
	close(w.send)
}

// writePump drains w.send onto the socket until the hub drops the watcher.
func (w *watcher) writePump() {
	defer w.conn.Close()
	for data := range w.send {
		w.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	w.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	w.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// readPump discards client frames; it exists to notice the client leaving.
func (w *watcher) readPump(h *Hub) {
	defer h.detach(w)
	for {
		if _, _, err := w.conn.ReadMessage(); err != nil {
			return
		}
	}
}
