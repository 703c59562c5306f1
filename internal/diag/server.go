package diag

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// NewRouter wires the diagnostics routes onto a gorilla/mux router.
func NewRouter(h *Hub) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/snapshot", snapshotHandler(h, func(s Snapshot) any { return s })).Methods(http.MethodGet)
	r.HandleFunc("/pool", snapshotHandler(h, func(s Snapshot) any { return s.Pool })).Methods(http.MethodGet)
	r.HandleFunc("/gates", snapshotHandler(h, func(s Snapshot) any { return s.Gates })).Methods(http.MethodGet)
	r.HandleFunc("/ws", websocketHandler(h))
	return r
}

func snapshotHandler(h *Hub, pick func(Snapshot) any) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		s, ok := h.Latest()
		if !ok {
			http.Error(w, "no snapshot published yet", http.StatusServiceUnavailable)
			return
		}
		data, err := json.Marshal(pick(s))
		if err != nil {
			http.Error(w, "failed to encode", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	}
}

func websocketHandler(h *Hub) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Debug("diag websocket upgrade failed", zap.Error(err))
			return
		}
		wt, ok := h.attach(conn)
		if !ok {
			conn.Close()
			return
		}
		h.log.Debug("diag watcher connected", zap.String("remote", conn.RemoteAddr().String()))
		go wt.writePump()
		wt.readPump(h)
	}
}

// Server runs the diagnostics router on its own listener.
type Server struct {
	http *http.Server
	ln   net.Listener
	log  *zap.Logger
}

func NewServer(bindAddr string, h *Hub, log *zap.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, err
	}
	return &Server{
		http: &http.Server{
			Handler:           NewRouter(h),
			ReadHeaderTimeout: 5 * time.Second,
		},
		ln:  ln,
		log: log,
	}, nil
}

// Serve blocks until Shutdown. Run it in its own goroutine.
func (s *Server) Serve() {
	if err := s.http.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Error("diag server stopped", zap.Error(err))
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) Addr() net.Addr { return s.ln.Addr() }
