package diag

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spellduel/server/internal/sim"
	"github.com/spellduel/server/internal/spell"
)

func sample(frame uint64) Snapshot {
	return Snapshot{
		RunID:     "run-1",
		Frame:     frame,
		SimTimeMS: int64(frame) * 20,
		Pool:      spell.Stats{Active: 3, Free: 97, Total: 100, Created: 100, Acquired: 5, Released: 2},
		Gates:     sim.GatesSnapshot{AllowParticles: true, TimeScale: 1},
		Wizards:   map[string]int{"fire": 5, "ice": 5},
		Hits:      map[string]int{"ice": 1},
	}
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestHTTPEndpoints(t *testing.T) {
	hub := NewHub(zap.NewNop())
	srv := httptest.NewServer(NewRouter(hub))
	defer srv.Close()

	code, body := get(t, srv.URL+"/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body)

	code, _ = get(t, srv.URL+"/pool")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	hub.Publish(sample(7))

	code, body = get(t, srv.URL+"/pool")
	require.Equal(t, http.StatusOK, code)
	var pool spell.Stats
	require.NoError(t, json.Unmarshal([]byte(body), &pool))
	assert.Equal(t, 3, pool.Active)
	assert.Equal(t, uint64(5), pool.Acquired)

	code, body = get(t, srv.URL+"/gates")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"allow_particles":true`)

	code, body = get(t, srv.URL+"/snapshot")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"frame":7`)
	assert.Contains(t, body, `"run_id":"run-1"`)

	resp, err := http.Post(srv.URL+"/pool", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestWebsocketStreamsSnapshots(t *testing.T) {
	hub := NewHub(zap.NewNop())
	hub.Publish(sample(1))
	srv := httptest.NewServer(NewRouter(hub))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() Snapshot {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var s Snapshot
		require.NoError(t, json.Unmarshal(data, &s))
		return s
	}

	assert.Equal(t, uint64(1), read().Frame, "latest snapshot is sent on connect")
	require.Eventually(t, func() bool { return hub.Watchers() == 1 }, time.Second, 5*time.Millisecond)

	hub.Publish(sample(2))
	assert.Equal(t, uint64(2), read().Frame)

	hub.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	assert.Zero(t, hub.Watchers())
}
