package relay

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"evcharge/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startRelay(t *testing.T, occ OccupancyRecorder) (*Hub, string) {
	t.Helper()

	h := NewHub(occ, Options{AllowedOrigins: []string{"https://app.example.com"}}, logger.Discard())
	router := httprouter.New()
	router.GET("/ws", h.ServeWS)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return h, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestServeWS_GateReceivesCommands(t *testing.T) {
	occ := &fakeOccupancy{}
	h, url := startRelay(t, occ)

	gate := dial(t, url)
	client := dial(t, url)

	require.NoError(t, gate.WriteJSON(map[string]any{"type": "REGISTER_ESP32", "stationId": 1}))
	require.Eventually(t, func() bool {
		return h.Summary() == Summary{Total: 2, Clients: 1, Gates: 1}
	}, 2*time.Second, 10*time.Millisecond)

	h.SendToGate(1, Scanning{PlateNumber: "KA01AB1234"})

	_ = gate.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got map[string]any
	require.NoError(t, gate.ReadJSON(&got))
	assert.Equal(t, "SCANNING", got["type"])
	assert.Equal(t, "KA01AB1234", got["plateNumber"])

	require.NoError(t, gate.WriteJSON(map[string]any{"type": "SLOT_UPDATE", "slotId": 2, "isOccupied": true}))

	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	var update map[string]any
	require.NoError(t, client.ReadJSON(&update))
	assert.Equal(t, "SLOT_UPDATE", update["type"])
	assert.EqualValues(t, 1, update["stationId"])
	assert.EqualValues(t, 2, update["slotId"])
	assert.Equal(t, true, update["isOccupied"])

	occ.mu.Lock()
	assert.Equal(t, []occupancyCall{{1, 2, true}}, occ.calls)
	occ.mu.Unlock()
}

func TestServeWS_DetachesOnClose(t *testing.T) {
	h, url := startRelay(t, nil)

	conn := dial(t, url)
	require.Eventually(t, func() bool { return h.Summary().Total == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return h.Summary().Total == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServeWS_RejectsForeignOrigin(t *testing.T) {
	_, url := startRelay(t, nil)

	header := map[string][]string{"Origin": {"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 403, resp.StatusCode)
}

func TestServeWS_IgnoresGarbage(t *testing.T) {
	h, url := startRelay(t, nil)

	conn := dial(t, url)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("garbage")))
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "NOPE"}))
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "REGISTER_CAMERA", "stationId": 3}))

	require.Eventually(t, func() bool { return h.Summary().Cameras == 1 }, 2*time.Second, 10*time.Millisecond)
}
