package relay

import (
	"context"
	"errors"
	"sync"
	"testing"

	"evcharge/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type occupancyCall struct {
	stationID, slotID int
	occupied          bool
}

type fakeOccupancy struct {
	mu    sync.Mutex
	calls []occupancyCall
	err   error
}

func (f *fakeOccupancy) SetOccupancy(_ context.Context, stationID, slotID int, occupied bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, occupancyCall{stationID, slotID, occupied})
	return f.err
}

func newTestHub(occ OccupancyRecorder) *Hub {
	return NewHub(occ, Options{SendBuffer: 2}, logger.Discard())
}

func connect(h *Hub) *Peer {
	p := newPeer(nil, h.opts.SendBuffer)
	h.attach(p)
	return p
}

func drain(p *Peer) []string {
	var out []string
	for {
		select {
		case data, ok := <-p.send:
			if !ok {
				return out
			}
			out = append(out, string(data))
		default:
			return out
		}
	}
}

func TestHub_PeersDefaultToBrowserClient(t *testing.T) {
	h := newTestHub(nil)
	connect(h)
	connect(h)

	assert.Equal(t, Summary{Total: 2, Clients: 2}, h.Summary())
}

func TestHub_Register(t *testing.T) {
	h := newTestHub(nil)
	ctx := context.Background()

	gate := connect(h)
	camera := connect(h)
	client := connect(h)

	h.Handle(ctx, gate, RegisterGate{StationID: intPtr(1)})
	h.Handle(ctx, camera, RegisterCamera{StationID: intPtr(1)})
	h.Handle(ctx, client, RegisterClient{StationID: intPtr(2)})

	assert.Equal(t, Summary{Total: 3, Clients: 1, Gates: 1, Cameras: 1}, h.Summary())

	h.Handle(ctx, client, RegisterClient{})
	require.NotNil(t, client.stationID, "client registration without a station keeps the previous one")
	assert.Equal(t, 2, *client.stationID)
}

func TestHub_SendToGate_TargetsStation(t *testing.T) {
	h := newTestHub(nil)
	ctx := context.Background()

	gate1 := connect(h)
	gate2 := connect(h)
	client := connect(h)
	h.Handle(ctx, gate1, RegisterGate{StationID: intPtr(1)})
	h.Handle(ctx, gate2, RegisterGate{StationID: intPtr(2)})

	delivered := h.SendToGate(1, GateOpen{Name: "Asha", SlotID: 2})

	assert.Equal(t, 1, delivered)
	msgs := drain(gate1)
	require.Len(t, msgs, 1)
	assert.Equal(t, "GATE_OPEN", gjson.Get(msgs[0], "type").String())
	assert.Equal(t, "Asha", gjson.Get(msgs[0], "name").String())
	assert.Equal(t, int64(2), gjson.Get(msgs[0], "slotId").Int())
	assert.Empty(t, drain(gate2))
	assert.Empty(t, drain(client))
}

func TestHub_SendToGate_NoGateIsNotAnError(t *testing.T) {
	h := newTestHub(nil)
	assert.Equal(t, 0, h.SendToGate(7, GateDenied{}))
}

func TestHub_SendToGate_DropsWhenQueueFull(t *testing.T) {
	h := newTestHub(nil)
	gate := connect(h)
	h.Handle(context.Background(), gate, RegisterGate{StationID: intPtr(1)})

	assert.Equal(t, 1, h.SendToGate(1, Scanning{PlateNumber: "A"}))
	assert.Equal(t, 1, h.SendToGate(1, Scanning{PlateNumber: "B"}))
	assert.Equal(t, 0, h.SendToGate(1, Scanning{PlateNumber: "C"}), "buffer of two is full")

	msgs := drain(gate)
	require.Len(t, msgs, 2)
	assert.Equal(t, "A", gjson.Get(msgs[0], "plateNumber").String())
	assert.Equal(t, "B", gjson.Get(msgs[1], "plateNumber").String())
}

func TestHub_SlotUpdate(t *testing.T) {
	occ := &fakeOccupancy{}
	h := newTestHub(occ)
	ctx := context.Background()

	gate := connect(h)
	client := connect(h)
	camera := connect(h)
	h.Handle(ctx, gate, RegisterGate{StationID: intPtr(3)})
	h.Handle(ctx, camera, RegisterCamera{StationID: intPtr(3)})

	h.Handle(ctx, gate, SlotUpdate{SlotID: intPtr(2), IsOccupied: true})

	assert.Equal(t, []occupancyCall{{3, 2, true}}, occ.calls)

	msgs := drain(client)
	require.Len(t, msgs, 1)
	assert.JSONEq(t, `{"type":"SLOT_UPDATE","stationId":3,"slotId":2,"isOccupied":true}`, msgs[0])
	assert.Empty(t, drain(gate))
	assert.Empty(t, drain(camera))
}

func TestHub_SlotUpdate_RecorderFailureStillBroadcasts(t *testing.T) {
	occ := &fakeOccupancy{err: errors.New("redis down")}
	h := newTestHub(occ)
	client := connect(h)
	gate := connect(h)

	h.Handle(context.Background(), gate, SlotUpdate{StationID: intPtr(1), SlotID: intPtr(1)})

	assert.Len(t, occ.calls, 1)
	assert.Len(t, drain(client), 1)
}

func TestHub_SlotUpdate_WithoutStationSkipsRecorder(t *testing.T) {
	occ := &fakeOccupancy{}
	h := newTestHub(occ)
	client := connect(h)
	sensor := connect(h)

	h.Handle(context.Background(), sensor, SlotUpdate{SlotID: intPtr(1), IsOccupied: true})

	assert.Empty(t, occ.calls)
	msgs := drain(client)
	require.Len(t, msgs, 1)
	assert.False(t, gjson.Get(msgs[0], "stationId").Exists())
}

func TestHub_CameraTrigger(t *testing.T) {
	h := newTestHub(nil)
	ctx := context.Background()
	camera := connect(h)
	client := connect(h)
	h.Handle(ctx, camera, RegisterCamera{StationID: intPtr(2)})

	h.Handle(ctx, camera, CameraTrigger{})

	msgs := drain(client)
	require.Len(t, msgs, 1)
	assert.JSONEq(t, `{"type":"CAMERA_TRIGGER","stationId":2}`, msgs[0])
}

func TestHub_Detach(t *testing.T) {
	h := newTestHub(nil)
	gate := connect(h)
	h.Handle(context.Background(), gate, RegisterGate{StationID: intPtr(1)})

	h.detach(gate)
	h.detach(gate)

	assert.Equal(t, Summary{}, h.Summary())
	_, open := <-gate.send
	assert.False(t, open)
	assert.Equal(t, 0, h.SendToGate(1, GateDenied{}))
}
