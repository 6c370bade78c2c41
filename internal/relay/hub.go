package relay

import (
	"context"
	"sync"
	"time"

	"evcharge/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Role is what a peer declared itself as. Unregistered peers are browser
// clients.
type Role string

const (
	RoleBrowserClient  Role = "CLIENT"
	RoleGateController Role = "ESP32"
	RolePlateCamera    Role = "CAMERA"
)

// OccupancyRecorder receives bay sensor telemetry.
type OccupancyRecorder interface {
	SetOccupancy(ctx context.Context, stationID, slotID int, occupied bool) error
}

type Options struct {
	SendBuffer     int
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
	AllowedOrigins []string
}

func (o Options) withDefaults() Options {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 32
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 4096
	}
	return o
}

type Peer struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	// guarded by Hub.mu
	role      Role
	stationID *int
}

func newPeer(conn *websocket.Conn, buffer int) *Peer {
	return &Peer{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, buffer),
		role: RoleBrowserClient,
	}
}

func (p *Peer) ID() string {
	return p.id
}

// Summary counts connected peers by role.
type Summary struct {
	Total   int `json:"total"`
	Clients int `json:"clients"`
	Gates   int `json:"gates"`
	Cameras int `json:"cameras"`
}

// Hub tracks connected peers and fans messages out between them.
type Hub struct {
	mu        sync.RWMutex
	peers     map[*Peer]struct{}
	occupancy OccupancyRecorder
	opts      Options
	upgrader  websocket.Upgrader
	log       *logger.Logger
}

func NewHub(occupancy OccupancyRecorder, opts Options, log *logger.Logger) *Hub {
	opts = opts.withDefaults()
	h := &Hub{
		peers:     make(map[*Peer]struct{}),
		occupancy: occupancy,
		opts:      opts,
		log:       log.Component("relay"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) attach(p *Peer) {
	h.mu.Lock()
	h.peers[p] = struct{}{}
	h.mu.Unlock()

	h.log.Info("Peer connected", "peer_id", p.id)
	h.logSummary()
}

// detach removes p and closes its send queue. Safe to call more than once.
func (h *Hub) detach(p *Peer) {
	h.mu.Lock()
	_, ok := h.peers[p]
	if ok {
		delete(h.peers, p)
		close(p.send)
	}
	h.mu.Unlock()

	if ok {
		h.log.Info("Peer disconnected", "peer_id", p.id)
		h.logSummary()
	}
}

// Handle applies one decoded message from p.
func (h *Hub) Handle(ctx context.Context, p *Peer, msg Inbound) {
	switch m := msg.(type) {
	case RegisterGate:
		h.register(p, RoleGateController, m.StationID, false)
	case RegisterCamera:
		h.register(p, RolePlateCamera, m.StationID, false)
	case RegisterClient:
		h.register(p, RoleBrowserClient, m.StationID, true)
	case SlotUpdate:
		h.handleSlotUpdate(ctx, p, m)
	case CameraTrigger:
		stationID := m.StationID
		if stationID == nil {
			stationID = h.stationOf(p)
		}
		h.log.Info("Camera triggered", "peer_id", p.id, "station_id", derefStation(stationID))
		h.broadcastToClients(CameraTriggered{StationID: stationID})
	}
}

func (h *Hub) register(p *Peer, role Role, stationID *int, keepStation bool) {
	h.mu.Lock()
	p.role = role
	if stationID != nil || !keepStation {
		p.stationID = stationID
	}
	h.mu.Unlock()

	h.log.Info("Peer registered",
		"peer_id", p.id,
		"role", role,
		"station_id", derefStation(stationID),
	)
	h.logSummary()
}

func (h *Hub) handleSlotUpdate(ctx context.Context, p *Peer, m SlotUpdate) {
	stationID := m.StationID
	if stationID == nil {
		stationID = h.stationOf(p)
	}

	if stationID != nil && m.SlotID != nil && h.occupancy != nil {
		if err := h.occupancy.SetOccupancy(ctx, *stationID, *m.SlotID, m.IsOccupied); err != nil {
			h.log.Warn("Failed to record slot occupancy",
				"station_id", *stationID,
				"slot_id", *m.SlotID,
				"error", err,
			)
		}
	}

	h.broadcastToClients(SlotUpdated{
		StationID:  stationID,
		SlotID:     m.SlotID,
		IsOccupied: m.IsOccupied,
	})
}

func (h *Hub) stationOf(p *Peer) *int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return p.stationID
}

// SendToGate delivers cmd to every gate controller registered for stationID.
// Delivery is best effort: slow or missing gates never block the caller.
func (h *Hub) SendToGate(stationID int, cmd Command) int {
	data, err := Encode(cmd)
	if err != nil {
		h.log.Error("Failed to encode gate command", "type", cmd.Type(), "error", err)
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for p := range h.peers {
		if p.role != RoleGateController || p.stationID == nil || *p.stationID != stationID {
			continue
		}
		if h.enqueue(p, data) {
			delivered++
		}
	}

	if delivered == 0 {
		h.log.Warn("No gate controller received command",
			"station_id", stationID,
			"type", cmd.Type(),
		)
	} else {
		h.log.Info("Sent gate command",
			"station_id", stationID,
			"type", cmd.Type(),
			"gates", delivered,
		)
	}
	return delivered
}

func (h *Hub) broadcastToClients(msg Outbound) {
	data, err := Encode(msg)
	if err != nil {
		h.log.Error("Failed to encode broadcast", "type", msg.Type(), "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for p := range h.peers {
		if p.role == RoleBrowserClient {
			h.enqueue(p, data)
		}
	}
}

// enqueue must be called with h.mu held.
func (h *Hub) enqueue(p *Peer, data []byte) bool {
	select {
	case p.send <- data:
		return true
	default:
		h.log.Warn("Dropping message for slow peer", "peer_id", p.id, "role", p.role)
		return false
	}
}

func (h *Hub) Summary() Summary {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s := Summary{Total: len(h.peers)}
	for p := range h.peers {
		switch p.role {
		case RoleGateController:
			s.Gates++
		case RolePlateCamera:
			s.Cameras++
		default:
			s.Clients++
		}
	}
	return s
}

func (h *Hub) logSummary() {
	s := h.Summary()
	h.log.Info("Relay peers",
		"total", s.Total,
		"clients", s.Clients,
		"gates", s.Gates,
		"cameras", s.Cameras,
	)
}

// Shutdown closes every live connection. Read loops notice and detach.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.peers))
	for p := range h.peers {
		if p.conn != nil {
			conns = append(conns, p.conn)
		}
	}
	h.mu.RUnlock()

	deadline := time.Now().Add(h.opts.WriteWait)
	for _, c := range conns {
		_ = c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			deadline)
		_ = c.Close()
	}
	h.log.Info("Relay hub shut down", "closed", len(conns))
}

func derefStation(id *int) any {
	if id == nil {
		return nil
	}
	return *id
}
