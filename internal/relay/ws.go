package relay

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

// ServeWS upgrades the request and runs the peer until it disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		h.log.Warn("WebSocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	p := newPeer(conn, h.opts.SendBuffer)
	h.attach(p)

	go h.writePump(p)
	h.readPump(r.Context(), p)
}

// checkOrigin allows requests without an Origin header since gate firmware
// and cameras never send one.
func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.Contains(h.opts.AllowedOrigins, origin)
}

func (h *Hub) readPump(ctx context.Context, p *Peer) {
	defer func() {
		h.detach(p)
		_ = p.conn.Close()
	}()

	p.conn.SetReadLimit(h.opts.MaxMessageSize)
	_ = p.conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	})

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("Peer connection closed unexpectedly", "peer_id", p.id, "error", err)
			}
			return
		}
		_ = p.conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))

		msg, err := Decode(data)
		if err != nil {
			if errors.Is(err, ErrUnknownType) {
				h.log.Warn("Unknown message type", "peer_id", p.id, "error", err)
			} else {
				h.log.Warn("Ignoring malformed message", "peer_id", p.id, "error", err)
			}
			continue
		}
		h.Handle(ctx, p, msg)
	}
}

func (h *Hub) writePump(p *Peer) {
	ticker := time.NewTicker(h.opts.PongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		_ = p.conn.Close()
	}()

	for {
		select {
		case data, ok := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(h.opts.WriteWait))
			if !ok {
				_ = p.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.log.Debug("Write to peer failed", "peer_id", p.id, "error", err)
				return
			}
		case <-ticker.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(h.opts.WriteWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) RegisterRoutes(router *httprouter.Router) {
	router.GET("/ws", h.ServeWS)
}
