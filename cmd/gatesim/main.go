// Command gatesim stands in for a station's gate controller. It registers on
// the device relay, prints every command it receives and can post a plate
// read to the identify endpoint the way a camera host would.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"evcharge/internal/relay"
	"evcharge/pkg/client"
	"evcharge/pkg/logger"

	"github.com/gorilla/websocket"
)

type identifyRequest struct {
	StationID   int    `json:"stationId"`
	PlateNumber string `json:"plateNumber"`
}

func main() {
	server := flag.String("server", "http://localhost:5000", "gateway base URL")
	stationID := flag.Int("station", 1, "station id to register for")
	plate := flag.String("plate", "", "plate to submit once registered (optional)")
	wait := flag.Duration("wait", 5*time.Second, "how long to keep listening after submitting a plate; 0 listens until interrupted")
	flag.Parse()

	log := logger.New(logger.Config{Level: "debug", Format: logger.JSON, Service: "gatesim"})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := client.NewHttpClient(strings.TrimRight(*server, "/"))
	if err := api.WaitForHealthy(ctx, 10*time.Second); err != nil {
		log.Fatal("Gateway is not healthy", "server", *server, "error", err)
	}

	conn, err := dial(ctx, *server)
	if err != nil {
		log.Fatal("Failed to connect to relay", "server", *server, "error", err)
	}
	defer conn.Close()

	if err := register(conn, *stationID); err != nil {
		log.Fatal("Failed to register gate controller", "error", err)
	}
	log.Info("Registered as gate controller", "station_id", *stationID)

	commands := make(chan map[string]any)
	go readCommands(conn, commands, log)

	listenFor := time.Duration(0)
	if *plate != "" {
		submit(ctx, api, *stationID, *plate, log)
		listenFor = *wait
	}

	var deadline <-chan time.Time
	if listenFor > 0 {
		deadline = time.After(listenFor)
	}

	for {
		select {
		case cmd, ok := <-commands:
			if !ok {
				log.Info("Relay closed the connection")
				return
			}
			log.Info("Gate command received", "command", cmd)
		case <-deadline:
			closeConn(conn)
			return
		case <-ctx.Done():
			closeConn(conn)
			return
		}
	}
}

func dial(ctx context.Context, server string) (*websocket.Conn, error) {
	u, err := url.Parse(server)
	if err != nil {
		return nil, err
	}
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	u.Path = "/ws"

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	return conn, err
}

func register(conn *websocket.Conn, stationID int) error {
	return conn.WriteJSON(map[string]any{
		"type":      relay.TypeRegisterGate,
		"stationId": stationID,
	})
}

func readCommands(conn *websocket.Conn, out chan<- map[string]any, log *logger.Logger) {
	defer close(out)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("Relay read failed", "error", err)
			}
			return
		}
		var cmd map[string]any
		if err := json.Unmarshal(data, &cmd); err != nil {
			log.Warn("Ignoring non-JSON frame", "frame", string(data))
			continue
		}
		out <- cmd
	}
}

func submit(ctx context.Context, api *client.HttpClient, stationID int, plate string, log *logger.Logger) {
	resp, err := api.POST(ctx, "/api/hardware/identify", identifyRequest{StationID: stationID, PlateNumber: plate})
	if err != nil {
		log.Error("Identify request failed", "error", err)
		return
	}
	if resp.StatusCode != http.StatusOK {
		log.Error("Identify rejected", "status", resp.StatusCode, "error", client.GetErrorMessage(resp))
		return
	}
	log.Info("Identify response", "body", string(resp.Body))
}

func closeConn(conn *websocket.Conn) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}
