package relay

import (
	"encoding/json"
	"errors"
	"fmt"
)

type MessageType string

const (
	TypeRegisterGate   MessageType = "REGISTER_ESP32"
	TypeRegisterCamera MessageType = "REGISTER_CAMERA"
	TypeRegisterClient MessageType = "REGISTER_CLIENT"
	TypeSlotUpdate     MessageType = "SLOT_UPDATE"
	TypeCameraTrigger  MessageType = "CAMERA_TRIGGER"

	TypeScanning   MessageType = "SCANNING"
	TypeGateOpen   MessageType = "GATE_OPEN"
	TypeGateDenied MessageType = "GATE_DENIED"
)

var (
	ErrMalformed   = errors.New("malformed relay message")
	ErrUnknownType = errors.New("unknown relay message type")
)

// Inbound is any message a peer may send to the hub. The set is closed: only
// the types in this file implement it.
type Inbound interface {
	inbound()
}

type RegisterGate struct {
	StationID *int `json:"stationId"`
}

type RegisterCamera struct {
	StationID *int `json:"stationId"`
}

type RegisterClient struct {
	StationID *int `json:"stationId"`
}

// SlotUpdate is bay sensor telemetry. StationID falls back to the sender's
// registered station when omitted.
type SlotUpdate struct {
	StationID  *int `json:"stationId"`
	SlotID     *int `json:"slotId"`
	IsOccupied bool `json:"isOccupied"`
}

type CameraTrigger struct {
	StationID *int `json:"stationId"`
}

func (RegisterGate) inbound()   {}
func (RegisterCamera) inbound() {}
func (RegisterClient) inbound() {}
func (SlotUpdate) inbound()     {}
func (CameraTrigger) inbound()  {}

// Decode parses one frame using its "type" discriminator.
func Decode(data []byte) (Inbound, error) {
	var envelope struct {
		Type MessageType `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch envelope.Type {
	case TypeRegisterGate:
		return decodeAs[RegisterGate](data)
	case TypeRegisterCamera:
		return decodeAs[RegisterCamera](data)
	case TypeRegisterClient:
		return decodeAs[RegisterClient](data)
	case TypeSlotUpdate:
		return decodeAs[SlotUpdate](data)
	case TypeCameraTrigger:
		return decodeAs[CameraTrigger](data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, envelope.Type)
	}
}

func decodeAs[T Inbound](data []byte) (Inbound, error) {
	var msg T
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return msg, nil
}

// Outbound is any message the hub sends to a peer.
type Outbound interface {
	Type() MessageType
}

// Command is an Outbound addressed to gate controllers.
type Command interface {
	Outbound
	command()
}

type Scanning struct {
	PlateNumber string `json:"plateNumber"`
}

type GateOpen struct {
	Name   string `json:"name"`
	SlotID int    `json:"slotId"`
}

type GateDenied struct{}

// SlotUpdated is the browser-facing copy of a SlotUpdate with the station
// resolved.
type SlotUpdated struct {
	StationID  *int `json:"stationId,omitempty"`
	SlotID     *int `json:"slotId,omitempty"`
	IsOccupied bool `json:"isOccupied"`
}

type CameraTriggered struct {
	StationID *int `json:"stationId,omitempty"`
}

func (Scanning) Type() MessageType        { return TypeScanning }
func (GateOpen) Type() MessageType        { return TypeGateOpen }
func (GateDenied) Type() MessageType      { return TypeGateDenied }
func (SlotUpdated) Type() MessageType     { return TypeSlotUpdate }
func (CameraTriggered) Type() MessageType { return TypeCameraTrigger }

func (Scanning) command()   {}
func (GateOpen) command()   {}
func (GateDenied) command() {}

// Encode renders msg as a flat JSON object with its "type" field first.
func Encode(msg Outbound) ([]byte, error) {
	switch m := msg.(type) {
	case Scanning:
		return json.Marshal(struct {
			Type MessageType `json:"type"`
			Scanning
		}{m.Type(), m})
	case GateOpen:
		return json.Marshal(struct {
			Type MessageType `json:"type"`
			GateOpen
		}{m.Type(), m})
	case GateDenied:
		return json.Marshal(struct {
			Type MessageType `json:"type"`
		}{m.Type()})
	case SlotUpdated:
		return json.Marshal(struct {
			Type MessageType `json:"type"`
			SlotUpdated
		}{m.Type(), m})
	case CameraTriggered:
		return json.Marshal(struct {
			Type MessageType `json:"type"`
			CameraTriggered
		}{m.Type(), m})
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownType, msg)
	}
}
