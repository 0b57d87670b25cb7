package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Engine.IO v4 packet types.
const (
	eioOpen    byte = '0'
	eioClose   byte = '1'
	eioPing    byte = '2'
	eioPong    byte = '3'
	eioMessage byte = '4'
	eioUpgrade byte = '5'
	eioNoop    byte = '6'
)

// Socket.IO v5 packet types, carried inside an Engine.IO message packet.
const (
	sioConnect      byte = '0'
	sioDisconnect   byte = '1'
	sioEvent        byte = '2'
	sioAck          byte = '3'
	sioConnectError byte = '4'
	sioBinaryEvent  byte = '5'
	sioBinaryAck    byte = '6'
)

var errEmptyPacket = errors.New("empty packet")

// packet is a decoded websocket frame. SocketType, Namespace, AckID and Event are only set for Engine.IO
// message packets.
type packet struct {
	EngineType byte
	SocketType byte
	Namespace  string
	AckID      int
	HasAck     bool

	// Event is the first element of an event packet's array; Data holds the second one, if any.
	Event string
	Data  json.RawMessage
}

type openPayload struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"`
	PingTimeout  int    `json:"pingTimeout"`
}

func encodeConnect() []byte {
	return []byte{eioMessage, sioConnect}
}

func encodePong() []byte {
	return []byte{eioPong}
}

func encodeEvent(event string, payload any) ([]byte, error) {
	args := []any{event}
	if payload != nil {
		args = append(args, payload)
	}

	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event %s: %w", event, err)
	}

	return append([]byte{eioMessage, sioEvent}, body...), nil
}

func decodePacket(frame []byte) (packet, error) {
	if len(frame) == 0 {
		return packet{}, errEmptyPacket
	}

	p := packet{EngineType: frame[0]}
	rest := frame[1:]

	switch p.EngineType {
	case eioOpen:
		p.Data = json.RawMessage(rest)
		return p, nil
	case eioClose, eioPing, eioPong, eioUpgrade, eioNoop:
		return p, nil
	case eioMessage:
	default:
		return packet{}, fmt.Errorf("unknown engine packet type %q", p.EngineType)
	}

	if len(rest) == 0 {
		return packet{}, fmt.Errorf("message packet without socket type: %w", errEmptyPacket)
	}
	p.SocketType = rest[0]
	rest = rest[1:]

	if p.SocketType == sioBinaryEvent || p.SocketType == sioBinaryAck {
		// Attachment count precedes the namespace: "51-[...]".
		if i := bytes.IndexByte(rest, '-'); i >= 0 {
			rest = rest[i+1:]
		}
	}

	p.Namespace = "/"
	if len(rest) > 0 && rest[0] == '/' {
		end := bytes.IndexByte(rest, ',')
		if end < 0 {
			p.Namespace = string(rest)
			rest = nil
		} else {
			p.Namespace = string(rest[:end])
			rest = rest[end+1:]
		}
	}

	digits := 0
	for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
		digits++
	}
	if digits > 0 {
		id, err := strconv.Atoi(string(rest[:digits]))
		if err != nil {
			return packet{}, fmt.Errorf("invalid ack id: %w", err)
		}
		p.AckID = id
		p.HasAck = true
		rest = rest[digits:]
	}

	switch p.SocketType {
	case sioEvent, sioBinaryEvent:
		var args []json.RawMessage
		if err := json.Unmarshal(rest, &args); err != nil {
			return packet{}, fmt.Errorf("failed to unmarshal event arguments: %w", err)
		}
		if len(args) == 0 {
			return packet{}, errors.New("event packet without name")
		}
		if err := json.Unmarshal(args[0], &p.Event); err != nil {
			return packet{}, fmt.Errorf("failed to unmarshal event name: %w", err)
		}
		if len(args) > 1 {
			p.Data = args[1]
		}
	default:
		if len(rest) > 0 {
			p.Data = json.RawMessage(rest)
		}
	}

	return p, nil
}
