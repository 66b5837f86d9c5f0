// Package engineio implements the Engine.IO v4 protocol over a WebSocket
// transport: packet codec, open handshake and the server driven heartbeat
package engineio

import (
	"encoding/json"
	"strconv"

	perr "clustercert/internal/platform/errors"
)

// PacketType is the single digit that prefixes every Engine.IO text frame
type PacketType byte

// Engine.IO v4 packet types
const (
	PacketOpen PacketType = iota
	PacketClose
	PacketPing
	PacketPong
	PacketMessage
	PacketUpgrade
	PacketNoop
)

// String returns the protocol name of the packet type
func (t PacketType) String() string {
	switch t {
	case PacketOpen:
		return "open"
	case PacketClose:
		return "close"
	case PacketPing:
		return "ping"
	case PacketPong:
		return "pong"
	case PacketMessage:
		return "message"
	case PacketUpgrade:
		return "upgrade"
	case PacketNoop:
		return "noop"
	default:
		return "type(" + strconv.Itoa(int(t)) + ")"
	}
}

// Packet is one decoded Engine.IO text frame
type Packet struct {
	Type PacketType
	Data []byte
}

// Encode renders the packet as a text frame payload
func (p Packet) Encode() []byte {
	out := make([]byte, 0, len(p.Data)+1)
	out = append(out, '0'+byte(p.Type))
	return append(out, p.Data...)
}

// DecodePacket parses a text frame payload
func DecodePacket(b []byte) (Packet, error) {
	if len(b) == 0 {
		return Packet{}, perr.Protocolf("engine.io: empty packet")
	}
	c := b[0]
	if c < '0' || c > '0'+byte(PacketNoop) {
		return Packet{}, perr.Protocolf("engine.io: unknown packet type %q", c)
	}
	return Packet{Type: PacketType(c - '0'), Data: b[1:]}, nil
}

// OpenPayload is the JSON body of the server's open packet
// Intervals are in milliseconds as sent on the wire
type OpenPayload struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
	MaxPayload   int      `json:"maxPayload"`
}

// decodeOpen checks the packet type and parses the handshake body
func decodeOpen(p Packet) (OpenPayload, error) {
	var op OpenPayload
	if p.Type != PacketOpen {
		return op, perr.Protocolf("engine.io: expected open packet, got %s", p.Type)
	}
	if err := json.Unmarshal(p.Data, &op); err != nil {
		return op, perr.Wrap(err, perr.ErrorCodeJSON, "engine.io: decode open payload")
	}
	if op.SID == "" {
		return op, perr.Protocolf("engine.io: open packet without sid")
	}
	return op, nil
}
