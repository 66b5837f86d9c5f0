// Package socketio is a minimal Socket.IO v5 client on top of the Engine.IO
// WebSocket transport: namespace connect, events, and acknowledgements
package socketio

import (
	"bytes"
	"encoding/json"
	"strconv"

	perr "clustercert/internal/platform/errors"
)

// PacketType is the leading digit of a Socket.IO packet
type PacketType byte

// Socket.IO v5 packet types
const (
	PacketConnect PacketType = iota
	PacketDisconnect
	PacketEvent
	PacketAck
	PacketConnectError
	PacketBinaryEvent
	PacketBinaryAck
)

// DefaultNamespace is the main namespace
const DefaultNamespace = "/"

// String returns the protocol name of the packet type
func (t PacketType) String() string {
	switch t {
	case PacketConnect:
		return "CONNECT"
	case PacketDisconnect:
		return "DISCONNECT"
	case PacketEvent:
		return "EVENT"
	case PacketAck:
		return "ACK"
	case PacketConnectError:
		return "CONNECT_ERROR"
	case PacketBinaryEvent:
		return "BINARY_EVENT"
	case PacketBinaryAck:
		return "BINARY_ACK"
	default:
		return "TYPE(" + strconv.Itoa(int(t)) + ")"
	}
}

// Packet is one decoded Socket.IO packet
// HasID distinguishes ack id 0 from no ack id
type Packet struct {
	Type      PacketType
	Namespace string
	HasID     bool
	ID        uint64
	Data      json.RawMessage
}

// Encode renders the packet in the text wire format
func (p Packet) Encode() []byte {
	var b bytes.Buffer
	b.WriteByte('0' + byte(p.Type))
	if p.Namespace != "" && p.Namespace != DefaultNamespace {
		b.WriteString(p.Namespace)
		b.WriteByte(',')
	}
	if p.HasID {
		b.WriteString(strconv.FormatUint(p.ID, 10))
	}
	b.Write(p.Data)
	return b.Bytes()
}

// DecodePacket parses the text wire format
// Binary packet types are rejected since attachments are not supported
func DecodePacket(b []byte) (Packet, error) {
	if len(b) == 0 {
		return Packet{}, perr.Protocolf("socket.io: empty packet")
	}
	if b[0] < '0' || b[0] > '0'+byte(PacketBinaryAck) {
		return Packet{}, perr.Protocolf("socket.io: unknown packet type %q", b[0])
	}
	p := Packet{Type: PacketType(b[0] - '0'), Namespace: DefaultNamespace}
	if p.Type == PacketBinaryEvent || p.Type == PacketBinaryAck {
		return p, perr.Protocolf("socket.io: binary packet %s is not supported", p.Type)
	}

	rest := b[1:]
	if len(rest) > 0 && rest[0] == '/' {
		end := bytes.IndexByte(rest, ',')
		if end < 0 {
			p.Namespace = string(rest)
			return p, nil
		}
		p.Namespace = string(rest[:end])
		rest = rest[end+1:]
	}

	i := 0
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		i++
	}
	if i > 0 {
		id, err := strconv.ParseUint(string(rest[:i]), 10, 64)
		if err != nil {
			return p, perr.Wrap(err, perr.ErrorCodeProtocol, "socket.io: bad ack id")
		}
		p.HasID, p.ID = true, id
		rest = rest[i:]
	}

	if len(rest) > 0 {
		if !json.Valid(rest) {
			return p, perr.JSONErrf("socket.io: %s payload is not valid JSON", p.Type)
		}
		p.Data = json.RawMessage(append([]byte(nil), rest...))
	}
	return p, nil
}

// EncodeEvent builds the JSON array [event, args...] carried by EVENT packets
func EncodeEvent(event string, args ...any) (json.RawMessage, error) {
	arr := make([]any, 0, len(args)+1)
	arr = append(arr, event)
	arr = append(arr, args...)
	b, err := json.Marshal(arr)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeJSON, "socket.io: encode %q arguments", event)
	}
	return b, nil
}

// DecodeEvent splits an EVENT payload into its name and raw arguments
func DecodeEvent(data json.RawMessage) (string, []json.RawMessage, error) {
	args, err := DecodeArgs(data)
	if err != nil {
		return "", nil, err
	}
	if len(args) == 0 {
		return "", nil, perr.Protocolf("socket.io: event without a name")
	}
	var name string
	if err := json.Unmarshal(args[0], &name); err != nil {
		return "", nil, perr.Wrap(err, perr.ErrorCodeProtocol, "socket.io: event name is not a string")
	}
	return name, args[1:], nil
}

// DecodeArgs splits an ACK payload (a JSON array) into raw arguments
func DecodeArgs(data json.RawMessage) ([]json.RawMessage, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []json.RawMessage{}, nil
	}
	var args []json.RawMessage
	if err := json.Unmarshal(data, &args); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeProtocol, "socket.io: payload is not a JSON array")
	}
	if args == nil {
		args = []json.RawMessage{}
	}
	return args, nil
}

// connectReply is the body of CONNECT and CONNECT_ERROR packets from the server
type connectReply struct {
	SID     string          `json:"sid"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}
