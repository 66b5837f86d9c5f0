// Package socketiotest runs a scripted Socket.IO server in process for tests
package socketiotest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"clustercert/internal/adapters/engineio"
	"clustercert/internal/adapters/socketio"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// AckFunc answers an event that asked for an ack; ok=false withholds the ack
type AckFunc func(args []json.RawMessage) (reply []any, ok bool)

// Event is one event received from a client
type Event struct {
	Name   string
	Args   []json.RawMessage
	HasAck bool
}

// Options scripts the server
type Options struct {
	// HoldConnect never answers the namespace CONNECT
	HoldConnect bool

	// RejectConnect answers CONNECT with CONNECT_ERROR carrying this message
	RejectConnect string

	// Acks answers events by name
	Acks map[string]AckFunc

	// DisconnectOn sends DISCONNECT instead of an ack for this event
	DisconnectOn string

	// Greeting is emitted right after the CONNECT ack
	Greeting *Event

	// PingFirst sends an Engine.IO ping right after the open packet
	PingFirst bool

	// PingIntervalMS and PingTimeoutMS are advertised in the open packet
	PingIntervalMS int
	PingTimeoutMS  int
}

// Server is a scripted Socket.IO endpoint on an httptest server
type Server struct {
	URL string

	srv  *httptest.Server
	opts Options
	up   websocket.Upgrader

	mu         sync.Mutex
	handshakes int
	pongs      int
	events     []Event
	userAgents []string
	queries    []url.Values
	conns      map[*websocket.Conn]struct{}
}

// New starts the server and registers its shutdown with t.Cleanup
func New(t testing.TB, opts Options) *Server {
	t.Helper()
	if opts.PingIntervalMS <= 0 {
		opts.PingIntervalMS = 25000
	}
	if opts.PingTimeoutMS <= 0 {
		opts.PingTimeoutMS = 20000
	}
	s := &Server{
		opts:  opts,
		up:    websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		conns: map[*websocket.Conn]struct{}{},
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get(engineio.DefaultPath, s.serveEngine)

	s.srv = httptest.NewServer(r)
	s.URL = s.srv.URL
	t.Cleanup(s.Close)
	return s
}

// Close drops every live connection and stops the listener
func (s *Server) Close() {
	s.mu.Lock()
	for ws := range s.conns {
		_ = ws.Close()
	}
	s.mu.Unlock()
	s.srv.Close()
}

// Handshakes counts accepted WebSocket upgrades
func (s *Server) Handshakes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handshakes
}

// Pongs counts heartbeat replies from clients
func (s *Server) Pongs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pongs
}

// Events returns a copy of the received events in arrival order
func (s *Server) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

// EventCount counts received events with the given name
func (s *Server) EventCount(name string) int {
	n := 0
	for _, e := range s.Events() {
		if e.Name == name {
			n++
		}
	}
	return n
}

// UserAgents returns the User-Agent of every handshake
func (s *Server) UserAgents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.userAgents...)
}

// Queries returns the query of every handshake
func (s *Server) Queries() []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]url.Values(nil), s.queries...)
}

func (s *Server) serveEngine(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("EIO") != engineio.ProtocolRevision || q.Get("transport") != engineio.TransportName {
		http.Error(w, "unsupported transport", http.StatusBadRequest)
		return
	}
	ws, err := s.up.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.handshakes++
	s.userAgents = append(s.userAgents, r.UserAgent())
	s.queries = append(s.queries, q)
	s.conns[ws] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, ws)
		s.mu.Unlock()
		_ = ws.Close()
	}()

	open, _ := json.Marshal(engineio.OpenPayload{
		SID:          uuid.NewString(),
		Upgrades:     []string{},
		PingInterval: s.opts.PingIntervalMS,
		PingTimeout:  s.opts.PingTimeoutMS,
		MaxPayload:   1_000_000,
	})
	if send(ws, engineio.Packet{Type: engineio.PacketOpen, Data: open}) != nil {
		return
	}
	if s.opts.PingFirst {
		if send(ws, engineio.Packet{Type: engineio.PacketPing}) != nil {
			return
		}
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		ep, err := engineio.DecodePacket(data)
		if err != nil {
			return
		}
		switch ep.Type {
		case engineio.PacketPong:
			s.mu.Lock()
			s.pongs++
			s.mu.Unlock()
		case engineio.PacketClose:
			return
		case engineio.PacketMessage:
			if !s.handleSocket(ws, ep.Data) {
				return
			}
		}
	}
}

// handleSocket answers one Socket.IO packet; false ends the connection
func (s *Server) handleSocket(ws *websocket.Conn, data []byte) bool {
	p, err := socketio.DecodePacket(data)
	if err != nil {
		return false
	}
	switch p.Type {
	case socketio.PacketConnect:
		switch {
		case s.opts.HoldConnect:
			return true
		case s.opts.RejectConnect != "":
			body, _ := json.Marshal(map[string]string{"message": s.opts.RejectConnect})
			return sendSocket(ws, socketio.Packet{Type: socketio.PacketConnectError, Namespace: p.Namespace, Data: body}) == nil
		}
		body, _ := json.Marshal(map[string]string{"sid": uuid.NewString()})
		if sendSocket(ws, socketio.Packet{Type: socketio.PacketConnect, Namespace: p.Namespace, Data: body}) != nil {
			return false
		}
		if g := s.opts.Greeting; g != nil {
			args := make([]any, 0, len(g.Args))
			for _, a := range g.Args {
				args = append(args, a)
			}
			payload, err := socketio.EncodeEvent(g.Name, args...)
			if err != nil {
				return false
			}
			return sendSocket(ws, socketio.Packet{Type: socketio.PacketEvent, Namespace: p.Namespace, Data: payload}) == nil
		}
		return true

	case socketio.PacketEvent:
		name, args, err := socketio.DecodeEvent(p.Data)
		if err != nil {
			return false
		}
		s.mu.Lock()
		s.events = append(s.events, Event{Name: name, Args: args, HasAck: p.HasID})
		s.mu.Unlock()

		if name == s.opts.DisconnectOn {
			return sendSocket(ws, socketio.Packet{Type: socketio.PacketDisconnect, Namespace: p.Namespace}) == nil
		}
		f := s.opts.Acks[name]
		if !p.HasID || f == nil {
			return true
		}
		reply, ok := f(args)
		if !ok {
			return true
		}
		if reply == nil {
			reply = []any{}
		}
		body, err := json.Marshal(reply)
		if err != nil {
			return false
		}
		return sendSocket(ws, socketio.Packet{Type: socketio.PacketAck, Namespace: p.Namespace, HasID: true, ID: p.ID, Data: body}) == nil

	case socketio.PacketDisconnect:
		return false
	}
	return true
}

func send(ws *websocket.Conn, p engineio.Packet) error {
	return ws.WriteMessage(websocket.TextMessage, p.Encode())
}

func sendSocket(ws *websocket.Conn, p socketio.Packet) error {
	return send(ws, engineio.Packet{Type: engineio.PacketMessage, Data: p.Encode()})
}
