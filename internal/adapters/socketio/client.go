package socketio

import (
	"context"
	"encoding/json"
	stderrs "errors"
	"net/url"
	"sync"

	"clustercert/internal/adapters/engineio"
	perr "clustercert/internal/platform/errors"
	"clustercert/internal/platform/logger"
)

// ErrClosed is reported by Err after Close was called locally
var ErrClosed = perr.Connectionf("socket.io: client closed")

// reserved names are used by the protocol itself and cannot be emitted
var reserved = map[string]bool{
	"connect":        true,
	"connect_error":  true,
	"disconnect":     true,
	"disconnecting":  true,
	"newListener":    true,
	"removeListener": true,
}

// Handler receives the raw arguments of a server event
// Handlers run on the read goroutine and must not block
type Handler func(args []json.RawMessage)

// AnyHandler receives every server event
type AnyHandler func(event string, args []json.RawMessage)

// Options configures Dial
type Options struct {
	// Namespace to join; when empty the URL path is used, then "/"
	Namespace string

	// Auth is sent as the CONNECT payload when non-nil
	Auth any

	// OnAny is installed before the namespace is joined
	OnAny AnyHandler

	Engine engineio.Options
}

// Client is a connected Socket.IO namespace
type Client struct {
	eio *engineio.Conn
	nsp string
	sid string
	log *logger.Logger

	mu       sync.Mutex
	nextID   uint64
	pending  map[uint64]chan []json.RawMessage
	handlers map[string][]Handler
	anyHs    []AnyHandler
	err      error

	done      chan struct{}
	closeOnce sync.Once
}

// Dial opens the transport and joins the namespace
// It returns once the server acknowledged CONNECT, rejected it, or ctx ended
func Dial(ctx context.Context, rawURL string, opts Options) (*Client, error) {
	nsp := namespaceFor(rawURL, opts.Namespace)

	eio, err := engineio.Dial(ctx, rawURL, opts.Engine)
	if err != nil {
		return nil, err
	}

	c := &Client{
		eio:      eio,
		nsp:      nsp,
		log:      logger.Named("socketio"),
		pending:  map[uint64]chan []json.RawMessage{},
		handlers: map[string][]Handler{},
		done:     make(chan struct{}),
	}
	if opts.OnAny != nil {
		c.anyHs = append(c.anyHs, opts.OnAny)
	}

	connect := Packet{Type: PacketConnect, Namespace: nsp}
	if opts.Auth != nil {
		b, err := json.Marshal(opts.Auth)
		if err != nil {
			_ = eio.Close()
			return nil, perr.Wrap(err, perr.ErrorCodeJSON, "socket.io: encode auth payload")
		}
		connect.Data = b
	}
	if err := eio.Send(connect.Encode()); err != nil {
		_ = eio.Close()
		return nil, err
	}

	if err := c.awaitConnect(ctx); err != nil {
		_ = eio.Close()
		return nil, err
	}
	c.log.Debug().
		Str("namespace", nsp).
		Str("sid", c.sid).
		Str("engine_sid", eio.Open().SID).
		Msg("namespace joined")

	go c.readLoop()
	return c, nil
}

// namespaceFor picks the explicit namespace, else the URL path, else "/"
func namespaceFor(rawURL, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" && u.Path != "/" {
		return u.Path
	}
	return DefaultNamespace
}

func (c *Client) awaitConnect(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctxError(ctx, "socket.io: waiting for namespace connect")
		case data, ok := <-c.eio.Messages():
			if !ok {
				return perr.Wrap(c.eio.Err(), perr.ErrorCodeConnection, "socket.io: connection lost before namespace connect")
			}
			p, err := DecodePacket(data)
			if err != nil {
				return err
			}
			if p.Namespace != c.nsp {
				continue
			}
			switch p.Type {
			case PacketConnect:
				var r connectReply
				if len(p.Data) > 0 {
					if err := json.Unmarshal(p.Data, &r); err != nil {
						return perr.Wrap(err, perr.ErrorCodeJSON, "socket.io: decode connect reply")
					}
				}
				c.sid = r.SID
				return nil
			case PacketConnectError:
				var r connectReply
				_ = json.Unmarshal(p.Data, &r)
				msg := r.Message
				if msg == "" {
					msg = string(p.Data)
				}
				return perr.Unauthorizedf("socket.io: namespace %s refused: %s", c.nsp, msg)
			case PacketDisconnect:
				return perr.Connectionf("socket.io: server disconnected namespace %s during connect", c.nsp)
			default:
				c.log.Debug().Str("type", p.Type.String()).Msg("ignoring packet before connect")
			}
		}
	}
}

// SID returns the namespace session id assigned by the server
func (c *Client) SID() string { return c.sid }

// Namespace returns the joined namespace
func (c *Client) Namespace() string { return c.nsp }

// Done is closed once the client is disconnected
func (c *Client) Done() <-chan struct{} { return c.done }

// Err returns why the client disconnected, nil while connected
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// On registers a handler for a named server event
func (c *Client) On(event string, h Handler) {
	c.mu.Lock()
	c.handlers[event] = append(c.handlers[event], h)
	c.mu.Unlock()
}

// OnAny registers a handler for every server event
func (c *Client) OnAny(h AnyHandler) {
	c.mu.Lock()
	c.anyHs = append(c.anyHs, h)
	c.mu.Unlock()
}

// encodeOutgoing rejects reserved names and builds the EVENT payload
func encodeOutgoing(event string, args []any) (json.RawMessage, error) {
	if event == "" || reserved[event] {
		return nil, perr.Emitf("socket.io: %q is a reserved event name", event)
	}
	return EncodeEvent(event, args...)
}

// Emit sends an event without asking for an acknowledgement
func (c *Client) Emit(event string, args ...any) error {
	payload, err := encodeOutgoing(event, args)
	if err != nil {
		return err
	}
	if err := c.alive(); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeEmit, "socket.io: emit %q", event)
	}
	p := Packet{Type: PacketEvent, Namespace: c.nsp, Data: payload}
	if err := c.eio.Send(p.Encode()); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeEmit, "socket.io: emit %q", event)
	}
	return nil
}

// EmitWithAck sends an event and waits for the server's acknowledgement
// The returned arguments are exactly what the server passed to its callback
func (c *Client) EmitWithAck(ctx context.Context, event string, args ...any) ([]json.RawMessage, error) {
	payload, err := encodeOutgoing(event, args)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.err != nil {
		cause := c.err
		c.mu.Unlock()
		return nil, perr.Wrapf(cause, perr.ErrorCodeEmit, "socket.io: emit %q", event)
	}
	id := c.nextID
	c.nextID++
	ch := make(chan []json.RawMessage, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	p := Packet{Type: PacketEvent, Namespace: c.nsp, HasID: true, ID: id, Data: payload}
	if err := c.eio.Send(p.Encode()); err != nil {
		c.forget(id)
		return nil, perr.Wrapf(err, perr.ErrorCodeEmit, "socket.io: emit %q", event)
	}
	c.log.Debug().Str("event", event).Uint64("ack_id", id).Msg("event sent")

	select {
	case res, ok := <-ch:
		if !ok {
			return nil, perr.Wrapf(c.Err(), perr.ErrorCodeEmit, "socket.io: connection lost before %q was acknowledged", event)
		}
		return res, nil
	case <-ctx.Done():
		c.forget(id)
		return nil, ctxError(ctx, "socket.io: waiting for "+event+" ack")
	}
}

// Close leaves the namespace and closes the transport; safe to call twice
func (c *Client) Close() error {
	if c.alive() == nil {
		p := Packet{Type: PacketDisconnect, Namespace: c.nsp}
		_ = c.eio.Send(p.Encode())
	}
	c.shutdown(ErrClosed)
	return c.eio.Close()
}

func (c *Client) alive() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Client) forget(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) readLoop() {
	for data := range c.eio.Messages() {
		p, err := DecodePacket(data)
		if err != nil {
			c.log.Warn().Err(err).Msg("dropping undecodable packet")
			continue
		}
		if p.Namespace != c.nsp {
			continue
		}
		switch p.Type {
		case PacketEvent:
			c.dispatch(p)
		case PacketAck:
			c.deliverAck(p)
		case PacketDisconnect:
			c.shutdown(perr.Connectionf("socket.io: server disconnected namespace %s", c.nsp))
			_ = c.eio.Close()
			return
		default:
			c.log.Debug().Str("type", p.Type.String()).Msg("ignoring packet")
		}
	}
	cause := c.eio.Err()
	if cause == nil {
		cause = perr.Connectionf("socket.io: transport closed")
	}
	c.shutdown(cause)
}

func (c *Client) dispatch(p Packet) {
	event, args, err := DecodeEvent(p.Data)
	if err != nil {
		c.log.Warn().Err(err).Msg("dropping malformed event")
		return
	}
	if p.HasID {
		c.log.Debug().Str("event", event).Uint64("ack_id", p.ID).Msg("server requested an ack; not supported")
	}
	c.mu.Lock()
	anyHs := append([]AnyHandler(nil), c.anyHs...)
	hs := append([]Handler(nil), c.handlers[event]...)
	c.mu.Unlock()

	for _, h := range anyHs {
		c.safely(event, func() { h(event, args) })
	}
	for _, h := range hs {
		c.safely(event, func() { h(args) })
	}
}

// safely runs one handler; a panic is logged and the read loop keeps going
func (c *Client) safely(event string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			err := perr.PanicErrf("socket.io: handler for %q panicked: %v", event, r)
			c.log.Error().Err(err).Str("code", perr.CodeOf(err).String()).Msg("event handler failed")
		}
	}()
	fn()
}

func (c *Client) deliverAck(p Packet) {
	if !p.HasID {
		c.log.Warn().Msg("ack packet without id")
		return
	}
	args, err := DecodeArgs(p.Data)
	if err != nil {
		c.log.Warn().Err(err).Uint64("ack_id", p.ID).Msg("dropping malformed ack")
		return
	}
	c.mu.Lock()
	ch, ok := c.pending[p.ID]
	delete(c.pending, p.ID)
	c.mu.Unlock()
	if !ok {
		c.log.Debug().Uint64("ack_id", p.ID).Msg("ack for unknown or expired id")
		return
	}
	ch <- args
}

// shutdown records the cause and fails every pending ack
func (c *Client) shutdown(cause error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.err = cause
		pending := c.pending
		c.pending = map[uint64]chan []json.RawMessage{}
		c.mu.Unlock()
		for _, ch := range pending {
			close(ch)
		}
		close(c.done)
		if cause != ErrClosed {
			c.log.Warn().Err(cause).Str("namespace", c.nsp).Msg("socket.io client disconnected")
		}
	})
}

func ctxError(ctx context.Context, what string) error {
	if stderrs.Is(ctx.Err(), context.DeadlineExceeded) {
		return perr.Wrap(ctx.Err(), perr.ErrorCodeTimeout, what+": timed out")
	}
	return perr.Wrap(ctx.Err(), perr.ErrorCodeUnknown, what+": canceled")
}
