package engineio

import (
	"context"
	"crypto/tls"
	stderrs "errors"
	"net"
	"net/http"
	"sync"
	"time"

	perr "clustercert/internal/platform/errors"
	"clustercert/internal/platform/logger"

	"github.com/gorilla/websocket"
)

// Defaults used when the server omits heartbeat settings or callers omit timeouts
const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 10 * time.Second
	defaultPingInterval     = 25 * time.Second
	defaultPingTimeout      = 20 * time.Second
)

// ErrClosed is reported by Err after Close was called locally
var ErrClosed = perr.Connectionf("engine.io: connection closed")

// Options configures Dial
type Options struct {
	// Path is the Engine.IO mount point, DefaultPath when empty
	Path string

	// UserAgent is sent on the upgrade request when non-empty
	UserAgent string

	// Header carries extra upgrade request headers
	Header http.Header

	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	TLSConfig        *tls.Config
}

// Conn is an open Engine.IO session
// One goroutine reads frames, answers pings and forwards message payloads
type Conn struct {
	ws    *websocket.Conn
	open  OpenPayload
	wtime time.Duration
	log   *logger.Logger

	wmu  sync.Mutex
	msgs chan []byte

	mu        sync.Mutex
	err       error
	done      chan struct{}
	closeOnce sync.Once
}

// Dial opens the WebSocket, reads the open packet and starts the read loop
func Dial(ctx context.Context, rawURL string, opts Options) (*Conn, error) {
	endpoint, err := BuildURL(rawURL, opts.Path)
	if err != nil {
		return nil, err
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}

	hdr := http.Header{}
	for k, vs := range opts.Header {
		for _, v := range vs {
			hdr.Add(k, v)
		}
	}
	if opts.UserAgent != "" {
		hdr.Set("User-Agent", opts.UserAgent)
	}

	d := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: opts.HandshakeTimeout,
		TLSClientConfig:  opts.TLSConfig,
	}
	ws, resp, err := d.DialContext(ctx, endpoint, hdr)
	if err != nil {
		if ctxErr := ctx.Err(); stderrs.Is(ctxErr, context.DeadlineExceeded) {
			return nil, perr.Wrap(err, perr.ErrorCodeTimeout, "engine.io: dial timed out")
		}
		if resp != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeConnection, "engine.io: handshake rejected with status %d", resp.StatusCode)
		}
		return nil, perr.Wrap(err, perr.ErrorCodeConnection, "engine.io: dial")
	}

	// the open packet must arrive within the handshake window or the ctx deadline
	deadline := time.Now().Add(opts.HandshakeTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	_ = ws.SetReadDeadline(deadline)
	open, err := readOpen(ws)
	if err != nil {
		_ = ws.Close()
		return nil, err
	}

	c := &Conn{
		ws:    ws,
		open:  open,
		wtime: opts.WriteTimeout,
		log:   logger.Named("engineio"),
		msgs:  make(chan []byte, 16),
		done:  make(chan struct{}),
	}
	c.log.Debug().
		Str("sid", open.SID).
		Int("ping_interval_ms", open.PingInterval).
		Int("ping_timeout_ms", open.PingTimeout).
		Msg("engine.io session open")

	go c.readLoop()
	return c, nil
}

func readOpen(ws *websocket.Conn) (OpenPayload, error) {
	mt, data, err := ws.ReadMessage()
	if err != nil {
		if isTimeout(err) {
			return OpenPayload{}, perr.Wrap(err, perr.ErrorCodeTimeout, "engine.io: no open packet")
		}
		return OpenPayload{}, perr.Wrap(err, perr.ErrorCodeConnection, "engine.io: read open packet")
	}
	if mt != websocket.TextMessage {
		return OpenPayload{}, perr.Protocolf("engine.io: open packet in a binary frame")
	}
	p, err := DecodePacket(data)
	if err != nil {
		return OpenPayload{}, err
	}
	return decodeOpen(p)
}

// Open returns the handshake parameters sent by the server
func (c *Conn) Open() OpenPayload { return c.open }

// Messages yields message payloads; the channel closes when the session ends
func (c *Conn) Messages() <-chan []byte { return c.msgs }

// Done is closed once the session has ended for any reason
func (c *Conn) Done() <-chan struct{} { return c.done }

// Err returns why the session ended, nil while it is still open
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Send writes a message packet
func (c *Conn) Send(data []byte) error {
	if limit := c.open.MaxPayload; limit > 0 && len(data)+1 > limit {
		return perr.Protocolf("engine.io: payload of %d bytes exceeds server max %d", len(data)+1, limit)
	}
	return c.write(Packet{Type: PacketMessage, Data: data})
}

// Close sends a close packet and tears the socket down; safe to call twice
func (c *Conn) Close() error {
	select {
	case <-c.done:
		return nil
	default:
	}
	_ = c.write(Packet{Type: PacketClose})
	c.shutdown(ErrClosed)
	return nil
}

func (c *Conn) write(p Packet) error {
	select {
	case <-c.done:
		return perr.Wrap(c.Err(), perr.ErrorCodeConnection, "engine.io: write on closed connection")
	default:
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.wtime))
	if err := c.ws.WriteMessage(websocket.TextMessage, p.Encode()); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeConnection, "engine.io: write %s packet", p.Type)
	}
	return nil
}

// heartbeatWindow is how long the reader waits for any frame before giving up
func (c *Conn) heartbeatWindow() time.Duration {
	iv := time.Duration(c.open.PingInterval) * time.Millisecond
	if iv <= 0 {
		iv = defaultPingInterval
	}
	to := time.Duration(c.open.PingTimeout) * time.Millisecond
	if to <= 0 {
		to = defaultPingTimeout
	}
	return iv + to
}

func (c *Conn) readLoop() {
	defer close(c.msgs)
	window := c.heartbeatWindow()
	for {
		_ = c.ws.SetReadDeadline(time.Now().Add(window))
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			c.shutdown(c.classifyReadErr(err))
			return
		}
		if mt != websocket.TextMessage {
			c.log.Warn().Int("bytes", len(data)).Msg("dropping binary frame")
			continue
		}
		p, err := DecodePacket(data)
		if err != nil {
			c.shutdown(err)
			return
		}
		switch p.Type {
		case PacketPing:
			if err := c.write(Packet{Type: PacketPong, Data: p.Data}); err != nil {
				c.shutdown(err)
				return
			}
		case PacketMessage:
			select {
			case c.msgs <- p.Data:
			case <-c.done:
				return
			}
		case PacketClose:
			c.shutdown(perr.Connectionf("engine.io: server closed the session"))
			return
		case PacketNoop, PacketPong:
		default:
			c.log.Debug().Str("type", p.Type.String()).Msg("ignoring packet")
		}
	}
}

func (c *Conn) classifyReadErr(err error) error {
	select {
	case <-c.done:
		// closed locally; keep the original cause
		return c.Err()
	default:
	}
	if isTimeout(err) {
		return perr.Wrapf(err, perr.ErrorCodeConnection, "engine.io: no heartbeat within %s", c.heartbeatWindow())
	}
	return perr.Wrap(err, perr.ErrorCodeConnection, "engine.io: read")
}

func (c *Conn) shutdown(cause error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.err = cause
		c.mu.Unlock()
		close(c.done)
		_ = c.ws.Close()
		if cause != nil && cause != ErrClosed {
			c.log.Debug().Err(cause).Msg("engine.io session ended")
		}
	})
}

func isTimeout(err error) bool {
	var ne net.Error
	return stderrs.As(err, &ne) && ne.Timeout()
}
