package module

import (
	"context"
	"encoding/json"

	"clustercert/internal/adapters/engineio"
	"clustercert/internal/adapters/socketio"
	"clustercert/internal/core/version"
	modkit "clustercert/internal/modkit"
	"clustercert/internal/platform/logger"
	"clustercert/internal/services/certreq/domain"
)

// WithDialer lets callers swap the transport without exposing domain.Ports in main
func WithDialer(d domain.Dialer) modkit.Option {
	return modkit.WithPorts(domain.Ports{Dialer: d})
}

// EventError is the event the center uses to report problems outside an ack
const EventError = "error"

// socketDialer joins the center through the Socket.IO client
type socketDialer struct {
	opts socketio.Options
	log  *logger.Logger
}

func newSocketDialer(o Options, log *logger.Logger) socketDialer {
	d := socketDialer{log: log}
	d.opts = socketio.Options{
		Namespace: o.Namespace,
		OnAny:     d.logEvent,
		Engine: engineio.Options{
			UserAgent:        version.UserAgent(),
			HandshakeTimeout: o.ConnectTimeout,
		},
	}
	return d
}

// logEvent records server events the request flow does not consume
func (d socketDialer) logEvent(event string, args []json.RawMessage) {
	ev := d.log.Info()
	if event == EventError {
		ev = d.log.Warn()
	}
	ev.Str("event", event).Str("args", (&domain.Response{Args: args}).String()).Msg("server event")
}

// Dial satisfies domain.Dialer
func (d socketDialer) Dial(ctx context.Context, rawURL string) (domain.Session, error) {
	c, err := socketio.Dial(ctx, rawURL, d.opts)
	if err != nil {
		return nil, err
	}
	d.log.Debug().Str("namespace", c.Namespace()).Str("sid", c.SID()).Msg("joined namespace")
	return c, nil
}
