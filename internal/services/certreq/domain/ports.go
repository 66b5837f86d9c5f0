package domain

import (
	"context"
	"encoding/json"
)

// Requester is the external port of the certreq module
type Requester interface {
	// Request opens a fresh connection, emits request-cert and returns the ack
	Request(ctx context.Context, cc ClusterConfig) (*Response, error)
}

// Session is one joined real-time connection
type Session interface {
	EmitWithAck(ctx context.Context, event string, args ...any) ([]json.RawMessage, error)
	Close() error
}

// Dialer opens sessions; ctx bounds the wait for the namespace connect
type Dialer interface {
	Dial(ctx context.Context, rawURL string) (Session, error)
}

// Ports are optional dependencies injected into the certreq module
type Ports struct {
	Dialer Dialer // defaults to the Socket.IO dialer
}
