package engineio

import (
	"net/url"
	"strings"

	perr "clustercert/internal/platform/errors"
)

// Protocol constants for the handshake query
const (
	DefaultPath      = "/socket.io/"
	ProtocolRevision = "4"
	TransportName    = "websocket"
)

// BuildURL turns a server URL into the WebSocket endpoint for Engine.IO
// http maps to ws and https to wss; the path is replaced with path (DefaultPath when empty)
// Existing query parameters are kept next to EIO and transport
func BuildURL(raw, path string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "engine.io: parse url %q", raw)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", perr.InvalidArgf("engine.io: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", perr.InvalidArgf("engine.io: url %q has no host", raw)
	}
	if path == "" {
		path = DefaultPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	u.Path = path
	u.RawPath = ""
	u.Fragment = ""

	q := u.Query()
	q.Set("EIO", ProtocolRevision)
	q.Set("transport", TransportName)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
