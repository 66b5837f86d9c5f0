// Package domain holds the cluster certificate request types and ports
package domain

import (
	"bytes"
	"encoding/json"
	"strings"

	perr "clustercert/internal/platform/errors"
)

// ClusterConfig identifies a cluster to the center
// Both values are opaque and sent as-is on the connect query
type ClusterConfig struct {
	ClusterID     string `toml:"cluster_id" validate:"required"`
	ClusterSecret string `toml:"cluster_secret" validate:"required"`
}

// Certificate is the cert/key pair the center hands out
type Certificate struct {
	Cert string `json:"cert"`
	Key  string `json:"key"`
}

// Response carries the ack arguments of request-cert exactly as received
// RunID is the run_id the request was logged under
type Response struct {
	Args  []json.RawMessage
	RunID string
}

// String renders the arguments as a tuple, e.g. (null, {"cert":"C","key":"K"})
func (r *Response) String() string {
	if r == nil {
		return "()"
	}
	parts := make([]string, 0, len(r.Args))
	for _, a := range r.Args {
		parts = append(parts, string(a))
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Decode reads the (err, {cert, key}) shape
// A single array argument ([err, {cert, key}]) is unwrapped first
func (r *Response) Decode() (*Certificate, error) {
	if r == nil {
		return nil, perr.Protocolf("request-cert: no response")
	}
	args := r.Args
	if len(args) == 1 && isArray(args[0]) {
		var inner []json.RawMessage
		if err := json.Unmarshal(args[0], &inner); err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeJSON, "request-cert: decode ack array")
		}
		args = inner
	}
	if len(args) == 0 {
		return nil, perr.Protocolf("request-cert: empty ack")
	}
	if !isNull(args[0]) {
		return nil, perr.Remotef("request-cert: center returned an error: %s", remoteMessage(args[0]))
	}
	if len(args) < 2 || isNull(args[1]) {
		return nil, perr.Protocolf("request-cert: ack carries no certificate")
	}

	var cert Certificate
	if err := json.Unmarshal(args[1], &cert); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeJSON, "request-cert: decode certificate")
	}
	if cert.Cert == "" || cert.Key == "" {
		return nil, perr.Protocolf("request-cert: certificate payload missing cert or key")
	}
	return &cert, nil
}

func isNull(b json.RawMessage) bool {
	t := bytes.TrimSpace(b)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

func isArray(b json.RawMessage) bool {
	t := bytes.TrimSpace(b)
	return len(t) > 0 && t[0] == '['
}

// remoteMessage prefers {"message": ...}, then a bare string, then the raw JSON
func remoteMessage(b json.RawMessage) string {
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(b, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil && s != "" {
		return s
	}
	return string(bytes.TrimSpace(b))
}
