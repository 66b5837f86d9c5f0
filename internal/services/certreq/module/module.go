// Package module implements the certreq module
package module

import (
	"clustercert/internal/modkit"
	perr "clustercert/internal/platform/errors"
	"clustercert/internal/platform/validate"
	"clustercert/internal/services/certreq/domain"
	"clustercert/internal/services/certreq/service"
)

// Ports exposed by the certreq module
type Ports struct {
	Requester domain.Requester
}

// Module implements modkit.Module
type Module struct {
	deps  modkit.Deps
	opts  Options
	ports Ports
}

// New constructs the certreq module
// Env options come from deps.Cfg; non-zero overrides win
func New(deps modkit.Deps, overrides Options, opts ...modkit.Option) (*Module, error) {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("certreq"),
	}, opts...)...)

	cfg := merge(FromConfig(deps.Cfg), overrides)
	if err := validate.Struct(cfg); err != nil {
		return nil, perr.WithOp(perr.Wrap(err, perr.ErrorCodeConfig, "certreq options"), "certreq.module")
	}

	log := deps.Logger().With().Str("module", "certreq").Logger()
	var dialer domain.Dialer = newSocketDialer(cfg, &log)
	if b.Ports != nil {
		ports, ok := b.Ports.(domain.Ports)
		if !ok {
			panic("certreq module: expected WithPorts(certreq/domain.Ports)")
		}
		if ports.Dialer != nil {
			dialer = ports.Dialer
		}
	}

	svc := service.New(dialer, service.Config{
		CenterURL:      cfg.CenterURL,
		ConnectTimeout: cfg.ConnectTimeout,
		AckTimeout:     cfg.AckTimeout,
	})

	deps.Logger().Debug().
		Str("center", cfg.CenterURL).
		Dur("connect_timeout", cfg.ConnectTimeout).
		Dur("ack_timeout", cfg.AckTimeout).
		Str("namespace", cfg.Namespace).
		Msg("certreq module ready")

	return &Module{deps: deps, opts: cfg, ports: Ports{Requester: svc}}, nil
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return "certreq" }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

// Options returns the effective options after merging env and overrides
func (m *Module) Options() Options { return m.opts }

// Compile-time checks
var (
	_ modkit.Module    = (*Module)(nil)
	_ domain.Requester = (*service.Service)(nil)
)
