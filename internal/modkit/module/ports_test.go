package module

import (
	"strings"
	"testing"
)

// Pinger is a tiny port that bundles can carry
type Pinger interface {
	Ping() string
}

type pinger struct{ reply string }

func (p pinger) Ping() string { return p.reply }

type fakeModule struct {
	name  string
	ports any
}

func (m fakeModule) Name() string { return m.name }
func (m fakeModule) Ports() any   { return m.ports }

func TestPortsOf(t *testing.T) {
	t.Parallel()

	type bundle struct {
		Timeout int
		Pinger  Pinger
	}
	type hidden struct {
		pinger Pinger
	}

	cases := []struct {
		name   string
		ports  any
		ok     bool
		expect string
	}{
		{"nil ports", nil, false, ""},
		{"direct value", Pinger(pinger{"direct"}), true, "direct"},
		{"exported bundle field", bundle{Timeout: 1, Pinger: pinger{"field"}}, true, "field"},
		{"unexported field ignored", hidden{pinger: pinger{"x"}}, false, ""},
		{"unrelated value", 42, false, ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := PortsOf[Pinger](fakeModule{name: c.name, ports: c.ports})
			if ok != c.ok {
				t.Fatalf("ok = %v, want %v", ok, c.ok)
			}
			if ok && got.Ping() != c.expect {
				t.Fatalf("Ping() = %q, want %q", got.Ping(), c.expect)
			}
		})
	}
}

func TestMustPortsOf(t *testing.T) {
	t.Parallel()

	got := MustPortsOf[Pinger](fakeModule{name: "ok", ports: pinger{"pong"}})
	if got.Ping() != "pong" {
		t.Fatalf("Ping() = %q", got.Ping())
	}

	defer func() {
		msg, _ := recover().(string)
		if !strings.Contains(msg, "certreq") || !strings.Contains(msg, "requested port not found") {
			t.Fatalf("panic message = %q", msg)
		}
	}()
	_ = MustPortsOf[Pinger](fakeModule{name: "certreq"})
}
