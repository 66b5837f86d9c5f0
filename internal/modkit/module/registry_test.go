package module

import (
	"sync"
	"testing"
)

// requesterPorts stands in for a module's port bundle
type requesterPorts struct {
	Center  string
	Timeout int
}

// registry tests share global state so none of them run in parallel

func TestRegistry_RegisterAndPortsAs(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	want := requesterPorts{Center: "https://center.test", Timeout: 10}
	Register("certreq", want)

	got, ok := PortsAs[requesterPorts]("certreq")
	if !ok || got != want {
		t.Fatalf("PortsAs = %v, %v; want %v", got, ok, want)
	}
}

func TestRegistry_MissingAndMismatch(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	if got, ok := PortsAs[requesterPorts]("missing"); ok || got != (requesterPorts{}) {
		t.Fatalf("missing name = %v, %v", got, ok)
	}
	Register("certreq", requesterPorts{Center: "x"})
	if _, ok := PortsAs[int]("certreq"); ok {
		t.Fatal("expected ok=false for type mismatch")
	}
}

func TestRegistry_OverwriteAndReset(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	Register("certreq", requesterPorts{Center: "a"})
	Register("certreq", requesterPorts{Center: "b"})
	if got, _ := PortsAs[requesterPorts]("certreq"); got.Center != "b" {
		t.Fatalf("expected overwritten value, got %v", got)
	}
	Reset()
	if _, ok := PortsAs[requesterPorts]("certreq"); ok {
		t.Fatal("expected ok=false after reset")
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	const n = 100
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			Register("certreq", requesterPorts{Center: "c", Timeout: i})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			_, _ = PortsAs[requesterPorts]("certreq")
		}
	}()
	wg.Wait()

	if got, ok := PortsAs[requesterPorts]("certreq"); !ok || got.Center != "c" {
		t.Fatalf("final value = %v, %v", got, ok)
	}
}
