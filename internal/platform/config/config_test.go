package config

import (
	"testing"
	"time"

	kit "clustercert/internal/platform/testkit"
)

func TestPrefixAndKey(t *testing.T) {
	root := New()
	core := root.Prefix("CORE_")
	if got := core.key("PORT"); got != "CORE_PORT" {
		t.Fatalf("key() = %q, want %q", got, "CORE_PORT")
	}
	// nested prefix
	cr := core.Prefix("CERTREQ_")
	if got := cr.key("CENTER_URL"); got != "CORE_CERTREQ_CENTER_URL" {
		t.Fatalf("nested key() = %q, want %q", got, "CORE_CERTREQ_CENTER_URL")
	}
}

func TestMayString(t *testing.T) {
	c := New().Prefix("S_")
	if got := c.MayString("MISSING", "def"); got != "def" {
		t.Fatalf("MayString default = %q, want %q", got, "def")
	}
	t.Setenv("S_NAME", " clustercert ")
	if got := c.MayString("NAME", "x"); got != "clustercert" {
		t.Fatalf("MayString value = %q, want %q", got, "clustercert")
	}
}

func TestMayDuration(t *testing.T) {
	c := New().Prefix("DUR_")
	if got := c.MayDuration("MISS", 5*time.Second); got != 5*time.Second {
		t.Fatalf("MayDuration default expected")
	}
	t.Setenv("DUR_OK", "150ms")
	if got := c.MayDuration("OK", time.Second); got != 150*time.Millisecond {
		t.Fatalf("MayDuration ok = %v, want %v", got, 150*time.Millisecond)
	}
	t.Setenv("DUR_BAD", "nope")
	if got := c.MayDuration("BAD", time.Minute); got != time.Minute {
		t.Fatalf("MayDuration bad -> default expected")
	}
	t.Setenv("DUR_NEG", "-2s")
	if got := c.MayDuration("NEG", time.Minute); got != time.Minute {
		t.Fatalf("MayDuration negative -> default expected")
	}
}

func TestMayURL(t *testing.T) {
	c := New().Prefix("U_")
	def := "https://openbmclapi.bangbang93.com"
	if got := c.MayURL("MISS", def); got != def {
		t.Fatalf("MayURL default = %q", got)
	}
	t.Setenv("U_OK", "http://127.0.0.1:4000")
	if got := c.MayURL("OK", def); got != "http://127.0.0.1:4000" {
		t.Fatalf("MayURL ok = %q", got)
	}
	t.Setenv("U_REL", "/relative")
	if got := c.MayURL("REL", def); got != def {
		t.Fatalf("MayURL relative -> default expected, got %q", got)
	}
	t.Setenv("U_BAD", "://bad")
	if got := c.MayURL("BAD", def); got != def {
		t.Fatalf("MayURL bad -> default expected, got %q", got)
	}
}

func TestMayEnum(t *testing.T) {
	c := New().Prefix("E_")

	// empty uses default and does not panic
	if got := c.MayEnum("MISS", "raw", "raw", "pem"); got != "raw" {
		t.Fatalf("MayEnum default = %q, want %q", got, "raw")
	}

	t.Setenv("E_FMT", "PEM")
	if got := c.MayEnum("FMT", "raw", "raw", "pem"); got != "pem" {
		t.Fatalf("MayEnum allowed value = %q, want %q", got, "pem")
	}

	t.Setenv("E_BAD", "xml")
	kit.MustPanic(t, func() { _ = c.MayEnum("BAD", "raw", "raw", "pem") })
}

func TestMayEnumEmptyDefaultAndMissingEnv(t *testing.T) {
	c := New().Prefix("E_")
	if got := c.MayEnum("MISSING", "", "raw", "pem"); got != "" {
		t.Fatalf("MayEnum with empty def and missing env = %q, want empty string", got)
	}
}
