package version

import "testing"

func TestUserAgent(t *testing.T) {
	if got := UserAgent(); got != "openbmclapi-cluster/1.7.3" {
		t.Fatalf("UserAgent() = %q", got)
	}
}

func TestInfoDefaults(t *testing.T) {
	bi := Info()
	if bi.Service != "clustercert" || bi.Version != "dev" || bi.Protocol != ProtocolVersion {
		t.Fatalf("Info() = %+v", bi)
	}
}
