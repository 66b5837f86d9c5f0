package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"clustercert/internal/adapters/socketio/socketiotest"
	"clustercert/internal/modkit"
	perr "clustercert/internal/platform/errors"
	"clustercert/internal/platform/testkit"
	certdom "clustercert/internal/services/certreq/domain"
	certmod "clustercert/internal/services/certreq/module"
	certsvc "clustercert/internal/services/certreq/service"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func captureOutput(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	testkit.Swap[io.Writer](t, &stdout, &out)
	testkit.Swap[io.Writer](t, &stderr, &errOut)
	return &out, &errOut
}

func certServer(t *testing.T, ack []any) *socketiotest.Server {
	return socketiotest.New(t, socketiotest.Options{
		Acks: map[string]socketiotest.AckFunc{
			certsvc.EventRequestCert: func([]json.RawMessage) ([]any, bool) { return ack, true },
		},
	})
}

const goodConfig = "cluster_id = \"abc\"\ncluster_secret = \"xyz\"\n"

func TestRun_PrintsRawResponse(t *testing.T) {
	out, _ := captureOutput(t)
	srv := certServer(t, []any{nil, map[string]string{"cert": "C", "key": "K"}})

	code := run(context.Background(), []string{"-config", writeConfig(t, goodConfig), "-center", srv.URL, "-ack-timeout", "2s"})
	if code != perr.ExitOK {
		t.Fatalf("exit code = %d", code)
	}
	got := out.String()
	testkit.MustContain(t, got, `"cert":"C"`)
	testkit.MustContain(t, got, `"key":"K"`)
	if strings.TrimSpace(got) != `(null, {"cert":"C","key":"K"})` {
		t.Fatalf("stdout = %q", got)
	}
}

func TestRun_PEMFormat(t *testing.T) {
	out, _ := captureOutput(t)
	srv := certServer(t, []any{nil, map[string]string{"cert": "-----CERT-----", "key": "-----KEY-----"}})

	code := run(context.Background(), []string{"-config", writeConfig(t, goodConfig), "-center", srv.URL, "-format", "pem"})
	if code != perr.ExitOK {
		t.Fatalf("exit code = %d", code)
	}
	if out.String() != "-----CERT-----\n-----KEY-----\n" {
		t.Fatalf("stdout = %q", out.String())
	}
}

func TestRun_RemoteErrorInPEMFormat(t *testing.T) {
	out, _ := captureOutput(t)
	srv := certServer(t, []any{map[string]string{"message": "cluster disabled"}})

	code := run(context.Background(), []string{"-config", writeConfig(t, goodConfig), "-center", srv.URL, "-format", "pem"})
	if code != perr.ExitSoftware {
		t.Fatalf("exit code = %d, want %d", code, perr.ExitSoftware)
	}
	if out.Len() != 0 {
		t.Fatalf("stdout should be empty, got %q", out.String())
	}
}

// countingDialer fails every dial and counts the attempts
type countingDialer struct{ calls int }

func (d *countingDialer) Dial(context.Context, string) (certdom.Session, error) {
	d.calls++
	return nil, perr.Connectionf("unreachable")
}

func TestRun_ConfigErrorsNeverDial(t *testing.T) {
	captureOutput(t)
	d := &countingDialer{}
	testkit.Swap(t, &moduleOpts, []modkit.Option{certmod.WithDialer(d)})

	cases := []string{
		writeConfig(t, "cluster_id = \"abc\"\n"),
		writeConfig(t, "cluster_id = [\n"),
		filepath.Join(t.TempDir(), "missing.toml"),
		" ",
	}
	for _, p := range cases {
		if code := run(context.Background(), []string{"-config", p}); code != perr.ExitConfig {
			t.Fatalf("config %s exit code = %d, want %d", p, code, perr.ExitConfig)
		}
	}
	if d.calls != 0 {
		t.Fatalf("dialer called %d times", d.calls)
	}
}

func TestRun_ExitCodes(t *testing.T) {
	captureOutput(t)
	cfg := writeConfig(t, goodConfig)

	hold := socketiotest.New(t, socketiotest.Options{HoldConnect: true})
	reject := socketiotest.New(t, socketiotest.Options{RejectConnect: "bad secret"})

	cases := []struct {
		name string
		args []string
		want int
	}{
		{"bad flag", []string{"-nope"}, perr.ExitConfig},
		{"bad format", []string{"-config", cfg, "-format", "der"}, perr.ExitConfig},
		{"bad center", []string{"-config", cfg, "-center", "not a url"}, perr.ExitConfig},
		{"negative timeout", []string{"-config", cfg, "-ack-timeout", "-1s"}, perr.ExitConfig},
		{"unreachable", []string{"-config", cfg, "-center", "http://127.0.0.1:1"}, perr.ExitUnavailable},
		{"unauthorized", []string{"-config", cfg, "-center", reject.URL}, perr.ExitNoPerm},
		{"connect timeout", []string{"-config", cfg, "-center", hold.URL, "-connect-timeout", "150ms"}, perr.ExitTempFail},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := run(context.Background(), c.args); got != c.want {
				t.Fatalf("exit code = %d, want %d", got, c.want)
			}
		})
	}
	if n := hold.EventCount(certsvc.EventRequestCert); n != 0 {
		t.Fatalf("request-cert emitted before connect ack (%d)", n)
	}
}

func TestRun_VersionAndHelp(t *testing.T) {
	out, _ := captureOutput(t)
	if code := run(context.Background(), []string{"-version"}); code != perr.ExitOK {
		t.Fatalf("exit code = %d", code)
	}
	testkit.MustContain(t, out.String(), `"protocol":"1.7.3"`)

	if code := run(context.Background(), []string{"-h"}); code != perr.ExitOK {
		t.Fatalf("-h exit code = %d", code)
	}
}

func TestRun_Cancelled(t *testing.T) {
	captureOutput(t)
	hold := socketiotest.New(t, socketiotest.Options{HoldConnect: true})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)
	code := run(ctx, []string{"-config", writeConfig(t, goodConfig), "-center", hold.URL})
	if code != perr.ExitFailure {
		t.Fatalf("exit code = %d, want %d", code, perr.ExitFailure)
	}
}

func TestRun_ResponseLineCarriesRunID(t *testing.T) {
	captureOutput(t)
	srv := certServer(t, []any{nil})

	if code := run(context.Background(), []string{"-config", writeConfig(t, goodConfig), "-center", srv.URL}); code != perr.ExitOK {
		t.Fatalf("exit code = %d", code)
	}
	for _, line := range strings.Split(logs.String(), "\n") {
		if !strings.Contains(line, `"message":"certificate response received"`) {
			continue
		}
		var rec struct {
			RunID string `json:"run_id"`
		}
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("log line %q: %v", line, err)
		}
		if rec.RunID == "" {
			t.Fatalf("response line without run_id: %s", line)
		}
		for _, other := range strings.Split(logs.String(), "\n") {
			if strings.Contains(other, `"message":"connected"`) && strings.Contains(other, `"run_id":"`+rec.RunID+`"`) {
				return
			}
		}
		t.Fatalf("no connected line under run_id %s", rec.RunID)
	}
	t.Fatalf("response line missing; logs:\n%s", logs.String())
}

func TestRun_FormatDefaultFromEnv(t *testing.T) {
	out, _ := captureOutput(t)
	t.Setenv("CORE_CERTREQ_FORMAT", "PEM")
	srv := certServer(t, []any{nil, map[string]string{"cert": "C", "key": "K"}})

	if code := run(context.Background(), []string{"-config", writeConfig(t, goodConfig), "-center", srv.URL}); code != perr.ExitOK {
		t.Fatalf("exit code = %d", code)
	}
	if out.String() != "C\nK\n" {
		t.Fatalf("stdout = %q", out.String())
	}

	out.Reset()
	if code := run(context.Background(), []string{"-config", writeConfig(t, goodConfig), "-center", srv.URL, "-format", "raw"}); code != perr.ExitOK {
		t.Fatalf("exit code = %d", code)
	}
	testkit.MustContain(t, out.String(), `{"cert":"C","key":"K"}`)
}
