package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"clustercert/internal/core/version"
	"clustercert/internal/modkit"
	"clustercert/internal/modkit/module"
	"clustercert/internal/platform/config"
	perr "clustercert/internal/platform/errors"
	"clustercert/internal/platform/logger"
	pstrings "clustercert/internal/platform/strings"

	certdom "clustercert/internal/services/certreq/domain"
	certmod "clustercert/internal/services/certreq/module"
	certsvc "clustercert/internal/services/certreq/service"
)

// output seams; tests swap these
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// extra module options; tests use this to inject a dialer
var moduleOpts []modkit.Option

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string) int {
	root := config.New()
	l := logger.Named("clustercert-request")

	fs := flag.NewFlagSet("clustercert-request", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		fConfig  = fs.String("config", "config.toml", "TOML file holding cluster_id and cluster_secret")
		fCenter  = fs.String("center", "", "center base URL (default $CORE_CERTREQ_CENTER_URL or "+certsvc.DefaultCenterURL+")")
		fConnect = fs.Duration("connect-timeout", 0, "max wait for the namespace connect (default $CORE_CERTREQ_CONNECT_TIMEOUT or 10s)")
		fAck     = fs.Duration("ack-timeout", 0, "max wait for the request-cert ack (default $CORE_CERTREQ_ACK_TIMEOUT or 10s)")
		fFormat  = fs.String("format", root.Prefix("CORE_CERTREQ_").MayEnum("FORMAT", "raw", "raw", "pem"), "output: raw prints the ack tuple, pem prints cert then key")
		fVersion = fs.Bool("version", false, "print build info and exit")
	)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return perr.ExitOK
		}
		return perr.ExitConfig
	}

	if *fVersion {
		b, _ := json.Marshal(version.Info())
		fmt.Fprintln(stdout, string(b))
		return perr.ExitOK
	}
	if *fFormat != "raw" && *fFormat != "pem" {
		return fail(l, perr.InvalidArgf("unknown -format %q (want raw or pem)", *fFormat))
	}

	if strings.TrimSpace(*fConfig) == "" {
		return fail(l, perr.Configf("-config must name a TOML file"))
	}
	// config file is read before any network activity
	cc, err := certsvc.LoadClusterConfig(*fConfig)
	if err != nil {
		return fail(l, err)
	}
	l.Info().
		Str("config", *fConfig).
		Str("cluster_id", cc.ClusterID).
		Str("cluster_secret", pstrings.Redact(cc.ClusterSecret)).
		Msg("cluster config loaded")

	deps := modkit.Deps{Log: l, Cfg: root}
	cm, err := certmod.New(deps, certmod.Options{
		CenterURL:      *fCenter,
		ConnectTimeout: *fConnect,
		AckTimeout:     *fAck,
	}, moduleOpts...)
	if err != nil {
		return fail(l, err)
	}
	module.Register(cm.Name(), cm.Ports())

	requester := module.MustPortsOf[certdom.Requester](cm)

	start := time.Now()
	resp, err := requester.Request(ctx, cc)
	if err != nil {
		return fail(l, err)
	}
	l.Info().Str("run_id", resp.RunID).Dur("elapsed", time.Since(start)).Msg("certificate response received")

	switch *fFormat {
	case "pem":
		cert, err := resp.Decode()
		if err != nil {
			return fail(l, err)
		}
		fmt.Fprintln(stdout, cert.Cert)
		fmt.Fprintln(stdout, cert.Key)
	default:
		fmt.Fprintln(stdout, resp.String())
	}
	return perr.ExitOK
}

// fail logs err with its code and returns the mapped exit status
func fail(l *logger.Logger, err error) int {
	ev := l.Error().Err(err).Str("code", perr.CodeOf(err).String())
	if e, ok := perr.As(err); ok {
		if e.Field() != "" {
			ev = ev.Str("field", e.Field())
		}
		if e.Op() != "" {
			ev = ev.Str("op", e.Op())
		}
	}
	ev.Msg("certificate request failed")
	return perr.ExitCode(err)
}
