// Package service implements the cluster certificate request
package service

import (
	"context"
	"net/url"
	"strings"
	"time"

	perr "clustercert/internal/platform/errors"
	"clustercert/internal/platform/logger"
	pstrings "clustercert/internal/platform/strings"
	"clustercert/internal/platform/validate"
	"clustercert/internal/services/certreq/domain"

	"github.com/google/uuid"
)

// Wire-level constants of the center
const (
	DefaultCenterURL      = "https://openbmclapi.bangbang93.com"
	EventRequestCert      = "request-cert"
	DefaultConnectTimeout = 10 * time.Second
	DefaultAckTimeout     = 10 * time.Second
)

// Config controls where and how long the request waits
type Config struct {
	CenterURL      string
	ConnectTimeout time.Duration
	AckTimeout     time.Duration
}

// Service implements domain.Requester
type Service struct {
	dialer domain.Dialer
	cfg    Config
	newID  func() string
}

// New constructs the requester; zero config fields take the defaults
func New(d domain.Dialer, cfg Config) *Service {
	if cfg.CenterURL == "" {
		cfg.CenterURL = DefaultCenterURL
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = DefaultAckTimeout
	}
	return &Service{dialer: d, cfg: cfg, newID: uuid.NewString}
}

// ConnectURL appends the cluster credentials to the center URL
// Keys are clusterId then clusterSecret; values are query escaped
func ConnectURL(center string, cc domain.ClusterConfig) string {
	q := url.Values{}
	q.Set("clusterId", cc.ClusterID)
	q.Set("clusterSecret", cc.ClusterSecret)
	sep := "?"
	if strings.Contains(center, "?") {
		sep = "&"
	}
	return center + sep + q.Encode()
}

// Request connects, emits request-cert and returns the ack arguments
// Every call uses its own connection, closed before returning
func (s *Service) Request(ctx context.Context, cc domain.ClusterConfig) (*domain.Response, error) {
	if err := validate.Struct(cc); err != nil {
		return nil, perr.WithOp(err, "certreq.request")
	}

	// a run id set by the caller is kept so its own log lines correlate
	runID := logger.RunID(ctx)
	if runID == "" {
		runID = s.newID()
	}
	ctx = logger.WithRun(ctx, runID, cc.ClusterID)
	log := logger.C(ctx)

	target := ConnectURL(s.cfg.CenterURL, cc)
	log.Debug().Str("url", pstrings.RedactQuery(target, "clusterSecret")).Msg("connecting to center")

	start := time.Now()
	dctx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	sess, err := s.dialer.Dial(dctx, target)
	dialCtxErr := dctx.Err()
	cancel()
	if err != nil {
		if _, ok := perr.As(err); !ok {
			if dialCtxErr == context.DeadlineExceeded {
				err = perr.Timeoutf("no connect within %s: %v", s.cfg.ConnectTimeout, err)
			} else {
				err = perr.Wrap(err, perr.ErrorCodeConnection, "connect to center")
			}
		}
		log.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("connect failed")
		return nil, perr.WithOp(err, "certreq.connect")
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("close session")
		}
	}()
	// no level: shown at every LOG_LEVEL but disabled
	log.Log().Dur("elapsed", time.Since(start)).Msg("connected")

	actx, cancel := context.WithTimeout(ctx, s.cfg.AckTimeout)
	defer cancel()
	args, err := sess.EmitWithAck(actx, EventRequestCert)
	if err != nil {
		if _, ok := perr.As(err); !ok {
			if actx.Err() == context.DeadlineExceeded {
				err = perr.Timeoutf("no %s ack within %s: %v", EventRequestCert, s.cfg.AckTimeout, err)
			} else {
				err = perr.Wrap(err, perr.ErrorCodeEmit, "emit "+EventRequestCert)
			}
		}
		log.Error().Err(err).Msg("request-cert failed")
		return nil, perr.WithOp(err, "certreq.emit")
	}
	log.Info().Int("args", len(args)).Dur("elapsed", time.Since(start)).Msg("request-cert acknowledged")
	return &domain.Response{Args: args, RunID: runID}, nil
}
