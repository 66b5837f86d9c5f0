package module

import (
	"time"

	"clustercert/internal/platform/config"
	"clustercert/internal/services/certreq/service"
)

// Options holds configuration settings for the certreq module
type Options struct {
	CenterURL      string        `validate:"required,url"`
	ConnectTimeout time.Duration `validate:"gt=0"`
	AckTimeout     time.Duration `validate:"gt=0"`
	Namespace      string        `validate:"required,startswith=/"`
}

// FromConfig extracts Options from the given config.Conf
func FromConfig(cfg config.Conf) Options {
	cf := cfg.Prefix("CORE_CERTREQ_")
	return Options{
		CenterURL:      cf.MayURL("CENTER_URL", service.DefaultCenterURL),
		ConnectTimeout: cf.MayDuration("CONNECT_TIMEOUT", service.DefaultConnectTimeout),
		AckTimeout:     cf.MayDuration("ACK_TIMEOUT", service.DefaultAckTimeout),
		Namespace:      cf.MayString("NAMESPACE", "/"),
	}
}

// merge lays non-zero overrides over the env derived options
func merge(base, over Options) Options {
	if over.CenterURL != "" {
		base.CenterURL = over.CenterURL
	}
	if over.ConnectTimeout != 0 {
		base.ConnectTimeout = over.ConnectTimeout
	}
	if over.AckTimeout != 0 {
		base.AckTimeout = over.AckTimeout
	}
	if over.Namespace != "" {
		base.Namespace = over.Namespace
	}
	return base
}
