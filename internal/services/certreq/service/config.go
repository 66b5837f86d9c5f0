package service

import (
	"clustercert/internal/platform/config"
	perr "clustercert/internal/platform/errors"
	"clustercert/internal/platform/logger"
	"clustercert/internal/platform/validate"
	"clustercert/internal/services/certreq/domain"
)

// LoadClusterConfig reads cluster_id and cluster_secret from a TOML file
// Unknown keys are ignored; a missing or empty key is a config error
func LoadClusterConfig(path string) (domain.ClusterConfig, error) {
	var cc domain.ClusterConfig
	undecoded, err := config.DecodeTOMLFile(path, &cc)
	if err != nil {
		return domain.ClusterConfig{}, err
	}
	if len(undecoded) > 0 {
		logger.Named("certreq").Debug().Strs("keys", undecoded).Str("path", path).Msg("ignoring unused config keys")
	}
	if err := validate.Struct(cc); err != nil {
		var field string
		if e, ok := perr.As(err); ok {
			field = e.Field()
		}
		return domain.ClusterConfig{}, perr.WithField(
			perr.Wrapf(err, perr.ErrorCodeConfig, "config file %s", path), field)
	}
	return cc, nil
}
