package config

import (
	"errors"
	"io/fs"

	perr "clustercert/internal/platform/errors"

	"github.com/BurntSushi/toml"
)

// DecodeTOMLFile decodes the TOML file at path into v
// Keys present in the file that v does not declare are returned so callers can log them
func DecodeTOMLFile(path string, v any) (undecoded []string, err error) {
	md, err := toml.DecodeFile(path, v)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, perr.Wrapf(err, perr.ErrorCodeConfig, "config file %s not found", path)
		}
		return nil, perr.Wrapf(err, perr.ErrorCodeConfig, "parse config file %s", path)
	}
	for _, k := range md.Undecoded() {
		undecoded = append(undecoded, k.String())
	}
	return undecoded, nil
}
