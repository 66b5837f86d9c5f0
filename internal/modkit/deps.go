// Package modkit provides module wiring and core deps
package modkit

import (
	"clustercert/internal/platform/config"
	"clustercert/internal/platform/logger"
)

// Deps holds core dependencies passed to modules
// this is wiring only and does not introduce new abstractions
type Deps struct {
	Log *logger.Logger
	Cfg config.Conf
}

// Logger returns Log, falling back to the root logger for zero Deps in tests
func (d Deps) Logger() *logger.Logger {
	if d.Log != nil {
		return d.Log
	}
	return logger.Get()
}
