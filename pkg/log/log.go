// Package log centralizes the structured logger used across the
// coordinator, scheduler, and auction tasks. It is a thin convenience
// layer over pingcap/log so call sites never import zap or pingcap/log
// directly.
package log

import (
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// L returns the global logger.
func L() *zap.Logger {
	return log.L()
}

// InitLogger configures the global logger level. Valid levels are the
// usual zap level names: "debug", "info", "warn", "error".
func InitLogger(level string) error {
	conf := &log.Config{Level: level}
	logger, props, err := log.InitLogger(conf)
	if err != nil {
		return err
	}
	log.ReplaceGlobals(logger, props)
	return nil
}
