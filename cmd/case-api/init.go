package main

import (
	"github.com/verifyhub/case-engine/internal/config"
	"github.com/verifyhub/case-engine/pkg/log"
	"go.uber.org/zap"
)

// setup loads the configuration and installs the global logger. The returned
// func restores the previous logger and flushes the new one.
func setup() (*config.Config, func(), error) {
	cfg, err := config.New()
	if err != nil {
		return nil, func() {}, err
	}

	logger := log.InitLog(log.ParseLevel(cfg.Service.LogLevel), cfg.Service.LogFormat)
	undo := zap.ReplaceGlobals(logger)

	return cfg, func() {
		_ = logger.Sync()
		undo()
	}, nil
}
