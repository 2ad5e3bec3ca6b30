//go:build linux
// +build linux

package main

import (
	"os"

	"go.uber.org/zap"

	"github.com/gmgr/gmgr/internal/gpio"
)

// newBackend defaults to the real character-device backend, but honors
// GMGR_BACKEND=mock so a linux box without wired hardware can still run the
// full HTTP surface against simulated pins.
func newBackend(log *zap.Logger) gpio.Backend {
	if os.Getenv("GMGR_BACKEND") == "mock" {
		log.Info("using mock gpio backend (GMGR_BACKEND=mock)")
		return gpio.NewMockBackend()
	}
	return gpio.NewGpiocdevBackend(log.Sugar())
}
