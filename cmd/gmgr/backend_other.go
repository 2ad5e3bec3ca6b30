//go:build !linux
// +build !linux

package main

import (
	"go.uber.org/zap"

	"github.com/gmgr/gmgr/internal/gpio"
)

func newBackend(log *zap.Logger) gpio.Backend {
	log.Warn("gpio character device backend requires linux, using mock backend")
	return gpio.NewMockBackend()
}
