// Copyright 2015 Matthew Holt and The Caddy Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package dlog is the process-wide logging sink used by every
// component of dropperoni. It is a single, non-pluggable analogue of
// Caddy's own logging.go: there is no config-driven writer registry
// here, just one console-encoded zap logger that every package pulls
// from with Log().
package dlog

import (
	"io"
	"os"
	"sync"

	"github.com/DeRuina/timberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

var (
	mu      sync.RWMutex
	logger  = mustNewLogger(os.Stderr, isTTY(os.Stderr))
)

// Configure replaces the default logger's sink. An empty logFile keeps
// stderr as the sink; otherwise writes are rotated through timberjack
// the way Caddy rotates its own file sinks.
func Configure(logFile string) error {
	var w io.Writer = os.Stderr
	colorize := isTTY(os.Stderr)

	if logFile != "" {
		w = &timberjack.Logger{
			Filename:   logFile,
			MaxSize:    100, // megabytes
			MaxBackups: 10,
			MaxAge:     28, // days
			Compress:   true,
		}
		colorize = false
	}

	l := mustNewLogger(w, colorize)

	mu.Lock()
	logger = l
	mu.Unlock()
	return nil
}

// Log returns the current process-wide logger.
func Log() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// For mirrors Caddy's convention of tagging every logger with the
// component that owns it.
func For(component string) *zap.Logger {
	return Log().With(zap.String("component", component))
}

func mustNewLogger(w io.Writer, colorize bool) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if colorize {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	encoder := zapcore.NewConsoleEncoder(encCfg)
	core := zapcore.NewCore(encoder, zapcore.AddSync(w), zapcore.InfoLevel)
	return zap.New(core)
}

func isTTY(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
