/*
Copyright 2025 The realtime-optimizer Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package logging owns logger construction for the optimizer service.
// All components log through logr.Logger; zap is the backing sink.
package logging

import (
	"context"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

// Verbosity levels used with logger.V(...). INFO is the default level;
// DEBUG and TRACE are progressively chattier.
const (
	INFO  = 0
	DEBUG = 1
	TRACE = 2
)

type contextKey struct{}

// NewLogger builds the production logger. Verbosity selects the highest
// enabled V level; debug additionally switches to the development encoder.
func NewLogger(verbosity int, debug bool) (logr.Logger, error) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	// zapr maps logr V levels onto negative zap levels.
	cfg.Level = zap.NewAtomicLevelAt(zapcore.Level(-verbosity))
	zl, err := cfg.Build()
	if err != nil {
		return logr.Logger{}, err
	}
	return zapr.NewLogger(zl), nil
}

// NewTestLogger returns a logger that writes through the test runner,
// so suite output stays attached to the failing test.
func NewTestLogger(t zaptest.TestingT) logr.Logger {
	return zapr.NewLogger(zaptest.NewLogger(t, zaptest.Level(zapcore.Level(-TRACE))))
}

// IntoContext stores the logger in ctx for retrieval with FromContext.
func IntoContext(ctx context.Context, logger logr.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger stored in ctx, or a discarding logger
// when none was attached.
func FromContext(ctx context.Context) logr.Logger {
	if logger, ok := ctx.Value(contextKey{}).(logr.Logger); ok {
		return logger
	}
	return logr.Discard()
}
