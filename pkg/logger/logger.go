// Copyright (c) 2018 SAP SE or an SAP affiliate company. All rights reserved. This file is licensed under the Apache Software License, v. 2 except as noted otherwise in the LICENSE file
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger provides two loggers: a zap-backed logr.Logger, which every
// command builds and threads through its control loops (Failure
// Orchestrator, Probe Pipeline runs, the probe agent), and a logrus-based
// CLI logger with field/zone/ID helpers.
package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel is a supported log verbosity.
type LogLevel string

const (
	DebugLevel LogLevel = "debug"
	InfoLevel  LogLevel = "info"
	ErrorLevel LogLevel = "error"
)

// Format is a supported log encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// IDFieldName is the field NewIDLogger attaches a random correlation ID
// under.
const IDFieldName = "id"

// Logger is the process-wide CLI logger, set by NewLogger.
var Logger *logrus.Logger

// NewLogger creates a logrus logger writing to stderr at level (defaulting
// to info on an empty or unrecognized value) using format (defaulting to
// JSON), and assigns it to the package-level Logger.
func NewLogger(level LogLevel, format Format) *logrus.Logger {
	l := logrus.New()
	l.Out = os.Stderr

	parsed, err := logrus.ParseLevel(string(level))
	if err != nil {
		parsed = logrus.InfoLevel
	}
	l.Level = parsed

	if format == FormatText {
		l.Formatter = &logrus.TextFormatter{}
	} else {
		l.Formatter = &logrus.JSONFormatter{}
	}

	Logger = l
	return l
}

// NewZapLogger builds a logr.Logger backed by zap, the logger every
// command and control loop uses (controller-runtime components included,
// since they expect a logr.Logger rather than a logrus one). level maps to a zap core level; an invalid level is rejected
// rather than silently defaulted, since webhook server startup is the kind
// of validation failure that should abort before any side effect.
func NewZapLogger(level LogLevel, format Format) (logr.Logger, error) {
	lvl, err := zapLevel(level)
	if err != nil {
		return logr.Logger{}, err
	}
	core := zapcore.NewCore(zapEncoder(format), zapcore.AddSync(os.Stderr), lvl)
	return zapr.NewLogger(zap.New(core)), nil
}

// NewZoneLogger returns an Entry carrying fields that identify a single
// simulation run: zone, and (if runID is non-empty) runID. This is the
// chaos-run analogue of the field the original gardener logger attaches for
// a shoot.
func NewZoneLogger(logger *logrus.Logger, zone, runID string) *logrus.Entry {
	fields := logrus.Fields{"zone": zone}
	if runID != "" {
		fields["runID"] = runID
	}
	return logger.WithFields(fields)
}

// NewFieldLogger returns an Entry carrying one additional key/value field.
func NewFieldLogger(logger *logrus.Logger, key, value string) *logrus.Entry {
	return logger.WithField(key, value)
}

// NewIDLogger returns a FieldLogger carrying a random correlation ID under
// IDFieldName, used to tie together the scattered log lines of a single
// probe-pod invocation.
func NewIDLogger(logger *logrus.Logger) logrus.FieldLogger {
	return logger.WithField(IDFieldName, uuid.NewString())
}

// AddWriter redirects logger's output to w (in addition to replacing it,
// not appending), returning logger for chaining, and updates the
// package-level Logger. Used by tests to redirect CLI output to
// GinkgoWriter.
func AddWriter(logger *logrus.Logger, w io.Writer) *logrus.Logger {
	logger.Out = w
	Logger = logger
	return logger
}

func zapLevel(level LogLevel) (zapcore.Level, error) {
	switch level {
	case DebugLevel:
		return zapcore.DebugLevel, nil
	case InfoLevel, "":
		return zapcore.InfoLevel, nil
	case ErrorLevel:
		return zapcore.ErrorLevel, nil
	default:
		return 0, fmt.Errorf("logger: unsupported log level %q", level)
	}
}

func zapEncoder(format Format) zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if format == FormatText {
		return zapcore.NewConsoleEncoder(cfg)
	}
	return zapcore.NewJSONEncoder(cfg)
}
