//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.
// All rights reserved.
//
// If you have downloaded a copy of the trpc-workflow-go source code from Tencent,
// please note that trpc-workflow-go source code is licensed under the  Apache 2.0 License,
// A copy of the Apache 2.0 License is included in this file.
//
//

// Package log is the logging facade of the workflow engine. The package
// helpers write to Default, a zap sugared logger unless replaced.
package log

import (
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Levels accepted by SetLevel.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
	LevelFatal = "fatal"
)

// Formats accepted by SetFormat.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Field keys attached by ForRun and ForNode.
const (
	KeyRun  = "run"
	KeyNode = "node"
)

// Logger is implemented by *zap.SugaredLogger.
type Logger interface {
	Debug(args ...any)
	Debugf(format string, args ...any)
	Info(args ...any)
	Infof(format string, args ...any)
	Warn(args ...any)
	Warnf(format string, args ...any)
	Error(args ...any)
	Errorf(format string, args ...any)
	Fatal(args ...any)
	Fatalf(format string, args ...any)
}

var (
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

	mu     sync.Mutex
	output io.Writer = os.Stdout
)

// Default receives the package-level calls. Replace it to route logs
// elsewhere; SetFormat rebuilds it.
var Default Logger = New(os.Stdout)

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.LevelKey = "lvl"
	cfg.MessageKey = "message"
	cfg.EncodeTime = zapcore.RFC3339TimeEncoder
	cfg.EncodeDuration = zapcore.StringDurationEncoder
	return cfg
}

func build(w io.Writer, format string) *zap.SugaredLogger {
	cfg := encoderConfig()
	var enc zapcore.Encoder
	if format == FormatJSON {
		enc = zapcore.NewJSONEncoder(cfg)
	} else {
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(cfg)
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(w), level)
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()
}

// New returns a console logger writing to w at the shared level.
func New(w io.Writer) *zap.SugaredLogger {
	return build(w, FormatConsole)
}

// NewJSON returns a JSON logger writing to w at the shared level.
func NewJSON(w io.Writer) *zap.SugaredLogger {
	return build(w, FormatJSON)
}

// SetLevel changes the level of every logger built by this package.
// Unknown names select info.
func SetLevel(name string) {
	l, err := zapcore.ParseLevel(name)
	if err != nil {
		l = zapcore.InfoLevel
	}
	level.SetLevel(l)
}

// SetFormat replaces Default with a logger of the given format on the
// current output.
func SetFormat(format string) {
	mu.Lock()
	defer mu.Unlock()
	Default = build(output, format)
}

// SetOutput replaces Default with a console logger writing to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	Default = New(w)
}

// With returns Default carrying keysAndValues. Loggers other than zap's
// do not support fields and are returned unchanged.
func With(keysAndValues ...any) Logger {
	if s, ok := Default.(*zap.SugaredLogger); ok {
		return s.With(keysAndValues...)
	}
	return Default
}

// ForRun tags lines with a run id.
func ForRun(runID string) Logger {
	return With(KeyRun, runID)
}

// ForNode tags lines with a run id and a node id.
func ForNode(runID, nodeID string) Logger {
	return With(KeyRun, runID, KeyNode, nodeID)
}

func Debug(args ...any)                 { Default.Debug(args...) }
func Debugf(format string, args ...any) { Default.Debugf(format, args...) }
func Info(args ...any)                  { Default.Info(args...) }
func Infof(format string, args ...any)  { Default.Infof(format, args...) }
func Warn(args ...any)                  { Default.Warn(args...) }
func Warnf(format string, args ...any)  { Default.Warnf(format, args...) }
func Error(args ...any)                 { Default.Error(args...) }
func Errorf(format string, args ...any) { Default.Errorf(format, args...) }

// Fatal logs and exits the process.
func Fatal(args ...any) { Default.Fatal(args...) }

// Fatalf logs and exits the process.
func Fatalf(format string, args ...any) { Default.Fatalf(format, args...) }
