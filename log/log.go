// Package log builds the zap loggers used by the peerdid tools. Library
// packages accept a *zap.Logger through their options and default to a nop
// logger; only binaries construct loggers here.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// ConsoleEncoder writes human readable lines.
	ConsoleEncoder = "console"
	// JSONEncoder writes one JSON object per entry.
	JSONEncoder = "json"
)

// where logs go by default.
var (
	mu        sync.RWMutex
	logWriter io.Writer = os.Stderr
)

// SetOutput overwrites the destination of loggers created afterwards.
// A nil writer restores stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		w = os.Stderr
	}
	logWriter = w
}

func output() io.Writer {
	mu.RLock()
	defer mu.RUnlock()
	return logWriter
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg
}

// NewEncoder returns the encoder for the given kind.
func NewEncoder(kind string) (zapcore.Encoder, error) {
	switch strings.ToLower(kind) {
	case "", ConsoleEncoder:
		return zapcore.NewConsoleEncoder(encoderConfig()), nil
	case JSONEncoder:
		return zapcore.NewJSONEncoder(encoderConfig()), nil
	default:
		return nil, fmt.Errorf("unknown log encoder %q", kind)
	}
}

// NewWithLevel creates a logger with a fixed level and with a set of (optional) hooks.
func NewWithLevel(module string,
	level zap.AtomicLevel,
	encoder zapcore.Encoder,
	hooks ...func(zapcore.Entry) error,
) *zap.Logger {
	core := zapcore.NewCore(encoder, zapcore.AddSync(output()), level)
	return zap.New(zapcore.RegisterHooks(core, hooks...)).Named(module)
}

// New parses level and encoder names and creates a logger.
func New(module, level, encoder string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	enc, err := NewEncoder(encoder)
	if err != nil {
		return nil, err
	}
	return NewWithLevel(module, lvl, enc), nil
}

// Levels maps module names to level names and hands out named sub loggers
// with the level configured for them.
type Levels struct {
	root     *zap.Logger
	fallback zap.AtomicLevel
	levels   map[string]string
}

// NewLevels creates a Levels set on top of root.
func NewLevels(root *zap.Logger, fallback zapcore.Level, levels map[string]string) *Levels {
	return &Levels{root: root, fallback: zap.NewAtomicLevelAt(fallback), levels: levels}
}

// Named returns a sub logger for module, filtered by its configured level.
func (l *Levels) Named(module string) *zap.Logger {
	lvl := l.fallback
	if name, ok := l.levels[module]; ok {
		if parsed, err := zap.ParseAtomicLevel(strings.ToLower(name)); err == nil {
			lvl = parsed
		} else {
			l.root.Warn("invalid log level, using default",
				zap.String("module", module),
				zap.String("level", name),
				zap.Error(err),
			)
		}
	}
	return l.root.Named(module).WithOptions(zap.IncreaseLevel(lvl))
}
