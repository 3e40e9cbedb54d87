// Copyright (C) 2023 Gobalsky Labs Limited
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// A Level is a logging priority. Higher levels are more important.
type Level int8

// Logging levels (matching zap core internals).
const (
	// DebugLevel logs are typically voluminous, and are usually disabled in
	// production.
	DebugLevel Level = -1
	// InfoLevel is the default logging priority.
	InfoLevel Level = 0
	// WarnLevel logs are more important than Info, but don't need individual
	// human review.
	WarnLevel Level = 1
	// ErrorLevel logs are high-priority. If an application is running smoothly,
	// it shouldn't generate any error-level logs.
	ErrorLevel Level = 2
	// PanicLevel logs a message, then panics.
	PanicLevel Level = 4
	// FatalLevel logs a message, then calls os.Exit(1).
	FatalLevel Level = 5
)

// ZapLevel returns the zap core level matching this level.
func (l Level) ZapLevel() zapcore.Level {
	return zapcore.Level(l)
}

func (l Level) String() string {
	return l.ZapLevel().String()
}

// ParseLevel parses a level from its string representation.
func ParseLevel(level string) (Level, error) {
	l := strings.ToLower(strings.TrimSpace(level))
	var zl zapcore.Level
	if err := zl.UnmarshalText([]byte(l)); err != nil {
		return InfoLevel, fmt.Errorf("invalid log level: %s", level)
	}
	return Level(zl), nil
}

// Logger is a thin wrapper over a zap logger. It remembers the dynamic
// level so that it can be changed at runtime, and the hierarchical name
// given through Named.
type Logger struct {
	*zap.Logger
	level zap.AtomicLevel
	name  string
}

// New returns a logger built from the given zap core and dynamic level.
func New(core zapcore.Core, level zap.AtomicLevel) *Logger {
	return &Logger{
		Logger: zap.New(core),
		level:  level,
	}
}

// NewDevLogger returns a logger with a human friendly console encoder
// writing to stderr, at debug level.
func NewDevLogger() *Logger {
	return newLoggerAt(DebugLevel, zap.NewDevelopmentEncoderConfig(), true)
}

// NewProdLogger returns a JSON encoded logger writing to stderr at info
// level.
func NewProdLogger() *Logger {
	return newLoggerAt(InfoLevel, zap.NewProductionEncoderConfig(), false)
}

// NewLoggerFromConfig builds a logger as specified in the given config.
func NewLoggerFromConfig(cfg Config) *Logger {
	if cfg.Environment == "dev" {
		log := NewDevLogger()
		log.SetLevel(cfg.Level)
		return log
	}
	log := NewProdLogger()
	log.SetLevel(cfg.Level)
	return log
}

func newLoggerAt(level Level, encCfg zapcore.EncoderConfig, console bool) *Logger {
	atom := zap.NewAtomicLevelAt(level.ZapLevel())
	var enc zapcore.Encoder
	if console {
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}
	ws, _, err := zap.Open("stderr")
	if err != nil {
		panic(err)
	}
	return New(zapcore.NewCore(enc, ws, atom), atom)
}

// GetLevel returns the current level of the logger.
func (log *Logger) GetLevel() Level {
	return Level(log.level.Level())
}

// SetLevel changes the level of the logger, and all loggers derived from it.
func (log *Logger) SetLevel(level Level) {
	if log.level.Level() == level.ZapLevel() {
		return
	}
	log.level.SetLevel(level.ZapLevel())
}

// GetName returns the hierarchical name of this logger, empty for the root.
func (log *Logger) GetName() string {
	return log.name
}

// Named adds a sub-scope to the logger's name.
func (log *Logger) Named(name string) *Logger {
	newName := name
	if log.name != "" {
		newName = fmt.Sprintf("%s.%s", log.name, name)
	}
	return &Logger{
		Logger: log.Logger.Named(name),
		level:  log.level,
		name:   newName,
	}
}

// With creates a child logger with the given fields attached.
func (log *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{
		Logger: log.Logger.With(fields...),
		level:  log.level,
		name:   log.name,
	}
}

// IsDebug returns true if the logger level is at or below debug.
func (log *Logger) IsDebug() bool {
	return log.GetLevel() <= DebugLevel
}

// AtExit flushes the logs before exiting the process. This is meant to be
// used with defer when initializing your logger.
func (log *Logger) AtExit() {
	if log.Logger != nil {
		_ = log.Logger.Sync()
	}
}
