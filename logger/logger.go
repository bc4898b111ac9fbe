// Copyright (c) 2024, The OTNS Authors.
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
// 1. Redistributions of source code must retain the above copyright
//    notice, this list of conditions and the following disclaimer.
// 2. Redistributions in binary form must reproduce the above copyright
//    notice, this list of conditions and the following disclaimer in the
//    documentation and/or other materials provided with the distribution.
// 3. Neither the name of the copyright holder nor the
//    names of its contributors may be used to endorse or promote products
//    derived from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE
// ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE
// LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR
// CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF
// SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN
// CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE)
// ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
// POSSIBILITY OF SUCH DAMAGE.
// Package logger provides leveled logging for the MAC core and its simulator.
package logger

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

// Level is the log-level. Values follow the OT logging.h scale, extended with Micro for per-symbol tracing.
type Level int8

const (
	MicroLevel   Level = 7
	TraceLevel   Level = 6
	DebugLevel   Level = 5
	InfoLevel    Level = 4
	NoteLevel    Level = 3
	WarnLevel    Level = 2
	ErrorLevel   Level = 1
	PanicLevel   Level = 0
	FatalLevel   Level = -1
	OffLevel     Level = -2
	DefaultLevel       = InfoLevel
)

// TimeSource renders the current radio time attached to every log entry.
type TimeSource func() string

const radioTimeKey = "radio"

var (
	buildMutex   sync.Mutex
	outputPaths  = []string{"stderr"}
	zaplogger    atomic.Pointer[zap.Logger]
	currentLevel atomic.Int32
	timeSource   atomic.Value
)

func init() {
	currentLevel.Store(int32(DefaultLevel))
	if err := rebuild(); err != nil {
		panic(err)
	}
}

// zapLevel maps a level onto the closest zap level. Everything more verbose than Debug logs as Debug.
func zapLevel(lv Level) zapcore.Level {
	switch {
	case lv >= DebugLevel:
		return zapcore.DebugLevel
	case lv >= NoteLevel:
		return zapcore.InfoLevel
	case lv == WarnLevel:
		return zapcore.WarnLevel
	case lv == ErrorLevel:
		return zapcore.ErrorLevel
	case lv == PanicLevel:
		return zapcore.DPanicLevel
	default:
		return zapcore.FatalLevel
	}
}

func zapConfig() zap.Config {
	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeCaller = nil
	enc.CallerKey = zapcore.OmitKey
	enc.StacktraceKey = zapcore.OmitKey
	if term.IsTerminal(int(os.Stderr.Fd())) {
		enc.EncodeLevel = zapcore.LowercaseColorLevelEncoder
	} else {
		enc.EncodeLevel = zapcore.LowercaseLevelEncoder
	}
	return zap.Config{
		Level:            zap.NewAtomicLevelAt(zapcore.DebugLevel),
		Encoding:         "console",
		EncoderConfig:    enc,
		OutputPaths:      outputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}
}

func rebuild() error {
	l, err := zapConfig().Build()
	if err != nil {
		return err
	}
	if old := zaplogger.Swap(l); old != nil {
		_ = old.Sync()
	}
	return nil
}

// setOutput replaces the output paths, e.g. []string{"stderr", "lumberjack:macsim.log"}.
func setOutput(paths []string) error {
	buildMutex.Lock()
	defer buildMutex.Unlock()
	prev := outputPaths
	outputPaths = paths
	if err := rebuild(); err != nil {
		outputPaths = prev
		return err
	}
	return nil
}

// SetLevel sets the log level
func SetLevel(lv Level) {
	currentLevel.Store(int32(lv))
}

// GetLevel get the current log level
func GetLevel() Level {
	return Level(currentLevel.Load())
}

// SetTimeSource installs the radio time reported with every entry; nil removes it.
func SetTimeSource(ts TimeSource) {
	timeSource.Store(ts)
}

// Sync flushes buffered log entries.
func Sync() {
	_ = zaplogger.Load().Sync()
}

func logf(level Level, format string, args []interface{}) {
	if level > GetLevel() {
		return
	}
	write(zapLevel(level), format, args)
}

func write(lvl zapcore.Level, format string, args []interface{}) {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	l := zaplogger.Load()
	if ts, ok := timeSource.Load().(TimeSource); ok && ts != nil {
		l.Log(lvl, msg, zap.String(radioTimeKey, ts()))
		return
	}
	l.Log(lvl, msg)
}

func Tracef(format string, args ...interface{}) {
	logf(TraceLevel, format, args)
}

func Debugf(format string, args ...interface{}) {
	logf(DebugLevel, format, args)
}

func Infof(format string, args ...interface{}) {
	logf(InfoLevel, format, args)
}

func Warnf(format string, args ...interface{}) {
	logf(WarnLevel, format, args)
}

func Errorf(format string, args ...interface{}) {
	logf(ErrorLevel, format, args)
}

// Panicf logs and then panics, regardless of the current level.
func Panicf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	write(zapcore.ErrorLevel, msg, nil)
	panic(msg)
}

// Fatalf logs and exits the process.
func Fatalf(format string, args ...interface{}) {
	write(zapcore.FatalLevel, format, args)
}

func PanicfIfError(err error, format string, args ...interface{}) {
	if err != nil {
		Panicf(format+": %v", append(args, err)...)
	}
}

// assertLogger turns failed testify assertions into panics.
type assertLogger struct{}

func (assertLogger) Errorf(format string, args ...interface{}) {
	Panicf(format, args...)
}

func AssertEqual(expected, actual interface{}, msgAndArgs ...interface{}) bool {
	return assert.Equal(assertLogger{}, expected, actual, msgAndArgs...)
}

func AssertNil(object interface{}, msgAndArgs ...interface{}) bool {
	return assert.Nil(assertLogger{}, object, msgAndArgs...)
}

func AssertNotNil(object interface{}, msgAndArgs ...interface{}) bool {
	return assert.NotNil(assertLogger{}, object, msgAndArgs...)
}

func AssertTrue(value bool, msgAndArgs ...interface{}) bool {
	return assert.True(assertLogger{}, value, msgAndArgs...)
}

func AssertFalse(value bool, msgAndArgs ...interface{}) bool {
	return assert.False(assertLogger{}, value, msgAndArgs...)
}
