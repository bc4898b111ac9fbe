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

package logger

import (
	"net/url"
	"sync"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
)

const (
	fileSinkScheme = "lumberjack"

	LogFileMaxSizeMb  = 10
	LogFileMaxBackups = 3
)

var (
	registerFileSink sync.Once
	fileSinkMutex    sync.Mutex
	fileSinks        []*lumberjack.Logger
)

type fileSink struct {
	*lumberjack.Logger
}

func (fileSink) Sync() error {
	return nil
}

func newFileSink(u *url.URL) (zap.Sink, error) {
	path := u.Opaque
	if path == "" {
		path = u.Path
	}
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    LogFileMaxSizeMb,
		MaxBackups: LogFileMaxBackups,
	}
	fileSinkMutex.Lock()
	fileSinks = append(fileSinks, lj)
	fileSinkMutex.Unlock()
	return fileSink{lj}, nil
}

// SetLogFile copies the log to a size-rotated file at path, next to stderr.
func SetLogFile(path string) error {
	var err error
	registerFileSink.Do(func() {
		err = zap.RegisterSink(fileSinkScheme, newFileSink)
	})
	if err != nil {
		return err
	}
	return setOutput([]string{"stderr", fileSinkScheme + ":" + path})
}

// CloseLogFile logs to stderr only again and closes the log files.
func CloseLogFile() {
	_ = setOutput([]string{"stderr"})

	fileSinkMutex.Lock()
	defer fileSinkMutex.Unlock()
	for _, lj := range fileSinks {
		_ = lj.Close()
	}
	fileSinks = nil
}
