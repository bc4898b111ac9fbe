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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevelString(t *testing.T) {
	for _, name := range []string{"micro", "trace", "debug", "info", "note", "warn", "crit", "off"} {
		lv, err := ParseLevelString(name)
		assert.Nil(t, err)
		assert.Equal(t, name, lv.String())
	}

	lv, err := ParseLevelString("W")
	assert.Nil(t, err)
	assert.Equal(t, WarnLevel, lv)
	assert.Equal(t, "level(0)", PanicLevel.String())

	lv, err = ParseLevelString("loud")
	assert.NotNil(t, err)
	assert.Equal(t, DefaultLevel, lv)
}

func TestSetLevel(t *testing.T) {
	defer SetLevel(DefaultLevel)

	SetLevel(WarnLevel)
	assert.Equal(t, WarnLevel, GetLevel())
	Debugf("filtered %d", 1)
}

func TestAssertPanics(t *testing.T) {
	assert.Panics(t, func() {
		AssertTrue(false, "must panic")
	})
	assert.NotPanics(t, func() {
		AssertEqual(3, 3)
		AssertNil(nil)
	})
}

func TestTimeSource(t *testing.T) {
	defer SetTimeSource(nil)

	called := false
	SetTimeSource(func() string {
		called = true
		return "[1.000ms]"
	})
	Infof("with radio time")
	assert.True(t, called)
}

func TestLogFile(t *testing.T) {
	defer SetLevel(DefaultLevel)
	defer CloseLogFile()

	fn := filepath.Join(t.TempDir(), "macsim.log")
	require.Nil(t, SetLogFile(fn))
	SetLevel(InfoLevel)
	Infof("written to %s", "file")
	Debugf("not written")
	Sync()

	data, err := os.ReadFile(fn)
	require.Nil(t, err)
	assert.Contains(t, string(data), "written to file")
	assert.NotContains(t, string(data), "not written")
}
