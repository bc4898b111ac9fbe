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

package radioclock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSymbols(t *testing.T) {
	assert.Equal(t, Duration(16000), Symbols(1))
	assert.Equal(t, Micros(320), Symbols(20))
	assert.Equal(t, int64(20), Symbols(20).Symbols())
	assert.Equal(t, "320us", Symbols(20).String())
}

func TestInstantArithmetic(t *testing.T) {
	i := Instant(1000)
	assert.Equal(t, Instant(1500), i.Add(500))
	assert.Equal(t, Instant(0), i.Add(-5000))
	assert.Equal(t, Never, (Never - 10).Add(20))
	assert.Equal(t, Never, Never.Add(-1))
	assert.Equal(t, Duration(-500), Instant(500).Sub(1000))
	assert.True(t, i.Before(1001))
	assert.True(t, i.After(999))
	assert.Equal(t, "0.001000ms", i.String())
	assert.Equal(t, "never", Never.String())
}

func TestSimClock(t *testing.T) {
	c := NewSimClock(100)
	assert.Equal(t, Instant(100), c.Now())
	assert.Equal(t, Instant(150), c.Advance(50))
	assert.Nil(t, c.AdvanceTo(200))
	assert.NotNil(t, c.AdvanceTo(199))
	assert.Equal(t, Instant(200), c.Now())
}

func TestMonotonicClock(t *testing.T) {
	c := NewMonotonicClock()
	a := c.Now()
	b := c.Now()
	assert.True(t, b >= a)
}

func TestCounterClockWrap(t *testing.T) {
	var raw uint64
	c := NewCounterClock(8, Microsecond, func() uint64 { return raw })
	assert.Equal(t, Micros(256), c.WrapPeriod())

	raw = 250
	assert.Equal(t, Instant(250*Microsecond), c.Now())

	raw = 4 // wrapped
	assert.Equal(t, Instant(260*Microsecond), c.Now())

	raw = 3 + 256 // upper bits are ignored, wraps again
	assert.Equal(t, Instant(515*Microsecond), c.Now())

	// never goes backward across many wraps
	prev := c.Now()
	for i := 0; i < 2000; i++ {
		raw = (raw + 97) % 256
		now := c.Now()
		assert.True(t, now >= prev)
		prev = now
	}
}

func TestCounterClockExtendCapture(t *testing.T) {
	var raw uint64 = 10
	c := NewCounterClock(16, Symbol, func() uint64 { return raw })
	_ = c.Now()
	assert.Equal(t, Instant(0).Add(Symbols(12)), c.Extend(12))
}

func TestCounterClockWideCounterSaturates(t *testing.T) {
	var raw uint64 = 10
	c := NewCounterClock(63, 1, func() uint64 { return raw })
	assert.Equal(t, Instant(10), c.Now())

	raw = 5
	assert.Equal(t, Instant(1<<63|5), c.Now())

	raw = 3
	assert.Equal(t, Never, c.Now())
	raw = 7
	assert.Equal(t, Never, c.Now())

	raw = 100
	c = NewCounterClock(62, 1, func() uint64 { return raw })
	for i := 0; i < 4; i++ {
		_ = c.Now()
		raw--
	}
	assert.Equal(t, Never, c.Now())
}
