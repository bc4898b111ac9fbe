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
	"sync"

	"github.com/openthread/ot-macsim/logger"
)

// CounterClock widens a free-running hardware counter of Bits width into a 64-bit monotonic Instant.
//
// The counter must be read at least once per wrap period; a wrap is detected whenever a raw value
// is lower than the previous one. The widened timeline itself saturates at Never, which with a
// nanosecond resolution is reached after about 584 years.
type CounterClock struct {
	mu     sync.Mutex
	bits   uint
	tick   Duration
	read   func() uint64
	last   uint64
	epochs uint64
}

// NewCounterClock creates a clock on top of read, a counter of the given width incrementing every tick.
func NewCounterClock(bits uint, tick Duration, read func() uint64) *CounterClock {
	logger.AssertTrue(bits > 0 && bits <= 63, "counter width out of range")
	logger.AssertTrue(tick > 0, "counter tick must be positive")
	return &CounterClock{
		bits: bits,
		tick: tick,
		read: read,
	}
}

// WrapPeriod is the time span covered by one revolution of the hardware counter.
func (c *CounterClock) WrapPeriod() Duration {
	return Duration(uint64(1)<<c.bits) * c.tick
}

func (c *CounterClock) Now() Instant {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.extend(c.read())
}

// Extend converts a raw counter capture, e.g. a hardware RMARKER timestamp, to an Instant.
// The capture must not be older than the last value seen by Now or Extend.
func (c *CounterClock) Extend(raw uint64) Instant {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.extend(raw)
}

func (c *CounterClock) extend(raw uint64) Instant {
	mask := uint64(1)<<c.bits - 1
	raw &= mask
	if raw < c.last {
		c.epochs++
	}
	c.last = raw

	limit := uint64(Never) / uint64(c.tick)
	if c.epochs > limit>>c.bits {
		return Never
	}
	ticks := c.epochs<<c.bits | raw
	if ticks > limit {
		return Never
	}
	return Instant(ticks * uint64(c.tick))
}
