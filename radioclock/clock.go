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
	"time"

	"github.com/pkg/errors"

	"github.com/openthread/ot-macsim/logger"
)

// Clock reads the radio timeline. Now never goes backward.
type Clock interface {
	Now() Instant
}

// SimClock is a manually advanced clock for virtual-time simulation.
type SimClock struct {
	mu  sync.Mutex
	now Instant
}

func NewSimClock(start Instant) *SimClock {
	return &SimClock{now: start}
}

func (c *SimClock) Now() Instant {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AdvanceTo moves the clock forward to t. Moving backward is an error and leaves the clock unchanged.
func (c *SimClock) AdvanceTo(t Instant) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t < c.now {
		return errors.Errorf("clock cannot go backward from %v to %v", c.now, t)
	}
	c.now = t
	return nil
}

// Advance moves the clock forward by d.
func (c *SimClock) Advance(d Duration) Instant {
	logger.AssertTrue(d >= 0, "negative advance")

	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// MonotonicClock follows the host's monotonic clock, with its epoch at construction.
type MonotonicClock struct {
	start time.Time
}

func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{start: time.Now()}
}

func (c *MonotonicClock) Now() Instant {
	return Instant(time.Since(c.start))
}
