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

// Package radioclock implements the radio timebase: a monotonic nanosecond timeline on which all driver
// task deadlines and RMARKER timestamps are expressed.
package radioclock

import (
	"fmt"
	"math"

	"github.com/openthread/ot-macsim/types"
)

// Instant is a point on the radio timeline in nanoseconds since the clock epoch.
type Instant uint64

// Duration is a signed span of radio time in nanoseconds.
type Duration int64

// Never is the instant that is never reached. Arithmetic involving Never saturates to Never.
const Never = Instant(math.MaxUint64)

const (
	Nanosecond  Duration = 1
	Microsecond          = 1000 * Nanosecond
	Millisecond          = 1000 * Microsecond
	Second               = 1000 * Millisecond
	Symbol      Duration = types.SymbolDurationNs
)

// Symbols returns the duration of n PHY symbols.
func Symbols(n int64) Duration {
	return Duration(n) * Symbol
}

// Micros returns the duration of n microseconds.
func Micros(n int64) Duration {
	return Duration(n) * Microsecond
}

// Add returns i+d, saturating at 0 and below Never.
func (i Instant) Add(d Duration) Instant {
	if i == Never {
		return Never
	}
	if d < 0 {
		if Instant(-d) > i {
			return 0
		}
		return i - Instant(-d)
	}
	if Instant(d) >= Never-i {
		return Never
	}
	return i + Instant(d)
}

// Sub returns i-j.
func (i Instant) Sub(j Instant) Duration {
	return Duration(i - j)
}

func (i Instant) Before(j Instant) bool {
	return i < j
}

func (i Instant) After(j Instant) bool {
	return i > j
}

// Micros returns the instant in whole microseconds, the resolution of pcap records.
func (i Instant) Micros() uint64 {
	return uint64(i) / uint64(Microsecond)
}

func (i Instant) String() string {
	if i == Never {
		return "never"
	}
	return fmt.Sprintf("%d.%06dms", uint64(i)/uint64(Millisecond), uint64(i)%uint64(Millisecond))
}

// Symbols returns d in whole symbols, rounded towards zero.
func (d Duration) Symbols() int64 {
	return int64(d / Symbol)
}

func (d Duration) Micros() int64 {
	return int64(d / Microsecond)
}

func (d Duration) String() string {
	if d%Microsecond == 0 {
		return fmt.Sprintf("%dus", int64(d/Microsecond))
	}
	return fmt.Sprintf("%dns", int64(d))
}

// Max returns the later of two instants.
func Max(a, b Instant) Instant {
	if a > b {
		return a
	}
	return b
}
