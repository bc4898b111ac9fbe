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

// Package csma implements the unslotted CSMA/CA backoff procedure of IEEE 802.15.4.
package csma

import (
	"math/rand"

	"github.com/openthread/ot-macsim/logger"
	"github.com/openthread/ot-macsim/radioclock"
	"github.com/openthread/ot-macsim/types"
)

// Params are the PIB bounds of one backoff procedure.
type Params struct {
	MinBE       uint8
	MaxBE       uint8
	MaxBackoffs uint8
}

func DefaultParams() Params {
	return Params{
		MinBE:       types.DefaultMinBE,
		MaxBE:       types.DefaultMaxBE,
		MaxBackoffs: types.DefaultMaxBackoffs,
	}
}

// UnitBackoffPeriod is aTurnaroundTime + aCcaTime.
var UnitBackoffPeriod = radioclock.Symbols(types.UnitBackoffPeriod)

// Backoff holds NB and BE for one transmission. Each round draws a delay, the CCA bundled into the
// Tx task reports busy or idle, and Busy advances the round.
type Backoff struct {
	params Params
	rng    *rand.Rand
	nb     uint8
	be     uint8
}

func New(params Params, rng *rand.Rand) *Backoff {
	logger.AssertTrue(params.MinBE <= params.MaxBE, "macMinBE %d > macMaxBE %d", params.MinBE, params.MaxBE)
	b := &Backoff{
		params: params,
		rng:    rng,
	}
	b.Reset()
	return b
}

// Reset starts a new procedure with NB = 0 and BE = macMinBE.
func (b *Backoff) Reset() {
	b.nb = 0
	b.be = b.params.MinBE
}

// Delay draws the wait before this round's CCA, uniformly in [0, 2^BE - 1] unit backoff periods.
func (b *Backoff) Delay() radioclock.Duration {
	periods := b.rng.Int63n(int64(1) << b.be)
	return radioclock.Duration(periods) * UnitBackoffPeriod
}

// Busy records a busy channel. It returns false once NB exceeds macMaxCsmaBackoffs, which ends the
// procedure with a channel access failure.
func (b *Backoff) Busy() bool {
	b.nb++
	if b.be < b.params.MaxBE {
		b.be++
	}
	return b.nb <= b.params.MaxBackoffs
}

// BE returns the current backoff exponent.
func (b *Backoff) BE() uint8 {
	return b.be
}

// NB returns the number of busy rounds so far.
func (b *Backoff) NB() uint8 {
	return b.nb
}

// Rounds returns the number of CCA rounds started, including the current one.
func (b *Backoff) Rounds() int {
	return int(b.nb) + 1
}
