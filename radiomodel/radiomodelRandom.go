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

package radiomodel

import (
	"math/rand"
	"sync"

	"github.com/openthread/ot-macsim/driver"
	"github.com/openthread/ot-macsim/prng"
	"github.com/openthread/ot-macsim/radioclock"
	. "github.com/openthread/ot-macsim/types"
)

const (
	noiseFloorDbm     DbValue = -95.0
	interfererDbm     DbValue = -65.0
	ccaEdThresholdDbm DbValue = -75.0
	rxRssiDbm         DbValue = -60.0
)

// RandomMedium has an interferer that occupies the channel at random, and loses acknowledgments
// at random. Outcomes are reproducible for a fixed prng root seed.
type RandomMedium struct {
	mu                 sync.Mutex
	rnd                *rand.Rand
	BusyProbability    float64
	AckLossProbability float64
}

func NewRandomMedium(busyProbability, ackLossProbability float64) *RandomMedium {
	return &RandomMedium{
		rnd:                rand.New(rand.NewSource(int64(prng.NewMediumRandomSeed()))),
		BusyProbability:    busyProbability,
		AckLossProbability: ackLossProbability,
	}
}

// ChannelClear compares the sampled energy with the ED threshold. Carrier sense sees the interferer
// as well, since it is an 802.15.4 transmitter.
func (m *RandomMedium) ChannelClear(t radioclock.Instant, ch ChannelId, mode driver.CcaMode) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	energy := sumPowersDbm(noiseFloorDbm)
	if m.rnd.Float64() < m.BusyProbability {
		energy = sumPowersDbm(noiseFloorDbm, interfererDbm)
	}
	return energy <= ccaEdThresholdDbm
}

func (m *RandomMedium) AckReceived(seq uint8) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rnd.Float64() >= m.AckLossProbability
}

func (m *RandomMedium) RxRssi() DbValue {
	return quantizeRssi(rxRssiDbm)
}

func (m *RandomMedium) GetName() string {
	return "Random"
}
