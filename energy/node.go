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

package energy

import (
	"github.com/openthread/ot-macsim/logger"
	. "github.com/openthread/ot-macsim/types"
)

type radioEnergy struct {
	radio RadioStatus
}

func (node *radioEnergy) computeRadioState(timestamp uint64) {
	if timestamp < node.radio.Timestamp {
		return
	}
	delta := timestamp - node.radio.Timestamp
	switch {
	case node.radio.State == RadioOff:
		node.radio.SpentOff += delta
	case node.radio.State.IsTransmitting():
		node.radio.SpentTx += delta
	case node.radio.State.IsReceiving():
		node.radio.SpentRx += delta
	default:
		logger.Panicf("unknown radio state: %v", node.radio.State)
	}
	node.radio.Timestamp = timestamp
}

func (node *radioEnergy) setRadioState(state RadioState, timestamp uint64) {
	// the time spent in the previous state is accounted first.
	node.computeRadioState(timestamp)
	node.radio.State = state
}

func (node *radioEnergy) consumption() Consumption {
	return Consumption{
		Timestamp: node.radio.Timestamp,
		Off:       float64(node.radio.SpentOff) * RadioOffConsumption,
		Tx:        float64(node.radio.SpentTx) * RadioTxConsumption,
		Rx:        float64(node.radio.SpentRx) * RadioRxConsumption,
	}
}
