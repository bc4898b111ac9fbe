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
	"github.com/openthread/ot-macsim/logger"
	. "github.com/openthread/ot-macsim/types"
)

// RadioNode is the physical status of the simulated radio.
type RadioNode struct {
	// TxPower contains the Tx power used by the node.
	TxPower DbValue

	// RxSensitivity contains the Rx sensitivity in dBm of the node.
	RxSensitivity DbValue

	// RadioState is the hardware state; RadioTx only when physically transmitting.
	RadioState RadioState

	// RadioChannel is the current radio's channel (For Rx, Tx, or sampling).
	RadioChannel ChannelId

	// LastRssi is the signal strength of the last received frame.
	LastRssi DbValue

	stats RadioNodeStats
}

type RadioNodeStats struct {
	NumBytesTx  int
	FramesTx    int
	AcksTx      int
	FramesRx    int
	RxMissed    int
	CcaFailures int
}

func NewRadioNode(ch ChannelId) *RadioNode {
	rn := &RadioNode{
		TxPower:       0,
		RxSensitivity: -100,
		RadioState:    RadioOff,
		LastRssi:      RssiInvalid,
	}
	rn.SetChannel(ch)
	return rn
}

func (rn *RadioNode) SetChannel(ch ChannelId) {
	logger.AssertTrue(ch >= MinChannelNumber && ch <= MaxChannelNumber)
	rn.RadioChannel = ch
}

func (rn *RadioNode) SetRadioState(state RadioState) {
	rn.RadioState = state
}
