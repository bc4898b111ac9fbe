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

package types

import (
	"github.com/simonlingoogle/go-simplelogger"
)

type ChannelId = int

// RadioState is the state of a radio driver; driver tasks are named after the state they put the radio in.
type RadioState byte

const (
	RadioOff        RadioState = 0
	RadioRx         RadioState = 1
	RadioTx         RadioState = 2
	RadioSendAck    RadioState = 3
	RadioWaitForAck RadioState = 4
)

// RadioStates lists all driver states in declaration order.
var RadioStates = []RadioState{RadioOff, RadioRx, RadioTx, RadioSendAck, RadioWaitForAck}

func (s RadioState) String() string {
	switch s {
	case RadioOff:
		return "Off"
	case RadioRx:
		return "Rx_"
	case RadioTx:
		return "Tx_"
	case RadioSendAck:
		return "SAck"
	case RadioWaitForAck:
		return "WAck"
	default:
		simplelogger.Panicf("invalid RadioState: %d", byte(s))
		return "invalid"
	}
}

// Valid reports whether s is one of the defined driver states.
func (s RadioState) Valid() bool {
	return s <= RadioWaitForAck
}

// IsReceiving reports whether the state listens to the medium.
func (s RadioState) IsReceiving() bool {
	return s == RadioRx || s == RadioWaitForAck
}

// IsTransmitting reports whether the state puts energy on the medium.
func (s RadioState) IsTransmitting() bool {
	return s == RadioTx || s == RadioSendAck
}
