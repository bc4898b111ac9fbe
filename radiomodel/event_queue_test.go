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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openthread/ot-macsim/radioclock"
)

func TestEventQueue_Len(t *testing.T) {
	q := newEventQueue()
	assert.Equal(t, 0, q.Len())
	q.Add(&radioEvent{Timestamp: 2})
	assert.Equal(t, 1, q.Len())
	q.Add(&radioEvent{Timestamp: 1})
	assert.Equal(t, 2, q.Len())
}

func TestEventQueue_NextTimestamp(t *testing.T) {
	q := newEventQueue()
	assert.Equal(t, radioclock.Never, q.NextTimestamp())
	assert.Nil(t, q.NextEvent())
	q.Add(&radioEvent{Timestamp: 2, Data: []byte{0, 1, 2}})
	assert.Equal(t, radioclock.Instant(2), q.NextTimestamp())
	q.Add(&radioEvent{Timestamp: 1})
	assert.Equal(t, radioclock.Instant(1), q.NextTimestamp())
	assert.Equal(t, []byte(nil), q.NextEvent().Data)
}

func TestEventQueue_PopNext(t *testing.T) {
	q := newEventQueue()
	q.Add(&radioEvent{Timestamp: 2, Type: eventTxDone})
	q.Add(&radioEvent{Timestamp: 1, Type: eventTxStart})
	q.Add(&radioEvent{Timestamp: 2, Type: eventWakeup})
	q.Add(&radioEvent{Timestamp: 3, Type: eventFrameEnd})

	var order []eventType
	for q.Len() > 0 {
		order = append(order, q.PopNext().Type)
	}
	// equal timestamps keep insertion order
	assert.Equal(t, []eventType{eventTxStart, eventTxDone, eventWakeup, eventFrameEnd}, order)
	assert.Equal(t, "FrameEnd", eventFrameEnd.String())
}
