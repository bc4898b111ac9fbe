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
	"container/heap"

	"github.com/openthread/ot-macsim/logger"
	"github.com/openthread/ot-macsim/radioclock"
)

type eventType uint8

const (
	eventTxStart eventType = iota
	eventTxDone
	eventFrameStart
	eventFrameEnd
	eventAckTimeout
	eventWakeup
)

var eventTypeNames = [...]string{"TxStart", "TxDone", "FrameStart", "FrameEnd", "AckTimeout", "Wakeup"}

func (t eventType) String() string {
	return eventTypeNames[t]
}

type radioEvent struct {
	Type      eventType
	Timestamp radioclock.Instant
	// Gen ties the event to one programmed task; zero for medium events.
	Gen  uint64
	Data []byte

	seq   uint64
	index int
}

type eventHeap []*radioEvent

func (eh eventHeap) Len() int {
	return len(eh)
}

func (eh eventHeap) Less(i, j int) bool {
	if eh[i].Timestamp != eh[j].Timestamp {
		return eh[i].Timestamp < eh[j].Timestamp
	}
	return eh[i].seq < eh[j].seq
}

func (eh eventHeap) Swap(i, j int) {
	a, b := eh[i], eh[j]
	if a.index != i && b.index != j {
		logger.Panicf("wrong index")
	}

	eh[i], eh[j] = b, a
	eh[i].index, eh[j].index = i, j
}

func (eh *eventHeap) Push(x interface{}) {
	e := x.(*radioEvent)
	*eh = append(*eh, e)
	e.index = len(*eh) - 1
}

func (eh *eventHeap) Pop() (elem interface{}) {
	n := len(*eh)
	elem = (*eh)[n-1]
	*eh = (*eh)[:n-1]
	return
}

// eventQueue orders radio events by timestamp, then by insertion.
type eventQueue struct {
	q   eventHeap
	seq uint64
}

func newEventQueue() *eventQueue {
	return &eventQueue{}
}

func (eq *eventQueue) Add(e *radioEvent) {
	eq.seq++
	e.seq = eq.seq
	heap.Push(&eq.q, e)
}

func (eq *eventQueue) Len() int {
	return len(eq.q)
}

func (eq *eventQueue) NextTimestamp() radioclock.Instant {
	if len(eq.q) == 0 {
		return radioclock.Never
	}
	return eq.q[0].Timestamp
}

func (eq *eventQueue) NextEvent() *radioEvent {
	if len(eq.q) == 0 {
		return nil
	}
	return eq.q[0]
}

func (eq *eventQueue) PopNext() *radioEvent {
	return heap.Pop(&eq.q).(*radioEvent)
}
