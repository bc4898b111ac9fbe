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

package channel

import (
	"container/heap"

	"github.com/openthread/ot-macsim/logger"
	"github.com/openthread/ot-macsim/radioclock"
)

type deadlineItem struct {
	at    radioclock.Instant
	seq   uint64
	slot  int
	index int
}

type deadlineQueue []*deadlineItem

func (dq deadlineQueue) Len() int {
	return len(dq)
}

func (dq deadlineQueue) Less(i, j int) bool {
	return dq.before(dq[i], dq[j])
}

func (dq deadlineQueue) before(a, b *deadlineItem) bool {
	if a.at != b.at {
		return a.at < b.at
	}
	return a.seq < b.seq
}

func (dq deadlineQueue) Swap(i, j int) {
	a, b := dq[i], dq[j]
	if a.index != i || b.index != j {
		logger.Panicf("wrong index")
	}

	dq[i], dq[j] = b, a
	dq[i].index, dq[j].index = i, j
}

func (dq *deadlineQueue) Push(x interface{}) {
	e := x.(*deadlineItem)
	*dq = append(*dq, e)
	e.index = len(*dq) - 1
}

func (dq *deadlineQueue) Pop() (elem interface{}) {
	n := len(*dq)
	elem = (*dq)[n-1]
	*dq = (*dq)[:n-1]
	return
}

// NewDeadlineOrdered creates a channel whose timestamped messages form a deadline-ordered sub-queue.
// Messages for which deadline reports false are best effort and keep their commit order. The consumer
// gets the earliest deadline message, unless best-effort work is queued and the earliest deadline is
// more than cfg.IdleGap away.
func NewDeadlineOrdered[Req, Resp any](name string, cfg Config, clock radioclock.Clock,
	deadline func(Req) (radioclock.Instant, bool)) *Channel[Req, Resp] {
	c := New[Req, Resp](name, cfg)
	c.clock = clock
	c.deadline = deadline
	c.deadlines = deadlineQueue{}
	heap.Init(&c.deadlines)
	return c
}

func (c *Channel[Req, Resp]) pushDeadlineLocked(at radioclock.Instant, idx int) {
	c.seq++
	heap.Push(&c.deadlines, &deadlineItem{at: at, seq: c.seq, slot: idx})
}

func (c *Channel[Req, Resp]) pickLocked(match func(Req) bool) (int, bool) {
	fi := -1
	for i, idx := range c.fifo {
		if match == nil || match(c.slots[idx].msg) {
			fi = i
			break
		}
	}

	var earliest *deadlineItem
	for _, it := range c.deadlines {
		if match != nil && !match(c.slots[it.slot].msg) {
			continue
		}
		if earliest == nil || c.deadlines.before(it, earliest) {
			earliest = it
		}
	}

	takeFifo := func() (int, bool) {
		idx := c.fifo[fi]
		c.fifo = append(c.fifo[:fi], c.fifo[fi+1:]...)
		return idx, true
	}

	switch {
	case earliest == nil && fi < 0:
		return 0, false
	case earliest == nil:
		return takeFifo()
	case fi >= 0 && earliest.at.Sub(c.clock.Now()) > c.cfg.IdleGap:
		return takeFifo()
	default:
		heap.Remove(&c.deadlines, earliest.index)
		return earliest.slot, true
	}
}
