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

package mac

import (
	"github.com/openthread/ot-macsim/channel"
	"github.com/openthread/ot-macsim/csma"
	"github.com/openthread/ot-macsim/frame"
	"github.com/openthread/ot-macsim/logger"
	"github.com/openthread/ot-macsim/radioclock"
)

// TxState is the retry state of a DATA transaction.
type TxState uint8

const (
	TxPending TxState = iota
	TxAwaitingAck
	TxSuccess
	TxRetrying
	TxFailed
)

var txStateNames = [...]string{"Pending", "AwaitingAck", "Success", "Retrying", "Failed"}

func (s TxState) String() string {
	return txStateNames[s]
}

func (s TxState) terminal() bool {
	return s == TxSuccess || s == TxFailed
}

// transaction is one DATA request in flight. Its request slot is held until the confirm.
type transaction struct {
	req      *Request
	delivery *channel.Delivery[*Request, Confirm]
	buf      *frame.Buffer

	state      TxState
	maxRetries int
	retries    int
	attempts   int
	overruns   int
	backoff    *csma.Backoff
	status     Status
	lastTx     radioclock.Instant

	// outstanding counts the driver tasks of the current attempt that have not reported yet
	outstanding int

	// ackTag tags the attempt's WaitForAck until it reports
	ackTag uint64
}

func newTransaction(d *channel.Delivery[*Request, Confirm], maxRetries int, backoff *csma.Backoff) *transaction {
	return &transaction{
		req:        d.Msg,
		delivery:   d,
		buf:        d.Msg.Frame,
		state:      TxPending,
		maxRetries: maxRetries,
		backoff:    backoff,
	}
}

// dispatched moves Pending to AwaitingAck as the attempt's tasks are committed.
func (t *transaction) dispatched(tasks int) {
	logger.AssertTrue(t.state == TxPending, "dispatch in state %s", t.state)
	t.state = TxAwaitingAck
	t.outstanding = tasks
}

// transmitted records that the frame went on the air.
func (t *transaction) transmitted(at radioclock.Instant) {
	t.attempts++
	t.lastTx = at
	if !t.req.AckRequest {
		t.succeed()
	}
}

func (t *transaction) succeed() {
	logger.AssertTrue(t.state == TxAwaitingAck, "success in state %s", t.state)
	t.state = TxSuccess
	t.status = StatusSuccess
}

// noAck counts a missed acknowledgment; the transaction returns to Pending while retries remain.
func (t *transaction) noAck() {
	logger.AssertTrue(t.state == TxAwaitingAck, "no-ack in state %s", t.state)
	t.state = TxRetrying
	t.retries++
	if t.retries <= t.maxRetries {
		t.state = TxPending
		t.backoff.Reset()
		return
	}
	t.fail(StatusNoAck)
}

// channelBusy runs one more backoff round, or fails with a channel access failure.
func (t *transaction) channelBusy() {
	logger.AssertTrue(t.state == TxAwaitingAck, "cca busy in state %s", t.state)
	if t.backoff.Busy() {
		t.state = TxPending
		return
	}
	t.fail(StatusChannelAccessFailure)
}

// overrun puts a transmission that could not start on time back to Pending.
func (t *transaction) overrun(limit int) {
	t.overruns++
	if t.overruns > limit {
		t.fail(StatusSchedulingError)
		return
	}
	t.state = TxPending
}

func (t *transaction) fail(st Status) {
	t.state = TxFailed
	t.status = st
}

func (t *transaction) confirm() Confirm {
	return Confirm{
		Op:        OpData,
		Handle:    t.req.Handle,
		Status:    t.status,
		Retries:   t.retries,
		Attempts:  t.attempts,
		Timestamp: t.lastTx,
	}
}
