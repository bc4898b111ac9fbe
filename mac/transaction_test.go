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
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openthread/ot-macsim/channel"
	"github.com/openthread/ot-macsim/csma"
	"github.com/openthread/ot-macsim/radioclock"
)

func newTestTransaction(ackRequest bool, maxRetries int) *transaction {
	d := &channel.Delivery[*Request, Confirm]{Msg: &Request{Op: OpData, Handle: 5, Seq: 9, AckRequest: ackRequest}}
	return newTransaction(d, maxRetries, csma.New(csma.DefaultParams(), rand.New(rand.NewSource(1))))
}

// attempt runs one transmission with the given acknowledgment outcome.
func attempt(tx *transaction, acked bool) {
	tx.dispatched(2)
	tx.transmitted(radioclock.Instant(1000))
	if acked {
		tx.succeed()
	} else {
		tx.noAck()
	}
}

func TestTransactionAckedAfterRetries(t *testing.T) {
	tx := newTestTransaction(true, 3)
	assert.Equal(t, TxPending, tx.state)

	for i := 0; i < 3; i++ {
		attempt(tx, false)
		assert.Equal(t, TxPending, tx.state)
	}
	attempt(tx, true)
	assert.Equal(t, TxSuccess, tx.state)

	c := tx.confirm()
	assert.Equal(t, StatusSuccess, c.Status)
	assert.Equal(t, 3, c.Retries)
	assert.Equal(t, 4, c.Attempts)
	assert.Equal(t, uint8(5), c.Handle)
	assert.Equal(t, radioclock.Instant(1000), c.Timestamp)
}

func TestTransactionRetriesExhausted(t *testing.T) {
	tx := newTestTransaction(true, 2)
	attempt(tx, false)
	attempt(tx, false)
	assert.Equal(t, TxPending, tx.state)
	attempt(tx, false)
	assert.Equal(t, TxFailed, tx.state)
	assert.True(t, tx.state.terminal())

	c := tx.confirm()
	assert.Equal(t, StatusNoAck, c.Status)
	assert.Equal(t, 3, c.Attempts)
}

func TestTransactionNoRetries(t *testing.T) {
	tx := newTestTransaction(true, 0)
	attempt(tx, false)
	assert.Equal(t, TxFailed, tx.state)
	assert.Equal(t, 1, tx.confirm().Attempts)
}

func TestTransactionWithoutAckRequest(t *testing.T) {
	tx := newTestTransaction(false, 3)
	tx.dispatched(1)
	tx.transmitted(radioclock.Instant(500))
	assert.Equal(t, TxSuccess, tx.state)
	assert.Equal(t, 0, tx.confirm().Retries)
	assert.Equal(t, 1, tx.confirm().Attempts)
}

func TestTransactionChannelAccessFailure(t *testing.T) {
	tx := newTestTransaction(true, 3)
	for i := 0; i < int(csma.DefaultParams().MaxBackoffs); i++ {
		tx.dispatched(2)
		tx.channelBusy()
		assert.Equal(t, TxPending, tx.state)
	}
	tx.dispatched(2)
	tx.channelBusy()
	assert.Equal(t, TxFailed, tx.state)
	assert.Equal(t, StatusChannelAccessFailure, tx.confirm().Status)
	assert.Equal(t, 0, tx.confirm().Attempts)
}

func TestTransactionBackoffResetOnRetry(t *testing.T) {
	tx := newTestTransaction(true, 3)
	tx.dispatched(2)
	tx.channelBusy()
	assert.Equal(t, uint8(1), tx.backoff.NB())

	attempt(tx, false)
	assert.Equal(t, uint8(0), tx.backoff.NB())
	assert.Equal(t, csma.DefaultParams().MinBE, tx.backoff.BE())
}

func TestTransactionOverrun(t *testing.T) {
	tx := newTestTransaction(true, 3)
	tx.dispatched(2)
	tx.overrun(1)
	assert.Equal(t, TxPending, tx.state)
	tx.dispatched(2)
	tx.overrun(1)
	assert.Equal(t, TxFailed, tx.state)
	assert.Equal(t, StatusSchedulingError, tx.confirm().Status)
}

func TestTransactionDispatchPanicsUnlessPending(t *testing.T) {
	tx := newTestTransaction(true, 3)
	tx.dispatched(2)
	assert.Panics(t, func() { tx.dispatched(2) })
}

func TestTxStateString(t *testing.T) {
	assert.Equal(t, "AwaitingAck", TxAwaitingAck.String())
	assert.False(t, TxRetrying.terminal())
}
