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

package driver

import (
	"encoding/binary"

	"github.com/openthread/ot-macsim/radioclock"
	. "github.com/openthread/ot-macsim/types"
)

// defaultTransitions is the generic software path for every reachable state pair. SendAck only
// follows Rx and WaitForAck only follows Tx. A backend replaces single entries via TransitionOverrider.
func defaultTransitions() map[Transition]TransitionFunc {
	return map[Transition]TransitionFunc{
		{RadioOff, RadioOff}: offToOff,
		{RadioOff, RadioRx}:  offToRx,
		{RadioOff, RadioTx}:  offToTx,

		{RadioRx, RadioOff}:     rxToOff,
		{RadioRx, RadioRx}:      rxToRx,
		{RadioRx, RadioTx}:      rxToTx,
		{RadioRx, RadioSendAck}: rxToSendAck,

		{RadioTx, RadioOff}:        txToOff,
		{RadioTx, RadioRx}:         txToRx,
		{RadioTx, RadioTx}:         txToTx,
		{RadioTx, RadioWaitForAck}: txToWaitForAck,

		{RadioSendAck, RadioOff}: sendAckToOff,
		{RadioSendAck, RadioRx}:  sendAckToRx,
		{RadioSendAck, RadioTx}:  sendAckToTx,

		{RadioWaitForAck, RadioOff}: waitForAckToOff,
		{RadioWaitForAck, RadioRx}:  waitForAckToRx,
		{RadioWaitForAck, RadioTx}:  waitForAckToTx,
	}
}

func offToOff(d *Driver, task *Task, start radioclock.Instant) error {
	// already off, nothing to program
	return nil
}

func offToRx(d *Driver, task *Task, start radioclock.Instant) error {
	return d.program(Transition{RadioOff, RadioRx}, task, start)
}

func offToTx(d *Driver, task *Task, start radioclock.Instant) error {
	return d.program(Transition{RadioOff, RadioTx}, task, start)
}

func rxToOff(d *Driver, task *Task, start radioclock.Instant) error {
	return d.program(Transition{RadioRx, RadioOff}, task, start)
}

func rxToRx(d *Driver, task *Task, start radioclock.Instant) error {
	return d.program(Transition{RadioRx, RadioRx}, task, start)
}

func rxToTx(d *Driver, task *Task, start radioclock.Instant) error {
	return d.program(Transition{RadioRx, RadioTx}, task, start)
}

// rxToSendAck builds an immediate acknowledgment when the backend cannot send one itself.
func rxToSendAck(d *Driver, task *Task, start radioclock.Instant) error {
	if d.caps.AckOffload {
		return d.program(Transition{RadioRx, RadioSendAck}, task, start)
	}

	var ack [AckFrameSize]byte
	binary.LittleEndian.PutUint16(ack[:2], ackFrameControl)
	ack[2] = task.Seq
	if err := task.Buffer.SetPayload(ack[:]); err != nil {
		return err
	}
	return d.program(Transition{RadioRx, RadioSendAck}, task, start)
}

func txToOff(d *Driver, task *Task, start radioclock.Instant) error {
	return d.program(Transition{RadioTx, RadioOff}, task, start)
}

func txToRx(d *Driver, task *Task, start radioclock.Instant) error {
	return d.program(Transition{RadioTx, RadioRx}, task, start)
}

func txToTx(d *Driver, task *Task, start radioclock.Instant) error {
	return d.program(Transition{RadioTx, RadioTx}, task, start)
}

// txToWaitForAck opens a plain receive window bounded by a wakeup when the backend has no
// acknowledgment offload.
func txToWaitForAck(d *Driver, task *Task, start radioclock.Instant) error {
	if d.caps.AckOffload {
		return d.program(Transition{RadioTx, RadioWaitForAck}, task, start)
	}

	task.Buffer = d.ackBuf
	if err := d.program(Transition{RadioTx, RadioWaitForAck}, task, start); err != nil {
		task.Buffer = nil
		return err
	}
	d.ackDeadline = start.Add(task.AckTimeout)
	d.backend.WakeAt(d.ackDeadline)
	return nil
}

func sendAckToOff(d *Driver, task *Task, start radioclock.Instant) error {
	return d.program(Transition{RadioSendAck, RadioOff}, task, start)
}

func sendAckToRx(d *Driver, task *Task, start radioclock.Instant) error {
	return d.program(Transition{RadioSendAck, RadioRx}, task, start)
}

func sendAckToTx(d *Driver, task *Task, start radioclock.Instant) error {
	return d.program(Transition{RadioSendAck, RadioTx}, task, start)
}

func waitForAckToOff(d *Driver, task *Task, start radioclock.Instant) error {
	return d.program(Transition{RadioWaitForAck, RadioOff}, task, start)
}

func waitForAckToRx(d *Driver, task *Task, start radioclock.Instant) error {
	return d.program(Transition{RadioWaitForAck, RadioRx}, task, start)
}

func waitForAckToTx(d *Driver, task *Task, start radioclock.Instant) error {
	return d.program(Transition{RadioWaitForAck, RadioTx}, task, start)
}
