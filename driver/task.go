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
	"fmt"

	"github.com/openthread/ot-macsim/frame"
	"github.com/openthread/ot-macsim/radioclock"
	"github.com/openthread/ot-macsim/types"
)

// Timestamp is an optional task start. A task without one is best effort: it starts as soon as the
// previous task ends, subject to inter-frame spacing.
type Timestamp struct {
	at        radioclock.Instant
	scheduled bool
}

func BestEffort() Timestamp {
	return Timestamp{at: radioclock.Never}
}

func At(t radioclock.Instant) Timestamp {
	return Timestamp{at: t, scheduled: true}
}

func (ts Timestamp) Scheduled() bool {
	return ts.scheduled
}

// Instant returns the start, or Never for a best-effort task.
func (ts Timestamp) Instant() radioclock.Instant {
	return ts.at
}

func (ts Timestamp) String() string {
	if !ts.scheduled {
		return "asap"
	}
	return ts.at.String()
}

type CcaMode uint8

const (
	CcaNone CcaMode = iota
	CcaEnergy
	CcaCarrier
	CcaEnergyOrCarrier
)

// Offload hints ask the backend to handle a frame-level function in hardware when it can.
type Offload struct {
	Crc       bool
	Security  bool
	Filtering bool
}

// Task is one unit of radio work. A task has no end of its own: it ends when the next task starts,
// less the guard time of that transition, or never if nothing follows.
type Task struct {
	Kind       types.RadioState
	At         Timestamp
	Buffer     *frame.Buffer
	Cca        CcaMode
	Offload    Offload
	Seq        uint8               // Tx, WaitForAck: sequence number the acknowledgment must carry
	AckTimeout radioclock.Duration // WaitForAck
	Tag        uint64              // opaque to the driver, echoed in the Result

	internal bool
}

func NewOffTask(at Timestamp) *Task {
	return &Task{Kind: types.RadioOff, At: at}
}

func NewRxTask(at Timestamp, buf *frame.Buffer) *Task {
	return &Task{Kind: types.RadioRx, At: at, Buffer: buf}
}

func NewTxTask(at Timestamp, buf *frame.Buffer, cca CcaMode) *Task {
	return &Task{Kind: types.RadioTx, At: at, Buffer: buf, Cca: cca}
}

func NewWaitForAckTask(seq uint8, timeout radioclock.Duration) *Task {
	return &Task{Kind: types.RadioWaitForAck, At: BestEffort(), Seq: seq, AckTimeout: timeout}
}

func (t *Task) String() string {
	return fmt.Sprintf("%s@%s#%d", t.Kind, t.At, t.Tag)
}

// Status is the outcome of a task.
type Status uint8

const (
	StatusDone            Status = iota // Off reached, frame sent, acknowledgment sent
	StatusFrameReceived                 // Rx: a frame was received into the buffer
	StatusAcked                         // WaitForAck: acknowledgment received
	StatusWindowEnded                   // Rx: superseded without a frame
	StatusCcaBusy                       // Tx: channel busy, the radio fell back to Off
	StatusNoAck                         // WaitForAck: timeout
	StatusSchedulingError               // the task could not be honored in time
	StatusSkipped                       // WaitForAck without a transmitted frame
)

func (s Status) String() string {
	switch s {
	case StatusDone:
		return "done"
	case StatusFrameReceived:
		return "frame"
	case StatusAcked:
		return "acked"
	case StatusWindowEnded:
		return "window-ended"
	case StatusCcaBusy:
		return "cca-busy"
	case StatusNoAck:
		return "no-ack"
	case StatusSchedulingError:
		return "scheduling-error"
	case StatusSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// FrameInfo describes a frame as recognized by the backend at start of frame.
type FrameInfo struct {
	Length       int
	AckRequested bool
	IsAck        bool
	Seq          uint8
}

// Result reports a finished task. Buffer ownership returns to the submitter with it.
type Result struct {
	Tag     uint64
	Kind    types.RadioState
	Status  Status
	RMarker radioclock.Instant
	Buffer  *frame.Buffer
	Frame   FrameInfo
	Err     error
}

func (r Result) String() string {
	return fmt.Sprintf("%s#%d %s at %s", r.Kind, r.Tag, r.Status, r.RMarker)
}
