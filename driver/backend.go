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

// Transition is a pair of consecutive driver states.
type Transition struct {
	From types.RadioState
	To   types.RadioState
}

func (tr Transition) String() string {
	return fmt.Sprintf("%s->%s", tr.From, tr.To)
}

// Capabilities are the offloads and buffer needs a backend declares.
type Capabilities struct {
	AckOffload      bool
	CrcOffload      bool
	SecurityOffload bool
	FilterOffload   bool
	Buffer          frame.Requirements
}

// Backend is the contract a radio hardware backend implements for the driver.
//
// The driver calls Program, Abort and WakeAt while holding its own lock; the backend must not call
// back into the EventHandler from inside them. Events are reported asynchronously.
type Backend interface {
	Bind(h EventHandler)
	Capabilities() Capabilities
	// GuardTime is the lead time the backend needs between being given a task for tr and its start.
	GuardTime(tr Transition) radioclock.Duration
	// Program arms the radio to perform task from start on. tr is the hardware transition: without
	// acknowledgment offload SendAck is programmed as Tx and WaitForAck as Rx.
	Program(tr Transition, task *Task, start radioclock.Instant) error
	// Abort ends an idle Rx window or Off period now.
	Abort()
	// WakeAt requests an OnWakeup call at t.
	WakeAt(t radioclock.Instant)
}

// EventHandler receives backend events. It is implemented by Driver.
type EventHandler interface {
	OnFrameStarted(info FrameInfo)
	OnTaskDone(c Completion)
	OnWakeup()
}

// Completion is a backend's report that the programmed task finished.
type Completion struct {
	Status  Status
	RMarker radioclock.Instant
	Frame   FrameInfo
}

// TransitionFunc performs one transition for task starting at start.
type TransitionFunc func(d *Driver, task *Task, start radioclock.Instant) error

// TransitionOverrider is implemented by backends that have a dedicated path for some transitions.
type TransitionOverrider interface {
	Transitions() map[Transition]TransitionFunc
}

// hardwareState maps a driver state to what a backend without acknowledgment offload executes.
func (c Capabilities) hardwareState(s types.RadioState) types.RadioState {
	if c.AckOffload {
		return s
	}
	switch s {
	case types.RadioSendAck:
		return types.RadioTx
	case types.RadioWaitForAck:
		return types.RadioRx
	default:
		return s
	}
}
