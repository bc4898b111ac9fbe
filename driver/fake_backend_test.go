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
	"sync"

	"github.com/openthread/ot-macsim/frame"
	"github.com/openthread/ot-macsim/radioclock"
	"github.com/openthread/ot-macsim/types"
)

type programCall struct {
	tr    Transition
	task  *Task
	start radioclock.Instant
	// payload snapshot, the driver reuses its acknowledgment buffer
	payload []byte
}

// fakeBackend records what the driver asks of it; tests drive the events.
type fakeBackend struct {
	mu        sync.Mutex
	h         EventHandler
	caps      Capabilities
	guard     radioclock.Duration
	programs  []programCall
	aborts    int
	wakes     []radioclock.Instant
	failWith  error
	overrides map[Transition]TransitionFunc
}

func newFakeBackend(ackOffload bool) *fakeBackend {
	return &fakeBackend{
		caps: Capabilities{
			AckOffload: ackOffload,
			Buffer:     frame.DefaultRequirements(),
		},
		guard: radioclock.Symbols(types.TurnaroundTime),
	}
}

func (fb *fakeBackend) Bind(h EventHandler) {
	fb.h = h
}

func (fb *fakeBackend) Capabilities() Capabilities {
	return fb.caps
}

func (fb *fakeBackend) GuardTime(tr Transition) radioclock.Duration {
	return fb.guard
}

func (fb *fakeBackend) Program(tr Transition, task *Task, start radioclock.Instant) error {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if fb.failWith != nil {
		return fb.failWith
	}
	call := programCall{tr: tr, task: task, start: start}
	if task.Buffer != nil && task.Buffer.Len() > 0 {
		call.payload = append([]byte(nil), task.Buffer.Payload()...)
	}
	fb.programs = append(fb.programs, call)
	return nil
}

func (fb *fakeBackend) Abort() {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.aborts++
}

func (fb *fakeBackend) WakeAt(t radioclock.Instant) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.wakes = append(fb.wakes, t)
}

func (fb *fakeBackend) Programs() []programCall {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]programCall(nil), fb.programs...)
}

func (fb *fakeBackend) LastProgram() programCall {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if len(fb.programs) == 0 {
		return programCall{}
	}
	return fb.programs[len(fb.programs)-1]
}

func (fb *fakeBackend) Aborts() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.aborts
}

type overridingBackend struct {
	*fakeBackend
}

func (ob overridingBackend) Transitions() map[Transition]TransitionFunc {
	return ob.overrides
}
