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
	"sync"

	"github.com/openthread/ot-macsim/driver"
	"github.com/openthread/ot-macsim/radioclock"
	. "github.com/openthread/ot-macsim/types"
)

// ScriptedMedium replays queued outcomes. Once a script runs out the channel is clear and
// acknowledgments arrive.
type ScriptedMedium struct {
	mu        sync.Mutex
	ccaScript []bool
	ackScript []bool
	ccaCount  int
	ackCount  int
}

func NewScriptedMedium() *ScriptedMedium {
	return &ScriptedMedium{}
}

// ScriptCca queues the outcomes of the next clear channel assessments, true meaning clear.
func (m *ScriptedMedium) ScriptCca(outcomes ...bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ccaScript = append(m.ccaScript, outcomes...)
}

// ScriptBusy makes the next n clear channel assessments fail.
func (m *ScriptedMedium) ScriptBusy(n int) {
	for i := 0; i < n; i++ {
		m.ScriptCca(false)
	}
}

// ScriptAcks queues whether the next acknowledgments arrive.
func (m *ScriptedMedium) ScriptAcks(received ...bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ackScript = append(m.ackScript, received...)
}

func (m *ScriptedMedium) ChannelClear(t radioclock.Instant, ch ChannelId, mode driver.CcaMode) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ccaCount++
	if len(m.ccaScript) == 0 {
		return true
	}
	ok := m.ccaScript[0]
	m.ccaScript = m.ccaScript[1:]
	return ok
}

func (m *ScriptedMedium) AckReceived(seq uint8) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ackCount++
	if len(m.ackScript) == 0 {
		return true
	}
	ok := m.ackScript[0]
	m.ackScript = m.ackScript[1:]
	return ok
}

func (m *ScriptedMedium) RxRssi() DbValue {
	return -60.0
}

// Counts returns how many assessments and acknowledgments were decided.
func (m *ScriptedMedium) Counts() (cca int, acks int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ccaCount, m.ackCount
}

func (m *ScriptedMedium) GetName() string {
	return "Scripted"
}
