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

// Package energy estimates the energy a radio uses from the time it spends in each state.
package energy

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/openthread/ot-macsim/logger"
	. "github.com/openthread/ot-macsim/types"
)

// Meter tracks the radio state over time. It is safe for concurrent use.
type Meter struct {
	mu      sync.Mutex
	node    radioEnergy
	history []Consumption
}

// NewMeter starts metering a radio that is off at timestamp, in microseconds.
func NewMeter(timestamp uint64) *Meter {
	return &Meter{
		node: radioEnergy{
			radio: RadioStatus{
				State:     RadioOff,
				Timestamp: timestamp,
			},
		},
		history: make([]Consumption, 0, 64),
	}
}

func (m *Meter) SetRadioState(state RadioState, timestamp uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.node.setRadioState(state, timestamp)
}

// Status returns the accumulated state times up to timestamp.
func (m *Meter) Status(timestamp uint64) RadioStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.node.computeRadioState(timestamp)
	return m.node.radio
}

// Consumption returns the energy used up to timestamp.
func (m *Meter) Consumption(timestamp uint64) Consumption {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.node.computeRadioState(timestamp)
	return m.node.consumption()
}

// Store appends the consumption up to timestamp to the history.
func (m *Meter) Store(timestamp uint64) Consumption {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.node.computeRadioState(timestamp)
	c := m.node.consumption()
	m.history = append(m.history, c)
	return c
}

func (m *Meter) History() []Consumption {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Consumption(nil), m.history...)
}

func (m *Meter) ClearHistory() {
	m.mu.Lock()
	defer m.mu.Unlock()
	logger.Debugf("radio energy history cleared")
	m.history = m.history[:0]
}

// SaveFile stores the consumption up to timestamp and writes the history as a table to path.
func (m *Meter) SaveFile(path string, timestamp uint64) error {
	m.Store(timestamp)
	if err := os.MkdirAll(filepath.Dir(path), 0775); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	m.writeHistory(f, timestamp)
	logger.Debugf("radio energy saved to %s", path)
	return nil
}

func (m *Meter) writeHistory(w io.Writer, timestamp uint64) {
	_, _ = fmt.Fprintf(w, "Duration of the simulation (in milliseconds): %d\n", timestamp/1000)
	_, _ = fmt.Fprintf(w, "Time (ms)\tOff (mJ)\tTransmitting (mJ)\tReceiving (mJ)\n")
	for _, c := range m.History() {
		_, _ = fmt.Fprintf(w, "%d\t%f\t%f\t%f\n", c.Timestamp/1000, c.Off, c.Tx, c.Rx)
	}
}
