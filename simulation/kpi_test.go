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

package simulation

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openthread/ot-macsim/radioclock"
)

func TestCounters(t *testing.T) {
	n1 := make(Counters)
	n1["test1.key"] = 42
	n1["test3.key"] = 987

	n2 := make(Counters)
	n2["test1.key"] = 42
	n2["test2.key"] = 121

	n2.Add(n1)

	assert.Equal(t, uint64(42), n1["test1.key"])
	_, n1HasTest2Key := n1["test2.key"]
	assert.False(t, n1HasTest2Key)
	assert.Equal(t, uint64(987), n1["test3.key"])

	assert.Equal(t, uint64(84), n2["test1.key"])
	assert.Equal(t, uint64(121), n2["test2.key"])
	assert.Equal(t, uint64(987), n2["test3.key"])
}

func TestCountersDiff(t *testing.T) {
	start := Counters{"a": 3, "b": 10}
	cur := Counters{"a": 5, "b": 10, "c": 7}
	assert.Equal(t, Counters{"a": 2, "b": 0, "c": 7}, getCountersDiff(cur, start))
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 0.5, ratio(1, 2))
	assert.Equal(t, 0.0, ratio(0, 0))
	assert.Equal(t, 0.0, ratio(3, 0))
}

func TestKpiFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Kpi = true
	sim := newTestSimulation(t, cfg)
	scripted(t, sim).ScriptAcks(false, true)

	p, err := sim.Client().TrySendData(1, testPsdu(t, 1, true), 1, true)
	require.Nil(t, err)
	require.Nil(t, sim.Go(100*radioclock.Millisecond))
	c, err := p.Wait(sim.ctx)
	require.Nil(t, err)
	require.Equal(t, "SUCCESS", c.Status.String())
	sim.Stop()

	data, err := os.ReadFile(sim.Kpi().getDefaultSaveFileName())
	require.Nil(t, err)
	var kpi Kpi
	require.Nil(t, json.Unmarshal(data, &kpi))

	assert.Equal(t, "ok", kpi.Status)
	assert.Equal(t, uint64(100000), kpi.TimeUs.PeriodUs)
	assert.Equal(t, uint64(2), kpi.Radio.NumFrames)
	assert.True(t, kpi.Radio.TxTimeUs > 0)
	assert.Equal(t, 50.0, kpi.Mac.NoAckPercentage)
	assert.Equal(t, 100.0, kpi.Mac.SuccessPercentage)
	assert.Equal(t, 2.0, kpi.Mac.AvgAttemptsPerFrame)
	assert.True(t, kpi.Energy.Tx > 0)
	assert.True(t, kpi.Energy.Rx > kpi.Energy.Tx)
	assert.InDelta(t, kpi.Energy.Off+kpi.Energy.Tx+kpi.Energy.Rx, kpi.Energy.Total, 1e-9)
	assert.Equal(t, uint64(1), kpi.Counters["mac.Confirms"])
	assert.False(t, sim.Kpi().IsRunning())
}
