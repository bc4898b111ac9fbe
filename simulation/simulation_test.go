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
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openthread/ot-macsim/dissectpkt/wpan"
	"github.com/openthread/ot-macsim/mac"
	"github.com/openthread/ot-macsim/pcap"
	"github.com/openthread/ot-macsim/pib"
	"github.com/openthread/ot-macsim/progctx"
	"github.com/openthread/ot-macsim/radioclock"
	"github.com/openthread/ot-macsim/radiomodel"
	. "github.com/openthread/ot-macsim/types"
)

func testConfig(t *testing.T) *Config {
	cfg := DefaultConfig()
	cfg.Seed = 1
	cfg.LogLevel = "warn"
	cfg.OutputDir = t.TempDir()
	return cfg
}

func newTestSimulation(t *testing.T, cfg *Config) *Simulation {
	sim, err := NewSimulation(progctx.New(context.Background()), cfg)
	require.Nil(t, err)
	t.Cleanup(sim.Stop)
	return sim
}

func scripted(t *testing.T, sim *Simulation) *radiomodel.ScriptedMedium {
	m, ok := sim.Radio().Medium().(*radiomodel.ScriptedMedium)
	require.True(t, ok)
	return m
}

func testPsdu(t *testing.T, seq uint8, ackRequest bool) []byte {
	df := wpan.DataFrame{Seq: seq, PanId: 0xface, DstAddrShort: 0x0002, SrcAddrShort: 0x0001, AckRequest: ackRequest, Payload: []byte{1, 2, 3, 4}}
	b := make([]byte, MaxPhyPacketSize)
	n, err := df.Encode(b)
	require.Nil(t, err)
	return b[:n]
}

func TestSimulationRetries(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pib.MaxFrameRetries = 3
	sim := newTestSimulation(t, cfg)
	scripted(t, sim).ScriptAcks(false, false, false, true)

	p, err := sim.Client().TrySendData(7, testPsdu(t, 1, true), 1, true)
	require.Nil(t, err)
	require.Nil(t, sim.Go(200*radioclock.Millisecond))
	assert.Equal(t, radioclock.Instant(200*radioclock.Millisecond), sim.Now())

	c, err := p.Wait(context.Background())
	require.Nil(t, err)
	assert.Equal(t, mac.StatusSuccess, c.Status)
	assert.Equal(t, 3, c.Retries)
	assert.Equal(t, 4, c.Attempts)

	r := sim.Report()
	assert.Equal(t, 4, r.Radio.FramesTx)
	assert.Equal(t, 4, r.Mac.Transmissions)
	assert.Equal(t, RadioRx, r.RadioState)
	assert.Equal(t, cfg.Mac.RxLookahead, r.RxWindows)
	assert.Equal(t, 0, r.Pending)
	assert.Equal(t, cfg.Mac.TxBuffers, r.TxBuffers)
	assert.Equal(t, uint64(200000), r.Energy.Timestamp)
	assert.True(t, r.Energy.Tx > 0)
	assert.True(t, r.Energy.Rx > r.Energy.Tx)
}

func TestSimulationReceive(t *testing.T) {
	sim := newTestSimulation(t, testConfig(t))
	require.Nil(t, sim.Go(radioclock.Millisecond))

	psdu := testPsdu(t, 33, true)
	require.Nil(t, sim.InjectFrame(radioclock.Millisecond, psdu))
	require.Nil(t, sim.Go(10*radioclock.Millisecond))

	ind, ok := sim.Client().TryReceiveIndication()
	require.True(t, ok)
	assert.Equal(t, psdu, ind.Psdu)
	assert.Equal(t, 1, sim.Report().Radio.AcksTx)
}

func TestSimulationSetChannel(t *testing.T) {
	sim := newTestSimulation(t, testConfig(t))
	p, err := sim.Client().TrySubmit(&mac.Request{Op: mac.OpSet, Attr: pib.AttrChannel, Value: 15})
	require.Nil(t, err)
	sim.Poll()
	c, err := p.Wait(context.Background())
	require.Nil(t, err)
	assert.Equal(t, mac.StatusSuccess, c.Status)
	assert.Equal(t, uint8(15), sim.Pib().Snapshot().Channel)
}

func TestSimulationCapture(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pcap = pcap.FrameTypeWpanStr
	sim := newTestSimulation(t, cfg)

	_, err := sim.Client().TrySendData(1, testPsdu(t, 1, false), 1, false)
	require.Nil(t, err)
	require.Nil(t, sim.Go(50*radioclock.Millisecond))
	sim.Stop()

	st, err := os.Stat(sim.PcapFileName())
	require.Nil(t, err)
	// file header, time reference frame, one data frame
	refLen := 16 + 42
	frameLen := 16 + len(testPsdu(t, 1, false))
	assert.Equal(t, int64(24+refLen+frameLen), st.Size())
}

func TestSimulationStopped(t *testing.T) {
	sim := newTestSimulation(t, testConfig(t))
	sim.Stop()
	assert.True(t, sim.IsStopping())
	assert.Equal(t, context.Canceled, sim.Go(radioclock.Millisecond))
	sim.Stop()
}

func TestSimulationRealtime(t *testing.T) {
	cfg := testConfig(t)
	cfg.Realtime = true
	cfg.Radio.Speed = 10
	cfg.Mac.TxMargin = 5 * radioclock.Millisecond
	cfg.Mac.PollInterval = time.Millisecond
	sim := newTestSimulation(t, cfg)
	sim.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p, err := sim.Client().SendData(ctx, 1, testPsdu(t, 4, true), 4, true)
	require.Nil(t, err)
	c, err := p.Wait(ctx)
	require.Nil(t, err)
	assert.Equal(t, mac.StatusSuccess, c.Status)

	require.Nil(t, sim.Go(10*radioclock.Millisecond))
	sim.Stop()
	assert.Equal(t, 0, sim.ctx.WaitCount())
}

func TestNewSimulationRejectsBadConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pcap = "ether"
	_, err := NewSimulation(progctx.New(context.Background()), cfg)
	assert.NotNil(t, err)

	cfg = testConfig(t)
	cfg.Radio.Medium.Name = "nowhere"
	_, err = NewSimulation(progctx.New(context.Background()), cfg)
	assert.NotNil(t, err)

	cfg = testConfig(t)
	cfg.Mac.RxLookahead = 10
	cfg.Mac.RxBuffers = 2
	_, err = NewSimulation(progctx.New(context.Background()), cfg)
	assert.NotNil(t, err)
}

func TestExportConfig(t *testing.T) {
	sim := newTestSimulation(t, testConfig(t))
	require.Nil(t, sim.Pib().Set(pib.AttrMaxFrameRetries, 6))

	for _, name := range []string{"sim.yaml", "sim.toml"} {
		path := filepath.Join(t.TempDir(), name)
		require.Nil(t, sim.SaveConfig(path))
		cfg, err := LoadConfigFile(path)
		require.Nil(t, err, name)
		assert.Equal(t, uint8(6), cfg.Pib.MaxFrameRetries, name)
		assert.Equal(t, sim.GetConfig().Mac, cfg.Mac, name)
		assert.Equal(t, sim.GetConfig().Radio, cfg.Radio, name)
	}
}
