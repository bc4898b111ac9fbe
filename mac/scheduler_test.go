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
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openthread/ot-macsim/channel"
	"github.com/openthread/ot-macsim/dissectpkt/wpan"
	"github.com/openthread/ot-macsim/driver"
	"github.com/openthread/ot-macsim/pib"
	"github.com/openthread/ot-macsim/radioclock"
	"github.com/openthread/ot-macsim/radiomodel"
	. "github.com/openthread/ot-macsim/types"
)

type macRig struct {
	clock  *radioclock.SimClock
	medium *radiomodel.ScriptedMedium
	radio  *radiomodel.SimRadio
	drv    *driver.Driver
	svc    *driver.Service
	sched  *Scheduler
	client *Client
}

func newMacRig(t *testing.T, cfg Config, vals pib.Values) *macRig {
	clock := radioclock.NewSimClock(0)
	medium := radiomodel.NewScriptedMedium()
	radio := radiomodel.NewSimRadio(radiomodel.DefaultConfig(), clock, medium)
	drv := driver.New(radio, clock, driver.DefaultConfig())
	tasks := driver.NewTaskChannel(channel.Config{Capacity: cfg.TaskCapacity()}, clock)
	p, err := pib.New(vals)
	require.Nil(t, err)
	sched, err := NewScheduler(cfg, drv, tasks, p)
	require.Nil(t, err)
	return &macRig{
		clock:  clock,
		medium: medium,
		radio:  radio,
		drv:    drv,
		svc:    driver.NewService(drv, tasks),
		sched:  sched,
		client: NewClient(sched),
	}
}

func newDefaultMacRig(t *testing.T) *macRig {
	return newMacRig(t, DefaultConfig(), pib.DefaultValues())
}

// poll runs the service and the scheduler until neither has work left.
func (rig *macRig) poll() {
	for rig.svc.Poll() || rig.sched.Poll() {
	}
}

// run advances virtual time by d, polling after every radio event.
func (rig *macRig) run(d radioclock.Duration) {
	deadline := rig.clock.Now().Add(d)
	for {
		rig.poll()
		next, ok := rig.radio.NextEventTime()
		if !ok || next > deadline {
			break
		}
		rig.radio.Step()
	}
	rig.radio.RunUntil(deadline)
	rig.poll()
}

func (rig *macRig) txFrames() []radiomodel.TxRecord {
	var frames []radiomodel.TxRecord
	for _, rec := range rig.radio.TxLog() {
		if rec.Kind == RadioTx {
			frames = append(frames, rec)
		}
	}
	return frames
}

func dataPsdu(t *testing.T, seq uint8, ackRequest bool) []byte {
	df := wpan.DataFrame{Seq: seq, PanId: 0x1234, DstAddrShort: 2, SrcAddrShort: 1, AckRequest: ackRequest, Payload: []byte("hello")}
	b := make([]byte, MaxPhyPacketSize)
	n, err := df.Encode(b)
	require.Nil(t, err)
	return b[:n]
}

func confirmed(t *testing.T, p *channel.Pending[Confirm]) Confirm {
	select {
	case <-p.Done():
	default:
		t.Fatal("request not confirmed")
	}
	c, err := p.Wait(context.Background())
	require.Nil(t, err)
	return c
}

func (rig *macRig) send(t *testing.T, handle uint8, seq uint8, ackRequest bool) *channel.Pending[Confirm] {
	p, err := rig.client.TrySendData(handle, dataPsdu(t, seq, ackRequest), seq, ackRequest)
	require.Nil(t, err)
	return p
}

func (rig *macRig) submit(t *testing.T, req *Request) *channel.Pending[Confirm] {
	p, err := rig.client.TrySubmit(req)
	require.Nil(t, err)
	return p
}

func (rig *macRig) assertBuffersReturned(t *testing.T) {
	_, transactions := rig.sched.Pending()
	assert.Equal(t, 0, transactions)
	assert.Equal(t, rig.sched.TxPool().Size(), rig.sched.TxPool().Available())
	assert.Equal(t, rig.sched.Requests().Capacity(), rig.sched.Requests().Free())
}

func TestNewSchedulerChecksTaskCapacity(t *testing.T) {
	clock := radioclock.NewSimClock(0)
	radio := radiomodel.NewSimRadio(radiomodel.DefaultConfig(), clock, radiomodel.NewIdealMedium())
	drv := driver.New(radio, clock, driver.DefaultConfig())
	p, err := pib.New(pib.DefaultValues())
	require.Nil(t, err)

	cfg := DefaultConfig()
	tasks := driver.NewTaskChannel(channel.Config{Capacity: cfg.TaskCapacity() - 1}, clock)
	_, err = NewScheduler(cfg, drv, tasks, p)
	assert.ErrorIs(t, err, ErrTaskCapacity)
}

func TestRetriesUntilAcked(t *testing.T) {
	vals := pib.DefaultValues()
	vals.MaxFrameRetries = 3
	rig := newMacRig(t, DefaultConfig(), vals)
	rig.medium.ScriptAcks(false, false, false, true)

	p := rig.send(t, 1, 42, true)
	rig.run(200 * radioclock.Millisecond)

	c := confirmed(t, p)
	assert.Equal(t, StatusSuccess, c.Status)
	assert.Equal(t, 3, c.Retries)
	assert.Equal(t, 4, c.Attempts)
	assert.Equal(t, uint8(1), c.Handle)

	frames := rig.txFrames()
	require.Len(t, frames, 4)
	assert.Equal(t, frames[3].RMarker, c.Timestamp)
	for _, f := range frames {
		assert.Equal(t, dataPsdu(t, 42, true), f.Data)
	}
	assert.Equal(t, 3, rig.sched.Stats().NoAcks)
	rig.assertBuffersReturned(t)
}

func TestAckedOnFirstAttempt(t *testing.T) {
	rig := newDefaultMacRig(t)
	rig.medium.ScriptAcks(true)

	p := rig.send(t, 6, 9, true)
	rig.run(50 * radioclock.Millisecond)

	c := confirmed(t, p)
	assert.Equal(t, StatusSuccess, c.Status)
	assert.Equal(t, 0, c.Retries)
	assert.Equal(t, 1, c.Attempts)
	assert.Len(t, rig.txFrames(), 1)
	assert.Equal(t, 0, rig.sched.Stats().NoAcks)
	assert.Equal(t, 0, rig.sched.Stats().StrayAcks)
	rig.assertBuffersReturned(t)
}

func TestRetriesExhausted(t *testing.T) {
	vals := pib.DefaultValues()
	vals.MaxFrameRetries = 2
	rig := newMacRig(t, DefaultConfig(), vals)
	rig.medium.ScriptAcks(false, false, false, false, false)

	p := rig.send(t, 2, 7, true)
	rig.run(200 * radioclock.Millisecond)

	c := confirmed(t, p)
	assert.Equal(t, StatusNoAck, c.Status)
	assert.Equal(t, 3, c.Attempts)
	assert.Len(t, rig.txFrames(), 3)
	_, acks := rig.medium.Counts()
	assert.Equal(t, 3, acks)
	rig.assertBuffersReturned(t)
}

func TestNoAckRequested(t *testing.T) {
	rig := newDefaultMacRig(t)
	p := rig.send(t, 3, 1, false)
	rig.run(50 * radioclock.Millisecond)

	c := confirmed(t, p)
	assert.Equal(t, StatusSuccess, c.Status)
	assert.Equal(t, 1, c.Attempts)
	assert.Equal(t, 0, c.Retries)
	_, acks := rig.medium.Counts()
	assert.Equal(t, 0, acks)
	rig.assertBuffersReturned(t)
}

func TestChannelAccessFailure(t *testing.T) {
	rig := newDefaultMacRig(t)
	rig.medium.ScriptBusy(int(DefaultMaxBackoffs) + 1)

	p := rig.send(t, 4, 1, true)
	rig.run(500 * radioclock.Millisecond)

	c := confirmed(t, p)
	assert.Equal(t, StatusChannelAccessFailure, c.Status)
	assert.Equal(t, 0, c.Attempts)
	assert.Empty(t, rig.txFrames())
	assert.Equal(t, int(DefaultMaxBackoffs)+1, rig.sched.Stats().CcaBusy)
	rig.assertBuffersReturned(t)
}

func TestBusyChannelThenClear(t *testing.T) {
	rig := newDefaultMacRig(t)
	rig.medium.ScriptBusy(2)

	p := rig.send(t, 5, 1, true)
	rig.run(500 * radioclock.Millisecond)

	c := confirmed(t, p)
	assert.Equal(t, StatusSuccess, c.Status)
	assert.Equal(t, 1, c.Attempts)
	cca, _ := rig.medium.Counts()
	assert.Equal(t, 3, cca)
}

func TestTransactionsAreSerialized(t *testing.T) {
	rig := newDefaultMacRig(t)
	rig.medium.ScriptAcks(false, true, true)

	p1 := rig.send(t, 1, 10, true)
	p2 := rig.send(t, 2, 11, true)
	rig.run(200 * radioclock.Millisecond)

	c1, c2 := confirmed(t, p1), confirmed(t, p2)
	assert.Equal(t, StatusSuccess, c1.Status)
	assert.Equal(t, 1, c1.Retries)
	assert.Equal(t, StatusSuccess, c2.Status)
	assert.Equal(t, 0, c2.Retries)
	assert.True(t, c1.Timestamp < c2.Timestamp)

	frames := rig.txFrames()
	require.Len(t, frames, 3)
	assert.Equal(t, uint8(10), frames[1].Data[2])
	assert.Equal(t, uint8(11), frames[2].Data[2])
}

func TestInvalidDataRequests(t *testing.T) {
	rig := newDefaultMacRig(t)
	noFrame := rig.submit(t, &Request{Op: OpData, Handle: 1})
	rig.poll()
	assert.Equal(t, StatusInvalidParameter, confirmed(t, noFrame).Status)

	_, err := rig.client.TrySendData(2, make([]byte, MaxPhyPacketSize+1), 0, false)
	assert.NotNil(t, err)
	rig.assertBuffersReturned(t)
}

func TestPurge(t *testing.T) {
	rig := newDefaultMacRig(t)
	p1 := rig.send(t, 1, 1, true)
	p2 := rig.send(t, 2, 2, true)
	rig.poll()

	inFlight := rig.submit(t, &Request{Op: OpPurge, Handle: 1})
	queued := rig.submit(t, &Request{Op: OpPurge, Handle: 2})
	rig.poll()
	assert.Equal(t, StatusInvalidHandle, confirmed(t, inFlight).Status)
	assert.Equal(t, StatusSuccess, confirmed(t, queued).Status)
	assert.Equal(t, StatusPurged, confirmed(t, p2).Status)

	rig.run(50 * radioclock.Millisecond)
	assert.Equal(t, StatusSuccess, confirmed(t, p1).Status)
	assert.Len(t, rig.txFrames(), 1)
	rig.assertBuffersReturned(t)
}

func TestGetSet(t *testing.T) {
	rig := newDefaultMacRig(t)
	var observed []pib.Attribute
	rig.sched.OnPibSet(func(a pib.Attribute, v uint64) { observed = append(observed, a) })

	set := rig.submit(t, &Request{Op: OpSet, Attr: pib.AttrMaxFrameRetries, Value: 5})
	bad := rig.submit(t, &Request{Op: OpSet, Attr: pib.AttrMaxFrameRetries, Value: 9})
	unknown := rig.submit(t, &Request{Op: OpGet, Attr: pib.Attribute(200)})
	rig.poll()
	assert.Equal(t, StatusSuccess, confirmed(t, set).Status)
	assert.Equal(t, StatusInvalidParameter, confirmed(t, bad).Status)
	assert.Equal(t, StatusUnsupportedAttribute, confirmed(t, unknown).Status)
	assert.Equal(t, []pib.Attribute{pib.AttrMaxFrameRetries}, observed)

	get := rig.submit(t, &Request{Op: OpGet, Attr: pib.AttrMaxFrameRetries})
	rig.poll()
	c := confirmed(t, get)
	assert.Equal(t, StatusSuccess, c.Status)
	assert.Equal(t, uint64(5), c.Value)
}

func TestReset(t *testing.T) {
	rig := newDefaultMacRig(t)
	require.Nil(t, rig.sched.Pib().Set(pib.AttrMaxFrameRetries, 6))
	p1 := rig.send(t, 1, 1, true)
	p2 := rig.send(t, 2, 2, true)
	rig.poll()

	reset := rig.submit(t, &Request{Op: OpReset, SetDefaultPib: true})
	rig.poll()
	assert.Equal(t, StatusSuccess, confirmed(t, reset).Status)
	assert.Equal(t, StatusPurged, confirmed(t, p2).Status)
	assert.Equal(t, pib.DefaultValues().MaxFrameRetries, rig.sched.Pib().Snapshot().MaxFrameRetries)

	rig.run(50 * radioclock.Millisecond)
	assert.Equal(t, StatusSuccess, confirmed(t, p1).Status)
	rig.assertBuffersReturned(t)
}

func TestRxLookahead(t *testing.T) {
	rig := newDefaultMacRig(t)
	rig.run(radioclock.Millisecond)

	rxWindows, _ := rig.sched.Pending()
	assert.Equal(t, DefaultConfig().RxLookahead, rxWindows)
	assert.Equal(t, RadioRx, rig.drv.State())
	assert.Equal(t, RadioRx, rig.radio.HardwareState())
	assert.Equal(t, DefaultConfig().RxBuffers-DefaultConfig().RxLookahead, rig.sched.RxPool().Available())
}

func TestReceiveIndication(t *testing.T) {
	rig := newDefaultMacRig(t)
	rig.run(radioclock.Millisecond)

	frame := dataPsdu(t, 77, true)
	require.Nil(t, rig.radio.InjectFrame(rig.clock.Now().Add(radioclock.Millisecond), frame))
	rig.run(10 * radioclock.Millisecond)

	ind, ok := rig.client.TryReceiveIndication()
	require.True(t, ok)
	assert.Equal(t, frame, ind.Psdu)
	assert.Equal(t, uint8(77), ind.Seq)
	assert.True(t, ind.AckRequested)
	assert.Nil(t, ind.Frame)
	assert.Equal(t, radioclock.Instant(2*radioclock.Millisecond), ind.RMarker)

	var acks int
	for _, rec := range rig.radio.TxLog() {
		if rec.Kind == RadioSendAck {
			acks++
			assert.Equal(t, uint8(77), rec.Data[2])
		}
	}
	assert.Equal(t, 1, acks)

	_, ok = rig.client.TryReceiveIndication()
	assert.False(t, ok)
	// the receiver is primed again and the buffer went back to the pool
	rxWindows, _ := rig.sched.Pending()
	assert.Equal(t, DefaultConfig().RxLookahead, rxWindows)
	assert.Equal(t, DefaultConfig().RxBuffers-DefaultConfig().RxLookahead, rig.sched.RxPool().Available())
}

func TestIndicationsDroppedWhenFull(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IndicationCapacity = 1
	rig := newMacRig(t, cfg, pib.DefaultValues())
	rig.run(radioclock.Millisecond)

	for i := 0; i < 3; i++ {
		at := rig.clock.Now().Add(radioclock.Millisecond)
		require.Nil(t, rig.radio.InjectFrame(at, dataPsdu(t, uint8(i), false)))
		rig.run(5 * radioclock.Millisecond)
	}
	stats := rig.sched.Stats()
	assert.Equal(t, 1, stats.Indications)
	assert.Equal(t, 2, stats.IndicationsDropped)

	ind, ok := rig.client.TryReceiveIndication()
	require.True(t, ok)
	assert.Equal(t, uint8(0), ind.Seq)
	rig.run(radioclock.Millisecond)
	assert.Equal(t, cfg.RxBuffers-cfg.RxLookahead, rig.sched.RxPool().Available())
}

func TestRxEnable(t *testing.T) {
	rig := newDefaultMacRig(t)
	rig.run(radioclock.Millisecond)

	off := rig.submit(t, &Request{Op: OpRxEnable, RxOn: false})
	rig.run(radioclock.Millisecond)
	assert.Equal(t, StatusSuccess, confirmed(t, off).Status)
	assert.Equal(t, RadioOff, rig.drv.State())
	assert.Equal(t, RadioOff, rig.radio.HardwareState())
	rxWindows, _ := rig.sched.Pending()
	assert.Equal(t, 0, rxWindows)
	assert.Equal(t, DefaultConfig().RxBuffers, rig.sched.RxPool().Available())
	assert.False(t, rig.sched.Pib().Snapshot().RxOnWhenIdle)

	// frames sent to a radio that is off are missed
	require.Nil(t, rig.radio.InjectFrame(rig.clock.Now().Add(radioclock.Millisecond), dataPsdu(t, 1, false)))
	rig.run(10 * radioclock.Millisecond)
	_, ok := rig.client.TryReceiveIndication()
	assert.False(t, ok)
	assert.Equal(t, 1, rig.radio.Stats().RxMissed)

	on := rig.submit(t, &Request{Op: OpRxEnable, RxOn: true})
	rig.run(radioclock.Millisecond)
	assert.Equal(t, StatusSuccess, confirmed(t, on).Status)
	assert.Equal(t, RadioRx, rig.drv.State())
}

func TestTxOverrunByReception(t *testing.T) {
	vals := pib.DefaultValues()
	vals.MinBE = 0
	rig := newMacRig(t, DefaultConfig(), vals)
	rig.run(radioclock.Millisecond)

	long := wpan.DataFrame{Seq: 99, PanId: 0x1234, DstAddrShort: 1, SrcAddrShort: 2, Payload: make([]byte, 100)}
	b := make([]byte, MaxPhyPacketSize)
	n, err := long.Encode(b)
	require.Nil(t, err)
	require.Nil(t, rig.radio.InjectFrame(rig.clock.Now().Add(radioclock.Micros(100)), b[:n]))

	p := rig.send(t, 1, 1, true)
	rig.run(50 * radioclock.Millisecond)

	c := confirmed(t, p)
	assert.Equal(t, StatusSuccess, c.Status)
	assert.Equal(t, 1, c.Attempts)
	assert.GreaterOrEqual(t, rig.sched.Stats().Overruns, 1)
	_, ok := rig.client.TryReceiveIndication()
	assert.True(t, ok)
	rig.assertBuffersReturned(t)
}

func TestSlotAlignment(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SlotDuration = radioclock.Symbols(60)
	rig := newMacRig(t, cfg, pib.DefaultValues())
	rig.medium.ScriptAcks(false)

	p := rig.send(t, 1, 1, true)
	rig.run(100 * radioclock.Millisecond)
	assert.Equal(t, StatusSuccess, confirmed(t, p).Status)

	frames := rig.txFrames()
	require.Len(t, frames, 2)
	for _, f := range frames {
		assert.Equal(t, uint64(0), uint64(f.RMarker)%uint64(cfg.SlotDuration))
	}
}

func TestRequestSlotsExhausted(t *testing.T) {
	rig := newDefaultMacRig(t)
	for i := 0; i < DefaultConfig().RequestCapacity; i++ {
		rig.send(t, uint8(i), uint8(i), false)
	}
	_, err := rig.client.TrySendData(9, dataPsdu(t, 9, false), 9, false)
	assert.ErrorIs(t, err, ErrNoSlot)
	_, ok := rig.client.TryReserve()
	assert.False(t, ok)

	rig.run(100 * radioclock.Millisecond)
	assert.Equal(t, 4, rig.sched.Stats().Confirms)
	rig.assertBuffersReturned(t)
}

func TestRunConcurrently(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TxMargin = 5 * radioclock.Millisecond
	cfg.PollInterval = time.Millisecond
	rig := newMacRig(t, cfg, pib.DefaultValues())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	errs := make(chan error, 3)
	go func() { errs <- rig.radio.Run(ctx) }()
	go func() { errs <- rig.svc.Run(ctx) }()
	go func() { errs <- rig.sched.Run(ctx) }()

	st, err := rig.client.Set(ctx, pib.AttrMaxFrameRetries, 4)
	require.Nil(t, err)
	assert.Equal(t, StatusSuccess, st)
	v, st, err := rig.client.Get(ctx, pib.AttrMaxFrameRetries)
	require.Nil(t, err)
	assert.Equal(t, StatusSuccess, st)
	assert.Equal(t, uint64(4), v)

	p, err := rig.client.SendData(ctx, 1, dataPsdu(t, 5, true), 5, true)
	require.Nil(t, err)
	c, err := p.Wait(ctx)
	require.Nil(t, err)
	assert.Equal(t, StatusSuccess, c.Status)

	cancel()
	for i := 0; i < 3; i++ {
		assert.Equal(t, context.Canceled, <-errs)
	}
}
