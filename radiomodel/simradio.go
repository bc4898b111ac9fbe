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
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/openthread/ot-macsim/dissectpkt/wpan"
	"github.com/openthread/ot-macsim/driver"
	"github.com/openthread/ot-macsim/energy"
	"github.com/openthread/ot-macsim/frame"
	"github.com/openthread/ot-macsim/logger"
	"github.com/openthread/ot-macsim/pcap"
	"github.com/openthread/ot-macsim/radioclock"
	. "github.com/openthread/ot-macsim/types"
)

type Config struct {
	AckOffload        bool         `yaml:"ack-offload" toml:"ack-offload"`
	TurnaroundSymbols int64        `yaml:"turnaround-symbols" toml:"turnaround-symbols"`
	WakeupSymbols     int64        `yaml:"wakeup-symbols" toml:"wakeup-symbols"`
	Channel           ChannelId    `yaml:"channel" toml:"channel"`
	Medium            MediumConfig `yaml:"medium" toml:"medium"`
	// Speed paces Run against wall time, 1 being real time.
	Speed float64 `yaml:"speed" toml:"speed"`
}

func DefaultConfig() Config {
	return Config{
		AckOffload:        true,
		TurnaroundSymbols: TurnaroundTime,
		WakeupSymbols:     20,
		Channel:           DefaultChannel,
		Medium:            DefaultMediumConfig(),
		Speed:             1,
	}
}

// TxRecord is a frame the radio put on the air.
type TxRecord struct {
	RMarker radioclock.Instant
	// Kind is RadioTx for submitted frames and RadioSendAck for acknowledgments.
	Kind RadioState
	Data []byte
}

type reception struct {
	data    []byte
	info    driver.FrameInfo
	rmarker radioclock.Instant
}

// SimRadio is a virtual-time radio. Events are processed by Step, RunUntil or Run; handler calls
// are made without holding the radio's lock.
type SimRadio struct {
	mu      sync.Mutex
	cfg     Config
	clock   *radioclock.SimClock
	handler driver.EventHandler
	medium  Medium
	node    *RadioNode
	capture pcap.File
	energy  *energy.Meter
	queue   *eventQueue

	gen     uint64
	task    *driver.Task
	hwState RadioState
	start   radioclock.Instant
	rmarker radioclock.Instant
	txData  []byte
	rx      *reception
	txLog   []TxRecord
	notify  chan struct{}
}

func NewSimRadio(cfg Config, clock *radioclock.SimClock, medium Medium) *SimRadio {
	return &SimRadio{
		cfg:     cfg,
		clock:   clock,
		medium:  medium,
		node:    NewRadioNode(cfg.Channel),
		queue:   newEventQueue(),
		hwState: RadioOff,
		notify:  make(chan struct{}, 1),
	}
}

// SetEnergyMeter makes the radio report its state changes to m.
func (r *SimRadio) SetEnergyMeter(m *energy.Meter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.energy = m
}

// SetCapture makes the radio append every frame on the air to f.
func (r *SimRadio) SetCapture(f pcap.File) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capture = f
}

func (r *SimRadio) SetChannel(ch ChannelId) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.node.SetChannel(ch)
}

func (r *SimRadio) Medium() Medium {
	return r.medium
}

func (r *SimRadio) Clock() *radioclock.SimClock {
	return r.clock
}

func (r *SimRadio) Bind(h driver.EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handler = h
}

func (r *SimRadio) Capabilities() driver.Capabilities {
	return driver.Capabilities{
		AckOffload: r.cfg.AckOffload,
		CrcOffload: true,
		Buffer:     frame.Requirements{MaxPayload: MaxPhyPacketSize},
	}
}

func (r *SimRadio) GuardTime(tr driver.Transition) radioclock.Duration {
	if tr.From == RadioOff {
		return radioclock.Symbols(r.cfg.WakeupSymbols)
	}
	return radioclock.Symbols(r.cfg.TurnaroundSymbols)
}

func (r *SimRadio) Program(tr driver.Transition, task *driver.Task, start radioclock.Instant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.gen++
	r.task, r.hwState, r.start, r.rx = task, tr.To, start, nil
	r.node.SetRadioState(tr.To)
	if r.energy != nil {
		r.energy.SetRadioState(tr.To, r.clock.Now().Micros())
	}
	at := radioclock.Max(start, r.clock.Now())

	switch tr.To {
	case RadioOff:
		r.task = nil
	case RadioRx:
	case RadioWaitForAck:
		r.queue.Add(&radioEvent{Type: eventAckTimeout, Timestamp: radioclock.Max(at, start.Add(task.AckTimeout)), Gen: r.gen})
	case RadioTx, RadioSendAck:
		data, err := r.txFrame(tr.To, task)
		if err != nil {
			r.task = nil
			return err
		}
		r.txData = data
		r.queue.Add(&radioEvent{Type: eventTxStart, Timestamp: at, Gen: r.gen})
	}
	r.signal()
	return nil
}

// txFrame builds the PSDU as transmitted, with the FCS filled in by the radio.
func (r *SimRadio) txFrame(hw RadioState, task *driver.Task) ([]byte, error) {
	if hw == RadioSendAck {
		data := make([]byte, AckFrameSize)
		wpan.EncodeAck(data, task.Seq, false)
		return data, nil
	}
	if task.Buffer == nil {
		return nil, errors.Errorf("%s without frame", task)
	}
	n := task.Buffer.Len()
	if n < FcsSize+3 || n > MaxPhyPacketSize {
		return nil, errors.Errorf("cannot transmit PSDU of %d bytes", n)
	}
	data := append([]byte(nil), task.Buffer.Payload()...)
	binary.LittleEndian.PutUint16(data[n-FcsSize:], wpan.Fcs(data[:n-FcsSize]))
	return data, nil
}

func (r *SimRadio) Abort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	r.task = nil
	r.rx = nil
}

func (r *SimRadio) WakeAt(t radioclock.Instant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queue.Add(&radioEvent{Type: eventWakeup, Timestamp: radioclock.Max(t, r.clock.Now())})
	r.signal()
}

// InjectFrame puts a frame from another device on the air, with its RMARKER at at.
func (r *SimRadio) InjectFrame(at radioclock.Instant, psdu []byte) error {
	if len(psdu) < AckFrameSize || len(psdu) > MaxPhyPacketSize {
		return errors.Errorf("invalid PSDU length %d", len(psdu))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if now := r.clock.Now(); at < now {
		return errors.Errorf("frame at %s is in the past of %s", at, now)
	}
	r.queue.Add(&radioEvent{Type: eventFrameStart, Timestamp: at, Data: append([]byte(nil), psdu...)})
	r.signal()
	return nil
}

// NextEventTime returns when the next event is due.
func (r *SimRadio) NextEventTime() (radioclock.Instant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.queue.Len() == 0 {
		return radioclock.Never, false
	}
	return r.queue.NextTimestamp(), true
}

// Step advances the clock to the next event and processes it. It returns false if none is pending.
func (r *SimRadio) Step() bool {
	r.mu.Lock()
	if r.queue.Len() == 0 {
		r.mu.Unlock()
		return false
	}
	ev := r.queue.PopNext()
	if ev.Timestamp > r.clock.Now() {
		logger.PanicfIfError(r.clock.AdvanceTo(ev.Timestamp), "radio clock")
	}
	deliver := r.processLocked(ev)
	r.mu.Unlock()

	if deliver != nil {
		deliver()
	}
	return true
}

// RunUntil processes every event due up to t, then moves the clock to t.
func (r *SimRadio) RunUntil(t radioclock.Instant) {
	for {
		next, ok := r.NextEventTime()
		if !ok || next > t {
			break
		}
		r.Step()
	}
	if t > r.clock.Now() {
		logger.PanicfIfError(r.clock.AdvanceTo(t), "radio clock")
	}
}

// Run processes events paced against wall time until ctx is done.
func (r *SimRadio) Run(ctx context.Context) error {
	defer logger.Debugf("radio exit.")

	if r.cfg.Speed <= 0 {
		return errors.Errorf("radio speed %v must be positive", r.cfg.Speed)
	}
	wallStart, simStart := time.Now(), r.clock.Now()
	paced := func() radioclock.Instant {
		return simStart.Add(radioclock.Duration(float64(time.Since(wallStart)) * r.cfg.Speed))
	}

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	for {
		var wake <-chan time.Time
		if next, ok := r.NextEventTime(); ok {
			wait := time.Duration(float64(next.Sub(paced())) / r.cfg.Speed)
			if wait <= 0 {
				r.Step()
				continue
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(wait)
			wake = timer.C
		}

		select {
		case <-wake:
		case <-r.notify:
		case <-ctx.Done():
			return ctx.Err()
		}
		r.catchUp(paced())
	}
}

// catchUp moves an idle clock forward to the paced time, not beyond the next event.
func (r *SimRadio) catchUp(t radioclock.Instant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if next := r.queue.NextTimestamp(); next < t {
		t = next
	}
	if t > r.clock.Now() {
		_ = r.clock.AdvanceTo(t)
	}
}

func (r *SimRadio) processLocked(ev *radioEvent) func() {
	if ev.Gen != 0 && ev.Gen != r.gen {
		return nil
	}
	now := r.clock.Now()

	switch ev.Type {
	case eventTxStart:
		task := r.task
		if r.hwState == RadioTx && task.Cca != driver.CcaNone && !r.medium.ChannelClear(now, r.node.RadioChannel, task.Cca) {
			r.node.stats.CcaFailures++
			r.task = nil
			return r.doneFunc(driver.Completion{Status: driver.StatusCcaBusy, RMarker: now})
		}
		data := r.txData
		r.rmarker = now
		r.txLog = append(r.txLog, TxRecord{RMarker: now, Kind: task.Kind, Data: data})
		r.node.stats.NumBytesTx += len(data)
		if task.Kind == RadioSendAck {
			r.node.stats.AcksTx++
		} else {
			r.node.stats.FramesTx++
		}
		r.captureLocked(now, data, r.node.TxPower)
		r.queue.Add(&radioEvent{Type: eventTxDone, Timestamp: now.Add(airTime(len(data))), Gen: r.gen, Data: data})

	case eventTxDone:
		task := r.task
		r.task = nil
		if task.Kind == RadioTx {
			r.scheduleAckLocked(now, ev.Data)
		}
		return r.doneFunc(driver.Completion{Status: driver.StatusDone, RMarker: r.rmarker})

	case eventFrameStart:
		rssi := r.medium.RxRssi()
		r.captureLocked(now, ev.Data, rssi)
		if !r.listeningLocked(now) {
			r.node.stats.RxMissed++
			logger.Debugf("radio missed frame at %s in state %s", now, r.hwState)
			return nil
		}
		info := frameInfo(ev.Data)
		r.rx = &reception{data: ev.Data, info: info, rmarker: now}
		r.node.LastRssi = rssi
		r.queue.Add(&radioEvent{Type: eventFrameEnd, Timestamp: now.Add(airTime(len(ev.Data))), Gen: r.gen})
		h := r.handler
		return func() { h.OnFrameStarted(info) }

	case eventFrameEnd:
		rx, task := r.rx, r.task
		r.rx = nil
		r.node.stats.FramesRx++
		if r.hwState == RadioWaitForAck {
			if rx.info.IsAck && rx.info.Seq == task.Seq {
				r.task = nil
				return r.doneFunc(driver.Completion{Status: driver.StatusAcked, RMarker: rx.rmarker, Frame: rx.info})
			}
			if now >= r.start.Add(task.AckTimeout) {
				r.task = nil
				return r.doneFunc(driver.Completion{Status: driver.StatusNoAck, RMarker: now})
			}
			return nil
		}
		logger.AssertNil(task.Buffer.SetPayload(rx.data))
		r.task = nil
		return r.doneFunc(driver.Completion{Status: driver.StatusFrameReceived, RMarker: rx.rmarker, Frame: rx.info})

	case eventAckTimeout:
		if r.rx != nil {
			// decided when the frame ends
			return nil
		}
		r.task = nil
		return r.doneFunc(driver.Completion{Status: driver.StatusNoAck, RMarker: now})

	case eventWakeup:
		return r.handler.OnWakeup
	}
	return nil
}

func (r *SimRadio) listeningLocked(now radioclock.Instant) bool {
	if r.task == nil || r.rx != nil || r.start > now {
		return false
	}
	return r.hwState == RadioRx || r.hwState == RadioWaitForAck
}

// scheduleAckLocked lets the addressee acknowledge a frame that ended at end.
func (r *SimRadio) scheduleAckLocked(end radioclock.Instant, data []byte) {
	f, err := wpan.Dissect(data)
	if err != nil || f.IsAck() || !f.FrameControl.AckRequest() {
		return
	}
	if !r.medium.AckReceived(f.Seq) {
		logger.Debugf("radio: ack for seq %d lost", f.Seq)
		return
	}
	ack := make([]byte, AckFrameSize)
	wpan.EncodeAck(ack, f.Seq, false)
	r.queue.Add(&radioEvent{Type: eventFrameStart, Timestamp: end.Add(radioclock.Symbols(AifsPeriod + ShrDuration)), Data: ack})
}

func (r *SimRadio) doneFunc(c driver.Completion) func() {
	h := r.handler
	return func() { h.OnTaskDone(c) }
}

func (r *SimRadio) captureLocked(at radioclock.Instant, data []byte, rssi DbValue) {
	if r.capture == nil {
		return
	}
	err := r.capture.AppendFrame(pcap.Frame{
		Timestamp: at,
		Data:      data,
		Channel:   r.node.RadioChannel,
		Rssi:      float32(rssi),
	})
	if err != nil {
		logger.Warnf("pcap capture failed: %v", err)
	}
}

func (r *SimRadio) signal() {
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// TxLog returns the frames transmitted so far.
func (r *SimRadio) TxLog() []TxRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]TxRecord(nil), r.txLog...)
}

func (r *SimRadio) Stats() RadioNodeStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.node.stats
}

// HardwareState returns the state the radio hardware was last programmed to.
func (r *SimRadio) HardwareState() RadioState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hwState
}

func (r *SimRadio) LastRssi() DbValue {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.node.LastRssi
}

// airTime is the time from RMARKER to the end of a PSDU of n bytes.
func airTime(n int) radioclock.Duration {
	return radioclock.Symbols(int64(PhrDuration + n*SymbolsPerOctet))
}

func frameInfo(psdu []byte) driver.FrameInfo {
	info := driver.FrameInfo{Length: len(psdu)}
	if f, err := wpan.Dissect(psdu); err == nil {
		info.AckRequested = f.FrameControl.AckRequest()
		info.IsAck = f.IsAck()
		info.Seq = f.Seq
	}
	return info
}
