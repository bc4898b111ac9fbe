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

// Package driver implements the radio driver task state machine. The driver executes one task at a
// time with at most one more task pre-programmed behind it, and reports every task's outcome as a
// Result. Ordering and prioritization of tasks is left to the caller.
package driver

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/openthread/ot-macsim/frame"
	"github.com/openthread/ot-macsim/logger"
	"github.com/openthread/ot-macsim/radioclock"
	. "github.com/openthread/ot-macsim/types"
)

var (
	// ErrScheduling rejects a task that cannot be started within its transition's guard time.
	// It indicates a caller fault and is never retried by the driver.
	ErrScheduling = errors.New("task violates guard time")
	// ErrPipelineFull rejects a task while one is already pre-programmed.
	ErrPipelineFull = errors.New("driver pipeline full")
	// ErrInvalidTransition rejects a task the state machine cannot enter from its current state.
	ErrInvalidTransition = errors.New("invalid driver transition")
	// ErrInvalidTask rejects a malformed task.
	ErrInvalidTask = errors.New("invalid driver task")
	// ErrOverrun reports a pre-programmed task whose start passed while the previous task could not
	// be ended, e.g. during a reception. It is an ErrScheduling.
	ErrOverrun = errors.Wrap(ErrScheduling, "overrun by previous task")
)

const ackFrameControl = 0x0002

type Config struct {
	// AutoAck acknowledges received frames that request it.
	AutoAck bool `yaml:"auto-ack" toml:"auto-ack"`
}

func DefaultConfig() Config {
	return Config{
		AutoAck: true,
	}
}

// Stats counts state machine events.
type Stats struct {
	Started     uint64
	Rejected    uint64
	Superseded  uint64
	Deferred    uint64
	AcksSent    uint64
	LateStarted uint64
}

// Driver is the task state machine of one radio. It is owned by a single scheduler.
type Driver struct {
	mu          sync.Mutex
	cfg         Config
	backend     Backend
	clock       radioclock.Clock
	caps        Capabilities
	transitions map[Transition]TransitionFunc

	state        RadioState
	current      *Task
	currentStart radioclock.Instant
	next         *Task
	rxFrame      *FrameInfo
	lastFrameLen int
	lastFrameEnd radioclock.Instant
	ackBuf       *frame.Buffer
	ackDeadline  radioclock.Instant

	outbox       []Result
	resultReady  chan struct{}
	stateChanged chan struct{}
	stats        Stats
}

// New creates a driver in state Off and binds it to the backend.
func New(backend Backend, clock radioclock.Clock, cfg Config) *Driver {
	d := &Driver{
		cfg:          cfg,
		backend:      backend,
		clock:        clock,
		caps:         backend.Capabilities(),
		transitions:  defaultTransitions(),
		state:        RadioOff,
		lastFrameEnd: radioclock.Never,
		ackDeadline:  radioclock.Never,
		resultReady:  make(chan struct{}, 1),
		stateChanged: make(chan struct{}, 1),
	}
	d.ackBuf = frame.NewBuffer(frame.Requirements{MaxPayload: MaxPhyPacketSize}.Combine(d.caps.Buffer))
	if o, ok := backend.(TransitionOverrider); ok {
		for tr, fn := range o.Transitions() {
			d.transitions[tr] = fn
		}
	}
	backend.Bind(d)
	return d
}

func (d *Driver) Capabilities() Capabilities {
	return d.caps
}

// State returns the state the radio is in or is held in.
func (d *Driver) State() RadioState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Pipeline returns the executing and the pre-programmed task, either may be nil.
func (d *Driver) Pipeline() (current, next *Task) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current, d.next
}

func (d *Driver) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// GuardTime returns the lead time required for tr.
func (d *Driver) GuardTime(tr Transition) radioclock.Duration {
	return d.backend.GuardTime(Transition{d.caps.hardwareState(tr.From), d.caps.hardwareState(tr.To)})
}

// MaxGuardTime returns the largest lead time of any transition into to.
func (d *Driver) MaxGuardTime(to RadioState) radioclock.Duration {
	var max radioclock.Duration
	for tr := range d.transitions {
		if tr.To == to {
			if g := d.GuardTime(tr); g > max {
				max = g
			}
		}
	}
	return max
}

// EarliestStart returns the earliest start a task of kind presented now can be scheduled for.
func (d *Driver) EarliestStart(kind RadioState) radioclock.Instant {
	d.mu.Lock()
	defer d.mu.Unlock()

	from := d.state
	if d.current != nil {
		from = d.current.Kind
	}
	now := d.clock.Now()
	return radioclock.Max(now, d.currentEndLocked(now)).Add(d.GuardTime(Transition{from, kind}))
}

// ResultsReady receives a value when results are waiting in TakeResults.
func (d *Driver) ResultsReady() <-chan struct{} {
	return d.resultReady
}

// TakeResults returns and clears the pending results in completion order.
func (d *Driver) TakeResults() []Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	res := d.outbox
	d.outbox = nil
	return res
}

// StateChanged receives a value whenever the pipeline advanced.
func (d *Driver) StateChanged() <-chan struct{} {
	return d.stateChanged
}

// Schedule presents the next task. It starts at once if the driver is idle, otherwise it is
// pre-programmed behind the executing task. A task whose start cannot be met within the guard time
// is rejected with ErrScheduling and leaves the state machine unchanged.
func (d *Driver) Schedule(task *Task) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.validateLocked(task); err != nil {
		d.stats.Rejected++
		return err
	}
	if d.next != nil {
		return ErrPipelineFull
	}

	from := d.state
	if d.current != nil {
		from = d.current.Kind
	}
	if task.Kind == RadioWaitForAck && from != RadioTx {
		// the frame to be acknowledged was never sent
		d.postLocked(Result{Tag: task.Tag, Kind: task.Kind, Status: StatusSkipped, RMarker: d.clock.Now()})
		return nil
	}
	tr := Transition{from, task.Kind}
	if _, ok := d.transitions[tr]; !ok {
		d.stats.Rejected++
		return errors.Wrapf(ErrInvalidTransition, "%s", tr)
	}

	if task.At.Scheduled() {
		now := d.clock.Now()
		earliest := radioclock.Max(now, d.currentEndLocked(now))
		guard := d.GuardTime(tr)
		if earliest.Add(guard) > task.At.Instant() {
			d.stats.Rejected++
			return errors.Wrapf(ErrScheduling, "%s at %s needs %s lead from %s", tr, task.At, guard, earliest)
		}
	}

	if d.current == nil {
		d.startLocked(from, task)
	} else {
		d.next = task
		d.evaluateLocked()
	}
	d.signalStateLocked()
	return nil
}

// Reject reports a task that was taken from the queue but refused by Schedule, returning its buffer.
func (d *Driver) Reject(task *Task, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.postLocked(Result{
		Tag:     task.Tag,
		Kind:    task.Kind,
		Status:  StatusSchedulingError,
		RMarker: d.clock.Now(),
		Buffer:  task.Buffer,
		Err:     err,
	})
}

func (d *Driver) validateLocked(task *Task) error {
	switch task.Kind {
	case RadioOff:
	case RadioRx, RadioTx:
		if task.Buffer == nil {
			return errors.Wrapf(ErrInvalidTask, "%s without buffer", task.Kind)
		}
	case RadioWaitForAck:
		if task.AckTimeout <= 0 {
			return errors.Wrapf(ErrInvalidTask, "%s without timeout", task.Kind)
		}
	case RadioSendAck:
		return errors.Wrapf(ErrInvalidTransition, "%s is issued by the driver only", task.Kind)
	default:
		return errors.Wrapf(ErrInvalidTask, "kind %d", task.Kind)
	}
	return nil
}

// currentEndLocked is when the executing task is known to end; Rx and Off end when superseded.
func (d *Driver) currentEndLocked(now radioclock.Instant) radioclock.Instant {
	if d.current == nil {
		return now
	}
	switch d.current.Kind {
	case RadioTx:
		return d.currentStart.Add(radioclock.Symbols(PhrDuration + int64(d.current.Buffer.Len())*SymbolsPerOctet))
	case RadioSendAck:
		return d.currentStart.Add(radioclock.Symbols(PhrDuration + AckFrameSize*SymbolsPerOctet))
	case RadioWaitForAck:
		return d.currentStart.Add(d.current.AckTimeout)
	default:
		return now
	}
}

func (d *Driver) startTimeLocked(tr Transition, task *Task) radioclock.Instant {
	if task.At.Scheduled() {
		return task.At.Instant()
	}
	now := d.clock.Now()
	start := now.Add(d.GuardTime(tr))
	if d.lastFrameEnd == radioclock.Never {
		return start
	}
	switch tr.To {
	case RadioSendAck:
		return radioclock.Max(now, d.lastFrameEnd.Add(radioclock.Symbols(AifsPeriod+ShrDuration)))
	case RadioTx:
		return radioclock.Max(start, d.lastFrameEnd.Add(radioclock.Symbols(IfsSymbols(d.lastFrameLen)+ShrDuration)))
	case RadioWaitForAck:
		return now
	}
	return start
}

func (d *Driver) startLocked(from RadioState, task *Task) {
	tr := Transition{from, task.Kind}
	start := d.startTimeLocked(tr, task)

	d.current = task
	d.currentStart = start
	d.state = task.Kind
	d.stats.Started++
	logger.Tracef("driver %s %s start %s", tr, task, start)

	if err := d.transitions[tr](d, task, start); err != nil {
		logger.Warnf("driver %s %s failed: %v", tr, task, err)
		d.current = nil
		d.state = RadioOff
		if !task.internal {
			d.postLocked(d.resultLocked(task, Completion{Status: StatusSchedulingError, RMarker: start}, err))
		}
	}
}

// program hands a transition to the backend, mapped to the states the hardware executes.
func (d *Driver) program(tr Transition, task *Task, start radioclock.Instant) error {
	hw := Transition{d.caps.hardwareState(tr.From), d.caps.hardwareState(tr.To)}
	return d.backend.Program(hw, task, start)
}

// evaluateLocked supersedes an idle Rx window or an Off period by the pre-programmed task when due.
func (d *Driver) evaluateLocked() {
	if d.current == nil || d.next == nil {
		return
	}
	cur := d.current
	if cur.Kind != RadioOff && cur.Kind != RadioRx {
		return
	}
	if cur.Kind == RadioRx {
		if d.rxFrame != nil {
			d.stats.Deferred++
			return
		}
		if d.next.Kind == RadioRx && !d.next.At.Scheduled() {
			return
		}
	}
	if d.next.At.Scheduled() {
		switchAt := d.next.At.Instant().Add(-d.GuardTime(Transition{cur.Kind, d.next.Kind}))
		if now := d.clock.Now(); now < switchAt {
			d.backend.WakeAt(switchAt)
			return
		}
	}

	d.backend.Abort()
	d.stats.Superseded++
	status := StatusDone
	if cur.Kind == RadioRx {
		status = StatusWindowEnded
	}
	d.postLocked(d.resultLocked(cur, Completion{Status: status, RMarker: d.clock.Now()}, nil))
	d.current = nil
	d.promoteLocked()
}

// promoteLocked starts the pre-programmed task, unless the previous task overran its start.
func (d *Driver) promoteLocked() {
	n := d.next
	if n == nil {
		return
	}
	d.next = nil

	if n.Kind == RadioWaitForAck && d.state != RadioTx {
		d.postLocked(Result{Tag: n.Tag, Kind: n.Kind, Status: StatusSkipped, RMarker: d.clock.Now()})
		return
	}
	tr := Transition{d.state, n.Kind}
	if n.At.Scheduled() && d.clock.Now().Add(d.GuardTime(tr)) > n.At.Instant() {
		d.stats.LateStarted++
		d.postLocked(d.resultLocked(n, Completion{Status: StatusSchedulingError, RMarker: d.clock.Now()},
			errors.Wrapf(ErrOverrun, "%s at %s", tr, n.At)))
		return
	}
	d.startLocked(d.state, n)
}

// OnFrameStarted is called by the backend when a start of frame was recognized.
func (d *Driver) OnFrameStarted(info FrameInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.current == nil || !d.current.Kind.IsReceiving() {
		return
	}
	d.rxFrame = &info
}

// OnTaskDone is called by the backend when the programmed task finished on its own.
func (d *Driver) OnTaskDone(c Completion) {
	d.mu.Lock()
	defer d.mu.Unlock()
	defer d.signalStateLocked()

	task := d.current
	if task == nil {
		logger.Warnf("driver completion %s without task", c.Status)
		return
	}
	d.rxFrame = nil
	d.current = nil
	now := d.clock.Now()

	var skipped *Task
	switch task.Kind {
	case RadioTx:
		if c.Status == StatusCcaBusy {
			d.state = RadioOff
			if d.next != nil && d.next.Kind == RadioWaitForAck {
				skipped, d.next = d.next, nil
			}
		} else {
			d.lastFrameLen, d.lastFrameEnd = task.Buffer.Len(), now
		}
	case RadioSendAck:
		d.lastFrameLen, d.lastFrameEnd = AckFrameSize, now
		d.stats.AcksSent++
	case RadioWaitForAck:
		d.ackDeadline = radioclock.Never
		if c.Status == StatusFrameReceived {
			c.Status = StatusNoAck
			if c.Frame.IsAck && c.Frame.Seq == task.Seq {
				c.Status = StatusAcked
			}
		}
		if c.Status == StatusAcked {
			d.lastFrameLen, d.lastFrameEnd = AckFrameSize, now
		}
	case RadioRx:
		if c.Status == StatusFrameReceived {
			d.lastFrameLen, d.lastFrameEnd = c.Frame.Length, now
		}
	}

	if !task.internal {
		d.postLocked(d.resultLocked(task, c, nil))
	}
	if skipped != nil {
		d.postLocked(Result{Tag: skipped.Tag, Kind: skipped.Kind, Status: StatusSkipped, RMarker: now})
	}

	if task.Kind == RadioRx && c.Status == StatusFrameReceived && c.Frame.AckRequested && !c.Frame.IsAck && d.cfg.AutoAck {
		ack := &Task{Kind: RadioSendAck, At: BestEffort(), Buffer: d.ackBuf, Seq: c.Frame.Seq, internal: true}
		d.startLocked(RadioRx, ack)
		if d.current != nil {
			return
		}
	}
	d.promoteLocked()
}

// OnWakeup is called by the backend at an instant requested with WakeAt.
func (d *Driver) OnWakeup() {
	d.mu.Lock()
	defer d.mu.Unlock()
	defer d.signalStateLocked()

	cur := d.current
	if cur != nil && cur.Kind == RadioWaitForAck && !d.caps.AckOffload &&
		d.rxFrame == nil && d.clock.Now() >= d.ackDeadline {
		d.backend.Abort()
		d.ackDeadline = radioclock.Never
		d.current = nil
		d.postLocked(d.resultLocked(cur, Completion{Status: StatusNoAck, RMarker: d.clock.Now()}, nil))
		d.promoteLocked()
		return
	}
	d.evaluateLocked()
}

func (d *Driver) resultLocked(task *Task, c Completion, err error) Result {
	buf := task.Buffer
	if buf == d.ackBuf {
		buf = nil
	}
	return Result{
		Tag:     task.Tag,
		Kind:    task.Kind,
		Status:  c.Status,
		RMarker: c.RMarker,
		Buffer:  buf,
		Frame:   c.Frame,
		Err:     err,
	}
}

func (d *Driver) postLocked(r Result) {
	logger.Debugf("driver result %s", r)
	d.outbox = append(d.outbox, r)
	select {
	case d.resultReady <- struct{}{}:
	default:
	}
}

func (d *Driver) signalStateLocked() {
	select {
	case d.stateChanged <- struct{}{}:
	default:
	}
}

// acceptFilters returns, in order of preference, the kinds of task the driver can take next.
func (d *Driver) acceptFilters() []func(*Task) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.next != nil {
		return nil
	}
	// a WaitForAck only follows the Tx it acknowledges
	ackWait := func(t *Task) bool { return t.Kind == RadioWaitForAck }
	notAckWait := func(t *Task) bool { return t.Kind != RadioWaitForAck }
	if d.current == nil {
		if d.state == RadioTx {
			return []func(*Task) bool{ackWait, notAckWait}
		}
		return []func(*Task) bool{notAckWait}
	}
	switch d.current.Kind {
	case RadioRx:
		return []func(*Task) bool{func(t *Task) bool { return t.Kind != RadioRx && t.Kind != RadioWaitForAck }}
	case RadioTx:
		return []func(*Task) bool{ackWait, notAckWait}
	default:
		return []func(*Task) bool{notAckWait}
	}
}
