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

// Package mac implements the MAC scheduler: it owns the radio driver on behalf of all upper-layer
// traffic, runs the retry and CSMA/CA state machines of DATA transactions, keeps receive windows
// primed and turns received frames into indications.
package mac

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/openthread/ot-macsim/channel"
	"github.com/openthread/ot-macsim/csma"
	"github.com/openthread/ot-macsim/driver"
	"github.com/openthread/ot-macsim/frame"
	"github.com/openthread/ot-macsim/logger"
	"github.com/openthread/ot-macsim/pib"
	"github.com/openthread/ot-macsim/prng"
	"github.com/openthread/ot-macsim/radioclock"
	. "github.com/openthread/ot-macsim/types"
)

// ErrTaskCapacity rejects a task channel that cannot hold the receive lookahead next to a
// transmission.
var ErrTaskCapacity = errors.New("task channel too small")

// RequestChannel carries requests to the scheduler; each slot is held until its confirm.
type RequestChannel = channel.Channel[*Request, Confirm]

// IndicationChannel carries received frames to the upper layer.
type IndicationChannel = channel.Channel[Indication, struct{}]

type Config struct {
	// RxLookahead is the number of receive windows kept queued ahead of the radio.
	RxLookahead        int `yaml:"rx-lookahead" toml:"rx-lookahead"`
	RequestCapacity    int `yaml:"request-capacity" toml:"request-capacity"`
	RequestBacklog     int `yaml:"request-backlog" toml:"request-backlog"`
	IndicationCapacity int `yaml:"indication-capacity" toml:"indication-capacity"`
	RxBuffers          int `yaml:"rx-buffers" toml:"rx-buffers"`
	TxBuffers          int `yaml:"tx-buffers" toml:"tx-buffers"`
	// TxMargin is added to the driver's earliest start of a transmission.
	TxMargin radioclock.Duration `yaml:"tx-margin" toml:"tx-margin"`
	// SlotDuration aligns transmissions to slot boundaries of the radio clock when positive.
	SlotDuration radioclock.Duration `yaml:"slot-duration" toml:"slot-duration"`
	// MaxOverruns bounds how often a transmission may be pushed back by a reception in progress.
	MaxOverruns  int           `yaml:"max-overruns" toml:"max-overruns"`
	PollInterval time.Duration `yaml:"poll-interval" toml:"poll-interval"`
}

func DefaultConfig() Config {
	return Config{
		RxLookahead:        2,
		RequestCapacity:    4,
		RequestBacklog:     8,
		IndicationCapacity: 4,
		RxBuffers:          8,
		TxBuffers:          4,
		TxMargin:           radioclock.Symbols(UnitBackoffPeriod),
		MaxOverruns:        8,
		PollInterval:       10 * time.Millisecond,
	}
}

// TaskCapacity is the smallest task channel that serves cfg: the receive windows, as many radio-off
// tasks, and a transmission with its acknowledgment window.
func (cfg Config) TaskCapacity() int {
	return 2*cfg.RxLookahead + 2
}

type Stats struct {
	Transmissions      int
	CcaBusy            int
	NoAcks             int
	Overruns           int
	Confirms           int
	Successes          int
	Indications        int
	IndicationsDropped int
	StrayAcks          int
	RxPrimeFailures    int
	OffTasks           int
}

// Scheduler is the single owner of a driver.
type Scheduler struct {
	mu          sync.Mutex
	cfg         Config
	drv         *driver.Driver
	tasks       *driver.TaskChannel
	requests    *RequestChannel
	indications *IndicationChannel
	pib         *pib.Pib
	rxPool      *frame.Pool
	txPool      *frame.Pool
	rng         *rand.Rand
	onPibSet    func(pib.Attribute, uint64)

	nextTag uint64
	rxOn    bool
	queue   []*transaction
	active  *transaction
	txTags  map[uint64]*transaction
	rxTags  map[uint64]struct{}
	offTags map[uint64]struct{}
	stats   Stats
}

func NewScheduler(cfg Config, drv *driver.Driver, tasks *driver.TaskChannel, p *pib.Pib) (*Scheduler, error) {
	if tasks.Capacity() < cfg.TaskCapacity() {
		return nil, errors.Wrapf(ErrTaskCapacity, "capacity %d, lookahead %d needs %d", tasks.Capacity(), cfg.RxLookahead, cfg.TaskCapacity())
	}
	if cfg.RequestCapacity <= 0 || cfg.IndicationCapacity <= 0 || cfg.RxBuffers < cfg.RxLookahead {
		return nil, errors.Errorf("invalid scheduler config %+v", cfg)
	}

	req := frame.DefaultRequirements().Combine(drv.Capabilities().Buffer)
	s := &Scheduler{
		cfg:         cfg,
		drv:         drv,
		tasks:       tasks,
		requests:    channel.New[*Request, Confirm]("mac-requests", channel.Config{Capacity: cfg.RequestCapacity, Backlog: cfg.RequestBacklog}),
		indications: channel.New[Indication, struct{}]("mac-indications", channel.Config{Capacity: cfg.IndicationCapacity}),
		pib:         p,
		rxPool:      frame.NewPool(cfg.RxBuffers, req),
		txPool:      frame.NewPool(cfg.TxBuffers, req),
		rng:         prng.NewBackoffRand(),
		rxOn:        p.Snapshot().RxOnWhenIdle,
		txTags:      map[uint64]*transaction{},
		rxTags:      map[uint64]struct{}{},
		offTags:     map[uint64]struct{}{},
	}
	return s, nil
}

// OnPibSet registers f to be called after an attribute was set by a request.
func (s *Scheduler) OnPibSet(f func(pib.Attribute, uint64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onPibSet = f
}

func (s *Scheduler) Requests() *RequestChannel {
	return s.requests
}

func (s *Scheduler) Indications() *IndicationChannel {
	return s.indications
}

func (s *Scheduler) TxPool() *frame.Pool {
	return s.txPool
}

func (s *Scheduler) RxPool() *frame.Pool {
	return s.rxPool
}

func (s *Scheduler) Pib() *pib.Pib {
	return s.pib
}

func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Pending returns the number of receive windows and DATA transactions not yet completed.
func (s *Scheduler) Pending() (rxWindows int, transactions int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	transactions = len(s.queue)
	if s.active != nil {
		transactions++
	}
	return len(s.rxTags), transactions
}

// Run serves driver results and requests until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	defer logger.Debugf("mac scheduler exit.")

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		s.Poll()

		select {
		case <-s.drv.ResultsReady():
		case <-s.requests.Notify():
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Poll handles every pending driver result and request, then queues the radio work that follows.
// It reports whether anything was done.
func (s *Scheduler) Poll() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	progress := false
	for _, r := range s.drv.TakeResults() {
		s.handleResultLocked(r)
		progress = true
	}
	for {
		d, ok := s.requests.TryReceive()
		if !ok {
			break
		}
		s.handleRequestLocked(d)
		progress = true
	}
	if s.dispatchLocked() {
		progress = true
	}
	if s.primeRxLocked() {
		progress = true
	}
	return progress
}

func (s *Scheduler) newTag() uint64 {
	s.nextTag++
	return s.nextTag
}

func (s *Scheduler) handleResultLocked(r driver.Result) {
	if t, ok := s.txTags[r.Tag]; ok {
		delete(s.txTags, r.Tag)
		s.onTxResultLocked(t, r)
		return
	}
	if _, ok := s.rxTags[r.Tag]; ok {
		delete(s.rxTags, r.Tag)
		s.onRxResultLocked(r)
		return
	}
	if _, ok := s.offTags[r.Tag]; ok {
		delete(s.offTags, r.Tag)
		return
	}
	logger.Warnf("mac: result for unknown task %s", r)
}

func (s *Scheduler) onTxResultLocked(t *transaction, r driver.Result) {
	t.outstanding--

	switch r.Kind {
	case RadioTx:
		t.buf = r.Buffer
		if r.Status != driver.StatusDone {
			s.withdrawAckWaitLocked(t)
		}
		switch r.Status {
		case driver.StatusDone:
			s.stats.Transmissions++
			t.transmitted(r.RMarker)
		case driver.StatusCcaBusy:
			s.stats.CcaBusy++
			t.channelBusy()
		case driver.StatusSchedulingError:
			if errors.Is(r.Err, driver.ErrOverrun) {
				s.stats.Overruns++
				t.overrun(s.cfg.MaxOverruns)
			} else {
				logger.Errorf("mac: %s rejected: %v", t.req, r.Err)
				t.fail(StatusSchedulingError)
			}
		default:
			logger.Errorf("mac: unexpected %s", r)
			t.fail(StatusSchedulingError)
		}
	case RadioWaitForAck:
		t.ackTag = 0
		if t.state != TxAwaitingAck {
			break
		}
		switch r.Status {
		case driver.StatusAcked:
			t.succeed()
		case driver.StatusNoAck:
			s.stats.NoAcks++
			t.noAck()
		case driver.StatusSkipped:
			// no window was opened; the Tx result decides
		default:
			logger.Errorf("mac: unexpected %s", r)
			t.fail(StatusSchedulingError)
		}
	}

	if t.outstanding == 0 && t.state == TxAwaitingAck {
		// the frame went out but no ACK window followed it
		s.stats.NoAcks++
		t.noAck()
	}

	if t.outstanding == 0 && t.state.terminal() {
		s.finishLocked(t)
	}
}

// withdrawAckWaitLocked takes back a WaitForAck still queued behind a Tx that was not sent.
func (s *Scheduler) withdrawAckWaitLocked(t *transaction) {
	if t.ackTag == 0 {
		return
	}
	tag := t.ackTag
	if _, ok := s.tasks.TryReceiveMatching(func(task *driver.Task) bool { return task.Tag == tag }); !ok {
		// already with the driver, which reports it skipped
		return
	}
	delete(s.txTags, tag)
	t.ackTag = 0
	t.outstanding--
}

func (s *Scheduler) finishLocked(t *transaction) {
	if t.buf != nil {
		t.buf.Release()
		t.buf = nil
	}
	if s.active == t {
		s.active = nil
	}
	c := t.confirm()
	s.stats.Confirms++
	if c.Status == StatusSuccess {
		s.stats.Successes++
	}
	logger.Debugf("mac: %s", c)
	s.requests.Respond(t.delivery, c)
}

func (s *Scheduler) onRxResultLocked(r driver.Result) {
	if r.Status == driver.StatusFrameReceived {
		if !r.Frame.IsAck {
			s.indicateLocked(r)
			return
		}
		s.stats.StrayAcks++
	}
	r.Buffer.Release()
}

func (s *Scheduler) indicateLocked(r driver.Result) {
	toks, ok := s.indications.TryReserve(1)
	if !ok {
		s.stats.IndicationsDropped++
		logger.Warnf("mac: indication dropped, %d undelivered", s.indications.Queued())
		r.Buffer.Release()
		return
	}
	s.stats.Indications++
	s.indications.Commit(toks[0], Indication{
		Frame:        r.Buffer,
		RMarker:      r.RMarker,
		Seq:          r.Frame.Seq,
		AckRequested: r.Frame.AckRequested,
	})
}

func (s *Scheduler) handleRequestLocked(d *channel.Delivery[*Request, Confirm]) {
	req := d.Msg
	logger.Debugf("mac: %s.request", req)

	switch req.Op {
	case OpData:
		if st := validateData(req); st != StatusSuccess {
			if req.Frame != nil {
				req.Frame.Release()
			}
			s.requests.Respond(d, Confirm{Op: OpData, Handle: req.Handle, Status: st})
			return
		}
		vals := s.pib.Snapshot()
		backoff := csma.New(vals.CsmaParams(), s.rng)
		s.queue = append(s.queue, newTransaction(d, int(vals.MaxFrameRetries), backoff))
	case OpPurge:
		s.requests.Respond(d, Confirm{Op: OpPurge, Handle: req.Handle, Status: s.purgeLocked(req.Handle)})
	case OpGet:
		v, err := s.pib.Get(req.Attr)
		s.requests.Respond(d, Confirm{Op: OpGet, Attr: req.Attr, Value: v, Status: pibStatus(err)})
	case OpSet:
		err := s.pib.Set(req.Attr, req.Value)
		if err == nil {
			s.pibSetLocked(req.Attr, req.Value)
		}
		s.requests.Respond(d, Confirm{Op: OpSet, Attr: req.Attr, Value: req.Value, Status: pibStatus(err)})
	case OpReset:
		s.resetLocked(req.SetDefaultPib)
		s.requests.Respond(d, Confirm{Op: OpReset, Status: StatusSuccess})
	case OpRxEnable:
		var v uint64
		if req.RxOn {
			v = 1
		}
		logger.AssertNil(s.pib.Set(pib.AttrRxOnWhenIdle, v))
		s.pibSetLocked(pib.AttrRxOnWhenIdle, v)
		s.requests.Respond(d, Confirm{Op: OpRxEnable, Status: StatusSuccess})
	default:
		s.requests.Respond(d, Confirm{Op: req.Op, Status: StatusInvalidParameter})
	}
}

func validateData(req *Request) Status {
	switch {
	case req.Frame == nil || req.Frame.Len() < AckFrameSize:
		return StatusInvalidParameter
	case req.Frame.Len() > MaxPhyPacketSize:
		return StatusFrameTooLong
	}
	return StatusSuccess
}

func pibStatus(err error) Status {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, pib.ErrUnsupportedAttribute):
		return StatusUnsupportedAttribute
	default:
		return StatusInvalidParameter
	}
}

func (s *Scheduler) pibSetLocked(a pib.Attribute, v uint64) {
	if a == pib.AttrRxOnWhenIdle {
		s.setRxOnLocked(v != 0)
	}
	if s.onPibSet != nil {
		s.onPibSet(a, v)
	}
}

// purgeLocked removes a queued transaction. A transaction already on the air cannot be purged.
func (s *Scheduler) purgeLocked(handle uint8) Status {
	for i, t := range s.queue {
		if t.req.Handle != handle {
			continue
		}
		s.queue = append(s.queue[:i], s.queue[i+1:]...)
		t.fail(StatusPurged)
		s.finishLocked(t)
		return StatusSuccess
	}
	return StatusInvalidHandle
}

func (s *Scheduler) resetLocked(setDefaultPib bool) {
	for _, t := range s.queue {
		t.fail(StatusPurged)
		s.finishLocked(t)
	}
	s.queue = nil
	if setDefaultPib {
		s.pib.Reset()
		vals := s.pib.Snapshot()
		if s.onPibSet != nil {
			s.onPibSet(pib.AttrChannel, uint64(vals.Channel))
		}
	}
	s.setRxOnLocked(s.pib.Snapshot().RxOnWhenIdle)
}

// setRxOnLocked switches the idle receiver. Queued receive windows cannot be withdrawn, so one Off
// task is queued per outstanding window; the last task the radio executes is then an Off.
func (s *Scheduler) setRxOnLocked(on bool) {
	wasOn := s.rxOn
	s.rxOn = on
	if on || !wasOn {
		return
	}

	n := len(s.rxTags)
	if n == 0 {
		n = 1
	}
	toks, ok := s.tasks.TryReserve(n)
	if !ok {
		logger.Warnf("mac: no task slots to turn the receiver off")
		return
	}
	offs := make([]*driver.Task, n)
	for i := range offs {
		offs[i] = driver.NewOffTask(driver.BestEffort())
		offs[i].Tag = s.newTag()
		s.offTags[offs[i].Tag] = struct{}{}
	}
	s.stats.OffTasks += n
	s.tasks.CommitAll(toks, offs)
}

// dispatchLocked queues the next attempt of the active transaction, with its CSMA/CA delay.
func (s *Scheduler) dispatchLocked() bool {
	if s.active == nil {
		if len(s.queue) == 0 {
			return false
		}
		s.active, s.queue = s.queue[0], s.queue[1:]
	}
	t := s.active
	if t.state != TxPending || t.outstanding > 0 {
		return false
	}

	n := 1
	if t.req.AckRequest {
		n = 2
	}
	toks, ok := s.tasks.TryReserve(n)
	if !ok {
		return false
	}

	tx := driver.NewTxTask(driver.At(s.txStartLocked(t.backoff.Delay())), t.buf, driver.CcaEnergy)
	tx.Tag = s.newTag()
	s.txTags[tx.Tag] = t
	tasks := []*driver.Task{tx}
	if t.req.AckRequest {
		w := driver.NewWaitForAckTask(t.req.Seq, radioclock.Symbols(AckWaitDuration))
		w.Tag = s.newTag()
		s.txTags[w.Tag] = t
		t.ackTag = w.Tag
		tasks = append(tasks, w)
	}

	t.dispatched(n)
	t.buf = nil
	logger.Tracef("mac: %s attempt %d at %s (BE %d)", t.req, t.attempts+1, tx.At, t.backoff.BE())
	s.tasks.CommitAll(toks, tasks)
	return true
}

func (s *Scheduler) txStartLocked(delay radioclock.Duration) radioclock.Instant {
	at := s.drv.EarliestStart(RadioTx).Add(s.cfg.TxMargin + delay)
	if slot := s.cfg.SlotDuration; slot > 0 {
		if rem := radioclock.Duration(uint64(at) % uint64(slot)); rem != 0 {
			at = at.Add(slot - rem)
		}
	}
	return at
}

// primeRxLocked keeps RxLookahead receive windows queued. The task slot is reserved before the
// buffer is allocated and given back if allocation fails.
func (s *Scheduler) primeRxLocked() bool {
	primed := false
	for s.rxOn && len(s.rxTags) < s.cfg.RxLookahead {
		toks, ok := s.tasks.TryReserve(1)
		if !ok {
			break
		}
		buf, err := s.rxPool.TryAllocate()
		if err != nil {
			s.tasks.Release(toks...)
			s.stats.RxPrimeFailures++
			break
		}
		task := driver.NewRxTask(driver.BestEffort(), buf)
		task.Tag = s.newTag()
		s.rxTags[task.Tag] = struct{}{}
		s.tasks.Commit(toks[0], task)
		primed = true
	}
	return primed
}
