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

// Package channel implements a bounded multi-producer, single-consumer message channel with two-phase
// reserve-then-commit semantics.
//
// A producer first reserves slots, then commits one message into each reserved slot. Reserving blocks
// while the channel is full, so capacity is claimed before the producer allocates anything else for the
// message; a producer that fails afterwards releases its reservation without having used transport
// capacity. Committing never blocks. Each slot cycles Free -> Reserved -> Committed -> Free; a slot whose
// message expects a response stays with the consumer until it responds.
package channel

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/openthread/ot-macsim/logger"
	"github.com/openthread/ot-macsim/radioclock"
)

var (
	// ErrBacklogFull is returned by Reserve when the waiting registry is already at its bound.
	ErrBacklogFull = errors.New("reservation backlog full")
	// ErrCapacity is returned when a single reservation asks for more slots than the channel has.
	ErrCapacity = errors.New("reservation exceeds channel capacity")
)

type Config struct {
	Capacity int                 `yaml:"capacity" toml:"capacity"`
	Backlog  int                 `yaml:"backlog" toml:"backlog"`
	IdleGap  radioclock.Duration `yaml:"-" toml:"-"`
}

func DefaultConfig() Config {
	return Config{
		Capacity: 4,
		Backlog:  8,
	}
}

type slotState uint8

const (
	slotFree slotState = iota
	slotReserved
	slotCommitted
	slotAwaitingResponse
)

type slot[Req, Resp any] struct {
	state   slotState
	gen     uint64
	msg     Req
	pending *Pending[Resp]
}

// Token is the right to commit one message into one reserved slot. It is used exactly once,
// by Commit or by Release.
type Token struct {
	owner interface{}
	slot  int
	gen   uint64
	used  bool
}

type waiter struct {
	n      int
	tokens []*Token
	ready  chan struct{}
}

// Pending is the producer's handle on a committed message that expects a response.
type Pending[Resp any] struct {
	done chan struct{}
	resp Resp
}

// Done is closed once the response is available.
func (p *Pending[Resp]) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the consumer responds or ctx ends. Giving up does not leak the slot: it is freed
// when the consumer responds.
func (p *Pending[Resp]) Wait(ctx context.Context) (Resp, error) {
	select {
	case <-p.done:
		return p.resp, nil
	case <-ctx.Done():
		var zero Resp
		return zero, ctx.Err()
	}
}

// Delivery is a received message. If it expects a response, the consumer must Respond to it.
type Delivery[Req, Resp any] struct {
	Msg     Req
	slot    int
	gen     uint64
	pending *Pending[Resp]
}

func (d *Delivery[Req, Resp]) ExpectsResponse() bool {
	return d.pending != nil
}

// Channel carries messages of type Req to a single consumer, which may answer with Resp.
type Channel[Req, Resp any] struct {
	mu      sync.Mutex
	name    string
	cfg     Config
	slots   []slot[Req, Resp]
	free    []int
	fifo    []int
	backlog []*waiter
	notify  chan struct{}
	nextGen uint64

	// deadline ordering, nil when the channel is plain FIFO
	deadline  func(Req) (radioclock.Instant, bool)
	clock     radioclock.Clock
	deadlines deadlineQueue
	seq       uint64
}

// New creates a channel delivering messages in commit order.
func New[Req, Resp any](name string, cfg Config) *Channel[Req, Resp] {
	logger.AssertTrue(cfg.Capacity > 0, "channel capacity must be positive")
	logger.AssertTrue(cfg.Backlog >= 0, "channel backlog must not be negative")

	c := &Channel[Req, Resp]{
		name:   name,
		cfg:    cfg,
		slots:  make([]slot[Req, Resp], cfg.Capacity),
		free:   make([]int, 0, cfg.Capacity),
		fifo:   make([]int, 0, cfg.Capacity),
		notify: make(chan struct{}, 1),
	}
	for i := cfg.Capacity - 1; i >= 0; i-- {
		c.free = append(c.free, i)
	}
	return c
}

func (c *Channel[Req, Resp]) Name() string {
	return c.name
}

func (c *Channel[Req, Resp]) Capacity() int {
	return c.cfg.Capacity
}

// Free returns the number of slots that are neither reserved nor holding a message.
func (c *Channel[Req, Resp]) Free() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.free)
}

// Queued returns the number of committed messages not yet received.
func (c *Channel[Req, Resp]) Queued() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.fifo) + len(c.deadlines)
}

// Waiting returns the number of producers suspended in Reserve.
func (c *Channel[Req, Resp]) Waiting() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.backlog)
}

// Reserve claims n slots, suspending until they are available or ctx ends. Waiting producers are
// served in arrival order; a request for more slots than are free holds back later requests.
func (c *Channel[Req, Resp]) Reserve(ctx context.Context, n int) ([]*Token, error) {
	if n <= 0 || n > c.cfg.Capacity {
		return nil, errors.Wrapf(ErrCapacity, "%s: %d slots of %d", c.name, n, c.cfg.Capacity)
	}

	c.mu.Lock()
	if len(c.backlog) == 0 && len(c.free) >= n {
		tokens := c.takeLocked(n)
		c.mu.Unlock()
		return tokens, nil
	}
	if len(c.backlog) >= c.cfg.Backlog {
		c.mu.Unlock()
		return nil, errors.Wrapf(ErrBacklogFull, "%s: %d producers waiting", c.name, c.cfg.Backlog)
	}
	w := &waiter{n: n, ready: make(chan struct{})}
	c.backlog = append(c.backlog, w)
	c.mu.Unlock()

	select {
	case <-w.ready:
		return w.tokens, nil
	case <-ctx.Done():
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-w.ready:
		// granted while giving up
		for _, tok := range w.tokens {
			tok.used = true
			c.freeLocked(tok.slot)
		}
	default:
		for i, bw := range c.backlog {
			if bw == w {
				c.backlog = append(c.backlog[:i], c.backlog[i+1:]...)
				break
			}
		}
		c.wakeLocked()
	}
	return nil, ctx.Err()
}

// TryReserve claims n slots only if that is possible without waiting.
func (c *Channel[Req, Resp]) TryReserve(n int) ([]*Token, bool) {
	if n <= 0 || n > c.cfg.Capacity {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.backlog) > 0 || len(c.free) < n {
		return nil, false
	}
	return c.takeLocked(n), true
}

// Release returns unused reservations to the channel.
func (c *Channel[Req, Resp]) Release(tokens ...*Token) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, tok := range tokens {
		c.checkTokenLocked(tok)
	}
	for _, tok := range tokens {
		tok.used = true
		c.freeLocked(tok.slot)
	}
}

// Commit puts msg into the reserved slot. It never blocks.
func (c *Channel[Req, Resp]) Commit(tok *Token, msg Req) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.checkTokenLocked(tok)
	c.commitLocked(tok, msg, nil)
	c.signal()
}

// CommitAwaitingResponse commits msg and keeps its slot until the consumer responds.
func (c *Channel[Req, Resp]) CommitAwaitingResponse(tok *Token, msg Req) *Pending[Resp] {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.checkTokenLocked(tok)
	p := &Pending[Resp]{done: make(chan struct{})}
	c.commitLocked(tok, msg, p)
	c.signal()
	return p
}

// CommitAll commits one message per token at once; the consumer never observes a partial batch.
func (c *Channel[Req, Resp]) CommitAll(tokens []*Token, msgs []Req) {
	logger.AssertEqual(len(tokens), len(msgs), "one message per token")

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, tok := range tokens {
		c.checkTokenLocked(tok)
	}
	for i, tok := range tokens {
		c.commitLocked(tok, msgs[i], nil)
	}
	c.signal()
}

// Notify returns a channel that receives a value after messages were committed. The consumer uses it
// to sleep between TryReceive calls.
func (c *Channel[Req, Resp]) Notify() <-chan struct{} {
	return c.notify
}

// TryReceive returns the next message without waiting.
func (c *Channel[Req, Resp]) TryReceive() (*Delivery[Req, Resp], bool) {
	return c.TryReceiveMatching(nil)
}

// TryReceiveMatching returns the next message accepted by match, leaving others queued in place.
func (c *Channel[Req, Resp]) TryReceiveMatching(match func(Req) bool) (*Delivery[Req, Resp], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx, ok := c.pickLocked(match)
	if !ok {
		return nil, false
	}

	s := &c.slots[idx]
	d := &Delivery[Req, Resp]{
		Msg:     s.msg,
		slot:    idx,
		gen:     s.gen,
		pending: s.pending,
	}
	if s.pending != nil {
		s.state = slotAwaitingResponse
	} else {
		c.freeLocked(idx)
	}
	return d, true
}

// Receive waits for the next message.
func (c *Channel[Req, Resp]) Receive(ctx context.Context) (*Delivery[Req, Resp], error) {
	return c.ReceiveMatching(ctx, nil)
}

// ReceiveMatching waits for the next message accepted by match.
func (c *Channel[Req, Resp]) ReceiveMatching(ctx context.Context, match func(Req) bool) (*Delivery[Req, Resp], error) {
	for {
		if d, ok := c.TryReceiveMatching(match); ok {
			return d, nil
		}
		select {
		case <-c.notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Respond completes a delivery that expects a response and frees its slot.
func (c *Channel[Req, Resp]) Respond(d *Delivery[Req, Resp], resp Resp) {
	c.mu.Lock()
	s := &c.slots[d.slot]
	logger.AssertTrue(d.pending != nil, "%s: message expects no response", c.name)
	logger.AssertTrue(s.state == slotAwaitingResponse && s.gen == d.gen, "%s: response to a stale delivery", c.name)
	p := d.pending
	p.resp = resp
	c.freeLocked(d.slot)
	c.mu.Unlock()

	close(p.done)
}

func (c *Channel[Req, Resp]) takeLocked(n int) []*Token {
	tokens := make([]*Token, n)
	for i := 0; i < n; i++ {
		idx := c.free[len(c.free)-1]
		c.free = c.free[:len(c.free)-1]

		c.nextGen++
		s := &c.slots[idx]
		s.state = slotReserved
		s.gen = c.nextGen
		tokens[i] = &Token{owner: c, slot: idx, gen: s.gen}
	}
	return tokens
}

func (c *Channel[Req, Resp]) checkTokenLocked(tok *Token) {
	logger.AssertTrue(tok.owner == interface{}(c), "%s: token of another channel", c.name)
	logger.AssertFalse(tok.used, "%s: token already used", c.name)
	s := &c.slots[tok.slot]
	logger.AssertTrue(s.state == slotReserved && s.gen == tok.gen, "%s: slot %d not reserved by token", c.name, tok.slot)
}

func (c *Channel[Req, Resp]) commitLocked(tok *Token, msg Req, p *Pending[Resp]) {
	tok.used = true
	s := &c.slots[tok.slot]
	s.state = slotCommitted
	s.msg = msg
	s.pending = p

	if c.deadline != nil {
		if at, ok := c.deadline(msg); ok {
			c.pushDeadlineLocked(at, tok.slot)
			return
		}
	}
	c.fifo = append(c.fifo, tok.slot)
}

func (c *Channel[Req, Resp]) freeLocked(idx int) {
	var zero Req
	s := &c.slots[idx]
	s.state = slotFree
	s.msg = zero
	s.pending = nil
	c.free = append(c.free, idx)
	c.wakeLocked()
}

// wakeLocked hands free slots to waiting producers strictly in arrival order.
func (c *Channel[Req, Resp]) wakeLocked() {
	for len(c.backlog) > 0 && len(c.free) >= c.backlog[0].n {
		w := c.backlog[0]
		c.backlog = c.backlog[1:]
		w.tokens = c.takeLocked(w.n)
		close(w.ready)
	}
}

func (c *Channel[Req, Resp]) signal() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}
