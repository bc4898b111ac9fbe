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

	"github.com/pkg/errors"

	"github.com/openthread/ot-macsim/channel"
	"github.com/openthread/ot-macsim/frame"
	"github.com/openthread/ot-macsim/pib"
)

// ErrNoSlot is returned by the non-blocking calls when every request slot is taken.
var ErrNoSlot = errors.New("no request slot available")

// Client is the upper-layer side of a scheduler.
type Client struct {
	requests    *RequestChannel
	indications *IndicationChannel
	txPool      *frame.Pool
}

func NewClient(s *Scheduler) *Client {
	return &Client{
		requests:    s.Requests(),
		indications: s.Indications(),
		txPool:      s.TxPool(),
	}
}

// Ticket is a reserved request slot. A frame buffer is only allocated against a ticket, so a
// caller never holds a buffer it cannot submit.
type Ticket struct {
	c   *Client
	tok *channel.Token
}

// Reserve waits for a request slot.
func (c *Client) Reserve(ctx context.Context) (*Ticket, error) {
	toks, err := c.requests.Reserve(ctx, 1)
	if err != nil {
		return nil, err
	}
	return &Ticket{c: c, tok: toks[0]}, nil
}

func (c *Client) TryReserve() (*Ticket, bool) {
	toks, ok := c.requests.TryReserve(1)
	if !ok {
		return nil, false
	}
	return &Ticket{c: c, tok: toks[0]}, true
}

// AllocateFrame takes a transmit buffer. The buffer belongs to the caller until it is submitted.
func (t *Ticket) AllocateFrame() (*frame.Buffer, error) {
	return t.c.txPool.TryAllocate()
}

// Submit hands req to the scheduler and consumes the ticket.
func (t *Ticket) Submit(req *Request) *channel.Pending[Confirm] {
	tok := t.tok
	t.tok = nil
	return t.c.requests.CommitAwaitingResponse(tok, req)
}

// Release gives an unused ticket back.
func (t *Ticket) Release() {
	if t.tok != nil {
		t.c.requests.Release(t.tok)
		t.tok = nil
	}
}

// Request submits req and waits for its confirm.
func (c *Client) Request(ctx context.Context, req *Request) (Confirm, error) {
	t, err := c.Reserve(ctx)
	if err != nil {
		return Confirm{}, err
	}
	return t.Submit(req).Wait(ctx)
}

// SendData copies psdu into a transmit buffer and submits it as a DATA request.
func (c *Client) SendData(ctx context.Context, handle uint8, psdu []byte, seq uint8, ackRequest bool) (*channel.Pending[Confirm], error) {
	t, err := c.Reserve(ctx)
	if err != nil {
		return nil, err
	}
	return c.sendData(t, handle, psdu, seq, ackRequest)
}

// TrySendData is SendData without waiting for a request slot.
func (c *Client) TrySendData(handle uint8, psdu []byte, seq uint8, ackRequest bool) (*channel.Pending[Confirm], error) {
	t, ok := c.TryReserve()
	if !ok {
		return nil, ErrNoSlot
	}
	return c.sendData(t, handle, psdu, seq, ackRequest)
}

func (c *Client) sendData(t *Ticket, handle uint8, psdu []byte, seq uint8, ackRequest bool) (*channel.Pending[Confirm], error) {
	buf, err := t.AllocateFrame()
	if err != nil {
		t.Release()
		return nil, err
	}
	if err = buf.SetPayload(psdu); err != nil {
		buf.Release()
		t.Release()
		return nil, err
	}
	return t.Submit(&Request{Op: OpData, Handle: handle, Frame: buf, Seq: seq, AckRequest: ackRequest}), nil
}

// TrySubmit submits a request without a frame if a slot is free.
func (c *Client) TrySubmit(req *Request) (*channel.Pending[Confirm], error) {
	t, ok := c.TryReserve()
	if !ok {
		return nil, ErrNoSlot
	}
	return t.Submit(req), nil
}

func (c *Client) Get(ctx context.Context, a pib.Attribute) (uint64, Status, error) {
	conf, err := c.Request(ctx, &Request{Op: OpGet, Attr: a})
	return conf.Value, conf.Status, err
}

func (c *Client) Set(ctx context.Context, a pib.Attribute, v uint64) (Status, error) {
	conf, err := c.Request(ctx, &Request{Op: OpSet, Attr: a, Value: v})
	return conf.Status, err
}

// ReceiveIndication waits for a received frame. The returned indication carries a copy of the
// PSDU; its receive buffer is already back in the pool.
func (c *Client) ReceiveIndication(ctx context.Context) (Indication, error) {
	d, err := c.indications.Receive(ctx)
	if err != nil {
		return Indication{}, err
	}
	return takeIndication(d.Msg), nil
}

func (c *Client) TryReceiveIndication() (Indication, bool) {
	d, ok := c.indications.TryReceive()
	if !ok {
		return Indication{}, false
	}
	return takeIndication(d.Msg), true
}

func takeIndication(ind Indication) Indication {
	if ind.Frame != nil {
		ind.Psdu = append([]byte(nil), ind.Frame.Payload()...)
		ind.Frame.Release()
		ind.Frame = nil
	}
	return ind
}
