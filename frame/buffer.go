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

// Package frame implements the radio frame buffers handed between the MAC scheduler and the driver.
// A buffer carries one PSDU as an opaque byte payload with head- and tail-room reserved for the
// layers below; it is exclusively owned by one party at a time and released exactly once.
package frame

import (
	"github.com/pkg/errors"

	"github.com/openthread/ot-macsim/logger"
	"github.com/openthread/ot-macsim/types"
)

var (
	ErrNoBuffer = errors.New("no frame buffer available")
	ErrTooLong  = errors.New("frame exceeds buffer capacity")
)

// Requirements are the buffer layout needs of one layer of the stack.
type Requirements struct {
	Headroom   int
	Tailroom   int
	MaxPayload int
}

// DefaultRequirements fit one maximum-size PSDU with no extra room.
func DefaultRequirements() Requirements {
	return Requirements{MaxPayload: types.MaxPhyPacketSize}
}

// Combine stacks the requirements of two layers: rooms add up, the payload is the smaller bound.
func (r Requirements) Combine(o Requirements) Requirements {
	c := Requirements{
		Headroom:   r.Headroom + o.Headroom,
		Tailroom:   r.Tailroom + o.Tailroom,
		MaxPayload: r.MaxPayload,
	}
	if c.MaxPayload == 0 || (o.MaxPayload != 0 && o.MaxPayload < c.MaxPayload) {
		c.MaxPayload = o.MaxPayload
	}
	return c
}

// Size is the total backing storage a buffer needs.
func (r Requirements) Size() int {
	return r.Headroom + r.MaxPayload + r.Tailroom
}

// Buffer is a frame buffer with reserved head- and tail-room.
type Buffer struct {
	data     []byte
	req      Requirements
	length   int
	pool     *Pool
	released bool
}

// NewBuffer allocates a standalone buffer; Release on it only ends its ownership.
func NewBuffer(req Requirements) *Buffer {
	return &Buffer{
		data: make([]byte, req.Size()),
		req:  req,
	}
}

// Payload returns the PSDU bytes currently held.
func (b *Buffer) Payload() []byte {
	b.checkOwned()
	return b.data[b.req.Headroom : b.req.Headroom+b.length]
}

// SetPayload copies p into the buffer.
func (b *Buffer) SetPayload(p []byte) error {
	if err := b.SetLen(len(p)); err != nil {
		return err
	}
	copy(b.data[b.req.Headroom:], p)
	return nil
}

// SetLen sets the payload length, e.g. after a backend received into PayloadSpace.
func (b *Buffer) SetLen(n int) error {
	b.checkOwned()
	if n < 0 || n > b.req.MaxPayload {
		return errors.Wrapf(ErrTooLong, "%d > %d", n, b.req.MaxPayload)
	}
	b.length = n
	return nil
}

// PayloadSpace returns the full writable payload area.
func (b *Buffer) PayloadSpace() []byte {
	b.checkOwned()
	return b.data[b.req.Headroom : b.req.Headroom+b.req.MaxPayload]
}

// Raw returns the whole backing store including head- and tail-room.
func (b *Buffer) Raw() []byte {
	b.checkOwned()
	return b.data
}

func (b *Buffer) Len() int {
	return b.length
}

func (b *Buffer) Capacity() int {
	return b.req.MaxPayload
}

func (b *Buffer) Headroom() int {
	return b.req.Headroom
}

func (b *Buffer) Tailroom() int {
	return b.req.Tailroom
}

// Release ends the caller's ownership. Pooled buffers return to their pool. Releasing twice panics.
func (b *Buffer) Release() {
	b.checkOwned()
	b.released = true
	if b.pool != nil {
		b.pool.put(b)
	}
}

func (b *Buffer) checkOwned() {
	logger.AssertFalse(b.released, "frame buffer used after release")
}
