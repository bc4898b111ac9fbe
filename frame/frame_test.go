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

package frame

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestRequirementsCombine(t *testing.T) {
	drv := Requirements{Headroom: 1, Tailroom: 2, MaxPayload: 127}
	mac := Requirements{Headroom: 3, MaxPayload: 100}
	c := drv.Combine(mac)
	assert.Equal(t, Requirements{Headroom: 4, Tailroom: 2, MaxPayload: 100}, c)
	assert.Equal(t, 106, c.Size())
	assert.Equal(t, 127, Requirements{}.Combine(drv).MaxPayload)
}

func TestBufferPayload(t *testing.T) {
	b := NewBuffer(Requirements{Headroom: 2, Tailroom: 2, MaxPayload: 4})
	assert.Nil(t, b.SetPayload([]byte{1, 2, 3}))
	assert.Equal(t, []byte{1, 2, 3}, b.Payload())
	assert.Equal(t, []byte{0, 0, 1, 2, 3, 0, 0, 0}, b.Raw())

	err := b.SetPayload([]byte{1, 2, 3, 4, 5})
	assert.True(t, errors.Is(err, ErrTooLong))
	assert.Equal(t, 3, b.Len())

	b.Release()
	assert.Panics(t, func() { b.Release() })
}

func TestPoolExhaustion(t *testing.T) {
	p := NewPool(2, DefaultRequirements())
	a, err := p.TryAllocate()
	assert.Nil(t, err)
	b, err := p.TryAllocate()
	assert.Nil(t, err)
	assert.Equal(t, 0, p.Available())

	_, err = p.TryAllocate()
	assert.Equal(t, ErrNoBuffer, err)

	a.Release()
	assert.Equal(t, 1, p.Available())
	c, err := p.TryAllocate()
	assert.Nil(t, err)
	assert.Equal(t, 0, c.Len())

	b.Release()
	c.Release()
	assert.Equal(t, 2, p.Available())
	assert.Panics(t, func() { c.Release() })
}
