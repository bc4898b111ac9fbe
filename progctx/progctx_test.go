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
package progctx

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestNewImplementsContext(t *testing.T) {
	var _ context.Context = New(context.Background())
	ctx := New(nil) // nolint
	assert.Nil(t, ctx.Err())
}

func TestCancelKeepsFirstCause(t *testing.T) {
	ctx := New(context.Background())
	err := errors.Errorf("test error")
	ctx.Cancel(err)
	ctx.Cancel(errors.Errorf("second error"))
	<-ctx.Done()
	assert.Equal(t, context.Canceled, ctx.Err())
	assert.Equal(t, err, ctx.Cause())
	assert.Equal(t, err, context.Cause(ctx))
}

func TestCancelWithReason(t *testing.T) {
	ctx := New(context.Background())
	ctx.Cancel("exit")
	<-ctx.Done()
	assert.Nil(t, ctx.Cause())
}

func TestParentCancelled(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ctx := New(parent)
	cancel()
	<-ctx.Done()
	assert.Nil(t, ctx.Cause())
}

func TestGoWaitsForRoutines(t *testing.T) {
	ctx := New(context.Background())
	release := make(chan struct{})
	for i := 0; i < 3; i++ {
		ctx.Go("worker", func(context.Context) error {
			<-release
			return nil
		})
	}
	assert.Equal(t, 3, ctx.WaitCount())

	close(release)
	ctx.Wait()
	assert.Equal(t, 0, ctx.WaitCount())
	assert.Nil(t, ctx.Err())
}

func TestGoFailureCancels(t *testing.T) {
	ctx := New(context.Background())
	ctx.Go("blocker", func(c context.Context) error {
		<-c.Done()
		return c.Err()
	})
	ctx.Go("failer", func(c context.Context) error {
		return errors.New("radio gone")
	})

	ctx.Wait()
	assert.NotNil(t, ctx.Err())
	assert.Contains(t, ctx.Cause().Error(), "failer failed")
	assert.Contains(t, ctx.Cause().Error(), "radio gone")
}
