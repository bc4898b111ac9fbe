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
// Package progctx manages the lifetime of the goroutines that make up a running MAC stack.
package progctx

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/simonlingoogle/go-simplelogger"
)

// ProgCtx is a cancellable context that also tracks the named goroutines started under it.
type ProgCtx struct {
	context.Context
	cancel context.CancelCauseFunc
	once   sync.Once
	wg     sync.WaitGroup

	mu      sync.Mutex
	running map[string]int
	cause   error
}

// New creates a new ProgCtx from the parent context.
func New(parent context.Context) *ProgCtx {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancelCause(parent)
	return &ProgCtx{
		Context: ctx,
		cancel:  cancel,
		running: map[string]int{},
	}
}

// Cancel stops the program. Only the first call has an effect; an error reason becomes the Cause.
func (ctx *ProgCtx) Cancel(reason interface{}) {
	ctx.once.Do(func() {
		err, isErr := reason.(error)
		if isErr {
			ctx.mu.Lock()
			ctx.cause = err
			ctx.mu.Unlock()
			simplelogger.Errorf("program exit: %+v", err)
		} else {
			simplelogger.Infof("program exit: %v", reason)
		}
		ctx.cancel(err)
	})
}

// Cause returns the error passed to the first Cancel, if it was an error.
func (ctx *ProgCtx) Cause() error {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	return ctx.cause
}

// Go runs f in a new goroutine registered under name. If f returns an error other than
// the context's own cancellation, the whole program context is cancelled with it.
func (ctx *ProgCtx) Go(name string, f func(ctx context.Context) error) {
	ctx.mu.Lock()
	ctx.running[name]++
	ctx.mu.Unlock()
	ctx.wg.Add(1)

	go func() {
		defer ctx.wg.Done()
		defer func() {
			ctx.mu.Lock()
			ctx.running[name]--
			ctx.mu.Unlock()
		}()

		if err := f(ctx); err != nil && !errors.Is(err, context.Canceled) {
			ctx.Cancel(errors.Wrapf(err, "%s failed", name))
		}
	}()
}

// WaitCount returns the number of goroutines still running.
func (ctx *ProgCtx) WaitCount() int {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	n := 0
	for _, c := range ctx.running {
		n += c
	}
	return n
}

// Wait blocks until every goroutine started with Go has returned.
func (ctx *ProgCtx) Wait() {
	ctx.mu.Lock()
	simplelogger.Debugf("program context waiting routines: %v", ctx.running)
	ctx.mu.Unlock()
	ctx.wg.Wait()
}
