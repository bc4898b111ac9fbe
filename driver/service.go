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

package driver

import (
	"context"

	"github.com/pkg/errors"

	"github.com/openthread/ot-macsim/channel"
	"github.com/openthread/ot-macsim/logger"
	"github.com/openthread/ot-macsim/radioclock"
)

// TaskChannel is the driver's task queue: deadline-ordered for scheduled tasks, commit order for
// best-effort ones.
type TaskChannel = channel.Channel[*Task, struct{}]

// NewTaskChannel creates the task queue feeding a driver.
func NewTaskChannel(cfg channel.Config, clock radioclock.Clock) *TaskChannel {
	return channel.NewDeadlineOrdered[*Task, struct{}]("driver-tasks", cfg, clock, func(t *Task) (radioclock.Instant, bool) {
		return t.At.Instant(), t.At.Scheduled()
	})
}

// Service moves tasks from the task channel into the driver whenever its pipeline has room.
type Service struct {
	drv   *Driver
	tasks *TaskChannel
}

func NewService(drv *Driver, tasks *TaskChannel) *Service {
	return &Service{
		drv:   drv,
		tasks: tasks,
	}
}

// Run pumps tasks until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	defer logger.Debugf("driver service exit.")

	for {
		s.Poll()

		select {
		case <-s.tasks.Notify():
		case <-s.drv.StateChanged():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Poll moves every task the driver can take now and reports whether any was moved.
func (s *Service) Poll() bool {
	moved := false
	for {
		d, ok := s.nextTask()
		if !ok {
			return moved
		}
		s.schedule(d.Msg)
		moved = true
	}
}

func (s *Service) nextTask() (*channel.Delivery[*Task, struct{}], bool) {
	for _, match := range s.drv.acceptFilters() {
		if d, ok := s.tasks.TryReceiveMatching(match); ok {
			return d, true
		}
	}
	return nil, false
}

func (s *Service) schedule(task *Task) {
	err := s.drv.Schedule(task)
	if err == nil {
		return
	}
	if errors.Is(err, ErrPipelineFull) {
		logger.Panicf("driver service: %v", err)
	}
	logger.Warnf("driver rejected %s: %v", task, err)
	s.drv.Reject(task, err)
}
