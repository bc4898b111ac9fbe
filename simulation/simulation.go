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

// Package simulation assembles a complete MAC stack on top of a simulated radio and runs it, either
// on virtual time in a single loop or paced to wall time with one goroutine per component.
package simulation

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/openthread/ot-macsim/channel"
	"github.com/openthread/ot-macsim/driver"
	"github.com/openthread/ot-macsim/energy"
	"github.com/openthread/ot-macsim/logger"
	"github.com/openthread/ot-macsim/mac"
	"github.com/openthread/ot-macsim/pcap"
	"github.com/openthread/ot-macsim/pib"
	"github.com/openthread/ot-macsim/prng"
	"github.com/openthread/ot-macsim/progctx"
	"github.com/openthread/ot-macsim/radioclock"
	"github.com/openthread/ot-macsim/radiomodel"
	. "github.com/openthread/ot-macsim/types"
)

type Simulation struct {
	ctx     *progctx.ProgCtx
	cfg     *Config
	clock   *radioclock.SimClock
	radio   *radiomodel.SimRadio
	drv     *driver.Driver
	tasks   *driver.TaskChannel
	svc     *driver.Service
	pib     *pib.Pib
	sched   *mac.Scheduler
	client  *mac.Client
	pcap    pcap.File
	kpi     *KpiManager
	energy  *energy.Meter
	started bool
	stopped bool
}

func NewSimulation(ctx *progctx.ProgCtx, cfg *Config) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	lv, err := logger.ParseLevelString(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(lv)
	prng.Init(cfg.Seed)

	medium, err := radiomodel.NewMedium(cfg.Radio.Medium)
	if err != nil {
		return nil, err
	}
	clock := radioclock.NewSimClock(0)
	radioCfg := cfg.Radio
	radioCfg.Channel = ChannelId(cfg.Pib.Channel)
	radio := radiomodel.NewSimRadio(radioCfg, clock, medium)
	drv := driver.New(radio, clock, cfg.Driver)
	tasks := driver.NewTaskChannel(channel.Config{Capacity: cfg.Mac.TaskCapacity(), Backlog: cfg.TaskBacklog}, clock)
	p, err := pib.New(cfg.Pib)
	if err != nil {
		return nil, err
	}
	sched, err := mac.NewScheduler(cfg.Mac, drv, tasks, p)
	if err != nil {
		return nil, err
	}
	sched.OnPibSet(func(a pib.Attribute, v uint64) {
		if a == pib.AttrChannel {
			radio.SetChannel(ChannelId(v))
		}
	})

	s := &Simulation{
		ctx:    ctx,
		cfg:    cfg,
		clock:  clock,
		radio:  radio,
		drv:    drv,
		tasks:  tasks,
		svc:    driver.NewService(drv, tasks),
		pib:    p,
		sched:  sched,
		client: mac.NewClient(sched),
		energy: energy.NewMeter(0),
	}
	radio.SetEnergyMeter(s.energy)
	logger.SetTimeSource(func() string { return clock.Now().String() })

	if err = s.openCapture(); err != nil {
		return nil, err
	}
	s.kpi = NewKpiManager()
	s.kpi.Init(s)
	if cfg.Kpi {
		s.kpi.Start()
	}
	logger.Debugf("simulation %d: medium %s, lookahead %d, realtime %v", cfg.Id, medium.GetName(), cfg.Mac.RxLookahead, cfg.Realtime)
	return s, nil
}

func (s *Simulation) openCapture() error {
	tp := pcap.ParseFrameTypeStr(s.cfg.Pcap)
	if tp == pcap.FrameTypeOff {
		return nil
	}
	if err := s.createOutputDir(); err != nil {
		return errors.Wrapf(err, "creating %s directory failed", s.cfg.OutputDir)
	}
	f, err := pcap.NewFile(s.PcapFileName(), tp, true)
	if err != nil {
		return err
	}
	s.pcap = f
	s.radio.SetCapture(f)
	return nil
}

func (s *Simulation) createOutputDir() error {
	return os.MkdirAll(s.cfg.OutputDir, 0775)
}

// PcapFileName is where the capture of this simulation goes.
func (s *Simulation) PcapFileName() string {
	return filepath.Join(s.cfg.OutputDir, fmt.Sprintf("%d_%s.pcap", s.cfg.Id, s.cfg.Pcap))
}

// Start launches the component goroutines of a realtime simulation. On virtual time it does nothing;
// time only moves in Go.
func (s *Simulation) Start() {
	if !s.cfg.Realtime || s.started {
		return
	}
	s.started = true
	s.ctx.Go("radio", s.radio.Run)
	s.ctx.Go("driver", s.svc.Run)
	s.ctx.Go("mac", s.sched.Run)
}

// Poll lets the driver pump and the scheduler handle everything pending at the current instant.
func (s *Simulation) Poll() {
	if s.cfg.Realtime {
		return
	}
	for s.svc.Poll() || s.sched.Poll() {
	}
}

// Go runs the simulation for d of radio time.
func (s *Simulation) Go(d radioclock.Duration) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}
	if s.cfg.Realtime {
		return s.goRealtime(d)
	}

	deadline := s.clock.Now().Add(d)
	for s.ctx.Err() == nil {
		s.Poll()
		next, ok := s.radio.NextEventTime()
		if !ok || next > deadline {
			break
		}
		s.radio.Step()
	}
	if err := s.ctx.Err(); err != nil {
		return err
	}
	s.radio.RunUntil(deadline)
	s.Poll()
	return nil
}

func (s *Simulation) goRealtime(d radioclock.Duration) error {
	s.Start()
	wall := time.Duration(float64(d) / s.cfg.Radio.Speed)
	select {
	case <-time.After(wall):
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

func (s *Simulation) Stop() {
	if s.stopped {
		return
	}
	logger.Infof("stopping simulation at %s ...", s.Now())
	s.stopped = true

	s.kpi.Stop()
	s.ctx.Cancel("simulation-stop")
	s.ctx.Wait()
	if s.pcap != nil {
		if err := s.pcap.Close(); err != nil {
			logger.Errorf("closing capture: %v", err)
		}
	}
	logger.SetTimeSource(nil)
	logger.Debugf("simulation exit.")
}

func (s *Simulation) IsStopping() bool {
	return s.stopped || s.ctx.Err() != nil
}

func (s *Simulation) Now() radioclock.Instant {
	return s.clock.Now()
}

func (s *Simulation) Client() *mac.Client {
	return s.client
}

func (s *Simulation) Scheduler() *mac.Scheduler {
	return s.sched
}

func (s *Simulation) Driver() *driver.Driver {
	return s.drv
}

func (s *Simulation) Radio() *radiomodel.SimRadio {
	return s.radio
}

func (s *Simulation) Pib() *pib.Pib {
	return s.pib
}

func (s *Simulation) Energy() *energy.Meter {
	return s.energy
}

// EnergyFileName is where SaveEnergy writes the radio energy history.
func (s *Simulation) EnergyFileName() string {
	return filepath.Join(s.cfg.OutputDir, fmt.Sprintf("%d_energy.txt", s.cfg.Id))
}

// SaveEnergy records the energy used so far and writes the history to EnergyFileName.
func (s *Simulation) SaveEnergy() error {
	return s.energy.SaveFile(s.EnergyFileName(), s.Now().Micros())
}

func (s *Simulation) Kpi() *KpiManager {
	return s.kpi
}

func (s *Simulation) GetConfig() *Config {
	return s.cfg
}

// InjectFrame puts psdu on the air towards the radio after delay.
func (s *Simulation) InjectFrame(delay radioclock.Duration, psdu []byte) error {
	return s.radio.InjectFrame(s.Now().Add(delay), psdu)
}

// Report is a snapshot of every counter in the stack.
type Report struct {
	Now         radioclock.Instant
	RadioState  RadioState
	Radio       radiomodel.RadioNodeStats
	Driver      driver.Stats
	Mac         mac.Stats
	RxWindows   int
	Pending     int
	TxBuffers   int
	RxBuffers   int
	TasksQueued int
	Energy      energy.Consumption
}

func (s *Simulation) Report() Report {
	rxWindows, pending := s.sched.Pending()
	return Report{
		Now:         s.Now(),
		RadioState:  s.drv.State(),
		Radio:       s.radio.Stats(),
		Driver:      s.drv.Stats(),
		Mac:         s.sched.Stats(),
		RxWindows:   rxWindows,
		Pending:     pending,
		TxBuffers:   s.sched.TxPool().Available(),
		RxBuffers:   s.sched.RxPool().Available(),
		TasksQueued: s.tasks.Queued(),
		Energy:      s.energy.Consumption(s.Now().Micros()),
	}
}
