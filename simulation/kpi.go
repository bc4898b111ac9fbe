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

package simulation

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/openthread/ot-macsim/energy"
	"github.com/openthread/ot-macsim/logger"
	"github.com/openthread/ot-macsim/radioclock"
	. "github.com/openthread/ot-macsim/types"
)

type KpiManager struct {
	sim           *Simulation
	data          *Kpi
	startCounters Counters
	curCounters   Counters
	startTime     radioclock.Instant
	startEnergy   energy.Consumption
	isRunning     bool
}

// NewKpiManager creates a new KPI manager/bookkeeper for a particular simulation.
func NewKpiManager() *KpiManager {
	km := &KpiManager{}
	return km
}

// Init inits the KPI manager for the given simulation.
func (km *KpiManager) Init(sim *Simulation) {
	logger.AssertNil(km.sim)
	logger.AssertFalse(km.isRunning)
	km.sim = sim
	km.data = &Kpi{Status: "ok"}
	km.startCounters = Counters{}
	km.curCounters = Counters{}
}

func (km *KpiManager) Start() {
	logger.AssertNotNil(km.sim)
	km.startCounters = km.retrieveCounters()
	km.startTime = km.sim.Now()
	km.startEnergy = km.sim.energy.Consumption(km.startTime.Micros())
	km.isRunning = true
	km.SaveDefaultFile()
}

func (km *KpiManager) Stop() {
	if km.isRunning {
		km.curCounters = km.retrieveCounters()
		km.isRunning = false
		km.calculateKpis()
		km.SaveDefaultFile()
	}
}

func (km *KpiManager) IsRunning() bool {
	return km.isRunning
}

// Data returns the KPIs as of the last save.
func (km *KpiManager) Data() *Kpi {
	return km.data
}

func (km *KpiManager) SaveDefaultFile() {
	km.SaveFile(km.getDefaultSaveFileName())
}

func (km *KpiManager) SaveFile(fn string) {
	logger.AssertNotNil(km.sim)
	if km.isRunning {
		km.curCounters = km.retrieveCounters()
		km.calculateKpis()
	}

	km.data.FileTime = time.Now().Format(time.RFC3339)
	json, err := json.MarshalIndent(km.data, "", "    ")
	if err != nil {
		logger.Fatalf("Could not marshal KPI JSON data: %v", err)
		return
	}

	if err = os.MkdirAll(filepath.Dir(fn), 0775); err == nil {
		err = os.WriteFile(fn, json, 0644)
	}
	if err != nil {
		logger.Errorf("Could not write KPI JSON file %s: %v", fn, err)
		return
	}
}

func (km *KpiManager) retrieveCounters() Counters {
	return km.sim.Report().Counters()
}

// Counters flattens a report for differencing.
func (r Report) Counters() Counters {
	return Counters{
		"radio.FramesTx":         uint64(r.Radio.FramesTx),
		"radio.AcksTx":           uint64(r.Radio.AcksTx),
		"radio.BytesTx":          uint64(r.Radio.NumBytesTx),
		"radio.FramesRx":         uint64(r.Radio.FramesRx),
		"radio.RxMissed":         uint64(r.Radio.RxMissed),
		"radio.CcaFailures":      uint64(r.Radio.CcaFailures),
		"driver.Started":         r.Driver.Started,
		"driver.Rejected":        r.Driver.Rejected,
		"driver.Superseded":      r.Driver.Superseded,
		"driver.Deferred":        r.Driver.Deferred,
		"driver.AcksSent":        r.Driver.AcksSent,
		"driver.LateStarted":     r.Driver.LateStarted,
		"mac.Transmissions":      uint64(r.Mac.Transmissions),
		"mac.CcaBusy":            uint64(r.Mac.CcaBusy),
		"mac.NoAcks":             uint64(r.Mac.NoAcks),
		"mac.Overruns":           uint64(r.Mac.Overruns),
		"mac.Confirms":           uint64(r.Mac.Confirms),
		"mac.Successes":          uint64(r.Mac.Successes),
		"mac.Indications":        uint64(r.Mac.Indications),
		"mac.IndicationsDropped": uint64(r.Mac.IndicationsDropped),
		"mac.StrayAcks":          uint64(r.Mac.StrayAcks),
		"mac.OffTasks":           uint64(r.Mac.OffTasks),
	}
}

func getCountersDiff(curCtr Counters, startCtr Counters) Counters {
	ret := Counters{}
	for k, v := range curCtr {
		startVal := uint64(0) // counters absent at start count from zero
		if sv, ok := startCtr[k]; ok {
			startVal = sv
		}
		ret[k] = v - startVal
	}
	return ret
}

func ratio(num, den uint64) float64 {
	r := float64(num) / float64(den)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0.0
	}
	return r
}

func (km *KpiManager) calculateKpis() {
	// time
	km.data.TimeUs.StartTimeUs = km.startTime.Micros()
	km.data.TimeUs.EndTimeUs = km.sim.Now().Micros()
	km.data.TimeUs.PeriodUs = km.data.TimeUs.EndTimeUs - km.data.TimeUs.StartTimeUs
	km.data.TimeSec.StartTimeSec = float64(km.data.TimeUs.StartTimeUs) / 1e6
	km.data.TimeSec.EndTimeSec = float64(km.data.TimeUs.EndTimeUs) / 1e6
	km.data.TimeSec.PeriodSec = float64(km.data.TimeUs.PeriodUs) / 1e6

	if km.curCounters == nil {
		km.data.Status = "'counters' not included due to interrupted simulation"
		return
	}
	c := getCountersDiff(km.curCounters, km.startCounters)
	km.data.Counters = c

	// radio
	period := km.data.TimeUs.PeriodUs
	txSymbols := (c["radio.FramesTx"]+c["radio.AcksTx"])*(ShrDuration+PhrDuration) + c["radio.BytesTx"]*SymbolsPerOctet
	txTimeUs := uint64(radioclock.Symbols(int64(txSymbols)).Micros())
	km.data.Radio = KpiRadio{
		TxTimeUs:     txTimeUs,
		TxPercentage: 100.0 * ratio(txTimeUs, period),
		NumFrames:    c["radio.FramesTx"],
		NumAcks:      c["radio.AcksTx"],
		AvgFps:       1.0e6 * ratio(c["radio.FramesTx"], period),
	}

	// mac
	km.data.Mac = KpiMac{
		NoAckPercentage:     100.0 * ratio(c["mac.NoAcks"], c["mac.Transmissions"]),
		CcaBusyPercentage:   100.0 * ratio(c["mac.CcaBusy"], c["mac.CcaBusy"]+c["mac.Transmissions"]),
		SuccessPercentage:   100.0 * ratio(c["mac.Successes"], c["mac.Confirms"]),
		AvgAttemptsPerFrame: ratio(c["mac.Transmissions"], c["mac.Confirms"]),
		IndicationsDropped:  c["mac.IndicationsDropped"],
		SchedulingOverruns:  c["mac.Overruns"],
	}

	// energy
	e := km.sim.energy.Consumption(km.data.TimeUs.EndTimeUs)
	km.data.Energy = KpiEnergy{
		Off: e.Off - km.startEnergy.Off,
		Tx:  e.Tx - km.startEnergy.Tx,
		Rx:  e.Rx - km.startEnergy.Rx,
	}
	km.data.Energy.Total = km.data.Energy.Off + km.data.Energy.Tx + km.data.Energy.Rx
}

func (km *KpiManager) getDefaultSaveFileName() string {
	return filepath.Join(km.sim.cfg.OutputDir, fmt.Sprintf("%d_kpi.json", km.sim.cfg.Id))
}
