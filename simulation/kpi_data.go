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

// Counters is a flat set of named event counts.
type Counters map[string]uint64

// Add adds every counter of other.
func (c Counters) Add(other Counters) {
	for k, v := range other {
		c[k] += v
	}
}

type KpiTimeUs struct {
	StartTimeUs uint64 `json:"start"`
	EndTimeUs   uint64 `json:"end"`
	PeriodUs    uint64 `json:"duration"`
}

type KpiTimeSec struct {
	StartTimeSec float64 `json:"start"`
	EndTimeSec   float64 `json:"end"`
	PeriodSec    float64 `json:"duration"`
}

type KpiRadio struct {
	TxTimeUs     uint64  `json:"tx_time_us"`
	TxPercentage float64 `json:"tx_percent"`
	NumFrames    uint64  `json:"tx_frames"`
	NumAcks      uint64  `json:"tx_acks"`
	AvgFps       float64 `json:"tx_avg_fps"`
}

type KpiMac struct {
	NoAckPercentage     float64 `json:"noack_percent"`
	CcaBusyPercentage   float64 `json:"cca_busy_percent"`
	SuccessPercentage   float64 `json:"success_percent"`
	AvgAttemptsPerFrame float64 `json:"avg_attempts"`
	IndicationsDropped  uint64  `json:"indications_dropped"`
	SchedulingOverruns  uint64  `json:"overruns"`
}

// KpiEnergy is the radio energy in mJ used during the KPI period.
type KpiEnergy struct {
	Off   float64 `json:"off_mj"`
	Tx    float64 `json:"tx_mj"`
	Rx    float64 `json:"rx_mj"`
	Total float64 `json:"total_mj"`
}

type Kpi struct {
	FileTime string     `json:"created"`
	Status   string     `json:"status"`
	TimeUs   KpiTimeUs  `json:"time_us"`
	TimeSec  KpiTimeSec `json:"time_sec"`
	Radio    KpiRadio   `json:"radio"`
	Mac      KpiMac     `json:"mac"`
	Energy   KpiEnergy  `json:"energy"`
	Counters Counters   `json:"counters"`
}
