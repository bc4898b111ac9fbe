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
// Package metrics exports the counters of a running simulation to Prometheus.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/openthread/ot-macsim/simulation"
	. "github.com/openthread/ot-macsim/types"
)

const namespace = "macsim"

// ReportSource is implemented by *simulation.Simulation.
type ReportSource interface {
	Report() simulation.Report
}

var stateLabels = map[RadioState]string{
	RadioOff:        "off",
	RadioRx:         "rx",
	RadioTx:         "tx",
	RadioSendAck:    "send_ack",
	RadioWaitForAck: "wait_for_ack",
}

// Exporter reads a fresh Report on every scrape, so it holds no state of its own.
type Exporter struct {
	src ReportSource

	events     *prometheus.Desc
	radioState *prometheus.Desc
	energy     *prometheus.Desc
	simTime    *prometheus.Desc
	queues     *prometheus.Desc
}

func NewExporter(src ReportSource) *Exporter {
	return &Exporter{
		src: src,
		events: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "events_total"),
			"Radio, driver and MAC event counters.",
			[]string{"layer", "counter"}, nil),
		radioState: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "driver", "state"),
			"1 for the current driver state, 0 otherwise.",
			[]string{"state"}, nil),
		energy: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "radio", "energy_millijoules"),
			"Radio energy used per power state.",
			[]string{"state"}, nil),
		simTime: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "radio_time_seconds"),
			"Current radio clock time.",
			nil, nil),
		queues: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "queue_depth"),
			"Outstanding work and free buffers.",
			[]string{"queue"}, nil),
	}
}

func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- e.events
	ch <- e.radioState
	ch <- e.energy
	ch <- e.simTime
	ch <- e.queues
}

func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	r := e.src.Report()

	for key, v := range r.Counters() {
		layer, name, ok := strings.Cut(key, ".")
		if !ok {
			layer, name = "other", key
		}
		ch <- prometheus.MustNewConstMetric(e.events, prometheus.CounterValue, float64(v), layer, name)
	}

	for _, st := range RadioStates {
		v := 0.0
		if st == r.RadioState {
			v = 1
		}
		ch <- prometheus.MustNewConstMetric(e.radioState, prometheus.GaugeValue, v, stateLabels[st])
	}

	ch <- prometheus.MustNewConstMetric(e.energy, prometheus.CounterValue, r.Energy.Off, "off")
	ch <- prometheus.MustNewConstMetric(e.energy, prometheus.CounterValue, r.Energy.Tx, "tx")
	ch <- prometheus.MustNewConstMetric(e.energy, prometheus.CounterValue, r.Energy.Rx, "rx")

	ch <- prometheus.MustNewConstMetric(e.simTime, prometheus.GaugeValue, float64(r.Now)/1e9)

	for queue, v := range map[string]int{
		"rx_windows":      r.RxWindows,
		"transactions":    r.Pending,
		"tx_buffers_free": r.TxBuffers,
		"rx_buffers_free": r.RxBuffers,
		"driver_tasks":    r.TasksQueued,
	} {
		ch <- prometheus.MustNewConstMetric(e.queues, prometheus.GaugeValue, float64(v), queue)
	}
}

// NewRegistry returns a registry holding an Exporter for src and the Go runtime collectors.
func NewRegistry(src ReportSource) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewExporter(src))
	reg.MustRegister(collectors.NewGoCollector())
	return reg
}
