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

// Package radiomodel simulates a single radio and the medium around it on a virtual clock. SimRadio
// implements the driver backend contract, so the whole link layer can run against it.
package radiomodel

import (
	"github.com/pkg/errors"

	"github.com/openthread/ot-macsim/driver"
	"github.com/openthread/ot-macsim/radioclock"
	. "github.com/openthread/ot-macsim/types"
)

type DbValue = float64

const (
	RssiInvalid       DbValue = 127.0
	RssiMax           DbValue = 126.0
	RssiMin           DbValue = -126.0
	RssiMinusInfinity DbValue = -127.0
)

// Medium decides what the shared channel does to the radio's operations.
type Medium interface {
	// ChannelClear performs a clear channel assessment on ch at t.
	ChannelClear(t radioclock.Instant, ch ChannelId, mode driver.CcaMode) bool

	// AckReceived decides whether the acknowledgment of a frame with sequence number seq reaches
	// the sender.
	AckReceived(seq uint8) bool

	// RxRssi is the signal strength of a frame arriving now.
	RxRssi() DbValue

	GetName() string
}

type MediumConfig struct {
	Name string `yaml:"name" toml:"name"`
	// BusyProbability and AckLossProbability apply to the "random" medium.
	BusyProbability    float64 `yaml:"busy-probability" toml:"busy-probability"`
	AckLossProbability float64 `yaml:"ack-loss-probability" toml:"ack-loss-probability"`
}

func DefaultMediumConfig() MediumConfig {
	return MediumConfig{
		Name: "scripted",
	}
}

// NewMedium creates the medium named in cfg: "ideal", "scripted" or "random".
func NewMedium(cfg MediumConfig) (Medium, error) {
	switch cfg.Name {
	case "ideal", "Ideal":
		return NewIdealMedium(), nil
	case "scripted", "Scripted":
		return NewScriptedMedium(), nil
	case "random", "Random":
		if cfg.BusyProbability < 0 || cfg.BusyProbability > 1 || cfg.AckLossProbability < 0 || cfg.AckLossProbability > 1 {
			return nil, errors.Errorf("medium probabilities out of range: %+v", cfg)
		}
		return NewRandomMedium(cfg.BusyProbability, cfg.AckLossProbability), nil
	default:
		return nil, errors.Errorf("unknown medium %q", cfg.Name)
	}
}
