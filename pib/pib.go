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

// Package pib holds the MAC PAN information base, the configuration shared by the application and the
// MAC scheduler. All access goes through the Pib lock.
package pib

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/openthread/ot-macsim/csma"
	"github.com/openthread/ot-macsim/types"
)

var (
	ErrUnsupportedAttribute = errors.New("unsupported PIB attribute")
	ErrInvalidParameter     = errors.New("invalid PIB attribute value")
)

type Attribute uint8

const (
	AttrMaxFrameRetries Attribute = iota
	AttrMinBE
	AttrMaxBE
	AttrMaxCsmaBackoffs
	AttrAutoRequestAck
	AttrRxOnWhenIdle
	AttrPanId
	AttrShortAddress
	AttrExtendedAddress
	AttrChannel
	AttrDsn
	attrCount
)

var attrNames = [attrCount]string{
	"max-frame-retries",
	"min-be",
	"max-be",
	"max-csma-backoffs",
	"auto-request-ack",
	"rx-on-when-idle",
	"pan-id",
	"short-address",
	"extended-address",
	"channel",
	"dsn",
}

func (a Attribute) String() string {
	if a >= attrCount {
		return "unknown"
	}
	return attrNames[a]
}

// ParseAttribute looks an attribute up by its name as used in YAML profiles and scenario scripts.
func ParseAttribute(name string) (Attribute, error) {
	for i, n := range attrNames {
		if n == name {
			return Attribute(i), nil
		}
	}
	return attrCount, errors.Wrapf(ErrUnsupportedAttribute, "%q", name)
}

// Values is a complete PIB.
type Values struct {
	MaxFrameRetries uint8  `yaml:"max-frame-retries" toml:"max-frame-retries"`
	MinBE           uint8  `yaml:"min-be" toml:"min-be"`
	MaxBE           uint8  `yaml:"max-be" toml:"max-be"`
	MaxCsmaBackoffs uint8  `yaml:"max-csma-backoffs" toml:"max-csma-backoffs"`
	AutoRequestAck  bool   `yaml:"auto-request-ack" toml:"auto-request-ack"`
	RxOnWhenIdle    bool   `yaml:"rx-on-when-idle" toml:"rx-on-when-idle"`
	PanId           uint16 `yaml:"pan-id" toml:"pan-id"`
	ShortAddress    uint16 `yaml:"short-address" toml:"short-address"`
	ExtendedAddress uint64 `yaml:"extended-address" toml:"extended-address"`
	Channel         uint8  `yaml:"channel" toml:"channel"`
	Dsn             uint8  `yaml:"dsn" toml:"dsn"`
}

func DefaultValues() Values {
	return Values{
		MaxFrameRetries: types.DefaultMaxFrameRetry,
		MinBE:           types.DefaultMinBE,
		MaxBE:           types.DefaultMaxBE,
		MaxCsmaBackoffs: types.DefaultMaxBackoffs,
		AutoRequestAck:  true,
		RxOnWhenIdle:    true,
		PanId:           0xffff,
		ShortAddress:    0xffff,
		Channel:         uint8(types.DefaultChannel),
	}
}

// Validate checks the ranges of IEEE 802.15.4-2015 table 8-94.
func (v Values) Validate() error {
	switch {
	case v.MaxFrameRetries > 7:
		return errors.Wrapf(ErrInvalidParameter, "%s %d", AttrMaxFrameRetries, v.MaxFrameRetries)
	case v.MaxBE < 3 || v.MaxBE > 8:
		return errors.Wrapf(ErrInvalidParameter, "%s %d", AttrMaxBE, v.MaxBE)
	case v.MinBE > v.MaxBE:
		return errors.Wrapf(ErrInvalidParameter, "%s %d above %s %d", AttrMinBE, v.MinBE, AttrMaxBE, v.MaxBE)
	case v.MaxCsmaBackoffs > 5:
		return errors.Wrapf(ErrInvalidParameter, "%s %d", AttrMaxCsmaBackoffs, v.MaxCsmaBackoffs)
	case int(v.Channel) < types.MinChannelNumber || int(v.Channel) > types.MaxChannelNumber:
		return errors.Wrapf(ErrInvalidParameter, "%s %d", AttrChannel, v.Channel)
	}
	return nil
}

// CsmaParams returns the backoff bounds.
func (v Values) CsmaParams() csma.Params {
	return csma.Params{
		MinBE:       v.MinBE,
		MaxBE:       v.MaxBE,
		MaxBackoffs: v.MaxCsmaBackoffs,
	}
}

func (v *Values) get(a Attribute) (uint64, error) {
	switch a {
	case AttrMaxFrameRetries:
		return uint64(v.MaxFrameRetries), nil
	case AttrMinBE:
		return uint64(v.MinBE), nil
	case AttrMaxBE:
		return uint64(v.MaxBE), nil
	case AttrMaxCsmaBackoffs:
		return uint64(v.MaxCsmaBackoffs), nil
	case AttrAutoRequestAck:
		return boolValue(v.AutoRequestAck), nil
	case AttrRxOnWhenIdle:
		return boolValue(v.RxOnWhenIdle), nil
	case AttrPanId:
		return uint64(v.PanId), nil
	case AttrShortAddress:
		return uint64(v.ShortAddress), nil
	case AttrExtendedAddress:
		return v.ExtendedAddress, nil
	case AttrChannel:
		return uint64(v.Channel), nil
	case AttrDsn:
		return uint64(v.Dsn), nil
	default:
		return 0, errors.Wrapf(ErrUnsupportedAttribute, "attribute %d", a)
	}
}

func (v *Values) set(a Attribute, val uint64) error {
	small := func(max uint64) (uint8, error) {
		if val > max {
			return 0, errors.Wrapf(ErrInvalidParameter, "%s %d", a, val)
		}
		return uint8(val), nil
	}
	var err error
	switch a {
	case AttrMaxFrameRetries:
		v.MaxFrameRetries, err = small(0xff)
	case AttrMinBE:
		v.MinBE, err = small(0xff)
	case AttrMaxBE:
		v.MaxBE, err = small(0xff)
	case AttrMaxCsmaBackoffs:
		v.MaxCsmaBackoffs, err = small(0xff)
	case AttrAutoRequestAck:
		v.AutoRequestAck, err = boolFrom(a, val)
	case AttrRxOnWhenIdle:
		v.RxOnWhenIdle, err = boolFrom(a, val)
	case AttrPanId:
		if val > 0xffff {
			return errors.Wrapf(ErrInvalidParameter, "%s %d", a, val)
		}
		v.PanId = uint16(val)
	case AttrShortAddress:
		if val > 0xffff {
			return errors.Wrapf(ErrInvalidParameter, "%s %d", a, val)
		}
		v.ShortAddress = uint16(val)
	case AttrExtendedAddress:
		v.ExtendedAddress = val
	case AttrChannel:
		v.Channel, err = small(0xff)
	case AttrDsn:
		v.Dsn, err = small(0xff)
	default:
		return errors.Wrapf(ErrUnsupportedAttribute, "attribute %d", a)
	}
	if err != nil {
		return err
	}
	return v.Validate()
}

func boolValue(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func boolFrom(a Attribute, val uint64) (bool, error) {
	if val > 1 {
		return false, errors.Wrapf(ErrInvalidParameter, "%s %d", a, val)
	}
	return val == 1, nil
}

// Pib is the lock-protected PIB instance shared between the application and the MAC scheduler.
type Pib struct {
	mu       sync.RWMutex
	values   Values
	defaults Values
}

// New creates a PIB that starts at, and resets to, defaults.
func New(defaults Values) (*Pib, error) {
	if err := defaults.Validate(); err != nil {
		return nil, err
	}
	return &Pib{
		values:   defaults,
		defaults: defaults,
	}, nil
}

// Get reads one attribute.
func (p *Pib) Get(a Attribute) (uint64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.values.get(a)
}

// Set writes one attribute. An out-of-range value leaves the PIB unchanged.
func (p *Pib) Set(a Attribute, val uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	v := p.values
	if err := v.set(a, val); err != nil {
		return err
	}
	p.values = v
	return nil
}

// Snapshot returns a consistent copy of all attributes.
func (p *Pib) Snapshot() Values {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.values
}

// Reset restores the defaults the PIB was created with.
func (p *Pib) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values = p.defaults
}

// NextDsn returns the current data sequence number and advances it.
func (p *Pib) NextDsn() uint8 {
	p.mu.Lock()
	defer p.mu.Unlock()
	dsn := p.values.Dsn
	p.values.Dsn++
	return dsn
}

// LoadProfile parses a YAML PIB profile. Absent keys keep their default value.
func LoadProfile(data []byte) (Values, error) {
	v := DefaultValues()
	if err := yaml.Unmarshal(data, &v); err != nil {
		return v, errors.Wrap(err, "parse PIB profile")
	}
	return v, v.Validate()
}

func LoadProfileFile(path string) (Values, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultValues(), errors.Wrapf(err, "read PIB profile")
	}
	return LoadProfile(data)
}
