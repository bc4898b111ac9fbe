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

// Package wpan dissects and builds IEEE 802.15.4 MAC frames as carried in a PSDU.
package wpan

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"

	"github.com/openthread/ot-macsim/types"
)

var ErrTruncated = errors.New("truncated 802.15.4 frame")

type FrameType = uint16

const (
	FrameTypeBeacon  FrameType = 0
	FrameTypeData    FrameType = 1
	FrameTypeAck     FrameType = 2
	FrameTypeCommand FrameType = 3
)

// Values for both Src and Dst addressing modes, Table 7-3, 802.15.4-2015.
const (
	AddrModeNone     = 0
	AddrModeReserved = 1
	AddrModeShort    = 2
	AddrModeExtended = 3
)

// FrameControl is the MHR frame control field, bit layout of 802.15.4-2015 Figure 7-2.
type FrameControl uint16

const (
	fcFrameTypeMask    FrameControl = 0x0007
	fcSecurityEnabled  FrameControl = 0x0008
	fcFramePending     FrameControl = 0x0010
	fcAckRequest       FrameControl = 0x0020
	fcPanidCompression FrameControl = 0x0040
	fcSeqSuppression   FrameControl = 0x0100
	fcIePresent        FrameControl = 0x0200
	fcVersion2006      FrameControl = 0x1000

	fcDstModeShift = 10
	fcVersionShift = 12
	fcSrcModeShift = 14
)

func (fc FrameControl) String() string {
	return fmt.Sprintf("0x%04x", uint16(fc))
}

func (fc FrameControl) has(bit FrameControl) bool {
	return fc&bit != 0
}

func (fc FrameControl) FrameType() FrameType {
	return FrameType(fc & fcFrameTypeMask)
}

func (fc FrameControl) SecurityEnabled() bool { return fc.has(fcSecurityEnabled) }
func (fc FrameControl) FramePending() bool { return fc.has(fcFramePending) }
func (fc FrameControl) AckRequest() bool { return fc.has(fcAckRequest) }
func (fc FrameControl) PanidCompression() bool { return fc.has(fcPanidCompression) }
func (fc FrameControl) SequenceNumberSuppression() bool { return fc.has(fcSeqSuppression) }
func (fc FrameControl) IEPresent() bool { return fc.has(fcIePresent) }

func (fc FrameControl) DestAddrMode() uint16 {
	return uint16(fc>>fcDstModeShift) & 0x3
}

func (fc FrameControl) SourceAddrMode() uint16 {
	return uint16(fc>>fcSrcModeShift) & 0x3
}

func (fc FrameControl) FrameVersion() uint16 {
	return uint16(fc>>fcVersionShift) & 0x3
}

// HasDestPanIdField applies the PAN ID presence rules: implicit for 2003/2006 frames,
// Table 7-2 of 802.15.4-2015 otherwise.
func (fc FrameControl) HasDestPanIdField() bool {
	if fc.FrameVersion() <= 1 {
		return true
	}
	dst, src, pc := fc.DestAddrMode() != AddrModeNone, fc.SourceAddrMode() != AddrModeNone, fc.PanidCompression()
	switch {
	case dst && src:
		bothExtended := fc.DestAddrMode() == AddrModeExtended && fc.SourceAddrMode() == AddrModeExtended
		return !bothExtended || !pc
	case dst:
		return !pc
	case src:
		return false
	default:
		return pc
	}
}

func (fc FrameControl) HasSourcePanIdField() bool {
	if fc.SourceAddrMode() == AddrModeNone || fc.PanidCompression() {
		return false
	}
	if fc.FrameVersion() <= 1 {
		return true
	}
	return !(fc.DestAddrMode() == AddrModeExtended && fc.SourceAddrMode() == AddrModeExtended)
}

type MacFrame struct {
	FrameControl    FrameControl
	Seq             uint8
	DstPanId        uint16
	SrcPanId        uint16
	DstAddrShort    uint16
	SrcAddrShort    uint16
	DstAddrExtended uint64
	SrcAddrExtended uint64
	// PayloadOffset is where the MAC payload starts in the PSDU.
	PayloadOffset int
	LengthBytes   uint16
	PhyHdrLength  uint16
}

func (f *MacFrame) String() string {
	if f.FrameControl.FrameType() == FrameTypeAck {
		return fmt.Sprintf("ACK,FC:%s,Seq:%d", f.FrameControl, f.Seq)
	}

	var dstAddrS string
	dstAddrMode := f.FrameControl.DestAddrMode()
	if dstAddrMode == AddrModeShort {
		dstAddrS = fmt.Sprintf("%04x", f.DstAddrShort)
	} else if dstAddrMode == AddrModeExtended {
		dstAddrS = fmt.Sprintf("%016x", f.DstAddrExtended)
	} else {
		dstAddrS = "-"
	}

	return fmt.Sprintf("MAC,FC:%s,Seq:%d,Dst:%s", f.FrameControl, f.Seq, dstAddrS)
}

// IsAck reports whether the frame is an immediate acknowledgment.
func (f *MacFrame) IsAck() bool {
	return f.FrameControl.FrameType() == FrameTypeAck
}

// Dissect parses the MAC header of a PSDU, FCS included.
func Dissect(psdu []byte) (*MacFrame, error) {
	if len(psdu) < 2+types.FcsSize {
		return nil, errors.Wrapf(ErrTruncated, "%d bytes", len(psdu))
	}
	frame := &MacFrame{}
	frame.LengthBytes = uint16(len(psdu))
	frame.PhyHdrLength = types.PhyHeaderLenBytes
	frame.FrameControl = FrameControl(binary.LittleEndian.Uint16(psdu[0:2]))
	hdrEnd := len(psdu) - types.FcsSize

	n := 2
	need := func(k int) error {
		if n+k > hdrEnd {
			return errors.Wrapf(ErrTruncated, "header field at %d+%d beyond %d", n, k, hdrEnd)
		}
		return nil
	}

	if !frame.FrameControl.SequenceNumberSuppression() {
		if err := need(1); err != nil {
			return nil, err
		}
		frame.Seq = psdu[n]
		n += 1
	}
	if frame.FrameControl.FrameType() > FrameTypeCommand || frame.FrameControl.FrameType() == FrameTypeAck {
		frame.PayloadOffset = n
		return frame, nil
	}

	if frame.FrameControl.HasDestPanIdField() {
		if err := need(2); err != nil {
			return nil, err
		}
		frame.DstPanId = binary.LittleEndian.Uint16(psdu[n : n+2])
		n += 2
	}

	switch frame.FrameControl.DestAddrMode() {
	case AddrModeExtended:
		if err := need(8); err != nil {
			return nil, err
		}
		frame.DstAddrExtended = binary.LittleEndian.Uint64(psdu[n : n+8])
		n += 8
	case AddrModeShort:
		if err := need(2); err != nil {
			return nil, err
		}
		frame.DstAddrShort = binary.LittleEndian.Uint16(psdu[n : n+2])
		n += 2
	}

	if frame.FrameControl.HasSourcePanIdField() {
		if err := need(2); err != nil {
			return nil, err
		}
		frame.SrcPanId = binary.LittleEndian.Uint16(psdu[n : n+2])
		n += 2
	}

	switch frame.FrameControl.SourceAddrMode() {
	case AddrModeExtended:
		if err := need(8); err != nil {
			return nil, err
		}
		frame.SrcAddrExtended = binary.LittleEndian.Uint64(psdu[n : n+8])
		n += 8
	case AddrModeShort:
		if err := need(2); err != nil {
			return nil, err
		}
		frame.SrcAddrShort = binary.LittleEndian.Uint16(psdu[n : n+2])
		n += 2
	}

	frame.PayloadOffset = n
	return frame, nil
}
