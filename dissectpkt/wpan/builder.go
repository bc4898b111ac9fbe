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

package wpan

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/openthread/ot-macsim/types"
)

var ErrFrameTooLong = errors.New("frame exceeds aMaxPhyPacketSize")

// DataFrame describes a data frame to encode. A zero SrcAddrExtended selects a short source address.
type DataFrame struct {
	Seq             uint8
	PanId           uint16
	DstAddrShort    uint16
	SrcAddrShort    uint16
	SrcAddrExtended uint64
	AckRequest      bool
	FramePending    bool
	Payload         []byte
}

// HeaderLen returns the MAC header length of the encoded frame.
func (df *DataFrame) HeaderLen() int {
	n := 2 + 1 + 2 + 2
	if df.SrcAddrExtended != 0 {
		return n + 8
	}
	return n + 2
}

// EncodedLen returns the PSDU length of the encoded frame, FCS included.
func (df *DataFrame) EncodedLen() int {
	return df.HeaderLen() + len(df.Payload) + types.FcsSize
}

// Encode writes the PSDU into buf, which must hold EncodedLen bytes, and returns the length written.
func (df *DataFrame) Encode(buf []byte) (int, error) {
	size := df.EncodedLen()
	if size > types.MaxPhyPacketSize {
		return 0, errors.Wrapf(ErrFrameTooLong, "%d bytes", size)
	}
	if len(buf) < size {
		return 0, errors.Errorf("buffer of %d bytes cannot hold %d", len(buf), size)
	}

	fc := FrameControl(FrameTypeData) | fcPanidCompression | fcVersion2006 | AddrModeShort<<fcDstModeShift
	if df.AckRequest {
		fc |= fcAckRequest
	}
	if df.FramePending {
		fc |= fcFramePending
	}
	if df.SrcAddrExtended != 0 {
		fc |= AddrModeExtended << fcSrcModeShift
	} else {
		fc |= AddrModeShort << fcSrcModeShift
	}

	binary.LittleEndian.PutUint16(buf[0:2], uint16(fc))
	buf[2] = df.Seq
	binary.LittleEndian.PutUint16(buf[3:5], df.PanId)
	binary.LittleEndian.PutUint16(buf[5:7], df.DstAddrShort)
	n := 7
	if df.SrcAddrExtended != 0 {
		binary.LittleEndian.PutUint64(buf[n:n+8], df.SrcAddrExtended)
		n += 8
	} else {
		binary.LittleEndian.PutUint16(buf[n:n+2], df.SrcAddrShort)
		n += 2
	}
	n += copy(buf[n:], df.Payload)
	binary.LittleEndian.PutUint16(buf[n:n+2], Fcs(buf[:n]))
	return n + types.FcsSize, nil
}

// EncodeAck writes an immediate acknowledgment for seq into buf and returns the length written.
func EncodeAck(buf []byte, seq uint8, framePending bool) int {
	fc := FrameControl(FrameTypeAck)
	if framePending {
		fc |= fcFramePending
	}
	binary.LittleEndian.PutUint16(buf[0:2], uint16(fc))
	buf[2] = seq
	binary.LittleEndian.PutUint16(buf[3:5], Fcs(buf[:3]))
	return types.AckFrameSize
}

// Fcs computes the 16-bit ITU-T CRC of an 802.15.4 MAC frame.
func Fcs(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = crc>>1 ^ 0x8408
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

// CheckFcs reports whether the trailing FCS of psdu matches its content.
func CheckFcs(psdu []byte) bool {
	if len(psdu) < types.FcsSize {
		return false
	}
	n := len(psdu) - types.FcsSize
	return binary.LittleEndian.Uint16(psdu[n:]) == Fcs(psdu[:n])
}
