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
// Package pcap captures the frames a simulated radio puts on the air.
package pcap

import (
	"bufio"
	"encoding/binary"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/openthread/ot-macsim/logger"
	"github.com/openthread/ot-macsim/radioclock"
	. "github.com/openthread/ot-macsim/types"
)

type FrameType int

const (
	FrameTypeOff FrameType = iota
	FrameTypeWpan
	FrameTypeWpanTap
	FrameTypeUnknown
)

const (
	FrameTypeOffStr     string = "off"
	FrameTypeWpanStr    string = "wpan"
	FrameTypeWpanTapStr string = "wpan-tap"
)

const (
	dltIeee802154       = 195
	pcapMagicNumber     = 0xA1B2C3D4
	pcapVersionMajor    = 2
	pcapVersionMinor    = 4
	pcapSnapLen         = 256
	pcapFileHeaderSize  = 24
	pcapFrameHeaderSize = 16
)

// marks radio time zero in the capture, uses a reserved frame type
const timeReference802154frameData string = "\x04\x21ot-macsim capture t=0 reference frame.\x61\x3f"

// File is a capture sink for on-air frames.
type File interface {
	AppendFrame(frame Frame) error
	Sync() error
	Close() error
}

// Frame is one transmission as seen on the medium.
type Frame struct {
	Timestamp radioclock.Instant
	// Data is the PSDU, FCS included.
	Data    []byte
	Channel ChannelId
	Rssi    float32
}

// recordCodec produces the link-layer specific part of a capture.
type recordCodec interface {
	linkType() uint32
	// pseudoHeader returns the bytes placed between the record header and the PSDU.
	pseudoHeader(frame *Frame) []byte
}

type captureFile struct {
	mu    sync.Mutex
	fd    *os.File
	w     *bufio.Writer
	codec recordCodec
}

// NewFile opens filename for writing and emits the capture header for frameType.
func NewFile(filename string, frameType FrameType, useTimeRefFrame bool) (File, error) {
	var codec recordCodec
	switch frameType {
	case FrameTypeWpan:
		codec = wpanCodec{}
	case FrameTypeWpanTap:
		codec = tapCodec{}
	default:
		return nil, errors.Errorf("invalid PCAP frame type: %d", frameType)
	}

	fd, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "open capture %s", filename)
	}
	cf := &captureFile{
		fd:    fd,
		w:     bufio.NewWriter(fd),
		codec: codec,
	}
	if err = cf.writeFileHeader(); err != nil {
		_ = cf.Close()
		return nil, err
	}

	if useTimeRefFrame {
		logger.PanicfIfError(cf.AppendFrame(Frame{
			Data: []byte(timeReference802154frameData),
		}), "PCAP file time-reference 0 frame could not be written")
	}
	return cf, nil
}

func ParseFrameTypeStr(tp string) FrameType {
	switch tp {
	case FrameTypeOffStr:
		return FrameTypeOff
	case FrameTypeWpanStr:
		return FrameTypeWpan
	case FrameTypeWpanTapStr:
		return FrameTypeWpanTap
	default:
		return FrameTypeUnknown
	}
}

func (cf *captureFile) AppendFrame(frame Frame) error {
	pseudo := cf.codec.pseudoHeader(&frame)
	recLen := uint32(len(pseudo) + len(frame.Data))

	var hdr [pcapFrameHeaderSize]byte
	us := frame.Timestamp.Micros()
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(us/1000000))
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(us%1000000))
	binary.LittleEndian.PutUint32(hdr[8:12], recLen)
	binary.LittleEndian.PutUint32(hdr[12:16], recLen)

	cf.mu.Lock()
	defer cf.mu.Unlock()
	for _, b := range [][]byte{hdr[:], pseudo, frame.Data} {
		if _, err := cf.w.Write(b); err != nil {
			return err
		}
	}
	return nil
}

// Sync flushes buffered records and commits the file to disk.
func (cf *captureFile) Sync() error {
	cf.mu.Lock()
	defer cf.mu.Unlock()
	if err := cf.w.Flush(); err != nil {
		return err
	}
	return cf.fd.Sync()
}

func (cf *captureFile) Close() error {
	cf.mu.Lock()
	defer cf.mu.Unlock()
	flushErr := cf.w.Flush()
	if err := cf.fd.Close(); err != nil {
		return err
	}
	return flushErr
}

func (cf *captureFile) writeFileHeader() error {
	var hdr [pcapFileHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:4], pcapMagicNumber)
	binary.LittleEndian.PutUint16(hdr[4:6], pcapVersionMajor)
	binary.LittleEndian.PutUint16(hdr[6:8], pcapVersionMinor)
	// thiszone and sigfigs stay zero
	binary.LittleEndian.PutUint32(hdr[16:20], pcapSnapLen)
	binary.LittleEndian.PutUint32(hdr[20:24], cf.codec.linkType())
	if _, err := cf.w.Write(hdr[:]); err != nil {
		return err
	}
	return cf.Sync()
}

// wpanCodec writes the bare PSDU.
type wpanCodec struct{}

func (wpanCodec) linkType() uint32 { return dltIeee802154 }

func (wpanCodec) pseudoHeader(*Frame) []byte { return nil }
