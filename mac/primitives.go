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

package mac

import (
	"fmt"

	"github.com/openthread/ot-macsim/frame"
	"github.com/openthread/ot-macsim/pib"
	"github.com/openthread/ot-macsim/radioclock"
)

// Operation selects the MLME or MCPS service of a request.
type Operation uint8

const (
	OpData Operation = iota
	OpPurge
	OpGet
	OpSet
	OpReset
	OpRxEnable
)

var operationNames = [...]string{"DATA", "PURGE", "GET", "SET", "RESET", "RX-ENABLE"}

func (op Operation) String() string {
	if int(op) >= len(operationNames) {
		return fmt.Sprintf("OP(%d)", op)
	}
	return operationNames[op]
}

// Primitive distinguishes a request from a response to an indication. Both are transported and
// confirmed the same way.
type Primitive uint8

const (
	PrimitiveRequest Primitive = iota
	PrimitiveResponse
)

type Status uint8

const (
	StatusSuccess Status = iota
	StatusNoAck
	StatusChannelAccessFailure
	StatusSchedulingError
	StatusInvalidParameter
	StatusInvalidHandle
	StatusUnsupportedAttribute
	StatusTransactionOverflow
	StatusFrameTooLong
	StatusPurged
)

var statusNames = [...]string{
	"SUCCESS",
	"NO_ACK",
	"CHANNEL_ACCESS_FAILURE",
	"SCHEDULING_ERROR",
	"INVALID_PARAMETER",
	"INVALID_HANDLE",
	"UNSUPPORTED_ATTRIBUTE",
	"TRANSACTION_OVERFLOW",
	"FRAME_TOO_LONG",
	"PURGED",
}

func (s Status) String() string {
	if int(s) >= len(statusNames) {
		return fmt.Sprintf("STATUS(%d)", s)
	}
	return statusNames[s]
}

// ParseStatus looks a status up by its name.
func ParseStatus(name string) (Status, bool) {
	for i, n := range statusNames {
		if n == name {
			return Status(i), true
		}
	}
	return 0, false
}

// Request is a MAC request or response primitive.
type Request struct {
	Primitive Primitive
	Op        Operation

	// Handle identifies an MSDU for DATA and PURGE.
	Handle uint8
	// Frame is the PSDU to transmit for DATA, owned by the scheduler once submitted.
	Frame *frame.Buffer
	// Seq and AckRequest restate what the frame's header carries.
	Seq        uint8
	AckRequest bool

	Attr  pib.Attribute
	Value uint64
	// SetDefaultPib restores PIB defaults on RESET.
	SetDefaultPib bool
	// RxOn is the receiver setting of RX-ENABLE.
	RxOn bool
}

func (r *Request) String() string {
	switch r.Op {
	case OpData:
		return fmt.Sprintf("%s(handle=%d,seq=%d,ack=%v)", r.Op, r.Handle, r.Seq, r.AckRequest)
	case OpPurge:
		return fmt.Sprintf("%s(handle=%d)", r.Op, r.Handle)
	case OpGet:
		return fmt.Sprintf("%s(%s)", r.Op, r.Attr)
	case OpSet:
		return fmt.Sprintf("%s(%s=%d)", r.Op, r.Attr, r.Value)
	case OpRxEnable:
		return fmt.Sprintf("%s(%v)", r.Op, r.RxOn)
	default:
		return r.Op.String()
	}
}

// Confirm reports the outcome of a request.
type Confirm struct {
	Op     Operation
	Handle uint8
	Status Status
	// Retries counts missed acknowledgments and Attempts the frames put on the air for DATA.
	Retries  int
	Attempts int
	// Timestamp is the RMARKER of the last transmission.
	Timestamp radioclock.Instant
	Attr      pib.Attribute
	Value     uint64
}

func (c Confirm) String() string {
	if c.Op == OpData {
		return fmt.Sprintf("%s.confirm(handle=%d,%s,retries=%d,attempts=%d)", c.Op, c.Handle, c.Status, c.Retries, c.Attempts)
	}
	return fmt.Sprintf("%s.confirm(%s)", c.Op, c.Status)
}

// Indication is a received frame. Frame is owned by the indication until the client takes it.
type Indication struct {
	Frame   *frame.Buffer
	Psdu    []byte
	RMarker radioclock.Instant
	Seq     uint8
	// AckRequested tells whether the frame was acknowledged by the radio.
	AckRequested bool
}

func (ind Indication) String() string {
	return fmt.Sprintf("DATA.indication(seq=%d,len=%d,at=%s)", ind.Seq, len(ind.Psdu), ind.RMarker)
}
