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

// IEEE 802.15.4-2015 PHY and MAC constants for the 2.4 GHz O-QPSK PHY.

package types

const (
	MinChannelNumber ChannelId = 11
	MaxChannelNumber ChannelId = 26
	DefaultChannel   ChannelId = 11
)

// Durations below are expressed in symbols. One symbol is 16 us at 62.5 ksymbol/s.
const (
	SymbolDurationNs     = 16000
	SymbolsPerOctet      = 2
	TurnaroundTime       = 12 // aTurnaroundTime
	CcaTime              = 8  // aCcaTime
	UnitBackoffPeriod    = TurnaroundTime + CcaTime
	ShrDuration          = 10 // preamble + SFD
	PhrDuration          = 2
	SifsPeriod           = 12 // macSifsPeriod
	LifsPeriod           = 40 // macLifsPeriod
	AifsPeriod           = TurnaroundTime
	AckWaitDuration      = UnitBackoffPeriod + TurnaroundTime + ShrDuration + 6*SymbolsPerOctet
	MaxSifsFrameSize     = 18 // aMaxSifsFrameSize, octets
	MaxPhyPacketSize     = 127
	AckFrameSize         = 5 // FCF + seq + FCS
	FcsSize              = 2
	PhyHeaderLenBytes    = 6 // SHR + PHR
	DefaultMaxFrameRetry = 3
	DefaultMinBE         = 3
	DefaultMaxBE         = 5
	DefaultMaxBackoffs   = 4
)

// FrameDurationSymbols returns the on-air time of a PPDU carrying psduLen octets, SHR included.
func FrameDurationSymbols(psduLen int) int64 {
	return int64(ShrDuration + PhrDuration + psduLen*SymbolsPerOctet)
}

// IfsSymbols returns the inter-frame spacing that must follow a frame of psduLen octets.
func IfsSymbols(psduLen int) int64 {
	if psduLen <= MaxSifsFrameSize {
		return SifsPeriod
	}
	return LifsPeriod
}
