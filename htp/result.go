// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package htp

// Result is the outcome shared by state handlers and hook callbacks.
//
// The state machine never uses coroutines or async yield to express "not
// enough data, wait for the next chunk". Instead each state handler returns
// one of the values below and the driver loop interprets it.
type Result int

const (
	// ResultOK means the state handler finished and can advance to the
	// next state within the same chunk.
	ResultOK Result = iota

	// ResultData means there is nothing more to do with this chunk; wait
	// for the next call.
	ResultData

	// ResultDataBuffer is like ResultData but the unconsumed tail must be
	// appended to the overflow buffer. Exceeding field_limit after the
	// append is a fatal stream error.
	ResultDataBuffer

	// ResultDataOther means this direction cannot go on by itself: the
	// request side is waiting for the CONNECT response, or the stream is
	// tunneled. Unparsed bytes stay in the direction's buffer while it
	// waits and are discarded once it is tunneled; no consumed-offset
	// accessor is exposed and the caller resupplies nothing.
	ResultDataOther

	// ResultStop means a user callback asked to detach from this
	// connection.
	ResultStop

	// ResultError means an unrecoverable error occurred; the direction it
	// happened on transitions to ERROR.
	ResultError
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "OK"
	case ResultData:
		return "DATA"
	case ResultDataBuffer:
		return "DATA_BUFFER"
	case ResultDataOther:
		return "DATA_OTHER"
	case ResultStop:
		return "STOP"
	case ResultError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// StreamState is the state of a single direction (inbound or outbound).
type StreamState int

const (
	StreamStateNew StreamState = iota
	StreamStateOpen
	StreamStateClosed
	StreamStateError
	StreamStateTunnel
	StreamStateDataOther
	StreamStateStop
	StreamStateData
)

func (s StreamState) String() string {
	switch s {
	case StreamStateNew:
		return "NEW"
	case StreamStateOpen:
		return "OPEN"
	case StreamStateClosed:
		return "CLOSED"
	case StreamStateError:
		return "ERROR"
	case StreamStateTunnel:
		return "TUNNEL"
	case StreamStateDataOther:
		return "DATA_OTHER"
	case StreamStateStop:
		return "STOP"
	case StreamStateData:
		return "DATA"
	default:
		return "UNKNOWN"
	}
}

// SubResult is the tri-state result shared by grammar sub-parsers (URI,
// auth, cookie, ...).
//
// This is the "soft error" propagation from the error-handling design:
// SubDeclined means the sub-parser had nothing to do (no auth header,
// say) and the caller records a flag and continues; SubError unwinds to
// the driver and puts the stream into ERROR.
type SubResult int

const (
	SubOK SubResult = iota
	SubDeclined
	SubError
)
