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

// HookPoint enumerates the lifecycle event points.
type HookPoint int

const (
	HookRequestStart HookPoint = iota
	HookRequestLine
	HookRequestHeaders
	HookRequestHeaderData
	HookRequestBodyData
	HookRequestTrailer
	HookRequestTrailerData
	HookRequestComplete

	HookResponseStart
	HookResponseLine
	HookResponseHeaders
	HookResponseHeaderData
	HookResponseBodyData
	HookResponseTrailer
	HookResponseTrailerData
	HookResponseComplete

	hookPointCount
)

// Callback is a single handler registered on a hook point.
//
// The return value reuses the Result enum: STOP propagates all the way up
// and detaches the connection driver; ERROR converts to a stream error for
// the current direction; ResultOK and ResultData (the handler declining to
// act) let the next callback run. Any other value also ends the chain and
// is handed back to the state machine as is.
type Callback func(tx *Transaction, data []byte) Result

// Hooks is a synchronous, ordered callback registry.
//
// Unlike the asynchronous fan-out of internal/htpstats.Bus, call order here
// is part of correctness (request_header_data must finish before
// request_headers, for example), so handlers are invoked as a direct call
// chain rather than over a channel.
type Hooks struct {
	points [hookPointCount][]Callback
}

// NewHooks creates an empty hook registry.
func NewHooks() *Hooks {
	return &Hooks{}
}

// Register appends a callback on point; callbacks run in registration order.
func (h *Hooks) Register(point HookPoint, cb Callback) {
	h.points[point] = append(h.points[point], cb)
}

// Run invokes every callback registered on point in order, short-circuiting
// on the first result other than ResultOK or ResultData (DECLINED).
func (h *Hooks) Run(point HookPoint, tx *Transaction, data []byte) Result {
	for _, cb := range h.points[point] {
		switch r := cb(tx, data); r {
		case ResultOK, ResultData:
			continue
		default:
			return r
		}
	}
	return ResultOK
}
