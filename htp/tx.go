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

import (
	"go.opentelemetry.io/collector/pdata/pcommon"

	"github.com/packetd/htpcore/internal/tracekit"
)

// ProtocolVersion encodes the HTTP version parsed from a request or
// response line.
type ProtocolVersion int

const (
	ProtocolUnknown ProtocolVersion = iota
	ProtocolInvalidVersion
	ProtocolV09
	ProtocolV10
	ProtocolV11
)

// Progress describes how far a request or response has advanced through
// its lifecycle. Monotonically non-decreasing.
type Progress int

const (
	ProgressNotStarted Progress = iota
	ProgressLine
	ProgressHeaders
	ProgressBody
	ProgressTrailer
	ProgressComplete
)

// TransferCoding enumerates the body framing of a request or response.
type TransferCoding int

const (
	TransferUnknown TransferCoding = iota
	TransferIdentity
	TransferChunked
	TransferNoBody
)

// Transaction is one request/response pair. It is referenced by a stable
// index within its connection — it never holds a pointer back to
// Connection. connIndex records the owning connection's index; both state
// machines set it to 0 and nothing in this package reads it.
type Transaction struct {
	Index     int
	connIndex int // index of the owning Connection; reserved for a future multi-connection registry

	stats *connStats // side channel for flag-event publishing; not a Connection back-pointer

	// ---- Request ----
	RequestMethod    string
	RequestURI       string // raw, undecoded
	ParsedURI        *URI   // decomposed and decoded
	ParsedURIRaw     *URI   // decomposed, before decoding
	RequestProtocol  string
	ProtocolNumber   ProtocolVersion
	IsProtocol09     bool
	RequestHeaders   *Headers
	RequestCookies   []Cookie
	RequestParams    []Param
	RequestContentLength    int64
	RequestHasContentLength bool
	RequestContentType      string
	RequestHostname         string
	RequestPortNumber       int
	RequestAuthType         AuthType
	RequestAuthUsername     string
	RequestAuthPassword     string
	RequestAuthToken        string
	RequestProgress         Progress
	RequestMessageLen       int64 // wire (as encoded)
	RequestEntityLen        int64 // decoded
	RequestTransferCoding   TransferCoding

	// ---- Response ----
	ResponseProtocol               string
	ResponseProtocolNumber         ProtocolVersion
	ResponseStatusNumber           int
	ResponseMessage                string
	ResponseHeaders                *Headers
	ResponseIgnoredLines           int
	ResponseTransferCoding         TransferCoding
	ResponseContentEncodingProcessing string
	ResponseProgress               Progress
	ResponseMessageLen             int64
	ResponseEntityLen              int64

	IsHTTP2Upgrade   bool
	Seen100Continue  bool

	Multipart *MultipartBody

	Flags Flags

	TraceID pcommon.TraceID
	hasTraceID bool
}

// NewTransaction creates a new Transaction owned by the connection at
// connIndex.
func NewTransaction(index, connIndex int, headerLimit int) *Transaction {
	return &Transaction{
		Index:             index,
		connIndex:         connIndex,
		RequestHeaders:    NewHeaders(headerLimit),
		ResponseHeaders:   NewHeaders(headerLimit),
		RequestProgress:   ProgressNotStarted,
		ResponseProgress:  ProgressNotStarted,
	}
}

// SetFlag sets an anomaly flag on the Transaction. Flags only accumulate.
//
// Bits that are newly set (as opposed to already present) are published to
// the owning Connection's stats bus and counters.
func (tx *Transaction) SetFlag(f Flags) {
	added := f &^ tx.Flags
	tx.Flags = tx.Flags.Set(f)
	tx.stats.publishFlags(tx.Index, added)
}

// ExtractTraceID tries to pull a W3C TraceID out of the request's
// `traceparent` header.
//
// Failure is not an error: the caller may not have distributed tracing
// wired up. This is a best-effort attachment of correlation context so an
// IDS/WAF can tie a detection back to an upstream trace.
func (tx *Transaction) ExtractTraceID() bool {
	if tx.hasTraceID {
		return true
	}
	id, ok := tracekit.TraceIDFromValue(tx.RequestHeaders.GetValue("traceparent"))
	if !ok {
		return false
	}
	tx.TraceID = id
	tx.hasTraceID = true
	return true
}

// IsRequestComplete reports whether the request side has reached COMPLETE.
func (tx *Transaction) IsRequestComplete() bool {
	return tx.RequestProgress == ProgressComplete
}

// IsResponseComplete reports whether the response side has reached
// COMPLETE.
func (tx *Transaction) IsResponseComplete() bool {
	return tx.ResponseProgress == ProgressComplete
}

// IsComplete reports whether both request and response have completed.
func (tx *Transaction) IsComplete() bool {
	return tx.IsRequestComplete() && tx.IsResponseComplete()
}
