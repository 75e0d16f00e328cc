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

// Flags is the anomaly bitset attached to a Transaction or a Header.
//
// A bit, once set, is never cleared. The same bit may appear both on
// Transaction.Flags and on the Header that triggered it. Treat Flags as a
// record of "what happened on this stream", not an error code — most bits
// do not stop parsing from continuing.
type Flags uint64

const (
	FieldUnparseable Flags = 1 << iota
	RequestSmuggling
	InvalidFolding
	RequestInvalidTE
	RequestInvalidCL
	MultiPacketHead
	HostMissing
	HostAmbiguous
	HostInvalid
	PathEncodedNUL
	PathRawNUL
	PathInvalidEncoding
	PathEncodedSeparator
	PathUTF8Valid
	PathUTF8Invalid
	PathUTF8Overlong
	PathHalfFullRange
	URLenEncodedNUL
	URLenRawNUL
	URLenInvalidEncoding
	URLenEncodedSeparator
	HBoundaryInvalid
	PartHeaderFolding
	PartUnknown
	PartAfterLastBoundary
	AuthUnrecognized
	FieldRepeated
	RequestLineLeadingWhitespace
	RequestLineInvalid
	ProtocolInvalid
	StatusLineInvalid
	LFLine
	Incomplete
	HTTP09Extra
	IgnoredBody
	UnusualBoundaryChar
	HasPreamble
	HasEpilogue
	SeenLastBoundary
	Pipelined
	DelimiterNonCompliance
	MultipartByterangesUnsupported
	GapRejected
)

// Has reports whether f contains every bit in o.
func (f Flags) Has(o Flags) bool {
	return f&o == o
}

// Set returns a new Flags with o set. Callers should write
// `tx.Flags = tx.Flags.Set(x)` to keep the set-once-never-clear semantics.
func (f Flags) Set(o Flags) Flags {
	return f | o
}

var flagNames = map[Flags]string{
	FieldUnparseable:               "FieldUnparseable",
	RequestSmuggling:               "RequestSmuggling",
	InvalidFolding:                 "InvalidFolding",
	RequestInvalidTE:               "RequestInvalidTE",
	RequestInvalidCL:               "RequestInvalidCL",
	MultiPacketHead:                "MultiPacketHead",
	HostMissing:                    "HostMissing",
	HostAmbiguous:                  "HostAmbiguous",
	HostInvalid:                    "HostInvalid",
	PathEncodedNUL:                 "PathEncodedNUL",
	PathRawNUL:                     "PathRawNUL",
	PathInvalidEncoding:            "PathInvalidEncoding",
	PathEncodedSeparator:           "PathEncodedSeparator",
	PathUTF8Valid:                  "PathUTF8Valid",
	PathUTF8Invalid:                "PathUTF8Invalid",
	PathUTF8Overlong:               "PathUTF8Overlong",
	PathHalfFullRange:              "PathHalfFullRange",
	URLenEncodedNUL:                "URLenEncodedNUL",
	URLenRawNUL:                    "URLenRawNUL",
	URLenInvalidEncoding:           "URLenInvalidEncoding",
	URLenEncodedSeparator:          "URLenEncodedSeparator",
	HBoundaryInvalid:               "HBoundaryInvalid",
	PartHeaderFolding:              "PartHeaderFolding",
	PartUnknown:                    "PartUnknown",
	PartAfterLastBoundary:          "PartAfterLastBoundary",
	AuthUnrecognized:               "AuthUnrecognized",
	FieldRepeated:                  "FieldRepeated",
	RequestLineLeadingWhitespace:   "RequestLineLeadingWhitespace",
	RequestLineInvalid:             "RequestLineInvalid",
	ProtocolInvalid:                "ProtocolInvalid",
	StatusLineInvalid:              "StatusLineInvalid",
	LFLine:                         "LFLine",
	Incomplete:                     "Incomplete",
	HTTP09Extra:                    "HTTP09Extra",
	IgnoredBody:                    "IgnoredBody",
	UnusualBoundaryChar:            "UnusualBoundaryChar",
	HasPreamble:                    "HasPreamble",
	HasEpilogue:                    "HasEpilogue",
	SeenLastBoundary:               "SeenLastBoundary",
	Pipelined:                      "Pipelined",
	DelimiterNonCompliance:         "DelimiterNonCompliance",
	MultipartByterangesUnsupported: "MultipartByterangesUnsupported",
	GapRejected:                    "GapRejected",
}

// eachSetBit calls fn once per single bit set in f, in ascending bit order.
func (f Flags) eachSetBit(fn func(bit Flags, name string)) {
	for bit := Flags(1); bit != 0 && bit <= f; bit <<= 1 {
		if f&bit == 0 {
			continue
		}
		name := flagNames[bit]
		if name == "" {
			name = "Unknown"
		}
		fn(bit, name)
	}
}
