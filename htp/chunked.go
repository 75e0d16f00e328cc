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
	"github.com/packetd/htpcore/internal/splitio"
)

// ChunkLength is the parsed result of a chunk length line.
type ChunkLength struct {
	Length  uint64
	Invalid bool // leading bytes are not valid hex digits
	Flags   Flags
}

// ParseChunkLength parses a length line in a chunked body.
//
// Tolerates chunk extensions (everything after the first ';' is discarded
// wholesale), LF-only line endings, and whitespace around the length
// digits. Non-hex leading bytes are a framing error: the caller should
// fall back to identity-until-close.
func ParseChunkLength(line []byte) ChunkLength {
	var flags Flags

	trimmed := line
	if hasCRLFSuffix(trimmed) {
		trimmed = trimmed[:len(trimmed)-2]
	} else if len(trimmed) > 0 && trimmed[len(trimmed)-1] == '\n' {
		trimmed = trimmed[:len(trimmed)-1]
		flags = flags.Set(LFLine)
	}

	if idx := indexByte(trimmed, ';'); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	trimmed = splitio.TrimLWS(trimmed)

	if len(trimmed) == 0 {
		return ChunkLength{Invalid: true, Flags: flags}
	}

	var n uint64
	for i, b := range trimmed {
		v, ok := hexDigit(b)
		if !ok {
			return ChunkLength{Invalid: true, Flags: flags}
		}
		if i >= 16 {
			// Would overflow 64 bits; treat as invalid.
			return ChunkLength{Invalid: true, Flags: flags}
		}
		n = n<<4 | uint64(v)
	}

	return ChunkLength{Length: n, Flags: flags}
}

func hexDigit(b byte) (byte, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	default:
		return 0, false
	}
}

func hasCRLFSuffix(b []byte) bool {
	return len(b) >= 2 && b[len(b)-2] == '\r' && b[len(b)-1] == '\n'
}

func indexByte(b []byte, c byte) int {
	for i := range b {
		if b[i] == c {
			return i
		}
	}
	return -1
}
