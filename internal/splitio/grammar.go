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

package splitio

import "bytes"

// IsSP reports whether b is a single space character.
func IsSP(b byte) bool {
	return b == ' '
}

// IsHT reports whether b is a horizontal tab.
func IsHT(b byte) bool {
	return b == '\t'
}

// IsSpace reports whether b is a space or tab (permissive SP check; many
// servers tolerate HT).
func IsSpace(b byte) bool {
	return IsSP(b) || IsHT(b)
}

// IsLWS reports whether b belongs to linear white space (SP/HT/CR/LF).
func IsLWS(b byte) bool {
	switch b {
	case ' ', '\t', '\r', '\n':
		return true
	default:
		return false
	}
}

// IsCTL reports whether b is a control character (excluding HT).
func IsCTL(b byte) bool {
	return b < 0x20 && b != '\t' || b == 0x7f
}

// IsToken reports whether b is an RFC 7230 token character.
//
// token = 1*tchar
// tchar = "!" / "#" / "$" / "%" / "&" / "'" / "*" / "+" / "-" / "." /
//
//	"^" / "_" / "`" / "|" / "~" / DIGIT / ALPHA
func IsToken(b byte) bool {
	switch {
	case b >= '0' && b <= '9':
		return true
	case b >= 'a' && b <= 'z':
		return true
	case b >= 'A' && b <= 'Z':
		return true
	}
	switch b {
	case '!', '#', '$', '%', '&', '\'', '*', '+', '-', '.', '^', '_', '`', '|', '~':
		return true
	default:
		return false
	}
}

// IsAllToken reports whether every byte in b is a token character.
func IsAllToken(b []byte) bool {
	for i := range b {
		if !IsToken(b[i]) {
			return false
		}
	}
	return len(b) > 0
}

// TrimLWS strips leading and trailing linear white space from b.
func TrimLWS(b []byte) []byte {
	i, j := 0, len(b)
	for i < j && IsLWS(b[i]) {
		i++
	}
	for j > i && IsLWS(b[j-1]) {
		j--
	}
	return b[i:j]
}

// Chomp strips a trailing CRLF or LF from b, without touching any byte
// outside the returned slice.
func Chomp(b []byte) []byte {
	if bytes.HasSuffix(b, CharCRLF) {
		return b[:len(b)-2]
	}
	if bytes.HasSuffix(b, CharLF) {
		return b[:len(b)-1]
	}
	return b
}

// IsBlankLine reports whether b, once chomped, is empty (a line made up
// only of a line terminator).
func IsBlankLine(b []byte) bool {
	return len(Chomp(b)) == 0
}

// SplitColon splits line into name/value at the first `:`, discarding the
// colon itself.
//
// ok is false when no colon was found — the caller should record the whole
// line as a malformed header rather than silently dropping it.
func SplitColon(line []byte) (name, value []byte, ok bool) {
	idx := bytes.IndexByte(line, ':')
	if idx < 0 {
		return line, nil, false
	}
	return line[:idx], line[idx+1:], true
}

// SplitFields splits line into at most max tokens (method/URI/protocol) on
// runs of whitespace.
//
// Multiple whitespace characters between tokens are tolerated.
func SplitFields(line []byte, max int) [][]byte {
	var fields [][]byte
	i := 0
	n := len(line)
	for i < n && len(fields) < max {
		for i < n && IsSpace(line[i]) {
			i++
		}
		if i >= n {
			break
		}
		start := i
		for i < n && !IsSpace(line[i]) && line[i] != '\r' && line[i] != '\n' {
			i++
		}
		if i > start {
			fields = append(fields, line[start:i])
		} else {
			i++ // a lone CR or LF ends no token; step past it
		}
	}
	return fields
}
