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

// Package-local percent/UTF-8 decoder, grounded on the `path_decode` /
// `urldecode_ex` family in the reference Rust implementation: a fold over
// the input bytes that, for every `%XX` / `%uXXXX` escape, decides whether
// to decode, drop, or preserve the percent sign, while accumulating anomaly
// flags along the way. The request path and request/body parameters share
// almost the same state machine but disagree on a couple of defaults (e.g.
// "+" only means space in params), so both are expressed as one function
// parameterised by isParam.

import (
	"unicode/utf8"
)

func isHex(b byte) bool {
	return b >= '0' && b <= '9' || b >= 'a' && b <= 'f' || b >= 'A' && b <= 'F'
}

func hexVal(b byte) byte {
	switch {
	case b >= '0' && b <= '9':
		return b - '0'
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10
	default:
		return 0
	}
}

func x2c(hi, lo byte) byte {
	return hi<<4 | lo
}

// decodeResult is the byproduct of a decode pass.
type decodeResult struct {
	out   []byte
	flags Flags
}

// bestfit maps a %uXXXX BMP code point to a single-byte approximation.
//
// cfg.BestfitMap is a Unicode-to-single-byte-charset table (windows-1252 by
// default): most %uXXXX escapes are a single-byte character a client
// widened into two bytes, so this re-encodes (hi,lo) as a UTF-16BE code
// unit back into the target charset, falling back to '?' when no byte maps
// (matching common WAF vendor behavior).
func bestfit(cfg DecoderConfig, hi, lo byte) byte {
	if cfg.BestfitMap == nil {
		return lo
	}

	r := rune(hi)<<8 | rune(lo)
	enc := cfg.BestfitMap.NewEncoder()
	b, err := enc.Bytes([]byte(string(r)))
	if err != nil || len(b) == 0 {
		return '?'
	}
	return b[0]
}

// decodeUEncoding parses the 4 hex characters right after "%u", returning
// the decoded byte and any flags.
func decodeUEncoding(cfg DecoderConfig, hex []byte) (byte, Flags) {
	var flags Flags
	c1 := x2c(hexVal(hex[0]), hexVal(hex[1]))
	c2 := x2c(hexVal(hex[2]), hexVal(hex[3]))

	if c1 == 0 {
		flags = flags.Set(PathUTF8Overlong)
		return c2, flags
	}
	if c1 == 0xff {
		flags = flags.Set(PathHalfFullRange)
	}
	return bestfit(cfg, c1, c2), flags
}

// DecodeURIComponent runs percent/UTF-8 decoding over path or parameter
// bytes.
//
// isParam enables the "+"→space conversion (params only; '+' is literal in
// a path).
func DecodeURIComponent(cfg DecoderConfig, input []byte, isParam bool) ([]byte, Flags) {
	var out []byte
	var flags Flags

	i := 0
	n := len(input)
	for i < n {
		b := input[i]

		switch {
		case b == '+' && isParam && cfg.PlusSpaceDecode:
			out = append(out, ' ')
			i++

		case b == '%':
			consumed, decoded, f := decodePercentEscape(cfg, input[i+1:])
			flags = flags.Set(f)
			if consumed == 0 {
				// Neither a valid %XX nor a valid %uXXXX: handle the lone % per policy.
				flags = flags.Set(PathInvalidEncoding)
				switch cfg.URLEncodingInvalid {
				case URLRemovePercent:
					// Drop the % itself, emit nothing.
				case URLPreservePercent:
					out = append(out, '%')
				default: // URLProcessInvalid
					out = append(out, '%')
				}
				i++
				continue
			}
			if decoded == 0x00 {
				flags = flags.Set(PathEncodedNUL)
				if (isParam && cfg.NULEncodedTerminates) || (!isParam && cfg.NULEncodedTerminates) {
					return out, flags
				}
			}
			if decoded == '/' || (cfg.BackslashConvertSlashes && decoded == '\\') {
				flags = flags.Set(PathEncodedSeparator)
			}
			out = append(out, applyControlPolicy(cfg, decoded))
			i += 1 + consumed

		case b == 0x00:
			flags = flags.Set(PathRawNUL)
			if cfg.NULRawTerminates {
				return out, flags
			}
			out = append(out, b)
			i++

		default:
			r, size := utf8.DecodeRune(input[i:])
			if r == utf8.RuneError && size <= 1 {
				out = append(out, applyControlPolicy(cfg, b))
				i++
				continue
			}
			if size > 1 {
				flags = flags.Set(PathUTF8Valid)
				if r >= 0xff00 && r <= 0xffef {
					flags = flags.Set(PathHalfFullRange)
				}
			}
			out = append(out, input[i:i+size]...)
			i += size
		}
	}

	if cfg.PathSeparatorsCompress {
		out = compressSeparators(out)
	}
	return out, flags
}

func applyControlPolicy(cfg DecoderConfig, b byte) byte {
	if b == '\\' && cfg.BackslashConvertSlashes {
		b = '/'
	}
	if cfg.ConvertLowercase && b >= 'A' && b <= 'Z' {
		b += 'a' - 'A'
	}
	return b
}

// decodePercentEscape tries to parse one escape sequence in input,
// right after the '%' that has already been consumed.
//
// Returns the extra bytes consumed beyond the '%' itself; consumed==0
// means it was neither a valid %XX nor a valid %uXXXX.
func decodePercentEscape(cfg DecoderConfig, input []byte) (consumed int, decoded byte, flags Flags) {
	if len(input) >= 1 && (input[0] == 'u' || input[0] == 'U') {
		if !cfg.UEncodingDecode {
			return 0, 0, 0
		}
		if len(input) >= 5 && isHex(input[1]) && isHex(input[2]) && isHex(input[3]) && isHex(input[4]) {
			b, f := decodeUEncoding(cfg, input[1:5])
			return 5, b, f
		}
		// %u with fewer than 4 valid hex digits following: invalid u-encoding.
		switch cfg.URLEncodingInvalid {
		case URLRemovePercent:
			return 0, 0, PathInvalidEncoding
		default:
			if len(input) >= 5 {
				return 5, x2c(hexVal(input[1]), hexVal(input[2])), PathInvalidEncoding
			}
			return 0, 0, PathInvalidEncoding
		}
	}

	if len(input) >= 2 && isHex(input[0]) && isHex(input[1]) {
		return 2, x2c(hexVal(input[0]), hexVal(input[1])), 0
	}
	return 0, 0, 0
}

// compressSeparators collapses consecutive '/' into one.
func compressSeparators(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] == '/' && len(out) > 0 && out[len(out)-1] == '/' {
			continue
		}
		out = append(out, b[i])
	}
	return out
}
