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
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/packetd/htpcore/internal/splitio"
)

// Header is a single (name, value) record carrying its own Flags.
//
// Name always preserves the casing of its first occurrence; lookup hashes
// the folded name with xxhash for case-insensitive matching, the same
// approach internal/labels.Labels.Hash uses — a hash avoids building a
// comparison tree per key.
type Header struct {
	Name  string
	Value string
	Flags Flags
}

// headerKey returns the hash key used for case-insensitive comparison of
// name.
func headerKey(name string) uint64 {
	return xxhash.Sum64String(strings.ToLower(name))
}

// Headers is an ordered, case-insensitive header table.
//
// order records insertion order so Get/Iterate can walk headers in their
// original appearance order; index is keyed on the folded name for O(1)
// lookup.
type Headers struct {
	order []string // insertion-ordered keys (already folded to lowercase)
	index map[uint64]*Header
	limit int // max repeats per header name; further repeats are silently dropped
}

// NewHeaders creates an empty Headers table. limit<=0 means no repeat cap.
func NewHeaders(limit int) *Headers {
	return &Headers{
		index: make(map[uint64]*Header),
		limit: limit,
	}
}

// repeatTracker counts how many times a header name has actually appeared:
// since repeats are coalesced into one *Header, a separate counter is
// needed to track the real occurrence count rather than the entry count.
type repeatTracker map[uint64]int

// Add inserts a header. If a header of the same name already exists, its
// value is extended with ", " and FieldRepeated is set, per §3. Content-
// Length is the exception: a repeat is not coalesced and its value is not
// kept — the entry holds the first value only, and the repeat shows up
// only in rt's occurrence count. The body framing logic in htp/inbound.go
// flags any repeated Content-Length without comparing the values.
func (h *Headers) Add(name, value string, rt repeatTracker) {
	key := headerKey(name)

	n := rt[key]
	rt[key] = n + 1

	if h.limit > 0 && n >= h.limit {
		return // repeat count exceeded, drop silently
	}

	if existing, ok := h.index[key]; ok {
		if !strings.EqualFold(name, "Content-Length") {
			existing.Value = existing.Value + ", " + value
			existing.Flags = existing.Flags.Set(FieldRepeated)
		}
		return
	}

	hdr := &Header{Name: name, Value: value}
	h.index[key] = hdr
	h.order = append(h.order, strings.ToLower(name))
}

// AppendFold extends the most recently inserted header's value with a
// folded continuation line, per §4.2 ("value extended with a
// separator"). A no-op if no header has been inserted yet — the caller
// is expected to have already flagged that case as invalid folding.
func (h *Headers) AppendFold(value string) {
	if len(h.order) == 0 {
		return
	}
	key := xxhash.Sum64String(h.order[len(h.order)-1])
	if hdr, ok := h.index[key]; ok {
		hdr.Value = hdr.Value + " " + value
	}
}

// Get looks up name case-insensitively, returning nil if absent.
func (h *Headers) Get(name string) *Header {
	return h.index[headerKey(name)]
}

// GetValue is a convenience wrapper around Get, returning "" if absent.
func (h *Headers) GetValue(name string) string {
	if hdr := h.Get(name); hdr != nil {
		return hdr.Value
	}
	return ""
}

// Len returns the number of distinct header names held.
func (h *Headers) Len() int {
	return len(h.order)
}

// Each walks all headers in insertion order.
func (h *Headers) Each(fn func(*Header)) {
	for _, key := range h.order {
		if hdr, ok := h.index[xxhash.Sum64String(key)]; ok {
			fn(hdr)
		}
	}
}

// ParsedLine is a single already-split header line.
type ParsedLine struct {
	Name        string
	Value       string
	Malformed   bool // no colon, empty name, or name contains non-token bytes
	Folding     bool // starts with SP/HT/NUL: continuation of the previous header
	InvalidFold bool // a continuation line with no prior header to extend
}

// ParseHeaderLine parses a single header line (trailing CRLF/LF already
// stripped).
//
// Folding lines (starting with SP/HT/NUL) are distinguished from ordinary
// lines; ordinary lines split on the first colon, value whitespace is
// trimmed, and bytes after a NUL in the value are dropped.
func ParseHeaderLine(line []byte) ParsedLine {
	if len(line) > 0 && (splitio.IsSpace(line[0]) || line[0] == 0x00) {
		return ParsedLine{Value: string(splitio.TrimLWS(line)), Folding: true}
	}

	name, value, ok := splitio.SplitColon(line)
	if !ok {
		return ParsedLine{Name: string(line), Malformed: true}
	}

	if idx := indexNUL(value); idx >= 0 {
		value = value[:idx]
	}
	value = splitio.TrimLWS(value)

	malformed := len(name) == 0 || !splitio.IsAllToken(name)
	return ParsedLine{Name: string(name), Value: string(value), Malformed: malformed}
}

func indexNUL(b []byte) int {
	for i, c := range b {
		if c == 0x00 {
			return i
		}
	}
	return -1
}
