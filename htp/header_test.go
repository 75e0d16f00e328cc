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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeadersAddCoalescesRepeats(t *testing.T) {
	h := NewHeaders(64)
	rt := repeatTracker{}

	h.Add("X-Forwarded-For", "1.1.1.1", rt)
	h.Add("x-forwarded-for", "2.2.2.2", rt)
	h.Add("X-FORWARDED-FOR", "3.3.3.3", rt)

	hdr := h.Get("X-Forwarded-For")
	assert.NotNil(t, hdr)
	assert.Equal(t, "X-Forwarded-For", hdr.Name) // keeps the casing of the first occurrence
	assert.Equal(t, "1.1.1.1, 2.2.2.2, 3.3.3.3", hdr.Value)
	assert.True(t, hdr.Flags.Has(FieldRepeated))
}

func TestHeadersContentLengthNotCoalesced(t *testing.T) {
	h := NewHeaders(64)
	rt := repeatTracker{}

	h.Add("Content-Length", "5", rt)
	h.Add("Content-Length", "10", rt)

	hdr := h.Get("Content-Length")
	assert.Equal(t, "5", hdr.Value) // only the first occurrence's value takes effect
	assert.False(t, hdr.Flags.Has(FieldRepeated))
}

func TestHeadersRepetitionLimit(t *testing.T) {
	h := NewHeaders(2)
	rt := repeatTracker{}

	h.Add("Cookie", "a=1", rt)
	h.Add("Cookie", "b=2", rt)
	h.Add("Cookie", "c=3", rt) // exceeds limit=2, silently dropped

	hdr := h.Get("Cookie")
	assert.Equal(t, "a=1, b=2", hdr.Value)
}

func TestHeadersCaseInsensitiveLookup(t *testing.T) {
	h := NewHeaders(64)
	rt := repeatTracker{}
	h.Add("Host", "example.com", rt)

	assert.Equal(t, "example.com", h.GetValue("host"))
	assert.Equal(t, "example.com", h.GetValue("HOST"))
	assert.Nil(t, h.Get("Accept"))
}

func TestHeadersEachPreservesOrder(t *testing.T) {
	h := NewHeaders(64)
	rt := repeatTracker{}
	h.Add("Host", "h", rt)
	h.Add("Accept", "*/*", rt)
	h.Add("User-Agent", "test", rt)

	var names []string
	h.Each(func(hdr *Header) {
		names = append(names, hdr.Name)
	})
	assert.Equal(t, []string{"Host", "Accept", "User-Agent"}, names)
}

func TestParseHeaderLine(t *testing.T) {
	pl := ParseHeaderLine([]byte("Host: example.com"))
	assert.False(t, pl.Malformed)
	assert.False(t, pl.Folding)
	assert.Equal(t, "Host", pl.Name)
	assert.Equal(t, "example.com", pl.Value)

	pl = ParseHeaderLine([]byte("  continued value"))
	assert.True(t, pl.Folding)
	assert.Equal(t, "continued value", pl.Value)

	pl = ParseHeaderLine([]byte("Malformed header without colon"))
	assert.True(t, pl.Malformed)

	pl = ParseHeaderLine([]byte("X-Custom: value\x00trailing garbage"))
	assert.Equal(t, "value", pl.Value)
}
