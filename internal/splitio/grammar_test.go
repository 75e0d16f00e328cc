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

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsToken(t *testing.T) {
	assert.True(t, IsToken('a'))
	assert.True(t, IsToken('Z'))
	assert.True(t, IsToken('9'))
	assert.True(t, IsToken('-'))
	assert.True(t, IsToken('_'))
	assert.False(t, IsToken(' '))
	assert.False(t, IsToken(':'))
	assert.False(t, IsToken('('))
}

func TestIsAllToken(t *testing.T) {
	assert.True(t, IsAllToken([]byte("Transfer-Encoding")))
	assert.False(t, IsAllToken([]byte("Transfer Encoding")))
	assert.False(t, IsAllToken(nil))
}

func TestIsSpace(t *testing.T) {
	assert.True(t, IsSpace(' '))
	assert.True(t, IsSpace('\t'))
	assert.False(t, IsSpace('\r'))
	assert.False(t, IsSpace('a'))
}

func TestIsLWS(t *testing.T) {
	assert.True(t, IsLWS(' '))
	assert.True(t, IsLWS('\t'))
	assert.True(t, IsLWS('\r'))
	assert.True(t, IsLWS('\n'))
	assert.False(t, IsLWS('a'))
}

func TestIsCTL(t *testing.T) {
	assert.True(t, IsCTL(0x00))
	assert.True(t, IsCTL(0x7f))
	assert.False(t, IsCTL('\t'))
	assert.False(t, IsCTL('a'))
}

func TestTrimLWS(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"NoWhitespace", "value", "value"},
		{"LeadingSpace", "  value", "value"},
		{"TrailingSpace", "value  ", "value"},
		{"Both", " \t value \t ", "value"},
		{"AllWhitespace", "   \t  ", ""},
		{"Empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(TrimLWS([]byte(tt.input))))
		})
	}
}

func TestChomp(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"CRLF", "GET / HTTP/1.1\r\n", "GET / HTTP/1.1"},
		{"LFOnly", "GET / HTTP/1.1\n", "GET / HTTP/1.1"},
		{"NoTerminator", "GET / HTTP/1.1", "GET / HTTP/1.1"},
		{"JustCRLF", "\r\n", ""},
		{"Empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(Chomp([]byte(tt.input))))
		})
	}
}

func TestIsBlankLine(t *testing.T) {
	assert.True(t, IsBlankLine([]byte("\r\n")))
	assert.True(t, IsBlankLine([]byte("\n")))
	assert.True(t, IsBlankLine(nil))
	assert.False(t, IsBlankLine([]byte("Host: example.com\r\n")))
}

func TestSplitColon(t *testing.T) {
	name, value, ok := SplitColon([]byte("Host: example.com"))
	assert.True(t, ok)
	assert.Equal(t, "Host", string(name))
	assert.Equal(t, " example.com", string(value))

	name, value, ok = SplitColon([]byte("Malformed header line"))
	assert.False(t, ok)
	assert.Equal(t, "Malformed header line", string(name))
	assert.Nil(t, value)
}

func TestSplitFields(t *testing.T) {
	fields := SplitFields([]byte("GET /index.html HTTP/1.1\r\n"), 3)
	assert.Len(t, fields, 3)
	assert.Equal(t, "GET", string(fields[0]))
	assert.Equal(t, "/index.html", string(fields[1]))
	assert.Equal(t, "HTTP/1.1", string(fields[2]))

	// permissive: multiple spaces between fields are allowed.
	fields = SplitFields([]byte("GET    /index.html   HTTP/1.1"), 3)
	assert.Len(t, fields, 3)
	assert.Equal(t, "/index.html", string(fields[1]))

	// Missing protocol version: max is 3 but only 2 fields are available.
	fields = SplitFields([]byte("GET /index.html"), 3)
	assert.Len(t, fields, 2)
}
