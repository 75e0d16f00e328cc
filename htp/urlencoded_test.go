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

func TestURLEncodedParserSinglePass(t *testing.T) {
	p := NewURLEncodedParser(DefaultDecoderConfig(), ParamSourceBody)
	p.Feed([]byte("a=1&b=2&c=hello+world"))
	p.Finish()

	params := p.Params()
	assert.Len(t, params, 3)
	assert.Equal(t, Param{Name: "a", Value: "1", Source: ParamSourceBody}, params[0])
	assert.Equal(t, "hello world", params[2].Value)
}

func TestURLEncodedParserSplitAcrossChunks(t *testing.T) {
	cfg := DefaultDecoderConfig()

	whole := NewURLEncodedParser(cfg, ParamSourceBody)
	whole.Feed([]byte("name=field1&name2=field2"))
	whole.Finish()

	split := NewURLEncodedParser(cfg, ParamSourceBody)
	split.Feed([]byte("name=fie"))
	split.Feed([]byte("ld1&name2=fie"))
	split.Feed([]byte("ld2"))
	split.Finish()

	assert.Equal(t, whole.Params(), split.Params())
}

func TestURLEncodedParserEmptyPairsIgnored(t *testing.T) {
	p := NewURLEncodedParser(DefaultDecoderConfig(), ParamSourceQuery)
	p.Feed([]byte("a=1&&b=2&"))
	p.Finish()

	assert.Len(t, p.Params(), 2)
}
