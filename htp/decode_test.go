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

func TestDecodeURIComponentIdentityWhenNoEscapes(t *testing.T) {
	cfg := DefaultDecoderConfig()
	out, flags := DecodeURIComponent(cfg, []byte("/a/b/c"), false)
	assert.Equal(t, "/a/b/c", string(out))
	assert.Equal(t, Flags(0), flags)
}

func TestDecodeURIComponentPercentEscape(t *testing.T) {
	cfg := DefaultDecoderConfig()
	out, _ := DecodeURIComponent(cfg, []byte("%2e%2e%2f"), false)
	assert.Equal(t, "../", string(out))
}

func TestDecodeURIComponentPlusSpaceOnlyInParams(t *testing.T) {
	cfg := DefaultDecoderConfig()

	out, _ := DecodeURIComponent(cfg, []byte("a+b"), true)
	assert.Equal(t, "a b", string(out))

	out, _ = DecodeURIComponent(cfg, []byte("a+b"), false)
	assert.Equal(t, "a+b", string(out))
}

func TestDecodeURIComponentEncodedNUL(t *testing.T) {
	cfg := DefaultDecoderConfig()
	_, flags := DecodeURIComponent(cfg, []byte("%00"), false)
	assert.True(t, flags.Has(PathEncodedNUL))
}

func TestDecodeURIComponentEncodedSeparator(t *testing.T) {
	cfg := DefaultDecoderConfig()
	out, flags := DecodeURIComponent(cfg, []byte("a%2fb"), false)
	assert.Equal(t, "a/b", string(out))
	assert.True(t, flags.Has(PathEncodedSeparator))
}

func TestDecodeURIComponentInvalidEncodingPreserved(t *testing.T) {
	cfg := DefaultDecoderConfig()
	cfg.URLEncodingInvalid = URLPreservePercent
	out, flags := DecodeURIComponent(cfg, []byte("%zz"), false)
	assert.Equal(t, "%zz", string(out))
	assert.True(t, flags.Has(PathInvalidEncoding))
}

func TestDecodeURIComponentInvalidEncodingRemoved(t *testing.T) {
	cfg := DefaultDecoderConfig()
	cfg.URLEncodingInvalid = URLRemovePercent
	out, _ := DecodeURIComponent(cfg, []byte("%zz"), false)
	assert.Equal(t, "zz", string(out))
}

func TestDecodeURIComponentPathSeparatorCompress(t *testing.T) {
	cfg := DefaultDecoderConfig()
	cfg.PathSeparatorsCompress = true
	out, _ := DecodeURIComponent(cfg, []byte("a//b///c"), false)
	assert.Equal(t, "a/b/c", string(out))
}

func TestDecodeURIComponentUEncoding(t *testing.T) {
	cfg := DefaultDecoderConfig()
	cfg.UEncodingDecode = true
	out, _ := DecodeURIComponent(cfg, []byte("%u0041"), false)
	assert.Equal(t, "A", string(out))
}
