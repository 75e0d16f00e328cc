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

// Decoder is the capability set an external response-decompression
// collaborator must implement.
//
// The core links none of gzip/deflate/lzma itself; it depends only on this
// minimal interface. Resource policies like bomb_limit/layer_limit are
// enforced by the implementation, keyed off CompressionOptions.
type Decoder interface {
	// Update consumes a chunk of compressed data and returns any
	// plaintext produced (possibly empty; data may be buffered
	// internally).
	Update(p []byte) ([]byte, error)

	// Finish flushes internal decoder state and returns remaining
	// plaintext.
	Finish() ([]byte, error)
}

// DecoderFactory builds a Decoder for a content-encoding name (e.g.
// "gzip", "deflate").
//
// An unrecognized encoding should return (nil, false): the core then gives
// up on decompression without aborting the rest of the request's parsing.
type DecoderFactory func(encoding string, opts CompressionOptions) (Decoder, bool)
