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

package common

const (
	// App is the component name.
	App = "htpcore"

	// Version is the component version.
	Version = "v0.0.1"

	// ReadWriteBlockSize is the default chunk size pulled from a Reader at
	// a time.
	//
	// Callers may feed the byte stream in chunks of any size; this value
	// is only the per-round block size a Decode loop pulls from a
	// zerocopy.Reader — it has no protocol-level meaning.
	ReadWriteBlockSize = 4096

	// DefaultFieldLimit is the max number of bytes a single field
	// (request line / header line / chunk length line) may buffer.
	//
	// This is the field_limit configuration knob; exceeding it means the
	// direction's Stream should be judged ERROR.
	DefaultFieldLimit = 64 * 1024
)
