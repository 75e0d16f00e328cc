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
	"io"
	"time"

	"github.com/packetd/htpcore/common"
	"github.com/packetd/htpcore/internal/zerocopy"
)

// FeedRequest replays an already-assembled request-direction byte stream
// into RequestData, common.ReadWriteBlockSize bytes at a time, without
// copying data out of it.
//
// Intended for callers that already hold a full reassembled stream (a
// capture replay tool, a test fixture) rather than receiving bytes
// incrementally off the wire; RequestData itself remains the contract
// for incremental feeding. A block returning ResultData/ResultDataBuffer/
// ResultDataOther just means "keep going"; only ResultStop/ResultError
// actually ends the replay early.
func (c *Connection) FeedRequest(data []byte, ts time.Time) Result {
	return feedChunks(data, func(chunk []byte) Result {
		return c.RequestData(chunk, ts)
	})
}

// FeedResponse is the response-direction counterpart to FeedRequest.
func (c *Connection) FeedResponse(data []byte, ts time.Time) Result {
	return feedChunks(data, func(chunk []byte) Result {
		return c.ResponseData(chunk, ts)
	})
}

func feedChunks(data []byte, feed func([]byte) Result) Result {
	buf := zerocopy.NewBuffer(data)
	last := ResultOK
	for {
		chunk, err := buf.Read(common.ReadWriteBlockSize)
		if err == io.EOF {
			return last
		}
		if len(chunk) == 0 {
			continue
		}
		last = feed(chunk)
		if last == ResultStop || last == ResultError {
			return last
		}
	}
}
