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
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConn() *Connection {
	return NewConnection(DefaultConfig())
}

// TestPipelinedIdentityRequests is end-to-end scenario 1 from spec §8.
func TestPipelinedIdentityRequests(t *testing.T) {
	conn := newTestConn()
	conn.Open("1.1.1.1", 1111, "2.2.2.2", 80, time.Time{})

	req := "GET /a HTTP/1.1\r\nHost: h\r\nContent-Length: 5\r\n\r\nhelloGET /b HTTP/1.1\r\nHost: h\r\n\r\n"
	r := conn.RequestData([]byte(req), time.Time{})
	assert.NotEqual(t, ResultError, r)

	require.Len(t, conn.Transactions, 2)
	assert.Equal(t, "GET", conn.Transactions[0].RequestMethod)
	assert.Equal(t, "/a", conn.Transactions[0].RequestURI)
	assert.Equal(t, int64(5), conn.Transactions[0].RequestEntityLen)
	assert.Equal(t, "/b", conn.Transactions[1].RequestURI)
	assert.True(t, conn.Flags.Has(Pipelined))
}

// TestChunkedWithExtensionAndLFOnlyLine is end-to-end scenario 2.
func TestChunkedWithExtensionAndLFOnlyLine(t *testing.T) {
	conn := newTestConn()
	conn.Open("", 0, "", 0, time.Time{})

	req := "POST /x HTTP/1.1\r\nHost: h\r\nTransfer-Encoding: chunked\r\n\r\n5;x=y\nhello\n0\r\n\r\n"
	r := conn.RequestData([]byte(req), time.Time{})
	assert.NotEqual(t, ResultError, r)

	require.Len(t, conn.Transactions, 1)
	tx := conn.Transactions[0]
	assert.Equal(t, int64(5), tx.RequestEntityLen)
	assert.Equal(t, TransferChunked, tx.RequestTransferCoding)
	assert.True(t, tx.IsRequestComplete())
}

// TestAmbiguousHost is end-to-end scenario 3.
func TestAmbiguousHost(t *testing.T) {
	conn := newTestConn()
	conn.Open("", 0, "", 0, time.Time{})

	req := "GET http://example.com:8001/ HTTP/1.1\r\nHost: other.com:8002\r\n\r\n"
	conn.RequestData([]byte(req), time.Time{})

	require.Len(t, conn.Transactions, 1)
	tx := conn.Transactions[0]
	assert.Equal(t, "other.com", tx.RequestHostname)
	assert.Equal(t, 8002, tx.RequestPortNumber)
	assert.True(t, tx.Flags.Has(HostAmbiguous))
}

// TestConnectTunnelSuccess is end-to-end scenario 4.
func TestConnectTunnelSuccess(t *testing.T) {
	conn := newTestConn()
	conn.Open("", 0, "", 0, time.Time{})

	conn.RequestData([]byte("CONNECT h:443 HTTP/1.1\r\nHost: h\r\n\r\n"), time.Time{})
	require.Len(t, conn.Transactions, 1)

	conn.ResponseData([]byte("HTTP/1.1 200 OK\r\n\r\n"), time.Time{})
	assert.Equal(t, 200, conn.Transactions[0].ResponseStatusNumber)
	assert.Equal(t, StreamStateTunnel, conn.InState)
	assert.Equal(t, StreamStateTunnel, conn.OutState)

	before := len(conn.Transactions)
	r := conn.ResponseData([]byte("RAWBYTES"), time.Time{})
	assert.Equal(t, ResultDataOther, r)
	assert.Len(t, conn.Transactions, before) // tunneled bytes are never parsed
}

// TestConnectTunnelSuccessSingleChunk is scenario 4 again, but with the
// status line and the tunneled payload arriving in one ResponseData call
// instead of two — the split in TestConnectTunnelSuccess alone would let a
// bug that only stops consuming on the *next* call go unnoticed.
func TestConnectTunnelSuccessSingleChunk(t *testing.T) {
	conn := newTestConn()
	conn.Open("", 0, "", 0, time.Time{})

	conn.RequestData([]byte("CONNECT h:443 HTTP/1.1\r\nHost: h\r\n\r\n"), time.Time{})
	require.Len(t, conn.Transactions, 1)

	before := len(conn.Transactions)
	r := conn.ResponseData([]byte("HTTP/1.1 200 OK\r\n\r\nRAWBYTES"), time.Time{})
	assert.Equal(t, ResultDataOther, r)
	assert.Equal(t, 200, conn.Transactions[0].ResponseStatusNumber)
	assert.Equal(t, StreamStateTunnel, conn.InState)
	assert.Equal(t, StreamStateTunnel, conn.OutState)
	assert.Len(t, conn.Transactions, before) // RAWBYTES never parsed as body
}

// TestHundredContinueThenOK is end-to-end scenario 5.
func TestHundredContinueThenOK(t *testing.T) {
	conn := newTestConn()
	conn.Open("", 0, "", 0, time.Time{})

	conn.RequestData([]byte("POST /x HTTP/1.1\r\nHost: h\r\nContent-Length: 2\r\n\r\nOK"), time.Time{})
	require.Len(t, conn.Transactions, 1)

	resp := "HTTP/1.1 100 Continue\r\n\r\nHTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nOK"
	conn.ResponseData([]byte(resp), time.Time{})

	require.Len(t, conn.Transactions, 1)
	tx := conn.Transactions[0]
	assert.Equal(t, 200, tx.ResponseStatusNumber)
	assert.True(t, tx.Seen100Continue)
	assert.Nil(t, tx.ResponseHeaders.Get("X-Spurious"))
}

// TestMultipartWithFilename is end-to-end scenario 6.
func TestMultipartWithFilename(t *testing.T) {
	conn := newTestConn()
	conn.Open("", 0, "", 0, time.Time{})

	body := "--X\r\n" +
		"Content-Disposition: form-data; name=\"field1\"\r\n\r\n" +
		"v1\r\n" +
		"--X\r\n" +
		"Content-Disposition: form-data; name=\"f2\"; filename=\"a.bin\"\r\n\r\n" +
		"DATA\r\n" +
		"--X--\r\n"

	req := "POST /up HTTP/1.1\r\nHost: h\r\nContent-Type: multipart/form-data; boundary=X\r\nContent-Length: " +
		itoa(len(body)) + "\r\n\r\n" + body

	conn.RequestData([]byte(req), time.Time{})
	require.Len(t, conn.Transactions, 1)
	tx := conn.Transactions[0]

	var found bool
	for _, p := range tx.RequestParams {
		if p.Name == "field1" && p.Value == "v1" {
			found = true
		}
	}
	assert.True(t, found)

	require.NotNil(t, tx.Multipart)
	var file *Part
	for _, p := range tx.Multipart.Parts {
		if p.Type == PartFile {
			file = p
		}
	}
	require.NotNil(t, file)
	assert.Equal(t, "a.bin", file.File.Filename)
	assert.Equal(t, int64(4), file.File.Length)
	assert.Equal(t, FileSourceMultipart, file.File.Source)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// TestChunkSplittingEquivalence checks the universal invariant: splitting
// input at arbitrary byte boundaries must yield the same transaction
// state as feeding it whole.
func TestChunkSplittingEquivalence(t *testing.T) {
	whole := "GET /a?x=1 HTTP/1.1\r\nHost: h\r\nContent-Length: 11\r\n\r\nhello=world"

	oneShot := newTestConn()
	oneShot.Open("", 0, "", 0, time.Time{})
	oneShot.RequestData([]byte(whole), time.Time{})

	for split := 1; split < len(whole); split++ {
		fragmented := newTestConn()
		fragmented.Open("", 0, "", 0, time.Time{})
		fragmented.RequestData([]byte(whole[:split]), time.Time{})
		fragmented.RequestData([]byte(whole[split:]), time.Time{})

		require.Len(t, fragmented.Transactions, 1, "split at %d", split)
		want := oneShot.Transactions[0]
		got := fragmented.Transactions[0]
		assert.Equal(t, want.RequestMethod, got.RequestMethod, "split at %d", split)
		assert.Equal(t, want.RequestURI, got.RequestURI, "split at %d", split)
		assert.Equal(t, want.RequestEntityLen, got.RequestEntityLen, "split at %d", split)
		assert.Equal(t, want.Flags, got.Flags, "split at %d", split)
	}
}

// TestIdentityEntityLenInvariant checks request_entity_len ==
// request_content_length and request_message_len >= request_entity_len
// for a COMPLETE identity-coded body.
func TestIdentityEntityLenInvariant(t *testing.T) {
	conn := newTestConn()
	conn.Open("", 0, "", 0, time.Time{})
	conn.RequestData([]byte("POST /x HTTP/1.1\r\nHost: h\r\nContent-Length: 4\r\n\r\nbody"), time.Time{})

	require.Len(t, conn.Transactions, 1)
	tx := conn.Transactions[0]
	assert.True(t, tx.IsRequestComplete())
	assert.Equal(t, tx.RequestContentLength, tx.RequestEntityLen)
	assert.GreaterOrEqual(t, tx.RequestMessageLen, tx.RequestEntityLen)
}

// TestGapDuringIdentityBody exercises Connection.RequestGap accounting
// during a known-length identity body.
func TestGapDuringIdentityBody(t *testing.T) {
	conn := newTestConn()
	conn.Open("", 0, "", 0, time.Time{})
	conn.RequestData([]byte("POST /x HTTP/1.1\r\nHost: h\r\nContent-Length: 10\r\n\r\nhe"), time.Time{})

	r := conn.RequestGap(5)
	assert.Equal(t, ResultOK, r)
	conn.RequestData([]byte("llo"), time.Time{})

	require.Len(t, conn.Transactions, 1)
	tx := conn.Transactions[0]
	assert.True(t, tx.IsRequestComplete())
	assert.Equal(t, int64(10), tx.RequestEntityLen)
}

// TestStreamCloseBodyFinalizesOnClose covers the response-side
// read-until-close body framing finalizing when Close re-drives the
// parser with an empty chunk.
func TestStreamCloseBodyFinalizesOnClose(t *testing.T) {
	conn := newTestConn()
	conn.Open("", 0, "", 0, time.Time{})
	conn.RequestData([]byte("GET / HTTP/1.0\r\nHost: h\r\n\r\n"), time.Time{})
	conn.ResponseData([]byte("HTTP/1.0 200 OK\r\n\r\nno-content-length-body"), time.Time{})

	require.Len(t, conn.Transactions, 1)
	tx := conn.Transactions[0]
	assert.False(t, tx.IsResponseComplete())

	err := conn.Close(time.Time{})
	require.NoError(t, err)
	assert.True(t, tx.IsResponseComplete())
	assert.Equal(t, int64(len("no-content-length-body")), tx.ResponseEntityLen)
}

// TestInvalidContentLengthIsStreamError checks that an unparseable
// Content-Length is a fatal stream error per §7 category 4.
func TestInvalidContentLengthIsStreamError(t *testing.T) {
	conn := newTestConn()
	conn.Open("", 0, "", 0, time.Time{})
	r := conn.RequestData([]byte("GET / HTTP/1.1\r\nHost: h\r\nContent-Length: x\r\n\r\n"), time.Time{})

	assert.Equal(t, ResultError, r)
	assert.Equal(t, StreamStateError, conn.InState)
	require.Len(t, conn.Transactions, 1)
	assert.True(t, conn.Transactions[0].Flags.Has(RequestInvalidCL))
}

// TestResponseWithoutMatchingRequestSynthesizesPlaceholder covers the
// IDLE placeholder-request path in outbound.bindTransaction.
func TestResponseWithoutMatchingRequestSynthesizesPlaceholder(t *testing.T) {
	conn := newTestConn()
	conn.Open("", 0, "", 0, time.Time{})
	conn.ResponseData([]byte("HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n"), time.Time{})

	require.Len(t, conn.Transactions, 1)
	assert.Equal(t, "/libhtp::request_uri_not_seen", conn.Transactions[0].RequestURI)
	assert.True(t, conn.Transactions[0].IsRequestComplete())
}

// TestHooksRunInOrderAndStopPropagates checks that HookRequestComplete
// fires after RequestProgress reaches COMPLETE, and that a STOP return
// is surfaced to the caller.
func TestHooksRunInOrderAndStopPropagates(t *testing.T) {
	conn := newTestConn()
	var observedProgress Progress
	conn.Hooks.Register(HookRequestComplete, func(tx *Transaction, _ []byte) Result {
		observedProgress = tx.RequestProgress
		return ResultStop
	})
	conn.Open("", 0, "", 0, time.Time{})
	r := conn.RequestData([]byte("GET / HTTP/1.1\r\nHost: h\r\n\r\n"), time.Time{})

	assert.Equal(t, ProgressComplete, observedProgress)
	assert.Equal(t, ResultStop, r)
	assert.Equal(t, StreamStateStop, conn.InState)
}

// TestFeedRequestReplaysWholeStream checks that FeedRequest, which drives
// RequestData internally in fixed-size zero-copy chunks, produces the
// same transaction state as a single RequestData call with the whole
// buffer, regardless of where the block boundaries land relative to the
// request's field boundaries.
func TestFeedRequestReplaysWholeStream(t *testing.T) {
	body := "abcdefghij"
	req := "POST /up HTTP/1.1\r\nHost: h\r\nContent-Length: " + itoa(len(body)) + "\r\n\r\n" + body

	conn := newTestConn()
	conn.Open("", 0, "", 0, time.Time{})
	r := conn.FeedRequest([]byte(req), time.Time{})

	assert.NotEqual(t, ResultError, r)
	assert.NotEqual(t, ResultStop, r)
	require.Len(t, conn.Transactions, 1)
	tx := conn.Transactions[0]
	assert.Equal(t, "POST", tx.RequestMethod)
	assert.Equal(t, int64(len(body)), tx.RequestEntityLen)
	assert.True(t, tx.IsRequestComplete())
}
