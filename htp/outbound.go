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
	"strconv"
	"strings"
	"time"

	"github.com/packetd/htpcore/internal/bufbytes"
	"github.com/packetd/htpcore/internal/splitio"
)

// outboundState is one state of the response-direction state machine.
type outboundState int

const (
	outIdle outboundState = iota
	outLine
	outHeaders
	outBodyDetermine
	outBodyChunkedLength
	outBodyChunkedData
	outBodyChunkedDataEnd
	outBodyIdentityCLKnown
	outBodyIdentityStreamClose
	outFinalize
	outTunnel
)

// outbound drives the response-direction state machine.
type outbound struct {
	conn *Connection
	buf  streamBuf

	state outboundState
	tx    *Transaction

	trailerMode    bool
	bodyRemaining  int64
	repeats        repeatTracker
	contentLenSeen int

	urlParser *URLEncodedParser
}

func newOutbound(conn *Connection) *outbound {
	return &outbound{conn: conn, buf: streamBuf{limit: conn.Config.FieldLimit}}
}

// inHeadState reports whether out is still somewhere within the status
// line/headers, i.e. a feed call resuming in this state is a continuation
// of a head that straddled more than one ResponseData call.
func (out *outbound) inHeadState() bool {
	switch out.state {
	case outLine, outHeaders:
		return true
	default:
		return false
	}
}

func (out *outbound) feed(chunk []byte, ts time.Time) Result {
	if !out.buf.append(chunk) {
		return ResultDataBuffer
	}

	if out.tx != nil && out.inHeadState() {
		out.tx.SetFlag(MultiPacketHead)
	}

	for {
		switch out.state {
		case outIdle:
			if out.buf.empty() {
				return ResultData
			}
			if r := out.bindTransaction(ts); r != ResultOK {
				return r
			}
			out.state = outLine

		case outLine:
			line, ok := out.buf.nextLine()
			if !ok {
				return ResultData
			}
			if !out.looksLikeStatusLine(line) {
				// HTTP/0.9-style response: treat this line as body data.
				out.tx.ResponseIgnoredLines++
				if r := out.consumeBodyData(splitio.Chomp(line)); r != ResultOK {
					return r
				}
				continue
			}
			if r := out.parseStatusLine(line); r != ResultOK {
				return r
			}
			if out.state != outTunnel {
				out.state = outHeaders
			}

		case outHeaders:
			line, ok := out.buf.nextLine()
			if !ok {
				return ResultData
			}
			if splitio.IsBlankLine(line) {
				if out.trailerMode {
					out.state = outFinalize
				} else {
					r := out.conn.Hooks.Run(HookResponseHeaders, out.tx, nil)
					out.state = outBodyDetermine
					if r != ResultOK {
						return r
					}
				}
				continue
			}
			out.consumeHeaderLine(line)

		case outBodyDetermine:
			if r := out.determineBody(); r != ResultOK {
				return r
			}

		case outBodyChunkedLength:
			line, ok := out.buf.nextLine()
			if !ok {
				return ResultData
			}
			out.handleChunkLength(line)

		case outBodyChunkedData:
			data := out.buf.takeUpTo(int(out.bodyRemaining))
			if len(data) == 0 {
				return ResultData
			}
			r := out.consumeBodyData(data)
			out.bodyRemaining -= int64(len(data))
			if r != ResultOK {
				return r
			}
			if out.bodyRemaining == 0 {
				out.state = outBodyChunkedDataEnd
			} else {
				return ResultData
			}

		case outBodyChunkedDataEnd:
			line, ok := out.buf.nextLine()
			if !ok {
				return ResultData
			}
			if len(splitio.Chomp(line)) != 0 {
				out.tx.SetFlag(FieldUnparseable)
			}
			out.state = outBodyChunkedLength

		case outBodyIdentityCLKnown:
			data := out.buf.takeUpTo(int(out.bodyRemaining))
			if len(data) == 0 && out.bodyRemaining > 0 {
				return ResultData
			}
			if len(data) > 0 {
				r := out.consumeBodyData(data)
				out.bodyRemaining -= int64(len(data))
				if r != ResultOK {
					return r
				}
			}
			if out.bodyRemaining == 0 {
				out.state = outFinalize
			} else {
				return ResultData
			}

		case outBodyIdentityStreamClose:
			data := out.buf.discardAll()
			if len(data) > 0 {
				if r := out.consumeBodyData(data); r != ResultOK {
					return r
				}
			}
			return ResultData

		case outFinalize:
			r := out.finalize(ts)
			out.state = outIdle
			if r != ResultOK {
				return r
			}

		case outTunnel:
			// Tunnel established: every remaining byte is opaque to the
			// HTTP parser, per spec.
			out.buf.discardAll()
			return ResultDataOther
		}
	}
}

// notifyClose is called once when the connection closes, letting a
// stream-close-length response body finalize. The result reports whether
// that final drive errored.
func (out *outbound) notifyClose(ts time.Time) Result {
	if out.state == outBodyIdentityStreamClose {
		out.state = outFinalize
		return out.feed(nil, ts)
	}
	return ResultOK
}

// bindTransaction binds the next awaiting-response Transaction to out.tx,
// FIFO.
//
// If no request is currently waiting on a response, this is a
// response-only replay: synthesize a placeholder request transaction so
// stats and logging still land on one Transaction.
func (out *outbound) bindTransaction(ts time.Time) Result {
	for _, tx := range out.conn.Transactions {
		if tx.ResponseProgress == ProgressNotStarted {
			out.tx = tx
			out.repeats = repeatTracker{}
			out.trailerMode = false
			out.contentLenSeen = 0
			out.urlParser = nil
			r := out.conn.Hooks.Run(HookResponseStart, tx, nil)
			_ = ts
			return r
		}
	}

	idx := len(out.conn.Transactions)
	tx := NewTransaction(idx, 0, out.conn.Config.HeaderRepetitionLimit)
	tx.stats = out.conn.stats
	tx.RequestURI = "/libhtp::request_uri_not_seen"
	tx.RequestProgress = ProgressComplete
	out.conn.Transactions = append(out.conn.Transactions, tx)
	out.conn.Config.Sink.Log(logEntry("warn", "REQUEST_URI_NOT_SEEN", "response received without a matching request"))
	out.tx = tx
	out.repeats = repeatTracker{}
	return out.conn.Hooks.Run(HookResponseStart, tx, nil)
}

func (out *outbound) looksLikeStatusLine(line []byte) bool {
	trimmed := splitio.TrimLWS(line)
	return len(trimmed) >= 5 && strings.EqualFold(string(trimmed[:5]), "http/")
}

func (out *outbound) parseStatusLine(rawLine []byte) Result {
	out.tx.ResponseMessageLen += int64(len(rawLine))
	line := splitio.Chomp(splitio.TrimLWS(rawLine))
	fields := splitio.SplitFields(line, 3)
	if len(fields) == 0 {
		out.tx.SetFlag(StatusLineInvalid)
		return ResultOK
	}

	out.tx.ResponseProtocol = string(fields[0])
	out.tx.ResponseProtocolNumber = parseProtocolVersion(fields[0])

	if len(fields) < 2 {
		out.tx.SetFlag(StatusLineInvalid)
		return ResultOK
	}
	code, err := strconv.Atoi(string(fields[1]))
	if err != nil || code < 100 || code > 999 {
		out.tx.SetFlag(StatusLineInvalid)
		return ResultOK
	}
	out.tx.ResponseStatusNumber = code

	if len(fields) == 3 {
		out.tx.ResponseMessage = string(fields[2])
	}

	r := out.conn.Hooks.Run(HookResponseLine, out.tx, nil)

	if out.tx.RequestMethod == "CONNECT" {
		out.conn.resolveConnect(code)
		if out.conn.OutState == StreamStateTunnel {
			out.state = outTunnel
		}
	}
	return r
}

func (out *outbound) consumeHeaderLine(rawLine []byte) {
	out.tx.ResponseMessageLen += int64(len(rawLine))
	line := splitio.Chomp(rawLine)

	pl := ParseHeaderLine(line)
	if pl.Folding {
		if out.tx.ResponseHeaders.Len() == 0 {
			out.tx.SetFlag(InvalidFolding)
			return
		}
		out.tx.ResponseHeaders.AppendFold(pl.Value)
		return
	}
	if pl.Malformed {
		out.tx.SetFlag(FieldUnparseable)
	}
	if strings.EqualFold(pl.Name, "Content-Length") {
		out.contentLenSeen++
	}
	out.tx.ResponseHeaders.Add(pl.Name, pl.Value, out.repeats)
}

// determineBody picks the response body framing method.
//
// A ResultError return means framing failed fatally (a repeated 100, an
// invalid Content-Length, unsupported multipart/byteranges); the caller
// passes it straight back to the driving loop.
func (out *outbound) determineBody() Result {
	status := out.tx.ResponseStatusNumber

	if status == 100 {
		te := out.tx.ResponseHeaders.Get("Transfer-Encoding")
		cl := out.tx.ResponseHeaders.Get("Content-Length")
		if te == nil && cl == nil {
			if out.tx.Seen100Continue {
				return ResultError
			}
			out.tx.Seen100Continue = true
			out.tx.ResponseHeaders = NewHeaders(out.conn.Config.HeaderRepetitionLimit)
			out.repeats = repeatTracker{}
			out.state = outLine
			return ResultOK
		}
	}

	if status == 101 {
		if up := out.tx.ResponseHeaders.Get("Upgrade"); up != nil && bufbytes.ContainsFold([]byte(up.Value), []byte("h2c")) {
			out.tx.IsHTTP2Upgrade = true
			out.conn.OutState = StreamStateTunnel
			out.conn.InState = StreamStateTunnel
			out.state = outFinalize
			return ResultOK
		}
	}

	isHead := strings.EqualFold(out.tx.RequestMethod, "HEAD")
	noBodyStatus := status/100 == 1 || status == 204 || status == 304
	if isHead || noBodyStatus {
		out.tx.ResponseTransferCoding = TransferNoBody
		out.state = outFinalize
		return ResultOK
	}

	if ct := out.tx.ResponseHeaders.Get("Content-Type"); ct != nil {
		if bufbytes.ContainsFold([]byte(ct.Value), []byte("multipart/byteranges")) {
			out.tx.SetFlag(MultipartByterangesUnsupported)
			return ResultError
		}
	}

	te := out.tx.ResponseHeaders.Get("Transfer-Encoding")
	cl := out.tx.ResponseHeaders.Get("Content-Length")

	if te != nil && bufbytes.ContainsFold([]byte(te.Value), []byte("chunked")) {
		if cl != nil {
			out.tx.SetFlag(RequestSmuggling)
		}
		if out.tx.ResponseProtocolNumber == ProtocolV10 {
			out.tx.SetFlag(ProtocolInvalid)
		}
		out.tx.ResponseTransferCoding = TransferChunked
		out.setupBodyParser()
		out.state = outBodyChunkedLength
		return ResultOK
	}

	if cl != nil {
		n, err := strconv.ParseInt(strings.TrimSpace(cl.Value), 10, 64)
		if err != nil || n < 0 {
			out.tx.SetFlag(RequestInvalidCL)
			return ResultError
		}
		if n == 0 {
			out.tx.ResponseTransferCoding = TransferNoBody
			out.state = outFinalize
			return ResultOK
		}
		out.tx.ResponseTransferCoding = TransferIdentity
		out.bodyRemaining = n
		out.setupBodyParser()
		out.state = outBodyIdentityCLKnown
		return ResultOK
	}

	out.tx.ResponseTransferCoding = TransferIdentity
	out.setupBodyParser()
	out.state = outBodyIdentityStreamClose
	return ResultOK
}

func (out *outbound) setupBodyParser() {
	if ce := out.tx.ResponseHeaders.Get("Content-Encoding"); ce != nil {
		out.tx.ResponseContentEncodingProcessing = ce.Value
	}
}

func (out *outbound) handleChunkLength(rawLine []byte) {
	out.tx.ResponseMessageLen += int64(len(rawLine))
	cl := ParseChunkLength(rawLine)
	out.tx.Flags = out.tx.Flags.Set(cl.Flags)
	if cl.Invalid {
		out.tx.SetFlag(FieldUnparseable)
		out.state = outBodyIdentityStreamClose
		return
	}
	if cl.Length == 0 {
		out.trailerMode = true
		out.state = outHeaders
		return
	}
	out.bodyRemaining = int64(cl.Length)
	out.state = outBodyChunkedData
}

func (out *outbound) consumeBodyData(data []byte) Result {
	out.tx.ResponseProgress = ProgressBody
	out.tx.ResponseEntityLen += int64(len(data))
	out.tx.ResponseMessageLen += int64(len(data))
	return out.conn.Hooks.Run(HookResponseBodyData, out.tx, data)
}

func (out *outbound) finalize(ts time.Time) Result {
	out.tx.ResponseProgress = ProgressComplete
	r := out.conn.Hooks.Run(HookResponseComplete, out.tx, nil)
	_ = ts
	return r
}
