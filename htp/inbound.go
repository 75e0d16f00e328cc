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

// inboundState is one state of the request-direction state machine.
//
// inProtocol and inConnectCheck are pass-through states that consume no
// data; besides advancing RequestProgress to LINE / HEADERS they exist so
// the state trace (logs/debugging) shows these named nodes. The real work
// happens at the end of inLine and inHeaders.
type inboundState int

const (
	inIdle inboundState = iota
	inLine
	inProtocol
	inHeaders
	inConnectCheck
	inConnectWaitResponse
	inConnectProbeData
	inBodyDetermine
	inBodyChunkedLength
	inBodyChunkedData
	inBodyChunkedDataEnd
	inBodyIdentity
	inIgnoreAfter09
	inFinalize
)

// unboundedBody marks the "read until connection close" length BODY_IDENTITY
// falls back to when a chunk length line is invalid. A request with neither
// Content-Length nor chunked Transfer-Encoding has no body.
const unboundedBody = -1

// inbound drives the request-direction state machine. Each Connection owns
// exactly one instance.
type inbound struct {
	conn *Connection
	buf  streamBuf

	state inboundState
	tx    *Transaction

	trailerMode bool // whether the current HEADERS state is parsing chunked trailers

	bodyRemaining int64 // >=0 is the known remaining byte count; unboundedBody means read until close

	repeats        repeatTracker
	contentLenSeen int

	urlParser *URLEncodedParser
	multipart *MultipartParser
}

func newInbound(conn *Connection) *inbound {
	return &inbound{conn: conn, buf: streamBuf{limit: conn.Config.FieldLimit}}
}

// inHeadState reports whether in is still somewhere within the request
// line/headers, i.e. a feed call resuming in this state is a continuation
// of a head that straddled more than one RequestData call.
func (in *inbound) inHeadState() bool {
	switch in.state {
	case inLine, inProtocol, inHeaders, inConnectCheck:
		return true
	default:
		return false
	}
}

// feed consumes a chunk of request-direction data and reports how the
// driving loop should treat the caller's chunk.
func (in *inbound) feed(chunk []byte, ts time.Time) Result {
	if !in.buf.append(chunk) {
		return ResultDataBuffer
	}

	if in.tx != nil && in.inHeadState() {
		in.tx.SetFlag(MultiPacketHead)
	}

	for {
		switch in.state {
		case inIdle:
			if in.buf.empty() {
				return ResultData
			}
			if r := in.startTransaction(ts); r != ResultOK {
				return r
			}
			in.state = inLine

		case inLine:
			line, ok := in.buf.nextLine()
			if !ok {
				return ResultData
			}
			if splitio.IsBlankLine(line) {
				continue
			}
			if !in.parseRequestLine(line) {
				in.tx.SetFlag(RequestLineInvalid)
			}
			if in.tx.IsProtocol09 {
				r := in.finalize(ts)
				in.state = inIgnoreAfter09
				if r != ResultOK {
					return r
				}
				continue
			}
			in.state = inProtocol

		case inProtocol:
			in.tx.RequestProgress = ProgressLine
			in.state = inHeaders

		case inHeaders:
			line, ok := in.buf.nextLine()
			if !ok {
				return ResultData
			}
			if splitio.IsBlankLine(line) {
				if in.trailerMode {
					in.state = inFinalize
				} else {
					r := in.afterHeaders()
					in.state = inConnectCheck
					if r != ResultOK {
						return r
					}
				}
				continue
			}
			in.consumeHeaderLine(line)

		case inConnectCheck:
			in.tx.RequestProgress = ProgressHeaders
			in.state = inBodyDetermine

		case inBodyDetermine:
			if r := in.determineBody(); r != ResultOK {
				return r
			}

		case inConnectWaitResponse:
			// Waiting on the response direction to produce a status line;
			// Connection calls resolveConnect once it has one, which
			// advances this state. Consumes no data itself.
			return ResultDataOther

		case inConnectProbeData:
			in.buf.discardAll()
			return ResultDataOther

		case inBodyChunkedLength:
			line, ok := in.buf.nextLine()
			if !ok {
				return ResultData
			}
			in.handleChunkLength(line)

		case inBodyChunkedData:
			data := in.buf.takeUpTo(int(in.bodyRemaining))
			if len(data) == 0 {
				return ResultData
			}
			r := in.consumeBodyData(data)
			in.bodyRemaining -= int64(len(data))
			if r != ResultOK {
				return r
			}
			if in.bodyRemaining == 0 {
				in.state = inBodyChunkedDataEnd
			} else {
				return ResultData
			}

		case inBodyChunkedDataEnd:
			line, ok := in.buf.nextLine()
			if !ok {
				return ResultData
			}
			if len(splitio.Chomp(line)) != 0 {
				// Non-empty content past the chunk terminator: accept it
				// permissively, just record the anomaly.
				in.tx.SetFlag(FieldUnparseable)
			}
			in.state = inBodyChunkedLength

		case inBodyIdentity:
			if in.bodyRemaining == unboundedBody {
				data := in.buf.discardAll()
				if len(data) > 0 {
					if r := in.consumeBodyData(data); r != ResultOK {
						return r
					}
				}
				return ResultData
			}
			data := in.buf.takeUpTo(int(in.bodyRemaining))
			if len(data) == 0 && in.bodyRemaining > 0 {
				return ResultData
			}
			if len(data) > 0 {
				r := in.consumeBodyData(data)
				in.bodyRemaining -= int64(len(data))
				if r != ResultOK {
					return r
				}
			}
			if in.bodyRemaining == 0 {
				in.state = inFinalize
			} else {
				return ResultData
			}

		case inIgnoreAfter09:
			if !in.buf.empty() {
				in.tx.SetFlag(HTTP09Extra)
				in.buf.discardAll()
			}
			return ResultData

		case inFinalize:
			r := in.finalize(ts)
			in.state = inIdle
			if r != ResultOK {
				return r
			}
		}
	}
}

// notifyClose is called once when the connection closes, re-driving the
// state machine with an empty chunk so a stream-close-length body can
// finalize. The result reports whether that final drive errored.
func (in *inbound) notifyClose(ts time.Time) Result {
	if in.state == inBodyIdentity && in.bodyRemaining == unboundedBody {
		in.state = inFinalize
		return in.feed(nil, ts)
	}
	return ResultOK
}

func (in *inbound) startTransaction(ts time.Time) Result {
	idx := len(in.conn.Transactions)
	if idx > 0 {
		prev := in.conn.Transactions[idx-1]
		if prev.ResponseProgress < ProgressComplete {
			in.conn.Flags = in.conn.Flags.Set(Pipelined)
		}
	}
	tx := NewTransaction(idx, 0, in.conn.Config.HeaderRepetitionLimit)
	tx.stats = in.conn.stats
	in.conn.Transactions = append(in.conn.Transactions, tx)
	in.tx = tx
	in.repeats = repeatTracker{}
	in.trailerMode = false
	in.contentLenSeen = 0
	in.urlParser = nil
	in.multipart = nil
	return in.conn.Hooks.Run(HookRequestStart, tx, nil)
}

// parseRequestLine splits the request line into method/uri/protocol,
// tolerating leading whitespace and missing fields.
func (in *inbound) parseRequestLine(rawLine []byte) bool {
	in.tx.RequestMessageLen += int64(len(rawLine))
	line := splitio.Chomp(rawLine)
	trimmed := line

	leading := 0
	for leading < len(trimmed) && splitio.IsSpace(trimmed[leading]) {
		leading++
	}
	if leading > 0 {
		in.tx.SetFlag(RequestLineLeadingWhitespace)
	}

	fields := splitio.SplitFields(trimmed, 3)
	if len(fields) == 0 {
		return false
	}
	if hasNonSPDelimiter(trimmed) {
		in.tx.SetFlag(DelimiterNonCompliance)
	}

	in.tx.RequestMethod = string(fields[0])

	if len(fields) == 1 {
		in.tx.IsProtocol09 = true
		in.tx.ProtocolNumber = ProtocolV09
		in.tx.RequestProtocol = ""
		return true
	}

	in.tx.RequestURI = string(fields[1])
	uri, flags := ParseURI(in.tx.RequestURI)
	in.tx.ParsedURIRaw = uri
	in.tx.Flags = in.tx.Flags.Set(flags)
	decodedPath, df := DecodeURIComponent(in.conn.Config.DecoderCfg, []byte(uri.Path), false)
	decoded := *uri
	decoded.Path = string(decodedPath)
	in.tx.ParsedURI = &decoded
	in.tx.Flags = in.tx.Flags.Set(df)

	if len(fields) < 3 {
		in.tx.IsProtocol09 = true
		in.tx.ProtocolNumber = ProtocolV09
		return true
	}

	in.tx.RequestProtocol = string(fields[2])
	in.tx.ProtocolNumber = parseProtocolVersion(fields[2])
	if in.tx.ProtocolNumber == ProtocolInvalidVersion {
		in.tx.SetFlag(ProtocolInvalid)
	}
	return true
}

// hasNonSPDelimiter reports whether any of the whitespace runs separating
// the request line's method/URI/protocol fields contains a byte other than
// a plain SP (e.g. a bare HT), per §4.2's delimiter-non-compliance anomaly.
// Leading whitespace before the method is tracked separately as
// RequestLineLeadingWhitespace.
func hasNonSPDelimiter(line []byte) bool {
	i := 0
	n := len(line)
	for i < n && splitio.IsSpace(line[i]) {
		i++
	}
	for fields := 0; i < n && fields < 3; fields++ {
		for i < n && !splitio.IsSpace(line[i]) && line[i] != '\r' && line[i] != '\n' {
			i++
		}
		if fields == 2 || i >= n {
			break
		}
		start := i
		for i < n && splitio.IsSpace(line[i]) {
			i++
		}
		for _, b := range line[start:i] {
			if b != ' ' {
				return true
			}
		}
	}
	return false
}

// parseProtocolVersion permissively parses a `HTTP/[0]*\.[9|0|1]`-shaped
// protocol token.
func parseProtocolVersion(tok []byte) ProtocolVersion {
	s := strings.TrimSpace(string(tok))
	upper := strings.ToUpper(s)
	if !strings.HasPrefix(upper, "HTTP/") {
		return ProtocolInvalidVersion
	}
	ver := strings.TrimSpace(upper[len("HTTP/"):])
	ver = strings.TrimLeft(ver, "0")
	switch ver {
	case ".9":
		return ProtocolV09
	case ".0", "1.0":
		return ProtocolV10
	case ".1", "1.1", "1..1":
		return ProtocolV11
	default:
		if ver == "" {
			return ProtocolV10
		}
		return ProtocolUnknown
	}
}

func (in *inbound) consumeHeaderLine(rawLine []byte) {
	in.tx.RequestMessageLen += int64(len(rawLine))
	line := splitio.Chomp(rawLine)

	pl := ParseHeaderLine(line)
	if pl.Folding {
		if in.tx.RequestHeaders.Len() == 0 {
			in.tx.SetFlag(InvalidFolding)
			return
		}
		in.tx.RequestHeaders.AppendFold(pl.Value)
		return
	}
	if pl.Malformed {
		in.tx.SetFlag(FieldUnparseable)
	}
	if strings.EqualFold(pl.Name, "Content-Length") {
		in.contentLenSeen++
	}
	in.tx.RequestHeaders.Add(pl.Name, pl.Value, in.repeats)
}

// afterHeaders computes Host/port and parses auth/cookies once HEADERS
// ends.
func (in *inbound) afterHeaders() Result {
	r := in.conn.Hooks.Run(HookRequestHeaders, in.tx, nil)

	hostHeader := in.tx.RequestHeaders.Get("Host")
	switch {
	case hostHeader != nil:
		host, port := splitHostHeader(hostHeader.Value)
		in.tx.RequestHostname = host
		if port != "" {
			if n, err := strconv.Atoi(port); err == nil {
				in.tx.RequestPortNumber = n
			}
		}
		if in.tx.ParsedURI != nil && in.tx.ParsedURI.Host != "" && !strings.EqualFold(in.tx.ParsedURI.Host, host) {
			in.tx.SetFlag(HostAmbiguous)
		}
	case in.tx.ParsedURI != nil && in.tx.ParsedURI.Host != "":
		in.tx.RequestHostname = in.tx.ParsedURI.Host
		in.tx.RequestPortNumber = in.tx.ParsedURI.Port
	default:
		if in.tx.ProtocolNumber == ProtocolV11 {
			in.tx.SetFlag(HostMissing)
		}
	}

	if in.tx.RequestHostname != "" && !ValidateHostname(in.tx.RequestHostname) {
		in.tx.SetFlag(HostInvalid)
	}

	if auth := in.tx.RequestHeaders.Get("Authorization"); auth != nil {
		creds, sub := ParseAuthorization(auth.Value)
		if sub == SubOK {
			in.tx.RequestAuthType = creds.Type
			in.tx.RequestAuthUsername = creds.Username
			in.tx.RequestAuthPassword = creds.Password
			in.tx.RequestAuthToken = creds.Token
			if creds.Type == AuthTypeUnrecognized {
				in.tx.SetFlag(AuthUnrecognized)
			}
		}
	}

	if ck := in.tx.RequestHeaders.Get("Cookie"); ck != nil {
		in.tx.RequestCookies = ParseCookies(ck.Value)
	}

	if ct := in.tx.RequestHeaders.Get("Content-Type"); ct != nil {
		in.tx.RequestContentType = ct.Value
	}

	if in.conn.Config.ParseURLEncoded && in.tx.ParsedURI != nil && in.tx.ParsedURI.Query != "" {
		qp := NewURLEncodedParser(in.conn.Config.DecoderCfg, ParamSourceQuery)
		qp.Feed([]byte(in.tx.ParsedURI.Query))
		qp.Finish()
		in.tx.RequestParams = append(in.tx.RequestParams, qp.Params()...)
		in.tx.Flags = in.tx.Flags.Set(qp.Flags())
	}

	in.tx.ExtractTraceID()
	return r
}

// splitHostHeader splits a `Host:` header value into host[:port].
func splitHostHeader(v string) (host, port string) {
	v = strings.TrimSpace(v)
	if strings.HasPrefix(v, "[") {
		if idx := strings.IndexByte(v, ']'); idx >= 0 {
			host = v[:idx+1]
			rest := v[idx+1:]
			if strings.HasPrefix(rest, ":") {
				port = rest[1:]
			}
			return host, port
		}
	}
	if idx := strings.LastIndexByte(v, ':'); idx >= 0 {
		return v[:idx], v[idx+1:]
	}
	return v, ""
}

// determineBody picks the body framing method, checking
// Transfer-Encoding before Content-Length.
//
// A ResultError return means framing failed fatally (an invalid
// Transfer-Encoding or Content-Length); the caller should pass it straight
// back to the driving loop so the whole direction moves to ERROR instead of
// continuing downstream.
func (in *inbound) determineBody() Result {
	if strings.EqualFold(in.tx.RequestMethod, "CONNECT") {
		in.tx.RequestTransferCoding = TransferNoBody
		in.state = inConnectWaitResponse
		return ResultOK
	}

	if in.tx.IsProtocol09 {
		in.tx.RequestTransferCoding = TransferNoBody
		in.state = inFinalize
		return ResultOK
	}

	te := in.tx.RequestHeaders.Get("Transfer-Encoding")
	cl := in.tx.RequestHeaders.Get("Content-Length")

	if te != nil {
		teVal := []byte(te.Value)
		if bufbytes.ContainsFold(teVal, []byte("chunked")) {
			if cl != nil {
				in.tx.SetFlag(RequestSmuggling)
			}
			in.tx.RequestTransferCoding = TransferChunked
			in.state = inBodyChunkedLength
			return ResultOK
		}
		if !bufbytes.ContainsFold(teVal, []byte("identity")) {
			in.tx.SetFlag(RequestInvalidTE)
			return ResultError
		}
	}

	if cl != nil {
		if in.contentLenSeen > 1 {
			in.tx.SetFlag(RequestSmuggling)
		}
		n, err := strconv.ParseInt(strings.TrimSpace(cl.Value), 10, 64)
		if err != nil || n < 0 {
			in.tx.SetFlag(RequestInvalidCL)
			return ResultError
		}
		in.tx.RequestContentLength = n
		in.tx.RequestHasContentLength = true
		if n == 0 {
			in.tx.RequestTransferCoding = TransferNoBody
			in.state = inFinalize
			return ResultOK
		}
		in.tx.RequestTransferCoding = TransferIdentity
		in.bodyRemaining = n
		in.setupBodyParsers()
		in.state = inBodyIdentity
		return ResultOK
	}

	in.tx.RequestTransferCoding = TransferNoBody
	in.state = inFinalize
	return ResultOK
}

func (in *inbound) setupBodyParsers() {
	if !in.conn.Config.ParseURLEncoded && !in.conn.Config.ParseMultipart {
		return
	}
	ct := strings.ToLower(in.tx.RequestContentType)
	switch {
	case in.conn.Config.ParseMultipart && strings.HasPrefix(strings.TrimSpace(ct), "multipart/form-data"):
		if boundary, flags, ok := DiscoverBoundary(in.tx.RequestContentType); ok {
			in.tx.Flags = in.tx.Flags.Set(flags)
			in.multipart = NewMultipartParser(in.conn.Config, boundary)
		}
	case in.conn.Config.ParseURLEncoded && strings.Contains(ct, "application/x-www-form-urlencoded"):
		in.urlParser = NewURLEncodedParser(in.conn.Config.DecoderCfg, ParamSourceBody)
	}
}

func (in *inbound) handleChunkLength(rawLine []byte) {
	in.tx.RequestMessageLen += int64(len(rawLine))
	cl := ParseChunkLength(rawLine)
	in.tx.Flags = in.tx.Flags.Set(cl.Flags)
	if cl.Invalid {
		// Invalid length line: fall back to stream-close identity framing,
		// no longer trusting chunked framing.
		in.tx.SetFlag(FieldUnparseable)
		in.bodyRemaining = unboundedBody
		in.setupBodyParsers()
		in.state = inBodyIdentity
		return
	}
	if cl.Length == 0 {
		in.trailerMode = true
		in.finishBodyParsers()
		in.state = inHeaders
		return
	}
	in.bodyRemaining = int64(cl.Length)
	in.setupBodyParsers()
	in.state = inBodyChunkedData
}

func (in *inbound) consumeBodyData(data []byte) Result {
	in.tx.RequestProgress = ProgressBody
	in.tx.RequestEntityLen += int64(len(data))
	in.tx.RequestMessageLen += int64(len(data))
	r := in.conn.Hooks.Run(HookRequestBodyData, in.tx, data)

	switch {
	case in.multipart != nil:
		in.multipart.Feed(data)
	case in.urlParser != nil:
		in.urlParser.Feed(data)
	}
	return r
}

func (in *inbound) finishBodyParsers() {
	if in.urlParser != nil {
		in.urlParser.Finish()
		in.tx.RequestParams = append(in.tx.RequestParams, in.urlParser.Params()...)
		in.tx.Flags = in.tx.Flags.Set(in.urlParser.Flags())
		in.urlParser = nil
	}
	if in.multipart != nil {
		body := in.multipart.Finish()
		in.tx.Multipart = body
		in.tx.Flags = in.tx.Flags.Set(body.Flags)
		for _, part := range body.Parts {
			if part.Type == PartText {
				in.tx.RequestParams = append(in.tx.RequestParams, Param{Name: part.Name, Value: part.Value, Source: ParamSourceMultipart})
			}
		}
		in.multipart = nil
	}
}

// resolveConnect is called by Connection once the response status line is
// parsed, advancing the CONNECT wait state.
func (in *inbound) resolveConnect(status int) {
	if in.state != inConnectWaitResponse {
		return
	}
	switch {
	case status >= 200 && status < 300:
		in.state = inConnectProbeData
	default:
		// 407 and every other status code go back to waiting for the next
		// request line.
		in.state = inIdle
	}
}

func (in *inbound) finalize(ts time.Time) Result {
	if in.state != inIgnoreAfter09 {
		in.finishBodyParsers()
	}
	in.tx.RequestProgress = ProgressComplete
	r := in.conn.Hooks.Run(HookRequestComplete, in.tx, nil)
	_ = ts
	return r
}
