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
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/packetd/htpcore/htplog"
	"github.com/packetd/htpcore/internal/htpsafe"
)

// errStreamFinalize is returned (wrapped per direction) when notifyClose's
// final drive of a stream-close-length body ends in ResultError.
var errStreamFinalize = errors.New("stream finalize failed")

// Connection is the shared context for one client/server session.
//
// The two direction state machines (inbound/outbound) each advance
// independently, but share one Transaction list, one Hooks registry, and
// one read-only Config snapshot. CONNECT tunnel negotiation is the only
// place either direction needs to observe the other's state, bridged
// through resolveConnect.
type Connection struct {
	// ID is a uuid correlation identifier, stamped for log/metric
	// correlation only; no invariant depends on it.
	ID string

	Config *Config
	Hooks  *Hooks

	stats *connStats

	ClientAddr string
	ClientPort int
	ServerAddr string
	ServerPort int

	OpenTimestamp  time.Time
	CloseTimestamp time.Time

	InBytes  int64
	OutBytes int64

	InState  StreamState
	OutState StreamState

	Flags Flags

	Transactions []*Transaction

	in  *inbound
	out *outbound

	opened bool
	closed bool
}

// NewConnection creates a connection in the NEW state. cfg is deep-copied
// and frozen.
func NewConnection(cfg *Config) *Connection {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	id := uuid.New().String()
	conn := &Connection{
		ID:     id,
		Config: cfg.Clone(),
		Hooks:  NewHooks(),
		stats:  newConnStats(id),
	}
	conn.in = newInbound(conn)
	conn.out = newOutbound(conn)
	return conn
}

func logEntry(level, code, msg string) htplog.Entry {
	var lvl htplog.Level
	switch level {
	case "debug":
		lvl = htplog.LevelDebug
	case "warn":
		lvl = htplog.LevelWarn
	case "error":
		lvl = htplog.LevelError
	default:
		lvl = htplog.LevelInfo
	}
	return htplog.Entry{Level: lvl, Code: code, Message: msg}
}

// Open is only valid from NEW; it moves both directions' stream state to
// OPEN.
//
// A repeated call is ignored and logged — a connection-level misuse should
// not crash the rest of the pipeline.
func (c *Connection) Open(clientAddr string, clientPort int, serverAddr string, serverPort int, ts time.Time) {
	if c.opened {
		c.Config.Sink.Log(logEntry("warn", "CONNECTION_ALREADY_OPEN", "Open called on an already-open connection"))
		return
	}
	c.opened = true
	c.ClientAddr, c.ClientPort = clientAddr, clientPort
	c.ServerAddr, c.ServerPort = serverAddr, serverPort
	c.OpenTimestamp = ts
	c.InState = StreamStateOpen
	c.OutState = StreamStateOpen
}

// RequestData feeds a chunk of inbound (request direction) bytes.
//
// The state machine runs under htpsafe.Run: a panic triggered by
// adversarial input is recovered, logged, and turned into a ResultError
// instead of crashing the caller.
func (c *Connection) RequestData(chunk []byte, ts time.Time) Result {
	if c.InState == StreamStateError || c.InState == StreamStateTunnel {
		return ResultDataOther
	}
	c.InBytes += int64(len(chunk))
	c.stats.addBytes("request", int64(len(chunk)))

	var r Result
	if err := htpsafe.Run(func() error {
		r = c.in.feed(chunk, ts)
		return nil
	}); err != nil {
		c.Config.Sink.Log(logEntry("error", "REQUEST_PARSER_PANIC", err.Error()))
		r = ResultError
	}
	c.applyResult(&c.InState, r)
	return r
}

// ResponseData feeds a chunk of outbound (response direction) bytes.
//
// See RequestData for the htpsafe.Run panic-recovery behavior.
func (c *Connection) ResponseData(chunk []byte, ts time.Time) Result {
	if c.OutState == StreamStateError || c.OutState == StreamStateTunnel {
		return ResultDataOther
	}
	c.OutBytes += int64(len(chunk))
	c.stats.addBytes("response", int64(len(chunk)))

	var r Result
	if err := htpsafe.Run(func() error {
		r = c.out.feed(chunk, ts)
		return nil
	}); err != nil {
		c.Config.Sink.Log(logEntry("error", "RESPONSE_PARSER_PANIC", err.Error()))
		r = ResultError
	}
	c.applyResult(&c.OutState, r)
	return r
}

func (c *Connection) applyResult(state *StreamState, r Result) {
	switch r {
	case ResultError:
		*state = StreamStateError
	case ResultStop:
		*state = StreamStateStop
	case ResultDataOther:
		if *state != StreamStateTunnel {
			*state = StreamStateDataOther
		}
	default:
		if *state != StreamStateTunnel {
			*state = StreamStateOpen
		}
	}
}

// resolveConnect is called once the response direction has parsed a status
// line, handing the result to the waiting request direction.
func (c *Connection) resolveConnect(status int) {
	c.in.resolveConnect(status)
	if c.InState == StreamStateDataOther && c.in.state == inConnectProbeData {
		c.InState = StreamStateTunnel
		c.OutState = StreamStateTunnel
	}
}

// Close marks both directions CLOSED and re-drives each once with an empty
// chunk, letting a stream-close-length body (BODY_IDENTITY /
// BODY_IDENTITY_STREAM_CLOSE) finalize.
//
// Either direction's final drive can independently error; both are
// attempted regardless, and their errors (if any) are combined into one
// *multierror.Error rather than the caller only ever seeing the first.
func (c *Connection) Close(ts time.Time) error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.CloseTimestamp = ts

	var errs *multierror.Error
	if r := c.in.notifyClose(ts); r == ResultError {
		errs = multierror.Append(errs, errors.Wrap(errStreamFinalize, "request stream"))
	}
	if r := c.out.notifyClose(ts); r == ResultError {
		errs = multierror.Append(errs, errors.Wrap(errStreamFinalize, "response stream"))
	}

	if tx := c.in.tx; tx != nil && !tx.IsRequestComplete() {
		tx.SetFlag(Incomplete)
	}
	if tx := c.out.tx; tx != nil && !tx.IsResponseComplete() {
		tx.SetFlag(Incomplete)
	}

	if c.InState != StreamStateError {
		c.InState = StreamStateClosed
	}
	if c.OutState != StreamStateError {
		c.OutState = StreamStateClosed
	}
	return errs.ErrorOrNil()
}

// RequestGap records a known-length span of missing inbound data (a
// capture drop).
//
// Only accepted during BODY_IDENTITY or finalize; any other state is a
// fatal error, since a gap breaks framing certainty (e.g. whether a chunk
// length line is even complete).
func (c *Connection) RequestGap(n int) Result {
	switch c.in.state {
	case inBodyIdentity, inFinalize:
		c.in.tx.RequestEntityLen += int64(n)
		c.in.tx.RequestMessageLen += int64(n)
		if c.in.bodyRemaining > 0 {
			c.in.bodyRemaining -= int64(n)
			if c.in.bodyRemaining <= 0 {
				c.in.bodyRemaining = 0
				c.in.state = inFinalize
			}
		}
		if r := c.Hooks.Run(HookRequestBodyData, c.in.tx, nil); r != ResultOK {
			c.applyResult(&c.InState, r)
			return r
		}
		return ResultOK
	default:
		if c.in.tx != nil {
			c.in.tx.SetFlag(GapRejected)
		}
		c.InState = StreamStateError
		return ResultError
	}
}

// ResponseGap is the response-direction counterpart to RequestGap.
func (c *Connection) ResponseGap(n int) Result {
	switch c.out.state {
	case outBodyIdentityCLKnown, outBodyIdentityStreamClose, outFinalize:
		c.out.tx.ResponseEntityLen += int64(n)
		c.out.tx.ResponseMessageLen += int64(n)
		if c.out.bodyRemaining > 0 {
			c.out.bodyRemaining -= int64(n)
			if c.out.bodyRemaining <= 0 {
				c.out.bodyRemaining = 0
				c.out.state = outFinalize
			}
		}
		if r := c.Hooks.Run(HookResponseBodyData, c.out.tx, nil); r != ResultOK {
			c.applyResult(&c.OutState, r)
			return r
		}
		return ResultOK
	default:
		if c.out.tx != nil {
			c.out.tx.SetFlag(GapRejected)
		}
		c.OutState = StreamStateError
		return ResultError
	}
}
