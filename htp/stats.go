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

	"github.com/prometheus/prometheus/prompb"

	"github.com/packetd/htpcore/internal/htpstats"
	"github.com/packetd/htpcore/internal/labels"
)

// connStats is the optional side channel a Connection feeds anomaly
// events and byte/flag counters into. Nil-safe throughout: a Connection
// with no stats wired pays only the cost of a nil check.
type connStats struct {
	connID  string
	bus     *htpstats.Bus
	flagCnt *htpstats.Counter
	byteCnt *htpstats.Counter
}

func newConnStats(connID string) *connStats {
	return &connStats{
		connID:  connID,
		bus:     htpstats.NewBus(),
		flagCnt: htpstats.NewCounter("htp_flag_total", time.Hour),
		byteCnt: htpstats.NewCounter("htp_bytes_total", time.Hour),
	}
}

func (s *connStats) publishFlags(txIndex int, added Flags) {
	if s == nil || added == 0 {
		return
	}
	added.eachSetBit(func(bit Flags, name string) {
		s.bus.Publish(htpstats.FlagEvent{
			ConnectionID: s.connID,
			TxIndex:      txIndex,
			Flag:         uint64(bit),
			FlagName:     name,
		})
		s.flagCnt.Inc(labels.Labels{
			{Name: "connection_id", Value: s.connID},
			{Name: "flag", Value: name},
		})
	})
}

func (s *connStats) addBytes(direction string, n int64) {
	if s == nil || n == 0 {
		return
	}
	s.byteCnt.Add(float64(n), labels.Labels{
		{Name: "connection_id", Value: s.connID},
		{Name: "direction", Value: direction},
	})
}

// StatsBus returns the Bus that publishes a FlagEvent each time an anomaly
// flag is set for the first time on any Transaction in this Connection
// through Transaction.SetFlag. Flag bits the state machines merge into
// Transaction.Flags directly from a sub-parser's result (URI, decoder,
// chunk length, URL-encoded and multipart parsing) are not published.
// External consumers (metrics aggregation, SIEM forwarding) subscribe to
// it; nothing in the parser itself depends on there being a subscriber.
func (c *Connection) StatsBus() *htpstats.Bus {
	return c.stats.bus
}

// FlagCounts exports the per-flag occurrence counters in Prometheus
// remote-write form.
func (c *Connection) FlagCounts() []prompb.TimeSeries {
	return c.stats.flagCnt.PrompbTimeSeries()
}

// ByteCounts exports the per-direction byte counters in Prometheus
// remote-write form.
func (c *Connection) ByteCounts() []prompb.TimeSeries {
	return c.stats.byteCnt.PrompbTimeSeries()
}
