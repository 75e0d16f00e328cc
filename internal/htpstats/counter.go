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

// Package htpstats gives the parsing core an optional side channel for
// metrics.
//
// The core itself never requires a caller to wire up any metrics system.
// Counter is an optional collaborator that tallies per-connection byte
// counts and per-flag occurrence counts, and can export them as
// Prometheus-compatible time series (prompb) for an external IDS/WAF to
// scrape or remote-write.
package htpstats

import (
	"sync"
	"time"

	"github.com/prometheus/prometheus/prompb"

	"github.com/packetd/htpcore/internal/labels"
)

type counterValue struct {
	val     float64
	lbs     labels.Labels
	updated int64
}

// Counter is an accumulating counter aggregated by labels.
//
// Pairs with labels.Labels.Hash to avoid building a tree per label
// combination.
type Counter struct {
	mut      sync.RWMutex
	name     string
	counters map[uint64]*counterValue
	expired  time.Duration
}

func NewCounter(name string, expired time.Duration) *Counter {
	return &Counter{
		name:     name,
		expired:  expired,
		counters: make(map[uint64]*counterValue),
	}
}

func (c *Counter) Inc(lbs labels.Labels) {
	c.Add(1, lbs)
}

func (c *Counter) Add(v float64, lbs labels.Labels) {
	hash := lbs.Hash()

	c.mut.Lock()
	defer c.mut.Unlock()

	if _, ok := c.counters[hash]; !ok {
		c.counters[hash] = &counterValue{lbs: lbs}
	}
	c.counters[hash].val += v
	c.counters[hash].updated = time.Now().Unix()
}

// RemoveExpired drops series that haven't been updated within expired.
func (c *Counter) RemoveExpired() {
	if c.expired <= 0 {
		return
	}

	c.mut.Lock()
	defer c.mut.Unlock()

	now := time.Now().Unix()
	sec := int64(c.expired.Seconds())
	for hash, inst := range c.counters {
		if now-inst.updated > sec {
			delete(c.counters, hash)
		}
	}
}

// PrompbTimeSeries exports the current accumulated values as a list of
// prompb.TimeSeries.
func (c *Counter) PrompbTimeSeries() []prompb.TimeSeries {
	c.mut.RLock()
	defer c.mut.RUnlock()

	series := make([]prompb.TimeSeries, 0, len(c.counters))
	for _, inst := range c.counters {
		lbls := make([]prompb.Label, 0, len(inst.lbs)+1)
		lbls = append(lbls, prompb.Label{Name: "__name__", Value: c.name})
		for _, l := range inst.lbs {
			lbls = append(lbls, prompb.Label{Name: l.Name, Value: l.Value})
		}

		series = append(series, prompb.TimeSeries{
			Labels: lbls,
			Samples: []prompb.Sample{
				{Value: inst.val, Timestamp: inst.updated * 1000},
			},
		})
	}
	return series
}
