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

package htpstats

import (
	"github.com/packetd/htpcore/internal/pubsub"
)

// FlagEvent describes a single flag's first-set occurrence.
type FlagEvent struct {
	ConnectionID string
	TxIndex      int
	Flag         uint64
	FlagName     string
}

// Bus is an asynchronous, non-blocking anomaly event bus.
//
// Unlike the synchronous, order-sensitive hook registry (see
// htp/hooks.go), Bus targets order-agnostic, droppable side consumers
// (metrics aggregation, SIEM forwarding, and the like). A slow subscriber
// must never hold up the parsing main loop, so this reuses
// internal/pubsub's channel-based fan-out instead of a synchronous
// callback chain.
type Bus struct {
	ps *pubsub.PubSub
}

func NewBus() *Bus {
	return &Bus{ps: pubsub.New()}
}

// Subscribe subscribes to flag events; size is the backpressure queue
// length.
func (b *Bus) Subscribe(size int) pubsub.Queue {
	return b.ps.Subscribe(size)
}

func (b *Bus) Unsubscribe(q pubsub.Queue) {
	b.ps.Unsubscribe(q)
}

// Publish broadcasts a FlagEvent. A no-op, at no cost, when there are no
// subscribers.
func (b *Bus) Publish(e FlagEvent) {
	if b == nil || b.ps.Num() == 0 {
		return
	}
	b.ps.Publish(e)
}
