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

// Package htpsafe gives the parsing core a panic backstop.
//
// Adversarial input must never crash the calling process, even if it
// triggers a bug in the parser itself. recover() is wrapped into a
// reusable Run call that Connection.RequestData / ResponseData use around
// the state machine; a recovered panic is counted and converted into a
// plain error instead of propagating further up.
package htpsafe

import (
	"runtime"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/packetd/htpcore/common"
)

var panicTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: common.App,
		Name:      "parser_panic_total",
		Help:      "number of panics recovered while decoding HTTP traffic",
	},
)

// ErrRecovered wraps a single recovered panic.
type ErrRecovered struct {
	Value      any
	Stacktrace string
}

func (e *ErrRecovered) Error() string {
	return errors.Errorf("htpsafe: recovered panic: %v", e.Value).Error()
}

// Run executes f under recover protection; any panic is converted to an
// error return.
func Run(f func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			panicTotal.Inc()

			const size = 64 << 10
			stacktrace := make([]byte, size)
			stacktrace = stacktrace[:runtime.Stack(stacktrace, false)]
			err = &ErrRecovered{Value: r, Stacktrace: string(stacktrace)}
		}
	}()

	return f()
}
