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

import "strings"

// Param is a single entry in the request_params multimap.
type Param struct {
	Name   string
	Value  string
	Source ParamSource
}

// ParamSource marks whether a param came from the query string, the
// request body, or a multipart part.
type ParamSource int

const (
	ParamSourceQuery ParamSource = iota
	ParamSourceBody
	ParamSourceMultipart
)

// URLEncodedParser streams `a=b&c=d` form data.
//
// Supports partial parsing across chunks: the final segment not terminated
// by '&' is buffered until the next Feed call.
type URLEncodedParser struct {
	cfg     DecoderConfig
	source  ParamSource
	pending string
	params  []Param
	flags   Flags
}

func NewURLEncodedParser(cfg DecoderConfig, source ParamSource) *URLEncodedParser {
	return &URLEncodedParser{cfg: cfg, source: source}
}

// Feed consumes a newly arrived chunk. May be called repeatedly.
func (p *URLEncodedParser) Feed(chunk []byte) {
	data := p.pending + string(chunk)
	p.pending = ""

	segments := strings.Split(data, "&")
	for i, seg := range segments {
		if i == len(segments)-1 {
			// The last segment may continue in the next chunk.
			p.pending = seg
			continue
		}
		p.addPair(seg)
	}
}

// Finish ends parsing, treating any pending segment as the final pair.
func (p *URLEncodedParser) Finish() {
	if p.pending != "" {
		p.addPair(p.pending)
		p.pending = ""
	}
}

func (p *URLEncodedParser) addPair(seg string) {
	if seg == "" {
		return
	}

	var name, value string
	if idx := strings.IndexByte(seg, '='); idx >= 0 {
		name, value = seg[:idx], seg[idx+1:]
	} else {
		name = seg
	}

	decodedName, f1 := DecodeURIComponent(p.cfg, []byte(name), true)
	decodedValue, f2 := DecodeURIComponent(p.cfg, []byte(value), true)
	p.flags = p.flags.Set(remapParamFlags(f1)).Set(remapParamFlags(f2))

	p.params = append(p.params, Param{
		Name:   string(decodedName),
		Value:  string(decodedValue),
		Source: p.source,
	})
}

// remapParamFlags translates the Path* anomaly bits DecodeURIComponent
// emits into their URLen* counterparts, since the same decoder serves both
// the request path and query-string/body parameters but the two contexts
// raise distinct flag families.
func remapParamFlags(f Flags) Flags {
	var out Flags
	if f.Has(PathEncodedNUL) {
		out = out.Set(URLenEncodedNUL)
	}
	if f.Has(PathRawNUL) {
		out = out.Set(URLenRawNUL)
	}
	if f.Has(PathInvalidEncoding) {
		out = out.Set(URLenInvalidEncoding)
	}
	if f.Has(PathEncodedSeparator) {
		out = out.Set(URLenEncodedSeparator)
	}
	remaining := f &^ (PathEncodedNUL | PathRawNUL | PathInvalidEncoding | PathEncodedSeparator)
	return out | remaining
}

// Params returns the parameters parsed so far.
func (p *URLEncodedParser) Params() []Param {
	return p.params
}

func (p *URLEncodedParser) Flags() Flags {
	return p.flags
}
