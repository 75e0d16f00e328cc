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

// Cookie is a single name=value record following version-0 (Netscape)
// cookie syntax.
type Cookie struct {
	Name  string
	Value string
}

// ParseCookies splits a `Cookie:` header value into name=value pairs.
//
// A version-0 cookie list is ';'-separated; each pair splits on the first
// '='. A segment with no '=' is treated as a name with an empty value
// (some clients send bare tokens).
func ParseCookies(value string) []Cookie {
	var cookies []Cookie
	for _, part := range strings.Split(value, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if idx := strings.IndexByte(part, '='); idx >= 0 {
			cookies = append(cookies, Cookie{
				Name:  strings.TrimSpace(part[:idx]),
				Value: strings.TrimSpace(part[idx+1:]),
			})
		} else {
			cookies = append(cookies, Cookie{Name: part})
		}
	}
	return cookies
}
