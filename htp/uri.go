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

	"golang.org/x/net/idna"
)

// URI is a request target decomposed into its parts; every field may be
// empty.
//
// Unlike net/url.URL, this decomposition must be permissive: a hostname
// that fails validation never aborts parsing — the raw text is kept and an
// anomaly flag is attached instead.
type URI struct {
	Scheme   string
	Username string
	Password string
	Host     string
	PortRaw  string
	Port     int // 0 means the port text did not parse as a number
	Path     string
	Query    string
	Fragment string
}

// ParseURI parses an absolute or relative request-target.
//
// Parse order: scheme (a ':' before the first '/'), "//userinfo@", host
// (allowing a bracketed IPv6 literal), port, path, "?query", "#fragment".
func ParseURI(raw string) (*URI, Flags) {
	u := &URI{}
	var flags Flags

	rest := raw

	// fragment
	if idx := strings.IndexByte(rest, '#'); idx >= 0 {
		u.Fragment = rest[idx+1:]
		rest = rest[:idx]
	}

	// query
	if idx := strings.IndexByte(rest, '?'); idx >= 0 {
		u.Query = rest[idx+1:]
		rest = rest[:idx]
	}

	// scheme: the colon must come before the first '/', otherwise it
	// isn't a scheme (a relative path can contain a ':' in its path
	// segment, e.g. a port number that must not be mistaken for one).
	if idx := strings.IndexByte(rest, ':'); idx > 0 {
		slash := strings.IndexByte(rest, '/')
		if slash == -1 || idx < slash {
			if isValidScheme(rest[:idx]) {
				u.Scheme = rest[:idx]
				rest = rest[idx+1:]
			}
		}
	}

	if strings.HasPrefix(rest, "//") {
		rest = rest[2:]
		authority := rest
		if idx := strings.IndexByte(rest, '/'); idx >= 0 {
			authority = rest[:idx]
			rest = rest[idx:]
		} else {
			rest = ""
		}

		if idx := strings.LastIndexByte(authority, '@'); idx >= 0 {
			userinfo := authority[:idx]
			authority = authority[idx+1:]
			if ci := strings.IndexByte(userinfo, ':'); ci >= 0 {
				u.Username = userinfo[:ci]
				u.Password = userinfo[ci+1:]
			} else {
				u.Username = userinfo
			}
		}

		host, port, f := splitHostPort(authority)
		flags = flags.Set(f)
		u.Host = host
		u.PortRaw = port
		if port != "" {
			if n, err := strconv.Atoi(port); err == nil {
				u.Port = n
			}
		}
	}

	u.Path = rest
	return u, flags
}

func isValidScheme(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		case (c == '+' || c == '-' || c == '.') && i > 0:
		default:
			return false
		}
	}
	return true
}

// splitHostPort splits a host[:port] authority segment, handling IPv6
// literals like `[::1]:8080`.
func splitHostPort(authority string) (host, port string, flags Flags) {
	if strings.HasPrefix(authority, "[") {
		idx := strings.IndexByte(authority, ']')
		if idx < 0 {
			// Missing closing ]; flag it but keep the raw text.
			return authority, "", PathInvalidEncoding
		}
		host = authority[:idx+1]
		remainder := authority[idx+1:]
		if strings.HasPrefix(remainder, ":") {
			port = remainder[1:]
		}
		return host, port, 0
	}

	if idx := strings.LastIndexByte(authority, ':'); idx >= 0 {
		return authority[:idx], authority[idx+1:], 0
	}
	return authority, "", 0
}

// ValidateHostname checks that host satisfies length 1..255, a closing
// ']' for IPv6 literals, no empty labels, each label <=63 bytes, and
// labels made only of alphanumerics and '-'.
//
// A host containing non-ASCII labels is first converted to its ASCII
// Compatible Encoding (xn--) form via idna, the same conversion a real
// browser or server performs before comparing hostnames; if that
// conversion fails the raw text is validated as-is and will typically be
// rejected by the label check below.
func ValidateHostname(host string) bool {
	if len(host) == 0 || len(host) > 255 {
		return false
	}
	if strings.HasPrefix(host, "[") {
		return strings.HasSuffix(host, "]")
	}

	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		host = ascii
	}

	labels := strings.Split(host, ".")
	for _, label := range labels {
		if len(label) == 0 || len(label) > 63 {
			return false
		}
		for _, c := range label {
			isAlnum := c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
			if !isAlnum && c != '-' {
				return false
			}
		}
	}
	return true
}
