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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCookiesBasic(t *testing.T) {
	cookies := ParseCookies("a=1; b=2; c=3")
	assert.Equal(t, []Cookie{{Name: "a", Value: "1"}, {Name: "b", Value: "2"}, {Name: "c", Value: "3"}}, cookies)
}

func TestParseCookiesBareToken(t *testing.T) {
	cookies := ParseCookies("a=1; justaflag; c=3")
	assert.Equal(t, []Cookie{{Name: "a", Value: "1"}, {Name: "justaflag"}, {Name: "c", Value: "3"}}, cookies)
}

func TestParseCookiesEmpty(t *testing.T) {
	assert.Nil(t, ParseCookies(""))
}
