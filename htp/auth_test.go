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
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAuthorizationBasic(t *testing.T) {
	enc := base64.StdEncoding.EncodeToString([]byte("alice:secret"))
	creds, res := ParseAuthorization("Basic " + enc)
	assert.Equal(t, SubOK, res)
	assert.Equal(t, AuthTypeBasic, creds.Type)
	assert.Equal(t, "alice", creds.Username)
	assert.Equal(t, "secret", creds.Password)
}

func TestParseAuthorizationBearer(t *testing.T) {
	creds, res := ParseAuthorization("Bearer abc.def.ghi")
	assert.Equal(t, SubOK, res)
	assert.Equal(t, AuthTypeBearer, creds.Type)
	assert.Equal(t, "abc.def.ghi", creds.Token)
}

func TestParseAuthorizationDigest(t *testing.T) {
	creds, res := ParseAuthorization(`Digest username="alice", realm="test@host", nonce="abc"`)
	assert.Equal(t, SubOK, res)
	assert.Equal(t, AuthTypeDigest, creds.Type)
	assert.Equal(t, "alice", creds.Username)
	assert.Equal(t, "test@host", creds.Realm)
}

func TestParseAuthorizationEmpty(t *testing.T) {
	_, res := ParseAuthorization("")
	assert.Equal(t, SubDeclined, res)
}

func TestParseAuthorizationUnrecognized(t *testing.T) {
	creds, res := ParseAuthorization("NTLM abcd1234")
	assert.Equal(t, SubOK, res)
	assert.Equal(t, AuthTypeUnrecognized, creds.Type)
}
