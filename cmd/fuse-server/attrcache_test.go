// Copyright 2018 The Kura Authors.
//
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

package fuseserver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kurafs/netfs/pkg/attr"
)

func TestAttrCacheExpiry(t *testing.T) {
	now := time.Unix(1000, 0)
	c := newAttrCache(time.Second)
	c.now = func() time.Time { return now }

	c.put("/a", attr.Stat{Size: 7})
	st, ok := c.get("/a")
	assert.True(t, ok)
	assert.EqualValues(t, 7, st.Size)

	now = now.Add(time.Second)
	_, ok = c.get("/a")
	assert.False(t, ok)
	assert.Zero(t, c.len())
}

func TestAttrCacheDisabled(t *testing.T) {
	c := newAttrCache(0)
	c.put("/a", attr.Stat{})
	_, ok := c.get("/a")
	assert.False(t, ok)
}

func TestAttrCacheInvalidateTree(t *testing.T) {
	c := newAttrCache(time.Minute)
	for _, p := range []string{"/d", "/d/a", "/d/sub/b", "/d-x", "/dz", "/e"} {
		c.put(p, attr.Stat{})
	}

	c.invalidate("/e")
	c.invalidateTree("/d")
	for p, want := range map[string]bool{
		"/d": false, "/d/a": false, "/d/sub/b": false,
		"/d-x": true, "/dz": true, "/e": false,
	} {
		_, ok := c.get(p)
		assert.Equal(t, want, ok, p)
	}
}
