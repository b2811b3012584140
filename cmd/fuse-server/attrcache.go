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
	"strings"
	"sync"
	"time"

	"github.com/google/btree"

	"github.com/kurafs/netfs/pkg/attr"
)

type attrItem struct {
	path    string
	stat    attr.Stat
	expires time.Time
}

// attrCache holds server attributes for a short TTL. Entries are kept
// ordered by path so a rename or rmdir can drop a whole subtree.
type attrCache struct {
	ttl time.Duration
	now func() time.Time

	mu   sync.Mutex
	tree *btree.BTreeG[attrItem]
}

func newAttrCache(ttl time.Duration) *attrCache {
	return &attrCache{
		ttl:  ttl,
		now:  time.Now,
		tree: btree.NewG(32, func(a, b attrItem) bool { return a.path < b.path }),
	}
}

func (c *attrCache) get(path string) (attr.Stat, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.tree.Get(attrItem{path: path})
	if !ok {
		return attr.Stat{}, false
	}
	if !c.now().Before(item.expires) {
		c.tree.Delete(item)
		return attr.Stat{}, false
	}
	return item.stat, true
}

func (c *attrCache) put(path string, st attr.Stat) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tree.ReplaceOrInsert(attrItem{path: path, stat: st, expires: c.now().Add(c.ttl)})
}

func (c *attrCache) invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tree.Delete(attrItem{path: path})
}

// invalidateTree drops dir and every path below it.
func (c *attrCache) invalidateTree(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tree.Delete(attrItem{path: dir})
	prefix := strings.TrimSuffix(dir, "/") + "/"
	var doomed []attrItem
	c.tree.AscendGreaterOrEqual(attrItem{path: prefix}, func(item attrItem) bool {
		if !strings.HasPrefix(item.path, prefix) {
			return false
		}
		doomed = append(doomed, item)
		return true
	})
	for _, item := range doomed {
		c.tree.Delete(item)
	}
}

func (c *attrCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tree.Len()
}
