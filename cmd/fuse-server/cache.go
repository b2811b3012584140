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
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/boltdb/bolt"
	"golang.org/x/crypto/blake2b"

	"github.com/kurafs/netfs/pkg/attr"
	fspb "github.com/kurafs/netfs/pkg/rpc/filesystem"
)

var entriesBucket = []byte("entries")

// cacheEntry records the local copy of a remote file: the blob holding
// it and the server's mtime and size when it was last synchronized.
// Dirty is set while the blob holds changes the server has not
// acknowledged; such a copy is never served to a fresh open.
type cacheEntry struct {
	Blob  string         `cbor:"1,keyasint"`
	Mtime attr.Timestamp `cbor:"2,keyasint"`
	Size  int64          `cbor:"3,keyasint"`
	Dirty bool           `cbor:"4,keyasint,omitempty"`
}

// fileCache keeps local copies of remote files under dir/blobs, indexed
// by wire path in a bolt database so the staleness check survives
// restarts. Each method is a single transaction; sequences of lookups
// and updates are serialized by the adapter.
type fileCache struct {
	dir string
	db  *bolt.DB
}

func openCache(dir string) (*fileCache, error) {
	if err := os.MkdirAll(filepath.Join(dir, "blobs"), 0700); err != nil {
		return nil, err
	}
	db, err := bolt.Open(filepath.Join(dir, "index.db"), 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open cache index: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(entriesBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	c := &fileCache{dir: dir, db: db}
	if err := c.prune(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *fileCache) close() error {
	return c.db.Close()
}

// blobPath returns the local path of a blob.
func (c *fileCache) blobPath(blob string) string {
	return filepath.Join(c.dir, "blobs", blob)
}

// newBlob creates an empty blob for path. Blob names combine a digest of
// the path with a sequence number, so a path re-created after a rename
// never collides with the blob it used to have.
func (c *fileCache) newBlob(path string) (string, *os.File, error) {
	var seq uint64
	if err := c.db.Update(func(tx *bolt.Tx) error {
		var err error
		seq, err = tx.Bucket(entriesBucket).NextSequence()
		return err
	}); err != nil {
		return "", nil, err
	}
	sum := blake2b.Sum256([]byte(path))
	blob := hex.EncodeToString(sum[:8]) + "." + strconv.FormatUint(seq, 10)
	f, err := os.OpenFile(c.blobPath(blob), os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return "", nil, err
	}
	return blob, f, nil
}

func (c *fileCache) lookup(path string) (cacheEntry, bool, error) {
	var (
		e     cacheEntry
		found bool
	)
	err := c.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(entriesBucket).Get([]byte(path))
		if v == nil {
			return nil
		}
		found = true
		return fspb.Unmarshal(v, &e)
	})
	return e, found, err
}

// put records e for path and returns the entry it replaced, if any.
func (c *fileCache) put(path string, e cacheEntry) (cacheEntry, bool, error) {
	v, err := fspb.Marshal(&e)
	if err != nil {
		return cacheEntry{}, false, err
	}
	var (
		prev  cacheEntry
		found bool
	)
	err = c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(entriesBucket)
		if old := b.Get([]byte(path)); old != nil {
			found = true
			if err := fspb.Unmarshal(old, &prev); err != nil {
				return err
			}
		}
		return b.Put([]byte(path), v)
	})
	return prev, found, err
}

// markDirty sets Dirty on the entry for path if it still refers to blob.
func (c *fileCache) markDirty(path, blob string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(entriesBucket)
		v := b.Get([]byte(path))
		if v == nil {
			return nil
		}
		var e cacheEntry
		if err := fspb.Unmarshal(v, &e); err != nil {
			return err
		}
		if e.Blob != blob || e.Dirty {
			return nil
		}
		e.Dirty = true
		v, err := fspb.Marshal(&e)
		if err != nil {
			return err
		}
		return b.Put([]byte(path), v)
	})
}

// remove drops the entry for path and returns it.
func (c *fileCache) remove(path string) (cacheEntry, bool, error) {
	var (
		e     cacheEntry
		found bool
	)
	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(entriesBucket)
		v := b.Get([]byte(path))
		if v == nil {
			return nil
		}
		found = true
		if err := fspb.Unmarshal(v, &e); err != nil {
			return err
		}
		return b.Delete([]byte(path))
	})
	return e, found, err
}

// removeTree drops the entries for dir and everything below it.
func (c *fileCache) removeTree(dir string) ([]cacheEntry, error) {
	var removed []cacheEntry
	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(entriesBucket)
		keys, entries, err := collectTree(b, dir)
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = entries
		return nil
	})
	return removed, err
}

// rename moves the entries for oldPath and everything below it to
// newPath. Entries previously recorded under newPath are dropped and
// returned.
func (c *fileCache) rename(oldPath, newPath string) ([]cacheEntry, error) {
	var replaced []cacheEntry
	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(entriesBucket)

		_, victims, err := collectTree(b, newPath)
		if err != nil {
			return err
		}
		oldKeys, _, err := collectTree(b, oldPath)
		if err != nil {
			return err
		}
		moved := make(map[string][]byte, len(oldKeys))
		for _, k := range oldKeys {
			moved[newPath+strings.TrimPrefix(string(k), oldPath)] = append([]byte(nil), b.Get(k)...)
		}
		newKeys, _, err := collectTree(b, newPath)
		if err != nil {
			return err
		}
		for _, k := range append(oldKeys, newKeys...) {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		for k, v := range moved {
			if err := b.Put([]byte(k), v); err != nil {
				return err
			}
		}
		replaced = victims
		return nil
	})
	return replaced, err
}

// collectTree returns the keys and entries of dir and of every path
// below it.
func collectTree(b *bolt.Bucket, dir string) ([][]byte, []cacheEntry, error) {
	var (
		keys    [][]byte
		entries []cacheEntry
	)
	add := func(k, v []byte) error {
		var e cacheEntry
		if err := fspb.Unmarshal(v, &e); err != nil {
			return err
		}
		keys = append(keys, append([]byte(nil), k...))
		entries = append(entries, e)
		return nil
	}
	if v := b.Get([]byte(dir)); v != nil {
		if err := add([]byte(dir), v); err != nil {
			return nil, nil, err
		}
	}
	prefix := []byte(strings.TrimSuffix(dir, "/") + "/")
	cur := b.Cursor()
	for k, v := cur.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = cur.Next() {
		if string(k) == dir {
			continue
		}
		if err := add(k, v); err != nil {
			return nil, nil, err
		}
	}
	return keys, entries, nil
}

// prune removes blobs no entry refers to, left behind by a crash
// between fetching a copy and recording it.
func (c *fileCache) prune() error {
	live := make(map[string]bool)
	if err := c.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(entriesBucket).ForEach(func(k, v []byte) error {
			var e cacheEntry
			if err := fspb.Unmarshal(v, &e); err != nil {
				return err
			}
			live[e.Blob] = true
			return nil
		})
	}); err != nil {
		return err
	}

	blobs, err := os.ReadDir(filepath.Join(c.dir, "blobs"))
	if err != nil {
		return err
	}
	for _, b := range blobs {
		if !live[b.Name()] {
			os.Remove(c.blobPath(b.Name()))
		}
	}
	return nil
}
