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
	"context"
	"errors"
	"io"
	"os"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/kurafs/netfs/pkg/attr"
	"github.com/kurafs/netfs/pkg/client"
	"github.com/kurafs/netfs/pkg/config"
	"github.com/kurafs/netfs/pkg/fserr"
	"github.com/kurafs/netfs/pkg/log"
	fspb "github.com/kurafs/netfs/pkg/rpc/filesystem"
)

// Adapter answers filesystem calls on mount-relative paths using a
// storage server. Files are handled whole: open brings a local copy up to
// date, reads and writes go to the copy, and flush pushes it back.
type Adapter struct {
	logger    *log.Logger
	client    *client.Client
	mountRoot string
	attrs     *attrCache
	cache     *fileCache

	// openMu serializes changes to the cache index and its blobs. It is
	// never held across a request to the server.
	openMu sync.Mutex

	mu      sync.Mutex
	handles map[uint64]*handle
	next    uint64
}

// handle is an open local copy. path and orphan are guarded by the
// adapter's mu; mu serializes writes against flushes.
type handle struct {
	id    uint64
	blob  string
	flags int
	file  *os.File
	dirty atomic.Bool

	path   string
	orphan bool

	mu sync.Mutex
}

// NewAdapter returns an adapter issuing requests through c, with local
// copies kept under cfg.CacheDir.
func NewAdapter(logger *log.Logger, c *client.Client, cfg config.Client) (*Adapter, error) {
	cache, err := openCache(cfg.CacheDir)
	if err != nil {
		return nil, err
	}
	return &Adapter{
		logger:    logger,
		client:    c,
		mountRoot: path.Clean("/" + cfg.MountRoot),
		attrs:     newAttrCache(cfg.AttrTTL),
		cache:     cache,
		handles:   make(map[uint64]*handle),
	}, nil
}

// Close releases every open handle, pushing unsaved changes, and closes
// the cache index.
func (a *Adapter) Close(ctx context.Context) error {
	a.mu.Lock()
	ids := make([]uint64, 0, len(a.handles))
	for id := range a.handles {
		ids = append(ids, id)
	}
	a.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := a.Release(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.cache.close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// remote maps a mount-relative path onto the server's namespace. The
// result never leaves the mount root.
func (a *Adapter) remote(p string) string {
	return path.Join(a.mountRoot, path.Clean("/"+p))
}

func readOnly(flags int) bool  { return flags&syscall.O_ACCMODE == syscall.O_RDONLY }
func writeOnly(flags int) bool { return flags&syscall.O_ACCMODE == syscall.O_WRONLY }

func (a *Adapter) register(h *handle) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.next++
	h.id = a.next
	a.handles[h.id] = h
	return h.id
}

func (a *Adapter) handle(id uint64) (*handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	h, ok := a.handles[id]
	if !ok {
		return nil, syscall.EBADF
	}
	return h, nil
}

// heldBlob returns the blob of a handle open on path, if any.
func (a *Adapter) heldBlob(path string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, h := range a.handles {
		if h.path == path && !h.orphan {
			return h.blob
		}
	}
	return ""
}

func (a *Adapter) dirtyHandle(path string) *handle {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, h := range a.handles {
		if h.path == path && !h.orphan && h.dirty.Load() {
			return h
		}
	}
	return nil
}

// dropBlob deletes a blob no longer in the index. Handles still holding
// it become orphans and the blob goes with the last of them. Callers hold
// openMu.
func (a *Adapter) dropBlob(blob string) {
	a.mu.Lock()
	held := false
	for _, h := range a.handles {
		if h.blob == blob {
			h.orphan = true
			held = true
		}
	}
	a.mu.Unlock()

	if !held {
		os.Remove(a.cache.blobPath(blob))
	}
}

// Getattr returns the attributes of p. While p has unsaved local changes
// its size and mtime come from the local copy.
func (a *Adapter) Getattr(ctx context.Context, p string) (attr.Stat, error) {
	wire := a.remote(p)
	st, ok := a.attrs.get(wire)
	if !ok {
		var err error
		if st, err = a.client.Stat(ctx, wire); err != nil {
			return attr.Stat{}, err
		}
		a.attrs.put(wire, st)
	}

	if h := a.dirtyHandle(wire); h != nil {
		if fi, err := h.file.Stat(); err == nil {
			st.Size = fi.Size()
			st.Mtime = attr.FromTime(fi.ModTime())
		}
	}
	return st, nil
}

// openAttempts bounds how often Open validates a copy that changed in
// the index before it could be handed out.
const openAttempts = 3

// Open returns a handle on an up-to-date local copy of p.
func (a *Adapter) Open(ctx context.Context, p string, flags int) (uint64, error) {
	wire := a.remote(p)
	for i := 0; i < openAttempts; i++ {
		c, err := a.prepare(ctx, wire)
		if err != nil {
			return 0, err
		}
		id, ok, err := a.install(wire, c, flags)
		if err != nil || ok {
			return id, err
		}
		a.logger.Debugf("open %s: local copy changed during validation", wire)
	}
	return 0, &fserr.Error{Kind: fserr.Unknown, Op: "open", Path: wire,
		Err: errors.New("local copy kept changing")}
}

// localCopy is the outcome of validating the local copy of a path. base
// is the blob the index or an open handle held when validation started.
// fetched is set when blob was just downloaded and is not yet indexed.
type localCopy struct {
	blob    string
	base    string
	entry   cacheEntry
	fetched bool
}

// prepare finds or fetches the current content of path. The index is
// consulted under openMu; the server is not.
func (a *Adapter) prepare(ctx context.Context, path string) (localCopy, error) {
	a.openMu.Lock()
	held := a.heldBlob(path)
	e, cached, err := a.cache.lookup(path)
	a.openMu.Unlock()
	if held != "" {
		return localCopy{blob: held, base: held}, nil
	}
	if err != nil {
		return localCopy{}, err
	}

	var base string
	if cached {
		base = e.Blob
	}
	if cached && !e.Dirty {
		if _, err := os.Stat(a.cache.blobPath(e.Blob)); err == nil {
			status, err := a.client.TestAuth(ctx, path, e.Mtime)
			if err != nil {
				if fserr.Is(err, fserr.NotFound) {
					a.forgetBlob(path, e.Blob)
				}
				return localCopy{}, err
			}
			if status == fspb.Fresh {
				return localCopy{blob: e.Blob, base: e.Blob}, nil
			}
			a.logger.Debugf("open %s: local copy is stale", path)
		}
	}

	st, err := a.client.Stat(ctx, path)
	if err != nil {
		return localCopy{}, err
	}
	if st.IsDir() {
		return localCopy{}, &fserr.Error{Kind: fserr.IsDirectory, Op: "open", Path: path}
	}
	a.attrs.put(path, st)

	blob, f, err := a.cache.newBlob(path)
	if err != nil {
		return localCopy{}, fserr.FromOS("open", path, err)
	}
	n, err := a.client.Fetch(ctx, path, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fserr.FromOS("open", path, cerr)
	}
	if err != nil {
		os.Remove(a.cache.blobPath(blob))
		return localCopy{}, err
	}
	return localCopy{
		blob:    blob,
		base:    base,
		entry:   cacheEntry{Blob: blob, Mtime: st.Mtime, Size: n},
		fetched: true,
	}, nil
}

// install records c in the index and opens a handle on it. It reports
// false when the index moved on since prepare looked at it.
func (a *Adapter) install(path string, c localCopy, flags int) (uint64, bool, error) {
	a.openMu.Lock()
	defer a.openMu.Unlock()

	discard := func() {
		if c.fetched {
			os.Remove(a.cache.blobPath(c.blob))
		}
	}

	blob := c.blob
	if held := a.heldBlob(path); held != "" {
		// Handles on the same path share one copy.
		discard()
		blob = held
	} else {
		e, cached, err := a.cache.lookup(path)
		if err != nil {
			discard()
			return 0, false, err
		}
		var cur string
		if cached {
			cur = e.Blob
		}
		switch {
		case c.fetched && cur != c.base:
			discard()
			return 0, false, nil
		case c.fetched:
			prev, replaced, err := a.cache.put(path, c.entry)
			if err != nil {
				discard()
				return 0, false, err
			}
			if replaced && prev.Blob != blob {
				a.dropBlob(prev.Blob)
			}
		case cur != blob || e.Dirty:
			return 0, false, nil
		}
	}

	f, err := os.OpenFile(a.cache.blobPath(blob), os.O_RDWR, 0)
	if err != nil {
		return 0, true, fserr.FromOS("open", path, err)
	}
	h := &handle{path: path, blob: blob, flags: flags, file: f}
	if flags&os.O_TRUNC != 0 && !readOnly(flags) {
		if err := a.markDirty(path, h); err != nil {
			f.Close()
			return 0, true, err
		}
		if err := f.Truncate(0); err != nil {
			f.Close()
			return 0, true, fserr.FromOS("open", path, err)
		}
	}
	return a.register(h), true, nil
}

// forget drops the cache entry of path. Callers hold openMu.
func (a *Adapter) forget(path string) {
	e, ok, err := a.cache.remove(path)
	if err != nil {
		a.logger.Warnf("forget %s: %v", path, err)
		return
	}
	if ok {
		a.dropBlob(e.Blob)
	}
}

// forgetBlob drops the cache entry of path if it still refers to blob
// and no handle has the path open.
func (a *Adapter) forgetBlob(path, blob string) {
	a.openMu.Lock()
	defer a.openMu.Unlock()
	if a.heldBlob(path) != "" {
		return
	}
	if e, ok, err := a.cache.lookup(path); err == nil && ok && e.Blob == blob {
		a.forget(path)
	}
}

// pathOf returns the current path of h and whether it was orphaned.
func (a *Adapter) pathOf(h *handle) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return h.path, h.orphan
}

// markDirty flags h as holding unsaved changes and marks the index entry
// of path untrusted, so the copy is fetched again on the next open unless
// a flush completes first. Callers hold openMu.
func (a *Adapter) markDirty(path string, h *handle) error {
	if err := a.cache.markDirty(path, h.blob); err != nil {
		return fserr.FromOS("write", path, err)
	}
	h.dirty.Store(true)
	return nil
}

// dirtying is called with h.mu held before the first change to a clean
// handle's copy.
func (a *Adapter) dirtying(h *handle) error {
	if h.dirty.Load() {
		return nil
	}
	a.openMu.Lock()
	defer a.openMu.Unlock()
	wire, orphan := a.pathOf(h)
	if orphan {
		h.dirty.Store(true)
		return nil
	}
	return a.markDirty(wire, h)
}

// blobDirty reports whether a handle other than h has unsaved changes in
// blob. Callers hold openMu.
func (a *Adapter) blobDirty(blob string, h *handle) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, other := range a.handles {
		if other != h && other.blob == blob && other.dirty.Load() {
			return true
		}
	}
	return false
}

// Create creates p on the server and returns a handle on its empty local
// copy along with the new file's attributes.
func (a *Adapter) Create(ctx context.Context, p string, flags int, mode os.FileMode) (uint64, attr.Stat, error) {
	wire := a.remote(p)

	if err := a.client.CreateFile(ctx, wire, mode); err != nil {
		return 0, attr.Stat{}, err
	}
	st, err := a.client.Stat(ctx, wire)
	if err != nil {
		return 0, attr.Stat{}, err
	}
	a.attrs.put(wire, st)

	blob, f, err := a.cache.newBlob(wire)
	if err != nil {
		return 0, attr.Stat{}, fserr.FromOS("create", wire, err)
	}

	a.openMu.Lock()
	defer a.openMu.Unlock()
	if held := a.heldBlob(wire); held != "" {
		// Opened by someone else in the meantime; share their copy.
		f.Close()
		os.Remove(a.cache.blobPath(blob))
		blob = held
		if f, err = os.OpenFile(a.cache.blobPath(blob), os.O_RDWR, 0); err != nil {
			return 0, attr.Stat{}, fserr.FromOS("create", wire, err)
		}
	} else {
		prev, replaced, err := a.cache.put(wire, cacheEntry{Blob: blob, Mtime: st.Mtime})
		if err != nil {
			f.Close()
			os.Remove(a.cache.blobPath(blob))
			return 0, attr.Stat{}, err
		}
		if replaced {
			a.dropBlob(prev.Blob)
		}
	}
	return a.register(&handle{path: wire, blob: blob, flags: flags, file: f}), st, nil
}

// Read reads from the local copy behind handle id.
func (a *Adapter) Read(id uint64, dest []byte, off int64) (int, error) {
	h, err := a.handle(id)
	if err != nil {
		return 0, err
	}
	if writeOnly(h.flags) {
		return 0, syscall.EBADF
	}
	n, err := h.file.ReadAt(dest, off)
	if err != nil && err != io.EOF {
		wire, _ := a.pathOf(h)
		return n, fserr.FromOS("read", wire, err)
	}
	return n, nil
}

// Write writes to the local copy behind handle id and marks it dirty.
func (a *Adapter) Write(id uint64, data []byte, off int64) (int, error) {
	h, err := a.handle(id)
	if err != nil {
		return 0, err
	}
	if readOnly(h.flags) {
		return 0, syscall.EBADF
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if err := a.dirtying(h); err != nil {
		return 0, err
	}
	n, err := h.file.WriteAt(data, off)
	if err != nil {
		wire, _ := a.pathOf(h)
		return n, fserr.FromOS("write", wire, err)
	}
	return n, nil
}

// Truncate shortens p to size. With a handle (id != 0) only the local
// copy changes until the next flush; without one the file is opened,
// truncated and pushed immediately. Files cannot be extended.
func (a *Adapter) Truncate(ctx context.Context, p string, size int64, id uint64) error {
	if id != 0 {
		h, err := a.handle(id)
		if err != nil {
			return err
		}
		return a.truncate(h, size)
	}

	id, err := a.Open(ctx, p, os.O_RDWR)
	if err != nil {
		return err
	}
	h, err := a.handle(id)
	if err == nil {
		err = a.truncate(h, size)
	}
	if rerr := a.Release(ctx, id); err == nil {
		err = rerr
	}
	return err
}

func (a *Adapter) truncate(h *handle, size int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	wire, _ := a.pathOf(h)
	fi, err := h.file.Stat()
	if err != nil {
		return fserr.FromOS("truncate", wire, err)
	}
	switch {
	case size > fi.Size():
		return &fserr.Error{Kind: fserr.InvalidArgument, Op: "truncate", Path: wire,
			Err: errors.New("cannot extend a file by truncation")}
	case size == fi.Size():
		return nil
	}
	if err := a.dirtying(h); err != nil {
		return err
	}
	if err := h.file.Truncate(size); err != nil {
		return fserr.FromOS("truncate", wire, err)
	}
	return nil
}

// Flush pushes the local copy behind handle id if it has unsaved changes.
func (a *Adapter) Flush(ctx context.Context, id uint64) error {
	h, err := a.handle(id)
	if err != nil {
		return err
	}
	return a.flush(ctx, h)
}

// Fsync flushes handle id.
func (a *Adapter) Fsync(ctx context.Context, id uint64) error {
	return a.Flush(ctx, id)
}

// flush stores the copy behind h. The index entry stays untrusted until
// the server has acknowledged the upload and reported its new mtime.
func (a *Adapter) flush(ctx context.Context, h *handle) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.dirty.Load() {
		return nil
	}

	wire, orphan := a.pathOf(h)
	if orphan {
		// Removed or replaced since it was opened; the changes have nowhere to go.
		h.dirty.Store(false)
		return nil
	}

	if err := a.client.StoreFile(ctx, wire, h.file); err != nil {
		return err
	}
	h.dirty.Store(false)
	a.attrs.invalidate(wire)

	st, err := a.client.Stat(ctx, wire)
	if err != nil {
		// The next open finds the entry untrusted and fetches again.
		a.logger.Warnf("flush %s: refresh attributes: %v", wire, err)
		return nil
	}
	a.attrs.put(wire, st)

	a.openMu.Lock()
	defer a.openMu.Unlock()
	if cur, orphan := a.pathOf(h); orphan || cur != wire {
		return nil
	}
	e := cacheEntry{Blob: h.blob, Mtime: st.Mtime, Size: st.Size, Dirty: a.blobDirty(h.blob, h)}
	prev, replaced, err := a.cache.put(wire, e)
	if err != nil {
		a.logger.Warnf("flush %s: update cache index: %v", wire, err)
		return nil
	}
	if replaced && prev.Blob != h.blob {
		a.dropBlob(prev.Blob)
	}
	return nil
}

// Release flushes handle id, closes its local copy and forgets it.
func (a *Adapter) Release(ctx context.Context, id uint64) error {
	h, err := a.handle(id)
	if err != nil {
		return err
	}
	err = a.flush(ctx, h)

	a.mu.Lock()
	delete(a.handles, id)
	wire, remove := h.path, h.orphan
	for _, other := range a.handles {
		if other.blob == h.blob {
			remove = false
		}
	}
	a.mu.Unlock()

	if cerr := h.file.Close(); err == nil && cerr != nil {
		err = fserr.FromOS("release", wire, cerr)
	}
	if remove {
		os.Remove(a.cache.blobPath(h.blob))
	}
	return err
}

// ReadDir lists p, starting with "." and "..".
func (a *Adapter) ReadDir(ctx context.Context, p string) ([]client.DirEntry, error) {
	entries, err := a.client.ReadDir(ctx, a.remote(p))
	if err != nil {
		return nil, err
	}
	out := make([]client.DirEntry, 0, len(entries)+2)
	out = append(out,
		client.DirEntry{Name: ".", Mode: attr.TypeDir},
		client.DirEntry{Name: "..", Mode: attr.TypeDir})
	for _, e := range entries {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (a *Adapter) Mkdir(ctx context.Context, p string, mode os.FileMode) error {
	wire := a.remote(p)
	if err := a.client.MakeDir(ctx, wire, mode); err != nil {
		return err
	}
	a.attrs.invalidate(wire)
	return nil
}

func (a *Adapter) Rmdir(ctx context.Context, p string) error {
	wire := a.remote(p)
	if err := a.client.RemoveDir(ctx, wire); err != nil {
		return err
	}
	a.attrs.invalidateTree(wire)

	a.openMu.Lock()
	defer a.openMu.Unlock()
	removed, err := a.cache.removeTree(wire)
	if err != nil {
		a.logger.Warnf("rmdir %s: update cache index: %v", wire, err)
	}
	for _, e := range removed {
		a.dropBlob(e.Blob)
	}
	return nil
}

func (a *Adapter) Unlink(ctx context.Context, p string) error {
	wire := a.remote(p)
	if err := a.client.RemoveFile(ctx, wire); err != nil {
		return err
	}
	a.attrs.invalidate(wire)

	a.openMu.Lock()
	defer a.openMu.Unlock()
	a.forget(wire)
	return nil
}

// Rename moves oldp to newp. Local copies and open handles follow the
// move; whatever newp used to be is dropped.
func (a *Adapter) Rename(ctx context.Context, oldp, newp string) error {
	oldWire, newWire := a.remote(oldp), a.remote(newp)
	if err := a.client.Rename(ctx, oldWire, newWire); err != nil {
		return err
	}
	a.attrs.invalidateTree(oldWire)
	a.attrs.invalidateTree(newWire)
	if oldWire == newWire {
		return nil
	}

	a.openMu.Lock()
	defer a.openMu.Unlock()

	replaced, err := a.cache.rename(oldWire, newWire)
	if err != nil {
		a.logger.Warnf("rename %s: update cache index: %v", oldWire, err)
	}

	a.mu.Lock()
	for _, h := range a.handles {
		if within(h.path, newWire) {
			h.orphan = true
		}
	}
	for _, h := range a.handles {
		if within(h.path, oldWire) && !h.orphan {
			h.path = newWire + strings.TrimPrefix(h.path, oldWire)
		}
	}
	a.mu.Unlock()

	for _, e := range replaced {
		a.dropBlob(e.Blob)
	}
	return nil
}

// within reports whether p is dir or lies below it.
func within(p, dir string) bool {
	return p == dir || strings.HasPrefix(p, strings.TrimSuffix(dir, "/")+"/")
}
