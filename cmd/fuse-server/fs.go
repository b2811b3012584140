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
	"os"
	"path"
	"syscall"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/kurafs/netfs/pkg/attr"
	"github.com/kurafs/netfs/pkg/fserr"
)

// node is a file or directory in the mounted tree. Nodes carry no state
// of their own: the path is recovered from the tree and every call is
// answered by the adapter.
type node struct {
	gofuse.Inode
	adapter *Adapter
}

var (
	_ gofuse.NodeLookuper  = (*node)(nil)
	_ gofuse.NodeGetattrer = (*node)(nil)
	_ gofuse.NodeSetattrer = (*node)(nil)
	_ gofuse.NodeOpener    = (*node)(nil)
	_ gofuse.NodeCreater   = (*node)(nil)
	_ gofuse.NodeReaddirer = (*node)(nil)
	_ gofuse.NodeMkdirer   = (*node)(nil)
	_ gofuse.NodeRmdirer   = (*node)(nil)
	_ gofuse.NodeUnlinker  = (*node)(nil)
	_ gofuse.NodeRenamer   = (*node)(nil)
)

func newRoot(a *Adapter) *node {
	return &node{adapter: a}
}

// path returns the mount-relative path of n.
func (n *node) path() string {
	return "/" + n.Path(nil)
}

func (n *node) child(name string) string {
	return path.Join(n.path(), name)
}

// errno converts an adapter error for the kernel. Local errnos such as
// EBADF pass through; everything else goes by its kind.
func errno(err error) syscall.Errno {
	if err == nil {
		return 0
	}
	var e syscall.Errno
	if fserr.KindOf(err) == fserr.Unknown && errors.As(err, &e) {
		return e
	}
	return fserr.Errno(err)
}

func (n *node) newChild(ctx context.Context, st attr.Stat, out *fuse.EntryOut) *gofuse.Inode {
	attr.ToFuse(st, &out.Attr)
	out.SetEntryTimeout(n.adapter.attrs.ttl)
	out.SetAttrTimeout(n.adapter.attrs.ttl)
	return n.NewInode(ctx, &node{adapter: n.adapter}, gofuse.StableAttr{Mode: st.Mode & attr.TypeMask})
}

func (n *node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	st, err := n.adapter.Getattr(ctx, n.child(name))
	if err != nil {
		return nil, errno(err)
	}
	return n.newChild(ctx, st, out), 0
}

func (n *node) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	st, err := n.adapter.Getattr(ctx, n.path())
	if err != nil {
		return errno(err)
	}
	attr.ToFuse(st, &out.Attr)
	out.SetTimeout(n.adapter.attrs.ttl)
	return 0
}

// Setattr only honors size changes. Ownership, permissions and times are
// the server's business and are silently left alone.
func (n *node) Setattr(ctx context.Context, f gofuse.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	if size, ok := in.GetSize(); ok {
		var id uint64
		if fh, ok := f.(*fileHandle); ok {
			id = fh.id
		}
		if err := n.adapter.Truncate(ctx, n.path(), int64(size), id); err != nil {
			return errno(err)
		}
	}
	return n.Getattr(ctx, f, out)
}

func (n *node) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	id, err := n.adapter.Open(ctx, n.path(), int(flags))
	if err != nil {
		return nil, 0, errno(err)
	}
	return &fileHandle{adapter: n.adapter, id: id}, 0, 0
}

func (n *node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, gofuse.FileHandle, uint32, syscall.Errno) {
	id, st, err := n.adapter.Create(ctx, n.child(name), int(flags), os.FileMode(mode).Perm())
	if err != nil {
		return nil, nil, 0, errno(err)
	}
	return n.newChild(ctx, st, out), &fileHandle{adapter: n.adapter, id: id}, 0, 0
}

func (n *node) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	entries, err := n.adapter.ReadDir(ctx, n.path())
	if err != nil {
		return nil, errno(err)
	}
	// The kernel bridge supplies its own "." and "..".
	list := make([]fuse.DirEntry, 0, len(entries))
	for _, e := range entries {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		list = append(list, fuse.DirEntry{Name: e.Name, Mode: e.Mode})
	}
	return gofuse.NewListDirStream(list), 0
}

func (n *node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	p := n.child(name)
	if err := n.adapter.Mkdir(ctx, p, os.FileMode(mode).Perm()); err != nil {
		return nil, errno(err)
	}
	st, err := n.adapter.Getattr(ctx, p)
	if err != nil {
		return nil, errno(err)
	}
	return n.newChild(ctx, st, out), 0
}

func (n *node) Rmdir(ctx context.Context, name string) syscall.Errno {
	return errno(n.adapter.Rmdir(ctx, n.child(name)))
}

func (n *node) Unlink(ctx context.Context, name string) syscall.Errno {
	return errno(n.adapter.Unlink(ctx, n.child(name)))
}

func (n *node) Rename(ctx context.Context, name string, newParent gofuse.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	if flags != 0 {
		return syscall.ENOTSUP
	}
	dst, ok := newParent.(*node)
	if !ok {
		return syscall.EXDEV
	}
	return errno(n.adapter.Rename(ctx, n.child(name), dst.child(newName)))
}

// fileHandle is an open file; it names an adapter handle.
type fileHandle struct {
	adapter *Adapter
	id      uint64
}

var (
	_ gofuse.FileReader   = (*fileHandle)(nil)
	_ gofuse.FileWriter   = (*fileHandle)(nil)
	_ gofuse.FileFlusher  = (*fileHandle)(nil)
	_ gofuse.FileFsyncer  = (*fileHandle)(nil)
	_ gofuse.FileReleaser = (*fileHandle)(nil)
)

func (fh *fileHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	n, err := fh.adapter.Read(fh.id, dest, off)
	if err != nil {
		return nil, errno(err)
	}
	return fuse.ReadResultData(dest[:n]), 0
}

func (fh *fileHandle) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	n, err := fh.adapter.Write(fh.id, data, off)
	return uint32(n), errno(err)
}

func (fh *fileHandle) Flush(ctx context.Context) syscall.Errno {
	return errno(fh.adapter.Flush(ctx, fh.id))
}

func (fh *fileHandle) Fsync(ctx context.Context, flags uint32) syscall.Errno {
	return errno(fh.adapter.Fsync(ctx, fh.id))
}

func (fh *fileHandle) Release(ctx context.Context) syscall.Errno {
	return errno(fh.adapter.Release(ctx, fh.id))
}
