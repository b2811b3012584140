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

//go:build linux || darwin || freebsd

package attr

import "github.com/hanwen/go-fuse/v2/fuse"

// ToFuse fills out with s. A sentinel inode leaves out.Ino untouched so
// the mount assigns its own.
func ToFuse(s Stat, out *fuse.Attr) {
	if s.Ino != UnknownInode {
		out.Ino = s.Ino
	}
	out.Size = uint64(s.Size)
	out.Blocks = uint64(s.Blocks)
	out.Atime = uint64(s.Atime.Seconds)
	out.Atimensec = uint32(s.Atime.Nanoseconds)
	out.Mtime = uint64(s.Mtime.Seconds)
	out.Mtimensec = uint32(s.Mtime.Nanoseconds)
	out.Ctime = uint64(s.Ctime.Seconds)
	out.Ctimensec = uint32(s.Ctime.Nanoseconds)
	out.Mode = s.Mode
	out.Nlink = uint32(s.Nlink)
	out.Uid = s.Uid
	out.Gid = s.Gid
	out.Rdev = uint32(s.Rdev)
	out.Blksize = uint32(s.Blksize)
}
