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

// Package attr converts file metadata between its native form, the wire
// form carried by netfs.FileService and the form handed to the mount.
package attr

import (
	"os"
	"time"

	fspb "github.com/kurafs/netfs/pkg/rpc/filesystem"
)

// Sentinels reported for a device or inode number the server could not
// provide.
const (
	UnknownDevice uint64 = ^uint64(0)
	UnknownInode  uint64 = ^uint64(0)
)

// Unix file type bits, independent of the host platform.
const (
	TypeMask    uint32 = 0170000
	TypeSocket  uint32 = 0140000
	TypeSymlink uint32 = 0120000
	TypeRegular uint32 = 0100000
	TypeBlock   uint32 = 0060000
	TypeDir     uint32 = 0040000
	TypeChar    uint32 = 0020000
	TypeFIFO    uint32 = 0010000
)

// Timestamp is seconds and nanoseconds since the Unix epoch.
type Timestamp struct {
	Seconds     int64
	Nanoseconds int32
}

// FromTime returns the timestamp of t.
func FromTime(t time.Time) Timestamp {
	return Timestamp{Seconds: t.Unix(), Nanoseconds: int32(t.Nanosecond())}
}

// Time returns ts as a time.Time in the local zone.
func (ts Timestamp) Time() time.Time {
	return time.Unix(ts.Seconds, int64(ts.Nanoseconds))
}

// Newer reports whether a is strictly later than b.
func Newer(a, b Timestamp) bool {
	if a.Seconds != b.Seconds {
		return a.Seconds > b.Seconds
	}
	return a.Nanoseconds > b.Nanoseconds
}

// Stat is a file metadata record. Mode holds Unix type and permission
// bits regardless of the platform it was read on.
type Stat struct {
	Size    int64
	Mode    uint32
	Nlink   uint64
	Uid     uint32
	Gid     uint32
	Rdev    uint64
	Blksize int64
	Blocks  int64
	Atime   Timestamp
	Mtime   Timestamp
	Ctime   Timestamp
	Dev     uint64
	Ino     uint64
}

// IsDir reports whether s describes a directory.
func (s Stat) IsDir() bool { return s.Mode&TypeMask == TypeDir }

// Encode returns the wire form of s. A sentinel device or inode is left
// out of the record.
func Encode(s Stat) *fspb.Attr {
	a := &fspb.Attr{
		Size:    s.Size,
		Mode:    s.Mode,
		Nlink:   s.Nlink,
		Uid:     s.Uid,
		Gid:     s.Gid,
		Rdev:    s.Rdev,
		Blksize: s.Blksize,
		Blocks:  s.Blocks,
		Atime:   encodeTime(s.Atime),
		Mtime:   encodeTime(s.Mtime),
		Ctime:   encodeTime(s.Ctime),
	}
	if s.Dev != UnknownDevice {
		dev := s.Dev
		a.Dev = &dev
	}
	if s.Ino != UnknownInode {
		ino := s.Ino
		a.Ino = &ino
	}
	return a
}

// Decode returns the native form of a. Missing device or inode numbers
// decode to UnknownDevice and UnknownInode.
func Decode(a *fspb.Attr) Stat {
	s := Stat{
		Size:    a.Size,
		Mode:    a.Mode,
		Nlink:   a.Nlink,
		Uid:     a.Uid,
		Gid:     a.Gid,
		Rdev:    a.Rdev,
		Blksize: a.Blksize,
		Blocks:  a.Blocks,
		Atime:   DecodeTime(a.Atime),
		Mtime:   DecodeTime(a.Mtime),
		Ctime:   DecodeTime(a.Ctime),
		Dev:     UnknownDevice,
		Ino:     UnknownInode,
	}
	if a.Dev != nil {
		s.Dev = *a.Dev
	}
	if a.Ino != nil {
		s.Ino = *a.Ino
	}
	return s
}

func encodeTime(ts Timestamp) fspb.Timestamp {
	return fspb.Timestamp{Seconds: ts.Seconds, Nanoseconds: ts.Nanoseconds}
}

// EncodeTime returns the wire form of ts.
func EncodeTime(ts Timestamp) fspb.Timestamp { return encodeTime(ts) }

// DecodeTime returns the native form of ts.
func DecodeTime(ts fspb.Timestamp) Timestamp {
	return Timestamp{Seconds: ts.Seconds, Nanoseconds: ts.Nanoseconds}
}

// UnixMode converts Go file mode bits into Unix type and permission bits.
func UnixMode(m os.FileMode) uint32 {
	mode := uint32(m.Perm())
	switch {
	case m&os.ModeDir != 0:
		mode |= TypeDir
	case m&os.ModeSymlink != 0:
		mode |= TypeSymlink
	case m&os.ModeNamedPipe != 0:
		mode |= TypeFIFO
	case m&os.ModeSocket != 0:
		mode |= TypeSocket
	case m&os.ModeCharDevice != 0:
		mode |= TypeChar
	case m&os.ModeDevice != 0:
		mode |= TypeBlock
	default:
		mode |= TypeRegular
	}
	if m&os.ModeSetuid != 0 {
		mode |= 04000
	}
	if m&os.ModeSetgid != 0 {
		mode |= 02000
	}
	if m&os.ModeSticky != 0 {
		mode |= 01000
	}
	return mode
}

// FromFileInfo builds a record from fi using only portable fields. Owner,
// link count, device and inode are not available this way; the link count
// is reported as 1 and device and inode as their sentinels.
func FromFileInfo(fi os.FileInfo) Stat {
	mtime := FromTime(fi.ModTime())
	return Stat{
		Size:  fi.Size(),
		Mode:  UnixMode(fi.Mode()),
		Nlink: 1,
		Atime: mtime,
		Mtime: mtime,
		Ctime: mtime,
		Dev:   UnknownDevice,
		Ino:   UnknownInode,
	}
}
