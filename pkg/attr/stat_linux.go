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

package attr

import (
	"os"

	"golang.org/x/sys/unix"
)

// Lstat returns the metadata of name without following a final symlink.
func Lstat(name string) (Stat, error) {
	var st unix.Stat_t
	if err := unix.Lstat(name, &st); err != nil {
		return Stat{}, &os.PathError{Op: "lstat", Path: name, Err: err}
	}
	return fromStatT(&st), nil
}

// Fstat returns the metadata of the open file f.
func Fstat(f *os.File) (Stat, error) {
	var st unix.Stat_t
	if err := unix.Fstat(int(f.Fd()), &st); err != nil {
		return Stat{}, &os.PathError{Op: "fstat", Path: f.Name(), Err: err}
	}
	return fromStatT(&st), nil
}

func fromStatT(st *unix.Stat_t) Stat {
	return Stat{
		Size:    st.Size,
		Mode:    st.Mode,
		Nlink:   uint64(st.Nlink),
		Uid:     st.Uid,
		Gid:     st.Gid,
		Rdev:    uint64(st.Rdev),
		Blksize: int64(st.Blksize),
		Blocks:  st.Blocks,
		Atime:   Timestamp{Seconds: int64(st.Atim.Sec), Nanoseconds: int32(st.Atim.Nsec)},
		Mtime:   Timestamp{Seconds: int64(st.Mtim.Sec), Nanoseconds: int32(st.Mtim.Nsec)},
		Ctime:   Timestamp{Seconds: int64(st.Ctim.Sec), Nanoseconds: int32(st.Ctim.Nsec)},
		Dev:     uint64(st.Dev),
		Ino:     st.Ino,
	}
}
