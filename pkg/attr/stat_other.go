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

//go:build !linux

package attr

import "os"

// Lstat returns the metadata of name without following a final symlink.
// Device and inode numbers are reported as their sentinels.
func Lstat(name string) (Stat, error) {
	fi, err := os.Lstat(name)
	if err != nil {
		return Stat{}, err
	}
	return FromFileInfo(fi), nil
}

// Fstat returns the metadata of the open file f.
func Fstat(f *os.File) (Stat, error) {
	fi, err := f.Stat()
	if err != nil {
		return Stat{}, err
	}
	return FromFileInfo(fi), nil
}
