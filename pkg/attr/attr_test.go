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
	"path/filepath"
	"testing"
	"time"

	fspb "github.com/kurafs/netfs/pkg/rpc/filesystem"
)

func TestEncodeDecode(t *testing.T) {
	s := Stat{
		Size:    1 << 40,
		Mode:    TypeRegular | 0640,
		Nlink:   3,
		Uid:     1000,
		Gid:     100,
		Rdev:    7,
		Blksize: 4096,
		Blocks:  1 << 31,
		Atime:   Timestamp{Seconds: -5, Nanoseconds: 999999999},
		Mtime:   Timestamp{Seconds: 1541030400, Nanoseconds: 1},
		Ctime:   Timestamp{Seconds: 1<<40 + 1, Nanoseconds: 0},
		Dev:     0,
		Ino:     1<<63 + 11,
	}
	if got := Decode(Encode(s)); got != s {
		t.Errorf("round trip changed record:\n got %+v\nwant %+v", got, s)
	}

	// The record must also survive the wire codec.
	b, err := fspb.Marshal(Encode(s))
	if err != nil {
		t.Fatal(err)
	}
	var wire fspb.Attr
	if err := fspb.Unmarshal(b, &wire); err != nil {
		t.Fatal(err)
	}
	if got := Decode(&wire); got != s {
		t.Errorf("wire round trip changed record:\n got %+v\nwant %+v", got, s)
	}
}

func TestDecodeMissingDeviceInode(t *testing.T) {
	s := Decode(&fspb.Attr{Size: 5, Mode: TypeRegular | 0644})
	if s.Dev != UnknownDevice {
		t.Errorf("expected device sentinel, got %d", s.Dev)
	}
	if s.Ino != UnknownInode {
		t.Errorf("expected inode sentinel, got %d", s.Ino)
	}

	a := Encode(s)
	if a.Dev != nil || a.Ino != nil {
		t.Errorf("expected sentinels to encode as absent fields, got %v %v", a.Dev, a.Ino)
	}
}

func TestNewer(t *testing.T) {
	t0 := Timestamp{Seconds: 100, Nanoseconds: 500}
	for _, tc := range []struct {
		a, b Timestamp
		want bool
	}{
		{t0, t0, false},
		{Timestamp{100, 501}, t0, true},
		{Timestamp{100, 499}, t0, false},
		{Timestamp{101, 0}, t0, true},
		{Timestamp{99, 999999999}, t0, false},
	} {
		if got := Newer(tc.a, tc.b); got != tc.want {
			t.Errorf("Newer(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestTimeConversion(t *testing.T) {
	now := time.Unix(1541030400, 123456789)
	ts := FromTime(now)
	if ts != (Timestamp{Seconds: 1541030400, Nanoseconds: 123456789}) {
		t.Errorf("unexpected timestamp %+v", ts)
	}
	if !ts.Time().Equal(now) {
		t.Errorf("expected %v, got %v", now, ts.Time())
	}
}

func TestLstat(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "f")
	if err := os.WriteFile(name, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	mtime := time.Unix(1541030400, 5000)
	if err := os.Chtimes(name, mtime, mtime); err != nil {
		t.Fatal(err)
	}

	s, err := Lstat(name)
	if err != nil {
		t.Fatal(err)
	}
	if s.Size != 5 {
		t.Errorf("expected size 5, got %d", s.Size)
	}
	if s.Mode&TypeMask != TypeRegular {
		t.Errorf("expected regular file, got mode %o", s.Mode)
	}
	if s.IsDir() {
		t.Error("expected file not to be a directory")
	}
	if s.Mtime != FromTime(mtime) {
		t.Errorf("expected mtime %v, got %v", FromTime(mtime), s.Mtime)
	}

	d, err := Lstat(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !d.IsDir() {
		t.Errorf("expected directory, got mode %o", d.Mode)
	}

	if _, err := Lstat(filepath.Join(dir, "missing")); !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestUnixMode(t *testing.T) {
	for _, tc := range []struct {
		in   os.FileMode
		want uint32
	}{
		{0644, TypeRegular | 0644},
		{os.ModeDir | 0755, TypeDir | 0755},
		{os.ModeSymlink | 0777, TypeSymlink | 0777},
		{os.ModeDevice | os.ModeCharDevice | 0600, TypeChar | 0600},
		{os.ModeDevice | 0600, TypeBlock | 0600},
		{os.ModeNamedPipe | 0600, TypeFIFO | 0600},
		{os.ModeDir | os.ModeSticky | 0777, TypeDir | 01777},
	} {
		if got := UnixMode(tc.in); got != tc.want {
			t.Errorf("UnixMode(%v) = %o, want %o", tc.in, got, tc.want)
		}
	}
}
