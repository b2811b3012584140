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

// Package filesystem defines the netfs.FileService RPC surface: the
// request and response messages, the service descriptor, and the codec
// and compressor registered with gRPC for them.
//
// Messages are plain Go structs encoded with CBOR; there is no IDL
// compiler in the build. Field tags use integer keys so the encoding
// stays compact and fields may be renamed freely.
package filesystem

// BlockSize is the size of every content block sent by Fetch, except
// possibly the last.
const BlockSize = 4096

// Timestamp is a point in time as seconds and nanoseconds since the Unix
// epoch. It is carried unchanged between server and client.
type Timestamp struct {
	Seconds     int64 `cbor:"1,keyasint"`
	Nanoseconds int32 `cbor:"2,keyasint"`
}

// Attr is the wire form of a file metadata record. Dev and Ino are
// optional; servers on platforms that lack them leave them unset.
type Attr struct {
	Size    int64     `cbor:"1,keyasint"`
	Mode    uint32    `cbor:"2,keyasint"`
	Nlink   uint64    `cbor:"3,keyasint"`
	Uid     uint32    `cbor:"4,keyasint"`
	Gid     uint32    `cbor:"5,keyasint"`
	Rdev    uint64    `cbor:"6,keyasint,omitempty"`
	Blksize int64     `cbor:"7,keyasint,omitempty"`
	Blocks  int64     `cbor:"8,keyasint,omitempty"`
	Atime   Timestamp `cbor:"9,keyasint"`
	Mtime   Timestamp `cbor:"10,keyasint"`
	Ctime   Timestamp `cbor:"11,keyasint"`
	Dev     *uint64   `cbor:"12,keyasint,omitempty"`
	Ino     *uint64   `cbor:"13,keyasint,omitempty"`
}

// PathRequest names a single path in the remote namespace.
type PathRequest struct {
	Path string `cbor:"1,keyasint"`
}

// CreateRequest is used by CreateFile and MakeDir. Only the permission
// bits of Mode are honoured.
type CreateRequest struct {
	Path string `cbor:"1,keyasint"`
	Mode uint32 `cbor:"2,keyasint"`
}

type RenameRequest struct {
	OldPath string `cbor:"1,keyasint"`
	NewPath string `cbor:"2,keyasint"`
}

// StatusResponse acknowledges an operation that has no result. Failures
// are reported through the RPC status instead.
type StatusResponse struct{}

// DirEntry is one entry streamed by FetchDir. Mode carries only the file
// type bits (S_IFMT) of the entry.
type DirEntry struct {
	Name string `cbor:"1,keyasint"`
	Mode uint32 `cbor:"2,keyasint"`
}

type FetchRequest struct {
	Path string `cbor:"1,keyasint"`
}

// Block is a span of file content.
type Block struct {
	Data []byte `cbor:"1,keyasint"`
}

// StoreHeader opens a Store stream. Length is the exact number of bytes
// the blocks that follow will carry. Digest, if set, is the BLAKE2b-256
// sum of that content.
type StoreHeader struct {
	Path   string `cbor:"1,keyasint"`
	Length int64  `cbor:"2,keyasint"`
	Digest []byte `cbor:"3,keyasint,omitempty"`
}

// StoreRequest is one message of a Store stream. The first message
// carries only a Header, every later one only Data.
type StoreRequest struct {
	Header *StoreHeader `cbor:"1,keyasint,omitempty"`
	Data   []byte       `cbor:"2,keyasint,omitempty"`
}

type StoreResponse struct {
	Written int64 `cbor:"1,keyasint"`
}

type TestAuthRequest struct {
	Path  string    `cbor:"1,keyasint"`
	Mtime Timestamp `cbor:"2,keyasint"`
}

// AuthStatus is the verdict of a staleness check.
type AuthStatus int32

const (
	// Fresh means the server copy is not newer than the client's.
	Fresh AuthStatus = iota
	// Stale means the server copy changed after the client last saw it.
	Stale
)

func (s AuthStatus) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	}
	return "unknown"
}

type TestAuthResponse struct {
	Status AuthStatus `cbor:"1,keyasint"`
}
