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

package storageserver

import (
	"bytes"
	"hash"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/blake2b"
	"google.golang.org/grpc"

	"github.com/kurafs/netfs/pkg/attr"
	"github.com/kurafs/netfs/pkg/fserr"
	fspb "github.com/kurafs/netfs/pkg/rpc/filesystem"
)

// uploadSession is one in-flight Store. Content accumulates in a staging
// file that is either renamed over the destination (commit) or removed
// (discard); the destination never holds partial content.
type uploadSession struct {
	path    string
	dest    string
	length  int64
	digest  []byte
	staging *os.File
	hash    hash.Hash
	written int64
	done    bool
}

// newUpload validates h and opens its staging file. Nothing is written
// before the header has been accepted.
func (s *FileServer) newUpload(h *fspb.StoreHeader) (*uploadSession, error) {
	dest, err := s.resolveEntry(h.Path)
	if err != nil {
		return nil, err
	}
	if h.Length < 0 {
		return nil, fserr.Errorf(fserr.InvalidArgument, "negative length %d", h.Length)
	}
	if len(h.Digest) != 0 && len(h.Digest) != blake2b.Size256 {
		return nil, fserr.Errorf(fserr.InvalidArgument, "digest of %d bytes, want %d", len(h.Digest), blake2b.Size256)
	}
	if st, err := attr.Lstat(dest); err == nil && st.IsDir() {
		return nil, &fserr.Error{Kind: fserr.IsDirectory, Op: "store", Path: h.Path}
	}
	if _, err := attr.Lstat(filepath.Dir(dest)); err != nil {
		return nil, fserr.FromOS("store", h.Path, err)
	}

	f, err := os.CreateTemp(s.staging, "upload-*")
	if err != nil {
		return nil, fserr.FromOS("store", h.Path, err)
	}
	digest, _ := blake2b.New256(nil)
	return &uploadSession{
		path:    h.Path,
		dest:    dest,
		length:  h.Length,
		digest:  h.Digest,
		staging: f,
		hash:    digest,
	}, nil
}

// write appends p. Exceeding the declared length fails at once.
func (u *uploadSession) write(p []byte) error {
	if u.written+int64(len(p)) > u.length {
		return fserr.Errorf(fserr.InvalidArgument, "content exceeds declared length %d", u.length)
	}
	n, err := u.staging.Write(p)
	u.written += int64(n)
	if err != nil {
		return fserr.FromOS("store", u.path, err)
	}
	u.hash.Write(p)
	return nil
}

// commit checks the staged content and renames it over the destination.
// The staging file takes the destination's existing permissions, or 0644
// for a new file.
func (u *uploadSession) commit() error {
	if u.written < u.length {
		return fserr.Errorf(fserr.TransferIncomplete, "received %d of %d bytes", u.written, u.length)
	}
	if len(u.digest) != 0 && !bytes.Equal(u.hash.Sum(nil), u.digest) {
		return fserr.Errorf(fserr.TransferIncomplete, "content digest mismatch")
	}

	mode := os.FileMode(0644)
	if fi, err := os.Stat(u.dest); err == nil {
		mode = fi.Mode().Perm()
	}
	if err := u.staging.Chmod(mode); err != nil {
		return fserr.FromOS("store", u.path, err)
	}
	if err := u.staging.Sync(); err != nil {
		return fserr.FromOS("store", u.path, err)
	}
	if err := u.staging.Close(); err != nil {
		return fserr.FromOS("store", u.path, err)
	}
	if err := os.Rename(u.staging.Name(), u.dest); err != nil {
		return fserr.FromOS("store", u.path, err)
	}
	u.done = true
	return nil
}

// discard removes the staging file unless the upload was committed.
func (u *uploadSession) discard() {
	if u.done {
		return
	}
	u.done = true
	u.staging.Close()
	os.Remove(u.staging.Name())
}

// Store receives a StoreHeader followed by content blocks and commits
// them atomically. A short, oversized or corrupted upload, or one whose
// stream breaks, leaves the destination untouched.
func (s *FileServer) Store(stream grpc.ClientStreamingServer[fspb.StoreRequest, fspb.StoreResponse]) error {
	req, err := stream.Recv()
	if err == io.EOF {
		return fserr.Status(fserr.Errorf(fserr.InvalidArgument, "empty store stream"))
	}
	if err != nil {
		return err
	}
	if req.Header == nil {
		return fserr.Status(fserr.Errorf(fserr.InvalidArgument, "store stream must open with a header"))
	}
	if len(req.Data) != 0 {
		return fserr.Status(fserr.Errorf(fserr.InvalidArgument, "header message carries data"))
	}

	u, err := s.newUpload(req.Header)
	if err != nil {
		return fserr.Status(err)
	}
	defer func() {
		if !u.done {
			s.metrics.discarded()
			u.discard()
		}
	}()

	for {
		req, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			s.logger.Infof("store %s: stream broken after %d of %d bytes: %v", u.path, u.written, u.length, err)
			return err
		}
		if req.Header != nil {
			return fserr.Status(fserr.Errorf(fserr.InvalidArgument, "duplicate header"))
		}
		if err := u.write(req.Data); err != nil {
			s.logger.Infof("store %s: %v", u.path, err)
			return fserr.Status(err)
		}
	}

	if err := u.commit(); err != nil {
		s.logger.Infof("store %s: %v", u.path, err)
		return fserr.Status(err)
	}
	s.metrics.stored(u.written)
	s.logger.Debugf("stored %s (%d bytes)", u.path, u.written)
	return stream.SendAndClose(&fspb.StoreResponse{Written: u.written})
}
