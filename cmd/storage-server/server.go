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
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/kurafs/netfs/pkg/attr"
	"github.com/kurafs/netfs/pkg/fserr"
	"github.com/kurafs/netfs/pkg/log"
	fspb "github.com/kurafs/netfs/pkg/rpc/filesystem"
	"github.com/kurafs/netfs/pkg/streaming"
)

// stagingDir holds in-flight uploads. It lives inside the export root so
// that committing an upload is a rename within one filesystem.
const stagingDir = ".netfs-staging"

// readDirBatch is the number of directory entries read per getdents.
const readDirBatch = 128

// FileServer executes netfs.FileService requests against an export root.
// It holds no per-call state; concurrent requests against the same path
// are not serialized and the last completed Store wins.
type FileServer struct {
	logger  *log.Logger
	root    string
	staging string
	metrics *metrics
}

var _ fspb.FileServiceServer = &FileServer{}

// NewFileServer returns a server for exportRoot, creating it and its
// staging area if needed. Leftover uploads from an earlier run are
// discarded.
func NewFileServer(logger *log.Logger, exportRoot string) (*FileServer, error) {
	return newFileServer(logger, exportRoot, nil)
}

func newFileServer(logger *log.Logger, exportRoot string, m *metrics) (*FileServer, error) {
	root, err := filepath.Abs(exportRoot)
	if err != nil {
		return nil, err
	}
	if err := os.RemoveAll(filepath.Join(root, stagingDir)); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(root, stagingDir), 0700); err != nil {
		return nil, err
	}
	// Containment checks compare against the root with its links resolved.
	if root, err = filepath.EvalSymlinks(root); err != nil {
		return nil, err
	}
	staging := filepath.Join(root, stagingDir)
	return &FileServer{
		logger:  logger,
		root:    root,
		staging: staging,
		metrics: m,
	}, nil
}

// resolve maps a wire path onto the export root. The path is cleaned as
// a rooted path first, so ".." can never climb out of the root, and its
// parent directory must still lie inside the root once symbolic links
// are followed. The last component is not followed; operations that open
// it do so with O_NOFOLLOW.
func (s *FileServer) resolve(p string) (string, error) {
	if p == "" || strings.IndexByte(p, 0) >= 0 {
		return "", fserr.Errorf(fserr.InvalidArgument, "invalid path %q", p)
	}
	clean := path.Clean("/" + p)
	if clean == "/"+stagingDir || strings.HasPrefix(clean, "/"+stagingDir+"/") {
		return "", fserr.Errorf(fserr.InvalidArgument, "reserved path %q", clean)
	}
	local := filepath.Join(s.root, filepath.FromSlash(clean))
	if local == s.root {
		return local, nil
	}

	parent, err := filepath.EvalSymlinks(filepath.Dir(local))
	if err != nil {
		return "", fserr.FromOS("resolve", clean, err)
	}
	if !s.contains(parent) {
		return "", fserr.Errorf(fserr.PermissionDenied, "%s leaves the export root", clean)
	}
	return filepath.Join(parent, filepath.Base(local)), nil
}

// contains reports whether the link-free path p is the root or lies
// below it.
func (s *FileServer) contains(p string) bool {
	return p == s.root || strings.HasPrefix(p, strings.TrimSuffix(s.root, string(filepath.Separator))+string(filepath.Separator))
}

// open opens local for reading without following a symbolic link in its
// last component.
func open(local string) (*os.File, error) {
	return os.OpenFile(local, os.O_RDONLY|unix.O_NOFOLLOW, 0)
}

// resolveEntry is resolve for operations that must not target the export
// root itself.
func (s *FileServer) resolveEntry(p string) (string, error) {
	local, err := s.resolve(p)
	if err != nil {
		return "", err
	}
	if local == s.root {
		return "", fserr.Errorf(fserr.InvalidArgument, "operation not permitted on the root")
	}
	return local, nil
}

func (s *FileServer) CreateFile(ctx context.Context, req *fspb.CreateRequest) (*fspb.StatusResponse, error) {
	local, err := s.resolveEntry(req.Path)
	if err != nil {
		return nil, fserr.Status(err)
	}
	f, err := os.OpenFile(local, os.O_WRONLY|os.O_CREATE|os.O_EXCL, os.FileMode(req.Mode).Perm())
	if err != nil {
		return nil, fserr.Status(fserr.FromOS("create", req.Path, err))
	}
	if err := f.Close(); err != nil {
		return nil, fserr.Status(fserr.FromOS("create", req.Path, err))
	}
	s.logger.Debugf("created %s", req.Path)
	return &fspb.StatusResponse{}, nil
}

func (s *FileServer) GetFileStat(ctx context.Context, req *fspb.PathRequest) (*fspb.Attr, error) {
	local, err := s.resolve(req.Path)
	if err != nil {
		return nil, fserr.Status(err)
	}
	st, err := attr.Lstat(local)
	if err != nil {
		return nil, fserr.Status(fserr.FromOS("stat", req.Path, err))
	}
	return attr.Encode(st), nil
}

func (s *FileServer) MakeDir(ctx context.Context, req *fspb.CreateRequest) (*fspb.StatusResponse, error) {
	local, err := s.resolveEntry(req.Path)
	if err != nil {
		return nil, fserr.Status(err)
	}
	if err := os.Mkdir(local, os.FileMode(req.Mode).Perm()); err != nil {
		return nil, fserr.Status(fserr.FromOS("mkdir", req.Path, err))
	}
	s.logger.Debugf("made directory %s", req.Path)
	return &fspb.StatusResponse{}, nil
}

func (s *FileServer) RemoveDir(ctx context.Context, req *fspb.PathRequest) (*fspb.StatusResponse, error) {
	local, err := s.resolveEntry(req.Path)
	if err != nil {
		return nil, fserr.Status(err)
	}
	if err := unix.Rmdir(local); err != nil {
		return nil, fserr.Status(fserr.FromOS("rmdir", req.Path, err))
	}
	s.logger.Debugf("removed directory %s", req.Path)
	return &fspb.StatusResponse{}, nil
}

func (s *FileServer) RemoveFile(ctx context.Context, req *fspb.PathRequest) (*fspb.StatusResponse, error) {
	local, err := s.resolveEntry(req.Path)
	if err != nil {
		return nil, fserr.Status(err)
	}
	if err := unix.Unlink(local); err != nil {
		// Some platforms report EPERM rather than EISDIR for directories.
		if st, serr := attr.Lstat(local); serr == nil && st.IsDir() {
			return nil, fserr.Status(&fserr.Error{Kind: fserr.IsDirectory, Op: "unlink", Path: req.Path})
		}
		return nil, fserr.Status(fserr.FromOS("unlink", req.Path, err))
	}
	s.logger.Debugf("removed %s", req.Path)
	return &fspb.StatusResponse{}, nil
}

func (s *FileServer) Rename(ctx context.Context, req *fspb.RenameRequest) (*fspb.StatusResponse, error) {
	oldLocal, err := s.resolveEntry(req.OldPath)
	if err != nil {
		return nil, fserr.Status(err)
	}
	newLocal, err := s.resolveEntry(req.NewPath)
	if err != nil {
		return nil, fserr.Status(err)
	}
	if err := os.Rename(oldLocal, newLocal); err != nil {
		return nil, fserr.Status(fserr.FromOS("rename", req.OldPath, err))
	}
	s.logger.Debugf("renamed %s to %s", req.OldPath, req.NewPath)
	return &fspb.StatusResponse{}, nil
}

// TestAuth reports Stale when the file changed after the client's
// mtime, and Fresh when the mtimes are equal or the client's is newer.
func (s *FileServer) TestAuth(ctx context.Context, req *fspb.TestAuthRequest) (*fspb.TestAuthResponse, error) {
	local, err := s.resolve(req.Path)
	if err != nil {
		return nil, fserr.Status(err)
	}
	st, err := attr.Lstat(local)
	if err != nil {
		return nil, fserr.Status(fserr.FromOS("testauth", req.Path, err))
	}
	res := &fspb.TestAuthResponse{Status: fspb.Fresh}
	if attr.Newer(st.Mtime, attr.DecodeTime(req.Mtime)) {
		res.Status = fspb.Stale
	}
	return res, nil
}

// FetchDir streams "." and ".." followed by the children of the
// directory in the order the filesystem returns them.
func (s *FileServer) FetchDir(req *fspb.PathRequest, stream grpc.ServerStreamingServer[fspb.DirEntry]) error {
	local, err := s.resolve(req.Path)
	if err != nil {
		return fserr.Status(err)
	}
	dir, err := open(local)
	if err != nil {
		return fserr.Status(fserr.FromOS("readdir", req.Path, err))
	}
	defer dir.Close()

	fi, err := dir.Stat()
	if err != nil {
		return fserr.Status(fserr.FromOS("readdir", req.Path, err))
	}
	if !fi.IsDir() {
		return fserr.Status(&fserr.Error{Kind: fserr.NotDirectory, Op: "readdir", Path: req.Path})
	}

	for _, name := range []string{".", ".."} {
		if err := stream.Send(&fspb.DirEntry{Name: name, Mode: attr.TypeDir}); err != nil {
			return err
		}
	}
	atRoot := local == s.root
	for {
		entries, err := dir.ReadDir(readDirBatch)
		for _, e := range entries {
			if atRoot && e.Name() == stagingDir {
				continue
			}
			entry := &fspb.DirEntry{Name: e.Name(), Mode: attr.UnixMode(e.Type()) & attr.TypeMask}
			if err := stream.Send(entry); err != nil {
				return err
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fserr.Status(fserr.FromOS("readdir", req.Path, err))
		}
	}
}

// Fetch streams the file in blocks of fspb.BlockSize. Reading runs
// ahead of sending by at most streaming.Depth blocks.
func (s *FileServer) Fetch(req *fspb.FetchRequest, stream grpc.ServerStreamingServer[fspb.Block]) error {
	local, err := s.resolve(req.Path)
	if err != nil {
		return fserr.Status(err)
	}
	f, err := open(local)
	if err != nil {
		return fserr.Status(fserr.FromOS("fetch", req.Path, err))
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return fserr.Status(fserr.FromOS("fetch", req.Path, err))
	}
	if fi.IsDir() {
		return fserr.Status(&fserr.Error{Kind: fserr.IsDirectory, Op: "fetch", Path: req.Path})
	}

	ctx, cancel := context.WithCancel(stream.Context())
	defer cancel()

	var sent int64
	for b := range streaming.Blocks(ctx, f, fspb.BlockSize, streaming.Depth) {
		if len(b.Data) > 0 {
			if err := stream.Send(&fspb.Block{Data: b.Data}); err != nil {
				s.logger.Debugf("fetch %s: send failed after %d bytes: %v", req.Path, sent, err)
				return err
			}
			sent += int64(len(b.Data))
			s.metrics.fetched(len(b.Data))
		}
		if b.Err != nil {
			s.logger.Errorf("fetch %s: read failed after %d bytes: %v", req.Path, sent, b.Err)
			return fserr.Status(fserr.FromOS("fetch", req.Path, b.Err))
		}
	}
	if err := ctx.Err(); err != nil {
		return status.FromContextError(err).Err()
	}
	s.logger.Debugf("fetched %s (%d bytes)", req.Path, sent)
	return nil
}
