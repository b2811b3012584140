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

// Package client is the typed client of the netfs storage server. It
// speaks netfs.FileService, drives the Fetch and Store streams and
// reports every failure as a classified fserr error.
package client

import (
	"context"
	"io"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/kurafs/netfs/pkg/attr"
	"github.com/kurafs/netfs/pkg/fserr"
	"github.com/kurafs/netfs/pkg/log"
	fspb "github.com/kurafs/netfs/pkg/rpc/filesystem"
)

// Client issues requests against a single storage server. It is safe for
// concurrent use.
type Client struct {
	logger   *log.Logger
	rpc      fspb.FileServiceClient
	conn     *grpc.ClientConn
	timeout  time.Duration
	callOpts []grpc.CallOption
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds every unary call by d. Streams are not bounded.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithCompression compresses every message with the named compressor
// ("zstd"). "none" and the empty string disable compression.
func WithCompression(name string) Option {
	return func(c *Client) {
		if name != "" && name != "none" {
			c.callOpts = append(c.callOpts, grpc.UseCompressor(name))
		}
	}
}

// Dial connects to the storage server at addr. The connection is
// established lazily by the first call.
func Dial(logger *log.Logger, addr string, options ...Option) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fserr.FromStatus("dial", addr, err)
	}
	c := New(logger, conn, options...)
	c.conn = conn
	return c, nil
}

// New returns a client issuing requests over cc. The caller keeps
// ownership of cc.
func New(logger *log.Logger, cc grpc.ClientConnInterface, options ...Option) *Client {
	c := &Client{
		logger: logger,
		rpc:    fspb.NewFileServiceClient(cc),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Close closes the connection opened by Dial.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *Client) unary(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}

func (c *Client) fail(op, path string, err error) error {
	err = fserr.FromStatus(op, path, err)
	if fserr.Is(err, fserr.TransportFailure) {
		c.logger.Warnf("%s %s: %v", op, path, err)
	} else {
		c.logger.Debugf("%s %s: %v", op, path, err)
	}
	return err
}

// CreateFile creates path exclusively with the permission bits of mode.
func (c *Client) CreateFile(ctx context.Context, path string, mode os.FileMode) error {
	ctx, cancel := c.unary(ctx)
	defer cancel()

	_, err := c.rpc.CreateFile(ctx, &fspb.CreateRequest{Path: path, Mode: uint32(mode.Perm())}, c.callOpts...)
	if err != nil {
		return c.fail("create", path, err)
	}
	return nil
}

// Stat returns the metadata of path.
func (c *Client) Stat(ctx context.Context, path string) (attr.Stat, error) {
	ctx, cancel := c.unary(ctx)
	defer cancel()

	a, err := c.rpc.GetFileStat(ctx, &fspb.PathRequest{Path: path}, c.callOpts...)
	if err != nil {
		return attr.Stat{}, c.fail("stat", path, err)
	}
	return attr.Decode(a), nil
}

// MakeDir creates the directory path.
func (c *Client) MakeDir(ctx context.Context, path string, mode os.FileMode) error {
	ctx, cancel := c.unary(ctx)
	defer cancel()

	_, err := c.rpc.MakeDir(ctx, &fspb.CreateRequest{Path: path, Mode: uint32(mode.Perm())}, c.callOpts...)
	if err != nil {
		return c.fail("mkdir", path, err)
	}
	return nil
}

// RemoveDir removes the empty directory path.
func (c *Client) RemoveDir(ctx context.Context, path string) error {
	ctx, cancel := c.unary(ctx)
	defer cancel()

	if _, err := c.rpc.RemoveDir(ctx, &fspb.PathRequest{Path: path}, c.callOpts...); err != nil {
		return c.fail("rmdir", path, err)
	}
	return nil
}

// RemoveFile removes the non-directory path.
func (c *Client) RemoveFile(ctx context.Context, path string) error {
	ctx, cancel := c.unary(ctx)
	defer cancel()

	if _, err := c.rpc.RemoveFile(ctx, &fspb.PathRequest{Path: path}, c.callOpts...); err != nil {
		return c.fail("unlink", path, err)
	}
	return nil
}

// Rename moves oldPath to newPath, replacing newPath if it exists.
func (c *Client) Rename(ctx context.Context, oldPath, newPath string) error {
	ctx, cancel := c.unary(ctx)
	defer cancel()

	if _, err := c.rpc.Rename(ctx, &fspb.RenameRequest{OldPath: oldPath, NewPath: newPath}, c.callOpts...); err != nil {
		return c.fail("rename", oldPath, err)
	}
	return nil
}

// TestAuth asks whether the server's copy of path changed after mtime.
func (c *Client) TestAuth(ctx context.Context, path string, mtime attr.Timestamp) (fspb.AuthStatus, error) {
	ctx, cancel := c.unary(ctx)
	defer cancel()

	res, err := c.rpc.TestAuth(ctx, &fspb.TestAuthRequest{Path: path, Mtime: attr.EncodeTime(mtime)}, c.callOpts...)
	if err != nil {
		return fspb.Stale, c.fail("testauth", path, err)
	}
	return res.Status, nil
}

// DirEntry is a name listed by ReadDir. Mode holds Unix file type bits.
type DirEntry struct {
	Name string
	Mode uint32
}

// ReadDir lists path. The listing starts with "." and "..", followed by
// the children in the server's directory order.
func (c *Client) ReadDir(ctx context.Context, path string) ([]DirEntry, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := c.rpc.FetchDir(ctx, &fspb.PathRequest{Path: path}, c.callOpts...)
	if err != nil {
		return nil, c.fail("readdir", path, err)
	}
	var entries []DirEntry
	for {
		e, err := stream.Recv()
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return nil, c.fail("readdir", path, err)
		}
		entries = append(entries, DirEntry{Name: e.Name, Mode: e.Mode})
	}
}
