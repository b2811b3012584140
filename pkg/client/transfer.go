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

package client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"

	"golang.org/x/crypto/blake2b"
	"google.golang.org/grpc"

	"github.com/kurafs/netfs/pkg/fserr"
	fspb "github.com/kurafs/netfs/pkg/rpc/filesystem"
	"github.com/kurafs/netfs/pkg/streaming"
)

var errSend = errors.New("client: send failed")

// Fetch streams the content of path into w and returns the number of
// bytes written. A failure part way leaves w holding a prefix of the
// content; callers wanting atomicity write to a temporary file.
func (c *Client) Fetch(ctx context.Context, path string, w io.Writer) (int64, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := c.rpc.Fetch(ctx, &fspb.FetchRequest{Path: path}, c.callOpts...)
	if err != nil {
		return 0, c.fail("fetch", path, err)
	}

	var n int64
	for {
		b, err := stream.Recv()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, c.fail("fetch", path, err)
		}
		m, err := w.Write(b.Data)
		n += int64(m)
		if err != nil {
			return n, fserr.FromOS("fetch", path, err)
		}
	}
}

// FetchBytes returns the content of path.
func (c *Client) FetchBytes(ctx context.Context, path string) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := c.Fetch(ctx, path, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Digest returns the BLAKE2b-256 sum of the content read from r, the
// digest a StoreHeader carries.
func Digest(r io.Reader) ([]byte, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(h, r); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

// Store replaces the content of path with length bytes read from r. The
// server commits the content atomically once all of it has arrived and,
// when digest is non-nil, matches it. If r yields fewer than length bytes
// or ctx is cancelled, path is left untouched.
func (c *Client) Store(ctx context.Context, path string, r io.Reader, length int64, digest []byte) (int64, error) {
	return c.store(ctx, path, length, digest, func(ctx context.Context, send func([]byte) error) error {
		for b := range streaming.Blocks(ctx, r, fspb.BlockSize, streaming.Depth) {
			if len(b.Data) > 0 {
				if err := send(b.Data); err != nil {
					return err
				}
			}
			if b.Err != nil {
				return fserr.FromOS("store", path, b.Err)
			}
		}
		return ctx.Err()
	})
}

// StoreBytes replaces the content of path with data.
func (c *Client) StoreBytes(ctx context.Context, path string, data []byte) error {
	sum := blake2b.Sum256(data)
	_, err := c.store(ctx, path, int64(len(data)), sum[:], func(ctx context.Context, send func([]byte) error) error {
		chunker := streaming.NewChunker(data, fspb.BlockSize)
		for chunker.Next() {
			if err := send(chunker.Value()); err != nil {
				return err
			}
		}
		return nil
	})
	return err
}

// store runs a Store stream: the header, then the blocks produced by body,
// then the server's verdict. An error from body cancels the stream, which
// makes the server discard what it staged.
func (c *Client) store(ctx context.Context, path string, length int64, digest []byte,
	body func(ctx context.Context, send func([]byte) error) error) (int64, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := c.rpc.Store(ctx, c.callOpts...)
	if err != nil {
		return 0, c.fail("store", path, err)
	}
	header := &fspb.StoreHeader{Path: path, Length: length, Digest: digest}
	if err := stream.Send(&fspb.StoreRequest{Header: header}); err != nil {
		return 0, c.storeFailed(stream, path, err)
	}

	var sendErr error
	send := func(data []byte) error {
		if err := stream.Send(&fspb.StoreRequest{Data: data}); err != nil {
			sendErr = err
			return errSend
		}
		return nil
	}
	if err := body(ctx, send); err != nil {
		if err == errSend {
			return 0, c.storeFailed(stream, path, sendErr)
		}
		cancel()
		if _, ok := err.(*fserr.Error); ok {
			return 0, err
		}
		return 0, c.fail("store", path, err)
	}

	res, err := stream.CloseAndRecv()
	if err != nil {
		return 0, c.fail("store", path, err)
	}
	return res.Written, nil
}

// storeFailed retrieves the status the server ended the stream with; a
// failed Send only reports io.EOF.
func (c *Client) storeFailed(stream grpc.ClientStreamingClient[fspb.StoreRequest, fspb.StoreResponse], path string, err error) error {
	if err == io.EOF {
		if _, rerr := stream.CloseAndRecv(); rerr != nil {
			err = rerr
		}
	}
	return c.fail("store", path, err)
}

// StoreFile replaces the content of path with the current content of f.
// f is read through ReadAt, so its offset is left alone.
func (c *Client) StoreFile(ctx context.Context, path string, f *os.File) error {
	fi, err := f.Stat()
	if err != nil {
		return fserr.FromOS("store", path, err)
	}
	size := fi.Size()

	digest, err := Digest(io.NewSectionReader(f, 0, size))
	if err != nil {
		return fserr.FromOS("store", path, err)
	}
	_, err = c.Store(ctx, path, io.NewSectionReader(f, 0, size), size, digest)
	return err
}
