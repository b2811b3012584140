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

package streaming

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

func collect(t *testing.T, ch <-chan Block) ([]byte, int, error) {
	t.Helper()

	var buf bytes.Buffer
	var n int
	for b := range ch {
		if len(b.Data) > BlockSize {
			t.Errorf("block of %d bytes exceeds block size", len(b.Data))
		}
		buf.Write(b.Data)
		n++
		if b.Err != nil {
			return buf.Bytes(), n, b.Err
		}
	}
	return buf.Bytes(), n, nil
}

func TestBlocks(t *testing.T) {
	for _, size := range []int{0, 1, BlockSize - 1, BlockSize, BlockSize + 1, 3*BlockSize + 17} {
		source := bytes.Repeat([]byte{'x'}, size)
		got, n, err := collect(t, Blocks(context.Background(), bytes.NewReader(source), BlockSize, Depth))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, source) {
			t.Errorf("size %d: content differs", size)
		}
		if want := (size + BlockSize - 1) / BlockSize; n != want {
			t.Errorf("size %d: expected %d blocks, got %d", size, want, n)
		}
	}
}

type failingReader struct {
	remaining int
}

var errDisk = errors.New("disk on fire")

func (r *failingReader) Read(p []byte) (int, error) {
	if r.remaining == 0 {
		return 0, errDisk
	}
	if len(p) > r.remaining {
		p = p[:r.remaining]
	}
	for i := range p {
		p[i] = 'y'
	}
	r.remaining -= len(p)
	return len(p), nil
}

func TestBlocksReadError(t *testing.T) {
	got, _, err := collect(t, Blocks(context.Background(), &failingReader{remaining: BlockSize + 10}, BlockSize, Depth))
	if !errors.Is(err, errDisk) {
		t.Fatalf("expected read error, got %v", err)
	}
	if len(got) != BlockSize+10 {
		t.Errorf("expected %d bytes before the error, got %d", BlockSize+10, len(got))
	}
}

// blockingReader never runs dry.
type blockingReader struct{}

func (blockingReader) Read(p []byte) (int, error) { return len(p), nil }

func TestBlocksBackpressure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := Blocks(ctx, blockingReader{}, BlockSize, 2)

	// The producer fills the channel and then blocks.
	deadline := time.Now().Add(5 * time.Second)
	for len(ch) < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(10 * time.Millisecond)
	if len(ch) != 2 {
		t.Fatalf("expected a full channel of 2 blocks, got %d", len(ch))
	}

	cancel()
	for range ch {
	}
}

func TestBlocksEmptyReader(t *testing.T) {
	_, n, err := collect(t, Blocks(context.Background(), io.LimitReader(blockingReader{}, 0), 0, 0))
	if err != nil || n != 0 {
		t.Errorf("expected no blocks, got %d (err %v)", n, err)
	}
}
