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
	"context"
	"io"
)

// Block is one block read by a producer. A block with a non-nil Err is
// the last one sent.
type Block struct {
	Data []byte
	Err  error
}

// Blocks starts a producer goroutine reading r in blocks of size bytes
// into a channel buffered to depth blocks. The producer blocks once the
// channel is full, so at most depth blocks are held in memory ahead of
// the consumer. The channel is closed after the final block, after a
// block carrying a read error, or once ctx is done. Consumers that stop
// early must cancel ctx to release the producer.
func Blocks(ctx context.Context, r io.Reader, size, depth int) <-chan Block {
	if size <= 0 {
		size = BlockSize
	}
	if depth <= 0 {
		depth = Depth
	}
	out := make(chan Block, depth)

	go func() {
		defer close(out)

		for {
			buf := make([]byte, size)
			n, err := io.ReadFull(r, buf)
			if err == io.EOF {
				return
			}
			if err == io.ErrUnexpectedEOF {
				err = nil
			}

			var b Block
			if n > 0 {
				b.Data = buf[:n]
			}
			b.Err = err
			select {
			case out <- b:
			case <-ctx.Done():
				return
			}
			if err != nil || n < size {
				return
			}
		}
	}()
	return out
}
