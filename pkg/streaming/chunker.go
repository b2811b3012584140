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

// Package streaming splits file content into the fixed-size blocks that
// travel over the Fetch and Store streams.
package streaming

// Chunker is an iterator over consecutive blocks of a byte slice. It is
// positioned before the first block; call Next before Value.
type Chunker struct {
	part   int
	size   int
	source []byte
}

// NewChunker returns a chunker over source yielding blocks of size bytes
// (BlockSize if size is not positive). The final block may be shorter.
func NewChunker(source []byte, size int) *Chunker {
	if size <= 0 {
		size = BlockSize
	}
	return &Chunker{part: -1, size: size, source: source}
}

// Value returns the current block. It aliases the source slice.
func (c *Chunker) Value() []byte {
	end := (c.part + 1) * c.size
	if end >= len(c.source) {
		end = len(c.source)
	}
	return c.source[c.part*c.size : end]
}

// Next advances to the next block, reporting whether there is one.
func (c *Chunker) Next() bool {
	c.part++
	return c.part*c.size < len(c.source)
}
