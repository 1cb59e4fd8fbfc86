// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package galloc

import (
	"sync"

	vk "github.com/goki/vulkan"
)

// chainKey identifies one Chain: allocations of the same Kind and
// memory-type index always share chunks.
type chainKey struct {
	kind     Kind
	memType  uint32
}

// Chain manages the chunks for one (Kind, memory-type-index) pair.
type Chain struct {
	mu        sync.Mutex
	dev       vk.Device
	kind      Kind
	memType   uint32
	chunkSize uint64
	// chunks is ordered oldest-first; flushEmptyFront only ever removes from
	// the front, so a chunk that's gone empty but isn't at the front
	// stays allocated until the ones before it also empty out. This
	// avoids shuffling live suballocation offsets out from under any
	// Allocation still referencing them.
	chunks []*chunk
}

func newChain(dev vk.Device, kind Kind, memType uint32, chunkSize uint64) *Chain {
	return &Chain{dev: dev, kind: kind, memType: memType, chunkSize: chunkSize}
}

// allocate finds or creates room for size bytes aligned to align,
// returning the owning chunk and offset.
func (ch *Chain) allocate(size, align uint64) (*chunk, uint64, error) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	for _, c := range ch.chunks {
		if off, ok := c.tryAlloc(size, align); ok {
			return c, off, nil
		}
	}
	sz := ch.chunkSize
	if size > sz {
		sz = size
	}
	c, err := newChunk(ch.dev, sz, ch.memType, ch.kind == MappedMemory)
	if err != nil {
		return nil, 0, err
	}
	ch.chunks = append(ch.chunks, c)
	off, ok := c.tryAlloc(size, align)
	if !ok {
		// can't happen: c was sized to fit size, but guard anyway.
		return nil, 0, errAllocFailed
	}
	return c, off, nil
}

// free releases [offset,offset+size) back to c's free list. A chunk
// that becomes empty is kept around for reuse within the chain; it's
// only returned to the driver by a later flushEmptyFront/
// flushEmptyFrontLocked call.
func (ch *Chain) free(c *chunk, offset, size uint64) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	c.release(offset, size)
}

// flushEmptyFront frees empty chunks starting from the front of the
// chain while they remain empty, returning how many were freed.
func (ch *Chain) flushEmptyFront() int {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.flushEmptyFrontLocked()
}

func (ch *Chain) flushEmptyFrontLocked() int {
	freed := 0
	for len(ch.chunks) > 0 && ch.chunks[0].isEmpty() {
		c := ch.chunks[0]
		if c.mapped != nil {
			vk.UnmapMemory(ch.dev, c.memory)
		}
		vk.FreeMemory(ch.dev, c.memory, nil)
		ch.chunks = ch.chunks[1:]
		freed++
	}
	return freed
}

// reservedBytes returns the sum of chunk sizes currently allocated in
// this chain, used/free alike.
func (ch *Chain) reservedBytes() uint64 {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	var total uint64
	for _, c := range ch.chunks {
		total += c.size
	}
	return total
}
