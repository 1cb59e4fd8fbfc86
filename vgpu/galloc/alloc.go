// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package galloc

import (
	"sync"
	"unsafe"

	vk "github.com/goki/vulkan"
)

// ptrAt returns base+off, or nil if base is nil.
func ptrAt(base unsafe.Pointer, off uint64) unsafe.Pointer {
	if base == nil {
		return nil
	}
	return unsafe.Pointer(uintptr(base) + uintptr(off))
}

// Allocation is a live suballocation returned by Allocator.Allocate. It
// must be passed back to Allocator.Free exactly once.
type Allocation struct {
	Memory          vk.DeviceMemory
	Offset          uint64
	Size            uint64
	MemoryTypeIndex uint32
	Kind            Kind

	// Mapped is non-nil for Kind == MappedMemory: a pointer to this
	// allocation's region within its chunk's persistent mapping.
	Mapped unsafe.Pointer

	chain *Chain // nil for dedicated (non-shared) allocations
	chunk *chunk
}

// Stats summarizes an Allocator's outstanding reservations, the Go
// analogue of the original's print_stats().
type Stats struct {
	ChainReservedBytes   uint64
	DedicatedBytes       uint64
	DedicatedAllocations int
}

// Allocator suballocates device memory into shared chunks per (Kind,
// memory-type-index), routing any request at or above ChunkSize to its
// own dedicated vk.DeviceMemory block (spec §4.A).
type Allocator struct {
	dev       vk.Device
	chunkSize uint64

	mu     sync.Mutex
	chains map[chainKey]*Chain

	dedicatedMu    sync.Mutex
	dedicated      map[vk.DeviceMemory]uint64
}

// NewAllocator creates an Allocator over dev with the given shared-chunk
// size (use DefaultChunkSize unless a caller has a specific reason not
// to).
func NewAllocator(dev vk.Device, chunkSize uint64) *Allocator {
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}
	return &Allocator{
		dev:       dev,
		chunkSize: chunkSize,
		chains:    map[chainKey]*Chain{},
		dedicated: map[vk.DeviceMemory]uint64{},
	}
}

func (a *Allocator) chainFor(kind Kind, memType uint32) *Chain {
	key := chainKey{kind, memType}
	a.mu.Lock()
	defer a.mu.Unlock()
	ch := a.chains[key]
	if ch == nil {
		ch = newChain(a.dev, kind, memType, a.chunkSize)
		a.chains[key] = ch
	}
	return ch
}

// Allocate reserves size bytes aligned to align from the given memory
// type, classified by kind. Requests at or above the allocator's chunk
// size always get a dedicated, individually vkAllocateMemory'd block;
// smaller requests are packed into a shared chunk.
func (a *Allocator) Allocate(size, align uint64, memTypeIndex uint32, kind Kind) (*Allocation, error) {
	if size >= a.chunkSize {
		c, err := newChunk(a.dev, size, memTypeIndex, kind == MappedMemory)
		if err != nil {
			return nil, err
		}
		off, _ := c.tryAlloc(size, align)
		a.dedicatedMu.Lock()
		a.dedicated[c.memory] = size
		a.dedicatedMu.Unlock()
		return &Allocation{
			Memory: c.memory, Offset: off, Size: size,
			MemoryTypeIndex: memTypeIndex, Kind: kind,
			Mapped: ptrAt(c.mapped, off),
			chunk:  c,
		}, nil
	}

	ch := a.chainFor(kind, memTypeIndex)
	c, off, err := ch.allocate(size, align)
	if err != nil {
		return nil, err
	}
	return &Allocation{
		Memory: c.memory, Offset: off, Size: size,
		MemoryTypeIndex: memTypeIndex, Kind: kind,
		Mapped: ptrAt(c.mapped, off),
		chain:  ch, chunk: c,
	}, nil
}

// Free returns alloc's reservation. It is an error to call Free twice on
// the same Allocation; Free does not detect or report it.
func (a *Allocator) Free(alloc *Allocation) {
	if alloc == nil {
		return
	}
	if alloc.chain == nil {
		// dedicated allocation: free the whole chunk.
		if alloc.chunk.mapped != nil {
			vk.UnmapMemory(a.dev, alloc.chunk.memory)
		}
		vk.FreeMemory(a.dev, alloc.chunk.memory, nil)
		a.dedicatedMu.Lock()
		delete(a.dedicated, alloc.chunk.memory)
		a.dedicatedMu.Unlock()
		return
	}
	alloc.chain.free(alloc.chunk, alloc.Offset, alloc.Size)
}

// FlushEmptyAllocations walks every chain and frees fully-empty chunks
// from their front, returning how many chunks were freed. Cheap to call
// speculatively (e.g. once per frame, or via vgpu/drd's
// PostponeAllocatorFlush) since chains with nothing to flush are a
// no-op.
func (a *Allocator) FlushEmptyAllocations() int {
	a.mu.Lock()
	chains := make([]*Chain, 0, len(a.chains))
	for _, ch := range a.chains {
		chains = append(chains, ch)
	}
	a.mu.Unlock()
	total := 0
	for _, ch := range chains {
		total += ch.flushEmptyFront()
	}
	return total
}

// Stats reports current reservations across all chains and dedicated
// allocations.
func (a *Allocator) Stats() Stats {
	a.mu.Lock()
	chains := make([]*Chain, 0, len(a.chains))
	for _, ch := range a.chains {
		chains = append(chains, ch)
	}
	a.mu.Unlock()

	var s Stats
	for _, ch := range chains {
		s.ChainReservedBytes += ch.reservedBytes()
	}
	a.dedicatedMu.Lock()
	for _, sz := range a.dedicated {
		s.DedicatedBytes += sz
		s.DedicatedAllocations++
	}
	a.dedicatedMu.Unlock()
	return s
}
