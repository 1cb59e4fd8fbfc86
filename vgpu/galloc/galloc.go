// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package galloc is a suballocating device-memory allocator for Vulkan.
// It groups small, same-lifetime-class allocations into shared ~8MiB
// chunks per (allocation kind, memory-type-index) chain, and routes
// anything too large to share straight to its own dedicated
// vk.DeviceMemory block, so the number of live vkAllocateMemory calls
// stays far below the driver-enforced limit regardless of how many
// buffers/images the engine creates.
package galloc

import (
	"errors"
	"fmt"
	"sort"
	"unsafe"

	vk "github.com/goki/vulkan"
)

var errAllocFailed = errors.New("galloc: allocation from a freshly created chunk unexpectedly failed")

// Kind partitions allocations by expected lifetime/usage so that chunks
// never mix, e.g., a long-lived uniform buffer with a one-frame staging
// allocation — mixing them would pin an entire chunk alive because of
// one stray long-lived suballocation.
type Kind int

const (
	// Normal is a general-purpose, long-lived allocation (buffers,
	// non-optimal images).
	Normal Kind = iota
	// OptimalImage is a long-lived image using
	// VkMemoryRequirements from an optimally-tiled vk.Image, which on
	// some drivers has a larger bufferImageGranularity than Normal.
	OptimalImage
	// ShortLived is scoped to a frame or a transfer batch (staging
	// buffers, per-frame uniform data).
	ShortLived
	// ShortLivedOptimalImage is the short-lived counterpart of
	// OptimalImage.
	ShortLivedOptimalImage
	// MappedMemory is host-visible memory that stays persistently
	// mapped for its whole lifetime (the allocator maps it once, at
	// chunk-creation time, instead of per-allocation).
	MappedMemory

	kindN
)

func (k Kind) String() string {
	switch k {
	case Normal:
		return "normal"
	case OptimalImage:
		return "optimal-image"
	case ShortLived:
		return "short-lived"
	case ShortLivedOptimalImage:
		return "short-lived-optimal-image"
	case MappedMemory:
		return "mapped-memory"
	default:
		return "unknown"
	}
}

// DefaultChunkSize is the shared-chunk allocation granularity (spec
// §4.A): requests at or above this size always get their own dedicated
// vk.DeviceMemory instead of being packed into a chunk.
const DefaultChunkSize = 8 * 1024 * 1024

// freeBlock is a run of free bytes within a chunk.
type freeBlock struct {
	offset, size uint64
}

// chunk is one shared vk.DeviceMemory block subdivided by a sorted,
// coalescing free list.
type chunk struct {
	memory     vk.DeviceMemory
	size       uint64
	mapped     unsafe.Pointer
	free       []freeBlock
	allocCount int
}

func newChunk(dev vk.Device, size uint64, memTypeIdx uint32, mapNow bool) (*chunk, error) {
	var mem vk.DeviceMemory
	ret := vk.AllocateMemory(dev, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  vk.DeviceSize(size),
		MemoryTypeIndex: memTypeIdx,
	}, nil, &mem)
	if ret != vk.Success {
		return nil, fmt.Errorf("galloc: vkAllocateMemory(%d bytes) failed: %d", size, ret)
	}
	c := &chunk{memory: mem, size: size, free: []freeBlock{{0, size}}}
	if mapNow {
		var ptr unsafe.Pointer
		mret := vk.MapMemory(dev, mem, 0, vk.DeviceSize(size), 0, &ptr)
		if mret != vk.Success {
			vk.FreeMemory(dev, mem, nil)
			return nil, fmt.Errorf("galloc: vkMapMemory failed: %d", mret)
		}
		c.mapped = ptr
	}
	return c, nil
}

func (c *chunk) isEmpty() bool { return c.allocCount == 0 }

// tryAlloc attempts a first-fit allocation of size bytes aligned to
// align; returns the offset and true on success.
func (c *chunk) tryAlloc(size, align uint64) (uint64, bool) {
	for i, fb := range c.free {
		start := alignUp(fb.offset, align)
		end := start + size
		if end > fb.offset+fb.size {
			continue
		}
		// consume [start,end) out of fb, leaving up to two remaining
		// free runs (before start, after end).
		rest := make([]freeBlock, 0, len(c.free)+1)
		rest = append(rest, c.free[:i]...)
		if start > fb.offset {
			rest = append(rest, freeBlock{fb.offset, start - fb.offset})
		}
		if end < fb.offset+fb.size {
			rest = append(rest, freeBlock{end, fb.offset + fb.size - end})
		}
		rest = append(rest, c.free[i+1:]...)
		c.free = rest
		c.allocCount++
		return start, true
	}
	return 0, false
}

// release returns [offset,offset+size) to the free list, coalescing with
// adjacent runs.
func (c *chunk) release(offset, size uint64) {
	c.free = append(c.free, freeBlock{offset, size})
	sort.Slice(c.free, func(i, j int) bool { return c.free[i].offset < c.free[j].offset })
	merged := c.free[:1]
	for _, fb := range c.free[1:] {
		last := &merged[len(merged)-1]
		if last.offset+last.size == fb.offset {
			last.size += fb.size
		} else {
			merged = append(merged, fb)
		}
	}
	c.free = merged
	c.allocCount--
}

func alignUp(v, align uint64) uint64 {
	if align == 0 {
		return v
	}
	if r := v % align; r != 0 {
		return v + (align - r)
	}
	return v
}
