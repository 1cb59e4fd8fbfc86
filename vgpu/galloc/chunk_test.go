package galloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChunk(size uint64) *chunk {
	return &chunk{size: size, free: []freeBlock{{0, size}}}
}

func TestChunkAllocAndRelease(t *testing.T) {
	c := newTestChunk(1024)

	off, ok := c.tryAlloc(256, 16)
	require.True(t, ok)
	assert.Equal(t, uint64(0), off)
	assert.Equal(t, 1, c.allocCount)

	off2, ok := c.tryAlloc(256, 16)
	require.True(t, ok)
	assert.Equal(t, uint64(256), off2)
	assert.False(t, c.isEmpty())

	c.release(off, 256)
	assert.Equal(t, 1, c.allocCount)

	c.release(off2, 256)
	assert.True(t, c.isEmpty())
	assert.Equal(t, []freeBlock{{0, 1024}}, c.free)
}

func TestChunkAllocRespectsAlignment(t *testing.T) {
	c := newTestChunk(1024)
	// consume the first 8 bytes so the next request must skip ahead to
	// satisfy a 64-byte alignment.
	off, ok := c.tryAlloc(8, 1)
	require.True(t, ok)
	assert.Equal(t, uint64(0), off)

	off2, ok := c.tryAlloc(32, 64)
	require.True(t, ok)
	assert.Equal(t, uint64(64), off2)
}

func TestChunkAllocFailsWhenFull(t *testing.T) {
	c := newTestChunk(128)
	_, ok := c.tryAlloc(128, 1)
	require.True(t, ok)
	_, ok = c.tryAlloc(1, 1)
	assert.False(t, ok)
}

func TestChunkReleaseCoalescesAdjacentRuns(t *testing.T) {
	c := newTestChunk(300)
	a, _ := c.tryAlloc(100, 1)
	b, _ := c.tryAlloc(100, 1)
	_, _ = c.tryAlloc(100, 1)

	c.release(a, 100)
	c.release(b, 100)
	// the freed [0,200) run should have merged into one block, distinct
	// from the still-allocated [200,300) region.
	require.Len(t, c.free, 1)
	assert.Equal(t, freeBlock{0, 200}, c.free[0])
}

func TestAlignUp(t *testing.T) {
	assert.Equal(t, uint64(0), alignUp(0, 16))
	assert.Equal(t, uint64(16), alignUp(1, 16))
	assert.Equal(t, uint64(16), alignUp(16, 16))
	assert.Equal(t, uint64(5), alignUp(5, 0))
}
