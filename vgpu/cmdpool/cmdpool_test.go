package cmdpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cogentcore.org/vgpuengine/vgpu"
)

// newTestManager seeds the free list directly so Get() never exercises
// vgpu.CmdPool.ConfigTransient, which needs a real vk.Device.
func newTestManager(prealloc int) *Manager {
	m := NewManager(&vgpu.Device{}, &vgpu.Queue{})
	for i := 0; i < prealloc; i++ {
		m.free = append(m.free, &vgpu.CmdPool{})
	}
	return m
}

func TestGetReusesFreeList(t *testing.T) {
	m := newTestManager(1)
	cp := m.Get()
	require.NotNil(t, cp)
	assert.Empty(t, m.free)
	assert.Len(t, m.inUse, 1)
}

func TestFlipCollectsInUseAndStartsNewGeneration(t *testing.T) {
	m := newTestManager(2)
	cp1 := m.Get()
	cp2 := m.Get()

	b := m.Flip()
	assert.Equal(t, uint64(1), b.FlipID)
	assert.ElementsMatch(t, []*vgpu.CmdPool{cp1, cp2}, b.pools)
	assert.Empty(t, m.inUse)

	b2 := m.Flip()
	assert.Equal(t, uint64(2), b2.FlipID)
	assert.Empty(t, b2.pools)
}
