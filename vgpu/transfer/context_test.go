package transfer

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"

	vk "github.com/goki/vulkan"

	"cogentcore.org/vgpuengine/vgpu"
)

func fakeBuffer(n int) vk.Buffer { return vk.Buffer(unsafe.Pointer(uintptr(n + 1))) }

func newTestContext() *Context {
	return &Context{
		acquisitions:    map[*vgpu.Queue][]bufferAcqRel{},
		imgAcquisitions: map[*vgpu.Queue][]imageAcqRel{},
		releases:        map[*vgpu.Queue][]bufferAcqRel{},
		imgReleases:     map[*vgpu.Queue][]imageAcqRel{},
	}
}

func TestRemoveOperationsForDropsMatchingCopyAndCompletesFuture(t *testing.T) {
	c := newTestContext()
	target := fakeBuffer(1)
	other := fakeBuffer(2)
	f1, f2 := newFuture(), newFuture()
	c.bufferCopies = []*bufferCopy{
		{dst: target, future: f1},
		{dst: other, future: f2},
	}

	c.RemoveOperationsFor(target)

	assert.Len(t, c.bufferCopies, 1)
	assert.Equal(t, other, c.bufferCopies[0].dst)
	assert.NoError(t, f1.Wait())
	select {
	case <-f2.Done():
		t.Fatal("unrelated copy's future must not be completed")
	default:
	}
}

func TestClearCompletesAllFuturesAndEmptiesQueues(t *testing.T) {
	c := newTestContext()
	bf := newFuture()
	imf := newFuture()
	c.bufferCopies = []*bufferCopy{{dst: fakeBuffer(1), future: bf}}
	c.imageCopies = []*imageCopy{{future: imf}}
	q := &vgpu.Queue{}
	c.acquisitions[q] = []bufferAcqRel{{buffer: fakeBuffer(1)}}

	c.Clear()

	assert.NoError(t, bf.Wait())
	assert.NoError(t, imf.Wait())
	assert.Empty(t, c.bufferCopies)
	assert.Empty(t, c.imageCopies)
	assert.Empty(t, c.acquisitions)
}

func TestAppendMergesQueuedWorkAndClearsSource(t *testing.T) {
	dst := newTestContext()
	src := newTestContext()
	q := &vgpu.Queue{}
	src.bufferCopies = []*bufferCopy{{dst: fakeBuffer(1), future: newFuture()}}
	src.acquisitions[q] = []bufferAcqRel{{buffer: fakeBuffer(2)}}

	dst.Append(src)

	assert.Len(t, dst.bufferCopies, 1)
	assert.Len(t, dst.acquisitions[q], 1)
	assert.Empty(t, src.bufferCopies)
	assert.Empty(t, src.acquisitions)
}

func TestHasAnyOperationInProgress(t *testing.T) {
	c := newTestContext()
	assert.False(t, c.HasAnyOperationInProgress())
	c.bufferCopies = []*bufferCopy{{dst: fakeBuffer(1), future: newFuture()}}
	assert.True(t, c.HasAnyOperationInProgress())
}
