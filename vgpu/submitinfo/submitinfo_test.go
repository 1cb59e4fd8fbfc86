package submitinfo

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vk "github.com/goki/vulkan"

	"cogentcore.org/vgpuengine/vgpu"
)

func fakeSema(n int) vk.Semaphore { return vk.Semaphore(unsafe.Pointer(uintptr(n + 1))) }
func fakeFence(n int) vk.Fence    { return vk.Fence(unsafe.Pointer(uintptr(n + 1))) }
func fakeCmd(n int) vk.CommandBuffer {
	return vk.CommandBuffer(unsafe.Pointer(uintptr(n + 1)))
}

func TestSameQueueCallsAccumulateInOneRecord(t *testing.T) {
	b := New()
	q := &vgpu.Queue{}
	b.On(q).
		Wait(fakeSema(1), vk.PipelineStageTopOfPipeBit).
		Execute(fakeCmd(1)).
		Execute(fakeCmd(2)).
		Signal(fakeSema(2))

	qs := b.queues[q]
	require.Len(t, qs.records, 1)
	assert.Len(t, qs.records[0].cmdBufs, 2)
	assert.Len(t, qs.records[0].waits, 1)
	assert.Len(t, qs.records[0].signalSemas, 1)
}

func TestPhaseRegressionStartsNewRecord(t *testing.T) {
	b := New()
	q := &vgpu.Queue{}
	b.On(q).
		Execute(fakeCmd(1)).
		Signal(fakeSema(1)).
		// regressing back to Wait after Signal must start a new record
		Wait(fakeSema(2), vk.PipelineStageTopOfPipeBit).
		Execute(fakeCmd(2))

	qs := b.queues[q]
	require.Len(t, qs.records, 2)
	assert.Len(t, qs.records[0].cmdBufs, 1)
	assert.Len(t, qs.records[0].signalSemas, 1)
	assert.Len(t, qs.records[1].waits, 1)
	assert.Len(t, qs.records[1].cmdBufs, 1)
}

func TestSignalFenceAlwaysStartsFreshRecordNext(t *testing.T) {
	b := New()
	q := &vgpu.Queue{}
	b.On(q).Execute(fakeCmd(1)).SignalFence(fakeFence(1))
	b.On(q).Execute(fakeCmd(2))

	qs := b.queues[q]
	require.Len(t, qs.records, 2)
	assert.NotNil(t, qs.records[0].fence)
	assert.Nil(t, qs.records[1].fence)
}

func TestBindBufferSwitchesToSparsePath(t *testing.T) {
	b := New()
	q := &vgpu.Queue{}
	b.On(q).BindBuffer(nil, nil, 0, 256, 0)
	qs := b.queues[q]
	require.Len(t, qs.records, 1)
	assert.True(t, qs.records[0].sparseBind)
	assert.Len(t, qs.records[0].binds, 1)
}

func TestExecuteAfterSparseBindPanics(t *testing.T) {
	b := New()
	q := &vgpu.Queue{}
	b.On(q).BindBuffer(nil, nil, 0, 256, 0)
	assert.PanicsWithValue(t, "submitinfo: Execute called on a record already holding a sparse bind", func() {
		b.On(q).Execute(fakeCmd(1))
	})
}

func TestBindBufferAfterExecutePanics(t *testing.T) {
	b := New()
	q := &vgpu.Queue{}
	b.On(q).Execute(fakeCmd(1))
	assert.PanicsWithValue(t, "submitinfo: BindBuffer called on a record already holding an executed command buffer", func() {
		b.On(q).BindBuffer(nil, nil, 0, 256, 0)
	})
}

func TestBindImageAfterExecutePanics(t *testing.T) {
	b := New()
	q := &vgpu.Queue{}
	b.On(q).Execute(fakeCmd(1))
	assert.PanicsWithValue(t, "submitinfo: BindImage called on a record already holding an executed command buffer", func() {
		b.On(q).BindImage(nil, nil, 0, 256, 0)
	})
}

func TestAppendMergesOtherBuilderAndClearsIt(t *testing.T) {
	a := New()
	other := New()
	q := &vgpu.Queue{}
	other.On(q).Execute(fakeCmd(1))

	a.Append(other)
	assert.False(t, other.HasEntriesFor(q))
	assert.True(t, a.HasEntriesFor(q))
}

func TestHasEntriesFor(t *testing.T) {
	b := New()
	q := &vgpu.Queue{}
	assert.False(t, b.HasEntriesFor(q))
	b.On(q).Execute(fakeCmd(1))
	assert.True(t, b.HasEntriesFor(q))
}
