package drd

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vk "github.com/goki/vulkan"
)

// fakeFence manufactures a distinct, comparable vk.Fence handle without
// touching a real device — vk.Fence is Vulkan's non-dispatchable handle
// type, a pointer on every 64-bit platform, so any non-zero address
// makes a valid, distinguishable fake.
func fakeFence(n int) vk.Fence {
	return vk.Fence(unsafe.Pointer(uintptr(n + 1)))
}

func newTestDRD(signaledFences map[vk.Fence]bool) *DRD {
	d := New(vk.Device(nil))
	d.signaled = func(f vk.Fence) bool { return signaledFences[f] }
	return d
}

func TestPostponeDestructionRunsImmediatelyIfAlreadySignaled(t *testing.T) {
	f := fakeFence(1)
	d := newTestDRD(map[vk.Fence]bool{f: true})
	ran := false
	d.PostponeDestruction(f, func() { ran = true })
	assert.True(t, ran)
	assert.False(t, d.HasPendingCleanup())
}

func TestPostponeDestructionQueuesUntilSignaled(t *testing.T) {
	f := fakeFence(1)
	sig := map[vk.Fence]bool{f: false}
	d := newTestDRD(sig)
	ran := false
	d.PostponeDestruction(f, func() { ran = true })
	assert.True(t, d.HasPendingCleanup())
	assert.False(t, ran)

	d.Update()
	assert.False(t, ran)

	sig[f] = true
	d.Update()
	assert.True(t, ran)
	assert.False(t, d.HasPendingCleanup())
}

func TestUpdateStopsAtFirstUnsignaledFence(t *testing.T) {
	f1, f2 := fakeFence(1), fakeFence(2)
	sig := map[vk.Fence]bool{f1: false, f2: true}
	d := newTestDRD(sig)

	var order []int
	d.PostponeDestruction(f1, func() { order = append(order, 1) })
	d.PostponeDestruction(f2, func() { order = append(order, 2) })

	d.Update()
	assert.Empty(t, order, "entry 2 must not run while entry 1's fence is unsignaled")

	sig[f1] = true
	d.Update()
	assert.Equal(t, []int{1, 2}, order)
}

func TestPostponeToNextFenceThenInclusiveAbsorbsPending(t *testing.T) {
	const family = uint32(3)
	f := fakeFence(1)
	sig := map[vk.Fence]bool{f: false}
	d := newTestDRD(sig)

	var ran []string
	d.PostponeToNextFence(family, func() { ran = append(ran, "pending") })
	assert.True(t, d.HasPendingNonScheduledCleanup())

	d.PostponeDestructionInclusive(f, family, func() { ran = append(ran, "own") })
	assert.False(t, d.HasPendingNonScheduledCleanup())

	sig[f] = true
	d.Update()
	assert.ElementsMatch(t, []string{"pending", "own"}, ran)
}

func TestSetAllowFencelessFalsePanics(t *testing.T) {
	d := newTestDRD(nil)
	d.SetAllowFenceless(false)
	assert.Panics(t, func() {
		d.PostponeToNextFence(0, func() {})
	})
}

func TestForceFullCleanupIgnoresFenceState(t *testing.T) {
	f := fakeFence(1)
	sig := map[vk.Fence]bool{f: false}
	d := newTestDRD(sig)
	ran := false
	d.PostponeDestruction(f, func() { ran = true })
	d.PostponeToNextFence(0, func() {})

	d.ForceFullCleanup()
	assert.True(t, ran)
	assert.False(t, d.HasPendingCleanup())
	assert.False(t, d.HasPendingNonScheduledCleanup())
}

func TestAppendMergesQueuedEntries(t *testing.T) {
	f := fakeFence(1)
	sig := map[vk.Fence]bool{f: true}
	src := newTestDRD(sig)
	dst := newTestDRD(sig)

	ran := false
	// keep the fence unsignaled on src at postpone time so it actually
	// queues, then flip it before dst.Update() drains it.
	sig[f] = false
	src.PostponeDestruction(f, func() { ran = true })
	require.True(t, src.HasPendingCleanup())

	dst.Append(src)
	assert.False(t, src.HasPendingCleanup())
	assert.True(t, dst.HasPendingCleanup())

	sig[f] = true
	dst.Update()
	assert.True(t, ran)
}
