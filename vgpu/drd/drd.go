// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package drd implements a deferred resource destructor: a FIFO queue
// of GPU-resource cleanups, each gated on a vk.Fence, so destruction
// only runs once the GPU has actually finished the work that might
// still be reading the resource. Update() is meant to be pumped once
// per frame/tick from the thread that owns the device.
package drd

import (
	"log/slog"
	"sync"

	vk "github.com/goki/vulkan"

	"cogentcore.org/vgpuengine/vgpu"
)

// DestroyFunc releases one resource (a vk.Buffer, a vk.DeviceMemory,
// a *galloc.Allocation, ...). DRD never inspects what it destroys —
// callers close over whatever cleanup a resource needs.
type DestroyFunc func()

// entry is one fence-gated batch of destroy calls.
type entry struct {
	fence       vk.Fence
	ownsFence   bool
	queueFamily uint32
	hasFamily   bool
	destroyers  []DestroyFunc
}

func (e *entry) run(dev vk.Device) {
	for _, d := range e.destroyers {
		d()
	}
	if e.ownsFence {
		vgpu.DestroyFence(dev, e.fence)
	}
}

// DRD is a deferred resource destructor.
type DRD struct {
	dev vk.Device

	mu      sync.Mutex
	entries []*entry

	// pending holds PostponeToNextFence batches not yet attached to a
	// fence, keyed by the queue family whose next fence should absorb
	// them (see PostponeDestructionInclusive).
	pending map[uint32][]DestroyFunc

	allowFenceless bool

	// signaled checks fence status; overridden in tests to avoid a real
	// vk.Device. Defaults to vgpu.FenceSignaled.
	signaled func(vk.Fence) bool
}

// New creates a DRD for the given device. allowFenceless mirrors the
// original's assert_on_fenceless_insertions(false): when true (the
// default), PostponeToNextFence is allowed; when SetAllowFenceless(false)
// is called, it panics instead, to catch code paths that should always
// have a fence in hand by the time they reach here.
func New(dev vk.Device) *DRD {
	return &DRD{
		dev:            dev,
		pending:        map[uint32][]DestroyFunc{},
		allowFenceless: true,
		signaled:       func(f vk.Fence) bool { return vgpu.FenceSignaled(dev, f) },
	}
}

// SetAllowFenceless toggles whether PostponeToNextFence/
// PostponeEndFrameCleanup are allowed to queue work with no fence yet
// assigned. Disabling it is a debug aid: a panic at the call site is
// easier to track down than a resource silently never freed because no
// later fence for that queue family ever arrived.
func (d *DRD) SetAllowFenceless(allow bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.allowFenceless = allow
}

// PostponeDestruction destroys the given resources once fence signals.
// If fence is already signaled and no earlier batch is still queued,
// they are destroyed immediately instead of being queued — matching the original's fast path for the common
// case of cleaning up behind work that has, in practice, already
// finished.
func (d *DRD) PostponeDestruction(fence vk.Fence, destroyers ...DestroyFunc) {
	d.postpone(fence, false, 0, false, destroyers)
}

// PostponeDestructionOwningFence is like PostponeDestruction, but also
// transfers ownership of fence to the DRD: once the batch runs, the
// fence itself is destroyed.
func (d *DRD) PostponeDestructionOwningFence(fence vk.Fence, destroyers ...DestroyFunc) {
	d.postpone(fence, true, 0, false, destroyers)
}

// PostponeToNextFence queues destroyers with no fence yet known. The
// next PostponeDestructionInclusive call for the same queueFamily folds
// them into its batch, and they run once that call's fence signals.
// Panics if SetAllowFenceless(false) was called.
func (d *DRD) PostponeToNextFence(queueFamily uint32, destroyers ...DestroyFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.allowFenceless {
		panic("drd: PostponeToNextFence called with fenceless insertions disallowed")
	}
	d.pending[queueFamily] = append(d.pending[queueFamily], destroyers...)
}

// PostponeDestructionInclusive destroys destroyers once fence signals,
// and additionally absorbs any destroyers previously queued via
// PostponeToNextFence for the same queueFamily into the same batch —
// so resources that couldn't yet name a fence when they were released
// ride along with the next one that actually submits on their queue.
func (d *DRD) PostponeDestructionInclusive(fence vk.Fence, queueFamily uint32, destroyers ...DestroyFunc) {
	d.postpone(fence, false, queueFamily, true, destroyers)
}

func (d *DRD) postpone(fence vk.Fence, ownsFence bool, queueFamily uint32, inclusive bool, destroyers []DestroyFunc) {
	d.mu.Lock()
	var absorbed []DestroyFunc
	if inclusive {
		absorbed = d.pending[queueFamily]
		delete(d.pending, queueFamily)
	}
	all := make([]DestroyFunc, 0, len(absorbed)+len(destroyers))
	all = append(all, absorbed...)
	all = append(all, destroyers...)

	if len(all) == 0 {
		if ownsFence {
			vgpu.DestroyFence(d.dev, fence)
		}
		d.mu.Unlock()
		return
	}

	if len(d.entries) == 0 && d.signaled(fence) {
		d.mu.Unlock()
		e := &entry{fence: fence, ownsFence: ownsFence, destroyers: all}
		e.run(d.dev)
		return
	}

	e := &entry{fence: fence, ownsFence: ownsFence, queueFamily: queueFamily, hasFamily: inclusive, destroyers: all}
	d.entries = append(d.entries, e)
	d.mu.Unlock()
}

// PostponeEndFrameCleanup is PostponeToNextFence for a whole allocator
// flush pass — see PostponeAllocatorFlush for the concrete
// galloc.Allocator-flushing use of it.
func (d *DRD) PostponeEndFrameCleanup(queueFamily uint32, fn DestroyFunc) {
	d.PostponeToNextFence(queueFamily, fn)
}

// Update walks entries in submission order, destroying every batch
// whose fence has signaled. It stops at the first unsignaled fence,
// preserving FIFO ordering of destruction even though a later entry's
// fence might happen to have already signaled — reordering destruction
// would risk freeing a resource still referenced by an earlier,
// not-yet-retired command buffer that also touches it.
func (d *DRD) Update() {
	d.mu.Lock()
	i := 0
	for i < len(d.entries) {
		e := d.entries[i]
		if !d.signaled(e.fence) {
			break
		}
		i++
	}
	done := d.entries[:i]
	d.entries = d.entries[i:]
	d.mu.Unlock()

	for _, e := range done {
		e.run(d.dev)
	}
}

// HasPendingCleanup reports whether any fence-gated batch is still
// queued.
func (d *DRD) HasPendingCleanup() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries) > 0
}

// HasPendingNonScheduledCleanup reports whether any PostponeToNextFence
// batch is still waiting for a fence to attach to.
func (d *DRD) HasPendingNonScheduledCleanup() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range d.pending {
		if len(p) > 0 {
			return true
		}
	}
	return false
}

// ForceFullCleanup destroys every queued batch immediately, regardless
// of fence state. Callers must have already waited for the device to go
// idle (vgpu.Device.DeviceWaitIdle) — this is for final teardown, not
// steady-state use.
func (d *DRD) ForceFullCleanup() {
	d.mu.Lock()
	entries := d.entries
	d.entries = nil
	pending := d.pending
	d.pending = map[uint32][]DestroyFunc{}
	d.mu.Unlock()

	for _, e := range entries {
		e.run(d.dev)
	}
	for _, fns := range pending {
		for _, fn := range fns {
			fn()
		}
	}
}

// Append splices other's queued entries onto the end of d's, leaving
// other empty. Used to merge a worker goroutine's scratch DRD into the
// engine's main one at a sync point.
func (d *DRD) Append(other *DRD) {
	other.mu.Lock()
	entries := other.entries
	other.entries = nil
	pending := other.pending
	other.pending = map[uint32][]DestroyFunc{}
	other.mu.Unlock()

	d.mu.Lock()
	d.entries = append(d.entries, entries...)
	for family, fns := range pending {
		d.pending[family] = append(d.pending[family], fns...)
	}
	d.mu.Unlock()
}

// PostponeAllocatorFlush ties a galloc.Allocator's empty-chunk flush to
// the same fence-ordered queue as any other deferred resource, so
// callers don't have to remember to call FlushEmptyAllocations
// out-of-band every frame — it just rides along with whatever else is
// already being cleaned up on that queue family.
func (d *DRD) PostponeAllocatorFlush(queueFamily uint32, allocator interface{ FlushEmptyAllocations() int }) {
	d.PostponeToNextFence(queueFamily, func() {
		if n := allocator.FlushEmptyAllocations(); n > 0 {
			slog.Debug("drd: flushed empty allocator chunks", "count", n)
		}
	})
}
