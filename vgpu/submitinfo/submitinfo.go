// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package submitinfo is a fluent builder for VkSubmitInfo/
// VkBindSparseInfo batches. Calls chain in wait -> execute/bind ->
// signal-semaphore -> signal-fence order per queue; calling a method
// earlier in that order than the queue's current record has already
// reached starts a brand new record instead of corrupting the one in
// progress, so callers can freely interleave building up several
// logically distinct submissions to the same queue without having to
// track record boundaries themselves.
package submitinfo

import (
	"sync"

	vk "github.com/goki/vulkan"

	"cogentcore.org/vgpuengine/vgpu"
	"cogentcore.org/vgpuengine/vgpu/dqe"
)

// phase is a record's position in the wait -> work -> signal-sema ->
// signal-fence sequence.
type phase int

const (
	phaseWait phase = iota
	phaseWork
	phaseSignalSema
	phaseSignalFence
)

type waitEntry struct {
	sema  vk.Semaphore
	stage vk.PipelineStageFlagBits
}

type bindEntry struct {
	buffer       vk.Buffer
	image        vk.Image
	memory       vk.DeviceMemory
	memoryOffset vk.DeviceSize
	resOffset    vk.DeviceSize
	size         vk.DeviceSize
}

// record is one VkSubmitInfo (or, if sparseBind, one VkBindSparseInfo)
// worth of accumulated state.
type record struct {
	phase       phase
	waits       []waitEntry
	cmdBufs     []vk.CommandBuffer
	binds       []bindEntry
	sparseBind  bool
	signalSemas []vk.Semaphore
	fence       vk.Fence
	marker      string
}

// queueState holds every record built so far for one queue.
type queueState struct {
	records []*record
}

func (qs *queueState) step(want phase) *record {
	var cur *record
	if n := len(qs.records); n > 0 {
		cur = qs.records[n-1]
	}
	if cur == nil || want < cur.phase || cur.phase == phaseSignalFence {
		cur = &record{phase: want}
		qs.records = append(qs.records, cur)
	} else {
		cur.phase = want
	}
	return cur
}

// Builder accumulates submissions across any number of queues.
type Builder struct {
	mu      sync.Mutex
	current *vgpu.Queue
	queues  map[*vgpu.Queue]*queueState
}

// New creates an empty Builder.
func New() *Builder {
	return &Builder{queues: map[*vgpu.Queue]*queueState{}}
}

// On selects q as the queue subsequent calls apply to.
func (b *Builder) On(q *vgpu.Queue) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = q
	if _, ok := b.queues[q]; !ok {
		b.queues[q] = &queueState{}
	}
	return b
}

func (b *Builder) state() *queueState {
	return b.queues[b.current]
}

// Wait records a semaphore wait (with the pipeline stage it gates) on
// the current queue.
func (b *Builder) Wait(sema vk.Semaphore, stage vk.PipelineStageFlagBits) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	r := b.state().step(phaseWait)
	r.waits = append(r.waits, waitEntry{sema, stage})
	return b
}

// Execute records a command buffer to submit on the current queue. It
// panics if the current record has already taken a sparse bind — the
// two submission kinds (VkSubmitInfo and VkBindSparseInfo) are mutually
// exclusive per record, and mixing them would silently drop whichever
// half submitOne doesn't branch to.
func (b *Builder) Execute(cmd vk.CommandBuffer) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	r := b.state().step(phaseWork)
	if r.sparseBind {
		panic("submitinfo: Execute called on a record already holding a sparse bind")
	}
	r.cmdBufs = append(r.cmdBufs, cmd)
	return b
}

// BindBuffer records a sparse buffer-memory bind on the current queue,
// switching that record to the VkBindSparseInfo path. resOffset/size
// describe the range within buffer being bound; memOffset is the
// offset within mem backing it. Panics if the current record already
// has an Execute-recorded command buffer — a record is either a normal
// submission or a sparse-bind one, never both.
func (b *Builder) BindBuffer(buffer vk.Buffer, mem vk.DeviceMemory, resOffset, size, memOffset vk.DeviceSize) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	r := b.state().step(phaseWork)
	if len(r.cmdBufs) > 0 {
		panic("submitinfo: BindBuffer called on a record already holding an executed command buffer")
	}
	r.sparseBind = true
	r.binds = append(r.binds, bindEntry{buffer: buffer, memory: mem, resOffset: resOffset, size: size, memoryOffset: memOffset})
	return b
}

// BindImage records a sparse opaque image-memory bind on the current
// queue (full-resource opaque binds; per-tile/mip-tail binds are left
// to a caller willing to build VkSparseImageMemoryBind directly). Panics
// under the same condition as BindBuffer.
func (b *Builder) BindImage(img vk.Image, mem vk.DeviceMemory, resOffset, size, memOffset vk.DeviceSize) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	r := b.state().step(phaseWork)
	if len(r.cmdBufs) > 0 {
		panic("submitinfo: BindImage called on a record already holding an executed command buffer")
	}
	r.sparseBind = true
	r.binds = append(r.binds, bindEntry{image: img, memory: mem, resOffset: resOffset, size: size, memoryOffset: memOffset})
	return b
}

// Signal records a semaphore to signal once the current record's work
// completes.
func (b *Builder) Signal(sema vk.Semaphore) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	r := b.state().step(phaseSignalSema)
	r.signalSemas = append(r.signalSemas, sema)
	return b
}

// SignalFence attaches fence to the current record. Any further call on
// this queue, including another SignalFence, starts a fresh record — a
// fence marks the end of one submission, never the continuation of one.
func (b *Builder) SignalFence(fence vk.Fence) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	r := b.state().step(phaseSignalFence)
	r.fence = fence
	return b
}

// Marker attaches a debug label to the current record. The label is
// only stored on the record: submission does not emit it to the driver
// and no debug-marker extension is queried. A no-op if the current
// queue has no record yet.
func (b *Builder) Marker(name string) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n := len(b.state().records); n > 0 {
		b.state().records[n-1].marker = name
	}
	return b
}

// Append merges other's queued records onto b, leaving other empty.
func (b *Builder) Append(other *Builder) {
	other.mu.Lock()
	otherQueues := other.queues
	other.queues = map[*vgpu.Queue]*queueState{}
	other.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()
	for q, qs := range otherQueues {
		dst, ok := b.queues[q]
		if !ok {
			dst = &queueState{}
			b.queues[q] = dst
		}
		dst.records = append(dst.records, qs.records...)
	}
}

// HasEntriesFor reports whether any record is queued for q.
func (b *Builder) HasEntriesFor(q *vgpu.Queue) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	qs, ok := b.queues[q]
	return ok && len(qs.records) > 0
}

// DeferredSubmit drains every queued record and defers its actual
// vkQueueSubmit/vkQueueBindSparse call through d, one dqe.Closure per
// queue, in record order — matching the original's own submit()
// wrapping a defer_sync+defer_execution pair.
func (b *Builder) DeferredSubmit(d *dqe.DQE, idOf func(*vgpu.Queue) dqe.QueueID) {
	b.mu.Lock()
	queues := b.queues
	b.queues = map[*vgpu.Queue]*queueState{}
	b.mu.Unlock()

	d.DeferSync()
	for q, qs := range queues {
		q, qs := q, qs
		d.DeferExecution(idOf(q), func() error {
			return submitRecords(q, qs.records)
		})
	}
}

func submitRecords(q *vgpu.Queue, records []*record) error {
	for _, r := range records {
		if err := submitOne(q, r); err != nil {
			return err
		}
	}
	return nil
}

func submitOne(q *vgpu.Queue, r *record) error {
	q.Lock()
	defer q.Unlock()
	if r.sparseBind {
		return submitSparseBind(q, r)
	}
	waitSemas := make([]vk.Semaphore, len(r.waits))
	waitStages := make([]vk.PipelineStageFlags, len(r.waits))
	for i, w := range r.waits {
		waitSemas[i] = w.sema
		waitStages[i] = vk.PipelineStageFlags(w.stage)
	}
	si := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   uint32(len(waitSemas)),
		PWaitSemaphores:      waitSemas,
		PWaitDstStageMask:    waitStages,
		CommandBufferCount:   uint32(len(r.cmdBufs)),
		PCommandBuffers:      r.cmdBufs,
		SignalSemaphoreCount: uint32(len(r.signalSemas)),
		PSignalSemaphores:    r.signalSemas,
	}
	fence := r.fence
	if fence == nil {
		fence = vk.NullFence
	}
	ret := vk.QueueSubmit(q.Queue, 1, []vk.SubmitInfo{si}, fence)
	return vgpu.NewError(ret)
}

func submitSparseBind(q *vgpu.Queue, r *record) error {
	var bufferBinds []vk.SparseBufferMemoryBindInfo
	var imageOpaqueBinds []vk.SparseImageOpaqueMemoryBindInfo
	for _, be := range r.binds {
		mb := vk.SparseMemoryBind{
			ResourceOffset: be.resOffset,
			Size:           be.size,
			Memory:         be.memory,
			MemoryOffset:   be.memoryOffset,
		}
		if be.buffer != nil {
			bufferBinds = append(bufferBinds, vk.SparseBufferMemoryBindInfo{
				Buffer:    be.buffer,
				BindCount: 1,
				PBinds:    []vk.SparseMemoryBind{mb},
			})
		} else if be.image != nil {
			imageOpaqueBinds = append(imageOpaqueBinds, vk.SparseImageOpaqueMemoryBindInfo{
				Image:     be.image,
				BindCount: 1,
				PBinds:    []vk.SparseMemoryBind{mb},
			})
		}
	}
	waitSemas := make([]vk.Semaphore, len(r.waits))
	for i, w := range r.waits {
		waitSemas[i] = w.sema
	}
	bi := vk.BindSparseInfo{
		SType:                    vk.StructureTypeBindSparseInfo,
		WaitSemaphoreCount:       uint32(len(waitSemas)),
		PWaitSemaphores:          waitSemas,
		BufferBindCount:          uint32(len(bufferBinds)),
		PBufferBinds:             bufferBinds,
		ImageOpaqueBindCount:     uint32(len(imageOpaqueBinds)),
		PImageOpaqueBinds:        imageOpaqueBinds,
		SignalSemaphoreCount:     uint32(len(r.signalSemas)),
		PSignalSemaphores:        r.signalSemas,
	}
	fence := r.fence
	if fence == nil {
		fence = vk.NullFence
	}
	ret := vk.QueueBindSparse(q.Queue, 1, []vk.BindSparseInfo{bi}, fence)
	return vgpu.NewError(ret)
}
