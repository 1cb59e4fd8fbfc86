// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package transfer batches CPU->GPU data movement behind a single
// build() call: queued host-to-device buffer/image writes, together with any
// queue-family ownership acquire/release barriers they need, are
// recorded and submitted as the three-submission protocol a
// cross-queue transfer requires — a release command buffer on each
// source queue, the copies themselves on this context's own queue, and
// an acquire command buffer on each destination queue, each submission
// stitched to the next by a fresh semaphore — with staging memory
// reclaimed through vgpu/drd once the final fence signals.
package transfer

import (
	"sync"
	"unsafe"

	vk "github.com/goki/vulkan"

	"cogentcore.org/vgpuengine/base/errors"
	"cogentcore.org/vgpuengine/vgpu"
	"cogentcore.org/vgpuengine/vgpu/cmdpool"
	"cogentcore.org/vgpuengine/vgpu/drd"
	"cogentcore.org/vgpuengine/vgpu/submitinfo"
)

type bufferAcqRel struct {
	buffer vk.Buffer
	sema   vk.Semaphore
	access vk.AccessFlagBits
}

type imageAcqRel struct {
	image         *vgpu.Image
	layout        vk.ImageLayout
	layoutForCopy vk.ImageLayout
	sema          vk.Semaphore
	access        vk.AccessFlagBits
}

type bufferCopy struct {
	dst     vk.Buffer
	src     vk.Buffer // staging buffer, owned by this copy
	srcData unsafeBacking
	offset  uint64
	size    uint64
	toHost  bool // true = device->host readback, false = host->device upload
	future  *Future
}

type imageCopy struct {
	dst     *vgpu.Image
	src     vk.Buffer
	srcData unsafeBacking
	offset  [3]int32
	extent  [3]uint32
	toHost  bool
	future  *Future
}

// unsafeBacking is the host-visible staging allocation an upload copy
// reads from, plus what frees it.
type unsafeBacking struct {
	mem vk.DeviceMemory
	buf vk.Buffer
	ptr []byte
}

// Context is a transfer context bound to one queue (normally
// vgpu.QueueTransfer or vgpu.QueueSlowTransfer).
type Context struct {
	dev   *vgpu.Device
	gp    *vgpu.GPU
	queue *vgpu.Queue
	drd   *drd.DRD

	mu sync.Mutex

	globalWaitSema    vk.Semaphore
	globalSignalFence vk.Fence

	acquisitions    map[*vgpu.Queue][]bufferAcqRel
	imgAcquisitions map[*vgpu.Queue][]imageAcqRel
	releases        map[*vgpu.Queue][]bufferAcqRel
	imgReleases     map[*vgpu.Queue][]imageAcqRel

	bufferCopies []*bufferCopy
	imageCopies  []*imageCopy

	// queuePools lazily holds a command-pool manager for every foreign
	// queue (source or destination of an ownership transfer) Build has
	// ever needed a command buffer on, alongside the one the caller
	// passes in for c.queue itself.
	queuePools map[*vgpu.Queue]*cmdpool.Manager
}

// NewContext creates a transfer context that submits on queue, staging
// uploads/readbacks through gp's memory types.
func NewContext(dev *vgpu.Device, gp *vgpu.GPU, queue *vgpu.Queue, d *drd.DRD) *Context {
	return &Context{
		dev: dev, gp: gp, queue: queue, drd: d,
		acquisitions:    map[*vgpu.Queue][]bufferAcqRel{},
		imgAcquisitions: map[*vgpu.Queue][]imageAcqRel{},
		releases:        map[*vgpu.Queue][]bufferAcqRel{},
		imgReleases:     map[*vgpu.Queue][]imageAcqRel{},
		queuePools:      map[*vgpu.Queue]*cmdpool.Manager{},
	}
}

// SetGlobalWaitSemaphore makes the next Build's submission on this
// context's queue wait on sema before its copies run (e.g. a swapchain
// image-acquired semaphore that gates a transfer writing into a
// presented image).
func (c *Context) SetGlobalWaitSemaphore(sema vk.Semaphore) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.globalWaitSema = sema
}

// SetGlobalSignalFence makes the next Build's submission signal fence
// once complete.
func (c *Context) SetGlobalSignalFence(fence vk.Fence) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.globalSignalFence = fence
}

// AcquireBuffer records a queue-family-ownership acquire for buffer,
// previously owned by srcQueue, before this context's copies touch it.
func (c *Context) AcquireBuffer(buffer vk.Buffer, srcQueue *vgpu.Queue, waitSema vk.Semaphore) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.acquisitions[srcQueue] = append(c.acquisitions[srcQueue], bufferAcqRel{buffer: buffer, sema: waitSema, access: vk.AccessTransferWriteBit})
}

// ReleaseBuffer records a queue-family-ownership release of buffer to
// dstQueue, after this context's copies finish with it.
func (c *Context) ReleaseBuffer(buffer vk.Buffer, dstQueue *vgpu.Queue, signalSema vk.Semaphore) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releases[dstQueue] = append(c.releases[dstQueue], bufferAcqRel{buffer: buffer, sema: signalSema, access: vk.AccessTransferWriteBit})
}

// AcquireImage records an ownership acquire and a layout transition of
// img from its current img.Layout to transfer-dst-optimal before this
// context's copies run; srcLayout is stored with the entry but is not
// used as the transition's old layout. Pass a nil srcQueue to request a
// layout-only transition with no queue-family ownership transfer.
func (c *Context) AcquireImage(img *vgpu.Image, srcQueue *vgpu.Queue, srcLayout vk.ImageLayout, waitSema vk.Semaphore) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.imgAcquisitions[srcQueue] = append(c.imgAcquisitions[srcQueue], imageAcqRel{
		image: img, layout: srcLayout, layoutForCopy: vk.ImageLayoutTransferDstOptimal,
		sema: waitSema, access: vk.AccessTransferWriteBit,
	})
}

// ReleaseImage records a release of img to dstQueue, transitioning it
// to dstLayout, after this context's copies finish with it.
func (c *Context) ReleaseImage(img *vgpu.Image, dstQueue *vgpu.Queue, dstLayout vk.ImageLayout, signalSema vk.Semaphore) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.imgReleases[dstQueue] = append(c.imgReleases[dstQueue], imageAcqRel{
		image: img, layout: dstLayout, sema: signalSema, access: vk.AccessTransferWriteBit,
	})
}

// Transfer stages data and queues a synchronous host->device copy into
// dst at offset; the copy actually runs the next time Build/Run
// executes. Equivalent to calling AsyncTransfer and immediately Waiting.
func (c *Context) Transfer(dst vk.Buffer, data []byte, offset uint64) error {
	return c.AsyncTransfer(dst, data, offset).Wait()
}

// AsyncTransfer stages data and queues a host->device copy into dst at
// offset, returning a Future that completes once the copy's submission
// fence signals.
func (c *Context) AsyncTransfer(dst vk.Buffer, data []byte, offset uint64) *Future {
	backing, err := c.stage(data)
	f := newFuture()
	if err != nil {
		f.complete(errors.Log(err))
		return f
	}
	bc := &bufferCopy{dst: dst, src: backing.buf, srcData: backing, offset: offset, size: uint64(len(data)), future: f}
	c.mu.Lock()
	c.bufferCopies = append(c.bufferCopies, bc)
	c.mu.Unlock()
	return f
}

// AsyncTransferImage stages data and queues a host->device copy into
// dst's extent at offset (both in texel-ish [x,y,z] form), returning a
// Future.
func (c *Context) AsyncTransferImage(dst *vgpu.Image, data []byte, extent [3]uint32, offset [3]int32) *Future {
	backing, err := c.stage(data)
	f := newFuture()
	if err != nil {
		f.complete(errors.Log(err))
		return f
	}
	ic := &imageCopy{dst: dst, src: backing.buf, srcData: backing, offset: offset, extent: extent, future: f}
	c.mu.Lock()
	c.imageCopies = append(c.imageCopies, ic)
	c.mu.Unlock()
	return f
}

func (c *Context) stage(data []byte) (unsafeBacking, error) {
	dev := c.dev.Device
	buf := vgpu.NewBuffer(dev, len(data), vk.BufferUsageTransferSrcBit)
	mem := vgpu.AllocBuffMem(c.gp, dev, buf, vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
	ptr := vgpu.MapMemoryAll(dev, mem)
	if ptr == nil {
		vk.DestroyBuffer(dev, buf, nil)
		return unsafeBacking{}, errors.New("transfer: failed to map staging buffer")
	}
	dst := unsafe.Slice((*byte)(ptr), len(data))
	copy(dst, data)
	return unsafeBacking{mem: mem, buf: buf, ptr: dst}, nil
}

// HasAnyOperationInProgress reports whether any copy is still queued
// (not yet handed to Build). Queued acquire/release barriers are not
// counted.
func (c *Context) HasAnyOperationInProgress() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.bufferCopies) > 0 || len(c.imageCopies) > 0
}

// RemoveOperationsFor cancels and drops any queued copy targeting
// buffer, completing its Future with nil (no error: a removed-before-
// build transfer is not a failure, just moot).
func (c *Context) RemoveOperationsFor(buffer vk.Buffer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.bufferCopies[:0]
	for _, bc := range c.bufferCopies {
		if bc.dst == buffer {
			bc.future.complete(nil)
			continue
		}
		kept = append(kept, bc)
	}
	c.bufferCopies = kept
}

// Clear drops every queued operation without running it, completing
// their Futures with nil.
func (c *Context) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, bc := range c.bufferCopies {
		bc.future.complete(nil)
	}
	for _, ic := range c.imageCopies {
		ic.future.complete(nil)
	}
	c.bufferCopies = nil
	c.imageCopies = nil
	c.acquisitions = map[*vgpu.Queue][]bufferAcqRel{}
	c.imgAcquisitions = map[*vgpu.Queue][]imageAcqRel{}
	c.releases = map[*vgpu.Queue][]bufferAcqRel{}
	c.imgReleases = map[*vgpu.Queue][]imageAcqRel{}
}

// Append merges other's queued operations onto c, leaving other empty.
func (c *Context) Append(other *Context) {
	other.mu.Lock()
	bcs, ics := other.bufferCopies, other.imageCopies
	acq, imgAcq := other.acquisitions, other.imgAcquisitions
	rel, imgRel := other.releases, other.imgReleases
	other.bufferCopies, other.imageCopies = nil, nil
	other.acquisitions, other.imgAcquisitions = map[*vgpu.Queue][]bufferAcqRel{}, map[*vgpu.Queue][]imageAcqRel{}
	other.releases, other.imgReleases = map[*vgpu.Queue][]bufferAcqRel{}, map[*vgpu.Queue][]imageAcqRel{}
	other.mu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.bufferCopies = append(c.bufferCopies, bcs...)
	c.imageCopies = append(c.imageCopies, ics...)
	for q, e := range acq {
		c.acquisitions[q] = append(c.acquisitions[q], e...)
	}
	for q, e := range imgAcq {
		c.imgAcquisitions[q] = append(c.imgAcquisitions[q], e...)
	}
	for q, e := range rel {
		c.releases[q] = append(c.releases[q], e...)
	}
	for q, e := range imgRel {
		c.imgReleases[q] = append(c.imgReleases[q], e...)
	}
}

// poolManagerFor returns the command-pool manager for q, creating one
// the first time q is needed. q is normally a queue foreign to this
// context (the other side of an ownership transfer); c.queue's own
// manager is supplied by the caller to Build instead.
func (c *Context) poolManagerFor(q *vgpu.Queue) *cmdpool.Manager {
	c.mu.Lock()
	defer c.mu.Unlock()
	mgr, ok := c.queuePools[q]
	if !ok {
		mgr = cmdpool.NewManager(c.dev, q)
		c.queuePools[q] = mgr
	}
	return mgr
}

// edgeSubmission is one command buffer recorded for a single foreign
// queue, plus the manager/batch that must eventually be reclaimed once
// the work it references has retired.
type edgeSubmission struct {
	mgr   *cmdpool.Manager
	batch *cmdpool.Batch
}

// Build records the three-submission protocol spec §4.F's algorithm
// requires for a batch of queued transfers: a release command buffer on
// every source queue an acquired buffer/image still belongs to, the
// copies themselves (plus this context's own acquire/release halves) on
// c.queue, and an acquire command buffer on every destination queue a
// released buffer/image is being handed to — each step gated on the
// previous one by a fresh semaphore, so "a release on queue A and an
// acquire on queue B must both execute for the transfer to complete"
// actually holds instead of silently only running queue A's half.
//
// Any semaphore a caller passed to AcquireBuffer/AcquireImage is used to
// gate that resource's release submission (the producer's real work
// must finish first); any semaphore passed to ReleaseBuffer/ReleaseImage
// is signaled by that resource's acquire submission (so the consumer's
// real work can start).
func (c *Context) Build(sb *submitinfo.Builder, pool *cmdpool.Manager) error {
	c.mu.Lock()
	bufferCopies, imageCopies := c.bufferCopies, c.imageCopies
	acquisitions, imgAcquisitions := c.acquisitions, c.imgAcquisitions
	releases, imgReleases := c.releases, c.imgReleases
	waitSema, signalFence := c.globalWaitSema, c.globalSignalFence
	c.bufferCopies, c.imageCopies = nil, nil
	c.acquisitions, c.imgAcquisitions = map[*vgpu.Queue][]bufferAcqRel{}, map[*vgpu.Queue][]imageAcqRel{}
	c.releases, c.imgReleases = map[*vgpu.Queue][]bufferAcqRel{}, map[*vgpu.Queue][]imageAcqRel{}
	c.globalWaitSema, c.globalSignalFence = nil, nil
	c.mu.Unlock()

	if len(bufferCopies) == 0 && len(imageCopies) == 0 && len(acquisitions) == 0 && len(imgAcquisitions) == 0 {
		return nil
	}

	dev := c.dev.Device
	var edges []edgeSubmission
	var internalSemas []vk.Semaphore

	// Step 1: one command buffer per source queue, releasing ownership
	// to c.queue and signaling a fresh semaphore phase 2 waits on.
	phase2Waits := make(map[vk.Semaphore]vk.PipelineStageFlagBits)
	for q, entries := range acquisitions {
		if q == nil {
			continue
		}
		sema, err := c.recordForeignEdge(sb, q, entries, imgAcquisitions[q])
		if err != nil {
			return err
		}
		internalSemas = append(internalSemas, sema)
		phase2Waits[sema] = vk.PipelineStageTransferBit
		edges = append(edges, edgeSubmission{mgr: c.poolManagerFor(q), batch: c.poolManagerFor(q).Flip()})
	}
	for q, entries := range imgAcquisitions {
		if q == nil || len(acquisitions[q]) > 0 {
			continue
		}
		sema, err := c.recordForeignEdge(sb, q, nil, entries)
		if err != nil {
			return err
		}
		internalSemas = append(internalSemas, sema)
		phase2Waits[sema] = vk.PipelineStageTransferBit
		edges = append(edges, edgeSubmission{mgr: c.poolManagerFor(q), batch: c.poolManagerFor(q).Flip()})
	}

	// Step 2: c.queue acquires what step 1 released, records the
	// copies, and releases ownership of anything leaving for another
	// queue, signaling one fresh semaphore per destination queue.
	cp := pool.Get()
	cmd := cp.NewBuffer(c.dev)
	cp.BeginCmdOneTime()

	for q, entries := range acquisitions {
		for _, e := range entries {
			srcFamily := vk.QueueFamilyIgnored
			if q != nil {
				srcFamily = q.FamilyIdx
			}
			recordBufferFamilyBarrier(cmd, e.buffer, srcFamily, c.queue.FamilyIdx, 0, e.access)
		}
	}
	for q, entries := range imgAcquisitions {
		for _, e := range entries {
			recordImageAcquireBarrier(cmd, e, q, c.queue.FamilyIdx)
		}
	}

	for _, bc := range bufferCopies {
		if bc.future.isCancelled() {
			continue
		}
		vk.CmdCopyBuffer(cmd, bc.src, bc.dst, 1, []vk.BufferCopy{{SrcOffset: 0, DstOffset: vk.DeviceSize(bc.offset), Size: vk.DeviceSize(bc.size)}})
	}
	for _, ic := range imageCopies {
		if ic.future.isCancelled() {
			continue
		}
		region := vk.BufferImageCopy{
			BufferOffset: 0,
			ImageSubresource: vk.ImageSubresourceLayers{
				AspectMask: vk.ImageAspectFlags(ic.dst.Aspect),
				LayerCount: 1,
			},
			ImageOffset: vk.Offset3D{X: ic.offset[0], Y: ic.offset[1], Z: ic.offset[2]},
			ImageExtent: vk.Extent3D{Width: ic.extent[0], Height: ic.extent[1], Depth: ic.extent[2]},
		}
		vk.CmdCopyBufferToImage(cmd, ic.src, ic.dst.Image, ic.dst.Layout, 1, []vk.BufferImageCopy{region})
	}

	phase3Signals := make(map[*vgpu.Queue]vk.Semaphore)
	for q, entries := range releases {
		if q == nil {
			continue
		}
		for _, e := range entries {
			recordBufferFamilyBarrier(cmd, e.buffer, c.queue.FamilyIdx, q.FamilyIdx, e.access, 0)
		}
		if _, ok := phase3Signals[q]; !ok {
			phase3Signals[q] = vgpu.NewSemaphore(dev)
		}
	}
	for q, entries := range imgReleases {
		if q == nil {
			continue
		}
		for _, e := range entries {
			recordImageReleaseBarrier(cmd, e, q, c.queue.FamilyIdx)
		}
		if _, ok := phase3Signals[q]; !ok {
			phase3Signals[q] = vgpu.NewSemaphore(dev)
		}
	}
	for _, sema := range phase3Signals {
		internalSemas = append(internalSemas, sema)
	}

	ret := vk.EndCommandBuffer(cmd)
	if err := vgpu.NewError(ret); err != nil {
		return errors.Log(err)
	}

	fence := signalFence
	ownsFence := false
	if fence == nil {
		fence = vgpu.NewFence(dev, false)
		ownsFence = true
	}

	build := sb.On(c.queue)
	if waitSema != nil {
		build.Wait(waitSema, vk.PipelineStageTransferBit)
	}
	for sema, stage := range phase2Waits {
		build.Wait(sema, stage)
	}
	build.Execute(cmd)
	for _, sema := range phase3Signals {
		build.Signal(sema)
	}
	build.SignalFence(fence)

	edges = append(edges, edgeSubmission{mgr: pool, batch: pool.Flip()})

	// Step 3: one command buffer per destination queue, acquiring
	// ownership of what step 2 released, waiting on its phase-2
	// semaphore and, if the caller supplied one, signaling its own
	// semaphore so the real consumer work on that queue can start.
	for q, entries := range releases {
		if q == nil {
			continue
		}
		if err := c.recordForeignAcquire(sb, q, entries, imgReleases[q], phase3Signals[q]); err != nil {
			return err
		}
		edges = append(edges, edgeSubmission{mgr: c.poolManagerFor(q), batch: c.poolManagerFor(q).Flip()})
	}
	for q, entries := range imgReleases {
		if q == nil || len(releases[q]) > 0 {
			continue
		}
		if err := c.recordForeignAcquire(sb, q, nil, entries, phase3Signals[q]); err != nil {
			return err
		}
		edges = append(edges, edgeSubmission{mgr: c.poolManagerFor(q), batch: c.poolManagerFor(q).Flip()})
	}

	toFree := make([]unsafeBacking, 0, len(bufferCopies)+len(imageCopies))
	for _, bc := range bufferCopies {
		toFree = append(toFree, bc.srcData)
	}
	for _, ic := range imageCopies {
		toFree = append(toFree, ic.srcData)
	}

	cleanup := func() {
		for _, b := range toFree {
			vk.UnmapMemory(dev, b.mem)
			vk.DestroyBuffer(dev, b.buf, nil)
			vk.FreeMemory(dev, b.mem, nil)
		}
		for _, bc := range bufferCopies {
			bc.future.complete(nil)
		}
		for _, ic := range imageCopies {
			ic.future.complete(nil)
		}
		for _, sema := range internalSemas {
			vgpu.DestroySemaphore(dev, sema)
		}
		for _, e := range edges {
			e.mgr.Reclaim(e.batch)
		}
	}

	if ownsFence {
		c.drd.PostponeDestructionOwningFence(fence, cleanup)
	} else {
		c.drd.PostponeDestructionInclusive(fence, c.queue.FamilyIdx, cleanup)
	}
	return nil
}

// recordForeignEdge builds and submits the step-1 release command
// buffer for a single source queue q, waiting on each entry's
// caller-supplied semaphore (if any) before releasing ownership to
// c.queue, and signaling the semaphore this call creates and returns.
func (c *Context) recordForeignEdge(sb *submitinfo.Builder, q *vgpu.Queue, bufEntries []bufferAcqRel, imgEntries []imageAcqRel) (vk.Semaphore, error) {
	mgr := c.poolManagerFor(q)
	cp := mgr.Get()
	cmd := cp.NewBuffer(c.dev)
	cp.BeginCmdOneTime()
	for _, e := range bufEntries {
		recordBufferFamilyBarrier(cmd, e.buffer, q.FamilyIdx, c.queue.FamilyIdx, e.access, 0)
	}
	for _, e := range imgEntries {
		e.image.CmdReleaseOwnership(cmd, q.FamilyIdx, c.queue.FamilyIdx, e.access, 0)
	}
	ret := vk.EndCommandBuffer(cmd)
	if err := vgpu.NewError(ret); err != nil {
		return nil, errors.Log(err)
	}

	sema := vgpu.NewSemaphore(c.dev.Device)
	b := sb.On(q)
	for _, e := range bufEntries {
		if e.sema != nil {
			b.Wait(e.sema, vk.PipelineStageTransferBit)
		}
	}
	for _, e := range imgEntries {
		if e.sema != nil {
			b.Wait(e.sema, vk.PipelineStageTransferBit)
		}
	}
	b.Execute(cmd).Signal(sema)
	return sema, nil
}

// recordForeignAcquire builds and submits the step-3 acquire command
// buffer for a single destination queue q, waiting on waitSema (the
// phase-2 signal) and signaling each entry's caller-supplied semaphore,
// if any, once acquired so a continuation on q can proceed.
func (c *Context) recordForeignAcquire(sb *submitinfo.Builder, q *vgpu.Queue, bufEntries []bufferAcqRel, imgEntries []imageAcqRel, waitSema vk.Semaphore) error {
	mgr := c.poolManagerFor(q)
	cp := mgr.Get()
	cmd := cp.NewBuffer(c.dev)
	cp.BeginCmdOneTime()
	for _, e := range bufEntries {
		recordBufferFamilyBarrier(cmd, e.buffer, c.queue.FamilyIdx, q.FamilyIdx, 0, e.access)
	}
	for _, e := range imgEntries {
		e.image.CmdReleaseOwnership(cmd, c.queue.FamilyIdx, q.FamilyIdx, 0, e.access)
	}
	ret := vk.EndCommandBuffer(cmd)
	if err := vgpu.NewError(ret); err != nil {
		return errors.Log(err)
	}

	b := sb.On(q)
	if waitSema != nil {
		b.Wait(waitSema, vk.PipelineStageTransferBit)
	}
	b.Execute(cmd)
	for _, e := range bufEntries {
		if e.sema != nil {
			b.Signal(e.sema)
		}
	}
	for _, e := range imgEntries {
		if e.sema != nil {
			b.Signal(e.sema)
		}
	}
	return nil
}

func recordBufferFamilyBarrier(cmd vk.CommandBuffer, buffer vk.Buffer, srcFamily, dstFamily uint32, srcAccess, dstAccess vk.AccessFlagBits) {
	barrier := vk.BufferMemoryBarrier{
		SType:               vk.StructureTypeBufferMemoryBarrier,
		SrcQueueFamilyIndex: srcFamily,
		DstQueueFamilyIndex: dstFamily,
		Buffer:              buffer,
		Offset:              0,
		Size:                vk.WholeSize,
		SrcAccessMask:       vk.AccessFlags(srcAccess),
		DstAccessMask:       vk.AccessFlags(dstAccess),
	}
	vk.CmdPipelineBarrier(cmd, vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit), vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit), 0, 0, nil, 1, []vk.BufferMemoryBarrier{barrier}, 0, nil)
}

func recordImageAcquireBarrier(cmd vk.CommandBuffer, e imageAcqRel, srcQueue *vgpu.Queue, thisFamily uint32) {
	srcFamily := vk.QueueFamilyIgnored
	if srcQueue != nil {
		srcFamily = srcQueue.FamilyIdx
	}
	if srcQueue != nil {
		e.image.CmdReleaseOwnership(cmd, srcFamily, thisFamily, 0, e.access)
	}
	dstLayout := e.layout
	if e.layoutForCopy != 0 {
		dstLayout = e.layoutForCopy
	}
	e.image.CmdTransitionLayout(cmd, dstLayout, vk.PipelineStageTopOfPipeBit, vk.PipelineStageTransferBit, 0, e.access)
}

func recordImageReleaseBarrier(cmd vk.CommandBuffer, e imageAcqRel, dstQueue *vgpu.Queue, thisFamily uint32) {
	if e.layout != 0 {
		e.image.CmdTransitionLayout(cmd, e.layout, vk.PipelineStageTransferBit, vk.PipelineStageBottomOfPipeBit, e.access, 0)
	}
	if dstQueue != nil {
		e.image.CmdReleaseOwnership(cmd, thisFamily, dstQueue.FamilyIdx, e.access, 0)
	}
}
