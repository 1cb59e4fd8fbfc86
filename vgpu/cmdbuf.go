// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vgpu

import (
	vk "github.com/goki/vulkan"
)

// CmdPool is a single vk.CommandPool together with the one-time command
// buffer most recently allocated from it. It is the low-level primitive
// used to submit one-shot copy/barrier work and block until it
// completes; vgpu/cmdpool builds the higher-level per-thread,
// per-queue *pool manager* spec §4.B describes on top of this.
type CmdPool struct {
	Pool   vk.CommandPool `display:"-"`
	Buff   vk.CommandBuffer `display:"-"`
	dev    vk.Device
	family uint32
}

// ConfigTransient (re)creates the pool flagged vk.CommandPoolCreateTransientBit,
// appropriate for short-lived, frequently-reset one-time command buffers.
func (cp *CmdPool) ConfigTransient(dev *Device, family uint32) {
	cp.Destroy(dev.Device)
	cp.dev = dev.Device
	cp.family = family
	var pool vk.CommandPool
	ret := vk.CreateCommandPool(dev.Device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateTransientBit | vk.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: family,
	}, nil, &pool)
	IfPanic(NewError(ret))
	cp.Pool = pool
}

// NewBuffer allocates (or reuses, after being freed by EndSubmitWaitFree)
// a primary command buffer from the pool and records it as cp.Buff.
func (cp *CmdPool) NewBuffer(dev *Device) vk.CommandBuffer {
	var buffs = make([]vk.CommandBuffer, 1)
	ret := vk.AllocateCommandBuffers(dev.Device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        cp.Pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}, buffs)
	IfPanic(NewError(ret))
	cp.Buff = buffs[0]
	return cp.Buff
}

// BeginCmdOneTime begins recording cp.Buff with the one-time-submit flag.
func (cp *CmdPool) BeginCmdOneTime() {
	CmdBeginOneTime(cp.Buff)
}

// CmdBeginOneTime begins recording the given command buffer with the
// one-time-submit usage flag.
func CmdBeginOneTime(cmd vk.CommandBuffer) {
	ret := vk.BeginCommandBuffer(cmd, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	})
	IfPanic(NewError(ret))
}

// EndSubmitWaitFree ends recording on cp.Buff, submits it to the given
// queue, blocks until the submission completes, then frees the command
// buffer back to the pool. This is strictly a synchronous convenience
// for small one-off transfers (config-time uploads, readbacks outside
// the frame loop) — spec §4.F's steady-state transfer path batches work
// through vgpu/submitinfo and vgpu/drd instead of blocking per-call.
func (cp *CmdPool) EndSubmitWaitFree(dev *Device, q *Queue) {
	ret := vk.EndCommandBuffer(cp.Buff)
	IfPanic(NewError(ret))

	q.Lock()
	ret = vk.QueueSubmit(q.Queue, 1, []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cp.Buff},
	}}, vk.NullFence)
	q.Unlock()
	IfPanic(NewError(ret))
	vk.QueueWaitIdle(q.Queue)
	vk.FreeCommandBuffers(dev.Device, cp.Pool, 1, []vk.CommandBuffer{cp.Buff})
	cp.Buff = nil
}

// Destroy destroys the underlying vk.CommandPool.
func (cp *CmdPool) Destroy(dev vk.Device) {
	if cp.Pool == nil {
		return
	}
	vk.DestroyCommandPool(dev, cp.Pool, nil)
	cp.Pool = nil
}
