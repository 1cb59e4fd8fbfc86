// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vgpu

import (
	vk "github.com/goki/vulkan"
)

// NewFence creates a vk.Fence, optionally pre-signaled. A fence is the
// engine's GPU->CPU synchronization primitive: vgpu/drd and
// vgpu/submitinfo both key pending work off fence signal state.
func NewFence(dev vk.Device, signaled bool) vk.Fence {
	var flags vk.FenceCreateFlags
	if signaled {
		flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	ret := vk.CreateFence(dev, &vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
		Flags: flags,
	}, nil, &fence)
	IfPanic(NewError(ret))
	return fence
}

// FenceSignaled reports whether the fence has been signaled, without
// blocking.
func FenceSignaled(dev vk.Device, fence vk.Fence) bool {
	ret := vk.GetFenceStatus(dev, fence)
	return ret == vk.Success
}

// WaitFence blocks until fence is signaled or the driver-defined timeout
// elapses (vk.MaxUint64 disables the timeout).
func WaitFence(dev vk.Device, fence vk.Fence, timeoutNs uint64) error {
	ret := vk.WaitForFences(dev, 1, []vk.Fence{fence}, vk.True, timeoutNs)
	return NewError(ret)
}

// ResetFence returns the fence to the unsignaled state.
func ResetFence(dev vk.Device, fence vk.Fence) {
	ret := vk.ResetFences(dev, 1, []vk.Fence{fence})
	IfPanic(NewError(ret))
}

// DestroyFence destroys the fence if non-null.
func DestroyFence(dev vk.Device, fence vk.Fence) {
	if fence == vk.NullFence {
		return
	}
	vk.DestroyFence(dev, fence, nil)
}
