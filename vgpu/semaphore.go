// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vgpu

import (
	vk "github.com/goki/vulkan"
)

// NewSemaphore creates a binary vk.Semaphore, the engine's GPU->GPU
// synchronization primitive (wait/signal entries in vgpu/submitinfo and
// the acquire/release handshakes in vgpu/transfer).
func NewSemaphore(dev vk.Device) vk.Semaphore {
	var sema vk.Semaphore
	ret := vk.CreateSemaphore(dev, &vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}, nil, &sema)
	IfPanic(NewError(ret))
	return sema
}

// DestroySemaphore destroys the semaphore if non-null.
func DestroySemaphore(dev vk.Device, sema vk.Semaphore) {
	if sema == vk.NullSemaphore {
		return
	}
	vk.DestroySemaphore(dev, sema, nil)
}
