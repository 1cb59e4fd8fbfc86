// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vgpu

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
)

// GPUOpt names an optional physical device feature that callers may
// request via GPU.EnabledOpts; unknown names are ignored by SetGPUOpts.
type GPUOpt string

const (
	// GPUOptSparseBinding requests sparseBinding / sparseResidencyBuffer
	// support, needed for the sparse-binding queue (spec §6).
	GPUOptSparseBinding GPUOpt = "sparseBinding"
)

// GPU holds the physical device and the instance-level state every
// Device, buffer, and image allocation call needs: the raw physical
// device handle, its memory and limits properties, and the extension/
// layer/feature lists used when a logical Device is created from it.
type GPU struct {
	// Instance that this GPU was enumerated from.
	Instance vk.Instance

	// GPU is the underlying physical device handle.
	GPU vk.PhysicalDevice

	// GPUProperties holds device limits (alignment, max ranges, etc).
	GPUProperties vk.PhysicalDeviceProperties

	// MemoryProperties holds the available memory types and heaps.
	MemoryProperties vk.PhysicalDeviceMemoryProperties

	// DeviceExts are device extension names enabled at logical-device
	// creation time (e.g. VK_KHR_swapchain).
	DeviceExts []string

	// ValidationLayers are validation layer names enabled at
	// logical-device creation time; empty in release builds.
	ValidationLayers []string

	// EnabledOpts are optional physical-device features to request,
	// applied by SetGPUOpts during logical-device creation.
	EnabledOpts []GPUOpt

	// DeviceFeaturesNeeded, if non-nil, is chained into the logical
	// device's pNext (e.g. a VkPhysicalDeviceDescriptorIndexingFeatures
	// struct) for features with no VkPhysicalDeviceFeatures bit.
	DeviceFeaturesNeeded unsafe.Pointer
}

// NewGPU enumerates physical devices on the given instance and returns a
// GPU wrapping the first one, with its properties queried.
func NewGPU(inst vk.Instance) (*GPU, error) {
	var count uint32
	ret := vk.EnumeratePhysicalDevices(inst, &count, nil)
	if err := NewError(ret); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, fmt.Errorf("vgpu: no Vulkan physical devices found")
	}
	devices := make([]vk.PhysicalDevice, count)
	ret = vk.EnumeratePhysicalDevices(inst, &count, devices)
	if err := NewError(ret); err != nil {
		return nil, err
	}
	gp := &GPU{Instance: inst, GPU: devices[0]}
	vk.GetPhysicalDeviceProperties(gp.GPU, &gp.GPUProperties)
	gp.GPUProperties.Deref()
	gp.GPUProperties.Limits.Deref()
	vk.GetPhysicalDeviceMemoryProperties(gp.GPU, &gp.MemoryProperties)
	gp.MemoryProperties.Deref()
	return gp, nil
}

// SetGPUOpts turns EnabledOpts into VkPhysicalDeviceFeatures bits on feats.
func (gp *GPU) SetGPUOpts(feats *vk.PhysicalDeviceFeatures, opts []GPUOpt) {
	for _, o := range opts {
		switch o {
		case GPUOptSparseBinding:
			feats.SparseBinding = vk.True
			feats.SparseResidencyBuffer = vk.True
		}
	}
}
