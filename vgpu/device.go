// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vgpu

import (
	"fmt"
	"sync"
	"unsafe"

	vk "github.com/goki/vulkan"
)

// QueueName identifies one of the engine's named queues (spec §6). A
// Vulkan implementation is free to alias several of these onto the same
// underlying hardware queue family/index; Device.Queue resolves that.
type QueueName int

const (
	// QueueGraphics issues draw/compute work against the swapchain and
	// render targets.
	QueueGraphics QueueName = iota
	// QueueTransfer is the preferred queue for frequent, latency-sensitive
	// CPU<->GPU copies (vgpu/transfer's default).
	QueueTransfer
	// QueueSlowTransfer is used for large, throughput-bound transfers that
	// should not compete with QueueTransfer's latency-sensitive work.
	QueueSlowTransfer
	// QueueCompute issues compute-only dispatches.
	QueueCompute
	// QueueSparseBinding issues sparse memory bind operations.
	QueueSparseBinding

	queueNameN
)

func (n QueueName) String() string {
	switch n {
	case QueueGraphics:
		return "graphics"
	case QueueTransfer:
		return "transfer"
	case QueueSlowTransfer:
		return "slow-transfer"
	case QueueCompute:
		return "compute"
	case QueueSparseBinding:
		return "sparse-binding"
	default:
		return "unknown"
	}
}

// requiredFlags maps each named queue to the VkQueueFlagBits a family
// must advertise to serve it.
var requiredFlags = map[QueueName]vk.QueueFlagBits{
	QueueGraphics:      vk.QueueGraphicsBit,
	QueueTransfer:       vk.QueueTransferBit,
	QueueSlowTransfer:   vk.QueueTransferBit,
	QueueCompute:        vk.QueueComputeBit,
	QueueSparseBinding:  vk.QueueSparseBindingBit,
}

// Queue pairs a vulkan queue handle with the family it was created from
// and a mutex: vkQueueSubmit/vkQueuePresentKHR on the same VkQueue are
// not safe to call concurrently from multiple goroutines, so every
// caller must go through Queue.Lock/Unlock (submitinfo's submissions and
// EndSubmitWaitFree do this for callers; dqe does not).
type Queue struct {
	Name       QueueName
	Queue      vk.Queue `display:"-"`
	FamilyIdx  uint32
	sync.Mutex
}

// Device holds a logical vk.Device and the set of named queues resolved
// against it.
type Device struct {
	// logical device
	Device vk.Device

	// Queues holds one entry for every QueueName the device was asked to
	// resolve (see Init); distinct names may share a Queue if the GPU
	// exposes fewer families than named roles.
	Queues [queueNameN]*Queue
}

// Init creates a logical device able to serve every queue in names,
// resolving each to a family advertising the role's flag bit (preferring
// one that advertises only that bit, else the first that has it) and
// falling back to the graphics family, which every conformant Vulkan
// implementation exposes, only when no family advertises the bit.
func (dv *Device) Init(gp *GPU, names ...QueueName) error {
	if len(names) == 0 {
		names = []QueueName{QueueGraphics, QueueTransfer, QueueSlowTransfer, QueueCompute}
	}
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(gp.GPU, &count, nil)
	if count == 0 {
		return fmt.Errorf("vgpu: no queue families found on GPU")
	}
	props := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(gp.GPU, &count, props)
	for i := range props {
		props[i].Deref()
	}

	familyFor := func(want vk.QueueFlagBits) (uint32, bool) {
		// prefer a family that supports *only* what's asked (more likely
		// to be a genuinely separate queue, e.g. a dedicated transfer
		// queue), falling back to the first family with the bit set.
		best, bestFound := uint32(0), false
		for i := uint32(0); i < count; i++ {
			flags := props[i].QueueFlags
			if flags&vk.QueueFlags(want) == 0 {
				continue
			}
			if !bestFound {
				best, bestFound = i, true
			}
			if flags == vk.QueueFlags(want) {
				return i, true
			}
		}
		return best, bestFound
	}

	familyIdx := map[QueueName]uint32{}
	for _, nm := range names {
		idx, ok := familyFor(requiredFlags[nm])
		if !ok {
			idx, ok = familyFor(vk.QueueGraphicsBit)
			if !ok {
				return fmt.Errorf("vgpu: could not find a queue family for %s", nm)
			}
		}
		familyIdx[nm] = idx
	}

	// de-duplicate by family index so we request each family's queue
	// count once.
	byFamily := map[uint32]bool{}
	var queueInfos []vk.DeviceQueueCreateInfo
	for _, idx := range familyIdx {
		if byFamily[idx] {
			continue
		}
		byFamily[idx] = true
		queueInfos = append(queueInfos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: idx,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		})
	}

	feats := vk.PhysicalDeviceFeatures{
		SamplerAnisotropy:                       vk.True,
		ShaderSampledImageArrayDynamicIndexing:  vk.True,
		ShaderUniformBufferArrayDynamicIndexing: vk.True,
		ShaderStorageBufferArrayDynamicIndexing: vk.True,
	}
	gp.SetGPUOpts(&feats, gp.EnabledOpts)

	var device vk.Device
	ret := vk.CreateDevice(gp.GPU, &vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(gp.DeviceExts)),
		PpEnabledExtensionNames: gp.DeviceExts,
		EnabledLayerCount:       uint32(len(gp.ValidationLayers)),
		PpEnabledLayerNames:     gp.ValidationLayers,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{feats},
		PNext:                   unsafe.Pointer(gp.DeviceFeaturesNeeded),
	}, nil, &device)
	IfPanic(NewError(ret))
	dv.Device = device

	for _, nm := range names {
		idx := familyIdx[nm]
		var q vk.Queue
		vk.GetDeviceQueue(dv.Device, idx, 0, &q)
		dv.Queues[nm] = &Queue{Name: nm, Queue: q, FamilyIdx: idx}
	}
	return nil
}

// Queue returns the named queue, or nil if Init was never asked to
// resolve it.
func (dv *Device) Queue(name QueueName) *Queue {
	return dv.Queues[name]
}

// Destroy waits for the device to go idle and destroys it.
func (dv *Device) Destroy() {
	if dv.Device == nil {
		return
	}
	vk.DeviceWaitIdle(dv.Device)
	vk.DestroyDevice(dv.Device, nil)
	dv.Device = nil
}

// DeviceWaitIdle waits until the device has no outstanding work.
func (dv *Device) DeviceWaitIdle() {
	vk.DeviceWaitIdle(dv.Device)
}

// NewGraphicsDevice returns a new Device with only the graphics queue
// resolved, suitable for offscreen rendering / compute-only use.
func NewGraphicsDevice(gp *GPU) (*Device, error) {
	dev := &Device{}
	if err := dev.Init(gp, QueueGraphics); err != nil {
		return nil, err
	}
	return dev, nil
}
