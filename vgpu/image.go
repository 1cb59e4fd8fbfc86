// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vgpu

import (
	vk "github.com/goki/vulkan"
)

// Image is a minimal vk.Image wrapper carrying just what vgpu/transfer
// needs to acquire, copy into, and release an image: its current layout
// and the aspect mask to use when building barriers. Shader-facing image
// views, framebuffers, and render passes are out of scope here (built by
// whatever consumes this package's services, per spec.md §1).
type Image struct {
	Image  vk.Image
	Layout vk.ImageLayout
	Aspect vk.ImageAspectFlagBits
}

// CmdTransitionLayout records a pipeline barrier moving img from its
// current Layout to dst, updating img.Layout on return.
func (img *Image) CmdTransitionLayout(cmd vk.CommandBuffer, dst vk.ImageLayout, srcStage, dstStage vk.PipelineStageFlagBits, srcAccess, dstAccess vk.AccessFlagBits) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           img.Layout,
		NewLayout:           dst,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               img.Image,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(img.Aspect),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		SrcAccessMask: vk.AccessFlags(srcAccess),
		DstAccessMask: vk.AccessFlags(dstAccess),
	}
	vk.CmdPipelineBarrier(cmd, vk.PipelineStageFlags(srcStage), vk.PipelineStageFlags(dstStage), 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
	img.Layout = dst
}

// CmdReleaseOwnership records a barrier handing img's queue-family
// ownership from srcFamily to dstFamily without changing its layout,
// used by vgpu/transfer's release phase for cross-queue acquire/release
// handshakes (spec §4.F).
func (img *Image) CmdReleaseOwnership(cmd vk.CommandBuffer, srcFamily, dstFamily uint32, srcAccess, dstAccess vk.AccessFlagBits) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           img.Layout,
		NewLayout:           img.Layout,
		SrcQueueFamilyIndex: srcFamily,
		DstQueueFamilyIndex: dstFamily,
		Image:               img.Image,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(img.Aspect),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		SrcAccessMask: vk.AccessFlags(srcAccess),
		DstAccessMask: vk.AccessFlags(dstAccess),
	}
	vk.CmdPipelineBarrier(cmd, vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit), vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit), 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}

// SamplerModes are the supported vk.SamplerAddressMode wrap behaviors.
type SamplerModes int32 //enums:enum

const (
	Repeat SamplerModes = iota
	MirroredRepeat
	ClampToEdge
	ClampToBorder
	MirrorClampToEdge
)

var samplerModeVk = map[SamplerModes]vk.SamplerAddressMode{
	Repeat:             vk.SamplerAddressModeRepeat,
	MirroredRepeat:     vk.SamplerAddressModeMirroredRepeat,
	ClampToEdge:        vk.SamplerAddressModeClampToEdge,
	ClampToBorder:      vk.SamplerAddressModeClampToBorder,
	MirrorClampToEdge:  vk.SamplerAddressModeMirrorClampToEdge,
}

// VkMode returns the vk.SamplerAddressMode for this mode.
func (sm SamplerModes) VkMode() vk.SamplerAddressMode {
	return samplerModeVk[sm]
}

// Sampler represents a vk.Sampler that defines how images are sampled
// (filtering, wrap modes, anisotropy).
type Sampler struct {
	Name       string
	UMode      SamplerModes
	VMode      SamplerModes
	WMode      SamplerModes
	Sampler    vk.Sampler `display:"-"`
}

// Config creates the sampler on the given device, using gp for the max
// anisotropy supported, if any.
func (sm *Sampler) Config(dev vk.Device, gp *GPU) {
	sm.Destroy(dev)
	maxAniso := float32(1)
	if gp != nil {
		maxAniso = gp.GPUProperties.Limits.MaxSamplerAnisotropy
	}
	var sampler vk.Sampler
	ret := vk.CreateSampler(dev, &vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		MipmapMode:              vk.SamplerMipmapModeLinear,
		AddressModeU:            sm.UMode.VkMode(),
		AddressModeV:            sm.VMode.VkMode(),
		AddressModeW:            sm.WMode.VkMode(),
		AnisotropyEnable:        vk.True,
		MaxAnisotropy:           maxAniso,
		BorderColor:             vk.BorderColorFloatOpaqueBlack,
		CompareOp:               vk.CompareOpAlways,
		MinLod:                  0,
		MaxLod:                  1,
	}, nil, &sampler)
	IfPanic(NewError(ret))
	sm.Sampler = sampler
}

// Destroy destroys the sampler if non-null.
func (sm *Sampler) Destroy(dev vk.Device) {
	if sm.Sampler == nil {
		return
	}
	vk.DestroySampler(dev, sm.Sampler, nil)
	sm.Sampler = nil
}
