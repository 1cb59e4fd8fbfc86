// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

// RuntimeMode is the bitmask the engine boots with, combining a context
// tier (core/vulkan/hydra, each implying the ones below it) with
// feature-absence flags (spec §6 External Interfaces).
type RuntimeMode uint32

const (
	// ModeCore is the mandatory baseline: no Vulkan context, no hydra
	// (window/input/audio) context.
	ModeCore RuntimeMode = 1 << 0
	// ModeVulkanContext implies ModeCore: a vk.Instance/vk.Device exist.
	ModeVulkanContext = (1 << 1) | ModeCore
	// ModeHydraContext implies ModeVulkanContext: window/input/audio
	// subsystems exist.
	ModeHydraContext = (1 << 2) | ModeVulkanContext

	modeContextMask = ModeCore | ModeVulkanContext | ModeHydraContext

	// ModeOffscreen: valid only with Vulkan/hydra contexts. No window or
	// swapchain is created; input events can still flow.
	ModeOffscreen RuntimeMode = 1 << 3
	// ModePassive: this engine mirrors another one. No inputs; no state
	// changes originate locally.
	ModePassive RuntimeMode = 1 << 4
	// ModeOffline: no network connection will be opened.
	ModeOffline RuntimeMode = 1 << 5
	// ModeRelease: no debug facilities; disables automatic index
	// reload/watch.
	ModeRelease RuntimeMode = 1 << 6
	// ModePackerLess: no resource packing will take place.
	ModePackerLess RuntimeMode = 1 << 7
)

// Has reports whether every bit set in want is also set in m.
func (m RuntimeMode) Has(want RuntimeMode) bool {
	return m&want == want
}

// ContextTier returns just the context-tier bits (core/vulkan/hydra),
// discarding feature-absence flags.
func (m RuntimeMode) ContextTier() RuntimeMode {
	return m & modeContextMask
}

// String renders the mode as its named bits, joined with '|'.
func (m RuntimeMode) String() string {
	if m == 0 {
		return "none"
	}
	names := []struct {
		bit  RuntimeMode
		name string
	}{
		{ModeHydraContext, "hydra"},
		{ModeVulkanContext, "vulkan"},
		{ModeCore, "core"},
		{ModeOffscreen, "offscreen"},
		{ModePassive, "passive"},
		{ModeOffline, "offline"},
		{ModeRelease, "release"},
		{ModePackerLess, "packer-less"},
	}
	out := ""
	remaining := m
	for _, n := range names {
		if remaining&n.bit != n.bit {
			continue
		}
		if out != "" {
			out += "|"
		}
		out += n.name
		remaining &^= n.bit
	}
	if out == "" {
		return "none"
	}
	return out
}
