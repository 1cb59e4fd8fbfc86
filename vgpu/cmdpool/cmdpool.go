// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cmdpool manages a per-queue pool of reusable vk.CommandPools,
// so worker goroutines that need a transient command buffer never pay
// for a fresh vkCreateCommandPool call. Pools checked out between two
// Flip calls are batched together; the caller resets them (typically
// once their Flip's fence is known signaled, via vgpu/drd) rather than
// tearing them down, and returns them to the free list.
package cmdpool

import (
	"sync"

	vk "github.com/goki/vulkan"

	"cogentcore.org/vgpuengine/vgpu"
)

// Manager hands out vgpu.CmdPool values scoped to one queue family.
// Callers must not retain a pool past the Flip that collects it — per
// the command-pool-manager's contract, a checked-out pool is only valid
// until the next Flip.
type Manager struct {
	dev   *vgpu.Device
	queue *vgpu.Queue

	mu     sync.Mutex
	free   []*vgpu.CmdPool
	inUse  []*vgpu.CmdPool
	flipID uint64
}

// NewManager creates a Manager handing out command pools from queue's
// family on dev.
func NewManager(dev *vgpu.Device, queue *vgpu.Queue) *Manager {
	return &Manager{dev: dev, queue: queue, flipID: 1}
}

// Get returns a command pool ready for use, reusing one returned by a
// prior Flip/Reclaim cycle if available.
func (m *Manager) Get() *vgpu.CmdPool {
	m.mu.Lock()
	defer m.mu.Unlock()
	var cp *vgpu.CmdPool
	if n := len(m.free); n > 0 {
		cp = m.free[n-1]
		m.free = m.free[:n-1]
	} else {
		cp = &vgpu.CmdPool{}
		cp.ConfigTransient(m.dev, m.queue.FamilyIdx)
	}
	m.inUse = append(m.inUse, cp)
	return cp
}

// Batch is the set of pools checked out since the previous Flip,
// identified by the flip that collected them.
type Batch struct {
	FlipID uint64
	pools  []*vgpu.CmdPool
	mgr    *Manager
}

// Flip collects every pool checked out since the last Flip into a
// Batch and clears the in-use set, so subsequent Get calls start a new
// generation. The returned Batch must eventually be passed to Reclaim
// (directly, or from a vgpu/drd destroy callback once the work
// those pools recorded has finished on the GPU) — resetting a pool
// whose command buffers are still executing is undefined behavior.
func (m *Manager) Flip() *Batch {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := &Batch{FlipID: m.flipID, pools: m.inUse, mgr: m}
	m.inUse = nil
	m.flipID++
	return b
}

// Reclaim resets every pool in the batch (freeing their command
// buffers back to the pool in one call, cheaper than freeing them
// individually) and returns them to the free list for reuse.
func (m *Manager) Reclaim(b *Batch) {
	for _, cp := range b.pools {
		vk.ResetCommandPool(m.dev.Device, cp.Pool, 0)
	}
	m.mu.Lock()
	m.free = append(m.free, b.pools...)
	m.mu.Unlock()
}

// Destroy destroys every pool the manager currently knows about (free
// or checked out); callers must ensure no GPU work referencing them is
// still in flight.
func (m *Manager) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cp := range m.free {
		cp.Destroy(m.dev.Device)
	}
	for _, cp := range m.inUse {
		cp.Destroy(m.dev.Device)
	}
	m.free = nil
	m.inUse = nil
}
