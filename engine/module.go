// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"fmt"
	"sync"

	vk "github.com/goki/vulkan"

	"cogentcore.org/vgpuengine/tasks"
	"cogentcore.org/vgpuengine/vgpu"
)

// Module is an engine module: an object that affects core components
// and contributes functionality (spec.md's "engine modules"). Lifecycle
// callbacks are optional — embed Base to get no-op defaults and
// override only what a module needs.
type Module interface {
	// IsCompatibleWith filters the module out of a boot whose
	// RuntimeMode doesn't satisfy it. Must be side-effect free.
	IsCompatibleWith(mode RuntimeMode) bool

	SetEngine(e *Engine)

	OnPreBootStep()
	AddTaskGroups(tm tasks.Manager)
	OnContextInitialized()
	OnResourceIndexLoaded()
	OnEngineBootComplete()

	InitVulkanInterface(gp *vgpu.GPU)
	FilterQueue(inst vk.Instance, queueType vk.QueueFlagBits, index int, gp *vgpu.GPU) bool

	OnStartShutdown()
	OnShutdown()
}

// Base provides no-op implementations of every Module hook; embed it so
// a concrete module only needs to override what it actually uses —
// matching the original's engine_module_base virtuals-with-defaults.
type Base struct {
	Engine *Engine
}

func (b *Base) IsCompatibleWith(RuntimeMode) bool                              { return true }
func (b *Base) SetEngine(e *Engine)                                            { b.Engine = e }
func (b *Base) OnPreBootStep()                                                 {}
func (b *Base) AddTaskGroups(tasks.Manager)                                    {}
func (b *Base) OnContextInitialized()                                         {}
func (b *Base) OnResourceIndexLoaded()                                        {}
func (b *Base) OnEngineBootComplete()                                         {}
func (b *Base) InitVulkanInterface(*vgpu.GPU)                                 {}
func (b *Base) FilterQueue(vk.Instance, vk.QueueFlagBits, int, *vgpu.GPU) bool { return true }
func (b *Base) OnStartShutdown()                                              {}
func (b *Base) OnShutdown()                                                   {}

var _ Module = (*Base)(nil)

// Factory creates one instance of a module.
type Factory func() Module

type registration struct {
	name       string
	compatible func(RuntimeMode) bool
	factory    Factory
}

var (
	registryMu sync.Mutex
	registry   = map[string]registration{}
)

// RegisterModule adds a module to the global registry under name. It
// returns an error if name is already registered — spec §6 requires
// duplicate module names to be rejected, not silently overwritten.
// Call this (directly, or through RegisterAll) from an explicit
// composition root (see the package doc comment) rather than from an
// init func: Go gives no
// ordering guarantee across package inits equivalent to the original's
// static-initializer self-registration, so registration here is
// intentionally explicit instead of implicit.
func RegisterModule(name string, compatible func(RuntimeMode) bool, factory Factory) error {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		return fmt.Errorf("engine: module %q already registered", name)
	}
	if compatible == nil {
		compatible = func(RuntimeMode) bool { return true }
	}
	registry[name] = registration{name: name, compatible: compatible, factory: factory}
	return nil
}

// UnregisterModule removes a module from the global registry, if present.
func UnregisterModule(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, name)
}

// FilterModules returns every registered module compatible with mode,
// each freshly constructed via its factory. A module is kept only if
// both its registration's compatible func and its own IsCompatibleWith
// accept mode.
func FilterModules(mode RuntimeMode) []Module {
	registryMu.Lock()
	defer registryMu.Unlock()
	mods := make([]Module, 0, len(registry))
	for _, r := range registry {
		if r.compatible(mode) {
			if m := r.factory(); m.IsCompatibleWith(mode) {
				mods = append(mods, m)
			}
		}
	}
	return mods
}
