// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package engine ties the vgpu components together into the engine core
// context described by spec.md §4.H: runtime-mode selection, explicit
// module registration, a worker-thread pool with stall control, and the
// boot/shutdown sequence that brings a resource index online before
// handing control to modules.
//
// Modules are registered by calling RegisterModule, directly or through
// this package's RegisterAll, from an explicit composition root in each
// program's main package rather than from a package init: Go gives no
// ordering guarantee across package inits equivalent to the original
// engine's static-initializer self-registration, so registration here
// is intentionally explicit instead of implicit.
package engine

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"cogentcore.org/vgpuengine/tasks"
	"cogentcore.org/vgpuengine/vgpu"
	"cogentcore.org/vgpuengine/vgpu/cmdpool"
	"cogentcore.org/vgpuengine/vgpu/dqe"
	"cogentcore.org/vgpuengine/vgpu/drd"
	"cogentcore.org/vgpuengine/vgpu/galloc"
	"cogentcore.org/vgpuengine/vgpu/submitinfo"
	"cogentcore.org/vgpuengine/vgpu/transfer"
)

// IndexSource selects how the engine brings its resource index online
// during Boot (spec §4.H boot sequence, step "request resources-index
// init").
type IndexSource int

const (
	// IndexEmpty starts with no resources registered.
	IndexEmpty IndexSource = iota
	// IndexFromData loads the index from an in-memory byte blob.
	IndexFromData
	// IndexFromFile loads the index from a path on disk.
	IndexFromFile
)

// IndexStatus is the outcome of bringing the resource index online.
type IndexStatus int

const (
	IndexSuccess IndexStatus = iota
	IndexPartialSuccess
	IndexFailure
)

// IndexBootParams describes how to initialize the resource index.
type IndexBootParams struct {
	Source IndexSource
	Data   []byte
	Path   string
}

// ResourceIndexLoader builds or loads a resource index. Engines that
// don't need a resource index can leave Engine.IndexLoader nil; Boot
// then treats the index as trivially ready.
type ResourceIndexLoader interface {
	LoadIndex(params IndexBootParams) IndexStatus
}

// Engine is the core context: the Vulkan device and the deferred/
// suballocation machinery built on top of it, a worker pool, and the
// set of modules filtered in for the current RuntimeMode.
type Engine struct {
	Mode   RuntimeMode
	Config Config

	GPU    *vgpu.GPU
	Device *vgpu.Device

	Allocator *galloc.Allocator
	CmdPool   *cmdpool.Manager
	DRD       *drd.DRD
	DQE       *dqe.DQE
	Submit    *submitinfo.Builder
	Transfer  *transfer.Context
	Tasks     tasks.Manager

	IndexLoader ResourceIndexLoader

	modules []Module

	bootOnce sync.Once
	booted   atomic.Bool
	stopping atomic.Bool

	workerStop chan struct{}
	workerWG   sync.WaitGroup
	stallUpTo  atomic.Int32 // workers with index >= this value stall; -1 means none
}

// New constructs an Engine for the given mode and configuration. The
// Vulkan-dependent fields (GPU, Device, Allocator, ...) are left for the
// caller to fill in before Boot, since their construction needs a real
// vk.Instance that this package deliberately doesn't own.
func New(mode RuntimeMode, cfg Config) *Engine {
	e := &Engine{Mode: mode, Config: cfg}
	e.stallUpTo.Store(-1)
	return e
}

// generalWorkerCount clamps the configured worker count into
// [4, 4*runtime.NumCPU()], per spec §4.H step 3.
func (e *Engine) generalWorkerCount() int {
	want := e.Config.GeneralWorkers
	max := 4 * runtime.NumCPU()
	if want < 4 {
		want = 4
	}
	if want > max {
		want = max
	}
	return want
}

// Boot runs the engine's startup sequence: install the module task
// graph, spawn the worker pool, bring the resource index online, and
// then notify modules of each stage in turn. Boot is idempotent — calling
// it more than once has no further effect.
func (e *Engine) Boot(index IndexBootParams) IndexStatus {
	status := IndexSuccess
	e.bootOnce.Do(func() {
		e.modules = FilterModules(e.Mode)
		for _, m := range e.modules {
			m.SetEngine(e)
		}

		for _, m := range e.modules {
			m.OnPreBootStep()
		}
		if e.Tasks != nil {
			for _, m := range e.modules {
				m.AddTaskGroups(e.Tasks)
			}
		}

		e.spawnWorkers()

		if e.IndexLoader != nil {
			status = e.IndexLoader.LoadIndex(index)
		}

		for _, m := range e.modules {
			m.OnContextInitialized()
		}
		for _, m := range e.modules {
			m.OnResourceIndexLoaded()
		}
		for _, m := range e.modules {
			m.OnEngineBootComplete()
		}
		e.booted.Store(true)
	})
	return status
}

// spawnWorkers starts the general worker-thread pool. Each worker runs
// tasks from e.Tasks, sleeping in Config.StallMillis increments (500ms
// if unset) while its index is stalled (StallAllThreadsExcept).
func (e *Engine) spawnWorkers() {
	if e.Tasks == nil {
		return
	}
	n := e.generalWorkerCount()
	e.workerStop = make(chan struct{})
	stallMillis := e.Config.StallMillis
	if stallMillis <= 0 {
		stallMillis = 500
	}
	for i := 0; i < n; i++ {
		idx := i
		e.workerWG.Add(1)
		go func() {
			defer e.workerWG.Done()
			e.runWorker(idx, time.Duration(stallMillis)*time.Millisecond)
		}()
	}
}

func (e *Engine) runWorker(idx int, stallEvery time.Duration) {
	for {
		select {
		case <-e.workerStop:
			return
		default:
		}
		if e.isStalled(idx) {
			time.Sleep(stallEvery)
			continue
		}
		if !e.Tasks.RunATask() {
			time.Sleep(time.Millisecond)
		}
	}
}

func (e *Engine) isStalled(idx int) bool {
	up := e.stallUpTo.Load()
	return up >= 0 && int32(idx) >= up
}

// StallAllThreadsExcept stalls every general worker whose index is >= n,
// leaving the first n free to keep running tasks.
func (e *Engine) StallAllThreadsExcept(n int) {
	e.stallUpTo.Store(int32(n))
}

// UnstallAllThreads releases every worker stalled by StallAllThreadsExcept.
func (e *Engine) UnstallAllThreads() {
	e.stallUpTo.Store(-1)
}

// StopApp runs the engine's graceful-shutdown sequence: unstall every
// worker, notify modules shutdown is starting, then retry
// Tasks.RequestStop every millisecond until it's accepted (spec §4.H:
// "post long-duration task retrying try_request_stop every 1ms until
// accepted").
func (e *Engine) StopApp() {
	if !e.stopping.CompareAndSwap(false, true) {
		return
	}
	e.UnstallAllThreads()
	for _, m := range e.modules {
		m.OnStartShutdown()
	}
	if e.Tasks != nil {
		for !e.Tasks.RequestStop(func() {}, false) {
			time.Sleep(time.Millisecond)
		}
	}
	for _, m := range e.modules {
		m.OnShutdown()
	}
}

// Destroy tears the engine down: if it was never booted this is a
// no-op; otherwise StopApp, join the worker pool, and drain any
// remaining tasks via RunATask until none are pending.
func (e *Engine) Destroy() {
	if !e.booted.Load() {
		return
	}
	e.StopApp()
	if e.workerStop != nil {
		close(e.workerStop)
	}
	e.workerWG.Wait()
	if e.Tasks != nil {
		for e.Tasks.HasPendingTasks() {
			if !e.Tasks.RunATask() {
				time.Sleep(time.Millisecond)
			}
		}
	}
}

// Registration bundles the arguments RegisterModule needs for one
// module, for use with RegisterAll.
type Registration struct {
	Compatible func(RuntimeMode) bool
	Factory    Factory
}

// RegisterAll is a convenience composition root a program can call
// instead of hand-rolling RegisterModule calls; it logs a warning
// (rather than failing the whole boot) for any duplicate name, since a
// duplicate registration attempt most often means a program imported
// the same module package twice.
func RegisterAll(registrations map[string]Registration) {
	for name, r := range registrations {
		if err := RegisterModule(name, r.Compatible, r.Factory); err != nil {
			slog.Warn("engine: skipping duplicate module registration", "name", name, "error", err)
		}
	}
}

// Booted reports whether Boot has completed.
func (e *Engine) Booted() bool { return e.booted.Load() }

// String identifies the engine by its mode, for logging.
func (e *Engine) String() string {
	return fmt.Sprintf("engine(mode=%s)", e.Mode)
}
