// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tasks is the default task manager the engine consumes: a
// work-stealing-flavored pool of worker goroutines bounded by a
// golang.org/x/sync/semaphore.Weighted, with short tasks and
// long-duration (blocking) tasks routed differently the way the
// original scheduler kept "normal" and "low priority/unsorted" queues
// apart. Callers that already have their own task manager can ignore
// this package entirely — engine only depends on the tasks.Manager
// interface.
package tasks

import (
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// SelectionMode controls which tasks ActivelyWaitFor is willing to run
// while cooperatively waiting for a marker.
type SelectionMode int

const (
	// SelectAny runs whatever task is next in queue.
	SelectAny SelectionMode = iota
	// SelectOnlyCurrentTaskGroup restricts cooperative running to tasks
	// belonging to the caller's own task group (see Pool.GetTaskInGroup).
	SelectOnlyCurrentTaskGroup
)

// Marker reports the completion of one submitted task.
type Marker struct {
	done  chan struct{}
	group string
}

func newMarker(group string) *Marker {
	return &Marker{done: make(chan struct{}), group: group}
}

// Complete reports whether the task has finished.
func (m *Marker) Complete() bool {
	select {
	case <-m.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the task completes.
func (m *Marker) Wait() {
	<-m.done
}

func (m *Marker) complete() {
	close(m.done)
}

// Manager is the contract the core context and engine modules consume
// for scheduling work; spec'd as an external collaborator so callers
// can substitute their own pool.
type Manager interface {
	// GetTask submits a short task, returning a Marker that completes
	// when fn returns.
	GetTask(fn func()) *Marker
	// GetLongDurationTask submits a task expected to block on I/O or a
	// wait, routed off the bounded worker pool so it can't starve short
	// tasks.
	GetLongDurationTask(fn func())
	// ActivelyWaitFor cooperatively runs other pending tasks on the
	// calling goroutine until marker completes, instead of blocking it.
	ActivelyWaitFor(marker *Marker, mode SelectionMode)
	// HasPendingTasks reports whether any task is queued or running.
	HasPendingTasks() bool
	// RunATask runs one pending task on the calling goroutine if one is
	// available, reporting whether it found one.
	RunATask() bool
	// RequestStop asks the pool to stop accepting new tasks, invoking
	// callback and returning true once no task is outstanding. If
	// allowRetry is false and tasks are still outstanding, it declines
	// (returns false) and the caller may call RequestStop again later;
	// if allowRetry is true, it keeps retrying itself until accepted.
	RequestStop(callback func(), allowRetry bool) bool
}

type queuedTask struct {
	fn    func()
	group string
	m     *Marker
}

// Pool is the default Manager: a fixed-size worker pool bounded by a
// weighted semaphore, plus unbounded goroutines for long-duration
// tasks.
type Pool struct {
	sem     *semaphore.Weighted
	workers int

	mu      sync.Mutex
	queue   []*queuedTask
	pending int64 // queued + in-flight, short and long duration alike

	stopping atomic.Bool
	stopped  atomic.Bool
}

// NewPool creates a Pool allowing up to workers short tasks to run
// concurrently. A floor of 4 matches the engine's minimum general
// worker count (spec §4.H).
func NewPool(workers int) *Pool {
	if workers < 4 {
		workers = 4
	}
	return &Pool{sem: semaphore.NewWeighted(int64(workers)), workers: workers}
}

var _ Manager = (*Pool)(nil)

// GetTask implements Manager.
func (p *Pool) GetTask(fn func()) *Marker {
	return p.submit(fn, "")
}

// GetTaskInGroup is GetTask, tagging the task with a group id so a
// caller holding the returned Marker can later ActivelyWaitFor it with
// SelectOnlyCurrentTaskGroup and only run its own group's backlog
// rather than stealing arbitrary work.
func (p *Pool) GetTaskInGroup(group string, fn func()) *Marker {
	return p.submit(fn, group)
}

func (p *Pool) submit(fn func(), group string) *Marker {
	m := newMarker(group)
	if p.stopping.Load() {
		m.complete()
		return m
	}
	atomic.AddInt64(&p.pending, 1)
	qt := &queuedTask{fn: fn, group: group, m: m}
	if p.sem.TryAcquire(1) {
		go p.run(qt)
		return m
	}
	p.mu.Lock()
	p.queue = append(p.queue, qt)
	p.mu.Unlock()
	return m
}

func (p *Pool) run(qt *queuedTask) {
	p.runOne(qt)
	atomic.AddInt64(&p.pending, -1)
	p.drainQueueIntoSlot()
}

func (p *Pool) runOne(qt *queuedTask) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("tasks: task panicked", "recover", r)
		}
		qt.m.complete()
	}()
	qt.fn()
}

// drainQueueIntoSlot picks up the next queued task using the slot just
// freed by run's own completion, avoiding a goroutine hop back through
// the semaphore for the common case of a backlog. With an empty queue
// the slot is released instead.
func (p *Pool) drainQueueIntoSlot() {
	for {
		p.mu.Lock()
		var next *queuedTask
		if len(p.queue) > 0 {
			next = p.queue[0]
			p.queue = p.queue[1:]
		}
		p.mu.Unlock()
		if next != nil {
			go p.run(next)
			return
		}
		p.sem.Release(1)
		// A task queued between the check above and the release would
		// otherwise wait for some later completion; reclaim a slot for it.
		p.mu.Lock()
		queued := len(p.queue) > 0
		p.mu.Unlock()
		if !queued || !p.sem.TryAcquire(1) {
			return
		}
	}
}

// GetLongDurationTask implements Manager: always runs on its own
// goroutine, never touching the bounded semaphore, so a blocking I/O
// call can't starve the short-task pool.
func (p *Pool) GetLongDurationTask(fn func()) {
	if p.stopping.Load() {
		return
	}
	atomic.AddInt64(&p.pending, 1)
	go func() {
		defer atomic.AddInt64(&p.pending, -1)
		defer func() {
			if r := recover(); r != nil {
				slog.Error("tasks: long-duration task panicked", "recover", r)
			}
		}()
		fn()
	}()
}

// ActivelyWaitFor implements Manager by running queued short tasks on
// the calling goroutine (cooperative, not spawning new ones) until
// marker completes — the mechanism vgpu/transfer's Build relies on to
// drain outstanding memcpy tasks without deadlocking a worker.
func (p *Pool) ActivelyWaitFor(marker *Marker, mode SelectionMode) {
	for !marker.Complete() {
		if !p.runQueuedInline(marker.group, mode) {
			runtime.Gosched()
			time.Sleep(50 * time.Microsecond)
		}
	}
}

func (p *Pool) runQueuedInline(group string, mode SelectionMode) bool {
	p.mu.Lock()
	idx := -1
	for i, qt := range p.queue {
		if mode == SelectOnlyCurrentTaskGroup && qt.group != group {
			continue
		}
		idx = i
		break
	}
	if idx < 0 {
		p.mu.Unlock()
		return false
	}
	qt := p.queue[idx]
	p.queue = append(p.queue[:idx], p.queue[idx+1:]...)
	p.mu.Unlock()

	p.runOne(qt)
	atomic.AddInt64(&p.pending, -1)
	return true
}

// HasPendingTasks implements Manager.
func (p *Pool) HasPendingTasks() bool {
	return atomic.LoadInt64(&p.pending) > 0
}

// RunATask implements Manager: runs one queued task inline if any is
// available.
func (p *Pool) RunATask() bool {
	return p.runQueuedInline("", SelectAny)
}

// RequestStop implements Manager. It marks the pool as no longer
// accepting new tasks, then polls (per spec §4.H's "retry every 1ms
// until accepted") until every in-flight and queued task has drained,
// at which point it invokes callback and returns true. If allowRetry
// is false and tasks are still outstanding, it returns false
// immediately instead of polling.
func (p *Pool) RequestStop(callback func(), allowRetry bool) bool {
	p.stopping.Store(true)
	if !p.HasPendingTasks() {
		p.stopped.Store(true)
		callback()
		return true
	}
	if !allowRetry {
		return false
	}
	for p.HasPendingTasks() {
		time.Sleep(time.Millisecond)
	}
	p.stopped.Store(true)
	callback()
	return true
}

// Stopped reports whether RequestStop has completed.
func (p *Pool) Stopped() bool {
	return p.stopped.Load()
}
