// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dqe implements deferred queue execution: callers record
// per-queue work (vkQueueSubmit, vkQueuePresentKHR, and the like)
// without running it immediately, and a driver elsewhere in the engine
// pumps the accumulated runs at a convenient point in the frame.
//
// Work is organized into a sequence of runs; each run maps a queue
// identifier to an ordered list of closures. Two closures recorded for
// the same queue within the same run always execute in the order
// recorded (Vulkan queue submission itself is not safe to parallelize);
// closures for different queues within the same run execute
// concurrently. Runs themselves execute strictly in sequence — nothing
// in run N+1 starts until every closure in run N has returned.
package dqe

import (
	"sync"
)

// QueueID identifies one of the engine's named queues (see vgpu.QueueName)
// without dqe importing the vgpu package — it only needs queues to be
// comparable keys.
type QueueID int

// Closure is one deferred unit of queue work. An error skips the
// remaining closures for the same queue in that run; closures for other
// queues in the run still execute.
type Closure func() error

// TaskGroup is the minimal shape dqe needs from a worker-pool
// implementation to run one run's closures concurrently; it matches
// golang.org/x/sync/errgroup.Group's Go/Wait signatures exactly, so a
// bare *errgroup.Group satisfies it with no adapter. tasks.Manager does
// not have these methods.
type TaskGroup interface {
	Go(func() error)
	Wait() error
}

type run struct {
	order []QueueID
	byQ   map[QueueID][]Closure
}

func newRun() *run {
	return &run{byQ: map[QueueID][]Closure{}}
}

func (r *run) empty() bool { return len(r.byQ) == 0 }

// DQE is a deferred queue execution sequence.
type DQE struct {
	mu   sync.Mutex
	runs []*run
}

// New creates an empty DQE.
func New() *DQE {
	return &DQE{}
}

// DeferExecution appends fn to the current run's list for queue. If no
// run is open yet, one is started.
func (d *DQE) DeferExecution(queue QueueID, fn Closure) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r := d.currentLocked()
	if _, ok := r.byQ[queue]; !ok {
		r.order = append(r.order, queue)
	}
	r.byQ[queue] = append(r.byQ[queue], fn)
}

// DeferSync inserts a barrier: every closure deferred before this call
// completes before any closure deferred after it begins, even across
// different queues. A no-op if the current run is already empty (no
// sense opening two barriers back to back).
func (d *DQE) DeferSync() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.runs) > 0 && d.runs[len(d.runs)-1].empty() {
		return
	}
	d.runs = append(d.runs, newRun())
}

// DeferPresent defers fn (typically a vkQueuePresentKHR call) on queue,
// first inserting a sync barrier — matching the original engine's own
// queue.submit/queue.present behavior of always syncing before
// recording their own closure, so a present always waits for everything
// deferred ahead of it, on every queue, rather than racing work the
// caller recorded moments earlier.
func (d *DQE) DeferPresent(queue QueueID, fn Closure) {
	d.DeferSync()
	d.DeferExecution(queue, fn)
}

func (d *DQE) currentLocked() *run {
	if len(d.runs) == 0 {
		d.runs = append(d.runs, newRun())
	}
	return d.runs[len(d.runs)-1]
}

// Run executes every queued run in order, draining the DQE. newGroup
// must return a fresh TaskGroup each call (errgroup.Group instances are
// single-use). A closure's error skips only the closures queued after it
// for the same queue in that run; the run still waits for every other
// queue's closures to return, and later runs still execute, so that,
// e.g., a failed transfer doesn't also skip an unrelated present already
// queued behind it. Run returns the first error encountered, if any.
func (d *DQE) Run(newGroup func() TaskGroup) error {
	d.mu.Lock()
	runs := d.runs
	d.runs = nil
	d.mu.Unlock()

	var firstErr error
	for _, r := range runs {
		g := newGroup()
		for _, q := range r.order {
			closures := r.byQ[q]
			g.Go(func() error {
				for _, c := range closures {
					if err := c(); err != nil {
						return err
					}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// HasPending reports whether any work is queued.
func (d *DQE) HasPending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range d.runs {
		if !r.empty() {
			return true
		}
	}
	return false
}
