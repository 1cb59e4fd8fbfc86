// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine_test

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cogentcore.org/vgpuengine/engine"
	"cogentcore.org/vgpuengine/tasks"
)

type recordingModule struct {
	engine.Base
	events *[]string
}

func (m *recordingModule) OnPreBootStep()         { *m.events = append(*m.events, "pre-boot") }
func (m *recordingModule) OnContextInitialized()  { *m.events = append(*m.events, "context") }
func (m *recordingModule) OnResourceIndexLoaded()  { *m.events = append(*m.events, "index") }
func (m *recordingModule) OnEngineBootComplete()  { *m.events = append(*m.events, "complete") }
func (m *recordingModule) OnStartShutdown()       { *m.events = append(*m.events, "start-shutdown") }
func (m *recordingModule) OnShutdown()            { *m.events = append(*m.events, "shutdown") }

type fakeIndex struct {
	status engine.IndexStatus
	seen   engine.IndexBootParams
}

func (f *fakeIndex) LoadIndex(p engine.IndexBootParams) engine.IndexStatus {
	f.seen = p
	return f.status
}

func TestBootRunsModuleHooksInOrder(t *testing.T) {
	var events []string
	name := "engine-test-recording"
	require.NoError(t, engine.RegisterModule(name, nil, func() engine.Module {
		return &recordingModule{events: &events}
	}))
	defer engine.UnregisterModule(name)

	e := engine.New(engine.ModeCore, engine.DefaultConfig())
	e.Tasks = tasks.NewPool(4)
	idx := &fakeIndex{status: engine.IndexSuccess}
	e.IndexLoader = idx

	status := e.Boot(engine.IndexBootParams{Source: engine.IndexFromFile, Path: "resources.idx"})
	assert.Equal(t, engine.IndexSuccess, status)
	assert.Equal(t, "resources.idx", idx.seen.Path)
	assert.Equal(t, []string{"pre-boot", "context", "index", "complete"}, events)
	assert.True(t, e.Booted())

	e.Destroy()
}

func TestBootIsIdempotent(t *testing.T) {
	e := engine.New(engine.ModeCore, engine.DefaultConfig())
	e.Tasks = tasks.NewPool(4)
	var calls atomic.Int32
	name := "engine-test-idempotent"
	require.NoError(t, engine.RegisterModule(name, nil, func() engine.Module {
		return &countingModule{calls: &calls}
	}))
	defer engine.UnregisterModule(name)

	e.Boot(engine.IndexBootParams{})
	e.Boot(engine.IndexBootParams{})
	assert.EqualValues(t, 1, calls.Load())
	e.Destroy()
}

type countingModule struct {
	engine.Base
	calls *atomic.Int32
}

func (m *countingModule) OnEngineBootComplete() { m.calls.Add(1) }

func TestGeneralWorkersRunQueuedTasks(t *testing.T) {
	e := engine.New(engine.ModeCore, engine.DefaultConfig())
	e.Tasks = tasks.NewPool(4)
	e.Boot(engine.IndexBootParams{})

	var ran atomic.Bool
	m := e.Tasks.GetTask(func() { ran.Store(true) })
	m.Wait()
	assert.True(t, ran.Load())
	e.Destroy()
}

func TestStallAndUnstallAllThreadsDoNotDeadlockTaskExecution(t *testing.T) {
	cfg := engine.DefaultConfig()
	cfg.GeneralWorkers = 4
	e := engine.New(engine.ModeCore, cfg)
	e.Tasks = tasks.NewPool(4)
	e.Boot(engine.IndexBootParams{})

	e.StallAllThreadsExcept(0)
	e.UnstallAllThreads()

	var ran atomic.Bool
	m := e.Tasks.GetTask(func() { ran.Store(true) })
	m.Wait()
	assert.True(t, ran.Load())
	e.Destroy()
}

func TestStopAppIsIdempotentAndNotifiesModules(t *testing.T) {
	var events []string
	name := "engine-test-shutdown"
	require.NoError(t, engine.RegisterModule(name, nil, func() engine.Module {
		return &recordingModule{events: &events}
	}))
	defer engine.UnregisterModule(name)

	pool := tasks.NewPool(4)
	e := engine.New(engine.ModeCore, engine.DefaultConfig())
	e.Tasks = pool
	e.Boot(engine.IndexBootParams{})

	e.StopApp()
	e.StopApp()
	assert.Equal(t, []string{"pre-boot", "context", "index", "complete", "start-shutdown", "shutdown"}, events)
	assert.True(t, pool.Stopped())
	e.Destroy()
}

func TestDestroyWithoutBootIsNoOp(t *testing.T) {
	e := engine.New(engine.ModeCore, engine.DefaultConfig())
	assert.NotPanics(t, func() { e.Destroy() })
}
