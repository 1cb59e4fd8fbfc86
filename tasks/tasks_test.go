package tasks_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cogentcore.org/vgpuengine/tasks"
)

func TestGetTaskRunsAndMarkerCompletes(t *testing.T) {
	p := tasks.NewPool(4)
	var ran atomic.Bool
	m := p.GetTask(func() { ran.Store(true) })
	m.Wait()
	assert.True(t, ran.Load())
}

func TestGetTaskQueuesBeyondWorkerCount(t *testing.T) {
	p := tasks.NewPool(4)
	var count atomic.Int32
	markers := make([]*tasks.Marker, 0, 20)
	for i := 0; i < 20; i++ {
		markers = append(markers, p.GetTask(func() {
			count.Add(1)
		}))
	}
	for _, m := range markers {
		m.Wait()
	}
	assert.EqualValues(t, 20, count.Load())
}

func TestGetLongDurationTaskDoesNotBlockShortTasks(t *testing.T) {
	p := tasks.NewPool(4)
	block := make(chan struct{})
	p.GetLongDurationTask(func() {
		<-block
	})
	m := p.GetTask(func() {})
	done := make(chan struct{})
	go func() {
		m.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("short task starved by a long-duration task")
	}
	close(block)
}

func TestActivelyWaitForDrainsQueueCooperatively(t *testing.T) {
	// NewPool never runs fewer than 4 workers, so occupy all 4 slots to
	// force the target task into the queue.
	p := tasks.NewPool(4)
	blocker := make(chan struct{})
	holdMarkers := make([]*tasks.Marker, 0, 4)
	for i := 0; i < 4; i++ {
		holdMarkers = append(holdMarkers, p.GetTask(func() { <-blocker }))
	}

	var ran atomic.Bool
	target := p.GetTaskInGroup("g", func() { ran.Store(true) })

	go func() {
		time.Sleep(10 * time.Millisecond)
		close(blocker)
	}()
	p.ActivelyWaitFor(target, tasks.SelectOnlyCurrentTaskGroup)
	assert.True(t, ran.Load())
	for _, m := range holdMarkers {
		m.Wait()
	}
}

func TestHasPendingTasksReflectsQueueAndInFlight(t *testing.T) {
	p := tasks.NewPool(4)
	assert.False(t, p.HasPendingTasks())
	block := make(chan struct{})
	m := p.GetTask(func() { <-block })
	assert.True(t, p.HasPendingTasks())
	close(block)
	m.Wait()
}

func TestRequestStopWithNoPendingTasksCompletesImmediately(t *testing.T) {
	p := tasks.NewPool(4)
	var called atomic.Bool
	ok := p.RequestStop(func() { called.Store(true) }, false)
	assert.True(t, ok)
	assert.True(t, called.Load())
	assert.True(t, p.Stopped())
}

func TestRequestStopWithoutRetryDeclinesWhilePending(t *testing.T) {
	p := tasks.NewPool(4)
	block := make(chan struct{})
	m := p.GetTask(func() { <-block })
	ok := p.RequestStop(func() {}, false)
	assert.False(t, ok)
	close(block)
	m.Wait()
}

func TestRequestStopRejectsNewTasksAfterStopping(t *testing.T) {
	p := tasks.NewPool(4)
	require.True(t, p.RequestStop(func() {}, false))
	m := p.GetTask(func() { t.Fatal("task must not run after stop") })
	m.Wait() // completes immediately, fn never runs
}
