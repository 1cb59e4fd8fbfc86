package dqe_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"cogentcore.org/vgpuengine/vgpu/dqe"
)

func newGroup() dqe.TaskGroup {
	return &errgroup.Group{}
}

func TestSameQueueSameRunSerialized(t *testing.T) {
	d := dqe.New()
	var mu sync.Mutex
	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		d.DeferExecution(dqe.QueueID(0), func() error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, d.Run(newGroup))
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestDifferentQueuesSameRunAllExecute(t *testing.T) {
	d := dqe.New()
	var mu sync.Mutex
	seen := map[dqe.QueueID]bool{}
	for q := dqe.QueueID(0); q < 4; q++ {
		q := q
		d.DeferExecution(q, func() error {
			mu.Lock()
			seen[q] = true
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, d.Run(newGroup))
	assert.Len(t, seen, 4)
}

func TestDeferSyncOrdersAcrossRuns(t *testing.T) {
	d := dqe.New()
	var mu sync.Mutex
	var order []string

	d.DeferExecution(dqe.QueueID(0), func() error {
		mu.Lock()
		order = append(order, "run1-q0")
		mu.Unlock()
		return nil
	})
	d.DeferSync()
	d.DeferExecution(dqe.QueueID(1), func() error {
		mu.Lock()
		order = append(order, "run2-q1")
		mu.Unlock()
		return nil
	})

	require.NoError(t, d.Run(newGroup))
	assert.Equal(t, []string{"run1-q0", "run2-q1"}, order)
}

func TestDeferSyncNoOpOnEmptyCurrentRun(t *testing.T) {
	d := dqe.New()
	d.DeferSync()
	d.DeferSync()
	d.DeferExecution(dqe.QueueID(0), func() error { return nil })
	assert.True(t, d.HasPending())
}

func TestDeferPresentSyncsFirst(t *testing.T) {
	d := dqe.New()
	var mu sync.Mutex
	var order []string
	d.DeferExecution(dqe.QueueID(0), func() error {
		mu.Lock()
		order = append(order, "submit")
		mu.Unlock()
		return nil
	})
	d.DeferPresent(dqe.QueueID(0), func() error {
		mu.Lock()
		order = append(order, "present")
		mu.Unlock()
		return nil
	})
	require.NoError(t, d.Run(newGroup))
	assert.Equal(t, []string{"submit", "present"}, order)
}

func TestHasPendingAfterRun(t *testing.T) {
	d := dqe.New()
	assert.False(t, d.HasPending())
	d.DeferExecution(dqe.QueueID(0), func() error { return nil })
	assert.True(t, d.HasPending())
	require.NoError(t, d.Run(newGroup))
	assert.False(t, d.HasPending())
}
