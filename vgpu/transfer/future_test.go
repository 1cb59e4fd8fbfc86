package transfer

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFutureWaitBlocksUntilComplete(t *testing.T) {
	f := newFuture()
	done := make(chan struct{})
	go func() {
		f.complete(nil)
		close(done)
	}()
	require.NoError(t, f.Wait())
	<-done
}

func TestFutureWaitReturnsError(t *testing.T) {
	f := newFuture()
	want := errors.New("boom")
	f.complete(want)
	assert.Equal(t, want, f.Wait())
}

func TestFutureDoneChannelClosesOnComplete(t *testing.T) {
	f := newFuture()
	select {
	case <-f.Done():
		t.Fatal("Done closed before complete")
	default:
	}
	f.complete(nil)
	select {
	case <-f.Done():
	case <-time.After(time.Second):
		t.Fatal("Done never closed")
	}
}

func TestFutureCancelDoesNotCompleteIt(t *testing.T) {
	f := newFuture()
	f.Cancel()
	assert.True(t, f.isCancelled())
	select {
	case <-f.Done():
		t.Fatal("cancel must not complete the future by itself")
	default:
	}
}
