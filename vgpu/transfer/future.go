// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transfer

import "sync/atomic"

// Future reports the completion of one queued host-to-device upload.
// It is the Go analogue of the original's
// async::continuation_chain: a caller gets one back from AsyncTransfer*
// and can Wait for it, or Cancel it before the copy has actually been
// recorded into a command buffer.
type Future struct {
	done      chan struct{}
	err       error
	cancelled atomic.Bool
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Wait blocks until the transfer completes (or was cancelled) and
// returns its error, if any.
func (f *Future) Wait() error {
	<-f.done
	return f.err
}

// Done returns a channel closed once the transfer completes, for
// select-based waiting alongside other events.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Cancel marks the transfer for removal before it is built into a
// command buffer; it has no effect once the copy has already been
// recorded.
func (f *Future) Cancel() {
	f.cancelled.Store(true)
}

func (f *Future) isCancelled() bool {
	return f.cancelled.Load()
}

func (f *Future) complete(err error) {
	f.err = err
	close(f.done)
}
