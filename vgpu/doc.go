// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package vgpu implements a convenient interface to the Vulkan GPU-based
graphics and compute framework, in Go, using the
https://github.com/goki/vulkan Go bindings.

A Device resolves a logical vk.Device against a set of named queues
(graphics, transfer, slow-transfer, compute, sparse-binding), since a
compute/rendering core typically needs more than the single queue this
package originally assumed. The surrounding subpackages build on top of
Device/GPU: galloc suballocates device memory, cmdpool recycles command
buffers per frame, drd defers resource destruction until the GPU is done
with it, dqe sequences per-queue submission groups, submitinfo builds
the wait/execute/signal chains those groups submit, and transfer batches
buffer/image copies and queue-family ownership transfers into one build
of up to three semaphore-chained submissions.
*/
package vgpu
