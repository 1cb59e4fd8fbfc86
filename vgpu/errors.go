// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vgpu

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

// Debug turns on additional debug diagnostic printing, configured at the
// call site (not from an environment variable), matching the teacher's
// existing `if Debug { ... }` call sites in the vgpu package.
var Debug = false

// IsError returns true if the given vulkan Result indicates an error
// (anything other than vk.Success).
func IsError(ret vk.Result) bool {
	return ret != vk.Success
}

// NewError returns an error wrapping the given vulkan Result code,
// or nil if the result indicates success.
func NewError(ret vk.Result) error {
	if !IsError(ret) {
		return nil
	}
	return fmt.Errorf("vulkan error: %d", ret)
}

// IfPanic panics if err is non-nil. Used at call sites where the driver
// call should never fail under correct usage (device creation, buffer
// allocation) and a returned error would only complicate every caller.
func IfPanic(err error) {
	if err != nil {
		panic(err)
	}
}
