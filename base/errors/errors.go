// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package errors provides small helpers for the log-and-continue error
// idiom used throughout the engine's non-fatal paths (fatal driver
// errors instead panic, via vgpu.IfPanic).
package errors

import (
	"fmt"
	"log/slog"
)

// Log logs a non-nil error at Error level and returns it unchanged, so
// callers can write `return errors.Log(err)` at a fallible-but-
// continuable call site without duplicating the log call at every
// return point.
func Log(err error) error {
	if err == nil {
		return nil
	}
	slog.Error(err.Error())
	return err
}

// New is a thin wrapper over fmt.Errorf, kept so call sites can import
// one errors package for both construction and logging.
func New(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}
