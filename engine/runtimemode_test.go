// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"cogentcore.org/vgpuengine/engine"
)

func TestRuntimeModeHasRespectsImpliedTiers(t *testing.T) {
	assert.True(t, engine.ModeHydraContext.Has(engine.ModeVulkanContext))
	assert.True(t, engine.ModeHydraContext.Has(engine.ModeCore))
	assert.False(t, engine.ModeCore.Has(engine.ModeVulkanContext))
}

func TestRuntimeModeContextTierMasksFeatureFlags(t *testing.T) {
	m := engine.ModeVulkanContext | engine.ModeOffscreen | engine.ModeRelease
	assert.Equal(t, engine.ModeVulkanContext, m.ContextTier())
}

func TestRuntimeModeStringRendersNamedBits(t *testing.T) {
	m := engine.ModeHydraContext | engine.ModeOffline
	s := m.String()
	assert.Contains(t, s, "hydra")
	assert.Contains(t, s, "offline")
	assert.NotContains(t, s, "core")
}

func TestRuntimeModeStringZeroIsNone(t *testing.T) {
	assert.Equal(t, "none", engine.RuntimeMode(0).String())
}
