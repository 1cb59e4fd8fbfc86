// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cogentcore.org/vgpuengine/engine"
)

type noopModule struct{ engine.Base }

func TestRegisterModuleRejectsDuplicateNames(t *testing.T) {
	name := "engine-test-dup"
	require.NoError(t, engine.RegisterModule(name, nil, func() engine.Module { return &noopModule{} }))
	defer engine.UnregisterModule(name)

	err := engine.RegisterModule(name, nil, func() engine.Module { return &noopModule{} })
	assert.Error(t, err)
}

func TestFilterModulesHonorsCompatibility(t *testing.T) {
	onlyHydra := "engine-test-hydra-only"
	always := "engine-test-always"
	require.NoError(t, engine.RegisterModule(onlyHydra, func(m engine.RuntimeMode) bool {
		return m.Has(engine.ModeHydraContext)
	}, func() engine.Module { return &noopModule{} }))
	require.NoError(t, engine.RegisterModule(always, nil, func() engine.Module { return &noopModule{} }))
	defer engine.UnregisterModule(onlyHydra)
	defer engine.UnregisterModule(always)

	core := engine.FilterModules(engine.ModeCore)
	assert.Len(t, core, 1)

	hydra := engine.FilterModules(engine.ModeHydraContext)
	assert.Len(t, hydra, 2)
}

func TestUnregisterModuleRemovesIt(t *testing.T) {
	name := "engine-test-unregister"
	require.NoError(t, engine.RegisterModule(name, nil, func() engine.Module { return &noopModule{} }))
	engine.UnregisterModule(name)
	require.NoError(t, engine.RegisterModule(name, nil, func() engine.Module { return &noopModule{} }))
	engine.UnregisterModule(name)
}

func TestBaseSetEngineStoresPointer(t *testing.T) {
	b := &engine.Base{}
	e := engine.New(engine.ModeCore, engine.DefaultConfig())
	b.SetEngine(e)
	assert.Same(t, e, b.Engine)
}
