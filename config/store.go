// Package config implements spec.md §4.4's ConfigurationStore: a base
// settings map set once at connect time, and a per-reuse-iteration
// overlay, with ordered, type-coercing lookup.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package config

import (
	"sync"

	"github.com/hpcmsg/muscore/cmn"
	"github.com/hpcmsg/muscore/ref"
	"github.com/hpcmsg/muscore/wire"
)

// Store holds the two maps described by spec.md §4.4 and serializes
// access to them the same way the manager's instance registry serializes
// register/deregister against request_peers (spec.md §5): a single
// RWMutex is the whole locking story, no finer granularity needed.
type Store struct {
	mu      sync.RWMutex
	base    *wire.Configuration
	overlay *wire.Configuration
}

func NewStore() *Store {
	return &Store{base: wire.NewConfiguration(), overlay: wire.NewConfiguration()}
}

// SetBase installs the model-wide base settings, fetched once from the
// manager at connect time (spec.md §4.3 get_configuration).
func (st *Store) SetBase(cfg *wire.Configuration) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if cfg == nil {
		cfg = wire.NewConfiguration()
	}
	st.base = cfg
	Rom.onOverlaySwap(cfg, st.overlay)
}

// SetOverlay reassigns the per-reuse-iteration overlay (spec.md §4.1
// step 1/2: the result of merging muscle_parameters_in / F_INIT
// messages). An empty overlay is represented as a non-nil, zero-length
// Configuration, never nil, so IsOverlayEmpty below is well-defined.
func (st *Store) SetOverlay(cfg *wire.Configuration) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if cfg == nil {
		cfg = wire.NewConfiguration()
	}
	st.overlay = cfg
	Rom.onOverlaySwap(st.base, cfg)
}

func (st *Store) Overlay() *wire.Configuration {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.overlay
}

func (st *Store) Base() *wire.Configuration {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.base
}

func (st *Store) IsOverlayEmpty() bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.overlay.Len() == 0
}

// GetParameter implements spec.md §4.4's lookup order: overlay[instance.
// name], overlay[name], base[instance.name], base[name]. expected, if
// non-nil, requests coercion (and *TypeMismatchError on failure); a
// missing key at every one of the four positions is *NoSuchParameterError.
func (st *Store) GetParameter(instance, name ref.Reference, expected *wire.ParamKind) (wire.ParameterValue, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	scopedKey := instance.Key() + "." + name.Key()
	nameKey := name.Key()

	v, ok := st.overlay.GetByKey(scopedKey)
	if !ok {
		v, ok = st.overlay.GetByKey(nameKey)
	}
	if !ok {
		v, ok = st.base.GetByKey(scopedKey)
	}
	if !ok {
		v, ok = st.base.GetByKey(nameKey)
	}
	if !ok {
		return wire.ParameterValue{}, cmn.NewNoSuchParameterError(name.String())
	}
	if expected == nil {
		return v, nil
	}
	coerced, ok := v.Coerce(*expected)
	if !ok {
		return wire.ParameterValue{}, cmn.NewTypeMismatchError(name.String(), v.Kind().String(), expected.String())
	}
	return coerced, nil
}
