package config

import (
	"sync/atomic"

	"github.com/hpcmsg/muscore/wire"
)

// Rom is the package's read-mostly snapshot of the active configuration,
// grounded on the teacher's cmn/rom.go pattern: readers load an
// immutable struct via atomic.Pointer and never block behind Store's
// RWMutex; only SetBase/SetOverlay (writers) pay for the snapshot swap.
// Like the teacher's, it is one process-wide value: every Store in the
// process updates the same Rom, so it reflects the most recent
// SetBase/SetOverlay of any Store.
var Rom = &rom{}

type romSnapshot struct {
	baseLen    int
	overlayLen int
}

type rom struct {
	p atomic.Pointer[romSnapshot]
}

func (r *rom) onOverlaySwap(base, overlay *wire.Configuration) {
	r.p.Store(&romSnapshot{baseLen: base.Len(), overlayLen: overlay.Len()})
}

// OverlaySize reports the number of entries in the most recently
// installed overlay without taking Store's lock, for metrics/logging
// call sites that poll frequently (spec.md §4.1's per-reuse-iteration
// overlay swap).
func (r *rom) OverlaySize() int {
	if s := r.p.Load(); s != nil {
		return s.overlayLen
	}
	return 0
}

func (r *rom) BaseSize() int {
	if s := r.p.Load(); s != nil {
		return s.baseLen
	}
	return 0
}
