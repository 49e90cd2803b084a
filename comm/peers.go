package comm

import (
	"github.com/hpcmsg/muscore/cmn"
	"github.com/hpcmsg/muscore/ref"
	"github.com/hpcmsg/muscore/wire"
)

// target is one resolved send destination: the full receiver Reference
// (instance + port + optional slot) and the network location to reach
// it through.
type target struct {
	receiver ref.Reference
	location string
}

// resolveSendTargets implements spec.md §4.2's "slot-to-peer
// derivation". selfDims is this instance's owning kernel's multiplicity
// (empty for a scalar compute element); self is this instance's own
// Reference, used to linearize its index when it is the many-side of a
// fan-in.
func resolveSendTargets(p *wire.Port, self ref.Reference, selfDims []int, slot *int, locations map[string]string) ([]target, error) {
	peers := p.PeerPorts()
	dims := p.PeerDims()
	if len(peers) == 0 {
		return nil, cmn.NewNotConnectedError(p.Name())
	}

	switch {
	case p.IsVector():
		// Fan-out: this port has one peer per slot (spec.md §4.2: "the
		// sender uses a vector port; the slot selects which receiver").
		if slot == nil {
			return nil, cmn.NewProtocolError("port %q is a vector port; slot is required", p.Name())
		}
		if *slot < 0 || *slot >= len(peers) {
			return nil, cmn.NewProtocolError("port %q: slot %d out of range [0,%d)", p.Name(), *slot, len(peers))
		}
		return []target{{receiver: peers[*slot], location: locationOf(peers[*slot], locations)}}, nil

	case len(selfDims) > 0 && len(dims[0]) == 0:
		// Fan-in: this instance is one of many senders into a single
		// scalar peer port; the peer-side slot is this instance's own
		// linearized index within its kernel's multiplicity.
		if slot != nil {
			return nil, cmn.NewProtocolError("port %q is scalar; slot must be nil", p.Name())
		}
		linear := linearIndex(selfDims, self.Indices())
		receiver := peers[0].Concat(ref.Index(linear))
		return []target{{receiver: receiver, location: locationOf(peers[0], locations)}}, nil

	case len(selfDims) == 0 && allEmpty(dims):
		// One-to-one: both sides scalar.
		if slot != nil {
			return nil, cmn.NewProtocolError("port %q is scalar; slot must be nil", p.Name())
		}
		return []target{{receiver: peers[0], location: locationOf(peers[0], locations)}}, nil

	case len(selfDims) > 0 && len(dims[0]) == len(selfDims):
		// One-to-one, same shape: rank difference 0 between two
		// multi-instance kernels — "the peer has the same index"
		// (spec.md §4.2), so the receiver is the peer kernel concatenated
		// with this instance's own indices, followed by the peer port
		// (e.g. micro.in from micro2[3][7] -> micro[3][7].in).
		if slot != nil {
			return nil, cmn.NewProtocolError("port %q is scalar; slot must be nil", p.Name())
		}
		idxComps := make([]ref.Component, len(self.Indices()))
		for i, idx := range self.Indices() {
			idxComps[i] = ref.Index(idx)
		}
		peer := peers[0]
		receiver := ref.New(peer.At(0)).Concat(idxComps...).Concat(peer.Components()[1:]...)
		return []target{{receiver: receiver, location: locationOf(receiver, locations)}}, nil

	default:
		return nil, cmn.NewProtocolError("port %q: unsupported multiplicity rank difference", p.Name())
	}
}

func allEmpty(dims [][]int) bool {
	for _, d := range dims {
		if len(d) > 0 {
			return false
		}
	}
	return true
}

// linearIndex flattens indices (row-major) against dims, e.g. dims
// [10,10], indices [4,3] -> 43.
func linearIndex(dims, indices []int) int {
	n := 0
	for i, idx := range indices {
		n *= dims[i]
		n += idx
	}
	return n
}

// locationOf looks up the network location registered (via
// Communicator.SetPeerLocations) for peer's instance, i.e. its kernel
// plus leading indices ("micro[3][7]" for micro[3][7].in), then for its
// kernel alone, falling back to the peer's kernel name under "direct:"
// for single-process runs where no location table was ever populated.
func locationOf(peer ref.Reference, locations map[string]string) string {
	kernel := ref.New(peer.At(0))
	inst := kernel
	for _, i := range peer.Indices() {
		inst = inst.Concat(ref.Index(i))
	}
	if loc, ok := locations[inst.Key()]; ok {
		return loc
	}
	if loc, ok := locations[kernel.Key()]; ok {
		return loc
	}
	return "direct:" + kernel.String()
}
