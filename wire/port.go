package wire

import (
	"strings"

	"github.com/hpcmsg/muscore/ref"
)

// Port is spec.md §3's Port: metadata about one named endpoint.
//
// Invariants enforced by this type's constructors (not re-checked on
// every field access): scalar ports have Length() == 1 and are never
// resizable; IsConnected() iff len(PeerPorts()) > 0.
type Port struct {
	name     string
	operator Operator
	isVector bool
	length   int
	peers    []ref.Reference
	peerDims [][]int
}

// ParsePortName strips a trailing "[]" vector-port suffix (spec.md §6),
// returning the stored name and whether it declares a vector port.
func ParsePortName(declared string) (name string, isVector bool) {
	if strings.HasSuffix(declared, "[]") {
		return declared[:len(declared)-2], true
	}
	return declared, false
}

func NewScalarPort(name string, op Operator) *Port {
	return &Port{name: name, operator: op, isVector: false, length: 1}
}

func NewVectorPort(name string, op Operator) *Port {
	return &Port{name: name, operator: op, isVector: true, length: 0}
}

func (p *Port) Name() string       { return p.name }
func (p *Port) Operator() Operator { return p.operator }
func (p *Port) IsVector() bool     { return p.isVector }
func (p *Port) Length() int        { return p.length }
func (p *Port) IsConnected() bool  { return len(p.peers) > 0 }

func (p *Port) PeerPorts() []ref.Reference { return append([]ref.Reference(nil), p.peers...) }
func (p *Port) PeerDims() [][]int {
	out := make([][]int, len(p.peerDims))
	for i, d := range p.peerDims {
		out[i] = append([]int(nil), d...)
	}
	return out
}

// Connect records one peer endpoint and its kernel's multiplicity
// dimensions (used to size a vector port — spec.md §4.2: "A vector
// port's length on the receiving side equals the product of the extra
// multiplicity dimensions on the sender side").
func (p *Port) Connect(peer ref.Reference, peerDims []int) {
	p.peers = append(p.peers, peer)
	p.peerDims = append(p.peerDims, append([]int(nil), peerDims...))
}

// SetLength fixes a vector port's length, either from an explicit user
// call (O_F-side fan-out sender) or from the first received slot-0
// message's peer dimensions (receiving side). Returns ErrNotResizable
// for a scalar port or an unconnected vector port, per spec.md's Open
// Question: "reject with not resizable."
func (p *Port) SetLength(n int) error {
	if !p.isVector || !p.IsConnected() {
		return ErrNotResizable{Port: p.name}
	}
	p.length = n
	return nil
}

type ErrNotResizable struct{ Port string }

func (e ErrNotResizable) Error() string { return "port " + e.Port + " is not resizable" }

// Conduit is spec.md §3's directed edge between two port endpoints.
type Conduit struct {
	Sender   ref.Reference
	Receiver ref.Reference
}
