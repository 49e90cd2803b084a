// Package ref implements spec.md §3's Reference: a hierarchical name of
// the form kernel[i][j]....port[slot] used to address instances, ports,
// and slots throughout muscore.
//
// A Reference is an immutable, ordered sequence of components, each
// either an identifier (a bare name) or an index (an integer). There is
// no pointer graph here by design: communicator, ports, and peers refer
// to each other only by Reference, so the whole topology is just names.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package ref

import (
	"strconv"
	"strings"

	"github.com/hpcmsg/muscore/cmn/debug"
)

type componentKind uint8

const (
	kindIdent componentKind = iota
	kindIndex
)

// Component is one element of a Reference: either a bare identifier or
// an integer index.
type Component struct {
	kind componentKind
	name string
	idx  int
}

func Ident(name string) Component { return Component{kind: kindIdent, name: name} }
func Index(i int) Component       { return Component{kind: kindIndex, idx: i} }

func (c Component) IsIdent() bool { return c.kind == kindIdent }
func (c Component) IsIndex() bool { return c.kind == kindIndex }
func (c Component) Name() string  { return c.name }
func (c Component) Int() int      { return c.idx }

func (c Component) String() string {
	if c.kind == kindIdent {
		return c.name
	}
	return "[" + strconv.Itoa(c.idx) + "]"
}

// Reference is an ordered, immutable sequence of Components. Invariant:
// the leading component is always an identifier (spec.md §3).
type Reference struct {
	comps []Component
}

// New builds a Reference from a leading identifier and trailing
// components. Panics (via debug.Assert, a no-op in production builds) if
// comps is empty or its head is not an identifier — callers are expected
// to construct references from already-validated parts.
func New(comps ...Component) Reference {
	debug.Assert(len(comps) > 0, "empty reference")
	debug.Assert(len(comps) == 0 || comps[0].IsIdent(), "reference must start with an identifier")
	out := make([]Component, len(comps))
	copy(out, comps)
	return Reference{comps: out}
}

// Parse reads a reference from its textual form, e.g. "macro[3].out[0]".
// Dotted segments introduce new identifiers; bracketed suffixes on a
// segment introduce one index component per bracket pair.
func Parse(s string) (Reference, error) {
	var comps []Component
	for _, seg := range strings.Split(s, ".") {
		name, idxs, err := splitSegment(seg)
		if err != nil {
			return Reference{}, err
		}
		if name != "" {
			comps = append(comps, Ident(name))
		}
		for _, i := range idxs {
			comps = append(comps, Index(i))
		}
	}
	if len(comps) == 0 || !comps[0].IsIdent() {
		return Reference{}, &ParseError{s}
	}
	return Reference{comps: comps}, nil
}

type ParseError struct{ input string }

func (e *ParseError) Error() string { return "invalid reference: " + e.input }

func splitSegment(seg string) (name string, idxs []int, err error) {
	i := strings.IndexByte(seg, '[')
	if i < 0 {
		return seg, nil, nil
	}
	name = seg[:i]
	rest := seg[i:]
	for len(rest) > 0 {
		if rest[0] != '[' {
			return "", nil, &ParseError{seg}
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return "", nil, &ParseError{seg}
		}
		n, perr := strconv.Atoi(rest[1:end])
		if perr != nil {
			return "", nil, &ParseError{seg}
		}
		idxs = append(idxs, n)
		rest = rest[end+1:]
	}
	return name, idxs, nil
}

func (r Reference) Len() int                { return len(r.comps) }
func (r Reference) At(i int) Component      { return r.comps[i] }
func (r Reference) Components() []Component { return append([]Component(nil), r.comps...) }
func (r Reference) IsZero() bool            { return len(r.comps) == 0 }

// Concat returns a new Reference with extra appended.
func (r Reference) Concat(extra ...Component) Reference {
	out := make([]Component, 0, len(r.comps)+len(extra))
	out = append(out, r.comps...)
	out = append(out, extra...)
	return Reference{comps: out}
}

// HasPrefix reports whether r begins with exactly the components of p.
func (r Reference) HasPrefix(p Reference) bool {
	if len(p.comps) > len(r.comps) {
		return false
	}
	for i := range p.comps {
		if r.comps[i] != p.comps[i] {
			return false
		}
	}
	return true
}

// Head returns the longest identifier-only prefix (spec.md §3).
func (r Reference) Head() Reference {
	i := 0
	for i < len(r.comps) && r.comps[i].IsIdent() {
		i++
	}
	return Reference{comps: append([]Component(nil), r.comps[:i]...)}
}

// Tail returns everything after Head(): the remaining indices followed
// by any further sub-reference components (spec.md §3).
func (r Reference) Tail() Reference {
	h := r.Head()
	return Reference{comps: append([]Component(nil), r.comps[h.Len():]...)}
}

// Indices returns the leading run of index components immediately after
// Head(), i.e. an instance's multiplicity index, e.g. micro[3][7] -> [3,7].
func (r Reference) Indices() []int {
	tail := r.Tail()
	out := make([]int, 0, tail.Len())
	for i := 0; i < tail.Len(); i++ {
		c := tail.At(i)
		if !c.IsIndex() {
			break
		}
		out = append(out, c.Int())
	}
	return out
}

func (r Reference) Equal(other Reference) bool {
	if len(r.comps) != len(other.comps) {
		return false
	}
	for i := range r.comps {
		if r.comps[i] != other.comps[i] {
			return false
		}
	}
	return true
}

func (r Reference) String() string {
	var b strings.Builder
	for i, c := range r.comps {
		if c.IsIdent() && i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(c.String())
	}
	return b.String()
}

// Key returns a stable, comparable string usable as a map key, identical
// to String() but named separately so call sites document intent (e.g.
// transport.PostOffice, wire.Configuration) rather than relying on an
// incidental Stringer.
func (r Reference) Key() string { return r.String() }
