// Package manager implements spec.md §4.3: the instance registry,
// topology store, peer-answering logic, and the manager's own RPC
// surface over fasthttp (rpcserver.go).
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package manager

import (
	"github.com/hpcmsg/muscore/wire"
)

// ElementSpec is one compute-element declaration from the topology
// document (spec.md §6): a bare name, optionally with a multiplicity
// vector. A nil/empty Multiplicity means a scalar (single-instance)
// element.
type ElementSpec struct {
	Name         string
	Multiplicity []int
}

// ConduitSpec is one "sender.port -> receiver.port" entry from the
// topology document's `model.conduits` map, kept as the raw dotted
// strings the loader produced; Server splits off the kernel name (the
// text before the first '.') when answering request_peers, since the same
// conduit applies to every concrete instance of both kernels.
type ConduitSpec struct {
	SenderPort   string
	ReceiverPort string
}

// Topology is the manager's view of the parsed model description.
// Parsing the on-disk document itself (spec.md §6: "a text document
// with keys ymmsl_version, model.name, ...") is explicitly external;
// this struct is the collaborator interface the loader populates.
type Topology struct {
	ModelName string
	Elements  map[string]ElementSpec
	Conduits  []ConduitSpec
	Settings  *wire.Configuration
}

func NewTopology(modelName string) *Topology {
	return &Topology{ModelName: modelName, Elements: map[string]ElementSpec{}, Settings: wire.NewConfiguration()}
}

func (t *Topology) AddElement(e ElementSpec) { t.Elements[e.Name] = e }
func (t *Topology) AddConduit(c ConduitSpec) { t.Conduits = append(t.Conduits, c) }
func (t *Topology) Element(name string) (ElementSpec, bool) {
	e, ok := t.Elements[name]
	return e, ok
}
