// Package comm implements spec.md §4.2's Communicator: a port registry,
// slot-addressed send/receive, and conduit-derived peer resolution.
// Grounded on the teacher's send-queue/completion-queue split
// (transport/api.go, formerly) generalized from "send an object" to
// "send one addressed Message on one port slot".
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package comm

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hpcmsg/muscore/cmn"
	"github.com/hpcmsg/muscore/cmn/nlog"
	"github.com/hpcmsg/muscore/ref"
	"github.com/hpcmsg/muscore/transport"
	"github.com/hpcmsg/muscore/wire"
)

// Communicator is one instance's exclusive owner of its ports and
// outbound/inbound addressing (spec.md §3 "Ownership"). Deposits are
// pushed to peers through dialer (spec.md §4.5: "the sender deposits
// into the receiver's outbox without blocking"); inbound messages are
// read straight out of this instance's own local PostOffice via local —
// the background worker spec.md §5 allows for is the fastrpc.Server's
// own request-handling goroutines writing deposits in, not a second
// polling loop here.
type Communicator struct {
	mu        sync.RWMutex
	self      ref.Reference
	selfDims  []int
	ports     map[string]*wire.Port
	overlay   *wire.Configuration
	dialer    Dialer
	local     transport.Client
	locations map[string]string
}

// New builds a Communicator for the instance addressed by self, whose
// owning kernel has multiplicity selfDims (empty for a scalar compute
// element). local retrieves messages already deposited for this
// instance (typically a transport.DirectClient over this process's own
// PostOffice); dialer resolves outgoing peer locations to a Depositor.
func New(self ref.Reference, selfDims []int, local transport.Client, dialer Dialer) *Communicator {
	return &Communicator{
		self:      self,
		selfDims:  append([]int(nil), selfDims...),
		ports:     map[string]*wire.Port{},
		overlay:   wire.NewConfiguration(),
		local:     local,
		dialer:    dialer,
		locations: map[string]string{},
	}
}

// SetPeerLocations records the network location(s) reported by the
// manager's RequestPeers response (spec.md §6: peer_locations ->
// {instance_name, locations[]}), keyed by the peer instance's Reference
// string. Only the first location per peer is used; the rest are for
// future failover/replication, out of scope here.
func (c *Communicator) SetPeerLocations(byInstance map[string][]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, locs := range byInstance {
		if len(locs) > 0 {
			c.locations[name] = locs[0]
		}
	}
}

// RegisterPort declares a local port (spec.md §6's "name[]" suffix
// already resolved into NewVectorPort/NewScalarPort by the caller).
func (c *Communicator) RegisterPort(p *wire.Port) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ports[p.Name()] = p
}

// SetPortLength is the explicit, user-callable counterpart to the
// automatic length negotiation ReceiveMessage performs on slot 0
// (SPEC_FULL.md §4's supplemented "set_port_length" feature): an O_F-side
// fan-out sender declares its own vector length up front instead of
// waiting to discover it from a peer's message.
func (c *Communicator) SetPortLength(portName string, n int) error {
	c.mu.RLock()
	p, ok := c.ports[portName]
	c.mu.RUnlock()
	if !ok {
		return cmn.NewProtocolError("set_port_length on unknown port %q", portName)
	}
	return p.SetLength(n)
}

func (c *Communicator) Port(name string) (*wire.Port, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.ports[name]
	return p, ok
}

// Ports returns every registered port, for the close protocol (§4.1.1)
// to iterate.
func (c *Communicator) Ports() []*wire.Port {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*wire.Port, 0, len(c.ports))
	for _, p := range c.ports {
		out = append(out, p)
	}
	return out
}

func (c *Communicator) Overlay() *wire.Configuration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.overlay
}

func (c *Communicator) SetOverlay(cfg *wire.Configuration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.overlay = cfg
}

// SendMessage implements spec.md §4.2 send_message. slot is required
// for a vector port (selects which peer receives it) and must be nil
// for a scalar port.
func (c *Communicator) SendMessage(ctx context.Context, portName string, msg *wire.Message, slot *int) error {
	c.mu.RLock()
	p, ok := c.ports[portName]
	overlay := c.overlay
	self, dims := c.self, c.selfDims
	dialer := c.dialer
	locations := c.locations
	c.mu.RUnlock()
	if !ok {
		return cmn.NewProtocolError("send on unknown port %q", portName)
	}
	if !p.Operator().AllowsSending() {
		return cmn.NewProtocolError("port %q (operator %s) does not allow sending", portName, p.Operator())
	}
	if msg.Configuration == nil || msg.Configuration.Len() == 0 {
		msg = &wire.Message{Timestamp: msg.Timestamp, NextTimestamp: msg.NextTimestamp, Data: msg.Data, Configuration: overlay.Clone()}
	}

	targets, err := resolveSendTargets(p, self, dims, slot, locations)
	if err != nil {
		return err
	}

	// Deposit to every resolved target concurrently: today's topologies
	// resolve to exactly one target per send, but a port wired to
	// several peers at once (broadcast) should not pay for them
	// serially just because the common case doesn't need it.
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range targets {
		t := t
		g.Go(func() error {
			return dialer.Depositor(t.location).Deposit(gctx, t.receiver, msg)
		})
	}
	return g.Wait()
}

// ReceiveMessage implements spec.md §4.2 receive_message.
func (c *Communicator) ReceiveMessage(ctx context.Context, portName string, slot *int, dflt *wire.Message) (*wire.Message, error) {
	c.mu.RLock()
	p, ok := c.ports[portName]
	overlay := c.overlay
	self := c.self
	local := c.local
	c.mu.RUnlock()
	if !ok {
		return nil, cmn.NewProtocolError("receive on unknown port %q", portName)
	}
	if !p.IsConnected() {
		if dflt != nil {
			return dflt, nil
		}
		return nil, cmn.NewNotConnectedError(portName)
	}

	addr := self.Concat(ref.Ident(portName))
	if p.IsVector() {
		s := 0
		if slot != nil {
			s = *slot
		}
		addr = addr.Concat(ref.Index(s))
	}

	msg, err := local.GetMessage(ctx, addr)
	if err != nil {
		return nil, err
	}

	if p.IsVector() && p.Length() == 0 && (slot == nil || *slot == 0) {
		if n, ok := firstPeerDimsProduct(p); ok {
			if err := p.SetLength(n); err != nil {
				nlog.Warningf("comm: port %q: %v", portName, err)
			}
		}
	}

	if msg.Configuration != nil && msg.Configuration.Len() > 0 && overlay.Len() > 0 && !msg.Configuration.Equal(overlay) {
		return nil, cmn.NewParallelUniverseError("port %q: overlay mismatch with current cycle", portName)
	}
	return msg, nil
}

func firstPeerDimsProduct(p *wire.Port) (int, bool) {
	dims := p.PeerDims()
	if len(dims) == 0 {
		return 0, false
	}
	n := 1
	for _, d := range dims[0] {
		n *= d
	}
	return n, true
}
