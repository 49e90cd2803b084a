// Package instance implements spec.md §4.1's instance lifecycle: the
// reuse_instance state machine, the F_INIT pre-receive cache, and the
// close/deregister protocol that runs when a compute element stops
// reusing itself. Grounded on compute_element.py's
// reuse_instance/_f_init_cache pair (_examples/original_source), cast
// into the teacher's "small struct owning its collaborators, one method
// per lifecycle step" shape (e.g. ais/tgtcp.go's node-lifecycle methods).
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package instance

import (
	"context"

	"github.com/hpcmsg/muscore/cmn"
	"github.com/hpcmsg/muscore/cmn/cos"
	"github.com/hpcmsg/muscore/cmn/nlog"
	"github.com/hpcmsg/muscore/comm"
	"github.com/hpcmsg/muscore/config"
	"github.com/hpcmsg/muscore/manager"
	"github.com/hpcmsg/muscore/mmpclient"
	"github.com/hpcmsg/muscore/ref"
	"github.com/hpcmsg/muscore/wire"
)

// ParametersInPort is spec.md §4.1's implicit control port: every
// instance has one, connected or not, and it is never declared by user
// code the way F_INIT/O_I/S/B/O_F ports are.
const ParametersInPort = "muscle_parameters_in"

type fInitKey struct {
	port string
	slot int
}

// Instance is spec.md §3's "instance": the exclusive owner of its
// communicator, configuration store, and F_INIT cache.
type Instance struct {
	self         ref.Reference
	comm         *comm.Communicator
	store        *config.Store
	mgr          *mmpclient.Client
	applyOverlay bool

	fInit      map[fInitKey]*wire.Message
	reuseCount int
	closed     bool
	logStop    func()
}

// Option configures an Instance at construction time.
type Option func(*Instance)

// WithApplyOverlay toggles spec.md §4.1 step 2's overlay reconciliation
// during F_INIT pre-receive (SPEC_FULL.md §4's supplemented
// apply_overlay toggle). Default true.
func WithApplyOverlay(b bool) Option {
	return func(in *Instance) { in.applyOverlay = b }
}

// WithLogForwarding installs the package-level nlog hook (logforward.go)
// that mirrors this instance's WARNING+ lines to the manager, torn down
// automatically when ReuseInstance finally returns false.
func WithLogForwarding() Option {
	return func(in *Instance) {
		in.logStop = EnableLogForwarding(in.self.String(), in.mgr)
	}
}

// New builds an Instance for self (this instance's own Reference).
// selfDims is self's kernel multiplicity; c is the instance's already
// constructed Communicator (see comm.New); mgr is the instance's manager
// RPC facade. The implicit
// muscle_parameters_in port is registered automatically.
func New(self ref.Reference, selfDims []int, c *comm.Communicator, mgr *mmpclient.Client, opts ...Option) *Instance {
	in := &Instance{
		self:         self,
		comm:         c,
		store:        config.NewStore(),
		mgr:          mgr,
		applyOverlay: true,
		fInit:        map[fInitKey]*wire.Message{},
	}
	in.comm.RegisterPort(wire.NewScalarPort(ParametersInPort, wire.FInit))
	for _, o := range opts {
		o(in)
	}
	return in
}

func (in *Instance) Communicator() *comm.Communicator { return in.comm }
func (in *Instance) ConfigStore() *config.Store        { return in.store }
func (in *Instance) Self() ref.Reference               { return in.self }

// AddPort declares one of the instance's own communication ports (spec.md
// §6's model-side port declaration, already stripped of its "[]" vector
// suffix by the caller via wire.ParsePortName).
func (in *Instance) AddPort(p *wire.Port) { in.comm.RegisterPort(p) }

// Connect implements spec.md §4.3's client side: register with the
// manager, request peers (retrying on PENDING per spec.md §5), wire the
// returned conduits into the communicator's ports, and fetch the base
// configuration. locations are this instance's own reachable network
// addresses, as the manager should hand them to our peers.
func (in *Instance) Connect(ctx context.Context, locations []string) error {
	ports := make([]manager.PortMeta, 0, len(in.comm.Ports()))
	for _, p := range in.comm.Ports() {
		ports = append(ports, manager.PortMeta{Name: p.Name(), Operator: p.Operator()})
	}
	if err := in.mgr.RegisterInstance(ctx, in.self.String(), locations, ports); err != nil {
		return err
	}

	resp, err := in.mgr.RequestPeers(ctx, in.self.String(), mmpclient.DefaultBackoff())
	if err != nil {
		return err
	}
	if err := in.wireConduits(resp); err != nil {
		return err
	}

	cfgResp, err := in.mgr.GetConfiguration(ctx)
	if err != nil {
		return err
	}
	in.store.SetBase(cfgResp.Configuration)
	return nil
}

// SendMessage delegates to the communicator (spec.md §4.2 send_message).
func (in *Instance) SendMessage(ctx context.Context, port string, msg *wire.Message, slot *int) error {
	return in.comm.SendMessage(ctx, port, msg, slot)
}

// ReceiveMessage serves cached F_INIT messages first (spec.md §4.1's
// pre-receive cache), falling back to the communicator; the returned
// message always has its configuration stripped, matching spec.md §3's
// "stripped unless the user requested it" (this package has no
// with-configuration variant since nothing in spec.md needs one).
func (in *Instance) ReceiveMessage(ctx context.Context, port string, slot *int, dflt *wire.Message) (*wire.Message, error) {
	key := fInitKey{port: port}
	if slot != nil {
		key.slot = *slot
	}
	if msg, ok := in.fInit[key]; ok {
		delete(in.fInit, key)
		return msg.Stripped(), nil
	}
	msg, err := in.comm.ReceiveMessage(ctx, port, slot, dflt)
	if err != nil {
		return nil, err
	}
	return msg.Stripped(), nil
}

// ReuseInstance implements spec.md §4.1's reuse_instance. On a false
// return, the close protocol and deregistration have already run.
func (in *Instance) ReuseInstance(ctx context.Context) (bool, error) {
	if in.closed {
		return false, nil
	}
	if n := len(in.fInit); n > 0 {
		nlog.Warningf("instance %s: reuse_instance called with %d unconsumed f_init cache entries", in.self, n)
		in.fInit = map[fInitKey]*wire.Message{}
	}

	doReuse, err := in.receiveParameters(ctx)
	if err != nil {
		return false, err
	}

	anyFInit, err := in.preReceiveAllFInit(ctx)
	if err != nil {
		return false, err
	}

	if !anyFInit && !in.parametersConnected() {
		reuse := in.reuseCount == 0
		in.reuseCount++
		if !reuse {
			return false, in.shutdown(ctx)
		}
		return true, nil
	}

	if in.anyCachedClosePort() {
		doReuse = false
	}
	in.reuseCount++
	if !doReuse {
		return false, in.shutdown(ctx)
	}
	return true, nil
}

// receiveParameters implements step 1: receive on the implicit
// muscle_parameters_in port (default: empty configuration), and fold the
// result into the current overlay.
func (in *Instance) receiveParameters(ctx context.Context) (doReuse bool, err error) {
	dflt := wire.NewMessage(0, nil, wire.Map(nil))
	msg, err := in.comm.ReceiveMessage(ctx, ParametersInPort, nil, dflt)
	if err != nil {
		return false, err
	}
	if msg.Data.IsClosePort() {
		return false, nil
	}
	m, ok := msg.Data.AsMap()
	if !ok {
		return false, cmn.NewProtocolError("muscle_parameters_in: payload kind %v is not a configuration", msg.Data.Kind())
	}
	paramCfg, err := configurationFromPayloadMap(m)
	if err != nil {
		return false, err
	}
	in.store.SetOverlay(paramCfg.MergeOver(msg.Configuration))
	return true, nil
}

// preReceiveAllFInit implements step 2: pre-receive every connected
// F_INIT port (excluding muscle_parameters_in) into the cache, returning
// whether any such port exists.
func (in *Instance) preReceiveAllFInit(ctx context.Context) (bool, error) {
	any := false
	for _, p := range in.comm.Ports() {
		if p.Name() == ParametersInPort || p.Operator() != wire.FInit || !p.IsConnected() {
			continue
		}
		any = true
		if err := in.preReceiveFInitPort(ctx, p); err != nil {
			return any, err
		}
	}
	return any, nil
}

func (in *Instance) preReceiveFInitPort(ctx context.Context, p *wire.Port) error {
	if !p.IsVector() {
		msg, err := in.comm.ReceiveMessage(ctx, p.Name(), nil, nil)
		if err != nil {
			return err
		}
		in.fInit[fInitKey{p.Name(), 0}] = msg
		return in.reconcileOverlay(msg)
	}
	zero := 0
	head, err := in.comm.ReceiveMessage(ctx, p.Name(), &zero, nil)
	if err != nil {
		return err
	}
	in.fInit[fInitKey{p.Name(), 0}] = head
	if err := in.reconcileOverlay(head); err != nil {
		return err
	}
	for s := 1; s < p.Length(); s++ {
		slot := s
		msg, err := in.comm.ReceiveMessage(ctx, p.Name(), &slot, nil)
		if err != nil {
			return err
		}
		in.fInit[fInitKey{p.Name(), s}] = msg
		if err := in.reconcileOverlay(msg); err != nil {
			return err
		}
	}
	return nil
}

// reconcileOverlay implements step 2's apply_overlay behavior: when on,
// the first non-empty overlay seen (while the store's overlay is still
// empty) becomes the current overlay, and every subsequent non-empty
// overlay must equal it.
func (in *Instance) reconcileOverlay(msg *wire.Message) error {
	if !in.applyOverlay || msg.Configuration == nil || msg.Configuration.Len() == 0 {
		return nil
	}
	if in.store.IsOverlayEmpty() {
		in.store.SetOverlay(msg.Configuration)
		return nil
	}
	if !msg.Configuration.Equal(in.store.Overlay()) {
		return cmn.NewParallelUniverseError("f_init pre-receive: overlay mismatch with current cycle")
	}
	return nil
}

func (in *Instance) anyCachedClosePort() bool {
	for _, msg := range in.fInit {
		if msg.Data.IsClosePort() {
			return true
		}
	}
	return false
}

func (in *Instance) parametersConnected() bool {
	p, ok := in.comm.Port(ParametersInPort)
	return ok && p.IsConnected()
}

// shutdown implements spec.md §4.1 step 4: close protocol (§4.1.1), then
// deregister. Every port's close failure is collected rather than
// aborting after the first (cos.Errs, grounded on cmn/cos/err.go), since
// one wedged peer should not prevent draining the rest.
func (in *Instance) shutdown(ctx context.Context) error {
	var errs cos.Errs
	for _, p := range in.comm.Ports() {
		if p.Operator().AllowsSending() && p.IsConnected() {
			if err := in.closeOutgoingPort(ctx, p); err != nil {
				errs.Add(err)
			}
		}
	}
	for _, p := range in.comm.Ports() {
		if p.Name() == ParametersInPort {
			continue
		}
		if p.Operator() == wire.FInit {
			if err := in.drainFInitPort(ctx, p); err != nil {
				errs.Add(err)
			}
			continue
		}
		if p.Operator().AllowsReceiving() && p.IsConnected() {
			if err := in.drainUntilClose(ctx, p); err != nil {
				errs.Add(err)
			}
		}
	}
	in.fInit = map[fInitKey]*wire.Message{}
	in.closed = true

	if in.mgr != nil {
		if err := in.mgr.DeregisterInstance(ctx, in.self.String()); err != nil {
			errs.Add(err)
		}
	}
	if in.logStop != nil {
		in.logStop()
	}
	return errs.Err()
}

func (in *Instance) closeOutgoingPort(ctx context.Context, p *wire.Port) error {
	closeMsg := wire.NewMessage(0, nil, wire.ClosePortPayload())
	if !p.IsVector() {
		return in.comm.SendMessage(ctx, p.Name(), closeMsg, nil)
	}
	var errs cos.Errs
	for s := 0; s < p.Length(); s++ {
		slot := s
		if err := in.comm.SendMessage(ctx, p.Name(), closeMsg, &slot); err != nil {
			errs.Add(err)
		}
	}
	return errs.Err()
}

// drainUntilClose implements spec.md §4.1.1's incoming drain: receive
// until a ClosePort payload arrives; for a vector port, receive slot 0
// first, then 1..length-1, and repeat the whole pass if slot 0 was not a
// close.
func (in *Instance) drainUntilClose(ctx context.Context, p *wire.Port) error {
	if !p.IsVector() {
		for {
			msg, err := in.comm.ReceiveMessage(ctx, p.Name(), nil, nil)
			if err != nil {
				return err
			}
			if msg.Data.IsClosePort() {
				return nil
			}
		}
	}
	for {
		zero := 0
		head, err := in.comm.ReceiveMessage(ctx, p.Name(), &zero, nil)
		if err != nil {
			return err
		}
		if head.Data.IsClosePort() {
			return nil
		}
		for s := 1; s < p.Length(); s++ {
			slot := s
			if _, err := in.comm.ReceiveMessage(ctx, p.Name(), &slot, nil); err != nil {
				return err
			}
		}
	}
}

// drainFInitPort implements spec.md §4.1.1's F_INIT drain: if the cached
// head slot's payload is not already ClosePort, keep draining new
// messages until one is; then discard the port's cache entries either
// way.
func (in *Instance) drainFInitPort(ctx context.Context, p *wire.Port) error {
	head, ok := in.fInit[fInitKey{p.Name(), 0}]
	defer func() {
		for k := range in.fInit {
			if k.port == p.Name() {
				delete(in.fInit, k)
			}
		}
	}()
	if ok && head.Data.IsClosePort() {
		return nil
	}
	if !p.IsConnected() {
		return nil
	}
	return in.drainUntilClose(ctx, p)
}

func splitEndpoint(s string) (kernel, port string) {
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			return s[:i], s[i+1:]
		}
	}
	return s, ""
}
