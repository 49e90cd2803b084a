package comm

import (
	"sync"

	"github.com/hpcmsg/muscore/transport"
	"github.com/hpcmsg/muscore/transport/fastrpc"
)

// Dialer resolves a peer's registered location string (spec.md §6's
// peer_locations entries, e.g. "direct:macro" or "10.0.0.5:9001") into a
// transport.Depositor the Communicator can push a message through.
type Dialer interface {
	Depositor(location string) transport.Depositor
}

// DirectDialer is used in single-process runs: every instance's
// Communicator shares one transport.PostOffice, so any location resolves
// to the same in-memory depositor (spec.md §4.5's "direct" mode).
type DirectDialer struct {
	depositor *transport.DirectDepositor
}

func NewDirectDialer(po *transport.PostOffice) *DirectDialer {
	return &DirectDialer{depositor: transport.NewDirectDepositor(po)}
}

func (d *DirectDialer) Depositor(string) transport.Depositor { return d.depositor }

// NetworkDialer opens one fastrpc.Client per distinct peer location and
// caches it, so repeated sends to the same peer reuse the pooled
// fasthttp.Client inside it instead of redialing.
type NetworkDialer struct {
	mu      sync.Mutex
	clients map[string]*fastrpc.Client
}

func NewNetworkDialer() *NetworkDialer {
	return &NetworkDialer{clients: map[string]*fastrpc.Client{}}
}

func (d *NetworkDialer) Depositor(location string) transport.Depositor {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.clients[location]
	if !ok {
		c = fastrpc.NewClient(location)
		d.clients[location] = c
	}
	return c
}
