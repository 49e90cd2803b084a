package transport

import (
	"context"

	"github.com/hpcmsg/muscore/ref"
	"github.com/hpcmsg/muscore/wire"
)

// Client is the receiving side's view of a peer's PostOffice: pull one
// message addressed to receiver. Implementations: DirectClient (shared
// PostOffice, single process) and transport/fastrpc.Client (networked).
type Client interface {
	GetMessage(ctx context.Context, receiver ref.Reference) (*wire.Message, error)
}

// DirectClient retrieves straight from a PostOffice shared in-process
// with the sender, so "direct mode" (spec.md §4.5's single-process
// degenerate case) never touches the network at all.
type DirectClient struct {
	po *PostOffice
}

func NewDirectClient(po *PostOffice) *DirectClient { return &DirectClient{po: po} }

func (c *DirectClient) GetMessage(ctx context.Context, receiver ref.Reference) (*wire.Message, error) {
	msg, ok := c.po.Lookup(receiver).Get(ctx)
	if !ok {
		return nil, ctx.Err()
	}
	return msg, nil
}

// Depositor is the sending side's view of a peer's PostOffice: push one
// message addressed to receiver (spec.md §4.5's "sender deposits into
// the receiver's outbox without blocking"). Implementations:
// DirectDepositor (shared PostOffice, single process) and
// transport/fastrpc.Client (networked).
type Depositor interface {
	Deposit(ctx context.Context, receiver ref.Reference, msg *wire.Message) error
}

// DirectDepositor deposits straight into a PostOffice shared in-process
// with the receiver, so "direct mode" never touches the network.
type DirectDepositor struct {
	po *PostOffice
}

func NewDirectDepositor(po *PostOffice) *DirectDepositor { return &DirectDepositor{po: po} }

func (d *DirectDepositor) Deposit(_ context.Context, receiver ref.Reference, msg *wire.Message) error {
	d.po.Deliver(receiver, msg)
	return nil
}
