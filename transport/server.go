package transport

import (
	"context"

	"github.com/hpcmsg/muscore/ref"
	"github.com/hpcmsg/muscore/wire"
)

// Server is the network-facing front of a PostOffice: it answers
// GetMessage pulls from remote instances and accepts deposits addressed
// to local receivers, the same role the teacher's handler/iterator pair
// plays for inbound object streams, minus the HTTP framing (that lives
// in transport/fastrpc for the networked case).
type Server struct {
	po *PostOffice
}

func NewServer(po *PostOffice) *Server { return &Server{po: po} }

// Deposit is called by the RPC layer when a remote sender posts a
// message for one of this process's local receivers.
func (s *Server) Deposit(receiver ref.Reference, msg *wire.Message) {
	s.po.Deliver(receiver, msg)
}

// GetMessage is called by the RPC layer when a remote receiver pulls a
// message this process is holding for it.
func (s *Server) GetMessage(ctx context.Context, receiver ref.Reference) (*wire.Message, error) {
	msg, ok := s.po.Lookup(receiver).Get(ctx)
	if !ok {
		return nil, ctx.Err()
	}
	return msg, nil
}
