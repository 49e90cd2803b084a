package fastrpc_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/hpcmsg/muscore/ref"
	"github.com/hpcmsg/muscore/transport"
	"github.com/hpcmsg/muscore/transport/fastrpc"
	"github.com/hpcmsg/muscore/wire"
)

func startLoopbackServer(t *testing.T) (addr string, po *transport.PostOffice, stop func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	po = transport.NewPostOffice()
	srv := fastrpc.NewServer(ln.Addr().String(), transport.NewServer(po))
	go func() { _ = srv.Serve(ln) }()
	return ln.Addr().String(), po, func() {
		_ = srv.Shutdown()
		po.Stop()
	}
}

func TestFastrpcDepositThenPull(t *testing.T) {
	addr, po, stop := startLoopbackServer(t)
	defer stop()

	receiver, _ := ref.Parse("micro[0].in")
	msg := wire.NewMessage(2.0, nil, wire.String("remote"))
	po.Deliver(receiver, msg)

	client := fastrpc.NewClient(addr)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	got, err := client.GetMessage(ctx, receiver)
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if !got.Equal(msg) {
		t.Errorf("GetMessage() = %+v, want %+v", got, msg)
	}
}

func TestFastrpcPullThenDeposit(t *testing.T) {
	addr, _, stop := startLoopbackServer(t)
	defer stop()

	receiver, _ := ref.Parse("macro.out")
	msg := wire.NewMessage(0, nil, wire.Float(3.25))

	client := fastrpc.NewClient(addr)
	resultCh := make(chan *wire.Message, 1)
	errCh := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		got, err := client.GetMessage(ctx, receiver)
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- got
	}()

	time.Sleep(50 * time.Millisecond)
	if err := client.Deposit(context.Background(), receiver, msg); err != nil {
		t.Fatalf("Deposit: %v", err)
	}

	select {
	case got := <-resultCh:
		if !got.Equal(msg) {
			t.Errorf("GetMessage() = %+v, want %+v", got, msg)
		}
	case err := <-errCh:
		t.Fatalf("GetMessage: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("GetMessage did not return after Deposit")
	}
}
