package transport_test

import (
	"context"
	"testing"
	"time"

	"github.com/hpcmsg/muscore/ref"
	"github.com/hpcmsg/muscore/transport"
	"github.com/hpcmsg/muscore/wire"
)

func TestOutboxPutGet(t *testing.T) {
	ob := transport.NewOutbox()
	msg := wire.NewMessage(0, nil, wire.Int(1))
	ob.Put(msg)
	if ob.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", ob.Len())
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, ok := ob.Get(ctx)
	if !ok || got != msg {
		t.Fatalf("Get() = %v, %v; want original message, true", got, ok)
	}
	if ob.Len() != 0 {
		t.Errorf("Len() after Get() = %d, want 0", ob.Len())
	}
}

func TestOutboxGetBlocksUntilPut(t *testing.T) {
	ob := transport.NewOutbox()
	msg := wire.NewMessage(0, nil, wire.Bool(true))
	done := make(chan *wire.Message, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		got, _ := ob.Get(ctx)
		done <- got
	}()
	time.Sleep(20 * time.Millisecond)
	ob.Put(msg)
	select {
	case got := <-done:
		if got != msg {
			t.Errorf("Get() returned %v, want %v", got, msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Get() did not unblock after Put")
	}
}

func TestOutboxGetCancelledByContext(t *testing.T) {
	ob := transport.NewOutbox()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, ok := ob.Get(ctx)
	if ok {
		t.Fatalf("expected Get to fail on empty, cancelled outbox")
	}
}

func TestPostOfficeDirectClientRoundTrip(t *testing.T) {
	po := transport.NewPostOffice()
	defer po.Stop()

	receiver, _ := ref.Parse("micro[0].in")
	msg := wire.NewMessage(1.5, nil, wire.String("hello"))
	po.Deliver(receiver, msg)

	client := transport.NewDirectClient(po)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := client.GetMessage(ctx, receiver)
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if !got.Equal(msg) {
		t.Errorf("GetMessage() = %+v, want %+v", got, msg)
	}
}

func TestServerDepositAndGetMessage(t *testing.T) {
	po := transport.NewPostOffice()
	defer po.Stop()
	srv := transport.NewServer(po)

	receiver, _ := ref.Parse("macro.out")
	msg := wire.NewMessage(0, nil, wire.Float(2.5))
	srv.Deposit(receiver, msg)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := srv.GetMessage(ctx, receiver)
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if !got.Equal(msg) {
		t.Errorf("GetMessage() = %+v, want %+v", got, msg)
	}
}
