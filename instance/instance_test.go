package instance_test

import (
	"context"
	"testing"
	"time"

	"github.com/hpcmsg/muscore/comm"
	"github.com/hpcmsg/muscore/instance"
	"github.com/hpcmsg/muscore/ref"
	"github.com/hpcmsg/muscore/transport"
	"github.com/hpcmsg/muscore/wire"
)

func mustRef(t *testing.T, s string) ref.Reference {
	t.Helper()
	r, err := ref.Parse(s)
	if err != nil {
		t.Fatalf("ref.Parse(%q): %v", s, err)
	}
	return r
}

func newComm(t *testing.T, po *transport.PostOffice, dialer comm.Dialer, self string, selfDims []int) *comm.Communicator {
	t.Helper()
	return comm.New(mustRef(t, self), selfDims, transport.NewDirectClient(po), dialer)
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestReuseExactlyOnceWithNoControlPorts exercises spec.md §8 invariant 3
// and §4.1 step 3's "reuse exactly once" branch: an instance with no
// connected F_INIT port and no connected muscle_parameters_in.
func TestReuseExactlyOnceWithNoControlPorts(t *testing.T) {
	po := transport.NewPostOffice()
	t.Cleanup(po.Stop)
	c := newComm(t, po, comm.NewDirectDialer(po), "solo", nil)
	in := instance.New(mustRef(t, "solo"), nil, c, nil)
	ctx := testCtx(t)

	reuse, err := in.ReuseInstance(ctx)
	if err != nil || !reuse {
		t.Fatalf("first ReuseInstance = (%v, %v), want (true, nil)", reuse, err)
	}
	reuse, err = in.ReuseInstance(ctx)
	if err != nil || reuse {
		t.Fatalf("second ReuseInstance = (%v, %v), want (false, nil)", reuse, err)
	}
	// Idempotent once closed.
	reuse, err = in.ReuseInstance(ctx)
	if err != nil || reuse {
		t.Fatalf("third ReuseInstance = (%v, %v), want (false, nil)", reuse, err)
	}
}

// TestDuplicationMapperCloseProtocol drives spec.md §8's "Duplication
// mapper" topology through a full F_INIT cycle and then through the close
// protocol (§4.1.1): both receivers keep reusing while messages flow and
// stop as soon as a ClosePort arrives on their F_INIT port.
func TestDuplicationMapperCloseProtocol(t *testing.T) {
	po := transport.NewPostOffice()
	t.Cleanup(po.Stop)
	dialer := comm.NewDirectDialer(po)

	dmComm := newComm(t, po, dialer, "dm", nil)
	firstComm := newComm(t, po, dialer, "first", nil)
	secondComm := newComm(t, po, dialer, "second", nil)

	out1 := wire.NewScalarPort("out1", wire.OF)
	out1.Connect(mustRef(t, "first.in"), nil)
	dmComm.RegisterPort(out1)
	out2 := wire.NewScalarPort("out2", wire.OF)
	out2.Connect(mustRef(t, "second.in"), nil)
	dmComm.RegisterPort(out2)

	in1 := wire.NewScalarPort("in", wire.FInit)
	in1.Connect(mustRef(t, "dm.out1"), nil)
	firstComm.RegisterPort(in1)
	in2 := wire.NewScalarPort("in", wire.FInit)
	in2.Connect(mustRef(t, "dm.out2"), nil)
	secondComm.RegisterPort(in2)

	first := instance.New(mustRef(t, "first"), nil, firstComm, nil)
	second := instance.New(mustRef(t, "second"), nil, secondComm, nil)
	ctx := testCtx(t)

	msg := wire.NewMessage(0, nil, wire.String("hello"))
	if err := dmComm.SendMessage(ctx, "out1", msg, nil); err != nil {
		t.Fatalf("SendMessage(out1): %v", err)
	}
	if err := dmComm.SendMessage(ctx, "out2", msg, nil); err != nil {
		t.Fatalf("SendMessage(out2): %v", err)
	}

	if reuse, err := first.ReuseInstance(ctx); err != nil || !reuse {
		t.Fatalf("first ReuseInstance = (%v, %v), want (true, nil)", reuse, err)
	}
	if reuse, err := second.ReuseInstance(ctx); err != nil || !reuse {
		t.Fatalf("second ReuseInstance = (%v, %v), want (true, nil)", reuse, err)
	}

	got1, err := first.ReceiveMessage(ctx, "in", nil, nil)
	if err != nil {
		t.Fatalf("first.ReceiveMessage: %v", err)
	}
	if s, ok := got1.Data.AsString(); !ok || s != "hello" {
		t.Errorf("first got %+v, want string \"hello\"", got1.Data)
	}
	got2, err := second.ReceiveMessage(ctx, "in", nil, nil)
	if err != nil {
		t.Fatalf("second.ReceiveMessage: %v", err)
	}
	if s, ok := got2.Data.AsString(); !ok || s != "hello" {
		t.Errorf("second got %+v, want string \"hello\"", got2.Data)
	}

	closeMsg := wire.NewMessage(0, nil, wire.ClosePortPayload())
	if err := dmComm.SendMessage(ctx, "out1", closeMsg, nil); err != nil {
		t.Fatalf("SendMessage close(out1): %v", err)
	}
	if err := dmComm.SendMessage(ctx, "out2", closeMsg, nil); err != nil {
		t.Fatalf("SendMessage close(out2): %v", err)
	}

	if reuse, err := first.ReuseInstance(ctx); err != nil || reuse {
		t.Fatalf("first ReuseInstance after close = (%v, %v), want (false, nil)", reuse, err)
	}
	if reuse, err := second.ReuseInstance(ctx); err != nil || reuse {
		t.Fatalf("second ReuseInstance after close = (%v, %v), want (false, nil)", reuse, err)
	}
}

// TestFInitOverlayMismatchIsParallelUniverse exercises spec.md §8
// invariant 4 and §4.1 step 2: two F_INIT ports disagreeing on their
// attached configuration within the same cycle is a *parallel universe
// error*.
func TestFInitOverlayMismatchIsParallelUniverse(t *testing.T) {
	po := transport.NewPostOffice()
	t.Cleanup(po.Stop)
	dialer := comm.NewDirectDialer(po)

	saComm := newComm(t, po, dialer, "sa", nil)
	sbComm := newComm(t, po, dialer, "sb", nil)
	targetComm := newComm(t, po, dialer, "target", nil)

	saOut := wire.NewScalarPort("out", wire.OF)
	saOut.Connect(mustRef(t, "target.cfgA"), nil)
	saComm.RegisterPort(saOut)
	sbOut := wire.NewScalarPort("out", wire.OF)
	sbOut.Connect(mustRef(t, "target.cfgB"), nil)
	sbComm.RegisterPort(sbOut)

	cfgA := wire.NewScalarPort("cfgA", wire.FInit)
	cfgA.Connect(mustRef(t, "sa.out"), nil)
	targetComm.RegisterPort(cfgA)
	cfgB := wire.NewScalarPort("cfgB", wire.FInit)
	cfgB.Connect(mustRef(t, "sb.out"), nil)
	targetComm.RegisterPort(cfgB)

	target := instance.New(mustRef(t, "target"), nil, targetComm, nil)
	ctx := testCtx(t)

	overlayA := wire.NewConfiguration()
	overlayA.Set(mustRef(t, "x"), wire.ParamFromInt(1))
	msgA := wire.NewMessage(0, nil, wire.Bool(true))
	msgA.Configuration = overlayA
	if err := saComm.SendMessage(ctx, "out", msgA, nil); err != nil {
		t.Fatalf("SendMessage(sa.out): %v", err)
	}

	overlayB := wire.NewConfiguration()
	overlayB.Set(mustRef(t, "x"), wire.ParamFromInt(2))
	msgB := wire.NewMessage(0, nil, wire.Bool(true))
	msgB.Configuration = overlayB
	if err := sbComm.SendMessage(ctx, "out", msgB, nil); err != nil {
		t.Fatalf("SendMessage(sb.out): %v", err)
	}

	_, err := target.ReuseInstance(ctx)
	if err == nil {
		t.Fatalf("ReuseInstance: expected a parallel universe error, got nil")
	}
}

// TestMuscleParametersInClosePort exercises spec.md §4.1 step 1: a
// ClosePort payload on muscle_parameters_in sets do_reuse = false.
func TestMuscleParametersInClosePort(t *testing.T) {
	po := transport.NewPostOffice()
	t.Cleanup(po.Stop)
	dialer := comm.NewDirectDialer(po)

	srcComm := newComm(t, po, dialer, "src", nil)
	targetComm := newComm(t, po, dialer, "target", nil)

	srcOut := wire.NewScalarPort("out", wire.OF)
	srcOut.Connect(mustRef(t, "target.muscle_parameters_in"), nil)
	srcComm.RegisterPort(srcOut)

	target := instance.New(mustRef(t, "target"), nil, targetComm, nil)
	params, ok := targetComm.Port(instance.ParametersInPort)
	if !ok {
		t.Fatalf("muscle_parameters_in was not auto-registered")
	}
	params.Connect(mustRef(t, "src.out"), nil)

	ctx := testCtx(t)
	closeMsg := wire.NewMessage(0, nil, wire.ClosePortPayload())
	if err := srcComm.SendMessage(ctx, "out", closeMsg, nil); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	reuse, err := target.ReuseInstance(ctx)
	if err != nil {
		t.Fatalf("ReuseInstance: %v", err)
	}
	if reuse {
		t.Fatalf("ReuseInstance = true, want false after ClosePort on muscle_parameters_in")
	}
}
