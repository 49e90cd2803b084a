package main

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hpcmsg/muscore/comm"
	"github.com/hpcmsg/muscore/instance"
	"github.com/hpcmsg/muscore/manager"
	"github.com/hpcmsg/muscore/mmpclient"
	"github.com/hpcmsg/muscore/ref"
	"github.com/hpcmsg/muscore/transport"
	"github.com/hpcmsg/muscore/wire"
)

// TestInstanceConnectOverRealManager drives instance.Instance.Connect
// against a manager.RPCServer listening on a real TCP socket, the one
// path manager_test.go and instance_test.go each exercise only halfway
// (manager_test.go calls Server directly; instance_test.go passes a nil
// mmpclient.Client). Message flow between the two instances still uses
// an in-process transport.PostOffice, since only the manager side of
// spec.md §4.3 needs to cross a real network boundary.
func TestInstanceConnectOverRealManager(t *testing.T) {
	topo := manager.NewTopology("integration-model")
	topo.AddElement(manager.ElementSpec{Name: "macro"})
	topo.AddElement(manager.ElementSpec{Name: "micro"})
	topo.AddConduit(manager.ConduitSpec{SenderPort: "macro.out", ReceiverPort: "micro.in"})
	topo.Settings.Set(mustRef(t, "dt"), wire.ParamFromFloat(0.1))

	reg, err := manager.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	t.Cleanup(func() { _ = reg.Close() })

	srv := manager.NewServer(topo, reg, manager.NewMetrics(prometheus.NewRegistry()))
	rpc := manager.NewRPCServer(srv)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	go func() { _ = rpc.Serve(ln) }()
	t.Cleanup(func() { _ = rpc.Shutdown() })

	addr := ln.Addr().String()
	macroMgr := mmpclient.New(addr)
	microMgr := mmpclient.New(addr)

	po := transport.NewPostOffice()
	t.Cleanup(po.Stop)
	dialer := comm.NewDirectDialer(po)

	macroComm := comm.New(mustRef(t, "macro"), nil, transport.NewDirectClient(po), dialer)
	microComm := comm.New(mustRef(t, "micro"), nil, transport.NewDirectClient(po), dialer)

	macroComm.RegisterPort(wire.NewScalarPort("out", wire.OF))
	microComm.RegisterPort(wire.NewScalarPort("in", wire.FInit))

	macro := instance.New(mustRef(t, "macro"), nil, macroComm, macroMgr)
	micro := instance.New(mustRef(t, "micro"), nil, microComm, microMgr)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Each Connect keeps getting PENDING from RequestPeers until its peer
	// has registered too, so the two instances connect concurrently.
	microConnected := make(chan error, 1)
	go func() { microConnected <- micro.Connect(ctx, []string{"direct:micro"}) }()
	if err := macro.Connect(ctx, []string{"direct:macro"}); err != nil {
		t.Fatalf("macro.Connect: %v", err)
	}
	if err := <-microConnected; err != nil {
		t.Fatalf("micro.Connect: %v", err)
	}

	store := micro.ConfigStore()
	dt, err := store.GetParameter(micro.Self(), mustRef(t, "dt"), nil)
	if err != nil {
		t.Fatalf("GetParameter(dt): %v", err)
	}
	if v, ok := dt.Float(); !ok || v != 0.1 {
		t.Errorf("dt = %v, want 0.1", dt)
	}

	msg := wire.NewMessage(0, nil, wire.Float(1.5))
	if err := macro.SendMessage(ctx, "out", msg, nil); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	reuse, err := micro.ReuseInstance(ctx)
	if err != nil || !reuse {
		t.Fatalf("micro.ReuseInstance = (%v, %v), want (true, nil)", reuse, err)
	}
	got, err := micro.ReceiveMessage(ctx, "in", nil, nil)
	if err != nil {
		t.Fatalf("ReceiveMessage: %v", err)
	}
	if v, ok := got.Data.AsFloat(); !ok || v != 1.5 {
		t.Errorf("received %+v, want float 1.5", got.Data)
	}
}

// TestSubmitLogMessageNormalizesTimestamp drives SubmitLogMessage over
// the real RPC boundary with a non-UTC, non-millisecond timestamp and
// checks the manager's log sink records spec.md §6's wire form
// (RFC3339 UTC, millisecond precision) rather than the caller's raw
// string.
func TestSubmitLogMessageNormalizesTimestamp(t *testing.T) {
	topo := manager.NewTopology("logging-model")
	reg, err := manager.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	t.Cleanup(func() { _ = reg.Close() })

	srv := manager.NewServer(topo, reg, manager.NewMetrics(prometheus.NewRegistry()))
	rpc := manager.NewRPCServer(srv)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	go func() { _ = rpc.Serve(ln) }()
	t.Cleanup(func() { _ = rpc.Shutdown() })

	mgr := mmpclient.New(ln.Addr().String())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := mgr.SubmitLogMessage(ctx, manager.LogRecord{
		InstanceID:       "test_logging",
		Operator:         "NONE",
		TimestampISO8601: "1970-01-01T00:00:02-05:00",
		Level:            manager.LogCritical,
		Text:             "Integration testing",
	}); err != nil {
		t.Fatalf("SubmitLogMessage: %v", err)
	}

	recs := srv.LogRecords()
	if len(recs) != 1 {
		t.Fatalf("len(LogRecords) = %d, want 1", len(recs))
	}
	if want := "1970-01-01T05:00:02.000Z"; recs[0].TimestampISO8601 != want {
		t.Errorf("TimestampISO8601 = %q, want %q", recs[0].TimestampISO8601, want)
	}
}

func mustRef(t *testing.T, s string) ref.Reference {
	t.Helper()
	r, err := ref.Parse(s)
	if err != nil {
		t.Fatalf("ref.Parse(%q): %v", s, err)
	}
	return r
}
