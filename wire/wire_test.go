package wire_test

import (
	"testing"

	"github.com/hpcmsg/muscore/ref"
	"github.com/hpcmsg/muscore/wire"
)

func TestOperatorPredicates(t *testing.T) {
	cases := []struct {
		op              wire.Operator
		sending, recv   bool
	}{
		{wire.FInit, false, true},
		{wire.OI, true, false},
		{wire.S, false, true},
		{wire.B, false, true},
		{wire.OF, true, false},
		{wire.NoOperator, false, false},
	}
	for _, c := range cases {
		if got := c.op.AllowsSending(); got != c.sending {
			t.Errorf("%v.AllowsSending() = %v, want %v", c.op, got, c.sending)
		}
		if got := c.op.AllowsReceiving(); got != c.recv {
			t.Errorf("%v.AllowsReceiving() = %v, want %v", c.op, got, c.recv)
		}
	}
}

func TestOperatorRoundTrip(t *testing.T) {
	for _, op := range []wire.Operator{wire.FInit, wire.OI, wire.S, wire.B, wire.OF, wire.NoOperator} {
		parsed, ok := wire.ParseOperator(op.String())
		if !ok || parsed != op {
			t.Errorf("ParseOperator(%q) = %v, %v", op.String(), parsed, ok)
		}
	}
}

func TestMessageRoundTrip(t *testing.T) {
	next := 1.5
	m := wire.NewMessage(0.0, &next, wire.String("testing"))
	settingName, _ := ref.Parse("alpha")
	m.Configuration.Set(settingName, wire.ParamFromFloat(2.0))

	data, err := wire.Serialize(m)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	got, err := wire.Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if !got.Equal(m) {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, m)
	}
}

func TestMessageRoundTripClosePort(t *testing.T) {
	m := wire.NewMessage(0.0, nil, wire.ClosePortPayload())
	data, err := wire.Serialize(m)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	got, err := wire.Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if !got.Data.IsClosePort() {
		t.Errorf("expected ClosePort payload after round trip")
	}
}

func TestPayloadListAndMapRoundTrip(t *testing.T) {
	p := wire.List(wire.Int(1), wire.Float(2.5), wire.String("x"))
	m := wire.NewMessage(0, nil, p)
	data, err := wire.Serialize(m)
	if err != nil {
		t.Fatal(err)
	}
	got, err := wire.Deserialize(data)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Data.Equal(p) {
		t.Errorf("list payload mismatch after round trip")
	}

	mp := wire.Map(map[string]wire.Payload{"a": wire.Bool(true)})
	m2 := wire.NewMessage(0, nil, mp)
	data2, _ := wire.Serialize(m2)
	got2, err := wire.Deserialize(data2)
	if err != nil {
		t.Fatal(err)
	}
	if !got2.Data.Equal(mp) {
		t.Errorf("map payload mismatch after round trip")
	}
}

func TestParameterCoercion(t *testing.T) {
	v := wire.ParamFromInt(2)
	coerced, ok := v.Coerce(wire.ParamFloat)
	if !ok {
		t.Fatalf("expected i64->f64 widening to succeed")
	}
	if f, _ := coerced.Float(); f != 2.0 {
		t.Errorf("coerced float = %v, want 2.0", f)
	}
	if _, ok := v.Coerce(wire.ParamString); ok {
		t.Errorf("expected i64->string coercion to fail")
	}
	if _, ok := wire.ParamFromBool(true).Coerce(wire.ParamInt); ok {
		t.Errorf("expected bool->i64 coercion to fail")
	}
}

func TestConfigurationEquality(t *testing.T) {
	a := wire.NewConfiguration()
	xName, _ := ref.Parse("x")
	yName, _ := ref.Parse("y")
	a.Set(xName, wire.ParamFromFloat(1.1))
	a.Set(yName, wire.ParamFromFloat(3.0))

	b := wire.NewConfiguration()
	b.Set(yName, wire.ParamFromFloat(3.0))
	b.Set(xName, wire.ParamFromFloat(1.1))

	if !a.Equal(b) {
		t.Errorf("expected configurations with same keys/values (different order) to be equal")
	}

	b.Set(xName, wire.ParamFromFloat(9.9))
	if a.Equal(b) {
		t.Errorf("expected configurations with differing values to be unequal")
	}
}

func TestConfigurationMergeOver(t *testing.T) {
	base := wire.NewConfiguration()
	xName, _ := ref.Parse("x")
	base.Set(xName, wire.ParamFromFloat(1.0))

	overlay := wire.NewConfiguration()
	yName, _ := ref.Parse("y")
	overlay.Set(yName, wire.ParamFromFloat(2.0))

	merged := overlay.MergeOver(base)
	if merged.Len() != 2 {
		t.Fatalf("expected merged configuration to have 2 entries, got %d", merged.Len())
	}
	if v, ok := merged.Get(xName); !ok || v.Equal(wire.ParamFromFloat(0)) {
		t.Errorf("expected base entry x to survive merge")
	}
}

func TestPortInvariants(t *testing.T) {
	name, isVector := wire.ParsePortName("out[]")
	if name != "out" || !isVector {
		t.Fatalf("ParsePortName(%q) = %q, %v", "out[]", name, isVector)
	}

	scalar := wire.NewScalarPort("in", wire.FInit)
	if scalar.IsConnected() {
		t.Errorf("new port should not be connected")
	}
	if err := scalar.SetLength(4); err == nil {
		t.Errorf("expected scalar port SetLength to fail")
	}

	vec := wire.NewVectorPort("out", wire.OF)
	if err := vec.SetLength(4); err == nil {
		t.Errorf("expected SetLength on unconnected vector port to fail (not resizable)")
	}
	peer, _ := ref.Parse("micro[0].in")
	vec.Connect(peer, []int{10})
	if !vec.IsConnected() {
		t.Errorf("expected port to be connected after Connect")
	}
	if err := vec.SetLength(10); err != nil {
		t.Errorf("expected SetLength to succeed once connected: %v", err)
	}
	if vec.Length() != 10 {
		t.Errorf("Length() = %d, want 10", vec.Length())
	}
}
